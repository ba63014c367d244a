package stakekernel

import (
	"bytes"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"

	"github.com/xepnet/xepd/domain/consensus/blockindex"
	"github.com/xepnet/xepd/domain/consensus/model"
	"github.com/xepnet/xepd/domain/consensus/utils/serialization"
	"github.com/xepnet/xepd/util/difficulty"
)

// modifierIntervalRatio is the ratio of selection group interval length
// between the last group and the first group.
const modifierIntervalRatio = 3

// modifierSelectionRounds is the number of blocks selected into a modifier,
// one entropy bit each.
const modifierSelectionRounds = 64

// Block index flag bits folded into the modifier checksum.
const (
	flagProofOfStake          = 1 << 0
	flagStakeEntropy          = 1 << 1
	flagGeneratedStakeModifier = 1 << 2
)

// selectionIntervalSection returns the length in seconds of selection round
// nSection. Later rounds get shorter sections so the entropy weighting
// decays across the interval.
func (k *Kernel) selectionIntervalSection(section int) int64 {
	return k.params.ModifierInterval * 63 /
		(63 + ((63 - int64(section)) * (modifierIntervalRatio - 1)))
}

// selectionInterval returns the total length in seconds of the candidate
// window behind the modifier interval boundary.
func (k *Kernel) selectionInterval() int64 {
	interval := int64(0)
	for section := 0; section < modifierSelectionRounds; section++ {
		interval += k.selectionIntervalSection(section)
	}
	return interval
}

// selectionHash scores a candidate block for modifier selection by hashing
// its proof hash with the previous modifier. Stake blocks have their score
// shifted down 32 bits so they are always favored over work blocks, which
// preserves the energy efficiency of the modifier.
func selectionHash(node *blockindex.Node, prevModifier uint64) *chainhash.Hash {
	proofHash := *node.HashProofOfStake()
	isStake := proofHash != (chainhash.Hash{})
	if !isStake {
		proofHash = *node.Hash()
	}

	buf := bytes.NewBuffer(make([]byte, 0, chainhash.HashSize+8))
	err := serialization.WriteElements(buf, &proofHash, prevModifier)
	if err != nil {
		panic(err)
	}
	hash := chainhash.DoubleHashH(buf.Bytes())
	if isStake {
		score := difficulty.HashToBig(&hash)
		score.Rsh(score, 32)
		scoreBytes := score.Bytes()
		hash = chainhash.Hash{}
		for i, b := range scoreBytes {
			hash[len(scoreBytes)-1-i] = b
		}
	}
	return &hash
}

// selectCandidate picks the unselected candidate with the lowest selection
// hash among those with timestamps up to intervalStop. Candidates must be
// sorted by ascending timestamp.
func selectCandidate(candidates []*blockindex.Node,
	selected map[chainhash.Hash]bool, intervalStop int64,
	prevModifier uint64) *blockindex.Node {

	var best *blockindex.Node
	var bestScore *chainhash.Hash
	for _, node := range candidates {
		if best != nil && node.BlockTime() > intervalStop {
			break
		}
		if selected[*node.Hash()] {
			continue
		}
		score := selectionHash(node, prevModifier)
		if best == nil ||
			difficulty.HashToBig(score).Cmp(difficulty.HashToBig(bestScore)) < 0 {
			best = node
			bestScore = score
		}
	}
	return best
}

// ComputeNextStakeModifier derives the 64-bit stake modifier for a block
// extending prevNode. The modifier prevents an output owner from computing
// future kernels at the time the coin confirms: each of its bits is the
// entropy bit of a block deterministically selected from the candidate
// window behind the latest modifier interval boundary, so every honest node
// derives the identical value from the same history.
//
// The modifier is only regenerated once per modifier interval; between
// boundaries the previous modifier carries over with generated=false.
func (k *Kernel) ComputeNextStakeModifier(prevNode *blockindex.Node,
	currentHeader *model.BlockHeader) (uint64, bool, error) {

	if prevNode == nil {
		// The genesis block's modifier is zero.
		return 0, true, nil
	}

	// Find the latest generated modifier and its generation time.
	lastGenerated := prevNode
	for lastGenerated.Parent() != nil && !lastGenerated.GeneratedStakeModifier() {
		lastGenerated = lastGenerated.Parent()
	}
	if !lastGenerated.GeneratedStakeModifier() {
		return 0, false, errors.New("no generated stake modifier found back " +
			"to the genesis block")
	}
	modifier := lastGenerated.StakeModifier()
	modifierTime := lastGenerated.BlockTime()

	interval := k.params.ModifierInterval
	if modifierTime/interval >= prevNode.BlockTime()/interval {
		log.Debugf("no new modifier interval at height %d, keeping modifier "+
			"%016x", prevNode.Height()+1, modifier)
		return modifier, false, nil
	}
	if modifierTime/interval >= int64(currentHeader.Timestamp)/interval {
		// The current block's timestamp must also land in a new interval.
		return modifier, false, nil
	}

	// Collect candidate blocks: everything from one selection interval
	// before the latest boundary up to prevNode, sorted by ascending
	// timestamp with the block hash breaking ties.
	intervalStart := (prevNode.BlockTime()/interval)*interval - k.selectionInterval()
	var candidates []*blockindex.Node
	for node := prevNode; node != nil && node.BlockTime() >= intervalStart; node = node.Parent() {
		candidates = append(candidates, node)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].BlockTime() != candidates[j].BlockTime() {
			return candidates[i].BlockTime() < candidates[j].BlockTime()
		}
		bi, bj := candidates[i].Hash(), candidates[j].Hash()
		for b := chainhash.HashSize - 1; b >= 0; b-- {
			if bi[b] != bj[b] {
				return bi[b] < bj[b]
			}
		}
		return false
	})

	// Select up to 64 blocks, one per selection round, collecting one
	// entropy bit from each.
	newModifier := uint64(0)
	intervalStop := intervalStart
	selected := make(map[chainhash.Hash]bool)
	rounds := modifierSelectionRounds
	if len(candidates) < rounds {
		rounds = len(candidates)
	}
	for round := 0; round < rounds; round++ {
		intervalStop += k.selectionIntervalSection(round)
		node := selectCandidate(candidates, selected, intervalStop, modifier)
		if node == nil {
			return 0, false, errors.Errorf("unable to select a candidate "+
				"block at round %d", round)
		}
		newModifier |= uint64(node.StakeEntropyBit()) << uint(round)
		selected[*node.Hash()] = true
		log.Tracef("modifier round %d: stop=%d height=%d bit=%d", round,
			intervalStop, node.Height(), node.StakeEntropyBit())
	}

	log.Debugf("new stake modifier %016x at height %d", newModifier,
		prevNode.Height()+1)
	return newModifier, true, nil
}

// ComputeStakeModifierV2 derives the 256-bit stake modifier for a block
// extending prevNode by folding the kernel into the previous modifier.
// Stake blocks contribute their kernel's prevout hash, work blocks their
// own block hash.
func ComputeStakeModifierV2(prevNode *blockindex.Node,
	kernel *chainhash.Hash) chainhash.Hash {

	if prevNode == nil {
		// The genesis block's modifier is zero.
		return chainhash.Hash{}
	}
	buf := bytes.NewBuffer(make([]byte, 0, 2*chainhash.HashSize))
	prevModifier := *prevNode.StakeModifierV2()
	err := serialization.WriteElements(buf, kernel, &prevModifier)
	if err != nil {
		panic(err)
	}
	return chainhash.DoubleHashH(buf.Bytes())
}

// ComputeStakeModifierV3 is the compact form of the V2 derivation: the
// kernel is folded into the previous 64-bit modifier and the low 64 bits of
// the hash become the next modifier.
func ComputeStakeModifierV3(prevNode *blockindex.Node,
	kernel *chainhash.Hash) uint64 {

	if prevNode == nil {
		return 0
	}
	buf := bytes.NewBuffer(make([]byte, 0, chainhash.HashSize+8))
	err := serialization.WriteElements(buf, kernel, prevNode.StakeModifier())
	if err != nil {
		panic(err)
	}
	hash := chainhash.DoubleHashB(buf.Bytes())
	result := uint64(0)
	for i := 0; i < 8; i++ {
		result |= uint64(hash[i]) << uint(8*i)
	}
	return result
}

// StakeModifierChecksum returns the rolling 32-bit checksum binding the
// node's stake state to its ancestor's checksum. It is compared against the
// hardened checkpoints.
func StakeModifierChecksum(node *blockindex.Node) uint32 {
	buf := bytes.NewBuffer(make([]byte, 0, 48))

	if parent := node.Parent(); parent != nil {
		err := serialization.WriteElement(buf, parent.StakeModifierChecksum())
		if err != nil {
			panic(err)
		}
	}

	flags := uint32(0)
	if node.IsProofOfStake() {
		flags |= flagProofOfStake
	}
	if node.StakeEntropyBit() != 0 {
		flags |= flagStakeEntropy
	}
	if node.GeneratedStakeModifier() {
		flags |= flagGeneratedStakeModifier
	}

	proofHash := *node.HashProofOfStake()
	err := serialization.WriteElements(buf, flags, &proofHash,
		node.StakeModifier())
	if err != nil {
		panic(err)
	}

	hash := chainhash.DoubleHashH(buf.Bytes())
	checksum := difficulty.HashToBig(&hash)
	checksum.Rsh(checksum, 256-32)
	return uint32(checksum.Uint64())
}

// CheckStakeModifierCheckpoints reports whether the checksum at the given
// height matches the network's hardened checkpoint, if one exists.
func (k *Kernel) CheckStakeModifierCheckpoints(height uint64, checksum uint32) bool {
	if checkpoint, ok := k.params.StakeModifierCheckpoints[height]; ok {
		return checksum == checkpoint
	}
	return true
}
