package blockindex

import (
	"math/big"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"

	"github.com/xepnet/xepd/domain/consensus/model"
	"github.com/xepnet/xepd/util/difficulty"
)

// medianTimeBlocks is the number of previous blocks which should be used to
// calculate the median time used to validate block timestamps.
const medianTimeBlocks = 11

// Node is an entry in the block index: one accepted header together with the
// bookkeeping the consensus core derives from it. The header-derived fields
// are immutable after creation; the stake modifier fields are written once
// when the block is connected and read-only thereafter.
type Node struct {
	owner *Index

	// parent is the arena position of the predecessor, or -1 for the
	// genesis node. Holding a position instead of a pointer keeps the
	// arena free of lifetime hazards under concurrent readers.
	parent int32
	pos    int32

	hash      chainhash.Hash
	height    uint64
	version   uint32
	timestamp int64
	bits      uint32
	nonce     uint32
	algo      model.AlgoType

	// Per-algorithm cumulative block counts up to and including this
	// node. Blocks with an unrecognized algorithm tag count for neither
	// track.
	heightPoS uint64
	heightPoW uint64

	// workSum is the total amount of work in the chain up to and
	// including this node.
	workSum *big.Int

	stakeModifier          uint64
	stakeModifierV2        chainhash.Hash
	generatedStakeModifier bool
	stakeEntropyBit        uint8
	stakeModifierChecksum  uint32
	hashProofOfStake       chainhash.Hash
}

// Hash returns the block identifier of the node.
func (node *Node) Hash() *chainhash.Hash {
	return &node.hash
}

// Height returns the position of the node in the chain.
func (node *Node) Height() uint64 {
	return node.height
}

// BlockTime returns the node's header timestamp in Unix seconds.
func (node *Node) BlockTime() int64 {
	return node.timestamp
}

// Bits returns the compact target the block was accepted with.
func (node *Node) Bits() uint32 {
	return node.bits
}

// Version returns the block header version.
func (node *Node) Version() uint32 {
	return node.version
}

// Algo returns the algorithm track declared by the node's version bits.
func (node *Node) Algo() model.AlgoType {
	return node.algo
}

// AlgoHeight returns the cumulative count of blocks of the given track up to
// and including this node.
func (node *Node) AlgoHeight(algo model.AlgoType) uint64 {
	if algo == model.AlgoPoS {
		return node.heightPoS
	}
	return node.heightPoW
}

// WorkSum returns the total work in the chain up to and including this node.
func (node *Node) WorkSum() *big.Int {
	return node.workSum
}

// IsProofOfStake reports whether the node is a proof-of-stake block.
func (node *Node) IsProofOfStake() bool {
	header := node.Header()
	return header.IsProofOfStake()
}

// Parent returns the predecessor node, or nil for the genesis node.
func (node *Node) Parent() *Node {
	if node.parent < 0 {
		return nil
	}
	return node.owner.nodeAt(node.parent)
}

// StakeModifier returns the 64-bit stake modifier pinned to this node.
func (node *Node) StakeModifier() uint64 {
	return node.stakeModifier
}

// StakeModifierV2 returns the 256-bit stake modifier pinned to this node.
func (node *Node) StakeModifierV2() *chainhash.Hash {
	return &node.stakeModifierV2
}

// GeneratedStakeModifier reports whether a new modifier was generated at
// this node rather than carried over from an ancestor.
func (node *Node) GeneratedStakeModifier() bool {
	return node.generatedStakeModifier
}

// StakeEntropyBit returns the node's entropy contribution to future stake
// modifiers.
func (node *Node) StakeEntropyBit() uint8 {
	return node.stakeEntropyBit
}

// StakeModifierChecksum returns the rolling modifier checksum.
func (node *Node) StakeModifierChecksum() uint32 {
	return node.stakeModifierChecksum
}

// HashProofOfStake returns the kernel hash that satisfied the stake target,
// or the zero hash for non-stake blocks.
func (node *Node) HashProofOfStake() *chainhash.Hash {
	return &node.hashProofOfStake
}

// SetStakeModifier pins the generated 64-bit stake modifier. It is written
// once when the block is connected.
func (node *Node) SetStakeModifier(modifier uint64, generated bool) {
	node.stakeModifier = modifier
	node.generatedStakeModifier = generated
}

// SetStakeModifierV2 pins the 256-bit stake modifier.
func (node *Node) SetStakeModifierV2(modifier *chainhash.Hash) {
	node.stakeModifierV2 = *modifier
}

// SetStakeModifierChecksum pins the rolling modifier checksum.
func (node *Node) SetStakeModifierChecksum(checksum uint32) {
	node.stakeModifierChecksum = checksum
}

// SetHashProofOfStake pins the kernel hash the block was accepted with.
func (node *Node) SetHashProofOfStake(hash *chainhash.Hash) {
	node.hashProofOfStake = *hash
}

// Header reconstructs the block header the node was created from.
func (node *Node) Header() model.BlockHeader {
	var prev chainhash.Hash
	if parent := node.Parent(); parent != nil {
		prev = parent.hash
	}
	return model.BlockHeader{
		Version:   node.version,
		PrevBlock: prev,
		Timestamp: uint32(node.timestamp),
		Bits:      node.bits,
		Nonce:     node.nonce,
	}
}

// Entry converts the node into its persistable form.
func (node *Node) Entry() *model.BlockIndexEntry {
	return &model.BlockIndexEntry{
		Hash:                   node.hash,
		Header:                 node.Header(),
		Height:                 node.height,
		HeightPoS:              node.heightPoS,
		HeightPoW:              node.heightPoW,
		StakeModifier:          node.stakeModifier,
		StakeModifierV2:        node.stakeModifierV2,
		GeneratedStakeModifier: node.generatedStakeModifier,
		StakeEntropyBit:        node.stakeEntropyBit,
		StakeModifierChecksum:  node.stakeModifierChecksum,
		HashProofOfStake:       node.hashProofOfStake,
	}
}

// Ancestor returns the ancestor node at the provided height by walking the
// chain backwards from this node. The returned node will be nil when the
// height is greater than the height of this node.
func (node *Node) Ancestor(height uint64) *Node {
	if height > node.height {
		return nil
	}
	n := node
	for n != nil && n.height != height {
		n = n.Parent()
	}
	return n
}

// MedianTimePast returns the median time of the previous few blocks prior to
// and including this node.
func (node *Node) MedianTimePast() int64 {
	timestamps := make([]int64, 0, medianTimeBlocks)
	n := node
	for i := 0; i < medianTimeBlocks && n != nil; i++ {
		timestamps = append(timestamps, n.timestamp)
		n = n.Parent()
	}
	sort.Slice(timestamps, func(i, j int) bool {
		return timestamps[i] < timestamps[j]
	})
	return timestamps[len(timestamps)/2]
}

// Index is an append-only arena of index nodes forming a singly-linked
// ancestor chain. Writers append under the lock; readers resolve arena
// positions without coordination because nodes are never moved or removed.
type Index struct {
	mtx    sync.RWMutex
	nodes  []*Node
	byHash map[chainhash.Hash]*Node
	tip    *Node
}

// NewIndex returns an empty block index.
func NewIndex() *Index {
	return &Index{
		byHash: make(map[chainhash.Hash]*Node),
	}
}

func (idx *Index) nodeAt(pos int32) *Node {
	return idx.nodes[pos]
}

// LookupNode returns the node for the given block hash, or nil when the
// block is not indexed.
func (idx *Index) LookupNode(hash *chainhash.Hash) *Node {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()
	return idx.byHash[*hash]
}

// Tip returns the node with the most cumulative work, or nil for an empty
// index.
func (idx *Index) Tip() *Node {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()
	return idx.tip
}

// Len returns the number of indexed nodes.
func (idx *Index) Len() int {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()
	return len(idx.nodes)
}

// AddHeader appends a node for the given header. The header's predecessor
// must already be indexed, except for the genesis header which references
// the zero hash.
func (idx *Index) AddHeader(header *model.BlockHeader) (*Node, error) {
	idx.mtx.Lock()
	defer idx.mtx.Unlock()

	hash := header.BlockHash()
	if existing, ok := idx.byHash[hash]; ok {
		return existing, nil
	}

	parentPos := int32(-1)
	var parent *Node
	if header.PrevBlock != (chainhash.Hash{}) {
		parent = idx.byHash[header.PrevBlock]
		if parent == nil {
			return nil, errors.Errorf("block %s references unknown parent %s",
				hash, header.PrevBlock)
		}
		parentPos = parent.pos
	}

	node := &Node{
		owner:     idx,
		parent:    parentPos,
		pos:       int32(len(idx.nodes)),
		hash:      hash,
		version:   header.Version,
		timestamp: int64(header.Timestamp),
		bits:      header.Bits,
		nonce:     header.Nonce,
		algo:      header.Algo(),
		// The entropy bit is the low bit of the block hash.
		stakeEntropyBit: hash[0] & 1,
		workSum:         difficulty.CalcWork(header.Bits),
	}
	if parent != nil {
		node.height = parent.height + 1
		node.heightPoS = parent.heightPoS
		node.heightPoW = parent.heightPoW
		node.workSum = new(big.Int).Add(parent.workSum, node.workSum)
	}
	switch node.algo {
	case model.AlgoPoS:
		node.heightPoS++
	case model.AlgoPoWSHA256:
		node.heightPoW++
	}

	idx.nodes = append(idx.nodes, node)
	idx.byHash[hash] = node
	if idx.tip == nil || node.workSum.Cmp(idx.tip.workSum) > 0 {
		idx.tip = node
	}
	return node, nil
}

// AddEntry appends a node restored from its persisted form, including the
// pinned stake modifier fields.
func (idx *Index) AddEntry(entry *model.BlockIndexEntry) (*Node, error) {
	node, err := idx.AddHeader(&entry.Header)
	if err != nil {
		return nil, err
	}
	idx.mtx.Lock()
	defer idx.mtx.Unlock()
	node.stakeModifier = entry.StakeModifier
	node.stakeModifierV2 = entry.StakeModifierV2
	node.generatedStakeModifier = entry.GeneratedStakeModifier
	node.stakeModifierChecksum = entry.StakeModifierChecksum
	node.hashProofOfStake = entry.HashProofOfStake
	return node, nil
}

// LastBlockForProofType walks back from the given node to the most recent
// block of the requested proof type. When no such block exists the walk
// terminates on the genesis node and returns it, matching the reference
// retarget semantics.
func LastBlockForProofType(node *Node, proofOfStake bool) *Node {
	for node != nil && node.Parent() != nil && node.IsProofOfStake() != proofOfStake {
		node = node.Parent()
	}
	return node
}

// LastBlockForAlgo walks back from the given node to the most recent block
// of the requested algorithm track, terminating on the genesis node when no
// such block exists.
func LastBlockForAlgo(node *Node, algo model.AlgoType) *Node {
	for node != nil && node.Parent() != nil && node.algo != algo {
		node = node.Parent()
	}
	return node
}
