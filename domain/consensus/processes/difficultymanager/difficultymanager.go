package difficultymanager

import (
	"math/big"
	"sync"

	"github.com/xepnet/xepd/domain/chainconfig"
	"github.com/xepnet/xepd/domain/consensus/blockindex"
	"github.com/xepnet/xepd/domain/consensus/model"
	"github.com/xepnet/xepd/util/difficulty"
)

// minDifficultyWindow is how long an algorithm track must go without a block
// before a minimum-difficulty block may be accepted on it. It must be at
// least twice the proof-of-work spacing so the relaxation cannot interfere
// with retargeting.
const minDifficultyWindow = 30 * 60

// DifficultyManager computes the required compact target for the next block
// on each algorithm track. It owns two caches that make the ASERT schedule
// cheap to evaluate on a long chain: the per-track reference block and the
// rolling average of recent targets.
type DifficultyManager struct {
	params *chainconfig.Params

	cacheMtx    sync.Mutex
	targetCache averageTargetCache
	refCache    [model.AlgoCount]referenceCache
}

// referenceCache pins a track's schedule anchor together with the most
// recent block its ancestry was verified against. Later lookups only have
// to walk back to that frontier, not to the anchor itself, so validating
// the cache costs one step per block added since the previous lookup.
type referenceCache struct {
	ref      *blockindex.Node
	verified *blockindex.Node
}

// averageTargetCache holds the most recently computed rolling average of
// block targets. The window index is the number of full averaging windows
// between the reference block and the previous block, so the cache stays
// valid until the chain crosses into the next window. A window of -1 marks
// the below-window form that holds the raw reference target instead.
type averageTargetCache struct {
	target *big.Int
	window int64
	algo   model.AlgoType
}

// New instantiates a new DifficultyManager for the given network.
func New(params *chainconfig.Params) *DifficultyManager {
	return &DifficultyManager{
		params: params,
		targetCache: averageTargetCache{
			window: -1,
			algo:   model.AlgoCount,
		},
	}
}

// lastBlock walks back to the most recent block on the given algorithm
// track. Headers from before the version fork carry no track tag, so they
// are matched by proof type instead.
func lastBlock(node *blockindex.Node, algo model.AlgoType, proofOfStake bool) *blockindex.Node {
	if algo == model.AlgoUnknown {
		return blockindex.LastBlockForProofType(node, proofOfStake)
	}
	return blockindex.LastBlockForAlgo(node, algo)
}

// RequiredDifficulty returns the compact target the given header must meet
// when extending prevNode. A nil prevNode denotes the genesis block.
func (dm *DifficultyManager) RequiredDifficulty(prevNode *blockindex.Node,
	header *model.BlockHeader) uint32 {

	algo := header.Algo()
	limitBits := dm.params.PowLimitBitsForAlgo(algo, false)
	if prevNode == nil || dm.params.NoRetargeting {
		return limitBits
	}

	if dm.params.AllowMinDifficultyBlocks && algo != model.AlgoUnknown {
		// When the track has gone more than minDifficultyWindow without
		// a block, allow one at minimum difficulty so the chain cannot
		// stall on a difficulty its remaining miners can no longer meet.
		prevAlgo := blockindex.LastBlockForAlgo(prevNode, algo)
		if prevAlgo.Height() > 10 &&
			int64(header.Timestamp) > prevAlgo.BlockTime()+minDifficultyWindow {
			log.Debugf("allowing minimum difficulty block on track %s after "+
				"%d quiet seconds", algo, int64(header.Timestamp)-prevAlgo.BlockTime())
			return limitBits - 1
		}
		if prevAlgo.Parent() != nil && prevAlgo.Bits() == limitBits-1 {
			// The previous track block was itself a minimum-difficulty
			// block. Resume from the difficulty that was in force
			// before the relaxed stretch rather than compounding it.
			node := prevAlgo
			for node.Parent() != nil &&
				(node.Bits() == limitBits-1 || node.Algo() != algo) {
				node = node.Parent()
			}
			before := blockindex.LastBlockForAlgo(node.Parent(), algo)
			if before != nil && before.Height() > 10 {
				if before.Bits() != limitBits-1 {
					return before.Bits()
				}
				return node.Bits()
			}
		}
	}

	switch dm.params.RetargetAlgorithm {
	case chainconfig.RetargetLegacy:
		return dm.requiredDifficultyLegacy(prevNode, header)
	case chainconfig.RetargetWTEMA:
		return dm.weightedTargetEMA(prevNode, header)
	default:
		return dm.averageTargetASERT(prevNode, header)
	}
}

// requiredDifficultyLegacy implements the interval-based linear retarget.
// Difficulty only changes on adjustment interval boundaries; between them
// the previous target carries over, with a relaxation when blocks arrive
// far apart on networks that allow it.
func (dm *DifficultyManager) requiredDifficultyLegacy(prevNode *blockindex.Node,
	header *model.BlockHeader) uint32 {

	limitBits := dm.params.PowLimitBits[model.AlgoPoWSHA256]
	interval := dm.params.DifficultyAdjustmentInterval()

	if (prevNode.Height()+1)%interval != 0 {
		if dm.params.AllowMinDifficultyBlocks {
			if int64(header.Timestamp) >
				prevNode.BlockTime()+dm.params.PowTargetSpacing*2 {
				return limitBits
			}
			// Return the last target that was not itself a relaxation.
			node := prevNode
			for node.Parent() != nil && node.Height()%interval != 0 &&
				node.Bits() == limitBits {
				node = node.Parent()
			}
			return node.Bits()
		}
		return prevNode.Bits()
	}

	first := prevNode.Ancestor(prevNode.Height() - (interval - 1))
	return dm.calculateNextWorkRequired(prevNode, first.BlockTime())
}

// calculateNextWorkRequired scales the previous target by the ratio of the
// actual to the ideal timespan of the last adjustment interval. The
// adjustment step is limited to a factor of four in either direction.
func (dm *DifficultyManager) calculateNextWorkRequired(prevNode *blockindex.Node,
	firstBlockTime int64) uint32 {

	if dm.params.NoRetargeting {
		return prevNode.Bits()
	}

	actualTimespan := prevNode.BlockTime() - firstBlockTime
	targetTimespan := dm.params.PowTargetTimespan
	if actualTimespan < targetTimespan/4 {
		actualTimespan = targetTimespan / 4
	}
	if actualTimespan > targetTimespan*4 {
		actualTimespan = targetTimespan * 4
	}

	powLimit := dm.params.PowLimit[model.AlgoPoWSHA256]
	newTarget := difficulty.CompactToBig(prevNode.Bits())
	newTarget.Mul(newTarget, big.NewInt(actualTimespan))
	newTarget.Div(newTarget, big.NewInt(targetTimespan))
	if newTarget.Cmp(powLimit) > 0 {
		newTarget.Set(powLimit)
	}
	return difficulty.BigToCompact(newTarget)
}
