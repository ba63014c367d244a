package difficultymanager

import (
	"math/big"

	"github.com/xepnet/xepd/domain/consensus/blockindex"
	"github.com/xepnet/xepd/domain/consensus/model"
	"github.com/xepnet/xepd/util/difficulty"
)

// averageTargetASERT retargets every block against an absolute schedule
// anchored at a per-track reference block:
//
//	next_target = ref_target * 2^((time_behind_schedule) / timespan)
//
// where ref_target is a rolling average of the track's recent targets once
// enough blocks exist, and the raw reference target before that. Being
// behind schedule raises the target exponentially; being ahead lowers it.
func (dm *DifficultyManager) averageTargetASERT(prevNode *blockindex.Node,
	header *model.BlockHeader) uint32 {

	algo := header.Algo()
	proofOfStake := header.IsProofOfStake()
	powLimit := dm.params.PowLimitForAlgo(algo, proofOfStake)
	limitBits := dm.params.PowLimitBitsForAlgo(algo, proofOfStake)
	targetSpacing := dm.params.TargetSpacing(proofOfStake)

	if prevNode == nil {
		return limitBits
	}
	prev := lastBlock(prevNode, algo, proofOfStake)
	if prev.Parent() == nil {
		return limitBits
	}
	prevPrev := lastBlock(prev.Parent(), algo, proofOfStake)
	if prevPrev.Parent() == nil {
		return limitBits
	}

	height := prevNode.Height() + 1
	if height < dm.params.ASERTStartHeight {
		return dm.weightedTargetEMA(prevNode, header)
	}

	blocksToAverage := uint64(4 * dm.params.PowTargetTimespan / targetSpacing)

	ref, heightDiff := dm.asertReferenceBlock(prev, algo, proofOfStake)
	refPrev := lastBlock(ref.Parent(), algo, proofOfStake)
	var refTimestamp int64
	if refPrev != nil {
		// Using the reference block's parent timestamp keeps the
		// schedule from running permanently one block behind.
		refTimestamp = refPrev.BlockTime()
	} else {
		refTimestamp = ref.BlockTime() - targetSpacing
	}
	if proofOfStake {
		// Stake timestamps live on a coarse slot grid; an off-grid
		// reference would keep the stake emission permanently off
		// schedule.
		mask := int64(dm.params.StakeTimestampMask)
		for refTimestamp&mask != 0 {
			refTimestamp++
		}
	}
	timeDiff := prev.BlockTime() - refTimestamp

	refTarget := dm.referenceTarget(prev, ref, algo, proofOfStake, height,
		heightDiff, blocksToAverage, limitBits)

	// 2^(dividend/divisor) with the fractional part approximated by the
	// cubic (4x^3+11x^2+35x+50)/50, which meets 1 at x=0 and 2 at x=1 so
	// the curve has no discontinuities across exponent boundaries.
	dividend := timeDiff - targetSpacing*int64(heightDiff)
	divisor := dm.params.PowTargetTimespan
	exponent := dividend / divisor
	var remainder int64
	if dividend >= 0 {
		remainder = dividend % divisor
	} else {
		remainder = -dividend % divisor
	}

	numerator := big.NewInt(1)
	denominator := big.NewInt(1)
	if remainder != 0 {
		d := big.NewInt(divisor)
		r := big.NewInt(remainder)
		d2 := new(big.Int).Mul(d, d)
		d3 := new(big.Int).Mul(d2, d)
		r2 := new(big.Int).Mul(r, r)
		r3 := new(big.Int).Mul(r2, r)

		cubic := new(big.Int).Mul(big.NewInt(4), r3)
		cubic.Add(cubic, new(big.Int).Mul(big.NewInt(11), new(big.Int).Mul(r2, d)))
		cubic.Add(cubic, new(big.Int).Mul(big.NewInt(35), new(big.Int).Mul(r, d2)))
		cubic.Add(cubic, new(big.Int).Mul(big.NewInt(50), d3))
		fifty := new(big.Int).Mul(big.NewInt(50), d3)

		if dividend >= 0 {
			numerator.Mul(cubic, new(big.Int).Lsh(big.NewInt(1), uint(exponent)))
			denominator.Set(fifty)
		} else {
			numerator.Set(fifty)
			denominator.Mul(cubic, new(big.Int).Lsh(big.NewInt(1), uint(-exponent)))
		}
	} else if dividend >= 0 {
		numerator.Lsh(numerator, uint(exponent))
	} else {
		denominator.Lsh(denominator, uint(-exponent))
	}

	newTarget := new(big.Int).Mul(refTarget, numerator)
	newTarget.Div(newTarget, denominator)
	if newTarget.Cmp(powLimit) > 0 || newTarget.Sign() == 0 {
		newTarget.Set(powLimit)
	}
	return difficulty.BigToCompactRounded(newTarget)
}

// asertReferenceBlock resolves the track's schedule anchor, the most recent
// track block below the ASERT start height, and the number of track blocks
// between it and prev inclusive of both ends. The anchor never changes once
// found, so it is cached per track; the block count then comes from the
// per-track cumulative heights instead of rewalking the chain.
func (dm *DifficultyManager) asertReferenceBlock(prev *blockindex.Node,
	algo model.AlgoType, proofOfStake bool) (*blockindex.Node, uint64) {

	if algo != model.AlgoUnknown {
		dm.cacheMtx.Lock()
		cached := dm.refCache[algo]
		dm.cacheMtx.Unlock()
		if cached.ref != nil && cached.verified.Height() <= prev.Height() &&
			prev.Ancestor(cached.verified.Height()) == cached.verified {
			if prev != cached.verified {
				dm.cacheMtx.Lock()
				dm.refCache[algo].verified = prev
				dm.cacheMtx.Unlock()
			}
			return cached.ref, prev.AlgoHeight(algo) - cached.ref.AlgoHeight(algo) + 1
		}
	}

	blocksPassed := uint64(1)
	node := prev
	for node.Parent() != nil && node.Height() >= dm.params.ASERTStartHeight {
		stepped := blockindex.LastBlockForAlgo(node.Parent(), algo)
		if stepped == nil {
			break
		}
		node = stepped
		blocksPassed++
	}

	if algo != model.AlgoUnknown {
		dm.cacheMtx.Lock()
		dm.refCache[algo] = referenceCache{ref: node, verified: prev}
		dm.cacheMtx.Unlock()
	}
	return node, blocksPassed
}

// referenceTarget returns the target the schedule is anchored to. Once the
// track has a full averaging window of blocks, it is the rolling average of
// the last blocksToAverage non-relaxed targets ending at prev; otherwise it
// is the reference block's own target. Recomputing the average on every
// block would rescan days of history, so the result is cached until the
// chain crosses into the next averaging window.
func (dm *DifficultyManager) referenceTarget(prev, ref *blockindex.Node,
	algo model.AlgoType, proofOfStake bool, height, heightDiff,
	blocksToAverage uint64, limitBits uint32) *big.Int {

	dm.cacheMtx.Lock()
	defer dm.cacheMtx.Unlock()

	minDifficultyBits := limitBits - 1
	cache := &dm.targetCache

	if blocksToAverage > 0 && height >= dm.params.ASERTStartHeight+blocksToAverage &&
		heightDiff >= blocksToAverage {

		window := int64(heightDiff / blocksToAverage)
		if cache.window != window || cache.algo != algo || cache.target == nil ||
			cache.target.Sign() == 0 || algo == model.AlgoUnknown {

			node := prev
			for i := uint64(0); i < heightDiff%blocksToAverage; i++ {
				node = lastBlock(node.Parent(), algo, proofOfStake)
			}

			refTarget := new(big.Int)
			averageDivisor := new(big.Int).SetUint64(blocksToAverage)
			for i := 0; i < int(blocksToAverage); i++ {
				// Relaxed minimum-difficulty targets would drag the
				// average far off the track's real difficulty, so
				// skip them and average one extra block instead.
				if node.Bits() != minDifficultyBits ||
					!dm.params.AllowMinDifficultyBlocks {
					term := difficulty.CompactToBig(node.Bits())
					refTarget.Add(refTarget, term.Div(term, averageDivisor))
				} else {
					i--
				}
				node = lastBlock(node.Parent(), algo, proofOfStake)
				if node == nil {
					break
				}
			}

			if algo != model.AlgoUnknown {
				cache.target = new(big.Int).Set(refTarget)
				cache.window = window
				cache.algo = algo
				log.Tracef("averaged %d targets for track %s at height %d",
					blocksToAverage, algo, height)
			}
			return refTarget
		}
		return new(big.Int).Set(cache.target)
	}

	if algo != model.AlgoUnknown {
		if cache.window != -1 || cache.algo != algo || cache.target == nil ||
			cache.target.Sign() == 0 {
			cache.target = difficulty.CompactToBig(ref.Bits())
			cache.window = -1
			cache.algo = algo
		}
		return new(big.Int).Set(cache.target)
	}
	return difficulty.CompactToBig(ref.Bits())
}
