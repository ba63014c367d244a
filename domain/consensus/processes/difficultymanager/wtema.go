package difficultymanager

import (
	"math/big"

	"github.com/xepnet/xepd/domain/consensus/blockindex"
	"github.com/xepnet/xepd/domain/consensus/model"
	"github.com/xepnet/xepd/util/difficulty"
)

// weightedTargetEMA retargets every block with an exponential moving
// average over the track's solve times:
//
//	next_target = prev_target * (interval - 1 + prev_solvetime/target_solvetime) / interval
//
// where interval is chosen as (N+1)/2 of the equivalent simple moving
// average so both filters share a center of mass.
func (dm *DifficultyManager) weightedTargetEMA(prevNode *blockindex.Node,
	header *model.BlockHeader) uint32 {

	algo := header.Algo()
	proofOfStake := header.IsProofOfStake()
	powLimit := dm.params.PowLimitForAlgo(algo, proofOfStake)
	limitBits := dm.params.PowLimitBitsForAlgo(algo, proofOfStake)

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

	// The two proof types retarget independently of one another.
	actualSpacing := prev.BlockTime() - prevPrev.BlockTime()
	targetSpacing := dm.params.TargetSpacing(proofOfStake)
	interval := dm.params.PowTargetTimespan / (targetSpacing * 2)

	// actualSpacing is floored so the numerator below stays positive even
	// for blocks solved out of timestamp order.
	if actualSpacing <= -((interval - 1) * targetSpacing) {
		actualSpacing = -((interval-1)*targetSpacing) + 1
	}

	numerator := (interval-1)*targetSpacing + actualSpacing
	denominator := interval * targetSpacing

	newTarget := difficulty.CompactToBig(prev.Bits())
	newTarget.Mul(newTarget, big.NewInt(numerator))
	newTarget.Div(newTarget, big.NewInt(denominator))
	if newTarget.Cmp(powLimit) > 0 || newTarget.Sign() == 0 {
		newTarget.Set(powLimit)
	}
	return difficulty.BigToCompactRounded(newTarget)
}
