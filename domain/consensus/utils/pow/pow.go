package pow

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"

	"github.com/xepnet/xepd/domain/chainconfig"
	"github.com/xepnet/xepd/domain/consensus/model"
	"github.com/xepnet/xepd/util/difficulty"
)

// CheckProofOfWork verifies that the given block hash satisfies the claimed
// compact target on the given algorithm track. Every input combination is
// handled: malformed targets, stake or out-of-range algorithm tags, targets
// above the track ceiling and insufficient hashes all yield a descriptive
// error. An untagged header checks against the SHA256 ceiling.
func CheckProofOfWork(blockHash *chainhash.Hash, bits uint32,
	algo model.AlgoType, params *chainconfig.Params) error {

	target, negative, overflow := difficulty.CompactToBigWithFlags(bits)
	if negative {
		return errors.Errorf("block target difficulty %#08x is negative", bits)
	}
	if overflow {
		return errors.Errorf("block target difficulty %#08x overflows", bits)
	}
	if target.Sign() <= 0 {
		return errors.Errorf("block target difficulty %#08x is zero", bits)
	}

	// Headers older than the algorithm fork carry no tag; their work
	// function is SHA256d, so AlgoUnknown checks against that ceiling.
	if algo == model.AlgoPoS || algo < model.AlgoUnknown || algo >= model.AlgoCount {
		return errors.Errorf("algorithm %s is not a proof-of-work algorithm", algo)
	}
	powLimit := params.PowLimitForAlgo(algo, false)
	if target.Cmp(powLimit) > 0 {
		return errors.Errorf("block target difficulty %#08x is higher than "+
			"the maximum for algorithm %s", bits, algo)
	}

	hashNum := difficulty.HashToBig(blockHash)
	if hashNum.Cmp(target) > 0 {
		return errors.Errorf("block hash %s is higher than the target %064x",
			blockHash, target)
	}
	return nil
}
