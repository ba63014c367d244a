package stakekernel

import (
	"bytes"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcutil"
	"github.com/pkg/errors"

	"github.com/xepnet/xepd/domain/chainconfig"
	"github.com/xepnet/xepd/domain/consensus/blockindex"
	"github.com/xepnet/xepd/domain/consensus/model"
	"github.com/xepnet/xepd/domain/consensus/utils/serialization"
	"github.com/xepnet/xepd/domain/consensus/utils/utxo"
	"github.com/xepnet/xepd/util/difficulty"
)

// Kernel evaluates proof-of-stake kernels: whether a given unspent output
// combined with a timestamp hashes below the stake target scaled by the
// output's value, so that the chance of minting is proportional to the
// stake held.
type Kernel struct {
	params *chainconfig.Params

	// timeSource returns the current wall clock in Unix seconds. It is a
	// field so tests can pin it.
	timeSource func() int64
}

// New returns a stake kernel evaluator for the given network.
func New(params *chainconfig.Params) *Kernel {
	return &Kernel{
		params:     params,
		timeSource: func() int64 { return time.Now().Unix() },
	}
}

// kernelHash hashes the kernel protocol serialization:
//
//	modifier || time of the origin block || prevout || transaction time
//
// The stake modifier scrambles the computation so an output owner cannot
// precompute future kernels at the time the coin confirms, and the origin
// block time keeps nodes from grinding origin timestamps for advantage.
// Block and transaction hashes must not contribute: they can be produced in
// vast quantities, which would degrade staking back into a work search.
func kernelHash(stakeModifier uint64, fromBlockTime int64,
	prevout *model.Outpoint, txTime int64) *chainhash.Hash {

	buf := bytes.NewBuffer(make([]byte, 0, 52))
	err := serialization.WriteElements(buf, stakeModifier,
		uint32(fromBlockTime), &prevout.TxID, prevout.Index, uint32(txTime))
	if err != nil {
		panic(err)
	}
	hash := chainhash.DoubleHashH(buf.Bytes())
	return &hash
}

// CheckStakeKernelHash reports whether the given output is a valid stake
// kernel for the given transaction timestamp against the compact target in
// bits. The returned hash is the kernel proof to pin to the block index on
// success.
//
// A failed precondition means no kernel exists at this timestamp, not that
// the caller did anything wrong, so every rejection returns ok=false rather
// than an error and the caller moves on to its next candidate.
func (k *Kernel) CheckStakeKernelHash(bits uint32, prevNode *blockindex.Node,
	fromNode *blockindex.Node, value btcutil.Amount, fromBlockTime int64,
	prevout *model.Outpoint, txTime int64,
	allowTimeDrift bool) (*chainhash.Hash, bool) {

	if txTime < fromBlockTime {
		log.Debugf("kernel %s:%d: transaction time %d precedes origin block "+
			"time %d", prevout.TxID, prevout.Index, txTime, fromBlockTime)
		return nil, false
	}
	if uint32(txTime)&k.params.StakeTimestampMask != 0 {
		log.Debugf("kernel %s:%d: transaction time %d is off the time-slot "+
			"grid", prevout.TxID, prevout.Index, txTime)
		return nil, false
	}
	if fromBlockTime+k.params.StakeMinAge > txTime {
		log.Debugf("kernel %s:%d: minimum age not reached", prevout.TxID,
			prevout.Index)
		return nil, false
	}
	depth := prevNode.Height() + 1 - fromNode.Height()
	if depth < k.params.StakeMinDepth {
		log.Debugf("kernel %s:%d: depth %d below minimum %d", prevout.TxID,
			prevout.Index, depth, k.params.StakeMinDepth)
		return nil, false
	}
	if txTime <= prevNode.MedianTimePast() {
		log.Debugf("kernel %s:%d: transaction time %d not past the median "+
			"time", prevout.TxID, prevout.Index, txTime)
		return nil, false
	}
	if !allowTimeDrift && !k.params.RelaxFutureDrift &&
		txTime > k.timeSource()+k.params.MaxFutureBlockTime {
		log.Debugf("kernel %s:%d: transaction time %d too far in the future",
			prevout.TxID, prevout.Index, txTime)
		return nil, false
	}

	hash := kernelHash(prevNode.StakeModifier(), fromBlockTime, prevout, txTime)

	// The target scales with the staked value: larger stakes hit
	// proportionally more often.
	target := difficulty.CompactToBig(bits)
	target.Mul(target, big.NewInt(int64(value)))
	if difficulty.HashToBig(hash).Cmp(target) > 0 {
		return nil, false
	}

	log.Debugf("kernel %s:%d: modifier=%016x timeBlockFrom=%d timeTx=%d "+
		"proof=%s", prevout.TxID, prevout.Index, prevNode.StakeModifier(),
		fromBlockTime, txTime, hash)
	return hash, true
}

// CheckProofOfStake validates the coinstake transaction of a stake block:
// its kernel input must resolve in the utxo view and satisfy the kernel
// target for the claimed transaction time. A kernel input missing from the
// view is a hard error since it indicates an inconsistent view rather than
// an ordinary kernel miss.
func (k *Kernel) CheckProofOfStake(prevNode *blockindex.Node,
	tx *model.Transaction, bits uint32, txTime int64,
	view *utxo.Viewpoint) (*chainhash.Hash, error) {

	if !tx.IsCoinStake() {
		return nil, errors.Errorf("check proof of stake called on a "+
			"non-coinstake transaction %s", tx.TxID())
	}

	kernelInput := tx.Inputs[0]
	entry := view.LookupEntry(kernelInput.PreviousOutpoint)
	if entry == nil {
		return nil, errors.Errorf("kernel input %s:%d not found in the "+
			"utxo view", kernelInput.PreviousOutpoint.TxID,
			kernelInput.PreviousOutpoint.Index)
	}

	fromNode := prevNode.Ancestor(entry.BlockHeight())
	if fromNode == nil {
		return nil, errors.Errorf("kernel input %s:%d originates above the "+
			"previous block", kernelInput.PreviousOutpoint.TxID,
			kernelInput.PreviousOutpoint.Index)
	}

	hash, ok := k.CheckStakeKernelHash(bits, prevNode, fromNode,
		entry.Amount(), entry.BlockTime(), &kernelInput.PreviousOutpoint,
		txTime, false)
	if !ok {
		return nil, errors.Errorf("kernel check failed for coinstake %s",
			tx.TxID())
	}
	return hash, nil
}

// CheckCoinStakeTimestamp reports whether a coinstake transaction time is
// valid for its block: the two must be identical.
func CheckCoinStakeTimestamp(blockTime, txTime int64) bool {
	return blockTime == txTime
}
