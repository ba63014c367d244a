// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainconfig

import (
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/xepnet/xepd/domain/consensus/model"
	"github.com/xepnet/xepd/util/difficulty"
)

// RetargetPolicy selects the difficulty-adjustment algorithm a network runs.
// The policy is a network parameter: every block of a network retargets with
// the same policy.
type RetargetPolicy int

const (
	// RetargetLegacy is the interval-based linear retarget.
	RetargetLegacy RetargetPolicy = iota

	// RetargetWTEMA is the weighted target exponential moving average.
	RetargetWTEMA

	// RetargetASERT is the absolutely scheduled exponentially rising
	// target with a rolling-average reference.
	RetargetASERT
)

// Params defines a network by its consensus parameters. These parameters may
// be used by applications to differentiate networks as well as addresses and
// keys for one network from those intended for use on another network.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// GenesisHeader is the first block header of the chain.
	GenesisHeader *model.BlockHeader

	// GenesisHash is the block identifier of GenesisHeader.
	GenesisHash *chainhash.Hash

	// GenesisMerkleRoot commits to the premine transactions of the
	// genesis block.
	GenesisMerkleRoot *chainhash.Hash

	// PowLimit is the highest (easiest) acceptable target per algorithm
	// track, and PowLimitBits its compact encoding.
	PowLimit     [model.AlgoCount]*big.Int
	PowLimitBits [model.AlgoCount]uint32

	// PowTargetTimespan is the retarget smoothing window in seconds.
	PowTargetTimespan int64

	// PowTargetSpacing is the proof-of-stake block spacing in seconds. It
	// must be divisible by StakeTimestampMask+1 or stake blocks can never
	// land exactly on schedule.
	PowTargetSpacing int64

	// PowSHA256TargetSpacing is the proof-of-work block spacing in
	// seconds. The two tracks emit independently.
	PowSHA256TargetSpacing int64

	// RetargetAlgorithm selects the difficulty-adjustment policy.
	RetargetAlgorithm RetargetPolicy

	// ASERTStartHeight anchors the ASERT schedule. The reference block for
	// each track is the earliest block at or above this height.
	ASERTStartHeight uint64

	// AllowMinDifficultyBlocks relaxes difficulty after an out-of-schedule
	// timestamp gap of more than twice the target spacing.
	AllowMinDifficultyBlocks bool

	// NoRetargeting freezes difficulty at the previous block's bits.
	NoRetargeting bool

	// StakeTimestampMask forces stake timestamps onto a coarse time-slot
	// grid: a valid timestamp t satisfies t&StakeTimestampMask == 0.
	StakeTimestampMask uint32

	// StakeMinAge is the minimum age in seconds before an output can
	// stake, StakeMaxAge the age past which coin-age stops accruing.
	StakeMinAge int64
	StakeMaxAge int64

	// StakeMinDepth is the minimum confirmation depth before an output
	// can stake.
	StakeMinDepth uint64

	// ModifierInterval is the time in seconds to elapse before a new
	// stake modifier is computed.
	ModifierInterval int64

	// MaxFutureBlockTime is the largest tolerated clock drift in seconds
	// for candidate stake timestamps.
	MaxFutureBlockTime int64

	// RelaxFutureDrift disables the future-drift precondition; only the
	// regression test network sets it.
	RelaxFutureDrift bool

	// StakeModifierCheckpoints maps heights to hardened stake modifier
	// checksums.
	StakeModifierCheckpoints map[uint64]uint32
}

// DifficultyAdjustmentInterval returns the legacy retarget interval in
// blocks.
func (p *Params) DifficultyAdjustmentInterval() uint64 {
	return uint64(p.PowTargetTimespan / p.PowTargetSpacing)
}

// TargetSpacing returns the ideal block spacing of the given proof type in
// seconds.
func (p *Params) TargetSpacing(proofOfStake bool) int64 {
	if proofOfStake {
		return p.PowTargetSpacing
	}
	return p.PowSHA256TargetSpacing
}

// PowLimitForAlgo returns the target ceiling for the given algorithm track.
// An unknown track maps to the SHA256 ceiling for proof-of-work contexts and
// to the stake ceiling for proof-of-stake contexts.
func (p *Params) PowLimitForAlgo(algo model.AlgoType, proofOfStake bool) *big.Int {
	if algo == model.AlgoUnknown {
		if proofOfStake {
			return p.PowLimit[model.AlgoPoS]
		}
		return p.PowLimit[model.AlgoPoWSHA256]
	}
	return p.PowLimit[algo]
}

// PowLimitBitsForAlgo is the compact form of PowLimitForAlgo.
func (p *Params) PowLimitBitsForAlgo(algo model.AlgoType, proofOfStake bool) uint32 {
	if algo == model.AlgoUnknown {
		if proofOfStake {
			return p.PowLimitBits[model.AlgoPoS]
		}
		return p.PowLimitBits[model.AlgoPoWSHA256]
	}
	return p.PowLimitBits[algo]
}

func powLimits(posBits, powBits uint32) ([model.AlgoCount]*big.Int, [model.AlgoCount]uint32) {
	var limits [model.AlgoCount]*big.Int
	var bits [model.AlgoCount]uint32
	limits[model.AlgoPoS] = difficulty.CompactToBig(posBits)
	limits[model.AlgoPoWSHA256] = difficulty.CompactToBig(powBits)
	bits[model.AlgoPoS] = posBits
	bits[model.AlgoPoWSHA256] = powBits
	return limits, bits
}

var (
	mainnetPowLimit, mainnetPowLimitBits   = powLimits(0x1e00ffff, 0x1e00ffff)
	testnetPowLimit, testnetPowLimitBits   = powLimits(0x1e00ffff, 0x1e00ffff)
	signetPowLimit, signetPowLimitBits     = powLimits(0x1e00ffff, 0x1e0377ae)
	regressionPowLimit, regressionPowLimitBits = powLimits(0x207fffff, 0x207fffff)
)

// MainnetParams defines the network parameters for the main network.
var MainnetParams = Params{
	Name: "mainnet",

	GenesisHeader:     &genesisHeader,
	GenesisHash:       &genesisHash,
	GenesisMerkleRoot: &genesisMerkleRoot,

	PowLimit:     mainnetPowLimit,
	PowLimitBits: mainnetPowLimitBits,

	PowTargetTimespan:      12 * 60 * 60,
	PowTargetSpacing:       80,
	PowSHA256TargetSpacing: 10 * 60,
	RetargetAlgorithm:      RetargetASERT,
	ASERTStartHeight:       0,

	AllowMinDifficultyBlocks: true,
	NoRetargeting:            false,

	StakeTimestampMask: 0xf,
	StakeMinAge:        12 * 60 * 60,
	StakeMaxAge:        30 * 24 * 60 * 60,
	StakeMinDepth:      600,
	ModifierInterval:   60,
	MaxFutureBlockTime: 2 * 60 * 60,

	StakeModifierCheckpoints: map[uint64]uint32{},
}

// TestnetParams defines the network parameters for the test network.
var TestnetParams = Params{
	Name: "testnet",

	GenesisHeader:     &genesisHeader,
	GenesisHash:       &genesisHash,
	GenesisMerkleRoot: &genesisMerkleRoot,

	PowLimit:     testnetPowLimit,
	PowLimitBits: testnetPowLimitBits,

	PowTargetTimespan:      12 * 60 * 60,
	PowTargetSpacing:       80,
	PowSHA256TargetSpacing: 10 * 60,
	RetargetAlgorithm:      RetargetASERT,
	ASERTStartHeight:       0,

	AllowMinDifficultyBlocks: true,
	NoRetargeting:            false,

	StakeTimestampMask: 0xf,
	StakeMinAge:        2 * 60 * 60,
	StakeMaxAge:        30 * 24 * 60 * 60,
	StakeMinDepth:      100,
	ModifierInterval:   60,
	MaxFutureBlockTime: 2 * 60 * 60,

	StakeModifierCheckpoints: map[uint64]uint32{},
}

// SignetParams defines the network parameters for the signet network.
var SignetParams = Params{
	Name: "signet",

	GenesisHeader:     &signetGenesisHeader,
	GenesisHash:       &signetGenesisHash,
	GenesisMerkleRoot: &signetGenesisMerkleRoot,

	PowLimit:     signetPowLimit,
	PowLimitBits: signetPowLimitBits,

	PowTargetTimespan:      12 * 60 * 60,
	PowTargetSpacing:       80,
	PowSHA256TargetSpacing: 10 * 60,
	RetargetAlgorithm:      RetargetASERT,
	ASERTStartHeight:       0,

	AllowMinDifficultyBlocks: true,
	NoRetargeting:            false,

	StakeTimestampMask: 0xf,
	StakeMinAge:        12 * 60 * 60,
	StakeMaxAge:        30 * 24 * 60 * 60,
	StakeMinDepth:      600,
	ModifierInterval:   60,
	MaxFutureBlockTime: 2 * 60 * 60,

	StakeModifierCheckpoints: map[uint64]uint32{},
}

// RegressionNetParams defines the network parameters for the regression test
// network.
var RegressionNetParams = Params{
	Name: "regtest",

	GenesisHeader:     &regressionGenesisHeader,
	GenesisHash:       &regressionGenesisHash,
	GenesisMerkleRoot: &regressionGenesisMerkleRoot,

	PowLimit:     regressionPowLimit,
	PowLimitBits: regressionPowLimitBits,

	PowTargetTimespan:      1 * 60 * 60,
	PowTargetSpacing:       80,
	PowSHA256TargetSpacing: 10 * 60,
	RetargetAlgorithm:      RetargetASERT,
	ASERTStartHeight:       0,

	AllowMinDifficultyBlocks: true,
	NoRetargeting:            true,

	StakeTimestampMask: 0x3,
	StakeMinAge:        1 * 60,
	StakeMaxAge:        30 * 24 * 60 * 60,
	StakeMinDepth:      0,
	ModifierInterval:   60,
	MaxFutureBlockTime: 2 * 60 * 60,
	RelaxFutureDrift:   true,

	StakeModifierCheckpoints: map[uint64]uint32{},
}
