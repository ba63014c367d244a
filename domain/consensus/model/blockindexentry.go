package model

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// BlockIndexEntry is the persistable view of a chain index node: everything
// a node must remember about an accepted header to validate its successors,
// including the proof-of-stake bookkeeping that is recomputed at most once
// and then pinned for the block's lifetime.
type BlockIndexEntry struct {
	Hash   chainhash.Hash
	Header BlockHeader
	Height uint64

	// Per-algorithm cumulative block counts up to and including this
	// block. The ASERT schedule walks these instead of re-walking the
	// ancestor chain.
	HeightPoS uint64
	HeightPoW uint64

	// StakeModifier is the 64-bit accumulated entropy used by the legacy
	// kernel protocol; StakeModifierV2 is its 256-bit successor.
	StakeModifier          uint64
	StakeModifierV2        chainhash.Hash
	GeneratedStakeModifier bool
	StakeEntropyBit        uint8
	StakeModifierChecksum  uint32

	// HashProofOfStake is the kernel hash that satisfied the stake target
	// for proof-of-stake blocks, zero otherwise.
	HashProofOfStake chainhash.Hash
}

// BlockIndexStore persists block index entries across restarts.
type BlockIndexStore interface {
	Put(entry *BlockIndexEntry) error
	Get(hash *chainhash.Hash) (*BlockIndexEntry, error)
	Has(hash *chainhash.Hash) (bool, error)
	ForEach(fn func(entry *BlockIndexEntry) error) error
	Close() error
}
