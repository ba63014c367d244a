// Package blockindexstore persists block index entries in leveldb so the
// in-memory chain index can be rebuilt across restarts.
package blockindexstore

import (
	"bytes"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"

	"github.com/xepnet/xepd/domain/consensus/blockindex"
	"github.com/xepnet/xepd/domain/consensus/model"
	"github.com/xepnet/xepd/domain/consensus/utils/serialization"
	"github.com/xepnet/xepd/infrastructure/db/database/ldb"
	"github.com/xepnet/xepd/infrastructure/logger"
)

var log = logger.RegisterSubSystem("BIDX")

var bucket = []byte("block-index/")

// blockIndexStore represents a store of block index entries.
type blockIndexStore struct {
	db *ldb.LevelDB
}

// New instantiates a new BlockIndexStore over the given database.
func New(db *ldb.LevelDB) model.BlockIndexStore {
	return &blockIndexStore{db: db}
}

func makeKey(hash *chainhash.Hash) []byte {
	key := make([]byte, 0, len(bucket)+chainhash.HashSize)
	key = append(key, bucket...)
	return append(key, hash[:]...)
}

func serializeEntry(entry *model.BlockIndexEntry) ([]byte, error) {
	var buf bytes.Buffer
	err := serialization.WriteElements(&buf,
		entry.Hash,
		entry.Header.Version,
		entry.Header.PrevBlock,
		entry.Header.MerkleRoot,
		entry.Header.Timestamp,
		entry.Header.Bits,
		entry.Header.Nonce,
		entry.Height,
		entry.HeightPoS,
		entry.HeightPoW,
		entry.StakeModifier,
		entry.StakeModifierV2,
		entry.GeneratedStakeModifier,
		entry.StakeEntropyBit,
		entry.StakeModifierChecksum,
		entry.HashProofOfStake,
	)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deserializeEntry(data []byte) (*model.BlockIndexEntry, error) {
	entry := &model.BlockIndexEntry{}
	err := serialization.ReadElements(bytes.NewReader(data),
		&entry.Hash,
		&entry.Header.Version,
		&entry.Header.PrevBlock,
		&entry.Header.MerkleRoot,
		&entry.Header.Timestamp,
		&entry.Header.Bits,
		&entry.Header.Nonce,
		&entry.Height,
		&entry.HeightPoS,
		&entry.HeightPoW,
		&entry.StakeModifier,
		&entry.StakeModifierV2,
		&entry.GeneratedStakeModifier,
		&entry.StakeEntropyBit,
		&entry.StakeModifierChecksum,
		&entry.HashProofOfStake,
	)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Put stores the given entry, overwriting any previous entry for the same
// block hash.
func (bis *blockIndexStore) Put(entry *model.BlockIndexEntry) error {
	data, err := serializeEntry(entry)
	if err != nil {
		return err
	}
	return bis.db.Put(makeKey(&entry.Hash), data)
}

// Get retrieves the entry for the given block hash.
func (bis *blockIndexStore) Get(hash *chainhash.Hash) (*model.BlockIndexEntry, error) {
	data, err := bis.db.Get(makeKey(hash))
	if err != nil {
		return nil, err
	}
	return deserializeEntry(data)
}

// Has returns whether an entry exists for the given block hash.
func (bis *blockIndexStore) Has(hash *chainhash.Hash) (bool, error) {
	return bis.db.Has(makeKey(hash))
}

// ForEach calls fn for every stored entry. The iteration order is by block
// hash, not by height.
func (bis *blockIndexStore) ForEach(fn func(entry *model.BlockIndexEntry) error) error {
	return bis.db.ForEachWithPrefix(bucket, func(key, value []byte) error {
		entry, err := deserializeEntry(value)
		if err != nil {
			return err
		}
		return fn(entry)
	})
}

// Close closes the underlying database.
func (bis *blockIndexStore) Close() error {
	return bis.db.Close()
}

// LoadIndex rebuilds the in-memory chain index from the store. Entries are
// replayed in height order so every block's parent is linked before the
// block itself.
func LoadIndex(store model.BlockIndexStore) (*blockindex.Index, error) {
	onEnd := logger.LogAndMeasureExecutionTime(log, "LoadIndex")
	defer onEnd()

	var entries []*model.BlockIndexEntry
	err := store.ForEach(func(entry *model.BlockIndexEntry) error {
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Height < entries[j].Height
	})

	index := blockindex.NewIndex()
	for _, entry := range entries {
		_, err := index.AddEntry(entry)
		if err != nil {
			return nil, errors.Wrapf(err, "replaying block %s at height %d",
				entry.Hash, entry.Height)
		}
	}
	return index, nil
}
