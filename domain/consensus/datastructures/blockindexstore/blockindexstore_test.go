package blockindexstore_test

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/xepnet/xepd/domain/consensus/blockindex"
	"github.com/xepnet/xepd/domain/consensus/datastructures/blockindexstore"
	"github.com/xepnet/xepd/domain/consensus/model"
	"github.com/xepnet/xepd/infrastructure/db/database/ldb"
)

func prepareStoreForTest(t *testing.T) model.BlockIndexStore {
	t.Helper()
	db, err := ldb.NewLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("NewLevelDB: %v", err)
	}
	store := blockindexstore.New(db)
	t.Cleanup(func() {
		err := store.Close()
		if err != nil {
			t.Fatalf("Close: %v", err)
		}
	})
	return store
}

func buildIndexForTest(t *testing.T, length int) *blockindex.Index {
	t.Helper()
	index := blockindex.NewIndex()

	var prevHash chainhash.Hash
	baseTime := uint32(1609246800)
	for i := 0; i < length; i++ {
		version := uint32(1)
		if i > 0 {
			if i%2 == 0 {
				version = 2 << 29
			} else {
				version = 1 << 29
			}
		}
		node, err := index.AddHeader(&model.BlockHeader{
			Version:   version,
			PrevBlock: prevHash,
			Timestamp: baseTime + uint32(i)*80,
			Bits:      0x1e00ffff,
			Nonce:     uint32(i + 1),
		})
		if err != nil {
			t.Fatalf("AddHeader %d: %v", i, err)
		}
		node.SetStakeModifier(uint64(i)*0x1234, i%3 == 0)
		node.SetStakeModifierChecksum(uint32(i) * 7)
		prevHash = *node.Hash()
	}
	return index
}

func TestStoreRoundTrip(t *testing.T) {
	store := prepareStoreForTest(t)
	index := buildIndexForTest(t, 4)
	tip := index.Tip()

	entry := tip.Entry()
	if err := store.Put(entry); err != nil {
		t.Fatalf("Put: %v", err)
	}

	exists, err := store.Has(tip.Hash())
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if !exists {
		t.Fatal("Has: stored entry reported missing")
	}

	got, err := store.Get(tip.Hash())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Hash != entry.Hash {
		t.Errorf("hash: got %s, want %s", got.Hash, entry.Hash)
	}
	if got.Header != entry.Header {
		t.Errorf("header: got %+v, want %+v", got.Header, entry.Header)
	}
	if got.Height != entry.Height ||
		got.HeightPoS != entry.HeightPoS ||
		got.HeightPoW != entry.HeightPoW {
		t.Errorf("heights: got %+v, want %+v", got, entry)
	}
	if got.StakeModifier != entry.StakeModifier ||
		got.GeneratedStakeModifier != entry.GeneratedStakeModifier ||
		got.StakeEntropyBit != entry.StakeEntropyBit ||
		got.StakeModifierChecksum != entry.StakeModifierChecksum {
		t.Errorf("stake fields: got %+v, want %+v", got, entry)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := prepareStoreForTest(t)

	var hash chainhash.Hash
	hash[0] = 1
	if _, err := store.Get(&hash); err == nil {
		t.Error("Get: expected an error for a missing entry")
	}

	exists, err := store.Has(&hash)
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if exists {
		t.Error("Has: missing entry reported present")
	}
}

func TestStoreForEach(t *testing.T) {
	store := prepareStoreForTest(t)
	index := buildIndexForTest(t, 5)

	for node := index.Tip(); node != nil; node = node.Parent() {
		if err := store.Put(node.Entry()); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	seen := make(map[chainhash.Hash]uint64)
	err := store.ForEach(func(entry *model.BlockIndexEntry) error {
		seen[entry.Hash] = entry.Height
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}

	if len(seen) != 5 {
		t.Fatalf("ForEach: got %d entries, want 5", len(seen))
	}
	for node := index.Tip(); node != nil; node = node.Parent() {
		height, ok := seen[*node.Hash()]
		if !ok {
			t.Errorf("ForEach: block %s missing", node.Hash())
			continue
		}
		if height != node.Height() {
			t.Errorf("ForEach: block %s height %d, want %d",
				node.Hash(), height, node.Height())
		}
	}
}

func TestLoadIndex(t *testing.T) {
	store := prepareStoreForTest(t)
	index := buildIndexForTest(t, 8)

	for node := index.Tip(); node != nil; node = node.Parent() {
		if err := store.Put(node.Entry()); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	loaded, err := blockindexstore.LoadIndex(store)
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}

	if *loaded.Tip().Hash() != *index.Tip().Hash() {
		t.Fatalf("tip: got %s, want %s", loaded.Tip().Hash(), index.Tip().Hash())
	}

	for node := index.Tip(); node != nil; node = node.Parent() {
		got := loaded.LookupNode(node.Hash())
		if got == nil {
			t.Fatalf("block %s missing after reload", node.Hash())
		}
		if got.Height() != node.Height() ||
			got.StakeModifier() != node.StakeModifier() ||
			got.GeneratedStakeModifier() != node.GeneratedStakeModifier() ||
			got.StakeModifierChecksum() != node.StakeModifierChecksum() ||
			got.AlgoHeight(model.AlgoPoS) != node.AlgoHeight(model.AlgoPoS) ||
			got.AlgoHeight(model.AlgoPoWSHA256) != node.AlgoHeight(model.AlgoPoWSHA256) {
			t.Errorf("block %s state differs after reload", node.Hash())
		}
	}
}
