package blockindex

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/xepnet/xepd/domain/consensus/model"
)

const (
	versionPoS = 1 << 29
	versionPoW = 2 << 29
)

func buildChain(t *testing.T, idx *Index, versions []uint32) []*Node {
	t.Helper()
	nodes := make([]*Node, 0, len(versions))
	prev := chainhash.Hash{}
	for i, version := range versions {
		header := &model.BlockHeader{
			Version:   version,
			PrevBlock: prev,
			Timestamp: uint32(1609246800 + i*80),
			Bits:      0x1e00ffff,
			Nonce:     uint32(i + 1),
		}
		node, err := idx.AddHeader(header)
		if err != nil {
			t.Fatalf("AddHeader at height %d: %v", i, err)
		}
		nodes = append(nodes, node)
		prev = *node.Hash()
	}
	return nodes
}

func TestAddHeaderLinksChain(t *testing.T) {
	idx := NewIndex()
	nodes := buildChain(t, idx, []uint32{versionPoW, versionPoS, versionPoW, versionPoS})

	for i, node := range nodes {
		if node.Height() != uint64(i) {
			t.Errorf("node %d: height %d, want %d", i, node.Height(), i)
		}
		if i == 0 {
			if node.Parent() != nil {
				t.Errorf("genesis node has parent")
			}
			continue
		}
		if node.Parent() != nodes[i-1] {
			t.Errorf("node %d: parent mismatch", i)
		}
	}

	if got := idx.LookupNode(nodes[2].Hash()); got != nodes[2] {
		t.Errorf("LookupNode returned wrong node")
	}
	if idx.Tip() != nodes[3] {
		t.Errorf("Tip is not the last appended node")
	}
}

func TestAddHeaderUnknownParent(t *testing.T) {
	idx := NewIndex()
	orphan := &model.BlockHeader{
		Version:   versionPoW,
		PrevBlock: chainhash.Hash{0x01},
		Timestamp: 1609246800,
		Bits:      0x1e00ffff,
		Nonce:     1,
	}
	if _, err := idx.AddHeader(orphan); err == nil {
		t.Fatal("expected error for unknown parent")
	}
}

func TestAlgoHeights(t *testing.T) {
	idx := NewIndex()
	nodes := buildChain(t, idx, []uint32{
		versionPoW, versionPoS, versionPoS, versionPoW, versionPoS,
	})

	tip := nodes[len(nodes)-1]
	if got := tip.AlgoHeight(model.AlgoPoS); got != 3 {
		t.Errorf("PoS height: got %d, want 3", got)
	}
	if got := tip.AlgoHeight(model.AlgoPoWSHA256); got != 2 {
		t.Errorf("PoW height: got %d, want 2", got)
	}
}

func TestAncestor(t *testing.T) {
	idx := NewIndex()
	nodes := buildChain(t, idx, []uint32{
		versionPoW, versionPoS, versionPoW, versionPoS, versionPoW,
	})

	tip := nodes[len(nodes)-1]
	for height := uint64(0); height < uint64(len(nodes)); height++ {
		if got := tip.Ancestor(height); got != nodes[height] {
			t.Errorf("Ancestor(%d): wrong node", height)
		}
	}
	if got := tip.Ancestor(tip.Height() + 1); got != nil {
		t.Errorf("Ancestor above tip height: got %v, want nil", got)
	}
}

func TestMedianTimePast(t *testing.T) {
	idx := NewIndex()
	// 13 blocks so the tip's median window excludes the first two.
	versions := make([]uint32, 13)
	for i := range versions {
		versions[i] = versionPoW
	}
	nodes := buildChain(t, idx, versions)

	tip := nodes[len(nodes)-1]
	// Timestamps are 1609246800 + 80*i for i in [2, 12]; the median is the
	// entry at i=7.
	want := int64(1609246800 + 80*7)
	if got := tip.MedianTimePast(); got != want {
		t.Errorf("MedianTimePast: got %d, want %d", got, want)
	}

	// With fewer than the full window the median covers what exists.
	if got := nodes[2].MedianTimePast(); got != int64(1609246800+80) {
		t.Errorf("short window median: got %d, want %d", got, 1609246800+80)
	}
}

func TestLastBlockForProofType(t *testing.T) {
	idx := NewIndex()
	nodes := buildChain(t, idx, []uint32{
		versionPoW, versionPoW, versionPoS, versionPoW,
	})

	tip := nodes[len(nodes)-1]
	if got := LastBlockForProofType(tip, false); got != tip {
		t.Errorf("latest PoW block: got height %d, want %d", got.Height(), tip.Height())
	}
	if got := LastBlockForProofType(tip, true); got != nodes[2] {
		t.Errorf("latest PoS block: got height %d, want 2", got.Height())
	}

	// A chain with no stake blocks terminates the walk on genesis.
	idx2 := NewIndex()
	nodes2 := buildChain(t, idx2, []uint32{versionPoW, versionPoW, versionPoW})
	if got := LastBlockForProofType(nodes2[2], true); got != nodes2[0] {
		t.Errorf("missing proof type: got height %d, want genesis", got.Height())
	}
}

func TestLastBlockForAlgo(t *testing.T) {
	idx := NewIndex()
	nodes := buildChain(t, idx, []uint32{
		versionPoW, versionPoS, versionPoW, versionPoS,
	})

	tip := nodes[len(nodes)-1]
	if got := LastBlockForAlgo(tip, model.AlgoPoWSHA256); got != nodes[2] {
		t.Errorf("latest PoW-track block: got height %d, want 2", got.Height())
	}
	if got := LastBlockForAlgo(tip, model.AlgoPoS); got != tip {
		t.Errorf("latest PoS-track block: got height %d, want tip", got.Height())
	}
}

func TestEntryRoundTrip(t *testing.T) {
	idx := NewIndex()
	nodes := buildChain(t, idx, []uint32{versionPoW, versionPoS})

	node := nodes[1]
	node.SetStakeModifier(0xdeadbeefcafe, true)
	modV2 := chainhash.Hash{0x42}
	node.SetStakeModifierV2(&modV2)
	node.SetStakeModifierChecksum(0x1234)
	proof := chainhash.Hash{0x07}
	node.SetHashProofOfStake(&proof)

	entry := node.Entry()
	if entry.Hash != *node.Hash() {
		t.Errorf("entry hash mismatch")
	}
	if entry.Header.PrevBlock != *nodes[0].Hash() {
		t.Errorf("entry prev block mismatch")
	}

	restored := NewIndex()
	if _, err := restored.AddHeader(&model.BlockHeader{
		Version:   versionPoW,
		PrevBlock: chainhash.Hash{},
		Timestamp: 1609246800,
		Bits:      0x1e00ffff,
		Nonce:     1,
	}); err != nil {
		t.Fatalf("restoring genesis: %v", err)
	}
	restoredNode, err := restored.AddEntry(entry)
	if err != nil {
		t.Fatalf("AddEntry: %v", err)
	}
	if restoredNode.StakeModifier() != node.StakeModifier() {
		t.Errorf("restored modifier mismatch")
	}
	if *restoredNode.StakeModifierV2() != modV2 {
		t.Errorf("restored modifier v2 mismatch")
	}
	if !restoredNode.GeneratedStakeModifier() {
		t.Errorf("restored generated flag mismatch")
	}
	if *restoredNode.HashProofOfStake() != proof {
		t.Errorf("restored proof hash mismatch")
	}
}
