package stakekernel

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/xepnet/xepd/domain/chainconfig"
	"github.com/xepnet/xepd/domain/consensus/model"
)

func TestComputeNextStakeModifier(t *testing.T) {
	params := &chainconfig.MainnetParams
	kernel := New(params)
	_, nodes := buildStakeChain(t, params, 64)
	prev := nodes[len(nodes)-1]

	// The 80-second spacing crosses the 60-second modifier interval, so a
	// block extending the tip generates a fresh modifier.
	header := &model.BlockHeader{
		Version:   versionPoS,
		PrevBlock: *prev.Hash(),
		Timestamp: uint32(prev.BlockTime() + int64(params.PowTargetSpacing)),
		Bits:      params.PowLimitBits[model.AlgoPoS],
	}
	modifier, generated, err := kernel.ComputeNextStakeModifier(prev, header)
	if err != nil {
		t.Fatalf("ComputeNextStakeModifier: %v", err)
	}
	if !generated {
		t.Fatal("modifier not generated across an interval boundary")
	}

	// Deterministic: recomputing over the same history yields the same
	// modifier.
	again, generatedAgain, err := kernel.ComputeNextStakeModifier(prev, header)
	if err != nil {
		t.Fatalf("ComputeNextStakeModifier (second run): %v", err)
	}
	if !generatedAgain || again != modifier {
		t.Errorf("modifier not deterministic: %016x vs %016x", modifier, again)
	}
}

func TestComputeNextStakeModifierGenesis(t *testing.T) {
	kernel := New(&chainconfig.MainnetParams)
	modifier, generated, err := kernel.ComputeNextStakeModifier(nil,
		&model.BlockHeader{Timestamp: 1609246800})
	if err != nil {
		t.Fatalf("ComputeNextStakeModifier: %v", err)
	}
	if modifier != 0 || !generated {
		t.Errorf("genesis modifier: got (%d, %v), want (0, true)", modifier,
			generated)
	}
}

func TestComputeNextStakeModifierSameInterval(t *testing.T) {
	params := &chainconfig.MainnetParams
	kernel := New(params)
	_, nodes := buildStakeChain(t, params, 4)
	prev := nodes[len(nodes)-1]

	// Pin the previous generated modifier into the same interval as the
	// tip so no regeneration is due.
	nodes[0].SetStakeModifier(0, false)
	prev.SetStakeModifier(0x0123456789abcdef, true)

	header := &model.BlockHeader{
		Version:   versionPoS,
		PrevBlock: *prev.Hash(),
		Timestamp: uint32(prev.BlockTime() + 1),
	}
	modifier, generated, err := kernel.ComputeNextStakeModifier(prev, header)
	if err != nil {
		t.Fatalf("ComputeNextStakeModifier: %v", err)
	}
	if generated {
		t.Error("modifier regenerated within the same interval")
	}
	if modifier != 0x0123456789abcdef {
		t.Errorf("carried modifier: got %016x, want %016x", modifier,
			uint64(0x0123456789abcdef))
	}
}

func TestComputeStakeModifierV2(t *testing.T) {
	params := &chainconfig.MainnetParams
	_, nodes := buildStakeChain(t, params, 4)
	prev := nodes[len(nodes)-1]
	prevModifier := chainhash.Hash{0x11, 0x22}
	prev.SetStakeModifierV2(&prevModifier)

	kernelHash := chainhash.Hash{0x42}
	first := ComputeStakeModifierV2(prev, &kernelHash)
	second := ComputeStakeModifierV2(prev, &kernelHash)
	if first != second {
		t.Error("V2 modifier not deterministic")
	}
	if first == (chainhash.Hash{}) {
		t.Error("V2 modifier is zero for a non-genesis block")
	}

	other := ComputeStakeModifierV2(prev, &chainhash.Hash{0x43})
	if other == first {
		t.Error("V2 modifier ignores the kernel")
	}

	if ComputeStakeModifierV2(nil, &kernelHash) != (chainhash.Hash{}) {
		t.Error("genesis V2 modifier is not zero")
	}
}

func TestComputeStakeModifierV3(t *testing.T) {
	params := &chainconfig.MainnetParams
	_, nodes := buildStakeChain(t, params, 4)
	prev := nodes[len(nodes)-1]
	prev.SetStakeModifier(0xfeedface, true)

	kernelHash := chainhash.Hash{0x42}
	first := ComputeStakeModifierV3(prev, &kernelHash)
	if ComputeStakeModifierV3(prev, &kernelHash) != first {
		t.Error("V3 modifier not deterministic")
	}
	if ComputeStakeModifierV3(prev, &chainhash.Hash{0x43}) == first {
		t.Error("V3 modifier ignores the kernel")
	}
	if ComputeStakeModifierV3(nil, &kernelHash) != 0 {
		t.Error("genesis V3 modifier is not zero")
	}
}

func TestStakeModifierChecksum(t *testing.T) {
	params := &chainconfig.MainnetParams
	_, nodes := buildStakeChain(t, params, 3)

	nodes[0].SetStakeModifierChecksum(StakeModifierChecksum(nodes[0]))
	first := StakeModifierChecksum(nodes[1])
	if StakeModifierChecksum(nodes[1]) != first {
		t.Error("checksum not deterministic")
	}

	// The checksum chains: changing the parent's checksum changes the
	// child's.
	nodes[0].SetStakeModifierChecksum(first + 1)
	if StakeModifierChecksum(nodes[1]) == first {
		t.Error("checksum does not bind the parent checksum")
	}
}

func TestCheckStakeModifierCheckpoints(t *testing.T) {
	params := chainconfig.MainnetParams
	params.StakeModifierCheckpoints = map[uint64]uint32{10: 0xdeadbeef}
	kernel := New(&params)

	if !kernel.CheckStakeModifierCheckpoints(10, 0xdeadbeef) {
		t.Error("matching checkpoint rejected")
	}
	if kernel.CheckStakeModifierCheckpoints(10, 0xcafebabe) {
		t.Error("mismatched checkpoint accepted")
	}
	if !kernel.CheckStakeModifierCheckpoints(11, 0x12345678) {
		t.Error("height without checkpoint rejected")
	}
}
