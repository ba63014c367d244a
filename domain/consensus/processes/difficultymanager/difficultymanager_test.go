package difficultymanager_test

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/xepnet/xepd/domain/chainconfig"
	"github.com/xepnet/xepd/domain/consensus/blockindex"
	"github.com/xepnet/xepd/domain/consensus/model"
	"github.com/xepnet/xepd/domain/consensus/processes/difficultymanager"
)

const (
	versionPreFork = 1
	versionPoS     = 1 << 29
	versionPoW     = 2 << 29

	genesisTime = 1609246800
)

// testChain builds header chains for retarget scenarios.
type testChain struct {
	t     *testing.T
	idx   *blockindex.Index
	tip   *blockindex.Node
	nonce uint32
}

func newTestChain(t *testing.T) *testChain {
	return &testChain{t: t, idx: blockindex.NewIndex()}
}

func (c *testChain) add(version uint32, timestamp int64, bits uint32) *blockindex.Node {
	c.t.Helper()
	prev := chainhash.Hash{}
	if c.tip != nil {
		prev = *c.tip.Hash()
	}
	c.nonce++
	node, err := c.idx.AddHeader(&model.BlockHeader{
		Version:   version,
		PrevBlock: prev,
		Timestamp: uint32(timestamp),
		Bits:      bits,
		Nonce:     c.nonce,
	})
	if err != nil {
		c.t.Fatalf("AddHeader: %v", err)
	}
	c.tip = node
	return node
}

func header(version uint32, timestamp int64) *model.BlockHeader {
	return &model.BlockHeader{Version: version, Timestamp: uint32(timestamp)}
}

func TestRequiredDifficultyGenesis(t *testing.T) {
	params := &chainconfig.MainnetParams
	dm := difficultymanager.New(params)

	got := dm.RequiredDifficulty(nil, header(versionPoW, genesisTime))
	if want := params.PowLimitBits[model.AlgoPoWSHA256]; got != want {
		t.Errorf("genesis difficulty: got %#08x, want %#08x", got, want)
	}
}

func TestRequiredDifficultyNoRetargeting(t *testing.T) {
	params := &chainconfig.RegressionNetParams
	dm := difficultymanager.New(params)
	limitBits := params.PowLimitBits[model.AlgoPoWSHA256]

	chain := newTestChain(t)
	chain.add(versionPreFork, genesisTime, limitBits)
	for i := 1; i <= 4; i++ {
		chain.add(versionPoW, genesisTime+int64(i)*600, limitBits)
	}

	got := dm.RequiredDifficulty(chain.tip, header(versionPoW, genesisTime+5*600))
	if got != limitBits {
		t.Errorf("frozen difficulty: got %#08x, want %#08x", got, limitBits)
	}
}

// On an exactly on-schedule chain ASERT must reproduce the reference target
// with no drift.
func TestASERTSteadyState(t *testing.T) {
	params := &chainconfig.MainnetParams
	dm := difficultymanager.New(params)
	limitBits := params.PowLimitBits[model.AlgoPoS]
	spacing := params.PowTargetSpacing

	chain := newTestChain(t)
	chain.add(versionPreFork, genesisTime, params.PowLimitBits[model.AlgoPoWSHA256])
	for i := 1; i <= 20; i++ {
		chain.add(versionPoS, genesisTime+int64(i)*spacing, limitBits)
	}

	got := dm.RequiredDifficulty(chain.tip,
		header(versionPoS, genesisTime+21*spacing))
	if got != limitBits {
		t.Errorf("steady-state target drifted: got %#08x, want %#08x",
			got, limitBits)
	}
}

// Blocks arriving ahead of schedule must tighten the target below the
// ceiling, and recomputation over the same history must be stable.
func TestASERTAheadOfSchedule(t *testing.T) {
	params := &chainconfig.MainnetParams
	limitBits := params.PowLimitBits[model.AlgoPoS]

	chain := newTestChain(t)
	chain.add(versionPreFork, genesisTime, params.PowLimitBits[model.AlgoPoWSHA256])
	for i := 1; i <= 20; i++ {
		chain.add(versionPoS, genesisTime+int64(i)*64, limitBits)
	}

	next := header(versionPoS, genesisTime+21*64)
	first := difficultymanager.New(params).RequiredDifficulty(chain.tip, next)
	if first >= limitBits {
		t.Errorf("ahead-of-schedule target not tightened: got %#08x", first)
	}
	second := difficultymanager.New(params).RequiredDifficulty(chain.tip, next)
	if first != second {
		t.Errorf("target not deterministic: %#08x vs %#08x", first, second)
	}
}

// A stake block's retarget must be unaffected by interleaved work blocks of
// arbitrary difficulty, and vice versa.
func TestAlgorithmIsolation(t *testing.T) {
	params := &chainconfig.MainnetParams
	posLimitBits := params.PowLimitBits[model.AlgoPoS]
	powLimitBits := params.PowLimitBits[model.AlgoPoWSHA256]

	// Mixed chain: stake blocks every 64 seconds with work blocks of
	// arbitrary bits wedged between them.
	mixed := newTestChain(t)
	mixed.add(versionPreFork, genesisTime, powLimitBits)
	for i := 1; i <= 20; i++ {
		posTime := genesisTime + int64(i)*64
		mixed.add(versionPoS, posTime, posLimitBits)
		mixed.add(versionPoW, posTime+17, 0x1c0ffff0)
	}

	// Pure chain: only the stake blocks at the same timestamps.
	pure := newTestChain(t)
	pure.add(versionPreFork, genesisTime, powLimitBits)
	for i := 1; i <= 20; i++ {
		pure.add(versionPoS, genesisTime+int64(i)*64, posLimitBits)
	}

	next := header(versionPoS, genesisTime+21*64)
	mixedBits := difficultymanager.New(params).RequiredDifficulty(mixed.tip, next)
	pureBits := difficultymanager.New(params).RequiredDifficulty(pure.tip, next)
	if mixedBits != pureBits {
		t.Errorf("stake retarget depends on interleaved work blocks: "+
			"%#08x vs %#08x", mixedBits, pureBits)
	}
}

// A long quiet stretch on a track allows one minimum-difficulty block, and
// the block after it must resume from the last real target rather than
// compounding the relaxation.
func TestMinimumDifficultyRelaxation(t *testing.T) {
	params := &chainconfig.MainnetParams
	dm := difficultymanager.New(params)
	limitBits := params.PowLimitBits[model.AlgoPoS]
	spacing := params.PowTargetSpacing

	chain := newTestChain(t)
	chain.add(versionPreFork, genesisTime, params.PowLimitBits[model.AlgoPoWSHA256])
	tipTime := int64(genesisTime)
	for i := 1; i <= 12; i++ {
		tipTime = genesisTime + int64(i)*spacing
		chain.add(versionPoS, tipTime, limitBits)
	}

	// A candidate more than 30 minutes after the last stake block may use
	// the floor.
	gapTime := tipTime + 1840
	got := dm.RequiredDifficulty(chain.tip, header(versionPoS, gapTime))
	if got != limitBits-1 {
		t.Fatalf("out-of-schedule block: got %#08x, want %#08x",
			got, limitBits-1)
	}

	// Accept two floor blocks, with a work block wedged between them so
	// the walk-back must skip a foreign track too.
	chain.add(versionPoS, gapTime, limitBits-1)
	chain.add(versionPoW, gapTime+16, 0x1c0ffff0)
	chain.add(versionPoS, gapTime+32, limitBits-1)

	// The next on-schedule candidate walks back past the floor blocks and
	// the foreign-track block to the last real stake target.
	got = dm.RequiredDifficulty(chain.tip, header(versionPoS, gapTime+48))
	if got != limitBits {
		t.Errorf("post-relaxation block: got %#08x, want %#08x", got, limitBits)
	}
}

// The linear retarget clamps the measured timespan to four times the
// configured span in either direction and never exceeds the ceiling.
func TestLegacyClamping(t *testing.T) {
	params := chainconfig.MainnetParams
	params.RetargetAlgorithm = chainconfig.RetargetLegacy
	params.AllowMinDifficultyBlocks = false
	params.PowTargetTimespan = 3600
	limitBits := params.PowLimitBits[model.AlgoPoWSHA256]
	interval := int64(params.DifficultyAdjustmentInterval())

	buildBoundaryChain := func(bits uint32) *testChain {
		chain := newTestChain(t)
		chain.add(versionPreFork, genesisTime, bits)
		for i := int64(1); i < interval-1; i++ {
			chain.add(versionPoW, genesisTime+i*80, bits)
		}
		// A hundredfold timespan. Clamping caps the adjustment at 4x.
		chain.add(versionPoW, genesisTime+100*3600, bits)
		return chain
	}

	dm := difficultymanager.New(&params)
	next := header(versionPoW, genesisTime+100*3600+80)

	// From the ceiling the 4x step clamps back to the ceiling.
	chain := buildBoundaryChain(limitBits)
	if got := dm.RequiredDifficulty(chain.tip, next); got != limitBits {
		t.Errorf("clamped retarget above ceiling: got %#08x, want %#08x",
			got, limitBits)
	}

	// From a tighter target the step is exactly 4x.
	chain = buildBoundaryChain(0x1b00ffff)
	if got := dm.RequiredDifficulty(chain.tip, next); got != 0x1b03fffc {
		t.Errorf("clamped retarget: got %#08x, want %#08x", got, 0x1b03fffc)
	}
}

// Off an adjustment boundary the legacy retarget carries the previous bits
// forward.
func TestLegacyOffBoundary(t *testing.T) {
	params := chainconfig.MainnetParams
	params.RetargetAlgorithm = chainconfig.RetargetLegacy
	params.AllowMinDifficultyBlocks = false
	dm := difficultymanager.New(&params)

	chain := newTestChain(t)
	chain.add(versionPreFork, genesisTime, params.PowLimitBits[model.AlgoPoWSHA256])
	chain.add(versionPoW, genesisTime+600, 0x1c0ffff0)

	got := dm.RequiredDifficulty(chain.tip, header(versionPoW, genesisTime+1200))
	if got != 0x1c0ffff0 {
		t.Errorf("off-boundary retarget: got %#08x, want %#08x",
			got, 0x1c0ffff0)
	}
}

// At steady state WTEMA reproduces the previous target exactly.
func TestWTEMASteadyState(t *testing.T) {
	params := chainconfig.MainnetParams
	params.RetargetAlgorithm = chainconfig.RetargetWTEMA
	params.AllowMinDifficultyBlocks = false
	dm := difficultymanager.New(&params)

	chain := newTestChain(t)
	chain.add(versionPreFork, genesisTime, params.PowLimitBits[model.AlgoPoWSHA256])
	spacing := params.PowTargetSpacing
	for i := 1; i <= 6; i++ {
		chain.add(versionPoS, genesisTime+int64(i)*spacing, 0x1d00ffff)
	}

	got := dm.RequiredDifficulty(chain.tip,
		header(versionPoS, genesisTime+7*spacing))
	if got != 0x1d00ffff {
		t.Errorf("steady-state WTEMA drifted: got %#08x, want %#08x",
			got, 0x1d00ffff)
	}
}

// WTEMA loosens the target when blocks arrive slowly and tightens it when
// they arrive quickly.
func TestWTEMAResponds(t *testing.T) {
	params := chainconfig.MainnetParams
	params.RetargetAlgorithm = chainconfig.RetargetWTEMA
	params.AllowMinDifficultyBlocks = false
	spacing := params.PowTargetSpacing

	build := func(lastSpacing int64) *testChain {
		chain := newTestChain(t)
		chain.add(versionPreFork, genesisTime, params.PowLimitBits[model.AlgoPoWSHA256])
		tipTime := int64(genesisTime)
		for i := 1; i <= 5; i++ {
			tipTime = genesisTime + int64(i)*spacing
			chain.add(versionPoS, tipTime, 0x1d00ffff)
		}
		chain.add(versionPoS, tipTime+lastSpacing, 0x1d00ffff)
		return chain
	}

	slow := build(8 * spacing)
	got := difficultymanager.New(&params).RequiredDifficulty(slow.tip,
		header(versionPoS, slow.tip.BlockTime()+spacing))
	if got <= 0x1d00ffff {
		t.Errorf("slow blocks did not loosen the target: got %#08x", got)
	}

	fast := build(spacing / 4)
	got = difficultymanager.New(&params).RequiredDifficulty(fast.tip,
		header(versionPoS, fast.tip.BlockTime()+spacing))
	if got >= 0x1d00ffff {
		t.Errorf("fast blocks did not tighten the target: got %#08x", got)
	}
}

// Five synthetic work blocks at exact spacing from genesis: the target
// starts at the ceiling bootstrap and stays there with no drift.
func TestPoWBootstrapConvergence(t *testing.T) {
	params := &chainconfig.MainnetParams
	dm := difficultymanager.New(params)
	limitBits := params.PowLimitBits[model.AlgoPoWSHA256]
	spacing := params.PowSHA256TargetSpacing

	chain := newTestChain(t)
	chain.add(versionPreFork, genesisTime, limitBits)

	var sequence []uint32
	for i := 1; i <= 5; i++ {
		next := header(versionPoW, genesisTime+int64(i)*spacing)
		bits := dm.RequiredDifficulty(chain.tip, next)
		sequence = append(sequence, bits)
		chain.add(versionPoW, genesisTime+int64(i)*spacing, bits)
	}

	for i, bits := range sequence {
		if bits != limitBits {
			t.Errorf("block %d: got %#08x, want %#08x", i+1, bits, limitBits)
		}
	}
}

// A manager is queried block after block over a long-lived chain, and its
// cached schedule anchor must keep giving the same answers as a manager
// that recomputes everything from scratch, including after the chain forks
// below the point the cache was last validated at.
func TestASERTReferenceCacheAcrossQueries(t *testing.T) {
	params := &chainconfig.MainnetParams
	dm := difficultymanager.New(params)
	limitBits := params.PowLimitBits[model.AlgoPoS]

	chain := newTestChain(t)
	chain.add(versionPreFork, genesisTime, params.PowLimitBits[model.AlgoPoWSHA256])
	var forkPoint *blockindex.Node
	for i := 1; i <= 20; i++ {
		node := chain.add(versionPoS, int64(genesisTime)+int64(i)*64, limitBits)
		if i == 10 {
			forkPoint = node
		}
	}

	candidate := header(versionPoS, chain.tip.BlockTime()+64)
	first := dm.RequiredDifficulty(chain.tip, candidate)
	if again := dm.RequiredDifficulty(chain.tip, candidate); again != first {
		t.Fatalf("repeated query: got %#08x, want %#08x", again, first)
	}
	if fresh := difficultymanager.New(params).RequiredDifficulty(chain.tip,
		candidate); fresh != first {
		t.Fatalf("cached query: got %#08x, fresh manager gives %#08x",
			first, fresh)
	}

	// Extending the chain advances the validation frontier.
	for i := 21; i <= 25; i++ {
		chain.add(versionPoS, int64(genesisTime)+int64(i)*64, limitBits)
	}
	candidate = header(versionPoS, chain.tip.BlockTime()+64)
	extended := dm.RequiredDifficulty(chain.tip, candidate)
	if fresh := difficultymanager.New(params).RequiredDifficulty(chain.tip,
		candidate); fresh != extended {
		t.Fatalf("extended chain: got %#08x, fresh manager gives %#08x",
			extended, fresh)
	}

	// A fork below the frontier must invalidate the cached anchor state.
	chain.tip = forkPoint
	for i := 11; i <= 25; i++ {
		chain.add(versionPoS, int64(genesisTime)+int64(i)*96, limitBits)
	}
	candidate = header(versionPoS, chain.tip.BlockTime()+96)
	forked := dm.RequiredDifficulty(chain.tip, candidate)
	if fresh := difficultymanager.New(params).RequiredDifficulty(chain.tip,
		candidate); fresh != forked {
		t.Errorf("forked chain: got %#08x, fresh manager gives %#08x",
			forked, fresh)
	}
}
