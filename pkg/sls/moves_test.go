package sls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/goslsarith/pkg/expr"
	"github.com/gitrdm/goslsarith/pkg/numeric"
)

func TestFindMoves_LinearTargets(t *testing.T) {
	m := expr.NewManager()
	x, y := m.IntConst("x"), m.IntConst("y")
	atom := m.Le(m.Add(x, m.Mul(m.Int(2), y)), m.Int(5))
	e := newIntEngine(t, m, newTestHost(), testConfig())
	register(t, e, atom)
	e.Initialize()
	vx, _ := e.varOf(x)
	vy, _ := e.varOf(y)
	idx := e.atoms[atom]

	e.findMoves(idx, false, Hillclimb)
	assert.ElementsMatch(t, []move[numeric.Int]{{v: vx, delta: 6}, {v: vy, delta: 3}}, e.cands)

	require.True(t, e.SetValue(x, m.Int(10)))
	e.findMoves(idx, true, Hillclimb)
	// x + 2y - 5 = 5: x down by 5, y down by ceil(5/2).
	assert.ElementsMatch(t, []move[numeric.Int]{{v: vx, delta: -5}, {v: vy, delta: -3}}, e.cands)
}

func TestFindMoves_EqualityRounding(t *testing.T) {
	m := expr.NewManager()
	x := m.IntConst("x")
	atom := m.Eq(m.Mul(m.Int(2), x), m.Int(5))
	e := newIntEngine(t, m, newTestHost(), testConfig())
	register(t, e, atom)
	e.Initialize()
	vx, _ := e.varOf(x)

	e.findMoves(e.atoms[atom], true, Hillclimb)
	assert.ElementsMatch(t, []move[numeric.Int]{{v: vx, delta: 2}, {v: vx, delta: 3}}, e.cands)
}

func TestFindMoves_ClampsToBounds(t *testing.T) {
	m := expr.NewManager()
	x := m.IntConst("x")
	atom := m.Ge(x, m.Int(50))
	upper := m.Le(x, m.Int(20))
	h := newTestHost()
	h.units = []Literal{{Atom: upper, Positive: true}}
	e := newIntEngine(t, m, h, testConfig())
	register(t, e, atom, upper)
	e.Initialize()
	vx, _ := e.varOf(x)

	e.findMoves(e.atoms[atom], true, Hillclimb)
	assert.Equal(t, []move[numeric.Int]{{v: vx, delta: 20}}, e.cands)
}

func TestFindMoves_ResetCandidates(t *testing.T) {
	m := expr.NewManager()
	x := m.IntConst("x")
	atom := m.Eq(m.Mul(x, x, x), m.Int(8))
	e := newIntEngine(t, m, newTestHost(), testConfig())
	register(t, e, atom)
	e.Initialize()
	require.True(t, e.SetValue(x, m.Int(5)))
	vx, _ := e.varOf(x)

	// x^3 is neither linear nor quadratic: step by one or reset to 0, 1, -1.
	e.findMoves(e.atoms[atom], true, Hillclimb)
	assert.ElementsMatch(t, []move[numeric.Int]{
		{v: vx, delta: 1}, {v: vx, delta: -1},
		{v: vx, delta: -5}, {v: vx, delta: -4}, {v: vx, delta: -6},
	}, e.cands)
}

func TestAddResetUpdate_Bounds(t *testing.T) {
	m := expr.NewManager()
	x := m.IntConst("x")
	lower, upper := m.Ge(x, m.Int(3)), m.Le(x, m.Int(8))
	h := newTestHost()
	h.units = []Literal{{Atom: lower, Positive: true}, {Atom: upper, Positive: true}}
	e := newIntEngine(t, m, h, testConfig())
	register(t, e, lower, upper)
	e.Initialize()
	require.True(t, e.SetValue(x, m.Int(5)))
	vx, _ := e.varOf(x)

	e.cands = e.cands[:0]
	e.addResetUpdate(vx, Hillclimb)
	// 0, 1 and -1 all clamp to the lower bound 3.
	assert.ElementsMatch(t, []move[numeric.Int]{{v: vx, delta: -2}, {v: vx, delta: 3}}, e.cands)
}

func TestAddRandomUpdate_UniformInRange(t *testing.T) {
	m := expr.NewManager()
	x, r := m.IntConst("x"), m.RealConst("r")
	cfg := testConfig()
	cfg.InitialRange = 10

	t.Run("int", func(t *testing.T) {
		e := newIntEngine(t, m, newTestHost(), cfg)
		register(t, e, x)
		e.Initialize()
		vx, _ := e.varOf(x)
		seen := map[numeric.Int]bool{}
		for i := 0; i < 400; i++ {
			e.cands = e.cands[:0]
			e.addRandomUpdate(vx, RandomUpdate)
			for _, c := range e.cands {
				require.True(t, c.delta > -10 && c.delta < 10, "value %s", c.delta)
				seen[c.delta] = true
			}
		}
		assert.GreaterOrEqual(t, len(seen), 15, "draws spread over the range")
	})

	t.Run("bounded", func(t *testing.T) {
		lower, upper := m.Ge(x, m.Int(3)), m.Le(x, m.Int(5))
		h := newTestHost()
		h.units = []Literal{{Atom: lower, Positive: true}, {Atom: upper, Positive: true}}
		e := newIntEngine(t, m, h, cfg)
		register(t, e, lower, upper)
		e.Initialize()
		vx, _ := e.varOf(x)
		for i := 0; i < 100; i++ {
			e.cands = e.cands[:0]
			e.addRandomUpdate(vx, RandomUpdate)
			for _, c := range e.cands {
				nv := e.value(vx).Add(c.delta)
				require.True(t, nv >= 3 && nv <= 5, "value %s", nv)
			}
		}
	})

	t.Run("real", func(t *testing.T) {
		e := newRatEngine(t, m, newTestHost(), cfg)
		register(t, e, r)
		e.Initialize()
		vr, _ := e.varOf(r)
		fractional := false
		for i := 0; i < 100; i++ {
			e.cands = e.cands[:0]
			e.addRandomUpdate(vr, RandomUpdate)
			for _, c := range e.cands {
				f := c.delta.Float64()
				require.True(t, f > -10 && f < 10, "value %s", c.delta)
				fractional = fractional || !c.delta.IsInt()
			}
		}
		assert.True(t, fractional)
	})
}

func TestFindMoves_Tabu(t *testing.T) {
	m := expr.NewManager()
	x := m.IntConst("x")
	atom := m.Ge(x, m.Int(3))

	tests := []struct {
		name     string
		bypass   bool
		kind     MoveKind
		wantCand int
		wantTabu int
	}{
		{"hillclimb_respects_tabu", false, Hillclimb, 0, 1},
		{"hillclimb_respects_tabu_with_bypass", true, Hillclimb, 0, 1},
		{"plateau_respects_tabu", false, HillclimbPlateau, 0, 1},
		{"plateau_bypasses_tabu", true, HillclimbPlateau, 1, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.AllowPlateau = true
			cfg.PlateauBypassesTabu = tc.bypass
			e := newIntEngine(t, m, newTestHost(), cfg)
			register(t, e, atom)
			e.Initialize()
			vx, _ := e.varOf(x)
			e.vars[vx].tabuPos = e.step + 10

			e.findMoves(e.atoms[atom], true, tc.kind)
			assert.Len(t, e.cands, tc.wantCand)
			assert.Len(t, e.tabu, tc.wantTabu)
		})
	}
}

func TestClimb_FallsBackToTabuMoves(t *testing.T) {
	m := expr.NewManager()
	x := m.IntConst("x")
	atom := m.Ge(x, m.Int(3))
	h := newTestHost()
	h.truth[atom] = True
	e := newIntEngine(t, m, h, testConfig())
	register(t, e, atom)
	e.Initialize()
	vx, _ := e.varOf(x)
	e.vars[vx].tabuPos = e.step + 10

	require.True(t, e.climb(e.atoms[atom], true, Hillclimb))
	requireValue(t, e, x, 3)
}

func TestApplyMove_OpensTabuWindow(t *testing.T) {
	m := expr.NewManager()
	x := m.IntConst("x")
	cfg := testConfig()
	cfg.TabuMin, cfg.TabuRange = 3, 5
	e := newIntEngine(t, m, newTestHost(), cfg)
	register(t, e, x)
	e.Initialize()
	vx, _ := e.varOf(x)
	e.step = 7

	require.True(t, e.applyMove(move[numeric.Int]{v: vx, delta: 2}))
	vi := &e.vars[vx]
	assert.Equal(t, uint64(7), vi.lastPos)
	assert.GreaterOrEqual(t, vi.tabuNeg, uint64(10))
	assert.Less(t, vi.tabuNeg, uint64(15))
	assert.Zero(t, vi.tabuPos)
	assert.True(t, vi.isTabu(e.step, numeric.Int(-1)))
	assert.False(t, vi.isTabu(e.step, numeric.Int(1)))
}

func TestScoreMove_GainAndBreaks(t *testing.T) {
	m := expr.NewManager()
	x := m.IntConst("x")
	lo := m.Ge(x, m.Int(5))
	hi := m.Le(x, m.Int(2))
	h := newTestHost()
	h.truth[lo] = True
	h.truth[hi] = True
	e := newIntEngine(t, m, h, testConfig())
	register(t, e, lo, hi)
	e.Initialize()
	vx, _ := e.varOf(x)

	mv := move[numeric.Int]{v: vx, delta: 5}
	e.scoreMove(&mv)
	assert.Equal(t, 0.0, mv.gain, "one atom fixed, one broken, equal weights")
	assert.Equal(t, 1, mv.breaks)

	e.ineqs[e.atoms[lo]].weight = 100
	e.scoreMove(&mv)
	assert.Equal(t, float64(100-e.cfg.PawsInit), mv.gain)
	assert.Greater(t, mv.score, 0.0)
}

func TestScoreMove_NonlinearAtom(t *testing.T) {
	m := expr.NewManager()
	x, y := m.IntConst("x"), m.IntConst("y")
	atom := m.Ge(m.Mul(x, y), m.Int(6))
	h := newTestHost()
	h.truth[atom] = True
	e := newIntEngine(t, m, h, testConfig())
	register(t, e, atom)
	e.Initialize()
	require.True(t, e.SetValue(y, m.Int(3)))
	vx, _ := e.varOf(x)

	fix := move[numeric.Int]{v: vx, delta: 2}
	e.scoreMove(&fix)
	assert.Equal(t, float64(e.cfg.PawsInit), fix.gain)
	assert.Zero(t, fix.breaks)

	closer := move[numeric.Int]{v: vx, delta: 1}
	e.scoreMove(&closer)
	assert.Zero(t, closer.gain)
	assert.Greater(t, closer.score, 0.0, "x*y moves from 0 to 3")

	away := move[numeric.Int]{v: vx, delta: -1}
	e.scoreMove(&away)
	assert.Less(t, away.score, 0.0)
}

func TestRankMoves_OrdersAndCaps(t *testing.T) {
	m := expr.NewManager()
	x, y := m.IntConst("x"), m.IntConst("y")
	atom := m.Ge(m.Add(x, y), m.Int(4))
	other := m.Le(y, m.Int(0))
	h := newTestHost()
	h.truth[atom] = True
	h.truth[other] = True
	cfg := testConfig()
	cfg.MaxMoves = 1
	e := newIntEngine(t, m, h, cfg)
	register(t, e, atom, other)
	e.Initialize()
	vx, _ := e.varOf(x)
	vy, _ := e.varOf(y)

	moves := e.rankMoves([]move[numeric.Int]{{v: vy, delta: 4}, {v: vx, delta: 4}})
	require.Len(t, moves, 1)
	assert.Equal(t, vx, moves[0].v, "moving y breaks y <= 0")
}

func TestChooseMoveKind(t *testing.T) {
	m := expr.NewManager()
	cfg := testConfig()
	cfg.UCB, cfg.WP = false, 0
	e := newIntEngine(t, m, newTestHost(), cfg)
	e.Initialize()

	e.walk = 2
	assert.Equal(t, RandomUpdate, e.chooseMoveKind())
	assert.Equal(t, RandomUpdate, e.chooseMoveKind())
	assert.Equal(t, Hillclimb, e.chooseMoveKind())

	e.cfg.WP = 1000
	assert.Equal(t, RandomUpdate, e.chooseMoveKind())

	e.cfg.UCB, e.cfg.AllowPlateau = true, false
	for i := 0; i < 50; i++ {
		assert.NotEqual(t, HillclimbPlateau, e.chooseMoveKind())
	}
}

func TestRandomIncDec_MovesTowardTruth(t *testing.T) {
	m := expr.NewManager()
	x := m.IntConst("x")
	atom := m.Ge(x, m.Int(3))
	e := newIntEngine(t, m, newTestHost(), testConfig())
	register(t, e, atom)
	e.Initialize()

	require.True(t, e.randomIncDec(e.atoms[atom], true))
	requireValue(t, e, x, 1)
}

func TestAdaptWeights(t *testing.T) {
	m := expr.NewManager()
	x := m.IntConst("x")
	sat := m.Le(x, m.Int(5))
	unsat := m.Ge(x, m.Int(5))
	h := newTestHost()
	h.truth[sat] = True
	h.truth[unsat] = True

	t.Run("bump_violated", func(t *testing.T) {
		cfg := testConfig()
		cfg.PawsSP = 0
		e := newIntEngine(t, m, h, cfg)
		register(t, e, sat, unsat)
		e.Initialize()
		e.adaptWeights()
		assert.Equal(t, cfg.PawsInit, e.ineqs[e.atoms[sat]].weight)
		assert.Equal(t, cfg.PawsInit+1, e.ineqs[e.atoms[unsat]].weight)
	})

	t.Run("decay_satisfied", func(t *testing.T) {
		cfg := testConfig()
		cfg.PawsSP = 2048
		e := newIntEngine(t, m, h, cfg)
		register(t, e, sat, unsat)
		e.Initialize()
		e.ineqs[e.atoms[sat]].weight = cfg.PawsInit + 3
		e.adaptWeights()
		assert.Equal(t, cfg.PawsInit+2, e.ineqs[e.atoms[sat]].weight)
		assert.Equal(t, cfg.PawsInit, e.ineqs[e.atoms[unsat]].weight)
	})

	t.Run("smooth_without_paws", func(t *testing.T) {
		cfg := testConfig()
		cfg.Paws, cfg.SP = false, 1
		e := newIntEngine(t, m, h, cfg)
		register(t, e, sat, unsat)
		e.Initialize()
		e.ineqs[e.atoms[unsat]].weight = cfg.PawsInit + 10
		e.adaptWeights()
		assert.Equal(t, cfg.PawsInit+5, e.ineqs[e.atoms[unsat]].weight)
	})

	t.Run("ceiling_halves", func(t *testing.T) {
		cfg := testConfig()
		cfg.PawsSP = 0
		cfg.WeightCeiling = cfg.PawsInit
		e := newIntEngine(t, m, h, cfg)
		register(t, e, sat, unsat)
		e.Initialize()
		e.adaptWeights()
		assert.Equal(t, (cfg.PawsInit+2)/2, e.ineqs[e.atoms[unsat]].weight)
		assert.Equal(t, (cfg.PawsInit+1)/2, e.ineqs[e.atoms[sat]].weight)
	})
}
