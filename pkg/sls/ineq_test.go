package sls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/goslsarith/pkg/expr"
	"github.com/gitrdm/goslsarith/pkg/numeric"
)

func TestDtt_Table(t *testing.T) {
	e := newIntEngine(t, expr.NewManager(), newTestHost(), testConfig())
	tests := []struct {
		name string
		op   ineqKind
		want bool
		lhs  int64
		dtt  int64
	}{
		{"eq_true_pos", ineqEQ, true, 3, 3},
		{"eq_true_neg", ineqEQ, true, -3, 3},
		{"eq_true_zero", ineqEQ, true, 0, 0},
		{"eq_false_zero", ineqEQ, false, 0, 1},
		{"eq_false_nonzero", ineqEQ, false, 2, 0},
		{"le_true_holds", ineqLE, true, -1, 0},
		{"le_true_boundary", ineqLE, true, 0, 0},
		{"le_true_violated", ineqLE, true, 4, 4},
		{"le_false_boundary", ineqLE, false, 0, 1},
		{"le_false_violated", ineqLE, false, -2, 3},
		{"le_false_holds", ineqLE, false, 1, 0},
		{"lt_true_boundary", ineqLT, true, 0, 1},
		{"lt_true_holds", ineqLT, true, -1, 0},
		{"lt_false_violated", ineqLT, false, -1, 1},
		{"lt_false_holds", ineqLT, false, 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, numeric.Int(tc.dtt), e.dttAt(tc.want, tc.op, numeric.Int(tc.lhs)))
		})
	}
}

func TestDtt_ZeroExactlyWhenSatisfied(t *testing.T) {
	e := newRatEngine(t, expr.NewManager(), newTestHost(), testConfig())
	for _, op := range []ineqKind{ineqEQ, ineqLE, ineqLT} {
		for _, want := range []bool{true, false} {
			for n := int64(-10); n <= 10; n++ {
				lhs := numeric.NewRat(n, 4)
				d := e.dttAt(want, op, lhs)
				assert.GreaterOrEqual(t, d.Sign(), 0)
				assert.Equal(t, holdsCmp(op, lhs.Sign()) == want, d.Sign() == 0, "op %s want %t lhs %s", op, want, lhs)
			}
		}
	}
}

func TestDtt_FormsAgree(t *testing.T) {
	m := expr.NewManager()
	x, y := m.IntConst("x"), m.IntConst("y")
	lhs := m.Add(m.Mul(m.Int(3), x), m.Mul(m.Int(-2), y), m.Int(1))
	tests := []struct {
		name string
		atom expr.ID
	}{
		{"le", m.Le(lhs, m.Int(0))},
		{"eq", m.Eq(lhs, m.Int(4))},
		{"lt", m.Lt(lhs, m.Int(-3))},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newIntEngine(t, m, newTestHost(), testConfig())
			register(t, e, tc.atom)
			e.Initialize()
			require.True(t, e.SetValue(x, m.Int(2)))
			require.True(t, e.SetValue(y, m.Int(1)))

			in := &e.ineqs[e.atoms[tc.atom]]
			vx, _ := e.varOf(x)
			for _, want := range []bool{true, false} {
				for n := int64(-3); n <= 3; n++ {
					nv := numeric.Int(n)
					subst := e.dttSubst(want, in, vx, nv)
					delta := e.dttDelta(want, in, 3, nv-2)
					exact := e.dttAt(want, in.op, e.lhsWith(in, vx, nv))
					assert.Equal(t, subst, delta, "want %t x=%d", want, n)
					assert.Equal(t, subst, exact, "want %t x=%d", want, n)
				}
			}
		})
	}
}

func TestDTS_WeightedSumOfDistances(t *testing.T) {
	m := expr.NewManager()
	x, y := m.IntConst("x"), m.IntConst("y")
	le := m.Le(x, m.Int(3))
	eq := m.Eq(y, m.Int(0))
	free := m.Lt(x, y)
	h := newTestHost()
	h.truth[le] = True
	h.truth[eq] = False
	cfg := testConfig()
	cfg.PawsInit = 1
	e := newIntEngine(t, m, h, cfg)
	register(t, e, le, eq, free)
	e.Initialize()
	assert.Equal(t, 1.0, e.DTS(), "only y = 0 is violated, at distance 1")

	require.True(t, e.SetValue(x, m.Int(7)))
	require.True(t, e.SetValue(y, m.Int(2)))
	assert.Equal(t, 4.0, e.DTS())

	e.ineqs[e.atoms[le]].weight = 3
	assert.Equal(t, 12.0, e.DTS())

	h.truth[free] = True
	assert.Equal(t, 12.0+6.0, e.DTS(), "x < y now counts with distance x - y + 1")
}

func TestLhsWith_SubstitutesThroughMonomials(t *testing.T) {
	m := expr.NewManager()
	x, y := m.IntConst("x"), m.IntConst("y")
	atom := m.Eq(m.Add(m.Mul(x, x, y), x), m.Int(10))
	e := newIntEngine(t, m, newTestHost(), testConfig())
	register(t, e, atom)
	e.Initialize()
	require.True(t, e.SetValue(y, m.Int(2)))

	in := &e.ineqs[e.atoms[atom]]
	vx, _ := e.varOf(x)
	// 2*x^2 + x - 10 at x = 2 is 0.
	assert.Equal(t, numeric.Int(0), e.lhsWith(in, vx, 2))
	assert.Equal(t, numeric.Int(-10), in.lhs())

	var nl *nonlinearOcc[numeric.Int]
	for i := range in.nonlinear {
		if in.nonlinear[i].x == vx {
			nl = &in.nonlinear[i]
		}
	}
	require.NotNil(t, nl)
	a, b, ok := e.quadraticIn(nl)
	require.True(t, ok)
	assert.Equal(t, numeric.Int(2), a)
	assert.Equal(t, numeric.Int(1), b)
	_, linear := e.linearIn(nl)
	assert.False(t, linear)
}
