package host

import (
	"context"
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/goslsarith/pkg/expr"
	"github.com/gitrdm/goslsarith/pkg/numeric"
	"github.com/gitrdm/goslsarith/pkg/sls"
)

func engineConfig() sls.Config {
	cfg := sls.DefaultConfig()
	cfg.Seed = 3
	cfg.CheckInvariants = true
	return cfg
}

func solveWith(t *testing.T, m *expr.Manager, roots []expr.ID, cfg sls.Config, opts ...Option) (*Driver, sls.Plugin, Result, error) {
	t.Helper()
	d, err := New(m, roots, opts...)
	require.NoError(t, err)
	p, err := sls.NewPlugin(m, d, sls.SelectKernel(m), sls.WithConfig(cfg))
	require.NoError(t, err)
	res, err := d.Solve(context.Background(), p)
	return d, p, res, err
}

func holds(t *testing.T, p sls.Plugin, id expr.ID, pred func(*big.Rat) bool) {
	t.Helper()
	v, ok := p.Value(id)
	require.True(t, ok)
	assert.True(t, pred(v), "value %s", v.RatString())
}

func TestDriver_SolvesConjunction(t *testing.T) {
	m := expr.NewManager()
	x, y := m.IntConst("x"), m.IntConst("y")
	root := m.And(
		m.Ge(x, m.Int(4)),
		m.Ge(y, m.Int(5)),
		m.Le(m.Add(x, y), m.Int(10)),
		m.Le(m.Sub(x, y), m.Int(0)),
	)
	d, p, res, err := solveWith(t, m, []expr.ID{root}, engineConfig())
	require.NoError(t, err)
	require.Equal(t, Sat, res)
	assert.True(t, p.IsSat())
	assert.Len(t, d.Units(), 4, "every conjunct is a unit")

	xv, _ := p.Value(x)
	yv, _ := p.Value(y)
	sum := new(big.Rat).Add(xv, yv)
	assert.True(t, xv.Cmp(big.NewRat(4, 1)) >= 0 && yv.Cmp(big.NewRat(5, 1)) >= 0)
	assert.True(t, sum.Cmp(big.NewRat(10, 1)) <= 0 && xv.Cmp(yv) <= 0)
}

func TestDriver_SolvesDisjunction(t *testing.T) {
	m := expr.NewManager()
	x, y := m.IntConst("x"), m.IntConst("y")
	roots := []expr.ID{
		m.Or(m.Ge(x, m.Int(10)), m.Ge(y, m.Int(10))),
		m.Le(m.Add(x, y), m.Int(12)),
		m.Ge(x, m.Int(0)),
		m.Ge(y, m.Int(0)),
	}
	_, p, res, err := solveWith(t, m, roots, engineConfig())
	require.NoError(t, err)
	require.Equal(t, Sat, res)

	xv, _ := p.Value(x)
	yv, _ := p.Value(y)
	ten := big.NewRat(10, 1)
	assert.True(t, xv.Cmp(ten) >= 0 || yv.Cmp(ten) >= 0)
	assert.True(t, new(big.Rat).Add(xv, yv).Cmp(big.NewRat(12, 1)) <= 0)
}

func TestDriver_Lookahead(t *testing.T) {
	m := expr.NewManager()
	x, y := m.IntConst("x"), m.IntConst("y")
	roots := []expr.ID{
		m.Or(m.Ge(x, m.Int(10)), m.Ge(y, m.Int(10))),
		m.Le(m.Add(x, y), m.Int(12)),
	}
	cfg := engineConfig()
	cfg.UseLookahead = true
	_, p, res, err := solveWith(t, m, roots, cfg, WithMaxFlips(500))
	require.NoError(t, err)
	require.Equal(t, Sat, res)
	holds(t, p, x, func(r *big.Rat) bool { return r.Cmp(big.NewRat(12, 1)) <= 0 })
}

func TestDriver_NonlinearModel(t *testing.T) {
	m := expr.NewManager()
	x, y := m.IntConst("x"), m.IntConst("y")
	roots := []expr.ID{
		m.Eq(m.Mul(x, y), m.Int(12)),
		m.Gt(x, m.Int(1)),
		m.Gt(y, m.Int(1)),
	}
	_, p, res, err := solveWith(t, m, roots, engineConfig())
	require.NoError(t, err)
	require.Equal(t, Sat, res)
	xv, _ := p.Value(x)
	yv, _ := p.Value(y)
	assert.Zero(t, new(big.Rat).Mul(xv, yv).Cmp(big.NewRat(12, 1)))
}

func TestDriver_UnsatSkeleton(t *testing.T) {
	m := expr.NewManager()
	x := m.IntConst("x")
	a := m.Ge(x, m.Int(3))
	_, _, res, err := solveWith(t, m, []expr.ID{a, m.Not(a)}, engineConfig())
	require.NoError(t, err)
	assert.Equal(t, Unsat, res)
}

func TestDriver_ArithmeticConflictIsUnknown(t *testing.T) {
	m := expr.NewManager()
	x := m.IntConst("x")
	roots := []expr.ID{m.Gt(x, m.Int(5)), m.Lt(x, m.Int(3))}
	d, p, res, err := solveWith(t, m, roots, engineConfig(), WithMaxRounds(4), WithMaxFlips(50))
	assert.Equal(t, Unknown, res)
	assert.ErrorIs(t, err, ErrBudgetExhausted)
	assert.Equal(t, 4, d.Rounds())
	assert.False(t, p.IsSat())
}

func TestDriver_FlipBudgetCountsEngineSteps(t *testing.T) {
	m := expr.NewManager()
	x := m.IntConst("x")
	roots := []expr.ID{m.Gt(x, m.Int(5)), m.Lt(x, m.Int(3))}
	tests := []struct {
		name      string
		lookahead bool
	}{
		{"repair", false},
		{"lookahead", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := engineConfig()
			cfg.UseLookahead = tc.lookahead
			cfg.MaxMovesBase = 10
			_, p, res, err := solveWith(t, m, roots, cfg, WithMaxRounds(2), WithMaxFlips(30))
			assert.Equal(t, Unknown, res)
			assert.ErrorIs(t, err, ErrBudgetExhausted)
			steps := p.CollectStatistics().Steps
			assert.Positive(t, steps)
			// A round may overshoot by less than one lookahead call.
			assert.LessOrEqual(t, steps, uint64(2*(30+10-1)))
		})
	}
}

func TestStepsSince(t *testing.T) {
	assert.Equal(t, uint64(1), stepsSince(5, 5))
	assert.Equal(t, uint64(1), stepsSince(5, 0), "counters were reset")
	assert.Equal(t, uint64(7), stepsSince(3, 10))
}

func TestDriver_Cancelled(t *testing.T) {
	m := expr.NewManager()
	x := m.IntConst("x")
	d, err := New(m, []expr.ID{m.Gt(x, m.Int(5))})
	require.NoError(t, err)
	p, err := sls.NewPlugin(m, d, numeric.KindInt, sls.WithConfig(engineConfig()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := d.Solve(ctx, p)
	assert.Equal(t, Unknown, res)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNew_Errors(t *testing.T) {
	m := expr.NewManager()
	x := m.IntConst("x")
	_, err := New(m, []expr.ID{x})
	assert.ErrorContains(t, err, "not Boolean")

	_, err = New(m, nil, WithMaxFlips(0))
	assert.Error(t, err)
}

func TestDriver_Units(t *testing.T) {
	m := expr.NewManager()
	x := m.IntConst("x")
	b := m.BoolConst("b")
	a1, a2, a3, a4 := m.Ge(x, m.Int(1)), m.Le(x, m.Int(9)), m.Eq(x, m.Int(4)), m.Eq(x, m.Int(5))
	root := m.And(a1, m.Or(b, a2), m.Not(m.Or(a3, a4)))
	d, err := New(m, []expr.ID{root})
	require.NoError(t, err)
	assert.ElementsMatch(t, []sls.Literal{
		{Atom: a1, Positive: true},
		{Atom: a3, Positive: false},
		{Atom: a4, Positive: false},
	}, d.Units())
	assert.Equal(t, []expr.ID{root}, d.Roots())
}

func TestDriver_BooleanEquivalence(t *testing.T) {
	m := expr.NewManager()
	x := m.IntConst("x")
	b := m.BoolConst("b")
	roots := []expr.ID{m.Eq(b, m.Ge(x, m.Int(7))), b}
	d, p, res, err := solveWith(t, m, roots, engineConfig())
	require.NoError(t, err)
	require.Equal(t, Sat, res)
	assert.Equal(t, sls.True, d.Truth(b))
	holds(t, p, x, func(r *big.Rat) bool { return r.Cmp(big.NewRat(7, 1)) >= 0 })

	model := d.Model(p, false)
	require.Len(t, model, 2)
	assert.Equal(t, "b", model[0].Name)
	assert.Equal(t, "true", model[0].Value)
	assert.Equal(t, "x", model[1].Name)
	assert.Equal(t, expr.SortInt, model[1].Sort)
}

func TestResult_String(t *testing.T) {
	assert.Equal(t, "sat", Sat.String())
	assert.Equal(t, "unsat", Unsat.String())
	assert.Equal(t, "unknown", Unknown.String())
}
