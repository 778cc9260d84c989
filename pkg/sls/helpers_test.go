package sls

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitrdm/goslsarith/pkg/expr"
	"github.com/gitrdm/goslsarith/pkg/numeric"
)

type recordTrail struct{ undo []func() }

func (t *recordTrail) Push(f func()) { t.undo = append(t.undo, f) }

func (t *recordTrail) unwind() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = t.undo[:0]
}

type testHost struct {
	truth map[expr.ID]Truth
	units []Literal
	trail recordTrail
}

func newTestHost() *testHost { return &testHost{truth: map[expr.ID]Truth{}} }

func (h *testHost) Truth(a expr.ID) Truth { return h.truth[a] }
func (h *testHost) Units() []Literal      { return h.units }
func (h *testHost) Trail() Trail          { return &h.trail }

// rootHost additionally exposes its asserted formulas.
type rootHost struct {
	*testHost
	roots []expr.ID
}

func (h rootHost) Roots() []expr.ID { return h.roots }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Seed = 1
	cfg.CheckInvariants = true
	return cfg
}

func newIntEngine(t *testing.T, m *expr.Manager, h Host, cfg Config) *Engine[numeric.Int] {
	t.Helper()
	e, err := New[numeric.Int](m, h, numeric.IntKernel{}, WithConfig(cfg))
	require.NoError(t, err)
	return e
}

func newRatEngine(t *testing.T, m *expr.Manager, h Host, cfg Config) *Engine[numeric.Rat] {
	t.Helper()
	e, err := New[numeric.Rat](m, h, numeric.RatKernel{}, WithConfig(cfg))
	require.NoError(t, err)
	return e
}

func register(t *testing.T, p Plugin, ids ...expr.ID) {
	t.Helper()
	for _, id := range ids {
		_, err := p.RegisterTerm(id)
		require.NoError(t, err)
	}
}

func valueOf(t *testing.T, p Plugin, id expr.ID) *big.Rat {
	t.Helper()
	v, ok := p.Value(id)
	require.True(t, ok, "no value for expression %d", id)
	return v
}

func requireValue(t *testing.T, p Plugin, id expr.ID, want int64) {
	t.Helper()
	require.Zero(t, big.NewRat(want, 1).Cmp(valueOf(t, p, id)), "value %s, want %d", valueOf(t, p, id).RatString(), want)
}

// solve repairs violated atoms until the assignment is a model or the
// step budget runs out.
func solve(p Plugin, steps int) bool {
	for i := 0; i < steps; i++ {
		v := p.Violated()
		if len(v) == 0 {
			return true
		}
		p.RepairLiteral(v[i%len(v)])
	}
	return p.IsSat()
}
