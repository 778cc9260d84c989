package expr

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_HashConsing(t *testing.T) {
	m := NewManager()
	x := m.IntConst("x")
	y := m.IntConst("y")

	a := m.Add(x, m.Mul(m.Int(2), y))
	n := m.Len()
	b := m.Add(x, m.Mul(m.Int(2), y))

	assert.Equal(t, a, b)
	assert.Equal(t, n, m.Len(), "rebuilding must not create nodes")
	assert.Equal(t, x, m.IntConst("x"))
	assert.NotEqual(t, m.Add(x, y), m.Add(y, x), "argument order is significant")
}

func TestManager_Sorts(t *testing.T) {
	m := NewManager()
	x := m.IntConst("x")
	r := m.RealConst("r")

	tests := []struct {
		name string
		id   ID
		want Sort
	}{
		{"int_sum", m.Add(x, m.Int(1)), SortInt},
		{"mixed_sum", m.Add(x, r), SortReal},
		{"real_division", m.Div(x, m.Int(2)), SortReal},
		{"modulo", m.Mod(x, m.Int(3)), SortInt},
		{"to_int", m.ToInt(r), SortInt},
		{"to_real", m.ToReal(x), SortReal},
		{"comparison", m.Le(x, r), SortBool},
		{"abs_real", m.Abs(r), SortReal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, m.Sort(tc.id))
		})
	}
}

func TestManager_SortErrors(t *testing.T) {
	m := NewManager()
	x := m.IntConst("x")
	r := m.RealConst("r")
	p := m.BoolConst("p")

	assert.Panics(t, func() { m.Mod(r, x) })
	assert.Panics(t, func() { m.Add(x, p) })
	assert.Panics(t, func() { m.And(p, x) })
	assert.Panics(t, func() { m.Const("x", SortReal) })
	assert.Panics(t, func() { m.Num(big.NewRat(1, 2), SortInt) })
}

func TestManager_ParentsAndHeight(t *testing.T) {
	m := NewManager()
	x := m.IntConst("x")
	y := m.IntConst("y")
	xy := m.Mul(x, y)
	sq := m.Mul(x, x)
	atom := m.Le(xy, m.Int(10))

	assert.Equal(t, []ID{xy, sq}, m.Parents(x))
	assert.Equal(t, []ID{atom}, m.Parents(xy))
	assert.Equal(t, 0, m.Height(x))
	assert.Equal(t, 1, m.Height(xy))
	assert.Equal(t, 2, m.Height(atom))
	assert.Len(t, m.Parents(x), 2, "repeated argument registers one parent edge")
}

func TestManager_Recognizers(t *testing.T) {
	m := NewManager()
	x := m.IntConst("x")
	p := m.BoolConst("p")
	q := m.BoolConst("q")
	atom := m.Lt(x, m.Int(3))

	assert.True(t, m.IsAtom(atom))
	assert.True(t, m.IsAtom(m.Eq(x, m.Int(0))))
	assert.False(t, m.IsAtom(m.Eq(p, q)))
	assert.True(t, m.IsAtom(m.Distinct(x, m.Int(1))))
	assert.True(t, m.IsBoolConnective(m.And(p, atom)))
	assert.False(t, m.IsBoolConnective(atom))
	assert.True(t, m.IsArith(x))
	assert.Equal(t, []ID{x}, m.Consts(SortInt))
	assert.Equal(t, []ID{p, q}, m.Consts(SortBool))

	id, ok := m.Lookup("q")
	require.True(t, ok)
	assert.Equal(t, q, id)
	_, ok = m.Lookup("nope")
	assert.False(t, ok)
}

func TestManager_BooleanShortcuts(t *testing.T) {
	m := NewManager()
	p := m.BoolConst("p")

	assert.Equal(t, p, m.Not(m.Not(p)))
	assert.Equal(t, m.False(), m.Not(m.True()))
	assert.Equal(t, m.True(), m.And())
	assert.Equal(t, m.False(), m.Or())
	assert.Equal(t, p, m.And(p))
}

func TestManager_NumeralRoundTrip(t *testing.T) {
	m := NewManager()
	tests := []struct {
		name string
		r    *big.Rat
		sort Sort
		want string
	}{
		{"integer", big.NewRat(42, 1), SortInt, "42"},
		{"negative_integer", big.NewRat(-3, 1), SortInt, "(- 3)"},
		{"fraction", big.NewRat(3, 4), SortReal, "(/ 3 4)"},
		{"negative_fraction", big.NewRat(-3, 4), SortReal, "(- (/ 3 4))"},
		{"real_integer", big.NewRat(2, 1), SortReal, "2.0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id := m.Num(tc.r, tc.sort)
			got, ok := m.Numeral(id)
			require.True(t, ok)
			assert.Equal(t, 0, got.Cmp(tc.r))
			assert.Equal(t, id, m.Num(got, tc.sort))
			assert.Equal(t, tc.want, m.String(id))
		})
	}
}

func TestManager_String(t *testing.T) {
	m := NewManager()
	x := m.IntConst("x")
	y := m.IntConst("y")
	f := m.And(m.Le(m.Add(x, m.Mul(m.Int(2), y)), m.Int(5)), m.Not(m.Eq(x, y)))
	assert.Equal(t, "(and (<= (+ x (* 2 y)) 5) (not (= x y)))", m.String(f))
	assert.Equal(t, "(+ x (* (- 1) y))", m.String(m.Sub(x, y)))
}
