package numeric

import (
	"math"
	"math/big"
	"strconv"
)

// Int is a 64-bit integer whose arithmetic panics with *OverflowError
// instead of wrapping around.
type Int int64

func (x Int) Add(y Int) Int {
	s := x + y
	if (y > 0 && s < x) || (y < 0 && s > x) {
		overflow("add")
	}
	return s
}

func (x Int) Sub(y Int) Int {
	d := x - y
	if (y > 0 && d > x) || (y < 0 && d < x) {
		overflow("sub")
	}
	return d
}

func (x Int) Mul(y Int) Int {
	if x == 0 || y == 0 {
		return 0
	}
	if (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
		overflow("mul")
	}
	p := x * y
	if p/y != x {
		overflow("mul")
	}
	return p
}

// Quo is floor division; x/0 = 0.
func (x Int) Quo(y Int) Int {
	if y == 0 {
		return 0
	}
	if x == math.MinInt64 && y == -1 {
		overflow("quo")
	}
	q := x / y
	if x%y != 0 && (x < 0) != (y < 0) {
		q--
	}
	return q
}

func (x Int) Neg() Int {
	if x == math.MinInt64 {
		overflow("neg")
	}
	return -x
}

func (x Int) Abs() Int {
	if x < 0 {
		return x.Neg()
	}
	return x
}

func (x Int) Cmp(y Int) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func (x Int) Sign() int        { return x.Cmp(0) }
func (x Int) IsInt() bool      { return true }
func (x Int) Floor() Int       { return x }
func (x Int) Ceil() Int        { return x }
func (x Int) Float64() float64 { return float64(x) }
func (x Int) Rat() *big.Rat    { return big.NewRat(int64(x), 1) }
func (x Int) String() string   { return strconv.FormatInt(int64(x), 10) }

// IntKernel constructs Int values.
type IntKernel struct{}

func (IntKernel) Name() string          { return "int" }
func (IntKernel) Zero() Int             { return 0 }
func (IntKernel) One() Int              { return 1 }
func (IntKernel) FromInt64(n int64) Int { return Int(n) }

// FromRat accepts only integers that fit in int64.
func (IntKernel) FromRat(r *big.Rat) (Int, bool) {
	if r == nil || !r.IsInt() || !r.Num().IsInt64() {
		return 0, false
	}
	return Int(r.Num().Int64()), true
}
