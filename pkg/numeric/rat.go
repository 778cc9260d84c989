package numeric

import (
	"math"
	"math/big"
)

// Rat is an arbitrary-precision rational number.
//
// The zero value is 0. Rats are always kept normalized by math/big
// (lowest terms, positive denominator), so structural comparison through
// Cmp is exact.
//
// Examples:
//
//	NewRat(6, 8)  → 3/4
//	NewRat(-6, 8) → -3/4
//	NewRat(6, -8) → -3/4
//	NewRat(0, 5)  → 0
type Rat struct {
	r *big.Rat
}

var ratZero = new(big.Rat)

// NewRat returns num/den. Panics if den is zero.
func NewRat(num, den int64) Rat {
	if den == 0 {
		panic("numeric: rational with zero denominator")
	}
	return Rat{big.NewRat(num, den)}
}

// RatOf wraps a copy of r.
func RatOf(r *big.Rat) Rat {
	return Rat{new(big.Rat).Set(r)}
}

func (x Rat) val() *big.Rat {
	if x.r == nil {
		return ratZero
	}
	return x.r
}

func (x Rat) Add(y Rat) Rat { return Rat{new(big.Rat).Add(x.val(), y.val())} }
func (x Rat) Sub(y Rat) Rat { return Rat{new(big.Rat).Sub(x.val(), y.val())} }
func (x Rat) Mul(y Rat) Rat { return Rat{new(big.Rat).Mul(x.val(), y.val())} }
func (x Rat) Neg() Rat      { return Rat{new(big.Rat).Neg(x.val())} }
func (x Rat) Abs() Rat      { return Rat{new(big.Rat).Abs(x.val())} }
func (x Rat) Cmp(y Rat) int { return x.val().Cmp(y.val()) }
func (x Rat) Sign() int     { return x.val().Sign() }
func (x Rat) IsInt() bool   { return x.val().IsInt() }

// Quo returns x/y exactly, or 0 when y is 0.
func (x Rat) Quo(y Rat) Rat {
	if y.Sign() == 0 {
		return Rat{}
	}
	return Rat{new(big.Rat).Quo(x.val(), y.val())}
}

// Floor rounds toward negative infinity.
func (x Rat) Floor() Rat {
	v := x.val()
	if v.IsInt() {
		return x
	}
	// big.Int.Div is Euclidean; the denominator is positive so this floors.
	q := new(big.Int).Div(v.Num(), v.Denom())
	return Rat{new(big.Rat).SetInt(q)}
}

// Ceil rounds toward positive infinity.
func (x Rat) Ceil() Rat {
	return x.Neg().Floor().Neg()
}

func (x Rat) Float64() float64 {
	f, _ := x.val().Float64()
	return f
}

func (x Rat) Rat() *big.Rat {
	return new(big.Rat).Set(x.val())
}

// String renders integers without a denominator ("6") and other values as
// "num/den" ("-5/2").
func (x Rat) String() string {
	v := x.val()
	if v.IsInt() {
		return v.Num().String()
	}
	return v.RatString()
}

// RatKernel constructs Rat values.
type RatKernel struct{}

func (RatKernel) Name() string          { return "rat" }
func (RatKernel) Zero() Rat             { return Rat{} }
func (RatKernel) One() Rat              { return Rat{big.NewRat(1, 1)} }
func (RatKernel) FromInt64(n int64) Rat { return Rat{big.NewRat(n, 1)} }

func (RatKernel) FromRat(r *big.Rat) (Rat, bool) {
	if r == nil {
		return Rat{}, false
	}
	return RatOf(r), true
}

// Approximate returns a rational approximation of f whose denominator does
// not exceed maxDen, using continued fractions. Used to turn floating point
// roots into candidate real values.
//
// Example:
//
//	Approximate(3.14159, 1000) ≈ 355/113
func Approximate(f float64, maxDen int64) *big.Rat {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		panic("numeric: cannot approximate NaN or Inf")
	}
	if maxDen < 1 {
		maxDen = 1
	}
	sign := int64(1)
	if f < 0 {
		sign = -1
		f = -f
	}
	if f > math.MaxInt64/2 {
		r := new(big.Rat)
		r.SetFloat64(float64(sign) * math.Floor(f))
		return r
	}

	tolerance := 1.0 / (float64(maxDen) * float64(maxDen))
	h1, h2 := int64(f), int64(1)
	k1, k2 := int64(1), int64(0)
	remaining := f - math.Floor(f)

	for k1 <= maxDen {
		if math.Abs(float64(h1)/float64(k1)-f) < tolerance || remaining < tolerance {
			break
		}
		inv := 1.0 / remaining
		a := int64(inv)
		nh, nk := a*h1+h2, a*k1+k2
		if nk > maxDen || nk <= 0 || nh < 0 {
			break
		}
		h1, h2 = nh, h1
		k1, k2 = nk, k1
		remaining = inv - float64(a)
	}
	return big.NewRat(sign*h1, k1)
}
