package numeric

import (
	"math"
	"math/big"
)

// FloorQuo returns floor(a/b), or 0 when b is 0.
func FloorQuo[T Number[T]](a, b T) T {
	return a.Quo(b).Floor()
}

// CeilQuo returns ceil(a/b), or 0 when b is 0.
func CeilQuo[T Number[T]](a, b T) T {
	return a.Neg().Quo(b).Floor().Neg()
}

// Mod is the Euclidean remainder: 0 <= Mod(a, b) < |b| for b != 0, and
// Mod(a, 0) = a.
//
// Examples:
//
//	Mod(7, 3)  = 1
//	Mod(-1, 3) = 2
//	Mod(7, -3) = 1
func Mod[T Number[T]](a, b T) T {
	if b.Sign() == 0 {
		return a
	}
	ab := b.Abs()
	return a.Sub(ab.Mul(FloorQuo(a, ab)))
}

// IDiv is Euclidean integer division, the companion of Mod:
// a = b*IDiv(a, b) + Mod(a, b). IDiv(a, 0) = 0.
func IDiv[T Number[T]](a, b T) T {
	if b.Sign() == 0 {
		return b
	}
	return a.Sub(Mod(a, b)).Quo(b)
}

// Rem takes the sign of the divisor: Rem(a, b) = Mod(a, b) for b >= 0 and
// -Mod(a, b) otherwise. Rem(a, 0) = a.
func Rem[T Number[T]](a, b T) T {
	m := Mod(a, b)
	if b.Sign() < 0 {
		return m.Neg()
	}
	return m
}

// Pow returns a^n.
func Pow[T Number[T]](k Kernel[T], a T, n uint) T {
	result := k.One()
	base := a
	for n > 0 {
		if n&1 == 1 {
			result = result.Mul(base)
		}
		n >>= 1
		if n > 0 {
			base = base.Mul(base)
		}
	}
	return result
}

// Root returns the n-th root of a. For integers it is the integer root
// closest to the real root; exact reports whether Root(a)^n == a. Even roots
// of negative numbers are not defined and return (0, false).
//
// For non-integer rationals the root is computed in floating point and
// approximated by a rational with a bounded denominator.
func Root[T Number[T]](k Kernel[T], n uint, a T) (root T, exact bool) {
	switch {
	case n == 0:
		return k.One(), a.Cmp(k.One()) == 0
	case n == 1:
		return a, true
	case a.Sign() < 0 && n%2 == 0:
		return k.Zero(), false
	case a.Sign() == 0:
		return a, true
	}

	neg := a.Sign() < 0
	abs := a.Abs()

	var r T
	if abs.IsInt() {
		x := abs.Rat().Num()
		lo := intRootFloor(n, x)
		hi := new(big.Int).Add(lo, big.NewInt(1))
		loPow := new(big.Int).Exp(lo, big.NewInt(int64(n)), nil)
		hiPow := new(big.Int).Exp(hi, big.NewInt(int64(n)), nil)
		best := lo
		if new(big.Int).Sub(hiPow, x).Cmp(new(big.Int).Sub(x, loPow)) < 0 {
			best = hi
		}
		v, ok := k.FromRat(new(big.Rat).SetInt(best))
		if !ok {
			return k.Zero(), false
		}
		r = v
	} else {
		f := math.Pow(abs.Float64(), 1/float64(n))
		v, ok := k.FromRat(Approximate(f, 1<<20))
		if !ok {
			return k.Zero(), false
		}
		r = v
	}
	if neg {
		r = r.Neg()
	}
	return r, Pow(k, r, n).Cmp(a) == 0
}

// intRootFloor returns floor(x^(1/n)) for x >= 0 by bisection.
func intRootFloor(n uint, x *big.Int) *big.Int {
	lo := big.NewInt(0)
	hi := new(big.Int).Lsh(big.NewInt(1), uint(x.BitLen())/n+1)
	one := big.NewInt(1)
	exp := big.NewInt(int64(n))
	for lo.Cmp(hi) < 0 {
		mid := new(big.Int).Add(lo, hi)
		mid.Add(mid, one)
		mid.Rsh(mid, 1)
		if new(big.Int).Exp(mid, exp, nil).Cmp(x) <= 0 {
			lo = mid
		} else {
			hi = mid.Sub(mid, one)
		}
	}
	return lo
}

// factorLimit bounds trial division; the cofactor left above it is returned
// as a single factor.
const factorLimit = 1 << 16

// Factor returns the prime factorization of |n| (with repetition) for an
// integer n. Returns nil for 0, ±1 and non-integers.
//
// Example:
//
//	Factor(-12) = [2 2 3]
func Factor[T Number[T]](k Kernel[T], n T) []T {
	if !n.IsInt() {
		return nil
	}
	x := new(big.Int).Abs(n.Rat().Num())
	if x.Cmp(big.NewInt(1)) <= 0 {
		return nil
	}
	var factors []T
	appendFactor := func(f *big.Int) {
		if v, ok := k.FromRat(new(big.Rat).SetInt(f)); ok {
			factors = append(factors, v)
		}
	}
	p := big.NewInt(2)
	rem := new(big.Int)
	quo := new(big.Int)
	sq := new(big.Int)
	for p.Int64() <= factorLimit && sq.Mul(p, p).Cmp(x) <= 0 {
		quo.QuoRem(x, p, rem)
		if rem.Sign() == 0 {
			appendFactor(new(big.Int).Set(p))
			x.Set(quo)
			continue
		}
		if p.Int64() == 2 {
			p.SetInt64(3)
		} else {
			p.Add(p, big.NewInt(2))
		}
	}
	if x.Cmp(big.NewInt(1)) > 0 {
		appendFactor(x)
	}
	return factors
}
