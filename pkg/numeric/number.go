// Package numeric provides the number kernels used by the arithmetic
// local-search engine.
//
// The engine is written once against the generic Number constraint and is
// instantiated with one of two kernels, selected once per search episode:
//
//   - Rat: arbitrary-precision rationals backed by math/big. Every value,
//     integer or real, is representable and no operation overflows.
//   - Int: 64-bit integers with overflow detection. Much cheaper, but only
//     usable when every variable is integer-sorted and every numeral is an
//     integer. Overflow is signalled by a panic carrying *OverflowError,
//     which the engine recovers at its entry points.
//
// Values are immutable: every operation returns a fresh value, so values can
// be stored in slices and copied freely.
//
// Division convention (shared by both kernels and all helpers):
//
//	x / 0   = 0
//	x div 0 = 0
//	x mod 0 = x
//	x rem 0 = x
//
// With this convention x = y*(x div y) + (x mod y) holds for every x and y.
package numeric

import (
	"fmt"
	"math/big"
)

// Number is the capability set the engine needs from a numeric value type.
// T is the implementing type itself (Rat or Int).
type Number[T any] interface {
	Add(T) T
	Sub(T) T
	Mul(T) T
	// Quo is exact division for Rat and floor division for Int.
	// Division by zero yields zero.
	Quo(T) T
	Neg() T
	Abs() T
	Cmp(T) int
	Sign() int
	IsInt() bool
	Floor() T
	Ceil() T
	Float64() float64
	// Rat returns a fresh copy of the value as a big.Rat.
	Rat() *big.Rat
	String() string
}

// Kernel constructs values of a Number type.
type Kernel[T Number[T]] interface {
	Name() string
	Zero() T
	One() T
	FromInt64(n int64) T
	// FromRat converts r, reporting false if the kernel cannot represent it.
	FromRat(r *big.Rat) (T, bool)
}

// KernelKind names one of the two kernel implementations.
type KernelKind int

const (
	// KindInt is the overflow-checked int64 kernel.
	KindInt KernelKind = iota
	// KindRat is the arbitrary-precision rational kernel.
	KindRat
)

func (k KernelKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindRat:
		return "rat"
	default:
		return fmt.Sprintf("KernelKind(%d)", int(k))
	}
}

// Select picks the kernel for an episode. The integer kernel is only chosen
// when the problem has no real-sorted terms and every numeral fits in int64.
func Select(needsReals bool, numeralsFitInt64 bool) KernelKind {
	if needsReals || !numeralsFitInt64 {
		return KindRat
	}
	return KindInt
}

// OverflowError reports that an Int kernel operation left the int64 range.
type OverflowError struct {
	Op string
}

func (e *OverflowError) Error() string {
	return "numeric: int64 overflow in " + e.Op
}

func overflow(op string) {
	panic(&OverflowError{Op: op})
}

// Min returns the smaller of a and b.
func Min[T Number[T]](a, b T) T {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max[T Number[T]](a, b T) T {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// Equal reports whether a and b denote the same number.
func Equal[T Number[T]](a, b T) bool {
	return a.Cmp(b) == 0
}
