package numeric_test

import (
	"fmt"

	"github.com/gitrdm/goslsarith/pkg/numeric"
)

// ExampleMod shows the Euclidean remainder and its companion IDiv,
// including the zero divisor convention.
func ExampleMod() {
	for _, c := range [][2]int64{{7, 3}, {-1, 3}, {7, -3}, {7, 0}} {
		a, b := numeric.Int(c[0]), numeric.Int(c[1])
		fmt.Printf("%d mod %d = %s, div = %s\n", c[0], c[1], numeric.Mod(a, b), numeric.IDiv(a, b))
	}
	// Output:
	// 7 mod 3 = 1, div = 2
	// -1 mod 3 = 2, div = -1
	// 7 mod -3 = 1, div = -2
	// 7 mod 0 = 7, div = 0
}

// ExampleRoot returns the nearest integer root and whether it is exact.
func ExampleRoot() {
	k := numeric.IntKernel{}
	fmt.Println(numeric.Root(k, 3, numeric.Int(-27)))
	fmt.Println(numeric.Root(k, 2, numeric.Int(10)))
	fmt.Println(numeric.Root(k, 2, numeric.Int(-4)))
	// Output:
	// -3 true
	// 3 false
	// 0 false
}

// ExampleSelect picks the cheapest kernel that can represent a problem.
func ExampleSelect() {
	fmt.Println(numeric.Select(false, true))
	fmt.Println(numeric.Select(true, true))
	fmt.Println(numeric.Select(false, false))
	// Output:
	// int
	// rat
	// rat
}

func ExampleRat_Quo() {
	k := numeric.RatKernel{}
	x := numeric.NewRat(5, 1)
	fmt.Println(x.Quo(numeric.NewRat(2, 1)), x.Quo(k.Zero()))
	// Output: 5/2 0
}
