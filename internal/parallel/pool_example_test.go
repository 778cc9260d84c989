package parallel_test

import (
	"context"
	"fmt"

	"github.com/gitrdm/goslsarith/internal/parallel"
)

// ExampleMap runs a function over its inputs on two workers; results keep
// the input order.
func ExampleMap() {
	squares, err := parallel.Map(context.Background(), 2, []int{1, 2, 3, 4}, func(_ context.Context, n int) int {
		return n * n
	})
	fmt.Println(squares, err)
	// Output: [1 4 9 16] <nil>
}
