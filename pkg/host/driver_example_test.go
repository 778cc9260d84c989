package host_test

import (
	"context"
	"fmt"
	"math/big"

	"github.com/gitrdm/goslsarith/pkg/host"
	"github.com/gitrdm/goslsarith/pkg/problem"
	"github.com/gitrdm/goslsarith/pkg/sls"
)

// ExampleDriver_Solve wires a parsed problem, the Boolean driver and the
// arithmetic engine together.
func ExampleDriver_Solve() {
	p, err := problem.Parse([]byte(`
declare: {x: int, y: int}
assert:
  - "x + y == 7"
  - "x >= 2"
  - "y >= 3"
`))
	if err != nil {
		panic(err)
	}
	d, err := host.New(p.M, p.Asserts, host.WithSeed(1))
	if err != nil {
		panic(err)
	}
	cfg := sls.DefaultConfig()
	cfg.Seed = 1
	plugin, err := sls.NewPlugin(p.M, d, sls.SelectKernel(p.M), sls.WithConfig(cfg))
	if err != nil {
		panic(err)
	}

	res, err := d.Solve(context.Background(), plugin)
	fmt.Println(res, err)
	sum := new(big.Rat)
	for _, a := range d.Model(plugin, false) {
		sum.Add(sum, a.Rat)
	}
	fmt.Println("x + y =", sum.RatString())
	// Output:
	// sat <nil>
	// x + y = 7
}
