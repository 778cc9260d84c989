package sls_test

import (
	"fmt"
	"math/big"

	"github.com/gitrdm/goslsarith/pkg/expr"
	"github.com/gitrdm/goslsarith/pkg/sls"
)

// freeHost requires nothing of any atom.
type freeHost struct{}

func (freeHost) Truth(expr.ID) sls.Truth { return sls.Unknown }
func (freeHost) Units() []sls.Literal    { return nil }
func (freeHost) Trail() sls.Trail        { return sls.NopTrail{} }

func ExampleNewPlugin() {
	m := expr.NewManager()
	x := m.IntConst("x")
	w := m.Mod(x, m.Int(4))

	p, err := sls.NewPlugin(m, freeHost{}, sls.SelectKernel(m))
	if err != nil {
		panic(err)
	}
	if _, err := p.RegisterTerm(w); err != nil {
		panic(err)
	}
	p.Initialize()

	p.SetValue(x, m.Int(-3))
	v, _ := p.Value(w)
	fmt.Println("x mod 4 =", v.RatString())

	// Setting the term repairs its argument.
	ok := p.SetValue(w, m.Int(3))
	xv, _ := p.Value(x)
	fmt.Println(ok, new(big.Int).Mod(xv.Num(), big.NewInt(4)))
	// Output:
	// x mod 4 = 1
	// true 3
}
