package bandit_test

import (
	"fmt"
	"math/rand/v2"

	"github.com/gitrdm/goslsarith/internal/bandit"
)

// ExampleUCB settles on the arm that pays.
func ExampleUCB() {
	u := bandit.New(2, bandit.Config{Constant: 0.1, InitPull: true}, rand.New(rand.NewPCG(1, 2)))
	for i := 0; i < 100; i++ {
		arm := u.Select(nil)
		reward := 0.0
		if arm == 1 {
			reward = 1
		}
		u.Update(arm, reward)
	}
	fmt.Println(u.Select(nil), u.Pulls(0), u.Mean(1))
	// Output: 1 1 1
}
