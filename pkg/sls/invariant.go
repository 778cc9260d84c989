package sls

import (
	"fmt"

	"github.com/gitrdm/goslsarith/pkg/numeric"
)

// checkInvariants verifies that every definition holds and every cached
// argument sum matches the values. It runs when Config.CheckInvariants is
// set or the binary is built with the slsdebug tag.
func (e *Engine[T]) checkInvariants() {
	if !e.cfg.CheckInvariants && !debugBuild {
		return
	}
	for v := range e.vars {
		if !e.vars[v].defined() {
			continue
		}
		if got, want := e.value(Var(v)), e.eval(Var(v)); !numeric.Equal(got, want) {
			panic(&InvariantError{Msg: fmt.Sprintf("%s = %s but its definition gives %s", e.name(Var(v)), got, want)})
		}
	}
	for i := range e.ineqs {
		in := &e.ineqs[i]
		if got, want := in.argsValue, e.argsValue(&in.linearTerm); !numeric.Equal(got, want) {
			panic(&InvariantError{Msg: fmt.Sprintf("cached sum of %s is %s, expected %s", e.m.String(in.atom), got, want)})
		}
	}
}
