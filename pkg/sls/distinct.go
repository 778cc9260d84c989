package sls

import (
	"github.com/gitrdm/goslsarith/pkg/expr"
	"github.com/gitrdm/goslsarith/pkg/numeric"
)

// evalDistinct reports whether the arguments of atom are pairwise
// different.
func (e *Engine[T]) evalDistinct(atom expr.ID) bool {
	args := e.m.Args(atom)
	for i := range args {
		for j := i + 1; j < len(args); j++ {
			if numeric.Equal(e.exprValue(args[i]), e.exprValue(args[j])) {
				return false
			}
		}
	}
	return true
}

func (e *Engine[T]) exprValue(id expr.ID) T {
	if v, ok := e.varOf(id); ok {
		return e.value(v)
	}
	return e.k.Zero()
}

// repairDistinct separates an equal pair by one when want is true, and
// equates the first two arguments otherwise.
func (e *Engine[T]) repairDistinct(atom expr.ID, want bool) bool {
	args := e.m.Args(atom)
	if !want {
		x, okx := e.varOf(args[0])
		y, oky := e.varOf(args[1])
		if !okx || !oky {
			return false
		}
		if e.update(y, e.value(x)) {
			return true
		}
		return e.update(x, e.value(y))
	}
	for i := range args {
		for j := i + 1; j < len(args); j++ {
			x, _ := e.varOf(args[i])
			y, _ := e.varOf(args[j])
			if !numeric.Equal(e.value(x), e.value(y)) {
				continue
			}
			if e.vars[x].isFixed() || (!e.vars[y].isFixed() && e.rng.IntN(2) == 0) {
				x = y
			}
			delta := e.one()
			if e.rng.IntN(2) == 0 {
				delta = delta.Neg()
			}
			return e.applyMove(move[T]{v: x, delta: delta})
		}
	}
	return false
}
