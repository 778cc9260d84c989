package sls

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/gitrdm/goslsarith/pkg/numeric"
)

// Display writes variables, definitions and atoms in a readable form.
func (e *Engine[T]) Display(w io.Writer) error {
	var b strings.Builder
	for v := range e.vars {
		vi := &e.vars[v]
		fmt.Fprintf(&b, "v%d %s := %s", v, e.name(Var(v)), vi.value)
		if vi.lo != nil || vi.hi != nil {
			b.WriteString(" ")
			b.WriteString(e.boundsString(vi))
		}
		if vi.defined() {
			fmt.Fprintf(&b, " def %s", e.defString(Var(v)))
		}
		b.WriteString("\n")
	}
	for i := range e.ineqs {
		in := &e.ineqs[i]
		fmt.Fprintf(&b, "%s: %s %s 0 [w %d, holds %t, host %s]\n",
			e.m.String(in.atom), e.termString(&in.linearTerm), in.op, in.weight, in.holds(), e.host.Truth(in.atom))
	}
	for _, d := range e.distincts {
		fmt.Fprintf(&b, "%s [holds %t, host %s]\n", e.m.String(d), e.evalDistinct(d), e.host.Truth(d))
	}
	fmt.Fprintf(&b, "dts %g\n", e.DTS())
	if e.cfg.UCB {
		for i := 0; i < e.ucb.Arms(); i++ {
			fmt.Fprintf(&b, "arm %s [pulls %.1f, mean %.3f]\n", MoveKind(i), e.ucb.Pulls(i), e.ucb.Mean(i))
		}
	}
	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "display sls state")
}

func (e *Engine[T]) boundsString(vi *varInfo[T]) string {
	lo, hi := "(-inf", "+inf)"
	if vi.lo != nil {
		lo = "[" + vi.lo.value.String()
		if vi.lo.strict {
			lo = "(" + vi.lo.value.String()
		}
	}
	if vi.hi != nil {
		hi = vi.hi.value.String() + "]"
		if vi.hi.strict {
			hi = vi.hi.value.String() + ")"
		}
	}
	return lo + ", " + hi
}

func (e *Engine[T]) termString(t *linearTerm[T]) string {
	var parts []string
	for _, a := range t.args {
		if numeric.Equal(a.coeff, e.one()) {
			parts = append(parts, fmt.Sprintf("v%d", a.v))
		} else {
			parts = append(parts, fmt.Sprintf("%s*v%d", a.coeff, a.v))
		}
	}
	if t.coeff.Sign() != 0 || len(parts) == 0 {
		parts = append(parts, t.coeff.String())
	}
	return strings.Join(parts, " + ")
}

func (e *Engine[T]) defString(v Var) string {
	vi := &e.vars[v]
	switch vi.op {
	case opAdd:
		return e.termString(&e.adds[vi.defIdx].linearTerm)
	case opMul:
		var parts []string
		for _, p := range e.muls[vi.defIdx].monomial {
			if p.p == 1 {
				parts = append(parts, fmt.Sprintf("v%d", p.v))
			} else {
				parts = append(parts, fmt.Sprintf("v%d^%d", p.v, p.p))
			}
		}
		return strings.Join(parts, " * ")
	default:
		d := &e.ops[vi.defIdx]
		if d.arg2 == NullVar {
			return fmt.Sprintf("%s v%d", d.op, d.arg1)
		}
		return fmt.Sprintf("v%d %s v%d", d.arg1, d.op, d.arg2)
	}
}
