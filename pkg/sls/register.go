// Package sls implements the arithmetic theory of a stochastic local-search
// satisfiability solver.
//
// This file implements term registration. Terms are flattened into the
// variable table bottom-up: numerals fold into coefficients, sums and
// numeral factors become linear definitions, products of variables become
// monomials, and comparisons become atoms args + coeff <op> 0.
//
// Invariants:
//   - The variables of subterms are created before the variable of a term
//   - A variable has at most one definition
//   - A failed registration leaves the tables as they were before the call
package sls

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"

	"github.com/gitrdm/goslsarith/pkg/expr"
	"github.com/gitrdm/goslsarith/pkg/numeric"
)

// registerError aborts a registration; RegisterTerm turns it into an error.
type registerError struct{ err error }

// RegisterTerm integrates id and its subterms. Arithmetic terms return
// their variable; Boolean expressions register the atoms they contain and
// return NullVar. Registration is idempotent and creates the variables of
// subterms before the variable of the term itself.
//
// A term the kernel cannot represent (a real-sorted term or a numeral
// outside the int64 range under the Int kernel, or a folded constant or
// initial value that overflows it) yields an error wrapping
// ErrSortMismatch. Everything registered by the failed call is dropped, so
// the engine stays usable.
func (e *Engine[T]) RegisterTerm(id expr.ID) (v Var, err error) {
	mk := e.mark()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		switch re := r.(type) {
		case registerError:
			err = re.err
		case *numeric.OverflowError:
			e.stats.Overflows++
			err = errors.Wrapf(ErrSortMismatch, "%s: %v", e.m.String(id), re)
		default:
			panic(r)
		}
		e.truncate(mk)
		v = NullVar
	}()
	return e.register(id), nil
}

// regMark records the table sizes before a registration.
type regMark struct {
	vars, muls, adds, ops, ineqs, distincts int
}

func (e *Engine[T]) mark() regMark {
	return regMark{
		vars:      len(e.vars),
		muls:      len(e.muls),
		adds:      len(e.adds),
		ops:       len(e.ops),
		ineqs:     len(e.ineqs),
		distincts: len(e.distincts),
	}
}

// truncate drops every variable, definition and atom created after mk.
func (e *Engine[T]) truncate(mk regMark) {
	for id, v := range e.expr2var {
		if int(v) >= mk.vars {
			delete(e.expr2var, id)
		}
	}
	for id, i := range e.atoms {
		if i >= mk.ineqs {
			delete(e.atoms, id)
		}
	}
	for _, d := range e.distincts[mk.distincts:] {
		delete(e.isDist, d)
	}
	e.vars = e.vars[:mk.vars]
	e.muls = e.muls[:mk.muls]
	e.adds = e.adds[:mk.adds]
	e.ops = e.ops[:mk.ops]
	e.ineqs = e.ineqs[:mk.ineqs]
	e.distincts = e.distincts[:mk.distincts]
	below := func(n int) func(int) bool { return func(i int) bool { return i >= n } }
	for v := range e.vars {
		vi := &e.vars[v]
		vi.muls = slices.DeleteFunc(vi.muls, below(mk.muls))
		vi.adds = slices.DeleteFunc(vi.adds, below(mk.adds))
		vi.ops = slices.DeleteFunc(vi.ops, below(mk.ops))
		vi.ineqs = slices.DeleteFunc(vi.ineqs, below(mk.ineqs))
		vi.linearOccurs = slices.DeleteFunc(vi.linearOccurs, func(o occurrence[T]) bool { return o.ineq >= mk.ineqs })
	}
}

func (e *Engine[T]) register(id expr.ID) Var {
	if e.m.IsArith(id) {
		return e.mkVar(id)
	}
	switch e.m.Kind(id) {
	case expr.KindLe, expr.KindLt, expr.KindGe, expr.KindGt:
		e.initIneq(id)
	case expr.KindEq:
		if e.m.IsAtom(id) {
			e.initIneq(id)
		} else {
			e.registerArgs(id)
		}
	case expr.KindDistinct:
		if e.isDist[id] {
			break
		}
		e.registerArgs(id)
		e.isDist[id] = true
		e.distincts = append(e.distincts, id)
	case expr.KindNot, expr.KindAnd, expr.KindOr:
		e.registerArgs(id)
	}
	return NullVar
}

func (e *Engine[T]) registerArgs(id expr.ID) {
	for _, a := range e.m.Args(id) {
		e.register(a)
	}
}

func (e *Engine[T]) mkVar(id expr.ID) Var {
	if v, ok := e.expr2var[id]; ok {
		return v
	}
	return e.mkTerm(id)
}

func (e *Engine[T]) newVar(id expr.ID) Var {
	sort := e.m.Sort(id)
	if sort == expr.SortReal && !e.reals {
		panic(registerError{errors.Wrapf(ErrSortMismatch, "real term %s in %s kernel", e.m.String(id), e.k.Name())})
	}
	v := Var(len(e.vars))
	e.vars = append(e.vars, varInfo[T]{
		expr:   id,
		sort:   sort,
		defIdx: -1,
		rng:    e.k.FromInt64(e.cfg.InitialRange),
	})
	e.expr2var[id] = v
	return v
}

func (e *Engine[T]) toNum(id expr.ID) T {
	r, _ := e.m.Numeral(id)
	n, ok := e.k.FromRat(r)
	if !ok || (e.m.Sort(id) == expr.SortReal && !e.reals) {
		panic(registerError{errors.Wrapf(ErrSortMismatch, "numeral %s in %s kernel", r.RatString(), e.k.Name())})
	}
	return n
}

func (e *Engine[T]) mkTerm(id expr.ID) Var {
	switch e.m.Kind(id) {
	case expr.KindNumeral:
		n := e.toNum(id)
		v := e.newVar(id)
		vi := &e.vars[v]
		vi.value, vi.best = n, n
		vi.lo = &bound[T]{value: n}
		vi.hi = &bound[T]{value: n}
		return v
	case expr.KindConst:
		return e.newVar(id)
	case expr.KindAdd, expr.KindNeg:
		return e.mkLinear(id)
	case expr.KindMul:
		for _, a := range e.m.Args(id) {
			if e.m.Kind(a) == expr.KindNumeral {
				return e.mkLinear(id)
			}
		}
		return e.mkMul(id)
	case expr.KindDiv:
		return e.mkOp(id, opDiv)
	case expr.KindIDiv:
		return e.mkOp(id, opIDiv)
	case expr.KindMod:
		return e.mkOp(id, opMod)
	case expr.KindRem:
		return e.mkOp(id, opRem)
	case expr.KindPower:
		return e.mkOp(id, opPower)
	case expr.KindAbs:
		return e.mkOp(id, opAbs)
	case expr.KindToInt:
		return e.mkOp(id, opToInt)
	case expr.KindToReal:
		return e.mkOp(id, opToReal)
	}
	panic(registerError{errors.Errorf("sls: unsupported term %s", e.m.String(id))})
}

// mkLinear defines id as a linear term. A term that reduces to 1*x is an
// alias of x.
func (e *Engine[T]) mkLinear(id expr.ID) Var {
	var t linearTerm[T]
	e.addArgs(&t, id, e.one())
	if len(t.args) == 1 && t.coeff.Sign() == 0 && numeric.Equal(t.args[0].coeff, e.one()) {
		e.expr2var[id] = t.args[0].v
		return t.args[0].v
	}
	v := e.newVar(id)
	idx := len(e.adds)
	e.define(v, opAdd, idx)
	e.adds = append(e.adds, addDef[T]{linearTerm: t, v: v})
	for _, a := range t.args {
		e.vars[a.v].adds = append(e.vars[a.v].adds, idx)
	}
	e.vars[v].value = e.eval(v)
	return v
}

// addArgs adds sign*id to t, flattening sums, negation and numeral
// factors.
func (e *Engine[T]) addArgs(t *linearTerm[T], id expr.ID, sign T) {
	switch e.m.Kind(id) {
	case expr.KindNumeral:
		t.coeff = t.coeff.Add(sign.Mul(e.toNum(id)))
	case expr.KindAdd:
		for _, a := range e.m.Args(id) {
			e.addArgs(t, a, sign)
		}
	case expr.KindNeg:
		e.addArgs(t, e.m.Arg(id, 0), sign.Neg())
	case expr.KindMul:
		c := sign
		var rest []expr.ID
		for _, a := range e.m.Args(id) {
			if e.m.Kind(a) == expr.KindNumeral {
				c = c.Mul(e.toNum(a))
			} else {
				rest = append(rest, a)
			}
		}
		switch len(rest) {
		case 0:
			t.coeff = t.coeff.Add(c)
		case 1:
			e.addArgs(t, rest[0], c)
		default:
			e.addArg(t, c, e.mkVar(e.m.Mul(rest...)))
		}
	default:
		e.addArg(t, sign, e.mkVar(id))
	}
}

// addArg adds c*v to t, merging with an existing occurrence of v.
func (e *Engine[T]) addArg(t *linearTerm[T], c T, v Var) {
	if c.Sign() == 0 {
		return
	}
	for i := range t.args {
		if t.args[i].v != v {
			continue
		}
		t.args[i].coeff = t.args[i].coeff.Add(c)
		if t.args[i].coeff.Sign() == 0 {
			t.args = append(t.args[:i], t.args[i+1:]...)
		}
		return
	}
	t.args = append(t.args, linArg[T]{coeff: c, v: v})
}

func (e *Engine[T]) mkMul(id expr.ID) Var {
	var mono monomial
	for _, a := range e.m.Args(id) {
		w := e.mkVar(a)
		found := false
		for i := range mono {
			if mono[i].v == w {
				mono[i].p++
				found = true
				break
			}
		}
		if !found {
			mono = append(mono, power{v: w, p: 1})
		}
	}
	v := e.newVar(id)
	idx := len(e.muls)
	e.define(v, opMul, idx)
	e.muls = append(e.muls, mulDef{v: v, monomial: mono})
	for _, p := range mono {
		e.vars[p.v].muls = append(e.vars[p.v].muls, idx)
	}
	e.vars[v].value = e.eval(v)
	return v
}

func (e *Engine[T]) mkOp(id expr.ID, op opKind) Var {
	args := e.m.Args(id)
	x := e.mkVar(args[0])
	y := NullVar
	if len(args) > 1 {
		y = e.mkVar(args[1])
	}
	v := e.newVar(id)
	idx := len(e.ops)
	e.define(v, op, idx)
	e.ops = append(e.ops, opDef{v: v, op: op, arg1: x, arg2: y})
	e.vars[x].ops = append(e.vars[x].ops, idx)
	if y != NullVar && y != x {
		e.vars[y].ops = append(e.vars[y].ops, idx)
	}
	e.vars[v].value = e.eval(v)
	return v
}

// define binds v to a definition. A variable has at most one.
func (e *Engine[T]) define(v Var, op opKind, idx int) {
	vi := &e.vars[v]
	if vi.defined() {
		panic(&InvariantError{Msg: fmt.Sprintf("variable %s already defined by %s", e.name(v), vi.op)})
	}
	vi.op, vi.defIdx = op, idx
}

// initIneq encodes an arithmetic comparison as args + coeff <op> 0.
func (e *Engine[T]) initIneq(id expr.ID) {
	if _, ok := e.atoms[id]; ok {
		return
	}
	a, b := e.m.Arg(id, 0), e.m.Arg(id, 1)
	one := e.one()
	var t linearTerm[T]
	var op ineqKind
	switch e.m.Kind(id) {
	case expr.KindLe:
		op = ineqLE
		e.addArgs(&t, a, one)
		e.addArgs(&t, b, one.Neg())
	case expr.KindLt:
		op = ineqLT
		e.addArgs(&t, a, one)
		e.addArgs(&t, b, one.Neg())
	case expr.KindGe:
		op = ineqLE
		e.addArgs(&t, b, one)
		e.addArgs(&t, a, one.Neg())
	case expr.KindGt:
		op = ineqLT
		e.addArgs(&t, b, one)
		e.addArgs(&t, a, one.Neg())
	default:
		op = ineqEQ
		e.addArgs(&t, a, one)
		e.addArgs(&t, b, one.Neg())
	}

	idx := len(e.ineqs)
	in := ineq[T]{linearTerm: t, atom: id, op: op, rhs: t.coeff.Neg(), isLinear: true, weight: e.cfg.PawsInit}
	for _, arg := range t.args {
		vi := &e.vars[arg.v]
		vi.linearOccurs = append(vi.linearOccurs, occurrence[T]{coeff: arg.coeff, ineq: idx})
		e.addIneqOf(arg.v, idx)
		if vi.op != opMul {
			in.addNonlinear(arg.v, nonlinearCoeff[T]{v: arg.v, coeff: arg.coeff, p: 1})
			continue
		}
		in.isLinear = false
		mono := e.muls[vi.defIdx].monomial
		in.monomials = append(in.monomials, mono)
		for _, p := range mono {
			in.addNonlinear(p.v, nonlinearCoeff[T]{v: arg.v, coeff: arg.coeff, p: p.p})
			e.addIneqOf(p.v, idx)
		}
	}
	in.argsValue = e.argsValue(&in.linearTerm)
	e.ineqs = append(e.ineqs, in)
	e.atoms[id] = idx
}

func (in *ineq[T]) addNonlinear(x Var, nc nonlinearCoeff[T]) {
	for i := range in.nonlinear {
		if in.nonlinear[i].x == x {
			in.nonlinear[i].coeffs = append(in.nonlinear[i].coeffs, nc)
			return
		}
	}
	in.nonlinear = append(in.nonlinear, nonlinearOcc[T]{x: x, coeffs: []nonlinearCoeff[T]{nc}})
}

func (e *Engine[T]) addIneqOf(v Var, idx int) {
	vi := &e.vars[v]
	for _, i := range vi.ineqs {
		if i == idx {
			return
		}
	}
	vi.ineqs = append(vi.ineqs, idx)
}
