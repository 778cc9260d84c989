// Package sls implements the arithmetic theory of a stochastic local-search
// satisfiability solver.
//
// This file implements move generation and selection for a violated atom.
// Candidate moves come from three sources:
//   - Linear: the smallest change of a variable with a linear coefficient
//     that gives the atom its required truth value
//   - Quadratic: values around the real roots when a variable occurs squared
//   - Reset: steps of one and jumps to 0, 1, -1 or a bound for variables of
//     higher degree
//
// Moves are tabu filtered, scored by the weighted change of satisfied atoms
// with a small reward for reduced distance, and applied by hill climbing,
// plateau moves, a random pick weighted by CB^-breaks, or a random step of
// one. A UCB bandit chooses among these move kinds.
package sls

import (
	"math"
	"math/big"
	"slices"

	"github.com/gitrdm/goslsarith/pkg/numeric"
)

// findMoves fills e.cands with the candidate moves that bring atom idx
// closer to want. Moves blocked by a tabu window are collected in e.tabu.
func (e *Engine[T]) findMoves(idx int, want bool, kind MoveKind) {
	e.cands = e.cands[:0]
	e.tabu = e.tabu[:0]
	in := &e.ineqs[idx]
	for i := range in.nonlinear {
		nl := &in.nonlinear[i]
		if e.vars[nl.x].isFixed() {
			continue
		}
		if b, ok := e.linearIn(nl); ok {
			if b.Sign() != 0 {
				e.findLinearMoves(in, want, nl.x, b, kind)
			}
			continue
		}
		if a, b, ok := e.quadraticIn(nl); ok {
			e.findQuadraticMoves(in, want, nl.x, a, b, kind)
			continue
		}
		e.addUpdate(nl.x, e.one(), kind)
		e.addUpdate(nl.x, e.one().Neg(), kind)
		e.addResetUpdate(nl.x, kind)
	}
}

// addResetUpdate proposes moving x to 0, 1 or -1, or onto one of its
// bounds.
func (e *Engine[T]) addResetUpdate(x Var, kind MoveKind) {
	vi := &e.vars[x]
	xv, one := vi.value, e.one()
	for _, t := range []T{e.k.Zero(), one, one.Neg()} {
		e.addUpdate(x, t.Sub(xv), kind)
	}
	if vi.lo != nil {
		e.addUpdate(x, vi.lo.value.Sub(xv), kind)
	}
	if vi.hi != nil {
		e.addUpdate(x, vi.hi.value.Sub(xv), kind)
	}
}

// maxDraw bounds the half-width of uniform draws.
const maxDraw = math.MaxInt64 / 4

// addRandomUpdate proposes a value for x drawn uniformly from its search
// range (-rng, rng) and moved into its bounds. Real variables get a
// random fractional part in steps of 1/1024.
func (e *Engine[T]) addRandomUpdate(x Var, kind MoveKind) {
	vi := &e.vars[x]
	r := int64(maxDraw)
	if n := vi.rng.Rat(); n.IsInt() && n.Num().IsInt64() && n.Num().Int64() < r {
		r = max(n.Num().Int64(), 1)
	}
	nv := e.k.FromInt64(e.rng.Int64N(2*r-1) - (r - 1))
	if !vi.isInt() {
		nv = nv.Add(e.k.FromInt64(e.rng.Int64N(1024)).Quo(e.k.FromInt64(1024)))
	}
	e.addUpdate(x, nv.Sub(vi.value), kind)
}

// findLinearMoves adds the smallest changes of x, with coefficient c in
// the atom, that make the atom evaluate to want.
func (e *Engine[T]) findLinearMoves(in *ineq[T], want bool, x Var, c T, kind MoveKind) {
	lhs := in.lhs()
	one := e.one()
	switch {
	case in.op == ineqLE && want:
		e.addAtMost(x, c, lhs.Neg(), kind)
	case in.op == ineqLE:
		e.addAtLeast(x, c, one.Sub(lhs), kind)
	case in.op == ineqLT && want:
		e.addAtMost(x, c, lhs.Neg().Sub(one), kind)
	case in.op == ineqLT:
		e.addAtLeast(x, c, lhs.Neg(), kind)
	case want:
		t := lhs.Neg()
		if !e.vars[x].isInt() {
			e.addUpdate(x, t.Quo(c), kind)
			break
		}
		if q, ok := e.exactQuo(t, c, true); ok {
			e.addUpdate(x, q, kind)
			break
		}
		e.addUpdate(x, numeric.FloorQuo(t, c), kind)
		e.addUpdate(x, numeric.CeilQuo(t, c), kind)
	default:
		e.addUpdate(x, one, kind)
		e.addUpdate(x, one.Neg(), kind)
	}
}

// addAtMost adds the delta closest to 0 with c*delta <= t.
func (e *Engine[T]) addAtMost(x Var, c, t T, kind MoveKind) {
	if !e.vars[x].isInt() {
		e.addUpdate(x, t.Quo(c), kind)
		return
	}
	if c.Sign() > 0 {
		e.addUpdate(x, numeric.FloorQuo(t, c), kind)
	} else {
		e.addUpdate(x, numeric.CeilQuo(t, c), kind)
	}
}

// addAtLeast adds the delta closest to 0 with c*delta >= t.
func (e *Engine[T]) addAtLeast(x Var, c, t T, kind MoveKind) {
	if !e.vars[x].isInt() {
		e.addUpdate(x, t.Quo(c), kind)
		return
	}
	if c.Sign() > 0 {
		e.addUpdate(x, numeric.CeilQuo(t, c), kind)
	} else {
		e.addUpdate(x, numeric.FloorQuo(t, c), kind)
	}
}

// findQuadraticMoves solves a*t^2 + b*t + r = 0, where r collects the
// terms that do not depend on x, and proposes values around the roots.
// Candidates are checked exactly; a satisfying value closest to the
// current one wins, otherwise the value with the least distance.
func (e *Engine[T]) findQuadraticMoves(in *ineq[T], want bool, x Var, a, b T, kind MoveKind) {
	xv := e.value(x)
	lhs := in.lhs()
	r := lhs.Sub(a.Mul(xv).Mul(xv)).Sub(b.Mul(xv))
	af, bf, rf := a.Float64(), b.Float64(), r.Float64()
	disc := bf*bf - 4*af*rf
	var roots []float64
	if disc < 0 {
		roots = append(roots, -bf/(2*af))
	} else {
		sq := math.Sqrt(disc)
		roots = append(roots, (-bf+sq)/(2*af), (-bf-sq)/(2*af))
	}

	var cands []T
	isInt := e.vars[x].isInt()
	for _, root := range roots {
		if math.IsNaN(root) || math.IsInf(root, 0) {
			continue
		}
		if isInt {
			f, c := math.Floor(root), math.Ceil(root)
			for _, g := range []float64{f, c, f - 1, c + 1} {
				if n, ok := e.fromFloat(g); ok {
					cands = append(cands, n)
				}
			}
			continue
		}
		n, ok := e.k.FromRat(numeric.Approximate(root, 1<<20))
		if !ok {
			continue
		}
		cands = append(cands, n, n.Add(e.one()), n.Sub(e.one()))
	}

	var best T
	found, bestSat := false, false
	var bestDist, bestDtt T
	for _, t := range cands {
		d := e.dttAt(want, in.op, a.Mul(t).Mul(t).Add(b.Mul(t)).Add(r))
		dist := t.Sub(xv).Abs()
		sat := d.Sign() == 0
		switch {
		case !found:
		case sat && !bestSat:
		case sat && bestSat && dist.Cmp(bestDist) < 0:
		case !sat && !bestSat && d.Cmp(bestDtt) < 0:
		default:
			continue
		}
		best, bestSat, bestDist, bestDtt, found = t, sat, dist, d, true
	}
	if found {
		e.addUpdate(x, best.Sub(xv), kind)
	}
}

func (e *Engine[T]) fromFloat(f float64) (T, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return e.k.Zero(), false
	}
	return e.k.FromRat(new(big.Rat).SetFloat64(f))
}

// addUpdate records moving x by delta, clamped into the bounds of x.
func (e *Engine[T]) addUpdate(x Var, delta T, kind MoveKind) {
	vi := &e.vars[x]
	if vi.isFixed() {
		return
	}
	nv := vi.value.Add(delta)
	if !vi.inBounds(nv) {
		nv = e.initialValue(vi, nv)
		if !vi.inBounds(nv) {
			return
		}
	}
	if vi.isInt() && !nv.IsInt() {
		return
	}
	delta = nv.Sub(vi.value)
	if delta.Sign() == 0 {
		return
	}
	for _, m := range e.cands {
		if m.v == x && numeric.Equal(m.delta, delta) {
			return
		}
	}
	for _, m := range e.tabu {
		if m.v == x && numeric.Equal(m.delta, delta) {
			return
		}
	}
	m := move[T]{v: x, delta: delta}
	if vi.isTabu(e.step, delta) && !(kind == HillclimbPlateau && e.cfg.PlateauBypassesTabu) {
		e.tabu = append(e.tabu, m)
		return
	}
	e.cands = append(e.cands, m)
}

// scoreMove computes the weighted change in satisfied atoms (gain), the
// number of satisfied atoms broken, and a score that adds a small reward
// for reduced distances.
func (e *Engine[T]) scoreMove(m *move[T]) {
	x := m.v
	nv := e.value(x).Add(m.delta)
	gain, dist, breaks := 0.0, 0.0, 0
	for _, i := range e.vars[x].ineqs {
		in := &e.ineqs[i]
		want, ok := e.truth(in.atom)
		if !ok {
			continue
		}
		old := e.dtt(want, in)
		var next T
		if c, linear := e.linearCoeff(in, x); linear {
			next = e.dttDelta(want, in, c, m.delta)
		} else {
			next = e.dttSubst(want, in, x, nv)
		}
		w := float64(in.weight)
		oldOK, newOK := old.Sign() == 0, next.Sign() == 0
		switch {
		case oldOK && !newOK:
			gain -= w
			breaks++
		case !oldOK && newOK:
			gain += w
		}
		od, nd := old.Float64(), next.Float64()
		dist += w * (od - nd) / (1 + od)
	}
	m.gain, m.breaks = gain, breaks
	m.score = gain + 0.01*dist
}

// linearCoeff returns the coefficient of x in a linear atom.
func (e *Engine[T]) linearCoeff(in *ineq[T], x Var) (T, bool) {
	if in.isLinear {
		for _, a := range in.args {
			if a.v == x {
				return a.coeff, true
			}
		}
	}
	return e.k.Zero(), false
}

// rankMoves scores moves and sorts them by score, breaking ties in favour
// of the variable moved least recently in that direction. At most
// MaxMoves moves are kept.
func (e *Engine[T]) rankMoves(moves []move[T]) []move[T] {
	for i := range moves {
		e.scoreMove(&moves[i])
	}
	slices.SortStableFunc(moves, func(a, b move[T]) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		la, lb := e.vars[a.v].lastStep(a.delta), e.vars[b.v].lastStep(b.delta)
		switch {
		case la < lb:
			return -1
		case la > lb:
			return 1
		}
		return 0
	})
	if len(moves) > e.cfg.MaxMoves {
		moves = moves[:e.cfg.MaxMoves]
	}
	return moves
}

// applyMove performs m and opens the tabu window for the reverse
// direction. Reports whether the value changed.
func (e *Engine[T]) applyMove(m move[T]) bool {
	old := e.value(m.v)
	e.update(m.v, old.Add(m.delta))
	if numeric.Equal(e.value(m.v), old) {
		return false
	}
	until := e.step + e.cfg.TabuMin + e.rng.Uint64N(e.cfg.TabuRange)
	e.vars[m.v].setStep(e.step, until, m.delta)
	return true
}

// climb applies the best candidate for atom idx. Hillclimb requires a
// positive score; plateau moves are accepted if they do not lose weight.
func (e *Engine[T]) climb(idx int, want bool, kind MoveKind) bool {
	e.findMoves(idx, want, kind)
	moves := e.cands
	if len(moves) == 0 {
		moves = e.tabu
	}
	moves = e.rankMoves(moves)
	for _, m := range moves {
		if kind == Hillclimb && m.score <= 0 {
			break
		}
		if kind == HillclimbPlateau && m.gain < 0 {
			break
		}
		if e.applyMove(m) {
			return true
		}
	}
	return false
}

// hillclimb makes an improving move, falling back to a plateau move when
// plateaus are allowed.
func (e *Engine[T]) hillclimb(idx int, want bool) bool {
	if e.climb(idx, want, Hillclimb) {
		return true
	}
	return e.cfg.AllowPlateau && e.climb(idx, want, HillclimbPlateau)
}

// randomUpdate draws one of the T best candidates, weighting a candidate
// that breaks b satisfied atoms by CB^-b.
func (e *Engine[T]) randomUpdate(idx int, want bool) bool {
	e.findMoves(idx, want, RandomUpdate)
	if free := e.freeVars(&e.ineqs[idx]); len(free) > 0 {
		e.addRandomUpdate(free[e.rng.IntN(len(free))], RandomUpdate)
	}
	moves := e.cands
	if len(moves) == 0 {
		moves = e.tabu
	}
	if len(moves) == 0 {
		return e.randomIncDec(idx, want)
	}
	moves = e.rankMoves(moves)
	if len(moves) > e.cfg.T {
		moves = moves[:e.cfg.T]
	}
	total := 0.0
	weights := make([]float64, len(moves))
	for i, m := range moves {
		weights[i] = math.Pow(e.cfg.CB, -float64(m.breaks))
		total += weights[i]
	}
	r := e.rng.Float64() * total
	pick := len(moves) - 1
	for i, w := range weights {
		if r < w {
			pick = i
			break
		}
		r -= w
	}
	return e.applyMove(moves[pick])
}

// randomIncDec moves a random variable of atom idx by one, in the
// direction with the smaller distance to want.
func (e *Engine[T]) randomIncDec(idx int, want bool) bool {
	in := &e.ineqs[idx]
	free := e.freeVars(in)
	if len(free) == 0 {
		return false
	}
	x := free[e.rng.IntN(len(free))]
	xv := e.value(x)
	one := e.one()
	up := e.dttSubst(want, in, x, xv.Add(one))
	down := e.dttSubst(want, in, x, xv.Sub(one))
	delta := one
	switch c := up.Cmp(down); {
	case c > 0:
		delta = one.Neg()
	case c == 0 && e.rng.IntN(2) == 0:
		delta = one.Neg()
	}
	return e.applyMove(move[T]{v: x, delta: delta})
}

// freeVars lists the leaves of atom in that are not fixed.
func (e *Engine[T]) freeVars(in *ineq[T]) []Var {
	var free []Var
	for _, nl := range in.nonlinear {
		if !e.vars[nl.x].isFixed() {
			free = append(free, nl.x)
		}
	}
	return free
}

// chooseMoveKind picks the move family of the next step.
func (e *Engine[T]) chooseMoveKind() MoveKind {
	if e.walk > 0 {
		e.walk--
		return RandomUpdate
	}
	if e.cfg.UCB {
		allowed := make([]bool, e.ucb.Arms())
		for i := range allowed {
			allowed[i] = MoveKind(i) != HillclimbPlateau || e.cfg.AllowPlateau
		}
		if k := e.ucb.Select(allowed); k >= 0 {
			return MoveKind(k)
		}
	}
	if e.rng.IntN(1000) < e.cfg.WP {
		return RandomUpdate
	}
	return Hillclimb
}

// repairIneq performs one step for the violated atom idx and rewards the
// bandit arm that produced it.
func (e *Engine[T]) repairIneq(idx int, want bool) {
	in := &e.ineqs[idx]
	var before float64
	if e.cfg.UCB {
		before = e.DTS()
	}
	kind := e.chooseMoveKind()
	var moved bool
	switch kind {
	case Hillclimb:
		if e.cfg.UCB {
			moved = e.climb(idx, want, Hillclimb)
		} else {
			moved = e.hillclimb(idx, want)
		}
	case HillclimbPlateau:
		moved = e.climb(idx, want, HillclimbPlateau)
	case RandomUpdate:
		moved = e.randomUpdate(idx, want)
	default:
		moved = e.randomIncDec(idx, want)
	}
	if !moved && kind != RandomIncDec {
		e.randomIncDec(idx, want)
	}
	if !e.cfg.UCB {
		return
	}
	// Repairing the atom earns the full reward, otherwise the relative
	// drop of the weighted distance over all atoms.
	reward := 1.0
	if in.holds() != want {
		after := e.DTS()
		reward = 0
		if before > 0 && after < before {
			reward = (before - after) / before
		}
	}
	e.ucb.Update(int(kind), reward)
}
