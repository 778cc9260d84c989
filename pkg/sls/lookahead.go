// Package sls implements the arithmetic theory of a stochastic local-search
// satisfiability solver.
//
// This file implements lookahead search. Instead of repairing one atom, a
// step scores candidate moves by their effect on the Boolean structure of
// the host's roots: every subformula gets a score in [0, 1] and a root's
// score is weighted by how long it has stayed unsatisfied.
package sls

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/gitrdm/goslsarith/pkg/expr"
	"github.com/gitrdm/goslsarith/pkg/numeric"
)

// searchView is what lookahead search needs from the engine.
type searchView[T numeric.Number[T]] interface {
	exprs() *expr.Manager
	atomHolds(atom expr.ID) bool
	atomDistance(atom expr.ID, want bool) float64
	// atomsAffectedBy lists the atoms whose value depends on v, directly
	// or through definitions.
	atomsAffectedBy(v Var) []expr.ID
	value(v Var) T
	// tryValue sets v without repairs or undo records; restoreValue puts
	// the old value back.
	tryValue(v Var, nv T)
	restoreValue(v Var, old T)
	hostTruth(atom expr.ID) Truth
}

// scoreFunc scores the assignment reached by setting v to nv. It reports
// false when the move may not be considered.
type scoreFunc[T numeric.Number[T]] func(v Var, nv T) (float64, bool)

// target is an atom below an unsatisfied root with the truth value that
// helps the root.
type target struct {
	atom expr.ID
	want bool
}

// boolInfo caches the score of a Boolean subexpression for both
// polarities. hypo holds the scores under a move being evaluated and is
// valid when touched equals the current stamp.
type boolInfo struct {
	id      expr.ID
	height  int
	weight  float64
	score   [2]float64
	hypo    [2]float64
	touched uint64
	queued  uint64
}

func slot(want bool) int {
	if want {
		return 0
	}
	return 1
}

// lookahead scores whole formulas: a root scores 1 when satisfied and
// less the further its atoms are from the truth values that satisfy it.
type lookahead[T numeric.Number[T]] struct {
	view     searchView[T]
	m        *expr.Manager
	roots    []expr.ID
	info     map[expr.ID]*boolInfo
	order    []*boolInfo
	maxDepth int
	ceiling  float64

	stack      [][]*boolInfo
	minH, maxH int
	stamp      uint64

	tabu     uint64
	topScore float64
}

func newLookahead[T numeric.Number[T]](view searchView[T], roots []expr.ID, cfg Config) *lookahead[T] {
	la := &lookahead[T]{
		view:     view,
		m:        view.exprs(),
		info:     make(map[expr.ID]*boolInfo),
		maxDepth: cfg.MaxDepth,
		ceiling:  float64(cfg.WeightCeiling),
		maxH:     -1,
	}
	for _, r := range roots {
		la.collect(r)
		if b, ok := la.info[r]; ok && b.weight == 0 {
			b.weight = 1
			la.roots = append(la.roots, r)
		}
	}
	slices.SortStableFunc(la.order, func(a, b *boolInfo) int { return a.height - b.height })
	la.rescore()
	return la
}

func (la *lookahead[T]) collect(id expr.ID) {
	if _, ok := la.info[id]; ok || la.m.Sort(id) != expr.SortBool {
		return
	}
	b := &boolInfo{id: id, height: la.m.Height(id)}
	la.info[id] = b
	la.order = append(la.order, b)
	if la.m.IsAtom(id) {
		return
	}
	for _, a := range la.m.Args(id) {
		la.collect(a)
	}
}

// cur is the score of id for want under the move being evaluated.
func (la *lookahead[T]) cur(id expr.ID, want bool) float64 {
	b, ok := la.info[id]
	if !ok {
		return 0
	}
	if b.touched == la.stamp {
		return b.hypo[slot(want)]
	}
	return b.score[slot(want)]
}

func (la *lookahead[T]) compute(id expr.ID, want bool) float64 {
	switch la.m.Kind(id) {
	case expr.KindNot:
		return la.cur(la.m.Arg(id, 0), !want)
	case expr.KindAnd, expr.KindOr:
		// and-true and or-false need every argument; the others need one.
		all := (la.m.Kind(id) == expr.KindAnd) == want
		s := 0.0
		if all {
			s = 1
		}
		for _, a := range la.m.Args(id) {
			c := la.cur(a, want)
			if all {
				s = math.Min(s, c)
			} else {
				s = math.Max(s, c)
			}
		}
		return s
	}
	if la.m.IsAtom(id) {
		if la.view.atomHolds(id) == want {
			return 1
		}
		return 1 / (1 + la.view.atomDistance(id, want))
	}
	if la.evalBool(id) == want {
		return 1
	}
	return 0
}

// evalBool evaluates a Boolean expression; Boolean constants take the
// host's value.
func (la *lookahead[T]) evalBool(id expr.ID) bool {
	args := la.m.Args(id)
	switch la.m.Kind(id) {
	case expr.KindTrue:
		return true
	case expr.KindFalse:
		return false
	case expr.KindConst:
		return la.view.hostTruth(id) == True
	case expr.KindNot:
		return !la.evalBool(args[0])
	case expr.KindAnd:
		for _, a := range args {
			if !la.evalBool(a) {
				return false
			}
		}
		return true
	case expr.KindOr:
		for _, a := range args {
			if la.evalBool(a) {
				return true
			}
		}
		return false
	case expr.KindEq:
		if !la.m.IsAtom(id) {
			return la.evalBool(args[0]) == la.evalBool(args[1])
		}
	}
	return la.view.atomHolds(id)
}

// rescore recomputes every cached score from the current values.
func (la *lookahead[T]) rescore() {
	la.stamp++
	for _, b := range la.order {
		b.score[0] = la.compute(b.id, true)
		b.score[1] = la.compute(b.id, false)
	}
	la.topScore = la.total()
}

func (la *lookahead[T]) total() float64 {
	s := 0.0
	for _, r := range la.roots {
		s += la.info[r].weight * la.cur(r, true)
	}
	return s
}

func (la *lookahead[T]) push(b *boolInfo) {
	if b.height > la.maxDepth || b.queued == la.stamp {
		return
	}
	b.queued = la.stamp
	for len(la.stack) <= b.height {
		la.stack = append(la.stack, nil)
	}
	la.stack[b.height] = append(la.stack[b.height], b)
	if la.maxH < 0 || b.height < la.minH {
		la.minH = b.height
	}
	la.maxH = max(la.maxH, b.height)
}

// drain rescores queued expressions bottom-up into hypo, queueing their
// parents.
func (la *lookahead[T]) drain() {
	for h := la.minH; h <= la.maxH; h++ {
		for len(la.stack[h]) > 0 {
			n := len(la.stack[h]) - 1
			b := la.stack[h][n]
			la.stack[h] = la.stack[h][:n]
			b.hypo[0] = la.compute(b.id, true)
			b.hypo[1] = la.compute(b.id, false)
			b.touched = la.stamp
			for _, p := range la.m.Parents(b.id) {
				if pb, ok := la.info[p]; ok {
					la.push(pb)
				}
			}
		}
	}
	la.minH, la.maxH = 0, -1
}

// evaluate returns the total root score if v took value nv.
func (la *lookahead[T]) evaluate(v Var, nv T) (float64, bool) {
	if la.isTabu(v, nv) {
		return 0, false
	}
	old := la.view.value(v)
	la.stamp++
	la.view.tryValue(v, nv)
	for _, atom := range la.view.atomsAffectedBy(v) {
		if b, ok := la.info[atom]; ok {
			la.push(b)
		}
	}
	la.drain()
	s := la.total()
	la.view.restoreValue(v, old)
	la.stamp++
	return s, true
}

func signature[T numeric.Number[T]](v Var, n T) uint64 {
	return 1 << (xxhash.Sum64String(fmt.Sprint(v, ":", n.String())) & 63)
}

func (la *lookahead[T]) isTabu(v Var, nv T) bool {
	return la.tabu&signature(v, nv) != 0
}

// committed records that v moved away from old; moving straight back is
// tabu until the next committed move.
func (la *lookahead[T]) committed(v Var, old T) {
	la.tabu = signature(v, old)
	la.rescore()
}

// pickUnsatRoot draws an unsatisfied root with probability proportional
// to its weight.
func (la *lookahead[T]) pickUnsatRoot(rng *rand.Rand) (expr.ID, bool) {
	total := 0.0
	for _, r := range la.roots {
		if la.cur(r, true) < 1 {
			total += la.info[r].weight
		}
	}
	if total == 0 {
		return expr.Invalid, false
	}
	x := rng.Float64() * total
	last := expr.Invalid
	for _, r := range la.roots {
		if la.cur(r, true) >= 1 {
			continue
		}
		last = r
		w := la.info[r].weight
		if x < w {
			return r, true
		}
		x -= w
	}
	return last, true
}

// targets collects the atoms below id whose change could make id score
// 1 for want.
func (la *lookahead[T]) targets(id expr.ID, want bool, out []target, seen map[target]bool) []target {
	if la.cur(id, want) >= 1 {
		return out
	}
	switch la.m.Kind(id) {
	case expr.KindNot:
		return la.targets(la.m.Arg(id, 0), !want, out, seen)
	case expr.KindAnd, expr.KindOr:
		for _, a := range la.m.Args(id) {
			out = la.targets(a, want, out, seen)
		}
		return out
	}
	t := target{atom: id, want: want}
	if la.m.IsAtom(id) && !seen[t] {
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// bumpUnsat raises the weight of every unsatisfied root.
func (la *lookahead[T]) bumpUnsat() {
	for _, r := range la.roots {
		if la.cur(r, true) < 1 {
			la.info[r].weight++
		}
	}
}

func (la *lookahead[T]) recalibrate() {
	for _, r := range la.roots {
		if la.info[r].weight > la.ceiling {
			la.halveWeights()
			return
		}
	}
}

func (la *lookahead[T]) halveWeights() {
	for _, r := range la.roots {
		b := la.info[r]
		b.weight = math.Max(1, b.weight/2)
	}
	la.topScore = la.total()
}

func (la *lookahead[T]) reset() {
	la.tabu = 0
	la.rescore()
}

// initLookahead builds the lookahead state when it is enabled and the host
// exposes its roots.
func (e *Engine[T]) initLookahead() {
	e.la, e.lookaheadScore = nil, nil
	if !e.cfg.UseLookahead {
		return
	}
	rp, ok := e.host.(RootProvider)
	if !ok {
		e.log.Warn("lookahead requested but the host does not expose its roots; using per-atom repair")
		return
	}
	e.la = newLookahead[T](e, rp.Roots(), e.cfg)
	e.lookaheadScore = e.la.evaluate
}

// globalSearch makes up to MaxMovesBase moves, each the best-scoring
// candidate over the atoms of an unsatisfied root. When no candidate
// improves the total score a random step is taken and the weights of the
// unsatisfied roots grow.
func (e *Engine[T]) globalSearch() {
	la := e.la
	la.rescore()
	for i := 0; i < e.cfg.MaxMovesBase; i++ {
		root, ok := la.pickUnsatRoot(e.rng)
		if !ok {
			break
		}
		e.tick()
		targets := la.targets(root, true, nil, make(map[target]bool))
		var best move[T]
		bestScore, found := math.Inf(-1), false
		for _, t := range targets {
			for _, m := range e.targetMoves(t) {
				s, ok := e.lookaheadScore(m.v, e.value(m.v).Add(m.delta))
				if ok && s > bestScore {
					best, bestScore, found = m, s, true
				}
			}
		}
		if found && (bestScore > la.topScore || (e.cfg.AllowPlateau && bestScore == la.topScore)) {
			old := e.value(best.v)
			if e.applyMove(best) {
				la.committed(best.v, old)
				e.trackBest()
				continue
			}
		}
		if len(targets) > 0 {
			t := targets[e.rng.IntN(len(targets))]
			if idx, ok := e.atoms[t.atom]; ok {
				e.randomIncDec(idx, t.want)
			} else if e.isDist[t.atom] {
				e.repairDistinct(t.atom, t.want)
			}
		}
		la.bumpUnsat()
		la.recalibrate()
		la.rescore()
		e.trackBest()
	}
	e.checkRestart()
}

// targetMoves lists candidate moves for one target atom.
func (e *Engine[T]) targetMoves(t target) []move[T] {
	if idx, ok := e.atoms[t.atom]; ok {
		e.findMoves(idx, t.want, Hillclimb)
		return slices.Clone(e.cands)
	}
	if !e.isDist[t.atom] {
		return nil
	}
	var out []move[T]
	for _, a := range e.m.Args(t.atom) {
		v, ok := e.varOf(a)
		if !ok || e.vars[v].isFixed() {
			continue
		}
		out = append(out, move[T]{v: v, delta: e.one()}, move[T]{v: v, delta: e.one().Neg()})
	}
	return out
}

func (e *Engine[T]) exprs() *expr.Manager { return e.m }

func (e *Engine[T]) hostTruth(atom expr.ID) Truth { return e.host.Truth(atom) }

func (e *Engine[T]) atomDistance(atom expr.ID, want bool) float64 {
	if idx, ok := e.atoms[atom]; ok {
		return e.dttFloat(want, &e.ineqs[idx])
	}
	if e.atomHolds(atom) == want {
		return 0
	}
	return 1
}

func (e *Engine[T]) tryValue(v Var, nv T) { e.commit(v, nv) }

func (e *Engine[T]) restoreValue(v Var, old T) { e.commit(v, old) }

func (e *Engine[T]) atomsAffectedBy(v Var) []expr.ID {
	seen := map[Var]bool{}
	var out []expr.ID
	atomSeen := map[int]bool{}
	var walk func(w Var)
	walk = func(w Var) {
		if seen[w] {
			return
		}
		seen[w] = true
		vi := &e.vars[w]
		for _, i := range vi.ineqs {
			if !atomSeen[i] {
				atomSeen[i] = true
				out = append(out, e.ineqs[i].atom)
			}
		}
		for _, i := range vi.muls {
			walk(e.muls[i].v)
		}
		for _, i := range vi.adds {
			walk(e.adds[i].v)
		}
		for _, i := range vi.ops {
			walk(e.ops[i].v)
		}
	}
	walk(v)
	for _, d := range e.distincts {
		for _, a := range e.m.Args(d) {
			if w, ok := e.varOf(a); ok && seen[w] {
				out = append(out, d)
				break
			}
		}
	}
	return out
}
