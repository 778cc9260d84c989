package sls

import (
	"io"
	"math/big"
	"math/rand/v2"

	"github.com/sirupsen/logrus"

	"github.com/gitrdm/goslsarith/internal/bandit"
	"github.com/gitrdm/goslsarith/pkg/expr"
	"github.com/gitrdm/goslsarith/pkg/numeric"
)

// Option configures an Engine.
type Option func(*options)

type options struct {
	log logrus.FieldLogger
	cfg *Config
}

// WithLogger sets the logger. The default discards everything below Warn.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// WithConfig replaces DefaultConfig.
func WithConfig(c Config) Option {
	return func(o *options) { o.cfg = &c }
}

func defaultLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.WarnLevel)
	return l
}

// change is a journal entry used to roll back an operation that overflowed.
type change[T numeric.Number[T]] struct {
	v   Var
	old T
}

// Engine is the arithmetic local-search plugin, generic over the numeric
// kernel.
//
// Invariants (outside a repair window, checked by checkInvariants):
//   - Every defined variable equals the evaluation of its definition
//   - Every atom's argsValue equals the sum of coeff*value over its args
//
// Entry points that change values run under guard: an int64 overflow rolls
// the operation back and is counted in Statistics.Overflows.
//
// Thread Safety: not safe for concurrent use; one host drives an engine.
type Engine[T numeric.Number[T]] struct {
	m      *expr.Manager
	host   Host
	trail  Trail
	k      numeric.Kernel[T]
	cfg    Config
	staged *Config
	log    logrus.FieldLogger
	rng    *rand.Rand
	ucb    *bandit.UCB

	vars  []varInfo[T]
	muls  []mulDef
	adds  []addDef[T]
	ops   []opDef
	ineqs []ineq[T]

	expr2var  map[expr.ID]Var
	atoms     map[expr.ID]int
	distincts []expr.ID
	isDist    map[expr.ID]bool

	stats        Statistics
	step         uint64
	restarts     uint64
	restartNext  uint64
	lastImprove  uint64
	bestViolated int
	walk         int
	pending      []expr.ID
	journal      []change[T]

	cands []move[T]
	tabu  []move[T]

	la             *lookahead[T]
	lookaheadScore scoreFunc[T]

	// reals reports whether the kernel represents non-integers.
	reals bool
}

// New creates an engine over the expressions of m, driven by h.
func New[T numeric.Number[T]](m *expr.Manager, h Host, k numeric.Kernel[T], opts ...Option) (*Engine[T], error) {
	o := options{log: defaultLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	cfg := DefaultConfig()
	if o.cfg != nil {
		cfg = *o.cfg
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine[T]{
		m:        m,
		host:     h,
		trail:    h.Trail(),
		k:        k,
		cfg:      cfg,
		log:      o.log.WithField("kernel", k.Name()),
		expr2var: make(map[expr.ID]Var),
		atoms:    make(map[expr.ID]int),
		isDist:   make(map[expr.ID]bool),
	}
	if e.trail == nil {
		e.trail = NopTrail{}
	}
	_, e.reals = k.FromRat(big.NewRat(1, 2))
	e.seed()
	return e, nil
}

func (e *Engine[T]) seed() {
	e.rng = rand.New(rand.NewPCG(e.cfg.Seed, e.cfg.Seed^0x9e3779b97f4a7c15))
	if e.ucb == nil {
		e.ucb = bandit.New(int(numMoveKinds), e.cfg.banditConfig(), e.rng)
		return
	}
	e.ucb.Reset(e.cfg.banditConfig(), e.rng)
}

// Config returns the configuration of the current episode.
func (e *Engine[T]) Config() Config { return e.cfg }

// SetConfig validates c and stages it for the next Initialize or OnRestart.
func (e *Engine[T]) SetConfig(c Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	e.staged = &c
	return nil
}

func (e *Engine[T]) applyStaged() {
	if e.staged == nil {
		return
	}
	e.cfg = *e.staged
	e.staged = nil
	e.seed()
	e.log.Info("staged configuration applied")
}

// begin starts a guarded operation.
func (e *Engine[T]) begin() { e.journal = e.journal[:0] }

// guard recovers integer overflow raised inside an entry point: the
// values changed by the operation are rolled back and the failure is
// reported through failed.
func (e *Engine[T]) guard(op string, failed *bool) {
	r := recover()
	if r == nil {
		return
	}
	oe, ok := r.(*numeric.OverflowError)
	if !ok {
		panic(r)
	}
	e.rollback()
	e.stats.Overflows++
	e.log.WithField("op", op).WithError(oe).Warn("integer overflow, operation abandoned")
	if failed != nil {
		*failed = true
	}
}

func (e *Engine[T]) rollback() {
	for i := len(e.journal) - 1; i >= 0; i-- {
		c := e.journal[i]
		e.vars[c.v].value = c.old
	}
	e.journal = e.journal[:0]
	for i := range e.ineqs {
		e.ineqs[i].argsValue = e.argsValue(&e.ineqs[i].linearTerm)
	}
}

func (e *Engine[T]) one() T { return e.k.One() }

// tick advances the step counter that drives tabu windows and restarts.
func (e *Engine[T]) tick() {
	e.step++
	e.stats.Steps++
}

func (e *Engine[T]) value(v Var) T { return e.vars[v].value }

func (e *Engine[T]) name(v Var) string { return e.m.String(e.vars[v].expr) }

func (e *Engine[T]) varOf(id expr.ID) (Var, bool) {
	v, ok := e.expr2var[id]
	return v, ok
}

// NumVars returns the number of arithmetic variables.
func (e *Engine[T]) NumVars() int { return len(e.vars) }

// Initialize resets per-episode state: staged configuration, random source,
// bandit, bounds from unit literals, tabu and range bookkeeping, weights and
// values. Leaf variables start at 0 moved into their bounds; defined
// variables are evaluated from their arguments.
func (e *Engine[T]) Initialize() {
	e.begin()
	defer e.guard("initialize", nil)

	e.applyStaged()
	e.seed()
	rng := e.k.FromInt64(e.cfg.InitialRange)
	for v := range e.vars {
		vi := &e.vars[v]
		vi.tabuPos, vi.tabuNeg, vi.lastPos, vi.lastNeg = 0, 0, 0, 0
		vi.rng, vi.outOfRange = rng, 0
		if e.m.Kind(vi.expr) != expr.KindNumeral {
			vi.lo, vi.hi = nil, nil
		}
	}
	for _, lit := range e.host.Units() {
		e.initializeUnit(lit)
	}
	if !e.initValues(true) && !e.initValues(false) {
		e.log.Warn("initial values overflow the kernel")
	}
	for i := range e.ineqs {
		e.ineqs[i].weight = e.cfg.PawsInit
	}
	e.pending = e.pending[:0]
	e.walk = 0
	e.restartNext = e.step + e.cfg.RestartInit
	e.lastImprove = e.step
	e.bestViolated = len(e.Violated())
	e.initLookahead()
	e.log.WithFields(logrus.Fields{"vars": len(e.vars), "atoms": len(e.ineqs)}).Debug("initialized")
}

// initValues assigns the starting values and the cached argument sums.
// Leaves start at 0, moved into their bounds when bounded is set. Reports
// false, leaving the values partly assigned, if the kernel overflowed.
func (e *Engine[T]) initValues(bounded bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if _, overflow := r.(*numeric.OverflowError); !overflow {
				panic(r)
			}
			e.stats.Overflows++
			ok = false
		}
	}()
	zero := e.k.Zero()
	for v := range e.vars {
		vi := &e.vars[v]
		switch {
		case vi.defined():
			vi.value = e.eval(Var(v))
		case e.m.Kind(vi.expr) == expr.KindNumeral:
			vi.value = vi.lo.value
		case bounded:
			vi.value = e.initialValue(vi, zero)
		default:
			vi.value = zero
		}
		vi.best = vi.value
	}
	for i := range e.ineqs {
		in := &e.ineqs[i]
		in.argsValue = e.argsValue(&in.linearTerm)
	}
	return true
}

// initialValue moves want into the bounds of vi.
func (e *Engine[T]) initialValue(vi *varInfo[T], want T) T {
	if vi.inBounds(want) {
		return want
	}
	if vi.lo != nil && want.Cmp(vi.lo.value) <= 0 {
		if !vi.lo.strict {
			return vi.lo.value
		}
		if vi.hi != nil && !vi.isInt() {
			return vi.lo.value.Add(vi.hi.value).Quo(e.k.FromInt64(2))
		}
		return vi.lo.value.Add(e.one())
	}
	if vi.hi != nil {
		if !vi.hi.strict {
			return vi.hi.value
		}
		if vi.lo != nil && !vi.isInt() {
			return vi.lo.value.Add(vi.hi.value).Quo(e.k.FromInt64(2))
		}
		return vi.hi.value.Sub(e.one())
	}
	return want
}

// initializeUnit turns a unit literal over a single variable into a bound.
func (e *Engine[T]) initializeUnit(lit Literal) {
	idx, ok := e.atoms[lit.Atom]
	if !ok {
		return
	}
	in := &e.ineqs[idx]
	if len(in.args) != 1 {
		return
	}
	c, v := in.args[0].coeff, in.args[0].v
	if e.vars[v].defined() || e.m.Kind(e.vars[v].expr) == expr.KindNumeral {
		return
	}
	// c*v + k <op> 0, so the bound is -k/c, mirrored when c < 0.
	b := in.coeff.Neg()
	pos := c.Sign() > 0
	switch {
	case in.op == ineqEQ && lit.Positive:
		e.addEq(v, b, c)
	case in.op == ineqEQ:
	case in.op == ineqLE && lit.Positive == pos:
		if lit.Positive {
			e.addLE(v, b, c)
		} else {
			e.addLT(v, b, c)
		}
	case in.op == ineqLE:
		if lit.Positive {
			e.addGE(v, b, c)
		} else {
			e.addGT(v, b, c)
		}
	case in.op == ineqLT && lit.Positive == pos:
		if lit.Positive {
			e.addLT(v, b, c)
		} else {
			e.addLE(v, b, c)
		}
	default:
		if lit.Positive {
			e.addGT(v, b, c)
		} else {
			e.addGE(v, b, c)
		}
	}
}

// The add* helpers tighten a bound of v to num/den; for integer variables
// the bound is rounded to the nearest admissible integer.
func (e *Engine[T]) addLE(v Var, num, den T) {
	vi := &e.vars[v]
	if vi.isInt() {
		e.tightenHi(vi, bound[T]{value: numeric.FloorQuo(num, den)})
		return
	}
	e.tightenHi(vi, bound[T]{value: num.Quo(den)})
}

func (e *Engine[T]) addLT(v Var, num, den T) {
	vi := &e.vars[v]
	if vi.isInt() {
		f := numeric.FloorQuo(num, den)
		if f.Mul(den).Cmp(num) == 0 {
			f = f.Sub(e.one())
		}
		e.tightenHi(vi, bound[T]{value: f})
		return
	}
	e.tightenHi(vi, bound[T]{value: num.Quo(den), strict: true})
}

func (e *Engine[T]) addGE(v Var, num, den T) {
	vi := &e.vars[v]
	if vi.isInt() {
		e.tightenLo(vi, bound[T]{value: numeric.CeilQuo(num, den)})
		return
	}
	e.tightenLo(vi, bound[T]{value: num.Quo(den)})
}

func (e *Engine[T]) addGT(v Var, num, den T) {
	vi := &e.vars[v]
	if vi.isInt() {
		c := numeric.CeilQuo(num, den)
		if c.Mul(den).Cmp(num) == 0 {
			c = c.Add(e.one())
		}
		e.tightenLo(vi, bound[T]{value: c})
		return
	}
	e.tightenLo(vi, bound[T]{value: num.Quo(den), strict: true})
}

func (e *Engine[T]) addEq(v Var, num, den T) {
	vi := &e.vars[v]
	if vi.isInt() && !numeric.Equal(numeric.FloorQuo(num, den).Mul(den), num) {
		return
	}
	e.addGE(v, num, den)
	e.addLE(v, num, den)
}

func (e *Engine[T]) tightenLo(vi *varInfo[T], b bound[T]) {
	if vi.lo == nil {
		vi.lo = &b
		return
	}
	c := b.value.Cmp(vi.lo.value)
	if c > 0 || (c == 0 && b.strict) {
		vi.lo = &b
	}
}

func (e *Engine[T]) tightenHi(vi *varInfo[T], b bound[T]) {
	if vi.hi == nil {
		vi.hi = &b
		return
	}
	c := b.value.Cmp(vi.hi.value)
	if c < 0 || (c == 0 && b.strict) {
		vi.hi = &b
	}
}

// truth returns the required truth of an atom.
func (e *Engine[T]) truth(atom expr.ID) (want bool, known bool) {
	switch e.host.Truth(atom) {
	case True:
		return true, true
	case False:
		return false, true
	default:
		return false, false
	}
}

// atomHolds evaluates a registered atom under the current values.
func (e *Engine[T]) atomHolds(atom expr.ID) bool {
	if idx, ok := e.atoms[atom]; ok {
		return e.ineqs[idx].holds()
	}
	if e.isDist[atom] {
		return e.evalDistinct(atom)
	}
	return false
}

// Violated returns the registered atoms whose evaluation differs from the
// truth the host requires.
func (e *Engine[T]) Violated() []expr.ID {
	var out []expr.ID
	for i := range e.ineqs {
		in := &e.ineqs[i]
		if want, ok := e.truth(in.atom); ok && in.holds() != want {
			out = append(out, in.atom)
		}
	}
	for _, d := range e.distincts {
		if want, ok := e.truth(d); ok && e.evalDistinct(d) != want {
			out = append(out, d)
		}
	}
	return out
}

// IsSat reports whether every atom evaluates to its required truth value.
func (e *Engine[T]) IsSat() bool {
	for i := range e.ineqs {
		in := &e.ineqs[i]
		if want, ok := e.truth(in.atom); ok && in.holds() != want {
			return false
		}
	}
	for _, d := range e.distincts {
		if want, ok := e.truth(d); ok && e.evalDistinct(d) != want {
			return false
		}
	}
	return true
}

// DTS is the weighted sum of the distances to truth of all atoms.
func (e *Engine[T]) DTS() float64 {
	sum := 0.0
	for i := range e.ineqs {
		in := &e.ineqs[i]
		if want, ok := e.truth(in.atom); ok {
			sum += float64(in.weight) * e.dttFloat(want, in)
		}
	}
	return sum
}

// PropagateLiteral notes that the host changed the truth of atom.
func (e *Engine[T]) PropagateLiteral(atom expr.ID) {
	e.stats.Propagations++
	if _, ok := e.atoms[atom]; !ok && !e.isDist[atom] {
		return
	}
	for _, p := range e.pending {
		if p == atom {
			return
		}
	}
	e.pending = append(e.pending, atom)
}

// Propagate makes one hill-climbing attempt for every pending atom that is
// violated and reports whether any value changed.
func (e *Engine[T]) Propagate() (changed bool) {
	e.begin()
	failed := false
	defer func() {
		if failed {
			changed = false
		}
	}()
	defer e.guard("propagate", &failed)

	pending := e.pending
	e.pending = nil
	for _, atom := range pending {
		want, ok := e.truth(atom)
		if !ok || e.atomHolds(atom) == want {
			continue
		}
		before := len(e.journal)
		if idx, ok := e.atoms[atom]; ok {
			e.hillclimb(idx, want)
		} else {
			e.repairDistinct(atom, want)
		}
		if len(e.journal) > before {
			changed = true
		}
	}
	return changed
}

// RepairLiteral performs one search step for atom. In lookahead mode the
// step is a bounded global search over the host's roots.
func (e *Engine[T]) RepairLiteral(atom expr.ID) {
	e.begin()
	defer e.guard("repair_literal", nil)

	if e.la != nil {
		e.globalSearch()
		return
	}
	e.tick()
	want, ok := e.truth(atom)
	if ok && e.atomHolds(atom) != want {
		if idx, isIneq := e.atoms[atom]; isIneq {
			e.repairIneq(idx, want)
		} else if e.isDist[atom] {
			e.repairDistinct(atom, want)
		}
	}
	e.adaptWeights()
	e.trackBest()
	e.checkRestart()
}

// RepairUp recomputes e from its arguments.
func (e *Engine[T]) RepairUp(id expr.ID) {
	v, ok := e.varOf(id)
	if !ok || !e.vars[v].defined() {
		return
	}
	e.begin()
	defer e.guard("repair_up", nil)
	e.repairUp(v)
}

// RepairDown changes an argument of e so that its definition holds for
// the current value of e. Returns false if no argument could be set.
func (e *Engine[T]) RepairDown(id expr.ID) (ok bool) {
	v, found := e.varOf(id)
	if !found {
		return false
	}
	if !e.vars[v].defined() || numeric.Equal(e.eval(v), e.value(v)) {
		return true
	}
	e.begin()
	failed := false
	defer func() {
		if failed {
			ok = false
		}
	}()
	defer e.guard("repair_down", &failed)
	if !e.repairDown(v) {
		e.stats.RepairFailures++
		return false
	}
	return true
}

// GetValue returns the value of e as a numeral expression.
func (e *Engine[T]) GetValue(id expr.ID) (expr.ID, bool) {
	v, ok := e.varOf(id)
	if !ok {
		return expr.Invalid, false
	}
	return e.m.Num(e.value(v).Rat(), e.vars[v].sort), true
}

// Value returns the current value of e.
func (e *Engine[T]) Value(id expr.ID) (*big.Rat, bool) {
	v, ok := e.varOf(id)
	if !ok {
		return nil, false
	}
	return e.value(v).Rat(), true
}

// BestValue returns the value of e in the best assignment seen.
func (e *Engine[T]) BestValue(id expr.ID) (*big.Rat, bool) {
	v, ok := e.varOf(id)
	if !ok {
		return nil, false
	}
	return e.vars[v].best.Rat(), true
}

// SetValue moves e to the numeral value. A defined term is repaired
// downward so that its definition keeps holding; if that fails it is
// recomputed from its arguments and false is returned.
func (e *Engine[T]) SetValue(id, value expr.ID) (ok bool) {
	v, found := e.varOf(id)
	if !found {
		return false
	}
	r, isNum := e.m.Numeral(value)
	if !isNum {
		return false
	}
	n, fits := e.k.FromRat(r)
	if !fits {
		return false
	}
	e.begin()
	failed := false
	defer func() {
		if failed {
			ok = false
		}
	}()
	defer e.guard("set_value", &failed)
	return e.update(v, n)
}

// IsFixed reports whether e can take a single value and returns it.
func (e *Engine[T]) IsFixed(id expr.ID) (expr.ID, bool) {
	v, ok := e.varOf(id)
	if !ok || !e.vars[v].isFixed() {
		return expr.Invalid, false
	}
	return e.m.Num(e.vars[v].lo.value.Rat(), e.vars[v].sort), true
}

// OnRestart is called by the host between search episodes.
func (e *Engine[T]) OnRestart() {
	e.begin()
	defer e.guard("on_restart", nil)
	e.restart()
}

// OnRescale is called when the host rescales its own weights; atom
// weights are halved, never below PawsInit.
func (e *Engine[T]) OnRescale() {
	for i := range e.ineqs {
		in := &e.ineqs[i]
		in.weight = max(e.cfg.PawsInit, (in.weight+1)/2)
	}
	if e.la != nil {
		e.la.halveWeights()
	}
}

// CollectStatistics returns a snapshot of the counters.
func (e *Engine[T]) CollectStatistics() Statistics { return e.stats }

// ResetStatistics zeroes the counters.
func (e *Engine[T]) ResetStatistics() { e.stats = Statistics{} }

var _ Plugin = (*Engine[numeric.Rat])(nil)
var _ Plugin = (*Engine[numeric.Int])(nil)
