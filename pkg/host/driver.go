// Package host provides a reference Boolean host for the arithmetic
// local-search engine.
//
// The Driver encodes the Boolean skeleton of the asserted formulas as an
// and-inverter circuit whose inputs are the arithmetic atoms and Boolean
// constants, and solves it with gini. Each propositional model fixes the
// truth value required of every atom; the engine then searches for values
// that make the atoms agree. When a round runs out of flips, the atoms that
// still disagree are blocked for the current epoch and the skeleton is
// solved again.
//
// Only a propositionally unsatisfiable skeleton proves unsatisfiability.
// Blocking clauses are guarded by an activation literal, so an epoch whose
// blocks exhaust the skeleton starts over instead of concluding anything.
package host

import (
	"context"
	"math/big"
	"math/rand/v2"
	"sort"

	"github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gitrdm/goslsarith/pkg/expr"
	"github.com/gitrdm/goslsarith/pkg/sls"
)

// Result is the outcome of Solve.
type Result int

const (
	Unknown Result = iota
	Sat
	Unsat
)

func (r Result) String() string {
	switch r {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// ErrBudgetExhausted is returned with Unknown when every round was used.
var ErrBudgetExhausted = errors.New("host: search budget exhausted")

const (
	satisfiable   = 1
	unsatisfiable = -1
)

type options struct {
	maxRounds int
	maxFlips  int
	seed      uint64
	log       logrus.FieldLogger
}

// Option configures a Driver.
type Option func(*options)

// WithMaxRounds bounds the number of skeleton models tried.
func WithMaxRounds(n int) Option { return func(o *options) { o.maxRounds = n } }

// WithMaxFlips bounds the engine moves per skeleton model.
func WithMaxFlips(n int) Option { return func(o *options) { o.maxFlips = n } }

// WithSeed seeds the choice of the atom repaired next.
func WithSeed(seed uint64) Option { return func(o *options) { o.seed = seed } }

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option { return func(o *options) { o.log = l } }

// Driver is a Boolean host that drives one engine over a fixed set of
// asserted formulas. It implements sls.Host and sls.RootProvider.
type Driver struct {
	m     *expr.Manager
	roots []expr.ID
	opts  options
	log   logrus.FieldLogger
	rng   *rand.Rand

	c      *logic.C
	g      *gini.Gini
	lits   map[expr.ID]z.Lit
	inputs []expr.ID
	truth  map[expr.ID]sls.Truth
	units  []sls.Literal
	trail  RecordingTrail

	act    z.Lit
	blocks int
	rounds int
}

var (
	_ sls.Host         = (*Driver)(nil)
	_ sls.RootProvider = (*Driver)(nil)
)

// New encodes roots, which must be Boolean, and asserts them.
func New(m *expr.Manager, roots []expr.ID, opts ...Option) (*Driver, error) {
	o := options{maxRounds: 100, maxFlips: 10000}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		o.log = l
	}
	if o.maxRounds <= 0 || o.maxFlips <= 0 {
		return nil, errors.Errorf("host: rounds (%d) and flips (%d) must be positive", o.maxRounds, o.maxFlips)
	}
	d := &Driver{
		m:     m,
		roots: roots,
		opts:  o,
		log:   o.log,
		rng:   rand.New(rand.NewPCG(o.seed, o.seed^0x5851f42d4c957f2d)),
		c:     logic.NewC(),
		g:     gini.New(),
		lits:  make(map[expr.ID]z.Lit),
		truth: make(map[expr.ID]sls.Truth),
	}
	var asserted []z.Lit
	for _, r := range roots {
		if m.Sort(r) != expr.SortBool {
			return nil, errors.Errorf("host: assertion %s is not Boolean", m.String(r))
		}
		asserted = append(asserted, d.encode(r))
		d.collectUnits(r, true)
	}
	d.c.ToCnf(d.g)
	for _, l := range asserted {
		d.g.Add(l)
		d.g.Add(z.LitNull)
	}
	return d, nil
}

// encode returns the circuit literal of a Boolean expression. Atoms and
// Boolean constants become circuit inputs.
func (d *Driver) encode(id expr.ID) z.Lit {
	if l, ok := d.lits[id]; ok {
		return l
	}
	var l z.Lit
	args := d.m.Args(id)
	switch d.m.Kind(id) {
	case expr.KindTrue:
		l = d.c.T
	case expr.KindFalse:
		l = d.c.F
	case expr.KindNot:
		l = d.encode(args[0]).Not()
	case expr.KindAnd:
		l = d.c.Ands(d.encodeAll(args)...)
	case expr.KindOr:
		l = d.c.Ors(d.encodeAll(args)...)
	case expr.KindEq:
		if d.m.IsAtom(id) {
			l = d.input(id)
			break
		}
		a, b := d.encode(args[0]), d.encode(args[1])
		l = d.c.Or(d.c.And(a, b), d.c.And(a.Not(), b.Not()))
	default:
		l = d.input(id)
	}
	d.lits[id] = l
	return l
}

func (d *Driver) encodeAll(ids []expr.ID) []z.Lit {
	out := make([]z.Lit, len(ids))
	for i, id := range ids {
		out[i] = d.encode(id)
	}
	return out
}

func (d *Driver) input(id expr.ID) z.Lit {
	d.inputs = append(d.inputs, id)
	return d.c.Lit()
}

// collectUnits records the atoms every model must assign: asserted atoms,
// conjuncts of asserted conjunctions and negated disjuncts.
func (d *Driver) collectUnits(id expr.ID, positive bool) {
	switch d.m.Kind(id) {
	case expr.KindNot:
		d.collectUnits(d.m.Arg(id, 0), !positive)
		return
	case expr.KindAnd:
		if positive {
			for _, a := range d.m.Args(id) {
				d.collectUnits(a, true)
			}
		}
		return
	case expr.KindOr:
		if !positive {
			for _, a := range d.m.Args(id) {
				d.collectUnits(a, false)
			}
		}
		return
	}
	if d.m.IsAtom(id) {
		d.units = append(d.units, sls.Literal{Atom: id, Positive: positive})
	}
}

// Truth returns the value the current skeleton model assigns to atom.
func (d *Driver) Truth(atom expr.ID) sls.Truth { return d.truth[atom] }

// Units returns the atoms fixed by the assertions.
func (d *Driver) Units() []sls.Literal { return d.units }

// Trail returns the undo trail the engine records value changes on.
func (d *Driver) Trail() sls.Trail { return &d.trail }

// Roots returns the asserted formulas.
func (d *Driver) Roots() []expr.ID { return d.roots }

// Rounds returns the number of skeleton models tried by the last Solve.
func (d *Driver) Rounds() int { return d.rounds }

// Solve registers the assertions with p and searches for a model.
// It returns Sat with p holding the model, Unsat when the Boolean skeleton
// alone is unsatisfiable, and Unknown with ErrBudgetExhausted or the
// context error otherwise.
func (d *Driver) Solve(ctx context.Context, p sls.Plugin) (Result, error) {
	for _, r := range d.roots {
		if _, err := p.RegisterTerm(r); err != nil {
			return Unknown, errors.Wrapf(err, "register %s", d.m.String(r))
		}
	}
	p.Initialize()
	d.trail.Commit()
	d.newEpoch(p)

	for d.rounds = 0; d.rounds < d.opts.maxRounds; d.rounds++ {
		if err := ctx.Err(); err != nil {
			return Unknown, errors.Wrap(err, "solve")
		}
		d.g.Assume(d.act)
		switch d.g.Solve() {
		case satisfiable:
		case unsatisfiable:
			if d.blocks == 0 {
				d.log.WithField("round", d.rounds).Info("boolean skeleton unsatisfiable")
				return Unsat, nil
			}
			d.log.WithFields(logrus.Fields{"round": d.rounds, "blocks": d.blocks}).Debug("epoch exhausted")
			d.newEpoch(p)
			continue
		default:
			return Unknown, errors.New("host: skeleton solver gave no answer")
		}
		d.readModel(p)
		p.Propagate()

		mark, before := d.trail.Mark(), len(p.Violated())
		sat, err := d.flip(ctx, p)
		if err != nil {
			return Unknown, err
		}
		if sat {
			d.log.WithField("round", d.rounds).Info("model found")
			return Sat, nil
		}
		violated := p.Violated()
		if len(violated) > before {
			d.trail.Rollback(mark)
			violated = p.Violated()
		}
		d.trail.Commit()
		d.block(violated)
		d.log.WithFields(logrus.Fields{"round": d.rounds, "violated": len(violated)}).Debug("round failed")
		p.OnRestart()
	}
	return Unknown, ErrBudgetExhausted
}

// newEpoch drops the blocking clauses of the previous epoch by fixing its
// activation literal to false.
func (d *Driver) newEpoch(p sls.Plugin) {
	if d.blocks > 0 {
		d.g.Add(d.act.Not())
		d.g.Add(z.LitNull)
		p.OnRescale()
	}
	d.act = d.g.Lit()
	d.blocks = 0
}

// readModel copies the skeleton model into the required truths and tells
// the engine which atoms changed.
func (d *Driver) readModel(p sls.Plugin) {
	for _, a := range d.inputs {
		t := sls.TruthOf(d.g.Value(d.lits[a]))
		if d.truth[a] != t {
			d.truth[a] = t
			p.PropagateLiteral(a)
		}
	}
}

// flip repairs random violated atoms until none is left or the flip budget
// of the round is spent. A flip is one engine step, so a lookahead repair
// that makes several moves uses several flips.
func (d *Driver) flip(ctx context.Context, p sls.Plugin) (bool, error) {
	budget := uint64(d.opts.maxFlips)
	for used, i := uint64(0), 0; used < budget; i++ {
		v := p.Violated()
		if len(v) == 0 {
			return true, nil
		}
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return false, errors.Wrap(err, "solve")
			}
		}
		before := p.CollectStatistics().Steps
		p.RepairLiteral(v[d.rng.IntN(len(v))])
		used += stepsSince(before, p.CollectStatistics().Steps)
	}
	return p.IsSat(), nil
}

// stepsSince is the number of steps taken between two counter readings,
// at least one.
func stepsSince(before, after uint64) uint64 {
	if after <= before {
		return 1
	}
	return after - before
}

// block forbids, for the current epoch, skeleton models that agree with
// the current one on every violated atom.
func (d *Driver) block(violated []expr.ID) {
	if len(violated) == 0 {
		return
	}
	d.g.Add(d.act.Not())
	for _, a := range violated {
		l := d.lits[a]
		if d.truth[a] == sls.True {
			l = l.Not()
		}
		d.g.Add(l)
	}
	d.g.Add(z.LitNull)
	d.blocks++
}

// Assignment is the value of one declared constant.
type Assignment struct {
	Name  string
	Sort  expr.Sort
	Value string
	// Rat is the value of an arithmetic constant.
	Rat *big.Rat
}

// Model returns the values of the declared constants, sorted by name.
// With best set, arithmetic values come from the best assignment the
// engine found rather than the current one.
func (d *Driver) Model(p sls.Plugin, best bool) []Assignment {
	var out []Assignment
	for _, s := range []expr.Sort{expr.SortInt, expr.SortReal} {
		for _, c := range d.m.Consts(s) {
			get := p.Value
			if best {
				get = p.BestValue
			}
			r, ok := get(c)
			if !ok {
				continue
			}
			out = append(out, Assignment{Name: d.m.Name(c), Sort: s, Value: expr.FormatNumeral(r, s), Rat: r})
		}
	}
	for _, c := range d.m.Consts(expr.SortBool) {
		out = append(out, Assignment{Name: d.m.Name(c), Sort: expr.SortBool, Value: d.truth[c].String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
