package sls

import (
	"io"
	"math/big"

	"github.com/pkg/errors"

	"github.com/gitrdm/goslsarith/pkg/expr"
)

// Truth is the host's assignment of a Boolean atom.
type Truth int8

const (
	Unknown Truth = iota
	True
	False
)

func (t Truth) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// TruthOf converts a Boolean.
func TruthOf(b bool) Truth {
	if b {
		return True
	}
	return False
}

// Literal is an atom with a polarity.
type Literal struct {
	Atom     expr.ID
	Positive bool
}

// Trail receives undo records for value changes. A host that backtracks
// runs the pushed functions in reverse order to restore earlier values.
type Trail interface {
	Push(undo func())
}

// NopTrail discards undo records; pure local search never backtracks.
type NopTrail struct{}

func (NopTrail) Push(func()) {}

// Host is the Boolean search loop as seen by the engine.
type Host interface {
	// Truth returns the value currently required of a Boolean atom.
	Truth(atom expr.ID) Truth
	// Units returns the literals that hold in every model. The engine turns
	// unit bound atoms over a single variable into variable bounds.
	Units() []Literal
	// Trail returns the undo trail.
	Trail() Trail
}

// RootProvider is implemented by hosts that expose the asserted formulas.
// Lookahead search needs it.
type RootProvider interface {
	Roots() []expr.ID
}

// Plugin is the capability set the host drives. It is implemented by
// *Engine[T] for both numeric kernels.
type Plugin interface {
	// RegisterTerm integrates e and its subterms. Registering an
	// expression twice returns the same variable. Boolean expressions
	// register their atoms and return NullVar.
	RegisterTerm(e expr.ID) (Var, error)
	// Initialize resets per-episode state and derives initial values.
	Initialize()
	// PropagateLiteral notes that the host changed the truth of atom.
	PropagateLiteral(atom expr.ID)
	// Propagate processes pending literal changes and reports whether any
	// value changed.
	Propagate() bool
	// RepairUp recomputes e from its arguments.
	RepairUp(e expr.ID)
	// RepairDown changes one argument of e so that e's definition holds
	// for its current value.
	RepairDown(e expr.ID) bool
	// RepairLiteral performs one move toward the required truth of atom.
	RepairLiteral(atom expr.ID)
	// IsSat reports whether every atom evaluates to its required truth.
	IsSat() bool
	// GetValue returns the current value of e as a numeral expression.
	GetValue(e expr.ID) (expr.ID, bool)
	// Value returns the current value of e.
	Value(e expr.ID) (*big.Rat, bool)
	// BestValue returns the value of e in the best assignment found.
	BestValue(e expr.ID) (*big.Rat, bool)
	// SaveBestValues records the current assignment as the best one.
	SaveBestValues()
	// SetValue assigns a numeral value to e.
	SetValue(e, value expr.ID) bool
	// IsFixed reports whether e has a single permitted value and returns it.
	IsFixed(e expr.ID) (expr.ID, bool)
	// Violated returns the atoms whose evaluation differs from the host.
	Violated() []expr.ID
	OnRescale()
	OnRestart()
	CollectStatistics() Statistics
	ResetStatistics()
	Display(w io.Writer) error
}

var (
	// ErrNotRegistered is returned for expressions unknown to the engine.
	ErrNotRegistered = errors.New("sls: expression not registered")
	// ErrSortMismatch is returned when a value cannot be represented by
	// the sort or kernel of a term.
	ErrSortMismatch = errors.New("sls: value does not fit the sort")
)

// InvariantError reports a broken internal invariant. It is raised with
// panic: it indicates a bug, never a property of the input.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return "sls: invariant violated: " + e.Msg }
