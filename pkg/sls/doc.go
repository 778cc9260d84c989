// Package sls implements the arithmetic theory of a stochastic local-search
// satisfiability solver.
//
// The engine keeps a candidate value for every arithmetic variable and every
// derived term of a formula, measures how far each arithmetic atom is from
// the truth value the Boolean host requires of it, and perturbs values to
// drive the formula toward satisfaction. It never decides unsatisfiability:
// running out of budget without IsSat becoming true is ordinary
// non-convergence.
//
// # Architecture
//
// The engine is generic over a numeric kernel (see package numeric) and is
// instantiated once per episode with either the exact rational kernel or the
// overflow-checked int64 kernel:
//
//	eng, err := sls.New[numeric.Rat](m, host, numeric.RatKernel{})
//
// NewPlugin hides the type parameter behind the Plugin interface and picks
// the kernel from the problem.
//
// Internally everything is index based:
//
//   - Variables: dense Var indices into the variable table. A variable
//     either is a leaf (constant or numeral) or carries exactly one
//     definition: a linear sum, a monomial, or a unary/binary operator.
//   - Atoms: one inequality record per arithmetic Boolean atom, encoded as
//     args + coeff <op> 0 with op one of =, <=, <.
//   - Definitions: add, mul and op tables indexed by Var.defIdx.
//
// Derived values are recomputed eagerly: whenever a variable changes, every
// definition it feeds is re-evaluated, so outside of a repair window each
// defined variable equals the function of its arguments.
//
// # Host interaction
//
// The Boolean host owns clauses and literal assignment. It tells the engine
// which atoms must be true or false through the Host interface and calls the
// Plugin entry points: RegisterTerm for every expression, Initialize once per
// episode, PropagateLiteral/Propagate when literals flip, RepairLiteral to
// request a move for a violated atom, and IsSat to check for a model.
//
// # Search
//
// For a violated atom the engine computes, per variable of the atom, the
// value change that makes the atom take its required truth value (linear
// moves, or quadratic moves for variables occurring squared). Candidates are
// tabu filtered, scored by the weighted reduction of violated atoms, and the
// move kind (hill climbing, plateau, random update, random ±1) is chosen by a
// UCB bandit. Atom weights follow the PAWS scheme. An optional lookahead mode
// scores a move by its effect on the Boolean structure above the atoms.
package sls
