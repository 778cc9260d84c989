// Package sls implements the arithmetic theory of a stochastic local-search
// satisfiability solver.
//
// This file implements atom weighting, best-assignment tracking and
// restarts. Weights follow PAWS: violated atoms gain weight after each step
// and satisfied atoms occasionally decay toward PawsInit. Every weight is
// halved once one exceeds WeightCeiling. A restart returns to the best
// assignment seen, clears tabu windows, decays the bandit and forces a few
// random steps.
package sls

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// adaptWeights updates atom weights after a step. With PAWS, satisfied
// atoms occasionally decay toward PawsInit and violated atoms otherwise
// gain weight. Without PAWS, weights are occasionally smoothed toward
// PawsInit instead of decayed.
func (e *Engine[T]) adaptWeights() {
	init := e.cfg.PawsInit
	switch {
	case e.cfg.Paws && e.rng.IntN(2048) < e.cfg.PawsSP:
		for i := range e.ineqs {
			in := &e.ineqs[i]
			if want, ok := e.truth(in.atom); ok && in.holds() == want && in.weight > init {
				in.weight--
			}
		}
	case !e.cfg.Paws && e.rng.Float64() < e.cfg.SP:
		for i := range e.ineqs {
			in := &e.ineqs[i]
			if in.weight > init {
				in.weight = init + (in.weight-init)/2
			}
		}
	default:
		for i := range e.ineqs {
			in := &e.ineqs[i]
			if want, ok := e.truth(in.atom); ok && in.holds() != want {
				in.weight++
			}
		}
	}
	e.recalibrateWeights()
}

// recalibrateWeights halves every weight once one exceeds WeightCeiling.
func (e *Engine[T]) recalibrateWeights() {
	over := false
	for i := range e.ineqs {
		if e.ineqs[i].weight > e.cfg.WeightCeiling {
			over = true
			break
		}
	}
	if !over {
		return
	}
	for i := range e.ineqs {
		in := &e.ineqs[i]
		in.weight = (in.weight + 1) / 2
	}
	e.log.WithField("ceiling", e.cfg.WeightCeiling).Debug("atom weights halved")
}

// trackBest saves the assignment when it violates fewer atoms than any
// assignment before it.
func (e *Engine[T]) trackBest() {
	n := len(e.Violated())
	if n >= e.bestViolated {
		return
	}
	e.bestViolated = n
	e.lastImprove = e.step
	e.saveBest()
}

// SaveBestValues records the current assignment as the best one, whether
// or not it violates fewer atoms.
func (e *Engine[T]) SaveBestValues() {
	e.saveBest()
	e.bestViolated = len(e.Violated())
}

func (e *Engine[T]) saveBest() {
	for v := range e.vars {
		e.vars[v].best = e.vars[v].value
	}
}

// checkRestart restarts on schedule or after MaxNoImprove steps without
// a new best assignment.
func (e *Engine[T]) checkRestart() {
	if e.step >= e.restartNext || e.step-e.lastImprove >= e.cfg.MaxNoImprove {
		e.restart()
	}
}

// restart begins a new episode from the best assignment: staged
// configuration is applied, the bandit forgets, tabu windows are cleared
// and the next L steps are random.
func (e *Engine[T]) restart() {
	e.stats.Restarts++
	e.restarts++
	e.applyStaged()
	e.restartNext = e.step + e.cfg.RestartBase*(e.restarts+1)
	e.lastImprove = e.step
	if e.cfg.UCB {
		e.log.WithFields(e.armFields()).Debug("move kinds before restart")
	}
	e.ucb.Forget()
	for v := range e.vars {
		vi := &e.vars[v]
		vi.tabuPos, vi.tabuNeg = 0, 0
		if !vi.defined() {
			e.assign(Var(v), vi.best)
		}
	}
	e.walk = e.cfg.L
	e.bestViolated = len(e.Violated())
	if e.la != nil {
		e.la.reset()
	}
	e.log.WithFields(logrus.Fields{
		"restart":  e.restarts,
		"step":     e.step,
		"violated": e.bestViolated,
	}).Info("restart")
}

// armFields describes the bandit statistics of every move kind.
func (e *Engine[T]) armFields() logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i < e.ucb.Arms(); i++ {
		f[MoveKind(i).String()] = fmt.Sprintf("%.1f pulls, mean %.3f", e.ucb.Pulls(i), e.ucb.Mean(i))
	}
	return f
}
