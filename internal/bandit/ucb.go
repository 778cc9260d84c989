// Package bandit implements the UCB1 multi-armed bandit used to choose
// between move kinds of the local-search engine.
//
// Each arm keeps a pull count and a reward sum. Select returns the arm that
// maximises
//
//	mean(arm) + C*sqrt(ln(totalPulls) / pulls(arm)) + noise
//
// where noise is drawn uniformly from [0, Noise). Forget decays all
// statistics so that old observations weigh less after a restart.
package bandit

import (
	"math"
	"math/rand/v2"
)

// Config holds the bandit knobs.
type Config struct {
	// Constant is the exploration constant C.
	Constant float64
	// Noise is the width of the random tie-breaking term.
	Noise float64
	// Forget is the fraction of the statistics dropped by Forget (0..1).
	Forget float64
	// InitPull forces every arm to be pulled once before UCB scores apply.
	InitPull bool
}

type arm struct {
	pulls  float64
	reward float64
}

// UCB is a UCB1 bandit over a fixed number of arms.
//
// Invariants:
//   - The number of arms is fixed at construction
//   - total is the sum of the (possibly decayed) pulls of all arms
//
// Thread Safety: not safe for concurrent use.
type UCB struct {
	cfg   Config
	arms  []arm
	total float64
	rng   *rand.Rand
}

// New creates a bandit with n arms drawing noise from rng.
func New(n int, cfg Config, rng *rand.Rand) *UCB {
	if n <= 0 {
		panic("bandit: need at least one arm")
	}
	return &UCB{cfg: cfg, arms: make([]arm, n), rng: rng}
}

// Arms returns the number of arms.
func (u *UCB) Arms() int { return len(u.arms) }

// Select returns the arm to pull among the allowed ones. A nil allowed
// slice permits every arm. Returns -1 when no arm is allowed.
func (u *UCB) Select(allowed []bool) int {
	best, bestScore := -1, math.Inf(-1)
	for i := range u.arms {
		if allowed != nil && !allowed[i] {
			continue
		}
		if u.cfg.InitPull && u.arms[i].pulls == 0 {
			return i
		}
		if s := u.score(i); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

func (u *UCB) score(i int) float64 {
	a := u.arms[i]
	pulls := math.Max(a.pulls, 1)
	mean := a.reward / pulls
	explore := u.cfg.Constant * math.Sqrt(math.Log(u.total+1)/pulls)
	noise := 0.0
	if u.cfg.Noise > 0 {
		noise = u.cfg.Noise * u.rng.Float64()
	}
	return mean + explore + noise
}

// Update records a pull of arm with the given reward, expected in [0, 1].
func (u *UCB) Update(i int, reward float64) {
	u.arms[i].pulls++
	u.arms[i].reward += reward
	u.total++
}

// Forget scales every statistic by 1 - Forget.
func (u *UCB) Forget() {
	keep := 1 - u.cfg.Forget
	u.total = 0
	for i := range u.arms {
		u.arms[i].pulls *= keep
		u.arms[i].reward *= keep
		u.total += u.arms[i].pulls
	}
}

// Reset clears all statistics and installs cfg and the noise source rng.
func (u *UCB) Reset(cfg Config, rng *rand.Rand) {
	u.cfg, u.rng = cfg, rng
	u.total = 0
	for i := range u.arms {
		u.arms[i] = arm{}
	}
}

// Pulls returns the (possibly decayed) pull count of arm i.
func (u *UCB) Pulls(i int) float64 { return u.arms[i].pulls }

// Mean returns the mean reward of arm i, 0 before the first pull.
func (u *UCB) Mean(i int) float64 {
	if u.arms[i].pulls == 0 {
		return 0
	}
	return u.arms[i].reward / u.arms[i].pulls
}
