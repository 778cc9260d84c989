package sls

import (
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/gitrdm/goslsarith/internal/bandit"
)

// Config holds the search knobs. It is read-only during an episode:
// Engine.SetConfig stages a new value that takes effect at the next
// Initialize or OnRestart.
type Config struct {
	// CB is the base of the break penalty of random updates: a candidate
	// that breaks b satisfied atoms is drawn with weight CB^-b.
	CB float64 `yaml:"cb" validate:"gt=0"`
	// L is the number of random steps taken right after a restart.
	L int `yaml:"l" validate:"gte=0"`
	// T is the size of the candidate pool random updates draw from.
	T int `yaml:"t" validate:"gt=0"`
	// MaxNoImprove restarts the search after this many steps without a
	// new best assignment.
	MaxNoImprove uint64 `yaml:"max_no_improve" validate:"gt=0"`
	// SP is the smoothing probability when PAWS is off.
	SP float64 `yaml:"sp" validate:"gte=0,lte=1"`
	// PawsInit is the initial (and minimal) atom weight.
	PawsInit uint64 `yaml:"paws_init" validate:"gt=0"`
	// PawsSP is the chance, out of 2048, that a PAWS round decays
	// satisfied atoms instead of bumping violated ones.
	PawsSP int `yaml:"paws_sp" validate:"gte=0,lte=2048"`
	Paws   bool `yaml:"paws"`
	// MaxMoves caps the candidate list of one decision.
	MaxMoves int `yaml:"max_moves" validate:"gt=0"`
	// MaxMovesBase bounds the moves of one lookahead search call.
	MaxMovesBase int `yaml:"max_moves_base" validate:"gt=0"`
	// WP is the chance, out of 1000, of a random walk step when the
	// bandit is off.
	WP          int     `yaml:"wp" validate:"gte=0,lte=1000"`
	UCB         bool    `yaml:"ucb"`
	UCBConstant float64 `yaml:"ucb_constant" validate:"gte=0"`
	UCBForget   float64 `yaml:"ucb_forget" validate:"gte=0,lte=1"`
	UCBInit     bool    `yaml:"ucb_init"`
	UCBNoise    float64 `yaml:"ucb_noise" validate:"gte=0"`
	// RestartBase scales the restart interval: restart k happens
	// RestartBase*(k+1) steps after restart k-1.
	RestartBase uint64 `yaml:"restart_base" validate:"gt=0"`
	// RestartInit is the step of the first restart.
	RestartInit  uint64 `yaml:"restart_init" validate:"gt=0"`
	UseLookahead bool   `yaml:"use_lookahead"`
	AllowPlateau bool   `yaml:"allow_plateau"`
	// PlateauBypassesTabu lets plateau moves ignore tabu windows.
	PlateauBypassesTabu bool `yaml:"plateau_bypasses_tabu"`
	// TabuMin and TabuRange set the tabu window: a move of a variable
	// forbids the opposite direction until step+TabuMin+rand(TabuRange).
	TabuMin   uint64 `yaml:"tabu_min"`
	TabuRange uint64 `yaml:"tabu_range" validate:"gt=0"`
	// WeightCeiling triggers halving of every atom weight.
	WeightCeiling uint64 `yaml:"weight_ceiling" validate:"gt=1"`
	// InitialRange is the initial half-width of the search range of
	// every variable.
	InitialRange int64 `yaml:"initial_range" validate:"gt=0"`
	// Seed seeds the random source; equal seeds give equal runs.
	Seed            uint64 `yaml:"seed"`
	CheckInvariants bool   `yaml:"check_invariants"`
	// MaxDepth bounds the expression height lookahead propagates to.
	MaxDepth int `yaml:"max_depth" validate:"gte=0"`
}

// DefaultConfig returns the default search configuration.
func DefaultConfig() Config {
	return Config{
		CB:            2.85,
		L:             20,
		T:             45,
		MaxNoImprove:  500000,
		SP:            0.0003,
		PawsInit:      40,
		PawsSP:        52,
		Paws:          true,
		MaxMoves:      500,
		MaxMovesBase:  500,
		WP:            100,
		UCB:           true,
		UCBConstant:   1.0,
		UCBForget:     0.1,
		UCBInit:       false,
		UCBNoise:      0.1,
		RestartBase:   1000,
		RestartInit:   1000,
		TabuMin:       3,
		TabuRange:     10,
		WeightCeiling: 1 << 20,
		InitialRange:  100000000,
		MaxDepth:      64,
	}
}

var configValidate = validator.New()

// Validate checks field ranges and cross-field constraints.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid sls config")
	}
	if c.PawsInit > c.WeightCeiling {
		return errors.Errorf("invalid sls config: paws_init %d exceeds weight_ceiling %d", c.PawsInit, c.WeightCeiling)
	}
	return nil
}

func (c Config) banditConfig() bandit.Config {
	return bandit.Config{
		Constant: c.UCBConstant,
		Noise:    c.UCBNoise,
		Forget:   c.UCBForget,
		InitPull: c.UCBInit,
	}
}

// LoadConfig reads a YAML file over DefaultConfig, applies environment
// overrides and validates the result. An empty path yields the defaults.
//
// Environment overrides:
//   - GOSLS_SEED: Seed
//   - GOSLS_LOOKAHEAD: UseLookahead
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config %s", path)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("GOSLS_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return errors.Wrap(err, "GOSLS_SEED")
		}
		cfg.Seed = seed
	}
	if v := os.Getenv("GOSLS_LOOKAHEAD"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "GOSLS_LOOKAHEAD")
		}
		cfg.UseLookahead = b
	}
	return nil
}

// YAML renders the config; used by the CLI to print defaults.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
