package main

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gitrdm/goslsarith/internal/parallel"
	"github.com/gitrdm/goslsarith/pkg/expr"
	"github.com/gitrdm/goslsarith/pkg/host"
	"github.com/gitrdm/goslsarith/pkg/numeric"
	"github.com/gitrdm/goslsarith/pkg/problem"
	"github.com/gitrdm/goslsarith/pkg/sls"
)

type solveOptions struct {
	configPath string
	seed       uint64
	lookahead  bool
	kernel     string
	maxRounds  int
	maxFlips   int
	metrics    bool
	display    bool
	jobs       int
}

func newSolveCmd(logger *log.Logger) *cobra.Command {
	o := solveOptions{kernel: "auto", maxRounds: 100, maxFlips: 10000, jobs: 1}
	cmd := &cobra.Command{
		Use:   "solve FILE...",
		Short: "Solve problem files",
		Long: `Solve one or more YAML problem files. Each file declares constants and
asserts infix formulas over them:

    declare: {x: int, y: int}
    assert:
      - "x + 2*y <= 10"
      - "x * y == 12 || mod(x, 3) == 1"

For every file the result (sat, unknown or unsat) is printed, followed by the
model, or by the best assignment found when the result is unknown.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.config(cmd)
			if err != nil {
				return err
			}
			return runSolve(cmd.Context(), cmd.OutOrStdout(), logger, cfg, o, args)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.configPath, "config", "", "YAML file overriding the search defaults")
	f.Uint64Var(&o.seed, "seed", 0, "random seed")
	f.BoolVar(&o.lookahead, "lookahead", false, "use lookahead search instead of atom repair")
	f.StringVar(&o.kernel, "kernel", o.kernel, "numeric kernel: auto, int or rat")
	f.IntVar(&o.maxRounds, "max-rounds", o.maxRounds, "Boolean models tried per problem")
	f.IntVar(&o.maxFlips, "max-flips", o.maxFlips, "engine steps per Boolean model; a lookahead call may take up to max_moves_base steps")
	f.BoolVar(&o.metrics, "metrics", false, "print search counters in Prometheus text format")
	f.BoolVar(&o.display, "display", false, "print the engine state after solving")
	f.IntVarP(&o.jobs, "jobs", "j", o.jobs, "problems solved concurrently (0: one per CPU)")
	return cmd
}

// config loads the configuration file and applies the flags that were set
// explicitly on top of it.
func (o solveOptions) config(cmd *cobra.Command) (sls.Config, error) {
	cfg, err := sls.LoadConfig(o.configPath)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = o.seed
	}
	if cmd.Flags().Changed("lookahead") {
		cfg.UseLookahead = o.lookahead
	}
	return cfg, cfg.Validate()
}

// outcome is the result of one problem file.
type outcome struct {
	file   string
	result host.Result
	model  []host.Assignment
	stats  sls.Statistics
	state  string
	err    error
}

func runSolve(ctx context.Context, w io.Writer, logger *log.Logger, cfg sls.Config, o solveOptions, files []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := kernelFor(o.kernel, expr.NewManager()); err != nil {
		return err
	}
	outcomes, err := parallel.Map(ctx, o.jobs, files, func(ctx context.Context, file string) outcome {
		return solveFile(ctx, logger.WithField("file", file), cfg, o, file)
	})
	if err != nil {
		return errors.Wrap(err, "solve")
	}

	var total sls.Statistics
	failed := 0
	for _, oc := range outcomes {
		if len(files) > 1 {
			fmt.Fprintf(w, "== %s\n", oc.file)
		}
		total = total.Add(oc.stats)
		if oc.err != nil {
			failed++
			fmt.Fprintf(w, "error: %v\n", oc.err)
			continue
		}
		writeOutcome(w, oc)
	}
	if o.metrics {
		if err := writeMetrics(w, total); err != nil {
			return err
		}
	}
	if failed > 0 {
		return errors.Errorf("%d of %d problems failed", failed, len(files))
	}
	return nil
}

func solveFile(ctx context.Context, logger log.FieldLogger, cfg sls.Config, o solveOptions, file string) outcome {
	p, err := problem.Load(file)
	if err != nil {
		return outcome{file: file, err: err}
	}
	kind, err := kernelFor(o.kernel, p.M)
	if err != nil {
		return outcome{file: file, err: err}
	}
	oc := solveWith(ctx, logger, cfg, o, p, kind)
	if o.kernel == "auto" && kind == numeric.KindInt && errors.Is(oc.err, sls.ErrSortMismatch) {
		logger.WithError(oc.err).Info("int kernel overflows, retrying with rat")
		oc = solveWith(ctx, logger, cfg, o, p, numeric.KindRat)
	}
	oc.file = file
	return oc
}

func solveWith(ctx context.Context, logger log.FieldLogger, cfg sls.Config, o solveOptions, p *problem.Problem, kind numeric.KernelKind) (oc outcome) {
	d, err := host.New(p.M, p.Asserts,
		host.WithMaxRounds(o.maxRounds),
		host.WithMaxFlips(o.maxFlips),
		host.WithSeed(cfg.Seed),
		host.WithLogger(logger),
	)
	if err != nil {
		oc.err = err
		return oc
	}
	plugin, err := sls.NewPlugin(p.M, d, kind, sls.WithConfig(cfg), sls.WithLogger(logger))
	if err != nil {
		oc.err = err
		return oc
	}
	logger.WithFields(log.Fields{"kernel": kind, "assertions": len(p.Asserts)}).Info("solving")

	oc.result, err = d.Solve(ctx, plugin)
	oc.stats = plugin.CollectStatistics()
	if err != nil && !errors.Is(err, host.ErrBudgetExhausted) {
		oc.err = err
		return oc
	}
	if oc.result != host.Unsat {
		oc.model = d.Model(plugin, oc.result == host.Unknown)
	}
	if o.display {
		var b bytes.Buffer
		if err := plugin.Display(&b); err != nil {
			oc.err = err
			return oc
		}
		oc.state = b.String()
	}
	logger.WithFields(log.Fields{"result": oc.result, "rounds": d.Rounds(), "steps": oc.stats.Steps}).Info("done")
	return oc
}

func kernelFor(name string, m *expr.Manager) (numeric.KernelKind, error) {
	switch name {
	case "auto":
		return sls.SelectKernel(m), nil
	case "int":
		return numeric.KindInt, nil
	case "rat":
		return numeric.KindRat, nil
	}
	return 0, errors.Errorf("unknown kernel %q (want auto, int or rat)", name)
}

func writeOutcome(w io.Writer, oc outcome) {
	fmt.Fprintln(w, oc.result)
	if oc.result == host.Unknown && len(oc.model) > 0 {
		fmt.Fprintln(w, "; best assignment")
	}
	for _, a := range oc.model {
		fmt.Fprintf(w, "%s = %s\n", a.Name, a.Value)
	}
	if oc.state != "" {
		fmt.Fprint(w, oc.state)
	}
}

// writeMetrics prints the summed counters of every problem.
func writeMetrics(w io.Writer, s sls.Statistics) error {
	var snap sls.StatsSnapshot
	snap.Store(s)
	reg := prometheus.NewRegistry()
	if err := reg.Register(sls.NewCollector(&snap, "gosls")); err != nil {
		return errors.Wrap(err, "register metrics")
	}
	families, err := reg.Gather()
	if err != nil {
		return errors.Wrap(err, "gather metrics")
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errors.Wrap(err, "write metrics")
		}
	}
	return nil
}
