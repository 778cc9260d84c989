// Command gosls solves arithmetic constraint problems by local search.
//
//	gosls solve problems/*.yaml --seed 7 -j 4
//	gosls config > sls.yaml
package main

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	logger := log.New()
	logger.SetOutput(errOut)

	var verbosity int
	rootCmd := &cobra.Command{
		Use:          "gosls",
		Short:        "Local search for arithmetic constraints",
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.SetLevel(logLevel(verbosity))
			return nil
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v info, -vv debug, -vvv trace)")

	rootCmd.AddCommand(newSolveCmd(logger), newConfigCmd())
	return rootCmd
}

func logLevel(verbosity int) log.Level {
	switch {
	case verbosity <= 0:
		return log.WarnLevel
	case verbosity == 1:
		return log.InfoLevel
	case verbosity == 2:
		return log.DebugLevel
	default:
		return log.TraceLevel
	}
}
