package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gitrdm/goslsarith/pkg/sls"
)

func newConfigCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the search configuration",
		Long: `Print the effective search configuration as YAML: the defaults,
overlaid with --config and the GOSLS_SEED / GOSLS_LOOKAHEAD environment
variables. The output is a valid --config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := sls.LoadConfig(path)
			if err != nil {
				return err
			}
			data, err := cfg.YAML()
			if err != nil {
				return errors.Wrap(err, "render config")
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&path, "config", "", "YAML file overriding the defaults")
	return cmd
}
