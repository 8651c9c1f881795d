package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/komsit37/fv/pkg/fv/filter"
	"github.com/komsit37/fv/pkg/fv/source"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		filterExpr      string
		onlyUnderpriced bool
	)
	cmd := &cobra.Command{
		Use:   "run <file.yaml|dir>",
		Short: "Evaluate every scenario in a YAML file or directory",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("requires exactly 1 YAML file or directory argument")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			expr := a.cfg.Filter
			if cmd.Flags().Changed("filter") {
				expr = filterExpr
			}
			f, err := filter.Parse(expr)
			if err != nil {
				return err
			}

			r, err := a.runner(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			r.Source = source.YAMLSource{}
			opts := a.executeOptions(cmd.OutOrStdout())
			opts.Filter = f
			opts.OnlyUnderpriced = onlyUnderpriced

			reports, err := r.Execute(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			return checkReports(reports)
		},
	}
	cmd.Flags().StringVar(&filterExpr, "filter", "", "select scenarios by name or symbol: a,b | glob* | /regex/ | substring")
	cmd.Flags().BoolVar(&onlyUnderpriced, "only-underpriced", false, "show only scenarios trading below their estimate")
	return cmd
}
