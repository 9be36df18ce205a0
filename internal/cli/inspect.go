package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/hwcomposer/pkg/pipeline"
	"github.com/matzehuels/hwcomposer/pkg/scenario"
	"github.com/matzehuels/hwcomposer/pkg/store"
)

func (c *CLI) inspectCommand() *cobra.Command {
	var topology string
	cmd := &cobra.Command{
		Use:   "inspect [scenario.toml | report-id]",
		Short: "Browse the frames of a scenario or a saved report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := pipeline.ValidateTopology(topology); err != nil {
				return err
			}
			rep, err := c.loadReport(cmd.Context(), args[0], topology)
			if err != nil {
				return err
			}
			_, err = tea.NewProgram(NewReportModel(rep), tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&topology, "topology", "", "override the display topology: simple, multi, auto")
	return cmd
}

// loadReport reads a saved report when arg is a report id and simulates
// the scenario file at arg otherwise.
func (c *CLI) loadReport(ctx context.Context, arg, topology string) (*pipeline.Report, error) {
	if store.ValidateID(arg) == nil {
		runner, err := c.newRunner(ctx, runnerOpts{noCache: true, store: true})
		if err != nil {
			return nil, err
		}
		defer runner.Close()
		return runner.Report(ctx, arg)
	}

	sc, err := scenario.Load(arg)
	if err != nil {
		return nil, err
	}
	runner, err := c.newRunner(ctx, runnerOpts{})
	if err != nil {
		return nil, err
	}
	defer runner.Close()
	res, err := runner.Execute(ctx, sc, pipeline.Options{Topology: topology, Logger: loggerFromContext(ctx)})
	if err != nil {
		return nil, err
	}
	return res.Report, nil
}
