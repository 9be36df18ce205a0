package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/hwcomposer/pkg/errors"
	"github.com/matzehuels/hwcomposer/pkg/pipeline"
	"github.com/matzehuels/hwcomposer/pkg/store"
)

// reportsCommand creates the report store management command.
func (c *CLI) reportsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Manage saved reports",
		Long: `Manage reports saved with "simulate --save". Reports live in MongoDB when
[mongo] uri is configured and under ~/.local/share/hwcomposer/reports
otherwise.`,
	}

	cmd.AddCommand(c.reportsListCommand())
	cmd.AddCommand(c.reportsShowCommand())
	cmd.AddCommand(c.reportsDeleteCommand())
	cmd.AddCommand(c.reportsCleanupCommand())

	return cmd
}

// withStore opens the report store for the duration of fn.
func (c *CLI) withStore(ctx context.Context, fn func(store.Store) error) error {
	st, err := c.newStore(ctx, false)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func (c *CLI) reportsListCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(st store.Store) error {
				recs, err := st.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					printInfo("No saved reports")
					return nil
				}
				fmt.Fprintln(c.Out, recordTable(recs, time.Now()))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of reports")
	return cmd
}

func recordTable(recs []*store.Record, now time.Time) string {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			r.ID,
			r.Name,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			formatRemaining(r.ExpiresAt.Sub(now)),
		})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("ID", "Scenario", "Created", "Expires").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return styleHeader
			case col == 0 || col == 3:
				return StyleDim
			}
			return StyleValue
		}).
		Render()
}

// formatRemaining renders a time-to-live as "in 3d", "in 5h" or "in 12m".
func formatRemaining(d time.Duration) string {
	switch {
	case d <= 0:
		return "expired"
	case d >= 24*time.Hour:
		return fmt.Sprintf("in %dd", int(d.Hours()/24))
	case d >= time.Hour:
		return fmt.Sprintf("in %dh", int(d.Hours()))
	default:
		return fmt.Sprintf("in %dm", int(d.Minutes()))
	}
}

func (c *CLI) reportsShowCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Print a saved report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != pipeline.FormatText && format != pipeline.FormatJSON {
				return errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: text, json)", format)
			}
			if err := store.ValidateID(args[0]); err != nil {
				return err
			}
			return c.withStore(cmd.Context(), func(st store.Store) error {
				rec, err := st.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if format == pipeline.FormatJSON {
					var v any
					if err := json.Unmarshal(rec.Data, &v); err != nil {
						return errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode report")
					}
					out, _ := json.MarshalIndent(v, "", "  ")
					return c.writeOutput("", append(out, '\n'))
				}
				rep, err := pipeline.UnmarshalReport(rec.Data)
				if err != nil {
					return err
				}
				printReport(rep, false)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", pipeline.FormatText, "output format: text, json")
	return cmd
}

func (c *CLI) reportsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]...",
		Short: "Delete saved reports",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				if err := store.ValidateID(id); err != nil {
					return err
				}
			}
			return c.withStore(cmd.Context(), func(st store.Store) error {
				for _, id := range args {
					if err := st.Delete(cmd.Context(), id); err != nil {
						return err
					}
				}
				printSuccess("Deleted %d report(s)", len(args))
				return nil
			})
		},
	}
}

func (c *CLI) reportsCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(st store.Store) error {
				if err := st.Cleanup(cmd.Context()); err != nil {
					return err
				}
				printSuccess("Removed expired reports")
				return nil
			})
		},
	}
}
