package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/hwcomposer/pkg/errors"
	"github.com/matzehuels/hwcomposer/pkg/pipeline"
	"github.com/matzehuels/hwcomposer/pkg/scenario"
)

type dumpOpts struct {
	frame    int // -1 dumps every frame
	debug    []string
	topology string
	noCommit bool
}

func (c *CLI) dumpCommand() *cobra.Command {
	opts := dumpOpts{frame: -1}

	cmd := &cobra.Command{
		Use:   "dump [scenario.toml]",
		Short: "Print the decision dump of each frame",
		Long: `Print the text dump the engine writes after each decision pass: the
layer table, the plane table, the composer job and the blanked planes.

--debug applies override commands before the first frame, as if the
scenario listed them:

  hwcomposer dump --debug "--hide-layer 3" --debug "--hide-plane 2" tv.toml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDump(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().IntVar(&opts.frame, "frame", opts.frame, "dump only this frame")
	cmd.Flags().StringArrayVar(&opts.debug, "debug", nil, "debug override command applied before the first frame")
	cmd.Flags().StringVar(&opts.topology, "topology", "", "override the display topology: simple, multi, auto")
	cmd.Flags().BoolVar(&opts.noCommit, "no-commit", false, "do not commit plans to the simulated display")

	return cmd
}

func (c *CLI) runDump(ctx context.Context, path string, opts *dumpOpts) error {
	sc, err := scenario.Load(path)
	if err != nil {
		return err
	}
	if opts.frame >= len(sc.Frames) {
		return errors.New(errors.ErrCodeNotFound, "frame %d out of range (scenario has %d frames)", opts.frame, len(sc.Frames))
	}
	if len(opts.debug) > 0 {
		sc.Frames[0].Debug = append(append([]string{}, opts.debug...), sc.Frames[0].Debug...)
	}

	runner, err := c.newRunner(ctx, runnerOpts{noCache: true})
	if err != nil {
		return err
	}
	defer runner.Close()

	rep, err := runner.Simulate(ctx, sc, pipeline.Options{
		Topology: opts.topology,
		DryRun:   opts.noCommit,
		Logger:   loggerFromContext(ctx),
	})
	if err != nil {
		return err
	}

	var b strings.Builder
	for _, fr := range rep.Frames {
		if opts.frame >= 0 && fr.Index != opts.frame {
			continue
		}
		fmt.Fprintf(&b, "=== %s frame %d", rep.Name, fr.Index)
		if fr.Name != "" {
			fmt.Fprintf(&b, " (%s)", fr.Name)
		}
		b.WriteString(" ===\n")
		if len(fr.Overrides) > 0 {
			fmt.Fprintf(&b, "overrides: %s\n", strings.Join(fr.Overrides, "; "))
		}
		b.WriteString(fr.Dump)
		if fr.Violation != "" {
			fmt.Fprintf(&b, "INVALID PLAN: %s\n", fr.Violation)
		}
		b.WriteString("\n")
	}
	_, err = c.Out.Write([]byte(b.String()))
	return err
}
