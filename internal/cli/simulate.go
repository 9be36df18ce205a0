package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/hwcomposer/pkg/errors"
	"github.com/matzehuels/hwcomposer/pkg/pipeline"
	"github.com/matzehuels/hwcomposer/pkg/scenario"
)

// simulateOpts holds the command-line flags for the simulate command.
type simulateOpts struct {
	format   string // text, json, dot, svg or png
	frame    int    // frame drawn by the diagram formats
	output   string // output file; stdout when empty
	noCache  bool
	refresh  bool
	dryRun   bool
	topology string
	save     bool // persist reports to the store
}

func (c *CLI) simulateCommand() *cobra.Command {
	opts := simulateOpts{format: pipeline.FormatText}

	cmd := &cobra.Command{
		Use:   "simulate [scenario.toml]...",
		Short: "Run scenarios through the decision engine",
		Long: `Run each scenario frame by frame: decide, check the plan, commit it to
the simulated display and report the outcome.

Diagram formats (dot, svg, png) draw the plan of one frame, picked with
--frame. With several scenarios and --output, each file gets the scenario
name appended.`,
		Example: `  hwcomposer simulate examples/video-overlay.toml
  hwcomposer simulate -f json -o report.json examples/*.toml
  hwcomposer simulate -f svg --frame 2 -o plan.svg examples/video-overlay.toml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := pipeline.ValidateFormat(opts.format); err != nil {
				return err
			}
			if err := pipeline.ValidateTopology(opts.topology); err != nil {
				return err
			}
			return c.runSimulate(cmd.Context(), args, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: text, json, dot, svg, png")
	cmd.Flags().IntVar(&opts.frame, "frame", 0, "frame to draw with dot, svg and png")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the report cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached reports")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "decide frames without committing them")
	cmd.Flags().StringVar(&opts.topology, "topology", "", "override the display topology: simple, multi, auto")
	cmd.Flags().BoolVar(&opts.save, "save", false, "save reports to the report store")

	return cmd
}

func (c *CLI) runSimulate(ctx context.Context, paths []string, opts *simulateOpts) error {
	logger := loggerFromContext(ctx)

	scenarios := make([]*scenario.Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := scenario.Load(p)
		if err != nil {
			return err
		}
		logger.Debug("loaded scenario", "path", p, "frames", len(sc.Frames))
		scenarios = append(scenarios, sc)
	}

	runner, err := c.newRunner(ctx, runnerOpts{noCache: opts.noCache, store: opts.save})
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(logger)
	var spinner *Spinner
	if opts.format == pipeline.FormatText && opts.output == "" {
		spinner = newSpinnerWithContext(ctx, fmt.Sprintf("Simulating %d scenario(s)...", len(scenarios)))
		spinner.Start()
	}
	results, err := runner.ExecuteAll(ctx, scenarios, pipeline.Options{
		Topology: opts.topology,
		DryRun:   opts.dryRun,
		Refresh:  opts.refresh,
		Persist:  opts.save,
	})
	if err != nil {
		if spinner != nil {
			spinner.StopWithError("Simulation failed")
		}
		return err
	}
	if spinner != nil {
		spinner.Stop()
	}

	frames, violations := 0, 0
	for _, res := range results {
		frames += res.Report.Stats.Frames
		violations += res.Report.Stats.Violations
		path := outputPath(opts.output, res.Report.Name, opts.format, len(results) > 1)
		if err := c.writeResult(ctx, runner, res, opts, path); err != nil {
			return err
		}
		if res.Stored {
			printSuccess("Saved report %s", res.Report.ID)
			printNextStep("Inspect it", fmt.Sprintf("%s inspect %s", appName, res.Report.ID))
		}
	}
	prog.done(fmt.Sprintf("Simulated %d frames", frames))

	if violations > 0 {
		return errors.New(errors.ErrCodeInternal, "%d frame(s) produced an invalid plan", violations)
	}
	return nil
}

func (c *CLI) writeResult(ctx context.Context, runner *pipeline.Runner, res *pipeline.Result, opts *simulateOpts, path string) error {
	rep := res.Report
	var data []byte
	switch opts.format {
	case pipeline.FormatText:
		if path == "" {
			printReport(rep, res.CacheHit)
			return nil
		}
		var b strings.Builder
		for _, fr := range rep.Frames {
			b.WriteString(fr.Dump)
			b.WriteString("\n")
		}
		data = []byte(b.String())
	case pipeline.FormatJSON:
		var err error
		if data, err = json.MarshalIndent(rep, "", "  "); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "encode report")
		}
		data = append(data, '\n')
	default:
		var (
			hit bool
			err error
		)
		if data, hit, err = runner.RenderFrame(ctx, rep, opts.frame, opts.format); err != nil {
			return err
		}
		loggerFromContext(ctx).Debug("rendered plan", "scenario", rep.Name, "frame", opts.frame, "cached", hit)
	}
	return c.writeOutput(path, data)
}

// writeOutput writes data to path, or to the CLI's output when path is
// empty.
func (c *CLI) writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := c.Out.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", dir)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
	}
	printFile(path)
	return nil
}

// outputPath names the output of one scenario. With several scenarios the
// name is inserted before the extension: plan.svg becomes plan-tv.svg.
func outputPath(base, name, format string, multi bool) string {
	if base == "" || !multi {
		return base
	}
	ext := filepath.Ext(base)
	if ext == "" {
		ext = "." + format
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + "-" + name + ext
}
