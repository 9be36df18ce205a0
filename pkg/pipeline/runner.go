package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/hwcomposer/pkg/cache"
	"github.com/matzehuels/hwcomposer/pkg/debug"
	"github.com/matzehuels/hwcomposer/pkg/errors"
	"github.com/matzehuels/hwcomposer/pkg/hwc"
	"github.com/matzehuels/hwcomposer/pkg/observability"
	"github.com/matzehuels/hwcomposer/pkg/plan"
	"github.com/matzehuels/hwcomposer/pkg/render"
	"github.com/matzehuels/hwcomposer/pkg/scenario"
	"github.com/matzehuels/hwcomposer/pkg/sim"
	"github.com/matzehuels/hwcomposer/pkg/store"
	"github.com/matzehuels/hwcomposer/pkg/strategy"
)

// Runner encapsulates pipeline execution with caching and persistence.
// Both CLI and API use it so reports are produced the same way.
//
// The Runner is stateless except for its backends: every Execute builds
// its own simulated display and strategy. Multiple goroutines can safely
// use the same Runner.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Store  store.Store
	Logger *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching, a nil keyer
// means the default keyer and a nil store disables persistence.
func NewRunner(c cache.Cache, keyer cache.Keyer, st store.Store, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Store:  st,
		Logger: logger,
	}
}

// Execute runs a scenario, serving the report from the cache when the same
// scenario already ran with the same options.
func (r *Runner) Execute(ctx context.Context, sc *scenario.Scenario, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "nil scenario")
	}
	logger := opts.Logger

	key := r.Keyer.ReportKey(sc.Hash(), opts.ReportKeyOpts(sc.Display.Topology))
	if !opts.Refresh {
		data, hit, err := r.Cache.Get(ctx, key)
		if err != nil {
			logger.Warn("cache read failed", "err", err)
		}
		if hit {
			if rep, err := UnmarshalReport(data); err == nil {
				observability.Cache().OnCacheHit(ctx, "report")
				logger.Debug("report from cache", "scenario", rep.Name, "id", rep.ID)
				res := &Result{Report: rep, CacheHit: true}
				if opts.Persist {
					if err := r.persist(ctx, rep, data); err != nil {
						return nil, err
					}
					res.Stored = true
				}
				return res, nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, "report")
	}

	rep, err := r.Simulate(ctx, sc, opts)
	if err != nil {
		return nil, err
	}
	res := &Result{Report: rep}

	data, err := MarshalReport(rep)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode report")
	}
	if err := r.Cache.Set(ctx, key, data, cache.TTLReport); err != nil {
		logger.Warn("cache write failed", "err", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "report", len(data))
	}
	if opts.Persist {
		if err := r.persist(ctx, rep, data); err != nil {
			return nil, err
		}
		res.Stored = true
	}
	return res, nil
}

// ExecuteAll runs several scenarios concurrently. Results are in input
// order; the first error cancels the remaining runs.
func (r *Runner) ExecuteAll(ctx context.Context, scenarios []*scenario.Scenario, opts Options) ([]*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	results := make([]*Result, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultParallelism)
	for i, sc := range scenarios {
		g.Go(func() error {
			res, err := r.Execute(ctx, sc, opts)
			if err != nil {
				name := "<nil>"
				if sc != nil {
					name = sc.Name
				}
				return wrap(err, "scenario %s", name)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Simulate runs every frame of sc without touching the cache or the store.
func (r *Runner) Simulate(ctx context.Context, sc *scenario.Scenario, opts Options) (*Report, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	start := timeNow()

	d, err := sim.NewDisplay(sc.Display.Config())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidScenario, err, "display %s", sc.Display.Name)
	}
	cat, err := d.Catalog()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidScenario, err, "display %s", sc.Display.Name)
	}
	topology := opts.topologyFor(sc.Display.Topology)
	logger := opts.Logger.With("display", d.Name)
	s, err := strategy.New(cat, strategy.Options{Logger: logger, Display: d.Name, Topology: topology})
	if err != nil {
		return nil, err
	}

	rep := &Report{
		ID:           uuid.NewString(),
		Name:         sc.Name,
		ScenarioHash: sc.Hash(),
		Display:      d.Name,
		Strategy:     s.Name(),
		Topology:     cat.Topology(),
		DryRun:       opts.DryRun,
		CreatedAt:    start.UTC(),
	}
	if t, ok := hwc.ParseTopology(topology); ok {
		rep.Topology = t
	}

	planes := make([]hwc.PlaneID, len(d.Planes))
	for i, p := range d.Planes {
		planes[i] = p.ID()
	}

	var overrides hwc.DebugOverrides
	for i, f := range sc.Frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fr, err := r.runFrame(ctx, logger, d, s, &overrides, planes, sc.Display, i, f, opts)
		if err != nil {
			return nil, err
		}
		rep.Frames = append(rep.Frames, *fr)
		rep.Stats.add(fr)
	}
	rep.Stats.Duration = timeNow().Sub(start)

	logger.Info("simulated scenario",
		"scenario", rep.Name,
		"strategy", rep.Strategy,
		"frames", rep.Stats.Frames,
		"composed", rep.Stats.Composed,
		"discarded", rep.Stats.Discarded,
		"duration", rep.Stats.Duration)
	if rep.Stats.Violations > 0 {
		logger.Error("plans broke their invariants", "frames", rep.Stats.Violations)
	}
	return rep, nil
}

func (r *Runner) runFrame(
	ctx context.Context,
	logger *log.Logger,
	d *sim.Display,
	s strategy.Strategy,
	overrides *hwc.DebugOverrides,
	planes []hwc.PlaneID,
	display scenario.Display,
	index int,
	f scenario.Frame,
	opts Options,
) (*FrameReport, error) {
	logger = logger.With("frame", index)

	if len(f.Debug) > 0 {
		var args []string
		for _, cmd := range f.Debug {
			args = append(args, strings.Fields(cmd)...)
		}
		if err := debug.Apply(overrides, args); err != nil {
			logger.Warn("debug commands partly applied", "err", err)
		}
	}

	layers, err := f.Layers()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidScenario, err, "frame %d", index)
	}
	d.ResetCalls()

	fr := &FrameReport{
		Index:     index,
		Name:      f.Name,
		Flags:     display.FlagsFor(f),
		Overrides: f.Debug,
	}

	observability.Frame().OnDecideStart(ctx, d.Name, len(layers))
	start := timeNow()
	err = s.Setup(hwc.Frame{
		Layers:    layers,
		Flags:     fr.Flags,
		Overrides: overrides.Clone(),
		Crtc:      d.Crtc,
	})
	if err == nil {
		err = s.Decide()
	}
	fr.DecideTime = timeNow().Sub(start)
	observability.Frame().OnDecideComplete(ctx, d.Name, s.Name(), fr.DecideTime, err)
	if err != nil {
		return nil, wrap(err, "frame %d", index)
	}

	p := s.Plan()
	reg := s.Registry()
	if err := p.Validate(reg, planes); err != nil {
		fr.Violation = err.Error()
		logger.Error("plan invariant violated", "err", err)
	}

	var dump bytes.Buffer
	if err := s.Dump(&dump); err != nil {
		logger.Warn("dump failed", "err", err)
	}
	fr.Dump = dump.String()

	if !opts.DryRun {
		cr, err := s.Commit(ctx)
		if err != nil {
			return nil, wrap(err, "commit frame %d", index)
		}
		snap := d.Snapshot()
		fr.Commit = cr
		fr.Snapshot = &snap
		for _, fail := range cr.Failed {
			logger.Warn("plane starved", "plane", fail.Plane, "layers", fail.Layers, "reason", fail.Reason)
		}
	}

	fr.Plan = p.Clone()
	fr.Layers = plan.Layers(reg)
	fr.Changes = p.Changes(reg)
	logger.Debug("frame decided",
		"layers", len(layers),
		"band", p.Band,
		"changes", len(fr.Changes),
		"duration", fr.DecideTime)
	return fr, nil
}

// Report loads a stored report.
func (r *Runner) Report(ctx context.Context, id string) (*Report, error) {
	if r.Store == nil {
		return nil, errors.New(errors.ErrCodeMissingResource, "no report store configured")
	}
	rec, err := r.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return UnmarshalReport(rec.Data)
}

// RenderFrame draws frame index of rep as a plan diagram, with caching.
// It returns whether the diagram came from the cache.
func (r *Runner) RenderFrame(ctx context.Context, rep *Report, index int, format string) ([]byte, bool, error) {
	fr, err := rep.Frame(index)
	if err != nil {
		return nil, false, err
	}
	switch format {
	case FormatDOT, FormatSVG, FormatPNG:
	default:
		return nil, false, errors.New(errors.ErrCodeInvalidFormat, "cannot draw a plan as %q (must be one of: dot, svg, png)", format)
	}
	title := fmt.Sprintf("%s / %s / frame %d", rep.Name, rep.Display, index)

	frameData, err := MarshalReport(&Report{Name: title, Frames: []FrameReport{*fr}})
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInternal, err, "encode frame")
	}
	key := r.Keyer.RenderKey(cache.Hash(frameData), cache.RenderKeyOpts{Frame: index, Format: format})
	if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
		observability.Cache().OnCacheHit(ctx, "render")
		return data, true, nil
	}
	observability.Cache().OnCacheMiss(ctx, "render")

	dot := render.ToDOT(fr.Plan, fr.Layers, render.Options{Title: title})
	data, err := render.Render(ctx, dot, format)
	if err != nil {
		return nil, false, err
	}
	if err := r.Cache.Set(ctx, key, data, cache.TTLRender); err == nil {
		observability.Cache().OnCacheSet(ctx, "render", len(data))
	}
	return data, false, nil
}

func (r *Runner) persist(ctx context.Context, rep *Report, data []byte) error {
	if r.Store == nil {
		return errors.New(errors.ErrCodeMissingResource, "no report store configured")
	}
	rec := store.NewRecord(rep.Name, rep.ScenarioHash, data, store.DefaultTTL)
	rec.ID = rep.ID
	if err := r.Store.Save(ctx, rec); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "save report %s", rep.ID)
	}
	return nil
}

// Close releases the runner's cache and store.
func (r *Runner) Close() error {
	var first error
	if r.Cache != nil {
		first = r.Cache.Close()
	}
	if r.Store != nil {
		if err := r.Store.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// wrap adds context to err and keeps its code. Uncoded errors become
// internal errors.
func wrap(err error, format string, args ...any) error {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	return errors.Wrap(code, err, format, args...)
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
