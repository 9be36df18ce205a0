package pipeline

import (
	"context"
	stderrors "errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/hwcomposer/pkg/cache"
	"github.com/matzehuels/hwcomposer/pkg/errors"
	"github.com/matzehuels/hwcomposer/pkg/hwc"
	"github.com/matzehuels/hwcomposer/pkg/observability"
	"github.com/matzehuels/hwcomposer/pkg/scenario"
	"github.com/matzehuels/hwcomposer/pkg/sim"
	"github.com/matzehuels/hwcomposer/pkg/store"
)

// =============================================================================
// Helpers
// =============================================================================

func uiLayer(id uint64, z int) scenario.Layer {
	return scenario.Layer{ID: id, Z: z, Frame: []int{0, 0, 1920, 1080}, Compressed: true}
}

// uiScenario runs n full-screen UI layers on three overlay planes, then
// hides layer 2 for a second frame.
func uiScenario(name string, n int) *scenario.Scenario {
	first := scenario.Frame{Name: "busy"}
	for i := range n {
		first.Layers = append(first.Layers, uiLayer(uint64(i+1), i))
	}
	return &scenario.Scenario{
		Name: name,
		Display: scenario.Display{
			Name: "panel",
			Planes: []sim.PlaneConfig{
				{ID: 1, Type: hwc.PlaneOverlay},
				{ID: 2, Type: hwc.PlaneOverlay},
				{ID: 3, Type: hwc.PlaneOverlay},
			},
			Composers: []sim.ComposerConfig{
				{ID: "gpu", Kind: "universal"},
				{ID: "dummy", Kind: "discard"},
			},
		},
		Frames: []scenario.Frame{
			first,
			{
				Name:   "hidden",
				Debug:  []string{"--hide-layer 2"},
				Layers: []scenario.Layer{uiLayer(1, 0), uiLayer(2, 1), uiLayer(3, 2)},
			},
		},
	}
}

func quietLogger() *log.Logger { return log.New(io.Discard) }

func newRunner(t *testing.T, st store.Store) *Runner {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	r := NewRunner(c, nil, st, quietLogger())
	t.Cleanup(func() { r.Close() })
	return r
}

type recorder struct {
	mu      sync.Mutex
	decides int
	commits int
	hits    map[string]int
	misses  map[string]int
}

func newRecorder() *recorder {
	return &recorder{hits: map[string]int{}, misses: map[string]int{}}
}

func (r *recorder) OnDecideStart(context.Context, string, int) {}
func (r *recorder) OnDecideComplete(context.Context, string, string, time.Duration, error) {
	r.mu.Lock()
	r.decides++
	r.mu.Unlock()
}
func (r *recorder) OnCommit(context.Context, string, int, int, int, time.Duration) {
	r.mu.Lock()
	r.commits++
	r.mu.Unlock()
}
func (r *recorder) OnCacheHit(_ context.Context, kind string) {
	r.mu.Lock()
	r.hits[kind]++
	r.mu.Unlock()
}
func (r *recorder) OnCacheMiss(_ context.Context, kind string) {
	r.mu.Lock()
	r.misses[kind]++
	r.mu.Unlock()
}
func (r *recorder) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Options
// =============================================================================

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"text", false},
		{"json", false},
		{"dot", false},
		{"svg", false},
		{"png", false},
		{"SVG", true},
		{"", true},
	}
	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
	}
}

func TestValidateTopology(t *testing.T) {
	for _, ok := range []string{"", "auto", "simple", "multi", "multi-channel"} {
		if err := ValidateTopology(ok); err != nil {
			t.Errorf("ValidateTopology(%q) = %v", ok, err)
		}
	}
	if err := ValidateTopology("triple"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("ValidateTopology(triple) = %v", err)
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults: %v", err)
	}
	if opts.Logger == nil {
		t.Error("Logger not defaulted")
	}
	if k := opts.ReportKeyOpts("simple"); k.Topology != "simple" || !k.Commit {
		t.Errorf("ReportKeyOpts = %+v", k)
	}
	opts = Options{Topology: "multi", DryRun: true}
	if k := opts.ReportKeyOpts("simple"); k.Topology != "multi" || k.Commit {
		t.Errorf("override ReportKeyOpts = %+v", k)
	}
}

// =============================================================================
// Simulation
// =============================================================================

func TestSimulate(t *testing.T) {
	r := newRunner(t, nil)
	rep, err := r.Simulate(context.Background(), uiScenario("ui", 5), Options{})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}

	if rep.ID == "" || rep.Strategy != "simple" || rep.Topology != hwc.TopologySimple || rep.Display != "panel" {
		t.Errorf("report header = %+v", rep)
	}
	if !rep.OK() {
		for _, f := range rep.Frames {
			t.Errorf("frame %d: %s", f.Index, f.Violation)
		}
	}
	if rep.Stats.Frames != 2 || rep.Stats.Layers != 8 {
		t.Errorf("stats = %+v", rep.Stats)
	}

	busy, _ := rep.Frame(0)
	if busy.Plan.Job == nil || len(busy.Plan.Job.Inputs) != 3 {
		t.Errorf("five layers on three planes: job = %+v", busy.Plan.Job)
	}
	if busy.Commit == nil || busy.Snapshot == nil || len(busy.Commit.Bound) != 3 {
		t.Errorf("commit = %+v", busy.Commit)
	}
	if !strings.Contains(busy.Dump, "composer gpu") {
		t.Errorf("dump:\n%s", busy.Dump)
	}

	hidden, _ := rep.Frame(1)
	switch a := hidden.Layers[1].Assignment; a {
	case hwc.Discarded(), hwc.OnComposer("dummy"):
	default:
		t.Errorf("hidden layer 2 = %v", a)
	}
	if len(hidden.Overrides) != 1 || rep.Stats.Discarded != 1 {
		t.Errorf("overrides = %v, discarded = %d", hidden.Overrides, rep.Stats.Discarded)
	}
	if rep.Stats.Direct != 2+2 || rep.Stats.Composed != 3 {
		t.Errorf("direct = %d composed = %d", rep.Stats.Direct, rep.Stats.Composed)
	}

	if _, err := rep.Frame(2); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Frame(2) = %v", err)
	}
}

func TestSimulateOverridesPersist(t *testing.T) {
	sc := uiScenario("persist", 3)
	sc.Frames = append(sc.Frames, scenario.Frame{Layers: []scenario.Layer{uiLayer(1, 0), uiLayer(2, 1)}})

	rep, err := newRunner(t, nil).Simulate(context.Background(), sc, Options{})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	last := rep.Frames[2]
	if a := last.Layers[1].Assignment; a.IsPlane(hwc.PlaneOverlay) {
		t.Errorf("layer 2 shown again after --hide-layer: %v", a)
	}
}

func TestSimulateDryRun(t *testing.T) {
	rep, err := newRunner(t, nil).Simulate(context.Background(), uiScenario("dry", 2), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	for _, f := range rep.Frames {
		if f.Commit != nil || f.Snapshot != nil {
			t.Errorf("frame %d committed during a dry run", f.Index)
		}
		if f.Plan == nil {
			t.Errorf("frame %d has no plan", f.Index)
		}
	}
}

func TestSimulateTopologyOverride(t *testing.T) {
	rep, err := newRunner(t, nil).Simulate(context.Background(), uiScenario("multi", 2), Options{Topology: "multi"})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if rep.Strategy != "multi" || rep.Topology != hwc.TopologyMultiChannel {
		t.Errorf("strategy = %s topology = %s", rep.Strategy, rep.Topology)
	}
}

func TestSimulateRejectsBadHardware(t *testing.T) {
	sc := uiScenario("bad", 1)
	sc.Display.Composers = append(sc.Display.Composers, sim.ComposerConfig{ID: "gpu", Kind: "universal"})
	_, err := newRunner(t, nil).Simulate(context.Background(), sc, Options{})
	if !errors.Is(err, errors.ErrCodeInvalidScenario) {
		t.Errorf("duplicate composer: %v", err)
	}
}

func TestSimulateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newRunner(t, nil).Simulate(ctx, uiScenario("x", 1), Options{})
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// =============================================================================
// Caching and persistence
// =============================================================================

func TestExecuteCaches(t *testing.T) {
	rec := newRecorder()
	observability.SetFrameHooks(rec)
	observability.SetCacheHooks(rec)
	defer observability.Reset()

	ctx := context.Background()
	r := newRunner(t, nil)
	sc := uiScenario("cached", 4)

	first, err := r.Execute(ctx, sc, Options{})
	if err != nil || first.CacheHit {
		t.Fatalf("first Execute = %+v, %v", first, err)
	}
	second, err := r.Execute(ctx, sc, Options{})
	if err != nil || !second.CacheHit || second.Report.ID != first.Report.ID {
		t.Fatalf("second Execute = %+v, %v; want a cache hit", second, err)
	}
	dry, _ := r.Execute(ctx, sc, Options{DryRun: true})
	if dry.CacheHit {
		t.Error("dry run served from the committed report")
	}
	fresh, _ := r.Execute(ctx, sc, Options{Refresh: true})
	if fresh.CacheHit || fresh.Report.ID == first.Report.ID {
		t.Error("Refresh served from the cache")
	}

	if rec.hits["report"] != 1 || rec.misses["report"] != 2 {
		t.Errorf("hits = %v misses = %v", rec.hits, rec.misses)
	}
	if rec.decides != 3*2 || rec.commits != 2*2 {
		t.Errorf("decides = %d commits = %d", rec.decides, rec.commits)
	}
}

func TestExecutePersists(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	r := newRunner(t, st)

	res, err := r.Execute(ctx, uiScenario("stored", 2), Options{Persist: true})
	if err != nil || !res.Stored {
		t.Fatalf("Execute = %+v, %v", res, err)
	}
	got, err := r.Report(ctx, res.Report.ID)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if got.Name != "stored" || len(got.Frames) != 2 || got.Frames[0].Plan == nil {
		t.Errorf("stored report = %+v", got)
	}
	if _, err := r.Report(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, errors.ErrCodeReportNotFound) {
		t.Errorf("unknown id: %v", err)
	}

	noStore := newRunner(t, nil)
	if _, err := noStore.Execute(ctx, uiScenario("x", 1), Options{Persist: true}); !errors.Is(err, errors.ErrCodeMissingResource) {
		t.Errorf("Persist without store: %v", err)
	}
	if _, err := noStore.Report(ctx, res.Report.ID); !errors.Is(err, errors.ErrCodeMissingResource) {
		t.Errorf("Report without store: %v", err)
	}
}

func TestExecuteAll(t *testing.T) {
	var scenarios []*scenario.Scenario
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		scenarios = append(scenarios, uiScenario(name, i+1))
	}
	results, err := newRunner(t, nil).ExecuteAll(context.Background(), scenarios, Options{})
	if err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}
	for i, res := range results {
		if res.Report.Name != scenarios[i].Name {
			t.Errorf("result %d is %s", i, res.Report.Name)
		}
	}

	scenarios[2] = nil
	if _, err := newRunner(t, nil).ExecuteAll(context.Background(), scenarios, Options{}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("nil scenario: %v", err)
	}
}

func TestReportRoundTrip(t *testing.T) {
	rep, _ := newRunner(t, nil).Simulate(context.Background(), uiScenario("json", 4), Options{})
	data, err := MarshalReport(rep)
	if err != nil {
		t.Fatalf("MarshalReport: %v", err)
	}
	back, err := UnmarshalReport(data)
	if err != nil {
		t.Fatalf("UnmarshalReport: %v", err)
	}
	if back.Frames[0].Layers[3].Assignment != rep.Frames[0].Layers[3].Assignment {
		t.Error("assignment lost in JSON")
	}
	if back.Frames[0].Plan.Band != rep.Frames[0].Plan.Band {
		t.Error("band lost in JSON")
	}
	if _, err := UnmarshalReport([]byte("{")); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("UnmarshalReport(garbage) = %v", err)
	}
}

// =============================================================================
// Rendering
// =============================================================================

func TestRenderFrame(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t, nil)
	rep, _ := r.Simulate(ctx, uiScenario("draw", 5), Options{})

	dot, hit, err := r.RenderFrame(ctx, rep, 0, FormatDOT)
	if err != nil || hit {
		t.Fatalf("RenderFrame = %v, %v", hit, err)
	}
	for _, want := range []string{"digraph plan", "draw / panel / frame 0", `-> "composer_gpu"`} {
		if !strings.Contains(string(dot), want) {
			t.Errorf("DOT missing %s", want)
		}
	}
	if _, hit, _ := r.RenderFrame(ctx, rep, 0, FormatDOT); !hit {
		t.Error("second render missed the cache")
	}

	if _, _, err := r.RenderFrame(ctx, rep, 7, FormatDOT); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("frame 7: %v", err)
	}
	if _, _, err := r.RenderFrame(ctx, rep, 0, FormatJSON); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("json diagram: %v", err)
	}
}

func TestExampleScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "examples", "*.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Skip("no example scenarios")
	}
	r := NewRunner(cache.NewNullCache(), nil, nil, quietLogger())
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			sc, err := scenario.Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			res, err := r.Execute(context.Background(), sc, Options{})
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			for _, f := range res.Report.Frames {
				if f.Violation != "" {
					t.Errorf("frame %d (%s): %s", f.Index, f.Name, f.Violation)
				}
			}
		})
	}
}
