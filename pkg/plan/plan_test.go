package plan

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/matzehuels/hwcomposer/pkg/errors"
	"github.com/matzehuels/hwcomposer/pkg/hwc"
)

func registry(t *testing.T, layers ...*hwc.Layer) *hwc.Registry {
	t.Helper()
	reg, err := hwc.NewRegistry(layers)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

// validPlan shows layer 3 directly, composes 1 and 2 and discards 4.
func validPlan() *Plan {
	return &Plan{
		Entries: []Entry{
			{Plane: 2, Source: Source{Kind: SourceLayer, Layer: 3}, Zorder: 2, LayerZ: 2},
			{Plane: 1, Source: Source{Kind: SourceComposer, Layer: 2, Composer: "gpu"}, Zorder: 1, LayerZ: 1},
		},
		Blank:           []hwc.PlaneID{3},
		Job:             &Job{Composer: "gpu", Inputs: []hwc.LayerID{1, 2}},
		Discarded:       []hwc.LayerID{4},
		DiscardComposer: "dummy",
		ClientComposer:  "gpu",
		Band:            Range{Min: 0, Max: 1, Valid: true},
	}
}

func frameLayers() []*hwc.Layer {
	return []*hwc.Layer{
		{ID: 1, Z: 0, Assignment: hwc.OnComposer("gpu")},
		{ID: 2, Z: 1, Assignment: hwc.OnComposer("gpu")},
		{ID: 3, Z: 2, Assignment: hwc.OnPlane(hwc.PlaneOverlay)},
		{ID: 4, Z: 3, Assignment: hwc.OnComposer("dummy")},
	}
}

var allPlanes = []hwc.PlaneID{1, 2, 3}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Plan)
		want   string
	}{
		{"valid", func(*Plan) {}, ""},
		{"double binding", func(p *Plan) { p.Entries[1].Plane = 2 }, "bound twice"},
		{"unknown plane", func(p *Plan) { p.Entries[0].Plane = 9 }, "unknown plane"},
		{"plane neither bound nor blank", func(p *Plan) { p.Blank = nil }, "neither bound nor blank"},
		{"bound and blank", func(p *Plan) { p.Blank = []hwc.PlaneID{2, 3} }, "both bound and blank"},
		{"layer missing", func(p *Plan) { p.Discarded = nil }, "neither visible nor discarded"},
		{"discarded but visible", func(p *Plan) { p.Discarded = []hwc.LayerID{3, 4} }, "discarded layer 3 is visible"},
		{"shown twice", func(p *Plan) { p.Job.Inputs = []hwc.LayerID{1, 2, 3} }, "appears in 2 entries"},
		{"job without output", func(p *Plan) { p.Entries = p.Entries[:1]; p.Blank = []hwc.PlaneID{1, 3} }, "output entries"},
		{"output without job", func(p *Plan) { p.Job = nil }, "without a composer job"},
		{"empty job", func(p *Plan) { p.Job.Inputs = nil; p.Discarded = []hwc.LayerID{1, 2, 4} }, "no inputs"},
		{"order inverted", func(p *Plan) { p.Entries[0].Zorder = 0 }, "out of order"},
		{"band with a hole", func(p *Plan) {
			p.Job.Inputs = []hwc.LayerID{1, 3}
			p.Entries[0].Source.Layer, p.Entries[0].LayerZ = 2, 1
			p.Entries[1].Source.Layer, p.Entries[1].LayerZ = 3, 2
		}, "inside the composed range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPlan()
			tt.mutate(p)
			err := p.Validate(registry(t, frameLayers()...), allPlanes)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			if !errors.Is(err, errors.ErrCodeInternal) || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestValidateBandsAreIndependent(t *testing.T) {
	p := &Plan{
		Entries: []Entry{
			{Plane: 1, Source: Source{Kind: SourceLayer, Layer: 1}, Zorder: 65, LayerZ: 0, Band: BandOverlay},
			{Plane: 2, Source: Source{Kind: SourceLayer, Layer: 2}, Zorder: 134, LayerZ: 5, Band: BandVideoAbove},
			{Plane: 3, Source: Source{Kind: SourceVideoGroup, Layer: 3, Group: []hwc.LayerID{3, 4}}, Zorder: 2, LayerZ: 1, Band: BandVideoBelow},
		},
	}
	reg := registry(t, &hwc.Layer{ID: 1}, &hwc.Layer{ID: 2, Z: 5}, &hwc.Layer{ID: 3, Z: 1}, &hwc.Layer{ID: 4, Z: 2})
	if err := p.Validate(reg, allPlanes); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestVisibleAndEntry(t *testing.T) {
	p := validPlan()
	if got := p.Visible(); !reflect.DeepEqual(got, []hwc.LayerID{1, 2, 3}) {
		t.Errorf("Visible = %v", got)
	}
	if e, ok := p.Entry(1); !ok || e.Source.Kind != SourceComposer {
		t.Errorf("Entry(1) = %+v, %v", e, ok)
	}
	if _, ok := p.Entry(3); ok {
		t.Error("blank plane has an entry")
	}
}

func TestSort(t *testing.T) {
	p := &Plan{
		Entries: []Entry{{Plane: 3, Zorder: 5}, {Plane: 2, Zorder: 1}, {Plane: 1, Zorder: 5}},
		Blank:   []hwc.PlaneID{9, 4},
	}
	p.Sort()
	var got []hwc.PlaneID
	for _, e := range p.Entries {
		got = append(got, e.Plane)
	}
	if !reflect.DeepEqual(got, []hwc.PlaneID{2, 1, 3}) || !reflect.DeepEqual(p.Blank, []hwc.PlaneID{4, 9}) {
		t.Errorf("Sort: entries %v blank %v", got, p.Blank)
	}
}

func TestCloneIsDeep(t *testing.T) {
	p := validPlan()
	p.Display = &Display{Reference: 1, OsdChannels: 2}
	p.Entries[0].Source.Group = []hwc.LayerID{3}

	c := p.Clone()
	if !reflect.DeepEqual(p, c) {
		t.Fatalf("clone differs: %+v", c)
	}
	c.Job.Inputs[0] = 99
	c.Display.OsdChannels = 7
	c.Entries[0].Source.Group[0] = 99
	c.Blank[0] = 99
	if p.Job.Inputs[0] != 1 || p.Display.OsdChannels != 2 || p.Entries[0].Source.Group[0] != 3 || p.Blank[0] != 3 {
		t.Error("clone shares state with the original")
	}
}

func TestChanges(t *testing.T) {
	layers := frameLayers()
	layers[0].ForceClient = true
	layers = append(layers, &hwc.Layer{ID: 5, Z: 4, Format: hwc.FormatClientRendered, Assignment: hwc.OnPlane(hwc.PlaneOverlay)})

	got := validPlan().Changes(registry(t, layers...))
	want := []Change{
		{Layer: 2, Requested: CompositionDevice, Final: CompositionClient},
		{Layer: 5, Requested: CompositionClient, Final: CompositionDevice},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Changes = %+v, want %+v", got, want)
	}
}

func TestRange(t *testing.T) {
	r := Range{Min: 2, Max: 4, Valid: true}
	if !r.Contains(2) || !r.Contains(4) || r.Contains(5) || (Range{}).Contains(0) {
		t.Error("Contains mismatch")
	}
	if r.String() != "[2, 4]" || (Range{}).String() != "none" {
		t.Errorf("String = %q / %q", r.String(), Range{}.String())
	}
}

func TestPlanJSON(t *testing.T) {
	p := validPlan()
	p.Topology = hwc.TopologyMultiChannel
	p.Entries[0].Band = BandVideoAbove
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, s := range []string{`"topology":"multi"`, `"kind":"composer"`, `"band":"video-above"`} {
		if !strings.Contains(string(data), s) {
			t.Errorf("JSON missing %s: %s", s, data)
		}
	}
	var back Plan
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(&back, p) {
		t.Errorf("round trip differs:\n%+v\n%+v", back, p)
	}
}

func TestLayers(t *testing.T) {
	reg := registry(t, frameLayers()...)
	reg.Get(2).ClearRequested = true

	got := Layers(reg)
	if len(got) != 4 || got[0].ID != 1 || got[3].ID != 4 {
		t.Fatalf("Layers = %+v", got)
	}
	if !got[1].ClearRequested || got[2].Assignment != hwc.OnPlane(hwc.PlaneOverlay) {
		t.Errorf("layer state not captured: %+v", got[1:3])
	}

	data, _ := json.Marshal(got)
	if !strings.Contains(string(data), `"assignment":"composer(gpu)"`) {
		t.Errorf("JSON = %s", data)
	}
	var back []LayerState
	if err := json.Unmarshal(data, &back); err != nil || !reflect.DeepEqual(back, got) {
		t.Errorf("round trip = %+v, %v", back, err)
	}
}
