package hwc

import (
	"reflect"
	"testing"

	"github.com/matzehuels/hwcomposer/pkg/errors"
)

func TestRect(t *testing.T) {
	a := NewRect(0, 0, 100, 50)
	b := NewRect(100, 0, 100, 50)
	c := NewRect(50, 25, 100, 50)

	if a.Width() != 100 || a.Height() != 50 || a.Area() != 5000 {
		t.Errorf("a = %v: %dx%d area %d", a, a.Width(), a.Height(), a.Area())
	}
	if a.Intersects(b) {
		t.Error("touching rectangles should not intersect")
	}
	if !a.Intersects(c) {
		t.Error("overlapping rectangles should intersect")
	}
	if got, want := a.Union(c), (Rect{0, 0, 150, 75}); got != want {
		t.Errorf("Union = %v, want %v", got, want)
	}
	if got := (Rect{}).Union(b); got != b {
		t.Errorf("empty.Union = %v, want %v", got, b)
	}
	if !(Rect{Left: 5, Right: 5, Bottom: 10}).Empty() || (Rect{}).Area() != 0 {
		t.Error("degenerate rectangles should be empty")
	}
	if a.String() != "[0,0,100,50]" {
		t.Errorf("String = %q", a.String())
	}
}

func TestRegistryOrder(t *testing.T) {
	reg, err := NewRegistry([]*Layer{
		{ID: 7, Z: 2},
		{ID: 3, Z: 0},
		{ID: 5, Z: 2},
		{ID: 1, Z: 1},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	var got []LayerID
	for _, l := range reg.Ordered() {
		got = append(got, l.ID)
	}
	if want := []LayerID{3, 1, 5, 7}; !reflect.DeepEqual(got, want) {
		t.Errorf("Ordered = %v, want %v", got, want)
	}
	if reg.Len() != 4 || reg.Get(5).Z != 2 || reg.Get(9) != nil {
		t.Error("lookup mismatch")
	}

	reg.Get(3).Assignment = OnComposer("gpu")
	reg.Get(3).ClearRequested = true
	reg.Reset()
	if l := reg.Get(3); !l.Assignment.IsUndetermined() || l.ClearRequested {
		t.Errorf("Reset left %+v", l)
	}
}

func TestRegistryRejects(t *testing.T) {
	tests := map[string][]*Layer{
		"nil layer":    {{ID: 1}, nil},
		"duplicate id": {{ID: 1}, {ID: 1, Z: 3}},
	}
	for name, layers := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewRegistry(layers); !errors.Is(err, errors.ErrCodeInvalidSetup) {
				t.Errorf("NewRegistry() = %v, want INVALID_SETUP", err)
			}
		})
	}
	if reg, err := NewRegistry(nil); err != nil || reg.Len() != 0 {
		t.Errorf("empty frame: %v, %v", reg, err)
	}
}

func TestAssignment(t *testing.T) {
	tests := []struct {
		a     Assignment
		kind  AssignmentKind
		plane bool
		comp  bool
		str   string
	}{
		{Undetermined(), KindUndetermined, false, false, "undetermined"},
		{OnPlane(PlaneVideo), KindPlane, true, false, "plane(video)"},
		{OnComposer("gpu"), KindComposer, false, true, "composer(gpu)"},
		{Discarded(), KindDiscarded, false, false, "discarded"},
	}
	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			if tt.a.Kind() != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.a.Kind(), tt.kind)
			}
			if _, ok := tt.a.Plane(); ok != tt.plane {
				t.Errorf("Plane ok = %v", ok)
			}
			if _, ok := tt.a.Composer(); ok != tt.comp {
				t.Errorf("Composer ok = %v", ok)
			}
			if tt.a.String() != tt.str {
				t.Errorf("String = %q, want %q", tt.a.String(), tt.str)
			}
			var back Assignment
			if err := back.UnmarshalText([]byte(tt.str)); err != nil || back != tt.a {
				t.Errorf("UnmarshalText(%q) = %v, %v", tt.str, back, err)
			}
		})
	}
	for _, bad := range []string{"", "plane", "plane(warp)", "composer()", "composer(gpu"} {
		if _, ok := ParseAssignment(bad); ok {
			t.Errorf("ParseAssignment(%q) succeeded", bad)
		}
	}
	if OnPlane(PlaneVideo).IsPlane(PlaneOverlay) {
		t.Error("IsPlane matched the wrong type")
	}
	if (Assignment{}) != Undetermined() {
		t.Error("zero value should be undetermined")
	}
}

func TestLayerPredicates(t *testing.T) {
	full := NewRect(0, 0, 1920, 1080)
	tests := []struct {
		name     string
		layer    Layer
		video    bool
		composer bool
		geometry bool
	}{
		{"scanout", Layer{Crop: full, Frame: full}, false, false, true},
		{"video", Layer{Crop: full, Frame: full, Format: FormatVideoOverlay}, true, false, true},
		{"sideband", Layer{Crop: full, Frame: full, Format: FormatVideoComposedSideband}, true, false, true},
		{"solid color", Layer{Crop: full, Frame: full, Format: FormatSolidColor}, false, true, true},
		{"client", Layer{Crop: full, Frame: full, Format: FormatClientRendered}, false, true, true},
		{"rotated", Layer{Crop: full, Frame: full, Transform: Rot270}, false, false, false},
		{"empty frame", Layer{Crop: full}, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := tt.layer
			if l.IsVideo() != tt.video || l.NeedsComposer() != tt.composer || l.ValidGeometry() != tt.geometry {
				t.Errorf("video=%v composer=%v geometry=%v", l.IsVideo(), l.NeedsComposer(), l.ValidGeometry())
			}
		})
	}
}

func TestParsers(t *testing.T) {
	if f, ok := ParseFormatClass(" Sideband-TV "); !ok || f != FormatVideoComposedSideband {
		t.Errorf("ParseFormatClass = %v, %v", f, ok)
	}
	if _, ok := ParseFormatClass("yuv"); ok {
		t.Error("ParseFormatClass accepted an unknown name")
	}

	caps, err := ParseCapabilities([]string{"Primary", "video-conflict"})
	if err != nil || !caps.Has(CapPrimary|CapVideoConflict) || caps.Has(CapZorder) {
		t.Errorf("ParseCapabilities = %v, %v", caps, err)
	}
	if _, err := ParseCapabilities([]string{"rotate"}); err == nil {
		t.Error("ParseCapabilities accepted an unknown name")
	}

	hints, unknown := ParseVideoHints([]string{"hdr", "4K", "bogus"})
	if hints != HintHDR|Hint4K || !reflect.DeepEqual(unknown, []string{"bogus"}) {
		t.Errorf("ParseVideoHints = %v, %v", hints, unknown)
	}

	var pt PlaneType
	if err := pt.UnmarshalText([]byte("video-secondary")); err != nil || pt != PlaneVideoSecondary {
		t.Errorf("UnmarshalText = %v, %v", pt, err)
	}
	if k, ok := ParseComposerKind("dummy"); !ok || k != ComposerDiscard {
		t.Errorf("ParseComposerKind = %v, %v", k, ok)
	}
	if topo, ok := ParseTopology("multi"); !ok || topo != TopologyMultiChannel {
		t.Errorf("ParseTopology = %v, %v", topo, ok)
	}
}

func TestDebugOverridesClone(t *testing.T) {
	o := DebugOverrides{HiddenLayers: map[LayerID]bool{4: true, 2: true, 3: false}}
	c := o.Clone()
	c.HiddenLayers[9] = true
	if o.LayerHidden(9) {
		t.Error("Clone shares its map")
	}
	if got := o.HiddenLayerIDs(); !reflect.DeepEqual(got, []LayerID{2, 4}) {
		t.Errorf("HiddenLayerIDs = %v", got)
	}
	if o.PlaneHidden(1) || o.HiddenPlaneIDs() != nil {
		t.Error("no plane should be hidden")
	}
}
