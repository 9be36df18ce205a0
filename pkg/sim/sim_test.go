package sim

import (
	"testing"

	"github.com/matzehuels/hwcomposer/pkg/errors"
	"github.com/matzehuels/hwcomposer/pkg/hwc"
)

func TestPlaneSupports(t *testing.T) {
	overlay, _ := NewPlane(PlaneConfig{ID: 1, Type: hwc.PlaneOverlay})
	video, _ := NewPlane(PlaneConfig{ID: 2, Type: hwc.PlaneVideo})
	cursor, _ := NewPlane(PlaneConfig{ID: 3, Type: hwc.PlaneCursor})

	full := hwc.NewRect(0, 0, 1920, 1080)
	tests := []struct {
		name  string
		plane *Plane
		layer *hwc.Layer
		want  bool
	}{
		{"overlay scanout", overlay, &hwc.Layer{Format: hwc.FormatScanout, Crop: full, Frame: full}, true},
		{"overlay rotated", overlay, &hwc.Layer{Format: hwc.FormatScanout, Crop: full, Frame: full, Transform: hwc.Rot90}, false},
		{"overlay empty crop", overlay, &hwc.Layer{Format: hwc.FormatScanout, Frame: full}, false},
		{"overlay color", overlay, &hwc.Layer{Format: hwc.FormatSolidColor, Crop: full, Frame: full}, false},
		{"overlay composer output", overlay, &hwc.Layer{Format: hwc.FormatSolidColor, Crop: full, Frame: full, ComposedBy: "gpu"}, true},
		{"video sideband", video, &hwc.Layer{Format: hwc.FormatVideoSideband}, true},
		{"video scanout", video, &hwc.Layer{Format: hwc.FormatScanout, Crop: full, Frame: full}, false},
		{"cursor", cursor, &hwc.Layer{Format: hwc.FormatCursor, Crop: hwc.NewRect(0, 0, 64, 64), Frame: hwc.NewRect(10, 10, 64, 64)}, true},
		{"nil", overlay, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.plane.Supports(tt.layer); got != tt.want {
				t.Errorf("Supports() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlaneRecordsCalls(t *testing.T) {
	p, err := NewPlane(PlaneConfig{ID: 4, Type: hwc.PlaneOverlay, Capabilities: []string{"primary"}})
	if err != nil {
		t.Fatalf("NewPlane: %v", err)
	}
	if !p.Capabilities().Has(hwc.CapPrimary) {
		t.Error("primary capability lost")
	}
	if err := p.SetContent(&hwc.Layer{ID: 7}, 65); err != nil {
		t.Fatalf("SetContent: %v", err)
	}
	if s := p.State(); s.Layer != 7 || s.Zorder != 65 || s.Blanked {
		t.Errorf("state = %+v", s)
	}
	_ = p.Blank(true)
	if s := p.State(); !s.Blanked || s.Layer != 0 {
		t.Errorf("state after blank = %+v", s)
	}
	if n := len(p.Calls()); n != 2 {
		t.Errorf("recorded %d calls, want 2", n)
	}
}

func TestPlaneReject(t *testing.T) {
	p, _ := NewPlane(PlaneConfig{ID: 1, Type: hwc.PlaneOverlay, Reject: true})
	err := p.SetContent(&hwc.Layer{ID: 1}, 1)
	if !errors.Is(err, errors.ErrCodePlaneRejected) {
		t.Errorf("SetContent() = %v, want PLANE_REJECTED", err)
	}
}

func TestNewPlaneBadConfig(t *testing.T) {
	if _, err := NewPlane(PlaneConfig{ID: 1, Capabilities: []string{"teleport"}}); err == nil {
		t.Error("unknown capability accepted")
	}
	if _, err := NewPlane(PlaneConfig{ID: 1, Formats: []string{"jpeg"}}); err == nil {
		t.Error("unknown format accepted")
	}
}

func TestComposerOutput(t *testing.T) {
	c, err := NewComposer(ComposerConfig{ID: "gpu", Kind: "universal"})
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	if err := c.AddInputs([]*hwc.Layer{
		{ID: 1, Z: 3, Frame: hwc.NewRect(0, 0, 100, 100)},
		{ID: 2, Z: 5, Frame: hwc.NewRect(50, 50, 100, 100)},
	}); err != nil {
		t.Fatalf("AddInputs: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	out := c.Output()
	if out.Z != 5 || out.ComposedBy != "gpu" {
		t.Errorf("output z=%d composedBy=%q", out.Z, out.ComposedBy)
	}
	if want := hwc.NewRect(0, 0, 150, 150); out.Frame != want {
		t.Errorf("output frame = %v, want %v", out.Frame, want)
	}
	if s := c.State(); s.Starts != 1 || len(s.Inputs) != 2 {
		t.Errorf("state = %+v", s)
	}
}

func TestComposerFailures(t *testing.T) {
	c, _ := NewComposer(ComposerConfig{ID: "g2d", Kind: "specialized", Fail: true})
	_ = c.AddInputs([]*hwc.Layer{{ID: 1}})
	if err := c.Start(); !errors.Is(err, errors.ErrCodeComposerFailed) {
		t.Errorf("Start() = %v, want COMPOSER_FAILED", err)
	}

	empty, _ := NewComposer(ComposerConfig{ID: "gpu", Kind: "client"})
	if err := empty.Start(); err == nil {
		t.Error("Start() without inputs should fail")
	}

	if _, err := NewComposer(ComposerConfig{ID: "x", Kind: "quantum"}); err == nil {
		t.Error("unknown composer kind accepted")
	}
}

func TestSpecializedComposerSupports(t *testing.T) {
	c, _ := NewComposer(ComposerConfig{ID: "g2d", Kind: "specialized"})
	if !c.Supports(&hwc.Layer{Format: hwc.FormatScanout}) {
		t.Error("scanout should be supported by default")
	}
	if c.Supports(&hwc.Layer{Format: hwc.FormatClientRendered}) {
		t.Error("client-rendered should not be supported")
	}
	if c.Supports(&hwc.Layer{Format: hwc.FormatScanout, Transform: hwc.FlipH}) {
		t.Error("transformed layer should not be supported")
	}
}

func TestDisplaySnapshot(t *testing.T) {
	d, err := NewDisplay(DisplayConfig{
		Name: "panel",
		Planes: []PlaneConfig{
			{ID: 1, Type: hwc.PlaneOverlay},
			{ID: 2, Type: hwc.PlaneVideo},
		},
		Composers: []ComposerConfig{{ID: "gpu", Kind: "universal"}},
	})
	if err != nil {
		t.Fatalf("NewDisplay: %v", err)
	}
	cat, err := d.Catalog()
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if len(cat.Planes()) != 2 || len(cat.Composers()) != 1 {
		t.Fatalf("catalog has %d planes, %d composers", len(cat.Planes()), len(cat.Composers()))
	}

	_ = d.Crtc.SetDisplayFrame(hwc.DisplayFrame{FramebufferWidth: 1920, FramebufferHeight: 1080, Display: hwc.NewRect(0, 0, 3840, 2160)})
	_ = d.Crtc.SetOsdChannels(2)
	s := d.Snapshot()
	if s.DisplayFrame == nil || s.DisplayFrame.FramebufferWidth != 1920 {
		t.Errorf("display frame = %+v", s.DisplayFrame)
	}
	if s.OsdChannels != 2 || len(s.Planes) != 2 || !s.Planes[0].Blanked {
		t.Errorf("snapshot = %+v", s)
	}
}
