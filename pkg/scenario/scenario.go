// Package scenario loads simulation scenarios.
//
// A scenario describes one display (its planes, composers, topology and
// flags) and a sequence of frames. Each frame lists its layers and may
// carry debug commands that edit the display's overrides before the frame
// is decided, the way an operator would between two vsyncs. Scenarios are
// written in TOML; JSON is accepted for API requests.
//
//	name = "tv-dual-video"
//
//	[display]
//	name = "hdmi"
//	[[display.planes]]
//	id = 1
//	type = "overlay"
//	capabilities = ["primary"]
//	[[display.composers]]
//	id = "gpu"
//	kind = "universal"
//
//	[[frames]]
//	[[frames.layers]]
//	id = 1
//	z = 0
//	format = "video"
//	frame = [0, 0, 1920, 1080]
package scenario

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/hwcomposer/pkg/cache"
	"github.com/matzehuels/hwcomposer/pkg/errors"
	"github.com/matzehuels/hwcomposer/pkg/hwc"
	"github.com/matzehuels/hwcomposer/pkg/sim"
)

// Input formats.
const (
	FormatTOML = "toml"
	FormatJSON = "json"
)

// Scenario is a display plus the frames to run on it.
type Scenario struct {
	Name    string  `toml:"name" json:"name"`
	Display Display `toml:"display" json:"display"`
	Frames  []Frame `toml:"frames" json:"frames"`
}

// Display is the simulated hardware of a scenario.
type Display struct {
	Name string `toml:"name" json:"name"`
	// Topology forces a strategy: "simple", "multi" or "auto" (default).
	Topology  string               `toml:"topology" json:"topology,omitempty"`
	Flags     hwc.Flags            `toml:"flags" json:"flags"`
	Planes    []sim.PlaneConfig    `toml:"planes" json:"planes"`
	Composers []sim.ComposerConfig `toml:"composers" json:"composers"`
}

// Config returns the simulator configuration of d.
func (d Display) Config() sim.DisplayConfig {
	return sim.DisplayConfig{Name: d.Name, Planes: d.Planes, Composers: d.Composers}
}

// Frame is one vsync worth of layers.
type Frame struct {
	Name string `toml:"name" json:"name,omitempty"`
	// Flags replace the display flags for this frame when set.
	Flags *hwc.Flags `toml:"flags" json:"flags,omitempty"`
	// Debug holds debug commands applied before the frame is decided.
	// Overrides persist into later frames.
	Debug  []string `toml:"debug" json:"debug,omitempty"`
	Layers []Layer  `toml:"layers" json:"layers"`
}

// Layer is the file form of an hwc.Layer. Rectangles are [left, top,
// right, bottom].
type Layer struct {
	ID          uint64          `toml:"id" json:"id"`
	Z           int             `toml:"z" json:"z"`
	Format      hwc.FormatClass `toml:"format" json:"format"`
	Crop        []int           `toml:"crop" json:"crop,omitempty"`
	Frame       []int           `toml:"frame" json:"frame"`
	Transform   string          `toml:"transform" json:"transform,omitempty"`
	Blend       string          `toml:"blend" json:"blend,omitempty"`
	Alpha       *float32        `toml:"alpha" json:"alpha,omitempty"`
	Secure      bool            `toml:"secure" json:"secure,omitempty"`
	ForceClient bool            `toml:"client" json:"client,omitempty"`
	Compressed  bool            `toml:"compressed" json:"compressed,omitempty"`
	Hints       []string        `toml:"hints" json:"hints,omitempty"`
}

var transforms = map[string]hwc.Transform{
	"":       0,
	"none":   0,
	"flip-h": hwc.FlipH,
	"flip-v": hwc.FlipV,
	"rot90":  hwc.Rot90,
	"rot180": hwc.Rot180,
	"rot270": hwc.Rot270,
}

var blends = map[string]hwc.BlendMode{
	"":              hwc.BlendPremultiplied,
	"none":          hwc.BlendNone,
	"premultiplied": hwc.BlendPremultiplied,
	"coverage":      hwc.BlendCoverage,
}

// =============================================================================
// Loading
// =============================================================================

// Load reads a scenario file. Files ending in .json are JSON, everything
// else is TOML.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeFileNotFound, "scenario file %s not found", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "open %s", path)
	}
	defer f.Close()

	format := FormatTOML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = FormatJSON
	}
	s, err := Decode(f, format)
	if err != nil {
		return nil, err
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Decode reads a scenario in the given format and validates it.
func Decode(r io.Reader, format string) (*Scenario, error) {
	var s Scenario
	switch format {
	case FormatTOML:
		if _, err := toml.NewDecoder(r).Decode(&s); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidScenario, err, "parse scenario")
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidScenario, err, "parse scenario")
		}
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown scenario format %q", format)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Encode writes s as TOML or JSON.
func (s *Scenario) Encode(w io.Writer, format string) error {
	switch format {
	case FormatTOML:
		return toml.NewEncoder(w).Encode(s)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	return errors.New(errors.ErrCodeInvalidFormat, "unknown scenario format %q", format)
}

// Hash identifies the scenario content. Scenarios that decode to the same
// value hash the same, whatever their source format.
func (s *Scenario) Hash() string {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(s)
	return cache.Hash(buf.Bytes())
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks everything the simulator and the strategies rely on.
// Hardware configuration errors are left to sim.NewDisplay.
func (s *Scenario) Validate() error {
	if s.Name != "" {
		if err := errors.ValidateName(s.Name); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidScenario, err, "scenario name")
		}
	}
	if err := errors.ValidateName(s.Display.Name); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidScenario, err, "display name")
	}
	switch s.Display.Topology {
	case "", "auto":
	default:
		if _, ok := hwc.ParseTopology(s.Display.Topology); !ok {
			return errors.New(errors.ErrCodeInvalidScenario, "unknown topology %q", s.Display.Topology)
		}
	}
	if len(s.Display.Planes) == 0 && len(s.Display.Composers) == 0 {
		return errors.New(errors.ErrCodeInvalidScenario, "display %s has neither planes nor composers", s.Display.Name)
	}
	if len(s.Frames) == 0 {
		return errors.New(errors.ErrCodeInvalidScenario, "scenario has no frames")
	}
	for i, f := range s.Frames {
		if err := f.validate(); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidScenario, err, "frame %d", i)
		}
	}
	return nil
}

func (f Frame) validate() error {
	if len(f.Layers) > errors.MaxLayers {
		return errors.New(errors.ErrCodeInvalidScenario, "%d layers, at most %d allowed", len(f.Layers), errors.MaxLayers)
	}
	seen := make(map[uint64]bool, len(f.Layers))
	for _, l := range f.Layers {
		if seen[l.ID] {
			return errors.New(errors.ErrCodeInvalidScenario, "duplicate layer id %d", l.ID)
		}
		seen[l.ID] = true
		if _, err := l.toLayer(); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidScenario, err, "layer %d", l.ID)
		}
	}
	return nil
}

// =============================================================================
// Conversion
// =============================================================================

// Layers builds fresh hwc layers for the frame.
func (f Frame) Layers() ([]*hwc.Layer, error) {
	out := make([]*hwc.Layer, 0, len(f.Layers))
	for _, l := range f.Layers {
		hl, err := l.toLayer()
		if err != nil {
			return nil, err
		}
		out = append(out, hl)
	}
	return out, nil
}

// FlagsFor returns the flags frame f runs with.
func (d Display) FlagsFor(f Frame) hwc.Flags {
	if f.Flags != nil {
		return *f.Flags
	}
	return d.Flags
}

func (l Layer) toLayer() (*hwc.Layer, error) {
	if err := errors.ValidateZorder(l.Z); err != nil {
		return nil, err
	}
	frame, err := rect("frame", l.Frame)
	if err != nil {
		return nil, err
	}
	crop := hwc.NewRect(0, 0, frame.Width(), frame.Height())
	if l.Crop != nil {
		if crop, err = rect("crop", l.Crop); err != nil {
			return nil, err
		}
	}
	transform, ok := transforms[strings.ToLower(l.Transform)]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidScenario, "unknown transform %q", l.Transform)
	}
	blend, ok := blends[strings.ToLower(l.Blend)]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidScenario, "unknown blend mode %q", l.Blend)
	}
	alpha := float32(1)
	if l.Alpha != nil {
		alpha = *l.Alpha
	}
	if err := errors.ValidateAlpha(alpha); err != nil {
		return nil, err
	}
	hints, unknown := hwc.ParseVideoHints(l.Hints)
	if len(unknown) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidScenario, "unknown video hints %s", strings.Join(unknown, ", "))
	}

	return &hwc.Layer{
		ID:          hwc.LayerID(l.ID),
		Z:           l.Z,
		Crop:        crop,
		Frame:       frame,
		Format:      l.Format,
		Transform:   transform,
		Secure:      l.Secure,
		Blend:       blend,
		Alpha:       alpha,
		ForceClient: l.ForceClient,
		Compressed:  l.Compressed,
		Hints:       hints,
	}, nil
}

func rect(what string, v []int) (hwc.Rect, error) {
	if len(v) != 4 {
		return hwc.Rect{}, errors.New(errors.ErrCodeInvalidScenario, "%s needs 4 values [left, top, right, bottom], got %d", what, len(v))
	}
	if err := errors.ValidateRect(what, v[0], v[1], v[2], v[3]); err != nil {
		return hwc.Rect{}, err
	}
	return hwc.Rect{Left: v[0], Top: v[1], Right: v[2], Bottom: v[3]}, nil
}
