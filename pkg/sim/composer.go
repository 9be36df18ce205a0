package sim

import (
	"github.com/matzehuels/hwcomposer/pkg/errors"
	"github.com/matzehuels/hwcomposer/pkg/hwc"
)

// OutputLayerID is the id every simulated composer gives its output. Only
// one composer output is shown per frame, so they never collide.
const OutputLayerID = ^hwc.LayerID(0)

// ComposerConfig describes one simulated composer.
type ComposerConfig struct {
	ID   hwc.ComposerID `json:"id" toml:"id" bson:"id"`
	Name string         `json:"name,omitempty" toml:"name" bson:"name,omitempty"`
	Kind string         `json:"kind" toml:"kind" bson:"kind"`

	// Formats lists what a specialized composer accepts. Empty means
	// scanout and solid color.
	Formats []string `json:"formats,omitempty" toml:"formats" bson:"formats,omitempty"`

	// Fail makes Start return an error.
	Fail bool `json:"fail,omitempty" toml:"fail" bson:"fail,omitempty"`
}

// ComposerState summarises a composer after a commit.
type ComposerState struct {
	ID       hwc.ComposerID `json:"id" bson:"id"`
	Kind     string         `json:"kind" bson:"kind"`
	Starts   int            `json:"starts" bson:"starts"`
	Inputs   []hwc.LayerID  `json:"inputs,omitempty" bson:"inputs,omitempty"`
	Overlays []hwc.LayerID  `json:"overlays,omitempty" bson:"overlays,omitempty"`
}

// Composer is an in-memory hwc.Composer. Its output covers the union of
// its inputs' frames and sits at the z of its top input.
type Composer struct {
	cfg     ComposerConfig
	kind    hwc.ComposerKind
	formats map[hwc.FormatClass]bool

	queued   []*hwc.Layer
	overlays []*hwc.Layer
	last     []hwc.LayerID
	starts   int
	output   *hwc.Layer
}

// NewComposer validates cfg and builds a composer.
func NewComposer(cfg ComposerConfig) (*Composer, error) {
	if cfg.ID == "" {
		return nil, errors.New(errors.ErrCodeInvalidScenario, "composer without id")
	}
	kind, ok := hwc.ParseComposerKind(cfg.Kind)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidScenario, "composer %q: unknown kind %q", cfg.ID, cfg.Kind)
	}
	formats, err := parseFormats(cfg.Formats)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidScenario, err, "composer %q", cfg.ID)
	}
	if formats == nil && kind == hwc.ComposerSpecialized {
		formats = map[hwc.FormatClass]bool{hwc.FormatScanout: true, hwc.FormatSolidColor: true}
	}
	if cfg.Name == "" {
		cfg.Name = string(cfg.ID)
	}
	return &Composer{cfg: cfg, kind: kind, formats: formats}, nil
}

func (c *Composer) ID() hwc.ComposerID     { return c.cfg.ID }
func (c *Composer) Name() string           { return c.cfg.Name }
func (c *Composer) Kind() hwc.ComposerKind { return c.kind }

// Supports accepts everything for the discard and universal kinds. A
// specialized composer needs a listed format and an untransformed layer.
func (c *Composer) Supports(l *hwc.Layer) bool {
	if l == nil {
		return false
	}
	if c.kind != hwc.ComposerSpecialized {
		return true
	}
	return c.formats[l.Format] && l.Transform == 0
}

// AddInputs queues layers for the next Start.
func (c *Composer) AddInputs(layers []*hwc.Layer) error {
	for _, l := range layers {
		if l == nil {
			return errors.New(errors.ErrCodeComposerFailed, "composer %q: nil input", c.cfg.ID)
		}
	}
	c.queued = append(c.queued, layers...)
	return nil
}

// SetOverlays implements hwc.OverlayAware.
func (c *Composer) SetOverlays(layers []*hwc.Layer) {
	c.overlays = layers
}

// Start composes the queued inputs and clears the queue.
func (c *Composer) Start() error {
	c.starts++
	if c.cfg.Fail {
		c.queued = nil
		return errors.New(errors.ErrCodeComposerFailed, "composer %q failed to start", c.cfg.ID)
	}
	if len(c.queued) == 0 {
		return errors.New(errors.ErrCodeComposerFailed, "composer %q started without inputs", c.cfg.ID)
	}

	out := &hwc.Layer{
		ID:         OutputLayerID,
		Format:     hwc.FormatScanout,
		Blend:      hwc.BlendPremultiplied,
		Alpha:      1,
		ComposedBy: c.cfg.ID,
	}
	c.last = c.last[:0]
	for i, l := range c.queued {
		if i == 0 || l.Z > out.Z {
			out.Z = l.Z
		}
		out.Frame = out.Frame.Union(l.Frame)
		c.last = append(c.last, l.ID)
	}
	out.Crop = hwc.NewRect(0, 0, out.Frame.Width(), out.Frame.Height())
	c.output = out
	c.queued = nil
	return nil
}

// Output returns the last composed buffer.
func (c *Composer) Output() *hwc.Layer { return c.output }

// Starts reports how often Start ran since the last reset.
func (c *Composer) Starts() int { return c.starts }

// ResetCalls clears the per-frame bookkeeping.
func (c *Composer) ResetCalls() {
	c.starts = 0
	c.last = nil
	c.overlays = nil
	c.queued = nil
}

// State returns the composer's per-frame summary.
func (c *Composer) State() ComposerState {
	s := ComposerState{
		ID:     c.cfg.ID,
		Kind:   c.kind.String(),
		Starts: c.starts,
		Inputs: append([]hwc.LayerID(nil), c.last...),
	}
	for _, l := range c.overlays {
		s.Overlays = append(s.Overlays, l.ID)
	}
	return s
}
