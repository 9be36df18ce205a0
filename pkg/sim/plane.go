package sim

import (
	"github.com/matzehuels/hwcomposer/pkg/errors"
	"github.com/matzehuels/hwcomposer/pkg/hwc"
)

// PlaneConfig describes one simulated plane.
type PlaneConfig struct {
	ID           hwc.PlaneID   `json:"id" toml:"id" bson:"id"`
	Name         string        `json:"name,omitempty" toml:"name" bson:"name,omitempty"`
	Type         hwc.PlaneType `json:"type" toml:"type" bson:"type"`
	Capabilities []string      `json:"capabilities,omitempty" toml:"capabilities" bson:"capabilities,omitempty"`
	FixedZorder  int           `json:"fixed_zorder,omitempty" toml:"fixed_zorder" bson:"fixed_zorder,omitempty"`

	// Formats restricts the accepted format classes. Empty means the
	// default set for the plane type.
	Formats []string `json:"formats,omitempty" toml:"formats" bson:"formats,omitempty"`

	// Reject makes every SetContent call fail.
	Reject bool `json:"reject,omitempty" toml:"reject" bson:"reject,omitempty"`
}

// Call is one recorded plane operation.
type Call struct {
	Op     string      `json:"op"`
	Layer  hwc.LayerID `json:"layer,omitempty"`
	Zorder int         `json:"zorder,omitempty"`
	// Layers lists every layer of a compose call.
	Layers []hwc.LayerID `json:"layers,omitempty"`
}

// PlaneState is what a plane shows after a commit.
type PlaneState struct {
	ID      hwc.PlaneID   `json:"id" bson:"id"`
	Name    string        `json:"name" bson:"name"`
	Type    hwc.PlaneType `json:"type" bson:"type"`
	Layer   hwc.LayerID   `json:"layer,omitempty" bson:"layer,omitempty"`
	Zorder  int           `json:"zorder" bson:"zorder"`
	Blanked bool          `json:"blanked" bson:"blanked"`
	// Group is set while the plane merges several layers.
	Group []hwc.LayerID `json:"group,omitempty" bson:"group,omitempty"`
}

// Plane is an in-memory hwc.Plane that records the calls it receives.
type Plane struct {
	cfg     PlaneConfig
	caps    hwc.Capability
	formats map[hwc.FormatClass]bool

	calls   []Call
	layer   hwc.LayerID
	group   []hwc.LayerID
	zorder  int
	blanked bool
}

// NewPlane validates cfg and builds a plane.
func NewPlane(cfg PlaneConfig) (*Plane, error) {
	caps, err := hwc.ParseCapabilities(cfg.Capabilities)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidScenario, err, "plane %d", cfg.ID)
	}
	formats, err := parseFormats(cfg.Formats)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidScenario, err, "plane %d", cfg.ID)
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Type.String()
	}
	return &Plane{cfg: cfg, caps: caps, formats: formats, blanked: true}, nil
}

func (p *Plane) ID() hwc.PlaneID              { return p.cfg.ID }
func (p *Plane) Name() string                 { return p.cfg.Name }
func (p *Plane) Type() hwc.PlaneType          { return p.cfg.Type }
func (p *Plane) Capabilities() hwc.Capability { return p.caps }
func (p *Plane) FixedZorder() int             { return p.cfg.FixedZorder }
func (p *Plane) Calls() []Call                { return p.calls }
func (p *Plane) ResetCalls()                  { p.calls = nil }

// Supports applies the configured formats, or the defaults for the type:
// overlay planes take scanout, cursor and composer output; cursor planes
// take cursors; video planes take the video family. Overlay and cursor
// planes also require a layer without transform and with a non-empty crop
// and frame.
func (p *Plane) Supports(l *hwc.Layer) bool {
	if l == nil {
		return false
	}
	switch p.cfg.Type {
	case hwc.PlaneVideo, hwc.PlaneVideoSecondary:
		if p.formats != nil {
			return p.formats[l.Format]
		}
		return l.IsVideo()
	case hwc.PlaneCursor:
		if !l.ValidGeometry() {
			return false
		}
		if p.formats != nil {
			return p.formats[l.Format]
		}
		return l.Format == hwc.FormatCursor
	}
	if !l.ValidGeometry() {
		return false
	}
	if l.IsComposerOutput() {
		return true
	}
	if p.formats != nil {
		return p.formats[l.Format]
	}
	return l.Format == hwc.FormatScanout || l.Format == hwc.FormatCursor
}

// SetContent shows l at zorder.
func (p *Plane) SetContent(l *hwc.Layer, zorder int) error {
	if l == nil {
		return errors.New(errors.ErrCodePlaneRejected, "plane %d: nil layer", p.cfg.ID)
	}
	p.calls = append(p.calls, Call{Op: "set", Layer: l.ID, Zorder: zorder})
	if p.cfg.Reject {
		return errors.New(errors.ErrCodePlaneRejected, "plane %d rejected layer %d", p.cfg.ID, l.ID)
	}
	p.layer, p.zorder, p.blanked = l.ID, zorder, false
	p.group = nil
	return nil
}

// SetComposeContent merges layers on a video plane. Other plane types
// reject it.
func (p *Plane) SetComposeContent(layers []*hwc.Layer, zorder int) error {
	if len(layers) == 0 {
		return errors.New(errors.ErrCodePlaneRejected, "plane %d: empty compose group", p.cfg.ID)
	}
	ids := make([]hwc.LayerID, 0, len(layers))
	for _, l := range layers {
		if l == nil {
			return errors.New(errors.ErrCodePlaneRejected, "plane %d: nil layer in compose group", p.cfg.ID)
		}
		ids = append(ids, l.ID)
	}
	p.calls = append(p.calls, Call{Op: "compose", Layer: ids[0], Zorder: zorder, Layers: ids})
	if p.cfg.Reject {
		return errors.New(errors.ErrCodePlaneRejected, "plane %d rejected layers %v", p.cfg.ID, ids)
	}
	if p.cfg.Type != hwc.PlaneVideo && p.cfg.Type != hwc.PlaneVideoSecondary {
		return errors.New(errors.ErrCodePlaneRejected, "plane %d (%s) cannot merge layers", p.cfg.ID, p.cfg.Type)
	}
	p.layer, p.group, p.zorder, p.blanked = ids[0], ids, zorder, false
	return nil
}

// Blank turns the plane off or back on.
func (p *Plane) Blank(on bool) error {
	op := "unblank"
	if on {
		op = "blank"
		p.layer, p.zorder, p.group = 0, 0, nil
	}
	p.calls = append(p.calls, Call{Op: op})
	p.blanked = on
	return nil
}

// State returns what the plane currently shows.
func (p *Plane) State() PlaneState {
	return PlaneState{
		ID:      p.cfg.ID,
		Name:    p.cfg.Name,
		Type:    p.cfg.Type,
		Layer:   p.layer,
		Zorder:  p.zorder,
		Blanked: p.blanked,
		Group:   p.group,
	}
}

func parseFormats(names []string) (map[hwc.FormatClass]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	m := make(map[hwc.FormatClass]bool, len(names))
	for _, n := range names {
		f, ok := hwc.ParseFormatClass(n)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown format class %q", n)
		}
		m[f] = true
	}
	return m, nil
}
