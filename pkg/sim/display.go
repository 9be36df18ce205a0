// Package sim provides in-memory planes, composers and a display
// controller that stand in for display hardware.
//
// Every simulated resource records what it was asked to do, so a frame's
// commit can be inspected after the fact through [Display.Snapshot]. The
// simulation pipeline, the CLI and the tests all drive the decision engine
// against a [Display].
package sim

import (
	"github.com/matzehuels/hwcomposer/pkg/errors"
	"github.com/matzehuels/hwcomposer/pkg/hwc"
)

// DisplayConfig describes the hardware of one display.
type DisplayConfig struct {
	Name      string           `json:"name" toml:"name" bson:"name"`
	Planes    []PlaneConfig    `json:"planes" toml:"planes" bson:"planes"`
	Composers []ComposerConfig `json:"composers" toml:"composers" bson:"composers"`
}

// Crtc is an in-memory hwc.Crtc.
type Crtc struct {
	frame       *hwc.DisplayFrame
	osdChannels int
}

// SetDisplayFrame implements hwc.Crtc.
func (c *Crtc) SetDisplayFrame(f hwc.DisplayFrame) error {
	if f.FramebufferWidth <= 0 || f.FramebufferHeight <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "empty framebuffer %dx%d", f.FramebufferWidth, f.FramebufferHeight)
	}
	c.frame = &f
	return nil
}

// SetOsdChannels implements hwc.Crtc.
func (c *Crtc) SetOsdChannels(n int) error {
	if n < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "negative osd channel count %d", n)
	}
	c.osdChannels = n
	return nil
}

// Display bundles the simulated resources of one display.
type Display struct {
	Name      string
	Planes    []*Plane
	Composers []*Composer
	Crtc      *Crtc
}

// Snapshot is the observable hardware state after a commit.
type Snapshot struct {
	Planes       []PlaneState      `json:"planes" bson:"planes"`
	Composers    []ComposerState   `json:"composers" bson:"composers"`
	DisplayFrame *hwc.DisplayFrame `json:"display_frame,omitempty" bson:"display_frame,omitempty"`
	OsdChannels  int               `json:"osd_channels" bson:"osd_channels"`
}

// NewDisplay builds the resources described by cfg.
func NewDisplay(cfg DisplayConfig) (*Display, error) {
	d := &Display{Name: cfg.Name, Crtc: &Crtc{}}
	for _, pc := range cfg.Planes {
		p, err := NewPlane(pc)
		if err != nil {
			return nil, err
		}
		d.Planes = append(d.Planes, p)
	}
	for _, cc := range cfg.Composers {
		c, err := NewComposer(cc)
		if err != nil {
			return nil, err
		}
		d.Composers = append(d.Composers, c)
	}
	return d, nil
}

// HWPlanes returns the planes as hwc.Plane values, in configuration order.
func (d *Display) HWPlanes() []hwc.Plane {
	out := make([]hwc.Plane, len(d.Planes))
	for i, p := range d.Planes {
		out[i] = p
	}
	return out
}

// HWComposers returns the composers as hwc.Composer values.
func (d *Display) HWComposers() []hwc.Composer {
	out := make([]hwc.Composer, len(d.Composers))
	for i, c := range d.Composers {
		out[i] = c
	}
	return out
}

// Catalog builds the resource catalog of the display.
func (d *Display) Catalog() (*hwc.Catalog, error) {
	return hwc.NewCatalog(d.HWPlanes(), d.HWComposers())
}

// ResetCalls clears the per-frame call logs. Plane contents persist, the
// way real planes keep scanning out until told otherwise.
func (d *Display) ResetCalls() {
	for _, p := range d.Planes {
		p.ResetCalls()
	}
	for _, c := range d.Composers {
		c.ResetCalls()
	}
}

// Snapshot captures the current hardware state.
func (d *Display) Snapshot() Snapshot {
	s := Snapshot{OsdChannels: d.Crtc.osdChannels}
	if d.Crtc.frame != nil {
		f := *d.Crtc.frame
		s.DisplayFrame = &f
	}
	for _, p := range d.Planes {
		s.Planes = append(s.Planes, p.State())
	}
	for _, c := range d.Composers {
		s.Composers = append(s.Composers, c.State())
	}
	return s
}
