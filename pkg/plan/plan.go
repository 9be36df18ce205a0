// Package plan holds the binding plan produced by one decision pass.
//
// A [Plan] is frozen once a strategy's Decide returns: it lists which
// plane shows which content at which presentation z-order, which layers
// each composer absorbs, which layers are discarded and which planes stay
// blank. The commit binder executes a plan without making decisions of its
// own.
//
// [Plan.Validate] checks the structural invariants every plan must hold:
// coverage, no double-binding and z-order monotonicity inside each band.
package plan

import (
	"fmt"
	"slices"

	"github.com/matzehuels/hwcomposer/pkg/hwc"
)

// SourceKind tells what an entry puts on its plane.
type SourceKind uint8

const (
	SourceLayer      SourceKind = iota // one layer, scanned out directly
	SourceComposer                     // the output of a composer job
	SourceVideoGroup                   // several video layers merged by the video plane
)

func (k SourceKind) String() string {
	switch k {
	case SourceComposer:
		return "composer"
	case SourceVideoGroup:
		return "video-group"
	}
	return "layer"
}

// MarshalText implements encoding.TextMarshaler.
func (k SourceKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *SourceKind) UnmarshalText(b []byte) error {
	for _, v := range []SourceKind{SourceLayer, SourceComposer, SourceVideoGroup} {
		if v.String() == string(b) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown source kind %q", string(b))
}

// Source is the content of one plan entry.
type Source struct {
	Kind SourceKind `json:"kind"`
	// Layer is the bound layer, or the representative layer of a composer
	// job or video group.
	Layer    hwc.LayerID    `json:"layer"`
	Composer hwc.ComposerID `json:"composer,omitempty"`
	// Group lists every layer of a video group, representative first.
	Group []hwc.LayerID `json:"group,omitempty"`
}

// Band is the presentation z-order class of an entry.
type Band uint8

const (
	BandOverlay    Band = iota // overlay planes and composer output
	BandVideo                  // video planes keeping layer z-order
	BandVideoAbove             // the one video above every overlay
	BandVideoBelow             // videos below every overlay
	BandCursor
)

func (b Band) String() string {
	switch b {
	case BandVideo:
		return "video"
	case BandVideoAbove:
		return "video-above"
	case BandVideoBelow:
		return "video-below"
	case BandCursor:
		return "cursor"
	}
	return "overlay"
}

// MarshalText implements encoding.TextMarshaler.
func (b Band) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Band) UnmarshalText(text []byte) error {
	for _, v := range []Band{BandOverlay, BandVideo, BandVideoAbove, BandVideoBelow, BandCursor} {
		if v.String() == string(text) {
			*b = v
			return nil
		}
	}
	return fmt.Errorf("unknown band %q", string(text))
}

// Entry binds one plane.
type Entry struct {
	Plane     hwc.PlaneID   `json:"plane"`
	PlaneType hwc.PlaneType `json:"plane_type"`
	Source    Source        `json:"source"`
	// Zorder is the presentation z-order handed to the plane.
	Zorder int `json:"zorder"`
	// LayerZ is the z-order of the source layer in the frame.
	LayerZ int  `json:"layer_z"`
	Band   Band `json:"band"`
}

// Job is the work of one composer for the frame.
type Job struct {
	Composer hwc.ComposerID `json:"composer"`
	// Inputs are the absorbed layers, back to front.
	Inputs []hwc.LayerID `json:"inputs"`
	// Overlays are video layers inside the band the composer must leave
	// uncovered.
	Overlays []hwc.LayerID `json:"overlays,omitempty"`
}

// Range is the composed z-order band. Min and Max are inclusive.
type Range struct {
	Min   int  `json:"min"`
	Max   int  `json:"max"`
	Valid bool `json:"valid"`
}

// Contains reports whether z falls inside a valid range.
func (r Range) Contains(z int) bool {
	return r.Valid && z >= r.Min && z <= r.Max
}

func (r Range) String() string {
	if !r.Valid {
		return "none"
	}
	return fmt.Sprintf("[%d, %d]", r.Min, r.Max)
}

// Plan is the frozen result of one decision pass.
type Plan struct {
	Topology hwc.Topology  `json:"topology"`
	Entries  []Entry       `json:"entries"`
	Blank    []hwc.PlaneID `json:"blank"`

	// Job is the composer job of the frame, nil when nothing is composed.
	Job *Job `json:"job,omitempty"`

	// Discarded layers are dropped. When DiscardComposer is set they are
	// fed to it; otherwise they are simply not shown.
	Discarded       []hwc.LayerID  `json:"discarded,omitempty"`
	DiscardComposer hwc.ComposerID `json:"discard_composer,omitempty"`

	// ClientComposer is the universal composer id, used to report
	// composition changes back to the display server.
	ClientComposer hwc.ComposerID `json:"client_composer,omitempty"`

	Band Range `json:"band"`

	// Display describes how the display controller is programmed. Only
	// multi-channel plans set it.
	Display *Display `json:"display,omitempty"`
}

// Display carries the display controller settings of a plan.
type Display struct {
	// Reference is the plane carrying the content the display frame is
	// scaled to.
	Reference hwc.PlaneID `json:"reference"`
	// OffsetX and OffsetY place an uncomposed reference layer.
	OffsetX int `json:"offset_x"`
	OffsetY int `json:"offset_y"`
	// OsdChannels is the number of overlay channels to enable, zero to
	// leave the controller as is.
	OsdChannels int `json:"osd_channels"`
}

// Entry returns the entry bound to plane id.
func (p *Plan) Entry(id hwc.PlaneID) (Entry, bool) {
	for _, e := range p.Entries {
		if e.Plane == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Sort orders entries by presentation z-order, then by plane id.
func (p *Plan) Sort() {
	slices.SortStableFunc(p.Entries, func(a, b Entry) int {
		if a.Zorder != b.Zorder {
			return a.Zorder - b.Zorder
		}
		return int(a.Plane) - int(b.Plane)
	})
	slices.Sort(p.Blank)
}

// Visible returns every layer that reaches the screen, directly, through
// the composer job or through a video group.
func (p *Plan) Visible() []hwc.LayerID {
	var ids []hwc.LayerID
	for _, e := range p.Entries {
		switch e.Source.Kind {
		case SourceLayer:
			ids = append(ids, e.Source.Layer)
		case SourceVideoGroup:
			ids = append(ids, e.Source.Group...)
		case SourceComposer:
			if p.Job != nil {
				ids = append(ids, p.Job.Inputs...)
			}
		}
	}
	slices.Sort(ids)
	return ids
}

// Clone returns a deep copy.
func (p *Plan) Clone() *Plan {
	c := *p
	c.Entries = make([]Entry, len(p.Entries))
	for i, e := range p.Entries {
		e.Source.Group = slices.Clone(e.Source.Group)
		c.Entries[i] = e
	}
	c.Blank = slices.Clone(p.Blank)
	c.Discarded = slices.Clone(p.Discarded)
	if p.Display != nil {
		d := *p.Display
		c.Display = &d
	}
	if p.Job != nil {
		j := *p.Job
		j.Inputs = slices.Clone(p.Job.Inputs)
		j.Overlays = slices.Clone(p.Job.Overlays)
		c.Job = &j
	}
	return &c
}
