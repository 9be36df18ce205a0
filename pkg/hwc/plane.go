package hwc

import (
	"fmt"
	"strings"
)

// PlaneID identifies a plane for the lifetime of its display.
type PlaneID uint32

// PlaneType is the hardware class of a plane.
type PlaneType uint8

const (
	PlaneOverlay PlaneType = iota // generic OSD plane
	PlaneCursor
	PlaneVideo          // dedicated video plane, primary video channel
	PlaneVideoSecondary // dedicated video plane, secondary channel
)

var planeTypeNames = [...]string{
	PlaneOverlay:        "overlay",
	PlaneCursor:         "cursor",
	PlaneVideo:          "video",
	PlaneVideoSecondary: "video-secondary",
}

func (t PlaneType) String() string {
	if int(t) < len(planeTypeNames) {
		return planeTypeNames[t]
	}
	return fmt.Sprintf("plane(%d)", uint8(t))
}

// ParsePlaneType maps a type name back to its value.
func ParsePlaneType(s string) (PlaneType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range planeTypeNames {
		if name == s {
			return PlaneType(i), true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler.
func (t PlaneType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *PlaneType) UnmarshalText(b []byte) error {
	v, ok := ParsePlaneType(string(b))
	if !ok {
		return fmt.Errorf("unknown plane type %q", string(b))
	}
	*t = v
	return nil
}

// Capability is a plane capability bitmask.
type Capability uint8

const (
	// CapZorder: the plane accepts any presentation z-order.
	CapZorder Capability = 1 << iota
	// CapFixedZorder: the plane always sits at FixedZorder.
	CapFixedZorder
	// CapVideoConflict marks a "continuous" overlay plane that cannot run
	// next to an active video plane unless it receives an adjacent layer pair.
	CapVideoConflict
	// CapPrimary: the plane must carry the reference content that defines
	// the display frame.
	CapPrimary
)

var capabilityNames = map[string]Capability{
	"zorder":         CapZorder,
	"fixed-zorder":   CapFixedZorder,
	"video-conflict": CapVideoConflict,
	"primary":        CapPrimary,
}

// ParseCapabilities folds capability names into a bitmask.
func ParseCapabilities(names []string) (Capability, error) {
	var c Capability
	for _, n := range names {
		v, ok := capabilityNames[strings.ToLower(n)]
		if !ok {
			return 0, fmt.Errorf("unknown plane capability %q", n)
		}
		c |= v
	}
	return c, nil
}

// Has reports whether all bits of o are set.
func (c Capability) Has(o Capability) bool { return c&o == o }

// Plane is a hardware compositing channel.
type Plane interface {
	ID() PlaneID
	Name() string
	Type() PlaneType
	Capabilities() Capability
	FixedZorder() int

	// Supports reports whether the plane can scan out l directly.
	Supports(l *Layer) bool

	// SetContent binds l at the given presentation z-order and unblanks
	// the plane.
	SetContent(l *Layer, zorder int) error

	// Blank hides (true) or re-enables (false) the plane.
	Blank(on bool) error
}

// ComposePlane is implemented by planes that merge several video layers
// into one channel, such as the secondary video plane. Layers are given
// lowest z first.
type ComposePlane interface {
	SetComposeContent(layers []*Layer, zorder int) error
}
