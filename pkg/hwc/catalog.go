package hwc

import "github.com/matzehuels/hwcomposer/pkg/errors"

// Topology is the plane arrangement of a display. It decides which
// assignment strategy runs for that display.
type Topology uint8

const (
	// TopologySingleChannel: generic overlay planes plus optional video and
	// cursor planes.
	TopologySingleChannel Topology = iota
	// TopologyMultiChannel: several overlay channels and a dual video path
	// with a secondary channel.
	TopologyMultiChannel
)

func (t Topology) String() string {
	if t == TopologyMultiChannel {
		return "multi"
	}
	return "simple"
}

// MarshalText implements encoding.TextMarshaler.
func (t Topology) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Topology) UnmarshalText(b []byte) error {
	v, ok := ParseTopology(string(b))
	if !ok {
		return errors.New(errors.ErrCodeInvalidInput, "unknown topology %q", string(b))
	}
	*t = v
	return nil
}

// ParseTopology accepts "simple", "single", "multi" and "auto" (returned as ok=false).
func ParseTopology(s string) (Topology, bool) {
	switch s {
	case "simple", "single":
		return TopologySingleChannel, true
	case "multi", "multi-channel":
		return TopologyMultiChannel, true
	}
	return 0, false
}

// Catalog is the fixed set of resources of one display.
type Catalog struct {
	planes    []Plane
	composers []Composer
}

// NewCatalog validates and wraps the display resources. Catalog order is
// preserved; it is the tie-break order for composer selection.
func NewCatalog(planes []Plane, composers []Composer) (*Catalog, error) {
	seenPlanes := make(map[PlaneID]bool, len(planes))
	for i, p := range planes {
		if p == nil {
			return nil, errors.New(errors.ErrCodeInvalidSetup, "plane %d is nil", i)
		}
		if seenPlanes[p.ID()] {
			return nil, errors.New(errors.ErrCodeInvalidSetup, "duplicate plane id %d", p.ID())
		}
		seenPlanes[p.ID()] = true
	}
	seenComposers := make(map[ComposerID]bool, len(composers))
	for i, c := range composers {
		if c == nil {
			return nil, errors.New(errors.ErrCodeInvalidSetup, "composer %d is nil", i)
		}
		if seenComposers[c.ID()] {
			return nil, errors.New(errors.ErrCodeInvalidSetup, "duplicate composer id %q", c.ID())
		}
		seenComposers[c.ID()] = true
	}
	if len(planes) == 0 && len(composers) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidSetup, "display has neither planes nor composers")
	}
	return &Catalog{planes: planes, composers: composers}, nil
}

// Planes returns the planes in catalog order.
func (c *Catalog) Planes() []Plane { return c.planes }

// Composers returns the composers in catalog order.
func (c *Catalog) Composers() []Composer { return c.composers }

// Plane looks up a plane by id.
func (c *Catalog) Plane(id PlaneID) Plane {
	for _, p := range c.planes {
		if p.ID() == id {
			return p
		}
	}
	return nil
}

// Composer looks up a composer by id.
func (c *Catalog) Composer(id ComposerID) Composer {
	for _, cp := range c.composers {
		if cp.ID() == id {
			return cp
		}
	}
	return nil
}

// Topology reports multi-channel when the display has a secondary video
// plane, single-channel otherwise.
func (c *Catalog) Topology() Topology {
	for _, p := range c.planes {
		if p.Type() == PlaneVideoSecondary {
			return TopologyMultiChannel
		}
	}
	return TopologySingleChannel
}
