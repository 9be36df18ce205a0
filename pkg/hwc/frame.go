package hwc

import (
	"maps"
	"slices"
)

// Flags are per-frame switches set by the display server.
type Flags struct {
	// ForceClient sends every layer through the universal composer.
	ForceClient bool `json:"force_client" toml:"force_client" bson:"force_client"`
	// HideSecure discards secure layers (for example while screen recording).
	HideSecure bool `json:"hide_secure" toml:"hide_secure" bson:"hide_secure"`
	// HDRBanding folds every overlay layer below an in-range video into the
	// composed band, so only one overlay channel carries content under video.
	HDRBanding bool `json:"hdr_banding" toml:"hdr_banding" bson:"hdr_banding"`
}

// DebugOverrides are operator overrides applied to every frame of a
// display. The zero value changes nothing.
type DebugOverrides struct {
	HiddenLayers map[LayerID]bool
	HiddenPlanes map[PlaneID]bool
	// ForceClient disables direct scanout of UI layers.
	ForceClient bool
	// Detail adds geometry columns to dumps.
	Detail bool
}

// LayerHidden reports whether the operator hid layer id.
func (o DebugOverrides) LayerHidden(id LayerID) bool { return o.HiddenLayers[id] }

// PlaneHidden reports whether the operator hid plane id.
func (o DebugOverrides) PlaneHidden(id PlaneID) bool { return o.HiddenPlanes[id] }

// HiddenLayerIDs returns the hidden layer ids in ascending order.
func (o DebugOverrides) HiddenLayerIDs() []LayerID {
	var ids []LayerID
	for id, on := range o.HiddenLayers {
		if on {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// HiddenPlaneIDs returns the hidden plane ids in ascending order.
func (o DebugOverrides) HiddenPlaneIDs() []PlaneID {
	var ids []PlaneID
	for id, on := range o.HiddenPlanes {
		if on {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Clone returns a deep copy.
func (o DebugOverrides) Clone() DebugOverrides {
	c := o
	c.HiddenLayers = maps.Clone(o.HiddenLayers)
	c.HiddenPlanes = maps.Clone(o.HiddenPlanes)
	return c
}

// Frame is the input of one decision pass.
type Frame struct {
	Layers    []*Layer
	Planes    []Plane
	Composers []Composer
	Flags     Flags
	Overrides DebugOverrides
	// Crtc is optional; when set the binder programs the display frame.
	Crtc Crtc
}
