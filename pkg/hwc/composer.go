package hwc

import "fmt"

// ComposerID names a composer within a display.
type ComposerID string

// ComposerKind separates the two mandatory composers from optional ones.
type ComposerKind uint8

const (
	// ComposerSpecialized is an optional unit (for example a 2D blitter)
	// with a restricted format predicate.
	ComposerSpecialized ComposerKind = iota
	// ComposerDiscard swallows its inputs; its output is never shown.
	ComposerDiscard
	// ComposerUniversal accepts anything, including client-rendered layers.
	ComposerUniversal
)

func (k ComposerKind) String() string {
	switch k {
	case ComposerDiscard:
		return "discard"
	case ComposerUniversal:
		return "universal"
	case ComposerSpecialized:
		return "specialized"
	}
	return fmt.Sprintf("composer(%d)", uint8(k))
}

// ParseComposerKind maps a kind name back to its value.
func ParseComposerKind(s string) (ComposerKind, bool) {
	switch s {
	case "discard", "dummy":
		return ComposerDiscard, true
	case "universal", "client":
		return ComposerUniversal, true
	case "specialized", "":
		return ComposerSpecialized, true
	}
	return 0, false
}

// Composer merges several layers into one output layer.
type Composer interface {
	ID() ComposerID
	Name() string
	Kind() ComposerKind

	// Supports reports whether l is an acceptable input.
	Supports(l *Layer) bool

	// AddInputs queues layers for the next Start.
	AddInputs(layers []*Layer) error

	// Start composes the queued inputs. The output is ready when Start
	// returns.
	Start() error

	// Output returns the composed buffer as a layer tagged with
	// ComposedBy, or nil before the first Start.
	Output() *Layer
}

// OverlayAware is implemented by composers that need to know which video
// overlays sit inside their band, so they can leave holes for them.
type OverlayAware interface {
	SetOverlays(layers []*Layer)
}

// DisplayFrame is the scaling setup of the overlay channels: the size of
// the reference buffer and where it lands on the screen.
type DisplayFrame struct {
	FramebufferWidth  int  `json:"framebuffer_width"`
	FramebufferHeight int  `json:"framebuffer_height"`
	Display           Rect `json:"display"`
}

// Crtc is the display controller behind the planes.
type Crtc interface {
	// SetDisplayFrame programs the region the reference layer scales to.
	SetDisplayFrame(frame DisplayFrame) error
	// SetOsdChannels reports how many overlay channels carry content.
	SetOsdChannels(n int) error
}
