package hwc

import (
	"fmt"
	"strings"
)

// LayerID identifies a layer within a display. Ids are assigned by the
// display server and stay stable while the surface exists.
type LayerID uint64

// =============================================================================
// Format Class
// =============================================================================

// FormatClass describes what kind of buffer backs a layer.
type FormatClass uint8

const (
	FormatScanout FormatClass = iota // generic buffer a plane can scan out
	FormatVideoOverlay
	FormatVideoSideband
	FormatVideoComposedSideband
	FormatCursor
	FormatSolidColor
	FormatClientRendered
)

var formatNames = [...]string{
	FormatScanout:               "scanout",
	FormatVideoOverlay:          "video",
	FormatVideoSideband:         "sideband",
	FormatVideoComposedSideband: "sideband-tv",
	FormatCursor:                "cursor",
	FormatSolidColor:            "color",
	FormatClientRendered:        "client",
}

func (f FormatClass) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("format(%d)", uint8(f))
}

// ParseFormatClass maps a format name back to its class.
func ParseFormatClass(s string) (FormatClass, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range formatNames {
		if name == s {
			return FormatClass(i), true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler.
func (f FormatClass) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *FormatClass) UnmarshalText(b []byte) error {
	v, ok := ParseFormatClass(string(b))
	if !ok {
		return fmt.Errorf("unknown format class %q", string(b))
	}
	*f = v
	return nil
}

// IsVideo reports whether the class belongs to the video family.
func (f FormatClass) IsVideo() bool {
	switch f {
	case FormatVideoOverlay, FormatVideoSideband, FormatVideoComposedSideband:
		return true
	}
	return false
}

// IsSideband reports whether the buffer arrives through a sideband stream.
func (f FormatClass) IsSideband() bool {
	return f == FormatVideoSideband || f == FormatVideoComposedSideband
}

// =============================================================================
// Transform, Blend, Video Hints
// =============================================================================

// Transform is a rotation/flip bitmask.
type Transform uint8

const (
	FlipH Transform = 1 << iota
	FlipV
	Rot90

	Rot180 = FlipH | FlipV
	Rot270 = Rot180 | Rot90
)

// BlendMode is how a layer mixes with content behind it.
type BlendMode uint8

const (
	BlendNone BlendMode = iota
	BlendPremultiplied
	BlendCoverage
)

func (b BlendMode) String() string {
	switch b {
	case BlendPremultiplied:
		return "premultiplied"
	case BlendCoverage:
		return "coverage"
	default:
		return "none"
	}
}

// VideoHint marks properties of a video stream that steer channel
// selection on the dual-video path.
type VideoHint uint16

const (
	HintDeinterlace VideoHint = 1 << iota
	HintSecure
	HintDolbyVision
	Hint4K
	HintCompressed
	HintHDR
	HintHDR10Plus
	HintHLG
)

// HintPriority lists hints from the most to the least demanding. The first
// hint carried by any video layer decides which layer owns the primary
// video channel.
var HintPriority = []VideoHint{
	HintDeinterlace,
	HintSecure,
	HintDolbyVision,
	Hint4K,
	HintCompressed,
	HintHDR,
	HintHDR10Plus,
	HintHLG,
}

var hintNames = map[string]VideoHint{
	"deinterlace": HintDeinterlace,
	"secure":      HintSecure,
	"dolby":       HintDolbyVision,
	"4k":          Hint4K,
	"compressed":  HintCompressed,
	"hdr":         HintHDR,
	"hdr10plus":   HintHDR10Plus,
	"hlg":         HintHLG,
}

// ParseVideoHints folds hint names into a bitmask. Unknown names are
// returned so callers can report them.
func ParseVideoHints(names []string) (VideoHint, []string) {
	var h VideoHint
	var unknown []string
	for _, n := range names {
		v, ok := hintNames[strings.ToLower(n)]
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		h |= v
	}
	return h, unknown
}

// =============================================================================
// Layer
// =============================================================================

// Layer is one surface of the current frame.
type Layer struct {
	ID        LayerID
	Z         int
	Crop      Rect // source crop in buffer pixels
	Frame     Rect // destination on the display
	Format    FormatClass
	Transform Transform
	Secure    bool
	Blend     BlendMode
	Alpha     float32

	// ForceClient is set by the display server for layers it will render
	// itself.
	ForceClient bool
	// Compressed marks buffers in a compressed scanout encoding.
	Compressed bool
	Hints      VideoHint

	// ComposedBy is non-empty when the layer is a composer's output buffer.
	ComposedBy ComposerID

	// Written by the strategy.
	Assignment     Assignment
	ClearRequested bool
}

// IsVideo reports whether the layer belongs to the video family.
func (l *Layer) IsVideo() bool { return l.Format.IsVideo() }

// IsComposerOutput reports whether the layer was produced by a composer.
func (l *Layer) IsComposerOutput() bool { return l.ComposedBy != "" }

// NeedsComposer reports whether the layer content only exists once a
// composer renders it.
func (l *Layer) NeedsComposer() bool {
	return l.Format == FormatSolidColor || l.Format == FormatClientRendered
}

// ValidGeometry reports whether the layer can be scanned out without
// rotation and with non-degenerate rectangles.
func (l *Layer) ValidGeometry() bool {
	return l.Transform == 0 && !l.Crop.Empty() && !l.Frame.Empty()
}

func (l *Layer) String() string {
	return fmt.Sprintf("layer %d (z=%d, %s, %s)", l.ID, l.Z, l.Format, l.Assignment)
}
