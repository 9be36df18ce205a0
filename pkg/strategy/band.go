package strategy

import (
	"github.com/matzehuels/hwcomposer/pkg/hwc"
	"github.com/matzehuels/hwcomposer/pkg/plan"
)

// Scaler limits of the overlay blender.
const (
	scalerInputWidth  = 1920
	scalerInputHeight = 1080
	// scaleLimitCount is how many downscaled or uncompressed layers the
	// blender scans out in parallel.
	scaleLimitCount = 2
)

// extend grows the band to include z.
func (m *MultiPlane) extend(z int) {
	if !m.band.Valid {
		m.band = plan.Range{Min: z, Max: z, Valid: true}
		return
	}
	m.band.Min = min(m.band.Min, z)
	m.band.Max = max(m.band.Max, z)
}

// split partitions the generic layers around the band.
func (m *MultiPlane) split() (below, inside, above []*hwc.Layer) {
	for _, l := range m.ui {
		switch {
		case !m.band.Valid || l.Z < m.band.Min:
			below = append(below, l)
		case l.Z > m.band.Max:
			above = append(above, l)
		default:
			inside = append(inside, l)
		}
	}
	return below, inside, above
}

// pickOverlayLayers seeds the band with the layers no overlay plane can
// take and sorts the video layers relative to the generic ones. A video
// between generic layers is folded into the band in HDR mode or when many
// videos are on screen; otherwise it is remembered as interleaved. The
// first video above all generic layers stays on top, later ones
// interleave. Videos below all generic layers need nothing.
func (m *MultiPlane) pickOverlayLayers() {
	for _, l := range m.ui {
		if m.mustCompose(l) {
			m.extend(l.Z)
		}
	}

	videos := m.channels.layers()
	uiMin, uiMax := m.ui[0].Z, m.ui[len(m.ui)-1].Z
	many := len(videos) > 2
	onTop := 0
	for _, v := range videos {
		switch {
		case v.Z > uiMin && v.Z < uiMax:
			if m.flags.HDRBanding || many {
				hi := v.Z
				if m.band.Valid {
					hi = max(hi, m.band.Max)
				}
				m.band = plan.Range{Min: uiMin, Max: hi, Valid: true}
			} else {
				m.inside = true
			}
			m.interleaf = append(m.interleaf, v)
		case v.Z > uiMax:
			if onTop >= 1 || many {
				m.interleaf = append(m.interleaf, v)
			} else {
				onTop++
			}
		}
	}
	if m.band.Valid {
		m.logger.Debug("band after pick", "band", m.band.String(), "interleaved", len(m.interleaf))
	}
}

// widenForVideo keeps two interleaved videos that are not z-neighbours
// from being mis-ordered: the band grows to reach the lower one, or is
// created from the bottom generic layer up to it.
func (m *MultiPlane) widenForVideo() {
	if !m.inside || len(m.interleaf) != 2 {
		return
	}
	lo, hi := m.interleaf[0], m.interleaf[1]
	if m.neighbours(lo, hi) {
		return
	}
	if m.band.Valid {
		if m.band.Min > lo.Z {
			m.band.Min = lo.Z + 1
		}
		if m.band.Max < hi.Z {
			m.band.Max = hi.Z
		}
	} else {
		m.band = plan.Range{Min: m.ui[0].Z, Max: lo.Z, Valid: true}
	}
	m.logger.Debug("band widened for video", "band", m.band.String())
}

// neighbours reports whether no generic layer sits between a and b.
func (m *MultiPlane) neighbours(a, b *hwc.Layer) bool {
	for _, l := range m.ui {
		if l.Z > a.Z && l.Z < b.Z {
			return false
		}
	}
	return true
}

// confirmBand grows the band until the generic layers fit on the overlay
// planes. The layers to add come from the side that alone supplies them,
// below first; otherwise all layers below and the rest from above. Band
// edges always land on a layer's z.
func (m *MultiPlane) confirmBand() {
	planes := len(m.osd)
	below, inside, above := m.split()
	used := len(below) + len(above) + boolInt(len(inside) > 0)
	if used <= planes {
		return
	}
	need := len(m.ui) - len(inside) - planes + 1

	switch {
	case !m.band.Valid:
		m.band = plan.Range{Min: m.ui[0].Z, Max: m.ui[need-1].Z, Valid: true}
	case len(below) >= need:
		m.band.Min = below[len(below)-need].Z
	case len(above) >= need:
		m.band.Max = above[need-1].Z
	default:
		if len(below) > 0 {
			m.band.Min = below[0].Z
		}
		m.band.Max = above[need-len(below)-1].Z
	}
	m.logger.Debug("band confirmed", "band", m.band.String(), "added", need)
}

// handleScaleLimit grows the band by one layer when more than
// scaleLimitCount layers outside it need heavy downscaling, or more than
// scaleLimitCount are uncompressed: above if possible, else below. With no
// band, the bottom layer becomes a one-layer band.
func (m *MultiPlane) handleScaleLimit() {
	below, _, above := m.split()
	downscaled, plain := 0, 0
	for _, group := range [][]*hwc.Layer{below, above} {
		for _, l := range group {
			if float64(l.Crop.Height())*1.1/3.0 > float64(l.Frame.Height()) {
				downscaled++
			}
			if !l.Compressed {
				plain++
			}
		}
	}
	if downscaled <= scaleLimitCount && plain <= scaleLimitCount {
		return
	}

	switch {
	case !m.band.Valid:
		m.band = plan.Range{Min: m.ui[0].Z, Max: m.ui[0].Z, Valid: true}
	case len(above) > 0:
		m.band.Max = above[0].Z
	case len(below) > 0:
		m.band.Min = below[len(below)-1].Z
	}
	m.logger.Debug("band grown for scaler limit", "band", m.band.String(), "downscaled", downscaled, "uncompressed", plain)
}

// chooseReference picks the layer the display frame is scaled to when
// nothing is composed: the first layer whose scale matches the scaler
// exactly, else the one with the smallest scale still above the
// scaler's. With no candidate the bottom layer is composed and the
// composer output becomes the reference.
func (m *MultiPlane) chooseReference() {
	if m.band.Valid {
		return
	}
	first := m.ui[0].Frame
	minX, minY, maxX, maxY := first.Left, first.Top, first.Right, first.Bottom
	for _, l := range m.ui[1:] {
		minX, minY = min(minX, l.Frame.Left), min(minY, l.Frame.Top)
		maxX, maxY = max(maxX, l.Frame.Right), max(maxY, l.Frame.Bottom)
	}
	in := hwc.NewRect(0, 0, scalerInputWidth, scalerInputHeight)
	out := hwc.NewRect(0, 0, maxX-minX, maxY-minY)

	var ref *hwc.Layer
	for _, l := range m.ui {
		c := compareScale(l.Crop, l.Frame, in, out)
		if c == 0 {
			ref = l
			break
		}
		if c == 1 && (ref == nil || compareScale(l.Crop, l.Frame, ref.Crop, ref.Frame) == -1) {
			ref = l
		}
	}
	if ref == nil {
		m.band = plan.Range{Min: m.ui[0].Z, Max: m.ui[0].Z, Valid: true}
		m.logger.Debug("no reference layer, composing bottom layer")
		return
	}
	m.ref = ref
	m.offsetX, m.offsetY = minX, minY
	m.logger.Debug("reference layer", "layer", ref.ID, "offset_x", minX, "offset_y", minY)
}

// compareScale compares the scale factors of two source/destination pairs:
// 0 when equal, 1 when a scales up more than b in both directions, -1
// otherwise.
func compareScale(aSrc, aDst, bSrc, bDst hwc.Rect) int {
	w := aDst.Width()*bSrc.Width() - bDst.Width()*aSrc.Width()
	h := aDst.Height()*bSrc.Height() - bDst.Height()*aSrc.Height()
	switch {
	case w == 0 && h == 0:
		return 0
	case w > 0 && h > 0:
		return 1
	}
	return -1
}
