package strategy

import (
	"slices"

	"github.com/matzehuels/hwcomposer/pkg/hwc"
	"github.com/matzehuels/hwcomposer/pkg/plan"
)

// videoChannels is the routing of video layers onto the two video planes.
type videoChannels struct {
	primaryPlane   hwc.Plane
	secondaryPlane hwc.Plane
	primary        *hwc.Layer
	// secondary is merged by the secondary plane, lowest z first.
	secondary []*hwc.Layer
	// merged is set when the secondary channel carries several layers;
	// the channels then sit at the lowest and highest video z.
	merged bool
	minZ   int
	maxZ   int
}

// layers returns every routed video layer in z-order.
func (c videoChannels) layers() []*hwc.Layer {
	var out []*hwc.Layer
	if c.primary != nil {
		out = append(out, c.primary)
	}
	out = append(out, c.secondary...)
	slices.SortStableFunc(out, hwc.CompareZ)
	return out
}

// routeVideos sends video layers to the two video channels. The primary
// channel takes, in order of preference: the single sideband layer, the
// first layer carrying the highest-priority hint, the first layer
// overlapping no other video, the largest layer. The others are merged on
// the secondary channel. Several sidebands cannot share the channels and
// are all discarded.
func (m *MultiPlane) routeVideos() {
	var videos []*hwc.Layer
	for _, l := range m.reg.Ordered() {
		if l.Assignment.IsUndetermined() && l.IsVideo() && !m.forcedClient(l) {
			videos = append(videos, l)
		}
	}
	if len(videos) > maxDIVideos {
		for _, l := range videos[maxDIVideos:] {
			m.logger.Debug("too many video layers, discarding", "layer", l.ID)
			m.discard(l)
		}
		videos = videos[:maxDIVideos]
	}
	if len(videos) == 0 {
		return
	}

	c := videoChannels{}
	switch {
	case len(m.res.video) > 0:
		c.primaryPlane = m.res.video[0]
		if len(m.res.videoSecondary) > 0 {
			c.secondaryPlane = m.res.videoSecondary[0]
		} else if len(m.res.video) > 1 {
			c.secondaryPlane = m.res.video[1]
		}
	case len(m.res.videoSecondary) > 0:
		c.primaryPlane = m.res.videoSecondary[0]
	default:
		m.logger.Warn("no video plane, discarding video layers", "layers", len(videos))
		for _, l := range videos {
			m.discard(l)
		}
		return
	}

	var sidebands []*hwc.Layer
	for _, l := range videos {
		switch {
		case l.Format == hwc.FormatVideoComposedSideband:
			sidebands = slices.Insert(sidebands, 0, l)
		case l.Format.IsSideband():
			sidebands = append(sidebands, l)
		}
	}
	if len(sidebands) > 1 {
		m.logger.Warn("several sideband layers, discarding them", "layers", len(sidebands))
		for _, l := range sidebands {
			m.discard(l)
		}
		videos = slices.DeleteFunc(videos, func(l *hwc.Layer) bool { return slices.Contains(sidebands, l) })
		sidebands = nil
		if len(videos) == 0 {
			return
		}
	}

	c.primary = pickPrimary(videos, sidebands)
	c.minZ, c.maxZ = videos[0].Z, videos[len(videos)-1].Z
	c.primary.Assignment = hwc.OnPlane(c.primaryPlane.Type())
	for _, l := range videos {
		if l == c.primary {
			continue
		}
		if c.secondaryPlane == nil {
			m.logger.Debug("no secondary video plane, discarding", "layer", l.ID)
			m.discard(l)
			continue
		}
		l.Assignment = hwc.OnPlane(c.secondaryPlane.Type())
		c.secondary = append(c.secondary, l)
	}
	c.merged = len(c.secondary) > 1
	m.channels = c
	m.logger.Debug("video channels", "primary", c.primary.ID, "secondary", len(c.secondary), "merged", c.merged)
}

func pickPrimary(videos, sidebands []*hwc.Layer) *hwc.Layer {
	if len(sidebands) == 1 {
		return sidebands[0]
	}
	for _, h := range hwc.HintPriority {
		for _, l := range videos {
			if l.Hints&h != 0 {
				return l
			}
		}
	}
	for i, l := range videos {
		alone := true
		for j, o := range videos {
			if i != j && l.Frame.Intersects(o.Frame) {
				alone = false
				break
			}
		}
		if alone {
			return l
		}
	}
	largest := videos[0]
	for _, l := range videos[1:] {
		if l.Frame.Area() > largest.Frame.Area() {
			largest = l
		}
	}
	return largest
}

// bind adds the video plane entries. Their presentation z is set when the
// plan is re-banded.
func (c videoChannels) bind(p *plan.Plan) {
	if c.primary == nil {
		return
	}
	z := c.primary.Z
	if c.merged {
		z = c.maxZ
	}
	p.Entries = append(p.Entries, plan.Entry{
		Plane:     c.primaryPlane.ID(),
		PlaneType: c.primaryPlane.Type(),
		Source:    plan.Source{Kind: plan.SourceLayer, Layer: c.primary.ID},
		LayerZ:    z,
		Band:      plan.BandVideoBelow,
	})
	if len(c.secondary) == 0 {
		return
	}

	e := plan.Entry{
		Plane:     c.secondaryPlane.ID(),
		PlaneType: c.secondaryPlane.Type(),
		Source:    plan.Source{Kind: plan.SourceLayer, Layer: c.secondary[0].ID},
		LayerZ:    c.secondary[0].Z,
		Band:      plan.BandVideoBelow,
	}
	if c.merged {
		e.LayerZ = c.minZ
		e.Source.Kind = plan.SourceVideoGroup
		for _, l := range c.secondary {
			e.Source.Group = append(e.Source.Group, l.ID)
		}
	}
	p.Entries = append(p.Entries, e)
}
