package strategy

import (
	"slices"

	"github.com/matzehuels/hwcomposer/pkg/hwc"
	"github.com/matzehuels/hwcomposer/pkg/plan"
)

const (
	// maxOsdPlanes is the number of overlay channels the blender has.
	maxOsdPlanes = 3
	// maxDIVideos is the number of video layers the two channels take.
	maxDIVideos = 4
)

// MultiPlane is the strategy for displays with a primary and a secondary
// video channel next to up to three overlay channels. The primary-capable
// overlay plane carries the reference content the display frame is
// scaled to.
type MultiPlane struct {
	base

	// per-frame scratch
	ui        []*hwc.Layer
	osd       []hwc.Plane
	channels  videoChannels
	band      plan.Range
	composer  hwc.Composer
	composed  []*hwc.Layer
	ref       *hwc.Layer
	offsetX   int
	offsetY   int
	inside    bool
	interleaf []*hwc.Layer
}

// NewMultiPlane returns the multi-channel strategy.
func NewMultiPlane(cat *hwc.Catalog, opts Options) *MultiPlane {
	return &MultiPlane{base: newBase("multi", cat, opts)}
}

// Decide implements Strategy.
func (m *MultiPlane) Decide() error {
	if err := m.ready(); err != nil {
		return err
	}
	m.reg.Reset()
	m.ui, m.composer, m.composed, m.ref, m.interleaf = nil, nil, nil, nil, nil
	m.channels = videoChannels{}
	m.band = plan.Range{}
	m.offsetX, m.offsetY, m.inside = 0, 0, false
	m.osd = osdPlanes(m.res.overlay)

	m.applyOverrides()
	m.routeVideos()
	m.collectUI()
	if len(m.ui) > 0 {
		m.pickOverlayLayers()
		m.widenForVideo()
		m.confirmBand()
		m.handleScaleLimit()
		m.chooseReference()
		m.fillComposed()
	}
	m.finishPlan(m.bind())
	return nil
}

// osdPlanes picks the overlay planes in use: the primary-capable plane
// first, then catalog order, at most maxOsdPlanes.
func osdPlanes(overlay []hwc.Plane) []hwc.Plane {
	out := make([]hwc.Plane, 0, maxOsdPlanes)
	primary := slices.IndexFunc(overlay, func(p hwc.Plane) bool {
		return p.Capabilities().Has(hwc.CapPrimary)
	})
	if primary >= 0 {
		out = append(out, overlay[primary])
	}
	for i, p := range overlay {
		if len(out) == maxOsdPlanes {
			break
		}
		if i != primary {
			out = append(out, p)
		}
	}
	return out
}

// collectUI queues every layer still undetermined for the overlay
// channels. Forced-client layers without a universal composer are
// discarded; with no overlay plane at all, everything is.
func (m *MultiPlane) collectUI() {
	for _, l := range m.reg.Ordered() {
		if !l.Assignment.IsUndetermined() {
			continue
		}
		if m.forcedClient(l) && !m.markForced(l) {
			continue
		}
		m.ui = append(m.ui, l)
	}
	if len(m.osd) == 0 && len(m.ui) > 0 {
		m.logger.Warn("no overlay plane, discarding generic layers", "layers", len(m.ui))
		for _, l := range m.ui {
			m.discard(l)
		}
		m.ui = nil
	}
}

// fillComposed routes the layers inside the band to the frame's composer
// and the rest to overlay planes.
func (m *MultiPlane) fillComposed() {
	var rest []*hwc.Layer
	haveClient := false
	for _, l := range m.ui {
		if m.band.Contains(l.Z) {
			m.composed = append(m.composed, l)
			haveClient = haveClient || m.forcedClient(l)
		} else {
			rest = append(rest, l)
		}
	}
	if len(m.composed) == 0 {
		m.band = plan.Range{}
	} else {
		m.composer = m.selectComposer(haveClient, m.composed)
		m.compose(m.composer, m.composed)
		if m.composer == nil {
			m.composed = nil
		}
	}
	for _, l := range rest {
		l.Assignment = hwc.OnPlane(hwc.PlaneOverlay)
	}
}

func (m *MultiPlane) bind() *plan.Plan {
	p := &plan.Plan{Topology: hwc.TopologyMultiChannel}
	m.channels.bind(p)

	var top *hwc.Layer
	if len(m.composed) > 0 {
		top = m.composed[len(m.composed)-1]
	}

	// The reference goes to slot 0; everything else fills the remaining
	// slots in z-order.
	var items []*hwc.Layer
	for _, l := range m.ui {
		if l.Assignment.IsPlane(hwc.PlaneOverlay) || l == top {
			items = append(items, l)
		}
	}
	ref := m.ref
	if top != nil {
		ref = top
	}
	if ref != nil {
		if i := slices.Index(items, ref); i > 0 {
			items = slices.Insert(slices.Delete(items, i, i+1), 0, ref)
		}
	}

	for i, l := range items {
		if i >= len(m.osd) {
			m.logger.Error("overlay planes exhausted", "layer", l.ID)
			if l != top {
				m.discard(l)
			}
			continue
		}
		pl := m.osd[i]
		e := plan.Entry{
			Plane:     pl.ID(),
			PlaneType: pl.Type(),
			Source:    plan.Source{Kind: plan.SourceLayer, Layer: l.ID},
			LayerZ:    l.Z,
			Band:      plan.BandOverlay,
		}
		if l == top {
			e.Source = plan.Source{Kind: plan.SourceComposer, Layer: l.ID, Composer: m.composer.ID()}
			e.LayerZ = m.band.Max
		}
		p.Entries = append(p.Entries, e)
	}

	if top != nil {
		m.bindJob(p)
	}
	m.reband(p)

	if ref != nil && len(m.osd) > 0 {
		d := &plan.Display{Reference: m.osd[0].ID()}
		if top == nil {
			d.OffsetX, d.OffsetY = m.offsetX, m.offsetY
		}
		d.OsdChannels = len(items)
		if m.flags.HDRBanding {
			d.OsdChannels = 1
		}
		p.Display = d
	}
	return p
}

// bindJob records the composer job. Video layers inside the band become
// the composer's overlays.
func (m *MultiPlane) bindJob(p *plan.Plan) {
	job := &plan.Job{Composer: m.composer.ID()}
	for _, l := range m.composed {
		job.Inputs = append(job.Inputs, l.ID)
	}
	for _, v := range m.channels.layers() {
		if m.band.Contains(v.Z) {
			job.Overlays = append(job.Overlays, v.ID)
			if m.composer.Kind() == hwc.ComposerUniversal {
				v.ClearRequested = true
			}
		}
	}
	p.Job = job
	p.Band = m.band
}
