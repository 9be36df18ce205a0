package strategy

import (
	"slices"

	"github.com/matzehuels/hwcomposer/pkg/hwc"
	"github.com/matzehuels/hwcomposer/pkg/plan"
)

// Simple is the strategy for displays with a single generic overlay
// channel. Presentation z-order equals layer z-order.
type Simple struct {
	base

	// per-frame scratch
	ui       []*hwc.Layer
	direct   []direct
	composer hwc.Composer
	// continuous holds the layers (or band representatives) packed onto
	// continuous planes; manual is set when it is in use.
	continuous map[hwc.LayerID]bool
	manual     bool
}

// direct is a layer bound straight to a dedicated plane.
type direct struct {
	plane hwc.Plane
	layer *hwc.Layer
	band  plan.Band
}

// item is one overlay plane's worth of content: a layer or the composed
// band, represented by its top layer.
type item struct {
	layer    *hwc.Layer
	composed bool
	video    bool
}

// NewSimple returns the single-channel strategy.
func NewSimple(cat *hwc.Catalog, opts Options) *Simple {
	return &Simple{base: newBase("simple", cat, opts)}
}

// Decide implements Strategy.
func (s *Simple) Decide() error {
	if err := s.ready(); err != nil {
		return err
	}
	s.reg.Reset()
	s.ui, s.direct, s.composer = nil, nil, nil
	s.continuous, s.manual = nil, false

	s.applyOverrides()
	haveClient := s.preProcess()
	s.composer = s.selectComposer(haveClient, s.ui)
	s.decideBand()
	s.resolveVideoConflict()
	s.finishPlan(s.bind())
	return nil
}

// preProcess hands video and cursor layers to free dedicated planes in
// ascending z and queues everything else as generic. It reports whether a
// client layer is present.
func (s *Simple) preProcess() bool {
	haveClient := false
	video := s.res.videoPlanes()
	nextVideo, nextCursor := 0, 0

	for _, l := range s.reg.Ordered() {
		if !l.Assignment.IsUndetermined() {
			continue
		}
		switch s.classOf(l) {
		case classForced:
			if s.markForced(l) {
				haveClient = true
				s.ui = append(s.ui, l)
			}
		case classVideo:
			switch {
			case nextVideo >= len(video):
				s.logger.Debug("no video plane left, discarding", "layer", l.ID)
				s.discard(l)
			case video[nextVideo].Supports(l):
				pl := video[nextVideo]
				l.Assignment = hwc.OnPlane(pl.Type())
				s.direct = append(s.direct, direct{plane: pl, layer: l, band: plan.BandVideo})
				nextVideo++
			default:
				s.ui = append(s.ui, l)
			}
		case classCursor:
			if nextCursor < len(s.res.cursor) && s.res.cursor[nextCursor].Supports(l) {
				pl := s.res.cursor[nextCursor]
				l.Assignment = hwc.OnPlane(hwc.PlaneCursor)
				s.direct = append(s.direct, direct{plane: pl, layer: l, band: plan.BandCursor})
				nextCursor++
			} else {
				s.ui = append(s.ui, l)
			}
		default:
			s.ui = append(s.ui, l)
		}
	}
	return haveClient
}

// decideBand picks the composed band among the generic layers: every layer
// that cannot be scanned out, the gaps between them, and as many more as
// the overlay plane count requires.
func (s *Simple) decideBand() {
	n := len(s.ui)
	if n == 0 {
		return
	}
	planes := len(s.res.overlay)
	if planes == 0 {
		s.logger.Warn("no overlay plane, discarding generic layers", "layers", n)
		for _, l := range s.ui {
			s.discard(l)
		}
		s.ui = nil
		return
	}

	composed := make([]bool, n)
	for i, l := range s.ui {
		composed[i] = s.mustCompose(l)
	}
	lo, hi := fillGaps(composed)
	lo, hi = growBand(composed, lo, hi, planes)
	if lo >= 0 {
		s.logger.Debug("composed band", "min", s.ui[lo].Z, "max", s.ui[hi].Z)
	}
	s.applyBand(composed)
}

// growBand widens [lo, hi] one layer at a time until the uncomposed layers
// plus the composer output fit on planes. A new band starts at the top
// layer; an existing band grows above, then below, alternating and
// falling back to the other side when one side runs out.
func growBand(composed []bool, lo, hi, planes int) (int, int) {
	n := len(composed)
	count := 0
	if lo >= 0 {
		count = hi - lo + 1
	}
	up := true
	for n-count > planes-boolInt(count > 0) {
		switch {
		case count == 0:
			lo, hi = n-1, n-1
		case up && hi < n-1:
			hi++
			up = false
		case lo > 0:
			lo--
			up = true
		default:
			hi++
		}
		composed[lo], composed[hi] = true, true
		count = hi - lo + 1
	}
	return lo, hi
}

// fillGaps marks every layer between the lowest and highest composed layer
// and returns their indexes, or -1, -1 when nothing is composed.
func fillGaps(composed []bool) (int, int) {
	lo := slices.Index(composed, true)
	if lo < 0 {
		return -1, -1
	}
	hi := len(composed) - 1 - slices.Index(reversed(composed), true)
	for i := lo; i <= hi; i++ {
		composed[i] = true
	}
	return lo, hi
}

func reversed(b []bool) []bool {
	r := slices.Clone(b)
	slices.Reverse(r)
	return r
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *Simple) applyBand(composed []bool) {
	for i, l := range s.ui {
		if composed[i] {
			s.compose(s.composer, []*hwc.Layer{l})
		} else {
			l.Assignment = hwc.OnPlane(hwc.PlaneOverlay)
		}
	}
}

// resolveVideoConflict handles a video layer whose z falls between
// overlay-bound layers while every overlay plane is busy and some of them
// are continuous planes, which cannot share the screen with an
// interleaved video. Adjacent non-video pairs are packed onto continuous
// planes when there are several; otherwise everything at or below the
// video joins the composed band.
func (s *Simple) resolveVideoConflict() {
	var videos []*hwc.Layer
	for _, d := range s.direct {
		if d.band == plan.BandVideo {
			videos = append(videos, d.layer)
		}
	}
	continuous := 0
	for _, p := range s.res.overlay {
		if p.Capabilities().Has(hwc.CapVideoConflict) {
			continuous++
		}
	}
	if len(videos) == 0 || continuous == 0 {
		return
	}

	items := s.overlayItems()
	if len(items) < 2 || len(items) != len(s.res.overlay) {
		return
	}
	lo, hi := items[0].layer.Z, items[len(items)-1].layer.Z
	var conflict *hwc.Layer
	for _, v := range videos {
		if v.Z > lo && v.Z < hi {
			conflict = v
			break
		}
	}
	if conflict == nil {
		return
	}
	s.logger.Debug("video interleaves overlay layers", "video", conflict.ID, "z", conflict.Z)

	if continuous > 1 && s.packPairs(items, videos, continuous) {
		return
	}
	s.forceBelow(conflict.Z)
}

// packPairs walks overlay items and videos in z-order and sends adjacent
// non-video pairs to continuous planes while at least two remain.
func (s *Simple) packPairs(items []item, videos []*hwc.Layer, continuous int) bool {
	seq := slices.Clone(items)
	for _, v := range videos {
		seq = append(seq, item{layer: v, video: true})
	}
	slices.SortStableFunc(seq, func(a, b item) int { return hwc.CompareZ(a.layer, b.layer) })

	picked := make(map[hwc.LayerID]bool)
	for i := 0; i+1 < len(seq) && len(picked)+2 <= continuous; {
		a, b := seq[i], seq[i+1]
		if a.video || b.video {
			i++
			continue
		}
		picked[a.layer.ID] = true
		picked[b.layer.ID] = true
		i += 2
	}
	if len(picked) == 0 {
		return false
	}
	s.logger.Debug("continuous planes packed", "layers", len(picked))
	s.continuous = picked
	s.manual = true
	return true
}

// forceBelow composes every overlay-bound layer at or below z and refills
// the gaps so the band stays contiguous.
func (s *Simple) forceBelow(z int) {
	composed := make([]bool, len(s.ui))
	for i, l := range s.ui {
		composed[i] = !l.Assignment.IsPlane(hwc.PlaneOverlay) || l.Z <= z
	}
	fillGaps(composed)
	s.applyBand(composed)
	s.logger.Debug("layers below video composed", "z", z)
}

// overlayItems lists the overlay-bound layers and the composed band's
// representative in z-order.
func (s *Simple) overlayItems() []item {
	var items []item
	var top *hwc.Layer
	for _, l := range s.ui {
		switch {
		case l.Assignment.IsPlane(hwc.PlaneOverlay):
			items = append(items, item{layer: l})
		case s.composer != nil && l.Assignment.IsComposer():
			if id, _ := l.Assignment.Composer(); id == s.composer.ID() {
				top = l
			}
		}
	}
	if top != nil {
		items = append(items, item{layer: top, composed: true})
	}
	slices.SortStableFunc(items, func(a, b item) int { return hwc.CompareZ(a.layer, b.layer) })
	return items
}

func (s *Simple) bind() *plan.Plan {
	p := &plan.Plan{Topology: hwc.TopologySingleChannel}

	for _, d := range s.direct {
		z := d.layer.Z
		if d.band == plan.BandCursor && d.plane.Capabilities().Has(hwc.CapFixedZorder) {
			z = d.plane.FixedZorder()
		}
		p.Entries = append(p.Entries, plan.Entry{
			Plane:     d.plane.ID(),
			PlaneType: d.plane.Type(),
			Source:    plan.Source{Kind: plan.SourceLayer, Layer: d.layer.ID},
			Zorder:    z,
			LayerZ:    d.layer.Z,
			Band:      d.band,
		})
	}

	var discrete, continuous []hwc.Plane
	for _, pl := range s.res.overlay {
		if pl.Capabilities().Has(hwc.CapVideoConflict) {
			continuous = append(continuous, pl)
		} else {
			discrete = append(discrete, pl)
		}
	}
	take := func(pool *[]hwc.Plane) hwc.Plane {
		pl := (*pool)[0]
		*pool = (*pool)[1:]
		return pl
	}

	for _, it := range s.overlayItems() {
		var pl hwc.Plane
		switch {
		case s.manual && s.continuous[it.layer.ID] && len(continuous) > 0:
			pl = take(&continuous)
		case len(discrete) > 0:
			pl = take(&discrete)
		case len(continuous) > 0:
			pl = take(&continuous)
		default:
			s.logger.Error("overlay planes exhausted", "layer", it.layer.ID)
			if !it.composed {
				s.discard(it.layer)
			}
			continue
		}
		e := plan.Entry{
			Plane:     pl.ID(),
			PlaneType: pl.Type(),
			Source:    plan.Source{Kind: plan.SourceLayer, Layer: it.layer.ID},
			Zorder:    it.layer.Z,
			LayerZ:    it.layer.Z,
			Band:      plan.BandOverlay,
		}
		if it.composed {
			e.Source = plan.Source{Kind: plan.SourceComposer, Layer: it.layer.ID, Composer: s.composer.ID()}
		}
		p.Entries = append(p.Entries, e)
	}

	s.bindJob(p)
	return p
}

// bindJob records the composer job and the composed band. Video layers
// inside the band are handed to the composer as overlays and, when the
// client composes, flagged so the client clears the target under them.
func (s *Simple) bindJob(p *plan.Plan) {
	if s.composer == nil {
		return
	}
	var inputs []hwc.LayerID
	for _, l := range s.ui {
		if id, ok := l.Assignment.Composer(); ok && id == s.composer.ID() {
			if len(inputs) == 0 {
				p.Band.Min = l.Z
			}
			p.Band.Max = l.Z
			inputs = append(inputs, l.ID)
		}
	}
	if len(inputs) == 0 {
		return
	}
	p.Band.Valid = true
	job := &plan.Job{Composer: s.composer.ID(), Inputs: inputs}
	for _, d := range s.direct {
		if d.band == plan.BandVideo && p.Band.Contains(d.layer.Z) {
			job.Overlays = append(job.Overlays, d.layer.ID)
			if s.composer.Kind() == hwc.ComposerUniversal {
				d.layer.ClearRequested = true
			}
		}
	}
	p.Job = job
}
