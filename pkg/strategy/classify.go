package strategy

import (
	"github.com/charmbracelet/log"

	"github.com/matzehuels/hwcomposer/pkg/hwc"
)

// resources is the frame's catalog split by role. Hidden planes are left
// out, so the plan blanks them.
type resources struct {
	overlay        []hwc.Plane
	video          []hwc.Plane
	videoSecondary []hwc.Plane
	cursor         []hwc.Plane

	discard     hwc.Composer
	universal   hwc.Composer
	specialized []hwc.Composer
}

func classifyResources(cat *hwc.Catalog, o hwc.DebugOverrides, logger *log.Logger) resources {
	var r resources
	for _, p := range cat.Planes() {
		if o.PlaneHidden(p.ID()) {
			logger.Debug("plane hidden", "plane", p.ID())
			continue
		}
		switch p.Type() {
		case hwc.PlaneOverlay:
			r.overlay = append(r.overlay, p)
		case hwc.PlaneVideo:
			r.video = append(r.video, p)
		case hwc.PlaneVideoSecondary:
			r.videoSecondary = append(r.videoSecondary, p)
		case hwc.PlaneCursor:
			r.cursor = append(r.cursor, p)
		default:
			logger.Debug("plane type not used", "plane", p.ID(), "type", p.Type())
		}
	}

	for _, c := range cat.Composers() {
		switch c.Kind() {
		case hwc.ComposerDiscard:
			if r.discard == nil {
				r.discard = c
			} else {
				logger.Debug("extra discard composer ignored", "composer", c.ID())
			}
		case hwc.ComposerUniversal:
			if r.universal == nil {
				r.universal = c
			} else {
				logger.Debug("extra universal composer ignored", "composer", c.ID())
			}
		default:
			r.specialized = append(r.specialized, c)
		}
	}

	if r.discard == nil {
		logger.Warn("no discard composer, discarded layers are dropped silently")
	}
	if r.universal == nil {
		logger.Warn("no universal composer, client layers will be discarded")
	}
	return r
}

// videoPlanes returns every dedicated video plane, primary channel first.
func (r resources) videoPlanes() []hwc.Plane {
	out := make([]hwc.Plane, 0, len(r.video)+len(r.videoSecondary))
	out = append(out, r.video...)
	return append(out, r.videoSecondary...)
}

type layerClass uint8

const (
	classGeneric layerClass = iota
	classForced
	classVideo
	classCursor
)

func (c layerClass) String() string {
	switch c {
	case classForced:
		return "forced-client"
	case classVideo:
		return "video"
	case classCursor:
		return "cursor"
	}
	return "generic"
}

// forcedClient reports whether l must be rendered by the client composer.
// The frame-wide switches leave video alone: video never goes through the
// client composer unless the layer itself asks for it.
func (b *base) forcedClient(l *hwc.Layer) bool {
	if l.ForceClient {
		return true
	}
	return (b.flags.ForceClient || b.overrides.ForceClient) && !l.IsVideo()
}

func (b *base) classOf(l *hwc.Layer) layerClass {
	switch {
	case b.forcedClient(l):
		return classForced
	case l.IsVideo():
		return classVideo
	case l.Format == hwc.FormatCursor:
		return classCursor
	}
	return classGeneric
}

// mustCompose reports whether l cannot go to an overlay plane on its own.
func (b *base) mustCompose(l *hwc.Layer) bool {
	if b.forcedClient(l) || l.NeedsComposer() || !l.ValidGeometry() {
		return true
	}
	return len(b.res.overlay) > 0 && !b.res.overlay[0].Supports(l)
}

// markForced routes a forced-client layer to the universal composer, or
// discards it when there is none. It reports whether the layer stays
// visible.
func (b *base) markForced(l *hwc.Layer) bool {
	if b.res.universal == nil {
		b.logger.Warn("client layer without universal composer, discarding", "layer", l.ID)
		l.Assignment = hwc.Discarded()
		return false
	}
	return true
}
