package strategy

import "github.com/matzehuels/hwcomposer/pkg/hwc"

// selectComposer picks the one composer every composed layer of the frame
// goes to. A client layer, or a display without specialized composers,
// means the universal composer. Otherwise the first specialized composer
// accepting all of queued wins, falling back to the universal one. The
// result is nil when the display has no usable composer.
func (b *base) selectComposer(haveClient bool, queued []*hwc.Layer) hwc.Composer {
	if haveClient || len(b.res.specialized) == 0 {
		return b.res.universal
	}
	for _, c := range b.res.specialized {
		if supportsAll(c, queued) {
			b.logger.Debug("specialized composer selected", "composer", c.ID())
			return c
		}
	}
	return b.res.universal
}

func supportsAll(c hwc.Composer, layers []*hwc.Layer) bool {
	for _, l := range layers {
		if !c.Supports(l) {
			return false
		}
	}
	return true
}

// compose assigns layers to c, or discards them when c is nil.
func (b *base) compose(c hwc.Composer, layers []*hwc.Layer) {
	for _, l := range layers {
		if c == nil {
			b.logger.Warn("no composer for composed layer, discarding", "layer", l.ID)
			l.Assignment = hwc.Discarded()
			continue
		}
		l.Assignment = hwc.OnComposer(c.ID())
	}
}
