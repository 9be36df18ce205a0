package strategy

import (
	"slices"

	"github.com/matzehuels/hwcomposer/pkg/plan"
)

// Presentation z-order bands of the multi-channel blender. Its z compare
// is purely numeric, so each class of content gets its own range.
const (
	videoBelowBase = 1   // videos under every overlay: 1-64
	osdBase        = 65  // overlay channels and composer output: 65-128
	videoAboveBase = 129 // the one video above every overlay: 129-192
)

// reband sets the presentation z of every entry. Overlay entries move into
// the overlay range; the composer output sits at the band's top. One video
// above the highest overlay goes to the top range, every other video to
// the bottom range. The composer output counts one below its band top
// when looking for that video, so a video at the band top stays visible.
func (m *MultiPlane) reband(p *plan.Plan) {
	maxOsd, haveOsd := 0, false
	for i := range p.Entries {
		e := &p.Entries[i]
		if e.Band != plan.BandOverlay {
			continue
		}
		z := e.LayerZ
		if e.Source.Kind == plan.SourceComposer {
			e.Zorder = e.LayerZ + osdBase
			z--
		} else {
			e.Zorder = z + osdBase
		}
		if !haveOsd || z > maxOsd {
			maxOsd, haveOsd = z, true
		}
	}

	var videos []int
	for i, e := range p.Entries {
		if e.Band != plan.BandOverlay {
			videos = append(videos, i)
		}
	}
	slices.SortStableFunc(videos, func(a, b int) int { return p.Entries[b].LayerZ - p.Entries[a].LayerZ })

	above := false
	for _, i := range videos {
		e := &p.Entries[i]
		if haveOsd && !above && e.LayerZ > maxOsd {
			e.Zorder = e.LayerZ + videoAboveBase
			e.Band = plan.BandVideoAbove
			above = true
			continue
		}
		e.Zorder = e.LayerZ + videoBelowBase
		e.Band = plan.BandVideoBelow
	}
}
