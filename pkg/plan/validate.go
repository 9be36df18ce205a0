package plan

import (
	"slices"

	"github.com/matzehuels/hwcomposer/pkg/errors"
	"github.com/matzehuels/hwcomposer/pkg/hwc"
)

// Validate checks the plan against the frame it was computed for.
//
// It verifies that:
//   - no plane is bound twice and every catalog plane is either bound or blank
//   - every layer of the registry is either discarded or visible exactly once
//   - a composer entry exists if and only if there is a composer job
//   - no overlay layer is bound directly between two composed layers
//   - inside each band, rising presentation z never lowers the layer z
func (p *Plan) Validate(reg *hwc.Registry, planes []hwc.PlaneID) error {
	catalog := make(map[hwc.PlaneID]bool, len(planes))
	for _, id := range planes {
		catalog[id] = true
	}

	seen := make(map[hwc.PlaneID]bool, len(planes))
	for _, e := range p.Entries {
		if !catalog[e.Plane] {
			return errors.New(errors.ErrCodeInternal, "entry binds unknown plane %d", e.Plane)
		}
		if seen[e.Plane] {
			return errors.New(errors.ErrCodeInternal, "plane %d bound twice", e.Plane)
		}
		seen[e.Plane] = true
	}
	for _, id := range p.Blank {
		if !catalog[id] {
			return errors.New(errors.ErrCodeInternal, "blank list names unknown plane %d", id)
		}
		if seen[id] {
			return errors.New(errors.ErrCodeInternal, "plane %d is both bound and blank", id)
		}
		seen[id] = true
	}
	for _, id := range planes {
		if !seen[id] {
			return errors.New(errors.ErrCodeInternal, "plane %d is neither bound nor blank", id)
		}
	}

	if err := p.validateCoverage(reg); err != nil {
		return err
	}
	if err := p.validateBand(reg); err != nil {
		return err
	}
	return p.validateOrder()
}

func (p *Plan) validateCoverage(reg *hwc.Registry) error {
	composerEntries := 0
	for _, e := range p.Entries {
		if e.Source.Kind == SourceComposer {
			composerEntries++
		}
	}
	switch {
	case p.Job == nil && composerEntries > 0:
		return errors.New(errors.ErrCodeInternal, "composer output bound without a composer job")
	case p.Job != nil && composerEntries != 1:
		return errors.New(errors.ErrCodeInternal, "composer job has %d output entries", composerEntries)
	case p.Job != nil && len(p.Job.Inputs) == 0:
		return errors.New(errors.ErrCodeInternal, "composer job %q has no inputs", p.Job.Composer)
	}

	count := make(map[hwc.LayerID]int, reg.Len())
	for _, id := range p.Visible() {
		if reg.Get(id) == nil {
			return errors.New(errors.ErrCodeInternal, "plan references unknown layer %d", id)
		}
		count[id]++
	}
	discarded := make(map[hwc.LayerID]bool, len(p.Discarded))
	for _, id := range p.Discarded {
		if discarded[id] {
			return errors.New(errors.ErrCodeInternal, "layer %d discarded twice", id)
		}
		discarded[id] = true
	}

	for _, l := range reg.Ordered() {
		n := count[l.ID]
		switch {
		case discarded[l.ID] && n > 0:
			return errors.New(errors.ErrCodeInternal, "discarded layer %d is visible", l.ID)
		case !discarded[l.ID] && n == 0:
			return errors.New(errors.ErrCodeInternal, "layer %d is neither visible nor discarded", l.ID)
		case n > 1:
			return errors.New(errors.ErrCodeInternal, "layer %d appears in %d entries", l.ID, n)
		}
	}
	return nil
}

// validateBand checks that the composed layers form one contiguous run of
// the overlay stack.
func (p *Plan) validateBand(reg *hwc.Registry) error {
	if p.Job == nil || len(p.Job.Inputs) < 2 {
		return nil
	}
	lo, hi := 0, 0
	for i, id := range p.Job.Inputs {
		z := reg.Get(id).Z
		if i == 0 || z < lo {
			lo = z
		}
		if i == 0 || z > hi {
			hi = z
		}
	}
	for _, e := range p.Entries {
		if e.Band != BandOverlay || e.Source.Kind != SourceLayer {
			continue
		}
		if e.LayerZ > lo && e.LayerZ < hi {
			return errors.New(errors.ErrCodeInternal,
				"layer %d (z %d) is bound directly inside the composed range [%d, %d]",
				e.Source.Layer, e.LayerZ, lo, hi)
		}
	}
	return nil
}

func (p *Plan) validateOrder() error {
	entries := slices.Clone(p.Entries)
	slices.SortStableFunc(entries, func(a, b Entry) int { return a.Zorder - b.Zorder })

	last := make(map[Band]Entry)
	for _, e := range entries {
		prev, ok := last[e.Band]
		if ok && e.LayerZ < prev.LayerZ {
			return errors.New(errors.ErrCodeInternal,
				"%s band out of order: plane %d (z %d) presented above plane %d (z %d)",
				e.Band, e.Plane, e.LayerZ, prev.Plane, prev.LayerZ)
		}
		last[e.Band] = e
	}
	return nil
}
