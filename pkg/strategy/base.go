package strategy

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/hwcomposer/pkg/commit"
	"github.com/matzehuels/hwcomposer/pkg/debug"
	"github.com/matzehuels/hwcomposer/pkg/errors"
	"github.com/matzehuels/hwcomposer/pkg/hwc"
	"github.com/matzehuels/hwcomposer/pkg/plan"
)

// base holds what both strategies share: the frame, the classified
// resources, the frozen plan and the commit and dump paths.
type base struct {
	name    string
	display string
	catalog *hwc.Catalog
	logger  *log.Logger
	binder  *commit.Binder

	reg       *hwc.Registry
	frameCat  *hwc.Catalog
	flags     hwc.Flags
	overrides hwc.DebugOverrides
	crtc      hwc.Crtc
	res       resources
	plan      *plan.Plan
}

func newBase(name string, cat *hwc.Catalog, opts Options) base {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	logger = logger.With("strategy", name)
	if opts.Display != "" {
		logger = logger.With("display", opts.Display)
	}
	return base{
		name:    name,
		display: opts.Display,
		catalog: cat,
		logger:  logger,
		binder:  commit.NewBinder(logger),
	}
}

// Name implements Strategy.
func (b *base) Name() string { return b.name }

// Plan implements Strategy.
func (b *base) Plan() *plan.Plan { return b.plan }

// Registry implements Strategy.
func (b *base) Registry() *hwc.Registry { return b.reg }

// Setup implements Strategy.
func (b *base) Setup(f hwc.Frame) error {
	cat := b.catalog
	if f.Planes != nil || f.Composers != nil {
		c, err := hwc.NewCatalog(f.Planes, f.Composers)
		if err != nil {
			return err
		}
		cat = c
	}
	reg, err := hwc.NewRegistry(f.Layers)
	if err != nil {
		return err
	}
	reg.Reset()

	b.reg = reg
	b.frameCat = cat
	b.flags = f.Flags
	b.overrides = f.Overrides.Clone()
	b.crtc = f.Crtc
	b.plan = nil
	b.res = classifyResources(cat, b.overrides, b.logger)
	return nil
}

func (b *base) ready() error {
	if b.reg == nil || b.frameCat == nil {
		return errors.New(errors.ErrCodeInvalidSetup, "decide called before setup")
	}
	return nil
}

// Commit implements Strategy.
func (b *base) Commit(ctx context.Context) (*commit.Report, error) {
	if b.plan == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "commit called before decide")
	}
	return b.binder.Commit(ctx, commit.Target{
		Display:   b.display,
		Plan:      b.plan,
		Registry:  b.reg,
		Planes:    b.frameCat.Planes(),
		Composers: b.frameCat.Composers(),
		Crtc:      b.crtc,
	})
}

// Dump implements Strategy.
func (b *base) Dump(w io.Writer) error {
	title := b.name + " strategy"
	if b.display != "" {
		title = fmt.Sprintf("%s strategy, display %s", b.name, b.display)
	}
	return debug.Dump(w, b.reg, b.plan, debug.DumpOptions{Title: title, Detail: b.overrides.Detail})
}

// discard drops l through the discard composer, or silently when the
// display has none.
func (b *base) discard(l *hwc.Layer) {
	if b.res.discard != nil {
		l.Assignment = hwc.OnComposer(b.res.discard.ID())
		return
	}
	l.Assignment = hwc.Discarded()
}

// applyOverrides discards hidden layers and, when secure content is to be
// hidden, secure layers.
func (b *base) applyOverrides() {
	for _, l := range b.reg.Ordered() {
		switch {
		case b.overrides.LayerHidden(l.ID):
			b.logger.Debug("layer hidden", "layer", l.ID)
			b.discard(l)
		case b.flags.HideSecure && l.Secure:
			b.logger.Debug("secure layer hidden", "layer", l.ID)
			b.discard(l)
		}
	}
}

// finishPlan records the discard list and the blank planes, then freezes p.
func (b *base) finishPlan(p *plan.Plan) {
	for _, l := range b.reg.Ordered() {
		if l.Assignment.IsUndetermined() {
			b.logger.Warn("layer left undetermined, discarding", "layer", l.ID)
			b.discard(l)
		}
		switch l.Assignment.Kind() {
		case hwc.KindDiscarded:
			p.Discarded = append(p.Discarded, l.ID)
		case hwc.KindComposer:
			if id, _ := l.Assignment.Composer(); b.res.discard != nil && id == b.res.discard.ID() {
				p.Discarded = append(p.Discarded, l.ID)
			}
		}
	}
	if b.res.discard != nil {
		p.DiscardComposer = b.res.discard.ID()
	}
	if b.res.universal != nil {
		p.ClientComposer = b.res.universal.ID()
	}

	bound := make(map[hwc.PlaneID]bool, len(p.Entries))
	for _, e := range p.Entries {
		bound[e.Plane] = true
	}
	for _, pl := range b.frameCat.Planes() {
		if !bound[pl.ID()] {
			p.Blank = append(p.Blank, pl.ID())
		}
	}
	p.Sort()
	b.plan = p

	if err := p.Validate(b.reg, b.planeIDs()); err != nil {
		b.logger.Error("plan violates invariants", "err", err)
	}

	b.logger.Debug("plan frozen",
		"entries", len(p.Entries), "blank", len(p.Blank), "discarded", len(p.Discarded), "band", p.Band.String())
}

// planeIDs lists every plane of the current frame.
func (b *base) planeIDs() []hwc.PlaneID {
	ids := make([]hwc.PlaneID, 0, len(b.frameCat.Planes()))
	for _, p := range b.frameCat.Planes() {
		ids = append(ids, p.ID())
	}
	return ids
}
