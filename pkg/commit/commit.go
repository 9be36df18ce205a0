// Package commit executes binding plans against planes and composers.
//
// The [Binder] makes no decisions: it walks a frozen [plan.Plan] in
// presentation order, runs the frame's composer job once before binding
// its output, issues SetContent for every entry (SetComposeContent for a
// merged video group) and blanks every plane the plan leaves unused. A plane that rejects its content, a composer that
// fails to start or a resource the plan names but the target lacks never
// aborts the frame: the starved plane is blanked, its layers are reported
// as dropped and the binder moves on.
package commit

import (
	"context"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/hwcomposer/pkg/errors"
	"github.com/matzehuels/hwcomposer/pkg/hwc"
	"github.com/matzehuels/hwcomposer/pkg/observability"
	"github.com/matzehuels/hwcomposer/pkg/plan"
)

// Target is everything a commit touches.
type Target struct {
	// Display names the display in logs and hooks.
	Display   string
	Plan      *plan.Plan
	Registry  *hwc.Registry
	Planes    []hwc.Plane
	Composers []hwc.Composer
	Crtc      hwc.Crtc
}

// Binding is one plane that received content.
type Binding struct {
	Plane    hwc.PlaneID `json:"plane" bson:"plane"`
	Layer    hwc.LayerID `json:"layer" bson:"layer"`
	Zorder   int         `json:"zorder" bson:"zorder"`
	Composed bool        `json:"composed,omitempty" bson:"composed,omitempty"`
	// Group lists the layers a video plane merges, Layer first.
	Group []hwc.LayerID `json:"group,omitempty" bson:"group,omitempty"`
}

// Failure is one plan entry that could not be shown.
type Failure struct {
	Plane  hwc.PlaneID   `json:"plane" bson:"plane"`
	Layers []hwc.LayerID `json:"layers" bson:"layers"`
	Reason string        `json:"reason" bson:"reason"`
}

// Report describes what a commit did.
type Report struct {
	Bound   []Binding     `json:"bound" bson:"bound"`
	Blanked []hwc.PlaneID `json:"blanked" bson:"blanked"`
	Failed  []Failure     `json:"failed,omitempty" bson:"failed,omitempty"`
	// Dropped lists the layers of failed entries and the group layers a
	// plane could not merge. Layers the plan itself discarded are not
	// repeated here.
	Dropped      []hwc.LayerID     `json:"dropped,omitempty" bson:"dropped,omitempty"`
	DisplayFrame *hwc.DisplayFrame `json:"display_frame,omitempty" bson:"display_frame,omitempty"`
	OsdChannels  int               `json:"osd_channels,omitempty" bson:"osd_channels,omitempty"`
}

// Binder applies plans.
type Binder struct {
	Logger *log.Logger
}

// NewBinder returns a binder logging to logger, or nowhere when nil.
func NewBinder(logger *log.Logger) *Binder {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Binder{Logger: logger}
}

type frameState struct {
	t         Target
	planes    map[hwc.PlaneID]hwc.Plane
	composers map[hwc.ComposerID]hwc.Composer
	report    *Report
	touched   map[hwc.PlaneID]bool
	shown     map[hwc.PlaneID]*hwc.Layer
}

// Commit binds t.Plan. Only a missing plan is an error; resource failures
// are recorded in the report.
func (b *Binder) Commit(ctx context.Context, t Target) (*Report, error) {
	if t.Plan == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "commit without a plan")
	}
	if t.Registry == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "commit without a layer registry")
	}
	logger := b.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	start := time.Now()

	s := &frameState{
		t:         t,
		planes:    make(map[hwc.PlaneID]hwc.Plane, len(t.Planes)),
		composers: make(map[hwc.ComposerID]hwc.Composer, len(t.Composers)),
		report:    &Report{},
		touched:   make(map[hwc.PlaneID]bool),
		shown:     make(map[hwc.PlaneID]*hwc.Layer),
	}
	for _, p := range t.Planes {
		s.planes[p.ID()] = p
	}
	for _, c := range t.Composers {
		s.composers[c.ID()] = c
	}

	entries := slices.Clone(t.Plan.Entries)
	slices.SortStableFunc(entries, func(a, b plan.Entry) int { return a.Zorder - b.Zorder })

	for _, e := range entries {
		b.bindEntry(logger, s, e)
	}

	for _, p := range t.Planes {
		if s.touched[p.ID()] {
			continue
		}
		if err := p.Blank(true); err != nil {
			logger.Warn("blank failed", "plane", p.ID(), "err", err)
		}
		s.report.Blanked = append(s.report.Blanked, p.ID())
	}
	slices.Sort(s.report.Blanked)

	b.runDiscard(logger, s)
	b.programCrtc(logger, s)

	observability.Frame().OnCommit(ctx, t.Display,
		len(s.report.Bound), len(s.report.Blanked), len(s.report.Failed), time.Since(start))
	logger.Debug("commit done",
		"bound", len(s.report.Bound), "blanked", len(s.report.Blanked), "failed", len(s.report.Failed))
	return s.report, nil
}

func (b *Binder) bindEntry(logger *log.Logger, s *frameState, e plan.Entry) {
	layers := s.entryLayers(e)
	plane := s.planes[e.Plane]
	if plane == nil {
		s.fail(e.Plane, layers, "plane not in catalog")
		logger.Warn("plan names unknown plane", "plane", e.Plane)
		return
	}
	s.touched[e.Plane] = true

	var (
		content *hwc.Layer
		group   []hwc.LayerID
		err     error
	)
	if e.Source.Kind == plan.SourceVideoGroup && len(e.Source.Group) > 1 {
		content, group, err = s.bindGroup(logger, plane, e)
	} else {
		content, err = s.content(e)
		if err == nil {
			err = plane.SetContent(content, e.Zorder)
		}
	}
	if err != nil {
		logger.Warn("entry not shown, blanking plane", "plane", e.Plane, "err", err)
		if berr := plane.Blank(true); berr != nil {
			logger.Warn("blank failed", "plane", e.Plane, "err", berr)
		}
		s.fail(e.Plane, layers, err.Error())
		s.report.Blanked = append(s.report.Blanked, e.Plane)
		return
	}

	s.shown[e.Plane] = content
	s.report.Bound = append(s.report.Bound, Binding{
		Plane:    e.Plane,
		Layer:    content.ID,
		Zorder:   e.Zorder,
		Composed: e.Source.Kind == plan.SourceComposer,
		Group:    group,
	})
	logger.Debug("plane bound", "plane", e.Plane, "layer", content.ID, "zorder", e.Zorder)
}

// content resolves the layer an entry shows, running the composer job for
// composer entries.
func (s *frameState) content(e plan.Entry) (*hwc.Layer, error) {
	if e.Source.Kind != plan.SourceComposer {
		l := s.t.Registry.Get(e.Source.Layer)
		if l == nil {
			return nil, errors.New(errors.ErrCodeMissingResource, "layer %d not in registry", e.Source.Layer)
		}
		return l, nil
	}

	job := s.t.Plan.Job
	if job == nil {
		return nil, errors.New(errors.ErrCodeInternal, "composer entry without a job")
	}
	c := s.composers[job.Composer]
	if c == nil {
		return nil, errors.New(errors.ErrCodeMissingResource, "composer %q not in catalog", job.Composer)
	}
	if err := c.AddInputs(s.layers(job.Inputs)); err != nil {
		return nil, errors.Wrap(errors.ErrCodeComposerFailed, err, "composer %q", job.Composer)
	}
	if oa, ok := c.(hwc.OverlayAware); ok {
		oa.SetOverlays(s.layers(job.Overlays))
	}
	if err := c.Start(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeComposerFailed, err, "composer %q", job.Composer)
	}
	out := c.Output()
	if out == nil {
		return nil, errors.New(errors.ErrCodeComposerFailed, "composer %q produced no output", job.Composer)
	}
	return out, nil
}

// bindGroup hands a merged video group to a plane that can merge it. Any
// other plane shows the first layer and the rest are dropped.
func (s *frameState) bindGroup(logger *log.Logger, plane hwc.Plane, e plan.Entry) (*hwc.Layer, []hwc.LayerID, error) {
	layers := make([]*hwc.Layer, 0, len(e.Source.Group))
	for _, id := range e.Source.Group {
		l := s.t.Registry.Get(id)
		if l == nil {
			return nil, nil, errors.New(errors.ErrCodeMissingResource, "layer %d not in registry", id)
		}
		layers = append(layers, l)
	}

	if cp, ok := plane.(hwc.ComposePlane); ok {
		if err := cp.SetComposeContent(layers, e.Zorder); err != nil {
			return nil, nil, err
		}
		return layers[0], slices.Clone(e.Source.Group), nil
	}

	if err := plane.SetContent(layers[0], e.Zorder); err != nil {
		return nil, nil, err
	}
	rest := slices.Clone(e.Source.Group[1:])
	logger.Warn("plane cannot merge video layers", "plane", e.Plane, "dropped", rest)
	s.report.Dropped = append(s.report.Dropped, rest...)
	return layers[0], nil, nil
}

func (s *frameState) entryLayers(e plan.Entry) []hwc.LayerID {
	switch e.Source.Kind {
	case plan.SourceComposer:
		if s.t.Plan.Job != nil {
			return slices.Clone(s.t.Plan.Job.Inputs)
		}
		return nil
	case plan.SourceVideoGroup:
		return slices.Clone(e.Source.Group)
	}
	return []hwc.LayerID{e.Source.Layer}
}

func (s *frameState) layers(ids []hwc.LayerID) []*hwc.Layer {
	out := make([]*hwc.Layer, 0, len(ids))
	for _, id := range ids {
		if l := s.t.Registry.Get(id); l != nil {
			out = append(out, l)
		}
	}
	return out
}

func (s *frameState) fail(plane hwc.PlaneID, layers []hwc.LayerID, reason string) {
	s.report.Failed = append(s.report.Failed, Failure{Plane: plane, Layers: layers, Reason: reason})
	s.report.Dropped = append(s.report.Dropped, layers...)
}

func (b *Binder) runDiscard(logger *log.Logger, s *frameState) {
	p := s.t.Plan
	if p.DiscardComposer == "" || len(p.Discarded) == 0 {
		return
	}
	c := s.composers[p.DiscardComposer]
	if c == nil {
		logger.Warn("discard composer missing", "composer", p.DiscardComposer)
		return
	}
	var inputs []*hwc.Layer
	for _, l := range s.layers(p.Discarded) {
		if id, ok := l.Assignment.Composer(); ok && id == p.DiscardComposer {
			inputs = append(inputs, l)
		}
	}
	if len(inputs) == 0 {
		return
	}
	if err := c.AddInputs(inputs); err != nil {
		logger.Warn("discard composer rejected inputs", "err", err)
		return
	}
	if err := c.Start(); err != nil {
		logger.Warn("discard composer failed", "err", err)
	}
}

// programCrtc scales the overlay channels to the reference plane's
// content. An uncomposed reference keeps its buffer size and is placed at
// the plan's offset; composer output is shown at its own frame.
func (b *Binder) programCrtc(logger *log.Logger, s *frameState) {
	d := s.t.Plan.Display
	if d == nil || s.t.Crtc == nil {
		return
	}
	if d.OsdChannels > 0 {
		if err := s.t.Crtc.SetOsdChannels(d.OsdChannels); err != nil {
			logger.Warn("osd channels not set", "err", err)
		} else {
			s.report.OsdChannels = d.OsdChannels
		}
	}

	ref := s.shown[d.Reference]
	if ref == nil {
		return
	}
	df := hwc.DisplayFrame{
		FramebufferWidth:  ref.Crop.Width(),
		FramebufferHeight: ref.Crop.Height(),
	}
	if ref.IsComposerOutput() {
		df.Display = ref.Frame
	} else {
		df.Display = hwc.NewRect(d.OffsetX, d.OffsetY, ref.Frame.Width(), ref.Frame.Height())
	}
	if err := s.t.Crtc.SetDisplayFrame(df); err != nil {
		logger.Warn("display frame not set", "err", err)
		return
	}
	s.report.DisplayFrame = &df
}
