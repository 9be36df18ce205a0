// Package strategy decides, frame by frame, which plane or composer
// handles each layer.
//
// Two strategies share the [Strategy] contract:
//
//   - [Simple] serves displays with one generic overlay channel. It keeps
//     the composed band as small as the overlay plane count allows, grows
//     it alternately from both ends and resolves conflicts between video
//     planes and "continuous" overlay planes.
//   - [MultiPlane] serves displays with a primary and a secondary video
//     channel. It routes up to four video layers onto the two channels,
//     grows the composed band from whichever side is cheaper, respects the
//     scaler's parallel input limit and re-bands presentation z-order into
//     disjoint numeric ranges for overlay, video-above and video-below
//     content.
//
// [New] picks the strategy once per display from the catalog topology.
//
// # Frame Cycle
//
//	s, _ := strategy.New(catalog, strategy.Options{Logger: logger})
//	for frame := range frames {
//	    if err := s.Setup(frame); err != nil { ... }
//	    if err := s.Decide(); err != nil { ... }
//	    report, err := s.Commit(ctx)
//	}
//
// Decide never fails for oversubscribed input: it always produces a plan
// that covers every layer, widening the composed band or discarding
// excess video instead. Only malformed setup is reported as an error.
package strategy

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/hwcomposer/pkg/commit"
	"github.com/matzehuels/hwcomposer/pkg/errors"
	"github.com/matzehuels/hwcomposer/pkg/hwc"
	"github.com/matzehuels/hwcomposer/pkg/plan"
)

// Strategy is one display's decision engine.
type Strategy interface {
	// Name identifies the strategy in logs and reports.
	Name() string

	// Setup loads the frame. Planes and composers in the frame replace the
	// catalog's for this frame when either list is non-nil.
	Setup(f hwc.Frame) error

	// Decide assigns every layer and freezes the plan.
	Decide() error

	// Plan returns the plan of the last Decide, or nil.
	Plan() *plan.Plan

	// Registry returns the layers of the current frame.
	Registry() *hwc.Registry

	// Commit applies the plan to the frame's planes and composers.
	Commit(ctx context.Context) (*commit.Report, error)

	// Dump writes a diagnostic view of the current frame.
	Dump(w io.Writer) error
}

// Options configures a strategy.
type Options struct {
	// Logger receives decision logs. Nil discards them.
	Logger *log.Logger

	// Display names the display in logs and hooks.
	Display string

	// Topology overrides the topology detected from the catalog: "simple"
	// or "multi". Empty means detect.
	Topology string
}

// New returns the strategy matching the catalog's topology.
func New(cat *hwc.Catalog, opts Options) (Strategy, error) {
	if cat == nil {
		return nil, errors.New(errors.ErrCodeInvalidSetup, "nil resource catalog")
	}
	topo := cat.Topology()
	if opts.Topology != "" && opts.Topology != "auto" {
		t, ok := hwc.ParseTopology(opts.Topology)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidInput, "unknown topology %q", opts.Topology)
		}
		topo = t
	}
	if topo == hwc.TopologyMultiChannel {
		return NewMultiPlane(cat, opts), nil
	}
	return NewSimple(cat, opts), nil
}
