package pipeline

import (
	"encoding/json"
	"time"

	"github.com/matzehuels/hwcomposer/pkg/commit"
	"github.com/matzehuels/hwcomposer/pkg/errors"
	"github.com/matzehuels/hwcomposer/pkg/hwc"
	"github.com/matzehuels/hwcomposer/pkg/plan"
	"github.com/matzehuels/hwcomposer/pkg/sim"
)

// Report is the outcome of running one scenario.
type Report struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	ScenarioHash string       `json:"scenario_hash"`
	Display      string       `json:"display"`
	Strategy     string       `json:"strategy"`
	Topology     hwc.Topology `json:"topology"`
	DryRun       bool         `json:"dry_run,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`

	Frames []FrameReport `json:"frames"`
	Stats  Stats         `json:"stats"`
}

// FrameReport is the outcome of one frame.
type FrameReport struct {
	Index int       `json:"index"`
	Name  string    `json:"name,omitempty"`
	Flags hwc.Flags `json:"flags"`
	// Overrides lists the debug commands applied before this frame.
	Overrides []string `json:"overrides,omitempty"`

	Layers  []plan.LayerState `json:"layers"`
	Plan    *plan.Plan        `json:"plan"`
	Changes []plan.Change     `json:"changes,omitempty"`

	// Commit and Snapshot are nil for dry runs.
	Commit   *commit.Report `json:"commit,omitempty"`
	Snapshot *sim.Snapshot  `json:"snapshot,omitempty"`

	// Dump is the text dump of the decision pass.
	Dump string `json:"dump"`

	// Violation is set when the plan broke one of its invariants.
	Violation string `json:"violation,omitempty"`

	DecideTime time.Duration `json:"decide_time"`
}

// Stats summarises a report.
type Stats struct {
	Frames         int           `json:"frames"`
	Layers         int           `json:"layers"`
	Direct         int           `json:"direct"`
	Composed       int           `json:"composed"`
	Discarded      int           `json:"discarded"`
	Changes        int           `json:"changes"`
	CommitFailures int           `json:"commit_failures"`
	Violations     int           `json:"violations"`
	Duration       time.Duration `json:"duration"`
}

// Frame returns frame i.
func (r *Report) Frame(i int) (*FrameReport, error) {
	if i < 0 || i >= len(r.Frames) {
		return nil, errors.New(errors.ErrCodeNotFound, "frame %d out of range (report has %d frames)", i, len(r.Frames))
	}
	return &r.Frames[i], nil
}

// OK reports whether every plan held its invariants.
func (r *Report) OK() bool { return r.Stats.Violations == 0 }

func (s *Stats) add(f *FrameReport) {
	s.Frames++
	s.Layers += len(f.Layers)
	for _, l := range f.Layers {
		switch l.Assignment.Kind() {
		case hwc.KindPlane:
			s.Direct++
		case hwc.KindComposer:
			if f.Plan != nil && l.Assignment == hwc.OnComposer(f.Plan.DiscardComposer) {
				s.Discarded++
			} else {
				s.Composed++
			}
		case hwc.KindDiscarded:
			s.Discarded++
		}
	}
	s.Changes += len(f.Changes)
	if f.Commit != nil {
		s.CommitFailures += len(f.Commit.Failed)
	}
	if f.Violation != "" {
		s.Violations++
	}
}

// MarshalReport encodes r as JSON.
func MarshalReport(r *Report) ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalReport decodes a report encoded by MarshalReport.
func UnmarshalReport(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode report")
	}
	return &r, nil
}
