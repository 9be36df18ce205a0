// Package pipeline runs scenarios through the decision engine against
// simulated hardware.
//
// This package implements the complete load → decide → commit → report
// pipeline used by the CLI and the HTTP API. By centralizing it, every
// entry point decides, validates and caches frames the same way.
//
// # Architecture
//
// For each frame of a scenario the pipeline:
//
//  1. Applies the frame's debug commands to the display's overrides
//  2. Runs the display's strategy (Setup, Decide) and checks the plan
//     invariants
//  3. Commits the plan to the simulated planes and composers
//  4. Records the plan, the layer outcomes, the composition changes, the
//     commit report, the hardware snapshot and a text dump
//
// Reports are cached by scenario content and, when a store is configured,
// persisted under a fresh id.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, store, logger)
//	result, err := runner.Execute(ctx, sc, pipeline.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, f := range result.Report.Frames {
//	    fmt.Println(f.Dump)
//	}
//
// Several scenarios run concurrently with [Runner.ExecuteAll]; each display
// owns its strategy, so displays never share decision state.
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/hwcomposer/pkg/cache"
	"github.com/matzehuels/hwcomposer/pkg/errors"
	"github.com/matzehuels/hwcomposer/pkg/hwc"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

// DefaultParallelism bounds how many scenarios ExecuteAll runs at once.
const DefaultParallelism = 4

// Format constants for report output.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatDOT  = "dot"
	FormatSVG  = "svg"
	FormatPNG  = "png"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatText: true,
	FormatJSON: true,
	FormatDOT:  true,
	FormatSVG:  true,
	FormatPNG:  true,
}

// ValidTopologies is the set of accepted topology overrides.
var ValidTopologies = map[string]bool{
	"":       true,
	"auto":   true,
	"simple": true,
	"multi":  true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for one pipeline run.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Topology overrides the scenario's topology: "simple", "multi" or
	// "auto". Empty keeps the scenario's own setting.
	Topology string `json:"topology,omitempty"`

	// DryRun decides frames without committing them.
	DryRun bool `json:"dry_run,omitempty"`

	// Refresh bypasses the report cache.
	Refresh bool `json:"refresh,omitempty"`

	// Persist saves the report to the runner's store.
	Persist bool `json:"persist,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	Report *Report

	// CacheHit is set when the report came from the cache.
	CacheHit bool

	// Stored is set when the report was saved to the store.
	Stored bool
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: text, json, dot, svg, png)", format)
	}
	return nil
}

// ValidateTopology checks a topology override.
func ValidateTopology(topology string) error {
	if !ValidTopologies[topology] {
		if _, ok := hwc.ParseTopology(topology); !ok {
			return errors.New(errors.ErrCodeInvalidInput, "invalid topology: %q (must be one of: auto, simple, multi)", topology)
		}
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks the options and fills in defaults. It is
// idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := ValidateTopology(o.Topology); err != nil {
		return err
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// topologyFor returns the topology the run uses for a scenario that asks
// for want.
func (o *Options) topologyFor(want string) string {
	if o.Topology != "" {
		return o.Topology
	}
	return want
}

// ReportKeyOpts returns cache key options for a scenario asking for
// topology.
func (o *Options) ReportKeyOpts(topology string) cache.ReportKeyOpts {
	return cache.ReportKeyOpts{
		Topology: o.topologyFor(topology),
		Commit:   !o.DryRun,
	}
}

// timeNow is replaced in tests.
var timeNow = time.Now
