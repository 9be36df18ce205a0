package cache

import "fmt"

// Keyer builds cache keys.
type Keyer interface {
	// ReportKey addresses the report of a scenario, identified by the hash
	// of its canonical encoding.
	ReportKey(scenarioHash string, opts ReportKeyOpts) string

	// RenderKey addresses one rendered frame of a report.
	RenderKey(reportHash string, opts RenderKeyOpts) string
}

// ReportKeyOpts are the run options that change a report.
type ReportKeyOpts struct {
	Topology string `json:"topology,omitempty"`
	Commit   bool   `json:"commit"`
}

// RenderKeyOpts select one rendering.
type RenderKeyOpts struct {
	Frame  int    `json:"frame"`
	Format string `json:"format"`
}

// DefaultKeyer is the keyer used when none is configured.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a DefaultKeyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// ReportKey implements Keyer.
func (DefaultKeyer) ReportKey(scenarioHash string, opts ReportKeyOpts) string {
	return hashKey("report", scenarioHash, opts)
}

// RenderKey implements Keyer.
func (DefaultKeyer) RenderKey(reportHash string, opts RenderKeyOpts) string {
	return fmt.Sprintf("render:%s:%d.%s", reportHash, opts.Frame, opts.Format)
}
