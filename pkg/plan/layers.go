package plan

import "github.com/matzehuels/hwcomposer/pkg/hwc"

// LayerState is the outcome of a pass for one layer, detached from the
// registry so it can be stored alongside the plan.
type LayerState struct {
	ID             hwc.LayerID     `json:"id"`
	Z              int             `json:"z"`
	Format         hwc.FormatClass `json:"format"`
	Frame          hwc.Rect        `json:"frame"`
	Assignment     hwc.Assignment  `json:"assignment"`
	ClearRequested bool            `json:"clear_requested,omitempty"`
	Secure         bool            `json:"secure,omitempty"`
}

// Layers captures the layers of reg back to front.
func Layers(reg *hwc.Registry) []LayerState {
	out := make([]LayerState, 0, reg.Len())
	for _, l := range reg.Ordered() {
		out = append(out, LayerState{
			ID:             l.ID,
			Z:              l.Z,
			Format:         l.Format,
			Frame:          l.Frame,
			Assignment:     l.Assignment,
			ClearRequested: l.ClearRequested,
			Secure:         l.Secure,
		})
	}
	return out
}
