package plan

import "github.com/matzehuels/hwcomposer/pkg/hwc"

// Composition is how the display server sees a layer being handled.
type Composition string

const (
	CompositionClient Composition = "client" // the display server renders it
	CompositionDevice Composition = "device" // the hardware handles it
)

// Change is a layer whose final composition differs from the request.
type Change struct {
	Layer     hwc.LayerID `json:"layer"`
	Requested Composition `json:"requested"`
	Final     Composition `json:"final"`
}

// Changes lists the layers the display server has to re-route after the
// pass: device layers that ended up in the client composer and client
// layers the hardware took over. Layers are visited back to front.
func (p *Plan) Changes(reg *hwc.Registry) []Change {
	var out []Change
	for _, l := range reg.Ordered() {
		requested := CompositionDevice
		if l.ForceClient || l.Format == hwc.FormatClientRendered {
			requested = CompositionClient
		}
		final := CompositionDevice
		if id, ok := l.Assignment.Composer(); ok && id != "" && id == p.ClientComposer {
			final = CompositionClient
		}
		if requested != final {
			out = append(out, Change{Layer: l.ID, Requested: requested, Final: final})
		}
	}
	return out
}
