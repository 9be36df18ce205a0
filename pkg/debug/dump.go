package debug

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/hwcomposer/pkg/hwc"
	"github.com/matzehuels/hwcomposer/pkg/plan"
)

// DumpOptions controls a dump.
type DumpOptions struct {
	// Title heads the dump, usually the strategy and display name.
	Title string
	// Detail adds crop and frame columns to the layer table.
	Detail bool
}

// Dump writes the layer table, the plane table, the composer job and the
// composed band of one decision pass. A nil plan dumps only the layers.
func Dump(w io.Writer, reg *hwc.Registry, p *plan.Plan, opts DumpOptions) error {
	var b strings.Builder
	if opts.Title != "" {
		b.WriteString(opts.Title)
		b.WriteString("\n")
	}

	if reg != nil {
		b.WriteString(layerTable(reg, opts.Detail))
		b.WriteString("\n")
	}
	if p == nil {
		b.WriteString("no plan\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString(planeTable(p))
	b.WriteString("\n")

	fmt.Fprintf(&b, "topology: %s  band: %s\n", p.Topology, p.Band)
	if p.Job != nil {
		fmt.Fprintf(&b, "composer %s: inputs %s", p.Job.Composer, joinIDs(p.Job.Inputs))
		if len(p.Job.Overlays) > 0 {
			fmt.Fprintf(&b, " overlays %s", joinIDs(p.Job.Overlays))
		}
		b.WriteString("\n")
	}
	if len(p.Discarded) > 0 {
		fmt.Fprintf(&b, "discarded: %s", joinIDs(p.Discarded))
		if p.DiscardComposer != "" {
			fmt.Fprintf(&b, " (via %s)", p.DiscardComposer)
		}
		b.WriteString("\n")
	}
	if len(p.Blank) > 0 {
		ids := make([]string, len(p.Blank))
		for i, id := range p.Blank {
			ids[i] = strconv.FormatUint(uint64(id), 10)
		}
		fmt.Fprintf(&b, "blank planes: %s\n", strings.Join(ids, ", "))
	}
	if d := p.Display; d != nil {
		fmt.Fprintf(&b, "reference plane: %d offset: (%d, %d) osd channels: %d\n",
			d.Reference, d.OffsetX, d.OffsetY, d.OsdChannels)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func layerTable(reg *hwc.Registry, detail bool) string {
	headers := []string{"Layer", "Z", "Format", "Assignment", "Flags"}
	if detail {
		headers = append(headers, "Crop", "Frame", "Alpha")
	}

	rows := make([][]string, 0, reg.Len())
	for _, l := range reg.Ordered() {
		row := []string{
			strconv.FormatUint(uint64(l.ID), 10),
			strconv.Itoa(l.Z),
			l.Format.String(),
			l.Assignment.String(),
			layerFlags(l),
		}
		if detail {
			row = append(row, l.Crop.String(), l.Frame.String(), strconv.FormatFloat(float64(l.Alpha), 'f', 2, 32))
		}
		rows = append(rows, row)
	}
	return newTable(headers, rows)
}

func layerFlags(l *hwc.Layer) string {
	var f []string
	if l.ForceClient {
		f = append(f, "client")
	}
	if l.Secure {
		f = append(f, "secure")
	}
	if l.Compressed {
		f = append(f, "afbc")
	}
	if l.Transform != 0 {
		f = append(f, "transform")
	}
	if l.ClearRequested {
		f = append(f, "clear")
	}
	return strings.Join(f, ",")
}

func planeTable(p *plan.Plan) string {
	rows := make([][]string, 0, len(p.Entries))
	for _, e := range p.Entries {
		src := fmt.Sprintf("layer %d", e.Source.Layer)
		switch e.Source.Kind {
		case plan.SourceComposer:
			src = fmt.Sprintf("%s (top %d)", e.Source.Composer, e.Source.Layer)
		case plan.SourceVideoGroup:
			src = "group " + joinIDs(e.Source.Group)
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(e.Plane), 10),
			e.PlaneType.String(),
			src,
			strconv.Itoa(e.Zorder),
			e.Band.String(),
		})
	}
	return newTable([]string{"Plane", "Type", "Source", "Zorder", "Band"}, rows)
}

func newTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	return t.Render()
}

func joinIDs(ids []hwc.LayerID) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = strconv.FormatUint(uint64(id), 10)
	}
	return "[" + strings.Join(s, " ") + "]"
}
