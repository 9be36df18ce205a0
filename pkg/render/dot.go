package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/matzehuels/hwcomposer/pkg/hwc"
	"github.com/matzehuels/hwcomposer/pkg/plan"
)

// Options configures a diagram.
type Options struct {
	// Title is shown above the graph.
	Title string
	// Detailed adds display frames to layer labels and source z-orders to
	// plane labels.
	Detailed bool
}

var bandColors = map[plan.Band]string{
	plan.BandOverlay:    "lightblue",
	plan.BandVideo:      "palegreen",
	plan.BandVideoAbove: "khaki",
	plan.BandVideoBelow: "darkseagreen",
	plan.BandCursor:     "mistyrose",
}

// ToDOT converts a plan and the layers it was decided for into Graphviz
// DOT source. Layers are listed back to front.
func ToDOT(p *plan.Plan, layers []plan.LayerState, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph plan {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=1.0;\n")
	buf.WriteString("  nodesep=0.25;\n")
	if opts.Title != "" {
		fmt.Fprintf(&buf, "  label=%q;\n  labelloc=t;\n", opts.Title)
	}
	buf.WriteString("\n")

	writeLayers(&buf, layers, opts)
	if p == nil {
		buf.WriteString("}\n")
		return buf.String()
	}
	writeComposers(&buf, p)
	writePlanes(&buf, p, opts)
	buf.WriteString("\n")
	writeEdges(&buf, p)

	buf.WriteString("}\n")
	return buf.String()
}

func layerNode(id hwc.LayerID) string       { return fmt.Sprintf("layer_%d", id) }
func planeNode(id hwc.PlaneID) string       { return fmt.Sprintf("plane_%d", id) }
func composerNode(id hwc.ComposerID) string { return "composer_" + string(id) }

const discardNode = "discarded"

func writeLayers(buf *bytes.Buffer, layers []plan.LayerState, opts Options) {
	buf.WriteString("  subgraph cluster_layers {\n")
	buf.WriteString("    label=\"layers\";\n    style=dashed;\n    rank=same;\n")
	for _, l := range layers {
		label := fmt.Sprintf("layer %d\nz=%d %s", l.ID, l.Z, l.Format)
		if opts.Detailed {
			label += "\n" + l.Frame.String()
		}
		attrs := []string{fmt.Sprintf("label=%q", label)}
		switch {
		case l.Assignment.Kind() == hwc.KindDiscarded:
			attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
		case l.Format.IsVideo():
			attrs = append(attrs, "fillcolor=palegreen")
		}
		if l.Secure {
			attrs = append(attrs, "penwidth=2", "color=firebrick")
		}
		fmt.Fprintf(buf, "    %q [%s];\n", layerNode(l.ID), strings.Join(attrs, ", "))
	}
	buf.WriteString("  }\n")
}

func writeComposers(buf *bytes.Buffer, p *plan.Plan) {
	if p.Job != nil {
		label := fmt.Sprintf("%s\nband %s", p.Job.Composer, p.Band)
		fmt.Fprintf(buf, "  %q [label=%q, shape=component, fillcolor=lavender];\n",
			composerNode(p.Job.Composer), label)
	}
	if len(p.Discarded) > 0 {
		label := "discarded"
		if p.DiscardComposer != "" {
			label = string(p.DiscardComposer) + "\n(discard)"
		}
		fmt.Fprintf(buf, "  %q [label=%q, shape=box, style=\"dashed\"];\n", discardNode, label)
	}
}

func writePlanes(buf *bytes.Buffer, p *plan.Plan, opts Options) {
	buf.WriteString("  subgraph cluster_planes {\n")
	buf.WriteString("    label=\"planes\";\n    style=dashed;\n    rank=same;\n")
	for _, e := range p.Entries {
		label := fmt.Sprintf("plane %d (%s)\nzorder %d %s", e.Plane, e.PlaneType, e.Zorder, e.Band)
		if opts.Detailed {
			label += fmt.Sprintf("\nlayer z=%d", e.LayerZ)
		}
		color := bandColors[e.Band]
		if color == "" {
			color = "white"
		}
		fmt.Fprintf(buf, "    %q [label=%q, fillcolor=%s];\n", planeNode(e.Plane), label, color)
	}
	for _, id := range p.Blank {
		fmt.Fprintf(buf, "    %q [label=%q, style=\"rounded,dashed\", fontcolor=grey];\n",
			planeNode(id), fmt.Sprintf("plane %d\nblank", id))
	}
	buf.WriteString("  }\n")
}

func writeEdges(buf *bytes.Buffer, p *plan.Plan) {
	for _, e := range p.Entries {
		switch e.Source.Kind {
		case plan.SourceLayer:
			fmt.Fprintf(buf, "  %q -> %q;\n", layerNode(e.Source.Layer), planeNode(e.Plane))
		case plan.SourceVideoGroup:
			for _, id := range e.Source.Group {
				fmt.Fprintf(buf, "  %q -> %q [color=darkgreen];\n", layerNode(id), planeNode(e.Plane))
			}
		case plan.SourceComposer:
			fmt.Fprintf(buf, "  %q -> %q [penwidth=2];\n", composerNode(e.Source.Composer), planeNode(e.Plane))
		}
	}
	if p.Job != nil {
		for _, id := range p.Job.Inputs {
			fmt.Fprintf(buf, "  %q -> %q;\n", layerNode(id), composerNode(p.Job.Composer))
		}
		for _, id := range p.Job.Overlays {
			fmt.Fprintf(buf, "  %q -> %q [style=dotted, label=\"clear\"];\n", layerNode(id), composerNode(p.Job.Composer))
		}
	}
	for _, id := range p.Discarded {
		fmt.Fprintf(buf, "  %q -> %q [style=dashed, color=grey];\n", layerNode(id), discardNode)
	}
}
