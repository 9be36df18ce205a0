// Package render draws binding plans as Graphviz diagrams.
//
// # Overview
//
// A frame's plan becomes a left-to-right graph: layers on the left, the
// composers that absorb them in the middle, and the planes that scan the
// result out on the right. Discarded layers end in a dashed sink, blank
// planes are greyed out, and planes are coloured by presentation band so
// the overlay, video-below and video-above ranges of multi-channel plans
// stand apart.
//
// # Usage
//
//	dot := render.ToDOT(frame.Plan, frame.Layers, render.Options{Title: "frame 3"})
//	svg, err := render.RenderSVG(ctx, dot)
//
// PNG output goes through SVG:
//
//	png, err := render.ToPNG(ctx, svg, 2.0)
//
// # Dependencies
//
// SVG rendering uses [github.com/goccy/go-graphviz], which runs Graphviz
// in-process through WebAssembly; no system Graphviz is needed. PNG
// conversion shells out to rsvg-convert from librsvg.
package render
