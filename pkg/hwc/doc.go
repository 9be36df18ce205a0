// Package hwc defines the per-frame data model of the composition engine.
//
// # Overview
//
// A display frame is described by three collections:
//
//   - [Layer]: a rectangular surface the display server wants shown. Layers are
//     owned by a [Registry], an arena indexed by [LayerID]. Everything else
//     (planes, composer inputs, binding plans) refers to layers by id.
//   - [Plane]: a hardware compositing channel that scans out one buffer.
//   - [Composer]: a fallback unit that merges several layers into a single
//     output layer.
//
// Planes and composers of one display form a [Catalog]. The catalog's
// [Topology] picks the assignment strategy once, at display init.
//
// # Assignments
//
// Every layer carries an [Assignment], a closed tagged union:
//
//	switch a := l.Assignment; a.Kind() {
//	case hwc.KindUndetermined:
//	case hwc.KindPlane:
//	    t, _ := a.Plane()
//	case hwc.KindComposer:
//	    id, _ := a.Composer()
//	case hwc.KindDiscarded:
//	}
//
// The field is reset to [Undetermined] at the start of every decision pass.
//
// # Frames
//
// A [Frame] bundles the layer list, the catalog resources, the per-frame
// [Flags] and the [DebugOverrides] handed to a strategy's Setup.
package hwc
