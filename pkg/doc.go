// Package pkg provides the libraries of hwcomposer, a hardware composer
// decision engine for display compositors.
//
// # Overview
//
// Every frame, a display server hands the engine an ordered set of layers.
// The engine decides, per layer, whether a hardware plane scans it out
// directly or a composer merges it with its neighbours, then binds the
// result to the planes. The pkg directory is organized into three areas:
//
//  1. Domain: [hwc] (layers, planes, composers), [strategy] (the decision
//     passes), [plan] (the frozen result), [commit] (binding a plan)
//  2. Simulation: [sim] (software planes and composers), [scenario]
//     (frame-by-frame inputs), [debug] (overrides and dumps)
//  3. Infrastructure: [pipeline] (orchestration), [cache], [store],
//     [render], [observability], [errors]
//
// # Architecture
//
// The data flow of one frame:
//
//	scenario frame (layers, flags, debug commands)
//	         ↓
//	    [strategy] Setup + Decide (assign every layer)
//	         ↓
//	    [plan] Plan (entries, composer job, blank planes)
//	         ↓
//	    [commit] Binder (program planes, run composers)
//	         ↓
//	    [pipeline] Report → text, JSON, DOT/SVG/PNG
//
// # Quick Start
//
//	sc, err := scenario.Load("examples/video-overlay.toml")
//	if err != nil {
//	    return err
//	}
//	runner := pipeline.NewRunner(nil, nil, nil, logger)
//	res, err := runner.Execute(ctx, sc, pipeline.Options{})
//	if err != nil {
//	    return err
//	}
//	for _, f := range res.Report.Frames {
//	    fmt.Print(f.Dump)
//	}
//
// Driving a strategy directly, without the pipeline:
//
//	d, _ := sim.NewDisplay(sim.DisplayConfig{Name: "hdmi", Planes: planes, Composers: composers})
//	cat, _ := d.Catalog()
//	s, _ := strategy.New(cat, strategy.Options{Display: d.Name})
//	if err := s.Setup(hwc.Frame{Layers: layers, Crtc: d.Crtc}); err != nil {
//	    return err
//	}
//	if err := s.Decide(); err != nil {
//	    return err
//	}
//	report, err := s.Commit(ctx)
//
// # Error Handling
//
// Fallible operations return *[errors.Error] values carrying a code:
//
//	if errors.Is(err, errors.ErrCodeInvalidSetup) {
//	    // the frame or the hardware description is malformed
//	}
//
// A layer the hardware cannot show is not an error: it is composed or
// discarded and the frame goes on.
package pkg
