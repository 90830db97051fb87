// Package pkg holds the libraries behind maidr, which renders charts and
// attaches a navigable description of their data to the rendered SVG.
//
// # Overview
//
// The data flow of a run:
//
//	chart spec (TOML, JSON, call log)
//	         ↓
//	    [plot] / [calllog] (decode, load datasets)
//	         ↓
//	    [maidr] (classify layers, reorder, render once)
//	         ↓
//	    [render/svg] → [tree] (named element tree)
//	         ↓
//	    [maidr] + [selector] (extract data, address elements)
//	         ↓
//	    [document] (payload JSON, SVG, HTML page)
//
// [pipeline] wraps the engine with caching ([cache]) and run recording
// ([store]); the CLI and the HTTP API both go through it.
//
// # Quick Start
//
//	spec, err := plot.LoadFile("tips.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	runner := pipeline.NewRunner(nil, nil, nil)
//	result, err := runner.Execute(ctx, pipeline.Options{Spec: spec})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("tips.html", result.Artifacts[pipeline.FormatHTML], 0o644)
package pkg
