// Package render defines the boundary between the engine and whatever
// draws the chart.
//
// A [Renderer] exposes two operations. [Renderer.Build] computes the
// statistical layer data a plot would draw (bin counts, stacked bounds,
// box statistics, fill colors) without producing any graphics; the engine
// uses it to probe stacking order before committing to a render.
// [Renderer.Render] draws the chart once and returns the rendered node
// [tree.Tree], the SVG export, and the same built data.
//
// The built-in implementation lives in the [svg] subpackage.
//
// [svg]: github.com/matzehuels/maidr/pkg/render/svg
package render
