// Package maidr turns a chart specification into an accessibility payload:
// for every layer of every panel, the data a screen reader navigates and
// the CSS selectors of the rendered elements that data belongs to.
//
// # Pipeline
//
// [Orchestrator.Run] processes a spec in four steps:
//
//  1. Classify each layer into a [Kind] and create its [Processor].
//  2. Let processors that need it reorder their dataset so the renderer
//     draws elements in the same order the payload lists them.
//  3. Render the chart exactly once.
//  4. Discover panels in the rendered tree and, per panel and layer,
//     extract data and generate selectors.
//
// A layer that cannot be processed degrades to an "unknown" layer with
// empty data and selectors; the rest of the chart is unaffected. Only a
// renderer failure aborts a run.
//
// # Ordering
//
// The payload order and the drawing order agree: bars ascend by x; stacked
// bars list groups top to bottom and the rectangles of each x are drawn top
// to bottom; dodged bars list groups in level order and each x is drawn in
// reverse level order. Reordering never touches the caller's datasets.
package maidr
