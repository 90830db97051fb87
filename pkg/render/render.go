package render

import (
	"context"

	"github.com/matzehuels/maidr/pkg/plot"
	"github.com/matzehuels/maidr/pkg/tree"
)

// Renderer draws chart specifications.
type Renderer interface {
	// Build computes layer data without drawing.
	Build(ctx context.Context, spec *plot.Spec) (*Built, error)
	// Render draws the chart.
	Render(ctx context.Context, spec *plot.Spec) (*Output, error)
}

// Output is the result of a render.
type Output struct {
	Tree   *tree.Tree
	Export []byte // SVG document
	Built  *Built
}

// Built is the computed data of every layer, indexed by leaf plot (see
// [plot.Spec.Leaves]) and layer.
type Built struct {
	Plots []PlotData
}

// Layer returns the built data for a leaf plot's layer, or nil.
func (b *Built) Layer(plotIndex, layerIndex int) *LayerData {
	if b == nil || plotIndex < 0 || plotIndex >= len(b.Plots) {
		return nil
	}
	layers := b.Plots[plotIndex].Layers
	if layerIndex < 0 || layerIndex >= len(layers) {
		return nil
	}
	return &layers[layerIndex]
}

// PlotData holds the layers of one leaf plot.
type PlotData struct {
	// FacetRows and FacetCols are the facet levels, empty when the plot
	// is not faceted.
	FacetRows []string
	FacetCols []string
	Layers    []LayerData
}

// LayerData is the computed data of one layer, in draw order.
type LayerData struct {
	Rows []Row
	// XLevels and YLevels are the discrete axis categories in code order,
	// empty for continuous axes.
	XLevels []string
	YLevels []string
}

// Panel returns the rows drawn in the given 1-based facet panel.
func (l *LayerData) Panel(row, col int) []Row {
	var out []Row
	for _, r := range l.Rows {
		if r.PanelRow == row && r.PanelCol == col {
			out = append(out, r)
		}
	}
	return out
}

// Row is one drawn element of a layer: a bar, a bin, a box, a point, or
// a vertex of a line.
type Row struct {
	PanelRow, PanelCol int

	// X and Y are data coordinates. On a discrete axis they hold the
	// 1-based category code.
	X, Y                   float64
	XMin, XMax, YMin, YMax float64

	// Group is the 1-based index of the row's category level, or 1 when
	// the layer has no category aesthetic.
	Group int
	// Fill is the rendered color.
	Fill string

	// Box statistics.
	Lower, Middle, Upper    float64
	WhiskerLow, WhiskerHigh float64
	Outliers                []float64
}
