package maidr

import (
	"fmt"

	"github.com/matzehuels/maidr/pkg/plot"
	"github.com/matzehuels/maidr/pkg/render"
	"github.com/matzehuels/maidr/pkg/selector"
	"github.com/matzehuels/maidr/pkg/tree"
)

// runs splits rows into consecutive runs of one group, the way polylines
// are drawn.
func runs(rows []render.Row) [][]render.Row {
	var out [][]render.Row
	for start := 0; start < len(rows); {
		end := start + 1
		for end < len(rows) && rows[end].Group == rows[start].Group {
			end++
		}
		out = append(out, rows[start:end])
		start = end
	}
	return out
}

// polylines returns the layer's polylines in the panel when there is
// exactly one per series.
func polylines(in *LayerInput, k Kind, series int) (*tree.Node, []*tree.Node, error) {
	g := in.container(k)
	if g == nil {
		return nil, nil, fmt.Errorf("no %s group %d in panel", k, in.Ordinal+1)
	}
	lines := g.ChildrenOfKind(tree.KindPolyline)
	if len(lines) != series {
		return nil, nil, fmt.Errorf("%s group %s has %d polylines for %d series", k, g.Name, len(lines), series)
	}
	return g, lines, nil
}

func seriesSelectors(in *LayerInput, k Kind) (any, error) {
	n := len(runs(in.Rows))
	g, _, err := polylines(in, k, n)
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		out[i] = selector.NthOfType(g.Name, "polyline", i+1)
	}
	return out, nil
}

// lineProcessor handles lines, one series per category.
type lineProcessor struct{}

func (lineProcessor) Kind() Kind            { return KindLine }
func (lineProcessor) NeedsReordering() bool { return false }

func (lineProcessor) ReorderDataset(_ ReorderEnv, data *plot.Dataset) (*plot.Dataset, error) {
	return data, nil
}

func (lineProcessor) ExtractData(in *LayerInput) (any, error) {
	out := [][]LinePoint{}
	for _, run := range runs(in.Rows) {
		cat := in.category(run[0].Group)
		series := make([]LinePoint, 0, len(run))
		for _, r := range run {
			series = append(series, LinePoint{X: in.xLabel(r), Y: r.Y, Fill: cat})
		}
		out = append(out, series)
	}
	return out, nil
}

func (lineProcessor) GenerateSelectors(in *LayerInput) (any, error) {
	return seriesSelectors(in, KindLine)
}

// smoothProcessor handles fitted curves and densities. Points carry the
// device coordinates of the drawn vertices when the curve is found.
type smoothProcessor struct{}

func (smoothProcessor) Kind() Kind            { return KindSmooth }
func (smoothProcessor) NeedsReordering() bool { return false }

func (smoothProcessor) ReorderDataset(_ ReorderEnv, data *plot.Dataset) (*plot.Dataset, error) {
	return data, nil
}

func (smoothProcessor) ExtractData(in *LayerInput) (any, error) {
	rs := runs(in.Rows)
	_, lines, err := polylines(in, KindSmooth, len(rs))
	if err != nil {
		lines = nil
	}
	out := [][]SmoothPoint{}
	for i, run := range rs {
		var points []tree.Point
		if lines != nil && len(lines[i].Points) == len(run) {
			points = lines[i].Points
		}
		series := make([]SmoothPoint, 0, len(run))
		for j, r := range run {
			p := SmoothPoint{X: r.X, Y: r.Y}
			if points != nil {
				p.SvgX, p.SvgY = points[j].X, points[j].Y
			}
			series = append(series, p)
		}
		out = append(out, series)
	}
	return out, nil
}

func (smoothProcessor) GenerateSelectors(in *LayerInput) (any, error) {
	return seriesSelectors(in, KindSmooth)
}

// pointProcessor handles scatter layers. Points are drawn in data order.
type pointProcessor struct{}

func (pointProcessor) Kind() Kind            { return KindPoint }
func (pointProcessor) NeedsReordering() bool { return false }

func (pointProcessor) ReorderDataset(_ ReorderEnv, data *plot.Dataset) (*plot.Dataset, error) {
	return data, nil
}

func (pointProcessor) ExtractData(in *LayerInput) (any, error) {
	out := make([]ScatterPoint, 0, len(in.Rows))
	for _, r := range in.Rows {
		out = append(out, ScatterPoint{X: in.xLabel(r), Y: in.yLabel(r), Color: in.category(r.Group)})
	}
	return out, nil
}

func (pointProcessor) GenerateSelectors(in *LayerInput) (any, error) {
	g := in.container(KindPoint)
	if g == nil {
		return nil, fmt.Errorf("no point group %d in panel", in.Ordinal+1)
	}
	return []string{selector.Build(g.Name, "circle")}, nil
}
