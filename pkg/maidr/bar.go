package maidr

import (
	"fmt"
	"sort"

	"github.com/matzehuels/maidr/pkg/plot"
	"github.com/matzehuels/maidr/pkg/render"
	"github.com/matzehuels/maidr/pkg/selector"
)

// levelRank returns a function ranking a column's rows by level index.
// Missing values rank last.
func levelRank(d *plot.Dataset, col string) func(row int) int {
	idx := d.LevelIndex(col)
	return func(row int) int {
		if k, ok := idx[d.Value(col, row)]; ok {
			return k
		}
		return len(idx)
	}
}

// pinned returns a copy of d sorted by less, with the levels of cols pinned
// to what they were before sorting.
func pinned(d *plot.Dataset, less func(a, b int) bool, cols ...string) (*plot.Dataset, error) {
	out := d.SortStable(less)
	for _, col := range cols {
		if col == "" {
			continue
		}
		if err := out.PinLevels(col, d.Levels(col)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// rectSelector addresses every rect of the layer's group.
func rectSelector(in *LayerInput, k Kind) (any, error) {
	g := in.container(k)
	if g == nil {
		return nil, fmt.Errorf("no %s group %d in panel", k, in.Ordinal+1)
	}
	if len(g.Children) == 0 {
		return nil, fmt.Errorf("%s group %s is empty", k, g.Name)
	}
	return []string{selector.Build(g.Name, "rect")}, nil
}

// sortByX orders rows by x, keeping draw order among equal x.
func sortByX(rows []render.Row) []render.Row {
	out := append([]render.Row(nil), rows...)
	sort.SliceStable(out, func(a, b int) bool { return out[a].X < out[b].X })
	return out
}

// barProcessor handles simple bars. Rows are drawn in ascending x order.
type barProcessor struct{}

func (barProcessor) Kind() Kind            { return KindBar }
func (barProcessor) NeedsReordering() bool { return true }

func (barProcessor) ReorderDataset(env ReorderEnv, data *plot.Dataset) (*plot.Dataset, error) {
	x := env.layer().Aes.X
	xRank := levelRank(data, x)
	return pinned(data, func(a, b int) bool { return xRank(a) < xRank(b) }, x)
}

func (barProcessor) ExtractData(in *LayerInput) (any, error) {
	rows := sortByX(in.Rows)
	out := make([]BarPoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, BarPoint{X: in.xLabel(r), Y: r.Y})
	}
	return out, nil
}

func (barProcessor) GenerateSelectors(in *LayerInput) (any, error) {
	return rectSelector(in, KindBar)
}

// stackedProcessor handles stacked bars. Groups are listed top to bottom
// and each x's rects are drawn top to bottom.
type stackedProcessor struct{}

func (stackedProcessor) Kind() Kind            { return KindStackedBar }
func (stackedProcessor) NeedsReordering() bool { return true }

// ReorderDataset probes the renderer for the stacking order, then sorts
// rows by x and, within an x, from the top of the stack down.
func (stackedProcessor) ReorderDataset(env ReorderEnv, data *plot.Dataset) (*plot.Dataset, error) {
	l := env.layer()
	built, err := env.probe(data)
	if err != nil {
		return nil, fmt.Errorf("probe stacking order: %w", err)
	}
	top := plot.IndexOf(stackOrder(built.Rows, data.Levels(l.Aes.Fill)))
	xRank := levelRank(data, l.Aes.X)
	fillRank := func(row int) int {
		if k, ok := top[data.Value(l.Aes.Fill, row)]; ok {
			return k
		}
		return len(top)
	}
	return pinned(data, func(a, b int) bool {
		if xa, xb := xRank(a), xRank(b); xa != xb {
			return xa < xb
		}
		return fillRank(a) < fillRank(b)
	}, l.Aes.X, l.Aes.Fill)
}

func (stackedProcessor) ExtractData(in *LayerInput) (any, error) {
	levels := in.Data.Levels(in.Layer.Aes.Fill)
	idx := plot.IndexOf(levels)
	var out [][]BarPoint
	for _, cat := range stackOrder(in.Built.Rows, levels) {
		group := barGroup(in, idx[cat]+1, cat)
		if len(group) > 0 {
			out = append(out, group)
		}
	}
	if out == nil {
		out = [][]BarPoint{}
	}
	return out, nil
}

func (stackedProcessor) GenerateSelectors(in *LayerInput) (any, error) {
	return rectSelector(in, KindStackedBar)
}

// barGroup returns the panel's bars of one fill group in x order.
func barGroup(in *LayerInput, group int, cat string) []BarPoint {
	var out []BarPoint
	for _, r := range sortByX(in.Rows) {
		if r.Group == group {
			out = append(out, BarPoint{X: in.xLabel(r), Y: r.Y, Fill: cat})
		}
	}
	return out
}

// dodgedProcessor handles dodged bars. Groups are listed in level order;
// each x's rects are drawn in reverse level order.
type dodgedProcessor struct{}

func (dodgedProcessor) Kind() Kind            { return KindDodgedBar }
func (dodgedProcessor) NeedsReordering() bool { return true }

func (dodgedProcessor) ReorderDataset(env ReorderEnv, data *plot.Dataset) (*plot.Dataset, error) {
	l := env.layer()
	xRank, fillRank := levelRank(data, l.Aes.X), levelRank(data, l.Aes.Fill)
	return pinned(data, func(a, b int) bool {
		if xa, xb := xRank(a), xRank(b); xa != xb {
			return xa < xb
		}
		return fillRank(a) > fillRank(b)
	}, l.Aes.X, l.Aes.Fill)
}

func (dodgedProcessor) ExtractData(in *LayerInput) (any, error) {
	out := [][]BarPoint{}
	for k, cat := range in.Data.Levels(in.Layer.Aes.Fill) {
		if group := barGroup(in, k+1, cat); len(group) > 0 {
			out = append(out, group)
		}
	}
	return out, nil
}

func (dodgedProcessor) GenerateSelectors(in *LayerInput) (any, error) {
	return rectSelector(in, KindDodgedBar)
}

// histogramProcessor handles binned layers. Bins are drawn in ascending
// order already.
type histogramProcessor struct{}

func (histogramProcessor) Kind() Kind            { return KindHistogram }
func (histogramProcessor) NeedsReordering() bool { return false }

func (histogramProcessor) ReorderDataset(_ ReorderEnv, data *plot.Dataset) (*plot.Dataset, error) {
	return data, nil
}

func (histogramProcessor) ExtractData(in *LayerInput) (any, error) {
	out := make([]HistogramPoint, 0, len(in.Rows))
	for _, r := range in.Rows {
		out = append(out, HistogramPoint{
			X: r.X, Y: r.Y,
			XMin: r.XMin, XMax: r.XMax,
			YMin: r.YMin, YMax: r.YMax,
		})
	}
	return out, nil
}

func (histogramProcessor) GenerateSelectors(in *LayerInput) (any, error) {
	return rectSelector(in, KindHistogram)
}
