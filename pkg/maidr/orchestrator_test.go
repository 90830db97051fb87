package maidr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/maidr/pkg/errors"
	"github.com/matzehuels/maidr/pkg/plot"
	"github.com/matzehuels/maidr/pkg/render"
	"github.com/matzehuels/maidr/pkg/render/svg"
	"github.com/matzehuels/maidr/pkg/selector"
	"github.com/matzehuels/maidr/pkg/tree"
)

func dataset(t *testing.T, header []string, rows ...[]string) *plot.Dataset {
	t.Helper()
	d, err := plot.NewDataset("test", header, rows)
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	return d
}

func newTestOrchestrator(r render.Renderer) *Orchestrator {
	o := NewOrchestrator(r, log.NewWithOptions(io.Discard, log.Options{}))
	n := 0
	o.NewID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return o
}

func run(t *testing.T, spec *plot.Spec) *Result {
	t.Helper()
	res, err := newTestOrchestrator(svg.New()).Run(context.Background(), spec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := Verify(res); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	return res
}

func firstLayer(t *testing.T, res *Result) *Layer {
	t.Helper()
	layers := res.Payload.Layers()
	if len(layers) == 0 {
		t.Fatal("payload has no layers")
	}
	return layers[0]
}

// resolved returns the nodes a layer's selectors address, in order.
func resolved(t *testing.T, res *Result, l *Layer) []*tree.Node {
	t.Helper()
	var out []*tree.Node
	for _, sel := range l.SelectorList() {
		nodes, err := selector.Resolve(res.Tree, sel)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", sel, err)
		}
		out = append(out, nodes...)
	}
	return out
}

func TestRunSimpleBarsAscend(t *testing.T) {
	d := dataset(t, []string{"day", "total"},
		[]string{"Thu", "62"},
		[]string{"Fri", "19"},
		[]string{"Sat", "87"},
		[]string{"Sun", "76"},
	)
	spec := &plot.Spec{Data: d, Layers: []plot.Layer{{Geom: "bar", Aes: plot.Aes{X: "day", Y: "total"}}}}
	res := run(t, spec)

	l := firstLayer(t, res)
	if l.Type != "bar" {
		t.Fatalf("Type = %q, want bar", l.Type)
	}
	data := l.Data.([]BarPoint)
	var xs []any
	for _, p := range data {
		xs = append(xs, p.X)
	}
	if want := []any{"Fri", "Sat", "Sun", "Thu"}; !reflect.DeepEqual(xs, want) {
		t.Errorf("x = %v, want %v", xs, want)
	}

	rects := resolved(t, res, l)
	if len(rects) != len(data) {
		t.Fatalf("rects = %d, want %d", len(rects), len(data))
	}
	for i := 1; i < len(rects); i++ {
		if rects[i].Bounds.X <= rects[i-1].Bounds.X {
			t.Errorf("rect %d is left of rect %d", i, i-1)
		}
	}

	if got := d.Values("day")[0]; got != "Thu" {
		t.Errorf("caller dataset reordered: first day = %q", got)
	}
}

func stackedRows() [][]string {
	return [][]string{
		{"a", "A", "1"}, {"a", "B", "2"}, {"a", "C", "3"},
		{"b", "A", "4"}, {"b", "B", "5"}, {"b", "C", "6"},
		{"c", "A", "7"}, {"c", "B", "8"}, {"c", "C", "9"},
	}
}

func barSpec(t *testing.T, position string, rows [][]string) *plot.Spec {
	d := dataset(t, []string{"x", "f", "y"}, rows...)
	return &plot.Spec{Data: d, Layers: []plot.Layer{{
		Geom: "bar", Stat: "identity", Position: position,
		Aes: plot.Aes{X: "x", Y: "y", Fill: "f"},
	}}}
}

func permutations(rows [][]string) [][][]string {
	n := len(rows)
	reversed := make([][]string, n)
	rotated := make([][]string, n)
	interleaved := make([][]string, 0, n)
	for i := range rows {
		reversed[i] = rows[n-1-i]
		rotated[i] = rows[(i+4)%n]
	}
	for i := 0; i < n; i += 2 {
		interleaved = append(interleaved, rows[i])
	}
	for i := 1; i < n; i += 2 {
		interleaved = append(interleaved, rows[i])
	}
	return [][][]string{rows, reversed, rotated, interleaved}
}

// fillsOf returns the category of each group of a grouped bar layer.
func fillsOf(groups [][]BarPoint) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g[0].Fill)
	}
	return out
}

// flatten lists grouped bars x-major: every group's bar at the first x,
// then at the second, and so on.
func flatten(groups [][]BarPoint) []BarPoint {
	var out []BarPoint
	for i := 0; ; i++ {
		added := false
		for _, g := range groups {
			if i < len(g) {
				out = append(out, g[i])
				added = true
			}
		}
		if !added {
			return out
		}
	}
}

func paletteIndex(fill string) int {
	for i, c := range svg.DefaultPalette {
		if c == fill {
			return i
		}
	}
	return -1
}

func TestRunStackedOrderIsStable(t *testing.T) {
	var first any
	for i, rows := range permutations(stackedRows()) {
		res := run(t, barSpec(t, "stack", rows))
		l := firstLayer(t, res)
		if l.Type != "stacked_bar" {
			t.Fatalf("Type = %q, want stacked_bar", l.Type)
		}
		groups := l.Data.([][]BarPoint)
		if got, want := fillsOf(groups), []string{"A", "B", "C"}; !reflect.DeepEqual(got, want) {
			t.Errorf("permutation %d: groups = %v, want %v (top to bottom)", i, got, want)
		}
		if first == nil {
			first = l.Data
		} else if !reflect.DeepEqual(first, l.Data) {
			t.Errorf("permutation %d: data differs from the first permutation", i)
		}

		// The rects are drawn in the x-major order of the groups.
		rects := resolved(t, res, l)
		flat := flatten(groups)
		if len(rects) != len(flat) {
			t.Fatalf("rects = %d, want %d", len(rects), len(flat))
		}
		levels := map[string]int{"A": 0, "B": 1, "C": 2}
		for k, r := range rects {
			if got, want := paletteIndex(r.Fill), levels[flat[k].Fill]; got != want {
				t.Errorf("permutation %d: rect %d has palette color %d, want %d", i, k, got, want)
			}
			if k > 0 && r.Bounds.X < rects[k-1].Bounds.X-0.5 {
				t.Errorf("permutation %d: rect %d steps back along x", i, k)
			}
		}
		// Within an x, rects go from the top of the stack down.
		for k := 1; k < 3; k++ {
			if rects[k].Bounds.Y < rects[k-1].Bounds.Y {
				t.Errorf("permutation %d: rect %d drawn above rect %d", i, k, k-1)
			}
		}
	}
}

func TestRunStackedFollowsPinnedLevels(t *testing.T) {
	spec := barSpec(t, "stack", stackedRows())
	if err := spec.Data.PinLevels("f", []string{"B", "A", "C"}); err != nil {
		t.Fatal(err)
	}
	res := run(t, spec)
	groups := firstLayer(t, res).Data.([][]BarPoint)
	if got, want := fillsOf(groups), []string{"B", "A", "C"}; !reflect.DeepEqual(got, want) {
		t.Errorf("groups = %v, want %v", got, want)
	}
}

func TestRunDodgedAlternates(t *testing.T) {
	rows := [][]string{
		{"a", "A", "1"}, {"a", "B", "2"},
		{"b", "A", "3"}, {"b", "B", "4"},
		{"c", "A", "5"}, {"c", "B", "6"},
	}
	for i, perm := range permutations(rows) {
		res := run(t, barSpec(t, "dodge", perm))
		l := firstLayer(t, res)
		if l.Type != "dodged_bar" {
			t.Fatalf("Type = %q, want dodged_bar", l.Type)
		}
		groups := l.Data.([][]BarPoint)
		if got, want := fillsOf(groups), []string{"A", "B"}; !reflect.DeepEqual(got, want) {
			t.Errorf("permutation %d: groups = %v, want %v", i, got, want)
		}
		rects := resolved(t, res, l)
		if len(rects) != 6 {
			t.Fatalf("rects = %d, want 6", len(rects))
		}
		for k, r := range rects {
			// Each x is drawn B then A.
			want := 1 - k%2
			if got := paletteIndex(r.Fill); got != want {
				t.Errorf("permutation %d: rect %d has palette color %d, want %d", i, k, got, want)
			}
		}
	}
}

func TestRunStackWithoutFillDegrades(t *testing.T) {
	d := dataset(t, []string{"x", "y"}, []string{"a", "1"}, []string{"b", "2"})
	spec := &plot.Spec{Data: d, Layers: []plot.Layer{
		{Geom: "bar", Position: "stack", Aes: plot.Aes{X: "x", Y: "y"}},
		{Geom: "point", Aes: plot.Aes{X: "x", Y: "y"}},
	}}
	res := run(t, spec)
	layers := res.Payload.Layers()
	if layers[0].Type != "unknown" {
		t.Errorf("layer 1 type = %q, want unknown", layers[0].Type)
	}
	if n := pointCount(layers[0].Data); n != 0 {
		t.Errorf("degraded layer has %d points", n)
	}
	if layers[1].Type != "point" || len(layers[1].SelectorList()) != 1 {
		t.Errorf("layer 2 = %q with %d selectors, want point with 1", layers[1].Type, len(layers[1].SelectorList()))
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Code != errors.ErrCodeMissingBinding {
		t.Errorf("warnings = %v, want one %s", res.Warnings, errors.ErrCodeMissingBinding)
	}
	if res.Stats.Degraded != 1 {
		t.Errorf("Stats.Degraded = %d, want 1", res.Stats.Degraded)
	}
}

func TestRunStatOutsideGeomFamily(t *testing.T) {
	d := dataset(t, []string{"x", "v"},
		[]string{"a", "1"}, []string{"b", "2"}, []string{"c", "3"},
		[]string{"a", "4"}, []string{"b", "6"}, []string{"c", "8"},
	)
	spec := &plot.Spec{Data: d, Layers: []plot.Layer{
		{Geom: "line", Stat: "bin", Bins: 4, Aes: plot.Aes{X: "v"}},
		{Geom: "bar", Aes: plot.Aes{X: "x"}},
	}}
	res := run(t, spec)
	if len(res.Warnings) != 0 {
		t.Fatalf("warnings = %v, want none", res.Warnings)
	}
	layers := res.Payload.Layers()
	if layers[0].Type != "line" || layers[1].Type != "bar" {
		t.Fatalf("types = %q, %q, want line, bar", layers[0].Type, layers[1].Type)
	}

	tests := []struct {
		layer int
		kind  tree.Kind
		count int
	}{
		{0, tree.KindPolyline, 1},
		{1, tree.KindRect, 3},
	}
	seen := map[*tree.Node]int{}
	for _, tt := range tests {
		nodes := resolved(t, res, layers[tt.layer])
		if len(nodes) != tt.count {
			t.Errorf("layer %d addresses %d nodes, want %d", tt.layer+1, len(nodes), tt.count)
		}
		for _, n := range nodes {
			if n.Kind != tt.kind {
				t.Errorf("layer %d addresses %s %s, want %s", tt.layer+1, n.Kind, n.Name, tt.kind)
			}
			if prev, ok := seen[n]; ok {
				t.Errorf("layers %d and %d both address %s", prev+1, tt.layer+1, n.Name)
			}
			seen[n] = tt.layer
		}
	}
}

func TestRunEmptyDataset(t *testing.T) {
	d := dataset(t, []string{"x", "y"})
	spec := &plot.Spec{Data: d, Layers: []plot.Layer{{Geom: "line", Aes: plot.Aes{X: "x", Y: "y"}}}}
	res := run(t, spec)
	l := firstLayer(t, res)
	if l.Type != "line" {
		t.Errorf("Type = %q, want line", l.Type)
	}
	b, err := json.Marshal(l)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"data":[]`) || !strings.Contains(string(b), `"selectors":[]`) {
		t.Errorf("layer JSON = %s, want empty data and selectors", b)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", res.Warnings)
	}
}

func TestRunLinesSelectEachSeries(t *testing.T) {
	d := dataset(t, []string{"t", "v", "s"},
		[]string{"1", "3", "up"},
		[]string{"1", "9", "down"},
		[]string{"2", "5", "up"},
		[]string{"2", "7", "down"},
		[]string{"3", "8", "up"},
		[]string{"3", "4", "down"},
	)
	spec := &plot.Spec{Data: d, Layers: []plot.Layer{{Geom: "line", Aes: plot.Aes{X: "t", Y: "v", Color: "s"}}}}
	res := run(t, spec)
	l := firstLayer(t, res)
	series := l.Data.([][]LinePoint)
	if len(series) != 2 {
		t.Fatalf("series = %d, want 2", len(series))
	}
	if series[0][0].Fill != "down" || series[1][0].Fill != "up" {
		t.Errorf("series fills = %q, %q, want down, up", series[0][0].Fill, series[1][0].Fill)
	}
	sels := l.SelectorList()
	if len(sels) != 2 || !strings.HasSuffix(sels[1], " > polyline:nth-of-type(2)") {
		t.Errorf("selectors = %v", sels)
	}
	lines := resolved(t, res, l)
	for i, n := range lines {
		if len(n.Points) != len(series[i]) {
			t.Errorf("polyline %d has %d points, want %d", i, len(n.Points), len(series[i]))
		}
	}
}

func TestRunLineAndSmoothShareGroups(t *testing.T) {
	d := dataset(t, []string{"x", "y"},
		[]string{"1", "2"}, []string{"2", "4"}, []string{"3", "5"}, []string{"4", "9"},
	)
	spec := &plot.Spec{Data: d, Layers: []plot.Layer{
		{Geom: "line", Aes: plot.Aes{X: "x", Y: "y"}},
		{Geom: "smooth", Stat: "smooth", Aes: plot.Aes{X: "x", Y: "y"}},
	}}
	res := run(t, spec)
	layers := res.Payload.Layers()
	if layers[1].Type != "smooth" {
		t.Fatalf("layer 2 type = %q, want smooth", layers[1].Type)
	}
	if layers[0].SelectorList()[0] == layers[1].SelectorList()[0] {
		t.Errorf("line and smooth share selector %s", layers[0].SelectorList()[0])
	}
	curve := layers[1].Data.([][]SmoothPoint)[0]
	line := resolved(t, res, layers[1])[0]
	if len(curve) != len(line.Points) {
		t.Fatalf("curve has %d points, polyline %d", len(curve), len(line.Points))
	}
	for i, p := range curve {
		if p.SvgX != line.Points[i].X || p.SvgY != line.Points[i].Y {
			t.Errorf("point %d svg = (%v, %v), want (%v, %v)", i, p.SvgX, p.SvgY, line.Points[i].X, line.Points[i].Y)
		}
	}
}

func boxData(t *testing.T) *plot.Dataset {
	rows := [][]string{}
	for _, v := range []string{"1", "2", "3", "4", "5", "6", "40"} {
		rows = append(rows, []string{"a", v})
	}
	for _, v := range []string{"-30", "10", "11", "12", "13", "14"} {
		rows = append(rows, []string{"b", v})
	}
	return dataset(t, []string{"g", "v"}, rows...)
}

func TestRunBoxes(t *testing.T) {
	tests := []struct {
		name string
		aes  plot.Aes
		want string
	}{
		{"vertical", plot.Aes{X: "g", Y: "v"}, OrientationVertical},
		{"horizontal", plot.Aes{X: "v", Y: "g"}, OrientationHorizontal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := &plot.Spec{Data: boxData(t), Layers: []plot.Layer{{Geom: "boxplot", Aes: tt.aes}}}
			res := run(t, spec)
			l := firstLayer(t, res)
			if l.Orientation != tt.want {
				t.Errorf("Orientation = %q, want %q", l.Orientation, tt.want)
			}
			boxes := l.Data.([]BoxPoint)
			if len(boxes) != 2 || boxes[0].Fill != "a" || boxes[1].Fill != "b" {
				t.Fatalf("boxes = %+v", boxes)
			}
			if !reflect.DeepEqual(boxes[0].UpperOutliers, []float64{40}) || len(boxes[0].LowerOutliers) != 0 {
				t.Errorf("box a outliers = %v / %v, want [] / [40]", boxes[0].LowerOutliers, boxes[0].UpperOutliers)
			}
			if !reflect.DeepEqual(boxes[1].LowerOutliers, []float64{-30}) {
				t.Errorf("box b lower outliers = %v, want [-30]", boxes[1].LowerOutliers)
			}

			sels := l.Selectors.([]BoxSelector)
			if len(sels) != 2 {
				t.Fatalf("selectors = %d, want 2", len(sels))
			}
			if len(sels[0].UpperOutliers) != 1 || len(sels[0].LowerOutliers) != 0 {
				t.Errorf("box a outlier selectors = %v / %v", sels[0].LowerOutliers, sels[0].UpperOutliers)
			}
			if len(sels[1].LowerOutliers) != 1 || len(sels[1].UpperOutliers) != 0 {
				t.Errorf("box b outlier selectors = %v / %v", sels[1].LowerOutliers, sels[1].UpperOutliers)
			}
			// The min whisker is the one on the low-value side.
			lo, _ := selector.Resolve(res.Tree, sels[0].Min)
			hi, _ := selector.Resolve(res.Tree, sels[0].Max)
			if len(lo) != 1 || len(hi) != 1 {
				t.Fatalf("whiskers resolve to %d and %d nodes", len(lo), len(hi))
			}
			if tt.want == OrientationVertical && lo[0].Bounds.Y <= hi[0].Bounds.Y {
				t.Error("min whisker drawn above max whisker")
			}
			if tt.want == OrientationHorizontal && lo[0].Bounds.X >= hi[0].Bounds.X {
				t.Error("min whisker drawn right of max whisker")
			}
		})
	}
}

func TestRunBoxLayersFindTheirOwnGroup(t *testing.T) {
	spec := &plot.Spec{Data: boxData(t), Layers: []plot.Layer{
		{Geom: "boxplot", Aes: plot.Aes{X: "g", Y: "v"}},
		{Geom: "point", Aes: plot.Aes{X: "g", Y: "v"}},
		{Geom: "boxplot", Aes: plot.Aes{X: "g", Y: "v"}},
	}}
	res := run(t, spec)
	layers := res.Payload.Layers()
	if len(res.Warnings) != 0 {
		t.Fatalf("warnings = %v, want none", res.Warnings)
	}

	groups := tree.FindNodes(res.Tree, boxPattern, nil)
	if len(groups) != 2 {
		t.Fatalf("box groups = %d, want 2", len(groups))
	}
	for i, li := range []int{0, 2} {
		nodes := resolved(t, res, layers[li])
		if len(nodes) == 0 {
			t.Fatalf("layer %d addresses nothing", li+1)
		}
		owned := map[*tree.Node]bool{}
		tree.Walk(groups[i], func(n *tree.Node, _ int) bool {
			owned[n] = true
			return true
		})
		for _, n := range nodes {
			if !owned[n] {
				t.Errorf("layer %d addresses %s outside %s", li+1, n.Name, groups[i].Name)
			}
		}
	}
}

func TestRunHistogram(t *testing.T) {
	var rows [][]string
	for i := 0; i < 20; i++ {
		rows = append(rows, []string{fmt.Sprint(i % 7)})
	}
	spec := &plot.Spec{
		Data:   dataset(t, []string{"v"}, rows...),
		Layers: []plot.Layer{{Geom: "histogram", Bins: 4, Aes: plot.Aes{X: "v"}}},
	}
	res := run(t, spec)
	l := firstLayer(t, res)
	bins := l.Data.([]HistogramPoint)
	if len(bins) != 4 {
		t.Fatalf("bins = %d, want 4", len(bins))
	}
	total := 0.0
	for i, b := range bins {
		total += b.Y
		if i > 0 && b.XMin < bins[i-1].XMax-1e-9 {
			t.Errorf("bin %d overlaps bin %d", i, i-1)
		}
	}
	if total != 20 {
		t.Errorf("total count = %v, want 20", total)
	}
	if l.Axes.Y != "count" {
		t.Errorf("Axes.Y = %q, want count", l.Axes.Y)
	}
}

func facetSpec(t *testing.T) *plot.Spec {
	var rows [][]string
	for _, sex := range []string{"F", "M"} {
		for _, time := range []string{"Lunch", "Dinner"} {
			for _, day := range []string{"Sat", "Fri"} {
				rows = append(rows, []string{day, fmt.Sprint(len(rows) + 1), sex, time})
			}
		}
	}
	return &plot.Spec{
		Data:   dataset(t, []string{"day", "tip", "sex", "time"}, rows...),
		Facet:  &plot.Facet{Rows: "sex", Cols: "time"},
		Layers: []plot.Layer{{ID: "tips", Geom: "col", Aes: plot.Aes{X: "day", Y: "tip"}}},
	}
}

func TestRunFacets(t *testing.T) {
	for _, suffix := range []bool{false, true} {
		var opts []svg.Option
		if suffix {
			opts = append(opts, svg.WithPanelSuffix())
		}
		res, err := newTestOrchestrator(svg.New(opts...)).Run(context.Background(), facetSpec(t))
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if err := Verify(res); err != nil {
			t.Fatalf("Verify: %v", err)
		}
		grid := res.Payload.Subplots
		if len(grid) != 2 || len(grid[0]) != 2 || len(grid[1]) != 2 {
			t.Fatalf("grid = %dx?, want 2x2", len(grid))
		}
		seen := make(map[string]bool)
		for r := range grid {
			for c := range grid[r] {
				l := grid[r][c].Layers[0]
				if want := fmt.Sprintf("tips-%d-%d", r+1, c+1); l.ID != want {
					t.Errorf("layer id = %q, want %q", l.ID, want)
				}
				if n := pointCount(l.Data); n != 2 {
					t.Errorf("panel %d-%d has %d bars, want 2", r+1, c+1, n)
				}
				sel := l.SelectorList()[0]
				if seen[sel] {
					t.Errorf("selector %s used by two panels", sel)
				}
				seen[sel] = true
			}
		}
		if len(res.Warnings) != 0 {
			t.Errorf("suffix=%v: warnings = %v", suffix, res.Warnings)
		}
	}
}

func TestRunComposition(t *testing.T) {
	leaf := func(label string) *plot.Spec {
		d := dataset(t, []string{"x", "y"}, []string{label, "1"})
		return &plot.Spec{Data: d, Layers: []plot.Layer{{Geom: "col", Aes: plot.Aes{X: "x", Y: "y"}}}}
	}
	tests := []struct {
		name string
		spec *plot.Spec
	}{
		{"flat", &plot.Spec{Composition: &plot.Composition{NCol: 2, Plots: []*plot.Spec{leaf("p1"), leaf("p2"), leaf("p3")}}}},
		{"nested", &plot.Spec{Composition: &plot.Composition{NCol: 2, Plots: []*plot.Spec{
			leaf("p1"),
			{Composition: &plot.Composition{NCol: 1, Plots: []*plot.Spec{leaf("p2"), leaf("p3")}}},
		}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCompositionGrid(t, run(t, tt.spec))
		})
	}
}

func checkCompositionGrid(t *testing.T, res *Result) {
	t.Helper()

	grid := res.Payload.Subplots
	if len(grid) != 2 || len(grid[0]) != 2 || len(grid[1]) != 1 {
		t.Fatalf("grid shape = %d rows, want [2 1]", len(grid))
	}
	want := [][]string{{"p1", "p2"}, {"p3"}}
	for r := range want {
		for c := range want[r] {
			bars := grid[r][c].Layers[0].Data.([]BarPoint)
			if bars[0].X != want[r][c] {
				t.Errorf("subplot %d,%d x = %v, want %s", r, c, bars[0].X, want[r][c])
			}
		}
	}
}

// renamer breaks the rendered tree before handing it to the engine.
type renamer struct {
	*svg.Renderer
	rename func(n *tree.Node)
}

func (r renamer) Render(ctx context.Context, spec *plot.Spec) (*render.Output, error) {
	out, err := r.Renderer.Render(ctx, spec)
	if err != nil {
		return nil, err
	}
	tree.Walk(out.Tree.Root, func(n *tree.Node, _ int) bool {
		r.rename(n)
		return true
	})
	return out, nil
}

func TestRunStructuralMismatchKeepsData(t *testing.T) {
	r := renamer{Renderer: svg.New(), rename: func(n *tree.Node) {
		if strings.HasPrefix(n.Name, "panel-") {
			n.Name = "strip" + n.Name
		}
	}}
	res, err := newTestOrchestrator(r).Run(context.Background(), facetSpec(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, l := range res.Payload.Layers() {
		if pointCount(l.Data) == 0 {
			t.Error("layer lost its data")
		}
		if len(l.SelectorList()) != 0 {
			t.Errorf("selectors = %v, want none", l.SelectorList())
		}
	}
	if len(res.Warnings) == 0 || res.Warnings[0].Code != errors.ErrCodeStructuralMismatch {
		t.Errorf("warnings = %v, want %s", res.Warnings, errors.ErrCodeStructuralMismatch)
	}
}

func TestRunMissingFacetPanelIsLocal(t *testing.T) {
	r := renamer{Renderer: svg.New(), rename: func(n *tree.Node) {
		if n.Name == "panel-2-2" {
			n.Name = "lost"
		}
	}}
	res, err := newTestOrchestrator(r).Run(context.Background(), facetSpec(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := Verify(res); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	grid := res.Payload.Subplots
	for row := range grid {
		for col := range grid[row] {
			l := grid[row][col].Layers[0]
			if pointCount(l.Data) != 2 {
				t.Errorf("panel %d-%d has %d bars, want 2", row+1, col+1, pointCount(l.Data))
			}
			want := 1
			if row == 1 && col == 1 {
				want = 0
			}
			if got := len(l.SelectorList()); got != want {
				t.Errorf("panel %d-%d has %d selectors, want %d", row+1, col+1, got, want)
			}
		}
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Code != errors.ErrCodeStructuralMismatch ||
		!strings.Contains(res.Warnings[0].Message, "2-2") {
		t.Errorf("warnings = %v, want one %s naming panel 2-2", res.Warnings, errors.ErrCodeStructuralMismatch)
	}
}

func TestRunMissingContainer(t *testing.T) {
	r := renamer{Renderer: svg.New(), rename: func(n *tree.Node) {
		n.Name = strings.Replace(n.Name, "geom_rect", "geom_other", 1)
	}}
	spec := barSpec(t, "stack", stackedRows())
	res, err := newTestOrchestrator(r).Run(context.Background(), spec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	l := firstLayer(t, res)
	if l.Type != "stacked_bar" || pointCount(l.Data) != 9 {
		t.Errorf("layer = %s with %d points, want stacked_bar with 9", l.Type, pointCount(l.Data))
	}
	if len(l.SelectorList()) != 0 {
		t.Errorf("selectors = %v, want none", l.SelectorList())
	}
}

type failing struct{ *svg.Renderer }

func (failing) Render(context.Context, *plot.Spec) (*render.Output, error) {
	return nil, fmt.Errorf("device lost")
}

func TestRunRenderFailure(t *testing.T) {
	_, err := newTestOrchestrator(failing{svg.New()}).Run(context.Background(), barSpec(t, "dodge", stackedRows()))
	if !errors.Is(err, errors.ErrCodeRenderFailed) {
		t.Errorf("Run() error = %v, want %s", err, errors.ErrCodeRenderFailed)
	}
}

func TestRunInvalidSpec(t *testing.T) {
	_, err := newTestOrchestrator(svg.New()).Run(context.Background(), &plot.Spec{})
	if !errors.Is(err, errors.ErrCodeInvalidSpec) {
		t.Errorf("Run() error = %v, want %s", err, errors.ErrCodeInvalidSpec)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestOrchestrator(svg.New()).Run(ctx, barSpec(t, "stack", stackedRows()))
	if err == nil {
		t.Error("Run() with cancelled context should fail")
	}
}

func TestPayloadJSON(t *testing.T) {
	res := run(t, barSpec(t, "stack", stackedRows()))
	b, err := res.Payload.JSON()
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		ID       string `json:"id"`
		Subplots [][]struct {
			Layers []struct {
				Type      string          `json:"type"`
				Axes      Axes            `json:"axes"`
				Data      [][]BarPoint    `json:"data"`
				Selectors json.RawMessage `json:"selectors"`
			} `json:"layers"`
		} `json:"subplots"`
	}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	l := decoded.Subplots[0][0].Layers[0]
	if l.Type != "stacked_bar" || len(l.Data) != 3 || l.Axes.X != "x" {
		t.Errorf("decoded layer = %+v", l)
	}
	if decoded.ID != "id-1" {
		t.Errorf("payload id = %q, want id-1", decoded.ID)
	}
}
