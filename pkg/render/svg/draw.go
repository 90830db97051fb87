package svg

import (
	"fmt"
	"sort"
	"strings"

	"github.com/matzehuels/maidr/pkg/plot"
	"github.com/matzehuels/maidr/pkg/render"
	"github.com/matzehuels/maidr/pkg/tree"
)

// Margins around a plot's panel area, in pixels.
const (
	marginTop    = 12
	marginRight  = 12
	marginBottom = 44
	marginLeft   = 56
	titleHeight  = 24
	stripHeight  = 20
	panelGap     = 6
	markerRadius = 3
)

// RootName is the name of the figure's root node.
const RootName = "figure.1"

// drawer builds the node tree for one render.
type drawer struct {
	r   *Renderer
	seq int
}

// name returns prefix suffixed with the next figure-wide counter value.
func (d *drawer) name(prefix string) string {
	d.seq++
	return fmt.Sprintf("%s.%d", prefix, d.seq)
}

func (r *Renderer) draw(spec *plot.Spec, built *render.Built) (*tree.Tree, error) {
	rows, cols := spec.Grid()
	w, h := r.width*float64(cols), r.height*float64(rows)
	d := &drawer{r: r, seq: 1}
	root := &tree.Node{Kind: tree.KindContainer, Name: RootName, Bounds: tree.Bounds{W: w, H: h}}

	leaves := spec.Leaves()
	if len(built.Plots) != len(leaves) {
		return nil, fmt.Errorf("built data has %d plots, spec has %d", len(built.Plots), len(leaves))
	}

	if spec.Composition == nil {
		d.drawPlot(root, spec, built.Plots[0], root.Bounds, "")
		return &tree.Tree{Root: root, Width: w, Height: h}, nil
	}

	top := 0.0
	if spec.Title != "" {
		root.Add(d.text("plot.title", spec.Title, w/2, titleHeight*0.75))
		top = titleHeight
	}
	cells := gridCells(0, top, w, h-top, rows, cols)

	// Composition panels are drawn column by column, so their numbering
	// does not follow the row-major grid order.
	order := make([]int, len(leaves))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := order[a]%cols, order[b]%cols
		if ca != cb {
			return ca < cb
		}
		return order[a] < order[b]
	})
	for n, li := range order {
		b := cells[li/cols][li%cols]
		d.drawPlot(root, leaves[li], built.Plots[li], b, fmt.Sprintf("axes.%d", n+1))
	}
	return &tree.Tree{Root: root, Width: w, Height: h}, nil
}

// drawPlot draws one plot into bounds. A non-empty panelName marks a
// composition panel.
func (d *drawer) drawPlot(parent *tree.Node, p *plot.Spec, pd render.PlotData, bounds tree.Bounds, panelName string) {
	top := float64(marginTop)
	if p.Title != "" {
		parent.Add(d.text("plot.title", p.Title, bounds.X+bounds.W/2, bounds.Y+titleHeight*0.75))
		top += titleHeight
	}
	if len(pd.FacetCols) > 0 {
		top += stripHeight
	}
	right := float64(marginRight)
	if len(pd.FacetRows) > 0 {
		right += stripHeight
	}
	area := inset(bounds, top, right, marginBottom, marginLeft)

	nrows, ncols := max(1, len(pd.FacetRows)), max(1, len(pd.FacetCols))
	cells := gridCells(area.X, area.Y, area.W, area.H, nrows, ncols)

	zeroY := false
	for i := range p.Layers {
		if p.Layers[i].Family() == plot.FamilyRect {
			zeroY = true
		}
	}
	ax, ay := plotAxes(pd, zeroY)

	for r := 1; r <= nrows; r++ {
		for c := 1; c <= ncols; c++ {
			b := inset(cells[r-1][c-1], panelGap/2, panelGap/2, panelGap/2, panelGap/2)
			name := panelName
			if name == "" {
				name = fmt.Sprintf("panel-%d-%d", r, c)
				if d.r.panelSuffix {
					name = d.name(name)
				}
			}
			panel := &tree.Node{Kind: tree.KindPanel, Name: name, Bounds: b}
			m := mapper{b: b, x: ax, y: ay}
			panel.Add(&tree.Node{Kind: tree.KindRect, Name: d.name("panel.background.rect"), Bounds: b, Fill: panelFill})
			panel.Add(d.gridLines(m))
			for i := range p.Layers {
				ld := render.LayerData{}
				if i < len(pd.Layers) {
					ld = pd.Layers[i]
				}
				panel.Add(d.layer(&p.Layers[i], ld.Panel(r, c), m))
			}
			parent.Add(panel)

			if r == 1 && len(pd.FacetCols) > 0 {
				parent.Add(d.text(fmt.Sprintf("strip-t-%d", c), pd.FacetCols[c-1], b.X+b.W/2, b.Y-stripHeight/3))
			}
			if c == ncols && len(pd.FacetRows) > 0 {
				parent.Add(d.text(fmt.Sprintf("strip-r-%d", r), pd.FacetRows[r-1], b.X+b.W+stripHeight/2, b.Y+b.H/2))
			}
			if r == nrows {
				parent.Add(d.axisLabels("axis-b", m, true))
			}
			if c == 1 {
				parent.Add(d.axisLabels("axis-l", m, false))
			}
		}
	}

	xTitle, yTitle := axisTitles(p)
	parent.Add(d.text("xlab", xTitle, area.X+area.W/2, bounds.Y+bounds.H-8))
	parent.Add(d.text("ylab", yTitle, bounds.X+12, area.Y+area.H/2))
}

// axisTitles falls back to the first layer's bindings.
func axisTitles(p *plot.Spec) (x, y string) {
	x, y = p.Axes.X, p.Axes.Y
	if len(p.Layers) > 0 {
		if x == "" {
			x = p.Layers[0].Aes.X
		}
		if y == "" {
			y = p.Layers[0].Aes.Y
		}
	}
	return x, y
}

// mapper converts data coordinates to device coordinates inside a panel.
type mapper struct {
	b    tree.Bounds
	x, y axis
}

func (m mapper) px(v float64) float64 { return m.b.X + m.x.Map(v)*m.b.W }
func (m mapper) py(v float64) float64 { return m.b.Y + m.b.H - m.y.Map(v)*m.b.H }

func (m mapper) rect(x0, x1, y0, y1 float64) tree.Bounds {
	ax, bx := m.px(x0), m.px(x1)
	ay, by := m.py(y1), m.py(y0)
	if bx < ax {
		ax, bx = bx, ax
	}
	if by < ay {
		ay, by = by, ay
	}
	return tree.Bounds{X: ax, Y: ay, W: bx - ax, H: by - ay}
}

func (m mapper) point(x, y float64) tree.Point {
	return tree.Point{X: m.px(x), Y: m.py(y)}
}

func (d *drawer) text(prefix, label string, x, y float64) *tree.Node {
	return &tree.Node{
		Kind:   tree.KindText,
		Name:   d.name(prefix + ".text"),
		Label:  label,
		Bounds: tree.Bounds{X: x, Y: y - 12, W: 7 * float64(len(label)), H: 12},
	}
}

func (d *drawer) gridLines(m mapper) *tree.Node {
	g := &tree.Node{Kind: tree.KindContainer, Name: d.name("panel.grid.major.polyline"), Bounds: m.b}
	for _, t := range m.x.ticks() {
		x := m.px(t.value)
		g.Add(&tree.Node{
			Kind: tree.KindPolyline, Name: fmt.Sprintf("%s.%d", g.Name, len(g.Children)+1), Stroke: gridStroke,
			Points: []tree.Point{{X: x, Y: m.b.Y}, {X: x, Y: m.b.Y + m.b.H}},
		})
	}
	for _, t := range m.y.ticks() {
		y := m.py(t.value)
		g.Add(&tree.Node{
			Kind: tree.KindPolyline, Name: fmt.Sprintf("%s.%d", g.Name, len(g.Children)+1), Stroke: gridStroke,
			Points: []tree.Point{{X: m.b.X, Y: y}, {X: m.b.X + m.b.W, Y: y}},
		})
	}
	return g
}

func (d *drawer) axisLabels(prefix string, m mapper, bottom bool) *tree.Node {
	g := &tree.Node{Kind: tree.KindContainer, Name: d.name(prefix)}
	ticks := m.y.ticks()
	if bottom {
		ticks = m.x.ticks()
	}
	for _, t := range ticks {
		var n *tree.Node
		if bottom {
			n = d.text(prefix, t.label, m.px(t.value), m.b.Y+m.b.H+16)
		} else {
			n = d.text(prefix, t.label, m.b.X-6-7*float64(len(t.label)), m.py(t.value)+4)
		}
		g.Bounds = g.Bounds.Union(n.Bounds)
		g.Add(n)
	}
	return g
}

// layer draws one layer's rows for a panel.
func (d *drawer) layer(l *plot.Layer, rows []render.Row, m mapper) *tree.Node {
	switch l.Family() {
	case plot.FamilyRect:
		return d.rects(rows, m)
	case plot.FamilyLine:
		return d.polylines(rows, m)
	case plot.FamilyPoint:
		return d.markers("geom_point.points", rows, m)
	case plot.FamilyBox:
		return d.boxes(rows, m)
	}
	return &tree.Node{Kind: tree.KindContainer, Name: d.name("geom_" + sanitize(l.Geom) + ".null"), Bounds: m.b}
}

func (d *drawer) rects(rows []render.Row, m mapper) *tree.Node {
	g := &tree.Node{Kind: tree.KindContainer, Name: d.name("geom_rect.rect")}
	for k, r := range rows {
		b := m.rect(r.XMin, r.XMax, r.YMin, r.YMax)
		g.Bounds = g.Bounds.Union(b)
		g.Add(&tree.Node{Kind: tree.KindRect, Name: fmt.Sprintf("%s.%d", g.Name, k+1), Bounds: b, Fill: r.Fill})
	}
	return g
}

// polylines draws one polyline per run of rows sharing a group.
func (d *drawer) polylines(rows []render.Row, m mapper) *tree.Node {
	g := &tree.Node{Kind: tree.KindContainer, Name: d.name("GRID.polyline")}
	for start := 0; start < len(rows); {
		end := start + 1
		for end < len(rows) && rows[end].Group == rows[start].Group {
			end++
		}
		line := &tree.Node{
			Kind:   tree.KindPolyline,
			Name:   fmt.Sprintf("%s.%d", g.Name, len(g.Children)+1),
			Stroke: rows[start].Fill,
		}
		for _, r := range rows[start:end] {
			p := m.point(r.X, r.Y)
			line.Points = append(line.Points, p)
			line.Bounds = line.Bounds.Union(tree.Bounds{X: p.X, Y: p.Y, W: 0.01, H: 0.01})
		}
		g.Bounds = g.Bounds.Union(line.Bounds)
		g.Add(line)
		start = end
	}
	return g
}

func (d *drawer) markers(prefix string, rows []render.Row, m mapper) *tree.Node {
	g := &tree.Node{Kind: tree.KindContainer, Name: d.name(prefix)}
	for k, r := range rows {
		g.Add(d.marker(fmt.Sprintf("%s.%d", g.Name, k+1), m.point(r.X, r.Y), r.Fill))
	}
	for _, c := range g.Children {
		g.Bounds = g.Bounds.Union(c.Bounds)
	}
	return g
}

func (d *drawer) marker(name string, p tree.Point, fill string) *tree.Node {
	return &tree.Node{
		Kind:   tree.KindMarker,
		Name:   name,
		Radius: markerRadius,
		Fill:   fill,
		Bounds: tree.Bounds{X: p.X - markerRadius, Y: p.Y - markerRadius, W: 2 * markerRadius, H: 2 * markerRadius},
	}
}

// boxes draws a geom_boxplot gTree holding one crossbar gTree per box.
// Each crossbar holds the whisker segments (lower first), the box polygon,
// the median segment and, when present, the outlier markers.
func (d *drawer) boxes(rows []render.Row, m mapper) *tree.Node {
	master := &tree.Node{Kind: tree.KindContainer, Name: d.name("geom_boxplot.gTree")}
	for _, r := range rows {
		horiz := r.X == 0 && r.Y != 0
		// at maps a (position along the category axis, value) pair.
		at := func(pos, v float64) tree.Point {
			if horiz {
				return m.point(v, pos)
			}
			return m.point(pos, v)
		}
		code, lo, hi := r.X, r.XMin, r.XMax
		if horiz {
			code, lo, hi = r.Y, r.YMin, r.YMax
		}

		bar := &tree.Node{Kind: tree.KindContainer, Name: d.name("geom_crossbar.gTree")}

		whiskers := &tree.Node{Kind: tree.KindContainer, Name: d.name("geom_segment.segments")}
		whiskers.Add(
			segment(whiskers.Name+".1", at(code, r.Lower), at(code, r.WhiskerLow)),
			segment(whiskers.Name+".2", at(code, r.Upper), at(code, r.WhiskerHigh)),
		)

		corners := []tree.Point{at(lo, r.Lower), at(hi, r.Lower), at(hi, r.Upper), at(lo, r.Upper)}
		box := &tree.Node{Kind: tree.KindPolygon, Name: d.name("geom_polygon.polygon"), Points: corners, Fill: r.Fill, Stroke: defaultStroke}
		for _, p := range corners {
			box.Bounds = box.Bounds.Union(tree.Bounds{X: p.X, Y: p.Y, W: 0.01, H: 0.01})
		}

		median := &tree.Node{Kind: tree.KindContainer, Name: d.name("geom_segment.segments")}
		median.Add(segment(median.Name+".1", at(lo, r.Middle), at(hi, r.Middle)))

		bar.Add(whiskers, box, median)
		if len(r.Outliers) > 0 {
			out := &tree.Node{Kind: tree.KindContainer, Name: d.name("geom_boxplot.outliers")}
			for k, v := range r.Outliers {
				out.Add(d.marker(fmt.Sprintf("%s.%d", out.Name, k+1), at(code, v), defaultStroke))
			}
			bar.Add(out)
		}
		for _, c := range bar.Children {
			bar.Bounds = bar.Bounds.Union(c.Bounds)
		}
		master.Bounds = master.Bounds.Union(bar.Bounds)
		master.Add(bar)
	}
	return master
}

func segment(name string, a, b tree.Point) *tree.Node {
	n := &tree.Node{Kind: tree.KindPolyline, Name: name, Stroke: defaultStroke, Points: []tree.Point{a, b}}
	n.Bounds = tree.Bounds{X: min(a.X, b.X), Y: min(a.Y, b.Y), W: max(abs(a.X-b.X), 0.01), H: max(abs(a.Y-b.Y), 0.01)}
	return n
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func sanitize(geom string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(geom) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
