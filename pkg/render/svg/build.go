package svg

import (
	"fmt"
	"math"
	"sort"

	"github.com/aclements/go-moremath/stats"

	"github.com/matzehuels/maidr/pkg/errors"
	"github.com/matzehuels/maidr/pkg/plot"
	"github.com/matzehuels/maidr/pkg/render"
)

// curvePoints is the number of grid points smooth curves are evaluated on.
const curvePoints = 80

// barWidth is the fraction of a category slot a bar occupies.
const barWidth = 0.9

// boxWidth is the fraction of a category slot a box occupies.
const boxWidth = 0.75

// horizontal reports whether a box layer draws its boxes along the y axis.
func horizontal(l *plot.Layer, d *plot.Dataset) bool {
	if l.Aes.Y == "" {
		return true
	}
	if d.IsNumeric(l.Aes.Y) {
		return false
	}
	return l.Aes.X == "" || d.IsNumeric(l.Aes.X)
}

func xDiscrete(l *plot.Layer, d *plot.Dataset) bool {
	if l.Aes.X == "" {
		return false
	}
	switch stat := l.StatName(); {
	case l.Family() == plot.FamilyBox:
		return !horizontal(l, d)
	case stat == plot.StatBin, stat == plot.StatDensity:
		return false
	case l.Family() == plot.FamilyRect:
		return true
	}
	return !d.IsNumeric(l.Aes.X)
}

func yDiscrete(l *plot.Layer, d *plot.Dataset) bool {
	if l.Aes.Y == "" {
		return false
	}
	switch l.Family() {
	case plot.FamilyBox:
		return horizontal(l, d)
	case plot.FamilyRect:
		return false
	}
	return !d.IsNumeric(l.Aes.Y)
}

// plotScales holds the discrete levels shared by every layer of a plot.
type plotScales struct {
	xLevels, yLevels     []string
	rowLevels, colLevels []string
}

func (r *Renderer) scalesFor(p *plot.Spec) plotScales {
	var sc plotScales
	for i := range p.Layers {
		l, d := &p.Layers[i], p.LayerData(i)
		if xDiscrete(l, d) {
			sc.xLevels = appendLevels(sc.xLevels, d.Levels(l.Aes.X))
		}
		if yDiscrete(l, d) {
			sc.yLevels = appendLevels(sc.yLevels, d.Levels(l.Aes.Y))
		}
		if p.Facet != nil {
			sc.rowLevels = appendLevels(sc.rowLevels, d.Levels(p.Facet.Rows))
			sc.colLevels = appendLevels(sc.colLevels, d.Levels(p.Facet.Cols))
		}
	}
	return sc
}

func appendLevels(dst, levels []string) []string {
	seen := plot.IndexOf(dst)
	for _, l := range levels {
		if _, ok := seen[l]; !ok {
			seen[l] = len(dst)
			dst = append(dst, l)
		}
	}
	return dst
}

// panels returns every (row, col) facet panel in row-major order.
func (sc plotScales) panels() [][2]int {
	rows, cols := max(1, len(sc.rowLevels)), max(1, len(sc.colLevels))
	out := make([][2]int, 0, rows*cols)
	for i := 1; i <= rows; i++ {
		for j := 1; j <= cols; j++ {
			out = append(out, [2]int{i, j})
		}
	}
	return out
}

func (r *Renderer) buildPlot(p *plot.Spec) (render.PlotData, error) {
	sc := r.scalesFor(p)
	pd := render.PlotData{FacetRows: sc.rowLevels, FacetCols: sc.colLevels}
	for i := range p.Layers {
		ld, err := r.buildLayer(p, i, sc)
		if errors.Is(err, errors.ErrCodeMissingBinding) {
			// The layer is drawn empty; the engine reports it as degraded.
			r.logger.Warn("layer not drawn", "layer", i+1, "geom", p.Layers[i].Geom, "err", err)
			ld = render.LayerData{XLevels: sc.xLevels, YLevels: sc.yLevels}
		} else if err != nil {
			return pd, fmt.Errorf("layer %d (%s): %w", i+1, p.Layers[i].Geom, err)
		}
		pd.Layers = append(pd.Layers, ld)
	}
	return pd, nil
}

// layerEnv carries the per-row lookups of one layer.
type layerEnv struct {
	r     *Renderer
	p     *plot.Spec
	l     *plot.Layer
	d     *plot.Dataset
	sc    plotScales
	xIdx  map[string]int
	yIdx  map[string]int
	rIdx  map[string]int
	cIdx  map[string]int
	cat   string
	catIx map[string]int
	nCat  int
}

func (e *layerEnv) panel(row int) (int, int) {
	pr, pc := 1, 1
	if e.p.Facet != nil {
		if e.p.Facet.Rows != "" {
			pr = e.rIdx[e.d.Value(e.p.Facet.Rows, row)] + 1
		}
		if e.p.Facet.Cols != "" {
			pc = e.cIdx[e.d.Value(e.p.Facet.Cols, row)] + 1
		}
	}
	return pr, pc
}

func (e *layerEnv) group(row int) int {
	if e.cat == "" {
		return 1
	}
	return e.catIx[e.d.Value(e.cat, row)] + 1
}

func (e *layerEnv) fill(group int, fallback string) string {
	return e.r.color(group, e.cat != "", fallback)
}

// coord returns the data coordinate of a row on an axis: the category code
// on a discrete axis, the parsed value otherwise.
func coord(d *plot.Dataset, col string, idx map[string]int, vals []float64, row int) float64 {
	if idx != nil {
		k, ok := idx[d.Value(col, row)]
		if !ok {
			return math.NaN()
		}
		return float64(k + 1)
	}
	if vals == nil {
		return math.NaN()
	}
	return vals[row]
}

func (r *Renderer) buildLayer(p *plot.Spec, i int, sc plotScales) (render.LayerData, error) {
	l, d := &p.Layers[i], p.LayerData(i)
	for _, col := range []string{l.Aes.X, l.Aes.Y, l.Aes.Fill, l.Aes.Color, l.Aes.Group} {
		if col != "" && !d.Has(col) {
			return render.LayerData{}, errors.New(errors.ErrCodeMissingBinding, "column %q not in data", col)
		}
	}

	e := &layerEnv{r: r, p: p, l: l, d: d, sc: sc, cat: l.Aes.Category()}
	if sc.xLevels != nil && xDiscrete(l, d) {
		e.xIdx = plot.IndexOf(sc.xLevels)
	}
	if sc.yLevels != nil && yDiscrete(l, d) {
		e.yIdx = plot.IndexOf(sc.yLevels)
	}
	e.rIdx, e.cIdx = plot.IndexOf(sc.rowLevels), plot.IndexOf(sc.colLevels)
	if e.cat != "" {
		levels := d.Levels(e.cat)
		e.catIx, e.nCat = plot.IndexOf(levels), len(levels)
	}

	ld := render.LayerData{XLevels: sc.xLevels, YLevels: sc.yLevels}
	var (
		rows []render.Row
		err  error
	)
	switch fam, stat := l.Family(), l.StatName(); {
	case fam == plot.FamilyBox, stat == plot.StatBoxplot:
		rows, err = e.boxplot()
	case stat == plot.StatBin:
		rows, err = e.bin()
	case stat == plot.StatSmooth:
		rows, err = e.smooth()
	case stat == plot.StatDensity:
		rows, err = e.density()
	case fam == plot.FamilyRect && stat == plot.StatCount:
		rows, err = e.count()
	case fam == plot.FamilyRect:
		rows, err = e.bars()
	case fam == plot.FamilyLine:
		rows, err = e.lines()
	default:
		rows, err = e.points()
	}
	if err != nil {
		return ld, err
	}
	if fam := l.Family(); fam == plot.FamilyRect && l.StatName() != plot.StatBin {
		position(rows, l.PositionName(), max(1, e.nCat))
	}
	ld.Rows = rows
	return ld, nil
}

func (e *layerEnv) floats(col string) ([]float64, error) {
	if col == "" {
		return nil, nil
	}
	return e.d.Floats(col)
}

func (e *layerEnv) bars() ([]render.Row, error) {
	ys, err := e.floats(e.l.Aes.Y)
	if err != nil {
		return nil, err
	}
	if ys == nil {
		return nil, errors.New(errors.ErrCodeMissingBinding, "bars need a y binding")
	}
	xs, err := e.numericX()
	if err != nil {
		return nil, err
	}
	var rows []render.Row
	for i := 0; i < e.d.Len(); i++ {
		x := coord(e.d, e.l.Aes.X, e.xIdx, xs, i)
		y := ys[i]
		if math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		pr, pc := e.panel(i)
		g := e.group(i)
		rows = append(rows, render.Row{
			PanelRow: pr, PanelCol: pc,
			X: x, Y: y,
			XMin: x - barWidth/2, XMax: x + barWidth/2,
			YMin: 0, YMax: y,
			Group: g, Fill: e.fill(g, defaultFill),
		})
	}
	return rows, nil
}

func (e *layerEnv) numericX() ([]float64, error) {
	if e.xIdx != nil || e.l.Aes.X == "" {
		return nil, nil
	}
	return e.d.Floats(e.l.Aes.X)
}

// count tallies rows per panel, x and category. Output rows follow the
// first appearance of each combination in the data.
func (e *layerEnv) count() ([]render.Row, error) {
	xs, err := e.numericX()
	if err != nil {
		return nil, err
	}
	type key struct {
		pr, pc, g int
		x         float64
	}
	index := make(map[key]int)
	var rows []render.Row
	for i := 0; i < e.d.Len(); i++ {
		x := 1.0
		if e.l.Aes.X != "" {
			x = coord(e.d, e.l.Aes.X, e.xIdx, xs, i)
		}
		if math.IsNaN(x) {
			continue
		}
		pr, pc := e.panel(i)
		g := e.group(i)
		k := key{pr, pc, g, x}
		j, ok := index[k]
		if !ok {
			j = len(rows)
			index[k] = j
			rows = append(rows, render.Row{
				PanelRow: pr, PanelCol: pc,
				X: x, XMin: x - barWidth/2, XMax: x + barWidth/2,
				Group: g, Fill: e.fill(g, defaultFill),
			})
		}
		rows[j].Y++
		rows[j].YMax = rows[j].Y
	}
	return rows, nil
}

// position applies stacking or dodging in place. Stacks put the first
// category on top; dodges put it on the left.
func position(rows []render.Row, pos string, groups int) {
	switch pos {
	case plot.PositionStack:
		type slot struct {
			pr, pc int
			x      float64
		}
		buckets := make(map[slot][]int)
		var order []slot
		for i, row := range rows {
			s := slot{row.PanelRow, row.PanelCol, row.X}
			if _, ok := buckets[s]; !ok {
				order = append(order, s)
			}
			buckets[s] = append(buckets[s], i)
		}
		for _, s := range order {
			idx := buckets[s]
			sort.SliceStable(idx, func(a, b int) bool { return rows[idx[a]].Group > rows[idx[b]].Group })
			var up, down float64
			for _, k := range idx {
				y := rows[k].Y
				if y >= 0 {
					rows[k].YMin, rows[k].YMax = up, up+y
					up += y
				} else {
					rows[k].YMin, rows[k].YMax = down+y, down
					down += y
				}
			}
		}
	case plot.PositionDodge:
		w := barWidth / float64(groups)
		for i := range rows {
			k := float64(rows[i].Group - 1)
			rows[i].XMin = rows[i].X - barWidth/2 + k*w
			rows[i].XMax = rows[i].XMin + w
		}
	}
}

func (e *layerEnv) bin() ([]render.Row, error) {
	xs, err := e.d.Floats(e.l.Aes.X)
	if err != nil {
		return nil, err
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range xs {
		if !math.IsNaN(x) {
			lo, hi = math.Min(lo, x), math.Max(hi, x)
		}
	}
	if math.IsInf(lo, 1) {
		return nil, nil
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	bins := e.l.Bins
	if bins == 0 {
		bins = e.r.defaultBins
	}
	width := (hi - lo) / float64(bins)

	var rows []render.Row
	for _, pan := range e.sc.panels() {
		counts := make([]float64, bins)
		for i, x := range xs {
			if math.IsNaN(x) {
				continue
			}
			if pr, pc := e.panel(i); pr != pan[0] || pc != pan[1] {
				continue
			}
			k := min(int((x-lo)/width), bins-1)
			counts[k]++
		}
		for k, c := range counts {
			x0 := lo + float64(k)*width
			rows = append(rows, render.Row{
				PanelRow: pan[0], PanelCol: pan[1],
				X: x0 + width/2, Y: c,
				XMin: x0, XMax: x0 + width,
				YMin: 0, YMax: c,
				Group: 1, Fill: defaultFill,
			})
		}
	}
	return rows, nil
}

func (e *layerEnv) boxplot() ([]render.Row, error) {
	horiz := horizontal(e.l, e.d)
	catCol, valCol, idx := e.l.Aes.X, e.l.Aes.Y, e.xIdx
	if horiz {
		catCol, valCol, idx = e.l.Aes.Y, e.l.Aes.X, e.yIdx
	}
	vals, err := e.floats(valCol)
	if err != nil {
		return nil, err
	}
	if vals == nil {
		return nil, errors.New(errors.ErrCodeMissingBinding, "boxplot needs a numeric binding")
	}
	ncodes := 1
	if idx != nil {
		ncodes = len(idx)
	}

	var rows []render.Row
	for _, pan := range e.sc.panels() {
		groups := make([][]float64, ncodes)
		for i, v := range vals {
			if math.IsNaN(v) {
				continue
			}
			if pr, pc := e.panel(i); pr != pan[0] || pc != pan[1] {
				continue
			}
			code := 1
			if idx != nil {
				k, ok := idx[e.d.Value(catCol, i)]
				if !ok {
					continue
				}
				code = k + 1
			}
			groups[code-1] = append(groups[code-1], v)
		}
		for k, vs := range groups {
			if len(vs) == 0 {
				continue
			}
			row := boxStats(vs)
			row.PanelRow, row.PanelCol = pan[0], pan[1]
			row.Group = k + 1
			row.Fill = boxFill
			code := float64(k + 1)
			lo, hi := row.WhiskerLow, row.WhiskerHigh
			for _, o := range row.Outliers {
				lo, hi = math.Min(lo, o), math.Max(hi, o)
			}
			if horiz {
				row.Y, row.YMin, row.YMax = code, code-boxWidth/2, code+boxWidth/2
				row.XMin, row.XMax = lo, hi
			} else {
				row.X, row.XMin, row.XMax = code, code-boxWidth/2, code+boxWidth/2
				row.YMin, row.YMax = lo, hi
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// boxStats computes quartiles and 1.5 IQR whiskers. Quartiles use the
// sample's default (R8) interpolation.
func boxStats(vs []float64) render.Row {
	s := (&stats.Sample{Xs: vs}).Sort()
	q1, q2, q3 := s.Quantile(0.25), s.Quantile(0.5), s.Quantile(0.75)
	iqr := q3 - q1
	lowFence, highFence := q1-1.5*iqr, q3+1.5*iqr

	row := render.Row{Lower: q1, Middle: q2, Upper: q3, WhiskerLow: math.Inf(1), WhiskerHigh: math.Inf(-1)}
	for _, v := range s.Xs {
		if v < lowFence || v > highFence {
			row.Outliers = append(row.Outliers, v)
			continue
		}
		row.WhiskerLow = math.Min(row.WhiskerLow, v)
		row.WhiskerHigh = math.Max(row.WhiskerHigh, v)
	}
	if math.IsInf(row.WhiskerLow, 1) {
		row.WhiskerLow, row.WhiskerHigh = q1, q3
	}
	return row
}

// lines returns one row per vertex, grouped by category and sorted by x
// within each group.
func (e *layerEnv) lines() ([]render.Row, error) {
	xs, err := e.numericX()
	if err != nil {
		return nil, err
	}
	ys, err := e.yValues()
	if err != nil {
		return nil, err
	}
	var rows []render.Row
	for i := 0; i < e.d.Len(); i++ {
		x := coord(e.d, e.l.Aes.X, e.xIdx, xs, i)
		y := coord(e.d, e.l.Aes.Y, e.yIdx, ys, i)
		if math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		pr, pc := e.panel(i)
		g := e.group(i)
		rows = append(rows, render.Row{
			PanelRow: pr, PanelCol: pc,
			X: x, Y: y, XMin: x, XMax: x, YMin: y, YMax: y,
			Group: g, Fill: e.fill(g, defaultStroke),
		})
	}
	sort.SliceStable(rows, func(a, b int) bool {
		ra, rb := rows[a], rows[b]
		if ra.PanelRow != rb.PanelRow {
			return ra.PanelRow < rb.PanelRow
		}
		if ra.PanelCol != rb.PanelCol {
			return ra.PanelCol < rb.PanelCol
		}
		if ra.Group != rb.Group {
			return ra.Group < rb.Group
		}
		return ra.X < rb.X
	})
	return rows, nil
}

func (e *layerEnv) yValues() ([]float64, error) {
	if e.yIdx != nil || e.l.Aes.Y == "" {
		return nil, nil
	}
	return e.d.Floats(e.l.Aes.Y)
}

// points returns one row per data row in data order.
func (e *layerEnv) points() ([]render.Row, error) {
	xs, err := e.numericX()
	if err != nil {
		return nil, err
	}
	ys, err := e.yValues()
	if err != nil {
		return nil, err
	}
	var rows []render.Row
	for i := 0; i < e.d.Len(); i++ {
		x := coord(e.d, e.l.Aes.X, e.xIdx, xs, i)
		y := coord(e.d, e.l.Aes.Y, e.yIdx, ys, i)
		if math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		pr, pc := e.panel(i)
		g := e.group(i)
		rows = append(rows, render.Row{
			PanelRow: pr, PanelCol: pc,
			X: x, Y: y, XMin: x, XMax: x, YMin: y, YMax: y,
			Group: g, Fill: e.fill(g, defaultStroke),
		})
	}
	return rows, nil
}

// series splits finite (x, y) pairs by panel and group, in panel then
// group order.
type series struct {
	pr, pc, group int
	xs, ys        []float64
}

func (e *layerEnv) series(xs, ys []float64) []series {
	var out []series
	for _, pan := range e.sc.panels() {
		byGroup := make(map[int]*series)
		var order []int
		for i := range xs {
			if math.IsNaN(xs[i]) || (ys != nil && math.IsNaN(ys[i])) {
				continue
			}
			if pr, pc := e.panel(i); pr != pan[0] || pc != pan[1] {
				continue
			}
			g := e.group(i)
			s, ok := byGroup[g]
			if !ok {
				s = &series{pr: pan[0], pc: pan[1], group: g}
				byGroup[g] = s
				order = append(order, g)
			}
			s.xs = append(s.xs, xs[i])
			if ys != nil {
				s.ys = append(s.ys, ys[i])
			}
		}
		sort.Ints(order)
		for _, g := range order {
			out = append(out, *byGroup[g])
		}
	}
	return out
}

// smooth fits an ordinary least-squares line per group.
func (e *layerEnv) smooth() ([]render.Row, error) {
	xs, err := e.d.Floats(e.l.Aes.X)
	if err != nil {
		return nil, err
	}
	ys, err := e.d.Floats(e.l.Aes.Y)
	if err != nil {
		return nil, err
	}
	var rows []render.Row
	for _, s := range e.series(xs, ys) {
		if len(s.xs) < 2 {
			continue
		}
		mx, my := stats.Mean(s.xs), stats.Mean(s.ys)
		var sxy, sxx float64
		for i := range s.xs {
			sxy += (s.xs[i] - mx) * (s.ys[i] - my)
			sxx += (s.xs[i] - mx) * (s.xs[i] - mx)
		}
		if sxx == 0 {
			continue
		}
		slope := sxy / sxx
		icept := my - slope*mx
		lo, hi := minMax(s.xs)
		rows = append(rows, e.curve(s, lo, hi, func(x float64) float64 { return icept + slope*x })...)
	}
	return rows, nil
}

// density evaluates a Gaussian kernel density estimate per group.
func (e *layerEnv) density() ([]render.Row, error) {
	xs, err := e.d.Floats(e.l.Aes.X)
	if err != nil {
		return nil, err
	}
	var rows []render.Row
	for _, s := range e.series(xs, nil) {
		sample := stats.Sample{Xs: s.xs}
		bw := stats.BandwidthScott(sample)
		if !(bw > 0) {
			bw = 1
		}
		kde := &stats.KDE{Sample: sample, Kernel: stats.GaussianKernel, Bandwidth: bw}
		lo, hi := minMax(s.xs)
		if lo == hi {
			lo, hi = lo-3*bw, hi+3*bw
		}
		rows = append(rows, e.curve(s, lo, hi, kde.PDF)...)
	}
	return rows, nil
}

func (e *layerEnv) curve(s series, lo, hi float64, f func(float64) float64) []render.Row {
	rows := make([]render.Row, 0, curvePoints)
	fill := e.fill(s.group, defaultStroke)
	for k := 0; k < curvePoints; k++ {
		x := lo + (hi-lo)*float64(k)/float64(curvePoints-1)
		y := f(x)
		rows = append(rows, render.Row{
			PanelRow: s.pr, PanelCol: s.pc,
			X: x, Y: y, XMin: x, XMax: x, YMin: y, YMax: y,
			Group: s.group, Fill: fill,
		})
	}
	return rows
}

func minMax(xs []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, x := range xs {
		lo, hi = math.Min(lo, x), math.Max(hi, x)
	}
	return lo, hi
}
