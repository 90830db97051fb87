package maidr

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/maidr/pkg/errors"
	"github.com/matzehuels/maidr/pkg/observability"
	"github.com/matzehuels/maidr/pkg/plot"
	"github.com/matzehuels/maidr/pkg/render"
	"github.com/matzehuels/maidr/pkg/tree"
)

// runContext is the state of one run. It owns the working copy of the
// spec; the caller's spec is never touched.
type runContext struct {
	ctx    context.Context
	o      *Orchestrator
	logger *log.Logger

	source   *plot.Spec
	spec     *plot.Spec
	leaves   []*plot.Spec
	layers   [][]*layerState
	warnings []Warning
	degraded int
}

// layerState is the engine's view of one layer of one leaf plot.
type layerState struct {
	kind Kind
	proc Processor
	// drawn is the family the renderer draws the layer as. It holds the
	// layer's group slot even when kind is unknown.
	drawn plot.Family
}

func newRunContext(ctx context.Context, o *Orchestrator, spec *plot.Spec) *runContext {
	work := spec.WorkingCopy()
	rc := &runContext{
		ctx:    ctx,
		o:      o,
		logger: o.Logger.With("chart", chartName(spec)),
		source: spec,
		spec:   work,
		leaves: work.Leaves(),
	}
	rc.layers = make([][]*layerState, len(rc.leaves))
	return rc
}

func chartName(s *plot.Spec) string {
	switch {
	case s.ID != "":
		return s.ID
	case s.Title != "":
		return s.Title
	}
	return "chart"
}

func (rc *runContext) layerCount() int {
	n := 0
	for _, leaf := range rc.leaves {
		n += len(leaf.Layers)
	}
	return n
}

// prepare classifies every layer and reorders the datasets of layers
// whose processor asks for it. Only cancellation is fatal.
func (rc *runContext) prepare() error {
	for pi, leaf := range rc.leaves {
		rc.layers[pi] = make([]*layerState, len(leaf.Layers))
		for li := range leaf.Layers {
			l := &leaf.Layers[li]
			data := leaf.LayerData(li)

			kind, err := Detect(l)
			if err == nil {
				err = checkBindings(kind, l, data)
			}
			st := &layerState{kind: kind, drawn: l.Family()}
			if err != nil {
				rc.degrade(st, pi, li, "", err)
			}
			st.proc = NewProcessor(st.kind)
			rc.layers[pi][li] = st

			if !st.proc.NeedsReordering() || data.Len() == 0 {
				continue
			}
			env := ReorderEnv{Ctx: rc.ctx, Renderer: rc.o.Renderer, Spec: rc.spec, PlotIndex: pi, LayerIndex: li}
			reordered, err := st.proc.ReorderDataset(env, data)
			if ctxErr := rc.ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				rc.degrade(st, pi, li, "", fmt.Errorf("reorder: %w", err))
				st.proc = NewProcessor(KindUnknown)
				continue
			}
			leaf.SetLayerData(li, reordered)
		}
	}
	return nil
}

// degrade turns a layer into an unknown layer and records why.
func (rc *runContext) degrade(st *layerState, pi, li int, panel string, err error) {
	rc.warn(pi, li, panel, st.kind, err)
	st.kind = KindUnknown
	rc.degraded++
}

func (rc *runContext) warn(pi, li int, panel string, k Kind, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	w := Warning{Plot: pi + 1, Layer: li + 1, Panel: panel, Kind: k, Code: code, Message: err.Error()}
	rc.warnings = append(rc.warnings, w)
	rc.logger.Warn("layer degraded",
		"plot", w.Plot,
		"layer", w.Layer,
		"kind", k,
		"panel", panel,
		"code", code,
		"err", err)
}

// ordinal counts the layers before li in the same plot drawn into the
// same kind of group.
func (rc *runContext) ordinal(pi, li int) int {
	pattern := familyPattern(rc.layers[pi][li].drawn)
	n := 0
	for j := 0; j < li; j++ {
		if p := familyPattern(rc.layers[pi][j].drawn); p != nil && p == pattern {
			n++
		}
	}
	return n
}

// cell is one subplot of the payload grid.
type cell struct {
	plot     int // leaf plot index
	row, col int // facet panel, 1-based
	panel    *PanelContext
	// missing is set when the cell's panel was not found.
	missing bool
}

// assemble builds the payload from the render output.
func (rc *runContext) assemble(out *render.Output) *Payload {
	p := &Payload{ID: rc.o.NewID()}
	if rc.source.ID != "" {
		p.ID = rc.source.ID
	}
	grid, mismatch := rc.cells(out)
	for _, row := range grid {
		var subplots []Subplot
		for _, c := range row {
			subplots = append(subplots, Subplot{
				ID:     rc.o.NewID(),
				Layers: rc.cellLayers(out, c, mismatch, len(grid)*len(row) > 1),
			})
		}
		p.Subplots = append(p.Subplots, subplots)
	}
	return p
}

// cells lays out the payload grid and locates its panels. mismatch is set
// when the rendered tree does not hold the expected panels.
func (rc *runContext) cells(out *render.Output) (grid [][]cell, mismatch bool) {
	t := out.Tree
	switch {
	case rc.spec.Composition != nil:
		rows, cols := rc.spec.Grid()
		panels, err := DiscoverPanels(t, Layout{Mode: LayoutComposition, Rows: rows, Cols: cols})
		if err == nil && len(panels) != len(rc.leaves) {
			err = errors.New(errors.ErrCodeStructuralMismatch, "found %d panels for %d plots", len(panels), len(rc.leaves))
		}
		if err != nil {
			rc.warn(0, -1, "", KindUnknown, err)
			mismatch = true
		}
		at := make(map[[2]int]*PanelContext)
		for i := range panels {
			at[[2]int{panels[i].Row, panels[i].Col}] = &panels[i]
		}
		for r := 0; r < rows; r++ {
			var line []cell
			for c := 0; c < cols && r*cols+c < len(rc.leaves); c++ {
				line = append(line, cell{plot: r*cols + c, row: 1, col: 1, panel: at[[2]int{r + 1, c + 1}]})
			}
			grid = append(grid, line)
		}

	case rc.spec.Facet != nil:
		var pd render.PlotData
		if out.Built != nil && len(out.Built.Plots) > 0 {
			pd = out.Built.Plots[0]
		}
		rows, cols := max(1, len(pd.FacetRows)), max(1, len(pd.FacetCols))
		panels, err := DiscoverPanels(t, Layout{Mode: LayoutFacet, Rows: rows, Cols: cols})
		if err != nil {
			rc.warn(0, -1, "", KindUnknown, err)
		}
		for r := 1; r <= rows; r++ {
			var line []cell
			for c := 1; c <= cols; c++ {
				ce := cell{row: r, col: c, missing: true}
				if i := (r-1)*cols + c - 1; i < len(panels) && panels[i].Node != nil {
					ce.panel, ce.missing = &panels[i], false
				}
				line = append(line, ce)
			}
			grid = append(grid, line)
		}

	default:
		grid = [][]cell{{{row: 1, col: 1}}}
	}
	return grid, mismatch
}

// cellLayers processes every layer of a cell's plot.
func (rc *runContext) cellLayers(out *render.Output, c cell, mismatch, multi bool) []Layer {
	leaf := rc.leaves[c.plot]
	var scope *tree.Node
	panelName := ""
	if c.panel != nil {
		scope, panelName = c.panel.Node, c.panel.Name
	}
	if c.missing || (multi && c.panel == nil) {
		mismatch = true
	}

	layers := make([]Layer, 0, len(leaf.Layers))
	for li := range leaf.Layers {
		ld := out.Built.Layer(c.plot, li)
		if ld == nil {
			ld = &render.LayerData{}
		}
		in := &LayerInput{
			Layer:   &leaf.Layers[li],
			Data:    leaf.LayerData(li),
			Built:   ld,
			Rows:    ld.Panel(c.row, c.col),
			Tree:    out.Tree,
			Scope:   scope,
			Ordinal: rc.ordinal(c.plot, li),
		}
		layer := rc.layer(c, li, in, panelName, mismatch)
		if rc.spec.Facet != nil && multi && leaf.Layers[li].ID != "" {
			// A faceted layer appears once per panel.
			layer.ID = fmt.Sprintf("%s-%d-%d", leaf.Layers[li].ID, c.row, c.col)
		}
		layers = append(layers, layer)
	}
	return layers
}

// layer processes one layer in one panel. Failures degrade the layer but
// never the run.
func (rc *runContext) layer(c cell, li int, in *LayerInput, panelName string, mismatch bool) Layer {
	st := rc.layers[c.plot][li]
	leaf := rc.leaves[c.plot]
	l := in.Layer

	out := Layer{
		ID:        l.ID,
		Type:      st.kind.String(),
		Title:     firstNonEmpty(l.Title, leaf.Title, rc.spec.Title),
		Axes:      layerAxes(leaf, l, st.kind),
		Data:      emptyData(),
		Selectors: emptySelectors(),
	}
	if out.ID == "" {
		out.ID = rc.o.NewID()
	}
	defer func() {
		observability.Engine().OnLayerProcessed(rc.ctx, out.Type, pointCount(out.Data),
			len(out.SelectorList()), out.Type == KindUnknown.String())
	}()

	if st.kind == KindUnknown {
		return out
	}
	if o, ok := st.proc.(Orienter); ok {
		out.Orientation = o.Orientation(in)
	}
	if in.Data.Len() == 0 || len(in.Rows) == 0 {
		return out
	}

	data, err := st.proc.ExtractData(in)
	if err != nil {
		rc.warn(c.plot, li, panelName, st.kind, err)
		rc.degraded++
		out.Type, out.Orientation = KindUnknown.String(), ""
		return out
	}
	out.Data = data
	if mismatch {
		return out
	}

	sels, err := st.proc.GenerateSelectors(in)
	if err != nil {
		rc.warn(c.plot, li, panelName, st.kind, errors.Wrap(errors.ErrCodeStructuralMismatch, err, "selectors"))
		return out
	}
	out.Selectors = sels
	return out
}

func layerAxes(leaf *plot.Spec, l *plot.Layer, k Kind) Axes {
	y := firstNonEmpty(leaf.Axes.Y, l.Aes.Y)
	if y == "" && (k == KindHistogram || k == KindBar || k == KindStackedBar || k == KindDodgedBar) {
		y = "count"
	}
	if y == "" && k == KindSmooth {
		y = "density"
	}
	return Axes{X: firstNonEmpty(leaf.Axes.X, l.Aes.X), Y: y}
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
