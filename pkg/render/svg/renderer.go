// Package svg is the built-in chart renderer. It computes layer statistics,
// lays panels out on a grid, builds a named node tree, and exports that tree
// as an SVG document whose element ids are the node names.
//
// # Naming
//
// Node names follow grid conventions so selectors can be derived from them:
//
//	figure.1                       root
//	panel-<row>-<col>              facet or single panel
//	axes.<n>                       composition panel, numbered in draw order
//	geom_rect.rect.<n>             bars and histogram bins
//	GRID.polyline.<n>              lines, smooths and densities
//	geom_point.points.<n>          point markers
//	geom_boxplot.gTree.<n>         box layer, one geom_crossbar.gTree per box
//
// Every <n> comes from a single counter shared by the whole figure, so
// names are unique.
package svg

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/maidr/pkg/errors"
	"github.com/matzehuels/maidr/pkg/plot"
	"github.com/matzehuels/maidr/pkg/render"
)

// Option configures a [Renderer].
type Option func(*Renderer)

// Renderer implements [render.Renderer].
type Renderer struct {
	width, height float64
	palette       []string
	panelSuffix   bool
	defaultBins   int
	logger        *log.Logger
}

// WithSize sets the size of one plot in pixels. Compositions multiply it by
// the grid dimensions.
func WithSize(w, h float64) Option {
	return func(r *Renderer) { r.width, r.height = w, h }
}

// WithPalette replaces the category palette.
func WithPalette(colors ...string) Option {
	return func(r *Renderer) { r.palette = colors }
}

// WithPanelSuffix appends a ".<n>" counter to facet panel names, as some
// grid exporters do.
func WithPanelSuffix() Option { return func(r *Renderer) { r.panelSuffix = true } }

// WithBins sets the histogram bin count used when a layer sets none.
func WithBins(n int) Option { return func(r *Renderer) { r.defaultBins = n } }

// WithLogger sets the logger for render diagnostics.
func WithLogger(l *log.Logger) Option { return func(r *Renderer) { r.logger = l } }

// New creates a renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		width:       640,
		height:      480,
		palette:     DefaultPalette,
		defaultBins: 30,
	}
	for _, opt := range opts {
		opt(r)
	}
	if len(r.palette) == 0 {
		r.palette = DefaultPalette
	}
	if r.logger == nil {
		r.logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return r
}

// Build computes the data of every layer without drawing.
func (r *Renderer) Build(ctx context.Context, spec *plot.Spec) (*render.Built, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	built := &render.Built{}
	for i, leaf := range spec.Leaves() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pd, err := r.buildPlot(leaf)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeRenderFailed, err, "build plot %d", i+1)
		}
		built.Plots = append(built.Plots, pd)
	}
	return built, nil
}

// Render draws the chart and exports it.
func (r *Renderer) Render(ctx context.Context, spec *plot.Spec) (*render.Output, error) {
	built, err := r.Build(ctx, spec)
	if err != nil {
		return nil, err
	}
	t, err := r.draw(spec, built)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailed, err, "draw figure")
	}
	export, err := Export(t)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailed, err, "export SVG")
	}
	r.logger.Debug("rendered figure", "nodes", t.Len(), "bytes", len(export))
	return &render.Output{Tree: t, Export: export, Built: built}, nil
}
