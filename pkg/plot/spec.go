// Package plot defines the chart specification the engine consumes: layers
// with their aesthetic bindings, the datasets they draw from, and optional
// faceting or composition.
//
// A [Spec] is a plain value. The engine never mutates the caller's spec or
// datasets; reordering happens on deep copies.
package plot

import (
	"strings"

	"github.com/matzehuels/maidr/pkg/errors"
)

// Stats.
const (
	StatIdentity = "identity"
	StatCount    = "count"
	StatBin      = "bin"
	StatBoxplot  = "boxplot"
	StatSmooth   = "smooth"
	StatDensity  = "density"
)

// Positions.
const (
	PositionIdentity = "identity"
	PositionStack    = "stack"
	PositionDodge    = "dodge"
)

// Aes binds visual channels to dataset columns. Empty fields are unbound.
type Aes struct {
	X     string `json:"x,omitempty" toml:"x"`
	Y     string `json:"y,omitempty" toml:"y"`
	Fill  string `json:"fill,omitempty" toml:"fill"`
	Color string `json:"color,omitempty" toml:"color"`
	Group string `json:"group,omitempty" toml:"group"`
}

// Category returns the column that splits the layer into colored groups:
// fill, then color, then group.
func (a Aes) Category() string {
	switch {
	case a.Fill != "":
		return a.Fill
	case a.Color != "":
		return a.Color
	}
	return a.Group
}

// Layer is one geometric layer of a plot.
type Layer struct {
	ID       string   `json:"id,omitempty"`
	Geom     string   `json:"geom"`
	Stat     string   `json:"stat,omitempty"`
	Position string   `json:"position,omitempty"`
	Aes      Aes      `json:"aes"`
	Title    string   `json:"title,omitempty"`
	Bins     int      `json:"bins,omitempty"`
	Data     *Dataset `json:"data,omitempty"`
}

// Family is the kind of element group a layer is drawn into. It depends
// on the geom alone; the stat changes what is computed, never how it is
// drawn.
type Family int

// Families.
const (
	FamilyOther Family = iota
	FamilyRect
	FamilyLine
	FamilyPoint
	FamilyBox
)

// Family classifies the layer's geom, compared case-insensitively.
func (l *Layer) Family() Family {
	g := strings.ToLower(l.Geom)
	switch {
	case strings.Contains(g, "boxplot"):
		return FamilyBox
	case strings.Contains(g, "bar"), strings.Contains(g, "col"),
		strings.Contains(g, "hist"):
		return FamilyRect
	case strings.Contains(g, "line"), strings.Contains(g, "path"), strings.Contains(g, "step"),
		strings.Contains(g, "smooth"), strings.Contains(g, "density"):
		return FamilyLine
	case strings.Contains(g, "point"), strings.Contains(g, "jitter"):
		return FamilyPoint
	}
	return FamilyOther
}

// StatName returns the statistic the layer computes: its explicit stat, or
// the one its geom implies. A bar geom without a y binding counts rows.
func (l *Layer) StatName() string {
	s := strings.ToLower(l.Stat)
	if s == "" {
		s = strings.ToLower(l.Geom)
		if strings.Contains(s, "bar") && l.Aes.Y == "" {
			return StatCount
		}
	}
	switch {
	case strings.Contains(s, "bin"), strings.Contains(s, "hist"):
		return StatBin
	case strings.Contains(s, "boxplot"):
		return StatBoxplot
	case strings.Contains(s, "smooth"):
		return StatSmooth
	case strings.Contains(s, "density"):
		return StatDensity
	case strings.Contains(s, "count"):
		return StatCount
	}
	return StatIdentity
}

// PositionName returns the layer's position adjustment.
func (l *Layer) PositionName() string {
	p := strings.ToLower(l.Position)
	switch {
	case strings.Contains(p, "stack"):
		return PositionStack
	case strings.Contains(p, "dodge"):
		return PositionDodge
	}
	return PositionIdentity
}

// Axes holds axis titles.
type Axes struct {
	X string `json:"x,omitempty"`
	Y string `json:"y,omitempty"`
}

// Facet splits a plot into a grid of panels by the levels of up to two
// columns.
type Facet struct {
	Rows string `json:"rows,omitempty"`
	Cols string `json:"cols,omitempty"`
}

// Composition arranges independent plots in a grid, filled row by row.
type Composition struct {
	NCol  int     `json:"ncol"`
	Plots []*Spec `json:"plots"`
}

// Spec is a chart specification.
type Spec struct {
	ID          string       `json:"id,omitempty"`
	Title       string       `json:"title,omitempty"`
	Axes        Axes         `json:"axes"`
	Data        *Dataset     `json:"data,omitempty"`
	Layers      []Layer      `json:"layers,omitempty"`
	Facet       *Facet       `json:"facet,omitempty"`
	Composition *Composition `json:"composition,omitempty"`
}

// LayerData returns the dataset a layer draws from: its own when set,
// otherwise the plot's.
func (s *Spec) LayerData(i int) *Dataset {
	if i < 0 || i >= len(s.Layers) {
		return nil
	}
	if s.Layers[i].Data != nil {
		return s.Layers[i].Data
	}
	return s.Data
}

// SetLayerData gives layer i its own dataset. Sibling layers that inherit
// the plot data keep drawing from it.
func (s *Spec) SetLayerData(i int, d *Dataset) {
	s.Layers[i].Data = d
}

// Leaves returns the plots that are drawn as panels, in row-major order.
// A plain spec is its own single leaf. A composition nested in another is
// flattened into consecutive cells; only the outermost NCol applies.
func (s *Spec) Leaves() []*Spec {
	if s.Composition == nil {
		return []*Spec{s}
	}
	var out []*Spec
	for _, p := range s.Composition.Plots {
		out = append(out, p.Leaves()...)
	}
	return out
}

// Grid returns the composition grid dimensions.
func (s *Spec) Grid() (rows, cols int) {
	if s.Composition == nil {
		return 1, 1
	}
	n := len(s.Leaves())
	cols = s.Composition.NCol
	if cols <= 0 || cols > n {
		cols = n
	}
	if cols == 0 {
		return 0, 0
	}
	rows = (n + cols - 1) / cols
	return rows, cols
}

// WorkingCopy returns a copy of the spec whose datasets may be replaced
// freely. Datasets are shared with s until replaced.
func (s *Spec) WorkingCopy() *Spec {
	out := *s
	out.Layers = append([]Layer(nil), s.Layers...)
	if s.Composition != nil {
		comp := *s.Composition
		comp.Plots = make([]*Spec, len(s.Composition.Plots))
		for i, p := range s.Composition.Plots {
			comp.Plots[i] = p.WorkingCopy()
		}
		out.Composition = &comp
	}
	return &out
}

// Validate checks the structural requirements of a spec. Per-layer binding
// problems are left to the engine, which degrades the offending layer.
func (s *Spec) Validate() error {
	if s == nil {
		return errors.New(errors.ErrCodeInvalidSpec, "spec is nil")
	}
	if s.Composition != nil {
		if len(s.Layers) > 0 {
			return errors.New(errors.ErrCodeInvalidSpec, "a composition cannot have its own layers")
		}
		if len(s.Composition.Plots) == 0 {
			return errors.New(errors.ErrCodeInvalidSpec, "composition has no plots")
		}
		for i, p := range s.Composition.Plots {
			if p == nil {
				return errors.New(errors.ErrCodeInvalidSpec, "composition plot %d is nil", i+1)
			}
			if p.Facet != nil {
				return errors.New(errors.ErrCodeUnsupported, "composition plot %d: faceting inside a composition", i+1)
			}
			if err := p.Validate(); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidSpec, err, "composition plot %d", i+1)
			}
		}
		return nil
	}
	if len(s.Layers) == 0 {
		return errors.New(errors.ErrCodeInvalidSpec, "plot has no layers")
	}
	for i := range s.Layers {
		l := &s.Layers[i]
		if strings.TrimSpace(l.Geom) == "" {
			return errors.New(errors.ErrCodeInvalidSpec, "layer %d has no geom", i+1)
		}
		if s.LayerData(i) == nil {
			return errors.New(errors.ErrCodeInvalidSpec, "layer %d has no data", i+1)
		}
		if l.Bins < 0 {
			return errors.New(errors.ErrCodeInvalidSpec, "layer %d: bins must be positive", i+1)
		}
	}
	if s.Facet != nil {
		if s.Facet.Rows == "" && s.Facet.Cols == "" {
			return errors.New(errors.ErrCodeInvalidSpec, "facet names no columns")
		}
		for i := range s.Layers {
			d := s.LayerData(i)
			for _, col := range []string{s.Facet.Rows, s.Facet.Cols} {
				if col != "" && !d.Has(col) {
					return errors.New(errors.ErrCodeMissingBinding, "layer %d: facet column %q not in data", i+1, col)
				}
			}
		}
	}
	return nil
}
