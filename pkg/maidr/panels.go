package maidr

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/matzehuels/maidr/pkg/errors"
	"github.com/matzehuels/maidr/pkg/tree"
)

// LayoutMode says how a chart's panels are arranged.
type LayoutMode int

const (
	// LayoutSingle is a chart with one panel.
	LayoutSingle LayoutMode = iota
	// LayoutFacet splits one plot into panels by data levels.
	LayoutFacet
	// LayoutComposition arranges independent plots in a grid.
	LayoutComposition
)

// Layout is the panel grid of a chart.
type Layout struct {
	Mode       LayoutMode
	Rows, Cols int
}

// PanelContext locates one panel of the rendered tree.
type PanelContext struct {
	Name     string
	Row, Col int // 1-based grid position
	Node     *tree.Node
}

// positionTolerance is how far, in pixels, two panel edges may differ and
// still count as the same grid line.
const positionTolerance = 1.0

var compositionPanelPattern = regexp.MustCompile(`^axes\.\d+$`)

// DiscoverPanels locates every panel of a layout in row-major order. Facet
// panels are found by name; composition panels by position, since they
// are numbered in drawing order rather than grid order. It fails with
// STRUCTURAL_MISMATCH when the tree does not hold the expected grid; for
// facets the panels that were found are still returned.
func DiscoverPanels(t *tree.Tree, lay Layout) ([]PanelContext, error) {
	switch lay.Mode {
	case LayoutFacet:
		return facetPanels(t, lay.Rows, lay.Cols)
	case LayoutComposition:
		return compositionPanels(t, lay.Rows, lay.Cols)
	}
	if t == nil || t.Root == nil {
		return nil, errors.New(errors.ErrCodeStructuralMismatch, "empty tree")
	}
	return []PanelContext{{Name: t.Root.Name, Row: 1, Col: 1, Node: t.Root}}, nil
}

// facetPanels always returns one context per grid cell. Cells whose panel
// is missing have a nil Node and are listed in the returned error.
func facetPanels(t *tree.Tree, rows, cols int) ([]PanelContext, error) {
	out := make([]PanelContext, 0, rows*cols)
	var missing []string
	for r := 1; r <= rows; r++ {
		for c := 1; c <= cols; c++ {
			n := findFacetPanel(t, r, c)
			if n == nil {
				missing = append(missing, fmt.Sprintf("%d-%d", r, c))
				out = append(out, PanelContext{Row: r, Col: c})
				continue
			}
			out = append(out, PanelContext{Name: n.Name, Row: r, Col: c, Node: n})
		}
	}
	if len(missing) > 0 {
		return out, errors.New(errors.ErrCodeStructuralMismatch, "panels %s not found", strings.Join(missing, ", "))
	}
	return out, nil
}

// findFacetPanel looks for "panel-r-c", then for a suffixed name such as
// "panel-r-c.5".
func findFacetPanel(t *tree.Tree, r, c int) *tree.Node {
	name := fmt.Sprintf("panel-%d-%d", r, c)
	if n, ok := t.Lookup(name); ok && n.Kind == tree.KindPanel {
		return n
	}
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(name) + `\.\d+$`)
	for _, n := range tree.FindNodes(t, pattern, nil) {
		if n.Kind == tree.KindPanel {
			return n
		}
	}
	return nil
}

func compositionPanels(t *tree.Tree, rows, cols int) ([]PanelContext, error) {
	var nodes []*tree.Node
	for _, n := range tree.FindNodes(t, compositionPanelPattern, nil) {
		if n.Kind == tree.KindPanel {
			nodes = append(nodes, n)
		}
	}
	if len(nodes) > rows*cols {
		return nil, errors.New(errors.ErrCodeStructuralMismatch,
			"found %d panels for a %dx%d grid", len(nodes), rows, cols)
	}

	tops, lefts := make([]float64, len(nodes)), make([]float64, len(nodes))
	for i, n := range nodes {
		tops[i], lefts[i] = n.Bounds.Y, n.Bounds.X
	}
	rowOf, nrows := cluster(tops)
	colOf, ncols := cluster(lefts)
	if nrows > rows || ncols > cols {
		return nil, errors.New(errors.ErrCodeStructuralMismatch,
			"panels form a %dx%d grid, want %dx%d", nrows, ncols, rows, cols)
	}

	out := make([]PanelContext, len(nodes))
	seen := make(map[[2]int]bool)
	for i, n := range nodes {
		pos := [2]int{rowOf[i] + 1, colOf[i] + 1}
		if seen[pos] {
			return nil, errors.New(errors.ErrCodeStructuralMismatch, "two panels at row %d, column %d", pos[0], pos[1])
		}
		seen[pos] = true
		out[i] = PanelContext{Name: n.Name, Row: pos[0], Col: pos[1], Node: n}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Row != out[b].Row {
			return out[a].Row < out[b].Row
		}
		return out[a].Col < out[b].Col
	})
	return out, nil
}

// cluster ranks coordinates, treating values within positionTolerance of
// each other as equal. It returns each value's rank and the number of
// distinct ranks.
func cluster(vs []float64) (rank []int, n int) {
	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)
	var lines []float64
	for _, v := range sorted {
		if len(lines) == 0 || math.Abs(v-lines[len(lines)-1]) > positionTolerance {
			lines = append(lines, v)
		}
	}
	rank = make([]int, len(vs))
	for i, v := range vs {
		rank[i] = sort.Search(len(lines), func(k int) bool { return lines[k] >= v-positionTolerance })
	}
	return rank, len(lines)
}
