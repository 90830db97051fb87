package svg

import (
	"github.com/aclements/go-gg/gg/layout"

	"github.com/matzehuels/maidr/pkg/tree"
)

// cell is a flexible grid slot.
type cell struct {
	layout.Leaf
}

func (*cell) SizeHint() (w, h float64, flexw, flexh bool) { return 0, 0, true, true }

// gridCells splits the rectangle (x, y, w, h) into rows×cols equal cells,
// indexed [row][col] from zero.
func gridCells(x, y, w, h float64, rows, cols int) [][]tree.Bounds {
	var g layout.Grid
	cells := make([][]*cell, rows)
	for i := range cells {
		cells[i] = make([]*cell, cols)
		for j := range cells[i] {
			c := &cell{}
			cells[i][j] = c
			g.Add(c, j, i, 1, 1)
		}
	}
	g.SetLayout(0, 0, w, h)

	out := make([][]tree.Bounds, rows)
	for i := range cells {
		out[i] = make([]tree.Bounds, cols)
		for j, c := range cells[i] {
			// Grid positions children relative to its own origin.
			cx, cy, cw, ch := c.Layout()
			out[i][j] = tree.Bounds{X: x + cx, Y: y + cy, W: cw, H: ch}
		}
	}
	return out
}

// inset shrinks a rectangle by fixed margins.
func inset(b tree.Bounds, top, right, bottom, left float64) tree.Bounds {
	out := tree.Bounds{X: b.X + left, Y: b.Y + top, W: b.W - left - right, H: b.H - top - bottom}
	if out.W < 1 {
		out.W = 1
	}
	if out.H < 1 {
		out.H = 1
	}
	return out
}
