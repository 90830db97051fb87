package svg

import (
	"bytes"
	"fmt"
	"html"
	"math"

	svgo "github.com/ajstarks/svgo"

	"github.com/matzehuels/maidr/pkg/tree"
)

// Export writes the tree as an SVG document. Every node becomes an element
// whose id is the node name; containers and panels become groups.
func Export(t *tree.Tree) ([]byte, error) {
	if t == nil || t.Root == nil {
		return nil, fmt.Errorf("empty tree")
	}
	var buf bytes.Buffer
	canvas := svgo.New(&buf)
	canvas.Start(px(t.Width), px(t.Height))
	canvas.Rect(0, 0, px(t.Width), px(t.Height), "fill:#FFFFFF")
	writeNode(canvas, t.Root)
	canvas.End()
	return buf.Bytes(), nil
}

func writeNode(c *svgo.SVG, n *tree.Node) {
	id := fmt.Sprintf(`id="%s"`, html.EscapeString(n.Name))
	switch n.Kind {
	case tree.KindContainer, tree.KindPanel:
		c.Gid(html.EscapeString(n.Name))
		for _, child := range n.Children {
			writeNode(c, child)
		}
		c.Gend()
	case tree.KindRect:
		c.Rect(px(n.Bounds.X), px(n.Bounds.Y), px(n.Bounds.W), px(n.Bounds.H), id, "fill:"+n.Fill)
	case tree.KindPolyline:
		xs, ys := coords(n.Points)
		c.Polyline(xs, ys, id, fmt.Sprintf("fill:none;stroke:%s;stroke-width:1", n.Stroke))
	case tree.KindPolygon:
		xs, ys := coords(n.Points)
		c.Polygon(xs, ys, id, fmt.Sprintf("fill:%s;stroke:%s", n.Fill, n.Stroke))
	case tree.KindMarker:
		center := n.Bounds.Center()
		c.Circle(px(center.X), px(center.Y), px(n.Radius), id, "fill:"+n.Fill)
	case tree.KindText:
		c.Text(px(n.Bounds.X), px(n.Bounds.Y+n.Bounds.H), n.Label, id, "font-size:11px;font-family:sans-serif")
	}
}

func coords(points []tree.Point) (xs, ys []int) {
	xs, ys = make([]int, len(points)), make([]int, len(points))
	for i, p := range points {
		xs[i], ys[i] = px(p.X), px(p.Y)
	}
	return xs, ys
}

func px(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Round(v))
}
