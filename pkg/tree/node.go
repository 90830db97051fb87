// Package tree models the rendered chart as a tree of named graphical
// nodes, the shape the engine searches to address plot elements.
//
// Node names are unique within a tree and become element ids in the SVG
// export, so a selector built from a node name resolves against both.
package tree

import "math"

// Kind classifies a node.
type Kind int

// Node kinds.
const (
	KindContainer Kind = iota
	KindPanel
	KindRect
	KindPolyline
	KindPolygon
	KindMarker
	KindText
)

var kindNames = [...]string{
	KindContainer: "container",
	KindPanel:     "panel",
	KindRect:      "rect",
	KindPolyline:  "polyline",
	KindPolygon:   "polygon",
	KindMarker:    "marker",
	KindText:      "text",
}

var kindTags = [...]string{
	KindContainer: "g",
	KindPanel:     "g",
	KindRect:      "rect",
	KindPolyline:  "polyline",
	KindPolygon:   "polygon",
	KindMarker:    "circle",
	KindText:      "text",
}

// String returns the kind's name.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Tag returns the SVG element tag a node of this kind is exported as.
func (k Kind) Tag() string {
	if k < 0 || int(k) >= len(kindTags) {
		return ""
	}
	return kindTags[k]
}

// Bounds is an axis-aligned rectangle in device coordinates, with y
// growing downward.
type Bounds struct {
	X, Y, W, H float64
}

// Center returns the midpoint of the rectangle.
func (b Bounds) Center() Point {
	return Point{X: b.X + b.W/2, Y: b.Y + b.H/2}
}

// Union returns the smallest rectangle containing both.
func (b Bounds) Union(o Bounds) Bounds {
	if b.W == 0 && b.H == 0 {
		return o
	}
	if o.W == 0 && o.H == 0 {
		return b
	}
	x0, y0 := math.Min(b.X, o.X), math.Min(b.Y, o.Y)
	x1, y1 := math.Max(b.X+b.W, o.X+o.W), math.Max(b.Y+b.H, o.Y+o.H)
	return Bounds{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Point is a device coordinate.
type Point struct {
	X, Y float64
}

// Node is one element of the rendered tree.
type Node struct {
	Kind     Kind
	Name     string
	Bounds   Bounds
	Fill     string
	Stroke   string
	Points   []Point // polyline, polygon
	Radius   float64 // marker
	Label    string  // text
	Children []*Node
}

// Add appends children and returns n.
func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// ChildrenOfKind returns the direct children of the given kind.
func (n *Node) ChildrenOfKind(k Kind) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == k {
			out = append(out, c)
		}
	}
	return out
}

// Tree is a rendered chart.
type Tree struct {
	Root   *Node
	Width  float64
	Height float64
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	n := 0
	Walk(t.Root, func(*Node, int) bool {
		n++
		return true
	})
	return n
}

// Lookup finds a node by exact name.
func (t *Tree) Lookup(name string) (*Node, bool) {
	var found *Node
	Walk(t.Root, func(n *Node, _ int) bool {
		if found != nil {
			return false
		}
		if n.Name == name {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}
