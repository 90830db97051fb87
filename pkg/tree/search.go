package tree

import "regexp"

// Walk visits root and its descendants depth-first in document order.
// Returning false from fn skips the node's children.
func Walk(root *Node, fn func(n *Node, depth int) bool) {
	if root == nil {
		return
	}
	walk(root, 0, fn)
}

func walk(n *Node, depth int, fn func(*Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		walk(c, depth+1, fn)
	}
}

// FindNodes returns every node under scope (inclusive) whose name matches
// pattern, in document order. A nil scope searches the whole tree.
func FindNodes(t *Tree, pattern *regexp.Regexp, scope *Node) []*Node {
	if scope == nil {
		if t == nil {
			return nil
		}
		scope = t.Root
	}
	var out []*Node
	Walk(scope, func(n *Node, _ int) bool {
		if pattern.MatchString(n.Name) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// FindMasterAndChildren locates the nth (0-based) node under scope
// matching containerPattern and returns it with those of its direct
// children whose names match childPattern. A nil childPattern keeps every
// child. It returns a nil master when there are fewer matches.
func FindMasterAndChildren(t *Tree, containerPattern, childPattern *regexp.Regexp, scope *Node, nth int) (master *Node, children []*Node) {
	master = FindNth(t, containerPattern, scope, nth)
	if master == nil {
		return nil, nil
	}
	for _, c := range master.Children {
		if childPattern == nil || childPattern.MatchString(c.Name) {
			children = append(children, c)
		}
	}
	return master, children
}

// FindNth returns the nth (0-based) node under scope matching pattern, or
// nil when there are fewer matches.
func FindNth(t *Tree, pattern *regexp.Regexp, scope *Node, nth int) *Node {
	found := FindNodes(t, pattern, scope)
	if nth < 0 || nth >= len(found) {
		return nil
	}
	return found[nth]
}

// Descendants returns the nodes of kind k strictly below n in document
// order.
func Descendants(n *Node, k Kind) []*Node {
	var out []*Node
	Walk(n, func(c *Node, depth int) bool {
		if depth > 0 && c.Kind == k {
			out = append(out, c)
		}
		return true
	})
	return out
}
