package selector

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"

	"github.com/matzehuels/maidr/pkg/errors"
	"github.com/matzehuels/maidr/pkg/tree"
)

// Resolve returns the tree nodes a selector matches, in document order.
func Resolve(t *tree.Tree, sel string) ([]*tree.Node, error) {
	s, err := Parse(sel)
	if err != nil {
		return nil, err
	}
	root, ok := t.Lookup(s.ID)
	if !ok {
		return nil, nil
	}
	if s.Tag == "" {
		return []*tree.Node{root}, nil
	}

	var out []*tree.Node
	var visit func(parent *tree.Node, depth int)
	visit = func(parent *tree.Node, depth int) {
		seen := 0
		for _, c := range parent.Children {
			if c.Kind.Tag() == s.Tag {
				seen++
				if s.Nth == 0 || s.Nth == seen {
					out = append(out, c)
				}
			}
			if !s.Child {
				visit(c, depth+1)
			}
		}
	}
	visit(root, 0)
	if !s.Child {
		// A descendant walk visits parents before their children; restore
		// document order.
		out = documentOrder(root, out)
	}
	return out, nil
}

func documentOrder(root *tree.Node, nodes []*tree.Node) []*tree.Node {
	want := make(map[*tree.Node]bool, len(nodes))
	for _, n := range nodes {
		want[n] = true
	}
	ordered := make([]*tree.Node, 0, len(nodes))
	tree.Walk(root, func(n *tree.Node, _ int) bool {
		if want[n] {
			ordered = append(ordered, n)
		}
		return true
	})
	return ordered
}

// ResolveHTML counts the elements a selector matches in an SVG or HTML
// document.
func ResolveHTML(doc []byte, sel string) (int, error) {
	s, err := Parse(sel)
	if err != nil {
		return 0, err
	}
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse document")
	}

	target := findID(root, s.ID)
	if target == nil {
		return 0, nil
	}
	if s.Tag == "" {
		return 1, nil
	}

	tag := strings.ToLower(s.Tag)
	count := 0
	var visit func(parent *html.Node)
	visit = func(parent *html.Node) {
		seen := 0
		for c := parent.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if c.Data == tag {
				seen++
				if s.Nth == 0 || s.Nth == seen {
					count++
				}
			}
			if !s.Child {
				visit(c)
			}
		}
	}
	visit(target)
	return count, nil
}

func findID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findID(c, id); found != nil {
			return found
		}
	}
	return nil
}
