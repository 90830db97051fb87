package tree

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"
)

// ToDOT converts the tree to Graphviz DOT. Leaf runs of the same kind
// under one parent are collapsed into a single summary node so large
// charts stay readable.
func ToDOT(t *Tree) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12];\n")
	buf.WriteString("\n")

	if t.Root != nil {
		writeDOT(&buf, t.Root)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func writeDOT(buf *bytes.Buffer, n *Node) {
	fmt.Fprintf(buf, "  %q [label=%q%s];\n", n.Name, n.Name+"\n"+n.Kind.String(), dotStyle(n.Kind))

	for i := 0; i < len(n.Children); {
		c := n.Children[i]
		j := i + 1
		for j < len(n.Children) && len(c.Children) == 0 && len(n.Children[j].Children) == 0 && n.Children[j].Kind == c.Kind {
			j++
		}
		if j-i > 2 {
			id := fmt.Sprintf("%s[%d:%d]", n.Name, i, j)
			label := fmt.Sprintf("%d × %s\n%s … %s", j-i, c.Kind, c.Name, n.Children[j-1].Name)
			fmt.Fprintf(buf, "  %q [label=%q%s];\n", id, label, dotStyle(c.Kind))
			fmt.Fprintf(buf, "  %q -> %q;\n", n.Name, id)
			i = j
			continue
		}
		fmt.Fprintf(buf, "  %q -> %q;\n", n.Name, c.Name)
		writeDOT(buf, c)
		i++
	}
}

func dotStyle(k Kind) string {
	switch k {
	case KindPanel:
		return ", fillcolor=\"#dbeafe\""
	case KindContainer:
		return ""
	}
	return ", style=\"rounded,filled,dashed\", fillcolor=\"#f3f4f6\""
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

// Outline renders the tree as an indented text listing.
func Outline(t *Tree) string {
	var b strings.Builder
	Walk(t.Root, func(n *Node, depth int) bool {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(n.Name)
		b.WriteString(" (")
		b.WriteString(n.Kind.String())
		b.WriteString(")\n")
		return true
	})
	return b.String()
}
