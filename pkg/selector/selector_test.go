package selector

import (
	"testing"

	"github.com/matzehuels/maidr/pkg/errors"
	"github.com/matzehuels/maidr/pkg/tree"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"geom_rect.rect.3", `geom_rect\.rect\.3`},
		{"panel-1-1", "panel-1-1"},
		{"1abc", `\31 abc`},
		{"-1", `-\31 `},
		{"-", `\-`},
		{"a b", `a\ b`},
		{"a:b", `a\:b`},
		{"größe", "größe"},
		{"tab\there", `tab\9 here`},
	}

	for _, tt := range tests {
		if got := Escape(tt.in); got != tt.want {
			t.Errorf("Escape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	names := []string{
		"geom_rect.rect.3",
		"GRID.polyline.12",
		"geom_boxplot.gTree.7",
		"panel-2-1.3",
		"axes.4",
		"1.leading.digit",
		"-9",
		"with space",
		"quote\"and'apostrophe",
		"back\\slash",
		"ünïcödé.name",
		"ctl\x01char",
	}

	for _, name := range names {
		for _, tag := range []string{"", "rect", "polyline"} {
			sel := Build(name, tag)
			got, err := Parse(sel)
			if err != nil {
				t.Errorf("Parse(%q): %v", sel, err)
				continue
			}
			if got.ID != name {
				t.Errorf("Parse(Build(%q, %q)).ID = %q", name, tag, got.ID)
			}
			if got.Tag != tag {
				t.Errorf("Parse(Build(%q, %q)).Tag = %q", name, tag, got.Tag)
			}
		}

		sel := NthOfType(name, "polyline", 2)
		got, err := Parse(sel)
		if err != nil {
			t.Errorf("Parse(%q): %v", sel, err)
			continue
		}
		if got.ID != name || !got.Child || got.Nth != 2 {
			t.Errorf("Parse(%q) = %+v", sel, got)
		}
	}
}

func TestBuildFormats(t *testing.T) {
	if got := Build("geom_rect.rect.3", "rect"); got != `#geom_rect\.rect\.3 rect` {
		t.Errorf("Build() = %q", got)
	}
	if got := NthOfType("GRID.polyline.2", "polyline", 1); got != `#GRID\.polyline\.2 > polyline:nth-of-type(1)` {
		t.Errorf("NthOfType() = %q", got)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"",
		"rect",
		"#",
		"#a.b",
		"#a rect:first-child",
		"#a rect:nth-of-type(0)",
		"#a rect:nth-of-type(x)",
		"#a 9rect",
	}
	for _, sel := range tests {
		if _, err := Parse(sel); !errors.Is(err, errors.ErrCodeInvalidSelector) {
			t.Errorf("Parse(%q) error = %v, want %s", sel, err, errors.ErrCodeInvalidSelector)
		}
	}
}

func lineTree() *tree.Tree {
	lines := (&tree.Node{Kind: tree.KindContainer, Name: "GRID.polyline.4"}).Add(
		&tree.Node{Kind: tree.KindPolyline, Name: "GRID.polyline.4.1"},
		&tree.Node{Kind: tree.KindPolyline, Name: "GRID.polyline.4.2"},
	)
	bars := (&tree.Node{Kind: tree.KindContainer, Name: "geom_rect.rect.2"}).Add(
		&tree.Node{Kind: tree.KindRect, Name: "geom_rect.rect.2.1"},
		(&tree.Node{Kind: tree.KindContainer, Name: "nested"}).Add(
			&tree.Node{Kind: tree.KindRect, Name: "geom_rect.rect.2.2"},
		),
		&tree.Node{Kind: tree.KindRect, Name: "geom_rect.rect.2.3"},
	)
	panel := (&tree.Node{Kind: tree.KindPanel, Name: "panel-1-1"}).Add(bars, lines)
	return &tree.Tree{Root: (&tree.Node{Kind: tree.KindContainer, Name: "figure.1"}).Add(panel)}
}

func TestResolve(t *testing.T) {
	tr := lineTree()
	tests := []struct {
		sel  string
		want []string
	}{
		{`#geom_rect\.rect\.2 rect`, []string{"geom_rect.rect.2.1", "geom_rect.rect.2.2", "geom_rect.rect.2.3"}},
		{`#geom_rect\.rect\.2 > rect`, []string{"geom_rect.rect.2.1", "geom_rect.rect.2.3"}},
		{`#GRID\.polyline\.4 > polyline:nth-of-type(2)`, []string{"GRID.polyline.4.2"}},
		{`#GRID\.polyline\.4 > polyline:nth-of-type(3)`, nil},
		{`#panel-1-1`, []string{"panel-1-1"}},
		{`#missing rect`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.sel, func(t *testing.T) {
			got, err := Resolve(tr, tt.sel)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Resolve() = %d nodes, want %d", len(got), len(tt.want))
			}
			for i, n := range got {
				if n.Name != tt.want[i] {
					t.Errorf("node %d = %q, want %q", i, n.Name, tt.want[i])
				}
			}
		})
	}
}

func TestResolveHTML(t *testing.T) {
	doc := []byte(`<svg xmlns="http://www.w3.org/2000/svg">
<g id="geom_rect.rect.2"><rect id="geom_rect.rect.2.1"/><rect id="geom_rect.rect.2.2"/></g>
<g id="GRID.polyline.4"><polyline id="a"/><polyline id="b"/></g>
</svg>`)

	tests := []struct {
		sel  string
		want int
	}{
		{`#geom_rect\.rect\.2 rect`, 2},
		{`#GRID\.polyline\.4 > polyline:nth-of-type(2)`, 1},
		{`#GRID\.polyline\.4`, 1},
		{`#nope rect`, 0},
	}
	for _, tt := range tests {
		got, err := ResolveHTML(doc, tt.sel)
		if err != nil {
			t.Fatalf("ResolveHTML(%q): %v", tt.sel, err)
		}
		if got != tt.want {
			t.Errorf("ResolveHTML(%q) = %d, want %d", tt.sel, got, tt.want)
		}
	}
}
