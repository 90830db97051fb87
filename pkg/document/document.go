// Package document assembles a rendered chart and its payload into an
// accessible HTML page.
//
// The payload is attached to the chart's root <svg> element as an
// attribute, where the browser runtime picks it up and binds its
// selectors to the drawn elements.
package document

import (
	"bytes"
	"encoding/json"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/matzehuels/maidr/pkg/errors"
)

// Runtime defaults.
const (
	DefaultAttribute = "maidr-data"
	DefaultScriptURL = "https://cdn.jsdelivr.net/npm/maidr@latest/dist/maidr.js"
	DefaultStyleURL  = "https://cdn.jsdelivr.net/npm/maidr@latest/dist/maidr_style.css"
)

// Options configures document assembly.
type Options struct {
	// Attribute is the name of the payload attribute on the <svg>.
	Attribute string
	ScriptURL string
	StyleURL  string
	Title     string
	// Description is Markdown rendered above the chart.
	Description string
}

func (o *Options) setDefaults() {
	if o.Attribute == "" {
		o.Attribute = DefaultAttribute
	}
	if o.ScriptURL == "" {
		o.ScriptURL = DefaultScriptURL
	}
	if o.StyleURL == "" {
		o.StyleURL = DefaultStyleURL
	}
}

// Embed returns the SVG export with payload set as attr on its root
// element. Any existing value is replaced.
func Embed(export []byte, payload any, attr string) ([]byte, error) {
	if attr == "" {
		attr = DefaultAttribute
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode payload")
	}
	root, err := parseSVG(export)
	if err != nil {
		return nil, err
	}
	setAttr(root, attr, string(data))

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render svg")
	}
	return buf.Bytes(), nil
}

// parseSVG returns the first <svg> element of the export.
func parseSVG(export []byte) (*html.Node, error) {
	doc, err := html.Parse(bytes.NewReader(export))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse export")
	}
	svg := find(doc, atom.Svg)
	if svg == nil {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "export has no <svg> element")
	}
	if svg.Parent != nil {
		svg.Parent.RemoveChild(svg)
	}
	return svg, nil
}

func find(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && (n.DataAtom == a || n.Data == a.String()) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, a); found != nil {
			return found
		}
	}
	return nil
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// Payload reads the payload attribute back from a document or export.
func Payload(doc []byte, attr string) (json.RawMessage, error) {
	if attr == "" {
		attr = DefaultAttribute
	}
	svg, err := parseSVG(doc)
	if err != nil {
		return nil, err
	}
	for _, a := range svg.Attr {
		if a.Key == attr {
			return json.RawMessage(a.Val), nil
		}
	}
	return nil, errors.New(errors.ErrCodeNotFound, "no %s attribute on <svg>", attr)
}

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="{{.StyleURL}}">
<script type="text/javascript" src="{{.ScriptURL}}"></script>
</head>
<body>
{{- if .Description}}
<div class="maidr-description">
{{.Description}}</div>
{{- end}}
<div class="maidr-chart">
{{.Chart}}
</div>
</body>
</html>
`))

// HTML assembles a standalone page around the export with payload
// embedded.
func HTML(export []byte, payload any, opts Options) ([]byte, error) {
	opts.setDefaults()
	chart, err := Embed(export, payload, opts.Attribute)
	if err != nil {
		return nil, err
	}

	var desc bytes.Buffer
	if strings.TrimSpace(opts.Description) != "" {
		if err := goldmark.Convert([]byte(opts.Description), &desc); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "render description")
		}
	}

	title := opts.Title
	if title == "" {
		title = "Chart"
	}
	var buf bytes.Buffer
	err = page.Execute(&buf, struct {
		Title, StyleURL, ScriptURL string
		Description, Chart         template.HTML
	}{
		Title:       title,
		StyleURL:    opts.StyleURL,
		ScriptURL:   opts.ScriptURL,
		Description: template.HTML(desc.String()),
		Chart:       template.HTML(chart),
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "execute page template")
	}
	return buf.Bytes(), nil
}
