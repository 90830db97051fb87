package calllog

import (
	"strconv"
	"strings"

	"github.com/matzehuels/maidr/pkg/errors"
	"github.com/matzehuels/maidr/pkg/plot"
)

// ToSpec converts captured calls into a chart spec.
//
// barplot, hist, plot and boxplot start a new plot; lines and points add a
// layer to the most recent one. Several plots become a composition whose
// column count comes from a preceding "par mfrow=rows,cols" call, or one
// row when there is none.
func ToSpec(calls []Call) (*plot.Spec, error) {
	var (
		plots []*plot.Spec
		cur   *plot.Spec
		ncol  int
	)
	for i, c := range calls {
		var err error
		switch c.Func {
		case "par":
			if v := c.Args["mfrow"]; len(v) == 2 {
				if ncol, err = strconv.Atoi(v[1]); err != nil || ncol < 1 {
					return nil, errors.New(errors.ErrCodeInvalidInput, "call %d: bad mfrow %v", i+1, v)
				}
			}
		case "barplot", "hist", "plot", "boxplot":
			if cur, err = newPlot(c); err != nil {
				return nil, wrapCall(err, i, c)
			}
			plots = append(plots, cur)
		case "lines", "points":
			if cur == nil {
				return nil, errors.New(errors.ErrCodeInvalidSpec, "call %d: %s before any plot", i+1, c.Func)
			}
			geom := "line"
			if c.Func == "points" {
				geom = "point"
			}
			l, err := xyLayer(c, geom)
			if err != nil {
				return nil, wrapCall(err, i, c)
			}
			cur.Layers = append(cur.Layers, l)
		default:
			return nil, errors.New(errors.ErrCodeUnsupported, "call %d: unsupported function %q", i+1, c.Func)
		}
	}

	switch len(plots) {
	case 0:
		return nil, errors.New(errors.ErrCodeInvalidSpec, "no plotting calls")
	case 1:
		return plots[0], nil
	}
	return &plot.Spec{Composition: &plot.Composition{NCol: ncol, Plots: plots}}, nil
}

func wrapCall(err error, i int, c Call) error {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInvalidInput
	}
	return errors.Wrap(code, err, "call %d (%s)", i+1, c.Func)
}

func newPlot(c Call) (*plot.Spec, error) {
	p := &plot.Spec{
		Title: c.Scalar("main"),
		Axes:  plot.Axes{X: c.Scalar("xlab"), Y: c.Scalar("ylab")},
	}
	var (
		layers []plot.Layer
		err    error
	)
	switch c.Func {
	case "barplot":
		layers, err = barplot(c)
	case "hist":
		layers, err = hist(c)
	case "boxplot":
		layers, err = boxplot(c)
	case "plot":
		layers, err = scatter(c)
	}
	if err != nil {
		return nil, err
	}
	p.Layers = layers
	return p, nil
}

func required(c Call, name string, pos int) ([]string, error) {
	v := c.Arg(name, pos)
	if len(v) == 0 || (len(v) == 1 && v[0] == "") {
		return nil, errors.New(errors.ErrCodeMissingBinding, "missing argument %q", name)
	}
	return v, nil
}

func flag(c Call, name string) bool {
	switch strings.ToUpper(c.Scalar(name)) {
	case "TRUE", "T", "1":
		return true
	}
	return false
}

func sequence(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i + 1)
	}
	return out
}

// barplot reads heights as a vector, or as a column-major matrix with one
// row per legend.text entry.
func barplot(c Call) ([]plot.Layer, error) {
	heights, err := required(c, "height", 0)
	if err != nil {
		return nil, err
	}
	groups := c.Args["legend.text"]
	rows := max(len(groups), 1)
	if len(heights)%rows != 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput,
			"%d heights do not fill %d rows", len(heights), rows)
	}
	bars := len(heights) / rows
	names := c.Arg("names.arg", -1)
	if names == nil {
		names = sequence(bars)
	}
	if len(names) != bars {
		return nil, errors.New(errors.ErrCodeInvalidInput, "%d names for %d bars", len(names), bars)
	}

	if len(groups) == 0 {
		d, err := plot.FromColumns("barplot",
			plot.Column{Name: "x", Values: names, Levels: names},
			plot.Column{Name: "y", Values: heights})
		if err != nil {
			return nil, err
		}
		return []plot.Layer{{Geom: "bar", Stat: plot.StatIdentity, Aes: plot.Aes{X: "x", Y: "y"}, Data: d}}, nil
	}

	xs := make([]string, len(heights))
	fills := make([]string, len(heights))
	for i := range heights {
		xs[i] = names[i/rows]
		fills[i] = groups[i%rows]
	}
	d, err := plot.FromColumns("barplot",
		plot.Column{Name: "x", Values: xs, Levels: names},
		plot.Column{Name: "fill", Values: fills, Levels: groups},
		plot.Column{Name: "y", Values: heights})
	if err != nil {
		return nil, err
	}
	pos := plot.PositionStack
	if flag(c, "beside") {
		pos = plot.PositionDodge
	}
	return []plot.Layer{{
		Geom: "bar", Stat: plot.StatIdentity, Position: pos,
		Aes:  plot.Aes{X: "x", Y: "y", Fill: "fill"},
		Data: d,
	}}, nil
}

func hist(c Call) ([]plot.Layer, error) {
	x, err := required(c, "x", 0)
	if err != nil {
		return nil, err
	}
	d, err := plot.FromColumns("hist", plot.Column{Name: "x", Values: x})
	if err != nil {
		return nil, err
	}
	l := plot.Layer{Geom: "histogram", Stat: plot.StatBin, Aes: plot.Aes{X: "x"}, Data: d}
	if b := c.Scalar("breaks"); b != "" {
		n, err := strconv.Atoi(b)
		if err != nil || n < 1 {
			return nil, errors.New(errors.ErrCodeInvalidInput, "breaks must be a bin count, got %q", b)
		}
		l.Bins = n
	}
	return []plot.Layer{l}, nil
}

func boxplot(c Call) ([]plot.Layer, error) {
	x, err := required(c, "x", 0)
	if err != nil {
		return nil, err
	}
	cols := []plot.Column{{Name: "value", Values: x}}
	g := c.Args["g"]
	if g != nil {
		cols = append(cols, plot.Column{Name: "group", Values: g})
	}
	d, err := plot.FromColumns("boxplot", cols...)
	if err != nil {
		return nil, err
	}

	aes := plot.Aes{Y: "value"}
	if g != nil {
		aes.X = "group"
	}
	if flag(c, "horizontal") {
		aes.X, aes.Y = aes.Y, aes.X
	}
	return []plot.Layer{{Geom: "boxplot", Stat: plot.StatBoxplot, Aes: aes, Data: d}}, nil
}

// scatter handles plot(), whose type argument picks points, lines or both.
func scatter(c Call) ([]plot.Layer, error) {
	var geoms []string
	switch c.Scalar("type") {
	case "", "p":
		geoms = []string{"point"}
	case "l":
		geoms = []string{"line"}
	case "b", "o":
		geoms = []string{"line", "point"}
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "plot type %q", c.Scalar("type"))
	}
	var layers []plot.Layer
	for _, g := range geoms {
		l, err := xyLayer(c, g)
		if err != nil {
			return nil, err
		}
		layers = append(layers, l)
	}
	return layers, nil
}

// xyLayer reads x and y vectors. A lone vector is y against its index.
func xyLayer(c Call, geom string) (plot.Layer, error) {
	x, y := c.Arg("x", 0), c.Arg("y", 1)
	switch {
	case x == nil && y == nil:
		return plot.Layer{}, errors.New(errors.ErrCodeMissingBinding, "missing argument \"x\"")
	case y == nil:
		x, y = sequence(len(x)), x
	case x == nil:
		x = sequence(len(y))
	}
	d, err := plot.FromColumns(geom,
		plot.Column{Name: "x", Values: x},
		plot.Column{Name: "y", Values: y})
	if err != nil {
		return plot.Layer{}, err
	}
	return plot.Layer{Geom: geom, Stat: plot.StatIdentity, Aes: plot.Aes{X: "x", Y: "y"}, Data: d}, nil
}
