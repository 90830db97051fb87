package maidr

import (
	"fmt"
	"math"
	"regexp"

	"github.com/matzehuels/maidr/pkg/plot"
	"github.com/matzehuels/maidr/pkg/render"
	"github.com/matzehuels/maidr/pkg/selector"
	"github.com/matzehuels/maidr/pkg/tree"
)

var (
	segmentsPattern = regexp.MustCompile(`^geom_segment\.segments\.\d+$`)
	outliersPattern = regexp.MustCompile(`^geom_boxplot\.outliers\.\d+$`)
	crossbarPattern = regexp.MustCompile(`^geom_crossbar\.gTree\.\d+$`)
)

// boxProcessor handles box plots, one box per category.
type boxProcessor struct{}

func (boxProcessor) Kind() Kind            { return KindBox }
func (boxProcessor) NeedsReordering() bool { return false }

func (boxProcessor) ReorderDataset(_ ReorderEnv, data *plot.Dataset) (*plot.Dataset, error) {
	return data, nil
}

// horizontalBoxes infers orientation from the built rows: the category
// axis holds whole-number codes and the other coordinate is zero. Rows
// that fit both read as vertical.
func horizontalBoxes(rows []render.Row) bool {
	if len(rows) == 0 {
		return false
	}
	isCode := func(v float64) bool { return v >= 1 && v == math.Trunc(v) }
	for _, r := range rows {
		if isCode(r.X) && r.Y == 0 {
			return false
		}
	}
	for _, r := range rows {
		if !isCode(r.Y) || r.X != 0 {
			return false
		}
	}
	return true
}

func (boxProcessor) Orientation(in *LayerInput) string {
	if horizontalBoxes(in.Built.Rows) {
		return OrientationHorizontal
	}
	return OrientationVertical
}

func (boxProcessor) ExtractData(in *LayerInput) (any, error) {
	horiz := horizontalBoxes(in.Built.Rows)
	out := make([]BoxPoint, 0, len(in.Rows))
	for _, r := range in.Rows {
		label, _ := levelAt(in.Built.XLevels, r.X)
		if horiz {
			label, _ = levelAt(in.Built.YLevels, r.Y)
		}
		p := BoxPoint{
			Fill:          label,
			LowerOutliers: []float64{},
			Min:           r.WhiskerLow,
			Q1:            r.Lower,
			Q2:            r.Middle,
			Q3:            r.Upper,
			Max:           r.WhiskerHigh,
			UpperOutliers: []float64{},
		}
		for _, o := range r.Outliers {
			if o < r.WhiskerLow {
				p.LowerOutliers = append(p.LowerOutliers, o)
			} else {
				p.UpperOutliers = append(p.UpperOutliers, o)
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func (boxProcessor) GenerateSelectors(in *LayerInput) (any, error) {
	g, bars := tree.FindMasterAndChildren(in.Tree, containerPattern(KindBox), crossbarPattern, in.Scope, in.Ordinal)
	if g == nil {
		return nil, fmt.Errorf("no box group %d in panel", in.Ordinal+1)
	}
	if len(bars) != len(in.Rows) {
		return nil, fmt.Errorf("box group %s has %d boxes for %d rows", g.Name, len(bars), len(in.Rows))
	}
	horiz := horizontalBoxes(in.Built.Rows)
	out := make([]BoxSelector, 0, len(bars))
	for _, bar := range bars {
		s, err := crossbarSelectors(bar, horiz)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// crossbarSelectors addresses the parts of one crossbar. Lower and upper
// parts are told apart by where they sit relative to the box.
func crossbarSelectors(bar *tree.Node, horiz bool) (BoxSelector, error) {
	var whiskers, median, outliers *tree.Node
	var box *tree.Node
	for _, c := range bar.Children {
		switch {
		case c.Kind == tree.KindPolygon:
			box = c
		case segmentsPattern.MatchString(c.Name) && len(c.Children) == 2:
			whiskers = c
		case segmentsPattern.MatchString(c.Name) && len(c.Children) == 1:
			median = c
		case outliersPattern.MatchString(c.Name):
			outliers = c
		}
	}
	if box == nil || whiskers == nil || median == nil {
		return BoxSelector{}, fmt.Errorf("crossbar %s is incomplete", bar.Name)
	}

	center := box.Bounds.Center()
	// below reports whether a node sits on the low-value side of the box.
	below := func(n *tree.Node) bool {
		p := n.Bounds.Center()
		if horiz {
			return p.X < center.X
		}
		return p.Y > center.Y
	}

	s := BoxSelector{
		LowerOutliers: []string{},
		IQ:            selector.Build(box.Name, ""),
		Q2:            selector.Build(median.Children[0].Name, ""),
		UpperOutliers: []string{},
	}
	lo, hi := whiskers.Children[0], whiskers.Children[1]
	if below(hi) && !below(lo) {
		lo, hi = hi, lo
	}
	s.Min, s.Max = selector.Build(lo.Name, ""), selector.Build(hi.Name, "")

	if outliers != nil {
		for _, m := range tree.Descendants(outliers, tree.KindMarker) {
			if below(m) {
				s.LowerOutliers = append(s.LowerOutliers, selector.Build(m.Name, ""))
			} else {
				s.UpperOutliers = append(s.UpperOutliers, selector.Build(m.Name, ""))
			}
		}
	}
	return s, nil
}
