package svg

import (
	"math"
	"strconv"

	"github.com/aclements/go-moremath/scale"

	"github.com/matzehuels/maidr/pkg/render"
)

// expand is the fraction of the data range added on both sides of a
// continuous axis.
const expand = 0.05

// axis maps data coordinates to the unit interval.
type axis struct {
	levels []string
	lin    scale.Linear
}

type tick struct {
	value float64
	label string
}

// discreteAxis places category codes 1..n at evenly spaced slots.
func discreteAxis(levels []string) axis {
	return axis{levels: levels, lin: scale.Linear{Min: 0.4, Max: float64(len(levels)) + 0.6}}
}

// continuousAxis spans [lo, hi] plus a small margin.
func continuousAxis(lo, hi float64) axis {
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) || math.IsNaN(lo) || math.IsNaN(hi) {
		lo, hi = 0, 1
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	pad := (hi - lo) * expand
	return axis{lin: scale.Linear{Min: lo - pad, Max: hi + pad}}
}

// Map returns the position of v in [0, 1].
func (a axis) Map(v float64) float64 {
	return a.lin.Map(v)
}

func (a axis) ticks() []tick {
	if a.levels != nil {
		out := make([]tick, len(a.levels))
		for i, l := range a.levels {
			out[i] = tick{value: float64(i + 1), label: l}
		}
		return out
	}
	major, _ := a.lin.Ticks(scale.TickOptions{Max: 6})
	out := make([]tick, 0, len(major))
	for _, v := range major {
		if v < a.lin.Min || v > a.lin.Max {
			continue
		}
		out = append(out, tick{value: v, label: strconv.FormatFloat(v, 'g', 6, 64)})
	}
	return out
}

// extent accumulates the data range of an axis.
type extent struct {
	lo, hi float64
}

func newExtent() extent { return extent{lo: math.Inf(1), hi: math.Inf(-1)} }

func (e *extent) add(vs ...float64) {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		e.lo, e.hi = math.Min(e.lo, v), math.Max(e.hi, v)
	}
}

// plotAxes computes the shared x and y axes of a plot from its built layers.
func plotAxes(pd render.PlotData, zeroY bool) (x, y axis) {
	var xLevels, yLevels []string
	xe, ye := newExtent(), newExtent()
	for _, ld := range pd.Layers {
		if ld.XLevels != nil {
			xLevels = ld.XLevels
		}
		if ld.YLevels != nil {
			yLevels = ld.YLevels
		}
		for _, r := range ld.Rows {
			xe.add(r.XMin, r.XMax)
			ye.add(r.YMin, r.YMax)
		}
	}
	if zeroY {
		ye.add(0)
	}
	if xLevels != nil {
		x = discreteAxis(xLevels)
	} else {
		x = continuousAxis(xe.lo, xe.hi)
	}
	if yLevels != nil {
		y = discreteAxis(yLevels)
	} else {
		y = continuousAxis(ye.lo, ye.hi)
	}
	return x, y
}
