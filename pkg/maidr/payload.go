package maidr

import "encoding/json"

// Payload is the accessibility description of a chart. Subplots form a
// grid indexed [row][col].
type Payload struct {
	ID       string      `json:"id"`
	Subplots [][]Subplot `json:"subplots"`
}

// Subplot is one panel of the chart.
type Subplot struct {
	ID     string  `json:"id"`
	Layers []Layer `json:"layers"`
}

// Layer is the payload of one chart layer in one panel.
type Layer struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Axes        Axes   `json:"axes"`
	Orientation string `json:"orientation,omitempty"`
	// Data holds the kind's data points: a flat list for bar, hist, point
	// and box layers, a list of groups for stacked, dodged, line and
	// smooth layers.
	Data any `json:"data"`
	// Selectors holds CSS selectors addressing the rendered elements of
	// Data. Box layers carry one [BoxSelector] per box.
	Selectors any `json:"selectors"`
}

// Axes holds axis labels.
type Axes struct {
	X string `json:"x"`
	Y string `json:"y"`
}

// BarPoint is one bar. Fill is set for stacked and dodged bars.
type BarPoint struct {
	X    any     `json:"x"`
	Y    float64 `json:"y"`
	Fill string  `json:"fill,omitempty"`
}

// HistogramPoint is one bin.
type HistogramPoint struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	XMin float64 `json:"xMin"`
	XMax float64 `json:"xMax"`
	YMin float64 `json:"yMin"`
	YMax float64 `json:"yMax"`
}

// LinePoint is one vertex of a line.
type LinePoint struct {
	X    any     `json:"x"`
	Y    float64 `json:"y"`
	Fill string  `json:"fill,omitempty"`
}

// ScatterPoint is one point of a scatter layer.
type ScatterPoint struct {
	X     any    `json:"x"`
	Y     any    `json:"y"`
	Color string `json:"color,omitempty"`
}

// BoxPoint summarizes one box.
type BoxPoint struct {
	Fill          string    `json:"fill"`
	LowerOutliers []float64 `json:"lowerOutliers"`
	Min           float64   `json:"min"`
	Q1            float64   `json:"q1"`
	Q2            float64   `json:"q2"`
	Q3            float64   `json:"q3"`
	Max           float64   `json:"max"`
	UpperOutliers []float64 `json:"upperOutliers"`
}

// BoxSelector addresses the parts of one rendered box.
type BoxSelector struct {
	LowerOutliers []string `json:"lowerOutliers"`
	Min           string   `json:"min"`
	IQ            string   `json:"iq"`
	Q2            string   `json:"q2"`
	Max           string   `json:"max"`
	UpperOutliers []string `json:"upperOutliers"`
}

// SmoothPoint is one vertex of a fitted curve with its device position.
type SmoothPoint struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	SvgX float64 `json:"svg_x"`
	SvgY float64 `json:"svg_y"`
}

// Box orientations.
const (
	OrientationVertical   = "vert"
	OrientationHorizontal = "horz"
)

// JSON encodes the payload.
func (p *Payload) JSON() ([]byte, error) {
	return json.Marshal(p)
}

// Layers returns every layer of the payload in row-major panel order.
func (p *Payload) Layers() []*Layer {
	var out []*Layer
	for r := range p.Subplots {
		for c := range p.Subplots[r] {
			for i := range p.Subplots[r][c].Layers {
				out = append(out, &p.Subplots[r][c].Layers[i])
			}
		}
	}
	return out
}

// SelectorList flattens a layer's selectors into plain selector strings.
func (l *Layer) SelectorList() []string {
	switch s := l.Selectors.(type) {
	case []string:
		return s
	case []BoxSelector:
		var out []string
		for _, b := range s {
			out = append(out, b.LowerOutliers...)
			for _, v := range []string{b.Min, b.IQ, b.Q2, b.Max} {
				if v != "" {
					out = append(out, v)
				}
			}
			out = append(out, b.UpperOutliers...)
		}
		return out
	}
	return nil
}

// pointCount returns the number of data points in a layer's data.
func pointCount(data any) int {
	switch d := data.(type) {
	case []BarPoint:
		return len(d)
	case [][]BarPoint:
		return nestedLen(d)
	case []HistogramPoint:
		return len(d)
	case [][]LinePoint:
		return nestedLen(d)
	case []ScatterPoint:
		return len(d)
	case []BoxPoint:
		return len(d)
	case [][]SmoothPoint:
		return nestedLen(d)
	}
	return 0
}

func nestedLen[T any](groups [][]T) int {
	n := 0
	for _, g := range groups {
		n += len(g)
	}
	return n
}
