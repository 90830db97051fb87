package maidr

import (
	"context"
	"math"

	"github.com/matzehuels/maidr/pkg/plot"
	"github.com/matzehuels/maidr/pkg/render"
	"github.com/matzehuels/maidr/pkg/tree"
)

// Processor handles one kind of layer.
//
// A processor may reorder its layer's dataset before the chart is drawn so
// that drawing order and payload order agree. After drawing, it extracts
// data from the built rows of one panel and generates selectors for the
// rendered elements.
type Processor interface {
	Kind() Kind
	NeedsReordering() bool
	// ReorderDataset returns a reordered copy of data. It must not
	// modify data.
	ReorderDataset(env ReorderEnv, data *plot.Dataset) (*plot.Dataset, error)
	ExtractData(in *LayerInput) (any, error)
	GenerateSelectors(in *LayerInput) (any, error)
}

// Orienter is implemented by processors whose layers carry an orientation.
type Orienter interface {
	Orientation(in *LayerInput) string
}

// ReorderEnv is what a processor may consult while reordering. Spec is the
// run's working copy; Build probes it without drawing.
type ReorderEnv struct {
	Ctx        context.Context
	Renderer   render.Renderer
	Spec       *plot.Spec
	PlotIndex  int
	LayerIndex int
}

func (env ReorderEnv) layer() *plot.Layer {
	return &env.Spec.Leaves()[env.PlotIndex].Layers[env.LayerIndex]
}

// probe computes the built rows of the env's layer with data substituted
// for its current dataset.
func (env ReorderEnv) probe(data *plot.Dataset) (*render.LayerData, error) {
	spec := env.Spec.WorkingCopy()
	spec.Leaves()[env.PlotIndex].SetLayerData(env.LayerIndex, data)
	built, err := env.Renderer.Build(env.Ctx, spec)
	if err != nil {
		return nil, err
	}
	ld := built.Layer(env.PlotIndex, env.LayerIndex)
	if ld == nil {
		return &render.LayerData{}, nil
	}
	return ld, nil
}

// LayerInput is the state of one layer in one panel after rendering.
type LayerInput struct {
	Layer *plot.Layer
	// Data is the dataset the layer was drawn from.
	Data *plot.Dataset
	// Built is the layer's built data across all panels; Rows are the
	// rows drawn in this panel.
	Built *render.LayerData
	Rows  []render.Row
	Tree  *tree.Tree
	// Scope is the panel node to search, or nil to search the whole tree.
	Scope *tree.Node
	// Ordinal counts the earlier layers of the same plot drawn into the
	// same kind of group.
	Ordinal int
}

// container returns the layer's rendered group in the panel, or nil.
func (in *LayerInput) container(k Kind) *tree.Node {
	pattern := containerPattern(k)
	if pattern == nil || in.Tree == nil {
		return nil
	}
	return tree.FindNth(in.Tree, pattern, in.Scope, in.Ordinal)
}

// xLabel returns the x value of a row: its category on a discrete axis,
// the number otherwise.
func (in *LayerInput) xLabel(r render.Row) any {
	if label, ok := levelAt(in.Built.XLevels, r.X); ok {
		return label
	}
	return r.X
}

func (in *LayerInput) yLabel(r render.Row) any {
	if label, ok := levelAt(in.Built.YLevels, r.Y); ok {
		return label
	}
	return r.Y
}

// category returns the category level of a group index, or "".
func (in *LayerInput) category(group int) string {
	col := in.Layer.Aes.Category()
	if col == "" {
		return ""
	}
	levels := in.Data.Levels(col)
	if group < 1 || group > len(levels) {
		return ""
	}
	return levels[group-1]
}

func levelAt(levels []string, code float64) (string, bool) {
	if len(levels) == 0 || code != math.Trunc(code) {
		return "", false
	}
	k := int(code)
	if k < 1 || k > len(levels) {
		return "", false
	}
	return levels[k-1], true
}

var factories = map[Kind]func() Processor{
	KindBar:        func() Processor { return barProcessor{} },
	KindStackedBar: func() Processor { return stackedProcessor{} },
	KindDodgedBar:  func() Processor { return dodgedProcessor{} },
	KindHistogram:  func() Processor { return histogramProcessor{} },
	KindLine:       func() Processor { return lineProcessor{} },
	KindPoint:      func() Processor { return pointProcessor{} },
	KindBox:        func() Processor { return boxProcessor{} },
	KindSmooth:     func() Processor { return smoothProcessor{} },
	KindUnknown:    func() Processor { return unknownProcessor{} },
}

// NewProcessor returns the processor for k. Kinds without a processor get
// the unknown processor.
func NewProcessor(k Kind) Processor {
	if f, ok := factories[k]; ok {
		return f()
	}
	return unknownProcessor{}
}

// emptyData and emptySelectors are the result of a layer with nothing to
// describe.
func emptyData() any      { return []any{} }
func emptySelectors() any { return []string{} }

type unknownProcessor struct{}

func (unknownProcessor) Kind() Kind            { return KindUnknown }
func (unknownProcessor) NeedsReordering() bool { return false }

func (unknownProcessor) ReorderDataset(_ ReorderEnv, data *plot.Dataset) (*plot.Dataset, error) {
	return data, nil
}

func (unknownProcessor) ExtractData(*LayerInput) (any, error)       { return emptyData(), nil }
func (unknownProcessor) GenerateSelectors(*LayerInput) (any, error) { return emptySelectors(), nil }
