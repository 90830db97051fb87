package maidr

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/maidr/pkg/errors"
	"github.com/matzehuels/maidr/pkg/observability"
	"github.com/matzehuels/maidr/pkg/plot"
	"github.com/matzehuels/maidr/pkg/render"
	"github.com/matzehuels/maidr/pkg/tree"
)

// Orchestrator runs the engine over chart specs. It holds no per-run
// state, so one Orchestrator may serve concurrent runs.
type Orchestrator struct {
	Renderer render.Renderer
	Logger   *log.Logger
	// NewID generates payload, subplot and layer ids.
	NewID func() string
}

// NewOrchestrator creates an orchestrator drawing with r. A nil logger
// logs to the default logger.
func NewOrchestrator(r render.Renderer, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{Renderer: r, Logger: logger, NewID: uuid.NewString}
}

// Result is the outcome of a run.
type Result struct {
	Payload *Payload
	// Export is the rendered SVG document the selectors address.
	Export []byte
	Tree   *tree.Tree
	// Warnings lists the layers that were degraded or lost selectors.
	Warnings []Warning
	Stats    Stats
}

// Stats holds run statistics.
type Stats struct {
	Layers     int
	Degraded   int
	Nodes      int
	RenderTime time.Duration
	Duration   time.Duration
}

// Warning records a non-fatal problem with one layer.
type Warning struct {
	Plot    int // 1-based leaf plot
	Layer   int // 1-based layer; 0 for chart-wide problems
	Panel   string
	Kind    Kind
	Code    errors.Code
	Message string
}

func (w Warning) String() string {
	where := fmt.Sprintf("plot %d", w.Plot)
	if w.Layer > 0 {
		where += fmt.Sprintf(" layer %d (%s)", w.Layer, w.Kind)
	}
	if w.Panel != "" {
		where += " in " + w.Panel
	}
	return fmt.Sprintf("%s: [%s] %s", where, w.Code, w.Message)
}

// Run processes a spec and returns its payload and rendered chart. The
// spec and its datasets are not modified.
//
// Run fails only when the spec is structurally invalid, the context is
// cancelled, or the renderer fails. Layer problems degrade the layer and
// are reported in Result.Warnings.
func (o *Orchestrator) Run(ctx context.Context, spec *plot.Spec) (res *Result, err error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	rc := newRunContext(ctx, o, spec)
	hooks := observability.Engine()
	hooks.OnRunStart(ctx, rc.layerCount())
	defer func() {
		hooks.OnRunComplete(ctx, rc.layerCount(), time.Since(start), err)
	}()

	if err := rc.prepare(); err != nil {
		return nil, err
	}

	renderStart := time.Now()
	out, err := o.Renderer.Render(ctx, rc.spec)
	renderTime := time.Since(renderStart)
	nodes := 0
	if out != nil {
		nodes = out.Tree.Len()
	}
	hooks.OnRenderComplete(ctx, nodes, renderTime, err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Wrap(errors.ErrCodeRenderFailed, err, "render chart")
	}
	if out == nil || out.Tree == nil || out.Tree.Root == nil {
		return nil, errors.New(errors.ErrCodeRenderFailed, "renderer returned no tree")
	}
	rc.logger.Debug("rendered chart", "nodes", nodes, "duration", renderTime)

	payload := rc.assemble(out)
	res = &Result{
		Payload:  payload,
		Export:   out.Export,
		Tree:     out.Tree,
		Warnings: rc.warnings,
		Stats: Stats{
			Layers:     rc.layerCount(),
			Degraded:   rc.degraded,
			Nodes:      nodes,
			RenderTime: renderTime,
			Duration:   time.Since(start),
		},
	}
	rc.logger.Info("processed chart",
		"layers", res.Stats.Layers,
		"degraded", res.Stats.Degraded,
		"duration", res.Stats.Duration)
	return res, nil
}
