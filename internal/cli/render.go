package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/maidr/pkg/pipeline"
	"github.com/matzehuels/maidr/pkg/plot"
)

// renderOpts holds the flags of the render command.
type renderOpts struct {
	output      string
	formats     []string
	width       float64
	height      float64
	bins        int
	palette     []string
	panelSuffix bool
	title       string
	description string
	scriptURL   string
	styleURL    string
	calls       bool
	noCache     bool
	refresh     bool
	store       string
}

func (c *CLI) renderCommand() *cobra.Command {
	var formatsStr string
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render [spec]",
		Short: "Render a chart and its accessibility payload",
		Long: `Render a chart spec (TOML or JSON) or a recorded call log (.log) and write
the payload as JSON, the chart as SVG with the payload attached, or a
standalone HTML page that loads the maidr runtime.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			if err := pipeline.ValidateFormats(opts.formats); err != nil {
				return err
			}
			runner, err := c.newRunner(cmd, opts.noCache, opts.store)
			if err != nil {
				return err
			}
			defer runner.Close()
			return c.runRender(cmd.Context(), runner, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format), base path (several), or - for stdout")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): html (default), svg, json (comma-separated)")
	cmd.Flags().Float64Var(&opts.width, "width", pipeline.DefaultWidth, "chart width in pixels")
	cmd.Flags().Float64Var(&opts.height, "height", pipeline.DefaultHeight, "chart height in pixels")
	cmd.Flags().IntVar(&opts.bins, "bins", 0, "default histogram bin count")
	cmd.Flags().StringSliceVar(&opts.palette, "palette", nil, "fill colors for grouped layers")
	cmd.Flags().BoolVar(&opts.panelSuffix, "panel-suffix", false, "suffix facet panel element names with a counter")
	cmd.Flags().StringVar(&opts.title, "title", "", "page title (html)")
	cmd.Flags().StringVar(&opts.description, "description", "", "markdown description shown above the chart (html)")
	cmd.Flags().StringVar(&opts.scriptURL, "script-url", "", "maidr runtime script URL (html)")
	cmd.Flags().StringVar(&opts.styleURL, "style-url", "", "maidr runtime stylesheet URL (html)")
	cmd.Flags().BoolVar(&opts.calls, "calls", false, "read the input as a call log regardless of extension")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached results")
	cmd.Flags().StringVar(&opts.store, "store", os.Getenv("MAIDR_STORE"), "record the run in a store (directory, sqlite:path or mongodb:// URI)")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, runner *pipeline.Runner, input string, opts renderOpts) error {
	c.Logger.Infof("Rendering %s", input)
	prog := newProgress(c.Logger)

	spec, err := loadSpec(input, opts.calls)
	if err != nil {
		return err
	}

	sp := newSpinner(ctx, "Rendering "+filepath.Base(input))
	sp.Start()
	result, err := runner.Execute(ctx, opts.pipelineOptions(spec))
	sp.Stop()
	if err != nil {
		return err
	}

	if opts.output == "-" {
		if len(opts.formats) != 1 {
			return fmt.Errorf("--output - needs exactly one format, got %d", len(opts.formats))
		}
		_, err := os.Stdout.Write(result.Artifacts[opts.formats[0]])
		return err
	}

	paths, err := writeArtifacts(result, input, opts)
	if err != nil {
		return err
	}
	prog.done("Rendered " + input)

	printSuccess("Rendered %s", input)
	printStats(result.Stats.Layers, result.Stats.Degraded, result.CacheInfo.EngineHit)
	for _, w := range result.Warnings {
		printWarning("%s", w)
	}
	for _, p := range paths {
		printFile(p)
	}
	if result.RunID != "" {
		printKeyValue("Run", result.RunID)
	}
	if containsFormat(opts.formats, pipeline.FormatJSON) && len(paths) > 0 {
		printNextStep("Browse the payload", "maidr inspect "+paths[0])
	}
	return nil
}

func (o renderOpts) pipelineOptions(spec *plot.Spec) pipeline.Options {
	return pipeline.Options{
		Spec:        spec,
		Width:       o.width,
		Height:      o.height,
		Bins:        o.bins,
		Palette:     o.palette,
		PanelSuffix: o.panelSuffix,
		Formats:     o.formats,
		Title:       o.title,
		Description: o.description,
		ScriptURL:   o.scriptURL,
		StyleURL:    o.styleURL,
		Refresh:     o.refresh,
	}
}

// writeArtifacts writes each format next to the input, or to the output
// path, and returns the paths written in format order.
func writeArtifacts(result *pipeline.Result, input string, opts renderOpts) ([]string, error) {
	var paths []string
	for _, format := range opts.formats {
		path := outputPath(opts.output, input, format, len(opts.formats) > 1)
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return paths, err
			}
		}
		if err := os.WriteFile(path, result.Artifacts[format], 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// outputPath picks the file for one format. A single format with an
// explicit output uses it as is; otherwise the format becomes the
// extension of the base path. A derived path never replaces the input.
func outputPath(output, input, format string, multiple bool) string {
	if output != "" && !multiple {
		return output
	}
	base := basePath(output, input)
	if path := base + "." + format; filepath.Clean(path) != filepath.Clean(input) {
		return path
	}
	return base + ".maidr." + format
}

// basePath strips a known format extension from output, or derives the
// base from input when output is empty.
func basePath(output, input string) string {
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	if pipeline.ValidFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}

func containsFormat(formats []string, f string) bool {
	for _, x := range formats {
		if x == f {
			return true
		}
	}
	return false
}
