// Package pipeline runs the engine over a chart spec and assembles its
// artifacts, with caching. The CLI and the API server share it so both
// produce the same output for the same spec.
//
// # Stages
//
//  1. Engine: render the chart and build its payload (cached by spec hash)
//  2. Assemble: produce the requested formats from the engine result
//     (cached per format)
//  3. Record: store the run when the runner has a store
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Spec:    spec,
//	    Formats: []string{pipeline.FormatHTML},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	page := result.Artifacts[pipeline.FormatHTML]
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/maidr/pkg/cache"
	"github.com/matzehuels/maidr/pkg/document"
	"github.com/matzehuels/maidr/pkg/errors"
	"github.com/matzehuels/maidr/pkg/maidr"
	"github.com/matzehuels/maidr/pkg/plot"
	"github.com/matzehuels/maidr/pkg/render/svg"
)

// Default chart size in pixels.
const (
	DefaultWidth  = 640.0
	DefaultHeight = 480.0
)

// Output formats.
const (
	FormatJSON = "json" // payload only
	FormatSVG  = "svg"  // chart with the payload attribute
	FormatHTML = "html" // standalone page
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatJSON: true,
	FormatSVG:  true,
	FormatHTML: true,
}

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: json, svg, html)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// Options configures one pipeline run. It decodes from API requests; the
// spec itself travels separately.
type Options struct {
	Spec *plot.Spec `json:"-"`

	// Renderer options
	Width       float64  `json:"width,omitempty"`
	Height      float64  `json:"height,omitempty"`
	Palette     []string `json:"palette,omitempty"`
	Bins        int      `json:"bins,omitempty"`
	PanelSuffix bool     `json:"panel_suffix,omitempty"`

	// Document options
	Formats     []string `json:"formats,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	ScriptURL   string   `json:"script_url,omitempty"`
	StyleURL    string   `json:"style_url,omitempty"`

	// Refresh bypasses cached results.
	Refresh bool `json:"refresh,omitempty"`

	Logger *log.Logger `json:"-"`

	validated bool
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// Calling it again has no further effect.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Spec == nil {
		return errors.New(errors.ErrCodeInvalidInput, "spec is required")
	}
	if o.Width < 0 || o.Height < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "size must be positive, got %gx%g", o.Width, o.Height)
	}
	if o.Bins < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "bins must be positive, got %d", o.Bins)
	}
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatHTML}
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if o.Title == "" {
		o.Title = o.Spec.Title
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// Renderer returns the chart renderer the options describe.
func (o *Options) Renderer() *svg.Renderer {
	opts := []svg.Option{
		svg.WithSize(o.Width, o.Height),
		svg.WithLogger(o.Logger),
	}
	if len(o.Palette) > 0 {
		opts = append(opts, svg.WithPalette(o.Palette...))
	}
	if o.Bins > 0 {
		opts = append(opts, svg.WithBins(o.Bins))
	}
	if o.PanelSuffix {
		opts = append(opts, svg.WithPanelSuffix())
	}
	return svg.New(opts...)
}

// PayloadKeyOpts returns cache key options for the engine result.
func (o *Options) PayloadKeyOpts(version string) cache.PayloadKeyOpts {
	return cache.PayloadKeyOpts{
		Width:       o.Width,
		Height:      o.Height,
		Palette:     o.Palette,
		Bins:        o.Bins,
		PanelSuffix: o.PanelSuffix,
		Version:     version,
	}
}

// ArtifactKeyOpts returns cache key options for one output format.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	opts := cache.ArtifactKeyOpts{Format: format}
	if format == FormatHTML {
		opts.Title = o.Title
		opts.Description = o.Description + "\x00" + o.ScriptURL + "\x00" + o.StyleURL
	}
	return opts
}

// DocumentOptions returns the page assembly options.
func (o *Options) DocumentOptions() document.Options {
	return document.Options{
		Title:       o.Title,
		Description: o.Description,
		ScriptURL:   o.ScriptURL,
		StyleURL:    o.StyleURL,
	}
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// RunID identifies the stored run. Empty when the runner has no store.
	RunID string

	// SpecHash is the content hash of the spec, datasets included.
	SpecHash string

	Payload *maidr.Payload

	// Export is the rendered SVG without the payload attribute.
	Export []byte

	// Artifacts contains the assembled outputs keyed by format.
	Artifacts map[string][]byte

	Warnings []string

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Layers       int
	Degraded     int
	EngineTime   time.Duration
	AssembleTime time.Duration
}

// CacheInfo tracks cache hits for each stage.
type CacheInfo struct {
	EngineHit   bool `json:"engine_hit"`   // Whether the engine result came from cache
	AssembleHit bool `json:"assemble_hit"` // Whether all artifacts came from cache
}

func (s Stats) String() string {
	return fmt.Sprintf("%d layers (%d degraded), engine %s, assemble %s",
		s.Layers, s.Degraded, s.EngineTime.Round(time.Millisecond), s.AssembleTime.Round(time.Millisecond))
}
