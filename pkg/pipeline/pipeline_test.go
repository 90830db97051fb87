package pipeline

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/maidr/pkg/cache"
	"github.com/matzehuels/maidr/pkg/document"
	"github.com/matzehuels/maidr/pkg/errors"
	"github.com/matzehuels/maidr/pkg/plot"
	"github.com/matzehuels/maidr/pkg/store"
)

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"json", false},
		{"svg", false},
		{"html", false},
		{"png", true},
		{"HTML", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
	}
}

func barSpec(t *testing.T) *plot.Spec {
	t.Helper()
	d, err := plot.NewDataset("days", []string{"day", "tips"}, [][]string{
		{"Sat", "3"}, {"Fri", "5"}, {"Thu", "2"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return &plot.Spec{
		Title:  "Tips",
		Data:   d,
		Layers: []plot.Layer{{Geom: "bar", Stat: plot.StatIdentity, Aes: plot.Aes{X: "day", Y: "tips"}}},
	}
}

func quietRunner(c cache.Cache) *Runner {
	return NewRunner(c, nil, log.NewWithOptions(io.Discard, log.Options{}))
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{Spec: barSpec(t)}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if opts.Width != DefaultWidth || opts.Height != DefaultHeight {
		t.Errorf("size = %gx%g, want %gx%g", opts.Width, opts.Height, DefaultWidth, DefaultHeight)
	}
	if len(opts.Formats) != 1 || opts.Formats[0] != FormatHTML {
		t.Errorf("Formats = %v, want [html]", opts.Formats)
	}
	if opts.Title != "Tips" {
		t.Errorf("Title = %q, want spec title", opts.Title)
	}
}

func TestOptionsValidation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"no spec", Options{}},
		{"bad format", Options{Spec: &plot.Spec{}, Formats: []string{"png"}}},
		{"negative size", Options{Spec: &plot.Spec{}, Width: -1}},
		{"negative bins", Options{Spec: &plot.Spec{}, Bins: -3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.ValidateAndSetDefaults(); err == nil {
				t.Error("ValidateAndSetDefaults() should fail")
			}
		})
	}
}

func TestExecute(t *testing.T) {
	r := quietRunner(nil)
	res, err := r.Execute(context.Background(), Options{
		Spec:    barSpec(t),
		Formats: []string{FormatJSON, FormatSVG, FormatHTML},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if res.Stats.Layers != 1 || res.Stats.Degraded != 0 {
		t.Errorf("Stats = %+v, want 1 layer, 0 degraded", res.Stats)
	}
	layers := res.Payload.Layers()
	if len(layers) != 1 || layers[0].Type != "bar" {
		t.Fatalf("payload layers = %+v, want one bar layer", layers)
	}
	if got := len(layers[0].SelectorList()); got != 1 {
		t.Errorf("selectors = %d, want 1", got)
	}

	for _, f := range []string{FormatJSON, FormatSVG, FormatHTML} {
		if len(res.Artifacts[f]) == 0 {
			t.Errorf("artifact %s is empty", f)
		}
	}
	raw, err := document.Payload(res.Artifacts[FormatSVG], "")
	if err != nil {
		t.Fatalf("svg payload: %v", err)
	}
	if !bytes.Equal(raw, res.Artifacts[FormatJSON]) {
		t.Error("embedded payload differs from the json artifact")
	}
	if res.RunID != "" {
		t.Errorf("RunID = %q without a store, want empty", res.RunID)
	}
}

func TestExecuteUsesCache(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := quietRunner(c)
	ctx := context.Background()

	first, err := r.Execute(ctx, Options{Spec: barSpec(t)})
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheInfo.EngineHit || first.CacheInfo.AssembleHit {
		t.Errorf("first run CacheInfo = %+v, want misses", first.CacheInfo)
	}

	second, err := r.Execute(ctx, Options{Spec: barSpec(t)})
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheInfo.EngineHit || !second.CacheInfo.AssembleHit {
		t.Errorf("second run CacheInfo = %+v, want hits", second.CacheInfo)
	}
	if first.SpecHash != second.SpecHash {
		t.Error("equal specs hashed differently")
	}
	if !bytes.Equal(first.Artifacts[FormatHTML], second.Artifacts[FormatHTML]) {
		t.Error("cached artifact differs from the original")
	}

	refreshed, err := r.Execute(ctx, Options{Spec: barSpec(t), Refresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.CacheInfo.EngineHit {
		t.Error("Refresh should bypass the cache")
	}
}

func TestExecuteCacheKeyFollowsOptions(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := quietRunner(c)
	ctx := context.Background()

	if _, err := r.Execute(ctx, Options{Spec: barSpec(t)}); err != nil {
		t.Fatal(err)
	}
	res, err := r.Execute(ctx, Options{Spec: barSpec(t), Width: 900})
	if err != nil {
		t.Fatal(err)
	}
	if res.CacheInfo.EngineHit {
		t.Error("a different width should miss the engine cache")
	}
}

func TestExecuteRecordsRun(t *testing.T) {
	s, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := quietRunner(nil)
	r.Store = s
	r.NewID = func() string { return "run-1" }

	ctx := context.Background()
	res, err := r.Execute(ctx, Options{Spec: barSpec(t), Formats: []string{FormatJSON}})
	if err != nil {
		t.Fatal(err)
	}
	if res.RunID != "run-1" {
		t.Fatalf("RunID = %q, want run-1", res.RunID)
	}

	run, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.SpecHash != res.SpecHash || run.Title != "Tips" || run.Layers != 1 {
		t.Errorf("stored run = %+v", run)
	}
	if !bytes.Equal(run.Payload, res.Artifacts[FormatJSON]) {
		t.Error("stored payload differs from the json artifact")
	}
}

func TestExecuteInvalidSpec(t *testing.T) {
	_, err := quietRunner(nil).Execute(context.Background(), Options{Spec: &plot.Spec{}})
	if !errors.Is(err, errors.ErrCodeInvalidSpec) {
		t.Errorf("Execute(empty spec) error = %v, want %s", err, errors.ErrCodeInvalidSpec)
	}
}

func TestArtifactKeyOpts(t *testing.T) {
	opts := Options{Title: "T", Description: "D"}
	if k := opts.ArtifactKeyOpts(FormatJSON); k.Title != "" || k.Description != "" {
		t.Errorf("json key opts = %+v, want no document fields", k)
	}
	if k := opts.ArtifactKeyOpts(FormatHTML); k.Title != "T" {
		t.Errorf("html key opts title = %q, want T", k.Title)
	}
}
