package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/maidr/pkg/buildinfo"
	"github.com/matzehuels/maidr/pkg/cache"
	"github.com/matzehuels/maidr/pkg/document"
	"github.com/matzehuels/maidr/pkg/errors"
	"github.com/matzehuels/maidr/pkg/maidr"
	"github.com/matzehuels/maidr/pkg/observability"
	"github.com/matzehuels/maidr/pkg/store"
)

// Runner executes the pipeline with caching.
//
// The Runner holds no per-run state, so multiple goroutines can share one
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// Store, when set, records every successful run.
	Store store.Store

	// NewID generates run ids.
	NewID func() string
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
		NewID:  uuid.NewString,
	}
}

// EngineResult is the cacheable part of an engine run.
type EngineResult struct {
	Payload  json.RawMessage `json:"payload"`
	Export   []byte          `json:"export"`
	Warnings []string        `json:"warnings,omitempty"`
	Layers   int             `json:"layers"`
	Degraded int             `json:"degraded"`
}

// Hash returns the content hash artifacts are keyed by.
func (e *EngineResult) Hash() string {
	return cache.Hash(append(append([]byte(nil), e.Payload...), e.Export...))
}

// Execute runs the engine, assembles the requested formats, and records
// the run.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	specHash, err := cache.HashJSON(opts.Spec)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSpec, err, "hash spec")
	}
	result := &Result{SpecHash: specHash}
	hooks := observability.Pipeline()

	// Stage 1: Engine
	hooks.OnStageStart(ctx, "engine")
	engineStart := time.Now()
	er, engineHit, err := r.EngineWithCacheInfo(ctx, specHash, opts)
	result.Stats.EngineTime = time.Since(engineStart)
	hooks.OnStageComplete(ctx, "engine", result.Stats.EngineTime, err)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	var payload maidr.Payload
	if err := json.Unmarshal(er.Payload, &payload); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "decode payload")
	}
	result.Payload = &payload
	result.Export = er.Export
	result.Warnings = er.Warnings
	result.Stats.Layers = er.Layers
	result.Stats.Degraded = er.Degraded
	result.CacheInfo.EngineHit = engineHit

	r.Logger.Info("processed chart",
		"layers", er.Layers,
		"degraded", er.Degraded,
		"cached", engineHit,
		"duration", result.Stats.EngineTime)
	for _, w := range er.Warnings {
		r.Logger.Warn(w)
	}

	// Stage 2: Assemble
	hooks.OnStageStart(ctx, "assemble")
	assembleStart := time.Now()
	artifacts, assembleHit, err := r.AssembleWithCacheInfo(ctx, er, opts)
	result.Stats.AssembleTime = time.Since(assembleStart)
	hooks.OnStageComplete(ctx, "assemble", result.Stats.AssembleTime, err)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	result.Artifacts = artifacts
	result.CacheInfo.AssembleHit = assembleHit

	r.Logger.Info("assembled outputs",
		"formats", opts.Formats,
		"duration", result.Stats.AssembleTime)

	// Stage 3: Record
	if r.Store != nil {
		run := &store.Run{
			ID:        r.NewID(),
			SpecHash:  specHash,
			Title:     opts.Title,
			Layers:    er.Layers,
			Degraded:  er.Degraded,
			Warnings:  er.Warnings,
			Payload:   er.Payload,
			CreatedAt: time.Now().UTC(),
		}
		if err := r.Store.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
		result.RunID = run.ID
		r.Logger.Debug("recorded run", "id", run.ID)
	}

	return result, nil
}

// EngineWithCacheInfo runs the engine with caching and returns cache hit
// info.
func (r *Runner) EngineWithCacheInfo(ctx context.Context, specHash string, opts Options) (*EngineResult, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}
	cacheKey := r.Keyer.PayloadKey(specHash, opts.PayloadKeyOpts(buildinfo.Version))

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var er EngineResult
			if err := json.Unmarshal(data, &er); err == nil {
				observability.Cache().OnCacheHit(ctx, "payload")
				return &er, true, nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, "payload")
	}

	er, err := r.Engine(ctx, opts)
	if err != nil {
		return nil, false, err
	}

	if data, err := json.Marshal(er); err == nil {
		if err := r.Cache.Set(ctx, cacheKey, data, cache.PayloadTTL); err != nil {
			r.Logger.Warn("cache write failed", "key", cacheKey, "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "payload", len(data))
		}
	}
	return er, false, nil
}

// Engine runs the engine without caching.
func (r *Runner) Engine(ctx context.Context, opts Options) (*EngineResult, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	orch := maidr.NewOrchestrator(opts.Renderer(), opts.Logger)
	res, err := orch.Run(ctx, opts.Spec)
	if err != nil {
		return nil, err
	}
	data, err := res.Payload.JSON()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode payload")
	}
	er := &EngineResult{
		Payload:  data,
		Export:   res.Export,
		Layers:   res.Stats.Layers,
		Degraded: res.Stats.Degraded,
	}
	for _, w := range res.Warnings {
		er.Warnings = append(er.Warnings, w.String())
	}
	return er, nil
}

// AssembleWithCacheInfo produces every requested format with caching and
// returns whether all of them came from cache.
func (r *Runner) AssembleWithCacheInfo(ctx context.Context, er *EngineResult, opts Options) (map[string][]byte, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}
	resultHash := er.Hash()

	artifacts := make(map[string][]byte, len(opts.Formats))
	allCached := true
	for _, format := range opts.Formats {
		cacheKey := r.Keyer.ArtifactKey(resultHash, opts.ArtifactKeyOpts(format))
		if !opts.Refresh {
			if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
				observability.Cache().OnCacheHit(ctx, format)
				artifacts[format] = data
				continue
			}
			observability.Cache().OnCacheMiss(ctx, format)
		}
		allCached = false

		data, err := Assemble(er, format, opts)
		if err != nil {
			return nil, false, err
		}
		artifacts[format] = data
		if err := r.Cache.Set(ctx, cacheKey, data, cache.ArtifactTTL); err == nil {
			observability.Cache().OnCacheSet(ctx, format, len(data))
		}
	}
	return artifacts, allCached, nil
}

// Assemble produces one output format from an engine result.
func Assemble(er *EngineResult, format string, opts Options) ([]byte, error) {
	payload := json.RawMessage(er.Payload)
	switch format {
	case FormatJSON:
		return er.Payload, nil
	case FormatSVG:
		return document.Embed(er.Export, payload, document.DefaultAttribute)
	case FormatHTML:
		return document.HTML(er.Export, payload, opts.DocumentOptions())
	}
	return nil, ValidateFormat(format)
}

// Close releases resources held by the runner.
func (r *Runner) Close() error {
	var err error
	if r.Cache != nil {
		err = r.Cache.Close()
	}
	if r.Store != nil {
		if serr := r.Store.Close(); err == nil {
			err = serr
		}
	}
	return err
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
