// Package cli implements the maidr command-line interface.
//
// # Commands
//
//   - render: turn a chart spec or a recorded call log into JSON, SVG or HTML
//   - inspect: browse the layers and selectors of a rendered payload
//   - tree: show the rendered element tree of a chart
//   - serve: run the HTTP API
//   - runs: list and show stored runs
//   - cache: manage the local result cache
//
// All commands accept --verbose (-v) for debug logging.
package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/maidr/pkg/buildinfo"
	"github.com/matzehuels/maidr/pkg/cache"
	"github.com/matzehuels/maidr/pkg/calllog"
	"github.com/matzehuels/maidr/pkg/pipeline"
	"github.com/matzehuels/maidr/pkg/plot"
	"github.com/matzehuels/maidr/pkg/store"
)

const appName = "maidr"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance logging to w.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "maidr makes charts accessible",
		Long:         `maidr renders charts and attaches a description of every data point to the rendered SVG, so screen readers, sonification and braille displays can navigate the chart.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.treeCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.runsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// newRunner creates a pipeline runner for CLI use. A non-empty dsn
// records runs in that store.
func (c *CLI) newRunner(cmd *cobra.Command, noCache bool, dsn string) (*pipeline.Runner, error) {
	ch, err := newCache(noCache)
	if err != nil {
		return nil, err
	}
	r := pipeline.NewRunner(ch, nil, c.Logger)
	if dsn != "" {
		st, err := store.Open(cmd.Context(), dsn)
		if err != nil {
			_ = ch.Close()
			return nil, err
		}
		r.Store = st
	}
	return r, nil
}

func newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory ($XDG_CACHE_HOME/maidr or
// ~/.cache/maidr).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// loadSpec reads a chart spec from path. Files ending in .log, or any file
// when calls is set, are read as call logs.
func loadSpec(path string, calls bool) (*plot.Spec, error) {
	if !calls && !strings.EqualFold(filepath.Ext(path), ".log") {
		return plot.LoadFile(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	parsed, err := calllog.Parse(f)
	if err != nil {
		return nil, err
	}
	return calllog.ToSpec(parsed)
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.FormatHTML}
	}
	return strings.Split(s, ",")
}
