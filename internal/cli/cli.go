// Package cli implements the labelkit command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/labelkit/pkg/config"
	"github.com/matzehuels/labelkit/pkg/dispatch"
	"github.com/matzehuels/labelkit/pkg/items"
	"github.com/matzehuels/labelkit/pkg/pipeline"
	"github.com/matzehuels/labelkit/pkg/transport"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "labelkit"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// configPath is set by the --config flag; empty means DefaultPath.
	configPath string
	config     *config.Config

	out io.Writer
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		out:    os.Stdout,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// =============================================================================
// Configuration
// =============================================================================

// loadConfig reads the config file once per process.
func (c *CLI) loadConfig() (*config.Config, error) {
	if c.config != nil {
		return c.config, nil
	}
	path, err := c.resolvedConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("loaded config", "path", path, "printers", len(cfg.Printers))
	c.config = cfg
	return cfg, nil
}

// saveConfig writes the current config back to its file.
func (c *CLI) saveConfig() (string, error) {
	path, err := c.resolvedConfigPath()
	if err != nil {
		return "", err
	}
	if err := c.config.Save(path); err != nil {
		return "", fmt.Errorf("save config: %w", err)
	}
	return path, nil
}

func (c *CLI) resolvedConfigPath() (string, error) {
	if c.configPath != "" {
		return c.configPath, nil
	}
	return config.DefaultPath()
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use. The caller closes it.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	cacheCfg := cfg.Cache
	if noCache {
		cacheCfg.Backend = config.CacheNone
	}
	store, err := cacheCfg.Open(ctx)
	if err != nil {
		c.Logger.Warn("cache unavailable, continuing without it", "backend", cacheCfg.Backend, "err", err)
		store = nil
	}
	logger := loggerFromContext(ctx)
	d := dispatch.New(&transport.Sender{}, cfg.Dispatch, logger)
	return pipeline.NewRunner(store, nil, d, logger), nil
}

// =============================================================================
// Input
// =============================================================================

// readArticles loads articles from a CSV or JSON file, or from stdin when
// path is "-". format overrides detection by extension.
func readArticles(path, format string) ([]items.Article, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch format {
	case "csv", "txt":
		return items.ReadCSV(r)
	case "json":
		return items.ReadJSON(r)
	default:
		return nil, fmt.Errorf("cannot tell the format of %q: use --input-format csv|json", path)
	}
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.FormatZPL}
	}
	return strings.Split(s, ",")
}
