// Package config loads labelkit settings from a TOML file.
//
// Missing files and missing keys fall back to [Defaults], so an empty or
// absent config is valid. Command-line flags override loaded values.
//
//	[label]
//	dpi = 203
//	show_qr = false
//
//	[label.geometry]
//	width_mm = 50.0
//	height_mm = 30.0
//
//	[[printers]]
//	name = "front"
//	host = "192.168.1.50"
//	default = true
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/labelkit/pkg/dispatch"
	"github.com/matzehuels/labelkit/pkg/errors"
	"github.com/matzehuels/labelkit/pkg/geometry"
	"github.com/matzehuels/labelkit/pkg/transport"
)

// Config is the full configuration file.
type Config struct {
	Label     LabelConfig     `toml:"label"`
	Printers  []Printer       `toml:"printers"`
	Transport TransportConfig `toml:"transport"`
	Dispatch  dispatch.Config `toml:"dispatch"`
	Server    ServerConfig    `toml:"server"`
	Cache     CacheConfig     `toml:"cache"`
	Templates TemplatesConfig `toml:"templates"`
}

// LabelConfig holds render defaults.
type LabelConfig struct {
	Geometry geometry.PrintGeometry `toml:"geometry"`
	DPI      int                    `toml:"dpi"`
	ShowQR   bool                   `toml:"show_qr"`
	// MaxLabels caps the labels of one render or print; 0 uses the
	// pipeline default.
	MaxLabels int `toml:"max_labels,omitempty"`
}

// Printer is a named network printer.
type Printer struct {
	Name    string `toml:"name" json:"name"`
	Host    string `toml:"host" json:"host"`
	Port    int    `toml:"port,omitempty" json:"port"`
	Default bool   `toml:"default,omitempty" json:"default"`
}

// Addr returns host:port, applying the default port.
func (p Printer) Addr() string {
	return transport.Job{Host: p.Host, Port: p.Port}.WithDefaults().Addr()
}

// TransportConfig holds per-job delivery limits.
type TransportConfig struct {
	Timeout time.Duration `toml:"timeout"`
	Grace   time.Duration `toml:"grace"`
}

// ServerConfig configures `labelkit serve`.
type ServerConfig struct {
	Addr           string        `toml:"addr"`
	RequestTimeout time.Duration `toml:"request_timeout"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Label: LabelConfig{
			Geometry: geometry.Default(),
			DPI:      geometry.BaseDPI,
		},
		Transport: TransportConfig{
			Timeout: transport.DefaultTimeout,
			Grace:   transport.DefaultGrace,
		},
		Dispatch: dispatch.DefaultConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Backend: CacheFile,
			TTL:     7 * 24 * time.Hour,
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "labelkit:"},
		},
		Templates: TemplatesConfig{
			Backend: TemplatesFile,
			Mongo:   MongoConfig{URI: "mongodb://localhost:27017", Database: "labelkit"},
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/labelkit/config.toml or its
// platform equivalent.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "labelkit", "config.toml"), nil
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.Validation("%s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes c to path, creating parent directories.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Validate checks the values that cannot be clamped into range.
func (c *Config) Validate() error {
	if !geometry.IsSupportedDPI(c.Label.DPI) {
		return errors.New(errors.ErrCodeInvalidDPI, "label.dpi %d not supported (want one of %v)", c.Label.DPI, geometry.SupportedDPI)
	}
	if c.Label.MaxLabels < 0 {
		return errors.Validation("label.max_labels must not be negative")
	}
	seen := map[string]bool{}
	defaults := 0
	for i, p := range c.Printers {
		if p.Name == "" {
			return errors.Validation("printers[%d]: name is required", i)
		}
		if seen[p.Name] {
			return errors.Validation("printers[%d]: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true
		if err := errors.ValidateHost(p.Host); err != nil {
			return fmt.Errorf("printer %q: %w", p.Name, err)
		}
		if p.Port != 0 {
			if err := errors.ValidatePort(p.Port); err != nil {
				return fmt.Errorf("printer %q: %w", p.Name, err)
			}
		}
		if p.Default {
			defaults++
		}
	}
	if defaults > 1 {
		return errors.Validation("more than one default printer")
	}
	switch c.Cache.Backend {
	case CacheFile, CacheRedis, CacheNone:
	default:
		return errors.Validation("cache.backend %q: want file, redis or none", c.Cache.Backend)
	}
	switch c.Templates.Backend {
	case TemplatesFile, TemplatesMongo, TemplatesMemory:
	default:
		return errors.Validation("templates.backend %q: want file, mongo or memory", c.Templates.Backend)
	}
	return nil
}

// ResolvePrinter maps a printer name or a bare host to a Printer. An empty
// ref selects the default printer, or the only one configured.
func (c *Config) ResolvePrinter(ref string) (Printer, error) {
	if ref == "" {
		for _, p := range c.Printers {
			if p.Default {
				return p, nil
			}
		}
		if len(c.Printers) == 1 {
			return c.Printers[0], nil
		}
		return Printer{}, errors.New(errors.ErrCodePrinterNotFound, "no printer given and no default printer configured")
	}
	for _, p := range c.Printers {
		if strings.EqualFold(p.Name, ref) {
			return p, nil
		}
	}
	if err := errors.ValidateHost(ref); err != nil {
		return Printer{}, errors.New(errors.ErrCodePrinterNotFound, "unknown printer %q", ref)
	}
	return Printer{Name: ref, Host: ref}, nil
}

// AddPrinter adds p, or replaces the printer with the same name. When p is
// the default, any previous default loses the flag.
func (c *Config) AddPrinter(p Printer) {
	if p.Default {
		for i := range c.Printers {
			c.Printers[i].Default = false
		}
	}
	for i := range c.Printers {
		if c.Printers[i].Name == p.Name {
			c.Printers[i] = p
			return
		}
	}
	c.Printers = append(c.Printers, p)
}

// RemovePrinter deletes the printer called name and reports whether it
// existed.
func (c *Config) RemovePrinter(name string) bool {
	for i, p := range c.Printers {
		if strings.EqualFold(p.Name, name) {
			c.Printers = append(c.Printers[:i], c.Printers[i+1:]...)
			return true
		}
	}
	return false
}
