// Package pipeline provides the render → print pipeline shared by the CLI
// and the HTTP service.
//
// The pipeline has two stages:
//
//  1. Render: turn line items and label options into artifacts (ZPL, an SVG
//     preview, or a JSON summary), consulting the cache first
//  2. Print: deliver the ZPL artifact to a network printer through the
//     dispatcher
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, dispatcher, logger)
//	opts := pipeline.Options{
//	    Geometry: geometry.Default(),
//	    DPI:      203,
//	    Printer:  "192.168.1.50",
//	}
//	res, err := runner.Print(ctx, items, opts)
package pipeline

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/labelkit/pkg/cache"
	"github.com/matzehuels/labelkit/pkg/errors"
	"github.com/matzehuels/labelkit/pkg/geometry"
	"github.com/matzehuels/labelkit/pkg/transport"
	"github.com/matzehuels/labelkit/pkg/zpl"
)

// Format constants for output formats.
const (
	FormatZPL  = "zpl"
	FormatSVG  = "svg"
	FormatJSON = "json"
)

// DefaultMaxLabels bounds the labels one run may produce when
// Options.MaxLabels is zero.
const DefaultMaxLabels = 5000

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatZPL:  true,
	FormatSVG:  true,
	FormatJSON: true,
}

// Options contains all configuration for one pipeline run.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Render options
	Geometry geometry.PrintGeometry `json:"geometry"`
	DPI      int                    `json:"dpi,omitempty"`
	ShowQR   bool                   `json:"showQr,omitempty"`
	Formats  []string               `json:"formats,omitempty"`
	Refresh  bool                   `json:"refresh,omitempty"` // Skip cache reads

	// MaxLabels caps the total copies of one run; zero means DefaultMaxLabels.
	MaxLabels int `json:"-"`

	// Print options
	Printer string        `json:"printer,omitempty"` // Host name or IP
	Port    int           `json:"port,omitempty"`
	Timeout time.Duration `json:"-"`
	Grace   time.Duration `json:"-"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.Validation("invalid format: %q (must be one of: zpl, svg, json)", format)
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

// ValidateDPI checks that dpi is a supported printer resolution.
func ValidateDPI(dpi int) error {
	if !geometry.IsSupportedDPI(dpi) {
		return errors.New(errors.ErrCodeInvalidDPI, "unsupported dpi %d (must be one of: 203, 300, 600)", dpi)
	}
	return nil
}

// ValidateAndSetDefaults applies defaults and rejects the few values that
// cannot be clamped. Geometry is normalized, never rejected. This method is
// idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	o.Geometry = resolveGeometry(o.Geometry, o.ShowQR)
	if o.DPI == 0 {
		o.DPI = geometry.BaseDPI
	}
	if err := ValidateDPI(o.DPI); err != nil {
		return err
	}

	if o.MaxLabels <= 0 {
		o.MaxLabels = DefaultMaxLabels
	}

	if len(o.Formats) == 0 {
		o.Formats = []string{FormatZPL}
	}
	formats := make([]string, 0, len(o.Formats))
	for _, f := range o.Formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if !slices.Contains(formats, f) {
			formats = append(formats, f)
		}
	}
	o.Formats = formats
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}

	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// ValidateForPrint checks the printer fields on top of ValidateAndSetDefaults.
func (o *Options) ValidateForPrint() error {
	if err := o.ValidateAndSetDefaults(); err != nil {
		return err
	}
	if err := errors.ValidateHost(o.Printer); err != nil {
		return err
	}
	if o.Port != 0 {
		return errors.ValidatePort(o.Port)
	}
	return nil
}

// ZPLOptions returns the emitter options for the resolved geometry.
func (o *Options) ZPLOptions() zpl.Options {
	return zpl.FromGeometry(o.Geometry, o.DPI, o.ShowQR)
}

// RenderKeyOpts returns cache key options for one artifact format.
func (o *Options) RenderKeyOpts(format string) cache.RenderKeyOpts {
	return cache.RenderKeyOpts{
		Geometry: o.Geometry,
		DPI:      o.DPI,
		ShowQR:   o.ShowQR,
		Format:   format,
	}
}

// Job builds the transport job for payload.
func (o *Options) Job(payload []byte) transport.Job {
	return transport.Job{
		Host:    o.Printer,
		Port:    o.Port,
		Payload: payload,
		Timeout: o.Timeout,
		Grace:   o.Grace,
	}
}

// resolveGeometry fills unset dimensions with defaults and normalizes the
// result. An all-zero geometry is the default label.
func resolveGeometry(g geometry.PrintGeometry, showQR bool) geometry.PrintGeometry {
	if g == (geometry.PrintGeometry{}) {
		g = geometry.Default()
	}
	if g.WidthMM == 0 {
		g.WidthMM = geometry.DefaultWidthMM
	}
	if g.HeightMM == 0 {
		g.HeightMM = geometry.DefaultHeightMM
	}
	if g.BarHeightMM == 0 {
		g.BarHeightMM = geometry.DefaultBarHeightMM
	}
	if showQR && g.QRSizeMM == 0 {
		g.QRSizeMM = geometry.DefaultQRSizeMM
	}
	return g.Normalize()
}

// Result contains the outputs of a render.
type Result struct {
	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Blocks is the number of physical labels the ZPL stream holds.
	Blocks int

	// ItemsHash is the content hash of the item list.
	ItemsHash string

	// Geometry is the normalized geometry the labels were laid out with.
	Geometry geometry.PrintGeometry

	// CacheHit is true when every artifact came from the cache.
	CacheHit bool

	RenderTime time.Duration
}

// PrintResult is the outcome of Runner.Print.
type PrintResult struct {
	Result
	Delivery transport.Result
}

func (r *Result) String() string {
	return fmt.Sprintf("%d labels, formats %v, cached=%v", r.Blocks, sortedKeys(r.Artifacts), r.CacheHit)
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
