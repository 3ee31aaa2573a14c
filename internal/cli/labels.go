package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/labelkit/pkg/config"
	"github.com/matzehuels/labelkit/pkg/pipeline"
	"github.com/matzehuels/labelkit/pkg/templates"
)

// labelFlags are the layout flags shared by render and print. Unset flags
// fall back to the template, then to the [label] section of the config.
type labelFlags struct {
	width     float64
	height    float64
	margin    float64
	barHeight float64
	qrSize    float64
	dpi       int
	qr        bool
	template  string

	inputFormat string
	noCache     bool
	refresh     bool
}

func (f *labelFlags) register(cmd *cobra.Command) {
	f.registerLayout(cmd)
	fl := cmd.Flags()
	fl.StringVarP(&f.template, "template", "t", "", "saved template ID to take the layout from")
	fl.StringVar(&f.inputFormat, "input-format", "", "input format: csv or json (default: from the file extension)")
	fl.BoolVar(&f.noCache, "no-cache", false, "disable the render cache")
	fl.BoolVar(&f.refresh, "refresh", false, "re-render even when a cached result exists")
}

// registerLayout adds only the geometry, DPI and QR flags.
func (f *labelFlags) registerLayout(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.Float64Var(&f.width, "width", 0, "label width in mm")
	fl.Float64Var(&f.height, "height", 0, "label height in mm")
	fl.Float64Var(&f.margin, "margin", 0, "margin in mm")
	fl.Float64Var(&f.barHeight, "bar-height", 0, "barcode height in mm")
	fl.Float64Var(&f.qrSize, "qr-size", 0, "QR side in mm")
	fl.IntVar(&f.dpi, "dpi", 0, "printer resolution: 203, 300 or 600")
	fl.BoolVar(&f.qr, "qr", false, "add a QR code with the article code")
}

// options resolves the pipeline options for cmd: config defaults, then the
// template, then any flag the user set explicitly.
func (f *labelFlags) options(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (pipeline.Options, error) {
	opts := pipeline.Options{
		Geometry:  cfg.Label.Geometry,
		DPI:       cfg.Label.DPI,
		ShowQR:    cfg.Label.ShowQR,
		Refresh:   f.refresh,
		MaxLabels: cfg.Label.MaxLabels,
		Logger:    loggerFromContext(ctx),
	}

	if f.template != "" {
		t, err := loadTemplate(ctx, cfg, f.template)
		if err != nil {
			return opts, err
		}
		opts.Geometry, opts.DPI, opts.ShowQR = t.Geometry, t.DPI, t.ShowQR
	}

	f.apply(cmd, &opts)
	return opts, nil
}

// apply overlays the layout flags the user set explicitly onto opts.
func (f *labelFlags) apply(cmd *cobra.Command, opts *pipeline.Options) {
	changed := cmd.Flags().Changed
	if changed("width") {
		opts.Geometry.WidthMM = f.width
	}
	if changed("height") {
		opts.Geometry.HeightMM = f.height
	}
	if changed("margin") {
		opts.Geometry.MarginMM = f.margin
	}
	if changed("bar-height") {
		opts.Geometry.BarHeightMM = f.barHeight
	}
	if changed("qr-size") {
		opts.Geometry.QRSizeMM = f.qrSize
	}
	if changed("dpi") {
		opts.DPI = f.dpi
	}
	if changed("qr") {
		opts.ShowQR = f.qr
	}
}

func loadTemplate(ctx context.Context, cfg *config.Config, ref string) (*templates.Template, error) {
	id, err := templates.ParseID(ref)
	if err != nil {
		return nil, err
	}
	store, err := cfg.Templates.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.Get(ctx, id)
}
