package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/matzehuels/labelkit/pkg/errors"
	"github.com/matzehuels/labelkit/pkg/geometry"
	"github.com/matzehuels/labelkit/pkg/preview"
	"github.com/matzehuels/labelkit/pkg/zpl"
)

// Summary is the JSON artifact: the resolved layout and what will print.
type Summary struct {
	Geometry geometry.PrintGeometry `json:"geometry"`
	DPI      int                    `json:"dpi"`
	ShowQR   bool                   `json:"showQr"`
	Dots     [2]int                 `json:"dots"`   // width, height at DPI
	Pixels   [2]int                 `json:"pixels"` // width, height in preview pixels
	Labels   int                    `json:"labels"`
	Items    []zpl.Item             `json:"items"`
}

// Render generates artifacts in the requested formats. opts must have been
// through ValidateAndSetDefaults.
func Render(items []zpl.Item, opts Options) (map[string][]byte, error) {
	if err := checkLabelCount(items, opts.MaxLabels); err != nil {
		return nil, err
	}
	artifacts := make(map[string][]byte, len(opts.Formats))
	for _, format := range opts.Formats {
		data, err := renderFormat(items, opts, format)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}
	return artifacts, nil
}

func renderFormat(items []zpl.Item, opts Options, format string) ([]byte, error) {
	switch format {
	case FormatZPL:
		return []byte(zpl.Build(items, opts.ZPLOptions())), nil
	case FormatSVG:
		return RenderPreview(items, opts), nil
	case FormatJSON:
		return json.MarshalIndent(summarize(items, opts), "", "  ")
	default:
		return nil, ValidateFormat(format)
	}
}

// RenderPreview draws the first label of items. An empty list draws a blank
// label so the editor always has something to show.
func RenderPreview(items []zpl.Item, opts Options) []byte {
	var first zpl.Item
	if len(items) > 0 {
		first = items[0]
	}
	var svgOpts []preview.Option
	if opts.ShowQR {
		svgOpts = append(svgOpts, preview.WithQR())
	}
	return preview.RenderSVG(first, opts.Geometry, svgOpts...)
}

func summarize(items []zpl.Item, opts Options) Summary {
	s := Summary{
		Geometry: opts.Geometry,
		DPI:      opts.DPI,
		ShowQR:   opts.ShowQR,
		Labels:   labelCount(items),
		Items:    items,
	}
	if s.Items == nil {
		s.Items = []zpl.Item{}
	}
	s.Dots[0], s.Dots[1] = opts.Geometry.Dots(opts.DPI)
	s.Pixels[0], s.Pixels[1] = opts.Geometry.Pixels()
	return s
}

// checkLabelCount rejects runs whose total copies exceed limit, before any
// output is built. A zero limit means DefaultMaxLabels.
func checkLabelCount(items []zpl.Item, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxLabels
	}
	if n := labelCount(items); n > limit {
		return errors.Validation("%d labels requested, at most %d per run", n, limit)
	}
	return nil
}

func labelCount(items []zpl.Item) int {
	n := 0
	for _, it := range items {
		n += max(0, it.Copies)
	}
	return n
}
