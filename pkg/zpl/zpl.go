// Package zpl emits ZPL II label streams for Zebra-compatible thermal
// printers.
//
// Every physical label copy becomes one self-contained ^XA … ^XZ block, so a
// stream can be cut at any block boundary and still print correctly. Blocks
// follow input order: all copies of the first item, then all copies of the
// second, and so on.
//
//	payload := zpl.Build(items, zpl.Options{WidthMM: 50, HeightMM: 30, DPI: 203})
package zpl

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/matzehuels/labelkit/pkg/geometry"
)

const (
	cmdStart = "^XA"
	cmdEnd   = "^XZ"
)

// Item is one label line: a product and how many physical copies to print.
type Item struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Copies    int     `json:"copies"`
}

// Options controls the label layout. Zero values select defaults: the
// default 50×30mm geometry, 203 dpi, and a layout-derived bar height.
type Options struct {
	WidthMM  float64
	HeightMM float64
	DPI      int
	ShowQR   bool

	// Optional overrides. Zero means "derive from the label size".
	MarginMM    float64
	BarHeightMM float64
	QRSizeMM    float64

	// normalized marks options built from an already normalized geometry,
	// where zero is a real value (a 0mm margin) rather than "unset".
	normalized bool
}

// FromGeometry returns Options for a normalized print geometry.
func FromGeometry(g geometry.PrintGeometry, dpi int, showQR bool) Options {
	return Options{
		WidthMM:     g.WidthMM,
		HeightMM:    g.HeightMM,
		DPI:         dpi,
		ShowQR:      showQR,
		MarginMM:    g.MarginMM,
		BarHeightMM: g.BarHeightMM,
		QRSizeMM:    g.QRSizeMM,
		normalized:  true,
	}
}

func (o Options) dpi() int {
	if o.DPI <= 0 {
		return geometry.BaseDPI
	}
	return o.DPI
}

func (o Options) geometry() geometry.PrintGeometry {
	g := geometry.PrintGeometry{
		WidthMM:     o.WidthMM,
		HeightMM:    o.HeightMM,
		MarginMM:    o.MarginMM,
		BarHeightMM: o.BarHeightMM,
		QRSizeMM:    o.QRSizeMM,
	}
	if o.normalized {
		return g.Normalize()
	}
	if g.WidthMM == 0 {
		g.WidthMM = geometry.DefaultWidthMM
	}
	if g.HeightMM == 0 {
		g.HeightMM = geometry.DefaultHeightMM
	}
	if g.MarginMM == 0 {
		g.MarginMM = geometry.DefaultMarginMM
	}
	if g.BarHeightMM == 0 {
		g.BarHeightMM = geometry.DefaultBarHeightMM
	}
	return g.Normalize()
}

func (o Options) qrSize() float64 {
	if o.QRSizeMM > 0 {
		return o.QRSizeMM
	}
	return geometry.DefaultQRSizeMM
}

// Encoder writes label blocks to an output stream.
type Encoder struct {
	w      io.Writer
	layout layout
}

// NewEncoder returns an encoder that writes to w using opts for every block.
func NewEncoder(w io.Writer, opts Options) *Encoder {
	return &Encoder{w: w, layout: newLayout(opts)}
}

// Encode writes one block per copy of every item and returns the number of
// blocks written. Items with no copies are skipped.
func (e *Encoder) Encode(items []Item) (int, error) {
	var (
		buf    bytes.Buffer
		blocks int
	)
	for _, it := range items {
		n := it.Copies
		if n <= 0 {
			continue
		}
		buf.Reset()
		e.writeBlock(&buf, it)
		block := buf.Bytes()
		for range n {
			if _, err := e.w.Write(block); err != nil {
				return blocks, fmt.Errorf("write label %q: %w", it.Code, err)
			}
			blocks++
		}
	}
	return blocks, nil
}

// Build renders items into a single ZPL string. An empty item list, or one
// where every item has zero copies, yields "".
func Build(items []Item, opts Options) string {
	var sb strings.Builder
	// strings.Builder never fails a write.
	_, _ = NewEncoder(&sb, opts).Encode(items)
	return sb.String()
}

func (e *Encoder) writeBlock(buf *bytes.Buffer, it Item) {
	l := e.layout
	code := Sanitize(it.Code)
	name := Sanitize(it.Name)

	buf.WriteString(cmdStart + "\n")
	fmt.Fprintf(buf, "^PW%d\n", l.width)
	fmt.Fprintf(buf, "^LL%d\n", l.height)
	buf.WriteString("^CI28\n")

	fmt.Fprintf(buf, "^FO%d,%d^A0N,%d,%d^FB%d,%d,0,L,0^FD%s^FS\n",
		l.margin, l.nameY, l.nameFont, l.nameFont, l.nameWidth, nameLines, name)
	fmt.Fprintf(buf, "^FO%d,%d^A0N,%d,%d^FD$%s^FS\n",
		l.margin, l.priceY, l.priceFont, l.priceFont, FormatPrice(it.UnitPrice))
	fmt.Fprintf(buf, "^FO%d,%d^GB%d,%d,%d^FS\n",
		l.margin, l.ruleY, l.ruleWidth, ruleThickness, ruleThickness)
	fmt.Fprintf(buf, "^FO%d,%d^BY%d^BCN,%d,Y,N,N^FD%s^FS\n",
		l.margin, l.barY, l.barModule, l.barHeight, code)

	if l.showQR {
		fmt.Fprintf(buf, "^FO%d,%d^BQN,%d,%d^FDQA,%s^FS\n",
			l.qrX, l.qrY, qrModel, qrMagnify, code)
	}

	buf.WriteString(cmdEnd + "\n")
}
