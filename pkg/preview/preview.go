// Package preview draws a single label as SVG for on-screen previews.
//
// Previews use the 96 DPI screen scale of [geometry.MMToPx], not printer
// dots. The barcode is a placeholder pattern derived from the code bytes:
// it shows where the symbol sits and roughly how dense it is, but it does
// not scan.
package preview

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"

	"github.com/matzehuels/labelkit/pkg/geometry"
	"github.com/matzehuels/labelkit/pkg/zpl"
)

const fontFamily = "Helvetica, Arial, sans-serif"

// Option configures RenderSVG.
type Option func(*renderer)

type renderer struct {
	showQR bool
	border bool
}

// WithQR draws the QR square in the top-right corner.
func WithQR() Option { return func(r *renderer) { r.showQR = true } }

// WithBorder toggles the label outline and the dashed margin box. Both are
// drawn by default.
func WithBorder(on bool) Option { return func(r *renderer) { r.border = on } }

// RenderSVG draws item on a label of geometry g. The geometry is normalized
// first, so any input produces a drawable label.
func RenderSVG(item zpl.Item, g geometry.PrintGeometry, opts ...Option) []byte {
	r := renderer{border: true}
	for _, opt := range opts {
		opt(&r)
	}
	l := newLayout(g.Normalize(), r.showQR)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="%d" height="%d">`+"\n",
		l.width, l.height, l.width, l.height)
	fmt.Fprintf(&buf, `  <rect x="0" y="0" width="%d" height="%d" fill="white"/>`+"\n", l.width, l.height)

	if r.border {
		fmt.Fprintf(&buf, `  <rect class="border" x="0.5" y="0.5" width="%d" height="%d" fill="none" stroke="#333" stroke-width="1"/>`+"\n",
			l.width-1, l.height-1)
		if l.margin > 0 {
			fmt.Fprintf(&buf, `  <rect class="margin" x="%d" y="%d" width="%d" height="%d" fill="none" stroke="#9ab" stroke-dasharray="3,2"/>`+"\n",
				l.margin, l.margin, l.width-2*l.margin, l.height-2*l.margin)
		}
	}

	fmt.Fprintf(&buf, `  <text class="name" x="%d" y="%d" font-family="%s" font-size="%d" textLength="%d" lengthAdjust="spacingAndGlyphs">%s</text>`+"\n",
		l.margin, l.nameY+l.nameFont, fontFamily, l.nameFont, fitText(item.Name, l.nameFont, l.nameWidth), escapeXML(item.Name))
	fmt.Fprintf(&buf, `  <text class="price" x="%d" y="%d" font-family="%s" font-size="%d" font-weight="bold">%s</text>`+"\n",
		l.margin, l.priceY+l.priceFont, fontFamily, l.priceFont, escapeXML("$"+zpl.FormatPrice(item.UnitPrice)))
	fmt.Fprintf(&buf, `  <rect class="rule" x="%d" y="%d" width="%d" height="1" fill="black"/>`+"\n",
		l.margin, l.ruleY, l.contentWidth)

	renderBars(&buf, item.Code, l)
	fmt.Fprintf(&buf, `  <text class="code" x="%d" y="%d" font-family="%s" font-size="%d" text-anchor="middle">%s</text>`+"\n",
		l.margin+l.barWidth/2, l.barY+l.barHeight+l.textLine, fontFamily, l.textLine, escapeXML(item.Code))

	if l.showQR {
		renderQR(&buf, l)
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

// renderBars draws a start guard, eight modules per code byte (a bar for
// every set bit) and an end guard, stretched over the barcode width.
func renderBars(buf *bytes.Buffer, code string, l layout) {
	modules := make([]bool, 0, 8*len(code)+6)
	guard := []bool{true, false, true}
	modules = append(modules, guard...)
	for i := 0; i < len(code); i++ {
		for bit := 7; bit >= 0; bit-- {
			modules = append(modules, code[i]&(1<<bit) != 0)
		}
	}
	modules = append(modules, guard...)

	step := float64(l.barWidth) / float64(len(modules))
	buf.WriteString(`  <g class="barcode" fill="black">` + "\n")
	for i, on := range modules {
		if !on {
			continue
		}
		fmt.Fprintf(buf, `    <rect x="%.2f" y="%d" width="%.2f" height="%d"/>`+"\n",
			float64(l.margin)+float64(i)*step, l.barY, step, l.barHeight)
	}
	buf.WriteString("  </g>\n")
}

// renderQR draws the QR area with its three finder squares.
func renderQR(buf *bytes.Buffer, l layout) {
	s := l.qrSide
	f := max(3, s*7/25)
	fmt.Fprintf(buf, `  <g class="qr">`+"\n")
	fmt.Fprintf(buf, `    <rect x="%d" y="%d" width="%d" height="%d" fill="#eee" stroke="black" stroke-width="0.5"/>`+"\n", l.qrX, l.qrY, s, s)
	for _, p := range [][2]int{{l.qrX, l.qrY}, {l.qrX + s - f, l.qrY}, {l.qrX, l.qrY + s - f}} {
		fmt.Fprintf(buf, `    <rect x="%d" y="%d" width="%d" height="%d" fill="black"/>`+"\n", p[0], p[1], f, f)
	}
	buf.WriteString("  </g>\n")
}

// fitText caps the rendered name width so long names shrink instead of
// running into the QR area.
func fitText(s string, font, maxWidth int) int {
	est := int(math.Ceil(float64(len([]rune(s))) * float64(font) * 0.55))
	return max(1, min(est, maxWidth))
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
