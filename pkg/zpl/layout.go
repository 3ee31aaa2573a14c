package zpl

import (
	"math"

	"github.com/matzehuels/labelkit/pkg/geometry"
)

// layout holds the dot positions of every field on one label. It is computed
// once per Build call; every block in the stream shares it.
//
// Proportions are designed at 203 dpi from the label height and width, then
// multiplied by dpi/203 so a label looks the same on every printer
// resolution.
type layout struct {
	width, height int // ^PW, ^LL

	margin    int
	nameY     int
	nameFont  int
	nameWidth int // ^FB block width
	priceY    int
	priceFont int
	ruleY     int
	ruleWidth int
	barY      int
	barHeight int
	barModule int // ^BY narrow bar width

	showQR bool
	qrX    int
	qrY    int
}

// Fixed layout ratios at the 203 dpi baseline.
const (
	nameLines      = 2
	ruleThickness  = 2
	qrMagnify      = 6
	qrModel        = 2
	baseBarModule  = 2.0
	minBarHeight   = 8.0
	nameFontRatio  = 0.11
	priceFontRatio = 0.15
	gapRatio       = 0.02
	textLineRatio  = 0.08
)

func newLayout(opts Options) layout {
	g := opts.geometry()
	dpi := opts.dpi()
	scale := float64(dpi) / float64(geometry.BaseDPI)

	// base converts millimeters to dots at the baseline resolution.
	base := func(mm float64) float64 { return mm * geometry.BaseDPI / 25.4 }
	// at scales a baseline dot value to the target resolution.
	at := func(v float64) int { return max(1, int(math.Round(v*scale))) }
	// pos is at for field origins, which may sit on the label edge.
	pos := func(v float64) int { return max(0, int(math.Round(v*scale))) }

	h := base(g.HeightMM)
	w := base(g.WidthMM)
	margin := base(g.MarginMM)

	nameFont := geometry.Clamp(h*nameFontRatio, 16, 48)
	priceFont := geometry.Clamp(h*priceFontRatio, 20, 72)
	gap := geometry.Clamp(h*gapRatio, 2, 12)
	textLine := geometry.Clamp(h*textLineRatio, 14, 30)

	nameY := margin
	priceY := nameY + nameLines*nameFont + gap
	ruleY := priceY + priceFont + gap
	barY := ruleY + ruleThickness + gap

	barHeight := h - margin - barY - textLine
	if opts.BarHeightMM > 0 {
		barHeight = math.Min(barHeight, base(g.BarHeightMM))
	}
	barHeight = math.Max(barHeight, minBarHeight)

	contentWidth := w - 2*margin
	l := layout{
		width:     geometry.MMToDots(g.WidthMM, dpi),
		height:    geometry.MMToDots(g.HeightMM, dpi),
		margin:    pos(margin),
		nameY:     pos(nameY),
		nameFont:  at(nameFont),
		nameWidth: at(contentWidth),
		priceY:    pos(priceY),
		priceFont: at(priceFont),
		ruleY:     pos(ruleY),
		ruleWidth: at(contentWidth),
		barY:      pos(barY),
		barHeight: at(barHeight),
		barModule: at(baseBarModule),
	}

	if opts.ShowQR {
		// The QR column sits in the top-right corner; the name block
		// narrows so wrapped text never runs underneath it.
		side := base(geometry.ClampQRSize(opts.qrSize(), g.WidthMM, g.HeightMM, g.MarginMM))
		l.showQR = true
		l.qrX = pos(w - margin - side)
		l.qrY = pos(margin)
		l.nameWidth = at(math.Max(contentWidth-side-gap, 1))
	}

	return l
}
