package preview

import (
	"math"

	"github.com/matzehuels/labelkit/pkg/geometry"
)

// layout holds pixel positions for one preview. It follows the proportions
// of the printed label so the preview and the print look alike.
type layout struct {
	width, height int
	margin        int
	contentWidth  int

	nameY, nameFont, nameWidth int
	priceY, priceFont          int
	ruleY                      int

	barY, barHeight, barWidth int
	textLine                  int

	showQR   bool
	qrX, qrY int
	qrSide   int
}

func newLayout(g geometry.PrintGeometry, showQR bool) layout {
	w, h := g.Pixels()
	margin := px(g.MarginMM)
	fh := float64(h)

	nameFont := int(geometry.Clamp(fh*0.11, 8, 32))
	priceFont := int(geometry.Clamp(fh*0.15, 10, 48))
	gap := int(geometry.Clamp(fh*0.02, 1, 8))
	textLine := int(geometry.Clamp(fh*0.08, 7, 20))

	l := layout{
		width:        w,
		height:       h,
		margin:       margin,
		contentWidth: max(1, w-2*margin),
		nameY:        margin,
		nameFont:     nameFont,
		priceFont:    priceFont,
		textLine:     textLine,
	}
	l.nameWidth = l.contentWidth
	l.priceY = l.nameY + nameFont + gap
	l.ruleY = l.priceY + priceFont + gap
	l.barY = l.ruleY + 1 + gap

	barHeight := h - margin - l.barY - textLine
	barHeight = min(barHeight, px(g.BarHeightMM))
	l.barHeight = max(barHeight, px(geometry.ElementFloorMM)/2)
	l.barWidth = l.contentWidth

	if showQR {
		size := g.QRSizeMM
		if size == 0 {
			size = geometry.ClampQRSize(geometry.DefaultQRSizeMM, g.WidthMM, g.HeightMM, g.MarginMM)
		}
		l.showQR = true
		l.qrSide = px(size)
		l.qrX = w - margin - l.qrSide
		l.qrY = margin
		l.nameWidth = max(1, l.contentWidth-l.qrSide-gap)
		if l.barY < l.qrY+l.qrSide {
			l.barWidth = l.nameWidth
		}
	}
	return l
}

// px converts millimeters to preview pixels, keeping zero at zero.
func px(mm float64) int {
	if mm <= 0 || math.IsNaN(mm) {
		return 0
	}
	return geometry.MMToPx(mm)
}
