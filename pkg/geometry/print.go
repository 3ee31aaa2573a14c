package geometry

// Default label layout, in millimeters.
const (
	DefaultWidthMM     = 50.0
	DefaultHeightMM    = 30.0
	DefaultMarginMM    = 2.0
	DefaultBarHeightMM = 10.0
	DefaultQRSizeMM    = 14.0
)

// PrintGeometry describes the physical layout of a label. All values are in
// millimeters.
type PrintGeometry struct {
	WidthMM     float64 `json:"widthMm" toml:"width_mm" bson:"width_mm"`
	HeightMM    float64 `json:"heightMm" toml:"height_mm" bson:"height_mm"`
	MarginMM    float64 `json:"marginMm" toml:"margin_mm" bson:"margin_mm"`
	BarHeightMM float64 `json:"barHeightMm" toml:"bar_height_mm" bson:"bar_height_mm"`
	QRSizeMM    float64 `json:"qrSizeMm,omitempty" toml:"qr_size_mm" bson:"qr_size_mm,omitempty"`
}

// Default returns the default 50×30mm layout.
func Default() PrintGeometry {
	return PrintGeometry{
		WidthMM:     DefaultWidthMM,
		HeightMM:    DefaultHeightMM,
		MarginMM:    DefaultMarginMM,
		BarHeightMM: DefaultBarHeightMM,
		QRSizeMM:    DefaultQRSizeMM,
	}
}

// Normalize returns a copy of g with every value fitted to the physical
// bounds. Dimensions are clamped first because margin, barcode and QR limits
// all derive from them. A zero QRSizeMM stays zero (no QR requested).
func (g PrintGeometry) Normalize() PrintGeometry {
	out := PrintGeometry{
		WidthMM:  Clamp(g.WidthMM, MinWidthMM, MaxWidthMM),
		HeightMM: Clamp(g.HeightMM, MinHeightMM, MaxHeightMM),
	}
	out.MarginMM = ClampMargin(g.MarginMM, out.WidthMM, out.HeightMM)
	out.BarHeightMM = ClampBarHeight(g.BarHeightMM, out.HeightMM, out.MarginMM)
	if g.QRSizeMM != 0 {
		out.QRSizeMM = ClampQRSize(g.QRSizeMM, out.WidthMM, out.HeightMM, out.MarginMM)
	}
	return out
}

// UsableWidthMM returns the width left after both side margins.
func (g PrintGeometry) UsableWidthMM() float64 {
	return g.WidthMM - 2*g.MarginMM
}

// UsableHeightMM returns the height left after top and bottom margins.
func (g PrintGeometry) UsableHeightMM() float64 {
	return g.HeightMM - 2*g.MarginMM
}

// Dots converts the label dimensions to printer dots.
func (g PrintGeometry) Dots(dpi int) (width, height int) {
	return MMToDots(g.WidthMM, dpi), MMToDots(g.HeightMM, dpi)
}

// Pixels converts the label dimensions to preview pixels.
func (g PrintGeometry) Pixels() (width, height int) {
	return MMToPx(g.WidthMM), MMToPx(g.HeightMM)
}
