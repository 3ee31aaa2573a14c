// Package geometry converts operator-entered label dimensions into
// printer-safe values.
//
// Label geometry is a preference edited in a UI, not a correctness-critical
// input: every function here clamps instead of failing. A QR code that is a
// few millimeters too large is fitted to the available area rather than
// blocking the print job.
//
// Two unit conversions are provided. [MMToPx] approximates a 96 DPI screen
// and is used only for previews. [MMToDots] is the canonical conversion for
// printer output.
package geometry

import "math"

// Physical bounds of supported printers and media, in millimeters.
const (
	MinWidthMM  = 1.0
	MaxWidthMM  = 135.0
	MinHeightMM = 1.0
	MaxHeightMM = 300.0

	// MinUsableMM is the smallest content area left after subtracting
	// margins on both sides of an axis.
	MinUsableMM = 4.0

	// ElementFloorMM is the smallest barcode height or QR side ever emitted.
	ElementFloorMM = 4.0

	// elementPadMM is the breathing room kept around barcode and QR elements.
	elementPadMM = 4.0
)

// pxPerMM approximates 96 DPI (96 / 25.4).
const pxPerMM = 3.78

// mmPerInch converts dots-per-inch to dots-per-millimeter.
const mmPerInch = 25.4

// Native printer resolutions.
const (
	DPI203 = 203
	DPI300 = 300
	DPI600 = 600

	// BaseDPI is the reference resolution every layout is designed at.
	BaseDPI = DPI203
)

// SupportedDPI lists the printer resolutions labels can be generated for.
var SupportedDPI = []int{DPI203, DPI300, DPI600}

// IsSupportedDPI reports whether dpi is one of [SupportedDPI].
func IsSupportedDPI(dpi int) bool {
	for _, d := range SupportedDPI {
		if d == dpi {
			return true
		}
	}
	return false
}

// Clamp bounds v to [lo, hi]. A NaN or infinite v returns lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MMToPx converts millimeters to preview pixels at roughly 96 DPI.
// The result is never below 1.
func MMToPx(mm float64) int {
	if math.IsNaN(mm) || math.IsInf(mm, 0) {
		return 1
	}
	return max(1, int(math.Round(mm*pxPerMM)))
}

// MMToDots converts millimeters to printer dots at the given resolution.
func MMToDots(mm float64, dpi int) int {
	if math.IsNaN(mm) || math.IsInf(mm, 0) {
		return 0
	}
	return int(math.Round(mm * float64(dpi) / mmPerInch))
}

// ClampBarHeight fits a requested barcode height inside the label, keeping
// 4mm of vertical room beyond the margins.
func ClampBarHeight(requestedMM, labelHeightMM, marginMM float64) float64 {
	limit := math.Max(ElementFloorMM, labelHeightMM-2*marginMM-elementPadMM)
	if math.IsNaN(limit) {
		limit = ElementFloorMM
	}
	return Clamp(requestedMM, ElementFloorMM, limit)
}

// ClampQRSize fits a requested QR side as a square inside the smaller usable
// dimension, keeping a 4mm pad.
func ClampQRSize(requestedMM, labelWidthMM, labelHeightMM, marginMM float64) float64 {
	usableW := labelWidthMM - 2*marginMM
	usableH := labelHeightMM - 2*marginMM
	limit := math.Max(ElementFloorMM, math.Min(usableW, usableH)-elementPadMM)
	if math.IsNaN(limit) {
		limit = ElementFloorMM
	}
	return Clamp(requestedMM, ElementFloorMM, limit)
}

// ClampMargin keeps at least [MinUsableMM] of content on both axes.
func ClampMargin(marginMM, labelWidthMM, labelHeightMM float64) float64 {
	limit := (math.Min(labelWidthMM, labelHeightMM) - MinUsableMM) / 2
	return Clamp(marginMM, 0, math.Max(0, limit))
}
