package zpl

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ZPL control-prefix characters and their substitutes. The substitution is
// lossy on purpose: existing printer fleets expect exactly these bytes.
var sanitizer = strings.NewReplacer(
	"^", " ",
	"~", "-",
)

// Sanitize replaces the ZPL command prefix '^' with a space and the control
// prefix '~' with '-'. Every other character passes through unchanged.
func Sanitize(s string) string {
	return sanitizer.Replace(s)
}

// FormatPrice renders a price with exactly two decimals and no grouping.
// Rounding is half away from zero on the shortest decimal form of p, so
// 19.995 becomes "20.00". Negative and non-finite prices render as "0.00".
func FormatPrice(p float64) string {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		p = 0
	}
	return decimal.NewFromFloat(p).StringFixed(2)
}

// CountBlocks returns the number of ^XA…^XZ label blocks in a ZPL stream.
func CountBlocks(zpl string) int {
	return strings.Count(zpl, cmdStart)
}

// maxCopies caps a single item's copy count.
const maxCopies = math.MaxInt32

// Copies normalizes a raw quantity to a copy count. Fractions truncate
// toward zero; negative and non-finite values yield zero.
func Copies(q float64) int {
	if math.IsNaN(q) || math.IsInf(q, 0) || q <= 0 {
		return 0
	}
	if q >= maxCopies {
		return maxCopies
	}
	return int(math.Trunc(q))
}
