package zpl

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/matzehuels/labelkit/pkg/geometry"
)

var defaultOpts = Options{WidthMM: 50, HeightMM: 30, DPI: 203}

func TestBuildEndToEnd(t *testing.T) {
	items := []Item{{Code: "ABC-123", Name: "Tornillo M8", UnitPrice: 19.5, Copies: 2}}
	out := Build(items, Options{WidthMM: 50, HeightMM: 30, DPI: 203, ShowQR: false})

	blocks := splitBlocks(out)
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2:\n%s", len(blocks), out)
	}
	for i, b := range blocks {
		for _, want := range []string{"ABC-123", "$19.50", "Tornillo M8", "^PW400", "^LL240", "^CI28", "^BCN", "^GB"} {
			if !strings.Contains(b, want) {
				t.Errorf("block %d missing %q:\n%s", i, want, b)
			}
		}
	}
	if strings.Contains(out, "^BQ") {
		t.Errorf("unexpected QR field:\n%s", out)
	}
}

func TestBuildMarginOrigin(t *testing.T) {
	items := []Item{{Code: "A1", Name: "Uno", Copies: 1}}
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"zero margin from geometry", FromGeometry(geometry.PrintGeometry{WidthMM: 50, HeightMM: 30, BarHeightMM: 10}, 203, false), "^FO0,0^A0N"},
		{"unset margin defaults", Options{WidthMM: 50, HeightMM: 30, DPI: 203}, "^FO16,16^A0N"},
		{"explicit margin", FromGeometry(geometry.PrintGeometry{WidthMM: 50, HeightMM: 30, MarginMM: 2, BarHeightMM: 10}, 300, false), "^FO24,24^A0N"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Build(items, tt.opts)
			if !strings.Contains(out, tt.want) {
				t.Errorf("missing %q:\n%s", tt.want, out)
			}
		})
	}
}

func TestBuildBlockCount(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
		want  int
	}{
		{"nil", nil, 0},
		{"all zero", []Item{{Code: "A"}, {Code: "B"}}, 0},
		{"negative copies", []Item{{Code: "A", Copies: -3}}, 0},
		{"single", []Item{{Code: "A", Copies: 1}}, 1},
		{"mixed", []Item{{Code: "A", Copies: 3}, {Code: "B"}, {Code: "C", Copies: 2}}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Build(tt.items, defaultOpts)
			if got := CountBlocks(out); got != tt.want {
				t.Errorf("CountBlocks = %d, want %d", got, tt.want)
			}
			if got := strings.Count(out, cmdEnd); got != tt.want {
				t.Errorf("%s count = %d, want %d", cmdEnd, got, tt.want)
			}
			if tt.want == 0 && out != "" {
				t.Errorf("Build = %q, want empty", out)
			}
		})
	}
}

func TestBuildOrdering(t *testing.T) {
	items := []Item{
		{Code: "FIRST", Copies: 2},
		{Code: "SECOND", Copies: 1},
		{Code: "THIRD", Copies: 2},
	}
	blocks := splitBlocks(Build(items, defaultOpts))
	want := []string{"FIRST", "FIRST", "SECOND", "THIRD", "THIRD"}
	if len(blocks) != len(want) {
		t.Fatalf("got %d blocks, want %d", len(blocks), len(want))
	}
	for i, code := range want {
		if !strings.Contains(blocks[i], "^FD"+code+"^FS") {
			t.Errorf("block %d does not carry %s", i, code)
		}
	}
}

func TestBuildSanitizes(t *testing.T) {
	items := []Item{{Code: "A^B~C", Name: "x^XAy~z ñ", Copies: 1}}
	out := Build(items, defaultOpts)

	if !strings.Contains(out, "^FDA B-C^FS") {
		t.Errorf("code not sanitized:\n%s", out)
	}
	if !strings.Contains(out, "^FDx XAy-z ñ^FS") {
		t.Errorf("name not sanitized:\n%s", out)
	}
	if got := CountBlocks(out); got != 1 {
		t.Errorf("injected ^XA survived: %d blocks", got)
	}
}

func TestBuildPrice(t *testing.T) {
	tests := []struct {
		price float64
		want  string
	}{
		{19, "$19.00"},
		{19.995, "$20.00"},
		{0.1, "$0.10"},
		{1234567.891, "$1234567.89"},
		{-4, "$0.00"},
		{math.NaN(), "$0.00"},
	}

	for _, tt := range tests {
		out := Build([]Item{{Code: "P", UnitPrice: tt.price, Copies: 1}}, defaultOpts)
		if !strings.Contains(out, tt.want) {
			t.Errorf("price %v: output missing %q", tt.price, tt.want)
		}
	}
}

func TestBuildQR(t *testing.T) {
	items := []Item{{Code: "QR-1", Name: "With QR", Copies: 1}}
	plain := Build(items, defaultOpts)

	opts := defaultOpts
	opts.ShowQR = true
	out := Build(items, opts)

	if !strings.Contains(out, "^BQN,2,6^FDQA,QR-1^FS") {
		t.Fatalf("missing QR field:\n%s", out)
	}

	qrX := fieldOrigin(t, out, "^BQN")[0]
	if qrX <= 400/2 || qrX >= 400 {
		t.Errorf("QR x = %d, want in right half of 400-dot label", qrX)
	}
	if got, full := fieldBlockWidth(t, out), fieldBlockWidth(t, plain); got >= full {
		t.Errorf("name block width with QR = %d, want < %d", got, full)
	}
	if nameEnd := fieldOrigin(t, out, "^A0N")[0] + fieldBlockWidth(t, out); nameEnd > qrX {
		t.Errorf("name block ends at %d, overlaps QR at %d", nameEnd, qrX)
	}
}

func TestBuildScalesWithDPI(t *testing.T) {
	items := []Item{{Code: "S", Name: "Scale", UnitPrice: 1, Copies: 1}}
	at := func(dpi int) string {
		o := defaultOpts
		o.DPI = dpi
		o.ShowQR = true
		return Build(items, o)
	}

	lo, hi := at(300), at(600)
	for _, cmd := range []string{"^BCN", "^BQN", "^GB"} {
		a, b := fieldOrigin(t, lo, cmd), fieldOrigin(t, hi, cmd)
		for i := range a {
			if diff := b[i] - 2*a[i]; diff < -1 || diff > 1 {
				t.Errorf("%s origin at 600dpi = %d, want 2×%d ±1", cmd, b[i], a[i])
			}
		}
	}
	if !strings.Contains(hi, "^PW1181") {
		t.Errorf("600dpi width not in dots:\n%s", hi)
	}
}

func TestBuildDefaultsDPI(t *testing.T) {
	items := []Item{{Code: "D", Copies: 1}}
	if got, want := Build(items, Options{WidthMM: 50, HeightMM: 30}), Build(items, defaultOpts); got != want {
		t.Errorf("zero DPI output differs from 203 dpi output")
	}
}

func TestBuildBarcodeFitsLabel(t *testing.T) {
	for _, dpi := range []int{203, 300, 600} {
		for h := 10.0; h <= 120; h += 5 {
			out := Build([]Item{{Code: "B", Copies: 1}}, Options{WidthMM: 60, HeightMM: h, DPI: dpi})
			y := fieldOrigin(t, out, "^BCN")[1]
			m := regexp.MustCompile(`\^BCN,(\d+)`).FindStringSubmatch(out)
			bar, _ := strconv.Atoi(m[1])
			ll := regexp.MustCompile(`\^LL(\d+)`).FindStringSubmatch(out)
			height, _ := strconv.Atoi(ll[1])
			if h >= 25 && y+bar > height {
				t.Errorf("dpi %d h %vmm: barcode ends at %d beyond label %d", dpi, h, y+bar, height)
			}
		}
	}
}

type failWriter struct{ after int }

func (w *failWriter) Write(p []byte) (int, error) {
	if w.after == 0 {
		return 0, errors.New("disk full")
	}
	w.after--
	return len(p), nil
}

func TestEncoderWriteError(t *testing.T) {
	enc := NewEncoder(&failWriter{after: 2}, defaultOpts)
	n, err := enc.Encode([]Item{{Code: "E", Copies: 5}})
	if err == nil {
		t.Fatal("expected error")
	}
	if n != 2 {
		t.Errorf("blocks written = %d, want 2", n)
	}
}

func TestCopies(t *testing.T) {
	tests := []struct {
		q    float64
		want int
	}{
		{0, 0},
		{1, 1},
		{2.9, 2},
		{-1.5, 0},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{1e12, maxCopies},
	}

	for _, tt := range tests {
		if got := Copies(tt.q); got != tt.want {
			t.Errorf("Copies(%v) = %d, want %d", tt.q, got, tt.want)
		}
	}
}

func TestSanitize(t *testing.T) {
	in := "a^b~c\td é"
	if got, want := Sanitize(in), "a b-c\td é"; got != want {
		t.Errorf("Sanitize(%q) = %q, want %q", in, got, want)
	}
}

func splitBlocks(s string) []string {
	var out []string
	for _, part := range strings.SplitAfter(s, cmdEnd+"\n") {
		if strings.TrimSpace(part) != "" {
			out = append(out, part)
		}
	}
	return out
}

// fieldOrigin returns the ^FO x,y of the first field containing cmd.
func fieldOrigin(t *testing.T, s, cmd string) [2]int {
	t.Helper()
	re := regexp.MustCompile(`\^FO(\d+),(\d+)[^\n]*` + regexp.QuoteMeta(cmd))
	m := re.FindStringSubmatch(s)
	if m == nil {
		t.Fatalf("no field with %s in:\n%s", cmd, s)
	}
	x, _ := strconv.Atoi(m[1])
	y, _ := strconv.Atoi(m[2])
	return [2]int{x, y}
}

func fieldBlockWidth(t *testing.T, s string) int {
	t.Helper()
	m := regexp.MustCompile(`\^FB(\d+),`).FindStringSubmatch(s)
	if m == nil {
		t.Fatalf("no ^FB in:\n%s", s)
	}
	w, _ := strconv.Atoi(m[1])
	return w
}
