package geometry

import (
	"math"
	"testing"
)

func TestNormalizeDefault(t *testing.T) {
	g := Default()
	if got := g.Normalize(); got != g {
		t.Errorf("Normalize(Default()) = %+v, want unchanged %+v", got, g)
	}
}

func TestNormalizeBounds(t *testing.T) {
	tests := []struct {
		name string
		in   PrintGeometry
		want PrintGeometry
	}{
		{
			name: "oversized media",
			in:   PrintGeometry{WidthMM: 200, HeightMM: 400, MarginMM: 2, BarHeightMM: 10},
			want: PrintGeometry{WidthMM: 135, HeightMM: 300, MarginMM: 2, BarHeightMM: 10},
		},
		{
			name: "zero dimensions",
			in:   PrintGeometry{},
			want: PrintGeometry{WidthMM: 1, HeightMM: 1, MarginMM: 0, BarHeightMM: 4},
		},
		{
			name: "margin eats label",
			in:   PrintGeometry{WidthMM: 20, HeightMM: 10, MarginMM: 8, BarHeightMM: 10},
			want: PrintGeometry{WidthMM: 20, HeightMM: 10, MarginMM: 3, BarHeightMM: 4},
		},
		{
			name: "qr clamped",
			in:   PrintGeometry{WidthMM: 50, HeightMM: 30, MarginMM: 2, BarHeightMM: 10, QRSizeMM: 80},
			want: PrintGeometry{WidthMM: 50, HeightMM: 30, MarginMM: 2, BarHeightMM: 10, QRSizeMM: 22},
		},
		{
			name: "nan everywhere",
			in:   PrintGeometry{WidthMM: math.NaN(), HeightMM: math.NaN(), MarginMM: math.NaN(), BarHeightMM: math.NaN()},
			want: PrintGeometry{WidthMM: 1, HeightMM: 1, MarginMM: 0, BarHeightMM: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Normalize(); got != tt.want {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizeKeepsUsableArea(t *testing.T) {
	for w := 10.0; w <= MaxWidthMM; w += 4.5 {
		for h := 10.0; h <= 80; h += 3.5 {
			g := PrintGeometry{WidthMM: w, HeightMM: h, MarginMM: 50, BarHeightMM: 10}.Normalize()
			if g.UsableWidthMM() < MinUsableMM-1e-9 || g.UsableHeightMM() < MinUsableMM-1e-9 {
				t.Fatalf("usable area below %vmm for %+v", MinUsableMM, g)
			}
			if g.MarginMM < 0 {
				t.Fatalf("negative margin for %+v", g)
			}
		}
	}
}

func TestDots(t *testing.T) {
	w, h := PrintGeometry{WidthMM: 50, HeightMM: 30}.Dots(203)
	if w != 400 || h != 240 {
		t.Errorf("Dots(203) = %d×%d, want 400×240", w, h)
	}
}
