package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/labelkit/pkg/errors"
	"github.com/matzehuels/labelkit/pkg/geometry"
	"github.com/matzehuels/labelkit/pkg/transport"
	"github.com/matzehuels/labelkit/pkg/zpl"
)

var sampleItems = []zpl.Item{{Code: "ABC-123", Name: "Tornillo M8", UnitPrice: 19.5, Copies: 2}}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"zpl", false},
		{"svg", false},
		{"json", false},
		{"png", true},
		{"ZPL", true}, // case-sensitive; ValidateAndSetDefaults lowercases first
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, errors.ErrCodeInvalidInput) {
			t.Errorf("ValidateFormat(%q) code = %s", tt.format, errors.GetCode(err))
		}
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("empty options should pass: %v", err)
	}
	if opts.Geometry != geometry.Default().Normalize() {
		t.Errorf("Geometry = %+v, want default", opts.Geometry)
	}
	if opts.DPI != 203 {
		t.Errorf("DPI = %d, want 203", opts.DPI)
	}
	if len(opts.Formats) != 1 || opts.Formats[0] != FormatZPL {
		t.Errorf("Formats = %v, want [zpl]", opts.Formats)
	}
	if opts.Logger == nil {
		t.Error("Logger not defaulted")
	}
}

func TestOptionsNormalizesFormatsWithoutMutatingCaller(t *testing.T) {
	formats := []string{" SVG", "zpl", "svg"}
	opts := Options{Formats: formats}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if strings.Join(opts.Formats, ",") != "svg,zpl" {
		t.Errorf("Formats = %v", opts.Formats)
	}
	if formats[0] != " SVG" {
		t.Error("caller slice modified")
	}
}

func TestOptionsRejects(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		code errors.Code
	}{
		{"dpi", Options{DPI: 150}, errors.ErrCodeInvalidDPI},
		{"format", Options{Formats: []string{"pdf"}}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.ValidateAndSetDefaults(); !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestOptionsClampsGeometry(t *testing.T) {
	opts := Options{Geometry: geometry.PrintGeometry{WidthMM: 900, HeightMM: 30, MarginMM: 2}}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("oversized geometry should be clamped, got %v", err)
	}
	if opts.Geometry.WidthMM != geometry.MaxWidthMM {
		t.Errorf("WidthMM = %v, want %v", opts.Geometry.WidthMM, geometry.MaxWidthMM)
	}
	if opts.Geometry.BarHeightMM == 0 {
		t.Error("BarHeightMM not defaulted")
	}
}

func TestOptionsKeepsZeroMargin(t *testing.T) {
	opts := Options{Geometry: geometry.PrintGeometry{WidthMM: 50, HeightMM: 30, MarginMM: 0, BarHeightMM: 10}}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if opts.Geometry.MarginMM != 0 {
		t.Fatalf("MarginMM = %v, want 0", opts.Geometry.MarginMM)
	}
	out := zpl.Build(sampleItems, opts.ZPLOptions())
	if !strings.Contains(out, "^FO0,0^A0N") {
		t.Errorf("name field not at the label origin:\n%s", out)
	}
}

func TestValidateForPrint(t *testing.T) {
	opts := Options{}
	if err := opts.ValidateForPrint(); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("missing printer err = %v", err)
	}
	opts = Options{Printer: "10.0.0.9", Port: 99999}
	if err := opts.ValidateForPrint(); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("bad port err = %v", err)
	}
	opts = Options{Printer: "10.0.0.9"}
	if err := opts.ValidateForPrint(); err != nil {
		t.Errorf("valid print options: %v", err)
	}
}

func TestRenderFormats(t *testing.T) {
	opts := Options{Formats: []string{"zpl", "svg", "json"}, ShowQR: true}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	art, err := Render(sampleItems, opts)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if n := zpl.CountBlocks(string(art[FormatZPL])); n != 2 {
		t.Errorf("zpl blocks = %d, want 2", n)
	}
	if !strings.Contains(string(art[FormatZPL]), "^BQN") {
		t.Error("zpl missing QR")
	}
	if !strings.HasPrefix(string(art[FormatSVG]), "<svg") || !strings.Contains(string(art[FormatSVG]), "Tornillo M8") {
		t.Errorf("svg = %.80s", art[FormatSVG])
	}

	var s Summary
	if err := json.Unmarshal(art[FormatJSON], &s); err != nil {
		t.Fatalf("json artifact: %v", err)
	}
	if s.Labels != 2 || s.DPI != 203 || s.Dots != [2]int{400, 240} || len(s.Items) != 1 {
		t.Errorf("summary = %+v", s)
	}
}

func TestRenderPreviewEmpty(t *testing.T) {
	opts := Options{}
	_ = opts.ValidateAndSetDefaults()
	if svg := RenderPreview(nil, opts); !strings.HasPrefix(string(svg), "<svg") {
		t.Errorf("empty preview = %q", svg)
	}
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.data[key]
	return d, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
	c.sets++
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) Close() error { return nil }

type fakeSubmitter struct {
	jobs []transport.Job
	err  error
}

func (f *fakeSubmitter) Submit(_ context.Context, job transport.Job) (transport.Result, error) {
	f.jobs = append(f.jobs, job)
	if f.err != nil {
		return transport.Result{State: transport.Failed}, f.err
	}
	return transport.Result{Bytes: len(job.Payload), State: transport.Succeeded}, nil
}

func TestRunnerRenderCaches(t *testing.T) {
	ctx := context.Background()
	c := newMemCache()
	r := NewRunner(c, nil, &fakeSubmitter{}, nil)

	first, err := r.Render(ctx, sampleItems, Options{Formats: []string{"zpl", "svg"}})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if first.CacheHit || c.sets != 2 {
		t.Errorf("first render: hit=%v sets=%d, want miss and 2 sets", first.CacheHit, c.sets)
	}

	second, err := r.Render(ctx, sampleItems, Options{Formats: []string{"zpl", "svg"}})
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheHit || string(second.Artifacts["zpl"]) != string(first.Artifacts["zpl"]) {
		t.Error("second render should come from cache")
	}

	// Partial hit renders only the missing format.
	third, _ := r.Render(ctx, sampleItems, Options{Formats: []string{"zpl", "json"}})
	if third.CacheHit || c.sets != 3 || len(third.Artifacts) != 2 {
		t.Errorf("partial: hit=%v sets=%d artifacts=%d", third.CacheHit, c.sets, len(third.Artifacts))
	}

	// Different DPI is a different entry.
	fourth, _ := r.Render(ctx, sampleItems, Options{DPI: 300})
	if fourth.CacheHit {
		t.Error("dpi change should miss the cache")
	}

	refreshed, _ := r.Render(ctx, sampleItems, Options{Refresh: true})
	if refreshed.CacheHit {
		t.Error("Refresh should bypass cache reads")
	}
}

func TestRunnerPrint(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{}
	r := NewRunner(nil, nil, sub, nil)

	res, err := r.Print(ctx, sampleItems, Options{Printer: "10.0.0.9", Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	if len(sub.jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(sub.jobs))
	}
	job := sub.jobs[0]
	if job.Host != "10.0.0.9" || job.Port != transport.DefaultPort || job.Timeout != 2*time.Second {
		t.Errorf("job = %+v", job)
	}
	if zpl.CountBlocks(string(job.Payload)) != 2 || res.Blocks != 2 {
		t.Errorf("payload blocks = %d, result blocks = %d", zpl.CountBlocks(string(job.Payload)), res.Blocks)
	}
	if res.Delivery.Bytes != len(job.Payload) {
		t.Errorf("delivery bytes = %d", res.Delivery.Bytes)
	}
}

func TestRunnerPrintErrors(t *testing.T) {
	ctx := context.Background()

	sub := &fakeSubmitter{}
	r := NewRunner(nil, nil, sub, nil)
	zero := []zpl.Item{{Code: "A", Copies: 0}}
	if _, err := r.Print(ctx, zero, Options{Printer: "10.0.0.9"}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("zero copies err = %v", err)
	}
	if _, err := r.Print(ctx, sampleItems, Options{}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("no printer err = %v", err)
	}
	if len(sub.jobs) != 0 {
		t.Errorf("invalid prints reached the dispatcher: %d jobs", len(sub.jobs))
	}

	failing := &fakeSubmitter{err: errors.Timeout(nil, "printer 10.0.0.9:9100 timed out")}
	r = NewRunner(nil, nil, failing, nil)
	if _, err := r.Print(ctx, sampleItems, Options{Printer: "10.0.0.9"}); !errors.Is(err, errors.ErrCodeTimeout) {
		t.Errorf("timeout err = %v", err)
	}
}

func TestRunnerRejectsTooManyLabels(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{}
	r := NewRunner(nil, nil, sub, nil)

	tests := []struct {
		name    string
		copies  int
		limit   int
		wantErr bool
	}{
		{"at limit", 3, 3, false},
		{"over limit", 4, 3, true},
		{"default limit", DefaultMaxLabels, 0, false},
		{"over default limit", DefaultMaxLabels + 1, 0, true},
		{"max int32 copies", zpl.Copies(1e12), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := []zpl.Item{{Code: "A", Copies: tt.copies}}
			_, err := r.Render(ctx, items, Options{MaxLabels: tt.limit})
			if tt.wantErr != (err != nil) {
				t.Fatalf("Render err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("err = %v, want %s", err, errors.ErrCodeInvalidInput)
			}
			if _, err := Render(items, Options{MaxLabels: tt.limit}); tt.wantErr != (err != nil) {
				t.Errorf("package Render err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	huge := []zpl.Item{{Code: "A", Copies: 4}, {Code: "B", Copies: 4}}
	if _, err := r.Print(ctx, huge, Options{Printer: "10.0.0.9", MaxLabels: 5}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("print over limit err = %v", err)
	}
	if len(sub.jobs) != 0 {
		t.Errorf("oversized print reached the dispatcher: %d jobs", len(sub.jobs))
	}
}
