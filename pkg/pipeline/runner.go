package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/labelkit/pkg/cache"
	"github.com/matzehuels/labelkit/pkg/dispatch"
	"github.com/matzehuels/labelkit/pkg/errors"
	"github.com/matzehuels/labelkit/pkg/observability"
	"github.com/matzehuels/labelkit/pkg/transport"
	"github.com/matzehuels/labelkit/pkg/zpl"
)

// Submitter delivers one print job. *dispatch.Dispatcher implements it.
type Submitter interface {
	Submit(ctx context.Context, job transport.Job) (transport.Result, error)
}

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use it so render caching and printing behave the same
// everywhere.
//
// The Runner is stateless except for its collaborators. Multiple goroutines
// can safely use the same Runner with different options.
type Runner struct {
	Cache      cache.Cache
	Keyer      cache.Keyer
	Dispatcher Submitter
	Logger     *log.Logger
}

// NewRunner creates a runner.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
// If dispatcher is nil, jobs go straight to the transport through a
// dispatcher with the default configuration.
func NewRunner(c cache.Cache, keyer cache.Keyer, dispatcher Submitter, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	if dispatcher == nil {
		dispatcher = dispatch.New(nil, dispatch.DefaultConfig(), logger)
	}
	return &Runner{
		Cache:      c,
		Keyer:      keyer,
		Dispatcher: dispatcher,
		Logger:     logger,
	}
}

// Render produces every requested artifact, reusing cached ones.
func (r *Runner) Render(ctx context.Context, items []zpl.Item, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if err := checkLabelCount(items, opts.MaxLabels); err != nil {
		return nil, err
	}

	hooks := observability.Render()
	hooks.OnRenderStart(ctx, opts.Formats)
	start := time.Now()

	res, err := r.render(ctx, items, opts)
	blocks := 0
	if res != nil {
		res.RenderTime = time.Since(start)
		blocks = res.Blocks
	}
	hooks.OnRenderComplete(ctx, opts.Formats, blocks, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	opts.Logger.Debug("rendered labels",
		"labels", res.Blocks,
		"formats", opts.Formats,
		"cached", res.CacheHit,
		"duration", res.RenderTime)
	return res, nil
}

func (r *Runner) render(ctx context.Context, items []zpl.Item, opts Options) (*Result, error) {
	itemsHash, err := cache.HashJSON(items)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "hash items")
	}
	res := &Result{
		Artifacts: make(map[string][]byte, len(opts.Formats)),
		Blocks:    labelCount(items),
		ItemsHash: itemsHash,
		Geometry:  opts.Geometry,
	}

	var missing []string
	for _, format := range opts.Formats {
		if opts.Refresh {
			missing = append(missing, format)
			continue
		}
		key := r.Keyer.RenderKey(itemsHash, opts.RenderKeyOpts(format))
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			res.Artifacts[format] = data
			continue
		} else if err != nil {
			opts.Logger.Warn("cache read failed", "format", format, "err", err)
		}
		missing = append(missing, format)
	}
	if len(missing) == 0 {
		res.CacheHit = true
		return res, nil
	}

	sub := opts
	sub.Formats = missing
	rendered, err := Render(items, sub)
	if err != nil {
		return nil, err
	}
	for format, data := range rendered {
		res.Artifacts[format] = data
		key := r.Keyer.RenderKey(itemsHash, opts.RenderKeyOpts(format))
		if err := r.Cache.Set(ctx, key, data, ttlFor(format)); err != nil {
			opts.Logger.Warn("cache write failed", "format", format, "err", err)
		}
	}
	return res, nil
}

// Print renders items to ZPL and sends the stream to opts.Printer.
func (r *Runner) Print(ctx context.Context, items []zpl.Item, opts Options) (*PrintResult, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForPrint(); err != nil {
		return nil, err
	}

	renderOpts := opts
	renderOpts.Formats = []string{FormatZPL}
	res, err := r.Render(ctx, items, renderOpts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	if res.Blocks == 0 {
		return nil, errors.Validation("nothing to print: every quantity rounds to zero copies")
	}

	delivery, err := r.Send(ctx, opts.Job(res.Artifacts[FormatZPL]))
	if err != nil {
		return nil, err
	}
	return &PrintResult{Result: *res, Delivery: delivery}, nil
}

// Send delivers a prepared job through the dispatcher.
func (r *Runner) Send(ctx context.Context, job transport.Job) (transport.Result, error) {
	job = job.WithDefaults()
	r.Logger.Debug("sending job", "printer", job.Addr(), "bytes", len(job.Payload), "timeout", job.Timeout)
	return r.Dispatcher.Submit(ctx, job)
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func ttlFor(format string) time.Duration {
	if format == FormatSVG {
		return cache.TTLPreview
	}
	return cache.TTLRender
}
