// Package dispatch adds caller-side policy on top of package transport:
// jobs for the same printer are serialized, transient failures can be
// retried, and batches of independent jobs run with bounded concurrency.
//
// The transport makes one attempt per job and knows nothing about other
// jobs. Two concurrent jobs for one printer would race for its single
// input buffer; a [Dispatcher] holds a per-printer lock so connections to
// one printer never overlap.
package dispatch

import (
	"context"
	stderrors "errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/labelkit/pkg/observability"
	"github.com/matzehuels/labelkit/pkg/transport"
)

// Sender performs a single delivery attempt. *transport.Sender implements it.
type Sender interface {
	Send(ctx context.Context, job transport.Job) (transport.Result, error)
}

// Config holds dispatcher configuration.
type Config struct {
	// Retries is the number of extra attempts after a transient failure.
	// Zero disables retrying.
	Retries    int           `toml:"retries"`
	RetryDelay time.Duration `toml:"retry_delay"`
	// Capacity bounds concurrent jobs in SubmitAll.
	Capacity int `toml:"capacity"`
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Retries:    0,
		RetryDelay: 500 * time.Millisecond,
		Capacity:   4,
	}
}

// Dispatcher routes jobs to printers one at a time per printer.
type Dispatcher struct {
	sender Sender
	config Config
	logger *log.Logger

	mu    sync.Mutex // protects locks
	locks map[string]*sync.Mutex
}

// New creates a dispatcher. A nil sender uses a zero *transport.Sender; a
// nil logger discards output.
func New(sender Sender, config Config, logger *log.Logger) *Dispatcher {
	if sender == nil {
		sender = &transport.Sender{}
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if config.Capacity <= 0 {
		config.Capacity = DefaultConfig().Capacity
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultConfig().RetryDelay
	}
	return &Dispatcher{
		sender: sender,
		config: config,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Submit sends job, waiting for any other job to the same printer to finish
// first. The returned error is the last attempt's error.
func (d *Dispatcher) Submit(ctx context.Context, job transport.Job) (transport.Result, error) {
	job = job.WithDefaults()
	addr := job.Addr()

	lock := d.lock(addr)
	lock.Lock()
	defer lock.Unlock()

	hooks := observability.Print()
	var res transport.Result
	err := Retry(ctx, d.config.Retries+1, d.config.RetryDelay,
		func(attempt int, err error) {
			hooks.OnRetry(ctx, addr, attempt, err)
			d.logger.Warn("print attempt failed, retrying", "printer", addr, "attempt", attempt, "err", err)
		},
		func() error {
			hooks.OnPrintStart(ctx, addr)
			var err error
			res, err = d.sender.Send(ctx, job)
			hooks.OnPrintComplete(ctx, addr, res.Bytes, res.Duration, err)
			return err
		})
	if err != nil {
		if res.State != transport.Failed {
			// Cancelled while waiting to retry.
			res.State = transport.Failed
			res.Bytes = 0
		}
		d.logger.Error("print failed", "printer", addr, "err", err)
		return res, err
	}
	d.logger.Info("printed", "printer", addr, "bytes", res.Bytes, "duration", res.Duration)
	return res, nil
}

// Outcome is the result of one job in a batch.
type Outcome struct {
	Job    transport.Job
	Result transport.Result
	Err    error
}

// SubmitAll sends independent jobs with at most capacity in flight at once
// (the configured Capacity when capacity <= 0). Jobs for the same printer
// still go one at a time. One job failing does not stop the others.
// Outcomes are in job order; the error joins every job error.
func (d *Dispatcher) SubmitAll(ctx context.Context, jobs []transport.Job, capacity int) ([]Outcome, error) {
	if capacity <= 0 {
		capacity = d.config.Capacity
	}
	out := make([]Outcome, len(jobs))

	var g errgroup.Group
	g.SetLimit(capacity)
	for i, job := range jobs {
		g.Go(func() error {
			res, err := d.Submit(ctx, job)
			out[i] = Outcome{Job: job, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, o := range out {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return out, stderrors.Join(errs...)
}

func (d *Dispatcher) lock(addr string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.locks[addr]
	if !ok {
		m = &sync.Mutex{}
		d.locks[addr] = m
	}
	return m
}
