package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/labelkit/pkg/errors"
	"github.com/matzehuels/labelkit/pkg/transport"
)

// fakeSender returns the queued errors in order, then succeeds.
type fakeSender struct {
	mu     sync.Mutex
	errs   []error
	calls  int
	delay  time.Duration
	active map[string]int
	peak   map[string]int
	total  atomic.Int32
	max    atomic.Int32
}

func (f *fakeSender) Send(ctx context.Context, job transport.Job) (transport.Result, error) {
	addr := job.Addr()
	f.mu.Lock()
	f.calls++
	if f.active == nil {
		f.active, f.peak = map[string]int{}, map[string]int{}
	}
	f.active[addr]++
	f.peak[addr] = max(f.peak[addr], f.active[addr])
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	f.mu.Unlock()

	n := f.total.Add(1)
	for {
		m := f.max.Load()
		if n <= m || f.max.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(f.delay)
	f.total.Add(-1)

	f.mu.Lock()
	f.active[addr]--
	f.mu.Unlock()

	if err != nil {
		return transport.Result{State: transport.Failed}, err
	}
	return transport.Result{Bytes: len(job.Payload), State: transport.Succeeded}, nil
}

func job(host string) transport.Job {
	return transport.Job{Host: host, Payload: []byte("^XA^XZ")}
}

func TestSubmitRetriesTransient(t *testing.T) {
	f := &fakeSender{errs: []error{
		errors.Connection(nil, "refused"),
		errors.Timeout(nil, "slow"),
	}}
	d := New(f, Config{Retries: 2, RetryDelay: time.Millisecond}, nil)

	res, err := d.Submit(context.Background(), job("10.0.0.5"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if f.calls != 3 {
		t.Errorf("calls = %d, want 3", f.calls)
	}
	if res.State != transport.Succeeded || res.Bytes != 6 {
		t.Errorf("res = %+v", res)
	}
}

func TestSubmitDoesNotRetryWriteOrValidation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code errors.Code
	}{
		{"write", errors.Write(nil, "broken pipe"), errors.ErrCodeWrite},
		{"validation", errors.Validation("host is required"), errors.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeSender{errs: []error{tt.err}}
			d := New(f, Config{Retries: 3, RetryDelay: time.Millisecond}, nil)
			_, err := d.Submit(context.Background(), job("10.0.0.5"))
			if !errors.Is(err, tt.code) {
				t.Fatalf("err = %v, want %s", err, tt.code)
			}
			if f.calls != 1 {
				t.Errorf("calls = %d, want 1", f.calls)
			}
		})
	}
}

func TestSubmitNoRetryByDefault(t *testing.T) {
	f := &fakeSender{errs: []error{errors.Connection(nil, "refused")}}
	d := New(f, DefaultConfig(), nil)
	if _, err := d.Submit(context.Background(), job("10.0.0.5")); !errors.Is(err, errors.ErrCodeConnection) {
		t.Fatalf("err = %v", err)
	}
	if f.calls != 1 {
		t.Errorf("calls = %d, want 1", f.calls)
	}
}

func TestSubmitAllSerializesPerPrinter(t *testing.T) {
	f := &fakeSender{delay: 20 * time.Millisecond}
	d := New(f, DefaultConfig(), nil)

	var jobs []transport.Job
	for range 4 {
		jobs = append(jobs, job("10.0.0.5"), job("10.0.0.6"))
	}
	out, err := d.SubmitAll(context.Background(), jobs, 8)
	if err != nil {
		t.Fatalf("SubmitAll: %v", err)
	}
	if len(out) != len(jobs) {
		t.Fatalf("outcomes = %d, want %d", len(out), len(jobs))
	}
	for addr, peak := range f.peak {
		if peak != 1 {
			t.Errorf("%s: %d concurrent sends, want 1", addr, peak)
		}
	}
	if f.max.Load() < 2 {
		t.Errorf("different printers never ran concurrently")
	}
}

func TestSubmitAllCapacity(t *testing.T) {
	f := &fakeSender{delay: 10 * time.Millisecond}
	d := New(f, DefaultConfig(), nil)

	var jobs []transport.Job
	for _, h := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5", "10.0.0.6"} {
		jobs = append(jobs, job(h))
	}
	if _, err := d.SubmitAll(context.Background(), jobs, 2); err != nil {
		t.Fatalf("SubmitAll: %v", err)
	}
	if got := f.max.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestSubmitAllCollectsErrors(t *testing.T) {
	f := &fakeSender{errs: []error{errors.Write(nil, "reset")}}
	d := New(f, DefaultConfig(), nil)

	jobs := []transport.Job{job("10.0.0.5"), job("10.0.0.5"), job("10.0.0.5")}
	out, err := d.SubmitAll(context.Background(), jobs, 1)
	if err == nil {
		t.Fatal("expected joined error")
	}
	failed := 0
	for i, o := range out {
		if o.Job.Host != jobs[i].Host {
			t.Errorf("outcome %d out of order", i)
		}
		if o.Err != nil {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
}

func TestRetry(t *testing.T) {
	var calls, notified int
	err := Retry(context.Background(), 3, time.Millisecond,
		func(int, error) { notified++ },
		func() error {
			calls++
			return errors.Timeout(nil, "slow")
		})
	if !errors.Is(err, errors.ErrCodeTimeout) {
		t.Fatalf("err = %v", err)
	}
	if calls != 3 || notified != 2 {
		t.Errorf("calls = %d, notified = %d, want 3 and 2", calls, notified)
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, 5, time.Hour, nil, func() error {
		calls++
		cancel()
		return errors.Connection(nil, "refused")
	})
	if err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryZeroAttempts(t *testing.T) {
	calls := 0
	_ = Retry(context.Background(), 0, time.Millisecond, nil, func() error {
		calls++
		return nil
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
