package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/labelkit/pkg/errors"
)

// fakePrinter accepts connections and records everything written to it.
type fakePrinter struct {
	ln   net.Listener
	mu   sync.Mutex
	got  [][]byte
	done chan struct{}
}

func newFakePrinter(t *testing.T) *fakePrinter {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	p := &fakePrinter{ln: ln, done: make(chan struct{}, 16)}
	t.Cleanup(func() { ln.Close() })
	go p.serve()
	return p
}

func (p *fakePrinter) serve() {
	for {
		conn, err := p.ln.Accept()
		if err != nil {
			return
		}
		go func() {
			defer conn.Close()
			data, _ := io.ReadAll(conn)
			p.mu.Lock()
			p.got = append(p.got, data)
			p.mu.Unlock()
			p.done <- struct{}{}
		}()
	}
}

func (p *fakePrinter) port() int {
	return p.ln.Addr().(*net.TCPAddr).Port
}

func (p *fakePrinter) wait(t *testing.T) []byte {
	t.Helper()
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		t.Fatal("printer received nothing")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.got[len(p.got)-1]
}

func TestSendDelivers(t *testing.T) {
	p := newFakePrinter(t)
	payload := []byte("^XA\n^FDhello^FS\n^XZ\n")

	var states []State
	s := &Sender{OnState: func(_ Job, st State) { states = append(states, st) }}
	res, err := s.Send(context.Background(), Job{
		Host:    "127.0.0.1",
		Port:    p.port(),
		Payload: payload,
		Grace:   10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Bytes != len(payload) {
		t.Errorf("Bytes = %d, want %d", res.Bytes, len(payload))
	}
	if res.State != Succeeded {
		t.Errorf("State = %s, want succeeded", res.State)
	}
	if got := p.wait(t); !bytes.Equal(got, payload) {
		t.Errorf("printer got %q, want %q", got, payload)
	}

	want := []State{Connecting, Sending, Closing, Succeeded}
	if !slices.Equal(states, want) {
		t.Errorf("states = %v, want %v", states, want)
	}
}

func TestSendWaitsGrace(t *testing.T) {
	p := newFakePrinter(t)
	grace := 150 * time.Millisecond

	res, err := Send(context.Background(), Job{Host: "127.0.0.1", Port: p.port(), Payload: []byte("x"), Grace: grace})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Duration < grace {
		t.Errorf("Duration = %s, want >= grace %s", res.Duration, grace)
	}
}

func TestSendValidation(t *testing.T) {
	tests := []struct {
		name string
		job  Job
	}{
		{"empty host", Job{Payload: []byte("x")}},
		{"blank host", Job{Host: "  ", Payload: []byte("x")}},
		{"host with port", Job{Host: "10.0.0.5:9100", Payload: []byte("x")}},
		{"empty payload", Job{Host: "127.0.0.1"}},
		{"bad port", Job{Host: "127.0.0.1", Port: 70000, Payload: []byte("x")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var states []State
			s := &Sender{OnState: func(_ Job, st State) { states = append(states, st) }}
			res, err := s.Send(context.Background(), tt.job)
			if !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Fatalf("err = %v, want %s", err, errors.ErrCodeInvalidInput)
			}
			if res.State != Failed || res.Bytes != 0 {
				t.Errorf("res = %+v, want failed with 0 bytes", res)
			}
			if slices.Contains(states, Connecting) {
				t.Error("validation failure must not dial")
			}
		})
	}
}

func TestSendConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	res, err := Send(context.Background(), Job{Host: "127.0.0.1", Port: port, Payload: []byte("x")})
	if !errors.Is(err, errors.ErrCodeConnection) {
		t.Fatalf("err = %v, want %s", err, errors.ErrCodeConnection)
	}
	if res.State != Failed {
		t.Errorf("State = %s, want failed", res.State)
	}
	if msg := errors.UserMessage(err); msg == "" {
		t.Error("empty user message")
	}
}

func TestSendUnreachableNeverHangs(t *testing.T) {
	timeout := 300 * time.Millisecond
	start := time.Now()

	// 192.0.2.0/24 is reserved for documentation and never routed.
	_, err := Send(context.Background(), Job{Host: "192.0.2.1", Payload: []byte("x"), Timeout: timeout})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, errors.ErrCodeTimeout) && !errors.Is(err, errors.ErrCodeConnection) {
		t.Fatalf("err = %v, want timeout or connection error", err)
	}
	if elapsed := time.Since(start); elapsed > timeout+time.Second {
		t.Errorf("Send took %s with timeout %s", elapsed, timeout)
	}
}

func TestSendTimeoutDuringGrace(t *testing.T) {
	p := newFakePrinter(t)
	start := time.Now()

	res, err := Send(context.Background(), Job{
		Host:    "127.0.0.1",
		Port:    p.port(),
		Payload: []byte("^XA^XZ"),
		Timeout: 100 * time.Millisecond,
		Grace:   5 * time.Second,
	})
	if !errors.Is(err, errors.ErrCodeTimeout) {
		t.Fatalf("err = %v, want %s", err, errors.ErrCodeTimeout)
	}
	if res.Bytes != 0 {
		t.Errorf("Bytes = %d, want 0 on failure", res.Bytes)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Send took %s, timer did not abort", elapsed)
	}
}

func TestSendCancelled(t *testing.T) {
	p := newFakePrinter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Send(ctx, Job{Host: "127.0.0.1", Port: p.port(), Payload: []byte("x")})
	if !errors.Is(err, errors.ErrCodeTimeout) {
		t.Fatalf("err = %v, want %s", err, errors.ErrCodeTimeout)
	}
}

func TestJobDefaults(t *testing.T) {
	j := Job{Host: "printer"}.WithDefaults()
	if j.Port != DefaultPort || j.Timeout != DefaultTimeout || j.Grace != DefaultGrace {
		t.Errorf("WithDefaults() = %+v", j)
	}
	if got := (Job{Grace: -1}).WithDefaults().Grace; got != 0 {
		t.Errorf("negative grace = %s, want 0", got)
	}
	if got, want := j.Addr(), net.JoinHostPort("printer", strconv.Itoa(DefaultPort)); got != want {
		t.Errorf("Addr() = %q, want %q", got, want)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Idle, "idle"},
		{Connecting, "connecting"},
		{Sending, "sending"},
		{Closing, "closing"},
		{Succeeded, "succeeded"},
		{Failed, "failed"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.s), got, tt.want)
		}
	}
	if !Failed.Terminal() || Sending.Terminal() {
		t.Error("Terminal() mismatch")
	}
}
