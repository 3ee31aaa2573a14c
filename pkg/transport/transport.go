// Package transport delivers ZPL payloads to network label printers over a
// raw TCP socket (JetDirect style, port 9100 by convention).
//
// A [Sender] makes exactly one attempt per [Job]: it opens a fresh
// connection, writes the payload once, waits a short grace period so the
// printer can drain its buffer, then half-closes and closes the socket. One
// timer spans the whole exchange; when it fires the socket is aborted rather
// than closed gracefully.
//
// The printer never answers, so success means the bytes left this host. The
// package does no retrying and does not serialize jobs for the same printer;
// see package dispatch for that policy.
package transport

import (
	"context"
	stderrors "errors"
	"net"
	"strconv"
	"time"

	"github.com/matzehuels/labelkit/pkg/errors"
)

// Defaults applied to zero-valued [Job] fields.
const (
	DefaultPort    = 9100
	DefaultTimeout = 6 * time.Second
	DefaultGrace   = 100 * time.Millisecond
)

// Job is a single payload addressed to one printer. It is consumed by one
// call to [Sender.Send] and never persisted.
type Job struct {
	Host    string
	Port    int
	Payload []byte

	// Timeout bounds connect, write and grace together.
	Timeout time.Duration
	// Grace is how long to wait after the write before closing.
	Grace time.Duration
}

// Addr returns the host:port dial address.
func (j Job) Addr() string {
	return net.JoinHostPort(j.Host, strconv.Itoa(j.Port))
}

// WithDefaults returns a copy of j with zero fields set to the defaults.
func (j Job) WithDefaults() Job {
	if j.Port == 0 {
		j.Port = DefaultPort
	}
	if j.Timeout <= 0 {
		j.Timeout = DefaultTimeout
	}
	if j.Grace < 0 {
		j.Grace = 0
	} else if j.Grace == 0 {
		j.Grace = DefaultGrace
	}
	return j
}

// Validate reports a validation error for a job that must not be sent.
func (j Job) Validate() error {
	if err := errors.ValidateHost(j.Host); err != nil {
		return err
	}
	if err := errors.ValidatePort(j.Port); err != nil {
		return err
	}
	return errors.ValidatePayload(j.Payload)
}

// Result describes a finished send.
type Result struct {
	Bytes    int
	Duration time.Duration
	State    State
}

// Sender sends jobs. The zero value is ready to use.
type Sender struct {
	// Dialer overrides the dialer used to connect. Its Timeout is ignored;
	// the job timeout applies.
	Dialer *net.Dialer

	// OnState, if set, is called on every state transition. It runs on the
	// sending goroutine and must not block.
	OnState func(job Job, state State)
}

// Send delivers job.Payload to the printer at job.Host:job.Port.
//
// Errors carry one of the codes [errors.ErrCodeInvalidInput] (nothing was
// dialed), [errors.ErrCodeConnection], [errors.ErrCodeWrite] or
// [errors.ErrCodeTimeout]. A cancelled ctx is reported as a timeout. There is
// no partial success: on any error the returned Result has State Failed.
func (s *Sender) Send(ctx context.Context, job Job) (Result, error) {
	job = job.WithDefaults()
	res := Result{State: Idle}
	start := time.Now()

	fail := func(err error) (Result, error) {
		s.transition(job, &res, Failed)
		res.Duration = time.Since(start)
		return res, err
	}

	if err := job.Validate(); err != nil {
		return fail(err)
	}

	ctx, cancel := context.WithTimeout(ctx, job.Timeout)
	defer cancel()

	s.transition(job, &res, Connecting)
	conn, err := s.dialer().DialContext(ctx, "tcp", job.Addr())
	if err != nil {
		if ctx.Err() != nil {
			return fail(errors.Timeout(ctx.Err(), "connect %s: no connection within %s", job.Addr(), job.Timeout))
		}
		return fail(errors.Connection(unwrapOp(err), "connect %s", job.Addr()))
	}

	// Once connected, timer expiry aborts the socket from outside so a
	// stalled write or grace wait cannot outlive the job timeout.
	stop := context.AfterFunc(ctx, func() { abort(conn) })
	timedOut := func() error {
		return errors.Timeout(context.DeadlineExceeded, "send %s: not completed within %s", job.Addr(), job.Timeout)
	}

	s.transition(job, &res, Sending)
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	n, err := conn.Write(job.Payload)
	res.Bytes = n
	if err != nil {
		if stop() {
			abort(conn)
		}
		res.Bytes = 0
		if ctx.Err() != nil || isTimeout(err) {
			return fail(timedOut())
		}
		return fail(errors.Write(unwrapOp(err), "write %s", job.Addr()))
	}

	grace := time.NewTimer(job.Grace)
	select {
	case <-grace.C:
	case <-ctx.Done():
		grace.Stop()
		res.Bytes = 0
		return fail(timedOut())
	}

	s.transition(job, &res, Closing)
	if !stop() {
		// The timer fired between the grace wait and here.
		res.Bytes = 0
		return fail(timedOut())
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}
	if err := conn.Close(); err != nil {
		res.Bytes = 0
		return fail(errors.Write(unwrapOp(err), "close %s", job.Addr()))
	}

	s.transition(job, &res, Succeeded)
	res.Duration = time.Since(start)
	return res, nil
}

// Send delivers job with a zero-value [Sender].
func Send(ctx context.Context, job Job) (Result, error) {
	var s Sender
	return s.Send(ctx, job)
}

func (s *Sender) dialer() *net.Dialer {
	if s.Dialer != nil {
		d := *s.Dialer
		d.Timeout = 0
		return &d
	}
	return &net.Dialer{}
}

func (s *Sender) transition(job Job, res *Result, to State) {
	if res.State == to {
		return
	}
	res.State = to
	if s.OnState != nil {
		s.OnState(job, to)
	}
}

// abort drops the connection without a FIN so the printer discards any
// partial label instead of printing it.
func abort(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetLinger(0)
	}
	_ = conn.Close()
}

func isTimeout(err error) bool {
	var ne net.Error
	return stderrors.As(err, &ne) && ne.Timeout()
}

// unwrapOp strips the *net.OpError envelope, whose message repeats the
// address the caller already reports.
func unwrapOp(err error) error {
	var op *net.OpError
	if stderrors.As(err, &op) && op.Err != nil {
		return op.Err
	}
	return err
}
