// Package scanner runs the client-side continuous scan loop: it pulls
// decoded payloads from a Source and forwards them to the validation
// endpoint one at a time. A single busy flag gates submission — frames
// decoded while a validation is outstanding or cooling down are
// discarded, never queued, so one physical QR code held in front of
// the sensor across many sampling frames produces exactly one request.
package scanner

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// State is the loop's explicit phase, exported so callers (and tests)
// can audit resource handling instead of inferring it from booleans.
type State int32

const (
	StateIdle State = iota
	StateCapturing
	StateSubmitting
	StateCooling
)

const (
	defaultCooldown    = 2 * time.Second
	defaultHistorySize = 10
)

// Submitter forwards one code to the scan arbiter and reports the
// outcome. A non-nil error means no business answer was obtained
// (timeout, connectivity, 5xx); the loop records it as OutcomeError.
type Submitter interface {
	Submit(ctx context.Context, code string) (Result, error)
}

// Loop drives a Source against a Submitter. Construct with NewLoop.
type Loop struct {
	source    Source
	submitter Submitter

	cooldown time.Duration
	history  *History
	notify   func(Entry)

	busy  atomic.Bool
	state atomic.Int32
	wg    sync.WaitGroup
}

// Option tweaks a Loop.
type Option func(*Loop)

// WithCooldown sets the settle time after each outcome before the next
// frame is accepted.
func WithCooldown(d time.Duration) Option {
	return func(l *Loop) {
		if d >= 0 {
			l.cooldown = d
		}
	}
}

// WithHistorySize bounds the outcome history.
func WithHistorySize(n int) Option {
	return func(l *Loop) { l.history = NewHistory(n) }
}

// WithNotify registers a callback invoked for every recorded entry,
// after it is added to the history. Used by the CLI to print outcomes.
func WithNotify(fn func(Entry)) Option {
	return func(l *Loop) { l.notify = fn }
}

// NewLoop returns a loop with the default 2s cool-down and a 10-entry
// history.
func NewLoop(source Source, submitter Submitter, opts ...Option) *Loop {
	l := &Loop{
		source:    source,
		submitter: submitter,
		cooldown:  defaultCooldown,
		history:   NewHistory(defaultHistorySize),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// State reports the loop's current phase.
func (l *Loop) State() State { return State(l.state.Load()) }

// History exposes the bounded outcome history for operator review.
func (l *Loop) History() *History { return l.history }

// Run consumes the source until it is exhausted or ctx is cancelled.
// Stopping releases the source immediately; a validation already in
// flight completes and its result is recorded, but nothing further is
// submitted. The busy flag is released unconditionally on the way out
// so a restarted loop never starts wedged.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		l.source.Close()
		l.wg.Wait() // let an in-flight submission record its result
		l.busy.Store(false)
		l.state.Store(int32(StateIdle))
	}()

	for {
		// Only advertise Capturing while no submission owns the flag;
		// the submit goroutine reports Submitting/Cooling itself.
		if !l.busy.Load() {
			l.state.Store(int32(StateCapturing))
		}
		code, err := l.source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		// Single-flight gate: while a submission is outstanding or
		// cooling down, freshly decoded frames are dropped.
		if !l.busy.CompareAndSwap(false, true) {
			continue
		}

		l.wg.Add(1)
		go l.submit(ctx, code)
	}
}

func (l *Loop) submit(ctx context.Context, code string) {
	defer l.wg.Done()
	l.state.Store(int32(StateSubmitting))

	res, err := l.submitter.Submit(ctx, code)
	if err != nil {
		res = Result{Outcome: OutcomeError, Message: err.Error()}
	}
	entry := Entry{Code: code, Result: res, At: time.Now().UTC()}
	l.history.Add(entry)
	if l.notify != nil {
		l.notify(entry)
	}

	// Settle time so the operator can read the outcome before the next
	// frame is accepted. Cancellation skips the wait but still clears
	// the flag below.
	l.state.Store(int32(StateCooling))
	if l.cooldown > 0 {
		t := time.NewTimer(l.cooldown)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
	}
	l.busy.Store(false)
}
