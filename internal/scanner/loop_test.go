package scanner

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceSource yields a fixed list of codes and then io.EOF, with no
// pacing: every frame is available immediately, like a decoder sampling
// far faster than validations complete.
type sliceSource struct {
	mu     sync.Mutex
	codes  []string
	closed bool
}

func (s *sliceSource) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.codes) == 0 {
		return "", io.EOF
	}
	code := s.codes[0]
	s.codes = s.codes[1:]
	return code, nil
}

func (s *sliceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// countingSubmitter counts calls and can hold each submission open until
// released, so frames keep arriving while a validation is in flight.
type countingSubmitter struct {
	calls   atomic.Int64
	release chan struct{}
	result  Result
	err     error
}

func (c *countingSubmitter) Submit(ctx context.Context, code string) (Result, error) {
	c.calls.Add(1)
	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	return c.result, c.err
}

func TestLoopSingleFlightDiscardsFramesWhileBusy(t *testing.T) {
	frames := make([]string, 50)
	for i := range frames {
		frames[i] = "ROCK-AB12-XYZ99"
	}
	src := &sliceSource{codes: frames}
	sub := &countingSubmitter{
		release: make(chan struct{}),
		result:  Result{Outcome: OutcomeValid},
	}

	l := NewLoop(src, sub, WithCooldown(0))
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	// The first frame starts a submission; the remaining 49 drain and
	// are discarded while it is held open.
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.codes) == 0
	}, time.Second, time.Millisecond)
	close(sub.release)

	require.NoError(t, <-done)
	assert.Equal(t, int64(1), sub.calls.Load(), "one held code, one validation")
	assert.Equal(t, 1, l.History().Len())
}

func TestLoopStateTracksSubmission(t *testing.T) {
	frames := make([]string, 20)
	for i := range frames {
		frames[i] = "ROCK-AB12-XYZ99"
	}
	src := &sliceSource{codes: frames}
	sub := &countingSubmitter{
		release: make(chan struct{}),
		result:  Result{Outcome: OutcomeValid},
	}

	l := NewLoop(src, sub, WithCooldown(0))
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	require.Eventually(t, func() bool { return l.State() == StateSubmitting },
		time.Second, time.Millisecond)

	// Frames keep draining while the submission is held open; none of
	// those iterations may report Capturing.
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.codes) == 0
	}, time.Second, time.Millisecond)
	assert.Equal(t, StateSubmitting, l.State())

	close(sub.release)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, l.State())
}

func TestLoopRecordsEveryOutcome(t *testing.T) {
	src := &sliceSource{codes: []string{"A-1", "B-2", "C-3"}}
	sub := &countingSubmitter{result: Result{Outcome: OutcomeInvalid, Message: "code not recognized"}}

	var notified []Entry
	var mu sync.Mutex
	l := NewLoop(src, sub, WithCooldown(0), WithNotify(func(e Entry) {
		mu.Lock()
		defer mu.Unlock()
		notified = append(notified, e)
	}))

	// With no in-flight holds and zero cooldown the gate may still drop
	// frames that race the flag release, so only the total is bounded.
	require.NoError(t, l.Run(context.Background()))
	got := sub.calls.Load()
	assert.GreaterOrEqual(t, got, int64(1))
	assert.LessOrEqual(t, got, int64(3))
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, notified, int(got))
	assert.Equal(t, int(got), l.History().Len())
}

func TestLoopSubmitterErrorBecomesErrorEntry(t *testing.T) {
	src := &sliceSource{codes: []string{"ROCK-AB12-XYZ99"}}
	sub := &countingSubmitter{err: errors.New("dial tcp: connection refused")}

	l := NewLoop(src, sub, WithCooldown(0))
	require.NoError(t, l.Run(context.Background()))

	entries := l.History().Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, OutcomeError, entries[0].Outcome)
	assert.Contains(t, entries[0].Message, "connection refused")
}

func TestLoopCancellationReleasesSource(t *testing.T) {
	pr, pw := io.Pipe() // never written: the source blocks in read
	defer pw.Close()
	src := NewLineSource(pr)
	sub := &countingSubmitter{}

	ctx, cancel := context.WithCancel(context.Background())
	l := NewLoop(src, sub)

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	cancel()

	err := <-done
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, StateIdle, l.State())
	assert.Equal(t, int64(0), sub.calls.Load())
}

func TestHistoryBoundedMostRecentFirst(t *testing.T) {
	h := NewHistory(3)
	for _, code := range []string{"A", "B", "C", "D"} {
		h.Add(Entry{Code: code, Result: Result{Outcome: OutcomeValid}})
	}

	snap := h.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "D", snap[0].Code)
	assert.Equal(t, "C", snap[1].Code)
	assert.Equal(t, "B", snap[2].Code, "oldest entry A fell off")
}

func TestLineSourceTrimsAndSkipsBlankLines(t *testing.T) {
	src := NewLineSource(strings.NewReader("  ROCK-1  \n\n\t\nROCK-2\n"))
	defer src.Close()

	ctx := context.Background()
	first, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ROCK-1", first)

	second, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ROCK-2", second)

	_, err = src.Next(ctx)
	assert.Equal(t, io.EOF, err)
}
