package arbiter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticket-scanner/internal/model"
	"github.com/iliyamo/event-ticket-scanner/internal/repository"
)

// memStore is an in-memory Store whose MarkScanned has the same
// semantics as the SQL conditional update: it applies only when the
// ticket is still unscanned, atomically under a mutex.
type memStore struct {
	mu      sync.Mutex
	byID    map[uint64]*model.Ticket
	findErr error
	markErr error
}

func newMemStore(tickets ...*model.Ticket) *memStore {
	s := &memStore{byID: make(map[uint64]*model.Ticket)}
	for _, t := range tickets {
		s.byID[t.ID] = t
	}
	return s
}

func (s *memStore) FindByEventAndCode(_ context.Context, eventID uint64, code string) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, t := range s.byID {
		if t.EventID == eventID && t.Code == code {
			cp := *t
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memStore) MarkScanned(_ context.Context, ticketID uint64, scannedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	t, ok := s.byID[ticketID]
	if !ok || t.Scanned {
		return repository.ErrAlreadyScanned
	}
	at := scannedAt.UTC()
	t.Scanned = true
	t.ScannedAt = &at
	return nil
}

func rockTicket() *model.Ticket {
	return &model.Ticket{ID: 1, EventID: 1, Code: "ROCK-AB12-XYZ99"}
}

func TestValidateFirstScanThenRecheck(t *testing.T) {
	store := newMemStore(rockTicket())
	a := New(store)
	ctx := context.Background()

	res, err := a.Validate(ctx, 1, "ROCK-AB12-XYZ99")
	require.NoError(t, err)
	assert.Equal(t, OutcomeValid, res.Outcome)
	require.NotNil(t, res.ScannedAt)
	first := *res.ScannedAt

	// Every subsequent check reports already-scanned with the same
	// timestamp, arbitrarily many times.
	for i := 0; i < 5; i++ {
		res, err = a.Validate(ctx, 1, "ROCK-AB12-XYZ99")
		require.NoError(t, err)
		assert.Equal(t, OutcomeAlreadyScanned, res.Outcome)
		require.NotNil(t, res.ScannedAt)
		assert.Equal(t, first, *res.ScannedAt)
	}
}

func TestValidateEventIsolation(t *testing.T) {
	store := newMemStore(rockTicket())
	a := New(store)

	res, err := a.Validate(context.Background(), 2, "ROCK-AB12-XYZ99")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalid, res.Outcome)
	assert.Nil(t, res.ScannedAt)

	// The ticket under event 1 is untouched by the failed check.
	res, err = a.Validate(context.Background(), 1, "ROCK-AB12-XYZ99")
	require.NoError(t, err)
	assert.Equal(t, OutcomeValid, res.Outcome)
}

func TestValidateUnknownCode(t *testing.T) {
	a := New(newMemStore())

	res, err := a.Validate(context.Background(), 1, "NOPE-00000000-00000000")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalid, res.Outcome)
}

func TestValidateAtMostOnceUnderConcurrency(t *testing.T) {
	const callers = 100
	store := newMemStore(rockTicket())
	a := New(store)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		valid   int
		already int
	)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			res, err := a.Validate(context.Background(), 1, "ROCK-AB12-XYZ99")
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			switch res.Outcome {
			case OutcomeValid:
				valid++
			case OutcomeAlreadyScanned:
				already++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, valid, "exactly one caller wins the race")
	assert.Equal(t, callers-1, already)
}

func TestValidateScannedAtIsWholeSeconds(t *testing.T) {
	// The persisted column holds whole seconds, so the timestamp in the
	// first response must already be truncated or later re-checks would
	// disagree with it.
	noisy := time.Date(2026, 3, 14, 21, 0, 7, 987654321, time.UTC)
	store := newMemStore(rockTicket())
	a := NewWithClock(store, func() time.Time { return noisy })

	res, err := a.Validate(context.Background(), 1, "ROCK-AB12-XYZ99")
	require.NoError(t, err)
	require.Equal(t, OutcomeValid, res.Outcome)
	require.NotNil(t, res.ScannedAt)
	assert.Zero(t, res.ScannedAt.Nanosecond())
	assert.Equal(t, time.Date(2026, 3, 14, 21, 0, 7, 0, time.UTC), *res.ScannedAt)

	recheck, err := a.Validate(context.Background(), 1, "ROCK-AB12-XYZ99")
	require.NoError(t, err)
	require.NotNil(t, recheck.ScannedAt)
	assert.Equal(t, *res.ScannedAt, *recheck.ScannedAt)
}

func TestValidateConflictReportsWinnersTimestamp(t *testing.T) {
	// Simulate losing the race between read and write: the fast-path
	// read sees an unscanned ticket, but the conditional write reports
	// a conflict. The arbiter must answer already-scanned with the
	// winner's timestamp from the re-read, never valid.
	winnerAt := time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC)
	tk := rockTicket()
	store := newMemStore(tk)

	calls := 0
	a := New(&raceStore{memStore: store, onFind: func() {
		calls++
		if calls == 1 {
			// Winner slips in after our first read.
			tk.Scanned = true
			tk.ScannedAt = &winnerAt
		}
	}})

	res, err := a.Validate(context.Background(), 1, "ROCK-AB12-XYZ99")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyScanned, res.Outcome)
	require.NotNil(t, res.ScannedAt)
	assert.Equal(t, winnerAt, *res.ScannedAt)
}

// raceStore lets a test mutate state right after each FindByEventAndCode
// returns, emulating a concurrent winner between read and write.
type raceStore struct {
	*memStore
	onFind func()
}

func (s *raceStore) FindByEventAndCode(ctx context.Context, eventID uint64, code string) (*model.Ticket, error) {
	t, err := s.memStore.FindByEventAndCode(ctx, eventID, code)
	if s.onFind != nil {
		defer s.onFind()
	}
	return t, err
}

func TestValidateTransientErrors(t *testing.T) {
	boom := fmt.Errorf("dial tcp: %w", context.DeadlineExceeded)

	store := newMemStore(rockTicket())
	store.findErr = boom
	a := New(store)

	_, err := a.Validate(context.Background(), 1, "ROCK-AB12-XYZ99")
	require.Error(t, err, "store failure is surfaced, never guessed into an outcome")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// A failing write is transient too: the arbiter must not report
	// invalid or already-scanned for it.
	store.findErr = nil
	store.markErr = boom
	_, err = a.Validate(context.Background(), 1, "ROCK-AB12-XYZ99")
	require.Error(t, err)
}
