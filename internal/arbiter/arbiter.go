// Package arbiter decides the outcome of ticket validation requests.
// It implements read-then-conditional-write: a fast-path read skips the
// write for tickets that are already redeemed, but whenever a write is
// attempted the conditional update is the sole authority for the final
// answer. Many concurrent callers may validate the same code; exactly
// one observes a valid first redemption and every other caller is told
// the ticket was already scanned. The mutual exclusion lives entirely
// in the store's conditional update, so the arbiter itself holds no
// state between calls.
package arbiter

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-ticket-scanner/internal/model"
	"github.com/iliyamo/event-ticket-scanner/internal/repository"
)

// Outcome enumerates the business results of a validation request.
type Outcome string

const (
	// OutcomeValid is the single first successful redemption of a code.
	OutcomeValid Outcome = "valid"
	// OutcomeAlreadyScanned means the code matched but was redeemed
	// earlier (or lost the race to a concurrent caller).
	OutcomeAlreadyScanned Outcome = "already_scanned"
	// OutcomeInvalid means no ticket with this code exists for the event.
	OutcomeInvalid Outcome = "invalid"
)

// Result is the structured answer for one validation request. ScannedAt
// is set for valid and already-scanned outcomes and reports when the
// winning redemption happened, so repeated checks of the same code keep
// surfacing the same timestamp.
type Result struct {
	Outcome   Outcome
	ScannedAt *time.Time
	// TicketID identifies the matched ticket for valid and
	// already-scanned outcomes; zero when the code matched nothing.
	TicketID uint64
}

// Store is the slice of the ticket repository the arbiter needs. The
// one property required of MarkScanned is that it is atomic with
// respect to the row's prior value: it must apply only when the ticket
// is still unscanned and report repository.ErrAlreadyScanned otherwise.
type Store interface {
	FindByEventAndCode(ctx context.Context, eventID uint64, code string) (*model.Ticket, error)
	MarkScanned(ctx context.Context, ticketID uint64, scannedAt time.Time) error
}

// Arbiter validates codes against a Store. Construct with New; the
// clock is a field so tests can pin scannedAt values.
type Arbiter struct {
	store Store
	now   func() time.Time
}

// New returns an Arbiter backed by the given store and the wall clock.
func New(store Store) *Arbiter {
	return &Arbiter{store: store, now: time.Now}
}

// NewWithClock returns an Arbiter with an explicit time source. Intended
// for tests.
func NewWithClock(store Store, now func() time.Time) *Arbiter {
	return &Arbiter{store: store, now: now}
}

// Validate evaluates one (eventID, code) pair. Business outcomes —
// valid, already-scanned, invalid — come back as a Result with a nil
// error. A non-nil error means the store could not answer (timeout,
// connectivity) and carries no information about the business outcome;
// the whole request is safe to retry.
func (a *Arbiter) Validate(ctx context.Context, eventID uint64, code string) (Result, error) {
	ticket, err := a.store.FindByEventAndCode(ctx, eventID, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No ticket under this event. A matching code under a
			// different event lands here too.
			return Result{Outcome: OutcomeInvalid}, nil
		}
		return Result{}, err
	}

	if ticket.Scanned {
		// Fast path: redeemed before we even tried. No write attempted.
		return Result{Outcome: OutcomeAlreadyScanned, ScannedAt: ticket.ScannedAt, TicketID: ticket.ID}, nil
	}

	// DATETIME stores whole seconds; truncate before the write so the
	// first redemption reports the same instant every re-check reads
	// back later.
	scannedAt := a.now().UTC().Truncate(time.Second)
	err = a.store.MarkScanned(ctx, ticket.ID, scannedAt)
	if err == nil {
		return Result{Outcome: OutcomeValid, ScannedAt: &scannedAt, TicketID: ticket.ID}, nil
	}
	if !errors.Is(err, repository.ErrAlreadyScanned) {
		return Result{}, err
	}

	// Lost the race between read and write. Re-read for the winner's
	// scannedAt so every loser reports the same timestamp.
	ticket, err = a.store.FindByEventAndCode(ctx, eventID, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The ticket vanished under us (event deletion cascade);
			// the redemption still happened, just without a timestamp.
			return Result{Outcome: OutcomeAlreadyScanned}, nil
		}
		return Result{}, err
	}
	return Result{Outcome: OutcomeAlreadyScanned, ScannedAt: ticket.ScannedAt, TicketID: ticket.ID}, nil
}
