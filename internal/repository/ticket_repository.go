package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/event-ticket-scanner/internal/model"
)

// TicketRepo provides data access to the tickets table. It is the
// adapter in front of the authoritative record of redemptions: the
// single-statement conditional update in MarkScanned is what upholds
// the at-most-once guarantee, so no method here takes an in-process
// lock and none retries a conflict on its own.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the provided database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// isDuplicateKey reports whether err is a MySQL duplicate-key error
// (error 1062, raised here by the unique index on tickets.code).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}

// InsertBatch inserts one ticket row per code in a single statement.
// The statement is all-or-nothing: on a duplicate code nothing from the
// batch is persisted and ErrDuplicateCode is returned so the caller can
// fall back to per-row insertion and regenerate only the colliding
// slots. Passing an empty slice has no effect and returns nil.
func (r *TicketRepo) InsertBatch(ctx context.Context, eventID uint64, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	query := `INSERT INTO tickets (event_id, code, scanned) VALUES `
	args := make([]interface{}, 0, len(codes)*2)
	for i, code := range codes {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, 0)"
		args = append(args, eventID, code)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	if isDuplicateKey(err) {
		return ErrDuplicateCode
	}
	return err
}

// InsertOne inserts a single ticket row. A collision on the code's
// unique index returns ErrDuplicateCode wrapped with the code so the
// caller knows which slot to regenerate.
func (r *TicketRepo) InsertOne(ctx context.Context, eventID uint64, code string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tickets (event_id, code, scanned) VALUES (?, ?, 0)`,
		eventID, code)
	if isDuplicateKey(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateCode, code)
	}
	return err
}

// FindByEventAndCode returns the ticket matching both the event and the
// code. sql.ErrNoRows is returned when the code does not exist at all
// or exists under a different event; callers cannot tell the two cases
// apart, which keeps a code from ever validating across events.
func (r *TicketRepo) FindByEventAndCode(ctx context.Context, eventID uint64, code string) (*model.Ticket, error) {
	var (
		t         model.Ticket
		scannedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, event_id, code, scanned, scanned_at, created_at
		 FROM tickets WHERE event_id = ? AND code = ? LIMIT 1`,
		eventID, code).
		Scan(&t.ID, &t.EventID, &t.Code, &t.Scanned, &scannedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if scannedAt.Valid {
		at := scannedAt.Time.UTC()
		t.ScannedAt = &at
	}
	return &t, nil
}

// MarkScanned performs the scanned:false→true transition, recording
// scannedAt, but only if the persisted row is still unscanned at the
// moment of the write. The WHERE clause is the compare-and-set: when
// zero rows are affected another caller won the race and
// ErrAlreadyScanned is returned. The error is a business outcome; it
// must not be retried.
func (r *TicketRepo) MarkScanned(ctx context.Context, ticketID uint64, scannedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tickets SET scanned = 1, scanned_at = ? WHERE id = ? AND scanned = 0`,
		scannedAt.UTC().Format("2006-01-02 15:04:05"), ticketID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAlreadyScanned
	}
	return nil
}

// ListByEvent returns all tickets of an event in creation order. Used
// by the export/printing surface.
func (r *TicketRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, code, scanned, scanned_at, created_at
		 FROM tickets WHERE event_id = ? ORDER BY created_at ASC, id ASC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := make([]model.Ticket, 0)
	for rows.Next() {
		var (
			t         model.Ticket
			scannedAt sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.EventID, &t.Code, &t.Scanned, &scannedAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		if scannedAt.Valid {
			at := scannedAt.Time.UTC()
			t.ScannedAt = &at
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

// CountForEvent returns how many tickets exist for the event. The
// generation endpoint uses this both for the capacity check and as the
// existingCount fed to the code generator.
func (r *TicketRepo) CountForEvent(ctx context.Context, eventID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE event_id = ?`, eventID).Scan(&n)
	return n, err
}
