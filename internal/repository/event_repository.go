package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/event-ticket-scanner/internal/model"
)

// EventRepo provides persistence for events. Events are owned by the
// operator who created them; all read paths that take an ownerID
// enforce that ownership and return ErrForbidden on mismatch.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// Create inserts an event and returns its generated ID.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO events (user_id, name, description, starts_at, location, total_tickets)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Name, e.Description, e.StartsAt.UTC().Format("2006-01-02 15:04:05"), e.Location, e.TotalTickets)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByIDForOwner returns an event after checking that it belongs to
// ownerID. sql.ErrNoRows is returned when the event does not exist and
// ErrForbidden when it belongs to another operator.
func (r *EventRepo) GetByIDForOwner(ctx context.Context, eventID, ownerID uint64) (*model.Event, error) {
	var e model.Event
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, description, starts_at, location, total_tickets, created_at, updated_at
		 FROM events WHERE id = ?`, eventID).
		Scan(&e.ID, &e.UserID, &e.Name, &e.Description, &e.StartsAt, &e.Location, &e.TotalTickets, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if e.UserID != ownerID {
		return nil, ErrForbidden
	}
	return &e, nil
}

// GetByID returns an event with no ownership check. The validation
// path uses it so the handler can decide itself who may scan.
func (r *EventRepo) GetByID(ctx context.Context, eventID uint64) (*model.Event, error) {
	var e model.Event
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, description, starts_at, location, total_tickets, created_at, updated_at
		 FROM events WHERE id = ?`, eventID).
		Scan(&e.ID, &e.UserID, &e.Name, &e.Description, &e.StartsAt, &e.Location, &e.TotalTickets, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// EventSummary pairs an event with its ticket counters for dashboard
// listings: how many codes exist and how many have been redeemed.
type EventSummary struct {
	Event     model.Event
	Generated int
	Scanned   int
}

// ListByOwner returns all events owned by ownerID, newest first, each
// with its generated and scanned ticket counts. The counts come from a
// single grouped query to avoid one round trip per event.
func (r *EventRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]EventSummary, error) {
	const q = `SELECT e.id, e.user_id, e.name, e.description, e.starts_at, e.location, e.total_tickets,
	                  e.created_at, e.updated_at,
	                  COUNT(t.id), COALESCE(SUM(t.scanned), 0)
	           FROM events e
	           LEFT JOIN tickets t ON t.event_id = e.id
	           WHERE e.user_id = ?
	           GROUP BY e.id
	           ORDER BY e.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]EventSummary, 0)
	for rows.Next() {
		var s EventSummary
		if err := rows.Scan(
			&s.Event.ID, &s.Event.UserID, &s.Event.Name, &s.Event.Description, &s.Event.StartsAt,
			&s.Event.Location, &s.Event.TotalTickets, &s.Event.CreatedAt, &s.Event.UpdatedAt,
			&s.Generated, &s.Scanned,
		); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// DeleteForOwner removes an event after an ownership check. Tickets go
// with it via the ON DELETE CASCADE foreign key on tickets.event_id.
func (r *EventRepo) DeleteForOwner(ctx context.Context, eventID, ownerID uint64) error {
	var actualOwner uint64
	err := r.db.QueryRowContext(ctx, `SELECT user_id FROM events WHERE id = ?`, eventID).Scan(&actualOwner)
	if err != nil {
		return err
	}
	if actualOwner != ownerID {
		return ErrForbidden
	}
	_, err = r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, eventID)
	return err
}

// Touch updates the event's updated_at column. Called after ticket
// generation so dashboard listings reflect recent activity.
func (r *EventRepo) Touch(ctx context.Context, eventID uint64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE events SET updated_at = ? WHERE id = ?`,
		at.UTC().Format("2006-01-02 15:04:05"), eventID)
	return err
}
