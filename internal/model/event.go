package model

import "time"

// Event represents a row in the `events` table. An event is owned by
// the operator who created it and bounds how many tickets may be
// generated for it. Deleting an event cascades to its tickets.
//
// Fields:
//  ID           – primary key identifier.
//  UserID       – operator who owns the event.
//  Name         – event name; its initials seed the ticket code prefix.
//  Description  – free-form description (may be empty).
//  StartsAt     – when the event takes place.
//  Location     – venue description (may be empty).
//  TotalTickets – capacity; generation may never exceed this count.
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last update timestamp.
type Event struct {
	ID           uint64    // events.id
	UserID       uint64    // events.user_id
	Name         string    // events.name
	Description  string    // events.description
	StartsAt     time.Time // events.starts_at
	Location     string    // events.location
	TotalTickets int       // events.total_tickets
	CreatedAt    time.Time // events.created_at
	UpdatedAt    time.Time // events.updated_at
}
