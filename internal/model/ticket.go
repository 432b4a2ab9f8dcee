package model

import "time"

// Ticket represents a row in the `tickets` table: one redeemable code
// bound to exactly one event. A ticket is created only through batch
// generation and mutated only by the single scanned:false→true
// transition; `code` is unique across the whole system, not merely
// within an event.
//
// Fields:
//  ID        – primary key identifier, immutable.
//  EventID   – owning event, immutable after creation.
//  Code      – globally unique code string, immutable.
//  Scanned   – redemption flag; transitions to true exactly once.
//  ScannedAt – set at the moment of that single transition (null before).
//  CreatedAt – creation timestamp.
type Ticket struct {
	ID        uint64     // tickets.id
	EventID   uint64     // tickets.event_id
	Code      string     // tickets.code
	Scanned   bool       // tickets.scanned
	ScannedAt *time.Time // tickets.scanned_at (nullable)
	CreatedAt time.Time  // tickets.created_at
}
