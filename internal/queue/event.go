// Package queue defines message payloads exchanged over the message broker.
package queue

// TicketScannedEvent is published when a ticket is redeemed at the gate
// for the first time. It carries enough for downstream consumers to
// build an audit trail or attendance analytics without querying the
// primary database. Rejected and repeated scans are not published; the
// queue records admissions, not attempts.
type TicketScannedEvent struct {
	TicketID   uint64 `json:"ticket_id"`
	EventID    uint64 `json:"event_id"`
	EventName  string `json:"event_name"`
	Code       string `json:"code"`
	OperatorID uint64 `json:"operator_id"`
	ScannedAt  string `json:"scanned_at"`
}
