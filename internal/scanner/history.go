package scanner

import (
	"sync"
	"time"
)

// Outcome mirrors the validation endpoint's answer on the client side.
type Outcome string

const (
	OutcomeValid          Outcome = "valid"
	OutcomeAlreadyScanned Outcome = "already_scanned"
	OutcomeInvalid        Outcome = "invalid"
	// OutcomeError marks a transient failure: the request never got a
	// business answer and the same code may simply be scanned again.
	OutcomeError Outcome = "error"
)

// Result is one submission's answer. ScannedAt is set for valid and
// already-scanned outcomes; Message carries the server's human-readable
// text or the transport error.
type Result struct {
	Outcome   Outcome
	ScannedAt *time.Time
	Message   string
}

// Entry is one line of the operator-facing scan history.
type Entry struct {
	Code string
	Result
	At time.Time
}

// History is a bounded, most-recent-first list of entries. It is purely
// observational: nothing in the validation path reads it, so a
// previously rejected code stays re-checkable forever. Oldest entries
// fall off once capacity is reached.
type History struct {
	mu      sync.Mutex
	cap     int
	entries []Entry
}

// NewHistory returns a history holding at most capacity entries.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{cap: capacity}
}

// Add prepends an entry, dropping the oldest when full.
func (h *History) Add(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append([]Entry{e}, h.entries...)
	if len(h.entries) > h.cap {
		h.entries = h.entries[:h.cap]
	}
}

// Snapshot returns a copy of the entries, most recent first.
func (h *History) Snapshot() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of recorded entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
