package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticket-scanner/internal/model"
	"github.com/iliyamo/event-ticket-scanner/internal/repository"
	"github.com/iliyamo/event-ticket-scanner/internal/ticketcode"
)

// ownedEventStore is the slice of the event repository the ticket
// routes need: ownership-checked reads plus the activity timestamp.
type ownedEventStore interface {
	GetByIDForOwner(ctx context.Context, eventID, ownerID uint64) (*model.Event, error)
	Touch(ctx context.Context, eventID uint64, at time.Time) error
}

// ticketStore is the slice of the ticket repository used here.
type ticketStore interface {
	CountForEvent(ctx context.Context, eventID uint64) (int, error)
	InsertBatch(ctx context.Context, eventID uint64, codes []string) error
	InsertOne(ctx context.Context, eventID uint64, code string) error
	ListByEvent(ctx context.Context, eventID uint64) ([]model.Ticket, error)
}

// insertChunkSize bounds how many rows go into one INSERT statement.
const insertChunkSize = 500

// regenRetries bounds how often a single colliding slot is redrawn
// before it is reported as a shortfall.
const regenRetries = 5

// TicketHandler serves batch code generation and the ticket listing
// used for printing and export.
type TicketHandler struct {
	Events  ownedEventStore
	Tickets ticketStore
	Gen     *ticketcode.Generator
}

func NewTicketHandler(events ownedEventStore, tickets ticketStore, gen *ticketcode.Generator) *TicketHandler {
	if events == nil || tickets == nil || gen == nil {
		panic("nil dependency passed to NewTicketHandler")
	}
	return &TicketHandler{Events: events, Tickets: tickets, Gen: gen}
}

type generateReq struct {
	Quantity int `json:"quantity"`
}

type generateResp struct {
	EventID   uint64   `json:"event_id"`
	Requested int      `json:"requested"`
	Persisted int      `json:"persisted"`
	Codes     []string `json:"codes"`
}

type ticketResp struct {
	ID        uint64     `json:"id"`
	Code      string     `json:"code"`
	Scanned   bool       `json:"scanned"`
	ScannedAt *time.Time `json:"scanned_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// GenerateTickets creates a batch of codes for an event. The batch is
// rejected up front when it would exceed the event's ticket ceiling.
// Codes are inserted in chunks; a unique-index collision falls back to
// per-row insertion so only the colliding slot is redrawn, never the
// whole batch.
func (h *TicketHandler) GenerateTickets(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req generateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Quantity < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be at least 1"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	ev, err := h.Events.GetByIDForOwner(ctx, eventID, uid)
	if err != nil {
		switch {
		case err == sql.ErrNoRows:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		case err == repository.ErrForbidden:
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load event failed"})
	}

	existing, err := h.Tickets.CountForEvent(ctx, eventID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "count tickets failed"})
	}
	if existing+req.Quantity > ev.TotalTickets {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     "ticket limit exceeded",
			"limit":     ev.TotalTickets,
			"generated": existing,
			"remaining": ev.TotalTickets - existing,
		})
	}

	codes, err := h.Gen.Generate(ev.Name, req.Quantity, existing)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "generate codes failed"})
	}

	persisted := make([]string, 0, len(codes))
	for start := 0; start < len(codes); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(codes) {
			end = len(codes)
		}
		chunk := codes[start:end]

		err := h.Tickets.InsertBatch(ctx, eventID, chunk)
		if err == nil {
			persisted = append(persisted, chunk...)
			continue
		}
		if !errors.Is(err, repository.ErrDuplicateCode) {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "persist tickets failed"})
		}
		// At least one code in the chunk collided with an existing row.
		// Insert per row so only colliding slots are redrawn.
		saved, err := h.insertPerRow(ctx, eventID, ev.Name, existing+start, chunk)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "persist tickets failed"})
		}
		persisted = append(persisted, saved...)
	}

	_ = h.Events.Touch(ctx, eventID, time.Now().UTC())

	status := http.StatusCreated
	if len(persisted) < req.Quantity {
		// Shortfall after retries; the caller sees exactly what stuck.
		status = http.StatusOK
	}
	return c.JSON(status, generateResp{
		EventID:   eventID,
		Requested: req.Quantity,
		Persisted: len(persisted),
		Codes:     persisted,
	})
}

// insertPerRow inserts a chunk one code at a time, redrawing any code
// that collides with the unique index. A slot that keeps colliding
// after regenRetries redraws is dropped.
func (h *TicketHandler) insertPerRow(ctx context.Context, eventID uint64, eventName string, slotBase int, chunk []string) ([]string, error) {
	saved := make([]string, 0, len(chunk))
	for i, code := range chunk {
		attempt := code
		for try := 0; ; try++ {
			err := h.Tickets.InsertOne(ctx, eventID, attempt)
			if err == nil {
				saved = append(saved, attempt)
				break
			}
			if !errors.Is(err, repository.ErrDuplicateCode) {
				return nil, err
			}
			if try >= regenRetries {
				break
			}
			redraw, err := h.Gen.Generate(eventName, 1, slotBase+i+try+1)
			if err != nil {
				return nil, err
			}
			attempt = redraw[0]
		}
	}
	return saved, nil
}

// ListTickets returns every code of an event in creation order.
func (h *TicketHandler) ListTickets(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Events.GetByIDForOwner(ctx, eventID, uid); err != nil {
		switch {
		case err == sql.ErrNoRows:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		case err == repository.ErrForbidden:
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load event failed"})
	}

	tickets, err := h.Tickets.ListByEvent(ctx, eventID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list tickets failed"})
	}

	out := make([]ticketResp, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, ticketResp{
			ID:        t.ID,
			Code:      t.Code,
			Scanned:   t.Scanned,
			ScannedAt: t.ScannedAt,
			CreatedAt: t.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"event_id": eventID, "tickets": out})
}
