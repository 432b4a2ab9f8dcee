package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticket-scanner/internal/model"
	"github.com/iliyamo/event-ticket-scanner/internal/repository"
)

// EventHandler serves the organizer-facing event CRUD. Every route is
// scoped to the authenticated operator; an event belonging to someone
// else answers 403 without leaking its contents.
type EventHandler struct {
	Events  *repository.EventRepo
	Tickets *repository.TicketRepo
}

func NewEventHandler(events *repository.EventRepo, tickets *repository.TicketRepo) *EventHandler {
	if events == nil || tickets == nil {
		panic("nil repository passed to NewEventHandler")
	}
	return &EventHandler{Events: events, Tickets: tickets}
}

type createEventReq struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	StartsAt     string `json:"starts_at"` // RFC 3339
	Location     string `json:"location"`
	TotalTickets int    `json:"total_tickets"`
}

type eventResp struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	StartsAt     time.Time `json:"starts_at"`
	Location     string    `json:"location"`
	TotalTickets int       `json:"total_tickets"`
	Generated    int       `json:"generated"`
	Scanned      int       `json:"scanned"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateEvent registers a new event for the calling operator. The
// total_tickets field is the hard ceiling later generation calls are
// checked against.
func (h *EventHandler) CreateEvent(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createEventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	if req.TotalTickets < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "total_tickets must be at least 1"})
	}
	startsAt := time.Now().UTC()
	if s := strings.TrimSpace(req.StartsAt); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC 3339"})
		}
		startsAt = parsed.UTC()
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev := &model.Event{
		UserID:       uid,
		Name:         req.Name,
		Description:  strings.TrimSpace(req.Description),
		StartsAt:     startsAt,
		Location:     strings.TrimSpace(req.Location),
		TotalTickets: req.TotalTickets,
	}
	id, err := h.Events.Create(ctx, ev)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create event failed"})
	}

	return c.JSON(http.StatusCreated, eventResp{
		ID:           id,
		Name:         ev.Name,
		Description:  ev.Description,
		StartsAt:     ev.StartsAt,
		Location:     ev.Location,
		TotalTickets: ev.TotalTickets,
		CreatedAt:    time.Now().UTC(),
	})
}

// ListEvents returns the caller's events, newest first, with generated
// and scanned counters for the dashboard.
func (h *EventHandler) ListEvents(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	summaries, err := h.Events.ListByOwner(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list events failed"})
	}

	out := make([]eventResp, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, eventResp{
			ID:           s.Event.ID,
			Name:         s.Event.Name,
			Description:  s.Event.Description,
			StartsAt:     s.Event.StartsAt,
			Location:     s.Event.Location,
			TotalTickets: s.Event.TotalTickets,
			Generated:    s.Generated,
			Scanned:      s.Scanned,
			CreatedAt:    s.Event.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"events": out})
}

// GetEvent returns one event with its counters.
func (h *EventHandler) GetEvent(c echo.Context) error {
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

	generated, err := h.Tickets.CountForEvent(ctx, eventID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "count tickets failed"})
	}
	tickets, err := h.Tickets.ListByEvent(ctx, eventID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list tickets failed"})
	}
	scanned := 0
	for _, t := range tickets {
		if t.Scanned {
			scanned++
		}
	}

	return c.JSON(http.StatusOK, eventResp{
		ID:           ev.ID,
		Name:         ev.Name,
		Description:  ev.Description,
		StartsAt:     ev.StartsAt,
		Location:     ev.Location,
		TotalTickets: ev.TotalTickets,
		Generated:    generated,
		Scanned:      scanned,
		CreatedAt:    ev.CreatedAt,
	})
}

// DeleteEvent removes an event and, through the cascade, its tickets.
func (h *EventHandler) DeleteEvent(c echo.Context) error {
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

	if err := h.Events.DeleteForOwner(ctx, eventID, uid); err != nil {
		switch {
		case err == sql.ErrNoRows:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		case err == repository.ErrForbidden:
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete event failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
