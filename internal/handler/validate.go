package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticket-scanner/internal/arbiter"
	"github.com/iliyamo/event-ticket-scanner/internal/model"
	"github.com/iliyamo/event-ticket-scanner/internal/queue"
	queue_publisher "github.com/iliyamo/event-ticket-scanner/internal/service"
)

// eventGetter is the slice of the event repository the validation path
// needs.
type eventGetter interface {
	GetByID(ctx context.Context, eventID uint64) (*model.Event, error)
}

// validator decides the business outcome for one (event, code) pair.
type validator interface {
	Validate(ctx context.Context, eventID uint64, code string) (arbiter.Result, error)
}

// ValidateHandler serves the gate-facing scan endpoint. It answers with
// a business outcome for every well-formed request; only store failures
// produce a 5xx, which scanning clients treat as retryable.
type ValidateHandler struct {
	Events  eventGetter
	Arbiter validator
	// Publish emits the admission audit message. Swappable in tests;
	// defaults to the RabbitMQ publisher.
	Publish func(ctx context.Context, ev queue.TicketScannedEvent) error
}

func NewValidateHandler(events eventGetter, arb validator) *ValidateHandler {
	if events == nil || arb == nil {
		panic("nil dependency passed to NewValidateHandler")
	}
	return &ValidateHandler{
		Events:  events,
		Arbiter: arb,
		Publish: queue_publisher.PublishTicketScanned,
	}
}

type validateReq struct {
	Code string `json:"code"`
}

type validateResp struct {
	Valid          bool       `json:"valid"`
	AlreadyScanned bool       `json:"alreadyScanned"`
	ScannedAt      *time.Time `json:"scannedAt,omitempty"`
	Message        string     `json:"message,omitempty"`
}

// ValidateTicket checks one scanned code against one event. Outcomes:
//
//	valid           first redemption; the ticket is now consumed
//	alreadyScanned  redeemed earlier, scannedAt says when
//	neither         code not recognized for this event
//
// Input problems are rejected before any ticket lookup. Rejected codes
// are never blocked from rechecking; a typo at the gate costs one more
// scan, nothing else.
func (h *ValidateHandler) ValidateTicket(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req validateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev, err := h.Events.GetByID(ctx, eventID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load event failed"})
	}
	// Operators scan their own events; admins may scan any.
	if ev.UserID != uid && getRole(c) != "ADMIN" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	res, err := h.Arbiter.Validate(ctx, eventID, code)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "validation unavailable"})
	}

	switch res.Outcome {
	case arbiter.OutcomeValid:
		if h.Publish != nil {
			scannedAt := ""
			if res.ScannedAt != nil {
				scannedAt = res.ScannedAt.Format(time.RFC3339)
			}
			msg := queue.TicketScannedEvent{
				TicketID:   res.TicketID,
				EventID:    eventID,
				EventName:  ev.Name,
				Code:       code,
				OperatorID: uid,
				ScannedAt:  scannedAt,
			}
			// Fire and forget: the admission stands whether or not the
			// audit message lands.
			go func() {
				pctx, pcancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer pcancel()
				_ = h.Publish(pctx, msg)
			}()
		}
		return c.JSON(http.StatusOK, validateResp{
			Valid:     true,
			ScannedAt: res.ScannedAt,
			Message:   "ticket accepted",
		})
	case arbiter.OutcomeAlreadyScanned:
		// The code is genuine, so valid stays true; alreadyScanned tells
		// the gate it cannot admit on it again.
		return c.JSON(http.StatusOK, validateResp{
			Valid:          true,
			AlreadyScanned: true,
			ScannedAt:      res.ScannedAt,
			Message:        "ticket was already scanned",
		})
	default:
		return c.JSON(http.StatusOK, validateResp{
			Message: "code not recognized for this event",
		})
	}
}
