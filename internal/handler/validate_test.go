package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticket-scanner/internal/arbiter"
	"github.com/iliyamo/event-ticket-scanner/internal/model"
	"github.com/iliyamo/event-ticket-scanner/internal/queue"
)

type fakeEvents struct {
	event *model.Event
	err   error
}

func (f *fakeEvents) GetByID(context.Context, uint64) (*model.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.event, nil
}

type fakeArbiter struct {
	result arbiter.Result
	err    error
	calls  int
	code   string
}

func (f *fakeArbiter) Validate(_ context.Context, _ uint64, code string) (arbiter.Result, error) {
	f.calls++
	f.code = code
	if f.err != nil {
		return arbiter.Result{}, f.err
	}
	return f.result, nil
}

func validateCtx(t *testing.T, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/events/1/validate", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/events/:id/validate")
	c.SetParamNames("id")
	c.SetParamValues("1")
	c.Set("user_id", float64(7))
	c.Set("role", "OPERATOR")
	return c, rec
}

func gateEvent() *model.Event {
	return &model.Event{ID: 1, UserID: 7, Name: "Rock Night", TotalTickets: 100}
}

func TestValidateTicketRejectsMissingCode(t *testing.T) {
	arb := &fakeArbiter{}
	h := NewValidateHandler(&fakeEvents{event: gateEvent()}, arb)
	h.Publish = nil

	c, rec := validateCtx(t, `{"code":"   "}`)
	require.NoError(t, h.ValidateTicket(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, arb.calls, "malformed input is rejected before any lookup")
}

func TestValidateTicketUnknownEvent(t *testing.T) {
	h := NewValidateHandler(&fakeEvents{err: sql.ErrNoRows}, &fakeArbiter{})
	h.Publish = nil

	c, rec := validateCtx(t, `{"code":"RN-X-Y"}`)
	require.NoError(t, h.ValidateTicket(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidateTicketForbiddenForOtherOperator(t *testing.T) {
	ev := gateEvent()
	ev.UserID = 99
	arb := &fakeArbiter{}
	h := NewValidateHandler(&fakeEvents{event: ev}, arb)
	h.Publish = nil

	c, rec := validateCtx(t, `{"code":"RN-X-Y"}`)
	require.NoError(t, h.ValidateTicket(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, arb.calls)
}

func TestValidateTicketAdminMayScanAnyEvent(t *testing.T) {
	ev := gateEvent()
	ev.UserID = 99
	h := NewValidateHandler(&fakeEvents{event: ev}, &fakeArbiter{result: arbiter.Result{Outcome: arbiter.OutcomeInvalid}})
	h.Publish = nil

	c, rec := validateCtx(t, `{"code":"RN-X-Y"}`)
	c.Set("role", "ADMIN")
	require.NoError(t, h.ValidateTicket(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateTicketFirstRedemption(t *testing.T) {
	at := time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC)
	arb := &fakeArbiter{result: arbiter.Result{Outcome: arbiter.OutcomeValid, ScannedAt: &at, TicketID: 42}}
	h := NewValidateHandler(&fakeEvents{event: gateEvent()}, arb)

	published := make(chan queue.TicketScannedEvent, 1)
	h.Publish = func(_ context.Context, ev queue.TicketScannedEvent) error {
		published <- ev
		return nil
	}

	c, rec := validateCtx(t, `{"code":"RN-ABC-123"}`)
	require.NoError(t, h.ValidateTicket(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp validateResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.False(t, resp.AlreadyScanned)
	require.NotNil(t, resp.ScannedAt)
	assert.Equal(t, at, resp.ScannedAt.UTC())
	assert.Equal(t, "RN-ABC-123", arb.code)

	select {
	case msg := <-published:
		assert.Equal(t, uint64(42), msg.TicketID)
		assert.Equal(t, "Rock Night", msg.EventName)
		assert.Equal(t, uint64(7), msg.OperatorID)
	case <-time.After(time.Second):
		t.Fatal("admission was not published")
	}
}

func TestValidateTicketAlreadyScanned(t *testing.T) {
	at := time.Date(2026, 3, 14, 20, 30, 0, 0, time.UTC)
	arb := &fakeArbiter{result: arbiter.Result{Outcome: arbiter.OutcomeAlreadyScanned, ScannedAt: &at, TicketID: 42}}
	h := NewValidateHandler(&fakeEvents{event: gateEvent()}, arb)

	publishCalls := 0
	h.Publish = func(context.Context, queue.TicketScannedEvent) error {
		publishCalls++
		return nil
	}

	c, rec := validateCtx(t, `{"code":"RN-ABC-123"}`)
	require.NoError(t, h.ValidateTicket(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp validateResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Valid, "a genuine code stays valid on repeat scans")
	assert.True(t, resp.AlreadyScanned)
	require.NotNil(t, resp.ScannedAt)
	assert.Equal(t, at, resp.ScannedAt.UTC())
	assert.Zero(t, publishCalls, "repeat scans are not audit events")
}

func TestValidateTicketUnknownCode(t *testing.T) {
	h := NewValidateHandler(&fakeEvents{event: gateEvent()}, &fakeArbiter{result: arbiter.Result{Outcome: arbiter.OutcomeInvalid}})
	h.Publish = nil

	c, rec := validateCtx(t, `{"code":"NOPE-1-1"}`)
	require.NoError(t, h.ValidateTicket(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp validateResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
	assert.False(t, resp.AlreadyScanned)
	assert.Nil(t, resp.ScannedAt)
}

func TestValidateTicketStoreFailure(t *testing.T) {
	h := NewValidateHandler(&fakeEvents{event: gateEvent()}, &fakeArbiter{err: errors.New("connection reset")})
	h.Publish = nil

	c, rec := validateCtx(t, `{"code":"RN-ABC-123"}`)
	require.NoError(t, h.ValidateTicket(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
