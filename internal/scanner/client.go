package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client submits codes to the server's validation endpoint. It is the
// Submitter used by the operator CLI. Every call requires the bearer
// access token of an authenticated operator; the server rejects the
// request before any ticket lookup otherwise.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	eventID    uint64
}

// NewClient builds a Client for one event. timeout bounds each
// validation round trip; a request that exceeds it is reported as a
// transient error, never as a business outcome.
func NewClient(baseURL, token string, eventID uint64, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		eventID:    eventID,
	}
}

type validateRequest struct {
	Code string `json:"code"`
}

type validateResponse struct {
	Valid          bool       `json:"valid"`
	AlreadyScanned bool       `json:"alreadyScanned"`
	ScannedAt      *time.Time `json:"scannedAt,omitempty"`
	Message        string     `json:"message,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// Submit posts one code and maps the response onto a Result. Transport
// failures and 5xx responses come back as errors so the loop records
// them as OutcomeError; 4xx responses mean the request itself was bad
// (expired token, malformed code) and are errors as well.
func (c *Client) Submit(ctx context.Context, code string) (Result, error) {
	body, err := json.Marshal(validateRequest{Code: code})
	if err != nil {
		return Result{}, err
	}
	url := fmt.Sprintf("%s/v1/events/%d/validate", c.baseURL, c.eventID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	var vr validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return Result{}, fmt.Errorf("decode validation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := vr.Error
		if msg == "" {
			msg = vr.Message
		}
		return Result{}, fmt.Errorf("validation request failed: status %d: %s", resp.StatusCode, msg)
	}

	res := Result{Message: vr.Message, ScannedAt: vr.ScannedAt}
	switch {
	// Repeat scans answer valid:true as well, so alreadyScanned must
	// win over valid.
	case vr.AlreadyScanned:
		res.Outcome = OutcomeAlreadyScanned
	case vr.Valid:
		res.Outcome = OutcomeValid
	default:
		res.Outcome = OutcomeInvalid
	}
	return res, nil
}
