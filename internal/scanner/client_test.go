package scanner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSubmitOutcomeMapping(t *testing.T) {
	at := time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		body map[string]any
		want Outcome
	}{
		{
			name: "first redemption",
			body: map[string]any{"valid": true, "alreadyScanned": false},
			want: OutcomeValid,
		},
		{
			// Repeat scans carry valid:true plus alreadyScanned:true;
			// they must never be reported as a fresh admission.
			name: "already scanned",
			body: map[string]any{"valid": true, "alreadyScanned": true, "scannedAt": at},
			want: OutcomeAlreadyScanned,
		},
		{
			name: "unknown code",
			body: map[string]any{"valid": false, "alreadyScanned": false, "message": "code not recognized for this event"},
			want: OutcomeInvalid,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/events/5/validate", r.URL.Path)
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(tc.body)
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "tok", 5, time.Second)
			res, err := c.Submit(context.Background(), "RN-ABC-123")
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Outcome)
			if tc.want == OutcomeAlreadyScanned {
				require.NotNil(t, res.ScannedAt)
				assert.Equal(t, at, res.ScannedAt.UTC())
			}
		})
	}
}

func TestClientSubmitServerFailureIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"validation unavailable"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", 5, time.Second)
	_, err := c.Submit(context.Background(), "RN-ABC-123")
	require.Error(t, err, "a 5xx carries no business outcome")
	assert.Contains(t, err.Error(), "status 500")
}
