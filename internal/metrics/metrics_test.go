package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"/", "/"},
		{"/health", "/health"},
		{"/api/v1/circles/active", "/api/v1/circles/active"},
		{"/api/v1/practitioners", "/api/v1/practitioners"},
		{"/api/v1/practitioners/abc", "/api/v1/practitioners/:id"},
		{"/api/v1/practitioners/abc/sessions/end", "/api/v1/practitioners/:id/sessions/end"},
		{"/api/v1/practitioners/abc/circles/xyz/join", "/api/v1/practitioners/:id/circles/:circle/join"},
		{"/api/v1/practitioners/abc/donate/def", "/api/v1/practitioners/:id/donate/:to"},
		{"/api/v1/practitioners/abc/companions/matched", "/api/v1/practitioners/:id/companions/matched"},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.want, canonicalPath(tc.raw))
		})
	}
}

func TestInstrumentHandler_CountsRequests(t *testing.T) {
	handler := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/v1/practitioners/:id", "418"))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/practitioners/p1", nil))

	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/v1/practitioners/:id", "418"))
	assert.Equal(t, before+1, after)
}

func TestSetPresence(t *testing.T) {
	SetPresence(2, 5)

	assert.Equal(t, float64(2), testutil.ToFloat64(presenceConnections))
	assert.Equal(t, float64(5), testutil.ToFloat64(presenceSessions))
}

func TestRecordVirtualRegistration_IgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(virtualRegistrations)

	RecordVirtualRegistration(0)
	RecordVirtualRegistration(3)

	assert.Equal(t, before+3, testutil.ToFloat64(virtualRegistrations))
}

func TestHandlerExposesRegistry(t *testing.T) {
	RecordPresenceEvent("start_session", "accepted")
	rec := httptest.NewRecorder()

	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "sangha_presence_events_total"))
}
