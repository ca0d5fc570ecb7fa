package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestServiceOf(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"auth server", "auth-server/api/auth/login", "auth-server"},
		{"crawler admin", "/crawler-service/admin/start", "crawler-service"},
		{"gateway health", "actuator/health", "gateway"},
		{"gateway routes", "actuator/gateway/routes", "gateway"},
		{"registry", "eureka/apps", "registry"},
		{"search with query", "search?query=go", "query-service"},
		{"suggestions", "suggestions", "query-service"},
		{"empty", "", "gateway"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ServiceOf(tc.input); got != tc.expected {
				t.Errorf("ServiceOf(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	require.NotNil(t, gatewayRequestsTotal)
	require.NotNil(t, cacheLookupsTotal)
	require.NotNil(t, healthServiceUp)
}

func TestObserveHelpers(t *testing.T) {
	ObserveGatewayRequest("metrics-test-service", http.MethodGet, 200, 10*time.Millisecond)
	require.InDelta(t, 1, testutil.ToFloat64(
		gatewayRequestsTotal.WithLabelValues("metrics-test-service", http.MethodGet, "200")), 0)

	ObserveRetry("metrics-test-service")
	ObserveRetry("metrics-test-service")
	require.InDelta(t, 2, testutil.ToFloat64(gatewayRetriesTotal.WithLabelValues("metrics-test-service")), 0)

	SetServiceUp("metrics-test-service", true)
	require.InDelta(t, 1, testutil.ToFloat64(healthServiceUp.WithLabelValues("metrics-test-service")), 0)
	SetServiceUp("metrics-test-service", false)
	require.InDelta(t, 0, testutil.ToFloat64(healthServiceUp.WithLabelValues("metrics-test-service")), 0)

	SetCacheEntries(3)
	require.InDelta(t, 3, testutil.ToFloat64(cacheEntries), 0)
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	ObserveSessionTransition("authenticated")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "searchconsole_session_transitions_total")
}

func FuzzServiceOf(f *testing.F) {
	for _, tc := range []string{"search", "auth-server/api", "/", "eureka/apps?x=1"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, path string) {
		if ServiceOf(path) == "" {
			t.Errorf("ServiceOf(%q) returned empty label", path)
		}
	})
}
