package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/searchconsole/internal/admin"
	"github.com/JakeFAU/searchconsole/internal/app"
	"github.com/JakeFAU/searchconsole/internal/config"
	"github.com/JakeFAU/searchconsole/internal/gateway"
	"github.com/JakeFAU/searchconsole/internal/search"
	"github.com/JakeFAU/searchconsole/internal/session"
)

// fakeGateway answers the backend endpoints the console server calls.
type fakeGateway struct {
	mu          sync.Mutex
	searchCode  int
	logoutFails bool
	searches    atomic.Int32
	adminCalls  atomic.Int32
}

func (f *fakeGateway) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /search", func(w http.ResponseWriter, _ *http.Request) {
		f.searches.Add(1)
		f.mu.Lock()
		code := f.searchCode
		f.mu.Unlock()
		if code != 0 {
			w.WriteHeader(code)
			return
		}
		_ = json.NewEncoder(w).Encode(search.Response{
			Documents:    []search.Document{{DocumentID: 7, URL: "https://go.dev", Title: "Go"}},
			TotalResults: 1, TotalPages: 1, CurrentPage: 1, PageSize: 10,
		})
	})
	mux.HandleFunc("GET /suggestions", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("POST /auth-server/api/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(session.AuthResponse{
			AccessToken: "T1", RefreshToken: "R1", TokenType: "Bearer",
			Username: "alice", Authorities: []string{"ROLE_ADMIN"},
		})
	})
	mux.HandleFunc("POST /auth-server/api/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		fail := f.logoutFails
		f.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	mux.HandleFunc("POST /crawler-service/admin/start", func(w http.ResponseWriter, _ *http.Request) {
		f.adminCalls.Add(1)
		_, _ = w.Write([]byte(`{"status":"started"}`))
	})
	mux.HandleFunc("GET /actuator/health", upHandler)
	mux.HandleFunc("GET /{service}/actuator/health", upHandler)
	return mux
}

func (f *fakeGateway) set(fn func(*fakeGateway)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func upHandler(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte(`{"status":"UP"}`))
}

func newTestServer(t *testing.T) (*Server, *fakeGateway) {
	t.Helper()
	fg := &fakeGateway{}
	backend := httptest.NewServer(fg.handler())
	t.Cleanup(backend.Close)

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Gateway.BaseURL = backend.URL
	cfg.HTTP.MaxRetries = 0
	cfg.Session.Store = config.SessionStoreMemory
	cfg.QueryLog.Provider = config.QueryLogNoop
	cfg.Cache.CleanupIntervalSeconds = 0

	a, err := app.New(context.Background(), cfg, app.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	srv, err := NewServer(Deps{
		Search:    a.Search,
		Crawl:     a.Crawl,
		Admin:     a.Admin,
		Session:   a.Session,
		Health:    a.Health,
		Discovery: a.Discovery,
	})
	require.NoError(t, err)
	return srv, fg
}

func do(t *testing.T, srv *Server, method, target string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, &buf))
	out := map[string]any{}
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestServer_Healthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := do(t, srv, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", body["status"])
	require.NotEmpty(t, rec.Header().Get(gateway.HeaderRequestID))
}

func TestServer_ReadyzProbesGateway(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := do(t, srv, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ready", body["status"])
}

func TestServer_SearchEmptyQueryIsRejectedLocally(t *testing.T) {
	srv, fg := newTestServer(t)
	rec, body := do(t, srv, http.MethodGet, "/v1/search?query=", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "validation", body["kind"])
	require.Zero(t, fg.searches.Load())
}

func TestServer_SearchBadInteger(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := do(t, srv, http.MethodGet, "/v1/search?query=go&page=two", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, []any{"page must be an integer"}, body["details"])
}

func TestServer_SearchSucceeds(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := do(t, srv, http.MethodGet, "/v1/search?query=golang&size=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["documents"], 1)
}

func TestServer_SearchUpstreamFailure(t *testing.T) {
	srv, fg := newTestServer(t)
	fg.set(func(f *fakeGateway) { f.searchCode = http.StatusServiceUnavailable })

	rec, body := do(t, srv, http.MethodGet, "/v1/search?query=golang", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	friendly := body["error"].(map[string]any)
	require.Equal(t, "Service Unavailable", friendly["title"])
	require.Equal(t, true, friendly["retryable"])
	require.InDelta(t, 503, body["status"], 0)
}

func TestServer_SuggestionsDegradeToEmpty(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := do(t, srv, http.MethodGet, "/v1/suggestions?prefix=go&userId=u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []any{}, body["suggestions"])
}

func TestServer_AdminRequiresLogin(t *testing.T) {
	srv, fg := newTestServer(t)

	rec, body := do(t, srv, http.MethodPost, "/v1/admin/actions/start-crawler", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, body["alert"], "must be logged in as an admin")
	require.Zero(t, fg.adminCalls.Load())

	rec, body = do(t, srv, http.MethodGet, "/v1/admin/readiness", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, body["ready"])
}

func TestServer_LoginAdminLogout(t *testing.T) {
	srv, fg := newTestServer(t)

	rec, body := do(t, srv, http.MethodPost, "/v1/session/login", session.Credentials{Username: "alice", Password: "secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "authenticated", body["state"])
	require.Equal(t, true, body["admin"])
	require.Equal(t, []any{"ADMIN"}, body["roles"])

	rec, body = do(t, srv, http.MethodPost, "/v1/admin/actions/start-crawler", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Crawler started successfully!", body["message"])
	require.Equal(t, int32(1), fg.adminCalls.Load())

	rec, _ = do(t, srv, http.MethodPost, "/v1/admin/actions/format-disk", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	fg.set(func(f *fakeGateway) { f.logoutFails = true })
	rec, body = do(t, srv, http.MethodPost, "/v1/session/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, body["authenticated"])
	require.NotEmpty(t, body["warning"])
}

func TestServer_LoginValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := do(t, srv, http.MethodPost, "/v1/session/login", session.Credentials{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "validation", body["kind"])
}

func TestServer_SystemHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := do(t, srv, http.MethodGet, "/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "UP", body["overall"])
	services := body["services"].([]any)
	require.Len(t, services, 5)
	require.Equal(t, "Gateway: Running", services[0].(map[string]any)["description"])

	rec, _ = do(t, srv, http.MethodGet, "/v1/health/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CrawlValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := do(t, srv, http.MethodPost, "/v1/crawl", map[string]any{"url": "ftp://example.com"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "validation", body["kind"])
}

func TestServer_MetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, http.MethodGet, "/healthz", nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "searchconsole_http_requests_total")
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusForbidden, statusFor(admin.ErrNotAdmin))
	require.Equal(t, http.StatusUnauthorized, statusFor(session.ErrNotAuthenticated))
	require.Equal(t, http.StatusInternalServerError, statusFor(context.DeadlineExceeded))
}
