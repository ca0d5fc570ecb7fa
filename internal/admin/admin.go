// Package admin drives the crawler and indexer admin endpoints. Every call
// requires a local admin session and surfaces failures as alerts that tell
// connectivity, authentication, authorization and server problems apart.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/searchconsole/internal/apierr"
	"github.com/JakeFAU/searchconsole/internal/gateway"
)

// HeaderAdminRequest marks console admin traffic.
const HeaderAdminRequest = "X-Admin-Request"

// ErrNotAdmin is returned before any network call when the session is not an
// authenticated admin.
var ErrNotAdmin = errors.New("admin session required")

// Action is one admin endpoint.
type Action struct {
	Name    string
	Method  string
	Path    string
	Success string
}

var (
	StartCrawler  = Action{"start-crawler", http.MethodPost, "crawler-service/admin/start", "Crawler started successfully!"}
	StopCrawler   = Action{"stop-crawler", http.MethodPost, "crawler-service/admin/stop", "Crawler stopped successfully!"}
	CrawlerQueue  = Action{"crawler-queue", http.MethodGet, "crawler-service/admin/queue", "Crawler queue fetched successfully!"}
	ClearQueue    = Action{"clear-queue", http.MethodDelete, "crawler-service/admin/queue", "Crawler queue cleared successfully!"}
	CrawlerStats  = Action{"crawler-stats", http.MethodGet, "crawler-service/admin/stats", "Crawler stats fetched successfully!"}
	Reindex       = Action{"reindex", http.MethodPost, "indexer-service/admin/reindex", "Reindexing started successfully!"}
	OptimizeIndex = Action{"optimize-index", http.MethodPost, "indexer-service/admin/optimize", "Index optimization started successfully!"}
	ClearIndex    = Action{"clear-index", http.MethodDelete, "indexer-service/admin/index", "Index cleared successfully!"}
	IndexStats    = Action{"index-stats", http.MethodGet, "indexer-service/admin/stats", "Index stats fetched successfully!"}
)

// Actions lists every admin action by name.
var Actions = map[string]Action{
	StartCrawler.Name:  StartCrawler,
	StopCrawler.Name:   StopCrawler,
	CrawlerQueue.Name:  CrawlerQueue,
	ClearQueue.Name:    ClearQueue,
	CrawlerStats.Name:  CrawlerStats,
	Reindex.Name:       Reindex,
	OptimizeIndex.Name: OptimizeIndex,
	ClearIndex.Name:    ClearIndex,
	IndexStats.Name:    IndexStats,
}

// Session reports the local authentication state.
type Session interface {
	IsAuthenticated() bool
	IsAdmin() bool
	AccessToken() string
}

// Result is a successful admin call.
type Result struct {
	Action  string `json:"action"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Check is one line of the readiness report.
type Check struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
}

// Client executes admin actions.
type Client struct {
	gw      *gateway.Client
	session Session
	logger  *zap.Logger
}

// New builds a Client.
func New(gw *gateway.Client, session Session, logger *zap.Logger) (*Client, error) {
	if gw == nil || session == nil {
		return nil, errors.New("admin client requires a gateway client and a session")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{gw: gw, session: session, logger: logger}, nil
}

// Execute runs a. The local admin check happens first.
func (c *Client) Execute(ctx context.Context, a Action) (*Result, error) {
	if !c.session.IsAuthenticated() || !c.session.IsAdmin() {
		return nil, ErrNotAdmin
	}
	req := gateway.Request{
		Method: a.Method,
		Path:   a.Path,
		Header: http.Header{HeaderAdminRequest: {"true"}},
	}
	if a.Method == http.MethodPost {
		req.Body = struct{}{}
	}
	resp, err := c.gw.Do(ctx, req)
	if err != nil {
		c.logger.Warn("admin action failed", zap.String("action", a.Name), zap.String("path", a.Path), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", a.Name, err)
	}
	var data any
	if err := resp.Decode(&data); err != nil {
		// Some admin endpoints answer with plain text.
		data = strings.TrimSpace(string(resp.Body))
	}
	c.logger.Info("admin action succeeded", zap.String("action", a.Name))
	return &Result{Action: a.Name, Message: a.Success, Data: data}, nil
}

// Readiness reports the local checks an admin action depends on.
func (c *Client) Readiness() []Check {
	return []Check{
		{Name: "Authentication", OK: c.session.IsAuthenticated()},
		{Name: "Admin Role", OK: c.session.IsAdmin()},
		{Name: "Access Token", OK: c.session.AccessToken() != ""},
	}
}

// Ready reports whether every readiness check passes.
func Ready(checks []Check) bool {
	for _, ch := range checks {
		if !ch.OK {
			return false
		}
	}
	return true
}

// Alert renders err from an admin action as an operator-facing message.
func Alert(err error, path string) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotAdmin) {
		return "Authentication Error: You must be logged in as an admin. Log in again and retry."
	}
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		return "Unknown error occurred: " + err.Error()
	}
	switch status := apiErr.Status; {
	case apiErr.Kind == apierr.KindCanceled:
		return "Operation canceled."
	case status == 0:
		return "Cannot connect to backend services. Ensure the gateway, crawler, indexer and query services are running."
	case status == http.StatusNotFound:
		return fmt.Sprintf("Endpoint not found: %s. The service may not be running or the endpoint may not exist.", path)
	case status == http.StatusUnauthorized:
		return "Authentication failed. Log in again and retry."
	case status == http.StatusForbidden:
		return "Access denied. Admin privileges required."
	case status >= http.StatusInternalServerError:
		return fmt.Sprintf("Server error (%d): %s. Check the service logs for more details.", status, apiErr.Message)
	default:
		return fmt.Sprintf("Request failed (%d): %s", status, apiErr.Message)
	}
}
