// Package crawl submits URLs to the crawler service and reads its status.
package crawl

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/searchconsole/internal/apierr"
	"github.com/JakeFAU/searchconsole/internal/clock"
	"github.com/JakeFAU/searchconsole/internal/clock/system"
	"github.com/JakeFAU/searchconsole/internal/gateway"
	"github.com/JakeFAU/searchconsole/internal/validation"
)

const (
	pathSubmit  = "crawler-service/crawler"
	pathStatus  = "crawler-service/status"
	pathMetrics = "crawler-service/metrics"

	// DefaultPriority applies when Submit receives priority 0.
	DefaultPriority = 5
	// DefaultMaxDepth applies when Submit receives maxDepth 0.
	DefaultMaxDepth = 3
)

// submitRequest mirrors the crawler's wire format, which carries numbers as strings.
type submitRequest struct {
	URL      string `json:"url"`
	Priority string `json:"priority"`
	MaxDepth string `json:"maxDepth"`
}

// SubmitResponse acknowledges a crawl submission.
type SubmitResponse struct {
	Message  string `json:"message"`
	URL      string `json:"url"`
	Priority string `json:"priority"`
	MaxDepth string `json:"maxDepth"`
}

// Client calls the crawler service.
type Client struct {
	gw     *gateway.Client
	clock  clock.Clock
	logger *zap.Logger
}

// New builds a Client.
func New(gw *gateway.Client, clk clock.Clock, logger *zap.Logger) (*Client, error) {
	if gw == nil {
		return nil, errors.New("crawl client requires a gateway client")
	}
	if clk == nil {
		clk = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{gw: gw, clock: clk, logger: logger}, nil
}

// Submit queues url for crawling. Priority and maxDepth must lie in [1,10];
// zero selects the defaults.
func (c *Client) Submit(ctx context.Context, url string, priority, maxDepth int) (*SubmitResponse, error) {
	if priority == 0 {
		priority = DefaultPriority
	}
	if maxDepth == 0 {
		maxDepth = DefaultMaxDepth
	}
	req := validation.CrawlRequest{URL: strings.TrimSpace(url), Priority: priority, MaxDepth: maxDepth}
	if res := validation.ValidateCrawlRequest(req); !res.Valid {
		return nil, apierr.Validation(pathSubmit, res.Errors, c.clock.Now())
	}

	var out SubmitResponse
	err := c.gw.Call(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   pathSubmit,
		Body: submitRequest{
			URL:      req.URL,
			Priority: strconv.Itoa(req.Priority),
			MaxDepth: strconv.Itoa(req.MaxDepth),
		},
	}, &out)
	if err != nil {
		c.logger.Warn("crawl submission failed", zap.String("url", req.URL), zap.Error(err))
		return nil, err
	}
	c.logger.Info("crawl submitted", zap.String("url", req.URL), zap.Int("priority", req.Priority), zap.Int("max_depth", req.MaxDepth))
	return &out, nil
}

// Status returns the crawler's status document.
func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	return c.document(ctx, pathStatus)
}

// Metrics returns the crawler's metrics document.
func (c *Client) Metrics(ctx context.Context) (map[string]any, error) {
	return c.document(ctx, pathMetrics)
}

func (c *Client) document(ctx context.Context, path string) (map[string]any, error) {
	out := map[string]any{}
	if err := c.gw.GetJSON(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
