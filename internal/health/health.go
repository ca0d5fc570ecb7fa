// Package health probes the backend services behind the gateway and folds the
// results into one system status.
package health

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/searchconsole/internal/apierr"
	"github.com/JakeFAU/searchconsole/internal/clock"
	"github.com/JakeFAU/searchconsole/internal/clock/system"
	"github.com/JakeFAU/searchconsole/internal/gateway"
	"github.com/JakeFAU/searchconsole/internal/metrics"
)

const defaultProbeTimeout = 5 * time.Second

// Status is the state of a single service.
type Status string

const (
	StatusUp      Status = "UP"
	StatusDown    Status = "DOWN"
	StatusUnknown Status = "UNKNOWN"
)

// Overall is the folded state of every probed service.
type Overall string

const (
	OverallUp       Overall = "UP"
	OverallDown     Overall = "DOWN"
	OverallDegraded Overall = "DEGRADED"
)

// Service names a probe target.
type Service struct {
	// ID is the gateway route id, e.g. "auth-server".
	ID string
	// Name is the display name, e.g. "Auth Server".
	Name string
	// Path is the health endpoint relative to the gateway.
	Path string
}

// DefaultServices are the services the console watches.
var DefaultServices = []Service{
	{ID: "gateway", Name: "Gateway", Path: "actuator/health"},
	{ID: "auth-server", Name: "Auth Server", Path: "auth-server/actuator/health"},
	{ID: "query-service", Name: "Query Service", Path: "query-service/actuator/health"},
	{ID: "crawler-service", Name: "Crawler Service", Path: "crawler-service/actuator/health"},
	{ID: "indexer-service", Name: "Indexer Service", Path: "indexer-service/actuator/health"},
}

// ServiceHealth is the outcome of one probe.
type ServiceHealth struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Status       Status         `json:"status"`
	ResponseTime time.Duration  `json:"responseTimeNs"`
	Details      map[string]any `json:"details,omitempty"`
	// HTTPStatus is the failing response code, 0 when no response arrived.
	HTTPStatus int   `json:"httpStatus,omitempty"`
	Err        error `json:"-"`
}

// Up reports whether the service answered UP.
func (h ServiceHealth) Up() bool {
	return h.Status == StatusUp
}

// SystemHealth is the aggregate of every probe.
type SystemHealth struct {
	Overall   Overall         `json:"overall"`
	Services  []ServiceHealth `json:"services"`
	Timestamp time.Time       `json:"timestamp"`
}

// Config wires an Aggregator.
type Config struct {
	Client       *gateway.Client
	Services     []Service
	ProbeTimeout time.Duration
	Clock        clock.Clock
	Logger       *zap.Logger
}

// Aggregator runs health probes in parallel.
type Aggregator struct {
	client   *gateway.Client
	services []Service
	timeout  time.Duration
	clock    clock.Clock
	logger   *zap.Logger
}

// New builds an Aggregator.
func New(cfg Config) (*Aggregator, error) {
	if cfg.Client == nil {
		return nil, errors.New("health aggregator requires a gateway client")
	}
	if len(cfg.Services) == 0 {
		cfg.Services = DefaultServices
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = system.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Aggregator{
		client:   cfg.Client,
		services: append([]Service(nil), cfg.Services...),
		timeout:  cfg.ProbeTimeout,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}, nil
}

// Services returns the probe targets.
func (a *Aggregator) Services() []Service {
	return append([]Service(nil), a.services...)
}

// Check probes every service and returns once all probes have resolved.
// Individual failures mark that service DOWN; Check itself never fails.
func (a *Aggregator) Check(ctx context.Context) SystemHealth {
	results := make([]ServiceHealth, len(a.services))
	var g errgroup.Group
	for i, svc := range a.services {
		g.Go(func() error {
			results[i] = a.CheckService(ctx, svc)
			return nil
		})
	}
	_ = g.Wait()

	return SystemHealth{
		Overall:   OverallOf(results),
		Services:  results,
		Timestamp: a.clock.Now(),
	}
}

// CheckService probes one service.
func (a *Aggregator) CheckService(ctx context.Context, svc Service) ServiceHealth {
	start := time.Now()
	var body map[string]any
	err := a.client.Call(ctx, gateway.Request{
		Method:   http.MethodGet,
		Path:     svc.Path,
		SkipAuth: true,
		NoRetry:  true,
		Timeout:  a.timeout,
	}, &body)

	h := ServiceHealth{
		ID:           svc.ID,
		Name:         svc.Name,
		ResponseTime: time.Since(start),
	}
	if err != nil {
		a.logger.Warn("health check failed", zap.String("service", svc.Name), zap.Error(err))
		h.Status = StatusDown
		h.HTTPStatus = apierr.StatusOf(err)
		h.Details = map[string]any{"error": errorText(err)}
		h.Err = err
	} else {
		h.Details = body
		h.Status = StatusDown
		if s, _ := body["status"].(string); strings.EqualFold(s, string(StatusUp)) {
			h.Status = StatusUp
		}
	}
	metrics.SetServiceUp(svc.ID, h.Up())
	return h
}

// Available reports whether the named service (by name or id) is UP.
// Unknown names are unavailable.
func (a *Aggregator) Available(ctx context.Context, name string) bool {
	for _, svc := range a.services {
		if strings.EqualFold(svc.Name, name) || strings.EqualFold(svc.ID, name) {
			return a.CheckService(ctx, svc).Up()
		}
	}
	return false
}

// OverallOf folds service states: all UP is UP, none UP is DOWN, anything
// else is DEGRADED.
func OverallOf(services []ServiceHealth) Overall {
	up := 0
	for _, s := range services {
		if s.Up() {
			up++
		}
	}
	switch {
	case up == len(services):
		return OverallUp
	case up == 0:
		return OverallDown
	default:
		return OverallDegraded
	}
}

// Describe renders a probe result as a connection-test line.
func Describe(h ServiceHealth) string {
	if h.Err == nil {
		if h.Up() {
			return h.Name + ": Running"
		}
		return h.Name + ": Reporting " + string(h.Status)
	}
	var status string
	switch code := h.HTTPStatus; {
	case code == 0:
		status = "Cannot connect - service may be down"
	case code == http.StatusNotFound:
		status = "Service running but health endpoint not found"
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		status = "Running (auth required for health endpoint)"
	case code >= http.StatusInternalServerError:
		status = "Service error - check logs"
	default:
		status = "Not running"
	}
	return h.Name + ": " + status
}

func errorText(err error) string {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Service unavailable"
}
