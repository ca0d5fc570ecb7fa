// Package discovery reports what the service registry and the gateway route
// table know about the backend. Every query is fault tolerant: an unreachable
// registry or gateway yields an empty result, never an error.
package discovery

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/searchconsole/internal/clock"
	"github.com/JakeFAU/searchconsole/internal/clock/system"
	"github.com/JakeFAU/searchconsole/internal/gateway"
	"github.com/JakeFAU/searchconsole/internal/health"
)

const (
	// DefaultRegistryURL is where the registry listens when not configured.
	DefaultRegistryURL = "http://localhost:8761"

	pathApps   = "eureka/apps"
	pathRoutes = "actuator/gateway/routes"

	statusUp = "UP"

	defaultProbeTimeout = 5 * time.Second
)

// Instance is one registered service instance.
type Instance struct {
	InstanceID     string `json:"instanceId"`
	App            string `json:"app"`
	HostName       string `json:"hostName,omitempty"`
	IPAddr         string `json:"ipAddr"`
	Port           int    `json:"port"`
	Status         string `json:"status"`
	HealthCheckURL string `json:"healthCheckUrl,omitempty"`
	StatusPageURL  string `json:"statusPageUrl,omitempty"`
	HomePageURL    string `json:"homePageUrl,omitempty"`
}

// Address returns ip:port.
func (i Instance) Address() string {
	return i.IPAddr + ":" + strconv.Itoa(i.Port)
}

// Application groups the instances registered under one name.
type Application struct {
	Name      string     `json:"name"`
	Instances []Instance `json:"instances"`
}

// Status summarizes the registry.
type Status struct {
	RegistryAvailable bool          `json:"registryAvailable"`
	Applications      []Application `json:"applications"`
	// ServiceCount is the number of registered instances.
	ServiceCount int `json:"serviceCount"`
	// HealthyServices is the number of instances reporting UP.
	HealthyServices int       `json:"healthyServices"`
	Timestamp       time.Time `json:"timestamp"`
}

// Route is one gateway route table entry.
type Route struct {
	ID        string   `json:"route_id"`
	URI       string   `json:"uri"`
	Predicate string   `json:"predicate,omitempty"`
	Filters   []string `json:"filters,omitempty"`
	Order     int      `json:"order"`
}

// LoadBalance reports whether an application has more than one healthy instance.
type LoadBalance struct {
	Balanced  bool     `json:"balanced"`
	Instances []string `json:"instances"`
}

// Config wires a Service.
type Config struct {
	Client      *gateway.Client
	RegistryURL string
	// Services are checked by Communication; defaults to health.DefaultServices.
	Services []health.Service
	// ProbeTimeout bounds each Communication probe.
	ProbeTimeout time.Duration
	Clock        clock.Clock
	Logger       *zap.Logger
}

// Service queries the registry and the gateway.
type Service struct {
	client      *gateway.Client
	registryURL string
	services    []health.Service
	timeout     time.Duration
	clock       clock.Clock
	logger      *zap.Logger
}

// New builds a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Client == nil {
		return nil, errors.New("discovery requires a gateway client")
	}
	if strings.TrimSpace(cfg.RegistryURL) == "" {
		cfg.RegistryURL = DefaultRegistryURL
	}
	if len(cfg.Services) == 0 {
		cfg.Services = health.DefaultServices
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
	return &Service{
		client:      cfg.Client,
		registryURL: strings.TrimRight(cfg.RegistryURL, "/"),
		services:    cfg.Services,
		timeout:     cfg.ProbeTimeout,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
	}, nil
}

// Status lists registered applications. An unreachable registry reports
// RegistryAvailable=false with an empty set.
func (s *Service) Status(ctx context.Context) Status {
	apps, err := s.applications(ctx)
	if err != nil {
		s.logger.Warn("service registry unavailable", zap.String("registry", s.registryURL), zap.Error(err))
		return Status{
			RegistryAvailable: false,
			Applications:      []Application{},
			Timestamp:         s.clock.Now(),
		}
	}
	st := Status{
		RegistryAvailable: true,
		Applications:      apps,
		Timestamp:         s.clock.Now(),
	}
	for _, app := range apps {
		st.ServiceCount += len(app.Instances)
		for _, in := range app.Instances {
			if in.Status == statusUp {
				st.HealthyServices++
			}
		}
	}
	return st
}

func (s *Service) applications(ctx context.Context) ([]Application, error) {
	var raw eurekaApps
	err := s.client.Call(ctx, gateway.Request{
		Method:   http.MethodGet,
		Path:     pathApps,
		BaseURL:  s.registryURL,
		SkipAuth: true,
		NoRetry:  true,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return raw.toApplications(), nil
}

// Routes returns the gateway route table, or an empty list when it cannot be read.
func (s *Service) Routes(ctx context.Context) []Route {
	var routes []Route
	err := s.client.Call(ctx, gateway.Request{
		Method:  http.MethodGet,
		Path:    pathRoutes,
		NoRetry: true,
	}, &routes)
	if err != nil {
		s.logger.Warn("failed to get gateway routes", zap.Error(err))
		return []Route{}
	}
	if routes == nil {
		return []Route{}
	}
	return routes
}

// Communication reports, per service id, whether its health endpoint answered.
func (s *Service) Communication(ctx context.Context) map[string]bool {
	var (
		mu  sync.Mutex
		out = make(map[string]bool, len(s.services))
		g   errgroup.Group
	)
	for _, svc := range s.services {
		g.Go(func() error {
			_, err := s.client.Do(ctx, gateway.Request{
				Method:   http.MethodGet,
				Path:     svc.Path,
				Timeout:  s.timeout,
				SkipAuth: true,
				NoRetry:  true,
			})
			mu.Lock()
			out[svc.ID] = err == nil
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// LoadBalancing reports the healthy instances of the named application.
// Unknown applications and an unreachable registry report unbalanced.
func (s *Service) LoadBalancing(ctx context.Context, app string) LoadBalance {
	apps, err := s.applications(ctx)
	if err != nil {
		s.logger.Warn("service registry unavailable", zap.Error(err))
		return LoadBalance{Instances: []string{}}
	}
	for _, a := range apps {
		if !strings.EqualFold(a.Name, app) {
			continue
		}
		healthy := []string{}
		for _, in := range a.Instances {
			if in.Status == statusUp {
				healthy = append(healthy, in.Address())
			}
		}
		return LoadBalance{Balanced: len(healthy) > 1, Instances: healthy}
	}
	return LoadBalance{Instances: []string{}}
}
