package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/searchconsole/internal/gateway"
)

const appsArray = `{
  "applications": {
    "application": [
      {
        "name": "QUERY-SERVICE",
        "instance": [
          {"instanceId": "q1", "app": "QUERY-SERVICE", "ipAddr": "10.0.0.1", "port": {"$": 8084, "@enabled": "true"}, "status": "UP"},
          {"instanceId": "q2", "app": "QUERY-SERVICE", "ipAddr": "10.0.0.2", "port": 8084, "status": "UP"},
          {"instanceId": "q3", "app": "QUERY-SERVICE", "ipAddr": "10.0.0.3", "port": "8084", "status": "DOWN"}
        ]
      },
      {
        "name": "AUTH-SERVER",
        "instance": {"instanceId": "a1", "app": "AUTH-SERVER", "ipAddr": "10.0.0.9", "port": 8080, "status": "UP"}
      }
    ]
  }
}`

const appsSingle = `{
  "applications": {
    "application": {
      "name": "CRAWLER-SERVICE",
      "instance": {"instanceId": "c1", "app": "CRAWLER-SERVICE", "ipAddr": "10.0.0.5", "port": 8082, "status": "UP"}
    }
  }
}`

func newService(t *testing.T, registry, gw http.HandlerFunc) *Service {
	t.Helper()
	reg := httptest.NewServer(registry)
	t.Cleanup(reg.Close)
	g := httptest.NewServer(gw)
	t.Cleanup(g.Close)

	client, err := gateway.New(gateway.Config{BaseURL: g.URL})
	require.NoError(t, err)
	svc, err := New(Config{Client: client, RegistryURL: reg.URL})
	require.NoError(t, err)
	return svc
}

func notFound(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) }

func TestStatusDecodesArraysAndObjects(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/eureka/apps" {
			notFound(w, r)
			return
		}
		_, _ = w.Write([]byte(appsArray))
	}, notFound)

	st := svc.Status(context.Background())
	require.True(t, st.RegistryAvailable)
	require.Len(t, st.Applications, 2)
	require.Equal(t, 4, st.ServiceCount)
	require.Equal(t, 3, st.HealthyServices)
	require.Equal(t, 8084, st.Applications[0].Instances[0].Port)
	require.Equal(t, 8084, st.Applications[0].Instances[2].Port)
	require.Len(t, st.Applications[1].Instances, 1)
}

func TestStatusSingleApplication(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(appsSingle))
	}, notFound)

	st := svc.Status(context.Background())
	require.True(t, st.RegistryAvailable)
	require.Len(t, st.Applications, 1)
	require.Equal(t, "CRAWLER-SERVICE", st.Applications[0].Name)
	require.Equal(t, 1, st.HealthyServices)
}

func TestStatusEmptyRegistry(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}, notFound)

	st := svc.Status(context.Background())
	require.True(t, st.RegistryAvailable)
	require.Empty(t, st.Applications)
}

func TestStatusRegistryDown(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, notFound)

	st := svc.Status(context.Background())
	require.False(t, st.RegistryAvailable)
	require.NotNil(t, st.Applications)
	require.Empty(t, st.Applications)
	require.Zero(t, st.ServiceCount)
}

func TestRoutes(t *testing.T) {
	svc := newService(t, notFound, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/actuator/gateway/routes" {
			notFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"route_id": "auth-server", "uri": "lb://AUTH-SERVER", "predicate": "Paths: [/auth-server/**]", "order": 0},
		})
	})

	routes := svc.Routes(context.Background())
	require.Len(t, routes, 1)
	require.Equal(t, "auth-server", routes[0].ID)
	require.Equal(t, "lb://AUTH-SERVER", routes[0].URI)
}

func TestRoutesFailureIsEmpty(t *testing.T) {
	svc := newService(t, notFound, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	routes := svc.Routes(context.Background())
	require.NotNil(t, routes)
	require.Empty(t, routes)
}

func TestCommunication(t *testing.T) {
	svc := newService(t, notFound, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/indexer-service/") {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"status":"UP"}`))
	})

	got := svc.Communication(context.Background())
	require.Equal(t, map[string]bool{
		"gateway":         true,
		"auth-server":     true,
		"query-service":   true,
		"crawler-service": true,
		"indexer-service": false,
	}, got)
}

type staticTokens struct{}

func (staticTokens) Token(context.Context) (string, bool) { return "T1", true }
func (staticTokens) Refresh(context.Context) error        { return nil }

func TestCommunicationChecksAreBoundedAndAnonymous(t *testing.T) {
	var sawAuth atomic.Bool
	g := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			sawAuth.Store(true)
		}
		if strings.HasPrefix(r.URL.Path, "/crawler-service/") {
			<-r.Context().Done()
			return
		}
		_, _ = w.Write([]byte(`{"status":"UP"}`))
	}))
	t.Cleanup(g.Close)

	client, err := gateway.New(gateway.Config{BaseURL: g.URL, Timeout: time.Minute})
	require.NoError(t, err)
	client.SetTokenSource(staticTokens{})
	svc, err := New(Config{Client: client, RegistryURL: g.URL, ProbeTimeout: 50 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	got := svc.Communication(context.Background())
	require.Less(t, time.Since(start), 5*time.Second)
	require.False(t, got["crawler-service"])
	require.True(t, got["query-service"])
	require.False(t, sawAuth.Load())
}

func TestLoadBalancing(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(appsArray))
	}, notFound)

	lb := svc.LoadBalancing(context.Background(), "query-service")
	require.True(t, lb.Balanced)
	require.Equal(t, []string{"10.0.0.1:8084", "10.0.0.2:8084"}, lb.Instances)

	lb = svc.LoadBalancing(context.Background(), "auth-server")
	require.False(t, lb.Balanced)
	require.Equal(t, []string{"10.0.0.9:8080"}, lb.Instances)

	lb = svc.LoadBalancing(context.Background(), "missing")
	require.False(t, lb.Balanced)
	require.Empty(t, lb.Instances)
}
