package discovery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// oneOrMany decodes a JSON value that is either a single T or an array of T.
// The registry collapses one-element lists into bare objects.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*o = nil
		return nil
	}
	if trimmed[0] == '[' {
		var many []T
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return fmt.Errorf("decode list: %w", err)
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return fmt.Errorf("decode object: %w", err)
	}
	*o = oneOrMany[T]{one}
	return nil
}

// flexPort accepts 8080, "8080" or {"$": 8080, "@enabled": "true"}.
type flexPort int

func (p *flexPort) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	switch trimmed[0] {
	case '{':
		var wrapped struct {
			Value json.RawMessage `json:"$"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return fmt.Errorf("decode port: %w", err)
		}
		return p.UnmarshalJSON(wrapped.Value)
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("decode port: %w", err)
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("decode port %q: %w", s, err)
		}
		*p = flexPort(n)
		return nil
	default:
		var n int
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return fmt.Errorf("decode port: %w", err)
		}
		*p = flexPort(n)
		return nil
	}
}

type eurekaInstance struct {
	InstanceID     string   `json:"instanceId"`
	App            string   `json:"app"`
	HostName       string   `json:"hostName"`
	IPAddr         string   `json:"ipAddr"`
	Port           flexPort `json:"port"`
	Status         string   `json:"status"`
	HealthCheckURL string   `json:"healthCheckUrl"`
	StatusPageURL  string   `json:"statusPageUrl"`
	HomePageURL    string   `json:"homePageUrl"`
}

type eurekaApplication struct {
	Name     string                    `json:"name"`
	Instance oneOrMany[eurekaInstance] `json:"instance"`
}

type eurekaApps struct {
	Applications *struct {
		Application oneOrMany[eurekaApplication] `json:"application"`
	} `json:"applications"`
}

func (r eurekaApps) toApplications() []Application {
	if r.Applications == nil {
		return []Application{}
	}
	apps := make([]Application, 0, len(r.Applications.Application))
	for _, a := range r.Applications.Application {
		app := Application{Name: a.Name, Instances: make([]Instance, 0, len(a.Instance))}
		for _, in := range a.Instance {
			app.Instances = append(app.Instances, Instance{
				InstanceID:     in.InstanceID,
				App:            in.App,
				HostName:       in.HostName,
				IPAddr:         in.IPAddr,
				Port:           int(in.Port),
				Status:         in.Status,
				HealthCheckURL: in.HealthCheckURL,
				StatusPageURL:  in.StatusPageURL,
				HomePageURL:    in.HomePageURL,
			})
		}
		apps = append(apps, app)
	}
	return apps
}
