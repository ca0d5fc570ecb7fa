package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JakeFAU/searchconsole/internal/admin"
	"github.com/JakeFAU/searchconsole/internal/apierr"
	"github.com/JakeFAU/searchconsole/internal/health"
	"github.com/JakeFAU/searchconsole/internal/search"
	"github.com/JakeFAU/searchconsole/internal/session"
)

func (s *Server) searchPage(w http.ResponseWriter, r *http.Request) {
	p, err := searchParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.search.Search(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) searchFilters(w http.ResponseWriter, r *http.Request) {
	p, err := searchParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var tags []string
	for _, v := range r.URL.Query()["tags"] {
		tags = append(tags, strings.Split(v, ",")...)
	}
	resp, err := s.search.SearchWithFilters(r.Context(), p, search.Filters{Tags: tags})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) searchCorrections(w http.ResponseWriter, r *http.Request) {
	p, err := searchParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.search.SearchWithCorrections(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) suggestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out := s.search.Suggestions(r.Context(), q.Get("prefix"), q.Get("userId"))
	writeJSON(w, http.StatusOK, map[string][]string{"suggestions": out})
}

func (s *Server) feedback(w http.ResponseWriter, r *http.Request) {
	var fb search.Feedback
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		s.writeError(w, r, invalidJSON(r))
		return
	}
	if err := s.search.SubmitFeedback(r.Context(), fb); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

type crawlRequest struct {
	URL      string `json:"url"`
	Priority int    `json:"priority"`
	MaxDepth int    `json:"maxDepth"`
}

func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, invalidJSON(r))
		return
	}
	resp, err := s.crawl.Submit(r.Context(), req.URL, req.Priority, req.MaxDepth)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) crawlStatus(w http.ResponseWriter, r *http.Request) {
	doc, err := s.crawl.Status(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) crawlMetrics(w http.ResponseWriter, r *http.Request) {
	doc, err := s.crawl.Metrics(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type serviceHealthView struct {
	health.ServiceHealth
	Description string `json:"description"`
}

type systemHealthView struct {
	Overall   health.Overall      `json:"overall"`
	Services  []serviceHealthView `json:"services"`
	Timestamp time.Time           `json:"timestamp"`
}

func describe(h health.ServiceHealth) serviceHealthView {
	return serviceHealthView{ServiceHealth: h, Description: health.Describe(h)}
}

func (s *Server) systemHealth(w http.ResponseWriter, r *http.Request) {
	sys := s.health.Check(r.Context())
	view := systemHealthView{Overall: sys.Overall, Timestamp: sys.Timestamp}
	for _, h := range sys.Services {
		view.Services = append(view.Services, describe(h))
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) serviceHealth(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "service_id")
	for _, svc := range s.health.Services() {
		if svc.ID == id {
			writeJSON(w, http.StatusOK, describe(s.health.CheckService(r.Context(), svc)))
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown service " + id})
}

func (s *Server) discoveryStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.discovery.Status(r.Context()))
}

func (s *Server) discoveryRoutes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.discovery.Routes(r.Context()))
}

func (s *Server) discoveryCommunication(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.discovery.Communication(r.Context()))
}

func (s *Server) discoveryLoadBalancing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.discovery.LoadBalancing(r.Context(), chi.URLParam(r, "app")))
}

type sessionView struct {
	State         string            `json:"state"`
	Authenticated bool              `json:"authenticated"`
	Admin         bool              `json:"admin"`
	Roles         []string          `json:"roles"`
	User          *session.UserInfo `json:"user,omitempty"`
	Warning       string            `json:"warning,omitempty"`
}

func (s *Server) view() sessionView {
	snap := s.session.Snapshot()
	roles := snap.Roles
	if roles == nil {
		roles = []string{}
	}
	return sessionView{
		State:         snap.State.String(),
		Authenticated: snap.Authenticated,
		Admin:         s.session.IsAdmin(),
		Roles:         roles,
		User:          snap.User,
	}
}

func (s *Server) sessionSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds session.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		s.writeError(w, r, invalidJSON(r))
		return
	}
	if _, err := s.session.Login(r.Context(), creds); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view())
}

// logout always succeeds locally; a server failure is reported as a warning.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	err := s.session.Logout(r.Context())
	v := s.view()
	if err != nil {
		v.Warning = apierr.Friendly(err).Message
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Refresh(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) adminReadiness(w http.ResponseWriter, _ *http.Request) {
	checks := s.admin.Readiness()
	writeJSON(w, http.StatusOK, map[string]any{"ready": admin.Ready(checks), "checks": checks})
}

func (s *Server) adminAction(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "action")
	action, ok := admin.Actions[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown admin action " + name})
		return
	}
	res, err := s.admin.Execute(r.Context(), action)
	if err != nil {
		s.writeErrorWithAlert(w, r, err, admin.Alert(err, action.Path))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func searchParams(r *http.Request) (search.Params, error) {
	q := r.URL.Query()
	p := search.Params{Query: q.Get("query"), UserID: q.Get("userId")}
	var errs []string
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{"topK", &p.TopK},
		{"page", &p.Page},
		{"size", &p.Size},
	} {
		raw := q.Get(f.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, f.name+" must be an integer")
			continue
		}
		*f.dst = n
	}
	if len(errs) > 0 {
		return search.Params{}, apierr.Validation(r.URL.Path, errs, time.Now())
	}
	return p, nil
}

func invalidJSON(r *http.Request) error {
	return apierr.Validation(r.URL.Path, []string{"request body must be valid JSON"}, time.Now())
}
