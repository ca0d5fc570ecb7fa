// Package search talks to the query service: searches, suggestions and
// relevance feedback, with a local response cache in front.
package search

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/searchconsole/internal/apierr"
	"github.com/JakeFAU/searchconsole/internal/cache"
	"github.com/JakeFAU/searchconsole/internal/clock"
	"github.com/JakeFAU/searchconsole/internal/clock/system"
	"github.com/JakeFAU/searchconsole/internal/gateway"
	"github.com/JakeFAU/searchconsole/internal/id/uuid"
	"github.com/JakeFAU/searchconsole/internal/querylog"
	"github.com/JakeFAU/searchconsole/internal/validation"
)

const (
	pathSearch      = "search"
	pathFilters     = "search/filters"
	pathCorrections = "search/corrections"
	pathSuggestions = "suggestions"
	pathFeedback    = "feedback"

	defaultTopK          = 50
	defaultPageSize      = 10
	defaultSuggestionTTL = time.Minute
)

// IDGenerator produces query log ids.
type IDGenerator interface {
	NewID() (string, error)
}

// Config wires a Service.
type Config struct {
	Client          *gateway.Client
	Cache           *cache.Cache
	QueryLog        querylog.Logger
	IDs             IDGenerator
	Clock           clock.Clock
	Logger          *zap.Logger
	DefaultTopK     int
	DefaultPageSize int
	SuggestionTTL   time.Duration
}

// Service issues search calls.
type Service struct {
	client        *gateway.Client
	cache         *cache.Cache
	queryLog      querylog.Logger
	ids           IDGenerator
	clock         clock.Clock
	logger        *zap.Logger
	topK          int
	pageSize      int
	suggestionTTL time.Duration
}

// New builds a Service. A nil cache disables caching.
func New(cfg Config) (*Service, error) {
	if cfg.Client == nil {
		return nil, errors.New("search service requires a gateway client")
	}
	if cfg.QueryLog == nil {
		cfg.QueryLog = querylog.Noop{}
	}
	if cfg.IDs == nil {
		cfg.IDs = uuid.New()
	}
	if cfg.Clock == nil {
		cfg.Clock = system.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = defaultTopK
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = defaultPageSize
	}
	if cfg.SuggestionTTL <= 0 {
		cfg.SuggestionTTL = defaultSuggestionTTL
	}
	return &Service{
		client:        cfg.Client,
		cache:         cfg.Cache,
		queryLog:      cfg.QueryLog,
		ids:           cfg.IDs,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
		topK:          cfg.DefaultTopK,
		pageSize:      cfg.DefaultPageSize,
		suggestionTTL: cfg.SuggestionTTL,
	}, nil
}

func (s *Service) normalize(p Params) Params {
	p.Query = strings.TrimSpace(p.Query)
	if p.TopK <= 0 {
		p.TopK = s.topK
	}
	if p.Page == 0 {
		p.Page = 1
	}
	if p.Size == 0 {
		p.Size = s.pageSize
	}
	return p
}

func (s *Service) validate(path string, p Params) error {
	var errs []string
	errs = append(errs, validation.ValidateSearchQuery(p.Query).Errors...)
	errs = append(errs, validation.ValidatePagination(p.Page, p.Size).Errors...)
	if len(errs) > 0 {
		return apierr.Validation(path, errs, s.clock.Now())
	}
	return nil
}

func (p Params) values() url.Values {
	v := url.Values{}
	v.Set("query", p.Query)
	v.Set("topK", strconv.Itoa(p.TopK))
	v.Set("page", strconv.Itoa(p.Page))
	v.Set("size", strconv.Itoa(p.Size))
	return v
}

// Search returns one page of results. Invalid input is rejected before any
// network call. Successful pages are cached under the query and paging.
func (s *Service) Search(ctx context.Context, p Params) (*Response, error) {
	p = s.normalize(p)
	if err := s.validate(pathSearch, p); err != nil {
		return nil, err
	}

	start := time.Now()
	key := cache.SearchKey(p.Query, p.Page, p.Size, p.TopK)
	if s.cache != nil {
		if cached, ok := cache.Lookup[*Response](s.cache, key); ok {
			out := cached.clone()
			out.Cached = true
			s.logQuery(ctx, "search", p, out, time.Since(start))
			return out, nil
		}
	}

	var resp Response
	if err := s.client.Call(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   pathSearch,
		Query:  p.values(),
	}, &resp); err != nil {
		s.logger.Warn("search failed", zap.String("query", p.Query), zap.Error(err))
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(key, resp.clone(), 0)
	}
	s.logQuery(ctx, "search", p, &resp, time.Since(start))
	return &resp, nil
}

// SearchWithFilters searches with tag filters. Filtered searches bypass the cache.
func (s *Service) SearchWithFilters(ctx context.Context, p Params, f Filters) (*Response, error) {
	p = s.normalize(p)
	if err := s.validate(pathFilters, p); err != nil {
		return nil, err
	}
	q := p.values()
	tags := make([]string, 0, len(f.Tags))
	for _, t := range f.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) > 0 {
		q.Set("tags", strings.Join(tags, ","))
	}
	return s.fetch(ctx, "filters", pathFilters, p, q)
}

// SearchWithCorrections searches with spelling correction applied server-side.
func (s *Service) SearchWithCorrections(ctx context.Context, p Params) (*Response, error) {
	p = s.normalize(p)
	if err := s.validate(pathCorrections, p); err != nil {
		return nil, err
	}
	return s.fetch(ctx, "corrections", pathCorrections, p, p.values())
}

func (s *Service) fetch(ctx context.Context, kind, path string, p Params, q url.Values) (*Response, error) {
	start := time.Now()
	var resp Response
	if err := s.client.Call(ctx, gateway.Request{Method: http.MethodGet, Path: path, Query: q}, &resp); err != nil {
		s.logger.Warn("search failed", zap.String("kind", kind), zap.String("query", p.Query), zap.Error(err))
		return nil, err
	}
	s.logQuery(ctx, kind, p, &resp, time.Since(start))
	return &resp, nil
}

// Suggestions returns completions for prefix. Invalid input and every failure
// yield an empty list.
func (s *Service) Suggestions(ctx context.Context, prefix, userID string) []string {
	prefix = strings.TrimSpace(prefix)
	userID = strings.TrimSpace(userID)
	if !validation.ValidateSearchQuery(prefix).Valid || !validation.ValidateUserID(userID).Valid {
		return []string{}
	}

	key := cache.SuggestionsKey(prefix, userID)
	if s.cache != nil {
		if cached, ok := cache.Lookup[[]string](s.cache, key); ok {
			return append([]string(nil), cached...)
		}
	}

	var out []string
	err := s.client.Call(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   pathSuggestions,
		Query:  url.Values{"prefix": {prefix}, "userId": {userID}},
		NoWait: true,
	}, &out)
	if err != nil {
		s.logger.Debug("suggestions unavailable", zap.String("prefix", prefix), zap.Error(err))
		return []string{}
	}
	if out == nil {
		out = []string{}
	}
	if s.cache != nil {
		s.cache.Set(key, append([]string(nil), out...), s.suggestionTTL)
	}
	return out
}

// SubmitFeedback records whether a document was relevant to a query.
func (s *Service) SubmitFeedback(ctx context.Context, fb Feedback) error {
	fb.Query = strings.TrimSpace(fb.Query)
	fb.UserID = strings.TrimSpace(fb.UserID)
	var errs []string
	errs = append(errs, validation.ValidateSearchQuery(fb.Query).Errors...)
	errs = append(errs, validation.ValidateUserID(fb.UserID).Errors...)
	if fb.DocumentID < 0 {
		errs = append(errs, "Document ID must not be negative")
	}
	if len(errs) > 0 {
		return apierr.Validation(pathFeedback, errs, s.clock.Now())
	}
	return s.client.Call(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   pathFeedback,
		Body:   fb,
	}, nil)
}

// logQuery records the search on the query log. Failures are only logged.
func (s *Service) logQuery(ctx context.Context, kind string, p Params, resp *Response, latency time.Duration) {
	id, err := s.ids.NewID()
	if err != nil {
		s.logger.Debug("query log id unavailable", zap.Error(err))
	}
	entry := querylog.Entry{
		ID:          id,
		Query:       p.Query,
		UserID:      p.UserID,
		Kind:        kind,
		Page:        p.Page,
		Size:        p.Size,
		TopK:        p.TopK,
		ResultCount: len(resp.Documents),
		Cached:      resp.Cached,
		Latency:     latency,
		Timestamp:   s.clock.Now(),
	}
	if err := s.queryLog.Log(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Debug("query log failed", zap.String("query", p.Query), zap.Error(err))
	}
}
