// Package api hosts the console HTTP server, a backend-for-frontend over the
// search engine gateway. Notable routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - /v1/search, /v1/suggestions and /v1/feedback for querying.
//   - /v1/crawl for crawl submission and crawler status.
//   - /v1/health and /v1/discovery for service aggregation.
//   - /v1/session for login, logout and the session snapshot.
//   - /v1/admin for crawler and indexer administration.
//
// Failures are rendered as JSON carrying the user-facing title and message,
// whether the request may be retried, and validation details when present.
package api
