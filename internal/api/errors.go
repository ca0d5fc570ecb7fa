package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/searchconsole/internal/admin"
	"github.com/JakeFAU/searchconsole/internal/apierr"
	"github.com/JakeFAU/searchconsole/internal/session"
)

type errorResponse struct {
	Error     apierr.UserFriendly `json:"error"`
	Kind      string              `json:"kind"`
	Status    int                 `json:"status,omitempty"`
	Details   []string            `json:"details,omitempty"`
	Alert     string              `json:"alert,omitempty"`
	RequestID string              `json:"requestId,omitempty"`
}

// statusFor maps a console error onto the status returned to the browser.
// Upstream 4xx pass through; upstream 5xx and transport failures become
// gateway errors.
func statusFor(err error) int {
	switch {
	case errors.Is(err, admin.ErrNotAdmin):
		return http.StatusForbidden
	case errors.Is(err, session.ErrNotAuthenticated), errors.Is(err, session.ErrNoRefreshToken):
		return http.StatusUnauthorized
	}
	switch apierr.KindOf(err) {
	case apierr.KindValidation:
		return http.StatusBadRequest
	case apierr.KindClient:
		return apierr.StatusOf(err)
	case apierr.KindServer:
		return http.StatusBadGateway
	case apierr.KindNetwork:
		return http.StatusServiceUnavailable
	case apierr.KindCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeErrorWithAlert(w, r, err, "")
}

func (s *Server) writeErrorWithAlert(w http.ResponseWriter, r *http.Request, err error, alert string) {
	status := statusFor(err)
	body := errorResponse{
		Error:     apierr.Friendly(err),
		Kind:      apierr.KindOf(err).String(),
		Status:    apierr.StatusOf(err),
		Alert:     alert,
		RequestID: requestID(r.Context()),
	}
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		body.Details = apiErr.Details
	}
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, body)
}
