package apierr

import (
	"errors"
	"net/http"
)

// UserFriendly is the title/message pair shown to console users.
type UserFriendly struct {
	Title      string `json:"title"`
	Message    string `json:"message"`
	Actionable bool   `json:"actionable"`
	Retryable  bool   `json:"retryable"`
}

// Friendly maps err to its user-facing description.
func Friendly(err error) UserFriendly {
	kind := KindOf(err)
	switch kind {
	case KindValidation:
		return UserFriendly{Title: "Invalid Input", Message: messageOf(err), Actionable: true}
	case KindNetwork:
		return forStatus(0, "")
	case KindCanceled:
		return UserFriendly{Title: "Request Canceled", Message: "The request was superseded or canceled."}
	case KindClient, KindServer:
		return forStatus(StatusOf(err), messageOf(err))
	default:
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		return forStatus(-1, msg)
	}
}

func messageOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

func forStatus(status int, message string) UserFriendly {
	switch status {
	case 0:
		return UserFriendly{
			Title:      "Connection Error",
			Message:    "Unable to connect to the server. Please check your internet connection and try again.",
			Actionable: true,
			Retryable:  true,
		}
	case http.StatusBadRequest:
		if message == "" || message == http.StatusText(status) {
			message = "The request contains invalid data. Please check your input and try again."
		}
		return UserFriendly{Title: "Invalid Request", Message: message, Actionable: true}
	case http.StatusUnauthorized:
		return UserFriendly{
			Title:      "Authentication Required",
			Message:    "You need to log in to access this feature.",
			Actionable: true,
		}
	case http.StatusForbidden:
		return UserFriendly{
			Title:   "Access Denied",
			Message: "You don't have permission to perform this action.",
		}
	case http.StatusNotFound:
		return UserFriendly{
			Title:   "Not Found",
			Message: "The requested resource could not be found.",
		}
	case http.StatusTooManyRequests:
		return UserFriendly{
			Title:      "Too Many Requests",
			Message:    "You're making requests too quickly. Please wait a moment and try again.",
			Actionable: true,
			Retryable:  true,
		}
	case http.StatusInternalServerError:
		return UserFriendly{
			Title:     "Server Error",
			Message:   "An internal server error occurred. Our team has been notified.",
			Retryable: true,
		}
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return UserFriendly{
			Title:      "Service Unavailable",
			Message:    "The service is temporarily unavailable. Please try again in a few moments.",
			Actionable: true,
			Retryable:  true,
		}
	default:
		if message == "" {
			message = "An unexpected error occurred. Please try again."
		}
		return UserFriendly{Title: "Unexpected Error", Message: message, Actionable: true, Retryable: true}
	}
}
