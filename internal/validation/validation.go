// Package validation holds the pure, side-effect-free checks applied to user
// input before it is sent to the gateway.
package validation

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxURLLength    = 2048
	maxQueryLength  = 500
	maxUserIDLength = 100
	maxPageSize     = 100
	minHostnameLen  = 3
)

// Result is the outcome of a validation: a validity flag plus ordered,
// human-readable errors.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func result(errs []string) Result {
	return Result{Valid: len(errs) == 0, Errors: errs}
}

var (
	schemePrefix = regexp.MustCompile(`^https?://`)
	userIDChars  = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	suspiciousPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script\b.*?</script>`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)vbscript:`),
		regexp.MustCompile(`(?i)onload=`),
		regexp.MustCompile(`(?i)onerror=`),
		regexp.MustCompile(`(?i)onclick=`),
		regexp.MustCompile(`(?i)<iframe`),
		regexp.MustCompile(`(?i)<object`),
		regexp.MustCompile(`(?i)<embed`),
	}
)

// ValidateURL checks a crawl target: absolute http(s), well formed, a
// plausible hostname, free of script patterns and at most 2048 characters.
func ValidateURL(raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return result([]string{"URL is required"})
	}

	var errs []string
	if !schemePrefix.MatchString(trimmed) {
		errs = append(errs, "URL must start with http:// or https://")
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return result(append(errs, "Invalid URL format"))
	}
	if len(u.Hostname()) < minHostnameLen {
		errs = append(errs, "Invalid hostname")
	}
	if ContainsSuspiciousPatterns(trimmed) {
		errs = append(errs, "URL contains suspicious patterns")
	}
	if utf8.RuneCountInString(trimmed) > maxURLLength {
		errs = append(errs, "URL is too long (maximum 2048 characters)")
	}
	return result(errs)
}

// ValidateSearchQuery checks a search query or suggestion prefix.
func ValidateSearchQuery(query string) Result {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return result([]string{"Search query is required"})
	}

	var errs []string
	if utf8.RuneCountInString(trimmed) > maxQueryLength {
		errs = append(errs, "Search query is too long (maximum 500 characters)")
	}
	if ContainsSuspiciousPatterns(trimmed) {
		errs = append(errs, "Search query contains invalid characters")
	}
	return result(errs)
}

// ValidateUserID checks a user identifier.
func ValidateUserID(userID string) Result {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return result([]string{"User ID is required"})
	}

	var errs []string
	if n := utf8.RuneCountInString(trimmed); n > maxUserIDLength {
		errs = append(errs, "User ID must be between 1 and 100 characters")
	}
	if !userIDChars.MatchString(trimmed) {
		errs = append(errs, "User ID can only contain letters, numbers, underscores, and hyphens")
	}
	return result(errs)
}

// ValidatePagination checks a 1-based page and a page size in [1,100].
func ValidatePagination(page, size int) Result {
	var errs []string
	if page < 1 {
		errs = append(errs, "Page must be a positive integer")
	}
	if size < 1 || size > maxPageSize {
		errs = append(errs, "Page size must be between 1 and 100")
	}
	return result(errs)
}

// ContainsSuspiciousPatterns reports whether input carries script or event
// handler markup.
func ContainsSuspiciousPatterns(input string) bool {
	for _, p := range suspiciousPatterns {
		if p.MatchString(input) {
			return true
		}
	}
	return false
}
