package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report json field names instead of Go struct field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// CrawlRequest is a crawl submission as entered by the user.
type CrawlRequest struct {
	URL      string `json:"url"`
	Priority int    `json:"priority" validate:"min=1,max=10"`
	MaxDepth int    `json:"maxDepth" validate:"min=1,max=10"`
}

// Credentials are the username/password pair exchanged at login.
type Credentials struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required"`
}

// ValidateCrawlRequest checks the URL rules plus priority and max depth in [1,10].
func ValidateCrawlRequest(req CrawlRequest) Result {
	errs := ValidateURL(req.URL).Errors
	return result(append(errs, structErrors(req)...))
}

// ValidateCredentials checks a login form.
func ValidateCredentials(c Credentials) Result {
	return result(structErrors(c))
}

func structErrors(s any) []string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "priority":
		return "Priority must be a number between 1 and 10"
	case "maxDepth":
		return "Max depth must be a number between 1 and 10"
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s is too long (maximum %s)", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
