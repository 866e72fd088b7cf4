package todoapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrBaseURLRequired  = errors.New("base_url must be specified")
	ErrPasswordRequired = errors.New("password must be specified with email")
	ErrInvalidBaseURL   = errors.New("base_url must be an absolute URL")
	ErrTokenNotFound    = errors.New("csrf-token meta tag not found")
	ErrNoCredentials    = errors.New("no credentials configured")
	ErrUnexpectedResult = errors.New("unexpected response document")
)

// StatusError is returned for any response outside the 2xx range.
type StatusError struct {
	Method string
	URL    string
	Code   int

	// Titles holds the titles of the JSON:API error objects in the
	// response body, if it had any.
	Titles []string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Code, http.StatusText(e.Code))
	if len(e.Titles) > 0 {
		msg += ": " + strings.Join(e.Titles, "; ")
	}
	return msg
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
