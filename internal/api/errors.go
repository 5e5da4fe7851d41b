// Package api provides error types for uploader responses.
package api

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"
	"unicode/utf8"
)

// StatusError is returned when the uploader answers with a non-2xx status.
type StatusError struct {
	Op     string // list, upload, move, delete, create, download
	Status int
	Body   string // trimmed response body, often the server's reason
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s failed: status %d: %s", e.Op, e.Status, e.Body)
}

// IsCanceled reports whether err comes from a cancelled context (a user abort).
// Aborts are never shown as failures.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsNotFound reports whether the server answered 404.
func IsNotFound(err error) bool {
	return hasStatus(err, nethttp.StatusNotFound)
}

// IsConflict reports whether the server refused because the target exists.
func IsConflict(err error) bool {
	return hasStatus(err, nethttp.StatusConflict)
}

func hasStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

const maxErrorBody = 512

// errorBody trims a failure body for display in an alert description
func errorBody(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}
