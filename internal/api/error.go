package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the single failure shape returned by every gateway call.
// Status is 0 when the request never produced an HTTP response.
type Error struct {
	Status  int
	Message string
	Body    any

	cause error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("api: %s", e.Message)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// ServerMessage returns the message the service put in the response body,
// or "" when Message was derived from the status line or a transport error.
func (e *Error) ServerMessage() string {
	switch b := e.Body.(type) {
	case map[string]any:
		if m, ok := b["message"]; ok && m != nil {
			return e.Message
		}
	case string:
		if b != "" {
			return e.Message
		}
	}
	return ""
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

func transportError(err error) *Error {
	return &Error{Status: 0, Message: err.Error(), cause: err}
}

func statusError(status int, statusText string, body any) *Error {
	message := statusText
	if message == "" {
		message = http.StatusText(status)
	}
	if message == "" {
		message = "API error"
	}
	switch b := body.(type) {
	case map[string]any:
		if m, ok := b["message"]; ok && m != nil {
			if s, ok := m.(string); ok {
				message = s
			} else {
				message = fmt.Sprint(m)
			}
		}
	case string:
		if b != "" {
			message = b
		}
	}
	return &Error{Status: status, Message: message, Body: body}
}
