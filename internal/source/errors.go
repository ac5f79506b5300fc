package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// NetworkError is a transport failure or timeout before any response.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the request ran out of time.
func (e *NetworkError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// HTTPStatusError is a non-2xx response.
type HTTPStatusError struct {
	URL     string
	Status  int
	Message string // "message" or "error" from a JSON error body, if any
}

func (e *HTTPStatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.URL, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.URL, e.Status)
}

// ParseError is a response body that could not be decoded.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s response: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UserMessage turns a fetch error into text suitable for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch s := statusErr.Status; {
		case s == http.StatusNotFound:
			return "The requested resource was not found"
		case s == http.StatusUnauthorized:
			return "Authentication required. Please check your credentials"
		case s == http.StatusForbidden:
			return "You don't have permission to access this resource"
		case s == http.StatusTooManyRequests:
			return "Too many requests. Please try again later"
		case s >= 500:
			return "Server error. Please try again later"
		case statusErr.Message != "":
			return statusErr.Message
		}
		return fmt.Sprintf("API error: %d", statusErr.Status)
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "Request timed out. Please try again later"
		}
		return "Network error. Please check your connection"
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return "Received an unreadable response from " + parseErr.Source
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return "An error occurred while fetching data"
}
