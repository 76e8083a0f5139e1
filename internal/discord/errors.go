package discord

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var ErrEmptyToken = errors.New("discord token is empty")

// APIError is a non-2xx response.
type APIError struct {
	Method     string
	Path       string
	Status     int
	Code       int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %d", e.Method, e.Path, e.Status)
	if e.Code != 0 {
		fmt.Fprintf(&b, " (code %d)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.RetryAfter > 0 {
		fmt.Fprintf(&b, " (retry after %s)", e.RetryAfter)
	}
	return b.String()
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == status
}

func IsNotFound(err error) bool    { return IsStatus(err, http.StatusNotFound) }
func IsRateLimited(err error) bool { return IsStatus(err, http.StatusTooManyRequests) }

type errorBody struct {
	Code       int     `json:"code"`
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
}

func newAPIError(method, path string, status int, header http.Header, body []byte) *APIError {
	e := &APIError{Method: method, Path: path, Status: status}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		e.Code = eb.Code
		e.Message = eb.Message
		if eb.RetryAfter > 0 {
			e.RetryAfter = secondsToDuration(eb.RetryAfter)
		}
	} else {
		e.Message = truncate(strings.TrimSpace(string(body)), 200)
	}
	if e.RetryAfter == 0 && header != nil {
		if v, err := strconv.ParseFloat(header.Get("Retry-After"), 64); err == nil && v > 0 {
			e.RetryAfter = secondsToDuration(v)
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
