package qualtrics

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrUnauthorized matches API errors caused by a missing or rejected token.
	ErrUnauthorized = errors.New("qualtrics: unauthorized")
	// ErrNotFound matches API errors for unknown resources such as a survey id.
	ErrNotFound = errors.New("qualtrics: not found")
	// ErrExportFailed matches export jobs that ended in a failed or cancelled state.
	ErrExportFailed = errors.New("qualtrics: export failed")
	// ErrExportTimeout is returned when an export job does not complete in time.
	ErrExportTimeout = errors.New("qualtrics: export timed out")
	// ErrMalformedExport matches unreadable payloads, archives, or delimited files.
	ErrMalformedExport = errors.New("qualtrics: malformed export")
)

// APIError is a non-2xx response from the API.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s %s: status %d (%s): %s", e.Method, e.URL, e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, msg)
}

// Unwrap exposes the sentinel matching the status code, if any.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}

// newAPIError extracts the Qualtrics error envelope
// ({"meta":{"httpStatus":..,"error":{"errorMessage":..,"errorCode":..}}}) when present.
func newAPIError(method, target string, status int, body []byte) *APIError {
	e := &APIError{Method: method, URL: target, StatusCode: status}
	if gjson.ValidBytes(body) {
		res := gjson.ParseBytes(body)
		e.Code = res.Get("meta.error.errorCode").String()
		e.Message = firstNonEmpty(
			res.Get("meta.error.errorMessage").String(),
			res.Get("meta.httpStatus").String(),
		)
	}
	if e.Message == "" {
		e.Message = bodySnippet(body)
	}
	return e
}

// ExportError reports an export job that reached a terminal non-complete state.
type ExportError struct {
	JobID    string
	SurveyID string
	Status   string
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s for survey %s ended with status %q", e.JobID, e.SurveyID, e.Status)
}

func (e *ExportError) Unwrap() error { return ErrExportFailed }

// ParseError reports an undecodable payload.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

// Is lets errors.Is(err, ErrMalformedExport) match while Unwrap keeps the cause.
func (e *ParseError) Is(target error) bool { return target == ErrMalformedExport }

func (e *ParseError) Unwrap() error { return e.Err }

func bodySnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
