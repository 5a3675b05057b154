package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Outcome is the terminal state of a request.
type Outcome int

const (
	// OutcomeDone means the request succeeded.
	OutcomeDone Outcome = iota
	// OutcomeReported means the request failed in a way the caller can skip.
	OutcomeReported
	// OutcomeFatal means no further request can succeed in this run.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeReported:
		return "reported"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Kind classifies a failed request.
type Kind string

const (
	// KindNotFound is a 404 response.
	KindNotFound Kind = "not_found"
	// KindBadRequest is a 400 response.
	KindBadRequest Kind = "bad_request"
	// KindForbidden is a 403 response.
	KindForbidden Kind = "forbidden"
	// KindUnprocessable is a 422 response.
	KindUnprocessable Kind = "unprocessable"
	// KindAuthExhausted is a 401 on the replayed request.
	KindAuthExhausted Kind = "auth_exhausted"
	// KindMissingCredentials means no token pair is stored for the firm.
	KindMissingCredentials Kind = "missing_credentials"
	// KindRefreshFailed is a non-2xx answer to the refresh grant.
	KindRefreshFailed Kind = "refresh_failed"
	// KindAuthorizationFailed is a non-2xx answer to the authorization-code grant.
	KindAuthorizationFailed Kind = "authorization_failed"

	// kindAuthExpired marks a 401 that has not been replayed yet. It never
	// leaves the client.
	kindAuthExpired Kind = "auth_expired"
)

// Error describes a classified failure.
type Error struct {
	Kind       Kind
	Outcome    Outcome
	Tenant     string
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s (firm %s): %s", e.Method, e.Path, e.Tenant, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" [%d]", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Fatal reports whether the failure ends the run.
func (e *Error) Fatal() bool {
	return e.Outcome == OutcomeFatal
}

// IsFatal reports whether err carries a fatal classified failure.
func IsFatal(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Fatal()
}

// IsReported reports whether err carries a recoverable classified failure.
func IsReported(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Outcome == OutcomeReported
}

// UnexpectedStatusError is returned for statuses the client does not
// classify.
type UnexpectedStatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *UnexpectedStatusError) Error() string {
	msg := fmt.Sprintf("%s %s: unexpected status %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// classify maps a status to its kind and outcome. ok is false for statuses
// that are propagated as UnexpectedStatusError.
func classify(status int) (kind Kind, outcome Outcome, ok bool) {
	switch {
	case status >= 200 && status < 300:
		return "", OutcomeDone, true
	case status == http.StatusNotFound:
		return KindNotFound, OutcomeReported, true
	case status == http.StatusBadRequest:
		return KindBadRequest, OutcomeReported, true
	case status == http.StatusUnauthorized:
		return kindAuthExpired, OutcomeFatal, true
	case status == http.StatusForbidden:
		return KindForbidden, OutcomeFatal, true
	case status == http.StatusUnprocessableEntity:
		return KindUnprocessable, OutcomeFatal, true
	default:
		return "", 0, false
	}
}
