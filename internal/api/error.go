package api

import (
	"errors"
	"strings"
)

// Kind classifies a failed request.
type Kind int

const (
	// KindNetwork is a transport failure with no response.
	KindNetwork Kind = iota
	// KindTimeout is a request aborted after the configured deadline.
	KindTimeout
	// KindValidation is an HTTP 422 with field-level messages.
	KindValidation
	// KindAuth is a 401/403: stale or missing credential.
	KindAuth
	// KindApplication is an envelope with status "error".
	KindApplication
	// KindMalformed is a response body that was not valid JSON.
	KindMalformed
)

// Error is the normalized failure every executor call returns. Transport
// errors, decode errors and backend error envelopes are all converted into
// it; nothing else escapes the api package.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 when no response arrived
	Code    string // envelope error code, if any
	Msg     string
	Details []string // 422 field messages, in response order
}

func (e *Error) Error() string {
	if len(e.Details) > 0 {
		return strings.Join(e.Details, ", ")
	}
	if e.Msg != "" {
		return e.Msg
	}
	switch e.Kind {
	case KindTimeout:
		return "request timed out"
	case KindNetwork:
		return "could not reach the server"
	case KindAuth:
		return "authentication required"
	case KindMalformed:
		return "server returned an unreadable response"
	default:
		return "request failed"
	}
}

// AsError returns err as *Error when it is one.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsAuthFailure reports whether err is a 401/403-class failure.
func IsAuthFailure(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Kind == KindAuth
}

// Message derives the user-facing string for err: validation messages
// joined, then the message carried by the error, then the fallback.
func Message(err error, fallback string) string {
	apiErr, ok := AsError(err)
	if !ok {
		return fallback
	}
	if len(apiErr.Details) > 0 {
		return strings.Join(apiErr.Details, ", ")
	}
	if apiErr.Msg != "" {
		return apiErr.Msg
	}
	return fallback
}
