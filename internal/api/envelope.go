package api

import (
	"encoding/json"
	"fmt"
)

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// CodeNonJSONResponse marks an envelope synthesized locally from a non-JSON
// response body, typically an HTML error page from a misconfigured reverse
// proxy.
const CodeNonJSONResponse = "NON_JSON_RESPONSE"

// Envelope is the uniform wire wrapper every MedChat endpoint responds with.
// The one exception is HTTP 422, which uses the bare {detail: [{msg}]} shape
// handled by the executor directly.
type Envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *EnvelopeError  `json:"error,omitempty"`
}

// EnvelopeError is the structured error block of an Envelope.
type EnvelopeError struct {
	Code    string          `json:"code,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

// DecodeData unmarshals the envelope's data payload into v.
func (e *Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("envelope carries no data")
	}
	return json.Unmarshal(e.Data, v)
}

// validationResponse is the HTTP 422 body shape.
type validationResponse struct {
	Detail []struct {
		Msg string `json:"msg"`
	} `json:"detail"`
}
