package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultTimeout bounds every request unless the Client is configured
// otherwise.
const DefaultTimeout = 20 * time.Second

// Client executes requests against the MedChat backend. Every failure mode
// is converted into a *Error; callers never see a raw transport error and
// never have to recover from a parse panic.
type Client struct {
	rc      *resty.Client
	timeout time.Duration
}

// New creates a Client for the given base URL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		rc:      resty.New().SetBaseURL(strings.TrimRight(baseURL, "/")),
		timeout: timeout,
	}
}

// Timeout returns the per-request deadline the client applies.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Get issues a GET request with the given bearer token ("" for none).
func (c *Client) Get(ctx context.Context, path, token string) (*Envelope, error) {
	return c.Do(ctx, http.MethodGet, path, nil, token)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any, token string) (*Envelope, error) {
	return c.Do(ctx, http.MethodPost, path, body, token)
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any, token string) (*Envelope, error) {
	return c.Do(ctx, http.MethodPatch, path, body, token)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path, token string) (*Envelope, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, token)
}

// Do issues one request and interprets the response. The returned error, if
// any, is always a *Error; the envelope is non-nil whenever a response body
// produced one, including envelopes synthesized for non-JSON bodies. A
// missing token is sent as no Authorization header at all and left to the
// backend to reject.
func (c *Client) Do(ctx context.Context, method, path string, body any, token string) (*Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := c.rc.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json")
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}

	res, err := req.Execute(method, "/"+strings.TrimLeft(path, "/"))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{
				Kind: KindTimeout,
				Msg:  fmt.Sprintf("request timed out after %s", c.timeout),
			}
		}
		return nil, &Error{Kind: KindNetwork, Msg: "network error: " + err.Error()}
	}

	return c.interpret(res)
}

func (c *Client) interpret(res *resty.Response) (*Envelope, error) {
	raw := res.Body()
	status := res.StatusCode()

	// Validation failures use their own wire shape instead of the envelope.
	if status == http.StatusUnprocessableEntity {
		var vr validationResponse
		if err := json.Unmarshal(raw, &vr); err == nil && len(vr.Detail) > 0 {
			msgs := make([]string, 0, len(vr.Detail))
			for _, d := range vr.Detail {
				msgs = append(msgs, d.Msg)
			}
			return nil, &Error{Kind: KindValidation, Status: status, Details: msgs}
		}
	}

	var env Envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			// Tunnels and reverse proxies answer with HTML or plain text
			// when the backend is unreachable; surface that as a domain
			// error, not a parse crash.
			env = Envelope{
				Status:  StatusError,
				Message: fmt.Sprintf("non-JSON response (HTTP %d): %s", status, snippet(raw)),
				Error:   &EnvelopeError{Code: CodeNonJSONResponse},
			}
			return &env, &Error{
				Kind:   KindMalformed,
				Status: status,
				Code:   CodeNonJSONResponse,
				Msg:    env.Message,
			}
		}
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &env, &Error{Kind: KindAuth, Status: status, Msg: env.Message}
	}

	if env.Status == StatusError || !res.IsSuccess() {
		apiErr := &Error{Kind: KindApplication, Status: status, Msg: env.Message}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
		}
		return &env, apiErr
	}

	return &env, nil
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}
