// Package genai shapes edit requests for the Gemini generateContent REST
// API and reads its answers back into typed results.
package genai

import (
	"context"
	"errors"
	"strings"

	"nanoedit/internal/domain"
	"nanoedit/internal/infra"
	"nanoedit/internal/transport"
)

// Sender is satisfied by *transport.Client.
type Sender interface {
	Send(ctx context.Context, endpoint string, cred transport.Credential, payload any) (*transport.Response, error)
}

// Options controls how the Gemini client is configured.
type Options struct {
	Endpoint  string
	APIKey    string
	Transport Sender
	Logger    *infra.Logger
}

// Client sends assembled payloads to one configured endpoint.
type Client struct {
	endpoint  string
	apiKey    string
	transport Sender
	logger    *infra.Logger
}

// NewClient constructs a client. A nil Transport gets a default
// transport.Client.
func NewClient(opts Options) *Client {
	sender := opts.Transport
	if sender == nil {
		sender = transport.NewClient(transport.Options{Target: "genai", Logger: opts.Logger})
	}
	return &Client{
		endpoint:  strings.TrimSpace(opts.Endpoint),
		apiKey:    strings.TrimSpace(opts.APIKey),
		transport: sender,
		logger:    infra.OrDiscard(opts.Logger),
	}
}

// Generate sends payload and extracts the answer. Backend faults come back
// as a ResultTransportFailure; the error return is reserved for faults that
// happen before anything is sent.
func (c *Client) Generate(ctx context.Context, payload GenerateContentRequest) (domain.Result, error) {
	resp, err := c.transport.Send(ctx, c.endpoint, transport.GoogleAPIKey(c.apiKey), payload)
	if err != nil {
		var f *transport.Failure
		if !errors.As(err, &f) {
			return domain.Result{}, err
		}
		c.logger.Warn().
			Int("status", f.Status).
			Int("attempts", f.Attempts).
			Msg("genai: backend call failed")
		return domain.Result{
			Kind:       domain.ResultTransportFailure,
			HTTPStatus: f.Status,
			Body:       domain.Snippet(f.Body),
			Cause:      f.Error(),
			Attempts:   f.Attempts,
		}, nil
	}

	res := Extract(resp.Body)
	res.Attempts = resp.Attempts
	if res.Kind == domain.ResultParseFailure {
		res.HTTPStatus = resp.Status
		c.logger.Warn().Str("cause", res.Cause).Msg("genai: unreadable backend response")
	}
	return res, nil
}
