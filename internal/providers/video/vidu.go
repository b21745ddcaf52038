// Package video turns a still image into an image-to-video job on a Vidu
// style backend. The upstream answer is passed back to the caller as is.
package video

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"nanoedit/internal/domain"
	"nanoedit/internal/infra"
	"nanoedit/internal/transport"
)

// Sender is satisfied by *transport.Client.
type Sender interface {
	Send(ctx context.Context, endpoint string, cred transport.Credential, payload any) (*transport.Response, error)
}

// GenerateRequest is one animate call. Nil Duration or FPS take the
// configured defaults.
type GenerateRequest struct {
	Image    domain.InlineAsset
	Prompt   string
	Duration *float64
	FPS      *int
}

// Reply is the upstream status plus a JSON body ready to be written out.
type Reply struct {
	Status   int
	Body     json.RawMessage
	Attempts int
}

// Generator starts a video job.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (Reply, error)
}

type viduRequest struct {
	Images   []string `json:"images"`
	Prompt   string   `json:"prompt"`
	Duration float64  `json:"duration"`
	FPS      int      `json:"fps"`
}

// Options configures the Vidu client.
type Options struct {
	Endpoint    string
	APIKey      string
	DurationSec float64
	FPS         int
	Transport   Sender
	Logger      *infra.Logger
}

// Vidu calls the image-to-video endpoint.
type Vidu struct {
	endpoint    string
	apiKey      string
	durationSec float64
	fps         int
	transport   Sender
	logger      *infra.Logger
}

// NewVidu constructs a client with sane defaults.
func NewVidu(opts Options) *Vidu {
	sender := opts.Transport
	if sender == nil {
		sender = transport.NewClient(transport.Options{Target: "video", Logger: opts.Logger})
	}
	duration := opts.DurationSec
	if duration <= 0 {
		duration = 5
	}
	fps := opts.FPS
	if fps <= 0 {
		fps = 25
	}
	return &Vidu{
		endpoint:    strings.TrimSpace(opts.Endpoint),
		apiKey:      strings.TrimSpace(opts.APIKey),
		durationSec: duration,
		fps:         fps,
		transport:   sender,
		logger:      infra.OrDiscard(opts.Logger),
	}
}

// Generate sends the job. Upstream failures are not errors: their status
// and body are returned in the Reply. A failure with no status maps to 502.
func (v *Vidu) Generate(ctx context.Context, req GenerateRequest) (Reply, error) {
	payload := viduRequest{
		Images:   []string{req.Image.Data},
		Prompt:   req.Prompt,
		Duration: v.durationSec,
		FPS:      v.fps,
	}
	if req.Duration != nil {
		payload.Duration = *req.Duration
	}
	if req.FPS != nil {
		payload.FPS = *req.FPS
	}

	resp, err := v.transport.Send(ctx, v.endpoint, transport.Token(v.apiKey), payload)
	if err != nil {
		var f *transport.Failure
		if !errors.As(err, &f) {
			return Reply{}, err
		}
		status := f.Status
		if status == 0 {
			status = http.StatusBadGateway
			v.logger.Warn().Err(f.Err).Msg("video: backend unreachable")
			return Reply{Status: status, Body: passThrough([]byte(f.Error())), Attempts: f.Attempts}, nil
		}
		return Reply{Status: status, Body: passThrough([]byte(f.Body)), Attempts: f.Attempts}, nil
	}
	return Reply{Status: resp.Status, Body: passThrough(resp.Body), Attempts: resp.Attempts}, nil
}

// passThrough keeps JSON bodies and wraps anything else as {"result": text}.
func passThrough(body []byte) json.RawMessage {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	wrapped, _ := json.Marshal(map[string]string{"result": string(body)})
	return wrapped
}

var _ Generator = (*Vidu)(nil)
