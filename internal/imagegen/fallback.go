package imagegen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"

	"nanoedit/internal/domain"
)

// Envelope codes for backend outcomes.
const (
	CodeMisconfig  = "MISCONFIG"
	CodeBackend    = "GEMINI_ERROR"
	CodeParse      = "PARSE_ERROR"
	CodeUnexpected = "EDIT_FAIL"
	NoteNoImage    = "NO_IMAGE_FROM_MODEL"
	stubNotePrefix = "STUB_FALLBACK: "
)

// FallbackMode selects what happens when the backend call fails.
type FallbackMode string

const (
	FallbackPropagate FallbackMode = "propagate"
	FallbackStub      FallbackMode = "stub"
)

// Action is what the caller should do with a result.
type Action int

const (
	// ActionPass: success or no-asset, written as is.
	ActionPass Action = iota
	// ActionStub: answer 200 with the placeholder and a note.
	ActionStub
	// ActionPropagate: answer with Status and Code.
	ActionPropagate
)

// Decision is the policy's verdict for one result.
type Decision struct {
	Action  Action
	Status  int
	Code    string
	Message string
	Detail  string
	Need    []string
	Asset   domain.InlineAsset
	Note    string
}

// FallbackPolicy decides between degrading to a placeholder and surfacing
// the failure. It is immutable and safe for concurrent use.
type FallbackPolicy struct {
	mode        FallbackMode
	placeholder domain.InlineAsset
}

// NewFallbackPolicy builds a policy. Unknown modes propagate.
func NewFallbackPolicy(mode FallbackMode) *FallbackPolicy {
	if mode != FallbackStub {
		mode = FallbackPropagate
	}
	return &FallbackPolicy{mode: mode, placeholder: placeholder}
}

// Mode returns the configured mode.
func (p *FallbackPolicy) Mode() FallbackMode { return p.mode }

// Placeholder returns the asset used for stubbed responses.
func (p *FallbackPolicy) Placeholder() domain.InlineAsset { return p.placeholder }

// Decide maps a result to a response action. Missing configuration and
// unreadable backend answers are never stubbed.
func (p *FallbackPolicy) Decide(res domain.Result) Decision {
	switch res.Kind {
	case domain.ResultSuccess, domain.ResultNoAsset:
		return Decision{Action: ActionPass, Status: http.StatusOK}

	case domain.ResultConfigMissing:
		return Decision{
			Action:  ActionPropagate,
			Status:  http.StatusInternalServerError,
			Code:    CodeMisconfig,
			Message: "backend configuration is incomplete",
			Need:    append([]string(nil), res.MissingKeys...),
		}

	case domain.ResultParseFailure:
		return Decision{
			Action:  ActionPropagate,
			Status:  http.StatusInternalServerError,
			Code:    CodeParse,
			Message: res.Cause,
			Detail:  res.Body,
		}

	case domain.ResultTransportFailure:
		if p.mode == FallbackStub {
			return Decision{
				Action: ActionStub,
				Status: http.StatusOK,
				Asset:  p.placeholder,
				Note:   stubNotePrefix + transportCause(res),
			}
		}
		status := res.HTTPStatus
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		return Decision{
			Action:  ActionPropagate,
			Status:  status,
			Code:    CodeBackend,
			Message: transportCause(res),
			Detail:  res.Body,
		}
	}

	return Decision{
		Action:  ActionPropagate,
		Status:  http.StatusInternalServerError,
		Code:    CodeUnexpected,
		Message: fmt.Sprintf("unhandled result kind %s", res.Kind),
	}
}

func transportCause(res domain.Result) string {
	if res.HTTPStatus > 0 {
		return fmt.Sprintf("backend returned status %d after %d attempt(s)", res.HTTPStatus, res.Attempts)
	}
	if res.Cause != "" {
		return res.Cause
	}
	return "backend unreachable"
}

var placeholder = renderPlaceholder()

// renderPlaceholder encodes a 1x1 fully transparent PNG.
func renderPlaceholder() domain.InlineAsset {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.NRGBA{})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(fmt.Sprintf("imagegen: encode placeholder: %v", err))
	}
	return domain.NewInlineAsset("image/png", buf.Bytes())
}
