// Package handlers holds the HTTP endpoints and the JSON envelope they share.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"nanoedit/internal/domain"
	"nanoedit/internal/imagegen"
	"nanoedit/internal/metrics"
	"nanoedit/internal/providers/video"
)

// ChainRunner executes composite jobs. *imagegen.Orchestrator satisfies it.
type ChainRunner interface {
	RunTraced(ctx context.Context, steps []domain.ChainStep, onStep imagegen.StepFunc) (domain.Result, error)
}

// App carries the request-independent collaborators of every handler.
// It is built once in main and never mutated.
type App struct {
	Editor         imagegen.Runner
	Chain          ChainRunner
	Resolver       imagegen.ImageResolver
	Animator       video.Generator
	Fallback       *imagegen.FallbackPolicy
	AnimateMissing []string
	Metrics        *metrics.Collector
	MaxBodyBytes   int64
}

const (
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	codeNotFound         = "NOT_FOUND"
	codePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
)

type assetJSON struct {
	Base64 string `json:"base64"`
	Format string `json:"format"`
	Mime   string `json:"mime"`
}

type envelope struct {
	OK        bool       `json:"ok"`
	Mode      string     `json:"mode,omitempty"`
	Result    *assetJSON `json:"result,omitempty"`
	Degraded  bool       `json:"degraded,omitempty"`
	Note      string     `json:"note,omitempty"`
	ModelText *string    `json:"modelText,omitempty"`
	Steps     []string   `json:"steps,omitempty"`
	HaltedAt  string     `json:"haltedAt,omitempty"`
	Error     string     `json:"error,omitempty"`
	Message   string     `json:"message,omitempty"`
	Detail    string     `json:"detail,omitempty"`
	Need      []string   `json:"need,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body bounded by MaxBodyBytes. An empty body decodes
// to the zero value.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := r.Body
	if a.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, a.MaxBodyBytes)
	}
	err := json.NewDecoder(body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &domain.Error{
			Kind:    domain.KindValidation,
			Code:    codePayloadTooLarge,
			Status:  http.StatusRequestEntityTooLarge,
			Message: "request body too large",
		}
	}
	return domain.Validation(domain.CodeBadRequest, "body must be a JSON object")
}

// resultMeta carries chain details: steps on success, haltedAt naming the
// operation that stopped the chain otherwise.
type resultMeta struct {
	steps    []string
	haltedAt string
}

// writeResult shapes a pipeline outcome, applying the fallback policy.
func (a *App) writeResult(w http.ResponseWriter, r *http.Request, mode string, res domain.Result, meta resultMeta) {
	log := zerolog.Ctx(r.Context())
	d := a.Fallback.Decide(res)

	switch d.Action {
	case imagegen.ActionPass:
		if res.OK() {
			a.json(w, http.StatusOK, envelope{OK: true, Mode: mode, Result: toAssetJSON(res.Asset), Steps: meta.steps})
			return
		}
		env := envelope{OK: true, Mode: mode, Note: imagegen.NoteNoImage, HaltedAt: meta.haltedAt}
		if res.ModelNote != "" {
			note := res.ModelNote
			env.ModelText = &note
		}
		a.json(w, http.StatusOK, env)

	case imagegen.ActionStub:
		a.Metrics.ObserveStub()
		log.Warn().Str("mode", mode).Str("note", d.Note).Msg("handlers: serving placeholder")
		a.json(w, http.StatusOK, envelope{
			OK:       true,
			Mode:     mode,
			Result:   toAssetJSON(d.Asset),
			Degraded: true,
			Note:     d.Note,
			HaltedAt: meta.haltedAt,
		})

	default:
		log.Warn().Str("mode", mode).Str("code", d.Code).Int("status", d.Status).Msg("handlers: edit failed")
		a.json(w, d.Status, envelope{
			Error:    d.Code,
			Message:  d.Message,
			Detail:   d.Detail,
			Need:     d.Need,
			HaltedAt: meta.haltedAt,
		})
	}
}

// writeError maps request faults to 4xx and anything else to 500 EDIT_FAIL.
func (a *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if de, ok := domain.AsError(err); ok {
		a.json(w, de.Status, envelope{Error: de.Code, Message: de.Message})
		return
	}
	zerolog.Ctx(r.Context()).Error().Err(err).Msg("handlers: unexpected failure")
	a.json(w, http.StatusInternalServerError, envelope{Error: imagegen.CodeUnexpected, Message: err.Error()})
}

// MethodNotAllowed answers verbs an endpoint does not serve.
func (a *App) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusMethodNotAllowed, envelope{Error: codeMethodNotAllowed, Message: r.Method + " is not supported"})
}

// NotFound answers unknown paths.
func (a *App) NotFound(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusNotFound, envelope{Error: codeNotFound, Message: "no route for " + r.URL.Path})
}

func toAssetJSON(asset domain.InlineAsset) *assetJSON {
	return &assetJSON{Base64: asset.Data, Format: asset.Format(), Mime: asset.MimeType}
}
