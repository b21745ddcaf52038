package handlers

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"nanoedit/internal/domain"
	"nanoedit/internal/imagegen"
	"nanoedit/internal/providers/video"
)

type animateRequest struct {
	Image    string   `json:"image"`
	Prompt   string   `json:"prompt"`
	Duration *float64 `json:"duration"`
	FPS      *int     `json:"fps"`
}

// Animate starts an image-to-video job and relays the backend's answer
// with the backend's status.
func (a *App) Animate(w http.ResponseWriter, r *http.Request) {
	var body animateRequest
	if err := a.decode(w, r, &body); err != nil {
		a.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(body.Image) == "" {
		a.writeError(w, r, domain.Validation(domain.CodeMissingImage, "image is required"))
		return
	}
	if len(a.AnimateMissing) > 0 {
		a.json(w, http.StatusInternalServerError, envelope{
			Error:   imagegen.CodeMisconfig,
			Message: "animation backend configuration is incomplete",
			Need:    a.AnimateMissing,
		})
		return
	}

	asset, err := a.Resolver.Resolve(r.Context(), domain.ParseImageRef(body.Image))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	reply, err := a.Animator.Generate(r.Context(), video.GenerateRequest{
		Image:    asset,
		Prompt:   body.Prompt,
		Duration: body.Duration,
		FPS:      body.FPS,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Int("status", reply.Status).Int("attempts", reply.Attempts).Msg("handlers: animate relayed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.Status)
	_, _ = w.Write(reply.Body)
}
