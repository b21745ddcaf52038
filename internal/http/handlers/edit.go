package handlers

import (
	"math"
	"net/http"
	"strings"

	"nanoedit/internal/domain"
)

type wireBox struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	W *float64 `json:"w"`
	H *float64 `json:"h"`
}

// toDomain maps an absent field to NaN so EditRequest.Validate rejects the
// box along with every other shape error.
func (b *wireBox) toDomain() *domain.BoundingBox {
	if b == nil {
		return nil
	}
	return &domain.BoundingBox{X: coord(b.X), Y: coord(b.Y), W: coord(b.W), H: coord(b.H)}
}

func coord(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func pickBox(primary, alias *wireBox) *wireBox {
	if primary != nil {
		return primary
	}
	return alias
}

type editRequest struct {
	Mode        string   `json:"mode"`
	Image       string   `json:"image"`
	Reference   string   `json:"reference"`
	Insert      string   `json:"insert"`
	Target      string   `json:"target"`
	BoundingBox *wireBox `json:"boundingBox"`
	BBox        *wireBox `json:"bbox"`
	Prompt      string   `json:"prompt"`
}

// toDomain never fails: an unknown mode is kept verbatim so the pipeline
// reports it after its configuration check.
func (b editRequest) toDomain(fixed domain.Mode) domain.EditRequest {
	mode := fixed
	if mode == "" {
		raw := strings.TrimSpace(b.Mode)
		if raw == "" {
			mode = domain.ModeReplace
		} else if m, ok := domain.ParseMode(raw); ok {
			mode = m
		} else {
			mode = domain.Mode(raw)
		}
	}

	req := domain.EditRequest{
		Mode:           mode,
		Base:           domain.ParseImageRef(b.Image),
		Target:         b.Target,
		BoundingBox:    pickBox(b.BoundingBox, b.BBox).toDomain(),
		PromptOverride: b.Prompt,
	}
	ref := b.Reference
	if strings.TrimSpace(ref) == "" {
		ref = b.Insert
	}
	if strings.TrimSpace(ref) != "" {
		r := domain.ParseImageRef(ref)
		req.Reference = &r
	}
	return req
}

// Edit serves /v1/edit when fixed is empty (mode read from the body,
// default replace) and the single-mode endpoints otherwise.
func (a *App) Edit(fixed domain.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body editRequest
		if err := a.decode(w, r, &body); err != nil {
			a.writeError(w, r, err)
			return
		}
		req := body.toDomain(fixed)
		res, err := a.Editor.Run(r.Context(), req)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		a.writeResult(w, r, string(req.Mode), res, resultMeta{})
	}
}
