package handlers

import (
	"net/http"
	"strings"

	"nanoedit/internal/domain"
	"nanoedit/internal/imagegen"
)

const chainMode = "remove-insert"

type chainRequest struct {
	Image        string   `json:"image"`
	SceneImage   string   `json:"sceneImage"`
	Reference    string   `json:"reference"`
	PersonImage  string   `json:"personImage"`
	Target       string   `json:"target"`
	BoundingBox  *wireBox `json:"boundingBox"`
	BBox         *wireBox `json:"bbox"`
	RemovePrompt string   `json:"removePrompt"`
	InsertPrompt string   `json:"insertPrompt"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// RemoveInsert removes a subject from the scene and then inserts the
// person image into the result.
func (a *App) RemoveInsert(w http.ResponseWriter, r *http.Request) {
	var body chainRequest
	if err := a.decode(w, r, &body); err != nil {
		a.writeError(w, r, err)
		return
	}

	scene := firstNonEmpty(body.Image, body.SceneImage)
	person := firstNonEmpty(body.Reference, body.PersonImage)
	if scene == "" {
		a.writeError(w, r, domain.Validation(domain.CodeMissingImage, "sceneImage is required"))
		return
	}
	if person == "" {
		a.writeError(w, r, domain.Validation(domain.CodeMissingInsert, "personImage is required"))
		return
	}

	steps := imagegen.RemoveInsert(imagegen.ChainInput{
		Scene:        domain.ParseImageRef(scene),
		Person:       domain.ParseImageRef(person),
		Target:       body.Target,
		BoundingBox:  pickBox(body.BoundingBox, body.BBox).toDomain(),
		RemovePrompt: body.RemovePrompt,
		InsertPrompt: body.InsertPrompt,
	})
	var last domain.Mode
	res, err := a.Chain.RunTraced(r.Context(), steps, func(_ int, op domain.Mode, _ domain.Result) {
		last = op
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	if !res.OK() {
		a.writeResult(w, r, chainMode, res, resultMeta{haltedAt: string(last)})
		return
	}
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = string(s.Operation)
	}
	a.writeResult(w, r, chainMode, res, resultMeta{steps: names})
}
