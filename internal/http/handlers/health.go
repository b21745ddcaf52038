package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready returns a static GET handler describing what the endpoint expects.
// It has no side effects.
func (a *App) Ready(name, expects string) http.HandlerFunc {
	payload := map[string]any{"ok": true, "status": name + " ready", "expects": expects}
	return func(w http.ResponseWriter, r *http.Request) {
		a.json(w, http.StatusOK, payload)
	}
}
