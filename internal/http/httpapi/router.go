package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nanoedit/internal/domain"
	"nanoedit/internal/http/handlers"
	"nanoedit/internal/infra"
	mw "nanoedit/internal/middleware"
)

// Options wires the router.
type Options struct {
	App             *handlers.App
	Logger          infra.Logger
	AllowOrigin     string
	RateLimitPerMin int
	// Geo tags access lines with a country; nil skips the lookup.
	Geo mw.CountryResolver
	// Registry backs /metrics; nil leaves the route out.
	Registry *prometheus.Registry
}

const editExpects = "{ image, reference?, mode?, target?, boundingBox?, prompt? }"

func NewRouter(opts Options) http.Handler {
	app := opts.App
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		mw.RequestID,
		mw.Country(opts.Geo),
		mw.Logger(opts.Logger),
		chimw.Recoverer,
	)
	r.MethodNotAllowed(app.MethodNotAllowed)
	r.NotFound(app.NotFound)

	limit := mw.RateLimit(opts.RateLimitPerMin, time.Minute)
	endpoint := func(path string, get, post http.HandlerFunc, limited bool) {
		r.Route(path, func(sr chi.Router) {
			sr.Use(mw.CORS(opts.AllowOrigin, http.MethodPost, http.MethodGet))
			if limited {
				sr.Use(limit)
			}
			sr.MethodNotAllowed(app.MethodNotAllowed)
			sr.Get("/", get)
			sr.Post("/", post)
		})
	}

	endpoint("/v1/healthz", app.Health, app.Health, false)
	endpoint("/v1/edit", app.Ready("edit", editExpects), app.Edit(""), true)
	endpoint("/v1/remove", app.Ready("remove", "{ image, target?, boundingBox?, prompt? }"), app.Edit(domain.ModeRemove), true)
	endpoint("/v1/insert", app.Ready("insert", "{ image, reference, target?, boundingBox?, prompt? }"), app.Edit(domain.ModeInsert), true)
	endpoint("/v1/replace", app.Ready("replace", "{ image, reference, target?, boundingBox?, prompt? }"), app.Edit(domain.ModeReplace), true)
	endpoint("/v1/remove-insert", app.Ready("remove-insert", "{ sceneImage, personImage, removePrompt?, insertPrompt? }"), app.RemoveInsert, true)
	endpoint("/v1/animate", app.Ready("animate", "{ image, prompt?, duration?, fps? }"), app.Animate, true)

	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	if opts.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}

	return r
}
