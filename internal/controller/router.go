package controller

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sharetube/party/pkg/rest"
)

func (c controller) Mux() http.Handler {
	r := chi.NewRouter()

	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(c.metricsMw)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: c.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		rest.WriteJSON(w, http.StatusOK, rest.Envelope{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/parties", func(r chi.Router) {
		r.Use(c.identityMw)
		if c.cfg.RateLimit > 0 {
			r.Use(httprate.Limit(c.cfg.RateLimit, time.Minute,
				httprate.WithKeyFuncs(c.rateLimitKey),
				httprate.WithLimitHandler(c.rateLimited),
			))
		}

		r.Post("/", c.createParty)
		r.Route("/{code}", func(r chi.Router) {
			r.Use(c.partyCodeMw)

			r.Get("/", c.getState)
			r.Get("/preview", c.previewParty)
			r.Post("/join", c.joinParty)
			r.Post("/leave", c.leaveParty)
			r.Put("/playback", c.syncPlayback)
			r.Get("/chat", c.getChat)
			r.Post("/chat", c.postChat)
		})
	})

	return r
}
