package api

import (
	"net/http"
	"time"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/authn"
	"github.com/dbca-wa/science-projects-service-sub000/pkg/httpx"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// NewRouter mounts the workflow API. Everything under /workflow needs a
// bearer token resolvable through users.
func NewRouter(h *Handler, users authn.UserLookup, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(httpx.RequestID)
	r.Use(hlog.NewHandler(log))
	r.Use(requestLogFields)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	r.Route("/workflow", func(api chi.Router) {
		api.Use(authn.Middleware(users, writeErr))
		api.Use(actorLogField)

		api.Get("/documents/{document_id}", h.GetDocument)
		api.Get("/documents/{document_id}/events", h.ListEvents)
		api.Post("/documents/{document_id}/actions/{action}", h.Transition)
		api.Get("/documents/{document_id}/endorsement", h.GetEndorsement)
		api.Put("/documents/{document_id}/endorsement/involvement", h.SetInvolvement)
		api.Post("/documents/{document_id}/endorsement/provide", h.ProvideEndorsement)
		api.Post("/projects/{project_id}/documents", h.CreateDocument)
		api.Get("/users/{user_id}/pending", h.Pending)
		api.Get("/me/pending", h.Pending)
		api.Post("/annual-reports/{report_id}/spawn", h.Spawn)
	})
	return r
}

func requestLogFields(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := httpx.RequestIDFrom(r.Context())
		zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("request_id", id)
		})
		next.ServeHTTP(w, r)
	})
}

func actorLogField(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := authn.UserFrom(r.Context()); ok {
			zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("actor_id", string(u.ID))
			})
		}
		next.ServeHTTP(w, r)
	})
}
