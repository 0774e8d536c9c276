package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/btouchard/switchboard/internal/api/middleware"
	"github.com/btouchard/switchboard/internal/session"
	"github.com/btouchard/switchboard/internal/store"
)

// History is the read side of the call history store.
type History interface {
	GetCall(id string) (*store.CallRecord, error)
	GetEvents(callID string, limit int) ([]store.CallEvent, error)
}

// Deps holds what the HTTP surface needs.
type Deps struct {
	Calls   *session.Manager
	History History
	Auth    middleware.TokenValidator
	MCP     http.Handler // optional, mounted at /mcp
}

// NewRouter builds the HTTP handler: /health is public, /api and /mcp
// require the bearer token.
func NewRouter(deps *Deps) http.Handler {
	h := &handler{calls: deps.Calls, history: deps.History}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", h.health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(deps.Auth))

		r.Route("/api/calls", func(r chi.Router) {
			r.Get("/", h.listCalls)
			r.Post("/", h.createCall)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getCall)
				r.Get("/events", h.getEvents)
				r.Post("/ring", h.ring)
				r.Post("/answer", h.answer)
				r.Post("/hangup", h.hangup)
				r.Post("/media", h.media)
				r.Post("/remote-media", h.remoteMedia)
				r.Post("/camera", h.camera)
				r.Post("/speaker", h.speaker)
				r.Post("/view-size", h.viewSize)
				r.Post("/dtmf", h.dtmf)
				r.Post("/dtmf-send", h.dtmfSend)
			})
		})

		if deps.MCP != nil {
			r.Handle("/mcp", deps.MCP)
		}
	})

	return r
}
