// Package http exposes the backend service over a JSON API plus a websocket
// change feed.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"quizkeeper/internal/app"
)

// NewRouter wires the full API surface. Shared-quiz lookup and login are
// public; everything else sits behind the bearer-token middleware.
func NewRouter(service *app.Service, hub *Hub) http.Handler {
	h := &handler{service: service, hub: hub}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Post("/api/login", h.login)
	r.Get("/api/shared/{id}", h.sharedQuiz)
	r.Get("/ws", h.serveWS)

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)
		r.Post("/api/logout", h.logout)
		r.Get("/api/me", h.me)
		r.Get("/api/users/{id}/quizzes", h.userQuizzes)
		r.Patch("/api/users/{id}", h.updateUser)
		r.Post("/api/quizzes", h.createQuiz)
		r.Put("/api/quizzes/{id}", h.updateQuiz)
		r.Delete("/api/quizzes/{id}", h.deleteQuiz)
		r.Post("/api/results", h.saveResult)
		r.Get("/api/results", h.resultHistory)
	})
	return r
}
