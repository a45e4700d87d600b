package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Router mounts the REST surface and the websocket endpoint on one chi mux.
func (h *Handler) Router(serveWS http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.Health)
	r.Get("/ws", serveWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(CORS)
		r.Get("/leaderboard", h.Leaderboard)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireIdentity)
			r.Get("/history", h.History)
			r.Post("/rooms", h.CreateRoom)
			r.Get("/rooms", h.ListRooms)
			r.Route("/rooms/{roomID}", func(r chi.Router) {
				r.Post("/join", h.JoinRoom)
				r.Post("/leave", h.LeaveRoom)
				r.Post("/ready", h.ToggleReady)
				r.Post("/start", h.StartGame)
				r.Get("/game", h.GameState)
			})
		})
	})
	return r
}
