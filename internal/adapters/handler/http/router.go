package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vncsmyrnk/rankedpoll/internal/core/ports"
)

func NewHandler(pollHandler *PollHandler, socketHandler *SocketHandler, tokens ports.TokenService, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/polls", func(r chi.Router) {
		r.Post("/", pollHandler.CreatePoll)
		r.Post("/join", pollHandler.JoinPoll)
		r.Get("/socket", socketHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(tokens))
			r.Post("/rejoin", pollHandler.RejoinPoll)
			r.Get("/{id}", pollHandler.GetPoll)
		})
	})

	return r
}
