package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func NewRouter(cfg ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	// Unauthenticated: liveness and signature-gated streaming.
	r.Get("/health", HealthHandler(cfg.StartTime))
	r.Get("/media/stream/{clipID}", StreamHandler(cfg.FilmService, cfg.Signer, cfg.Streamer, cfg.Logger))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", StatusHandler(cfg))

		r.Post("/games", CreateGameHandler(cfg.FilmService))
		r.Get("/games", ListGamesHandler(cfg.FilmService))
		r.Get("/games/{id}", GetGameHandler(cfg.FilmService))
		r.Post("/games/{id}/lanes", AddLaneHandler(cfg.FilmService))
		r.Get("/games/{id}/timeline", TimelineHandler(cfg.FilmService))

		r.Post("/lanes/{id}/clips", PlaceClipHandler(cfg.FilmService))
		r.Patch("/clips/{id}/position", RepositionClipHandler(cfg.FilmService))
		r.Get("/clips/{id}/playback-url", PlaybackURLHandler(cfg.FilmService, cfg.Signer))

		r.Route("/sync/sessions", func(r chi.Router) {
			r.Post("/", OpenSessionHandler(cfg.FilmService, cfg.Sessions, cfg.Signer))
			r.Get("/{id}", GetSessionHandler(cfg.Sessions, cfg.Signer))
			r.Patch("/{id}/time", SetTimeHandler(cfg.Sessions, cfg.Signer))
			r.Post("/{id}/advance", AdvanceHandler(cfg.Sessions, cfg.Signer))
			r.Post("/{id}/retreat", RetreatHandler(cfg.Sessions, cfg.Signer))
			r.Post("/{id}/anchor", SetAnchorHandler(cfg.Sessions, cfg.Signer))
			r.Post("/{id}/nudge", NudgeHandler(cfg.Sessions, cfg.Signer))
			r.Put("/{id}/offset", SetOffsetHandler(cfg.Sessions, cfg.Signer))
			r.Post("/{id}/reset", ResetHandler(cfg.Sessions, cfg.Signer))
			r.Post("/{id}/clips/{clipID}/load-failed", LoadFailedHandler(cfg.Sessions, cfg.Signer))
			r.Post("/{id}/commit", CommitHandler(cfg.Sessions, cfg.FilmService, cfg.Logger))
			r.Delete("/{id}", CancelSessionHandler(cfg.Sessions))
		})
	})

	return r
}
