package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/filmroomhq/filmroom/internal/config"
	"github.com/filmroomhq/filmroom/internal/film"
	"github.com/filmroomhq/filmroom/internal/media"
)

func HealthHandler(startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: config.Version,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
		})
	}
}

func StatusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		games, err := cfg.Repository.CountGames(ctx)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to count games", "INTERNAL_ERROR")
			return
		}
		clips, err := cfg.Repository.CountClips(ctx)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to count clips", "INTERNAL_ERROR")
			return
		}
		running, err := cfg.Repository.CountRunningJobs(ctx)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to count jobs", "INTERNAL_ERROR")
			return
		}

		resp := StatusResponse{
			InstanceID:   cfg.InstanceID,
			Version:      config.Version,
			Uptime:       time.Since(cfg.StartTime).Round(time.Second).String(),
			Games:        games,
			Clips:        clips,
			OpenSessions: cfg.Sessions.OpenCount(),
			RunningJobs:  running,
			RunnerPaused: cfg.Runner != nil && cfg.Runner.IsPaused(),
		}

		last, err := cfg.Repository.LastSyncCommit(ctx)
		if err != nil {
			// Status stays useful without the audit fields; note the
			// degradation instead of hiding it.
			cfg.Logger.Warn("failed to read last sync commit", "error", err)
		} else if last != nil {
			resp.LastSyncAt = &last.CreatedAt
			resp.LastSyncClips = last.ClipCount
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func CreateGameHandler(svc film.FilmService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		game, err := svc.CreateGame(r.Context(), req.Title, req.Opponent)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		WriteJSON(w, http.StatusCreated, game)
	}
}

func ListGamesHandler(svc film.FilmService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		games, err := svc.ListGames(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list games", "INTERNAL_ERROR")
			return
		}
		if games == nil {
			games = []*film.Game{}
		}
		WriteJSON(w, http.StatusOK, games)
	}
}

func GetGameHandler(svc film.FilmService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		game, err := svc.GetGame(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to get game", "INTERNAL_ERROR")
			return
		}
		if game == nil {
			WriteError(w, http.StatusNotFound, "game not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, game)
	}
}

func AddLaneHandler(svc film.FilmService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddLaneRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		lane, err := svc.AddLane(r.Context(), chi.URLParam(r, "id"), req.Label)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		WriteJSON(w, http.StatusCreated, lane)
	}
}

func TimelineHandler(svc film.FilmService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := chi.URLParam(r, "id")
		game, err := svc.GetGame(r.Context(), gameID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to get game", "INTERNAL_ERROR")
			return
		}
		if game == nil {
			WriteError(w, http.StatusNotFound, "game not found", "NOT_FOUND")
			return
		}

		lanes, err := svc.Timeline(r.Context(), gameID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to read timeline", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, lanes)
	}
}

func PlaceClipHandler(svc film.FilmService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PlaceClipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		clip, err := svc.PlaceClip(r.Context(), chi.URLParam(r, "id"),
			req.Name, req.SourceRef, req.PositionMs, req.DurationMs)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		WriteJSON(w, http.StatusCreated, clip)
	}
}

func RepositionClipHandler(svc film.FilmService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RepositionClipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := svc.RepositionClip(r.Context(), chi.URLParam(r, "id"), req.PositionMs); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func PlaybackURLHandler(svc film.FilmService, signer *media.Signer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID := chi.URLParam(r, "id")
		clip, err := svc.GetClip(r.Context(), clipID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to get clip", "INTERNAL_ERROR")
			return
		}
		if clip == nil {
			WriteError(w, http.StatusNotFound, "clip not found", "NOT_FOUND")
			return
		}

		url, expires := signer.SignedPath(clipID)
		WriteJSON(w, http.StatusOK, PlaybackURLResponse{
			ClipID:    clipID,
			URL:       url,
			ExpiresAt: expires,
		})
	}
}

func StreamHandler(svc film.FilmService, signer *media.Signer, streamer *media.Streamer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID := chi.URLParam(r, "clipID")

		q := r.URL.Query()
		if err := signer.Verify(clipID, q.Get("exp"), q.Get("sig")); err != nil {
			if err == media.ErrExpiredURL {
				WriteError(w, http.StatusForbidden, "playback url expired", "URL_EXPIRED")
				return
			}
			WriteError(w, http.StatusForbidden, "invalid playback url", "BAD_SIGNATURE")
			return
		}

		clip, err := svc.GetClip(r.Context(), clipID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to get clip", "INTERNAL_ERROR")
			return
		}
		if clip == nil {
			WriteError(w, http.StatusNotFound, "clip not found", "NOT_FOUND")
			return
		}

		if err := streamer.ServeVideo(w, r, clip.SourceRef); err != nil {
			logger.Error("video streaming failed", "clip_id", clipID, "error", err)
		}
	}
}
