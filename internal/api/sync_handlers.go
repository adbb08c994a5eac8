package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/filmroomhq/filmroom/internal/film"
	"github.com/filmroomhq/filmroom/internal/media"
	"github.com/filmroomhq/filmroom/internal/syncsession"
)

// signedPathOnly adapts the signer for session responses, which only
// need the path and not the expiry.
func signedPathOnly(signer *media.Signer) signedPathFunc {
	return func(clipID string) string {
		path, _ := signer.SignedPath(clipID)
		return path
	}
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBadBody):
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
	case errors.Is(err, syncsession.ErrSessionNotFound):
		WriteError(w, http.StatusNotFound, "sync session not found", "NOT_FOUND")
	case errors.Is(err, syncsession.ErrUnknownClip):
		WriteError(w, http.StatusNotFound, "clip is not part of this session", "NOT_FOUND")
	case errors.Is(err, syncsession.ErrUnknownLane):
		WriteError(w, http.StatusNotFound, "lane is not part of this session", "NOT_FOUND")
	case errors.Is(err, syncsession.ErrInsufficientCoverage):
		WriteError(w, http.StatusConflict,
			"need at least 2 cameras covering this moment to sync", "INSUFFICIENT_COVERAGE")
	case errors.Is(err, syncsession.ErrWrongPhase):
		WriteError(w, http.StatusConflict, "operation not valid in current phase", "WRONG_PHASE")
	default:
		WriteError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

func OpenSessionHandler(svc film.FilmService, sessions *syncsession.Manager, signer *media.Signer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OpenSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		game, err := svc.GetGame(r.Context(), req.GameID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to get game", "INTERNAL_ERROR")
			return
		}
		if game == nil {
			WriteError(w, http.StatusNotFound, "game not found", "NOT_FOUND")
			return
		}

		lanes, err := svc.Timeline(r.Context(), req.GameID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to read timeline", "INTERNAL_ERROR")
			return
		}

		s := sessions.Open(req.GameID, req.LaneID, lanes, req.CurrentTimeMs)
		WriteJSON(w, http.StatusCreated, sessionResponse(s, signedPathOnly(signer)))
	}
}

func GetSessionHandler(sessions *syncsession.Manager, signer *media.Signer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessions.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, sessionResponse(s, signedPathOnly(signer)))
	}
}

// sessionMutation runs one session operation and responds with the
// session's new state, collapsing the shared lookup and error mapping.
func sessionMutation(sessions *syncsession.Manager, signer *media.Signer,
	op func(s *syncsession.Session, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessions.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeSessionError(w, err)
			return
		}
		if err := op(s, r); err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, sessionResponse(s, signedPathOnly(signer)))
	}
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadBody
	}
	return nil
}

var errBadBody = errors.New("invalid request body")

func SetTimeHandler(sessions *syncsession.Manager, signer *media.Signer) http.HandlerFunc {
	return sessionMutation(sessions, signer, func(s *syncsession.Session, r *http.Request) error {
		var req SetTimeRequest
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		return s.SetSyncTime(req.TimeMs)
	})
}

func AdvanceHandler(sessions *syncsession.Manager, signer *media.Signer) http.HandlerFunc {
	return sessionMutation(sessions, signer, func(s *syncsession.Session, r *http.Request) error {
		return s.Advance()
	})
}

func RetreatHandler(sessions *syncsession.Manager, signer *media.Signer) http.HandlerFunc {
	return sessionMutation(sessions, signer, func(s *syncsession.Session, r *http.Request) error {
		return s.Retreat()
	})
}

func SetAnchorHandler(sessions *syncsession.Manager, signer *media.Signer) http.HandlerFunc {
	return sessionMutation(sessions, signer, func(s *syncsession.Session, r *http.Request) error {
		var req SetAnchorRequest
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		return s.SetAnchor(req.LaneID)
	})
}

func NudgeHandler(sessions *syncsession.Manager, signer *media.Signer) http.HandlerFunc {
	return sessionMutation(sessions, signer, func(s *syncsession.Session, r *http.Request) error {
		var req NudgeRequest
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		return s.AdjustOffset(req.ClipID, req.DeltaMs)
	})
}

func SetOffsetHandler(sessions *syncsession.Manager, signer *media.Signer) http.HandlerFunc {
	return sessionMutation(sessions, signer, func(s *syncsession.Session, r *http.Request) error {
		var req SetOffsetRequest
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		return s.SetOffset(req.ClipID, req.OffsetMs)
	})
}

func ResetHandler(sessions *syncsession.Manager, signer *media.Signer) http.HandlerFunc {
	return sessionMutation(sessions, signer, func(s *syncsession.Session, r *http.Request) error {
		// The body is optional: no clip id means reset everything.
		var req ResetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			return errBadBody
		}
		if req.ClipID == "" {
			return s.ResetAll()
		}
		return s.ResetOffset(req.ClipID)
	})
}

func LoadFailedHandler(sessions *syncsession.Manager, signer *media.Signer) http.HandlerFunc {
	return sessionMutation(sessions, signer, func(s *syncsession.Session, r *http.Request) error {
		return s.MarkLoadFailed(chi.URLParam(r, "clipID"))
	})
}

func CommitHandler(sessions *syncsession.Manager, store syncsession.ClipStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		updates, err := sessions.Commit(r.Context(), id, store)
		if err != nil {
			var batchErr *film.BatchError
			if errors.As(err, &batchErr) {
				// The session is preserved for retry; report which
				// clips the store rejected.
				WriteJSON(w, http.StatusBadGateway, struct {
					ErrorResponse
					Failed []film.FailedUpdate `json:"failed"`
				}{
					ErrorResponse: ErrorResponse{Error: batchErr.Error(), Code: "COMMIT_FAILED"},
					Failed:        batchErr.Failed,
				})
				return
			}
			if errors.Is(err, syncsession.ErrSessionNotFound) || errors.Is(err, syncsession.ErrWrongPhase) {
				writeSessionError(w, err)
				return
			}
			logger.Error("sync commit failed", "session_id", id, "error", err)
			WriteError(w, http.StatusBadGateway, "failed to apply sync corrections", "COMMIT_FAILED")
			return
		}

		if updates == nil {
			updates = []syncsession.PositionUpdate{}
		}
		WriteJSON(w, http.StatusOK, CommitResponse{SessionID: id, Updates: updates})
	}
}

func CancelSessionHandler(sessions *syncsession.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := sessions.Cancel(chi.URLParam(r, "id")); err != nil {
			writeSessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
