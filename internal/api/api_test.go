package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filmroomhq/filmroom/internal/db"
	"github.com/filmroomhq/filmroom/internal/film"
	"github.com/filmroomhq/filmroom/internal/media"
	"github.com/filmroomhq/filmroom/internal/syncsession"
)

const testToken = "test-token"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	router   http.Handler
	svc      *film.Service
	repo     film.Repository
	sessions *syncsession.Manager
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	repo := film.NewRepository(database.Conn())
	require.NoError(t, repo.SetConfig(context.Background(), "auth_token", testToken))

	svc := film.NewService(repo, nil)
	sessions := syncsession.NewManager(30*time.Minute, nil)
	signer := media.NewSigner([]byte("test-secret"), 15*time.Minute)

	router := NewRouter(ServerConfig{
		FilmService: svc,
		Repository:  repo,
		Sessions:    sessions,
		Signer:      signer,
		Streamer:    media.NewStreamer(nil),
		Logger:      discardLogger(),
		StartTime:   time.Now(),
		InstanceID:  "test-instance",
	})

	return &testEnv{router: router, svc: svc, repo: repo, sessions: sessions}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

// seedSyncableGame creates a game with two lanes whose clips overlap
// from 4000ms onward, so any moment past that has full coverage.
func seedSyncableGame(t *testing.T, e *testEnv) (gameID string, laneIDs []string, clipIDs []string) {
	t.Helper()
	ctx := context.Background()

	game, err := e.svc.CreateGame(ctx, "Week 5 vs Hawks", "Hawks")
	require.NoError(t, err)

	specs := []struct {
		label      string
		positionMs int64
		durationMs int64
	}{
		{"Sideline", 0, 60000},
		{"End Zone", 4000, 30000},
	}
	for _, spec := range specs {
		lane, err := e.svc.AddLane(ctx, game.ID, spec.label)
		require.NoError(t, err)
		clip, err := e.svc.PlaceClip(ctx, lane.ID, spec.label+" angle", "/video/"+lane.ID+".mp4",
			spec.positionMs, spec.durationMs)
		require.NoError(t, err)
		laneIDs = append(laneIDs, lane.ID)
		clipIDs = append(clipIDs, clip.ID)
	}
	return game.ID, laneIDs, clipIDs
}

func openAdjustingSession(t *testing.T, e *testEnv, gameID, originLaneID string) SyncSessionResponse {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/sync/sessions", OpenSessionRequest{
		GameID: gameID, LaneID: originLaneID, CurrentTimeMs: 10000,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	sess := decode[SyncSessionResponse](t, rec)

	rec = e.do(t, http.MethodPost, "/sync/sessions/"+sess.ID+"/advance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return decode[SyncSessionResponse](t, rec)
}

func TestHealth_NoAuthRequired(t *testing.T) {
	e := setupEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthResponse](t, rec).Status)
}

func TestAuth_RejectsMissingAndBadTokens(t *testing.T) {
	e := setupEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/games", nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/games", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGames_CreateAndFetch(t *testing.T) {
	e := setupEnv(t)

	rec := e.do(t, http.MethodPost, "/games", CreateGameRequest{Title: "Week 1", Opponent: "Raiders"})
	require.Equal(t, http.StatusCreated, rec.Code)
	game := decode[film.Game](t, rec)
	assert.NotEmpty(t, game.ID)

	rec = e.do(t, http.MethodGet, "/games/"+game.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Raiders", decode[film.Game](t, rec).Opponent)

	rec = e.do(t, http.MethodGet, "/games/no-such-game", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPost, "/games", CreateGameRequest{Title: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncSession_AdvanceRequiresCoverage(t *testing.T) {
	e := setupEnv(t)
	gameID, laneIDs, _ := seedSyncableGame(t, e)

	rec := e.do(t, http.MethodPost, "/sync/sessions", OpenSessionRequest{
		GameID: gameID, LaneID: laneIDs[0], CurrentTimeMs: 1000,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	sess := decode[SyncSessionResponse](t, rec)
	assert.Equal(t, "picking-time", sess.Phase)
	assert.Len(t, sess.Candidates, 1)

	rec = e.do(t, http.MethodPost, "/sync/sessions/"+sess.ID+"/advance", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INSUFFICIENT_COVERAGE", decode[ErrorResponse](t, rec).Code)

	// The session survives the rejection and can scrub to a better moment.
	rec = e.do(t, http.MethodPatch, "/sync/sessions/"+sess.ID+"/time", SetTimeRequest{TimeMs: 10000})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[SyncSessionResponse](t, rec).Candidates, 2)
}

func TestSyncSession_FullFlowCommitsCorrections(t *testing.T) {
	e := setupEnv(t)
	gameID, laneIDs, clipIDs := seedSyncableGame(t, e)

	sess := openAdjustingSession(t, e, gameID, laneIDs[0])
	assert.Equal(t, "adjusting", sess.Phase)
	require.Len(t, sess.Cameras, 2)

	var anchor, other CameraResponse
	for _, cam := range sess.Cameras {
		if cam.IsAnchor {
			anchor = cam
		} else {
			other = cam
		}
	}
	assert.Equal(t, laneIDs[0], anchor.LaneID)
	assert.Equal(t, clipIDs[1], other.ClipID)
	assert.NotEmpty(t, other.PlaybackPath)

	rec := e.do(t, http.MethodPost, "/sync/sessions/"+sess.ID+"/nudge",
		NudgeRequest{ClipID: other.ClipID, DeltaMs: 500})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[SyncSessionResponse](t, rec)
	for _, cam := range updated.Cameras {
		if cam.ClipID == other.ClipID {
			assert.Equal(t, int64(500), cam.OffsetMs)
			assert.Equal(t, other.SeekPositionMs-500, cam.SeekPositionMs)
		}
	}

	rec = e.do(t, http.MethodPost, "/sync/sessions/"+sess.ID+"/commit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	commit := decode[CommitResponse](t, rec)
	require.Len(t, commit.Updates, 1)
	assert.Equal(t, other.ClipID, commit.Updates[0].ClipID)
	assert.Equal(t, int64(4500), commit.Updates[0].NewPositionMs)

	clip, err := e.svc.GetClip(context.Background(), other.ClipID)
	require.NoError(t, err)
	assert.Equal(t, int64(4500), clip.PositionMs)

	rec = e.do(t, http.MethodGet, "/sync/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSyncSession_AnchorAndReset(t *testing.T) {
	e := setupEnv(t)
	gameID, laneIDs, clipIDs := seedSyncableGame(t, e)
	sess := openAdjustingSession(t, e, gameID, laneIDs[0])

	rec := e.do(t, http.MethodPut, "/sync/sessions/"+sess.ID+"/offset",
		SetOffsetRequest{ClipID: clipIDs[1], OffsetMs: 1200})
	require.Equal(t, http.StatusOK, rec.Code)

	// Moving the anchor to the other lane zeroes only that camera.
	rec = e.do(t, http.MethodPost, "/sync/sessions/"+sess.ID+"/anchor",
		SetAnchorRequest{LaneID: laneIDs[1]})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[SyncSessionResponse](t, rec)
	for _, cam := range updated.Cameras {
		assert.Equal(t, cam.LaneID == laneIDs[1], cam.IsAnchor)
		assert.Equal(t, int64(0), cam.OffsetMs)
	}

	rec = e.do(t, http.MethodPut, "/sync/sessions/"+sess.ID+"/offset",
		SetOffsetRequest{ClipID: clipIDs[0], OffsetMs: -900})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/sync/sessions/"+sess.ID+"/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, cam := range decode[SyncSessionResponse](t, rec).Cameras {
		assert.Equal(t, int64(0), cam.OffsetMs)
	}
}

func TestSyncSession_LoadFailedStillCommits(t *testing.T) {
	e := setupEnv(t)
	gameID, laneIDs, clipIDs := seedSyncableGame(t, e)
	sess := openAdjustingSession(t, e, gameID, laneIDs[0])

	rec := e.do(t, http.MethodPost,
		"/sync/sessions/"+sess.ID+"/clips/"+clipIDs[1]+"/load-failed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, cam := range decode[SyncSessionResponse](t, rec).Cameras {
		if cam.ClipID == clipIDs[1] {
			assert.True(t, cam.LoadFailed)
		}
	}

	rec = e.do(t, http.MethodPost, "/sync/sessions/"+sess.ID+"/nudge",
		NudgeRequest{ClipID: clipIDs[1], DeltaMs: 750})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/sync/sessions/"+sess.ID+"/commit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	commit := decode[CommitResponse](t, rec)
	require.Len(t, commit.Updates, 1)
	assert.Equal(t, int64(4750), commit.Updates[0].NewPositionMs)
}

func TestSyncSession_CancelDiscards(t *testing.T) {
	e := setupEnv(t)
	gameID, laneIDs, clipIDs := seedSyncableGame(t, e)
	sess := openAdjustingSession(t, e, gameID, laneIDs[0])

	rec := e.do(t, http.MethodPut, "/sync/sessions/"+sess.ID+"/offset",
		SetOffsetRequest{ClipID: clipIDs[1], OffsetMs: 2000})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodDelete, "/sync/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	clip, err := e.svc.GetClip(context.Background(), clipIDs[1])
	require.NoError(t, err)
	assert.Equal(t, int64(4000), clip.PositionMs)

	rec = e.do(t, http.MethodGet, "/sync/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlaybackURL_SignsAndStreams(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	game, err := e.svc.CreateGame(ctx, "Week 2", "")
	require.NoError(t, err)
	lane, err := e.svc.AddLane(ctx, game.ID, "Sideline")
	require.NoError(t, err)

	videoPath := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(videoPath, []byte("0123456789"), 0644))
	clip, err := e.svc.PlaceClip(ctx, lane.ID, "clip", videoPath, 0, 5000)
	require.NoError(t, err)

	rec := e.do(t, http.MethodGet, "/clips/"+clip.ID+"/playback-url", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	signed := decode[PlaybackURLResponse](t, rec)

	// The signed URL works without a bearer token.
	req := httptest.NewRequest(http.MethodGet, signed.URL, nil)
	req.Header.Set("Range", "bytes=2-5")
	streamRec := httptest.NewRecorder()
	e.router.ServeHTTP(streamRec, req)
	assert.Equal(t, http.StatusPartialContent, streamRec.Code)
	assert.Equal(t, "2345", streamRec.Body.String())

	// A tampered signature does not.
	req = httptest.NewRequest(http.MethodGet, "/media/stream/"+clip.ID+"?exp=9999999999&sig=bogus", nil)
	streamRec = httptest.NewRecorder()
	e.router.ServeHTTP(streamRec, req)
	assert.Equal(t, http.StatusForbidden, streamRec.Code)
}

type faultyAuditRepo struct {
	film.Repository
}

func (r *faultyAuditRepo) LastSyncCommit(ctx context.Context) (*film.SyncCommit, error) {
	return nil, errors.New("audit table unavailable")
}

func TestStatus_ToleratesAuditReadFailure(t *testing.T) {
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	repo := &faultyAuditRepo{Repository: film.NewRepository(database.Conn())}
	require.NoError(t, repo.SetConfig(context.Background(), "auth_token", testToken))

	router := NewRouter(ServerConfig{
		FilmService: film.NewService(repo, nil),
		Repository:  repo,
		Sessions:    syncsession.NewManager(30*time.Minute, nil),
		Signer:      media.NewSigner([]byte("test-secret"), 15*time.Minute),
		Streamer:    media.NewStreamer(nil),
		Logger:      discardLogger(),
		StartTime:   time.Now(),
		InstanceID:  "test-instance",
	})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[StatusResponse](t, rec)
	assert.Nil(t, status.LastSyncAt)
	assert.Zero(t, status.LastSyncClips)
}

func TestStatus_ReportsCounts(t *testing.T) {
	e := setupEnv(t)
	gameID, laneIDs, _ := seedSyncableGame(t, e)

	rec := e.do(t, http.MethodPost, "/sync/sessions", OpenSessionRequest{
		GameID: gameID, LaneID: laneIDs[0], CurrentTimeMs: 10000,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[StatusResponse](t, rec)
	assert.Equal(t, "test-instance", status.InstanceID)
	assert.Equal(t, 1, status.Games)
	assert.Equal(t, 2, status.Clips)
	assert.Equal(t, 1, status.OpenSessions)
}
