package film

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filmroomhq/filmroom/internal/db"
	"github.com/filmroomhq/filmroom/internal/syncsession"
)

func setupTestDB(t *testing.T) Repository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	database, err := db.New(dbPath, nil)
	require.NoError(t, err, "failed to create test database")
	t.Cleanup(func() { database.Close() })

	return NewRepository(database.Conn())
}

func seedGame(t *testing.T, svc *Service) (*Game, *Lane) {
	t.Helper()
	ctx := context.Background()

	game, err := svc.CreateGame(ctx, "Week 3 vs Eagles", "Eagles")
	require.NoError(t, err)
	lane, err := svc.AddLane(ctx, game.ID, "Sideline")
	require.NoError(t, err)
	return game, lane
}

func TestService_CreateGame(t *testing.T) {
	svc := NewService(setupTestDB(t), nil)
	ctx := context.Background()

	game, err := svc.CreateGame(ctx, "  Week 1  ", "Raiders")
	require.NoError(t, err)
	assert.NotEmpty(t, game.ID)
	assert.Equal(t, "Week 1", game.Title)

	got, err := svc.GetGame(ctx, game.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Raiders", got.Opponent)

	_, err = svc.CreateGame(ctx, "   ", "")
	assert.Error(t, err)
}

func TestService_AddLane_OrdinalsAndDefaultLabels(t *testing.T) {
	svc := NewService(setupTestDB(t), nil)
	ctx := context.Background()
	game, _ := seedGame(t, svc)

	lane2, err := svc.AddLane(ctx, game.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Camera 2", lane2.Label)
	assert.Equal(t, 1, lane2.Ordinal)

	_, err = svc.AddLane(ctx, "no-such-game", "End Zone")
	assert.Error(t, err)
}

func TestService_PlaceClip_CreatesProbeJobWhenDurationUnknown(t *testing.T) {
	repo := setupTestDB(t)
	svc := NewService(repo, nil)
	ctx := context.Background()
	_, lane := seedGame(t, svc)

	clip, err := svc.PlaceClip(ctx, lane.ID, "", "/film/sideline-q1.mp4", 6000, 0)
	require.NoError(t, err)
	assert.Equal(t, "sideline-q1.mp4", clip.Name)

	jobs, err := repo.ListPendingJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, JobTypeProbeDuration, jobs[0].Type)
	assert.Equal(t, clip.ID, jobs[0].ClipID)

	// A clip with a known duration needs no probe.
	_, err = svc.PlaceClip(ctx, lane.ID, "q2", "/film/q2.mp4", 70000, 60000)
	require.NoError(t, err)
	jobs, _ = repo.ListPendingJobs(ctx)
	assert.Len(t, jobs, 1)
}

func TestService_PlaceClip_Validation(t *testing.T) {
	svc := NewService(setupTestDB(t), nil)
	ctx := context.Background()
	_, lane := seedGame(t, svc)

	_, err := svc.PlaceClip(ctx, "no-such-lane", "x", "/f.mp4", 0, 0)
	assert.Error(t, err)
	_, err = svc.PlaceClip(ctx, lane.ID, "x", "", 0, 0)
	assert.Error(t, err)
	_, err = svc.PlaceClip(ctx, lane.ID, "x", "/f.mp4", -1, 0)
	assert.Error(t, err)
	_, err = svc.PlaceClip(ctx, lane.ID, "x", "/f.mp4", 0, -1)
	assert.Error(t, err)
	_, err = svc.PlaceClip(ctx, lane.ID, "x", "/f.wav", 0, 0)
	assert.Error(t, err)
}

func TestService_Timeline(t *testing.T) {
	svc := NewService(setupTestDB(t), nil)
	ctx := context.Background()
	game, lane := seedGame(t, svc)

	lane2, err := svc.AddLane(ctx, game.ID, "End Zone")
	require.NoError(t, err)

	_, err = svc.PlaceClip(ctx, lane.ID, "s1", "/film/s1.mp4", 6000, 60000)
	require.NoError(t, err)
	_, err = svc.PlaceClip(ctx, lane2.ID, "e1", "/film/e1.mp4", 4000, 30000)
	require.NoError(t, err)

	lanes, err := svc.Timeline(ctx, game.ID)
	require.NoError(t, err)
	require.Len(t, lanes, 2)
	assert.Equal(t, "Sideline", lanes[0].Label)
	require.Len(t, lanes[0].Clips, 1)
	assert.Equal(t, int64(6000), lanes[0].Clips[0].PositionMs)
	assert.Equal(t, "End Zone", lanes[1].Label)
}

func TestService_RepositionClip(t *testing.T) {
	svc := NewService(setupTestDB(t), nil)
	ctx := context.Background()
	_, lane := seedGame(t, svc)

	clip, err := svc.PlaceClip(ctx, lane.ID, "s1", "/film/s1.mp4", 6000, 60000)
	require.NoError(t, err)

	require.NoError(t, svc.RepositionClip(ctx, clip.ID, 8000))
	got, _ := svc.GetClip(ctx, clip.ID)
	assert.Equal(t, int64(8000), got.PositionMs)

	assert.Error(t, svc.RepositionClip(ctx, clip.ID, -5))
	assert.Error(t, svc.RepositionClip(ctx, "no-such-clip", 0))
}

func TestApplySyncBatch_TransactionalAndAudited(t *testing.T) {
	repo := setupTestDB(t)
	svc := NewService(repo, nil)
	ctx := context.Background()
	game, lane := seedGame(t, svc)

	clipA, err := svc.PlaceClip(ctx, lane.ID, "a", "/film/a.mp4", 2000, 60000)
	require.NoError(t, err)
	clipB, err := svc.PlaceClip(ctx, lane.ID, "b", "/film/b.mp4", 70000, 60000)
	require.NoError(t, err)

	updates := []syncsession.PositionUpdate{
		{ClipID: clipA.ID, NewPositionMs: 2750},
		{ClipID: clipB.ID, NewPositionMs: 69250},
	}
	require.NoError(t, svc.ApplyPositionUpdates(ctx, game.ID, "sess-1", updates))

	gotA, _ := repo.GetClip(ctx, clipA.ID)
	gotB, _ := repo.GetClip(ctx, clipB.ID)
	assert.Equal(t, int64(2750), gotA.PositionMs)
	assert.Equal(t, int64(69250), gotB.PositionMs)

	commit, err := repo.LastSyncCommit(ctx)
	require.NoError(t, err)
	require.NotNil(t, commit)
	assert.Equal(t, "sess-1", commit.SessionID)
	assert.Equal(t, 2, commit.ClipCount)
}

func TestApplySyncBatch_UnknownClipRollsBackSiblings(t *testing.T) {
	repo := setupTestDB(t)
	svc := NewService(repo, nil)
	ctx := context.Background()
	game, lane := seedGame(t, svc)

	clipA, err := svc.PlaceClip(ctx, lane.ID, "a", "/film/a.mp4", 2000, 60000)
	require.NoError(t, err)

	updates := []syncsession.PositionUpdate{
		{ClipID: clipA.ID, NewPositionMs: 9999},
		{ClipID: "ghost-clip", NewPositionMs: 5},
	}
	err = svc.ApplyPositionUpdates(ctx, game.ID, "sess-2", updates)
	require.Error(t, err)

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	require.Len(t, batchErr.Failed, 1)
	assert.Equal(t, "ghost-clip", batchErr.Failed[0].ClipID)
	assert.Equal(t, "clip not found", batchErr.Failed[0].Reason)

	// The valid sibling update must not have been applied.
	gotA, _ := repo.GetClip(ctx, clipA.ID)
	assert.Equal(t, int64(2000), gotA.PositionMs)

	commit, _ := repo.LastSyncCommit(ctx)
	assert.Nil(t, commit)
}
