package syncsession

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	applied [][]PositionUpdate
	err     error
}

func (f *fakeStore) ApplyPositionUpdates(_ context.Context, _, _ string, updates []PositionUpdate) error {
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, updates)
	return nil
}

func TestManager_OpenGetCancel(t *testing.T) {
	m := NewManager(time.Minute, nil)

	s := m.Open("game", "lane-1", gameLanes(), 10000)
	require.NotEmpty(t, s.ID)
	assert.Equal(t, 1, m.OpenCount())

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.Cancel(s.ID))
	assert.Equal(t, 0, m.OpenCount())
	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Cancel(s.ID), ErrSessionNotFound)
}

func TestManager_CommitAppliesBatchAndEndsSession(t *testing.T) {
	m := NewManager(time.Minute, nil)
	store := &fakeStore{}

	s := m.Open("game", "lane-1", gameLanes(), 10000)
	require.NoError(t, s.Advance())
	require.NoError(t, s.SetOffset("clip-b", 750))

	updates, err := m.Commit(context.Background(), s.ID, store)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, PositionUpdate{ClipID: "clip-b", NewPositionMs: 4750}, updates[0])

	require.Len(t, store.applied, 1)
	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_CommitWithNoChangesWritesNothing(t *testing.T) {
	m := NewManager(time.Minute, nil)
	store := &fakeStore{}

	s := m.Open("game", "lane-1", gameLanes(), 10000)
	require.NoError(t, s.Advance())

	updates, err := m.Commit(context.Background(), s.ID, store)
	require.NoError(t, err)
	assert.Empty(t, updates)
	assert.Empty(t, store.applied)
	assert.Equal(t, 0, m.OpenCount())
}

func TestManager_FailedCommitPreservesSession(t *testing.T) {
	m := NewManager(time.Minute, nil)
	storeErr := errors.New("store unavailable")
	store := &fakeStore{err: storeErr}

	s := m.Open("game", "lane-1", gameLanes(), 10000)
	require.NoError(t, s.Advance())
	require.NoError(t, s.SetOffset("clip-b", 750))

	_, err := m.Commit(context.Background(), s.ID, store)
	assert.ErrorIs(t, err, storeErr)

	// Session and its offsets survive for a retry.
	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, PhaseAdjusting, got.Phase())
	assert.Equal(t, int64(750), cameraByClip(t, got, "clip-b").OffsetMs)

	store.err = nil
	updates, err := m.Commit(context.Background(), s.ID, store)
	require.NoError(t, err)
	assert.Len(t, updates, 1)
}

func TestManager_CommitRequiresAdjustingPhase(t *testing.T) {
	m := NewManager(time.Minute, nil)
	s := m.Open("game", "lane-1", gameLanes(), 10000)

	_, err := m.Commit(context.Background(), s.ID, &fakeStore{})
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestManager_SweepEvictsIdleSessions(t *testing.T) {
	m := NewManager(time.Millisecond, nil)
	s := m.Open("game", "lane-1", gameLanes(), 10000)

	time.Sleep(5 * time.Millisecond)
	m.sweep()

	assert.Equal(t, 0, m.OpenCount())
	_, err := m.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
