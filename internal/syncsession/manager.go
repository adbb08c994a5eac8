package syncsession

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/filmroomhq/filmroom/internal/timeline"
)

var ErrSessionNotFound = errors.New("sync session not found")

// ClipStore applies a committed batch of position corrections to the
// authoritative clip store. The batch must be applied atomically; a
// failed apply must leave every clip's position unchanged.
type ClipStore interface {
	ApplyPositionUpdates(ctx context.Context, gameID, sessionID string, updates []PositionUpdate) error
}

// Manager owns the open sync sessions. Sessions are in-memory only: a
// session holds a private snapshot of its game's lanes and nothing is
// written until commit, so cancellation and idle eviction are plain
// map deletes.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	idleTTL  time.Duration
	logger   *slog.Logger
	running  atomic.Bool
}

func NewManager(idleTTL time.Duration, logger *slog.Logger) *Manager {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &Manager{
		sessions: make(map[string]*Session),
		idleTTL:  idleTTL,
		logger:   logger,
	}
}

// Open starts a session over a snapshot of the game's lanes, beginning
// in the picking-time phase at currentTimeMs.
func (m *Manager) Open(gameID, originLaneID string, lanes []timeline.Lane, currentTimeMs int64) *Session {
	s := newSession(uuid.NewString(), gameID, originLaneID, lanes, currentTimeMs)

	m.mu.Lock()
	m.sessions[s.ID] = s
	open := len(m.sessions)
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Info("sync session opened",
			"session_id", s.ID, "game_id", gameID, "origin_lane", originLaneID, "open_sessions", open)
	}
	return s
}

// Get returns an open session by id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Cancel discards a session immediately. No compensating store action
// is needed because nothing has been written.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	if m.logger != nil {
		m.logger.Info("sync session cancelled", "session_id", id)
	}
	return nil
}

// Commit applies the session's position corrections through the store
// as one batch and, on success, ends the session. On failure the
// session stays open in the adjusting phase with all offsets intact so
// the user can retry without redoing the alignment.
func (m *Manager) Commit(ctx context.Context, id string, store ClipStore) ([]PositionUpdate, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if s.Phase() != PhaseAdjusting {
		return nil, ErrWrongPhase
	}

	updates := s.Updates()
	if len(updates) > 0 {
		if err := store.ApplyPositionUpdates(ctx, s.GameID, s.ID, updates); err != nil {
			if m.logger != nil {
				m.logger.Error("sync commit failed, session preserved",
					"session_id", id, "updates", len(updates), "error", err)
			}
			return nil, err
		}
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Info("sync session committed", "session_id", id, "updates", len(updates))
	}
	return updates, nil
}

// OpenCount returns the number of open sessions.
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Start runs the idle-session sweep until the context is cancelled.
func (m *Manager) Start(ctx context.Context) {
	if m.running.Swap(true) {
		return
	}
	if m.logger != nil {
		m.logger.Info("sync session sweeper started", "idle_ttl", m.idleTTL)
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.running.Store(false)
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	cutoff := time.Now().Add(-m.idleTTL)

	m.mu.Lock()
	var expired []string
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if m.logger != nil && len(expired) > 0 {
		m.logger.Info("swept idle sync sessions", "count", len(expired))
	}
}
