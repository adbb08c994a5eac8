// Package syncsession implements the interactive multi-camera alignment
// workflow: pick a moment on the shared timeline, anchor one camera, and
// nudge the others until their footage lines up, then emit the minimal
// batch of position corrections.
package syncsession

import (
	"errors"
	"sync"
	"time"

	"github.com/filmroomhq/filmroom/internal/timeline"
)

// Phase is the session's state-machine phase.
type Phase string

const (
	// PhasePickingTime: the user is scrubbing the shared timeline
	// looking for a moment with enough camera coverage.
	PhasePickingTime Phase = "picking-time"
	// PhaseAdjusting: the sync timestamp is fixed, one camera is the
	// anchor, and per-camera offsets are being adjusted.
	PhaseAdjusting Phase = "adjusting"
)

// MaxOffsetMs bounds per-camera corrections. Offsets from any input path
// are clamped to [-MaxOffsetMs, MaxOffsetMs] rather than rejected.
const MaxOffsetMs int64 = 30000

// MinCoverage is the number of covering clips required to enter the
// adjusting phase; with fewer there is nothing to align against.
const MinCoverage = 2

var (
	ErrInsufficientCoverage = errors.New("need at least 2 cameras covering the sync point")
	ErrWrongPhase           = errors.New("operation not valid in current phase")
	ErrUnknownClip          = errors.New("no camera with that clip in this session")
	ErrUnknownLane          = errors.New("no camera with that lane in this session")
)

// Camera is one covering clip's working record plus session-local
// playback state.
type Camera struct {
	timeline.CameraAtSyncPoint

	// LoadFailed marks a camera whose video source could not be
	// loaded. Failed cameras are excluded from playback but their
	// offsets remain adjustable and committable.
	LoadFailed bool `json:"load_failed"`
}

// PositionUpdate is one persisted correction produced by a commit.
type PositionUpdate struct {
	ClipID        string `json:"clip_id"`
	NewPositionMs int64  `json:"new_position_ms"`
}

// Session is a single open sync session. It operates on a private
// snapshot of the game's lanes taken at open time; the authoritative
// store is only touched when the manager applies a commit.
type Session struct {
	ID           string
	GameID       string
	OriginLaneID string

	mu         sync.Mutex
	lanes      []timeline.Lane
	totalMs    int64
	phase      Phase
	syncTimeMs int64
	candidates []timeline.CameraAtSyncPoint
	cameras    []*Camera
	players    map[string]Player
	playing    bool

	createdAt  time.Time
	lastActive time.Time
}

func newSession(id, gameID, originLaneID string, lanes []timeline.Lane, currentTimeMs int64) *Session {
	s := &Session{
		ID:           id,
		GameID:       gameID,
		OriginLaneID: originLaneID,
		lanes:        lanes,
		totalMs:      timeline.TotalDuration(lanes),
		phase:        PhasePickingTime,
		players:      make(map[string]Player),
		createdAt:    time.Now(),
		lastActive:   time.Now(),
	}
	s.setSyncTimeLocked(currentTimeMs)
	return s
}

// Phase returns the current state-machine phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// SyncTimeMs returns the currently selected shared-timeline moment.
func (s *Session) SyncTimeMs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncTimeMs
}

// TotalDurationMs returns the snapshot timeline's total extent.
func (s *Session) TotalDurationMs() int64 {
	return s.totalMs
}

// SetSyncTime moves the sync point while picking a time. The timestamp
// is clamped to [0, TotalDurationMs] and the candidate list recomputed.
func (s *Session) SetSyncTime(tMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhasePickingTime {
		return ErrWrongPhase
	}
	s.setSyncTimeLocked(tMs)
	return nil
}

func (s *Session) setSyncTimeLocked(tMs int64) {
	s.syncTimeMs = clamp(tMs, 0, s.totalMs)
	s.candidates = timeline.FindClipsAtTime(s.lanes, s.syncTimeMs)
	s.touchLocked()
}

// Candidates returns the cameras covering the current sync point while
// picking a time.
func (s *Session) Candidates() []timeline.CameraAtSyncPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]timeline.CameraAtSyncPoint, len(s.candidates))
	copy(out, s.candidates)
	return out
}

// Advance fixes the sync timestamp and enters the adjusting phase. It
// fails with ErrInsufficientCoverage when fewer than MinCoverage cameras
// cover the chosen moment. The initial anchor is the camera on the lane
// the tool was invoked from, falling back to the first candidate.
func (s *Session) Advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhasePickingTime {
		return ErrWrongPhase
	}
	if len(s.candidates) < MinCoverage {
		return ErrInsufficientCoverage
	}

	s.cameras = make([]*Camera, len(s.candidates))
	anchorIdx := 0
	for i, cand := range s.candidates {
		s.cameras[i] = &Camera{CameraAtSyncPoint: cand}
		if cand.LaneID == s.OriginLaneID {
			anchorIdx = i
		}
	}
	s.cameras[anchorIdx].IsAnchor = true
	s.cameras[anchorIdx].OffsetMs = 0

	s.phase = PhaseAdjusting
	s.touchLocked()
	return nil
}

// Retreat abandons the working set and returns to picking a time. The
// selected sync timestamp is kept. Attached players belong to the
// working set, so they are paused and discarded with it; a later
// Advance starts from a clean grid.
func (s *Session) Retreat() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseAdjusting {
		return ErrWrongPhase
	}
	for _, p := range s.players {
		p.Pause()
	}
	s.players = make(map[string]Player)
	s.cameras = nil
	s.playing = false
	s.phase = PhasePickingTime
	s.setSyncTimeLocked(s.syncTimeMs)
	return nil
}

// Cameras returns copies of the working set in the adjusting phase.
func (s *Session) Cameras() []Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Camera, len(s.cameras))
	for i, cam := range s.cameras {
		out[i] = *cam
	}
	return out
}

// SetAnchor reassigns the anchor to the camera on the given lane. The
// new anchor's offset is zeroed; every other camera's offset is left
// untouched.
func (s *Session) SetAnchor(laneID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseAdjusting {
		return ErrWrongPhase
	}
	next := s.cameraByLaneLocked(laneID)
	if next == nil {
		return ErrUnknownLane
	}
	for _, cam := range s.cameras {
		cam.IsAnchor = false
	}
	next.IsAnchor = true
	next.OffsetMs = 0
	s.reseekAllLocked()
	s.touchLocked()
	return nil
}

// AdjustOffset adds deltaMs to a camera's offset (discrete nudge
// controls). Adjusting the anchor is a no-op. The result is clamped to
// the +/-MaxOffsetMs bound.
func (s *Session) AdjustOffset(clipID string, deltaMs int64) error {
	return s.mutateOffset(clipID, func(cur int64) int64 { return cur + deltaMs })
}

// SetOffset sets a camera's offset to an absolute value (continuous
// slider), with the same anchor exclusion and clamping as AdjustOffset.
func (s *Session) SetOffset(clipID string, absMs int64) error {
	return s.mutateOffset(clipID, func(int64) int64 { return absMs })
}

// ResetOffset returns one camera's offset to 0. Resetting a camera
// already at 0 is a no-op.
func (s *Session) ResetOffset(clipID string) error {
	return s.mutateOffset(clipID, func(int64) int64 { return 0 })
}

// ResetAll returns every non-anchor offset to 0.
func (s *Session) ResetAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseAdjusting {
		return ErrWrongPhase
	}
	for _, cam := range s.cameras {
		if !cam.IsAnchor {
			cam.OffsetMs = 0
		}
	}
	s.reseekAllLocked()
	s.touchLocked()
	return nil
}

func (s *Session) mutateOffset(clipID string, apply func(int64) int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseAdjusting {
		return ErrWrongPhase
	}
	cam := s.cameraByClipLocked(clipID)
	if cam == nil {
		return ErrUnknownClip
	}
	if cam.IsAnchor {
		// The anchor is ground truth; its offset stays 0.
		return nil
	}
	cam.OffsetMs = clamp(apply(cam.OffsetMs), -MaxOffsetMs, MaxOffsetMs)
	s.reseekLocked(cam)
	s.touchLocked()
	return nil
}

// SeekPositionMs returns where inside a camera's own clip the playhead
// must sit to show the sync moment. For the anchor this is simply the
// sync point's offset into the clip. For every other camera a positive
// offset means its clock runs ahead of the anchor, so the playhead moves
// earlier in the clip by the offset amount.
func (s *Session) SeekPositionMs(clipID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseAdjusting {
		return 0, ErrWrongPhase
	}
	cam := s.cameraByClipLocked(clipID)
	if cam == nil {
		return 0, ErrUnknownClip
	}
	return cam.SeekPositionMs(), nil
}

// SeekPositionMs is the camera-local form of the session's seek
// mapping, usable on Cameras() copies.
func (c *Camera) SeekPositionMs() int64 {
	if c.IsAnchor {
		return c.SyncPointInClipMs
	}
	return clamp(c.SyncPointInClipMs-c.OffsetMs, 0, c.ClipDurationMs)
}

// Updates computes the minimal batch of position corrections for the
// session's current offsets: one entry per non-anchor camera with a
// non-zero offset, moved by that offset and floored at 0. The anchor and
// untouched cameras need no write and are omitted.
func (s *Session) Updates() []PositionUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	var updates []PositionUpdate
	for _, cam := range s.cameras {
		if cam.IsAnchor || cam.OffsetMs == 0 {
			continue
		}
		pos := cam.OriginalPositionMs + cam.OffsetMs
		if pos < 0 {
			pos = 0
		}
		updates = append(updates, PositionUpdate{ClipID: cam.ClipID, NewPositionMs: pos})
	}
	return updates
}

func (s *Session) cameraByClipLocked(clipID string) *Camera {
	for _, cam := range s.cameras {
		if cam.ClipID == clipID {
			return cam
		}
	}
	return nil
}

func (s *Session) cameraByLaneLocked(laneID string) *Camera {
	for _, cam := range s.cameras {
		if cam.LaneID == laneID {
			return cam
		}
	}
	return nil
}

func (s *Session) touchLocked() {
	s.lastActive = time.Now()
}

// LastActive returns the time of the session's most recent mutation,
// used by the manager's idle sweep.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
