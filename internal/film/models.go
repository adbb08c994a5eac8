// Package film is the persistent catalog behind the review studio:
// games, camera lanes, placed clips, duration-probe jobs, and the audit
// trail of committed sync corrections.
package film

import (
	"time"

	"github.com/google/uuid"
)

type Game struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Opponent  string    `json:"opponent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Lane struct {
	ID        string    `json:"id"`
	GameID    string    `json:"game_id"`
	Label     string    `json:"label"`
	Ordinal   int       `json:"ordinal"`
	CreatedAt time.Time `json:"created_at"`
}

type Clip struct {
	ID         string    `json:"id"`
	LaneID     string    `json:"lane_id"`
	Name       string    `json:"name"`
	SourceRef  string    `json:"source_ref"`
	PositionMs int64     `json:"position_ms"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	JobTypeProbeDuration = "probe_duration"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

type Job struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	ClipID    string    `json:"clip_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SyncCommit is one audit row per committed sync session batch.
type SyncCommit struct {
	ID        string    `json:"id"`
	GameID    string    `json:"game_id"`
	SessionID string    `json:"session_id"`
	ClipCount int       `json:"clip_count"`
	CreatedAt time.Time `json:"created_at"`
}

func NewID() string {
	return uuid.NewString()
}

var VideoExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
	".mkv": true,
}
