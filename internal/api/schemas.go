package api

import (
	"time"

	"github.com/filmroomhq/filmroom/internal/syncsession"
	"github.com/filmroomhq/filmroom/internal/timeline"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

type StatusResponse struct {
	InstanceID    string     `json:"instance_id"`
	Version       string     `json:"version"`
	Uptime        string     `json:"uptime"`
	Games         int        `json:"games"`
	Clips         int        `json:"clips"`
	OpenSessions  int        `json:"open_sessions"`
	RunningJobs   int        `json:"running_jobs"`
	RunnerPaused  bool       `json:"runner_paused"`
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty"`
	LastSyncClips int        `json:"last_sync_clips,omitempty"`
}

type CreateGameRequest struct {
	Title    string `json:"title"`
	Opponent string `json:"opponent"`
}

type AddLaneRequest struct {
	Label string `json:"label"`
}

type PlaceClipRequest struct {
	Name       string `json:"name"`
	SourceRef  string `json:"source_ref"`
	PositionMs int64  `json:"position_ms"`
	DurationMs int64  `json:"duration_ms"`
}

type RepositionClipRequest struct {
	PositionMs int64 `json:"position_ms"`
}

type PlaybackURLResponse struct {
	ClipID    string    `json:"clip_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type OpenSessionRequest struct {
	GameID        string `json:"game_id"`
	LaneID        string `json:"lane_id"`
	CurrentTimeMs int64  `json:"current_time_ms"`
}

type SetTimeRequest struct {
	TimeMs int64 `json:"time_ms"`
}

type SetAnchorRequest struct {
	LaneID string `json:"lane_id"`
}

type NudgeRequest struct {
	ClipID  string `json:"clip_id"`
	DeltaMs int64  `json:"delta_ms"`
}

type SetOffsetRequest struct {
	ClipID   string `json:"clip_id"`
	OffsetMs int64  `json:"offset_ms"`
}

type ResetRequest struct {
	ClipID string `json:"clip_id,omitempty"`
}

// CameraResponse is one working-set camera with its derived seek
// position and a signed path the grid can stream from.
type CameraResponse struct {
	LaneID            string `json:"lane_id"`
	LaneLabel         string `json:"lane_label"`
	ClipID            string `json:"clip_id"`
	ClipName          string `json:"clip_name"`
	ClipDurationMs    int64  `json:"clip_duration_ms"`
	SyncPointInClipMs int64  `json:"sync_point_in_clip_ms"`
	OffsetMs          int64  `json:"offset_ms"`
	IsAnchor          bool   `json:"is_anchor"`
	LoadFailed        bool   `json:"load_failed"`
	SeekPositionMs    int64  `json:"seek_position_ms"`
	PlaybackPath      string `json:"playback_path"`
}

type CandidateResponse struct {
	LaneID    string `json:"lane_id"`
	LaneLabel string `json:"lane_label"`
	ClipID    string `json:"clip_id"`
	ClipName  string `json:"clip_name"`
}

type SyncSessionResponse struct {
	ID              string              `json:"id"`
	GameID          string              `json:"game_id"`
	Phase           string              `json:"phase"`
	SyncTimeMs      int64               `json:"sync_time_ms"`
	TotalDurationMs int64               `json:"total_duration_ms"`
	Candidates      []CandidateResponse `json:"candidates,omitempty"`
	Cameras         []CameraResponse    `json:"cameras,omitempty"`
}

type CommitResponse struct {
	SessionID string                       `json:"session_id"`
	Updates   []syncsession.PositionUpdate `json:"updates"`
}

type signedPathFunc func(clipID string) string

func sessionResponse(s *syncsession.Session, signedPath signedPathFunc) SyncSessionResponse {
	resp := SyncSessionResponse{
		ID:              s.ID,
		GameID:          s.GameID,
		Phase:           string(s.Phase()),
		SyncTimeMs:      s.SyncTimeMs(),
		TotalDurationMs: s.TotalDurationMs(),
	}

	switch s.Phase() {
	case syncsession.PhasePickingTime:
		for _, c := range s.Candidates() {
			resp.Candidates = append(resp.Candidates, candidateResponse(c))
		}
	case syncsession.PhaseAdjusting:
		for _, cam := range s.Cameras() {
			resp.Cameras = append(resp.Cameras, cameraResponse(cam, signedPath))
		}
	}
	return resp
}

func candidateResponse(c timeline.CameraAtSyncPoint) CandidateResponse {
	return CandidateResponse{
		LaneID:    c.LaneID,
		LaneLabel: c.LaneLabel,
		ClipID:    c.ClipID,
		ClipName:  c.ClipName,
	}
}

func cameraResponse(cam syncsession.Camera, signedPath signedPathFunc) CameraResponse {
	return CameraResponse{
		LaneID:            cam.LaneID,
		LaneLabel:         cam.LaneLabel,
		ClipID:            cam.ClipID,
		ClipName:          cam.ClipName,
		ClipDurationMs:    cam.ClipDurationMs,
		SyncPointInClipMs: cam.SyncPointInClipMs,
		OffsetMs:          cam.OffsetMs,
		IsAnchor:          cam.IsAnchor,
		LoadFailed:        cam.LoadFailed,
		SeekPositionMs:    cam.SeekPositionMs(),
		PlaybackPath:      signedPath(cam.ClipID),
	}
}
