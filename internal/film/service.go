package film

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/filmroomhq/filmroom/internal/syncsession"
	"github.com/filmroomhq/filmroom/internal/timeline"
)

type FilmService interface {
	CreateGame(ctx context.Context, title, opponent string) (*Game, error)
	GetGame(ctx context.Context, id string) (*Game, error)
	ListGames(ctx context.Context) ([]*Game, error)
	AddLane(ctx context.Context, gameID, label string) (*Lane, error)
	PlaceClip(ctx context.Context, laneID, name, sourceRef string, positionMs, durationMs int64) (*Clip, error)
	GetClip(ctx context.Context, id string) (*Clip, error)
	RepositionClip(ctx context.Context, id string, positionMs int64) error
	Timeline(ctx context.Context, gameID string) ([]timeline.Lane, error)
	ApplyPositionUpdates(ctx context.Context, gameID, sessionID string, updates []syncsession.PositionUpdate) error
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) CreateGame(ctx context.Context, title, opponent string) (*Game, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("game title is required")
	}

	game := &Game{
		ID:        NewID(),
		Title:     strings.TrimSpace(title),
		Opponent:  strings.TrimSpace(opponent),
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateGame(ctx, game); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("game created", "game_id", game.ID, "title", game.Title)
	}
	return game, nil
}

func (s *Service) GetGame(ctx context.Context, id string) (*Game, error) {
	return s.repo.GetGame(ctx, id)
}

func (s *Service) ListGames(ctx context.Context) ([]*Game, error) {
	return s.repo.ListGames(ctx)
}

func (s *Service) AddLane(ctx context.Context, gameID, label string) (*Lane, error) {
	game, err := s.repo.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, fmt.Errorf("game not found")
	}

	existing, err := s.repo.ListLanesByGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(label) == "" {
		label = fmt.Sprintf("Camera %d", len(existing)+1)
	}

	lane := &Lane{
		ID:        NewID(),
		GameID:    gameID,
		Label:     strings.TrimSpace(label),
		Ordinal:   len(existing),
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateLane(ctx, lane); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("lane added", "lane_id", lane.ID, "game_id", gameID, "label", lane.Label)
	}
	return lane, nil
}

// PlaceClip puts a video segment on a lane's timeline. A clip placed
// without a known duration gets a pending probe job so the runner can
// fill it in from the file's metadata.
func (s *Service) PlaceClip(ctx context.Context, laneID, name, sourceRef string, positionMs, durationMs int64) (*Clip, error) {
	lane, err := s.repo.GetLane(ctx, laneID)
	if err != nil {
		return nil, err
	}
	if lane == nil {
		return nil, fmt.Errorf("lane not found")
	}
	if sourceRef == "" {
		return nil, fmt.Errorf("clip source is required")
	}
	if ext := strings.ToLower(filepath.Ext(sourceRef)); !VideoExtensions[ext] {
		return nil, fmt.Errorf("unsupported video format %q", ext)
	}
	if positionMs < 0 {
		return nil, fmt.Errorf("clip position must not be negative")
	}
	if durationMs < 0 {
		return nil, fmt.Errorf("clip duration must not be negative")
	}

	if name == "" {
		name = filepath.Base(sourceRef)
	}

	clip := &Clip{
		ID:         NewID(),
		LaneID:     laneID,
		Name:       name,
		SourceRef:  sourceRef,
		PositionMs: positionMs,
		DurationMs: durationMs,
		CreatedAt:  time.Now(),
	}
	if err := s.repo.CreateClip(ctx, clip); err != nil {
		return nil, err
	}

	if durationMs == 0 {
		now := time.Now()
		job := &Job{
			ID:        NewID(),
			Type:      JobTypeProbeDuration,
			Status:    JobStatusPending,
			ClipID:    clip.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.CreateJob(ctx, job); err != nil && s.logger != nil {
			s.logger.Warn("failed to create probe job", "clip_id", clip.ID, "error", err)
		}
	}

	if s.logger != nil {
		s.logger.Info("clip placed",
			"clip_id", clip.ID, "lane_id", laneID, "position_ms", positionMs, "duration_ms", durationMs)
	}
	return clip, nil
}

func (s *Service) GetClip(ctx context.Context, id string) (*Clip, error) {
	return s.repo.GetClip(ctx, id)
}

func (s *Service) RepositionClip(ctx context.Context, id string, positionMs int64) error {
	if positionMs < 0 {
		return fmt.Errorf("clip position must not be negative")
	}
	clip, err := s.repo.GetClip(ctx, id)
	if err != nil {
		return err
	}
	if clip == nil {
		return fmt.Errorf("clip not found")
	}
	return s.repo.UpdateClipPosition(ctx, id, positionMs)
}

// Timeline reads a game's lanes and clips into the pure timeline model
// the sync engine works on.
func (s *Service) Timeline(ctx context.Context, gameID string) ([]timeline.Lane, error) {
	dbLanes, err := s.repo.ListLanesByGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	lanes := make([]timeline.Lane, 0, len(dbLanes))
	for _, dbLane := range dbLanes {
		clips, err := s.repo.ListClipsByLane(ctx, dbLane.ID)
		if err != nil {
			return nil, err
		}
		lane := timeline.Lane{ID: dbLane.ID, Label: dbLane.Label}
		for _, c := range clips {
			lane.Clips = append(lane.Clips, timeline.Clip{
				ID:         c.ID,
				Name:       c.Name,
				SourceRef:  c.SourceRef,
				PositionMs: c.PositionMs,
				DurationMs: c.DurationMs,
			})
		}
		lanes = append(lanes, lane)
	}
	return lanes, nil
}

// ApplyPositionUpdates implements syncsession.ClipStore: the whole
// batch is applied in one transaction, with the audit row, or not at
// all.
func (s *Service) ApplyPositionUpdates(ctx context.Context, gameID, sessionID string, updates []syncsession.PositionUpdate) error {
	if err := s.repo.ApplySyncBatch(ctx, gameID, sessionID, updates); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("sync batch applied",
			"game_id", gameID, "session_id", sessionID, "clip_count", len(updates))
	}
	return nil
}
