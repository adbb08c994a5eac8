package film

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/filmroomhq/filmroom/internal/syncsession"
)

// FailedUpdate names one clip in a rejected sync batch and why it was
// rejected.
type FailedUpdate struct {
	ClipID string `json:"clip_id"`
	Reason string `json:"reason"`
}

// BatchError reports a sync batch that was rolled back. No sibling
// update in the batch has been applied.
type BatchError struct {
	Failed []FailedUpdate
}

func (e *BatchError) Error() string {
	ids := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		ids[i] = f.ClipID
	}
	return fmt.Sprintf("sync batch rolled back, %d update(s) rejected: %s",
		len(e.Failed), strings.Join(ids, ", "))
}

type Repository interface {
	CreateGame(ctx context.Context, game *Game) error
	GetGame(ctx context.Context, id string) (*Game, error)
	ListGames(ctx context.Context) ([]*Game, error)
	CountGames(ctx context.Context) (int, error)

	CreateLane(ctx context.Context, lane *Lane) error
	GetLane(ctx context.Context, id string) (*Lane, error)
	ListLanesByGame(ctx context.Context, gameID string) ([]*Lane, error)

	CreateClip(ctx context.Context, clip *Clip) error
	GetClip(ctx context.Context, id string) (*Clip, error)
	ListClipsByLane(ctx context.Context, laneID string) ([]*Clip, error)
	UpdateClipPosition(ctx context.Context, id string, positionMs int64) error
	UpdateClipDuration(ctx context.Context, id string, durationMs int64) error
	CountClips(ctx context.Context) (int, error)

	// ApplySyncBatch applies every update in one transaction and
	// records the audit row. Any unknown clip rolls the whole batch
	// back and surfaces a *BatchError.
	ApplySyncBatch(ctx context.Context, gameID, sessionID string, updates []syncsession.PositionUpdate) error
	LastSyncCommit(ctx context.Context) (*SyncCommit, error)

	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListPendingJobs(ctx context.Context) ([]*Job, error)
	CountRunningJobs(ctx context.Context) (int, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateGame(ctx context.Context, g *Game) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO games (id, title, opponent, created_at)
		VALUES (?, ?, ?, ?)
	`, g.ID, g.Title, nullString(g.Opponent), g.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetGame(ctx context.Context, id string) (*Game, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, opponent, created_at FROM games WHERE id = ?
	`, id)

	var g Game
	var opponent sql.NullString
	var createdAt string
	err := row.Scan(&g.ID, &g.Title, &opponent, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g.Opponent = opponent.String
	g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &g, nil
}

func (r *SQLiteRepository) ListGames(ctx context.Context) ([]*Game, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, opponent, created_at FROM games ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []*Game
	for rows.Next() {
		var g Game
		var opponent sql.NullString
		var createdAt string
		if err := rows.Scan(&g.ID, &g.Title, &opponent, &createdAt); err != nil {
			return nil, err
		}
		g.Opponent = opponent.String
		g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		games = append(games, &g)
	}
	return games, rows.Err()
}

func (r *SQLiteRepository) CountGames(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM games").Scan(&count)
	return count, err
}

func (r *SQLiteRepository) CreateLane(ctx context.Context, l *Lane) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lanes (id, game_id, label, ordinal, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, l.ID, l.GameID, l.Label, l.Ordinal, l.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetLane(ctx context.Context, id string) (*Lane, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, game_id, label, ordinal, created_at FROM lanes WHERE id = ?
	`, id)

	var l Lane
	var createdAt string
	err := row.Scan(&l.ID, &l.GameID, &l.Label, &l.Ordinal, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	l.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &l, nil
}

func (r *SQLiteRepository) ListLanesByGame(ctx context.Context, gameID string) ([]*Lane, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, game_id, label, ordinal, created_at
		FROM lanes WHERE game_id = ? ORDER BY ordinal, created_at
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lanes []*Lane
	for rows.Next() {
		var l Lane
		var createdAt string
		if err := rows.Scan(&l.ID, &l.GameID, &l.Label, &l.Ordinal, &createdAt); err != nil {
			return nil, err
		}
		l.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		lanes = append(lanes, &l)
	}
	return lanes, rows.Err()
}

func (r *SQLiteRepository) CreateClip(ctx context.Context, c *Clip) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clips (id, lane_id, name, source_ref, position_ms, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.LaneID, c.Name, c.SourceRef, c.PositionMs, c.DurationMs, c.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetClip(ctx context.Context, id string) (*Clip, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, lane_id, name, source_ref, position_ms, duration_ms, created_at
		FROM clips WHERE id = ?
	`, id)

	var c Clip
	var createdAt string
	err := row.Scan(&c.ID, &c.LaneID, &c.Name, &c.SourceRef, &c.PositionMs, &c.DurationMs, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &c, nil
}

func (r *SQLiteRepository) ListClipsByLane(ctx context.Context, laneID string) ([]*Clip, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, lane_id, name, source_ref, position_ms, duration_ms, created_at
		FROM clips WHERE lane_id = ? ORDER BY position_ms
	`, laneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clips []*Clip
	for rows.Next() {
		var c Clip
		var createdAt string
		if err := rows.Scan(&c.ID, &c.LaneID, &c.Name, &c.SourceRef, &c.PositionMs, &c.DurationMs, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		clips = append(clips, &c)
	}
	return clips, rows.Err()
}

func (r *SQLiteRepository) UpdateClipPosition(ctx context.Context, id string, positionMs int64) error {
	_, err := r.db.ExecContext(ctx, "UPDATE clips SET position_ms = ? WHERE id = ?", positionMs, id)
	return err
}

func (r *SQLiteRepository) UpdateClipDuration(ctx context.Context, id string, durationMs int64) error {
	_, err := r.db.ExecContext(ctx, "UPDATE clips SET duration_ms = ? WHERE id = ?", durationMs, id)
	return err
}

func (r *SQLiteRepository) CountClips(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM clips").Scan(&count)
	return count, err
}

func (r *SQLiteRepository) ApplySyncBatch(ctx context.Context, gameID, sessionID string, updates []syncsession.PositionUpdate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sync batch: %w", err)
	}
	defer tx.Rollback()

	var failed []FailedUpdate
	for _, u := range updates {
		res, err := tx.ExecContext(ctx,
			"UPDATE clips SET position_ms = ? WHERE id = ?", u.NewPositionMs, u.ClipID)
		if err != nil {
			failed = append(failed, FailedUpdate{ClipID: u.ClipID, Reason: err.Error()})
			continue
		}
		n, err := res.RowsAffected()
		if err != nil {
			failed = append(failed, FailedUpdate{ClipID: u.ClipID, Reason: err.Error()})
			continue
		}
		if n == 0 {
			failed = append(failed, FailedUpdate{ClipID: u.ClipID, Reason: "clip not found"})
		}
	}
	if len(failed) > 0 {
		return &BatchError{Failed: failed}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_commits (id, game_id, session_id, clip_count, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, NewID(), gameID, sessionID, len(updates), time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record sync commit: %w", err)
	}

	return tx.Commit()
}

func (r *SQLiteRepository) LastSyncCommit(ctx context.Context) (*SyncCommit, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, game_id, session_id, clip_count, created_at
		FROM sync_commits ORDER BY created_at DESC LIMIT 1
	`)

	var sc SyncCommit
	var createdAt string
	err := row.Scan(&sc.ID, &sc.GameID, &sc.SessionID, &sc.ClipCount, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &sc, nil
}

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, status, clip_id, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Type, j.Status, nullString(j.ClipID), nullString(j.Error),
		j.CreatedAt.Format(time.RFC3339), j.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, type, status, clip_id, error, created_at, updated_at
		FROM jobs WHERE id = ?
	`, id)
	return scanJob(row)
}

func scanJob(row *sql.Row) (*Job, error) {
	var j Job
	var clipID, errMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&j.ID, &j.Type, &j.Status, &clipID, &errMsg, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j.ClipID = clipID.String
	j.Error = errMsg.String
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &j, nil
}

func (r *SQLiteRepository) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, status, clip_id, error, created_at, updated_at
		FROM jobs WHERE status = 'pending' ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		var j Job
		var clipID, errMsg sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&j.ID, &j.Type, &j.Status, &clipID, &errMsg, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		j.ClipID = clipID.String
		j.Error = errMsg.String
		j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

func (r *SQLiteRepository) CountRunningJobs(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs WHERE status = 'running'").Scan(&count)
	return count, err
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = datetime('now') WHERE id = ?
	`, status, nullString(errorMsg), id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
