package film

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Runner drains pending probe jobs in the background so clip placement
// stays fast even when media metadata is slow to read.
type Runner struct {
	repo         Repository
	prober       Prober
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool
}

func NewRunner(repo Repository, prober Prober, logger *slog.Logger) *Runner {
	return &Runner{
		repo:         repo,
		prober:       prober,
		logger:       logger,
		pollInterval: 5 * time.Second,
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("probe job runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("probe job runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNextJob(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("probe job runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("probe job runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) processNextJob(ctx context.Context) {
	jobs, err := r.repo.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return
	}
	if len(jobs) == 0 {
		return
	}

	job := jobs[0]
	r.logger.Info("processing job", "job_id", job.ID, "type", job.Type)

	switch job.Type {
	case JobTypeProbeDuration:
		r.processProbeJob(ctx, job)
	default:
		r.logger.Warn("unknown job type", "type", job.Type)
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "unknown job type")
	}
}

func (r *Runner) processProbeJob(ctx context.Context, job *Job) {
	if r.prober == nil {
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "prober not configured")
		return
	}

	clip, err := r.repo.GetClip(ctx, job.ClipID)
	if err != nil || clip == nil {
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "clip not found")
		return
	}

	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "")

	durationMs, err := r.prober.ProbeDurationMs(ctx, clip.SourceRef)
	if err != nil {
		r.logger.Warn("duration probe failed", "job_id", job.ID, "clip_id", clip.ID, "error", err)
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, fmt.Sprintf("probe failed: %v", err))
		return
	}

	if err := r.repo.UpdateClipDuration(ctx, clip.ID, durationMs); err != nil {
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, fmt.Sprintf("update duration: %v", err))
		return
	}

	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
	r.logger.Info("clip duration probed", "clip_id", clip.ID, "duration_ms", durationMs)
}
