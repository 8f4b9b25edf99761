package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aitechdaily/digest/app/pipeline"
)

const (
	tickInterval    = time.Minute
	collectInterval = 2 * time.Hour
)

// PipelineRunner is the subset of the pipeline runner the scheduler drives.
type PipelineRunner interface {
	RunFull(ctx context.Context) (pipeline.Result, error)
	RunCollection(ctx context.Context) (pipeline.CollectionResult, error)
	RunWeekly(ctx context.Context) (pipeline.WeeklyResult, error)
}

// Scheduler triggers collection runs every two hours, the full digest at the
// configured daily hour, and the weekly digest on Sunday. A run already in
// progress makes the trigger a no-op.
type Scheduler struct {
	runner     PipelineRunner
	digestHour int
	weeklyHour int
	location   *time.Location

	lastDaily   string
	lastWeekly  string
	lastCollect time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(runner PipelineRunner, digestHour, weeklyHour int, location *time.Location) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		runner:     runner,
		digestHour: digestHour,
		weeklyHour: weeklyHour,
		location:   location,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (s *Scheduler) Start() {
	slog.Info("Scheduler started", "digest_hour", s.digestHour, "weekly_hour", s.weeklyHour,
		"timezone", s.location.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()

		// First collection shortly after startup, not two hours in.
		s.lastCollect = time.Now().Add(-collectInterval)

		for {
			select {
			case <-s.ctx.Done():
				return
			case now := <-ticker.C:
				s.tick(now)
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	slog.Info("Scheduler stopped")
}

// tick fires at most one trigger per call. Daily and weekly runs are keyed
// by date so a slow pipeline cannot double-fire within the same hour.
func (s *Scheduler) tick(now time.Time) {
	now = now.In(s.location)
	date := now.Format("2006-01-02")

	if now.Weekday() == time.Sunday && now.Hour() == s.weeklyHour && s.lastWeekly != date {
		s.lastWeekly = date
		slog.Info("Scheduler triggering weekly digest")
		if _, err := s.runner.RunWeekly(s.ctx); err != nil {
			s.logRunError("weekly", err)
		}
		return
	}

	if now.Hour() == s.digestHour && s.lastDaily != date {
		s.lastDaily = date
		slog.Info("Scheduler triggering daily digest")
		if _, err := s.runner.RunFull(s.ctx); err != nil {
			s.logRunError("daily", err)
		}
		return
	}

	if now.Sub(s.lastCollect) >= collectInterval {
		s.lastCollect = now
		slog.Info("Scheduler triggering collection")
		if _, err := s.runner.RunCollection(s.ctx); err != nil {
			s.logRunError("collection", err)
		}
	}
}

func (s *Scheduler) logRunError(kind string, err error) {
	if errors.Is(err, pipeline.ErrRunInProgress) {
		slog.Debug("Scheduled run skipped, pipeline busy", "kind", kind)
		return
	}
	slog.Error("Scheduled run failed", "kind", kind, "error", err)
}
