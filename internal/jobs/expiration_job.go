package jobs

import (
	"context"
	"sync"
	"time"

	"order-access-service/internal/services"

	"github.com/sirupsen/logrus"
)

// Sweeper archives orders whose expiration date has passed
type Sweeper interface {
	SweepExpired(ctx context.Context) (*services.SweepResult, error)
}

// ExpirationJob runs the expiration sweep on a fixed interval
type ExpirationJob struct {
	sweeper  Sweeper
	logger   *logrus.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewExpirationJob creates a new expiration job
func NewExpirationJob(sweeper Sweeper, interval time.Duration, logger *logrus.Logger) *ExpirationJob {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpirationJob{
		sweeper:  sweeper,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs a sweep immediately and then on every tick until stopped
func (j *ExpirationJob) Start(ctx context.Context) {
	j.logger.WithField("interval", j.interval.String()).Info("Expiration job started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			j.RunOnce(ctx)
		case <-j.stopCh:
			j.logger.Info("Expiration job stopped")
			return
		case <-ctx.Done():
			j.logger.Info("Expiration job context cancelled")
			return
		}
	}
}

// Stop signals the job to stop. Safe to call more than once.
func (j *ExpirationJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}

// RunOnce performs a single sweep and logs its outcome
func (j *ExpirationJob) RunOnce(ctx context.Context) {
	j.logger.Debug("Running expiration sweep...")

	result, err := j.sweeper.SweepExpired(ctx)
	if err != nil {
		j.logger.WithError(err).Error("Expiration sweep failed")
		return
	}

	if result.Candidates == 0 {
		j.logger.Debug("No expired orders")
		return
	}

	entry := j.logger.WithFields(logrus.Fields{
		"candidates":  result.Candidates,
		"archived":    result.Archived,
		"skipped":     result.Skipped,
		"failed":      result.Failed,
		"duration_ms": result.Duration.Milliseconds(),
	})
	if result.Failed > 0 {
		entry.Warn("Expiration sweep finished with failures")
		return
	}
	entry.Info("Expiration sweep finished")
}
