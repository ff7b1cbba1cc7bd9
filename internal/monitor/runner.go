package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bridgemon/internal/metrics"
)

// DefaultFlushDelay is how long a serverless run waits after a successful
// iteration before returning.
const DefaultFlushDelay = 2 * time.Second

// Iteration is the unit of work the runner supervises.
type Iteration interface {
	Update(ctx context.Context) error
	CheckUtilization(ctx context.Context) error
	CheckUnknownRelayers(ctx context.Context) error
}

// RunConfig holds runtime settings for the runner.
type RunConfig struct {
	// PollInterval of zero runs a single iteration.
	PollInterval time.Duration
	// Retries is the number of extra attempts after a failed iteration.
	Retries                int
	RetryDelay             time.Duration
	FlushDelay             time.Duration
	UtilizationEnabled     bool
	UnknownRelayersEnabled bool
}

// Runner executes monitor iterations one at a time under the retry policy.
type Runner struct {
	cfg       RunConfig
	iteration Iteration
	logger    *zap.Logger
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, iteration Iteration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, iteration: iteration, logger: logger}
}

// Run executes iterations until a serverless run completes, ctx is cancelled,
// or an iteration exhausts its retries. Only the last case returns an error.
func (r *Runner) Run(ctx context.Context) error {
	if r.iteration == nil {
		return fmt.Errorf("monitor is nil")
	}

	attempts := r.cfg.Retries + 1
	for {
		started := time.Now()
		err := Retry(ctx, attempts, r.cfg.RetryDelay, r.onAttemptError(attempts), r.runOnce)
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("monitor stopped", zap.Error(ctx.Err()))
				return nil
			}
			metrics.IterationsTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("monitor iteration failed after %d attempts: %w", attempts, err)
		}

		elapsed := time.Since(started)
		metrics.IterationsTotal.WithLabelValues("ok").Inc()
		metrics.IterationDuration.Observe(elapsed.Seconds())
		r.logger.Debug("monitor iteration complete", zap.Duration("elapsed", elapsed))

		if r.cfg.PollInterval == 0 {
			sleep(ctx, r.cfg.FlushDelay)
			r.logger.Info("serverless run complete")
			return nil
		}

		if !sleep(ctx, r.cfg.PollInterval) {
			r.logger.Info("monitor stopped", zap.Error(ctx.Err()))
			return nil
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) error {
	if err := r.iteration.Update(ctx); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	if r.cfg.UtilizationEnabled {
		if err := r.iteration.CheckUtilization(ctx); err != nil {
			return fmt.Errorf("check utilization: %w", err)
		}
	}
	if r.cfg.UnknownRelayersEnabled {
		if err := r.iteration.CheckUnknownRelayers(ctx); err != nil {
			return fmt.Errorf("check unknown relayers: %w", err)
		}
	}
	return nil
}

func (r *Runner) onAttemptError(attempts int) func(int, error) {
	return func(attempt int, err error) {
		metrics.IterationAttemptFailures.Inc()
		r.logger.Warn("monitor iteration attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
	}
}

// sleep waits for d and reports false if ctx was cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
