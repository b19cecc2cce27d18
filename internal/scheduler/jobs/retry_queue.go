package jobs

import (
	"context"
	"errors"

	"github.com/wonny/alphaterminal/backend/internal/brain"
	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

// PendingRetrier re-analyzes queued tickers
type PendingRetrier interface {
	RetryPending(ctx context.Context) (brain.RetryReport, error)
}

// RetryQueueJob drains the pending-analysis queue and, when any ticker
// recovered, publishes a fresh incremental snapshot
type RetryQueueJob struct {
	retrier  PendingRetrier
	runs     RunStarter
	schedule string
	logger   *logger.Logger
}

// NewRetryQueueJob creates a new retry queue job
func NewRetryQueueJob(retrier PendingRetrier, runs RunStarter, schedule string, log *logger.Logger) *RetryQueueJob {
	return &RetryQueueJob{
		retrier:  retrier,
		runs:     runs,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *RetryQueueJob) Name() string {
	return "retry_queue"
}

// Schedule returns the cron schedule
func (j *RetryQueueJob) Schedule() string {
	return j.schedule
}

// Run executes one retry pass
func (j *RetryQueueJob) Run(ctx context.Context) error {
	report, err := j.retrier.RetryPending(ctx)
	if err != nil {
		return err
	}
	if report.Recovered == 0 {
		if report.Attempted > 0 {
			j.logger.WithField("pending", report.Requeued).Debug("No queued ticker recovered")
		}
		return nil
	}

	// recovered assessments are cached: this run only re-merges
	_, err = j.runs.RunSync(ctx, brain.RunConfig{Mode: contracts.ModeIncremental})
	if errors.Is(err, brain.ErrRunInProgress) {
		return nil
	}
	return err
}
