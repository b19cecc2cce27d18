package jobs

import (
	"context"
	"errors"

	"github.com/wonny/alphaterminal/backend/internal/brain"
	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

// RunStarter is the part of the run manager the jobs need
type RunStarter interface {
	RunSync(ctx context.Context, cfg brain.RunConfig) (*brain.RunResult, error)
}

// RankingJob runs the full ranking pipeline on schedule
// ⭐ SSOT: 정기 랭킹 실행은 이 Job에서만
type RankingJob struct {
	runs     RunStarter
	mode     contracts.Mode
	schedule string
	logger   *logger.Logger
}

// NewRankingJob creates a new ranking job
func NewRankingJob(runs RunStarter, mode contracts.Mode, schedule string, log *logger.Logger) *RankingJob {
	return &RankingJob{
		runs:     runs,
		mode:     mode,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *RankingJob) Name() string {
	return "ranking"
}

// Schedule returns the cron schedule
func (j *RankingJob) Schedule() string {
	return j.schedule
}

// Run executes one ranking run. A run already in progress (e.g. started
// from the API) satisfies the trigger.
func (j *RankingJob) Run(ctx context.Context) error {
	res, err := j.runs.RunSync(ctx, brain.RunConfig{Mode: j.mode})
	if errors.Is(err, brain.ErrRunInProgress) {
		j.logger.Info("Ranking run already in progress, trigger skipped")
		return nil
	}
	if err != nil {
		return err
	}

	j.logger.WithRun(res.RunID).WithFields(map[string]interface{}{
		"ranked": res.Summary.Ranked,
		"failed": len(res.Summary.Failed),
	}).Info("Scheduled ranking completed")
	return nil
}
