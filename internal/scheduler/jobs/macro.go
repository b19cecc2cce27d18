package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

// MacroRefresher recomputes the macro context
type MacroRefresher interface {
	Context(ctx context.Context, force bool) (*contracts.MacroContext, error)
}

// MacroRefreshJob forces a macro refresh ahead of the daily ranking,
// so the run reads sector weights from the cache
type MacroRefreshJob struct {
	macro    MacroRefresher
	schedule string
	logger   *logger.Logger
}

// NewMacroRefreshJob creates a new macro refresh job
func NewMacroRefreshJob(m MacroRefresher, schedule string, log *logger.Logger) *MacroRefreshJob {
	return &MacroRefreshJob{
		macro:    m,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *MacroRefreshJob) Name() string {
	return "macro_refresh"
}

// Schedule returns the cron schedule
func (j *MacroRefreshJob) Schedule() string {
	return j.schedule
}

// Run executes the macro refresh
func (j *MacroRefreshJob) Run(ctx context.Context) error {
	mc, err := j.macro.Context(ctx, true)
	if err != nil {
		return fmt.Errorf("refresh macro context: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"interest_rate":  mc.InterestRate,
		"inflation_rate": mc.InflationRate,
		"favored":        mc.FavoredSectors,
	}).Info("Macro context refreshed")
	return nil
}
