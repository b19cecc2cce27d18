package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/alphaterminal/backend/internal/scheduler"
	"github.com/wonny/alphaterminal/backend/internal/scheduler/jobs"
	"github.com/wonny/alphaterminal/backend/pkg/retry"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `Starts the scheduler or runs a job by hand.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행

Example:
  go run ./cmd/alpha scheduler start
  go run ./cmd/alpha scheduler list
  go run ./cmd/alpha scheduler run ranking`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `Starts the scheduler daemon with every job registered.

Jobs (SCHEDULE_* overrides, seconds field first):
- macro_refresh: 평일 18:30 (macro context refresh)
- ranking:       평일 19:00 (full ranking run)
- retry_queue:   15분마다 (pending qualitative retries)

Ctrl+C stops the scheduler and cancels running jobs.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// newScheduler registers every job against the app's components
func newScheduler(a *app) (*scheduler.Scheduler, error) {
	s := scheduler.New(a.logger, retry.FromConfig(a.cfg.Retry))
	sc := a.cfg.Scheduler

	for _, job := range []scheduler.Job{
		jobs.NewMacroRefreshJob(a.macro, sc.MacroSchedule, a.logger),
		jobs.NewRankingJob(a.manager, a.mode(), sc.RankingSchedule, a.logger),
		jobs.NewRetryQueueJob(a.orchestrator, a.manager, sc.RetrySchedule, a.logger),
	} {
		if err := s.AddJob(job); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== AlphaTerminal Scheduler ===")

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	PrintSuccess("Scheduler started successfully")
	printJobs(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	printJobs(sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Printf("Running job: %s\n", jobName)

	// Stop cancels the job context on Ctrl+C
	go func() {
		<-ctx.Done()
		sched.Stop()
	}()

	result, err := sched.RunJobAndWait(jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	if !result.Success {
		PrintError(fmt.Sprintf("%s failed after %s: %s", jobName, result.Duration.Round(time.Millisecond), result.Error))
		return fmt.Errorf("job %s failed", jobName)
	}
	PrintSuccess(fmt.Sprintf("%s completed in %s (attempts: %d)", jobName, result.Duration.Round(time.Millisecond), result.Attempts))
	return nil
}

func printJobs(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()

	fmt.Println("\nRegistered jobs:")
	for _, name := range sched.GetAllJobs() {
		stat := stats[name]
		next := "-"
		if stat.NextRun != nil {
			next = stat.NextRun.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("  - %-14s %-18s next: %s\n", name, stat.Schedule, next)
	}
}
