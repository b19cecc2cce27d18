package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/alphaterminal/backend/internal/brain"
	"github.com/wonny/alphaterminal/backend/internal/contracts"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "랭킹 파이프라인 1회 실행",
	Long: `Runs the ranking pipeline once and publishes a snapshot.

Quant → Macro → Qualitative → Sentiment → Price → Merge → Persist

Modes:
  strict       any stage validation failure aborts the run
  incremental  failed tickers are excluded and queued, a partial snapshot is published

Ctrl+C cancels the run; the previous snapshot stays in place.

Example:
  go run ./cmd/alpha run
  go run ./cmd/alpha run --mode strict
  go run ./cmd/alpha run --force`,
	RunE: runPipeline,
}

var (
	runMode  string
	runForce bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runMode, "mode", "", "strict|incremental (default: PIPELINE_MODE)")
	runCmd.Flags().BoolVar(&runForce, "force", false, "ignore cached assessments and macro context")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	mode := a.mode()
	if runMode != "" {
		if runMode != string(contracts.ModeStrict) && runMode != string(contracts.ModeIncremental) {
			return fmt.Errorf("invalid mode %q", runMode)
		}
		mode = contracts.Mode(runMode)
	}

	result, err := a.manager.RunSync(ctx, brain.RunConfig{
		Mode:  mode,
		Force: runForce,
	})
	if result != nil {
		PrintRunResult(result)
	}
	if err != nil {
		return fmt.Errorf("pipeline run failed: %w", err)
	}
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
