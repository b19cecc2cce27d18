package commands

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/wonny/alphaterminal/backend/internal/api"
	"github.com/wonny/alphaterminal/backend/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `Starts the REST API server.

With --schedule the cron jobs run in the same process, sharing the
run manager, the qualitative cache and the retry queue.

Endpoints:
  GET    /health
  GET    /metrics
  GET    /api/ranking
  GET    /api/ranking/top?limit=10
  GET    /api/ranking/tickers/{ticker}
  GET    /api/ranking/snapshots
  GET    /api/ranking/snapshots/{id}
  POST   /api/ranking/runs
  GET    /api/ranking/runs
  GET    /api/ranking/runs/{id}
  DELETE /api/ranking/runs/{id}
  GET    /api/ranking/pending
  GET    /api/macro
  GET    /api/sentiment
  GET    /api/sentiment/{ticker}

Example:
  go run ./cmd/alpha api
  go run ./cmd/alpha api --port 8080 --schedule`,
	RunE: runAPIServer,
}

var (
	apiPort     string
	apiSchedule bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: PORT)")
	apiCmd.Flags().BoolVar(&apiSchedule, "schedule", false, "run the scheduler in-process")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	// Background runs outlive requests but stop with the process
	a, err := newApp(ctx, ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	if apiPort != "" {
		cfg.Port = apiPort
	}
	log := a.logger

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// archive is a typed nil pointer without Postgres; keep the interface nil
	var archive handlers.SnapshotArchive
	if a.archive != nil {
		archive = a.archive
	}

	h := api.Handlers{
		Ranking: handlers.NewRankingHandler(a.store, archive, log),
		Runs:    handlers.NewRunHandler(a.manager, a.orchestrator.History(), a.queue, a.mode(), log),
		Market:  handlers.NewMarketHandler(a.macro, a.sentiment, log),
		Health:  a.health,
	}
	if cfg.MetricsEnabled {
		h.Metrics = promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
	}

	server := api.New(cfg, log, api.NewRouter(h, a.metrics, log))

	if apiSchedule {
		sched, err := newScheduler(a)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	server.OnShutdown(a.manager.Wait)

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	return server.Run(ctx)
}
