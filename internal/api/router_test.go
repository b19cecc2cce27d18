package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/alphaterminal/backend/internal/api/handlers"
	"github.com/wonny/alphaterminal/backend/internal/brain"
	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/internal/macro"
	"github.com/wonny/alphaterminal/backend/internal/metrics"
	"github.com/wonny/alphaterminal/backend/internal/qualitative"
	"github.com/wonny/alphaterminal/backend/internal/sentiment"
	"github.com/wonny/alphaterminal/backend/internal/snapshot"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

// gatedRunner finishes a run when the gate closes, or reports it cancelled
type gatedRunner struct {
	history *brain.History
	gate    chan struct{}
}

func (g *gatedRunner) Run(ctx context.Context, cfg brain.RunConfig) (*brain.RunResult, error) {
	if cfg.OnStage != nil {
		cfg.OnStage(contracts.StageQuantFilter)
	}
	res := &brain.RunResult{RunID: cfg.RunID, Mode: cfg.Mode, StartedAt: time.Now()}
	select {
	case <-g.gate:
		res.State = contracts.StageDone
	case <-ctx.Done():
		res.State = contracts.StageCancelled
	}
	g.history.Add(res)
	return res, ctx.Err()
}

func (g *gatedRunner) History() *brain.History { return g.history }

type fixedMacro struct{}

func (fixedMacro) Fetch(ctx context.Context) (contracts.MacroIndicators, error) {
	return contracts.MacroIndicators{InterestRate: 10.75, InflationRate: 4.5}, nil
}

type fixture struct {
	router  http.Handler
	store   *snapshot.Store
	runner  *gatedRunner
	manager *brain.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	store := snapshot.NewStore(snapshot.NewMemoryRepository(), log)
	runner := &gatedRunner{history: brain.NewHistory(10), gate: make(chan struct{})}
	manager := brain.NewManager(context.Background(), runner, log)
	queue := qualitative.NewRetryQueue()
	queue.Push(contracts.AnalysisRequest{Ticker: "ITUB4"}, "timeout")

	screener := sentiment.NewScreener(nil, sentiment.DefaultConfig(), nil, log)
	screener.Observe("WEGE3", 50)

	router := NewRouter(Handlers{
		Ranking: handlers.NewRankingHandler(store, nil, log),
		Runs:    handlers.NewRunHandler(manager, runner.History(), queue, contracts.ModeIncremental, log),
		Market:  handlers.NewMarketHandler(macro.NewBuilder(fixedMacro{}, time.Hour, nil, log), screener, log),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, m, log)

	t.Cleanup(func() {
		select {
		case <-runner.gate:
		default:
			close(runner.gate)
		}
		_ = manager.Wait(context.Background())
	})
	return &fixture{router: router, store: store, runner: runner, manager: manager}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func publish(t *testing.T, store *snapshot.Store) {
	t.Helper()
	price := 37.19
	require.NoError(t, store.Publish(context.Background(), &contracts.Snapshot{
		RunID:       "run-1",
		Timestamp:   time.Date(2026, 10, 16, 19, 0, 0, 0, time.UTC),
		Mode:        contracts.ModeIncremental,
		TotalRanked: 2,
		Ranking: []contracts.TopPick{
			{Ticker: "VALE3", Rank: 1, CompositeScore: 7.24},
			{Ticker: "WEGE3", Rank: 2, CompositeScore: 5.5, Efficiency: contracts.EfficiencyScore{Ticker: "WEGE3", Price: &price}},
		},
	}))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec, body := f.do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestRankingEndpoints(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, "GET", "/api/ranking", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "nothing published yet")

	publish(t, f.store)

	tests := []struct {
		name string
		path string
		code int
		key  string
		want interface{}
	}{
		{name: "full snapshot", path: "/api/ranking", code: http.StatusOK, key: "run_id", want: "run-1"},
		{name: "top", path: "/api/ranking/top?limit=1", code: http.StatusOK, key: "total_ranked", want: float64(2)},
		{name: "bad limit", path: "/api/ranking/top?limit=abc", code: http.StatusBadRequest},
		{name: "ticker", path: "/api/ranking/tickers/wege3", code: http.StatusOK, key: "rank", want: float64(2)},
		{name: "unranked ticker", path: "/api/ranking/tickers/PETR4", code: http.StatusNotFound},
		{name: "archive without database", path: "/api/ranking/snapshots", code: http.StatusNotImplemented},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := f.do(t, "GET", tt.path, "")
			assert.Equal(t, tt.code, rec.Code)
			if tt.key != "" {
				assert.Equal(t, tt.want, body[tt.key])
			}
		})
	}

	_, body := f.do(t, "GET", "/api/ranking/top?limit=1", "")
	assert.Len(t, body["ranking"], 1)
}

func TestRunLifecycle(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, "POST", "/api/ranking/runs", `{"mode": "strict"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	runID, _ := body["run_id"].(string)
	require.NotEmpty(t, runID)
	assert.Equal(t, "strict", body["mode"])

	rec, body = f.do(t, "POST", "/api/ranking/runs", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, runID, body["run_id"])

	rec, body = f.do(t, "GET", "/api/ranking/runs/"+runID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, []interface{}{"INIT", "QUANT_FILTER"}, body["state"])

	rec, _ = f.do(t, "DELETE", "/api/ranking/runs/"+runID, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.NoError(t, f.manager.Wait(context.Background()))

	rec, body = f.do(t, "GET", "/api/ranking/runs/"+runID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CANCELLED", body["state"])

	rec, body = f.do(t, "GET", "/api/ranking/runs", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["runs"], 1)

	rec, _ = f.do(t, "GET", "/api/ranking/runs/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = f.do(t, "DELETE", "/api/ranking/runs/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartRunRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, "POST", "/api/ranking/runs", `{"mode": "yolo"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, "POST", "/api/ranking/runs", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, active := f.manager.Active()
	assert.False(t, active)
}

func TestPending(t *testing.T) {
	f := newFixture(t)
	rec, body := f.do(t, "GET", "/api/ranking/pending", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
}

func TestMarketEndpoints(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, "GET", "/api/macro", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10.75, body["interest_rate"])

	rec, body = f.do(t, "GET", "/api/sentiment/wege3", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "WEGE3", body["ticker"])
	assert.Equal(t, float64(50), body["baseline"])

	rec, _ = f.do(t, "GET", "/api/sentiment/PETR4", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = f.do(t, "GET", "/api/sentiment", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, "GET", "/health", "")

	rec, _ := f.do(t, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `alphaterminal_http_requests_total{method="GET",route="/health",status_code="200"} 1`)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
