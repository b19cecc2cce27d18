package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/alphaterminal/backend/internal/api/handlers"
	"github.com/wonny/alphaterminal/backend/internal/metrics"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

// Handlers groups the endpoint handlers the router mounts
type Handlers struct {
	Ranking *handlers.RankingHandler
	Runs    *handlers.RunHandler
	Market  *handlers.MarketHandler

	// Metrics serves /metrics when set (promhttp handler)
	Metrics http.Handler
	// Health reports dependency status; nil reports only liveness
	Health func(r *http.Request) map[string]string
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, m *metrics.Metrics, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthCheckHandler(h.Health)).Methods("GET")
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Ranking snapshot
	api.HandleFunc("/ranking", h.Ranking.GetRanking).Methods("GET")
	api.HandleFunc("/ranking/top", h.Ranking.GetTop).Methods("GET")
	api.HandleFunc("/ranking/tickers/{ticker}", h.Ranking.GetPick).Methods("GET")
	api.HandleFunc("/ranking/snapshots", h.Ranking.GetSnapshots).Methods("GET")
	api.HandleFunc("/ranking/snapshots/{id}", h.Ranking.GetSnapshot).Methods("GET")

	// Runs
	api.HandleFunc("/ranking/runs", h.Runs.StartRun).Methods("POST")
	api.HandleFunc("/ranking/runs", h.Runs.ListRuns).Methods("GET")
	api.HandleFunc("/ranking/runs/{id}", h.Runs.GetRun).Methods("GET")
	api.HandleFunc("/ranking/runs/{id}", h.Runs.CancelRun).Methods("DELETE")
	api.HandleFunc("/ranking/pending", h.Runs.GetPending).Methods("GET")

	// Market context
	api.HandleFunc("/macro", h.Market.GetMacro).Methods("GET")
	api.HandleFunc("/sentiment", h.Market.GetSentiments).Methods("GET")
	api.HandleFunc("/sentiment/{ticker}", h.Market.GetSentiment).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(metricsMiddleware(m))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(check func(r *http.Request) map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"status":  "ok",
			"service": "alphaterminal-api",
		}
		status := http.StatusOK
		if check != nil {
			deps := check(r)
			for _, v := range deps {
				if v != "ok" && v != "disabled" {
					resp["status"] = "degraded"
					status = http.StatusServiceUnavailable
				}
			}
			resp["dependencies"] = deps
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}
}

// statusRecorder captures the response status for logging and metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
			}).Debug("HTTP request")
		})
	}
}

// metricsMiddleware records request counts and latency per route template
func metricsMiddleware(m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := "unmatched"
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			m.RecordHTTPRequest(r.Method, route, strconv.Itoa(rec.status), time.Since(start))
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
