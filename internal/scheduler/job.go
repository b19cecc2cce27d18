package scheduler

import (
	"context"
	"time"
)

// Job is one cron-driven unit of pipeline work
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string

	// Run executes the job. The context is cancelled when the scheduler stops.
	Run(ctx context.Context) error

	// Schedule returns the cron expression, seconds field first.
	// Examples: "0 0 19 * * 1-5" (weekdays 7 PM), "@every 15m"
	Schedule() string
}

// JobResult is one execution of a job, retries included
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

const maxJobHistory = 100

// JobHistory keeps the last maxJobHistory results of a job plus lifetime counters.
// Counters and last success/failure survive eviction from the recent window.
type JobHistory struct {
	recent      []JobResult // oldest first
	total       int
	failures    int
	lastSuccess *time.Time
	lastFailure *time.Time
}

// Record appends a result and evicts the oldest beyond the window
func (h *JobHistory) Record(r JobResult) {
	h.recent = append(h.recent, r)
	if over := len(h.recent) - maxJobHistory; over > 0 {
		h.recent = append(h.recent[:0:0], h.recent[over:]...)
	}

	h.total++
	started := r.StartTime
	if r.Success {
		h.lastSuccess = &started
	} else {
		h.failures++
		h.lastFailure = &started
	}
}

// Recent returns a copy of the window, oldest first
func (h *JobHistory) Recent() []JobResult {
	out := make([]JobResult, len(h.recent))
	copy(out, h.recent)
	return out
}

// Stats summarizes the history; next is the upcoming cron fire time if any
func (h *JobHistory) Stats(name, schedule string, next *time.Time) JobStats {
	st := JobStats{
		JobName:      name,
		Schedule:     schedule,
		TotalRuns:    h.total,
		SuccessCount: h.total - h.failures,
		FailureCount: h.failures,
		LastSuccess:  h.lastSuccess,
		LastFailure:  h.lastFailure,
		NextRun:      next,
	}
	if h.total > 0 {
		st.SuccessRate = float64(st.SuccessCount) / float64(h.total)
	}
	if n := len(h.recent); n > 0 {
		last := h.recent[n-1].StartTime
		st.LastRun = &last
	}
	return st
}

// JobStats is the per-job summary shown by `alpha scheduler list`
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
	NextRun      *time.Time `json:"next_run,omitempty"`
}
