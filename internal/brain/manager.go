package brain

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

var (
	// ErrRunInProgress is returned when a run is requested while another one is active
	ErrRunInProgress = errors.New("a ranking run is already in progress")

	// ErrRunNotFound is returned for unknown run IDs
	ErrRunNotFound = errors.New("run not found")
)

// RunStatus is the externally visible state of a run
type RunStatus struct {
	RunID     string          `json:"run_id"`
	Mode      contracts.Mode  `json:"mode"`
	Force     bool            `json:"force"`
	State     contracts.Stage `json:"state"`
	StartedAt time.Time       `json:"started_at"`
	Result    *RunResult      `json:"result,omitempty"`
}

// Runner executes one pipeline run
type Runner interface {
	Run(ctx context.Context, cfg RunConfig) (*RunResult, error)
	History() *History
}

// Manager starts runs in the background and cancels them by ID.
// One run is active at a time.
type Manager struct {
	runner Runner
	logger *logger.Logger

	mu     sync.Mutex
	active *activeRun
	base   context.Context
}

type activeRun struct {
	status RunStatus
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a run manager. Background runs derive from base,
// so cancelling base stops them.
func NewManager(base context.Context, runner Runner, log *logger.Logger) *Manager {
	return &Manager{
		runner: runner,
		base:   base,
		logger: log.WithComponent("run-manager"),
	}
}

// Start launches a run in the background and returns its ID
func (m *Manager) Start(cfg RunConfig) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return "", ErrRunInProgress
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.Mode == "" {
		cfg.Mode = contracts.ModeIncremental
	}

	ctx, cancel := context.WithCancel(m.base)
	a := &activeRun{
		status: RunStatus{
			RunID:     cfg.RunID,
			Mode:      cfg.Mode,
			Force:     cfg.Force,
			State:     contracts.StageInit,
			StartedAt: time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.active = a
	cfg.OnStage = m.track(a)

	go func() {
		defer close(a.done)
		defer cancel()

		if _, err := m.runner.Run(ctx, cfg); err != nil {
			m.logger.WithRun(cfg.RunID).WithError(err).Warn("Background run ended early")
		}

		m.mu.Lock()
		m.active = nil
		m.mu.Unlock()
	}()

	m.logger.WithRun(cfg.RunID).WithField("mode", cfg.Mode).Info("Background run started")
	return cfg.RunID, nil
}

// RunSync executes a run in the caller's goroutine, still registered for Cancel
func (m *Manager) RunSync(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		return nil, ErrRunInProgress
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(ctx)
	a := &activeRun{
		status: RunStatus{RunID: cfg.RunID, Mode: cfg.Mode, Force: cfg.Force, State: contracts.StageInit, StartedAt: time.Now()},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.active = a
	cfg.OnStage = m.track(a)
	m.mu.Unlock()

	defer func() {
		cancel()
		m.mu.Lock()
		m.active = nil
		m.mu.Unlock()
		close(a.done)
	}()

	return m.runner.Run(ctx, cfg)
}

func (m *Manager) track(a *activeRun) func(contracts.Stage) {
	return func(stage contracts.Stage) {
		m.mu.Lock()
		a.status.State = stage
		m.mu.Unlock()
	}
}

// Cancel stops the active run with runID
func (m *Manager) Cancel(runID string) error {
	m.mu.Lock()
	a := m.active
	m.mu.Unlock()

	if a == nil || a.status.RunID != runID {
		if _, ok := m.runner.History().Get(runID); ok {
			return nil // already finished
		}
		return ErrRunNotFound
	}

	a.cancel()
	m.logger.WithRun(runID).Info("Run cancellation requested")
	return nil
}

// Status reports an active or finished run
func (m *Manager) Status(runID string) (RunStatus, error) {
	if r, ok := m.runner.History().Get(runID); ok {
		return RunStatus{
			RunID:     r.RunID,
			Mode:      r.Mode,
			Force:     r.Force,
			State:     r.State,
			StartedAt: r.StartedAt,
			Result:    r,
		}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil && m.active.status.RunID == runID {
		return m.active.status, nil
	}
	return RunStatus{}, ErrRunNotFound
}

// Active returns the ID of the running run, if any
func (m *Manager) Active() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return "", false
	}
	return m.active.status.RunID, true
}

// Wait blocks until the active run, if any, finishes or ctx is done
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	a := m.active
	m.mu.Unlock()
	if a == nil {
		return nil
	}

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
