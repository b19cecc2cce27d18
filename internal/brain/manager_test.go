package brain

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

func TestHistoryIsBounded(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Add(&RunResult{RunID: fmt.Sprintf("run-%d", i)})
	}

	assert.Equal(t, 3, h.Len())
	list := h.List(0)
	require.Len(t, list, 3)
	assert.Equal(t, "run-4", list[0].RunID, "newest first")
	assert.Equal(t, "run-2", list[2].RunID)

	assert.Len(t, h.List(2), 2)

	_, ok := h.Get("run-0")
	assert.False(t, ok, "evicted")
	r, ok := h.Get("run-3")
	require.True(t, ok)
	assert.Equal(t, "run-3", r.RunID)
}

func TestManagerRunsInBackground(t *testing.T) {
	h := newHarness(t, 0)
	m := NewManager(context.Background(), h.orch, logger.NewNop())

	id, err := m.Start(RunConfig{})
	require.NoError(t, err)
	require.NoError(t, m.Wait(context.Background()))

	status, err := m.Status(id)
	require.NoError(t, err)
	assert.Equal(t, contracts.StageDone, status.State)
	require.NotNil(t, status.Result)
	assert.Equal(t, 3, status.Result.Summary.Ranked)

	_, active := m.Active()
	assert.False(t, active)
}

func TestManagerRejectsConcurrentRuns(t *testing.T) {
	h := newHarness(t, 0)
	h.llm.gate = make(chan struct{})
	m := NewManager(context.Background(), h.orch, logger.NewNop())

	id, err := m.Start(RunConfig{})
	require.NoError(t, err)

	_, err = m.Start(RunConfig{})
	assert.ErrorIs(t, err, ErrRunInProgress)

	_, err = m.RunSync(context.Background(), RunConfig{})
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(h.llm.gate)
	require.NoError(t, m.Wait(context.Background()))

	status, err := m.Status(id)
	require.NoError(t, err)
	assert.Equal(t, contracts.StageDone, status.State)
}

func TestManagerCancel(t *testing.T) {
	h := newHarness(t, 0)
	h.llm.gate = make(chan struct{})
	defer close(h.llm.gate)
	m := NewManager(context.Background(), h.orch, logger.NewNop())

	id, err := m.Start(RunConfig{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, err := m.Status(id)
		return err == nil && status.State == contracts.StageQualitative
	}, time.Second, time.Millisecond)

	require.NoError(t, m.Cancel(id))
	require.NoError(t, m.Wait(context.Background()))

	status, err := m.Status(id)
	require.NoError(t, err)
	assert.Equal(t, contracts.StageCancelled, status.State)

	// cancelling a finished run is a no-op, an unknown one is an error
	assert.NoError(t, m.Cancel(id))
	assert.ErrorIs(t, m.Cancel("missing"), ErrRunNotFound)

	_, err = m.Status("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
