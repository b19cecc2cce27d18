package contracts

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name      string
		err       error
		transient bool
		permanent bool
	}{
		{"transient", &TransientProviderError{Provider: "llm", Err: base}, true, false},
		{"wrapped transient", fmt.Errorf("attempt 2: %w", &TransientProviderError{Provider: "llm", Err: base}), true, false},
		{"parse", &ParseError{Ticker: "WEGE3", Reason: "missing score"}, true, false},
		{"permanent", &PermanentProviderError{Provider: "llm", Err: base}, false, true},
		{"plain", base, false, false},
		{"cancelled", context.Canceled, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, IsTransient(tt.err))
			assert.Equal(t, tt.permanent, IsPermanent(tt.err))
		})
	}
}

func TestStageErrorUnwrap(t *testing.T) {
	err := &StageError{Stage: StageMacroContext, Err: ErrNoSnapshot}

	assert.ErrorIs(t, err, ErrNoSnapshot)
	assert.Contains(t, err.Error(), "MACRO_CONTEXT")
}

func TestStage(t *testing.T) {
	assert.True(t, StageDone.IsTerminal())
	assert.True(t, StageCancelled.IsTerminal())
	assert.False(t, StageMerge.IsTerminal())

	assert.True(t, IsValidStage("QUALITATIVE"))
	assert.True(t, IsValidStage("FAILED"))
	assert.False(t, IsValidStage("S3_SCREENER"))

	assert.Equal(t, ModeStrict, ParseMode("strict"))
	assert.Equal(t, ModeIncremental, ParseMode("anything"))
}

func TestMacroContextWeightFor(t *testing.T) {
	var nilCtx *MacroContext
	assert.Equal(t, 1.0, nilCtx.WeightFor("Energy"))

	m := &MacroContext{SectorWeights: map[string]float64{"Energy": 1.2}}
	assert.Equal(t, 1.2, m.WeightFor("Energy"))
	assert.Equal(t, 1.0, m.WeightFor("Unknown"))
}

func TestSnapshotTop(t *testing.T) {
	s := &Snapshot{Ranking: []TopPick{{Ticker: "A", Rank: 1}, {Ticker: "B", Rank: 2}, {Ticker: "C", Rank: 3}}}

	assert.Len(t, s.Top(2), 2)
	assert.Len(t, s.Top(0), 3)
	assert.Len(t, s.Top(10), 3)
	assert.True(t, s.Ranking[0].IsTopRanked(1))
}
