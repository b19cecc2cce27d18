package contracts

import "time"

// Stage 정의 (SSOT)
// Every log line, snapshot and stored run uses these constants.
//
// Run flow:
//   INIT → QUANT_FILTER → MACRO_CONTEXT → QUALITATIVE → SENTIMENT → PRICE_ALERT → MERGE → PERSIST → DONE
//   any stage → FAILED (strict mode) / CANCELLED (context cancelled)

// Stage represents a run state
type Stage string

const (
	StageInit Stage = "INIT"

	// StageQuantFilter: fundamentals → elite candidates with efficiency score
	// 위치: internal/selection/
	StageQuantFilter Stage = "QUANT_FILTER"

	// StageMacroContext: interest/inflation → sector weights
	// 위치: internal/macro/
	StageMacroContext Stage = "MACRO_CONTEXT"

	// StageQualitative: per-candidate catalyst assessment (rate-limited, concurrent)
	// 위치: internal/qualitative/
	StageQualitative Stage = "QUALITATIVE"

	// StageSentiment: mention-volume herd screening
	// 위치: internal/sentiment/
	StageSentiment Stage = "SENTIMENT"

	// StagePriceAlert: fair value, ceiling, recommendation
	// 위치: internal/pricing/
	StagePriceAlert Stage = "PRICE_ALERT"

	// StageMerge: composite score and final rank
	StageMerge Stage = "MERGE"

	// StagePersist: atomic snapshot replacement
	// 위치: internal/snapshot/
	StagePersist Stage = "PERSIST"

	StageDone      Stage = "DONE"
	StageFailed    Stage = "FAILED"
	StageCancelled Stage = "CANCELLED"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// IsTerminal reports whether a run in this state will not progress further
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed || s == StageCancelled
}

// AllStages returns the working stages in execution order
func AllStages() []Stage {
	return []Stage{
		StageQuantFilter,
		StageMacroContext,
		StageQualitative,
		StageSentiment,
		StagePriceAlert,
		StageMerge,
		StagePersist,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	switch Stage(s) {
	case StageInit, StageDone, StageFailed, StageCancelled:
		return true
	}
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}

// Mode selects how a run reacts to stage failures
type Mode string

const (
	// ModeStrict aborts on any stage validation failure
	ModeStrict Mode = "strict"
	// ModeIncremental tolerates partial completion and queues pending tickers
	ModeIncremental Mode = "incremental"
)

// ParseMode converts a config string, defaulting to incremental
func ParseMode(s string) Mode {
	if Mode(s) == ModeStrict {
		return ModeStrict
	}
	return ModeIncremental
}

// StageResult represents the outcome of a single stage execution
type StageResult struct {
	Stage       Stage                  `json:"stage"`
	Success     bool                   `json:"success"`
	InputCount  int                    `json:"input_count"`
	OutputCount int                    `json:"output_count"`
	Duration    time.Duration          `json:"duration_ns"`
	Error       string                 `json:"error,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}
