package contracts

import "time"

// TopPick is the merged view of a ticker across every stage
// ⭐ SSOT: merge → snapshot → query surface
type TopPick struct {
	Ticker         string                 `json:"ticker"`
	Sector         string                 `json:"sector,omitempty"`
	Rank           int                    `json:"rank"` // 1-based
	CompositeScore float64                `json:"composite_score"`
	Efficiency     EfficiencyScore        `json:"efficiency"`
	SectorWeight   float64                `json:"sector_weight"`
	Qualitative    *QualitativeAssessment `json:"qualitative,omitempty"`
	Sentiment      *SentimentResult       `json:"sentiment,omitempty"`
	Alert          *PriceAlert            `json:"alert,omitempty"`

	// Pending marks a pick whose qualitative analysis failed this run;
	// Qualitative then holds the last known assessment, or nil.
	Pending bool `json:"pending,omitempty"`
}

// IsTopRanked checks if the pick is in top N ranks
func (p *TopPick) IsTopRanked(n int) bool {
	return p.Rank <= n && p.Rank > 0
}

// FailedTicker names a ticker left out of a run and why
type FailedTicker struct {
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}

// RunSummary is the best-effort accounting every run reports
type RunSummary struct {
	Ranked        int            `json:"ranked"`
	CacheReused   int            `json:"cache_reused"`
	NewlyAnalyzed int            `json:"newly_analyzed"`
	Failed        []FailedTicker `json:"failed"`
	Pending       []string       `json:"pending,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
}

// Snapshot is the persisted ranking document, replaced atomically per run
type Snapshot struct {
	RunID        string        `json:"run_id"`
	Timestamp    time.Time     `json:"timestamp"`
	Mode         Mode          `json:"mode"`
	Partial      bool          `json:"partial"`
	TotalRanked  int           `json:"total_ranked"`
	AverageScore float64       `json:"average_score"`
	Ranking      []TopPick     `json:"ranking"`
	Macro        *MacroContext `json:"macro,omitempty"`
	Summary      RunSummary    `json:"summary"`
	ConfigHash   string        `json:"config_hash,omitempty"` // tunables the ranking was produced with
}

// Top returns at most n picks in rank order
func (s *Snapshot) Top(n int) []TopPick {
	if n <= 0 || n >= len(s.Ranking) {
		return s.Ranking
	}
	return s.Ranking[:n]
}
