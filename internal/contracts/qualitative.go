package contracts

import "time"

// Catalyst is a single qualitative driver extracted by the analysis provider
type Catalyst struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Impact      string `json:"impact"` // estimated impact, free text (e.g. "high", "+10% EBITDA")
}

// QualitativeAssessment is the parsed catalyst analysis for one ticker,
// produced at most once per ticker per cache epoch.
// ⭐ SSOT: qualitative analyzer → pricing / merge
type QualitativeAssessment struct {
	Ticker         string     `json:"ticker"`
	Score          float64    `json:"score"` // [0,10]
	Recommendation string     `json:"recommendation"`
	CeilingPrice   float64    `json:"ceiling_price"`
	Upside         float64    `json:"upside"`
	Catalysts      []Catalyst `json:"catalysts"`
	Risks          []string   `json:"risks"`
	Thesis         string     `json:"thesis"`
	DividendTrap   bool       `json:"dividend_trap"`

	Fingerprint string    `json:"fingerprint"` // inputs hash; a change invalidates the cache entry
	AnalyzedAt  time.Time `json:"analyzed_at"`
}

// AnalysisRequest is everything the analyzer sends about a ticker
type AnalysisRequest struct {
	Ticker       string            `json:"ticker"`
	Sector       string            `json:"sector"`
	Fundamentals FundamentalRecord `json:"fundamentals"`
	Efficiency   float64           `json:"efficiency_score"`
	Excerpt      string            `json:"excerpt,omitempty"`

	// ExcerptUnavailable marks a failed excerpt fetch. A missing excerpt
	// never invalidates a cached assessment; only a changed one does.
	ExcerptUnavailable bool `json:"excerpt_unavailable,omitempty"`
}

// Completion is a single prompt to the text-generation provider
type Completion struct {
	System string
	User   string
}

// QualitativeOutcome classifies how a ticker's assessment was obtained
type QualitativeOutcome string

const (
	OutcomeCached   QualitativeOutcome = "cached"
	OutcomeAnalyzed QualitativeOutcome = "analyzed"
	OutcomeFailed   QualitativeOutcome = "failed"
	OutcomeSkipped  QualitativeOutcome = "skipped" // provider disabled for the run
)
