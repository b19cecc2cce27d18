package contracts

import "time"

// MacroIndicators is what the macro data provider returns
type MacroIndicators struct {
	InterestRate  float64   `json:"interest_rate"`
	InflationRate float64   `json:"inflation_rate"`
	ObservedAt    time.Time `json:"observed_at"`
}

// MacroContext holds sector weights for the current macro regime.
// Every weight is within [MinSectorWeight, MaxSectorWeight].
// ⭐ SSOT: macro builder → merge
type MacroContext struct {
	InterestRate     float64            `json:"interest_rate"`
	InflationRate    float64            `json:"inflation_rate"`
	SectorWeights    map[string]float64 `json:"sector_weights"`
	FavoredSectors   []string           `json:"favored_sectors"`
	UnfavoredSectors []string           `json:"unfavored_sectors"`
	ComputedAt       time.Time          `json:"computed_at"`
	Neutral          bool               `json:"neutral,omitempty"` // fallback, provider unavailable
}

const (
	MinSectorWeight     = 0.5
	MaxSectorWeight     = 1.5
	NeutralSectorWeight = 1.0
)

// WeightFor returns the sector multiplier, neutral for unknown sectors
func (m *MacroContext) WeightFor(sector string) float64 {
	if m == nil {
		return NeutralSectorWeight
	}
	if w, ok := m.SectorWeights[sector]; ok {
		return w
	}
	return NeutralSectorWeight
}
