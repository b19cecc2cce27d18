package macro

import (
	"sort"
	"strings"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/pkg/numeric"
)

// Neutral regime: weights are exactly 1.0 at these rates
const (
	NeutralInterest  = 9.0
	NeutralInflation = 4.5

	// sensitivity scale per unit of relative deviation
	deviationScale = 0.1

	listSize = 3
)

// SectorSensitivity is a sector's response to interest and inflation deviations
type SectorSensitivity struct {
	Sector    string
	Interest  float64
	Inflation float64
}

// DefaultSensitivities is the fixed 8-sector table, in presentation order
var DefaultSensitivities = []SectorSensitivity{
	{Sector: "Financials", Interest: 1.5, Inflation: -0.3},
	{Sector: "Construction", Interest: -1.8, Inflation: -0.5},
	{Sector: "Retail", Interest: -1.2, Inflation: -1.5},
	{Sector: "Technology", Interest: -0.8, Inflation: 0.2},
	{Sector: "Energy", Interest: 0.3, Inflation: 1.2},
	{Sector: "Healthcare", Interest: -0.2, Inflation: 0.5},
	{Sector: "Industrials", Interest: -0.6, Inflation: 0.8},
	{Sector: "Consumer", Interest: -1.0, Inflation: -1.3},
}

// sectorAliases maps lower-cased source labels to canonical sector names
var sectorAliases = map[string]string{
	"financials":   "Financials",
	"financial":    "Financials",
	"financeiro":   "Financials",
	"bancos":       "Financials",
	"construction": "Construction",
	"construção":   "Construction",
	"construcao":   "Construction",
	"retail":       "Retail",
	"varejo":       "Retail",
	"technology":   "Technology",
	"tecnologia":   "Technology",
	"energy":       "Energy",
	"energia":      "Energy",
	"healthcare":   "Healthcare",
	"health care":  "Healthcare",
	"saúde":        "Healthcare",
	"saude":        "Healthcare",
	"industrials":  "Industrials",
	"industrial":   "Industrials",
	"consumer":     "Consumer",
	"consumo":      "Consumer",
}

// CanonicalSector resolves a source label to its table name.
// Unknown labels are returned trimmed and get the neutral weight downstream.
func CanonicalSector(label string) string {
	trimmed := strings.TrimSpace(label)
	if canonical, ok := sectorAliases[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return trimmed
}

// CalculateSectorWeights applies the sensitivity table to the given rates.
// Every weight is clamped to [0.5, 1.5] and rounded to 2 decimals.
func CalculateSectorWeights(table []SectorSensitivity, interest, inflation float64) map[string]float64 {
	deltaInterest := (interest - NeutralInterest) / NeutralInterest
	deltaInflation := (inflation - NeutralInflation) / NeutralInflation

	weights := make(map[string]float64, len(table))
	for _, s := range table {
		w := 1.0 +
			s.Interest*deltaInterest*deviationScale +
			s.Inflation*deltaInflation*deviationScale
		w = numeric.Clamp(w, contracts.MinSectorWeight, contracts.MaxSectorWeight)
		weights[s.Sector] = numeric.Round2(w)
	}
	return weights
}

// RankSectors returns up to three sectors with weight > 1.0 (highest first)
// and up to three with weight < 1.0 taken from the bottom of the ordering.
// Ties keep table order.
func RankSectors(table []SectorSensitivity, weights map[string]float64) (favored, unfavored []string) {
	ordered := make([]string, 0, len(table))
	for _, s := range table {
		if _, ok := weights[s.Sector]; ok {
			ordered = append(ordered, s.Sector)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return weights[ordered[i]] > weights[ordered[j]]
	})

	favored = []string{}
	for _, s := range ordered[:min(listSize, len(ordered))] {
		if weights[s] > contracts.NeutralSectorWeight {
			favored = append(favored, s)
		}
	}

	unfavored = []string{}
	for _, s := range ordered[max(0, len(ordered)-listSize):] {
		if weights[s] < contracts.NeutralSectorWeight {
			unfavored = append(unfavored, s)
		}
	}
	return favored, unfavored
}
