package qualitative

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/pkg/numeric"
)

var (
	fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	bareObject = regexp.MustCompile(`(?s)\{.*\}`)
)

// response is the provider's JSON shape. Pointers distinguish missing fields.
type response struct {
	Score          *float64          `json:"score"`
	Recommendation *string           `json:"recommendation"`
	CeilingPrice   *float64          `json:"ceiling_price"`
	Upside         *float64          `json:"upside"`
	Catalysts      []json.RawMessage `json:"catalysts"`
	Risks          []string          `json:"risks"`
	Summary        string            `json:"summary"`
	Thesis         string            `json:"thesis"`
	DividendTrap   bool              `json:"dividend_trap"`
}

// Parse extracts an assessment from a raw completion.
// Missing score, recommendation or ceiling_price is a ParseError;
// the score is clamped to [0,10].
func Parse(ticker, raw string) (*contracts.QualitativeAssessment, error) {
	body := extractJSON(raw)
	if body == "" {
		return nil, &contracts.ParseError{Ticker: ticker, Reason: "no JSON object in response"}
	}

	var r response
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, &contracts.ParseError{Ticker: ticker, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	var missing []string
	if r.Score == nil {
		missing = append(missing, "score")
	}
	if r.Recommendation == nil || strings.TrimSpace(*r.Recommendation) == "" {
		missing = append(missing, "recommendation")
	}
	if r.CeilingPrice == nil {
		missing = append(missing, "ceiling_price")
	}
	if len(missing) > 0 {
		return nil, &contracts.ParseError{Ticker: ticker, Reason: "missing " + strings.Join(missing, ", ")}
	}
	if *r.CeilingPrice <= 0 {
		return nil, &contracts.ParseError{Ticker: ticker, Reason: "ceiling_price must be positive"}
	}

	catalysts, err := parseCatalysts(r.Catalysts)
	if err != nil {
		return nil, &contracts.ParseError{Ticker: ticker, Reason: err.Error()}
	}

	thesis := r.Thesis
	if thesis == "" {
		thesis = r.Summary
	}

	a := &contracts.QualitativeAssessment{
		Ticker:         ticker,
		Score:          numeric.Round2(numeric.Clamp(*r.Score, 0, 10)),
		Recommendation: strings.ToUpper(strings.TrimSpace(*r.Recommendation)),
		CeilingPrice:   numeric.Round2(*r.CeilingPrice),
		Catalysts:      catalysts,
		Risks:          r.Risks,
		Thesis:         strings.TrimSpace(thesis),
		DividendTrap:   r.DividendTrap,
	}
	if r.Upside != nil {
		a.Upside = numeric.Round2(*r.Upside)
	}
	if a.Risks == nil {
		a.Risks = []string{}
	}
	return a, nil
}

// extractJSON strips markdown fences or surrounding prose
func extractJSON(raw string) string {
	text := strings.TrimSpace(raw)
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	return bareObject.FindString(text)
}

// catalysts may be plain strings or {type, description, impact} objects
func parseCatalysts(items []json.RawMessage) ([]contracts.Catalyst, error) {
	out := make([]contracts.Catalyst, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, contracts.Catalyst{Description: s})
			}
			continue
		}

		var c contracts.Catalyst
		if err := json.Unmarshal(item, &c); err != nil {
			return nil, fmt.Errorf("catalyst is neither string nor object: %s", item)
		}
		out = append(out, c)
	}
	return out, nil
}
