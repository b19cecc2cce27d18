package qualitative

import (
	"fmt"
	"strings"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
)

// MaxExcerptRunes bounds the source document sent with a request
const MaxExcerptRunes = 8000

const systemPrompt = `You are a buy-side equity analyst who identifies value catalysts.
Answer with a single JSON object and nothing else.`

const responseSchema = `{
  "score": 0-10,
  "recommendation": "BUY|HOLD|SELL",
  "ceiling_price": number,
  "upside": number (percent),
  "catalysts": [{"type": "expansion|new_contract|operating_leverage|innovation", "description": "...", "impact": "high|medium|low"}],
  "risks": ["..."],
  "summary": "2-3 sentence thesis",
  "dividend_trap": boolean
}`

// BuildCompletion renders the structured-extraction prompt for a ticker
func BuildCompletion(req contracts.AnalysisRequest) contracts.Completion {
	f := req.Fundamentals

	var b strings.Builder
	fmt.Fprintf(&b, "Ticker: %s\n", req.Ticker)
	fmt.Fprintf(&b, "Sector: %s\n", orUnknown(req.Sector))
	fmt.Fprintf(&b, "Valuation multiple: %.2f\n", f.Valuation)
	fmt.Fprintf(&b, "ROE: %.2f%%\n", f.ROE)
	fmt.Fprintf(&b, "Growth (CAGR): %.2f%%\n", f.Growth)
	fmt.Fprintf(&b, "Leverage: %.2f\n", f.Leverage)
	if f.Price != nil {
		fmt.Fprintf(&b, "Current price: %.2f\n", *f.Price)
	}
	if f.DividendYield != nil {
		fmt.Fprintf(&b, "Dividend yield: %.2f%%\n", *f.DividendYield)
	}
	fmt.Fprintf(&b, "Efficiency score: %.2f\n\n", req.Efficiency)

	b.WriteString("Criteria:\n")
	b.WriteString("1. Look for expansion, new contracts, operating leverage and innovation.\n")
	b.WriteString("2. Ignore theses that rest only on dividends.\n")
	b.WriteString("3. If the story is dividends without growth, set dividend_trap to true.\n")
	b.WriteString("4. Score 0 to 10 by catalyst strength.\n\n")
	b.WriteString("Respond with JSON matching:\n")
	b.WriteString(responseSchema)

	if excerpt := truncateRunes(strings.TrimSpace(req.Excerpt), MaxExcerptRunes); excerpt != "" {
		b.WriteString("\n\nInvestor relations excerpt:\n")
		b.WriteString(excerpt)
	}

	return contracts.Completion{System: systemPrompt, User: b.String()}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
