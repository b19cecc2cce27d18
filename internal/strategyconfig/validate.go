package strategyconfig

import (
	"fmt"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	// === Screening ===
	if cfg.Screening.MaxValuation <= 0 {
		return ValidationError{"screening.max_valuation", "must be > 0"}
	}
	if cfg.Screening.MaxCandidates < 0 {
		return ValidationError{"screening.max_candidates", "must be >= 0"}
	}

	// === Ranking ===
	w := cfg.Ranking.Weights
	if w.Efficiency < 0 || w.Qualitative < 0 {
		return ValidationError{"ranking.weights", "must be >= 0"}
	}
	if w.Efficiency+w.Qualitative == 0 {
		return ValidationError{"ranking.weights", "must not both be zero"}
	}
	if err := validatePenalty(cfg.Ranking.Penalties.HerdRisk, "ranking.penalties.herd_risk"); err != nil {
		return err
	}
	if err := validatePenalty(cfg.Ranking.Penalties.DividendTrap, "ranking.penalties.dividend_trap"); err != nil {
		return err
	}

	// === Sentiment ===
	if cfg.Sentiment.Threshold <= 0 {
		return ValidationError{"sentiment.threshold", "must be > 0"}
	}
	if cfg.Sentiment.Alpha <= 0 || cfg.Sentiment.Alpha > 1 {
		return ValidationError{"sentiment.alpha", "must be in (0, 1]"}
	}
	if cfg.Sentiment.MinBaseline <= 0 {
		return ValidationError{"sentiment.min_baseline", "must be > 0"}
	}

	// === Pricing ===
	if cfg.Pricing.TargetReturn <= -1 {
		return ValidationError{"pricing.target_return", "must be > -1"}
	}
	if cfg.Pricing.SafetyMargin < 0 || cfg.Pricing.SafetyMargin >= 1 {
		return ValidationError{"pricing.safety_margin", "must be in [0, 1)"}
	}

	// === DividendTrap ===
	if cfg.DividendTrap.MinYield < 0 {
		return ValidationError{"dividend_trap.min_yield", "must be >= 0"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// 후보 무제한 → provider 쿼터 소진 위험
	if cfg.Screening.MaxCandidates == 0 {
		warnings = append(warnings, Warning{
			Code:    "UNBOUNDED_CANDIDATES",
			Message: "max_candidates = 0: every screened ticker is sent to the provider",
		})
	}

	if cfg.Ranking.Weights.Qualitative == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_QUALITATIVE_WEIGHT",
			Message: "qualitative weight is 0: provider calls do not affect the ranking",
		})
	}

	// 너무 빠른 EMA → 스파이크가 baseline에 흡수됨
	if cfg.Sentiment.Alpha > 0.5 {
		warnings = append(warnings, Warning{
			Code:    "FAST_BASELINE",
			Message: "sentiment alpha > 0.5: spikes are absorbed into the baseline quickly",
		})
	}

	if len(cfg.DividendTrap.Keywords) == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_TRAP_KEYWORDS",
			Message: "dividend_trap.keywords empty: thesis-based trap detection disabled",
		})
	}

	return warnings
}

// === Helper Functions ===

// validatePenalty는 패널티 배수가 (0, 1] 범위인지 검증
func validatePenalty(p float64, field string) error {
	if p <= 0 || p > 1 {
		return ValidationError{field, "must be in range (0, 1]"}
	}
	return nil
}
