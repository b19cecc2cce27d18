package sentiment

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
	"github.com/wonny/alphaterminal/backend/pkg/numeric"
	"github.com/wonny/alphaterminal/backend/pkg/redis"
)

// Config holds the screener tunables
type Config struct {
	Threshold   float64 // ratio at or above which herd risk is flagged
	Alpha       float64 // EMA smoothing factor
	MinBaseline float64 // denominator floor; also the baseline of a ticker seen with zero mentions
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Threshold:   3.0,
		Alpha:       0.1,
		MinBaseline: 1.0,
	}
}

// elevatedFraction of the threshold marks the ELEVATED band
const elevatedFraction = 0.7

// Screener keeps a per-ticker EMA mention baseline and flags herd spikes.
// Analyze is stateful: every call moves the baseline.
// ⭐ SSOT: sentiment state lives here only, mutated under per-ticker locks
type Screener struct {
	provider contracts.MentionProvider
	cfg      Config
	l2       *redis.Cache
	logger   *logger.Logger

	mu     sync.Mutex // guards states and locks maps
	states map[string]*contracts.SentimentState
	locks  map[string]*sync.Mutex
}

// NewScreener creates a screener. l2 may be nil or disabled.
func NewScreener(provider contracts.MentionProvider, cfg Config, l2 *redis.Cache, log *logger.Logger) *Screener {
	return &Screener{
		provider: provider,
		cfg:      cfg,
		l2:       l2,
		logger:   log.WithComponent("sentiment"),
		states:   make(map[string]*contracts.SentimentState),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Analyze fetches the ticker's current mentions and classifies them
// against the pre-update baseline, then folds them into the baseline.
// A provider failure leaves the state untouched.
func (s *Screener) Analyze(ctx context.Context, ticker string) (*contracts.SentimentResult, error) {
	ticker = contracts.NormalizeTicker(ticker)

	count, err := s.provider.Mentions(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("mentions for %s: %w", ticker, err)
	}
	if count < 0 {
		return nil, &contracts.ValidationError{Entity: ticker, Field: "mentions", Reason: fmt.Sprintf("negative count %d", count)}
	}

	if !s.known(ticker) {
		s.restoreFromL2(ctx, ticker)
	}

	result, state := s.Observe(ticker, count)

	if err := s.l2.Set(ctx, redis.BaselineKey(ticker), state, 0); err != nil {
		s.logger.WithError(err).WithField("ticker", ticker).Warn("Failed to persist sentiment baseline")
	}

	if result.HerdRisk {
		s.logger.WithFields(map[string]interface{}{
			"ticker":   ticker,
			"mentions": count,
			"baseline": result.Baseline,
			"ratio":    result.Ratio,
		}).Warn("Herd risk detected")
	}
	return result, nil
}

// Observe classifies count and updates the baseline, without I/O
func (s *Screener) Observe(ticker string, count int) (*contracts.SentimentResult, contracts.SentimentState) {
	lock := s.keyLock(ticker)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	var st contracts.SentimentState
	prev, seen := s.states[ticker]
	if seen {
		st = *prev
	}
	s.mu.Unlock()

	current := float64(count)
	baseline := current // the first observation establishes the baseline
	if seen {
		baseline = st.Baseline
	}

	ratio := current / max(baseline, s.cfg.MinBaseline)
	level := s.classify(ratio)

	st.Ticker = ticker
	if seen {
		st.Baseline = s.cfg.Alpha*current + (1-s.cfg.Alpha)*st.Baseline
	} else {
		st.Baseline = current
	}
	st.LastRatio = numeric.Round2(ratio)
	st.HerdRisk = level == contracts.SentimentHerdRisk
	st.Observations++

	s.mu.Lock()
	s.states[ticker] = &st
	s.mu.Unlock()

	return &contracts.SentimentResult{
		Ticker:   ticker,
		Mentions: count,
		Baseline: baseline,
		Ratio:    numeric.Round2(ratio),
		Level:    level,
		HerdRisk: level == contracts.SentimentHerdRisk,
	}, st
}

func (s *Screener) classify(ratio float64) contracts.SentimentLevel {
	switch {
	case ratio >= s.cfg.Threshold:
		return contracts.SentimentHerdRisk
	case ratio >= elevatedFraction*s.cfg.Threshold:
		return contracts.SentimentElevated
	default:
		return contracts.SentimentNormal
	}
}

// Restore seeds a ticker's state (e.g. from redis) unless it is already known
func (s *Screener) Restore(state contracts.SentimentState) {
	ticker := contracts.NormalizeTicker(state.Ticker)
	lock := s.keyLock(ticker)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[ticker]; ok {
		return
	}
	state.Ticker = ticker
	s.states[ticker] = &state
}

// State returns a copy of a ticker's state
func (s *Screener) State(ticker string) (contracts.SentimentState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[contracts.NormalizeTicker(ticker)]
	if !ok {
		return contracts.SentimentState{}, false
	}
	return *st, true
}

// States returns copies of all states ordered by ticker
func (s *Screener) States() []contracts.SentimentState {
	s.mu.Lock()
	out := make([]contracts.SentimentState, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, *st)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// Reset forgets every baseline. Nothing calls this automatically.
func (s *Screener) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = make(map[string]*contracts.SentimentState)
	s.locks = make(map[string]*sync.Mutex)
}

func (s *Screener) known(ticker string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.states[ticker]
	return ok
}

func (s *Screener) keyLock(ticker string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[ticker]
	if !ok {
		l = &sync.Mutex{}
		s.locks[ticker] = l
	}
	return l
}

func (s *Screener) restoreFromL2(ctx context.Context, ticker string) {
	if !s.l2.Enabled() {
		return
	}
	var st contracts.SentimentState
	found, err := s.l2.Get(ctx, redis.BaselineKey(ticker), &st)
	if err != nil {
		s.logger.WithError(err).WithField("ticker", ticker).Warn("Failed to load sentiment baseline")
		return
	}
	if found {
		s.Restore(st)
	}
}
