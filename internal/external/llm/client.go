package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/sony/gobreaker/v2"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/internal/metrics"
	"github.com/wonny/alphaterminal/backend/pkg/config"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

// chatClient is the slice of the OpenAI SDK the provider uses (fakeable in tests)
type chatClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

type sdkClient struct {
	client openai.Client
}

func (c *sdkClient) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}

// Provider is one credential on an OpenAI-compatible chat completion API.
// Failures are classified as transient or permanent provider errors.
// ⭐ SSOT: text-generation transport lives here only
type Provider struct {
	name        string
	client      chatClient
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	breaker     *gobreaker.CircuitBreaker[string]
	metrics     *metrics.Metrics
	logger      *logger.Logger
}

// NewProviders creates one provider per configured API key.
// The SDK's own retries are disabled: the analyzer owns the retry policy.
func NewProviders(cfg *config.Config, m *metrics.Metrics, log *logger.Logger) []contracts.TextProvider {
	providers := make([]contracts.TextProvider, 0, len(cfg.LLM.APIKeys))
	for i, key := range cfg.LLM.APIKeys {
		client := openai.NewClient(
			option.WithAPIKey(key),
			option.WithBaseURL(cfg.LLM.BaseURL),
			option.WithMaxRetries(0),
		)
		name := fmt.Sprintf("llm-%d", i+1)
		providers = append(providers, newProvider(name, &sdkClient{client: client}, cfg.LLM, m, log))
	}
	return providers
}

func newProvider(name string, client chatClient, cfg config.LLMConfig, m *metrics.Metrics, log *logger.Logger) *Provider {
	p := &Provider{
		name:        name,
		client:      client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		metrics:     m,
		logger:      log.WithComponent("llm").WithField("provider", name),
	}
	p.breaker = gobreaker.NewCircuitBreaker[string](p.breakerSettings())
	return p
}

func (p *Provider) breakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        p.name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// caller cancellations and credential errors say nothing about endpoint health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || contracts.IsPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.WithFields(map[string]interface{}{
				"from": from.String(),
				"to":   to.String(),
			}).Warn("Circuit breaker state change")
			p.metrics.SetCircuitBreakerState(name, stateToInt(to))
			if to == gobreaker.StateOpen {
				p.metrics.RecordCircuitBreakerTrip(name)
			}
		},
	}
}

// Name implements contracts.TextProvider
func (p *Provider) Name() string {
	return p.name
}

// Complete implements contracts.TextProvider
func (p *Provider) Complete(ctx context.Context, c contracts.Completion) (string, error) {
	start := time.Now()

	text, err := p.breaker.Execute(func() (string, error) {
		return p.complete(ctx, c)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &contracts.TransientProviderError{Provider: p.name, Err: err}
	}

	p.metrics.RecordProviderRequest(p.name, resultLabel(err), time.Since(start))
	if err != nil {
		return "", err
	}
	return text, nil
}

func (p *Provider) complete(ctx context.Context, c contracts.Completion) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	callCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.System),
			openai.UserMessage(c.User),
		},
		Temperature: openai.Float(p.temperature),
	}
	if p.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.maxTokens))
	}

	completion, err := p.client.CreateChatCompletion(callCtx, params)
	if err != nil {
		// the run was cancelled, not the provider's fault
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", p.classify(err)
	}

	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return "", &contracts.TransientProviderError{Provider: p.name, Err: errors.New("empty completion")}
	}
	return completion.Choices[0].Message.Content, nil
}

// classify maps SDK errors onto the provider error taxonomy.
// Auth and quota failures are permanent for the run; timeouts, 429 and 5xx are transient.
func (p *Provider) classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
			return &contracts.PermanentProviderError{Provider: p.name, Err: err}
		case apiErr.StatusCode == http.StatusPaymentRequired, isQuotaExhausted(apiErr):
			return &contracts.PermanentProviderError{Provider: p.name, Err: err}
		case apiErr.StatusCode == http.StatusTooManyRequests, apiErr.StatusCode == http.StatusRequestTimeout:
			return &contracts.TransientProviderError{Provider: p.name, Err: err}
		case apiErr.StatusCode >= 500:
			return &contracts.TransientProviderError{Provider: p.name, Err: err}
		default:
			// malformed request: retrying the same prompt will not help
			return fmt.Errorf("%s: request rejected: %w", p.name, err)
		}
	}

	// timeouts, connection resets and other transport failures
	return &contracts.TransientProviderError{Provider: p.name, Err: err}
}

func isQuotaExhausted(apiErr *openai.Error) bool {
	code := strings.ToLower(apiErr.Code + " " + apiErr.Type + " " + apiErr.Message)
	return strings.Contains(code, "insufficient_quota") || strings.Contains(code, "billing")
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case contracts.IsPermanent(err):
		return "permanent"
	case contracts.IsTransient(err):
		return "transient"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}

// stateToInt converts a breaker state for the gauge: 0=closed, 1=half-open, 2=open
func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
