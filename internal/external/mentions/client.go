package mentions

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/internal/external"
	"github.com/wonny/alphaterminal/backend/pkg/config"
	"github.com/wonny/alphaterminal/backend/pkg/httputil"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

const providerName = "mentions"

// requestsPerSecond keeps bursts of sentiment lookups polite
const requestsPerSecond = 5

type countResponse struct {
	Ticker   string `json:"ticker"`
	Count    *int   `json:"count"`
	Mentions *int   `json:"mentions"` // older API versions
}

// Client queries a mention-volume API: GET {base}/mentions?ticker=T&window=W
// ⭐ SSOT: mention counts are fetched here only
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	window     string
}

// NewClient creates a new mention-volume client.
// The API key, when set, is sent as a bearer token.
func NewClient(httpClient *httputil.Client, cfg config.MentionsConfig, log *logger.Logger) *Client {
	httpClient.WithRateLimit(rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond))
	if cfg.APIKey != "" {
		httpClient.WithHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("mentions"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		window:     cfg.Window,
	}
}

// Mentions implements contracts.MentionProvider
func (c *Client) Mentions(ctx context.Context, ticker string) (int, error) {
	params := url.Values{}
	params.Set("ticker", ticker)
	if c.window != "" {
		params.Set("window", c.window)
	}
	fullURL := fmt.Sprintf("%s/mentions?%s", c.baseURL, params.Encode())

	start := time.Now()
	var resp countResponse
	if err := c.httpClient.GetJSON(ctx, fullURL, &resp); err != nil {
		return 0, external.ProviderError(providerName, err)
	}

	count := resp.Count
	if count == nil {
		count = resp.Mentions
	}
	if count == nil {
		return 0, &contracts.TransientProviderError{
			Provider: providerName, Err: fmt.Errorf("response for %s has no count", ticker),
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker":   ticker,
		"count":    *count,
		"duration": time.Since(start).String(),
	}).Debug("Mentions fetched")

	return *count, nil
}
