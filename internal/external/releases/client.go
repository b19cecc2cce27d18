package releases

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/alphaterminal/backend/internal/external"
	"github.com/wonny/alphaterminal/backend/pkg/config"
	"github.com/wonny/alphaterminal/backend/pkg/httputil"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

const providerName = "releases"

// maxPageBytes caps how much of an investor-relations page is parsed
const maxPageBytes = 4 << 20

// noise holds elements that never carry release text
const noise = "script, style, noscript, nav, header, footer, aside, form, iframe"

// contentSelectors are tried in order; the first non-empty match wins
var contentSelectors = []string{"article", "main", "#content", ".content", "body"}

// Client turns a ticker's investor-relations page into a plain-text excerpt
// ⭐ SSOT: release excerpt extraction lives here only
type Client struct {
	httpClient  *httputil.Client
	logger      *logger.Logger
	urlTemplate string
	maxChars    int
}

// NewClient creates a new release excerpt client
func NewClient(httpClient *httputil.Client, cfg config.ReleasesConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient:  httpClient,
		logger:      log.WithComponent("releases"),
		urlTemplate: cfg.URLTemplate,
		maxChars:    cfg.MaxChars,
	}
}

// Enabled reports whether a URL template is configured
func (c *Client) Enabled() bool {
	return c != nil && c.urlTemplate != ""
}

// Excerpt implements contracts.ExcerptSource. A missing page yields "".
func (c *Client) Excerpt(ctx context.Context, ticker string) (string, error) {
	if !c.Enabled() {
		return "", nil
	}

	pageURL := fmt.Sprintf(c.urlTemplate, strings.ToLower(ticker))
	resp, err := c.httpClient.Get(ctx, pageURL)
	if err != nil {
		return "", external.ProviderError(providerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.logger.WithField("ticker", ticker).Debug("No release page")
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", external.ProviderError(providerName, &httputil.StatusError{StatusCode: resp.StatusCode, URL: pageURL})
	}

	text, err := ExtractText(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("parse release page for %s: %w", ticker, err)
	}

	excerpt := truncate(text, c.maxChars)
	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"chars":  len([]rune(excerpt)),
	}).Debug("Release excerpt extracted")

	return excerpt, nil
}

// ExtractText returns the readable text of an HTML page with whitespace collapsed
func ExtractText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find(noise).Remove()

	for _, sel := range contentSelectors {
		var parts []string
		doc.Find(sel).Each(func(i int, s *goquery.Selection) {
			if t := strings.Join(strings.Fields(s.Text()), " "); t != "" {
				parts = append(parts, t)
			}
		})
		if len(parts) > 0 {
			return strings.Join(parts, "\n"), nil
		}
	}
	return "", nil
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
