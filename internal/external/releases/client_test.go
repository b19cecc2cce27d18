package releases

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/pkg/config"
	"github.com/wonny/alphaterminal/backend/pkg/httputil"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

const page = `<html><head><title>RI</title><script>var tracking = 1;</script></head>
<body>
  <nav>Home | Investors</nav>
  <article>
    <h1>3Q26 Results</h1>
    <p>Net revenue grew   18%   year over year.</p>
    <p>New plant in Jaraguá starts operating in 2027.</p>
  </article>
  <footer>© Company</footer>
</body></html>`

func newTestClient(t *testing.T, maxChars int, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{Retry: config.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond}}
	return NewClient(
		httputil.New(cfg, logger.NewNop()),
		config.ReleasesConfig{URLTemplate: srv.URL + "/ri/%s", MaxChars: maxChars},
		logger.NewNop(),
	)
}

func TestExtractText(t *testing.T) {
	text, err := ExtractText(strings.NewReader(page))

	require.NoError(t, err)
	assert.Equal(t, "3Q26 Results Net revenue grew 18% year over year. New plant in Jaraguá starts operating in 2027.", text)
	assert.NotContains(t, text, "tracking")
	assert.NotContains(t, text, "Investors")
}

func TestExtractTextFallsBackToBody(t *testing.T) {
	text, err := ExtractText(strings.NewReader(`<html><body><div>Only body text</div><footer>x</footer></body></html>`))

	require.NoError(t, err)
	assert.Equal(t, "Only body text", text)
}

func TestExcerpt(t *testing.T) {
	c := newTestClient(t, 12, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ri/wege3", r.URL.Path)
		_, _ = w.Write([]byte(page))
	})

	excerpt, err := c.Excerpt(context.Background(), "WEGE3")

	require.NoError(t, err)
	assert.Equal(t, "3Q26 Results", excerpt)
}

func TestExcerptMissingPage(t *testing.T) {
	c := newTestClient(t, 100, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	excerpt, err := c.Excerpt(context.Background(), "XXXX3")

	require.NoError(t, err)
	assert.Empty(t, excerpt)
}

func TestExcerptServerError(t *testing.T) {
	c := newTestClient(t, 100, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Excerpt(context.Background(), "WEGE3")
	assert.True(t, contracts.IsTransient(err))
}

func TestDisabledClient(t *testing.T) {
	c := NewClient(nil, config.ReleasesConfig{}, logger.NewNop())

	excerpt, err := c.Excerpt(context.Background(), "WEGE3")

	require.NoError(t, err)
	assert.Empty(t, excerpt)
	assert.False(t, c.Enabled())
}
