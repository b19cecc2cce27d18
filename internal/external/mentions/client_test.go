package mentions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/pkg/config"
	"github.com/wonny/alphaterminal/backend/pkg/httputil"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

func newTestClient(t *testing.T, apiKey string, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{Retry: config.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond}}
	return NewClient(
		httputil.New(cfg, logger.NewNop()),
		config.MentionsConfig{BaseURL: srv.URL, APIKey: apiKey, Window: "24h"},
		logger.NewNop(),
	)
}

func TestMentions(t *testing.T) {
	c := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mentions", r.URL.Path)
		assert.Equal(t, "PETR4", r.URL.Query().Get("ticker"))
		assert.Equal(t, "24h", r.URL.Query().Get("window"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"ticker":"PETR4","count":150}`))
	})

	n, err := c.Mentions(context.Background(), "PETR4")

	require.NoError(t, err)
	assert.Equal(t, 150, n)
}

func TestMentionsLegacyField(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"ticker":"VALE3","mentions":0}`))
	})

	n, err := c.Mentions(context.Background(), "VALE3")

	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMentionsErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		permanent bool
		transient bool
	}{
		{"missing count", http.StatusOK, `{"ticker":"X"}`, false, true},
		{"bad key", http.StatusUnauthorized, `{}`, true, false},
		{"unavailable", http.StatusServiceUnavailable, ``, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, "k", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Mentions(context.Background(), "X")

			require.Error(t, err)
			assert.Equal(t, tt.permanent, contracts.IsPermanent(err))
			assert.Equal(t, tt.transient, contracts.IsTransient(err))
		})
	}
}
