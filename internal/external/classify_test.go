package external

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/pkg/httputil"
	"github.com/wonny/alphaterminal/backend/pkg/retry"
)

func TestProviderError(t *testing.T) {
	status := func(code int) error { return &httputil.StatusError{StatusCode: code, URL: "http://x"} }

	tests := []struct {
		name      string
		err       error
		permanent bool
		transient bool
	}{
		{"unauthorized", status(401), true, false},
		{"forbidden", fmt.Errorf("wrapped: %w", status(403)), true, false},
		{"not found", status(404), false, false},
		{"server error", status(503), false, true},
		{"exhausted retries", &retry.ExhaustedError{Attempts: 3, Err: status(502)}, false, true},
		{"transport", errors.New("connection reset by peer"), false, true},
		{"deadline", context.DeadlineExceeded, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ProviderError("bcb", tt.err)

			assert.Error(t, err)
			assert.Equal(t, tt.permanent, contracts.IsPermanent(err))
			assert.Equal(t, tt.transient, contracts.IsTransient(err))
		})
	}

	assert.Nil(t, ProviderError("bcb", nil))
	assert.Equal(t, context.Canceled, ProviderError("bcb", context.Canceled))
}
