// Package external holds the clients for third-party data providers.
package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/pkg/httputil"
)

// ProviderError maps an httputil failure onto the provider error taxonomy:
// auth and billing statuses are permanent, other 4xx are plain request
// errors, everything else (5xx, 429, timeouts, transport, bad payloads) is
// transient. Cancellation passes through untouched.
// ⭐ SSOT: HTTP provider error classification
func ProviderError(provider string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}

	var se *httputil.StatusError
	if errors.As(err, &se) && !se.Temporary() {
		switch se.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusPaymentRequired:
			return &contracts.PermanentProviderError{Provider: provider, Err: err}
		default:
			return fmt.Errorf("%s: request rejected: %w", provider, err)
		}
	}

	return &contracts.TransientProviderError{Provider: provider, Err: err}
}
