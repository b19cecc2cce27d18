package contracts

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every stage
// ⭐ SSOT: stages classify failures with these types, the orchestrator reacts to them

var (
	// ErrStateInconsistency flags a broken invariant (e.g. a duplicate in-flight entry)
	ErrStateInconsistency = errors.New("state inconsistency")

	// ErrRunCancelled is reported for runs stopped by their caller
	ErrRunCancelled = errors.New("run cancelled")

	// ErrNoSnapshot is returned by repositories that have never persisted a run
	ErrNoSnapshot = errors.New("no snapshot available")

	// ErrProviderDisabled is returned when a permanent failure disabled dispatch for the run
	ErrProviderDisabled = errors.New("provider disabled for this run")
)

// ValidationError reports a malformed record or response; the entity is isolated
type ValidationError struct {
	Entity string // ticker or row reference
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s %s", e.Entity, e.Field, e.Reason)
}

// ParseError reports a provider response that does not match the assessment schema
type ParseError struct {
	Ticker string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse assessment for %s: %s", e.Ticker, e.Reason)
}

// TransientProviderError wraps timeouts, 5xx and rate-limit rejections
type TransientProviderError struct {
	Provider string
	Err      error
}

func (e *TransientProviderError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Provider, e.Err)
}

func (e *TransientProviderError) Unwrap() error { return e.Err }

// PermanentProviderError wraps auth and quota failures
type PermanentProviderError struct {
	Provider string
	Err      error
}

func (e *PermanentProviderError) Error() string {
	return fmt.Sprintf("%s: permanent failure: %v", e.Provider, e.Err)
}

func (e *PermanentProviderError) Unwrap() error { return e.Err }

// StageError records which stage a strict run failed in
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsTransient reports whether another attempt may succeed.
// Malformed responses count as transient: the provider may answer correctly next time.
func IsTransient(err error) bool {
	var t *TransientProviderError
	var p *ParseError
	return errors.As(err, &t) || errors.As(err, &p)
}

// IsPermanent reports whether the provider refuses this credential set
func IsPermanent(err error) bool {
	var p *PermanentProviderError
	return errors.As(err, &p)
}
