package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a failed external call.
type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindHardQuota   ErrorKind = "hard_quota"
	KindValidation  ErrorKind = "validation"
	KindCancelled   ErrorKind = "cancelled"
	KindOther       ErrorKind = "other"
)

var (
	// ErrCancelled marks a user-initiated abort. It is not shown as an error.
	ErrCancelled = errors.New("cancelled")
	// ErrRetriesExhausted is wrapped when the backoff schedule runs out.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrEmptyResponse is returned when the model produced no choices.
	ErrEmptyResponse = errors.New("empty model response")
)

var rateLimitTokens = []string{"429", "503", "resource_exhausted", "resource-exhausted", "resource exhausted", "quota"}

var hardQuotaTokens = []string{"daily limit", "plan and billing"}

// IsRateLimit reports whether an error message belongs to the rate-limit class.
func IsRateLimit(msg string) bool {
	msg = strings.ToLower(msg)
	for _, tok := range rateLimitTokens {
		if strings.Contains(msg, tok) {
			return true
		}
	}
	return false
}

// IsHardQuota reports whether a rate-limit-class message is a daily or
// billing quota that must never be retried.
func IsHardQuota(msg string) bool {
	if !IsRateLimit(msg) {
		return false
	}
	msg = strings.ToLower(msg)
	for _, tok := range hardQuotaTokens {
		if strings.Contains(msg, tok) {
			return true
		}
	}
	return false
}

// Classify maps a raw call error onto an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	msg := err.Error()
	if IsHardQuota(msg) {
		return KindHardQuota
	}
	if IsRateLimit(msg) {
		return KindRateLimited
	}
	return KindOther
}

// StageError is the only error shape that leaves a stage. Stage holds the
// human-readable stage name shown to the user.
type StageError struct {
	Stage string
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	switch e.Kind {
	case KindHardQuota:
		return fmt.Sprintf("%s: API quota exceeded, check your plan and billing details: %v", e.Stage, e.Err)
	case KindCancelled:
		return fmt.Sprintf("%s: cancelled", e.Stage)
	default:
		return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
	}
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrCancelled) match cancelled stage errors.
func (e *StageError) Is(target error) bool {
	return target == ErrCancelled && e.Kind == KindCancelled
}

func newStageError(stage string, kind ErrorKind, err error) *StageError {
	// Validation is surfaced like any other failure.
	if kind == KindValidation {
		return &StageError{Stage: stage, Kind: KindOther, Err: fmt.Errorf("invalid response: %w", err)}
	}
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// AsStageError wraps err as a StageError for stage unless it already is one.
func AsStageError(stage string, err error) *StageError {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	return &StageError{Stage: stage, Kind: Classify(err), Err: err}
}
