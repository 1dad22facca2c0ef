package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRateLimit(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"API returned unexpected status code: 429: Too Many Requests", true},
		{"status code 503 service unavailable", true},
		{"rpc error: code = RESOURCE_EXHAUSTED desc = slow down", true},
		{"Resource-Exhausted", true},
		{"You exceeded your current QUOTA", true},
		{"status code 500 internal error", false},
		{"invalid api key", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsRateLimit(tc.msg), tc.msg)
	}
}

func TestIsHardQuota(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"429: You have hit your Daily Limit", true},
		{"quota exceeded, please check your plan and billing details", true},
		{"429 too many requests", false},
		// not rate-limit-class, so never hard quota
		{"daily limit reached for uploads", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsHardQuota(tc.msg), tc.msg)
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorKind(""), Classify(nil))
	assert.Equal(t, KindRateLimited, Classify(errors.New("429")))
	assert.Equal(t, KindHardQuota, Classify(errors.New("quota: daily limit")))
	assert.Equal(t, KindOther, Classify(errors.New("boom")))
	assert.Equal(t, KindCancelled, Classify(fmt.Errorf("wrapped: %w", context.Canceled)))

	se := &StageError{Stage: "Lean Canvas", Kind: KindHardQuota, Err: errors.New("x")}
	assert.Equal(t, KindHardQuota, Classify(fmt.Errorf("outer: %w", se)))
}

func TestStageErrorMessages(t *testing.T) {
	other := newStageError("Customer Persona", KindOther, errors.New("boom"))
	assert.Equal(t, "Customer Persona failed: boom", other.Error())

	quota := newStageError("Pitch Deck", KindHardQuota, errors.New("daily limit"))
	assert.Contains(t, quota.Error(), "Pitch Deck")
	assert.Contains(t, quota.Error(), "quota exceeded")

	invalid := newStageError("Lean Canvas", KindValidation, errors.New("missing field"))
	assert.Equal(t, KindOther, invalid.Kind)
	assert.Contains(t, invalid.Error(), "invalid response")

	cancelled := newStageError("Promo Video", KindCancelled, ErrCancelled)
	assert.True(t, errors.Is(cancelled, ErrCancelled))
	assert.False(t, errors.Is(other, ErrCancelled))
}

func TestAsStageError(t *testing.T) {
	assert.Nil(t, AsStageError("x", nil))

	se := AsStageError("Strategy", errors.New("503 unavailable"))
	assert.Equal(t, "Strategy", se.Stage)
	assert.Equal(t, KindRateLimited, se.Kind)

	inner := &StageError{Stage: "Inner", Kind: KindOther, Err: errors.New("x")}
	assert.Same(t, inner, AsStageError("Outer", inner))
}

func TestDedupeSources(t *testing.T) {
	in := []Source{
		{URI: "https://a", Title: "A"},
		{URI: "https://b", Title: "B"},
		{URI: "https://a", Title: "A again"},
		{URI: "https://c", Title: "C"},
		{URI: "https://b", Title: "B again"},
	}
	out := DedupeSources(in)
	assert.Equal(t, []Source{
		{URI: "https://a", Title: "A"},
		{URI: "https://b", Title: "B"},
		{URI: "https://c", Title: "C"},
	}, out)
	assert.Nil(t, DedupeSources(nil))
}
