package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorError(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := NewDomainError(ErrorTypeProvider, "provider call failed", nil)
		assert.Equal(t, "provider: provider call failed", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := NewDomainError(ErrorTypeProvider, "provider call failed", cause)
		assert.Contains(t, err.Error(), "connection refused")
		assert.Equal(t, cause, errors.Unwrap(err))
	})
}

func TestDomainErrorIs(t *testing.T) {
	wrapped := fmt.Errorf("govern: %w", ErrProviderUnavailable)

	assert.True(t, errors.Is(wrapped, ErrProviderUnavailable))
	assert.True(t, IsBreakerRejectedError(wrapped))
	assert.False(t, IsPolicyViolationError(wrapped))
}

func TestErrorTypeHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"policy violation", ErrPolicyViolation, IsPolicyViolationError},
		{"breaker rejected", ErrProviderUnavailable, IsBreakerRejectedError},
		{"provider", ErrProviderTimeout, IsProviderError},
		{"policy config", ErrMalformedPolicyRule, IsConfigurationError},
		{"pricing config", ErrMissingPricingEntry, IsConfigurationError},
		{"validation", ErrUnknownProvider, IsValidationError},
		{"not found", ErrPolicyNotFound, IsNotFoundError},
		{"internal", ErrPolicyStoreError, IsInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
		})
	}
}

func TestErrorTypeHelpersRejectPlainErrors(t *testing.T) {
	plain := errors.New("boom")

	assert.False(t, IsProviderError(plain))
	assert.False(t, IsConfigurationError(plain))
	assert.Equal(t, ErrorType(""), GetErrorType(plain))
	assert.Nil(t, GetErrorDetails(plain))
}

func TestWithDetail(t *testing.T) {
	err := NewDomainError(ErrorTypePricingConfig, "missing pricing entry", nil).
		WithDetail("provider", "openai").
		WithDetail("model", "gpt-4")

	details := GetErrorDetails(err)
	assert.Equal(t, "openai", details["provider"])
	assert.Equal(t, "gpt-4", details["model"])
}

func TestWrapHelpers(t *testing.T) {
	cause := errors.New("dial tcp: timeout")

	err := WrapProvider("invoking openai", cause)
	assert.True(t, IsProviderError(err))
	assert.True(t, errors.Is(err, ErrProviderFailed))

	internal := WrapInternal("loading policies", cause)
	assert.True(t, IsInternalError(internal))
}
