package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/llm-dev-ops/governance-gateway/models"
)

// Adapter translates canonical requests into one provider's wire shape,
// performs the call, and translates the response back. Adapters are
// polymorphic over this single capability; new providers are added by
// implementing it, never by touching the orchestrator.
type Adapter interface {
	// Name returns the provider identity (e.g. "openai", "anthropic")
	Name() string

	// Invoke performs the call. Latency is measured around the wire call,
	// not around translation. Failures are reported as *ProviderError.
	Invoke(ctx context.Context, req *models.LLMRequest) (*models.LLMResponse, error)

	// Models returns the models this adapter serves
	Models() []string
}

// Descriptor is the static configuration describing one provider
type Descriptor struct {
	Name         string   `json:"name"`
	Models       []string `json:"models"`
	ShapeVersion string   `json:"shape_version"`
}

// ErrorKind classifies provider failures. Only infrastructure-level kinds
// (timeout, network, upstream 5xx) count toward the circuit breaker.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindNetwork     ErrorKind = "network"
	KindUpstream4xx ErrorKind = "upstream_4xx"
	KindUpstream5xx ErrorKind = "upstream_5xx"
)

// ProviderError represents a failure from a provider call
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Kind, e.Message)
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Infrastructure reports whether the failure should count toward the
// circuit breaker. Application-level upstream 4xx responses do not; the
// provider's infrastructure answered.
func (e *ProviderError) Infrastructure() bool {
	return e.Kind != KindUpstream4xx
}

// NewProviderError creates a new provider error
func NewProviderError(provider string, kind ErrorKind, statusCode int, message string, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Kind:       kind,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// AsProviderError extracts a *ProviderError from an error chain
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsTimeout reports whether the error is a provider timeout
func IsTimeout(err error) bool {
	pe, ok := AsProviderError(err)
	return ok && pe.Kind == KindTimeout
}

// IsInfrastructureFailure reports whether the error should penalize the
// provider's circuit breaker. Non-provider errors count as infrastructure
// failures conservatively.
func IsInfrastructureFailure(err error) bool {
	if pe, ok := AsProviderError(err); ok {
		return pe.Infrastructure()
	}
	return true
}

// KindForTransportError classifies a transport-level error from the HTTP
// client: context deadline expiry becomes a timeout, anything else is a
// network failure.
func KindForTransportError(ctx context.Context, err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return KindTimeout
	}
	return KindNetwork
}

// KindForStatus classifies an HTTP status code from the provider
func KindForStatus(status int) ErrorKind {
	if status >= 500 {
		return KindUpstream5xx
	}
	return KindUpstream4xx
}

// Config holds common configuration for provider adapters
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// DefaultTimeout is the adapter-level call timeout when none is configured
const DefaultTimeout = 30 * time.Second
