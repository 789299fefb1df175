package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypePolicyViolation ErrorType = "policy_violation"
	ErrorTypeBreakerRejected ErrorType = "breaker_rejected"
	ErrorTypeProvider        ErrorType = "provider"
	ErrorTypePolicyConfig    ErrorType = "policy_config"
	ErrorTypePricingConfig   ErrorType = "pricing_config"
	ErrorTypeCollaborator    ErrorType = "collaborator"
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeInternal        ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Policy violations (user-visible denials)
	ErrPolicyViolation = NewDomainError(ErrorTypePolicyViolation, "request denied by policy", nil)

	// Breaker rejections (no upstream attempt was made)
	ErrProviderUnavailable = NewDomainError(ErrorTypeBreakerRejected, "provider circuit breaker open", nil)

	// Provider errors
	ErrProviderTimeout = NewDomainError(ErrorTypeProvider, "provider call timed out", nil)
	ErrProviderFailed  = NewDomainError(ErrorTypeProvider, "provider call failed", nil)

	// Configuration-class errors (degrade gracefully, never fail the request)
	ErrMalformedPolicyRule = NewDomainError(ErrorTypePolicyConfig, "malformed policy rule payload", nil)
	ErrMissingPricingEntry = NewDomainError(ErrorTypePricingConfig, "missing pricing entry", nil)

	// Collaborator delivery errors (logged, retried out of band, never surfaced)
	ErrAuditDelivery   = NewDomainError(ErrorTypeCollaborator, "audit event delivery failed", nil)
	ErrMetricsDelivery = NewDomainError(ErrorTypeCollaborator, "metric sample delivery failed", nil)

	// Validation errors
	ErrInvalidRequest  = NewDomainError(ErrorTypeValidation, "invalid request", nil)
	ErrUnknownProvider = NewDomainError(ErrorTypeValidation, "unknown provider", nil)
	ErrUnknownModel    = NewDomainError(ErrorTypeValidation, "unknown model", nil)
	ErrEmptyPrompt     = NewDomainError(ErrorTypeValidation, "prompt cannot be empty", nil)

	// Not found errors
	ErrPolicyNotFound = NewDomainError(ErrorTypeNotFound, "policy not found", nil)

	// Internal errors
	ErrInternal         = NewDomainError(ErrorTypeInternal, "internal error", nil)
	ErrPolicyStoreError = NewDomainError(ErrorTypeInternal, "policy store error", nil)
)

// Error type checking helper functions

// IsPolicyViolationError checks if an error is a policy violation
func IsPolicyViolationError(err error) bool {
	return hasType(err, ErrorTypePolicyViolation)
}

// IsBreakerRejectedError checks if an error is a circuit breaker rejection
func IsBreakerRejectedError(err error) bool {
	return hasType(err, ErrorTypeBreakerRejected)
}

// IsProviderError checks if an error came from a provider call
func IsProviderError(err error) bool {
	return hasType(err, ErrorTypeProvider)
}

// IsConfigurationError checks if an error is configuration-class
// (policy or pricing) and must degrade gracefully
func IsConfigurationError(err error) bool {
	return hasType(err, ErrorTypePolicyConfig) || hasType(err, ErrorTypePricingConfig)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return hasType(err, ErrorTypeInternal)
}

func hasType(err error, errType ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == errType
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapProvider wraps an error as a provider error
func WrapProvider(message string, err error) error {
	return NewDomainError(ErrorTypeProvider, message, err)
}

// WrapPolicyStore wraps an error from the policy store
func WrapPolicyStore(err error) error {
	return NewDomainError(ErrorTypeInternal, "policy store error", err)
}
