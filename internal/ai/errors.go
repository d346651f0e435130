package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure so the HTTP boundary can pick a status code
// and message without inspecting provider details.
type Kind string

const (
	KindConfiguration         Kind = "configuration"
	KindValidation            Kind = "validation"
	KindRateLimited           Kind = "rate_limited"
	KindQuotaExhausted        Kind = "quota_exhausted"
	KindProvider              Kind = "provider"
	KindMalformedResponse     Kind = "malformed_response"
	KindCapabilityUnsupported Kind = "capability_unsupported"
	KindTimeout               Kind = "timeout"
	KindCanceled              Kind = "canceled"
	KindInternal              Kind = "internal"
)

// Retryable reports whether the same request may succeed later without any
// change by the caller or operator.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindTimeout, KindProvider:
		return true
	default:
		return false
	}
}

// Error is a classified failure from a provider call or input check.
type Error struct {
	Kind       Kind
	Message    string
	Model      string
	StatusCode int    // upstream HTTP status, 0 when no response was received
	Body       string // raw upstream body, for logs only
	// Passthrough asks the HTTP boundary to reuse StatusCode and Message
	// as-is instead of the generic mapping for Kind.
	Passthrough bool
	Err         error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Model != "" {
		fmt.Fprintf(&b, " (model %s)", e.Model)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewConfigurationError reports a missing or invalid deployment setting.
func NewConfigurationError(msg string) *Error {
	return &Error{Kind: KindConfiguration, Message: msg}
}

// NewValidationError reports a missing or malformed caller input.
func NewValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// NewStatusError classifies a non-2xx upstream response.
func NewStatusError(model string, status int, body string) *Error {
	e := &Error{Model: model, StatusCode: status, Body: body}
	switch status {
	case 429:
		e.Kind = KindRateLimited
		e.Message = "upstream rate limit exceeded"
	case 402:
		e.Kind = KindQuotaExhausted
		e.Message = "upstream quota exhausted"
	default:
		e.Kind = KindProvider
		e.Message = "upstream request failed"
	}
	return e
}

// KindOf classifies any error. Context expiry maps to KindTimeout and
// cancellation to KindCanceled; unknown errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}
	return KindInternal
}

// Attempt records one model call made by a Fallback.
type Attempt struct {
	Model string
	Err   error
}

// FallbackError carries every failed attempt, in the order they were made.
type FallbackError struct {
	Attempts []Attempt
}

func (e *FallbackError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %v", a.Model, a.Err)
	}
	return "all models failed: " + strings.Join(parts, "; ")
}

// Unwrap returns the attempt errors latest first, so errors.As and
// KindOf resolve to the final attempt.
func (e *FallbackError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for i := len(e.Attempts) - 1; i >= 0; i-- {
		errs = append(errs, e.Attempts[i].Err)
	}
	return errs
}

// Last returns the error of the final attempt.
func (e *FallbackError) Last() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}
