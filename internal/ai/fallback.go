package ai

import (
	"context"
	"log/slog"
)

// FallbackHook observes a switch from the primary to the fallback model.
type FallbackHook func(primary, fallback string, cause error)

// Fallback sends a request to the primary model and, if that fails, once
// more to the fallback model. There is no backoff and no further retry.
type Fallback struct {
	provider Provider
	primary  string
	fallback string
	onSwitch FallbackHook
}

// FallbackOption configures a Fallback.
type FallbackOption func(*Fallback)

// WithFallbackHook registers a hook called before the fallback attempt.
func WithFallbackHook(h FallbackHook) FallbackOption {
	return func(f *Fallback) {
		f.onSwitch = h
	}
}

// NewFallback creates a selector over one provider and a model pair. An
// empty fallback model, or one equal to the primary, disables the retry.
func NewFallback(provider Provider, primaryModel, fallbackModel string, opts ...FallbackOption) *Fallback {
	f := &Fallback{
		provider: provider,
		primary:  primaryModel,
		fallback: fallbackModel,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// PrimaryModel returns the model tried first.
func (f *Fallback) PrimaryModel() string {
	return f.primary
}

// FallbackModel returns the model tried after a primary failure.
func (f *Fallback) FallbackModel() string {
	return f.fallback
}

// Complete sends req with Model set to the primary model. Any model set on
// req is ignored. The bool result reports whether the fallback model served
// the response. When both attempts fail the error is a *FallbackError.
func (f *Fallback) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, bool, error) {
	resp, err := f.provider.Complete(ctx, req.WithModel(f.primary))
	if err == nil {
		return resp, false, nil
	}

	if f.fallback == "" || f.fallback == f.primary {
		return CompletionResponse{}, false, &FallbackError{Attempts: []Attempt{{Model: f.primary, Err: err}}}
	}
	// The caller is gone; a second call cannot be delivered anywhere.
	if ctx.Err() != nil {
		return CompletionResponse{}, false, &FallbackError{Attempts: []Attempt{{Model: f.primary, Err: err}}}
	}

	slog.Warn("primary model failed, trying fallback",
		"primary", f.primary,
		"fallback", f.fallback,
		"kind", KindOf(err),
		"error", err,
	)
	if f.onSwitch != nil {
		f.onSwitch(f.primary, f.fallback, err)
	}

	resp, fbErr := f.provider.Complete(ctx, req.WithModel(f.fallback))
	if fbErr != nil {
		return CompletionResponse{}, false, &FallbackError{Attempts: []Attempt{
			{Model: f.primary, Err: err},
			{Model: f.fallback, Err: fbErr},
		}}
	}

	slog.Debug("fallback model served request",
		"model", resp.Model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
	)
	return resp, true, nil
}
