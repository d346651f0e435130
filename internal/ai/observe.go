package ai

import "context"

// CallObserver is told the outcome of every upstream call. kind is empty
// on success.
type CallObserver func(model string, kind Kind)

type observedProvider struct {
	next    Provider
	observe CallObserver
}

// Observe wraps p so that every call is reported to fn.
func Observe(p Provider, fn CallObserver) Provider {
	if fn == nil {
		return p
	}
	return &observedProvider{next: p, observe: fn}
}

func (o *observedProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	resp, err := o.next.Complete(ctx, req)
	o.observe(req.Model, KindOf(err))
	return resp, err
}
