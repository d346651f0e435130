package ai_test

import (
	"context"
	"errors"
	"testing"

	"github.com/p-n-ai/lexivisual/internal/ai"
)

func summaryRequest() ai.CompletionRequest {
	return ai.CompletionRequest{
		Model: "ignored",
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: "adapt"},
			{Role: ai.RoleUser, Content: "Water boils at 100C."},
		},
		MaxTokens: 256,
	}
}

func TestFallback_PrimarySucceeds(t *testing.T) {
	mock := ai.NewMockProvider("summary")
	fb := ai.NewFallback(mock, "primary", "secondary")

	resp, used, err := fb.Complete(context.Background(), summaryRequest())
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if used {
		t.Error("usedFallback = true, want false")
	}
	if resp.Content != "summary" {
		t.Errorf("Content = %q, want summary", resp.Content)
	}

	reqs := mock.Requests()
	if len(reqs) != 1 || reqs[0].Model != "primary" {
		t.Fatalf("requests = %+v, want one call to primary", reqs)
	}
}

func TestFallback_SwitchesOnce(t *testing.T) {
	mock := ai.NewFailingProvider(ai.NewStatusError("primary", 500, "")).
		Then(ai.CompletionResponse{Content: "from fallback"})

	var hookPrimary, hookFallback string
	fb := ai.NewFallback(mock, "primary", "secondary", ai.WithFallbackHook(func(p, f string, _ error) {
		hookPrimary, hookFallback = p, f
	}))

	resp, used, err := fb.Complete(context.Background(), summaryRequest())
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !used {
		t.Error("usedFallback = false, want true")
	}
	if resp.Content != "from fallback" {
		t.Errorf("Content = %q, want from fallback", resp.Content)
	}
	if hookPrimary != "primary" || hookFallback != "secondary" {
		t.Errorf("hook got (%q, %q)", hookPrimary, hookFallback)
	}

	reqs := mock.Requests()
	if len(reqs) != 2 {
		t.Fatalf("calls = %d, want 2", len(reqs))
	}
	if reqs[0].Model != "primary" || reqs[1].Model != "secondary" {
		t.Errorf("models = %q, %q", reqs[0].Model, reqs[1].Model)
	}
	if reqs[1].MaxTokens != reqs[0].MaxTokens || len(reqs[1].Messages) != len(reqs[0].Messages) {
		t.Error("fallback request differs from primary beyond the model")
	}
	for i := range reqs[0].Messages {
		if reqs[0].Messages[i] != reqs[1].Messages[i] {
			t.Errorf("message %d differs between attempts", i)
		}
	}
}

func TestFallback_BothFail(t *testing.T) {
	mock := ai.NewFailingProvider(ai.NewStatusError("primary", 500, "")).
		ThenFail(ai.NewStatusError("secondary", 429, ""))
	fb := ai.NewFallback(mock, "primary", "secondary")

	_, used, err := fb.Complete(context.Background(), summaryRequest())
	if err == nil {
		t.Fatal("Complete() should fail when both models fail")
	}
	if used {
		t.Error("usedFallback = true on failure")
	}
	if got := ai.KindOf(err); got != ai.KindRateLimited {
		t.Errorf("KindOf() = %q, want rate_limited from the fallback", got)
	}

	var fbErr *ai.FallbackError
	if !errors.As(err, &fbErr) || len(fbErr.Attempts) != 2 {
		t.Fatalf("error = %v, want FallbackError with 2 attempts", err)
	}
	if len(mock.Requests()) != 2 {
		t.Errorf("calls = %d, want exactly 2", len(mock.Requests()))
	}
}

func TestFallback_NoRetry(t *testing.T) {
	tests := []struct {
		name     string
		fallback string
		cancel   bool
	}{
		{"no fallback model", "", false},
		{"same model", "primary", false},
		{"caller canceled", "secondary", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := ai.NewFailingProvider(ai.NewStatusError("primary", 500, ""))
			fb := ai.NewFallback(mock, "primary", tt.fallback)

			ctx, cancel := context.WithCancel(context.Background())
			if tt.cancel {
				cancel()
			} else {
				defer cancel()
			}

			_, _, err := fb.Complete(ctx, summaryRequest())
			if err == nil {
				t.Fatal("Complete() should fail")
			}
			if len(mock.Requests()) != 1 {
				t.Errorf("calls = %d, want 1", len(mock.Requests()))
			}
		})
	}
}
