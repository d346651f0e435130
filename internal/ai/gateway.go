// Package ai provides the chat-completion client, error taxonomy, and
// primary/fallback model selection shared by every content feature.
package ai

import (
	"context"
	"fmt"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Modality is an output kind requested from the model.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
)

// Message represents a chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the model-facing part of a request envelope. The
// endpoint and credential belong to the client that sends it.
type CompletionRequest struct {
	Model       string     `json:"model"`
	Messages    []Message  `json:"messages"`
	Modalities  []Modality `json:"modalities,omitempty"`
	MaxTokens   int        `json:"max_tokens,omitempty"`
	Temperature float64    `json:"temperature,omitempty"`
}

// WithModel returns a copy of the request addressed to another model.
// Messages and modalities are copied so the two requests never share slices.
func (r CompletionRequest) WithModel(model string) CompletionRequest {
	out := r
	out.Model = model
	out.Messages = append([]Message(nil), r.Messages...)
	if r.Modalities != nil {
		out.Modalities = append([]Modality(nil), r.Modalities...)
	}
	return out
}

// Validate checks the envelope invariants: at least one message, known
// roles, and a system message only in first position.
func (r CompletionRequest) Validate() error {
	if r.Model == "" {
		return NewValidationError("model is required")
	}
	if len(r.Messages) == 0 {
		return NewValidationError("at least one message is required")
	}
	for i, m := range r.Messages {
		switch m.Role {
		case RoleSystem:
			if i != 0 {
				return NewValidationError(fmt.Sprintf("system message must be first, found at index %d", i))
			}
		case RoleUser:
		default:
			return NewValidationError(fmt.Sprintf("unsupported role %q", m.Role))
		}
	}
	for _, mod := range r.Modalities {
		if mod != ModalityText && mod != ModalityImage {
			return NewValidationError(fmt.Sprintf("unsupported modality %q", mod))
		}
	}
	return nil
}

// CompletionResponse is the output from an AI completion. Only the first
// choice of the provider response is kept.
type CompletionResponse struct {
	Content      string   `json:"content"`
	Images       []string `json:"images,omitempty"`
	Model        string   `json:"model"`
	InputTokens  int      `json:"input_tokens"`
	OutputTokens int      `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// FirstImage returns the first generated image URL, if any.
func (r CompletionResponse) FirstImage() (string, bool) {
	if len(r.Images) == 0 || r.Images[0] == "" {
		return "", false
	}
	return r.Images[0], true
}

// Provider issues a single completion call. Implementations never retry.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// Completer is satisfied by anything that answers a request and reports
// whether the fallback model served it.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, bool, error)
}
