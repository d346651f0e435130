// Package adapt turns raw educational text into a dyslexia-friendly summary,
// an illustration prompt, and optionally a generated illustration.
package adapt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/p-n-ai/lexivisual/internal/ai"
)

// Stage names one step of the pipeline.
type Stage string

const (
	StageSummarize   Stage = "summarize"
	StageImagePrompt Stage = "image_prompt"
	StageImage       Stage = "image"
)

// StageError wraps the failure of a single stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FallbackUse records which text stages were served by the fallback model.
type FallbackUse struct {
	Summary     bool `json:"summary"`
	ImagePrompt bool `json:"imagePrompt"`
}

// Any reports whether any stage used the fallback model.
func (f FallbackUse) Any() bool {
	return f.Summary || f.ImagePrompt
}

// Result is the output of one Adapt call. GeneratedImage is nil when the
// image stage was skipped or produced nothing.
type Result struct {
	Summary        string      `json:"summary"`
	ImagePrompt    string      `json:"imagePrompt"`
	GeneratedImage *string     `json:"generatedImage"`
	UsedFallback   FallbackUse `json:"usedFallback"`
}

// Observer is told about each stage as soon as it has produced output.
// For StageImage content is the image URL, or empty when none was produced.
type Observer func(stage Stage, content string)

// Pipeline runs the three dependent stages. It holds no per-request state
// and is safe for concurrent use.
type Pipeline struct {
	text       ai.Completer
	images     ai.Provider
	imageModel string
	maxTokens  int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithImageGenerator enables the image stage using provider and an
// image-capable model. Without it the stage is skipped.
func WithImageGenerator(provider ai.Provider, model string) Option {
	return func(p *Pipeline) {
		p.images = provider
		p.imageModel = model
	}
}

// WithMaxTokens caps the length of each text stage's output.
func WithMaxTokens(n int) Option {
	return func(p *Pipeline) {
		p.maxTokens = n
	}
}

// New creates a Pipeline whose text stages go through text, typically an
// *ai.Fallback.
func New(text ai.Completer, opts ...Option) *Pipeline {
	p := &Pipeline{text: text}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ImageEnabled reports whether the image stage will be attempted.
func (p *Pipeline) ImageEnabled() bool {
	return p.images != nil && p.imageModel != ""
}

// Adapt runs the pipeline on rawText.
func (p *Pipeline) Adapt(ctx context.Context, rawText string) (Result, error) {
	return p.AdaptObserved(ctx, rawText, nil)
}

// AdaptObserved runs the pipeline and reports each stage to observe.
// A failure in the summarize or image-prompt stage aborts with a
// *StageError; an image stage failure leaves GeneratedImage nil.
func (p *Pipeline) AdaptObserved(ctx context.Context, rawText string, observe Observer) (Result, error) {
	text := norm.NFC.String(rawText)
	if strings.TrimSpace(text) == "" {
		return Result{}, ai.NewValidationError("Text is required")
	}
	if observe == nil {
		observe = func(Stage, string) {}
	}

	var res Result

	summary, used, err := p.completeText(ctx, StageSummarize, summarySystemPrompt, summaryUserPrompt(text))
	if err != nil {
		return Result{}, err
	}
	res.Summary = summary
	res.UsedFallback.Summary = used
	observe(StageSummarize, summary)

	prompt, used, err := p.completeText(ctx, StageImagePrompt, imagePromptSystemPrompt, imagePromptUserPrompt(summary))
	if err != nil {
		return Result{}, err
	}
	res.ImagePrompt = prompt
	res.UsedFallback.ImagePrompt = used
	observe(StageImagePrompt, prompt)

	img, err := p.generateImage(ctx, prompt)
	if err != nil {
		if ai.KindOf(err) == ai.KindCanceled {
			return Result{}, &StageError{Stage: StageImage, Err: err}
		}
		slog.Warn("image stage degraded",
			"model", p.imageModel,
			"kind", ai.KindOf(err),
			"error", err,
		)
	}
	if img != "" {
		res.GeneratedImage = &img
	}
	observe(StageImage, img)

	return res, nil
}

func (p *Pipeline) completeText(ctx context.Context, stage Stage, system, user string) (string, bool, error) {
	resp, used, err := p.text.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: system},
			{Role: ai.RoleUser, Content: user},
		},
		MaxTokens: p.maxTokens,
	})
	if err != nil {
		return "", false, &StageError{Stage: stage, Err: err}
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", false, &StageError{Stage: stage, Err: &ai.Error{
			Kind:    ai.KindMalformedResponse,
			Model:   resp.Model,
			Message: "model returned empty content",
		}}
	}
	return resp.Content, used, nil
}

// generateImage returns "" with a nil error when the stage is disabled.
func (p *Pipeline) generateImage(ctx context.Context, prompt string) (string, error) {
	if !p.ImageEnabled() {
		return "", nil
	}
	resp, err := p.images.Complete(ctx, ai.CompletionRequest{
		Model:      p.imageModel,
		Messages:   []ai.Message{{Role: ai.RoleUser, Content: prompt}},
		Modalities: []ai.Modality{ai.ModalityImage, ai.ModalityText},
	})
	if err != nil {
		return "", err
	}
	img, ok := resp.FirstImage()
	if !ok {
		return "", &ai.Error{Kind: ai.KindCapabilityUnsupported, Model: resp.Model, Message: "response carried no image"}
	}
	return img, nil
}
