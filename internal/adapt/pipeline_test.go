package adapt_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/p-n-ai/lexivisual/internal/adapt"
	"github.com/p-n-ai/lexivisual/internal/ai"
)

const (
	stage1Summary = "Water gets very hot and turns to steam."
	stage2Prompt  = "A cartoon kettle puffing steam next to a thermometer at 100."
	imageURL      = "data:image/png;base64,iVBORw0KGgo="
)

func textProvider() *ai.MockProvider {
	return ai.NewMockProvider(stage1Summary).Then(ai.CompletionResponse{Content: stage2Prompt})
}

func imageProvider(images ...string) *ai.MockProvider {
	return (&ai.MockProvider{}).Then(ai.CompletionResponse{Images: images})
}

func TestPipeline_Adapt(t *testing.T) {
	text := textProvider()
	images := imageProvider(imageURL)
	p := adapt.New(
		ai.NewFallback(text, "primary", "secondary"),
		adapt.WithImageGenerator(images, "image-model"),
	)

	res, err := p.Adapt(context.Background(), "Water boils at 100 degrees Celsius.")
	if err != nil {
		t.Fatalf("Adapt() error = %v", err)
	}
	if res.Summary != stage1Summary {
		t.Errorf("Summary = %q", res.Summary)
	}
	if res.ImagePrompt != stage2Prompt {
		t.Errorf("ImagePrompt = %q", res.ImagePrompt)
	}
	if res.GeneratedImage == nil || *res.GeneratedImage != imageURL {
		t.Errorf("GeneratedImage = %v, want %q", res.GeneratedImage, imageURL)
	}
	if res.UsedFallback.Any() {
		t.Errorf("UsedFallback = %+v, want none", res.UsedFallback)
	}

	reqs := text.Requests()
	if len(reqs) != 2 {
		t.Fatalf("text calls = %d, want 2", len(reqs))
	}
	if !strings.Contains(reqs[0].Messages[1].Content, "Water boils at 100 degrees Celsius.") {
		t.Errorf("stage 1 user prompt = %q, want raw text embedded", reqs[0].Messages[1].Content)
	}
	if !strings.Contains(reqs[1].Messages[1].Content, stage1Summary) {
		t.Errorf("stage 2 user prompt = %q, want stage 1 summary verbatim", reqs[1].Messages[1].Content)
	}

	imgReqs := images.Requests()
	if len(imgReqs) != 1 {
		t.Fatalf("image calls = %d, want 1", len(imgReqs))
	}
	if imgReqs[0].Model != "image-model" {
		t.Errorf("image model = %q", imgReqs[0].Model)
	}
	if len(imgReqs[0].Messages) != 1 || imgReqs[0].Messages[0].Content != stage2Prompt {
		t.Errorf("image messages = %+v, want the image prompt only", imgReqs[0].Messages)
	}
	if len(imgReqs[0].Modalities) != 2 {
		t.Errorf("image modalities = %v, want image and text", imgReqs[0].Modalities)
	}
}

func TestPipeline_Adapt_ImageDegrades(t *testing.T) {
	tests := []struct {
		name   string
		images ai.Provider
	}{
		{"no image in response", imageProvider()},
		{"image provider fails", ai.NewFailingProvider(ai.NewStatusError("image-model", 500, ""))},
		{"image stage disabled", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []adapt.Option
			if tt.images != nil {
				opts = append(opts, adapt.WithImageGenerator(tt.images, "image-model"))
			}
			p := adapt.New(ai.NewFallback(textProvider(), "primary", ""), opts...)

			res, err := p.Adapt(context.Background(), "Photosynthesis makes food from light.")
			if err != nil {
				t.Fatalf("Adapt() error = %v", err)
			}
			if res.GeneratedImage != nil {
				t.Errorf("GeneratedImage = %q, want nil", *res.GeneratedImage)
			}
			if res.Summary != stage1Summary || res.ImagePrompt != stage2Prompt {
				t.Errorf("text stages lost: %+v", res)
			}
		})
	}
}

func TestPipeline_Adapt_StageFailure(t *testing.T) {
	rateLimited := ai.NewStatusError("m", 429, "")

	tests := []struct {
		name      string
		provider  *ai.MockProvider
		wantStage adapt.Stage
		wantCalls int
	}{
		{"summarize fails", ai.NewFailingProvider(rateLimited), adapt.StageSummarize, 1},
		{"image prompt fails", ai.NewMockProvider(stage1Summary).ThenFail(rateLimited), adapt.StageImagePrompt, 2},
		{"summarize empty", ai.NewMockProvider("   "), adapt.StageSummarize, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			images := imageProvider(imageURL)
			p := adapt.New(ai.NewFallback(tt.provider, "primary", ""), adapt.WithImageGenerator(images, "image-model"))

			_, err := p.Adapt(context.Background(), "Some text.")

			var stageErr *adapt.StageError
			if !errors.As(err, &stageErr) {
				t.Fatalf("error = %v, want *StageError", err)
			}
			if stageErr.Stage != tt.wantStage {
				t.Errorf("Stage = %q, want %q", stageErr.Stage, tt.wantStage)
			}
			if got := len(tt.provider.Requests()); got != tt.wantCalls {
				t.Errorf("text calls = %d, want %d", got, tt.wantCalls)
			}
			if len(images.Requests()) != 0 {
				t.Error("image stage ran after an aborted pipeline")
			}
		})
	}
}

func TestPipeline_Adapt_KeepsErrorKind(t *testing.T) {
	p := adapt.New(ai.NewFallback(ai.NewFailingProvider(ai.NewStatusError("m", 402, "")), "primary", ""))

	_, err := p.Adapt(context.Background(), "Some text.")
	if got := ai.KindOf(err); got != ai.KindQuotaExhausted {
		t.Errorf("KindOf() = %q, want quota_exhausted", got)
	}
}

func TestPipeline_Adapt_EmptyText(t *testing.T) {
	text := textProvider()
	p := adapt.New(ai.NewFallback(text, "primary", ""))

	for _, in := range []string{"", "   ", "\n\t"} {
		_, err := p.Adapt(context.Background(), in)
		if got := ai.KindOf(err); got != ai.KindValidation {
			t.Errorf("Adapt(%q) KindOf() = %q, want validation", in, got)
		}
	}
	if len(text.Requests()) != 0 {
		t.Errorf("calls = %d, want 0", len(text.Requests()))
	}
}

func TestPipeline_Adapt_FallbackFlags(t *testing.T) {
	text := ai.NewFailingProvider(ai.NewStatusError("primary", 500, "")).
		Then(ai.CompletionResponse{Content: stage1Summary}).
		Then(ai.CompletionResponse{Content: stage2Prompt})
	p := adapt.New(ai.NewFallback(text, "primary", "secondary"))

	res, err := p.Adapt(context.Background(), "Some text.")
	if err != nil {
		t.Fatalf("Adapt() error = %v", err)
	}
	if !res.UsedFallback.Summary {
		t.Error("UsedFallback.Summary = false, want true")
	}
	if res.UsedFallback.ImagePrompt {
		t.Error("UsedFallback.ImagePrompt = true, want false")
	}
}

func TestPipeline_AdaptObserved(t *testing.T) {
	p := adapt.New(
		ai.NewFallback(textProvider(), "primary", ""),
		adapt.WithImageGenerator(imageProvider(imageURL), "image-model"),
	)

	var stages []adapt.Stage
	var contents []string
	_, err := p.AdaptObserved(context.Background(), "Some text.", func(s adapt.Stage, c string) {
		stages = append(stages, s)
		contents = append(contents, c)
	})
	if err != nil {
		t.Fatalf("AdaptObserved() error = %v", err)
	}

	want := []adapt.Stage{adapt.StageSummarize, adapt.StageImagePrompt, adapt.StageImage}
	if len(stages) != len(want) {
		t.Fatalf("stages = %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Errorf("stage %d = %q, want %q", i, stages[i], want[i])
		}
	}
	if contents[0] != stage1Summary || contents[1] != stage2Prompt || contents[2] != imageURL {
		t.Errorf("contents = %q", contents)
	}
}

func TestPipeline_Adapt_NormalizesText(t *testing.T) {
	text := textProvider()
	p := adapt.New(ai.NewFallback(text, "primary", ""))

	if _, err := p.Adapt(context.Background(), "cafe\u0301"); err != nil {
		t.Fatalf("Adapt() error = %v", err)
	}
	got := text.Requests()[0].Messages[1].Content
	if !strings.Contains(got, "caf\u00e9") {
		t.Errorf("stage 1 prompt = %q, want NFC-composed text", got)
	}
}
