// Package assessment scores dyslexia screening answers, serves the
// screening question bank, and exports results as a spreadsheet.
package assessment

import (
	"context"
	"fmt"
	"strings"

	"github.com/p-n-ai/lexivisual/internal/ai"
)

const scorerSystemPrompt = `You are an expert educational psychologist specializing in dyslexia assessment and learning support.
Analyze the assessment responses and provide:
1. A compassionate, encouraging summary of the user's learning profile
2. Specific strengths identified from their responses
3. Areas where they might benefit from additional support
4. Personalized recommendations for learning strategies
5. Suggested tools and techniques from LexiVisual AI that would help them most

Keep your tone warm, supportive, and empowering. Focus on abilities and potential, not limitations.

Format your response exactly as:
RISK SCORE: <a number from 0 to 100>
PROFILE: <short learning profile summary>
STRENGTHS:
- <strength>
SUPPORT AREAS:
- <area>
STRATEGIES:
- <strategy>
NEXT STEPS:
- <step>`

// Report is the model's analysis of an answer set. Analysis is kept as the
// model wrote it; nothing checks that it follows the requested template.
type Report struct {
	Analysis     string `json:"analysis"`
	UsedFallback bool   `json:"usedFallback"`
}

// Scorer turns an answer set into a single analysis request.
type Scorer struct {
	completer ai.Completer
	bank      *QuestionBank
}

// NewScorer creates a Scorer. bank only orders the answers in the prompt
// and may be nil.
func NewScorer(completer ai.Completer, bank *QuestionBank) *Scorer {
	return &Scorer{completer: completer, bank: bank}
}

// Score requests an analysis of answers, keyed by question text.
// Completeness against the question bank is not checked.
func (s *Scorer) Score(ctx context.Context, answers map[string]string) (Report, error) {
	if len(answers) == 0 {
		return Report{}, ai.NewValidationError("Assessment answers are required")
	}

	resp, used, err := s.completer.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: scorerSystemPrompt},
			{Role: ai.RoleUser, Content: scorerUserPrompt(s.bank.Order(answers))},
		},
	})
	if err != nil {
		return Report{}, fmt.Errorf("analyze assessment: %w", err)
	}

	return Report{Analysis: resp.Content, UsedFallback: used}, nil
}

// FormatAnswers renders pairs as "Q: <question>\nA: <answer>" blocks
// separated by blank lines.
func FormatAnswers(pairs []Answer) string {
	blocks := make([]string, len(pairs))
	for i, p := range pairs {
		blocks[i] = "Q: " + p.Question + "\nA: " + p.Answer
	}
	return strings.Join(blocks, "\n\n")
}

func scorerUserPrompt(pairs []Answer) string {
	return "Please analyze these dyslexia screening assessment responses and provide personalized recommendations:\n\n" +
		FormatAnswers(pairs)
}
