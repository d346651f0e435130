package assessment

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var defaultQuestions []byte

// Question is one screening question with its fixed option set.
type Question struct {
	ID       string   `yaml:"id" json:"id"`
	Question string   `yaml:"question" json:"question"`
	Options  []string `yaml:"options" json:"options"`
}

type questionFile struct {
	Questions []Question `yaml:"questions"`
}

// QuestionBank is an ordered, read-only set of questions.
type QuestionBank struct {
	questions []Question
	position  map[string]int // question text -> index
}

// LoadQuestionBank reads a bank from path, or the embedded default bank
// when path is empty.
func LoadQuestionBank(path string) (*QuestionBank, error) {
	data := defaultQuestions
	source := "embedded"
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading question bank: %w", err)
		}
		source = path
	}

	bank, err := ParseQuestionBank(data)
	if err != nil {
		return nil, fmt.Errorf("loading question bank %s: %w", source, err)
	}

	slog.Info("question bank loaded", "source", source, "questions", bank.Len())
	return bank, nil
}

// ParseQuestionBank parses and checks a YAML question document.
func ParseQuestionBank(data []byte) (*QuestionBank, error) {
	var f questionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if len(f.Questions) == 0 {
		return nil, fmt.Errorf("no questions defined")
	}

	bank := &QuestionBank{
		questions: make([]Question, 0, len(f.Questions)),
		position:  make(map[string]int, len(f.Questions)),
	}
	ids := make(map[string]bool, len(f.Questions))

	for i, q := range f.Questions {
		q.ID = strings.TrimSpace(q.ID)
		q.Question = strings.TrimSpace(q.Question)
		switch {
		case q.ID == "":
			return nil, fmt.Errorf("question %d: id is required", i+1)
		case ids[q.ID]:
			return nil, fmt.Errorf("question %q: duplicate id", q.ID)
		case q.Question == "":
			return nil, fmt.Errorf("question %q: text is required", q.ID)
		case len(q.Options) == 0:
			return nil, fmt.Errorf("question %q: at least one option is required", q.ID)
		}
		if _, dup := bank.position[q.Question]; dup {
			return nil, fmt.Errorf("question %q: duplicate question text", q.ID)
		}
		ids[q.ID] = true
		bank.position[q.Question] = len(bank.questions)
		bank.questions = append(bank.questions, q)
	}
	return bank, nil
}

// Questions returns the questions in bank order.
func (b *QuestionBank) Questions() []Question {
	out := make([]Question, len(b.questions))
	copy(out, b.questions)
	return out
}

// Len returns the number of questions.
func (b *QuestionBank) Len() int {
	return len(b.questions)
}

// Answer is one question/answer pair of a submitted answer set.
type Answer struct {
	Question string
	Answer   string
}

// Order flattens an answer set keyed by question text. Known questions
// come first in bank order; unknown questions follow, sorted. A nil bank
// sorts everything.
func (b *QuestionBank) Order(answers map[string]string) []Answer {
	known := make([]Answer, 0, len(answers))
	var unknown []Answer

	for q, a := range answers {
		if b != nil {
			if _, ok := b.position[q]; ok {
				known = append(known, Answer{Question: q, Answer: a})
				continue
			}
		}
		unknown = append(unknown, Answer{Question: q, Answer: a})
	}

	sort.Slice(known, func(i, j int) bool {
		return b.position[known[i].Question] < b.position[known[j].Question]
	})
	sort.Slice(unknown, func(i, j int) bool {
		return unknown[i].Question < unknown[j].Question
	})
	return append(known, unknown...)
}
