package models

import (
	"fmt"
	"strings"
	"time"
)

// OptionCount is the number of choices every quiz item is expected to carry.
const OptionCount = 4

// QuizItem is one generated multiple-choice question.
type QuizItem struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
}

// QuizResponse is the object shape requested from the model for a full quiz.
type QuizResponse struct {
	Questions []QuizItem `json:"questions"`
}

// Source is an uploaded document after text extraction.
type Source struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Text       string    `json:"-"`
	Runes      int       `json:"runes"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Option returns option i, or "" when the item has fewer options.
func (q QuizItem) Option(i int) string {
	if i < 0 || i >= len(q.Options) {
		return ""
	}
	return q.Options[i]
}

// AnswerIndex returns the position of Answer within Options, or -1.
func (q QuizItem) AnswerIndex() int {
	for i, o := range q.Options {
		if o == q.Answer {
			return i
		}
	}
	// Models sometimes pad or drop trailing whitespace.
	want := strings.TrimSpace(q.Answer)
	for i, o := range q.Options {
		if strings.TrimSpace(o) == want {
			return i
		}
	}
	return -1
}

// Problems lists the ways the item departs from the expected shape.
// An empty result means the item is well formed.
func (q QuizItem) Problems() []string {
	var problems []string
	if strings.TrimSpace(q.Question) == "" {
		problems = append(problems, "question is empty")
	}
	if len(q.Options) != OptionCount {
		problems = append(problems, fmt.Sprintf("expected %d options, got %d", OptionCount, len(q.Options)))
	}
	if strings.TrimSpace(q.Answer) == "" {
		problems = append(problems, "answer is empty")
	} else if q.AnswerIndex() < 0 {
		problems = append(problems, "answer is not one of the options")
	}
	return problems
}

// Clone returns a deep copy of the item.
func (q QuizItem) Clone() QuizItem {
	c := q
	if q.Options != nil {
		c.Options = append([]string(nil), q.Options...)
	}
	return c
}

// CloneItems deep-copies a quiz list.
func CloneItems(items []QuizItem) []QuizItem {
	if items == nil {
		return nil
	}
	out := make([]QuizItem, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}
