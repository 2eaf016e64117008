// Package quiz builds generation prompts, parses model output into quiz
// items and edits and exports the resulting list.
package quiz

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// PromptTextLimit is how much of the source text a full generation sees.
	PromptTextLimit = 10000
	// RegenTextLimit is how much of the source text a single regeneration sees.
	RegenTextLimit = 5000

	DefaultLanguage = "Korean"
)

// PromptOptions tunes prompt construction.
type PromptOptions struct {
	// Language the questions are written in. Defaults to Korean.
	Language string
	// TextLimit overrides the number of source runes embedded in the prompt.
	TextLimit int
	// Existing holds questions already on the list; a regenerated item
	// must differ from them.
	Existing []string
}

func (o PromptOptions) language() string {
	if o.Language == "" {
		return DefaultLanguage
	}
	return o.Language
}

func (o PromptOptions) limit(def int) int {
	if o.TextLimit > 0 {
		return o.TextLimit
	}
	return def
}

// SystemPrompt sets the model's role for both kinds of request.
const SystemPrompt = "You are an experienced teacher who writes clear, fair multiple-choice exam questions strictly from the provided learning material."

const listExample = `{
  "questions": [
    {
      "question": "What is the capital of South Korea?",
      "options": ["Busan", "Seoul", "Daegu", "Incheon"],
      "answer": "Seoul",
      "explanation": "Seoul has been the capital of South Korea since 1948."
    }
  ]
}`

const itemExample = `{
  "question": "New question text...",
  "options": ["Option 1", "Option 2", "Option 3", "Option 4"],
  "answer": "Option 1",
  "explanation": "Explanation..."
}`

// BuildPrompt asks for n four-option multiple-choice questions about the
// first PromptTextLimit runes of text.
func BuildPrompt(text string, n int, opts PromptOptions) string {
	if n <= 0 {
		n = 5
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Using the learning material below, write %d multiple-choice quiz questions with 4 options each.\n\n", n)
	b.WriteString("[Rules]\n")
	b.WriteString("1. Return JSON only: an object whose \"questions\" field is the list of questions.\n")
	b.WriteString("2. Every question has exactly these keys: \"question\", \"options\", \"answer\", \"explanation\".\n")
	b.WriteString("3. \"options\" is a list of exactly 4 choices.\n")
	b.WriteString("4. \"answer\" repeats the correct option word for word.\n")
	fmt.Fprintf(&b, "5. Write every question, option and explanation in %s.\n\n", opts.language())
	b.WriteString("[Learning material]\n")
	b.WriteString(Truncate(text, opts.limit(PromptTextLimit)))
	b.WriteString("\n(Long material is cut off; only the beginning is used.)\n\n")
	b.WriteString("[Output example]\n")
	b.WriteString(listExample)
	b.WriteString("\n")
	return b.String()
}

// BuildRegenPrompt asks for a single new question about the first
// RegenTextLimit runes of text.
func BuildRegenPrompt(text string, opts PromptOptions) string {
	var b strings.Builder
	b.WriteString("Using the learning material below, write 1 new multiple-choice quiz question with 4 options.\n")
	b.WriteString("Return a single JSON object, not a list, with the keys \"question\", \"options\", \"answer\", \"explanation\".\n")
	b.WriteString("\"answer\" repeats the correct option word for word.\n")
	fmt.Fprintf(&b, "Write it in %s.\n", opts.language())

	if len(opts.Existing) > 0 {
		b.WriteString("\n[Existing questions, do not repeat them]\n")
		for _, q := range opts.Existing {
			fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(q))
		}
	}

	b.WriteString("\n[Learning material]\n")
	b.WriteString(Truncate(text, opts.limit(RegenTextLimit)))
	b.WriteString("\n\n[Output example]\n")
	b.WriteString(itemExample)
	b.WriteString("\n")
	return b.String()
}

// Truncate returns the first n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
