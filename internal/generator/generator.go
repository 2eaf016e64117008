// Package generator turns extracted document text into quiz items by way
// of an llm.Provider.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docquiz/internal/config"
	"docquiz/internal/llm"
	"docquiz/internal/models"
	"docquiz/internal/quiz"

	"go.uber.org/zap"
)

var (
	// ErrNoSourceText is returned when generation is requested before a
	// document has been uploaded.
	ErrNoSourceText = errors.New("no source text to generate from")
	// ErrNoQuestions is returned when the model answered with an empty list.
	ErrNoQuestions = errors.New("no questions were generated")
)

// Result is the outcome of a full generation.
type Result struct {
	Items    []models.QuizItem
	Usage    llm.Usage
	Model    string
	Latency  time.Duration
	Warnings []string
}

// Service builds prompts, calls the model and parses what comes back.
type Service struct {
	log         *zap.Logger
	quiz        config.QuizConfig
	timeout     time.Duration
	maxTokens   int
	temperature float64
}

// NewService creates a Service from the quiz and LLM settings.
func NewService(q config.QuizConfig, l llm.Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		log:         log.Named("generator"),
		quiz:        q,
		timeout:     l.Timeout,
		maxTokens:   l.MaxTokens,
		temperature: l.Temperature,
	}
}

// NumQuestions is the default question count for a generation.
func (s *Service) NumQuestions() int {
	if s.quiz.NumQuestions <= 0 {
		return 5
	}
	return s.quiz.NumQuestions
}

// Generate asks the model for n questions about text. The returned list
// replaces whatever quiz the caller held before. More than n items are
// cut back to n.
func (s *Service) Generate(ctx context.Context, p llm.Provider, text string, n int) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoSourceText
	}
	if n <= 0 {
		n = s.NumQuestions()
	}

	ctx, cancel := s.withTimeout(llm.WithPurpose(ctx, "generate"))
	defer cancel()

	prompt := quiz.BuildPrompt(text, n, quiz.PromptOptions{
		Language:  s.quiz.Language,
		TextLimit: s.quiz.PromptLimit,
	})

	start := time.Now()
	resp, err := p.Generate(ctx, s.request(prompt, QuizSchema))
	if err != nil {
		return nil, fmt.Errorf("generate quiz: %w", err)
	}

	items, err := quiz.ParseItems(string(resp.Content))
	if err != nil {
		return nil, fmt.Errorf("generate quiz: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNoQuestions
	}
	if len(items) > n {
		s.log.Info("Trimming surplus questions", zap.Int("requested", n), zap.Int("received", len(items)))
		items = items[:n]
	}

	res := &Result{
		Items:    items,
		Usage:    resp.Usage,
		Model:    resp.Model,
		Latency:  time.Since(start),
		Warnings: s.inspect(items, 0),
	}
	s.log.Info("Quiz generated",
		zap.Int("questions", len(items)),
		zap.Int("warnings", len(res.Warnings)),
		zap.String("model", res.Model),
		zap.Duration("latency", res.Latency),
	)
	return res, nil
}

// Regenerate asks for one new question that differs from existing.
func (s *Service) Regenerate(ctx context.Context, p llm.Provider, text string, existing []models.QuizItem) (models.QuizItem, []string, error) {
	if strings.TrimSpace(text) == "" {
		return models.QuizItem{}, nil, ErrNoSourceText
	}

	ctx, cancel := s.withTimeout(llm.WithPurpose(ctx, "regenerate"))
	defer cancel()

	prompt := quiz.BuildRegenPrompt(text, quiz.PromptOptions{
		Language:  s.quiz.Language,
		TextLimit: s.quiz.RegenLimit,
		Existing:  quiz.Questions(existing),
	})

	resp, err := p.Generate(ctx, s.request(prompt, ItemSchema))
	if err != nil {
		return models.QuizItem{}, nil, fmt.Errorf("regenerate question: %w", err)
	}

	item, err := quiz.ParseItem(string(resp.Content))
	if err != nil {
		return models.QuizItem{}, nil, fmt.Errorf("regenerate question: %w", err)
	}
	return item, s.inspect([]models.QuizItem{item}, -1), nil
}

func (s *Service) request(prompt string, schema *llm.Schema) llm.Request {
	return llm.Request{
		System:      quiz.SystemPrompt,
		Messages:    llm.UserPrompt(prompt),
		Schema:      schema,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// inspect logs and returns the shape problems of items. offset numbers the
// items in messages; a negative offset omits the number.
func (s *Service) inspect(items []models.QuizItem, offset int) []string {
	var warnings []string
	for i, it := range items {
		for _, p := range it.Problems() {
			msg := p
			if offset >= 0 {
				msg = fmt.Sprintf("question %d: %s", offset+i+1, p)
			}
			warnings = append(warnings, msg)
		}
	}
	if len(warnings) > 0 {
		s.log.Warn("Generated questions do not match the expected shape", zap.Strings("problems", warnings))
	}
	return warnings
}
