package generator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"docquiz/internal/config"
	"docquiz/internal/llm"
	"docquiz/internal/models"
	"docquiz/internal/quiz"
)

func newTestService(t *testing.T) (*Service, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	q := config.QuizConfig{NumQuestions: 3, Language: "English"}
	l := llm.DefaultConfig()
	l.Timeout = 5 * time.Second
	return NewService(q, l, zap.New(core)), logs
}

func itemJSON(q string) string {
	data, _ := json.Marshal(models.QuizItem{
		Question:    q,
		Options:     []string{"a", "b", "c", "d"},
		Answer:      "b",
		Explanation: "because",
	})
	return string(data)
}

func wrapped(items ...string) json.RawMessage {
	return json.RawMessage(`{"questions":[` + strings.Join(items, ",") + `]}`)
}

func TestGenerate(t *testing.T) {
	svc, _ := newTestService(t)
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: wrapped(itemJSON("Q1"), itemJSON("Q2")),
		Usage:   llm.Usage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30},
	})

	res, err := svc.Generate(context.Background(), mock, "some learning material", 2)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "Q1", res.Items[0].Question)
	assert.Equal(t, 30, res.Usage.TotalTokens)
	assert.Equal(t, "mock", res.Model)
	assert.Empty(t, res.Warnings)

	require.Len(t, mock.Calls, 1)
	req := mock.Calls[0]
	assert.Equal(t, QuizSchema, req.Schema)
	assert.Equal(t, quiz.SystemPrompt, req.System)
	require.Len(t, req.Messages, 1)
	assert.Contains(t, req.Messages[0].Content, "write 2 multiple-choice")
	assert.Contains(t, req.Messages[0].Content, "some learning material")
	assert.Contains(t, req.Messages[0].Content, "in English")
}

func TestGenerateDefaultCountAndTrim(t *testing.T) {
	svc, logs := newTestService(t)
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: wrapped(itemJSON("Q1"), itemJSON("Q2"), itemJSON("Q3"), itemJSON("Q4")),
	})

	res, err := svc.Generate(context.Background(), mock, "text", 0)
	require.NoError(t, err)
	assert.Len(t, res.Items, 3)
	assert.Contains(t, mock.Calls[0].Messages[0].Content, "write 3 multiple-choice")
	assert.Equal(t, 1, logs.FilterMessage("Trimming surplus questions").Len())
}

func TestGenerateNoSourceText(t *testing.T) {
	svc, _ := newTestService(t)
	mock := llm.NewMockProvider()

	_, err := svc.Generate(context.Background(), mock, "  \n ", 3)
	assert.ErrorIs(t, err, ErrNoSourceText)
	assert.Zero(t, mock.CallCount())
}

func TestGenerateEmptyList(t *testing.T) {
	svc, _ := newTestService(t)
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`{"questions":[]}`)})

	_, err := svc.Generate(context.Background(), mock, "text", 3)
	assert.ErrorIs(t, err, ErrNoQuestions)
}

func TestGenerateProviderError(t *testing.T) {
	svc, _ := newTestService(t)
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrRateLimit{Err: errors.New("slow down")}})

	_, err := svc.Generate(context.Background(), mock, "text", 3)
	var rl *llm.ErrRateLimit
	assert.ErrorAs(t, err, &rl)
}

func TestGenerateAcceptsLooseShapes(t *testing.T) {
	svc, _ := newTestService(t)
	noExplanation := `{"question":"Q2","options":["a","b","c","d"],"answer":"c","difficulty":"easy"}`
	noAnswer := `{"question":"Q3","options":["a","b","c","d"]}`
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`[` + itemJSON("Q1") + `,` + noExplanation + `,` + noAnswer + `]`),
	})

	res, err := svc.Generate(context.Background(), mock, "text", 3)
	require.NoError(t, err)
	require.Len(t, res.Items, 3)
	assert.Equal(t, "Q2", res.Items[1].Question)
	assert.Equal(t, "c", res.Items[1].Answer)
	assert.Empty(t, res.Items[1].Explanation)
	assert.Equal(t, []string{"question 3: answer is empty"}, res.Warnings)
}

func TestGenerateSchemaMismatch(t *testing.T) {
	svc, _ := newTestService(t)
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: wrapped(`{"question":"Q1","answer":"a"}`),
	})

	_, err := svc.Generate(context.Background(), mock, "text", 3)
	var inv *llm.ErrInvalidResponse
	assert.ErrorAs(t, err, &inv)
}

func TestGenerateKeepsMalformedItemsWithWarnings(t *testing.T) {
	svc, logs := newTestService(t)
	bad := `{"question":"Q2","options":["a","b"],"answer":"z","explanation":""}`
	mock := llm.NewMockProvider(llm.MockResponse{Content: wrapped(itemJSON("Q1"), bad)})

	res, err := svc.Generate(context.Background(), mock, "text", 3)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, []string{
		"question 2: expected 4 options, got 2",
		"question 2: answer is not one of the options",
	}, res.Warnings)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestGenerateCanceled(t *testing.T) {
	svc, _ := newTestService(t)
	mock := llm.NewMockProvider(llm.MockResponse{Content: wrapped(itemJSON("Q1"))})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Generate(ctx, mock, "text", 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithTimeoutSetsDeadline(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, cancel := svc.withTimeout(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(5*time.Second), deadline, time.Second)

	svc.timeout = 0
	ctx2, cancel2 := svc.withTimeout(context.Background())
	defer cancel2()
	_, ok = ctx2.Deadline()
	assert.False(t, ok)
}

func TestRegenerate(t *testing.T) {
	svc, _ := newTestService(t)
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(itemJSON("fresh"))})
	existing := []models.QuizItem{{Question: "old one"}, {Question: "old two"}}

	item, warnings, err := svc.Regenerate(context.Background(), mock, "material", existing)
	require.NoError(t, err)
	assert.Equal(t, "fresh", item.Question)
	assert.Empty(t, warnings)

	req := mock.Calls[0]
	assert.Equal(t, ItemSchema, req.Schema)
	assert.Contains(t, req.Messages[0].Content, "- old one")
	assert.Contains(t, req.Messages[0].Content, "- old two")
}

func TestRegenerateTakesFirstOfList(t *testing.T) {
	svc, _ := newTestService(t)
	loose := `{"question":"second","options":["a","b","c","d"]}`
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`[` + itemJSON("first") + `,` + loose + `]`),
	})

	item, warnings, err := svc.Regenerate(context.Background(), mock, "material", nil)
	require.NoError(t, err)
	assert.Equal(t, "first", item.Question)
	assert.Empty(t, warnings)

	mock = llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(loose)})
	item, warnings, err = svc.Regenerate(context.Background(), mock, "material", nil)
	require.NoError(t, err)
	assert.Equal(t, "second", item.Question)
	assert.Equal(t, []string{"answer is empty"}, warnings)
}

func TestRegenerateErrors(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.Regenerate(context.Background(), llm.NewMockProvider(), "", nil)
	assert.ErrorIs(t, err, ErrNoSourceText)

	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`{"question":"missing fields"}`)})
	_, _, err = svc.Regenerate(context.Background(), mock, "text", nil)
	var inv *llm.ErrInvalidResponse
	assert.ErrorAs(t, err, &inv)
}

func TestDemoFallback(t *testing.T) {
	svc, _ := newTestService(t)
	mock := llm.NewMockProvider()
	mock.Fallback = DemoFallback

	res, err := svc.Generate(context.Background(), mock, "text", 3)
	require.NoError(t, err)
	assert.Len(t, res.Items, 3)
	assert.Empty(t, res.Warnings)

	item, _, err := svc.Regenerate(context.Background(), mock, "text", res.Items)
	require.NoError(t, err)
	assert.Contains(t, item.Question, "Demo question")
	assert.GreaterOrEqual(t, item.AnswerIndex(), 0)
}
