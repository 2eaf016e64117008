package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var testSchema = &Schema{
	Name: "test-answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{"type": "string"},
			"answer":   map[string]any{"type": "string"},
		},
		"required":             []string{"question", "answer"},
		"additionalProperties": false,
	},
}

func retryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: 1 * time.Millisecond,
		MaxWait:     10 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  \n```json {\"a\":1} ```  \n", `{"a":1}`},
		{"only leading fence", "```json\n{\"a\":1}", `{"a":1}`},
		{"only trailing fence", "{\"a\":1}\n```", `{"a":1}`},
		{"json fence then bare fence", "```json```[1]```", `[1]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSON(tt.in))
		})
	}
}

func TestValidateResponse(t *testing.T) {
	assert.NoError(t, validateResponse(nil, json.RawMessage(`not json`)))
	assert.NoError(t, validateResponse(testSchema, json.RawMessage(`{"question":"q","answer":"a"}`)))

	var inv *ErrInvalidResponse
	err := validateResponse(testSchema, json.RawMessage(`{"question":"q"}`))
	require.Error(t, err)
	assert.True(t, errors.As(err, &inv))

	err = validateResponse(testSchema, json.RawMessage(`{"question":"q","answer":"a","extra":1}`))
	assert.True(t, errors.As(err, &inv))

	err = validateResponse(testSchema, json.RawMessage(`{broken`))
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, `{broken`, string(inv.Content))
}

func TestValidateResponseUsesValidationDefinition(t *testing.T) {
	lenient := &Schema{
		Name:       "test-lenient",
		Definition: testSchema.Definition,
		Validation: map[string]any{
			"type":     "object",
			"required": []string{"question"},
		},
	}

	// Accepted by the lenient definition although the strict one rejects it.
	assert.NoError(t, validateResponse(lenient, json.RawMessage(`{"question":"q","extra":1}`)))

	var inv *ErrInvalidResponse
	err := validateResponse(lenient, json.RawMessage(`{"answer":"a"}`))
	assert.True(t, errors.As(err, &inv))

	// The strict definition of the same name is cached separately.
	strict := &Schema{Name: "test-lenient", Definition: testSchema.Definition}
	err = validateResponse(strict, json.RawMessage(`{"question":"q","extra":1}`))
	assert.True(t, errors.As(err, &inv))
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}},
		MockResponse{Err: &ErrRateLimit{Err: errors.New("slow down")}},
		MockResponse{Content: json.RawMessage(`{"ok":true}`)},
	)
	p := WithRetry(mock, retryConfig())

	resp, err := p.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Content))
	assert.Equal(t, 3, mock.CallCount())
}

func TestRetry_AllAttemptsFail(t *testing.T) {
	mock := NewMockProvider()
	p := WithRetry(mock, retryConfig())

	_, err := p.Generate(context.Background(), Request{})
	var unavail *ErrProviderUnavailable
	assert.True(t, errors.As(err, &unavail))
	assert.Equal(t, 3, mock.CallCount())
}

func TestRetry_NotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"max tokens", &ErrMaxTokensExceeded{}},
		{"rejected", &ErrRequestRejected{StatusCode: 401, Err: errors.New("bad key")}},
		{"missing key", ErrMissingAPIKey},
		{"deadline", context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockProvider(MockResponse{Err: tt.err}, MockResponse{Content: json.RawMessage(`{}`)})
			_, err := WithRetry(mock, retryConfig()).Generate(context.Background(), Request{})
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, mock.CallCount())
		})
	}
}

func TestRetry_InvalidResponseRetriedOnce(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: &ErrInvalidResponse{Err: errors.New("bad")}},
		MockResponse{Err: &ErrInvalidResponse{Err: errors.New("bad")}},
		MockResponse{Content: json.RawMessage(`{"ok":true}`)},
	)
	_, err := WithRetry(mock, retryConfig()).Generate(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, 2, mock.CallCount())
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}},
		MockResponse{Content: json.RawMessage(`{"ok":true}`)},
	)
	cfg := retryConfig()
	cfg.InitialWait = time.Hour
	cfg.MaxWait = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := WithRetry(mock, cfg).Generate(ctx, Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, mock.CallCount())
}

func TestRetry_RespectsRetryAfter(t *testing.T) {
	r := &RetryProvider{config: retryConfig()}
	wait := r.backoff(0, &ErrRateLimit{RetryAfter: 3 * time.Second})
	assert.Equal(t, 3*time.Second, wait)

	wait = r.backoff(10, errors.New("x"))
	assert.LessOrEqual(t, wait, 12*time.Millisecond)
}

func TestMockProvider_ValidatesAndCleans(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage("```json\n{\"question\":\"q\",\"answer\":\"a\"}\n```")},
		MockResponse{Content: json.RawMessage(`{"question":"q"}`)},
	)

	resp, err := mock.Generate(context.Background(), Request{Schema: testSchema})
	require.NoError(t, err)
	assert.JSONEq(t, `{"question":"q","answer":"a"}`, string(resp.Content))
	assert.Equal(t, "mock", resp.Model)

	_, err = mock.Generate(context.Background(), Request{Schema: testSchema})
	var inv *ErrInvalidResponse
	assert.True(t, errors.As(err, &inv))
}

func TestMockProvider_Fallback(t *testing.T) {
	mock := NewMockProvider()
	mock.Fallback = func(req Request) MockResponse {
		return MockResponse{Content: json.RawMessage(`{"echo":"` + req.Messages[0].Content + `"}`)}
	}
	resp, err := mock.Generate(context.Background(), Request{Messages: UserPrompt("hi")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"echo":"hi"}`, string(resp.Content))

	require.NoError(t, mock.Close())
	assert.True(t, mock.Closed())
}

func TestLoggingProvider(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{}`), Usage: Usage{InputTokens: 10, OutputTokens: 5}},
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}},
	)
	p := WithLogging(mock, zap.New(core))
	ctx := WithPurpose(context.Background(), "generate")

	_, err := p.Generate(ctx, Request{Messages: UserPrompt("abc")})
	require.NoError(t, err)
	_, err = p.Generate(ctx, Request{Messages: UserPrompt("abc")})
	require.Error(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "LLM request completed", entries[0].Message)
	assert.Equal(t, "generate", entries[0].ContextMap()["purpose"])
	assert.EqualValues(t, 10, entries[0].ContextMap()["input_tokens"])
	assert.Equal(t, "LLM request failed", entries[1].Message)
}

func TestPurposeFrom(t *testing.T) {
	assert.Equal(t, "unknown", PurposeFrom(context.Background()))
	assert.Equal(t, "regenerate", PurposeFrom(WithPurpose(context.Background(), "regenerate")))
}

func TestMapStatus(t *testing.T) {
	base := errors.New("boom")

	var rl *ErrRateLimit
	assert.True(t, errors.As(mapStatus(429, base), &rl))

	var unavail *ErrProviderUnavailable
	assert.True(t, errors.As(mapStatus(503, base), &unavail))
	assert.True(t, errors.As(mapStatus(0, base), &unavail))

	var rej *ErrRequestRejected
	require.True(t, errors.As(mapStatus(401, base), &rej))
	assert.Equal(t, 401, rej.StatusCode)
	assert.ErrorIs(t, rej, base)
}
