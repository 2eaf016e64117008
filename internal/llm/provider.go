// Package llm talks to the generative-AI back ends that write quiz items.
package llm

import (
	"context"
	"encoding/json"
)

// Provider is the core abstraction for LLM interaction.
// Consumers call Generate with a Request and receive structured JSON.
type Provider interface {
	// Generate sends a prompt to the LLM and returns a structured response.
	// When the request carries a Schema the provider asks for JSON output
	// and validates the result against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string

	// Close releases the underlying client.
	Close() error
}

// Request describes what to send to the LLM.
type Request struct {
	// System is the system prompt.
	System string

	// Messages is the conversation history. Quiz generation always sends
	// a single user message.
	Messages []Message

	// Schema is the JSON Schema the response must conform to.
	Schema *Schema

	MaxTokens   int
	Temperature float64
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserPrompt builds a single-turn request.
func UserPrompt(prompt string) []Message {
	return []Message{{Role: RoleUser, Content: prompt}}
}

// Schema defines the JSON structure expected from the LLM.
type Schema struct {
	// Name identifies the schema, e.g. "quiz-items". Also used as the
	// cache key for the compiled validator.
	Name string

	Description string

	// Definition is the JSON Schema definition as a map. Providers with a
	// native structured-output mode are sent this one.
	Definition map[string]any

	// Validation, when set, is what responses are checked against instead
	// of Definition. It can accept shapes the caller knows how to repair.
	Validation map[string]any
}

func (s *Schema) validationDefinition() (string, map[string]any) {
	if s.Validation != nil {
		return s.Name + "#validation", s.Validation
	}
	return s.Name, s.Definition
}

// Response holds the LLM's output.
type Response struct {
	// Content is the generated JSON with any markdown fences removed.
	Content json.RawMessage

	Usage Usage

	// Model is the model that served the request.
	Model string

	// StopReason is normalized to "end", "max_tokens" or "error".
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// resolveModel maps a friendly model name to a provider model ID.
func resolveModel(name string, models map[string]string) string {
	if id, ok := models[name]; ok {
		return id
	}
	return name
}
