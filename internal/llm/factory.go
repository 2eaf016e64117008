package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Factory builds providers from configuration. A key supplied at call
// time, e.g. pasted into the web UI, takes precedence over the configured
// one.
type Factory struct {
	cfg Config
	log *zap.Logger

	// Mock is served when Provider is "mock". Tests and offline demos set it.
	Mock *MockProvider
}

// NewFactory creates a Factory.
func NewFactory(cfg Config, log *zap.Logger) *Factory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Factory{cfg: cfg, log: log, Mock: NewMockProvider()}
}

// Config returns the configuration the factory builds from.
func (f *Factory) Config() Config {
	return f.cfg
}

// RequiresKey reports whether callers must supply an API key when none is
// configured.
func (f *Factory) RequiresKey() bool {
	return f.cfg.RequiresKey()
}

// HasKey reports whether a provider can be built with the given override.
func (f *Factory) HasKey(apiKey string) bool {
	return !f.cfg.RequiresKey() || apiKey != "" || f.cfg.APIKey() != ""
}

// New creates the configured provider, wrapped with logging and retries.
// The caller owns the result and must Close it.
func (f *Factory) New(ctx context.Context, apiKey string) (Provider, error) {
	cfg := f.cfg

	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case ProviderGemini:
		if apiKey != "" {
			cfg.Gemini.APIKey = apiKey
		}
		p, err = NewGeminiProvider(ctx, cfg.Gemini)
	case ProviderOpenAI:
		if apiKey != "" {
			cfg.OpenAI.APIKey = apiKey
		}
		p, err = NewOpenAIProvider(cfg.OpenAI)
	case ProviderAnthropic:
		if apiKey != "" {
			cfg.Anthropic.APIKey = apiKey
		}
		p, err = NewAnthropicProvider(cfg.Anthropic)
	case ProviderOllama:
		p, err = NewOllamaProvider(cfg.Ollama, nil)
	case ProviderMock:
		p = f.Mock
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	// Logging sits inside retry so every attempt is recorded.
	return WithRetry(WithLogging(p, f.log), cfg.Retry), nil
}
