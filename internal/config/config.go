package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"docquiz/internal/llm"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Server  ServerConfig
	Session SessionConfig
	LLM     llm.Config
	Quiz    QuizConfig
	Archive ArchiveConfig
	Notify  NotifyConfig
	Log     LogConfig

	// File is the config file that was read, empty when none was found.
	File string
}

type ServerConfig struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
	FrontendURL    string
}

type SessionConfig struct {
	Secret      []byte
	Name        string
	Backend     string // memory or postgres
	DatabaseURL string
	MaxAge      time.Duration
	IdleTimeout time.Duration
	Secure      bool

	// SecretGenerated is set when no SESSION_SECRET was configured and a
	// random one was created for this process.
	SecretGenerated bool
}

type QuizConfig struct {
	NumQuestions int
	Language     string
	PromptLimit  int
	RegenLimit   int
	PreviewLimit int
}

// ArchiveConfig describes an S3-compatible bucket (Cloudflare R2 by default).
type ArchiveConfig struct {
	AccountID       string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string
	Endpoint        string
	Region          string
}

type NotifyConfig struct {
	DiscordWebhookURL string
}

type LogConfig struct {
	Level string
	Env   string
}

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// env names kept for compatibility with existing deployments.
var envBindings = map[string]string{
	"server.port":             "PORT",
	"server.read_timeout":     "SERVER_READ_TIMEOUT",
	"server.write_timeout":    "SERVER_WRITE_TIMEOUT",
	"server.max_upload_bytes": "MAX_UPLOAD_BYTES",
	"server.frontend_url":     "FRONTEND_URL",

	"session.secret":       "SESSION_SECRET",
	"session.name":         "SESSION_NAME",
	"session.backend":      "SESSION_BACKEND",
	"session.database_url": "DATABASE_URL",
	"session.max_age":      "SESSION_MAX_AGE",
	"session.idle_timeout": "SESSION_IDLE_TIMEOUT",
	"session.secure":       "SESSION_SECURE",

	"llm.provider":           "LLM_PROVIDER",
	"llm.gemini.api_key":     "GEMINI_API_KEY",
	"llm.gemini.model":       "GEMINI_MODEL",
	"llm.openai.api_key":     "OPENAI_API_KEY",
	"llm.openai.model":       "OPENAI_MODEL",
	"llm.openai.base_url":    "OPENAI_BASE_URL",
	"llm.anthropic.api_key":  "ANTHROPIC_API_KEY",
	"llm.anthropic.model":    "ANTHROPIC_MODEL",
	"llm.anthropic.base_url": "ANTHROPIC_BASE_URL",
	"llm.ollama.server_url":  "OLLAMA_SERVER_URL",
	"llm.ollama.model":       "OLLAMA_MODEL",
	"llm.timeout":            "LLM_TIMEOUT",
	"llm.max_tokens":         "LLM_MAX_TOKENS",
	"llm.temperature":        "LLM_TEMPERATURE",
	"llm.retry.max_attempts": "LLM_RETRY_MAX_ATTEMPTS",

	"quiz.num_questions": "QUIZ_NUM_QUESTIONS",
	"quiz.language":      "QUIZ_LANGUAGE",

	"archive.account_id":        "CLOUDFLARE_ACCOUNT_ID",
	"archive.bucket":            "R2_BUCKET_NAME",
	"archive.access_key_id":     "R2_ACCESS_KEY_ID",
	"archive.secret_access_key": "R2_SECRET_ACCESS_KEY",
	"archive.public_url":        "R2_PUBLIC_URL",
	"archive.endpoint":          "ARCHIVE_ENDPOINT",
	"archive.region":            "ARCHIVE_REGION",

	"notify.discord_webhook_url": "DISCORD_WEBHOOK_URL",

	"log.level": "LOG_LEVEL",
	"log.env":   "APP_ENV",
}

func setDefaults(v *viper.Viper) {
	d := llm.DefaultConfig()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.max_upload_bytes", int64(32<<20))

	v.SetDefault("session.name", "docquiz_session")
	v.SetDefault("session.backend", BackendMemory)
	v.SetDefault("session.max_age", 24*time.Hour)
	v.SetDefault("session.idle_timeout", 2*time.Hour)

	v.SetDefault("llm.provider", d.Provider)
	v.SetDefault("llm.gemini.model", d.Gemini.Model)
	v.SetDefault("llm.openai.model", d.OpenAI.Model)
	v.SetDefault("llm.anthropic.model", d.Anthropic.Model)
	v.SetDefault("llm.ollama.server_url", d.Ollama.ServerURL)
	v.SetDefault("llm.ollama.model", d.Ollama.Model)
	v.SetDefault("llm.timeout", d.Timeout)
	v.SetDefault("llm.max_tokens", d.MaxTokens)
	v.SetDefault("llm.temperature", d.Temperature)
	v.SetDefault("llm.retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("llm.retry.initial_wait", d.Retry.InitialWait)
	v.SetDefault("llm.retry.max_wait", d.Retry.MaxWait)
	v.SetDefault("llm.retry.multiplier", d.Retry.Multiplier)

	v.SetDefault("quiz.num_questions", 5)
	v.SetDefault("quiz.language", "Korean")
	v.SetDefault("quiz.prompt_limit", 10000)
	v.SetDefault("quiz.regen_limit", 5000)
	v.SetDefault("quiz.preview_limit", 1000)

	v.SetDefault("archive.region", "auto")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.env", "development")
}

// Load reads .env (if present), an optional docquiz.yaml and the
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("docquiz")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if dir := os.Getenv("DOCQUIZ_CONFIG_DIR"); dir != "" {
		v.AddConfigPath(dir)
	}

	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := fromViper(v)
	cfg.File = v.ConfigFileUsed()

	if len(cfg.Session.Secret) == 0 {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		cfg.Session.Secret = secret
		cfg.Session.SecretGenerated = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:           v.GetInt("server.port"),
			ReadTimeout:    v.GetDuration("server.read_timeout"),
			WriteTimeout:   v.GetDuration("server.write_timeout"),
			MaxUploadBytes: v.GetInt64("server.max_upload_bytes"),
			FrontendURL:    strings.TrimSuffix(v.GetString("server.frontend_url"), "/"),
		},
		Session: SessionConfig{
			Secret:      []byte(v.GetString("session.secret")),
			Name:        v.GetString("session.name"),
			Backend:     strings.ToLower(v.GetString("session.backend")),
			DatabaseURL: v.GetString("session.database_url"),
			MaxAge:      v.GetDuration("session.max_age"),
			IdleTimeout: v.GetDuration("session.idle_timeout"),
			Secure:      v.GetBool("session.secure"),
		},
		LLM: llm.Config{
			Provider: strings.ToLower(v.GetString("llm.provider")),
			Gemini: llm.GeminiConfig{
				APIKey: v.GetString("llm.gemini.api_key"),
				Model:  v.GetString("llm.gemini.model"),
			},
			OpenAI: llm.OpenAIConfig{
				APIKey:  v.GetString("llm.openai.api_key"),
				Model:   v.GetString("llm.openai.model"),
				BaseURL: v.GetString("llm.openai.base_url"),
			},
			Anthropic: llm.AnthropicConfig{
				APIKey:  v.GetString("llm.anthropic.api_key"),
				Model:   v.GetString("llm.anthropic.model"),
				BaseURL: v.GetString("llm.anthropic.base_url"),
			},
			Ollama: llm.OllamaConfig{
				ServerURL: v.GetString("llm.ollama.server_url"),
				Model:     v.GetString("llm.ollama.model"),
			},
			Retry: llm.RetryConfig{
				MaxAttempts: v.GetInt("llm.retry.max_attempts"),
				InitialWait: v.GetDuration("llm.retry.initial_wait"),
				MaxWait:     v.GetDuration("llm.retry.max_wait"),
				Multiplier:  v.GetFloat64("llm.retry.multiplier"),
			},
			Timeout:     v.GetDuration("llm.timeout"),
			MaxTokens:   v.GetInt("llm.max_tokens"),
			Temperature: v.GetFloat64("llm.temperature"),
		},
		Quiz: QuizConfig{
			NumQuestions: v.GetInt("quiz.num_questions"),
			Language:     v.GetString("quiz.language"),
			PromptLimit:  v.GetInt("quiz.prompt_limit"),
			RegenLimit:   v.GetInt("quiz.regen_limit"),
			PreviewLimit: v.GetInt("quiz.preview_limit"),
		},
		Archive: ArchiveConfig{
			AccountID:       v.GetString("archive.account_id"),
			Bucket:          v.GetString("archive.bucket"),
			AccessKeyID:     v.GetString("archive.access_key_id"),
			SecretAccessKey: v.GetString("archive.secret_access_key"),
			PublicURL:       v.GetString("archive.public_url"),
			Endpoint:        v.GetString("archive.endpoint"),
			Region:          v.GetString("archive.region"),
		},
		Notify: NotifyConfig{
			DiscordWebhookURL: v.GetString("notify.discord_webhook_url"),
		},
		Log: LogConfig{
			Level: strings.ToLower(v.GetString("log.level")),
			Env:   strings.ToLower(v.GetString("log.env")),
		},
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case llm.ProviderGemini, llm.ProviderOpenAI, llm.ProviderAnthropic, llm.ProviderOllama, llm.ProviderMock:
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	switch c.Session.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Session.DatabaseURL == "" {
			return errors.New("session backend postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("max upload bytes must be positive")
	}
	if c.Quiz.NumQuestions <= 0 {
		return errors.New("quiz.num_questions must be positive")
	}
	if c.Quiz.PromptLimit <= 0 || c.Quiz.RegenLimit <= 0 {
		return errors.New("quiz prompt limits must be positive")
	}
	if c.LLM.Retry.MaxAttempts < 1 {
		return errors.New("llm.retry.max_attempts must be at least 1")
	}
	return nil
}

// Enabled reports whether every bucket setting needed for
// publishing exports is present.
func (c ArchiveConfig) Enabled() bool {
	if c.Bucket == "" || c.AccessKeyID == "" || c.SecretAccessKey == "" || c.PublicURL == "" {
		return false
	}
	return c.AccountID != "" || c.Endpoint != ""
}

// ResolvedEndpoint returns the explicit endpoint or the R2 endpoint for
// the account.
func (c ArchiveConfig) ResolvedEndpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
}
