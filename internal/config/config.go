package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Summarizer backends
const (
	BackendGHModels = "ghmodels"
	BackendOpenAI   = "openai"
)

// Config holds all configuration for the application. It is built once at
// startup and passed to each component.
type Config struct {
	GitHub   GitHubConfig
	Trigger  TriggerConfig
	Slack    SlackConfig
	Chunking ChunkingConfig
	Models   ModelsConfig
	Server   ServerConfig
	Log      LogConfig
}

// GitHubConfig identifies the tracked repository
type GitHubConfig struct {
	Token  string `env:"GITHUB_TOKEN"`
	Owner  string `env:"GITHUB_OWNER" envDefault:"alabulei1"`
	Repo   string `env:"GITHUB_REPO" envDefault:"a-test"`
	APIURL string `env:"GITHUB_API_URL"`
}

// TriggerConfig controls which events start a run
type TriggerConfig struct {
	Phrase  string `env:"TRIGGER_PHRASE" envDefault:"issue summarize"`
	Mention string `env:"TRIGGER_MENTION"`
}

// SlackConfig is the notification destination
type SlackConfig struct {
	Token     string `env:"SLACK_TOKEN"`
	Workspace string `env:"SLACK_WORKSPACE" envDefault:"secondstate"`
	Channel   string `env:"SLACK_CHANNEL" envDefault:"github-status"`
	APIURL    string `env:"SLACK_API_URL"`
}

// ChunkingConfig sizes chunks in model tokens
type ChunkingConfig struct {
	Budget    int    `env:"CHUNK_TOKEN_BUDGET" envDefault:"2800"`
	Threshold int    `env:"SINGLE_PASS_THRESHOLD" envDefault:"2800"`
	Encoding  string `env:"TOKEN_ENCODING" envDefault:"cl100k_base"`
}

// ModelsConfig selects and tunes the summarization backend
type ModelsConfig struct {
	Backend       string        `env:"SUMMARIZER_BACKEND" envDefault:"ghmodels"`
	BaseURL       string        `env:"GITHUB_MODELS_BASE_URL" envDefault:"https://models.github.ai"`
	Model         string        `env:"GITHUB_MODELS_MODEL" envDefault:"openai/gpt-4o-mini"`
	OpenAIKey     string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string        `env:"OPENAI_BASE_URL"`
	OpenAIModel   string        `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`
	Retries       int           `env:"SUMMARIZER_RETRIES" envDefault:"3"`
	Timeout       time.Duration `env:"SUMMARIZER_TIMEOUT" envDefault:"60s"`
	Concurrency   int           `env:"MAP_CONCURRENCY" envDefault:"3"`
	// KeepHistory replays earlier model replies of the same issue session on
	// each request. Only the first request of a run starts a fresh session.
	KeepHistory   bool          `env:"SUMMARIZER_KEEP_HISTORY"`
	PromptsFile   string        `env:"PROMPTS_FILE"`
}

// ServerConfig configures the webhook listener
type ServerConfig struct {
	ListenAddr    string        `env:"LISTEN_ADDR" envDefault:":8080"`
	WebhookSecret string        `env:"WEBHOOK_SECRET"`
	RunTimeout    time.Duration `env:"RUN_TIMEOUT" envDefault:"5m"`
}

// LogConfig controls log output
type LogConfig struct {
	Level   string `env:"LOG_LEVEL" envDefault:"info"`
	Format  string `env:"LOG_FORMAT" envDefault:"text"`
	Verbose bool
	Quiet   bool
}

// Flags carries CLI flag values that override the environment
type Flags struct {
	Verbose bool
	Quiet   bool
}

// Load reads .env (if present) and the process environment, applies flags and validates.
func Load(flags Flags) (*Config, error) {
	// Silently ignore a missing .env file
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.Log.Quiet = flags.Quiet
	cfg.Log.Verbose = flags.Verbose && !flags.Quiet // verbose is disabled if quiet is set

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	var errs []error

	if c.GitHub.Owner == "" || c.GitHub.Repo == "" {
		errs = append(errs, errors.New("GITHUB_OWNER and GITHUB_REPO must be set"))
	}
	if strings.TrimSpace(c.Trigger.Phrase) == "" {
		errs = append(errs, errors.New("TRIGGER_PHRASE must not be empty"))
	}
	if c.Chunking.Budget <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_TOKEN_BUDGET must be positive, got %d", c.Chunking.Budget))
	}
	if c.Chunking.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("SINGLE_PASS_THRESHOLD must be positive, got %d", c.Chunking.Threshold))
	}
	if c.Chunking.Threshold > c.Chunking.Budget {
		errs = append(errs, fmt.Errorf("SINGLE_PASS_THRESHOLD (%d) must not exceed CHUNK_TOKEN_BUDGET (%d)", c.Chunking.Threshold, c.Chunking.Budget))
	}
	if c.Models.Retries < 0 {
		errs = append(errs, fmt.Errorf("SUMMARIZER_RETRIES must not be negative, got %d", c.Models.Retries))
	}
	if c.Models.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("MAP_CONCURRENCY must be at least 1, got %d", c.Models.Concurrency))
	}

	switch c.Models.Backend {
	case BackendGHModels:
		if c.GitHub.Token == "" {
			errs = append(errs, errors.New("GITHUB_TOKEN is required for the ghmodels summarizer backend"))
		}
	case BackendOpenAI:
		if c.Models.OpenAIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai summarizer backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SUMMARIZER_BACKEND %q (want %s or %s)", c.Models.Backend, BackendGHModels, BackendOpenAI))
	}

	return errors.Join(errs...)
}

// MapConcurrency is the effective map worker count. Conversation history
// needs requests in order, so it forces sequential map calls.
func (c *Config) MapConcurrency() int {
	if c.Models.KeepHistory {
		return 1
	}
	return c.Models.Concurrency
}
