// Package config loads runtime configuration for an interview session. Values come from
// built-in defaults, an optional config file and INTERVIEWSIM_* environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. INTERVIEWSIM_LLM_MODEL.
const EnvPrefix = "INTERVIEWSIM"

// Provider names.
const (
	ProviderScripted  = "scripted"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
)

// API key environment variables.
const (
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvGoogleAPIKey    = "GOOGLE_GENAI_API_KEY"
	EnvOllamaHost      = "OLLAMA_HOST"
	EnvRedisPassword   = "INTERVIEWSIM_REDIS_PASSWORD"
)

// Policy names.
const (
	SpeakerRoundRobin    = "round_robin"
	SpeakerModel         = "model"
	JudgeTurnBudget      = "turn_budget"
	JudgeModel           = "model"
	SummarizerExtractive = "extractive"
	SummarizerModel      = "model"
)

// Persistence backends.
const (
	BackendNone   = "none"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config is the complete runtime configuration.
type Config struct {
	SessionID    string            `mapstructure:"session_id"`
	PlanPath     string            `mapstructure:"plan"`
	MailboxSize  int               `mapstructure:"mailbox_size"`
	ReplyTimeout time.Duration     `mapstructure:"reply_timeout"`
	LLM          LLMConfig         `mapstructure:"llm"`
	Policy       PolicyConfig      `mapstructure:"policy"`
	Persistence  PersistenceConfig `mapstructure:"persistence"`
	EventLog     EventLogConfig    `mapstructure:"eventlog"`
	Status       StatusConfig      `mapstructure:"status"`
	Debug        DebugConfig       `mapstructure:"debug"`
}

// LLMConfig selects and tunes the generation backend.
type LLMConfig struct {
	Provider      string        `mapstructure:"provider"`
	Model         string        `mapstructure:"model"`
	APIKeyEnv     string        `mapstructure:"api_key_env"`
	Host          string        `mapstructure:"host"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Temperature   float32       `mapstructure:"temperature"`
	ContextTokens int           `mapstructure:"context_tokens"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	Timeout       time.Duration `mapstructure:"timeout"`

	TokensPerMinute int `mapstructure:"tokens_per_minute"`
	MaxConcurrent   int `mapstructure:"max_concurrent"`
}

// PolicyConfig selects the orchestrator's collaborators.
type PolicyConfig struct {
	Speaker            string `mapstructure:"speaker"`
	Judge              string `mapstructure:"judge"`
	Summarizer         string `mapstructure:"summarizer"`
	MaxTurnsPerSection int    `mapstructure:"max_turns_per_section"`
	CandidateReplies   int    `mapstructure:"candidate_replies_per_section"`
}

// PersistenceConfig selects where session records go.
type PersistenceConfig struct {
	Backend     string        `mapstructure:"backend"`
	SQLitePath  string        `mapstructure:"sqlite_path"`
	RedisAddr   string        `mapstructure:"redis_addr"`
	RedisDB     int           `mapstructure:"redis_db"`
	RedisPrefix string        `mapstructure:"redis_prefix"`
	TTL         time.Duration `mapstructure:"ttl"`
}

// EventLogConfig controls the JSONL envelope log.
type EventLogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// StatusConfig controls the ops HTTP endpoint.
type StatusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// DebugConfig mirrors the DEBUG and DEBUG_DOMAINS switches of the logger.
type DebugConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Domains []string `mapstructure:"domains"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		PlanPath:     "configs/plan.example.yaml",
		MailboxSize:  64,
		ReplyTimeout: 2 * time.Minute,
		LLM: LLMConfig{
			Provider:      ProviderScripted,
			MaxTokens:     1024,
			Temperature:   0.7,
			ContextTokens: 4000,
			MaxAttempts:   3,
			Timeout:       90 * time.Second,
		},
		Policy: PolicyConfig{
			Speaker:            SpeakerRoundRobin,
			Judge:              JudgeTurnBudget,
			Summarizer:         SummarizerExtractive,
			MaxTurnsPerSection: 6,
			CandidateReplies:   1,
		},
		Persistence: PersistenceConfig{
			Backend:     BackendSQLite,
			SQLitePath:  ".interviewsim/sessions.db",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "interviewsim",
			TTL:         7 * 24 * time.Hour,
		},
		EventLog: EventLogConfig{Enabled: true, Dir: ".interviewsim/logs"},
		Status:   StatusConfig{Addr: "127.0.0.1:8089"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("session_id", d.SessionID)
	v.SetDefault("plan", d.PlanPath)
	v.SetDefault("mailbox_size", d.MailboxSize)
	v.SetDefault("reply_timeout", d.ReplyTimeout)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key_env", d.LLM.APIKeyEnv)
	v.SetDefault("llm.host", d.LLM.Host)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.context_tokens", d.LLM.ContextTokens)
	v.SetDefault("llm.max_attempts", d.LLM.MaxAttempts)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.tokens_per_minute", d.LLM.TokensPerMinute)
	v.SetDefault("llm.max_concurrent", d.LLM.MaxConcurrent)

	v.SetDefault("policy.speaker", d.Policy.Speaker)
	v.SetDefault("policy.judge", d.Policy.Judge)
	v.SetDefault("policy.summarizer", d.Policy.Summarizer)
	v.SetDefault("policy.max_turns_per_section", d.Policy.MaxTurnsPerSection)
	v.SetDefault("policy.candidate_replies_per_section", d.Policy.CandidateReplies)

	v.SetDefault("persistence.backend", d.Persistence.Backend)
	v.SetDefault("persistence.sqlite_path", d.Persistence.SQLitePath)
	v.SetDefault("persistence.redis_addr", d.Persistence.RedisAddr)
	v.SetDefault("persistence.redis_db", d.Persistence.RedisDB)
	v.SetDefault("persistence.redis_prefix", d.Persistence.RedisPrefix)
	v.SetDefault("persistence.ttl", d.Persistence.TTL)

	v.SetDefault("eventlog.enabled", d.EventLog.Enabled)
	v.SetDefault("eventlog.dir", d.EventLog.Dir)

	v.SetDefault("status.enabled", d.Status.Enabled)
	v.SetDefault("status.addr", d.Status.Addr)

	v.SetDefault("debug.enabled", d.Debug.Enabled)
	v.SetDefault("debug.domains", d.Debug.Domains)
}

// Load reads path (optional) and the environment into a validated Config.
func Load(path string) (*Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith is Load on a caller-supplied viper instance, so command-line flags bound to it
// take part in resolution.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errs
	}
	return &cfg, nil
}

// EffectiveProvider returns the configured provider, inferring it from the model name when
// the provider is left empty.
func (c *LLMConfig) EffectiveProvider() (string, error) {
	if c.Provider != "" {
		return c.Provider, nil
	}
	if c.Model == "" {
		return ProviderScripted, nil
	}
	return ModelProvider(c.Model)
}

// APIKey resolves the API key for the effective provider. Ollama and the scripted provider
// need none.
func (c *LLMConfig) APIKey() (string, error) {
	provider, err := c.EffectiveProvider()
	if err != nil {
		return "", err
	}

	envVar := c.APIKeyEnv
	if envVar == "" {
		switch provider {
		case ProviderAnthropic:
			envVar = EnvAnthropicAPIKey
		case ProviderOpenAI:
			envVar = EnvOpenAIAPIKey
		case ProviderGoogle:
			envVar = EnvGoogleAPIKey
		default:
			return "", nil
		}
	}

	key := os.Getenv(envVar)
	if key == "" {
		return "", fmt.Errorf("API key not found: %s is not set", envVar)
	}
	return key, nil
}

// OllamaHost returns the configured host, then $OLLAMA_HOST, then the local default.
func (c *LLMConfig) OllamaHost() string {
	if c.Host != "" {
		return c.Host
	}
	if host := os.Getenv(EnvOllamaHost); host != "" {
		return host
	}
	return "http://localhost:11434"
}

// ErrNoSessionID is returned by RequireSessionID for configs without a session id.
var ErrNoSessionID = errors.New("session id is not set")

// RequireSessionID returns the session id or ErrNoSessionID.
func (c *Config) RequireSessionID() (string, error) {
	if c.SessionID == "" {
		return "", ErrNoSessionID
	}
	return c.SessionID, nil
}
