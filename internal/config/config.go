package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sjawhar/interview-agent/internal/llm"
)

// EnvPrefix is the namespace prefix for all interview agent environment variables.
const EnvPrefix = "INTERVIEW_AGENT_"

// Config holds all application configuration. Secrets are loaded exclusively
// from environment variables and never appear in the config file.
type Config struct {
	ListenAddr     string   `yaml:"listen_addr"`
	DBPath         string   `yaml:"db_path"`
	TranscriptsDir string   `yaml:"transcripts_dir"`
	RecordingsDir  string   `yaml:"recordings_dir"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	Session   Session   `yaml:"session"`
	Adapters  Adapters  `yaml:"adapters"`
	LLM       LLM       `yaml:"llm"`
	STT       STT       `yaml:"stt"`
	TTS       TTS       `yaml:"tts"`
	Recording Recording `yaml:"recording"`
	Summary   Summary   `yaml:"summary"`
	Redis     Redis     `yaml:"redis"`
	Mongo     Mongo     `yaml:"mongo"`
	GDrive    GDrive    `yaml:"gdrive"`
	Logging   Logging   `yaml:"logging"`

	// Secrets, env vars only.
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
	DeepgramAPIKey  string `yaml:"-"`
	RedisPassword   string `yaml:"-"`
	MongoURI        string `yaml:"-"`
}

type Session struct {
	GracePeriod       string `yaml:"grace_period"`
	IdleTimeout       string `yaml:"idle_timeout"`
	SweepInterval     string `yaml:"sweep_interval"`
	ContextWindow     int    `yaml:"context_window"`
	PersistAlarmAfter int    `yaml:"persist_alarm_after"`
	FallbackUtterance string `yaml:"fallback_utterance"`
	FallbackGreeting  string `yaml:"fallback_greeting"`
}

type Adapters struct {
	STTTimeout string `yaml:"stt_timeout"`
	LLMTimeout string `yaml:"llm_timeout"`
	TTSTimeout string `yaml:"tts_timeout"`
}

type LLM struct {
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

type STT struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

type TTS struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	Voice   string `yaml:"voice"`
}

type Recording struct {
	Enabled    bool   `yaml:"enabled"`
	Format     string `yaml:"format"`
	SampleRate int    `yaml:"sample_rate"`
}

type Summary struct {
	Enabled      bool   `yaml:"enabled"`
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	LeaseTTL string `yaml:"lease_ttl"`
}

type Mongo struct {
	Database string `yaml:"database"`
}

type GDrive struct {
	FolderID        string `yaml:"folder_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() Config {
	return Config{
		ListenAddr:     ":8004",
		DBPath:         "data/interviews.db",
		TranscriptsDir: "data/transcripts",
		RecordingsDir:  "data/recordings",
		AllowedOrigins: []string{"*"},
		Session: Session{
			GracePeriod:       "2m",
			IdleTimeout:       "15m",
			SweepInterval:     "15s",
			ContextWindow:     20,
			PersistAlarmAfter: 3,
			FallbackUtterance: "I'm sorry, could you repeat that?",
		},
		Adapters: Adapters{
			STTTimeout: "20s",
			LLMTimeout: "30s",
			TTSTimeout: "15s",
		},
		LLM:       LLM{Model: "openai/gpt-4o-mini", MaxTokens: 1024},
		STT:       STT{Provider: "deepgram", Language: "en"},
		TTS:       TTS{Enabled: true, Model: "tts-1", Voice: "alloy"},
		Recording: Recording{Format: "pcm16", SampleRate: 16000},
		Summary:   Summary{Enabled: true},
		Redis:     Redis{LeaseTTL: "1m"},
		Mongo:     Mongo{Database: "hr_recruitment_db"},
		GDrive:    GDrive{CredentialsFile: "./service-account.json"},
		Logging:   Logging{Level: "info", Format: "json"},
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

func (c *Config) GracePeriod() time.Duration   { return parseDuration(c.Session.GracePeriod, 2*time.Minute) }
func (c *Config) IdleTimeout() time.Duration   { return parseDuration(c.Session.IdleTimeout, 15*time.Minute) }
func (c *Config) SweepInterval() time.Duration { return parseDuration(c.Session.SweepInterval, 15*time.Second) }
func (c *Config) STTTimeout() time.Duration    { return parseDuration(c.Adapters.STTTimeout, 20*time.Second) }
func (c *Config) LLMTimeout() time.Duration    { return parseDuration(c.Adapters.LLMTimeout, 30*time.Second) }
func (c *Config) TTSTimeout() time.Duration    { return parseDuration(c.Adapters.TTSTimeout, 15*time.Second) }
func (c *Config) LeaseTTL() time.Duration      { return parseDuration(c.Redis.LeaseTTL, time.Minute) }

// APIKey returns the secret for an LLM provider name.
func (c *Config) APIKey(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	default:
		return ""
	}
}

// SummaryModel falls back to the interview model when no summary model is set.
func (c *Config) SummaryModel() string {
	if strings.TrimSpace(c.Summary.Model) != "" {
		return c.Summary.Model
	}
	return c.LLM.Model
}

// parseDuration returns fallback for invalid or negative values. "0s" is kept.
func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

type override struct {
	key   string
	apply func(cfg *Config, v string)
}

var overrides = []override{
	{"LISTEN_ADDR", func(c *Config, v string) { c.ListenAddr = v }},
	{"DB_PATH", func(c *Config, v string) { c.DBPath = v }},
	{"TRANSCRIPTS_DIR", func(c *Config, v string) { c.TranscriptsDir = v }},
	{"RECORDINGS_DIR", func(c *Config, v string) { c.RecordingsDir = v }},
	{"ALLOWED_ORIGINS", func(c *Config, v string) { c.AllowedOrigins = splitList(v) }},
	{"GRACE_PERIOD", func(c *Config, v string) { c.Session.GracePeriod = v }},
	{"IDLE_TIMEOUT", func(c *Config, v string) { c.Session.IdleTimeout = v }},
	{"SWEEP_INTERVAL", func(c *Config, v string) { c.Session.SweepInterval = v }},
	{"CONTEXT_WINDOW", func(c *Config, v string) { setInt(&c.Session.ContextWindow, v) }},
	{"PERSIST_ALARM_AFTER", func(c *Config, v string) { setInt(&c.Session.PersistAlarmAfter, v) }},
	{"STT_TIMEOUT", func(c *Config, v string) { c.Adapters.STTTimeout = v }},
	{"LLM_TIMEOUT", func(c *Config, v string) { c.Adapters.LLMTimeout = v }},
	{"TTS_TIMEOUT", func(c *Config, v string) { c.Adapters.TTSTimeout = v }},
	{"LLM_MODEL", func(c *Config, v string) { c.LLM.Model = v }},
	{"STT_PROVIDER", func(c *Config, v string) { c.STT.Provider = v }},
	{"STT_MODEL", func(c *Config, v string) { c.STT.Model = v }},
	{"STT_LANGUAGE", func(c *Config, v string) { c.STT.Language = v }},
	{"TTS_ENABLED", func(c *Config, v string) { setBool(&c.TTS.Enabled, v) }},
	{"TTS_VOICE", func(c *Config, v string) { c.TTS.Voice = v }},
	{"RECORDING_ENABLED", func(c *Config, v string) { setBool(&c.Recording.Enabled, v) }},
	{"RECORDING_FORMAT", func(c *Config, v string) { c.Recording.Format = v }},
	{"SUMMARY_ENABLED", func(c *Config, v string) { setBool(&c.Summary.Enabled, v) }},
	{"SUMMARY_MODEL", func(c *Config, v string) { c.Summary.Model = v }},
	{"REDIS_ADDR", func(c *Config, v string) { c.Redis.Addr = v }},
	{"LEASE_TTL", func(c *Config, v string) { c.Redis.LeaseTTL = v }},
	{"MONGO_DATABASE", func(c *Config, v string) { c.Mongo.Database = v }},
	{"GDRIVE_FOLDER_ID", func(c *Config, v string) { c.GDrive.FolderID = v }},
	{"GOOGLE_CREDENTIALS_FILE", func(c *Config, v string) { c.GDrive.CredentialsFile = v }},
	{"LOG_LEVEL", func(c *Config, v string) { c.Logging.Level = v }},
	{"LOG_FORMAT", func(c *Config, v string) { c.Logging.Format = v }},
}

func applyEnvOverrides(cfg *Config) {
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(EnvPrefix + o.key)); v != "" {
			o.apply(cfg, v)
		}
	}
}

// loadSecrets prefers the prefixed variable and falls back to the
// conventional unprefixed name.
func loadSecrets(cfg *Config) {
	cfg.OpenAIAPIKey = secret("OPENAI_API_KEY")
	cfg.AnthropicAPIKey = secret("ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = secret("GEMINI_API_KEY")
	cfg.DeepgramAPIKey = secret("DEEPGRAM_API_KEY")
	cfg.RedisPassword = secret("REDIS_PASSWORD")
	cfg.MongoURI = secret("MONGO_URI")
}

func secret(name string) string {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		return v
	}
	return os.Getenv(name)
}

func validate(cfg *Config) []string {
	var warnings []string

	provider, _, err := llm.ParseModel(cfg.LLM.Model)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid llm.model %q (expected provider/model): interviews cannot start.", cfg.LLM.Model))
	} else if cfg.APIKey(provider) == "" {
		warnings = append(warnings, fmt.Sprintf("No API key for LLM provider %q: interviewer replies will use the fallback utterance.", provider))
	}

	switch cfg.STT.Provider {
	case "deepgram":
		if cfg.DeepgramAPIKey == "" {
			warnings = append(warnings, "Deepgram API key not configured: audio turns are disabled. Set "+EnvPrefix+"DEEPGRAM_API_KEY or DEEPGRAM_API_KEY.")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			warnings = append(warnings, "OpenAI API key not configured: audio turns are disabled.")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown stt.provider %q: audio turns are disabled.", cfg.STT.Provider))
	}

	if cfg.TTS.Enabled && cfg.OpenAIAPIKey == "" {
		warnings = append(warnings, "OpenAI API key not configured: speech synthesis is disabled and replies are text only.")
	}

	for name, raw := range map[string]string{
		"session.grace_period":   cfg.Session.GracePeriod,
		"session.idle_timeout":   cfg.Session.IdleTimeout,
		"session.sweep_interval": cfg.Session.SweepInterval,
		"adapters.stt_timeout":   cfg.Adapters.STTTimeout,
		"adapters.llm_timeout":   cfg.Adapters.LLMTimeout,
		"adapters.tts_timeout":   cfg.Adapters.TTSTimeout,
		"redis.lease_ttl":        cfg.Redis.LeaseTTL,
	} {
		if d, err := time.ParseDuration(strings.TrimSpace(raw)); err != nil || d < 0 {
			warnings = append(warnings, fmt.Sprintf("Invalid %s %q: using the default.", name, raw))
		}
	}

	if cfg.Recording.Format != "pcm16" && cfg.Recording.Format != "raw" {
		warnings = append(warnings, fmt.Sprintf("Unknown recording.format %q: using pcm16.", cfg.Recording.Format))
	}
	if cfg.MongoURI == "" {
		warnings = append(warnings, "MongoDB URI not configured: candidate lookup by name is disabled. Set MONGO_URI.")
	}
	if cfg.GDrive.FolderID != "" {
		if _, err := os.Stat(cfg.GDrive.CredentialsFile); err != nil {
			warnings = append(warnings, fmt.Sprintf("Google credentials file %q not readable: Drive upload is disabled.", cfg.GDrive.CredentialsFile))
		}
	}

	return warnings
}

func setInt(dst *int, raw string) {
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		*dst = n
	}
}

func setBool(dst *bool, raw string) {
	if b, err := strconv.ParseBool(raw); err == nil {
		*dst = b
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
