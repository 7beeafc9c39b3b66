package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 90 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

type Config struct {
	DBPath       string `yaml:"db_path"`
	ResetOnStart bool   `yaml:"reset_on_start"`

	Sources        Sources `yaml:"sources"`
	FallbackDir    string  `yaml:"fallback_dir"`
	VocabularyPath string  `yaml:"vocabulary_path"`
	ReloadSchedule string  `yaml:"reload_schedule"`

	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`

	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	LLMContextRows  int    `yaml:"llm_context_rows"`
	LLMHistoryTurns int    `yaml:"llm_history_turns"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`

	ExternalHTTPTimeoutSeconds int `yaml:"external_http_timeout_seconds"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Timezone string         `yaml:"timezone"`
	Location *time.Location `yaml:"-"`
}

// Sources are the per-domain source files, keyed by module.
type Sources struct {
	IT      string `yaml:"it"`
	Cyber   string `yaml:"cyber"`
	DataSci string `yaml:"datasci"`
}

// Load reads config.yaml (or CONFIG_PATH) if present, applies environment
// overrides and defaults, and validates the result.
func Load() (Config, error) {
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	return LoadFile(configPath)
}

// LoadFile is Load with an explicit config file path. A missing file is not
// an error.
func LoadFile(configPath string) (Config, error) {
	var cfg Config
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", configPath, err)
		}
		slog.Debug("config loaded", "path", configPath)
	}

	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.Sources.IT, "SOURCE_IT")
	envOverride(&cfg.Sources.Cyber, "SOURCE_CYBER")
	envOverride(&cfg.Sources.DataSci, "SOURCE_DATASCI")
	envOverride(&cfg.FallbackDir, "FALLBACK_DIR")
	envOverride(&cfg.VocabularyPath, "VOCABULARY_PATH")
	envOverride(&cfg.ReloadSchedule, "RELOAD_SCHEDULE")
	envOverride(&cfg.AdminUsername, "ADMIN_USERNAME")
	envOverride(&cfg.AdminPassword, "ADMIN_PASSWORD")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverride(&cfg.LogFormat, "LOG_FORMAT")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverrideBool(&cfg.ResetOnStart, "RESET_ON_START")
	for key, field := range map[string]*int{
		"LLM_CONTEXT_ROWS":              &cfg.LLMContextRows,
		"LLM_HISTORY_TURNS":             &cfg.LLMHistoryTurns,
		"EXTERNAL_HTTP_TIMEOUT_SECONDS": &cfg.ExternalHTTPTimeoutSeconds,
	} {
		if err := envOverrideInt(field, key); err != nil {
			return cfg, err
		}
	}

	if cfg.DBPath == "" {
		cfg.DBPath = "./ticketdesk.db"
	}
	if cfg.Sources.IT == "" {
		cfg.Sources.IT = "./Assets/IT.csv"
	}
	if cfg.Sources.Cyber == "" {
		cfg.Sources.Cyber = "./Assets/Cybersec.csv"
	}
	if cfg.Sources.DataSci == "" {
		cfg.Sources.DataSci = "./Assets/DataSci.csv"
	}
	if cfg.AdminUsername == "" {
		cfg.AdminUsername = "admin"
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "anthropic"
	}
	if cfg.LLMContextRows == 0 {
		cfg.LLMContextRows = 20
	}
	if cfg.LLMHistoryTurns == 0 {
		cfg.LLMHistoryTurns = 10
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LLMProvider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("llm_provider must be 'anthropic' or 'openai', got '%s'", c.LLMProvider)
	}

	if strings.EqualFold(c.Timezone, "Local") {
		c.Location = time.Local
	} else {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
		}
		c.Location = loc
	}

	if strings.TrimSpace(c.ReloadSchedule) != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(c.ReloadSchedule); err != nil {
			return fmt.Errorf("invalid reload_schedule '%s': %w", c.ReloadSchedule, err)
		}
	}
	if c.LLMContextRows < 1 {
		return fmt.Errorf("invalid llm_context_rows '%d': must be >= 1", c.LLMContextRows)
	}
	if c.LLMHistoryTurns < 0 {
		return fmt.Errorf("invalid llm_history_turns '%d': must be >= 0", c.LLMHistoryTurns)
	}
	if c.ExternalHTTPTimeoutSeconds < 5 {
		return fmt.Errorf("invalid external_http_timeout_seconds '%d': must be >= 5", c.ExternalHTTPTimeoutSeconds)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be 'text' or 'json', got '%s'", c.LogFormat)
	}
	if c.VocabularyPath != "" {
		if _, err := os.Stat(c.VocabularyPath); err != nil {
			return fmt.Errorf("invalid vocabulary_path '%s': %w", c.VocabularyPath, err)
		}
	}
	return nil
}

// LLMAPIKey returns the key of the configured provider, or an error when it
// is missing. Only the assistant needs it, so Load does not require it.
func (c Config) LLMAPIKey() (string, error) {
	switch c.LLMProvider {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return "", fmt.Errorf("anthropic_api_key is required when llm_provider=anthropic")
		}
		return c.AnthropicAPIKey, nil
	case "openai":
		if c.OpenAIAPIKey == "" {
			return "", fmt.Errorf("openai_api_key is required when llm_provider=openai")
		}
		return c.OpenAIAPIKey, nil
	default:
		return "", fmt.Errorf("llm_provider must be 'anthropic' or 'openai', got '%s'", c.LLMProvider)
	}
}

// SourceFor returns the configured source path of a module key.
func (c Config) SourceFor(module string) string {
	switch strings.ToUpper(module) {
	case "IT":
		return c.Sources.IT
	case "CYBER":
		return c.Sources.Cyber
	case "DATASCI":
		return c.Sources.DataSci
	default:
		return ""
	}
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}
