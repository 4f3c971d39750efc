// Package config loads studyspace settings from an optional config file,
// a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	AI      AIConfig      `mapstructure:"ai"`
	Gemini  GeminiConfig  `mapstructure:"gemini"`
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Storage StorageConfig `mapstructure:"storage"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Chat    ChatConfig    `mapstructure:"chat"`
	PDF     PDFConfig     `mapstructure:"pdf"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Port        string `mapstructure:"port"`
	BodyLimitMB int    `mapstructure:"body_limit_mb"`
}

type AIConfig struct {
	// Provider is gemini or openai. Image scanning always uses gemini.
	Provider string `mapstructure:"provider"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type AuthConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
	// Token is the bearer the study session presents to the chat endpoint.
	Token string `mapstructure:"token"`
}

type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	Path        string `mapstructure:"path"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisPrefix string `mapstructure:"redis_prefix"`
}

type GatewayConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	RatePerSec float64       `mapstructure:"rate_per_sec"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type ChatConfig struct {
	Temperature        float64 `mapstructure:"temperature"`
	SummaryTemperature float64 `mapstructure:"summary_temperature"`
}

type PDFConfig struct {
	ExtractPages int `mapstructure:"extract_pages"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	Production bool   `mapstructure:"production"`
}

var envBindings = map[string]string{
	"gemini.api_key":   "GEMINI_API_KEY",
	"openai.api_key":   "OPENAI_API_KEY",
	"auth.secret":      "JWT_SECRET",
	"auth.token":       "STUDY_TOKEN",
	"gateway.base_url": "STUDY_API_BASE",
	"server.port":      "PORT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.body_limit_mb", 10)
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("openai.model", "gpt-5-mini")
	v.SetDefault("auth.ttl", "24h")
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "studyspace.db")
	v.SetDefault("storage.redis_addr", "localhost:6379")
	v.SetDefault("storage.redis_prefix", "studyspace:")
	v.SetDefault("gateway.base_url", "http://localhost:8080")
	v.SetDefault("gateway.rate_per_sec", 2.0)
	v.SetDefault("gateway.timeout", "60s")
	v.SetDefault("chat.temperature", 0.7)
	v.SetDefault("chat.summary_temperature", 0.3)
	v.SetDefault("pdf.extract_pages", 5)
	v.SetDefault("log.level", "info")
}

// Load reads configuration. configPath may be empty; a missing .env file is
// not an error.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("STUDY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, "STUDY_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "memory", "redis":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.AI.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unknown ai provider %q", c.AI.Provider)
	}
	if c.PDF.ExtractPages < 1 {
		return errors.New("pdf.extract_pages must be at least 1")
	}
	return nil
}
