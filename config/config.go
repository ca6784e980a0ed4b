package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Summarize SummarizeConfig `mapstructure:"summarize"`
	Chat      ChatConfig      `mapstructure:"chat"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server and session settings
type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	JWTSecret   string   `mapstructure:"jwt_secret"` // signs the session cookie
	CORSOrigins []string `mapstructure:"cors_origins"`
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.Address) == "" {
		return fmt.Errorf("server.address required")
	}
	if strings.TrimSpace(s.JWTSecret) == "" {
		return fmt.Errorf("server.jwt_secret required")
	}
	return nil
}

// LLMConfig contains the model provider configuration
type LLMConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	BaseURL      string        `mapstructure:"base_url"`
	Temperature  float64       `mapstructure:"temperature"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" {
		return fmt.Errorf("llm.api_key required")
	}
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("llm.model required")
	}
	return nil
}

// ExtractConfig controls document fetching and text extraction
type ExtractConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MinTextChars int           `mapstructure:"min_text_chars"`
}

// CacheConfig selects and tunes the document/session store
type CacheConfig struct {
	Backend       string        `mapstructure:"backend"` // memory or redis
	DocumentTTL   time.Duration `mapstructure:"document_ttl"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	SweepSchedule string        `mapstructure:"sweep_schedule"` // cron spec, memory backend only
	Redis         RedisConfig   `mapstructure:"redis"`
}

func (c CacheConfig) Validate() error {
	switch c.Backend {
	case "", "memory":
		return nil
	case "redis":
		return c.Redis.Validate()
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Backend)
	}
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("cache.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("cache.redis.port required")
	}
	return nil
}

// Addr joins host and port for the go-redis client.
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// SummarizeConfig tunes the map-reduce pipeline
type SummarizeConfig struct {
	MaxChunkChars int `mapstructure:"max_chunk_chars"`
	Concurrency   int `mapstructure:"concurrency"`
}

// ChatConfig tunes follow-up question answering
type ChatConfig struct {
	MaxContextChars int `mapstructure:"max_context_chars"`
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.timeout", "90s")
	viper.SetDefault("llm.max_retries", 3)
	viper.SetDefault("llm.retry_backoff", "500ms")
	viper.SetDefault("extract.timeout", "45s")
	viper.SetDefault("extract.min_text_chars", 200)
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.document_ttl", "1h")
	viper.SetDefault("cache.session_ttl", "1h")
	viper.SetDefault("cache.sweep_schedule", "*/10 * * * *")
	viper.SetDefault("summarize.max_chunk_chars", 20000)
	viper.SetDefault("summarize.concurrency", 4)
	viper.SetDefault("chat.max_context_chars", 60000)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("PAPERLENS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match (PAPERLENS_*)

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Server.Validate(); err != nil {
		panic(err)
	}
	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Cache.Validate(); err != nil {
		panic(err)
	}
	return &config
}
