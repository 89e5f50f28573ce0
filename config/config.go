package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the essay service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Narration NarrationConfig `mapstructure:"narration"`
	History   HistoryConfig   `mapstructure:"history"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug     bool   `mapstructure:"debug"`
	LogLevel  string `mapstructure:"log_level"`
	Listen    string `mapstructure:"listen"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LLMConfig configures the text producer and the TTS endpoint
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	TTSModel    string        `mapstructure:"tts_model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SMTPConfig configures outbound email delivery
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
	To       string `mapstructure:"to"`
	// ReadBaseURL is the public reader URL prefix used for essay links in
	// notification emails.
	ReadBaseURL string `mapstructure:"read_base_url"`
}

// StorageConfig contains database configurations
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN assembles a postgres connection string, preferring the explicit URL.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig contains Redis connection settings (scheduler lock + exclusion cache)
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port or "" when redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" || r.Port == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

// PublisherConfig configures the external document-store publisher.
// Critical decides whether a publish failure fails the whole run: the document
// store may be the system of record in one deployment and a secondary mirror
// in another.
type PublisherConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Critical     bool          `mapstructure:"critical"`
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	ParentPageID string        `mapstructure:"parent_page_id"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// NarrationConfig configures audio narration storage. Narration is skipped
// entirely when storage credentials are absent.
type NarrationConfig struct {
	Voice         string `mapstructure:"voice"`
	Endpoint      string `mapstructure:"endpoint"`
	Bucket        string `mapstructure:"bucket"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// Configured reports whether narration storage credentials are present.
func (n NarrationConfig) Configured() bool {
	return n.Endpoint != "" && n.Bucket != "" && n.AccessKey != ""
}

// HistoryConfig tunes the exclusion builder
type HistoryConfig struct {
	RecentWindowDays int           `mapstructure:"recent_window_days"`
	SnapshotTTL      time.Duration `mapstructure:"snapshot_ttl"`
}

// ScheduleConfig holds the cron spec for automatic runs
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// LoadConfig reads configuration from file and environment. Environment
// variables use the INKPRESS_ prefix with dots replaced by underscores
// (e.g. INKPRESS_LLM_API_KEY).
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.listen", ":10080")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.tts_model", "tts-1")
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.max_tokens", 16000)
	viper.SetDefault("llm.max_retries", 3)
	viper.SetDefault("llm.timeout", 5*time.Minute)
	viper.SetDefault("smtp.port", 587)
	viper.SetDefault("publisher.enabled", true)
	viper.SetDefault("publisher.critical", false)
	viper.SetDefault("publisher.base_url", "https://api.notion.com/v1")
	viper.SetDefault("publisher.timeout", 30*time.Second)
	viper.SetDefault("narration.voice", "fable")
	viper.SetDefault("history.recent_window_days", 7)
	viper.SetDefault("history.snapshot_ttl", 10*time.Minute)
	viper.SetDefault("schedule.cron", "@daily")

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

	viper.SetEnvPrefix("INKPRESS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// The config file is optional: env vars can carry everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return &config
}
