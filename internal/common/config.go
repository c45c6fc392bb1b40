package common

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Config holds all application configuration
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Server      ServerConfig      `yaml:"server"`
	Imaging     ImagingConfig     `yaml:"imaging"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Storage     StorageConfig     `yaml:"storage"`
	Review      ReviewConfig      `yaml:"review"`
	LogLevel    string            `yaml:"log_level"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // postgres | sqlite
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr"`
}

// ImagingConfig holds image normalization configuration
type ImagingConfig struct {
	HeicConverter string `yaml:"heic_converter"`
}

// RecognitionConfig selects and configures the recognition backend.
type RecognitionConfig struct {
	Provider string        `yaml:"provider"` // gemini | openai
	Timeout  time.Duration `yaml:"timeout"`
	Gemini   GeminiConfig  `yaml:"gemini"`
	OpenAI   OpenAIConfig  `yaml:"openai"`
}

type GeminiConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

type OpenAIConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

// StorageConfig holds archival image store configuration
type StorageConfig struct {
	UploadDir string `yaml:"upload_dir"`
}

// ReviewConfig holds draft storage configuration. An empty RedisAddr keeps
// drafts in process memory.
type ReviewConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	DraftTTL      time.Duration `yaml:"draft_ttl"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{GRPCAddr: ":8080"},
		Imaging: ImagingConfig{
			HeicConverter: "magick",
		},
		Recognition: RecognitionConfig{
			Provider: "gemini",
			Timeout:  45 * time.Second,
			Gemini: GeminiConfig{
				Model:       "gemini-1.5-flash",
				Temperature: 0.1,
			},
			OpenAI: OpenAIConfig{
				BaseURL: "https://api.openai.com/v1",
				Model:   "gpt-4o-mini",
			},
		},
		Storage:  StorageConfig{UploadDir: "./uploads"},
		Review:   ReviewConfig{DraftTTL: 24 * time.Hour},
		LogLevel: "info",
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE, and environment variables, in increasing precedence.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError("CONFIG_ERROR", "read "+path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "parse "+path, err)
		}
	}

	db := &cfg.Database
	db.Driver = getEnv("DB_DRIVER", db.Driver)
	db.DSN = getEnv("DB_URL", db.DSN)
	db.MaxConns = getEnvAsInt32("DB_MAX_CONNS", db.MaxConns)
	db.MinConns = getEnvAsInt32("DB_MIN_CONNS", db.MinConns)
	db.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", db.MaxConnLifetime)
	db.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", db.MaxConnIdleTime)
	db.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", db.DialTimeout)
	db.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", db.StatementTimeout)

	cfg.Server.GRPCAddr = getEnv("GRPC_ADDR", cfg.Server.GRPCAddr)
	cfg.Imaging.HeicConverter = getEnv("HEIC_CONVERTER", cfg.Imaging.HeicConverter)

	rc := &cfg.Recognition
	rc.Provider = strings.ToLower(getEnv("RECOGNIZER", rc.Provider))
	rc.Timeout = getEnvAsDuration("RECOGNITION_TIMEOUT", rc.Timeout)
	rc.Gemini.APIKey = getEnv("GEMINI_API_KEY", rc.Gemini.APIKey)
	rc.Gemini.Model = getEnv("GEMINI_MODEL", rc.Gemini.Model)
	rc.Gemini.Temperature = getEnvAsFloat32("GEMINI_TEMPERATURE", rc.Gemini.Temperature)
	rc.OpenAI.APIKey = getEnv("OPENAI_API_KEY", rc.OpenAI.APIKey)
	rc.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", rc.OpenAI.BaseURL)
	rc.OpenAI.Model = getEnv("OPENAI_MODEL", rc.OpenAI.Model)
	rc.OpenAI.Temperature = getEnvAsFloat32("OPENAI_TEMPERATURE", rc.OpenAI.Temperature)

	cfg.Storage.UploadDir = getEnv("UPLOAD_DIR", cfg.Storage.UploadDir)

	rv := &cfg.Review
	rv.RedisAddr = getEnv("REDIS_ADDR", rv.RedisAddr)
	rv.RedisPassword = getEnv("REDIS_PASSWORD", rv.RedisPassword)
	rv.RedisDB = getEnvAsInt("REDIS_DB", rv.RedisDB)
	rv.DraftTTL = getEnvAsDuration("DRAFT_TTL", rv.DraftTTL)

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	return cfg, nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the settings needed to serve extraction requests.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("DB_DRIVER %q must be postgres or sqlite", c.Database.Driver), ErrInvalidInput)
	}
	if c.Database.DSN == "" && c.Database.Driver == "postgres" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	switch c.Recognition.Provider {
	case "gemini":
		if c.Recognition.Gemini.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "GEMINI_API_KEY is required", ErrInvalidInput)
		}
	case "openai":
		if c.Recognition.OpenAI.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("RECOGNIZER %q must be gemini or openai", c.Recognition.Provider), ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.Storage.UploadDir == "" {
		return NewAppError("CONFIG_ERROR", "UPLOAD_DIR is required", ErrInvalidInput)
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
