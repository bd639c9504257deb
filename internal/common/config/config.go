package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/amoylab/agridash/pkg/helper"
	"github.com/amoylab/agridash/pkg/trace"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	// APIServerConfig represents the agridash API server configuration
	APIServerConfig struct {
		Server     ServerConfig     `yaml:"server"`
		Database   DatabaseConfig   `yaml:"database"`
		DocStore   DocStoreConfig   `yaml:"docstore"`
		AI         AIConfig         `yaml:"ai"`
		JWT        JWTConfig        `yaml:"jwt"`
		CORS       CORSConfig       `yaml:"cors"`
		RateLimit  RateLimitConfig  `yaml:"rate_limit"`
		Logger     LoggerConfig     `yaml:"logger"`
		Metrics    MetricsConfig    `yaml:"metrics"`
		Tracing    trace.Config     `yaml:"tracing"`
		SuperAdmin SuperAdminConfig `yaml:"super_admin"`
	}

	// ServerConfig represents the HTTP listener configuration
	ServerConfig struct {
		Port            int           `yaml:"port"`
		Mode            string        `yaml:"mode"` // debug, release, test
		UploadDir       string        `yaml:"upload_dir"`
		MaxUploadSize   int64         `yaml:"max_upload_size"` // bytes
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	}

	// SuperAdminConfig represents the account ensured by the seed command
	SuperAdminConfig struct {
		Name     string `yaml:"name"`
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
	}

	// DocStoreConfig represents the document store configuration
	DocStoreConfig struct {
		Type     string        `yaml:"type"` // memory, mongo
		URI      string        `yaml:"uri"`
		Database string        `yaml:"database"`
		Timeout  time.Duration `yaml:"timeout"`
	}

	// AIConfig represents the hosted generative model configuration
	AIConfig struct {
		Enabled bool          `yaml:"enabled"`
		APIKey  string        `yaml:"api_key"`
		Model   string        `yaml:"model"`
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	}

	// CORSConfig represents cross-origin settings for the browser dashboard
	CORSConfig struct {
		AllowOrigins     []string `yaml:"allow_origins"`
		AllowCredentials bool     `yaml:"allow_credentials"`
	}

	// RateLimitConfig represents request throttling thresholds
	RateLimitConfig struct {
		Enabled         bool          `yaml:"enabled"`
		Type            string        `yaml:"type"` // memory, redis
		Window          time.Duration `yaml:"window"`
		MaxRequests     int           `yaml:"max_requests"`
		AuthMaxRequests int           `yaml:"auth_max_requests"`
		Redis           RedisConfig   `yaml:"redis"`
	}

	// RedisConfig represents a single redis endpoint
	RedisConfig struct {
		Addr     string `yaml:"addr"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`
		Color      bool   `yaml:"color"`
		Stacktrace bool   `yaml:"stacktrace"`
		TimeZone   string `yaml:"time_zone"`
		TimeFormat string `yaml:"time_format"`
	}

	// MetricsConfig represents the prometheus exposition settings
	MetricsConfig struct {
		Enabled   bool      `yaml:"enabled"`
		Path      string    `yaml:"path"`
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}
)

var envPlaceholder = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// LoadConfig loads configuration from a YAML file with environment variable support
func LoadConfig(filename string) (*APIServerConfig, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	var cfg APIServerConfig
	if err := yaml.Unmarshal(resolveEnv(data), &cfg); err != nil {
		return nil, cfgPath, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, cfgPath, err
	}
	return &cfg, cfgPath, nil
}

// resolveEnv replaces ${KEY} and ${KEY:default} placeholders in YAML content
func resolveEnv(content []byte) []byte {
	return envPlaceholder.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := envPlaceholder.FindSubmatch(match)
		if value, exists := os.LookupEnv(string(matches[1])); exists {
			return []byte(value)
		}
		if len(matches) > 2 {
			return matches[2]
		}
		return nil
	})
}

// ApplyDefaults fills zero values with the server defaults
func (c *APIServerConfig) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5235
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Server.UploadDir == "" {
		c.Server.UploadDir = "data/uploads"
	}
	if c.Server.MaxUploadSize <= 0 {
		c.Server.MaxUploadSize = 10 << 20
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type == "sqlite" && c.Database.DBName == "" {
		c.Database.DBName = "data/agridash.db"
	}

	if c.DocStore.Type == "" {
		c.DocStore.Type = "memory"
	}
	if c.DocStore.Database == "" {
		c.DocStore.Database = "agridash"
	}
	if c.DocStore.Timeout <= 0 {
		c.DocStore.Timeout = 10 * time.Second
	}

	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.0-flash"
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 30 * time.Second
	}

	if c.JWT.Duration <= 0 {
		c.JWT.Duration = 24 * time.Hour
	}
	if c.JWT.ResetDuration <= 0 {
		c.JWT.ResetDuration = 15 * time.Minute
	}

	if len(c.CORS.AllowOrigins) == 0 {
		c.CORS.AllowOrigins = []string{"http://localhost:3000"}
	}

	if c.RateLimit.Type == "" {
		c.RateLimit.Type = "memory"
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = 15 * time.Minute
	}
	if c.RateLimit.MaxRequests <= 0 {
		c.RateLimit.MaxRequests = 100
	}
	if c.RateLimit.AuthMaxRequests <= 0 {
		c.RateLimit.AuthMaxRequests = 5
	}
	if c.RateLimit.Redis.Prefix == "" {
		c.RateLimit.Redis.Prefix = "agridash:ratelimit:"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "agridash"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "agridash-apiserver"
	}
}

// Validate reports configuration combinations the server cannot start with
func (c *APIServerConfig) Validate() error {
	var errs []error
	switch c.Database.Type {
	case "sqlite", "postgres", "mysql":
	default:
		errs = append(errs, fmt.Errorf("unsupported database type: %s", c.Database.Type))
	}
	switch c.DocStore.Type {
	case "memory":
	case "mongo":
		if c.DocStore.URI == "" {
			errs = append(errs, errors.New("docstore.uri is required for mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported docstore type: %s", c.DocStore.Type))
	}
	switch c.RateLimit.Type {
	case "memory":
	case "redis":
		if c.RateLimit.Redis.Addr == "" {
			errs = append(errs, errors.New("rate_limit.redis.addr is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported rate limit type: %s", c.RateLimit.Type))
	}
	if c.JWT.SecretKey == "" {
		errs = append(errs, errors.New("jwt.secret_key is required"))
	}
	return errors.Join(errs...)
}

// AIAvailable reports whether a hosted model client should be constructed
func (c *AIConfig) AIAvailable() bool {
	return c.Enabled && strings.TrimSpace(c.APIKey) != ""
}
