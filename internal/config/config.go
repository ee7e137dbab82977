// Package config provides configuration structures and loading functionality for the upload service
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// Config represents the main configuration structure for the upload service
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	AWS    AWSConfig    `mapstructure:"aws"`
	Upload UploadConfig `mapstructure:"upload"`
	Sentry SentryConfig `mapstructure:"sentry"`
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Listen       string        `mapstructure:"listen" envconfig:"SERVER_LISTEN" default:":8000"`
	Debug        bool          `mapstructure:"debug" envconfig:"DEBUG" default:"false"`
	FrontendURL  string        `mapstructure:"frontend_url" envconfig:"FRONTEND_URL"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"60s"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" envconfig:"SERVER_IDLE_TIMEOUT" default:"120s"`
	LogLevel     string        `mapstructure:"log_level" envconfig:"LOG_LEVEL" default:"info"`
}

// AWSConfig contains S3 credentials and addressing settings
type AWSConfig struct {
	AccessKeyID     string `mapstructure:"access_key_id" envconfig:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `mapstructure:"secret_access_key" envconfig:"AWS_SECRET_ACCESS_KEY"`
	Bucket          string `mapstructure:"bucket" envconfig:"AWS_S3_BUCKET"`
	Region          string `mapstructure:"region" envconfig:"AWS_REGION" default:"us-east-1"`
	Endpoint        string `mapstructure:"endpoint" envconfig:"AWS_ENDPOINT_URL"`
	PathStyle       bool   `mapstructure:"path_style" envconfig:"AWS_S3_PATH_STYLE" default:"false"`
}

// UploadConfig contains upload validation limits and store call settings
type UploadConfig struct {
	MaxSize    int64         `mapstructure:"max_size" envconfig:"MAX_UPLOAD_SIZE" default:"52428800"` // 50MB
	PresignTTL time.Duration `mapstructure:"presign_ttl" envconfig:"PRESIGN_TTL" default:"1h"`
	PutTimeout time.Duration `mapstructure:"put_timeout" envconfig:"UPLOAD_TIMEOUT" default:"2m"`
}

// SentryConfig contains Sentry error tracking configuration
type SentryConfig struct {
	DSN              string  `mapstructure:"dsn" envconfig:"SENTRY_DSN"`
	Environment      string  `mapstructure:"environment" envconfig:"SENTRY_ENVIRONMENT" default:"production"`
	SampleRate       float64 `mapstructure:"sample_rate" envconfig:"SENTRY_SAMPLE_RATE" default:"1.0"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate" envconfig:"SENTRY_TRACES_SAMPLE_RATE" default:"0.1"`
	AttachStacktrace bool    `mapstructure:"attach_stacktrace" envconfig:"SENTRY_ATTACH_STACKTRACE" default:"true"`
	Debug            bool    `mapstructure:"debug" envconfig:"SENTRY_DEBUG" default:"false"`
	Release          string  `mapstructure:"release" envconfig:"SENTRY_RELEASE"`
	ServerName       string  `mapstructure:"server_name" envconfig:"SENTRY_SERVER_NAME"`
}

// Enabled reports whether Sentry error tracking should be initialized.
func (s SentryConfig) Enabled() bool {
	return s.DSN != ""
}

// Load reads and validates configuration from a file or environment variables.
// If configFile is empty, only environment variables are processed.
// Environment variables always win over file values.
func Load(configFile string) (*Config, error) {
	cfg := &Config{}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := viper.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process env vars: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate ensures the loaded configuration is internally consistent.
// Missing AWS settings are not an error here: the process must start
// without them and report the gap via the config status endpoint.
func validate(cfg *Config) error {
	if cfg.Server.Listen == "" {
		return fmt.Errorf("server listen address is required")
	}
	if cfg.Upload.MaxSize <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d", cfg.Upload.MaxSize)
	}
	if cfg.Upload.PresignTTL <= 0 {
		return fmt.Errorf("presign TTL must be positive, got %s", cfg.Upload.PresignTTL)
	}
	if cfg.Upload.PutTimeout <= 0 {
		return fmt.Errorf("upload timeout must be positive, got %s", cfg.Upload.PutTimeout)
	}
	return nil
}

// NormalizedRegion returns the region code usable by the SDK. Console
// copy-paste values like "US East (Ohio) us-east-2" carry a description
// before the code; the code is the last whitespace-delimited token.
func (a AWSConfig) NormalizedRegion() string {
	region := a.Region
	if strings.Contains(region, "(") && strings.Contains(region, ")") {
		fields := strings.Fields(region)
		if len(fields) > 0 {
			region = fields[len(fields)-1]
		}
	}
	return region
}

// HasStaticCredentials reports whether both static credential values are set.
// When false the SDK falls back to its default credential chain.
func (a AWSConfig) HasStaticCredentials() bool {
	return a.AccessKeyID != "" && a.SecretAccessKey != ""
}

// MissingVars lists the functional environment variables that are unset.
// Used for the startup warning; an empty slice means S3 uploads can work.
func (a AWSConfig) MissingVars() []string {
	var missing []string
	if a.AccessKeyID == "" {
		missing = append(missing, "AWS_ACCESS_KEY_ID")
	}
	if a.SecretAccessKey == "" {
		missing = append(missing, "AWS_SECRET_ACCESS_KEY")
	}
	if a.Bucket == "" {
		missing = append(missing, "AWS_S3_BUCKET")
	}
	return missing
}

// AllowedOrigins resolves the cross-origin caller policy. The frontend URL
// is always allowed when set; debug mode adds the local dev servers.
func (s ServerConfig) AllowedOrigins() []string {
	var origins []string
	if s.FrontendURL != "" {
		origins = append(origins, s.FrontendURL)
	}
	if s.Debug {
		origins = append(origins, "http://localhost:3000", "http://localhost:5000")
	}
	return origins
}

// AllowAllOrigins reports whether every cross-origin caller is permitted.
// Only true in debug mode when no explicit origins were configured.
func (s ServerConfig) AllowAllOrigins() bool {
	return s.Debug && s.FrontendURL == ""
}

// maskCredential masks sensitive credential values for safe logging
func maskCredential(credential string) string {
	if len(credential) <= 4 {
		return "[REDACTED]"
	}
	// Show first 4 characters, mask the rest
	return credential[:4] + "****"
}

// SafeAccessKey returns the access key in a form safe to log.
func (a AWSConfig) SafeAccessKey() string {
	if a.AccessKeyID == "" {
		return ""
	}
	return maskCredential(a.AccessKeyID)
}
