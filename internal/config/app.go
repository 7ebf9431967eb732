package config

import (
	"fmt"
	"strings"

	"github.com/Veraticus/ledger-sieve/internal/common"
	"github.com/spf13/viper"
)

// Environments accepted by server.environment.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Model    ModelConfig    `mapstructure:"model"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Sheets   SheetsToggle   `mapstructure:"sheets"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Environment  string   `mapstructure:"environment"`
	CertCacheDir string   `mapstructure:"cert_cache_dir"`
	Domains      []string `mapstructure:"domains"`
	Port         int      `mapstructure:"port"`
	MaxUploadMB  int64    `mapstructure:"max_upload_mb"`
	// SelfSignedTLS serves development traffic over HTTPS on localhost.
	SelfSignedTLS bool `mapstructure:"self_signed_tls"`
}

// StorageConfig names the upload and output directories.
type StorageConfig struct {
	UploadsDir string `mapstructure:"uploads_dir"`
	OutputDir  string `mapstructure:"output_dir"`
}

// DatabaseConfig locates the run history database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ModelConfig locates the classifier artifacts.
type ModelConfig struct {
	VectorizerPath string `mapstructure:"vectorizer_path"`
	ClassifierPath string `mapstructure:"classifier_path"`
}

// PipelineConfig tunes the classification pipeline.
type PipelineConfig struct {
	MissingText string `mapstructure:"missing_text"`
}

// LoggingConfig selects the log level and handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SheetsToggle turns report publishing on. Credentials are read by
// LoadSheetsConfig.
type SheetsToggle struct {
	Enabled bool `mapstructure:"enabled"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", EnvDevelopment)
	v.SetDefault("server.domains", []string{})
	v.SetDefault("server.cert_cache_dir", "~/.cache/sieve/certs")
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("server.self_signed_tls", false)
	v.SetDefault("storage.uploads_dir", "Uploads")
	v.SetDefault("storage.output_dir", "FilteredOutput")
	v.SetDefault("database.path", "~/.local/share/sieve/sieve.db")
	v.SetDefault("model.vectorizer_path", "vectorizer.json")
	v.SetDefault("model.classifier_path", "model.json")
	v.SetDefault("pipeline.missing_text", "nan")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("sheets.enabled", false)
}

// Load reads the configuration from v, expands paths, and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}

	cfg.Server.CertCacheDir = ExpandPath(cfg.Server.CertCacheDir)
	cfg.Storage.UploadsDir = ExpandPath(cfg.Storage.UploadsDir)
	cfg.Storage.OutputDir = ExpandPath(cfg.Storage.OutputDir)
	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Model.VectorizerPath = ExpandPath(cfg.Model.VectorizerPath)
	cfg.Model.ClassifierPath = ExpandPath(cfg.Model.ClassifierPath)
	cfg.Server.Environment = strings.ToLower(strings.TrimSpace(cfg.Server.Environment))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", common.ErrInvalidConfig, c.Server.Port)
	}
	switch c.Server.Environment {
	case EnvDevelopment:
	case EnvProduction:
		if len(c.Server.Domains) == 0 {
			return fmt.Errorf("%w: server.domains is required in production", common.ErrMissingConfig)
		}
	default:
		return fmt.Errorf("%w: unknown server.environment %q", common.ErrInvalidConfig, c.Server.Environment)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("%w: server.max_upload_mb must be positive", common.ErrInvalidConfig)
	}
	if c.Storage.UploadsDir == "" || c.Storage.OutputDir == "" {
		return fmt.Errorf("%w: storage.uploads_dir and storage.output_dir are required", common.ErrMissingConfig)
	}
	if c.Model.VectorizerPath == "" || c.Model.ClassifierPath == "" {
		return fmt.Errorf("%w: model.vectorizer_path and model.classifier_path are required", common.ErrMissingConfig)
	}
	return nil
}

// Production reports whether the server should obtain certificates.
func (c *Config) Production() bool {
	return c.Server.Environment == EnvProduction
}

// MaxUploadBytes is the request body limit for uploads.
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB << 20
}
