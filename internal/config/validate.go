package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// OCRConfig holds OCR service connection settings.
type OCRConfig struct {
	URL         string        `mapstructure:"url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Concurrency int           `mapstructure:"concurrency"`
	CACert      string        `mapstructure:"ca_cert"`
	ClientCert  string        `mapstructure:"client_cert"`
	ClientKey   string        `mapstructure:"client_key"`
	ServerName  string        `mapstructure:"server_name"`
}

// ImagesConfig locates the photograph share. Root takes precedence; BaseURL
// is for shares exported over HTTP.
type ImagesConfig struct {
	Root    string        `mapstructure:"root"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// BatchConfig holds batch validation throttling settings.
type BatchConfig struct {
	Limit    int           `mapstructure:"limit"`
	Cooldown time.Duration `mapstructure:"cooldown"`
}

// ValidateConfig represents the complete validator configuration.
type ValidateConfig struct {
	MongoDB   MongoDBConfig `mapstructure:"mongodb"`
	OCR       OCRConfig     `mapstructure:"ocr"`
	Images    ImagesConfig  `mapstructure:"images"`
	Batch     BatchConfig   `mapstructure:"batch"`
	BusBuffer int           `mapstructure:"bus_buffer"`
	LogLevel  string        `mapstructure:"log_level"`
	LogFormat string        `mapstructure:"log_format"`
}

// LoadValidateConfig loads the validator configuration from a file.
func LoadValidateConfig(configPath string) (*ValidateConfig, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("mongodb.database", "gatewatch")
	v.SetDefault("mongodb.timeout", "10s")
	v.SetDefault("mongodb.max_pool_size", 100)
	v.SetDefault("mongodb.ttl_days", 30)
	v.SetDefault("ocr.timeout", "60s")
	v.SetDefault("ocr.max_retries", 3)
	v.SetDefault("ocr.concurrency", 1)
	v.SetDefault("images.timeout", "30s")
	v.SetDefault("batch.limit", 100)
	v.SetDefault("batch.cooldown", "2s")
	v.SetDefault("bus_buffer", 256)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config ValidateConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if config.MongoDB.URI == "" {
		return nil, fmt.Errorf("mongodb.uri is required")
	}
	if config.OCR.URL == "" {
		return nil, fmt.Errorf("ocr.url is required")
	}
	if config.Images.Root == "" && config.Images.BaseURL == "" {
		return nil, fmt.Errorf("images.root or images.base_url is required")
	}
	if config.OCR.ClientCert != "" || config.OCR.ClientKey != "" {
		if config.OCR.CACert == "" || config.OCR.ClientCert == "" || config.OCR.ClientKey == "" {
			return nil, fmt.Errorf("ocr TLS requires ca_cert, client_cert and client_key together")
		}
	}

	return &config, nil
}
