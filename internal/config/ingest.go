package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// MongoDBConfig holds MongoDB connection settings.
type MongoDBConfig struct {
	URI                string        `mapstructure:"uri"`
	Database           string        `mapstructure:"database"`
	CertificateKeyFile string        `mapstructure:"certificate_key_file"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxPoolSize        int           `mapstructure:"max_pool_size"`
	TTLDays            int           `mapstructure:"ttl_days"`
}

// BatchingConfig holds event batching settings for the ingest pipeline.
type BatchingConfig struct {
	MaxSize   int           `mapstructure:"max_size"`
	MaxWait   time.Duration `mapstructure:"max_wait"`
	QueueSize int           `mapstructure:"queue_size"`
}

// IngestConfig represents the complete ingest daemon configuration.
type IngestConfig struct {
	LogFile      string        `mapstructure:"log_file"`
	StateFile    string        `mapstructure:"state_file"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MongoDB      MongoDBConfig `mapstructure:"mongodb"`
	Batching     BatchingConfig `mapstructure:"batching"`
	BusBuffer    int           `mapstructure:"bus_buffer"`
	LogLevel     string        `mapstructure:"log_level"`
	LogFormat    string        `mapstructure:"log_format"`
}

// LoadIngestConfig loads the ingest daemon configuration from a file.
func LoadIngestConfig(configPath string) (*IngestConfig, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("state_file", "/var/lib/gatewatch/tailer-state.json")
	v.SetDefault("poll_interval", "2s")
	v.SetDefault("mongodb.database", "gatewatch")
	v.SetDefault("mongodb.timeout", "10s")
	v.SetDefault("mongodb.max_pool_size", 100)
	v.SetDefault("mongodb.ttl_days", 30)
	v.SetDefault("batching.max_size", 100)
	v.SetDefault("batching.max_wait", "5s")
	v.SetDefault("batching.queue_size", 1000)
	v.SetDefault("bus_buffer", 256)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config IngestConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if config.LogFile == "" {
		return nil, fmt.Errorf("log_file is required")
	}
	if config.MongoDB.URI == "" {
		return nil, fmt.Errorf("mongodb.uri is required")
	}

	return &config, nil
}
