package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Migrations MigrationsConfig `mapstructure:"migrations"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Transfer   TransferConfig   `mapstructure:"transfer"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr               string `mapstructure:"addr"`
	MetricsAddr        string `mapstructure:"metrics_addr"`
	ShutdownTimeoutSec int    `mapstructure:"shutdown_timeout_sec"`
	ReadTimeoutSec     int    `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec    int    `mapstructure:"write_timeout_sec"`
}

type DatabaseConfig struct {
	DSN                  string `mapstructure:"dsn"`
	Slaves               string `mapstructure:"slaves"`
	MaxOpenConns         int    `mapstructure:"max_open_conns"`
	MaxIdleConns         int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSec   int    `mapstructure:"conn_max_lifetime_sec"`
	ConnectRetries       int    `mapstructure:"connect_retries"`
	ConnectRetryDelaySec int    `mapstructure:"connect_retry_delay_sec"`
	QueryRetries         int    `mapstructure:"query_retries"`
}

func (d DatabaseConfig) QueryStrategy() retry.Strategy {
	return retry.Strategy{
		Attempts: d.QueryRetries,
		Delay:    500 * time.Millisecond,
		Backoff:  2,
	}
}

type MigrationsConfig struct {
	Path string `mapstructure:"path"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	GroupID       string   `mapstructure:"group_id"`
	RetryAttempts int      `mapstructure:"retry_attempts"`
	RetryDelayMs  int      `mapstructure:"retry_delay_ms"`
}

// RetryStrategy is shared by the producer and the consumer fetch loop.
func (k KafkaConfig) RetryStrategy() retry.Strategy {
	return retry.Strategy{
		Attempts: k.RetryAttempts,
		Delay:    time.Duration(k.RetryDelayMs) * time.Millisecond,
		Backoff:  2,
	}
}

// StorageConfig selects and configures the blob store backend.
// Type is one of "local", "s3" or "azure".
type StorageConfig struct {
	Type          string `mapstructure:"type"`
	Container     string `mapstructure:"container"`
	PublicBaseURL string `mapstructure:"public_base_url"`

	LocalPath string `mapstructure:"local_path"`

	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
	S3Region    string `mapstructure:"s3_region"`
	S3UseSSL    bool   `mapstructure:"s3_use_ssl"`

	AzureAccountName      string `mapstructure:"azure_account_name"`
	AzureAccountKey       string `mapstructure:"azure_account_key"`
	AzureConnectionString string `mapstructure:"azure_connection_string"`
	AzureServiceURL       string `mapstructure:"azure_service_url"`
	AzureBlockSizeKB      int    `mapstructure:"azure_block_size_kb"`
}

type FetchConfig struct {
	TimeoutSec int    `mapstructure:"timeout_sec"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	UserAgent  string `mapstructure:"user_agent"`
	// PerHostIntervalMs is the minimum gap between two fetches from one host; 0 disables it.
	PerHostIntervalMs int `mapstructure:"per_host_interval_ms"`
}

type TransferConfig struct {
	// LegacyContentType tags every upload as "image/jpg" regardless of the
	// encoded format, matching deployments that relied on that behaviour.
	LegacyContentType bool `mapstructure:"legacy_content_type"`
}

type ProcessingConfig struct {
	OutputQuality int `mapstructure:"output_quality"`
	// MaxDimension and MaxPixels may only lower the built-in geometry ceiling.
	MaxDimension int `mapstructure:"max_dimension"`
	MaxPixels    int `mapstructure:"max_pixels"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func Load(path string) (*Config, error) {
	cfg := config.New()

	configPath := path
	if configPath == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			configPath = "config.yaml"
		} else if _, err := os.Stat("/app/config.yaml"); err == nil {
			configPath = "/app/config.yaml"
		} else {
			return nil, fmt.Errorf("config.yaml not found")
		}
	}

	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = ""
	}

	if err := cfg.Load(configPath, envPath, "APP"); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	appConfig := &Config{}
	if err := cfg.Unmarshal(appConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(appConfig)

	if err := validateConfig(appConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	zlog.Logger.Info().
		Str("storage_type", appConfig.Storage.Type).
		Str("container", appConfig.Storage.Container).
		Int("fetch_timeout_sec", appConfig.Fetch.TimeoutSec).
		Bool("legacy_content_type", appConfig.Transfer.LegacyContentType).
		Msg("Config loaded successfully via wbf")

	return appConfig, nil
}

// ApplyLogLevel sets the global zerolog level from logging.level.
func ApplyLogLevel(cfg LoggingConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("level", cfg.Level).Msg("unknown log level, keeping info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func applyDefaults(cfg *Config) {
	if cfg.Fetch.TimeoutSec <= 0 {
		cfg.Fetch.TimeoutSec = 30
	}
	if cfg.Fetch.MaxSizeMB <= 0 {
		cfg.Fetch.MaxSizeMB = 20
	}
	if cfg.Processing.OutputQuality <= 0 || cfg.Processing.OutputQuality > 100 {
		cfg.Processing.OutputQuality = 90
	}
	if cfg.Storage.AzureBlockSizeKB <= 0 {
		cfg.Storage.AzureBlockSizeKB = 1024
	}
	if cfg.Kafka.RetryAttempts <= 0 {
		cfg.Kafka.RetryAttempts = 3
	}
	if cfg.Kafka.RetryDelayMs <= 0 {
		cfg.Kafka.RetryDelayMs = 2000
	}
	if cfg.Database.QueryRetries <= 0 {
		cfg.Database.QueryRetries = 3
	}
	if cfg.Database.ConnectRetries <= 0 {
		cfg.Database.ConnectRetries = 10
	}
	if cfg.Database.ConnectRetryDelaySec <= 0 {
		cfg.Database.ConnectRetryDelaySec = 3
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func validateConfig(cfg *Config) error {
	// Server
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if cfg.Server.ShutdownTimeoutSec <= 0 {
		return fmt.Errorf("server.shutdown_timeout_sec must be positive")
	}
	if cfg.Server.ReadTimeoutSec <= 0 {
		return fmt.Errorf("server.read_timeout_sec must be positive")
	}
	if cfg.Server.WriteTimeoutSec <= 0 {
		return fmt.Errorf("server.write_timeout_sec must be positive")
	}

	// Database
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if cfg.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if cfg.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns must be non-negative")
	}

	// Migrations
	if cfg.Migrations.Path == "" {
		return fmt.Errorf("migrations.path is required")
	}

	// Kafka
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must contain at least one broker")
	}
	if cfg.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required")
	}
	if cfg.Kafka.GroupID == "" {
		return fmt.Errorf("kafka.group_id is required")
	}

	return ValidateStorage(&cfg.Storage)
}

// ValidateStorage checks that the selected backend has everything it needs
// to connect. The local backend requires no credentials.
func ValidateStorage(cfg *StorageConfig) error {
	switch cfg.Type {
	case "":
		return fmt.Errorf("storage.type is required (local|s3|azure)")
	case "local":
		if cfg.LocalPath == "" {
			return fmt.Errorf("storage.local_path is required for local storage")
		}
	case "s3":
		if cfg.S3Endpoint == "" {
			return fmt.Errorf("storage.s3_endpoint is required for s3 storage")
		}
		if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
			return fmt.Errorf("storage.s3_access_key and storage.s3_secret_key are required for s3 storage")
		}
	case "azure":
		if cfg.AzureConnectionString == "" {
			if cfg.AzureAccountName == "" {
				return fmt.Errorf("storage.azure_account_name is required for azure storage")
			}
			if cfg.AzureAccountKey == "" {
				return fmt.Errorf("storage.azure_account_key is required for azure storage")
			}
		}
	default:
		return fmt.Errorf("storage.type must be 'local', 's3' or 'azure'")
	}
	if cfg.Container == "" {
		return fmt.Errorf("storage.container is required")
	}
	return nil
}
