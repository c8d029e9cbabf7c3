// Package config loads rawproc runtime settings from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissing is wrapped by every validation failure for an absent required setting.
var ErrMissing = errors.New("missing required setting")

// Metadata backends.
const (
	BackendDynamoDB = "dynamodb"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config is read once at process start and never mutated afterwards.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// StorageConfig holds object storage settings for both logical buckets.
type StorageConfig struct {
	RawBucket       string `mapstructure:"raw_bucket"`
	ProcessedBucket string `mapstructure:"processed_bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKey       string `mapstructure:"access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	UseTLS          bool   `mapstructure:"use_tls"`
	EnsureBuckets   bool   `mapstructure:"ensure_buckets"`
}

// MetadataConfig selects and configures the metadata store backend.
type MetadataConfig struct {
	Backend  string         `mapstructure:"backend"`
	Table    string         `mapstructure:"table"`
	DynamoDB DynamoDBConfig `mapstructure:"dynamodb"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// DynamoDBConfig holds DynamoDB client overrides. Empty values defer to the AWS SDK defaults.
type DynamoDBConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// PostgresConfig holds PostgreSQL connection and migration settings.
type PostgresConfig struct {
	URL            string `mapstructure:"url"`
	Migrate        bool   `mapstructure:"migrate"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// NATSConfig holds JetStream settings for the consume trigger.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Name          string        `mapstructure:"name"`
	Stream        string        `mapstructure:"stream"`
	Subject       string        `mapstructure:"subject"`
	Consumer      string        `mapstructure:"consumer"`
	AckWait       time.Duration `mapstructure:"ack_wait"`
	MaxDeliver    int           `mapstructure:"max_deliver"`
	NakDelay      time.Duration `mapstructure:"nak_delay"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// ServerConfig holds the health/metrics listener used by the consume trigger.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from configPath (or config.yaml in the default search path)
// and environment variables. It does not validate; call Validate before use.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir := os.Getenv("RAWPROC_CONFIG_DIR"); dir != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/rawproc")
	}

	// Environment variables override (RAWPROC_STORAGE_RAW_BUCKET, etc.)
	v.SetEnvPrefix("RAWPROC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Deployment env names take part too; the prefixed form wins when both are set.
	_ = v.BindEnv("storage.raw_bucket", "RAWPROC_STORAGE_RAW_BUCKET", "RAW_BUCKET")
	_ = v.BindEnv("storage.processed_bucket", "RAWPROC_STORAGE_PROCESSED_BUCKET", "PROCESSED_BUCKET")
	_ = v.BindEnv("metadata.table", "RAWPROC_METADATA_TABLE", "DDB_TABLE")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults and environment
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.raw_bucket", "")
	v.SetDefault("storage.processed_bucket", "")
	v.SetDefault("storage.endpoint", "s3.amazonaws.com")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_tls", true)
	v.SetDefault("storage.ensure_buckets", false)

	v.SetDefault("metadata.backend", BackendDynamoDB)
	v.SetDefault("metadata.table", "")
	v.SetDefault("metadata.dynamodb.region", "")
	v.SetDefault("metadata.dynamodb.endpoint", "")
	v.SetDefault("metadata.redis.url", "redis://localhost:6379/0")
	v.SetDefault("metadata.postgres.url", "")
	v.SetDefault("metadata.postgres.migrate", false)
	v.SetDefault("metadata.postgres.migrations_path", "file://migrations")

	v.SetDefault("nats.url", "nats://nats:4222")
	v.SetDefault("nats.name", "rawproc")
	v.SetDefault("nats.stream", "RAW_OBJECTS")
	v.SetDefault("nats.subject", "rawproc.notifications")
	v.SetDefault("nats.consumer", "rawproc")
	v.SetDefault("nats.ack_wait", "30s")
	v.SetDefault("nats.max_deliver", 5)
	v.SetDefault("nats.nak_delay", "5s")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")

	v.SetDefault("server.addr", ":9090")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate reports every missing or invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	required := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissing, name))
		}
	}

	required("storage.raw_bucket (RAW_BUCKET)", c.Storage.RawBucket)
	required("storage.processed_bucket (PROCESSED_BUCKET)", c.Storage.ProcessedBucket)
	required("metadata.table (DDB_TABLE)", c.Metadata.Table)

	switch c.Metadata.Backend {
	case BackendDynamoDB, BackendMemory:
	case BackendRedis:
		required("metadata.redis.url", c.Metadata.Redis.URL)
	case BackendPostgres:
		required("metadata.postgres.url", c.Metadata.Postgres.URL)
	default:
		errs = append(errs, fmt.Errorf("metadata.backend %q is not one of %s, %s, %s, %s",
			c.Metadata.Backend, BackendDynamoDB, BackendRedis, BackendPostgres, BackendMemory))
	}

	return errors.Join(errs...)
}

// ValidateNATS checks the settings needed only by the consume trigger.
func (c *Config) ValidateNATS() error {
	var errs []error
	for name, value := range map[string]string{
		"nats.url":      c.NATS.URL,
		"nats.stream":   c.NATS.Stream,
		"nats.subject":  c.NATS.Subject,
		"nats.consumer": c.NATS.Consumer,
	} {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissing, name))
		}
	}
	if c.NATS.MaxDeliver == 0 {
		errs = append(errs, errors.New("nats.max_deliver must not be 0"))
	}
	return errors.Join(errs...)
}
