// Package config loads and validates toolbox configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Catalog, Storage, Search, Postgres, Redis, Kafka, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Storage  StorageConfig  `yaml:"storage"`
	Search   SearchConfig   `yaml:"search"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// APIKeyHashes are SHA-256 hex digests of the keys allowed to write.
	// Empty leaves writes open.
	APIKeyHashes []string `yaml:"apiKeyHashes"`
	RateLimit    float64  `yaml:"rateLimit"`
	RateBurst    int      `yaml:"rateBurst"`
	CORSOrigins  []string `yaml:"corsOrigins"`
}

// CatalogConfig controls which fields the catalog indexes. An empty Fields
// list means fields are discovered from the records themselves.
type CatalogConfig struct {
	Fields   []string `yaml:"fields"`
	Required []string `yaml:"required"`
}

// StorageConfig selects the persistence backend by factory name and passes
// it constructor options.
type StorageConfig struct {
	Backend string            `yaml:"backend"`
	Options map[string]string `yaml:"options"`
	Watch   bool              `yaml:"watch"`
}

// SearchConfig selects the free-text engine.
type SearchConfig struct {
	Engine    string `yaml:"engine"`
	IndexPath string `yaml:"indexPath"`
	CacheSize int    `yaml:"cacheSize"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	Table           string        `yaml:"table"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	ConnectTimeout  time.Duration `yaml:"connectTimeout"`
}

// DSN returns a lib/pq-compatible data source name for the configured
// database.
func (p PostgresConfig) DSN() string {
	return p.DSNFor(p.Database)
}

// DSNFor returns a DSN pointing at another database on the same server.
func (p PostgresConfig) DSNFor(database string) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, database, p.SSLMode,
	)
}

// Server returns host:port for messages.
func (p PostgresConfig) Server() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr           string        `yaml:"addr"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	PoolSize       int           `yaml:"poolSize"`
	Key            string        `yaml:"key"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
}

// KafkaConfig holds the change-feed broker and topic settings.
type KafkaConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Brokers       []string      `yaml:"brokers"`
	ConsumerGroup string        `yaml:"consumerGroup"`
	Topic         string        `yaml:"topic"`
	ReloadDelay   time.Duration `yaml:"reloadDelay"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server. A Port equal to the
// API port serves /metrics from the API listener.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("invalid rate limit %v", c.Server.RateLimit)
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port %d", c.Metrics.Port)
	}
	switch c.Search.Engine {
	case "memory", "bleve":
	default:
		return fmt.Errorf("unknown search engine %q (choose from: memory, bleve)", c.Search.Engine)
	}
	if c.Storage.Backend == "" {
		return fmt.Errorf("storage backend is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka enabled but no brokers configured")
	}
	return nil
}

// defaultConfig returns a Config with defaults suitable for local use.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateBurst:       20,
		},
		Catalog: CatalogConfig{
			Required: []string{"name", "description", "url"},
		},
		Storage: StorageConfig{
			Backend: "memory",
			Options: map[string]string{},
		},
		Search: SearchConfig{
			Engine:    "memory",
			CacheSize: 256,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "toolbox",
			User:            "toolbox",
			Password:        "localdev",
			SSLMode:         "disable",
			Table:           "projects",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			ConnectTimeout:  5 * time.Second,
		},
		Redis: RedisConfig{
			Addr:           "localhost:6379",
			PoolSize:       10,
			Key:            "toolbox:projects",
			ConnectTimeout: 5 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "toolbox",
			Topic:         "toolbox.catalog-changes",
			ReloadDelay:   500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads TOOLBOX_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TOOLBOX_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TOOLBOX_API_KEY_HASHES"); v != "" {
		cfg.Server.APIKeyHashes = strings.Split(v, ",")
	}
	if v := os.Getenv("TOOLBOX_FIELDS"); v != "" {
		cfg.Catalog.Fields = strings.Fields(v)
	}
	if v := os.Getenv("TOOLBOX_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("TOOLBOX_STORAGE_DIRECTORY"); v != "" {
		if cfg.Storage.Options == nil {
			cfg.Storage.Options = map[string]string{}
		}
		cfg.Storage.Options["directory"] = v
	}
	if v := os.Getenv("TOOLBOX_SEARCH_ENGINE"); v != "" {
		cfg.Search.Engine = v
	}
	if v := os.Getenv("TOOLBOX_SEARCH_INDEX_PATH"); v != "" {
		cfg.Search.IndexPath = v
	}
	if v := os.Getenv("TOOLBOX_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("TOOLBOX_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("TOOLBOX_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("TOOLBOX_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("TOOLBOX_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("TOOLBOX_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("TOOLBOX_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TOOLBOX_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("TOOLBOX_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TOOLBOX_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
