package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	// Environment
	Environment string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	Database  DatabaseConfig
	Cache     CacheConfig
	Queue     QueueConfig
	Ingestion IngestionConfig
}

// DatabaseConfig selects and configures the document store
type DatabaseConfig struct {
	Driver          string `mapstructure:"STORE_DRIVER"`
	Host            string `mapstructure:"DB_HOST"`
	Port            int    `mapstructure:"DB_PORT"`
	User            string `mapstructure:"DB_USER"`
	Password        string `mapstructure:"DB_PASSWORD"`
	Database        string `mapstructure:"DB_NAME"`
	SSLMode         string `mapstructure:"DB_SSLMODE"`
	LogLevel        string `mapstructure:"DB_LOG_LEVEL"`
	MaxConnections  int    `mapstructure:"DB_MAX_CONNECTIONS"`
	MinConnections  int    `mapstructure:"DB_MIN_CONNECTIONS"`
	MaxConnLifetime int    `mapstructure:"DB_MAX_CONN_LIFETIME_MIN"`
	MaxConnIdleTime int    `mapstructure:"DB_MAX_CONN_IDLE_MIN"`
	InsertBatchSize int    `mapstructure:"INSERT_BATCH_SIZE"`
}

// CacheConfig configures the optional Redis run lock
type CacheConfig struct {
	Enabled        bool   `mapstructure:"REDIS_ENABLED"`
	Host           string `mapstructure:"REDIS_HOST"`
	Port           int    `mapstructure:"REDIS_PORT"`
	Password       string `mapstructure:"REDIS_PASSWORD"`
	DB             int    `mapstructure:"REDIS_DB"`
	DialTimeout    int    `mapstructure:"REDIS_DIAL_TIMEOUT"`
	LockTTLSeconds int    `mapstructure:"LOCK_TTL_SECONDS"`
}

// QueueConfig configures the asynq ingestion queue
type QueueConfig struct {
	Name       string `mapstructure:"QUEUE_NAME"`
	MaxRetries int    `mapstructure:"WORKER_MAX_RETRIES"`
}

// IngestionConfig holds the per-run ingestion settings
type IngestionConfig struct {
	CSVCollection string `mapstructure:"CSV_COLLECTION"`
	XMLCollection string `mapstructure:"XML_COLLECTION"`
	IDField       string `mapstructure:"ID_FIELD"`
	XMLParser     string `mapstructure:"XML_PARSER"`
	InputEncoding string `mapstructure:"INPUT_ENCODING"`
	MaxFileSizeMB int64  `mapstructure:"MAX_FILE_SIZE_MB"`
	ArchiveDir    string `mapstructure:"ARCHIVE_DIR"`
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			slog.Debug("no .env file found, using environment variables only")
		}
	}

	return FromViper(viper.New())
}

// FromViper reads the configuration through v after installing defaults
func FromViper(v *viper.Viper) (*Config, error) {
	config := &Config{}

	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")

	// Database defaults
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_NAME", "products_db")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_LOG_LEVEL", "silent")
	v.SetDefault("DB_MAX_CONNECTIONS", 4)
	v.SetDefault("DB_MIN_CONNECTIONS", 1)
	v.SetDefault("DB_MAX_CONN_LIFETIME_MIN", 30)
	v.SetDefault("DB_MAX_CONN_IDLE_MIN", 5)
	v.SetDefault("INSERT_BATCH_SIZE", 1000)

	// Redis defaults
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_DIAL_TIMEOUT", 5)
	v.SetDefault("LOCK_TTL_SECONDS", 900)

	// Queue defaults
	v.SetDefault("QUEUE_NAME", "ingest")
	v.SetDefault("WORKER_MAX_RETRIES", 3)

	// Ingestion defaults
	v.SetDefault("CSV_COLLECTION", "csv_items")
	v.SetDefault("XML_COLLECTION", "xml_items")
	v.SetDefault("ID_FIELD", "id")
	v.SetDefault("XML_PARSER", "events")
	v.SetDefault("INPUT_ENCODING", "utf-8")
	v.SetDefault("MAX_FILE_SIZE_MB", 500)
	v.SetDefault("ARCHIVE_DIR", "")

	v.AutomaticEnv()

	config.Environment = v.GetString("ENV")
	config.LogLevel = v.GetString("LOG_LEVEL")

	// Database
	config.Database.Driver = strings.ToLower(v.GetString("STORE_DRIVER"))
	config.Database.Host = v.GetString("DB_HOST")
	config.Database.Port = v.GetInt("DB_PORT")
	config.Database.User = v.GetString("DB_USER")
	config.Database.Password = v.GetString("DB_PASSWORD")
	config.Database.Database = v.GetString("DB_NAME")
	config.Database.SSLMode = v.GetString("DB_SSLMODE")
	config.Database.LogLevel = v.GetString("DB_LOG_LEVEL")
	config.Database.MaxConnections = v.GetInt("DB_MAX_CONNECTIONS")
	config.Database.MinConnections = v.GetInt("DB_MIN_CONNECTIONS")
	config.Database.MaxConnLifetime = v.GetInt("DB_MAX_CONN_LIFETIME_MIN")
	config.Database.MaxConnIdleTime = v.GetInt("DB_MAX_CONN_IDLE_MIN")
	config.Database.InsertBatchSize = v.GetInt("INSERT_BATCH_SIZE")

	// Redis
	config.Cache.Enabled = v.GetBool("REDIS_ENABLED")
	config.Cache.Host = v.GetString("REDIS_HOST")
	config.Cache.Port = v.GetInt("REDIS_PORT")
	config.Cache.Password = v.GetString("REDIS_PASSWORD")
	config.Cache.DB = v.GetInt("REDIS_DB")
	config.Cache.DialTimeout = v.GetInt("REDIS_DIAL_TIMEOUT")
	config.Cache.LockTTLSeconds = v.GetInt("LOCK_TTL_SECONDS")

	// Queue
	config.Queue.Name = v.GetString("QUEUE_NAME")
	config.Queue.MaxRetries = v.GetInt("WORKER_MAX_RETRIES")

	// Ingestion
	config.Ingestion.CSVCollection = v.GetString("CSV_COLLECTION")
	config.Ingestion.XMLCollection = v.GetString("XML_COLLECTION")
	config.Ingestion.IDField = v.GetString("ID_FIELD")
	config.Ingestion.XMLParser = v.GetString("XML_PARSER")
	config.Ingestion.InputEncoding = v.GetString("INPUT_ENCODING")
	config.Ingestion.MaxFileSizeMB = v.GetInt64("MAX_FILE_SIZE_MB")
	config.Ingestion.ArchiveDir = v.GetString("ARCHIVE_DIR")

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks required fields
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case StoreDriverPostgres:
		if c.Database.User == "" {
			return fmt.Errorf("DB_USER is required")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (expected %s or %s)",
			c.Database.Driver, StoreDriverPostgres, StoreDriverMemory)
	}

	if c.Ingestion.IDField == "" {
		return fmt.Errorf("ID_FIELD must not be empty")
	}
	if c.Ingestion.CSVCollection == "" || c.Ingestion.XMLCollection == "" {
		return fmt.Errorf("CSV_COLLECTION and XML_COLLECTION must not be empty")
	}

	return nil
}

// GetDatabaseURL constructs the PostgreSQL connection string
func (c *Config) GetDatabaseURL() string {
	d := c.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

// GetRedisURL constructs the Redis address
func (c *Config) GetRedisURL() string {
	return fmt.Sprintf("%s:%d", c.Cache.Host, c.Cache.Port)
}

// MaxFileSizeBytes converts MAX_FILE_SIZE_MB; zero means unlimited
func (c *Config) MaxFileSizeBytes() int64 {
	return c.Ingestion.MaxFileSizeMB * 1024 * 1024
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LogConfig logs the configuration (hiding sensitive data)
func (c *Config) LogConfig(logger *slog.Logger) {
	logger.Debug("configuration loaded",
		slog.String("env", c.Environment),
		slog.String("store_driver", c.Database.Driver),
		slog.String("database", fmt.Sprintf("%s:%d/%s", c.Database.Host, c.Database.Port, c.Database.Database)),
		slog.Bool("redis_enabled", c.Cache.Enabled),
		slog.String("csv_collection", c.Ingestion.CSVCollection),
		slog.String("xml_collection", c.Ingestion.XMLCollection),
		slog.String("id_field", c.Ingestion.IDField),
		slog.String("xml_parser", c.Ingestion.XMLParser),
		slog.String("input_encoding", c.Ingestion.InputEncoding),
	)
}
