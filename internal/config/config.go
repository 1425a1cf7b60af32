package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MongoConfig holds document store settings.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// StoreConfig selects the repository backend and bounds every call to it.
type StoreConfig struct {
	Driver         string
	Timeout        time.Duration
	ConnectRetries uint64
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// KafkaConfig holds the event producer settings. An empty broker list disables publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// RedisConfig holds the filter values cache settings. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// ListConfig bounds the page size of list requests.
type ListConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables and an optional config file.
type AppConfig struct {
	AppHost     string
	Port        string
	LogLevel    string
	LogFormat   string
	CORSOrigins string
	Store       StoreConfig
	Database    DatabaseConfig
	Mongo       MongoConfig
	MinIO       MinIOConfig
	Kafka       KafkaConfig
	Redis       RedisConfig
	List        ListConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_HOST", "localhost:8080")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("CORS_ALLOW_ORIGINS", "*")

	v.SetDefault("STORE_DRIVER", DriverMongo)
	v.SetDefault("STORE_TIMEOUT", 5*time.Second)
	v.SetDefault("STORE_CONNECT_RETRIES", 5)

	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGODB_DATABASE", "companydir")
	v.SetDefault("MONGODB_COLLECTION", "companies")

	v.SetDefault("DB_HOST", "")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME_SEC", 300)

	v.SetDefault("MINIO_ENDPOINT", "")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "")
	v.SetDefault("MINIO_USE_SSL", false)

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "company-events")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_TTL", 10*time.Minute)

	v.SetDefault("LIST_DEFAULT_LIMIT", 10)
	v.SetDefault("LIST_MAX_LIMIT", 100)
}

// Load reads configuration from environment variables, optionally layered
// over the file named by CONFIG_FILE. A .env file can be auto-loaded by
// importing: _ "github.com/joho/godotenv/autoload". Real environment
// variables take precedence over both.
func Load() (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := &AppConfig{
		AppHost:     v.GetString("APP_HOST"),
		Port:        v.GetString("PORT"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		LogFormat:   v.GetString("LOG_FORMAT"),
		CORSOrigins: v.GetString("CORS_ALLOW_ORIGINS"),
		Store: StoreConfig{
			Driver:         strings.ToLower(v.GetString("STORE_DRIVER")),
			Timeout:        v.GetDuration("STORE_TIMEOUT"),
			ConnectRetries: v.GetUint64("STORE_CONNECT_RETRIES"),
		},
		Database: DatabaseConfig{
			Host:               v.GetString("DB_HOST"),
			Port:               v.GetString("DB_PORT"),
			User:               v.GetString("DB_USER"),
			Password:           v.GetString("DB_PASSWORD"),
			Name:               v.GetString("DB_NAME"),
			SSLMode:            v.GetString("DB_SSLMODE"),
			MaxOpenConns:       v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:       v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetimeSec: v.GetInt("DB_CONN_MAX_LIFETIME_SEC"),
		},
		Mongo: MongoConfig{
			URI:        v.GetString("MONGODB_URI"),
			Database:   v.GetString("MONGODB_DATABASE"),
			Collection: v.GetString("MONGODB_COLLECTION"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			TTL:      v.GetDuration("REDIS_TTL"),
		},
		List: ListConfig{
			DefaultLimit: v.GetInt("LIST_DEFAULT_LIMIT"),
			MaxLimit:     v.GetInt("LIST_MAX_LIMIT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *AppConfig) Validate() error {
	switch c.Store.Driver {
	case DriverMongo, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q: want mongo, postgres or memory", c.Store.Driver)
	}
	if c.Store.Timeout <= 0 {
		return fmt.Errorf("invalid STORE_TIMEOUT %s: must be positive", c.Store.Timeout)
	}
	if c.List.DefaultLimit < 1 || c.List.MaxLimit < 1 {
		return fmt.Errorf("invalid list limits: default %d, max %d", c.List.DefaultLimit, c.List.MaxLimit)
	}
	return nil
}

// KafkaEnabled reports whether company events should be published.
func (c *AppConfig) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

// RedisEnabled reports whether filter values are cached.
func (c *AppConfig) RedisEnabled() bool {
	return c.Redis.Addr != ""
}

// MinIOEnabled reports whether an object storage endpoint is configured.
func (c *AppConfig) MinIOEnabled() bool {
	return c.MinIO.Endpoint != "" && c.MinIO.Bucket != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
