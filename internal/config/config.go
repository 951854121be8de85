package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix = "ZAVVETKA"

	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultAllowedOrigins     = "*"
	defaultStoreDriver        = StoreDriverSQLite
	defaultDatabasePath       = "zavvetka.db"
	defaultRedisAddress       = "127.0.0.1:6379"
	defaultS3Region           = "auto"
	defaultTelegramAPIBaseURL = "https://api.telegram.org"
	defaultTimezone           = "UTC"
	defaultWorkers            = 4
	defaultQueueSize          = 64
	defaultTaskTimeoutSeconds = 10
	defaultLogLevel           = "info"
)

// Supported note store backends.
const (
	StoreDriverMemory   = "memory"
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
	StoreDriverS3       = "s3"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress     string
	TrustedPlatform string
	AllowedOrigins  []string
	PublicDomain    string

	StoreDriver   string
	DatabasePath  string
	DatabaseDSN   string
	RedisAddress  string
	RedisPassword string
	RedisDB       int

	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	BotToken           string
	WebhookSecret      string
	TelegramAPIBaseURL string
	Location           *time.Location

	BackgroundWorkers   int
	BackgroundQueueSize int
	TaskTimeout         time.Duration

	LogLevel string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.trusted_platform", "")
	configViper.SetDefault("http.allowed_origins", defaultAllowedOrigins)
	configViper.SetDefault("public.domain", "")
	configViper.SetDefault("store.driver", defaultStoreDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.dsn", "")
	configViper.SetDefault("redis.address", defaultRedisAddress)
	configViper.SetDefault("redis.password", "")
	configViper.SetDefault("redis.db", 0)
	configViper.SetDefault("s3.bucket", "")
	configViper.SetDefault("s3.region", defaultS3Region)
	configViper.SetDefault("s3.endpoint", "")
	configViper.SetDefault("s3.access_key_id", "")
	configViper.SetDefault("s3.secret_access_key", "")
	configViper.SetDefault("telegram.bot_token", "")
	configViper.SetDefault("telegram.webhook_secret", "")
	configViper.SetDefault("telegram.api_base_url", defaultTelegramAPIBaseURL)
	configViper.SetDefault("telegram.timezone", defaultTimezone)
	configViper.SetDefault("background.workers", defaultWorkers)
	configViper.SetDefault("background.queue_size", defaultQueueSize)
	configViper.SetDefault("background.task_timeout_seconds", defaultTaskTimeoutSeconds)
	configViper.SetDefault("log.level", defaultLogLevel)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:         strings.TrimSpace(configViper.GetString("http.address")),
		TrustedPlatform:     strings.TrimSpace(configViper.GetString("http.trusted_platform")),
		AllowedOrigins:      splitList(configViper.GetString("http.allowed_origins")),
		PublicDomain:        strings.TrimSpace(configViper.GetString("public.domain")),
		StoreDriver:         strings.ToLower(strings.TrimSpace(configViper.GetString("store.driver"))),
		DatabasePath:        strings.TrimSpace(configViper.GetString("database.path")),
		DatabaseDSN:         strings.TrimSpace(configViper.GetString("database.dsn")),
		RedisAddress:        strings.TrimSpace(configViper.GetString("redis.address")),
		RedisPassword:       configViper.GetString("redis.password"),
		RedisDB:             configViper.GetInt("redis.db"),
		S3Bucket:            strings.TrimSpace(configViper.GetString("s3.bucket")),
		S3Region:            strings.TrimSpace(configViper.GetString("s3.region")),
		S3Endpoint:          strings.TrimSpace(configViper.GetString("s3.endpoint")),
		S3AccessKeyID:       configViper.GetString("s3.access_key_id"),
		S3SecretAccessKey:   configViper.GetString("s3.secret_access_key"),
		BotToken:            strings.TrimSpace(configViper.GetString("telegram.bot_token")),
		WebhookSecret:       strings.TrimSpace(configViper.GetString("telegram.webhook_secret")),
		TelegramAPIBaseURL:  strings.TrimSpace(configViper.GetString("telegram.api_base_url")),
		BackgroundWorkers:   configViper.GetInt("background.workers"),
		BackgroundQueueSize: configViper.GetInt("background.queue_size"),
		TaskTimeout:         time.Duration(configViper.GetInt("background.task_timeout_seconds")) * time.Second,
		LogLevel:            configViper.GetString("log.level"),
	}

	location, err := time.LoadLocation(strings.TrimSpace(configViper.GetString("telegram.timezone")))
	if err != nil {
		return AppConfig{}, fmt.Errorf("telegram.timezone is invalid: %w", err)
	}
	cfg.Location = location

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.HTTPAddress == "" {
		return fmt.Errorf("http.address is required")
	}
	switch c.StoreDriver {
	case StoreDriverMemory:
	case StoreDriverSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("database.path is required for the sqlite store")
		}
	case StoreDriverPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres store")
		}
	case StoreDriverRedis:
		if c.RedisAddress == "" {
			return fmt.Errorf("redis.address is required for the redis store")
		}
	case StoreDriverS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("s3.bucket is required for the s3 store")
		}
	default:
		return fmt.Errorf("store.driver %q is not supported", c.StoreDriver)
	}
	if c.BackgroundWorkers <= 0 {
		return fmt.Errorf("background.workers must be positive")
	}
	if c.BackgroundQueueSize <= 0 {
		return fmt.Errorf("background.queue_size must be positive")
	}
	if c.TaskTimeout <= 0 {
		return fmt.Errorf("background.task_timeout_seconds must be positive")
	}
	return nil
}

func splitList(raw string) []string {
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
