package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"printsync/internal/domain"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Printify PrintifyConfig
	Sync     SyncConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret       string
	AccessExpiry int // in minutes
}

type PrintifyConfig struct {
	APIToken          string
	ShopID            string
	BaseURL           string
	WebhookSecret     string
	RequestsPerMinute int
	Timeout           time.Duration
}

type SyncConfig struct {
	DefaultStatus     string
	ImageDir          string
	ImageFingerprint  string // "url" or "content"
	Interval          time.Duration
	WorkerConcurrency int
	TaskDelay         time.Duration
	PollInterval      time.Duration
	WebhookRateLimit  int // requests per minute per client
}

func Load() *Config {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("JWT_ACCESS_EXPIRY", 60)
	viper.SetDefault("PRINTIFY_BASE_URL", "https://api.printify.com/v1")
	viper.SetDefault("PRINTIFY_REQUESTS_PER_MINUTE", 600)
	viper.SetDefault("PRINTIFY_TIMEOUT", "30s")
	viper.SetDefault("SYNC_DEFAULT_STATUS", "draft")
	viper.SetDefault("SYNC_IMAGE_DIR", "data/images")
	viper.SetDefault("SYNC_IMAGE_FINGERPRINT", "url")
	viper.SetDefault("SYNC_INTERVAL", "1h")
	viper.SetDefault("SYNC_WORKER_CONCURRENCY", 4)
	viper.SetDefault("SYNC_TASK_DELAY", "5s")
	viper.SetDefault("SYNC_POLL_INTERVAL", "1s")
	viper.SetDefault("SYNC_WEBHOOK_RATE_LIMIT", 120)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			AllowedOrigins: splitList(viper.GetString("SERVER_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:       viper.GetString("JWT_SECRET"),
			AccessExpiry: viper.GetInt("JWT_ACCESS_EXPIRY"),
		},
		Printify: PrintifyConfig{
			APIToken:          viper.GetString("PRINTIFY_API_TOKEN"),
			ShopID:            viper.GetString("PRINTIFY_SHOP_ID"),
			BaseURL:           viper.GetString("PRINTIFY_BASE_URL"),
			WebhookSecret:     viper.GetString("PRINTIFY_WEBHOOK_SECRET"),
			RequestsPerMinute: viper.GetInt("PRINTIFY_REQUESTS_PER_MINUTE"),
			Timeout:           viper.GetDuration("PRINTIFY_TIMEOUT"),
		},
		Sync: SyncConfig{
			DefaultStatus:     viper.GetString("SYNC_DEFAULT_STATUS"),
			ImageDir:          viper.GetString("SYNC_IMAGE_DIR"),
			ImageFingerprint:  viper.GetString("SYNC_IMAGE_FINGERPRINT"),
			Interval:          viper.GetDuration("SYNC_INTERVAL"),
			WorkerConcurrency: viper.GetInt("SYNC_WORKER_CONCURRENCY"),
			TaskDelay:         viper.GetDuration("SYNC_TASK_DELAY"),
			PollInterval:      viper.GetDuration("SYNC_POLL_INTERVAL"),
			WebhookRateLimit:  viper.GetInt("SYNC_WEBHOOK_RATE_LIMIT"),
		},
	}
}

// DSN builds the postgres connection string for the pgx driver
func (c DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.Database +
		"?sslmode=disable&search_path=" + c.Schema
}

// Addr returns the host:port of the Redis server
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects sync settings the worker cannot run with
func (c SyncConfig) Validate() error {
	if !domain.ValidProductStatus(c.DefaultStatus) {
		return fmt.Errorf("invalid SYNC_DEFAULT_STATUS %q: want draft, publish, pending or private", c.DefaultStatus)
	}
	if c.ImageFingerprint != "url" && c.ImageFingerprint != "content" {
		return fmt.Errorf("invalid SYNC_IMAGE_FINGERPRINT %q: want url or content", c.ImageFingerprint)
	}
	return nil
}
