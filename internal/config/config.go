package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Session store backends.
const (
	SessionBackendMongo = "mongo"
	SessionBackendRedis = "redis"
)

// Config aggregates runtime configuration. It is constructed once in main
// and passed by reference to the components that need it.
type Config struct {
	App     AppConfig
	Shopify ShopifyConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	Logger  LoggerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	// URL is the externally reachable base URL of the app; webhook
	// callbacks are declared relative to it.
	URL  string
	Host string
	Port string

	// SessionBackend selects the SessionStore implementation.
	SessionBackend string
}

// ShopifyConfig holds the app credentials used for token decoding, token
// exchange and webhook verification.
type ShopifyConfig struct {
	APIKey    string
	APISecret string
}

// MongoConfig holds MongoDB connection values.
type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Load reads configuration from the environment, applying defaults where
// possible. Missing app credentials are an error: nothing in the auth or
// webhook path works without them.
func Load() (*Config, error) {
	_ = godotenv.Load()

	apiKey := os.Getenv("SHOPIFY_API_KEY")
	apiSecret := os.Getenv("SHOPIFY_API_SECRET")
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("SHOPIFY_API_KEY and SHOPIFY_API_SECRET are required")
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	backend := strings.ToLower(getEnv("SESSION_BACKEND", SessionBackendMongo))
	switch backend {
	case SessionBackendMongo, SessionBackendRedis:
	default:
		return nil, fmt.Errorf("invalid SESSION_BACKEND %q", backend)
	}

	cfg := &Config{
		App: AppConfig{
			URL:            getEnv("APP_URL", "http://localhost:8080"),
			Host:           getEnv("APP_HOST", "0.0.0.0"),
			Port:           getEnv("PORT", "8080"),
			SessionBackend: backend,
		},
		Shopify: ShopifyConfig{
			APIKey:    apiKey,
			APISecret: apiSecret,
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "storefront_session_layer"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return a.Host + ":" + a.Port
}

// WebhookCallbackURL returns the absolute URL webhook subscriptions are
// bound to.
func (c *Config) WebhookCallbackURL() string {
	return strings.TrimSuffix(c.App.URL, "/") + "/api/webhooks"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
