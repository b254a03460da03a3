// Package config reads the service configuration from the environment, after
// loading an optional .env file.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ishakdedicc/f1store-next.js/internal/repository"
	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	HTTPPort           string
	Store              string
	DB                 repository.Credentials
	RedisAddr          string
	RedisPassword      string
	MongoURI           string
	MongoDBName        string
	KafkaBrokers       []string
	PayPalAPIURL       string
	PayPalClientID     string
	PayPalAppSecret    string
	StripeWebhookKey   string
	MergePolicy        repository.MergePolicy
	CORSAllowedOrigins []string
	WebhookRatePerSec  float64
	RequestTimeout     time.Duration
	ProviderTimeout    time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
}

// Load reads .env (when present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not load .env: %v", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	requestTimeout, err := time.ParseDuration(getEnv("REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}
	providerTimeout, err := time.ParseDuration(getEnv("PROVIDER_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_TIMEOUT: %w", err)
	}
	webhookRate, err := strconv.ParseFloat(getEnv("WEBHOOK_RATE_PER_SEC", "20"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_RATE_PER_SEC: %w", err)
	}

	store := getEnv("STORE", StorePostgres)
	if store != StorePostgres && store != StoreMemory {
		return nil, fmt.Errorf("invalid STORE %q: want %s or %s", store, StorePostgres, StoreMemory)
	}

	var policy repository.MergePolicy
	switch p := getEnv("CART_MERGE_POLICY", "keep"); p {
	case "keep":
		policy = repository.KeepUserCart
	case "replace":
		policy = repository.ReplaceUserCart
	default:
		return nil, fmt.Errorf("invalid CART_MERGE_POLICY %q: want keep or replace", p)
	}

	return &Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		Store:    store,
		DB: repository.Credentials{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              dbPort,
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", "postgres"),
			DBName:            getEnv("DB_NAME", "checkout"),
			MigrationsDirPath: getEnv("MIGRATIONS_PATH", "./internal/repository/migrations"),
		},
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDBName:        getEnv("MONGO_DB_NAME", "checkout"),
		KafkaBrokers:       splitList(os.Getenv("KAFKA_BROKERS")),
		PayPalAPIURL:       getEnv("PAYPAL_API_URL", "https://api-m.sandbox.paypal.com"),
		PayPalClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
		PayPalAppSecret:    os.Getenv("PAYPAL_APP_SECRET"),
		StripeWebhookKey:   os.Getenv("STRIPE_WEBHOOK_SECRET"),
		MergePolicy:        policy,
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		WebhookRatePerSec:  webhookRate,
		RequestTimeout:     requestTimeout,
		ProviderTimeout:    providerTimeout,
		ShutdownTimeout:    10 * time.Second,
		MaxRequestBodySize: 1 << 20, // 1MB
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(csv string) []string {
	var out []string
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
