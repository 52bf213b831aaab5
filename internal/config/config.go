package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/gateway/hosted"
	"github.com/fjod/go_cart/storefront/internal/gateway/redirect"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

type Config struct {
	HTTPPort           string
	LogLevel           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	SecureCookies      bool

	Database repository.Credentials

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	OrderTopic   string

	JWTSecret string
	JWTIssuer string

	Currency string
	Redirect redirect.Config
	Hosted   hosted.Config
}

// Load reads the configuration from the environment, falling back to local defaults.
func Load() (*Config, error) {
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	requestTimeout, err := getDuration("REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	hostedTimeout, err := getDuration("HOSTED_GATEWAY_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	secureCookies, err := getBool("SECURE_COOKIES", false)
	if err != nil {
		return nil, err
	}

	driver := strings.ToLower(getEnv("DB_DRIVER", repository.DriverPostgres))
	if driver != repository.DriverPostgres && driver != repository.DriverSQLite {
		return nil, fmt.Errorf("%w: DB_DRIVER=%q", repository.ErrUnsupportedDriver, driver)
	}

	return &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RequestTimeout:     requestTimeout,
		ShutdownTimeout:    shutdownTimeout,
		MaxRequestBodySize: 1 << 20, // 1MB
		SecureCookies:      secureCookies,
		Database: repository.Credentials{
			Driver:            driver,
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              dbPort,
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", "postgres"),
			DBName:            getEnv("DB_NAME", "storefront"),
			SQLitePath:        getEnv("SQLITE_PATH", "storefront.db"),
			MigrationsDirPath: getEnv("MIGRATIONS_PATH", "./internal/repository/migrations"),
		},
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:  splitList(getEnv("KAFKA_BROKERS", "")),
		OrderTopic:    getEnv("KAFKA_ORDER_TOPIC", "order-events"),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTIssuer:     getEnv("JWT_ISSUER", "storefront"),
		Currency:      getEnv("CHECKOUT_CURRENCY", "USD"),
		Redirect: redirect.Config{
			BaseURL:    getEnv("REDIRECT_GATEWAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
			TmnCode:    getEnv("REDIRECT_GATEWAY_TMN_CODE", ""),
			HashSecret: getEnv("REDIRECT_GATEWAY_HASH_SECRET", ""),
			ReturnURL:  getEnv("REDIRECT_GATEWAY_RETURN_URL", "http://localhost:8080/checkout/callback"),
		},
		Hosted: hosted.Config{
			BaseURL:      getEnv("HOSTED_GATEWAY_URL", "https://api-m.sandbox.paypal.com"),
			ClientID:     getEnv("HOSTED_GATEWAY_CLIENT_ID", ""),
			ClientSecret: getEnv("HOSTED_GATEWAY_SECRET", ""),
			Timeout:      hostedTimeout,
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
