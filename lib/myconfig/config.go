package myconfig

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Session  SessionConfig
	Backend  BackendConfig
	Gateway  GatewayConfig
	Checkout CheckoutConfig
}

type ServerConfig struct {
	Port     string
	BaseURL  string
	LogLevel string
}

type SessionConfig struct {
	Secret     string
	CookieName string
	MaxAge     time.Duration
}

type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

type GatewayConfig struct {
	PaymentURL   string
	MerchantCode string
	HashSecret   string
	Version      string
	Locale       string
	Currency     string
	ExpireAfter  time.Duration
}

type CheckoutConfig struct {
	PaymentMethod  string
	ContextTTL     time.Duration
	ResumeTokenTTL time.Duration
}

// Load reads an optional .env file followed by the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	port := getEnv("PORT", "8080")
	cfg := &Config{
		Server: ServerConfig{
			Port:     port,
			BaseURL:  getEnv("BASE_URL", "http://localhost:"+port),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Session: SessionConfig{
			Secret:     getEnv("SESSION_SECRET", ""),
			CookieName: getEnv("SESSION_COOKIE_NAME", "portal_session"),
			MaxAge:     getEnvAsDuration("SESSION_MAX_AGE", 24*time.Hour),
		},
		Backend: BackendConfig{
			BaseURL: getEnv("BACKEND_BASE_URL", "http://localhost:5000"),
			Timeout: getEnvAsDuration("BACKEND_TIMEOUT", 10*time.Second),
		},
		Gateway: GatewayConfig{
			PaymentURL:   getEnv("GATEWAY_PAYMENT_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
			MerchantCode: getEnv("GATEWAY_MERCHANT_CODE", ""),
			HashSecret:   getEnv("GATEWAY_HASH_SECRET", ""),
			Version:      getEnv("GATEWAY_VERSION", "2.1.0"),
			Locale:       getEnv("GATEWAY_LOCALE", "vn"),
			Currency:     getEnv("GATEWAY_CURRENCY", "VND"),
			ExpireAfter:  getEnvAsDuration("GATEWAY_EXPIRE_AFTER", 15*time.Minute),
		},
		Checkout: CheckoutConfig{
			PaymentMethod:  getEnv("PAYMENT_METHOD", "VNPAY"),
			ContextTTL:     getEnvAsDuration("CHECKOUT_CONTEXT_TTL", 0),
			ResumeTokenTTL: getEnvAsDuration("RESUME_TOKEN_TTL", 30*time.Minute),
		},
	}

	err := cfg.validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Session.Secret == "" {
		return fmt.Errorf("missing SESSION_SECRET")
	}
	if c.Gateway.MerchantCode == "" {
		return fmt.Errorf("missing GATEWAY_MERCHANT_CODE")
	}
	if c.Gateway.HashSecret == "" {
		return fmt.Errorf("missing GATEWAY_HASH_SECRET")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("15m") or plain seconds ("900")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err == nil {
		return d
	}
	return time.Duration(getEnvAsInt(key, int(defaultValue/time.Second))) * time.Second
}
