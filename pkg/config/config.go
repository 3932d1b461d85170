package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	ServiceName string
	LogLevel    string

	ServerPort int

	DBDriver    string
	DatabaseURL string

	JWTAccessSecret []byte

	KafkaBrokers []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Pricing PricingConfig
	Gateway GatewayConfig
	SMTP    SMTPConfig

	PaymentConfirmTimeout time.Duration
	PendingOrderTTL       time.Duration
	SweepInterval         time.Duration
}

type PricingConfig struct {
	TaxRate         decimal.Decimal
	ShippingFee     decimal.Decimal
	FreeShippingMin decimal.Decimal
	Currency        string
}

type GatewayConfig struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	MerchantName  string
}

type SMTPConfig struct {
	Addr     string
	Host     string
	Username string
	Password string
	From     string
}

func Load() Config {
	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "checkout"),
		LogLevel:    os.Getenv("LOG_LEVEL"),

		ServerPort: EnvIntDefault("SERVER_PORT", 8080),

		DBDriver:    EnvDefault("DB_DRIVER", "postgres"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTAccessSecret: []byte(os.Getenv("JWT_SECRET")),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       EnvIntDefault("REDIS_DB", 0),

		Pricing: PricingConfig{
			TaxRate:         EnvDecimalDefault("TAX_RATE", decimal.RequireFromString("0.05")),
			ShippingFee:     EnvDecimalDefault("SHIPPING_FEE", decimal.Zero),
			FreeShippingMin: EnvDecimalDefault("FREE_SHIPPING_MIN", decimal.Zero),
			Currency:        EnvDefault("CURRENCY", "INR"),
		},
		Gateway: GatewayConfig{
			BaseURL:       EnvDefault("PAYMENT_GATEWAY_URL", "https://api.razorpay.com/v1/"),
			KeyID:         os.Getenv("PAYMENT_KEY_ID"),
			KeySecret:     os.Getenv("PAYMENT_KEY_SECRET"),
			WebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
			MerchantName:  EnvDefault("MERCHANT_NAME", "Storefront"),
		},
		SMTP: SMTPConfig{
			Addr:     os.Getenv("SMTP_ADDR"),
			Host:     os.Getenv("SMTP_HOST"),
			Username: os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
			From:     EnvDefault("SMTP_FROM", "orders@localhost"),
		},

		PaymentConfirmTimeout: EnvDurationDefault("PAYMENT_CONFIRM_TIMEOUT", 10*time.Minute),
		PendingOrderTTL:       EnvDurationDefault("PENDING_ORDER_TTL", 0),
		SweepInterval:         EnvDurationDefault("PENDING_SWEEP_INTERVAL", 5*time.Minute),
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if os.Getenv(key) != "" {
		return os.Getenv(key)
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func EnvDecimalDefault(key string, def decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return def
	}
	return d
}
