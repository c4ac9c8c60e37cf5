package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port     string `envconfig:"PORT" default:"8083"`
	Env      string `envconfig:"ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	PostgresUser     string `envconfig:"POSTGRES_USER"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD"`
	PostgresDB       string `envconfig:"POSTGRES_DB"`
	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     string `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	PostgresTimeZone string `envconfig:"POSTGRES_TIMEZONE" default:"Asia/Kolkata"`
	AutoMigrate      bool   `envconfig:"AUTO_MIGRATE" default:"false"`

	RedisURL  string        `envconfig:"REDIS_URL"`
	IntentTTL time.Duration `envconfig:"INTENT_TTL" default:"15m"`

	RazorpayKeyID     string        `envconfig:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret string        `envconfig:"RAZORPAY_KEY_SECRET"`
	RazorpayBaseURL   string        `envconfig:"RAZORPAY_BASE_URL" default:"https://api.razorpay.com"`
	GatewayTimeout    time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"10s"`
	Currency          string        `envconfig:"CURRENCY" default:"INR"`

	JWTSecret string `envconfig:"JWT_SECRET"`

	EventBus         string `envconfig:"EVENT_BUS" default:"none"`
	KafkaBrokers     string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	OrderEventsTopic string `envconfig:"ORDER_EVENTS_TOPIC" default:"order.events"`
	OrderSNSTopicARN string `envconfig:"ORDER_SNS_TOPIC_ARN"`

	// Shipment events that advance orders to shipped and delivered. Empty disables the consumer.
	FulfillmentEventsTopic string `envconfig:"FULFILLMENT_EVENTS_TOPIC"`
	FulfillmentGroupID     string `envconfig:"FULFILLMENT_GROUP_ID" default:"order-service-fulfillment"`

	AWSRegion           string `envconfig:"AWS_REGION" default:"ap-south-1"`
	AWSEndpoint         string `envconfig:"AWS_ENDPOINT"`
	AWSUseSecrets       bool   `envconfig:"AWS_USE_SECRETS" default:"false"`
	DBSecretName        string `envconfig:"DB_SECRET_NAME" default:"order/DB_CREDENTIALS"`
	GatewaySecretName   string `envconfig:"GATEWAY_SECRET_NAME" default:"order/RAZORPAY"`
	CloudWatchEnabled   bool   `envconfig:"CLOUDWATCH_ENABLED" default:"false"`
	CloudWatchNamespace string `envconfig:"CLOUDWATCH_NAMESPACE" default:"Storefront"`
	CloudWatchLogGroup  string `envconfig:"CLOUDWATCH_LOG_GROUP"`

	RateLimitPerMinute int      `envconfig:"RATE_LIMIT_PER_MINUTE" default:"30"`
	RateLimitBurst     int      `envconfig:"RATE_LIMIT_BURST" default:"10"`
	AllowedOrigins     []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:3001"`
}

// SecretSource is the subset of the Secrets Manager client used for overrides.
type SecretSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}
	cfg.Currency = strings.ToUpper(cfg.Currency)
	cfg.EventBus = strings.ToLower(cfg.EventBus)
	return &cfg, nil
}

// ApplySecrets overrides database credentials and the gateway key pair with
// values from Secrets Manager. Keys absent from a secret keep their env value;
// a secret that cannot be read is an error, and startup stops on it.
func (c *Config) ApplySecrets(ctx context.Context, src SecretSource) error {
	if db, err := src.GetSecretMap(ctx, c.DBSecretName); err == nil {
		override(&c.PostgresUser, db["POSTGRES_USER"])
		override(&c.PostgresPassword, db["POSTGRES_PASSWORD"])
		override(&c.PostgresDB, db["POSTGRES_DB"])
		override(&c.PostgresHost, db["POSTGRES_HOST"])
		override(&c.PostgresPort, db["POSTGRES_PORT"])
	} else {
		return fmt.Errorf("db secret: %w", err)
	}

	if gw, err := src.GetSecretMap(ctx, c.GatewaySecretName); err == nil {
		override(&c.RazorpayKeyID, gw["RAZORPAY_KEY_ID"])
		override(&c.RazorpayKeySecret, gw["RAZORPAY_KEY_SECRET"])
	} else {
		return fmt.Errorf("gateway secret: %w", err)
	}
	return nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate fails fast on settings the service cannot start without.
func (c *Config) Validate() error {
	if c.PostgresUser == "" || c.PostgresPassword == "" || c.PostgresDB == "" || c.PostgresHost == "" {
		return fmt.Errorf("database config incomplete")
	}
	if c.RazorpayKeyID == "" || c.RazorpayKeySecret == "" {
		return fmt.Errorf("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("CURRENCY must be an ISO 4217 code, got %q", c.Currency)
	}
	switch c.EventBus {
	case "none":
	case "kafka":
		if c.KafkaBrokers == "" {
			return fmt.Errorf("KAFKA_BROKERS is required when EVENT_BUS=kafka")
		}
	case "sns":
		if c.OrderSNSTopicARN == "" {
			return fmt.Errorf("ORDER_SNS_TOPIC_ARN is required when EVENT_BUS=sns")
		}
	default:
		return fmt.Errorf("EVENT_BUS must be one of none, kafka, sns; got %q", c.EventBus)
	}
	return nil
}

// DSN builds the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

// Brokers splits KAFKA_BROKERS.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
