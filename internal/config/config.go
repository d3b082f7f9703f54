package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string `yaml:"env" env:"ENV" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	HTTP     HTTP     `yaml:"http"`
	Mongo    Mongo    `yaml:"mongo"`
	Redis    Redis    `yaml:"redis"`
	Postgres Postgres `yaml:"postgres"`
	Catalog  Catalog  `yaml:"catalog"`
	Kafka    Kafka    `yaml:"kafka"`
	Auth     Auth     `yaml:"auth"`
	Stripe   Stripe   `yaml:"stripe"`
	PayPal   PayPal   `yaml:"paypal"`
	SMTP     SMTP     `yaml:"smtp"`
	Checkout Checkout `yaml:"checkout"`
	Tracing  Tracing  `yaml:"tracing"`
}

type HTTP struct {
	Port               string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	RequestTimeout     time.Duration `yaml:"request_timeout" env:"HTTP_REQUEST_TIMEOUT" env-default:"30s"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	MaxRequestBodySize int64         `yaml:"max_request_body_size" env:"HTTP_MAX_BODY" env-default:"1048576"`
}

type Mongo struct {
	URI      string `yaml:"uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	Database string `yaml:"database" env:"MONGO_DB_NAME" env-default:"storefront"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
}

type Postgres struct {
	Host              string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port              int    `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User              string `yaml:"user" env:"POSTGRES_USER" env-default:"storefront"`
	Password          string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"storefront"`
	DBName            string `yaml:"db_name" env:"POSTGRES_DB" env-default:"storefront"`
	MigrationsDirPath string `yaml:"migrations" env:"POSTGRES_MIGRATIONS" env-default:"./migrations/postgres"`
}

type Catalog struct {
	DBPath            string `yaml:"db_path" env:"CATALOG_DB_PATH" env-default:"./products.db"`
	MigrationsDirPath string `yaml:"migrations" env:"CATALOG_MIGRATIONS" env-default:"./migrations/sqlite"`
	HistoryLimit      int    `yaml:"history_limit" env:"HISTORY_LIMIT" env-default:"10"`
}

type Kafka struct {
	Brokers        []string      `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	Topic          string        `yaml:"topic" env:"KAFKA_ORDER_TOPIC" env-default:"order-events"`
	PollInterval   time.Duration `yaml:"poll_interval" env:"OUTBOX_POLL_INTERVAL" env-default:"1s"`
	CartGroupID    string        `yaml:"cart_group_id" env:"KAFKA_CART_GROUP" env-default:"storefront-cart"`
	ReceiptGroupID string        `yaml:"receipt_group_id" env:"KAFKA_RECEIPT_GROUP" env-default:"storefront-receipts"`
}

type Auth struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

type Stripe struct {
	WebhookSecret string        `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	Tolerance     time.Duration `yaml:"tolerance" env:"STRIPE_WEBHOOK_TOLERANCE" env-default:"5m"`
}

type PayPal struct {
	BaseURL  string        `yaml:"base_url" env:"PAYPAL_API_URL" env-default:"https://api-m.sandbox.paypal.com"`
	ClientID string        `yaml:"client_id" env:"PAYPAL_CLIENT_ID"`
	Secret   string        `yaml:"secret" env:"PAYPAL_APP_SECRET"`
	Timeout  time.Duration `yaml:"timeout" env:"PAYPAL_TIMEOUT" env-default:"10s"`
}

type SMTP struct {
	Host     string `yaml:"host" env:"SMTP_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"SMTP_PORT" env-default:"1025"`
	User     string `yaml:"user" env:"SMTP_USER"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	From     string `yaml:"from" env:"SENDER_EMAIL" env-default:"onboarding@storefront.local"`
	SiteName string `yaml:"site_name" env:"SITE_NAME" env-default:"Storefront"`
}

type Checkout struct {
	TaxRate      string        `yaml:"tax_rate" env:"TAX_RATE" env-default:"0.10"`
	Currency     string        `yaml:"currency" env:"CURRENCY" env-default:"USD"`
	StrictTotals bool          `yaml:"strict_totals" env:"CHECKOUT_STRICT_TOTALS" env-default:"true"`
	SettingsTTL  time.Duration `yaml:"settings_ttl" env:"SETTINGS_TTL" env-default:"1m"`
}

type Tracing struct {
	Endpoint string `yaml:"endpoint" env:"OTEL_EXPORTER_ENDPOINT"`
}

// Load reads an optional .env file, then an optional YAML file from CONFIG_PATH,
// then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("error reading config: %v", err)
	}
	return cfg
}

func (c *Config) validate() error {
	if c.Env == "prod" {
		if c.Auth.JWTSecret == "" {
			return errors.New("JWT_SECRET is required in prod")
		}
		if c.Stripe.WebhookSecret == "" {
			return errors.New("STRIPE_WEBHOOK_SECRET is required in prod")
		}
	}
	return nil
}
