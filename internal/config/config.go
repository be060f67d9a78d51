package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds runtime settings for the api and worker binaries.
type Config struct {
	HTTPAddr string `yaml:"httpAddr"`
	RunLocal bool   `yaml:"runLocal"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	DBDriver    string `yaml:"dbDriver"`
	DatabaseURL string `yaml:"databaseUrl"`

	JWTSecret string `yaml:"jwtSecret"`

	AWSRegion           string `yaml:"awsRegion"`
	AWSEndpointOverride string `yaml:"awsEndpointOverride"`
	IdempotencyTable    string `yaml:"idempotencyTable"`
	OrdersQueueURL      string `yaml:"ordersQueueUrl"`

	CheckoutTimeout time.Duration `yaml:"checkoutTimeout"`
	IdempotencyTTL  time.Duration `yaml:"idempotencyTtl"`

	ShippingFeeInsideDhaka  decimal.Decimal `yaml:"-"`
	ShippingFeeOutsideDhaka decimal.Decimal `yaml:"-"`

	MetricsBackend      string `yaml:"metricsBackend"`
	CloudWatchNamespace string `yaml:"cloudwatchNamespace"`
	JaegerEndpoint      string `yaml:"jaegerEndpoint"`
	ServiceName         string `yaml:"serviceName"`

	// fee strings as read from yaml, parsed into the decimals above
	InsideFee  string `yaml:"shippingFeeInsideDhaka"`
	OutsideFee string `yaml:"shippingFeeOutsideDhaka"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		HTTPAddr:                ":8080",
		LogLevel:                "info",
		LogFormat:               "json",
		DBDriver:                "postgres",
		AWSRegion:               "us-east-1",
		IdempotencyTable:        "idempotency",
		CheckoutTimeout:         10 * time.Second,
		IdempotencyTTL:          48 * time.Hour,
		ShippingFeeInsideDhaka:  decimal.NewFromInt(80),
		ShippingFeeOutsideDhaka: decimal.NewFromInt(150),
		MetricsBackend:          "prometheus",
		CloudWatchNamespace:     "Storefront/Checkout",
		ServiceName:             "storefront-checkout",
	}
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE, then
// environment variables. Later sources win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data, cfg)
}

// Parse overlays YAML data onto cfg.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return applyFees(cfg, cfg.InsideFee, cfg.OutsideFee)
}

func applyEnv(cfg *Config) error {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	str("HTTP_ADDR", &cfg.HTTPAddr)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("DB_DRIVER", &cfg.DBDriver)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("JWT_SECRET", &cfg.JWTSecret)
	str("AWS_REGION", &cfg.AWSRegion)
	str("AWS_ENDPOINT_OVERRIDE", &cfg.AWSEndpointOverride)
	str("IDEMPOTENCY_TABLE", &cfg.IdempotencyTable)
	str("ORDERS_QUEUE_URL", &cfg.OrdersQueueURL)
	str("METRICS_BACKEND", &cfg.MetricsBackend)
	str("CLOUDWATCH_NAMESPACE", &cfg.CloudWatchNamespace)
	str("JAEGER_ENDPOINT", &cfg.JaegerEndpoint)
	str("SERVICE_NAME", &cfg.ServiceName)

	if v := os.Getenv("RUN_LOCAL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RUN_LOCAL: %w", err)
		}
		cfg.RunLocal = b
	}
	for name, dst := range map[string]*time.Duration{
		"CHECKOUT_TIMEOUT": &cfg.CheckoutTimeout,
		"IDEMPOTENCY_TTL":  &cfg.IdempotencyTTL,
	} {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = d
		}
	}
	return applyFees(cfg, os.Getenv("SHIPPING_FEE_INSIDE_DHAKA"), os.Getenv("SHIPPING_FEE_OUTSIDE_DHAKA"))
}

func applyFees(cfg *Config, inside, outside string) error {
	if inside != "" {
		d, err := decimal.NewFromString(inside)
		if err != nil {
			return fmt.Errorf("inside dhaka shipping fee: %w", err)
		}
		cfg.ShippingFeeInsideDhaka = d
	}
	if outside != "" {
		d, err := decimal.NewFromString(outside)
		if err != nil {
			return fmt.Errorf("outside dhaka shipping fee: %w", err)
		}
		cfg.ShippingFeeOutsideDhaka = d
	}
	return nil
}

func (c Config) validate() error {
	switch c.DBDriver {
	case "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.MetricsBackend {
	case "prometheus", "cloudwatch", "none":
	default:
		return fmt.Errorf("unsupported METRICS_BACKEND %q", c.MetricsBackend)
	}
	if c.CheckoutTimeout <= 0 {
		return fmt.Errorf("CHECKOUT_TIMEOUT must be positive")
	}
	if c.ShippingFeeInsideDhaka.IsNegative() || c.ShippingFeeOutsideDhaka.IsNegative() {
		return fmt.Errorf("shipping fees must not be negative")
	}
	return nil
}
