package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"port"`
	DatabaseURL string `mapstructure:"database_url"`
	JWTSecret   string `mapstructure:"jwt_secret"`
	RedisURL    string `mapstructure:"redis_url"`

	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Stripe     StripeConfig     `mapstructure:"stripe"`
	EscrowCom  EscrowComConfig  `mapstructure:"escrowcom"`
	Sandbox    SandboxConfig    `mapstructure:"sandbox"`
	RiskEngine RiskEngineConfig `mapstructure:"risk_engine"`
	Email      EmailConfig      `mapstructure:"email"`
	Escrow     EscrowConfig     `mapstructure:"escrow"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type StripeConfig struct {
	SecretKey string `mapstructure:"secret_key"`
	BaseURL   string `mapstructure:"base_url"`
}

type EscrowComConfig struct {
	Email   string `mapstructure:"email"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	// InspectionSeconds is the buyer inspection window before the provider
	// permits release.
	InspectionSeconds int `mapstructure:"inspection_seconds"`
}

type SandboxConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type RiskEngineConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

type EmailConfig struct {
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
}

type EscrowConfig struct {
	DefaultProvider        string        `mapstructure:"default_provider"`
	HighRiskProvider       string        `mapstructure:"high_risk_provider"`
	HighValueThreshold     float64       `mapstructure:"high_value_threshold"`
	VeryHighValueThreshold float64       `mapstructure:"very_high_value_threshold"`
	LowTrustThreshold      float64       `mapstructure:"low_trust_threshold"`
	ProviderTimeout        time.Duration `mapstructure:"provider_timeout"`
	LockTTL                time.Duration `mapstructure:"lock_ttl"`
	Expiry                 time.Duration `mapstructure:"expiry"`
}

func defaults() Config {
	return Config{
		Port:      "8080",
		Kafka:     KafkaConfig{Topic: "escrow.lifecycle"},
		Stripe:    StripeConfig{BaseURL: "https://api.stripe.com"},
		EscrowCom: EscrowComConfig{BaseURL: "https://api.escrow.com/2017-09-01", InspectionSeconds: 259200},
		Email:     EmailConfig{From: "onboarding@resend.dev"},
		Escrow: EscrowConfig{
			DefaultProvider:        "stripe",
			HighRiskProvider:       "escrowcom",
			HighValueThreshold:     1000,
			VeryHighValueThreshold: 5000,
			LowTrustThreshold:      30,
			ProviderTimeout:        15 * time.Second,
			LockTTL:                30 * time.Second,
			Expiry:                 30 * 24 * time.Hour,
		},
	}
}

// envKeys maps config keys to the environment variables that override them.
var envKeys = map[string]string{
	"port":                             "PORT",
	"database_url":                     "DATABASE_URL",
	"jwt_secret":                       "JWT_SECRET",
	"redis_url":                        "REDIS_URL",
	"kafka.brokers":                    "KAFKA_BROKERS",
	"kafka.topic":                      "KAFKA_TOPIC",
	"stripe.secret_key":                "STRIPE_SECRET_KEY",
	"stripe.base_url":                  "STRIPE_BASE_URL",
	"escrowcom.email":                  "ESCROWCOM_EMAIL",
	"escrowcom.api_key":                "ESCROWCOM_API_KEY",
	"escrowcom.base_url":               "ESCROWCOM_BASE_URL",
	"escrowcom.inspection_seconds":     "ESCROWCOM_INSPECTION_SECONDS",
	"sandbox.enabled":                  "SANDBOX_PROVIDER_ENABLED",
	"risk_engine.url":                  "RISK_ENGINE_URL",
	"risk_engine.token":                "RISK_ENGINE_TOKEN",
	"email.resend_api_key":             "RESEND_API_KEY",
	"email.from":                       "FROM_EMAIL",
	"escrow.default_provider":          "ESCROW_DEFAULT_PROVIDER",
	"escrow.high_risk_provider":        "ESCROW_HIGH_RISK_PROVIDER",
	"escrow.high_value_threshold":      "ESCROW_HIGH_VALUE_THRESHOLD",
	"escrow.very_high_value_threshold": "ESCROW_VERY_HIGH_VALUE_THRESHOLD",
	"escrow.low_trust_threshold":       "ESCROW_LOW_TRUST_THRESHOLD",
	"escrow.provider_timeout":          "ESCROW_PROVIDER_TIMEOUT",
	"escrow.lock_ttl":                  "ESCROW_LOCK_TTL",
	"escrow.expiry":                    "ESCROW_EXPIRY",
	"db.host":                          "DB_HOST",
	"db.user":                          "DB_USER",
	"db.password":                      "DB_PASSWORD",
	"db.name":                          "DB_NAME",
	"db.port":                          "DB_PORT",
}

// Load reads .env if present, then the YAML file named by
// ESCROW_CONFIG_FILE, then environment variables. Later sources win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	}

	v := viper.New()
	if path := os.Getenv("ESCROW_CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	cfg := defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Kafka.Brokers = trimList(cfg.Kafka.Brokers)

	if cfg.DatabaseURL == "" {
		dsn, err := dsnFromParts(v)
		if err != nil {
			return nil, err
		}
		cfg.DatabaseURL = dsn
	}
	if cfg.Escrow.LockTTL < 3*time.Second {
		return nil, fmt.Errorf("escrow.lock_ttl must be at least 3s, got %s", cfg.Escrow.LockTTL)
	}
	return &cfg, nil
}

func dsnFromParts(v *viper.Viper) (string, error) {
	host := v.GetString("db.host")
	user := v.GetString("db.user")
	password := v.GetString("db.password")
	dbname := v.GetString("db.name")
	port := v.GetString("db.port")

	if host == "" || user == "" || password == "" || dbname == "" || port == "" {
		return "", fmt.Errorf("database configuration not provided: either set DATABASE_URL or all of DB_HOST, DB_USER, DB_PASSWORD, DB_NAME, and DB_PORT")
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		host, user, password, dbname, port,
	), nil
}

func trimList(in []string) []string {
	var out []string
	for _, part := range in {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Mask hides all but the edges of a secret for startup logging.
func Mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}
