package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ESCROW_CONFIG_FILE", "")
	t.Setenv("DATABASE_URL", "postgres://safehold@localhost/safehold")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.Escrow.DefaultProvider != "stripe" || cfg.Escrow.HighRiskProvider != "escrowcom" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Escrow.HighValueThreshold != 1000 || cfg.Escrow.VeryHighValueThreshold != 5000 {
		t.Fatalf("thresholds = %v/%v", cfg.Escrow.HighValueThreshold, cfg.Escrow.VeryHighValueThreshold)
	}
	if cfg.Escrow.Expiry != 30*24*time.Hour {
		t.Fatalf("expiry = %s", cfg.Escrow.Expiry)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escrow.yaml")
	yaml := `
port: "9090"
database_url: postgres://from-file
kafka:
  brokers: ["kafka-1:9092"]
escrow:
  default_provider: sandbox
  high_value_threshold: 2500
  provider_timeout: 5s
sandbox:
  enabled: true
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ESCROW_CONFIG_FILE", path)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "7070")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("ESCROW_LOW_TRUST_THRESHOLD", "45")
	t.Setenv("ESCROW_LOCK_TTL", "1m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "7070" {
		t.Fatalf("env should override file, port = %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://from-file" {
		t.Fatalf("database url = %s", cfg.DatabaseURL)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Fatalf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Kafka.Topic != "escrow.lifecycle" {
		t.Fatalf("topic default lost: %q", cfg.Kafka.Topic)
	}
	if cfg.Escrow.DefaultProvider != "sandbox" || !cfg.Sandbox.Enabled {
		t.Fatalf("file values not applied: %+v", cfg.Escrow)
	}
	if cfg.Escrow.HighValueThreshold != 2500 || cfg.Escrow.VeryHighValueThreshold != 5000 {
		t.Fatalf("thresholds = %v/%v", cfg.Escrow.HighValueThreshold, cfg.Escrow.VeryHighValueThreshold)
	}
	if cfg.Escrow.ProviderTimeout != 5*time.Second || cfg.Escrow.LockTTL != time.Minute || cfg.Escrow.LowTrustThreshold != 45 {
		t.Fatalf("escrow = %+v", cfg.Escrow)
	}
}

func TestLoadDSNFromParts(t *testing.T) {
	t.Setenv("ESCROW_CONFIG_FILE", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "safehold")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "escrow")
	t.Setenv("DB_PORT", "5432")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := "host=db user=safehold password=secret dbname=escrow port=5432 sslmode=disable TimeZone=UTC"
	if cfg.DatabaseURL != want {
		t.Fatalf("dsn = %q", cfg.DatabaseURL)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("ESCROW_CONFIG_FILE", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without database configuration")
	}

	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("ESCROW_PROVIDER_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for bad duration")
	}
}

func TestLoadRejectsShortLockTTL(t *testing.T) {
	t.Setenv("ESCROW_CONFIG_FILE", "")
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("ESCROW_LOCK_TTL", "1s")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for lock ttl below renewal floor")
	}
}

func TestMask(t *testing.T) {
	if got := Mask("sk_live_abcdef"); got != "sk****ef" {
		t.Fatalf("mask = %q", got)
	}
	if got := Mask("abc"); got != "****" {
		t.Fatalf("short mask = %q", got)
	}
}
