// Package config builds the service configuration from the environment once
// at startup. Components receive explicit config structs; nothing reads
// environment variables mid-request.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StoreBackend selects the claim ledger implementation.
type StoreBackend string

const (
	StoreMemory   StoreBackend = "memory"
	StorePostgres StoreBackend = "postgres"
	StoreRedis    StoreBackend = "redis"
)

// Config is the full service configuration.
type Config struct {
	Addr string

	// Ledger and payout policy.
	LedgerURL       string
	AssetCode       string
	AssetIssuer     string
	Amount          decimal.Decimal
	Window          time.Duration
	ValidityLedgers uint32
	SubmitWaitBound time.Duration
	SigningSeed     string

	// Claim ledger backend.
	Store       StoreBackend
	PostgresURL string
	RedisURL    string

	// Audit stream (optional; empty brokers disables it).
	KafkaBrokers []string
	AuditTopic   string

	// IP throttle on the claim endpoint. Zero limit disables it.
	ThrottleLimit  int
	ThrottleWindow time.Duration

	AdminToken string
}

// FromEnv builds and validates the configuration. Validation happens here,
// once: a process with a bad payout policy must not start.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:        envOr("FAUCET_ADDR", ":8080"),
		LedgerURL:   os.Getenv("FAUCET_LEDGER_URL"),
		AssetCode:   envOr("FAUCET_ASSET_CODE", "CFC"),
		AssetIssuer: os.Getenv("FAUCET_ASSET_ISSUER"),
		SigningSeed: os.Getenv("FAUCET_SIGNING_SEED"),
		Store:       StoreBackend(envOr("FAUCET_STORE", string(StoreMemory))),
		PostgresURL: os.Getenv("FAUCET_POSTGRES_URL"),
		RedisURL:    os.Getenv("FAUCET_REDIS_URL"),
		AuditTopic:  envOr("FAUCET_AUDIT_TOPIC", "faucet.audit"),
		AdminToken:  os.Getenv("FAUCET_ADMIN_TOKEN"),
	}

	if brokers := os.Getenv("FAUCET_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	amount, err := decimal.NewFromString(envOr("FAUCET_AMOUNT", "10"))
	if err != nil {
		return Config{}, fmt.Errorf("FAUCET_AMOUNT: %w", err)
	}
	cfg.Amount = amount

	cfg.Window, err = time.ParseDuration(envOr("FAUCET_CLAIM_WINDOW", "24h"))
	if err != nil {
		return Config{}, fmt.Errorf("FAUCET_CLAIM_WINDOW: %w", err)
	}
	cfg.SubmitWaitBound, err = time.ParseDuration(envOr("FAUCET_SUBMIT_WAIT", "60s"))
	if err != nil {
		return Config{}, fmt.Errorf("FAUCET_SUBMIT_WAIT: %w", err)
	}

	ledgers, err := strconv.ParseUint(envOr("FAUCET_VALIDITY_LEDGERS", "20"), 10, 32)
	if err != nil {
		return Config{}, fmt.Errorf("FAUCET_VALIDITY_LEDGERS: %w", err)
	}
	cfg.ValidityLedgers = uint32(ledgers)

	cfg.ThrottleLimit, err = strconv.Atoi(envOr("FAUCET_THROTTLE_LIMIT", "30"))
	if err != nil {
		return Config{}, fmt.Errorf("FAUCET_THROTTLE_LIMIT: %w", err)
	}
	cfg.ThrottleWindow, err = time.ParseDuration(envOr("FAUCET_THROTTLE_WINDOW", "1m"))
	if err != nil {
		return Config{}, fmt.Errorf("FAUCET_THROTTLE_WINDOW: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.LedgerURL == "" {
		return fmt.Errorf("FAUCET_LEDGER_URL is required")
	}
	if c.AssetIssuer == "" {
		return fmt.Errorf("FAUCET_ASSET_ISSUER is required")
	}
	if c.SigningSeed == "" {
		return fmt.Errorf("FAUCET_SIGNING_SEED is required")
	}
	if !c.Amount.IsPositive() {
		return fmt.Errorf("FAUCET_AMOUNT must be positive")
	}
	if c.Window <= 0 {
		return fmt.Errorf("FAUCET_CLAIM_WINDOW must be positive")
	}
	if c.ValidityLedgers < 1 || c.ValidityLedgers > 120 {
		return fmt.Errorf("FAUCET_VALIDITY_LEDGERS must be in [1,120]")
	}
	if c.ThrottleLimit < 0 {
		return fmt.Errorf("FAUCET_THROTTLE_LIMIT must not be negative")
	}
	if c.ThrottleLimit > 0 && c.ThrottleWindow <= 0 {
		return fmt.Errorf("FAUCET_THROTTLE_WINDOW must be positive when throttling is enabled")
	}
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("FAUCET_POSTGRES_URL is required for the postgres store")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("FAUCET_REDIS_URL is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown FAUCET_STORE %q", c.Store)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
