// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	id "poolshare/pkg/domain"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	AdminPrincipal  id.PrincipalID
	AdminAPIToken   string
	JWTSigningKey   string
	JWTIssuer       string
	JWTAudience     string
	TokenTTL        time.Duration
	LogLevel        string
	ShutdownTimeout time.Duration
	RateLimit       RateLimitConfig
}

// RateLimitConfig bounds per-client request rate.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Ledger holds the economic and governance policy.
type Ledger struct {
	Currency             string
	CreditUnitPrice      int64
	DefaultCapacity      int
	SubscriptionDuration time.Duration
	VotingPeriod         time.Duration
	ProposalCooldown     time.Duration
	GroupSelection       string
	SelectionSeed        uint64
	OperationTimeout     time.Duration
}

// Backend locates the upstream service payment backend.
type Backend struct {
	URL     string
	Timeout time.Duration
}

// RedisConfig configures the optional Redis cooldown store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Outbox configures the optional Postgres notification outbox and Kafka relay.
type Outbox struct {
	DatabaseURL  string
	KafkaBrokers []string
	KafkaTopic   string
	RelayEvery   time.Duration
}

// Config is the full process configuration.
type Config struct {
	Server  Server
	Ledger  Ledger
	Backend Backend
	Redis   RedisConfig
	Outbox  Outbox
}

const (
	GroupSelectionRoundRobin = "round_robin"
	GroupSelectionRandom     = "random"
)

// LoadDotEnv loads a .env file if one exists. Real environment variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// FromEnv builds the configuration from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []string
	p := parser{errs: &errs}

	cfg := Config{
		Server: Server{
			Addr:            p.str("POOLSHARE_ADDR", ":8080"),
			AdminAPIToken:   p.str("ADMIN_API_TOKEN", ""),
			JWTSigningKey:   p.str("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:       p.str("JWT_ISSUER", "poolshare"),
			JWTAudience:     p.str("JWT_AUDIENCE", "poolshare-api"),
			TokenTTL:        p.duration("TOKEN_TTL", time.Hour),
			LogLevel:        p.str("LOG_LEVEL", "info"),
			ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 15*time.Second),
			RateLimit: RateLimitConfig{
				RequestsPerSecond: p.float("RATE_LIMIT_RPS", 20),
				Burst:             p.int("RATE_LIMIT_BURST", 40),
			},
		},
		Ledger: Ledger{
			Currency:             strings.ToLower(p.str("CURRENCY", "usd")),
			CreditUnitPrice:      int64(p.int("CREDIT_UNIT_PRICE", 100)),
			DefaultCapacity:      p.int("DEFAULT_GROUP_CAPACITY", 5),
			SubscriptionDuration: p.duration("SUBSCRIPTION_DURATION", 30*24*time.Hour),
			VotingPeriod:         p.duration("VOTING_PERIOD", 24*time.Hour),
			ProposalCooldown:     p.duration("PROPOSAL_COOLDOWN", 12*time.Hour),
			GroupSelection:       p.str("GROUP_SELECTION", GroupSelectionRoundRobin),
			SelectionSeed:        uint64(p.int("SELECTION_SEED", 0)),
			OperationTimeout:     p.duration("OPERATION_TIMEOUT", 5*time.Second),
		},
		Backend: Backend{
			URL:     p.str("BACKEND_URL", ""),
			Timeout: p.duration("BACKEND_TIMEOUT", 3*time.Second),
		},
		Redis: RedisConfig{
			URL:          p.str("REDIS_URL", ""),
			PoolSize:     p.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Outbox: Outbox{
			DatabaseURL: p.str("DATABASE_URL", ""),
			KafkaTopic:  p.str("KAFKA_TOPIC", "poolshare.notifications"),
			RelayEvery:  p.duration("OUTBOX_RELAY_INTERVAL", time.Second),
		},
	}
	if brokers := p.str("KAFKA_BROKERS", ""); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Outbox.KafkaBrokers = append(cfg.Outbox.KafkaBrokers, b)
			}
		}
	}

	if raw := p.str("ADMIN_PRINCIPAL_ID", ""); raw != "" {
		admin, err := id.ParsePrincipalID(raw)
		if err != nil {
			errs = append(errs, "ADMIN_PRINCIPAL_ID: "+err.Error())
		}
		cfg.Server.AdminPrincipal = admin
	}

	if err := cfg.validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.Server.AdminPrincipal.IsNil():
		return fmt.Errorf("ADMIN_PRINCIPAL_ID is required")
	case c.Ledger.CreditUnitPrice <= 0:
		return fmt.Errorf("CREDIT_UNIT_PRICE must be positive")
	case c.Ledger.DefaultCapacity < 1:
		return fmt.Errorf("DEFAULT_GROUP_CAPACITY must be at least 1")
	case c.Ledger.SubscriptionDuration <= 0 || c.Ledger.VotingPeriod <= 0 || c.Ledger.ProposalCooldown < 0:
		return fmt.Errorf("durations must be positive")
	case c.Ledger.GroupSelection != GroupSelectionRoundRobin && c.Ledger.GroupSelection != GroupSelectionRandom:
		return fmt.Errorf("GROUP_SELECTION must be %q or %q", GroupSelectionRoundRobin, GroupSelectionRandom)
	case len(c.Outbox.KafkaBrokers) > 0 && c.Outbox.DatabaseURL == "":
		return fmt.Errorf("KAFKA_BROKERS requires DATABASE_URL for the outbox")
	}
	return nil
}

type parser struct {
	errs *[]string
}

func (p parser) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (p parser) int(key string, def int) int {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*p.errs = append(*p.errs, key+": not an integer")
		return def
	}
	return v
}

func (p parser) float(key string, def float64) float64 {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*p.errs = append(*p.errs, key+": not a number")
		return def
	}
	return v
}

func (p parser) duration(key string, def time.Duration) time.Duration {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*p.errs = append(*p.errs, key+": not a duration")
		return def
	}
	return v
}
