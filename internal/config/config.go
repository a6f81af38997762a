package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/example/dmjr-ledger/internal/ledger"
)

// Config holds the application configuration.
type Config struct {
	Environment string
	LogLevel    slog.Level

	HTTPAddr string
	GRPCAddr string

	Store        ledger.StoreConfig
	SeedAccounts []string

	APIKey    string
	JWTSecret string

	KafkaBrokers []string
	KafkaTopic   string

	RedisAddr          string
	RateLimitCapacity  int
	RateLimitRefillSec float64
	MaxBodyBytes       int64
	IPAllowlist        []string

	TLSCert string
	TLSKey  string
	TLSCA   string
}

// Production reports whether the service runs with production safeguards.
func (c *Config) Production() bool {
	return c.Environment == "production" || c.Environment == "staging"
}

// TLSEnabled reports whether the HTTP and gRPC listeners serve TLS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// Load reads .env files (the default is ./.env) into the environment without
// overriding variables already set, then loads and validates the configuration.
// Missing files are ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return LoadFromEnv()
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	var problems []string
	intVar := func(key string, def int) int {
		v := os.Getenv(key)
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			problems = append(problems, key+" must be an integer")
			return def
		}
		return n
	}
	floatVar := func(key string, def float64) float64 {
		v := os.Getenv(key)
		if v == "" {
			return def
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			problems = append(problems, key+" must be a number")
			return def
		}
		return f
	}

	cfg := &Config{
		Environment: getenv("APP_ENV", "development"),
		HTTPAddr:    ":" + getenv("PORT", "8080"),
		GRPCAddr:    getenv("GRPC_ADDR", ":50051"),
		Store: ledger.StoreConfig{
			Driver:      strings.ToLower(getenv("LEDGER_STORE", ledger.DriverFile)),
			Path:        getenv("LEDGER_PATH", "./data/ledger.json"),
			DatabaseURL: os.Getenv("DATABASE_URL"),
		},
		SeedAccounts: splitList(os.Getenv("LEDGER_SEED_ACCOUNTS")),

		APIKey:    os.Getenv("API_KEY"),
		JWTSecret: os.Getenv("JWT_SECRET"),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getenv("KAFKA_TOPIC", "ledger.transactions"),

		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RateLimitCapacity:  intVar("API_RATE_LIMIT_CAPACITY", 100),
		RateLimitRefillSec: floatVar("API_RATE_LIMIT_REFILL_PER_SEC", 50),
		MaxBodyBytes:       int64(intVar("API_MAX_BODY_BYTES", 64<<10)),
		IPAllowlist:        splitList(os.Getenv("API_IP_ALLOWLIST")),

		TLSCert: os.Getenv("API_TLS_CERT"),
		TLSKey:  os.Getenv("API_TLS_KEY"),
		TLSCA:   os.Getenv("API_TLS_CA"),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		problems = append(problems, "LOG_LEVEL must be one of debug, info, warn, error")
	}

	if len(problems) > 0 {
		return nil, errors.New("invalid environment variables: " + strings.Join(problems, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var problems []string

	switch c.Store.Driver {
	case ledger.DriverMemory:
	case ledger.DriverPostgres:
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required when LEDGER_STORE=postgres")
		}
	case ledger.DriverFile, ledger.DriverSQLite, ledger.DriverLevelDB:
		if c.Store.Path == "" {
			problems = append(problems, "LEDGER_PATH is required when LEDGER_STORE="+c.Store.Driver)
		}
	default:
		problems = append(problems, fmt.Sprintf("LEDGER_STORE %q is not one of file, sqlite, postgres, leveldb, memory", c.Store.Driver))
	}

	for _, id := range c.SeedAccounts {
		if err := ledger.ValidateAccountID(id); err != nil {
			problems = append(problems, fmt.Sprintf("LEDGER_SEED_ACCOUNTS: %v", err))
		}
	}

	if c.RateLimitCapacity <= 0 {
		problems = append(problems, "API_RATE_LIMIT_CAPACITY must be positive")
	}
	if c.RateLimitRefillSec <= 0 {
		problems = append(problems, "API_RATE_LIMIT_REFILL_PER_SEC must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		problems = append(problems, "API_MAX_BODY_BYTES must be positive")
	}

	for _, entry := range c.IPAllowlist {
		if _, _, err := net.ParseCIDR(entry); err != nil && net.ParseIP(entry) == nil {
			problems = append(problems, fmt.Sprintf("API_IP_ALLOWLIST entry %q is not an IP or CIDR", entry))
		}
	}

	if (c.TLSCert == "") != (c.TLSKey == "") {
		problems = append(problems, "API_TLS_CERT and API_TLS_KEY must be set together")
	}

	// production must not run an open ledger
	if c.Production() {
		if c.APIKey == "" && c.JWTSecret == "" {
			problems = append(problems, "API_KEY or JWT_SECRET is required for "+c.Environment)
		}
		if c.Store.Driver == ledger.DriverMemory {
			problems = append(problems, "LEDGER_STORE=memory is not durable and not allowed in "+c.Environment)
		}
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		problems = append(problems, "JWT_SECRET must be at least 32 bytes")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
