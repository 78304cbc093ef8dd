// config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config holds service configuration loaded from .env, environment and flags.
type Config struct {
	Port                   string
	MongoURI               string
	MongoDBName            string
	MongoTransactions      bool
	AuthURL                string
	RabbitURL              string
	AuditDatabaseURI       string
	RedisAddr              string
	CacheTTL               time.Duration
	SweepInterval          time.Duration
	PendingActionThreshold time.Duration
	Timezone               string
	ShutdownTimeout        time.Duration
	AuditBuffer            int
	LogLevel               string

	// Args are the positional arguments left after flag parsing.
	Args []string
}

const (
	defaultPort                   = "8080"
	defaultMongoURI               = "mongodb://localhost:27017"
	defaultMongoDBName            = "storefront"
	defaultAuthURL                = "http://localhost:3000"
	defaultCacheTTL               = time.Minute
	defaultPendingActionThreshold = 24 * time.Hour
	defaultTimezone               = "Africa/Nairobi"
	defaultShutdownTimeout        = 10 * time.Second
	defaultAuditBuffer            = 256
	defaultLogLevel               = "info"
)

// Load reads an optional .env file and then parses environment and flags.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return load(os.Args[1:], os.LookupEnv)
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		Port:                   getString(lookup, "PORT", defaultPort),
		MongoURI:               getString(lookup, "MONGO_URI", defaultMongoURI),
		MongoDBName:            getString(lookup, "MONGO_DB_NAME", defaultMongoDBName),
		MongoTransactions:      getBool(lookup, "MONGO_TRANSACTIONS", false),
		AuthURL:                getString(lookup, "AUTH_URL", defaultAuthURL),
		RabbitURL:              getString(lookup, "RABBIT_URL", ""),
		AuditDatabaseURI:       getString(lookup, "AUDIT_DATABASE_URI", ""),
		RedisAddr:              getString(lookup, "REDIS_ADDR", ""),
		CacheTTL:               getDuration(lookup, "CACHE_TTL", defaultCacheTTL),
		SweepInterval:          getDuration(lookup, "SWEEP_INTERVAL", 0),
		PendingActionThreshold: getDuration(lookup, "PENDING_ACTION_THRESHOLD", defaultPendingActionThreshold),
		Timezone:               getString(lookup, "TIMEZONE", defaultTimezone),
		ShutdownTimeout:        getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		AuditBuffer:            getInt(lookup, "AUDIT_BUFFER", defaultAuditBuffer),
		LogLevel:               getString(lookup, "LOG_LEVEL", defaultLogLevel),
	}

	flags := flag.NewFlagSet("storefront-orders", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	var (
		sweepStr    = cfg.SweepInterval.String()
		shutdownStr = cfg.ShutdownTimeout.String()
	)

	flags.StringVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	flags.StringVar(&cfg.MongoURI, "mongo-uri", cfg.MongoURI, "MongoDB connection URI")
	flags.StringVar(&cfg.MongoDBName, "mongo-db", cfg.MongoDBName, "MongoDB database name")
	flags.BoolVar(&cfg.MongoTransactions, "mongo-transactions", cfg.MongoTransactions, "Run checkout inside a MongoDB transaction")
	flags.StringVar(&cfg.RabbitURL, "rabbit-url", cfg.RabbitURL, "RabbitMQ URL for order events")
	flags.StringVar(&cfg.AuditDatabaseURI, "audit-db", cfg.AuditDatabaseURI, "PostgreSQL DSN of the audit store")
	flags.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for lookup caching")
	flags.StringVar(&sweepStr, "sweep-interval", sweepStr, "Interval of the automated status sweep (0 disables)")
	flags.StringVar(&shutdownStr, "shutdown-timeout", shutdownStr, "Graceful shutdown timeout")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")

	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	cfg.Args = flags.Args()

	var err error
	if cfg.SweepInterval, err = time.ParseDuration(sweepStr); err != nil {
		return nil, fmt.Errorf("invalid sweep interval: %w", err)
	}
	if cfg.ShutdownTimeout, err = time.ParseDuration(shutdownStr); err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	if cfg.SweepInterval < 0 {
		cfg.SweepInterval = 0
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.PendingActionThreshold <= 0 {
		cfg.PendingActionThreshold = defaultPendingActionThreshold
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.AuditBuffer <= 0 {
		cfg.AuditBuffer = defaultAuditBuffer
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("mongo URI must be provided")
	}

	return cfg, nil
}

// Location returns the configured time zone, used for "today" boundaries.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBool(lookup envLookup, key string, def bool) bool {
	if v, ok := lookup(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
