package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config captures the runtime settings of the escrowshop service.
type Config struct {
	Service    string            `yaml:"service" toml:"service"`
	Env        string            `yaml:"env" toml:"env"`
	HTTP       HTTPConfig        `yaml:"http" toml:"http"`
	Store      StoreConfig       `yaml:"store" toml:"store"`
	Escrow     EscrowConfig      `yaml:"escrow" toml:"escrow"`
	Auth       AuthConfig        `yaml:"auth" toml:"auth"`
	Log        LogConfig         `yaml:"log" toml:"log"`
	Tracing    TracingConfig     `yaml:"tracing" toml:"tracing"`
	Outbox     OutboxConfig      `yaml:"outbox" toml:"outbox"`
	Principals []PrincipalConfig `yaml:"principals" toml:"principals"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" toml:"addr"`
	RateLimitRPM    int           `yaml:"rate_limit_rpm" toml:"rate_limit_rpm"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// StoreConfig selects the persistence backend. Driver "memory" keeps
// everything in process; the SQL drivers go through gorm. RedisAddr, when
// set, moves the inventory ledger to redis whatever the driver.
type StoreConfig struct {
	Driver      string `yaml:"driver" toml:"driver"`
	DSN         string `yaml:"dsn" toml:"dsn"`
	RedisAddr   string `yaml:"redis_addr" toml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix" toml:"redis_prefix"`
}

// EscrowConfig points at the escrow node. With no RPCURL the in-process
// simulator is used.
type EscrowConfig struct {
	RPCURL             string        `yaml:"rpc_url" toml:"rpc_url"`
	RPCToken           string        `yaml:"rpc_token" toml:"rpc_token"`
	Timeout            time.Duration `yaml:"timeout" toml:"timeout"`
	Currency           string        `yaml:"currency" toml:"currency"`
	VerifierAddress    string        `yaml:"verifier_address" toml:"verifier_address"`
	VerifierPrivateKey string        `yaml:"verifier_private_key" toml:"verifier_private_key"`
	SimulatedLatency   time.Duration `yaml:"simulated_latency" toml:"simulated_latency"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

type LogConfig struct {
	Level      string `yaml:"level" toml:"level"`
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
}

type TracingConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" toml:"otlp_endpoint"`
}

type OutboxConfig struct {
	QueueSize   int `yaml:"queue_size" toml:"queue_size"`
	Concurrency int `yaml:"concurrency" toml:"concurrency"`
}

// PrincipalConfig seeds the principal directory at startup.
type PrincipalConfig struct {
	ID     string `yaml:"id" toml:"id"`
	Role   string `yaml:"role" toml:"role"`
	Name   string `yaml:"name" toml:"name"`
	Wallet string `yaml:"wallet" toml:"wallet"`
}

const (
	EnvDev = "dev"

	DriverMemory = "memory"
)

var knownDrivers = map[string]bool{
	DriverMemory: true,
	"sqlite":     true,
	"postgres":   true,
	"mysql":      true,
}

func Default() Config {
	return Config{
		Service: "escrowshop",
		Env:     EnvDev,
		HTTP: HTTPConfig{
			Addr:            ":8080",
			RateLimitRPM:    600,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver:      DriverMemory,
			RedisPrefix: "escrowshop:",
		},
		Escrow: EscrowConfig{
			Timeout:  15 * time.Second,
			Currency: "SUI",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Outbox: OutboxConfig{
			QueueSize:   1024,
			Concurrency: 8,
		},
	}
}

// Load layers defaults, the optional file at path and the environment, in
// that order, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path = strings.TrimSpace(path); path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode yaml config: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode toml config: %w", err)
		}
	default:
		return fmt.Errorf("config: unsupported file type %q", filepath.Ext(path))
	}
	return nil
}

func (cfg *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("SERVICE_NAME", &cfg.Service)
	str("ENV", &cfg.Env)
	str("HTTP_ADDR", &cfg.HTTP.Addr)
	str("STORE_DRIVER", &cfg.Store.Driver)
	str("STORE_DSN", &cfg.Store.DSN)
	str("REDIS_ADDR", &cfg.Store.RedisAddr)
	str("ESCROW_RPC_URL", &cfg.Escrow.RPCURL)
	str("ESCROW_RPC_TOKEN", &cfg.Escrow.RPCToken)
	str("VERIFIER_ADDRESS", &cfg.Escrow.VerifierAddress)
	str("VERIFIER_PRIVATE_KEY", &cfg.Escrow.VerifierPrivateKey)
	str("JWT_SECRET", &cfg.Auth.JWTSecret)
	str("LOG_FILE", &cfg.Log.File)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Tracing.OTLPEndpoint)

	if v, ok := lookup("ESCROW_TIMEOUT"); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("ESCROW_TIMEOUT: %w", err)
		}
		cfg.Escrow.Timeout = d
	}
	if v, ok := lookup("RATE_LIMIT_RPM"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_RPM: %w", err)
		}
		cfg.HTTP.RateLimitRPM = n
	}
	return nil
}

func (cfg *Config) normalize() {
	cfg.Service = strings.TrimSpace(cfg.Service)
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverMemory
	}
	if strings.TrimSpace(cfg.Escrow.Currency) == "" {
		cfg.Escrow.Currency = "SUI"
	}
	for i := range cfg.Principals {
		cfg.Principals[i].ID = strings.TrimSpace(cfg.Principals[i].ID)
		cfg.Principals[i].Role = strings.ToLower(strings.TrimSpace(cfg.Principals[i].Role))
	}
}

// Validate reports the first setting that would keep the service from
// starting correctly.
func (cfg Config) Validate() error {
	if cfg.Service == "" {
		return fmt.Errorf("config: service name is required")
	}
	if !knownDrivers[cfg.Store.Driver] {
		return fmt.Errorf("config: unknown store driver %q", cfg.Store.Driver)
	}
	if cfg.Store.Driver != DriverMemory && strings.TrimSpace(cfg.Store.DSN) == "" {
		return fmt.Errorf("config: store.dsn is required for driver %q", cfg.Store.Driver)
	}
	if cfg.Escrow.Timeout <= 0 {
		return fmt.Errorf("config: escrow.timeout must be positive")
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("config: http.shutdown_timeout must be positive")
	}
	if cfg.HTTP.RateLimitRPM < 0 {
		return fmt.Errorf("config: http.rate_limit_rpm must not be negative")
	}
	if cfg.Env != EnvDev && strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return fmt.Errorf("config: auth.jwt_secret is required outside %s", EnvDev)
	}
	seen := make(map[string]bool, len(cfg.Principals))
	for _, p := range cfg.Principals {
		if p.ID == "" {
			return fmt.Errorf("config: principal id is required")
		}
		if seen[p.ID] {
			return fmt.Errorf("config: duplicate principal %q", p.ID)
		}
		seen[p.ID] = true
		if p.Role != "sender" && p.Role != "vendor" {
			return fmt.Errorf("config: principal %q has unknown role %q", p.ID, p.Role)
		}
	}
	return nil
}
