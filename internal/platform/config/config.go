package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	pstrings "warden/pkg/platform/strings"
)

// Storage backends for settings, records and cooldowns.
const (
	StorageMemory   = "memory"
	StorageSnapshot = "snapshot"
	StoragePostgres = "postgres"

	CooldownBackendRedis = "redis"
)

const devAdminToken = "dev-admin-token-change-in-production"

// Config is the full process configuration, read from WARDEN_* variables.
type Config struct {
	Env      string `env:"WARDEN_ENV" envDefault:"dev" validate:"oneof=dev prod"`
	Server   Server
	Storage  Storage
	Redis    RedisConfig
	Gateway  Gateway
	Kafka    Kafka
	Workflow Workflow
	Log      Log
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr       string `env:"WARDEN_HTTP_ADDR" envDefault:":8080"`
	AdminToken string `env:"WARDEN_ADMIN_TOKEN"`
}

type Storage struct {
	Backend     string `env:"WARDEN_STORAGE" envDefault:"snapshot" validate:"oneof=memory snapshot postgres"`
	DataDir     string `env:"WARDEN_DATA_DIR" envDefault:"./data"`
	DatabaseURL string `env:"WARDEN_DATABASE_URL"`
	// CooldownBackend overrides Backend for the cooldown ledger only.
	CooldownBackend string `env:"WARDEN_COOLDOWN_BACKEND" validate:"omitempty,oneof=memory snapshot postgres redis"`
}

// RedisConfig holds go-redis connection settings.
type RedisConfig struct {
	URL          string        `env:"WARDEN_REDIS_URL"`
	PoolSize     int           `env:"WARDEN_REDIS_POOL_SIZE" envDefault:"10" validate:"gte=1"`
	MinIdleConns int           `env:"WARDEN_REDIS_MIN_IDLE_CONNS" envDefault:"2" validate:"gte=0"`
	DialTimeout  time.Duration `env:"WARDEN_REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"WARDEN_REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WARDEN_REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// Gateway points at the chat platform sidecar that delivers outbound actions.
type Gateway struct {
	URL     string        `env:"WARDEN_GATEWAY_URL"`
	Timeout time.Duration `env:"WARDEN_GATEWAY_TIMEOUT" envDefault:"5s" validate:"gt=0"`
}

type Kafka struct {
	Brokers []string `env:"WARDEN_KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"WARDEN_KAFKA_TOPIC" envDefault:"warden.audit"`
}

// Workflow holds the onboarding timing knobs.
type Workflow struct {
	Cooldown       time.Duration `env:"WARDEN_COOLDOWN" envDefault:"24h" validate:"gt=0"`
	ReaperInterval time.Duration `env:"WARDEN_REAPER_INTERVAL" envDefault:"1h" validate:"gt=0"`
	AuditBuffer    int           `env:"WARDEN_AUDIT_BUFFER" envDefault:"1024" validate:"gte=1"`
}

type Log struct {
	Level  string `env:"WARDEN_LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	Format string `env:"WARDEN_LOG_FORMAT" envDefault:"json" validate:"oneof=json text"`
}

// IsDev reports whether the process runs with development defaults.
func (c Config) IsDev() bool {
	return c.Env == "dev"
}

// CooldownStorage resolves the backend used by the cooldown ledger.
func (c Config) CooldownStorage() string {
	if c.Storage.CooldownBackend != "" {
		return c.Storage.CooldownBackend
	}
	return c.Storage.Backend
}

// Load reads configuration from the environment so main stays lean.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads configuration from the given variables instead of the
// process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Kafka.Brokers = pstrings.DedupeAndTrim(cfg.Kafka.Brokers)

	if cfg.Server.AdminToken == "" && cfg.IsDev() {
		cfg.Server.AdminToken = devAdminToken
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and cross-field requirements.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	var errs []error
	if c.Server.AdminToken == "" {
		errs = append(errs, errors.New("WARDEN_ADMIN_TOKEN is required outside dev"))
	}
	needsPostgres := c.Storage.Backend == StoragePostgres || c.CooldownStorage() == StoragePostgres
	if needsPostgres && c.Storage.DatabaseURL == "" {
		errs = append(errs, errors.New("WARDEN_DATABASE_URL is required for postgres storage"))
	}
	if c.CooldownStorage() == CooldownBackendRedis && c.Redis.URL == "" {
		errs = append(errs, errors.New("WARDEN_REDIS_URL is required for the redis cooldown backend"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
