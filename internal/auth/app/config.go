package app

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
)

const minSecretBytes = 32

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Env                  string        `env:"ENV" envDefault:"dev"`
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat            string        `env:"LOG_FORMAT" envDefault:"json"`
	Port                 int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`

	Auth      AuthConfig      `envPrefix:"AUTH_"`
	Database  DatabaseConfig  `envPrefix:"DATABASE_"`
	FastStore FastStoreConfig `envPrefix:"FASTSTORE_"`
	Mailer    MailerConfig    `envPrefix:"MAILER_"`
	Bootstrap BootstrapConfig `envPrefix:"BOOTSTRAP_"`
	RateLimit RateLimitConfig `envPrefix:"RATELIMIT_"`
}

// AuthConfig covers token lifetimes and the three signing secrets. The
// secrets must differ so a token of one purpose never verifies as another.
type AuthConfig struct {
	Issuer        string `env:"ISSUER" envDefault:"gatehouse"`
	AccessSecret  string `env:"ACCESS_SECRET,required"`
	RefreshSecret string `env:"REFRESH_SECRET,required"`
	ResetSecret   string `env:"RESET_SECRET,required"`

	AccessTTL          time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	RefreshIdleTTL     time.Duration `env:"REFRESH_IDLE_TTL" envDefault:"168h"`
	RefreshAbsoluteTTL time.Duration `env:"REFRESH_ABSOLUTE_TTL" envDefault:"720h"`
	ResetTTL           time.Duration `env:"RESET_TTL" envDefault:"1h"`
	PermissionCacheTTL time.Duration `env:"PERMISSION_CACHE_TTL" envDefault:"5m"`
	StoreTimeout       time.Duration `env:"STORE_TIMEOUT" envDefault:"2s"`
	RetentionPeriod    time.Duration `env:"RETENTION_PERIOD" envDefault:"720h"`

	PepperFile string `env:"PEPPER_FILE" envDefault:"pepper"`
	SeedFile   string `env:"SEED_FILE"`
}

type DatabaseConfig struct {
	Driver string `env:"DRIVER" envDefault:"sqlite"`
	File   string `env:"FILE" envDefault:"auth.db"`
	DSN    string `env:"DSN"`
}

type FastStoreConfig struct {
	Driver        string `env:"DRIVER" envDefault:"memory"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`
}

type MailerConfig struct {
	Driver       string   `env:"DRIVER" envDefault:"log"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"auth.mail"`
	ResetURL     string   `env:"RESET_URL"`
	WelcomeURL   string   `env:"WELCOME_URL"`
}

type BootstrapConfig struct {
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

// RateLimitConfig sizes the strict (credential) and moderate (authenticated)
// buckets.
type RateLimitConfig struct {
	StrictRequests   int           `env:"STRICT_REQUESTS" envDefault:"5"`
	StrictWindow     time.Duration `env:"STRICT_WINDOW" envDefault:"1m"`
	StrictBurst      int           `env:"STRICT_BURST" envDefault:"5"`
	ModerateRequests int           `env:"MODERATE_REQUESTS" envDefault:"20"`
	ModerateWindow   time.Duration `env:"MODERATE_WINDOW" envDefault:"1m"`
	ModerateBurst    int           `env:"MODERATE_BURST" envDefault:"20"`
}

func (c RateLimitConfig) strict() httpx.RateLimitConfig {
	return httpx.RateLimitConfig{RequestsPerWindow: c.StrictRequests, Window: c.StrictWindow, Burst: c.StrictBurst}
}

func (c RateLimitConfig) moderate() httpx.RateLimitConfig {
	return httpx.RateLimitConfig{RequestsPerWindow: c.ModerateRequests, Window: c.ModerateWindow, Burst: c.ModerateBurst}
}

// LoadConfig parses the environment and validates the result.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	secrets := map[string]string{
		"AUTH_ACCESS_SECRET":  c.Auth.AccessSecret,
		"AUTH_REFRESH_SECRET": c.Auth.RefreshSecret,
		"AUTH_RESET_SECRET":   c.Auth.ResetSecret,
	}
	for _, name := range []string{"AUTH_ACCESS_SECRET", "AUTH_REFRESH_SECRET", "AUTH_RESET_SECRET"} {
		if len(secrets[name]) < minSecretBytes {
			fail("%s must be at least %d bytes", name, minSecretBytes)
		}
	}
	if same(c.Auth.AccessSecret, c.Auth.RefreshSecret) ||
		same(c.Auth.AccessSecret, c.Auth.ResetSecret) ||
		same(c.Auth.RefreshSecret, c.Auth.ResetSecret) {
		fail("token secrets must be distinct")
	}

	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshIdleTTL <= 0 || c.Auth.RefreshAbsoluteTTL <= 0 || c.Auth.ResetTTL <= 0 {
		fail("token lifetimes must be positive")
	}
	if c.Auth.RefreshIdleTTL > c.Auth.RefreshAbsoluteTTL {
		fail("AUTH_REFRESH_IDLE_TTL exceeds AUTH_REFRESH_ABSOLUTE_TTL")
	}

	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.DSN == "" {
			fail("DATABASE_DSN is required for postgres")
		}
	default:
		fail("unknown DATABASE_DRIVER %q", c.Database.Driver)
	}

	switch c.FastStore.Driver {
	case "memory", "redis":
	default:
		fail("unknown FASTSTORE_DRIVER %q", c.FastStore.Driver)
	}

	switch c.Mailer.Driver {
	case "log":
	case "kafka":
		if len(c.Mailer.KafkaBrokers) == 0 {
			fail("MAILER_KAFKA_BROKERS is required for kafka")
		}
	default:
		fail("unknown MAILER_DRIVER %q", c.Mailer.Driver)
	}

	rl := c.RateLimit
	if rl.StrictRequests <= 0 || rl.StrictBurst <= 0 || rl.StrictWindow <= 0 ||
		rl.ModerateRequests <= 0 || rl.ModerateBurst <= 0 || rl.ModerateWindow <= 0 {
		fail("rate limits must be positive")
	}

	if c.Port <= 0 || c.Port > 65535 {
		fail("PORT out of range")
	}

	return errors.Join(errs...)
}

func same(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
