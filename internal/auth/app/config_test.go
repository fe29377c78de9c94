package app

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
)

func setSecrets(t *testing.T) {
	t.Setenv("AUTH_ACCESS_SECRET", strings.Repeat("a", 32))
	t.Setenv("AUTH_REFRESH_SECRET", strings.Repeat("r", 32))
	t.Setenv("AUTH_RESET_SECRET", strings.Repeat("p", 32))
}

func TestLoadConfigDefaults(t *testing.T) {
	setSecrets(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "gatehouse", cfg.Auth.Issuer)
	require.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	require.Equal(t, 168*time.Hour, cfg.Auth.RefreshIdleTTL)
	require.Equal(t, 720*time.Hour, cfg.Auth.RefreshAbsoluteTTL)
	require.Equal(t, 2*time.Second, cfg.Auth.StoreTimeout)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "memory", cfg.FastStore.Driver)
	require.Equal(t, "log", cfg.Mailer.Driver)
	require.Equal(t, httpx.StrictLimit, cfg.RateLimit.strict())
	require.Equal(t, httpx.ModerateLimit, cfg.RateLimit.moderate())
}

func TestLoadConfigOverrides(t *testing.T) {
	setSecrets(t)
	t.Setenv("PORT", "9090")
	t.Setenv("AUTH_ACCESS_TTL", "5m")
	t.Setenv("FASTSTORE_DRIVER", "redis")
	t.Setenv("FASTSTORE_REDIS_ADDR", "cache:6379")
	t.Setenv("MAILER_DRIVER", "kafka")
	t.Setenv("MAILER_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	require.Equal(t, "cache:6379", cfg.FastStore.RedisAddr)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Mailer.KafkaBrokers)
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port: 8080,
			Auth: AuthConfig{
				AccessSecret:       strings.Repeat("a", 32),
				RefreshSecret:      strings.Repeat("r", 32),
				ResetSecret:        strings.Repeat("p", 32),
				AccessTTL:          time.Minute,
				RefreshIdleTTL:     time.Hour,
				RefreshAbsoluteTTL: 2 * time.Hour,
				ResetTTL:           time.Hour,
			},
			Database:  DatabaseConfig{Driver: "sqlite"},
			FastStore: FastStoreConfig{Driver: "memory"},
			Mailer:    MailerConfig{Driver: "log"},
			RateLimit: RateLimitConfig{
				StrictRequests: 5, StrictWindow: time.Minute, StrictBurst: 5,
				ModerateRequests: 20, ModerateWindow: time.Minute, ModerateBurst: 20,
			},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"short secret", func(c *Config) { c.Auth.ResetSecret = "short" }, "AUTH_RESET_SECRET"},
		{"shared secret", func(c *Config) { c.Auth.RefreshSecret = c.Auth.AccessSecret }, "distinct"},
		{"idle beyond absolute", func(c *Config) { c.Auth.RefreshIdleTTL = 3 * time.Hour }, "AUTH_REFRESH_IDLE_TTL"},
		{"zero ttl", func(c *Config) { c.Auth.AccessTTL = 0 }, "positive"},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }, "DATABASE_DSN"},
		{"unknown fast store", func(c *Config) { c.FastStore.Driver = "memcached" }, "FASTSTORE_DRIVER"},
		{"kafka without brokers", func(c *Config) { c.Mailer.Driver = "kafka" }, "MAILER_KAFKA_BROKERS"},
		{"zero rate limit", func(c *Config) { c.RateLimit.StrictBurst = 0 }, "rate limits"},
		{"bad port", func(c *Config) { c.Port = 0 }, "PORT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}
