package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
// Token secrets are loaded separately by token.LoadConfigFromEnv.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// RedisURL locates the ephemeral code store for social login codes.
	RedisURL string

	// AuthTrustProxy enables client IP resolution from forwarding headers.
	AuthTrustProxy bool

	// Login throttling, counted over the audit trail.
	LoginIPMax       int
	LoginIPWindow    time.Duration
	LoginEmailMax    int
	LoginEmailWindow time.Duration

	// If true, /readyz returns 503 unless the DB is configured and reachable.
	ReadinessRequireDB bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("AEGIS_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("AEGIS_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("AEGIS_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("AEGIS_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("AEGIS_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("AEGIS_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("AEGIS_HTTP_MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:   EnvInt64("AEGIS_HTTP_MAX_BODY_BYTES", 64<<10),

		DatabaseURL: EnvString("AEGIS_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("AEGIS_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("AEGIS_DB_MIN_CONNS", 0),

		RedisURL: EnvString("AEGIS_REDIS_URL", "redis://127.0.0.1:6379/0"),

		AuthTrustProxy:   EnvBool("AEGIS_AUTH_TRUST_PROXY", false),
		LoginIPMax:       EnvInt("AEGIS_LOGIN_IP_MAX", 20),
		LoginIPWindow:    EnvDuration("AEGIS_LOGIN_IP_WINDOW", 5*time.Minute),
		LoginEmailMax:    EnvInt("AEGIS_LOGIN_EMAIL_MAX", 5),
		LoginEmailWindow: EnvDuration("AEGIS_LOGIN_EMAIL_WINDOW", 15*time.Minute),

		ReadinessRequireDB: EnvBool("AEGIS_READINESS_REQUIRE_DB", false),
	}
}
