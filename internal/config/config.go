package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port        int    `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	Version     string `envconfig:"VERSION" default:"dev"`

	// TrustedProxies lists the CIDRs whose forwarding headers are believed
	// when resolving client addresses. Empty trusts no proxy.
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES" default:""`

	SessionSecret        string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL           time.Duration `envconfig:"SESSION_TTL" default:"720h"`
	SessionCookieDomain  string        `envconfig:"SESSION_COOKIE_DOMAIN" default:""`
	SessionCookieSecure  bool          `envconfig:"SESSION_COOKIE_SECURE" default:"true"`
	SessionPurgeInterval time.Duration `envconfig:"SESSION_PURGE_INTERVAL" default:"1h"`

	// RedisURL selects the Redis counter store. The in-memory store is used
	// when it is empty.
	RedisURL             string        `envconfig:"REDIS_URL" default:""`
	RateLimitAuthLimit   int           `envconfig:"RATE_LIMIT_AUTH_LIMIT" default:"10"`
	RateLimitAuthWindow  time.Duration `envconfig:"RATE_LIMIT_AUTH_WINDOW" default:"1m"`
	RateLimitWriteLimit  int           `envconfig:"RATE_LIMIT_WRITE_LIMIT" default:"60"`
	RateLimitWriteWindow time.Duration `envconfig:"RATE_LIMIT_WRITE_WINDOW" default:"1m"`

	PwnedBaseURL       string        `envconfig:"PWNED_BASE_URL" default:"https://api.pwnedpasswords.com"`
	EmailVerifierURL   string        `envconfig:"EMAIL_VERIFIER_URL" default:"https://verifier.meetchopra.com"`
	EmailVerifierToken string        `envconfig:"EMAIL_VERIFIER_TOKEN" required:"true"`
	OracleTimeout      time.Duration `envconfig:"ORACLE_TIMEOUT" default:"5s"`
	OracleRatePerSec   float64       `envconfig:"ORACLE_RATE_PER_SEC" default:"20"`

	Argon2Memory      uint32 `envconfig:"ARGON2_MEMORY_KIB" default:"65536"`
	Argon2Iterations  uint32 `envconfig:"ARGON2_ITERATIONS" default:"3"`
	Argon2Parallelism uint8  `envconfig:"ARGON2_PARALLELISM" default:"2"`
	PasswordMinLength int    `envconfig:"PASSWORD_MIN_LENGTH" default:"8"`

	WorkerCount       int           `envconfig:"WORKER_COUNT" default:"4"`
	WorkerQueueSize   int           `envconfig:"WORKER_QUEUE_SIZE" default:"256"`
	WorkerMaxAttempts int           `envconfig:"WORKER_MAX_ATTEMPTS" default:"3"`
	WorkerTaskTimeout time.Duration `envconfig:"WORKER_TASK_TIMEOUT" default:"10s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	GravatarBaseURL string `envconfig:"GRAVATAR_BASE_URL" default:""`
	GravatarAPIKey  string `envconfig:"GRAVATAR_API_KEY" default:""`

	PostmarkServerToken string `envconfig:"POSTMARK_SERVER_TOKEN" default:""`
	MailFrom            string `envconfig:"MAIL_FROM" default:"no-reply@parley.local"`
	AppURL              string `envconfig:"APP_URL" default:"http://localhost:8080"`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
