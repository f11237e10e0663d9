package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/daap14/parley/internal/api"
	"github.com/daap14/parley/internal/audit"
	"github.com/daap14/parley/internal/auth"
	"github.com/daap14/parley/internal/clock"
	"github.com/daap14/parley/internal/config"
	"github.com/daap14/parley/internal/database"
	"github.com/daap14/parley/internal/email"
	"github.com/daap14/parley/internal/fingerprint"
	"github.com/daap14/parley/internal/gravatar"
	"github.com/daap14/parley/internal/mailer"
	"github.com/daap14/parley/internal/metrics"
	"github.com/daap14/parley/internal/password"
	"github.com/daap14/parley/internal/ratelimit"
	"github.com/daap14/parley/internal/session"
	"github.com/daap14/parley/internal/user"
	"github.com/daap14/parley/internal/worker"
)

const (
	maxPasswordLength      = 256
	rateLimitCleanupPeriod = time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

func run(cfg *config.Config) error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool()); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	realClock := clock.Real{}

	dispatcher := worker.New(worker.Config{
		Workers:     cfg.WorkerCount,
		QueueSize:   cfg.WorkerQueueSize,
		MaxAttempts: cfg.WorkerMaxAttempts,
		TaskTimeout: cfg.WorkerTaskTimeout,
	}, worker.WithObserver(collector.RecordTask))
	dispatcher.Start()

	limiterStore, closeStore, err := newCounterStore(ctx, cfg, realClock)
	if err != nil {
		return err
	}
	defer closeStore()

	limiter := ratelimit.NewLimiter(limiterStore, map[string]ratelimit.Rule{
		ratelimit.ClassAuth:  {Limit: cfg.RateLimitAuthLimit, Window: cfg.RateLimitAuthWindow},
		ratelimit.ClassWrite: {Limit: cfg.RateLimitWriteLimit, Window: cfg.RateLimitWriteWindow},
	}, realClock)

	pool := db.Pool()
	repos := auth.NewRepositories(pool)

	sessions, err := session.NewManager(session.NewRepository(pool), session.Config{
		Secret:       []byte(cfg.SessionSecret),
		TTL:          cfg.SessionTTL,
		CookieDomain: cfg.SessionCookieDomain,
		Secure:       cfg.SessionCookieSecure,
	}, realClock)
	if err != nil {
		return fmt.Errorf("creating session manager: %w", err)
	}
	go sessions.StartPurge(ctx, cfg.SessionPurgeInterval)

	oracleHTTP := &http.Client{Timeout: cfg.OracleTimeout}
	oracleRate := rate.Limit(cfg.OracleRatePerSec)

	pwned := password.NewPwnedClient(cfg.PwnedBaseURL,
		password.WithHTTPClient(oracleHTTP),
		password.WithRateLimit(oracleRate, int(cfg.OracleRatePerSec)+1),
		password.WithObserver(collector.OracleObserver("pwned_passwords")),
	)
	verifier := email.NewVerifierClient(cfg.EmailVerifierURL, cfg.EmailVerifierToken,
		email.WithHTTPClient(oracleHTTP),
		email.WithRateLimit(oracleRate, int(cfg.OracleRatePerSec)+1),
		email.WithObserver(collector.OracleObserver("email_verifier")),
	)

	gravatarClient := gravatar.NewClient(cfg.GravatarBaseURL, cfg.GravatarAPIKey, gravatar.WithHTTPClient(oracleHTTP))

	auditLog := audit.NewRepository(pool)

	svc := auth.NewService(auth.Deps{
		Repos:  repos,
		Tx:     auth.NewTxRunner(pool),
		Email:  email.NewValidator(verifier),
		Policy: password.NewPolicy(cfg.PasswordMinLength, maxPasswordLength, pwned),
		Hasher: password.NewHasher(password.Params{
			Memory:      cfg.Argon2Memory,
			Iterations:  cfg.Argon2Iterations,
			Parallelism: cfg.Argon2Parallelism,
			SaltLength:  password.DefaultParams().SaltLength,
			KeyLength:   password.DefaultParams().KeyLength,
		}, nil),
		Audit:    audit.NewRecorder(auditLog, dispatcher),
		Tasks:    dispatcher,
		Sessions: sessions,
		Notifier: newNotifier(cfg),
		Profiles: gravatar.NewSyncer(gravatarClient, repos.Users),
		Observer: collector,
		Clock:    realClock,
	})

	proxies, err := fingerprint.NewProxyResolver(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("configuring trusted proxies: %w", err)
	}

	router := api.NewRouter(api.RouterDeps{
		DBPinger:       db,
		Version:        cfg.Version,
		ClientIPs:      proxies,
		AuthService:    svc,
		Sessions:       sessions,
		SessionReader:  sessions,
		Users:          user.NewRepository(pool),
		AuditLog:       auditLog,
		Limiter:        limiter,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting parley server", "port", cfg.Port, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Requests are done; drain audit writes and other queued tasks.
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		slog.Error("background tasks did not drain", "error", err)
	}

	return nil
}

// newCounterStore returns the Redis counter store when REDIS_URL is set and
// the in-memory store otherwise.
func newCounterStore(ctx context.Context, cfg *config.Config, c clock.Clock) (ratelimit.Store, func(), error) {
	if cfg.RedisURL == "" {
		store := ratelimit.NewMemoryStore(c)
		go store.StartCleanup(ctx, rateLimitCleanupPeriod)
		slog.Info("rate limiter using in-memory counters")
		return store, func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("pinging redis: %w", err)
	}

	slog.Info("rate limiter using redis counters", "addr", opts.Addr)
	return ratelimit.NewRedisStore(client, c), func() { client.Close() }, nil
}

// newNotifier returns the Postmark sender when a server token is configured,
// otherwise a sender that only logs.
func newNotifier(cfg *config.Config) auth.RecoveryNotifier {
	client := mailer.NewClient(cfg.PostmarkServerToken, cfg.MailFrom, cfg.AppURL)
	if client.Configured() {
		return client
	}
	slog.Warn("POSTMARK_SERVER_TOKEN not set; recovery codes will only be logged")
	return mailer.LogSender{}
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
