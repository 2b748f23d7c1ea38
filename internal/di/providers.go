package di

import (
	"fmt"

	"QuotePull/internal/domain/repository"
	internalrepo "QuotePull/internal/repository"
	"QuotePull/internal/service/alphavantage"
	"QuotePull/internal/service/ratelimit"
	"QuotePull/internal/service/retry"
	"QuotePull/internal/usecase"
	"QuotePull/pkg/cache"
	pkgch "QuotePull/pkg/clickhouse"
	"QuotePull/pkg/config"
	xhttp "QuotePull/pkg/http"
	"QuotePull/pkg/logger"
	"QuotePull/pkg/metrics"
	"QuotePull/pkg/postgres"
	"QuotePull/pkg/server"
	"QuotePull/pkg/sqlite"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	return metrics.New(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job)
}

// ProvideSleeper returns the real clock.
func ProvideSleeper() retry.Sleeper {
	return retry.WallClock
}

// ProvideHTTPClient creates the provider HTTP client.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(xhttp.WithTimeout(cfg.Provider.Timeout))
}

// ProvideQuoteSource creates the Alpha Vantage fetcher.
func ProvideQuoteSource(
	cfg *config.Config,
	client *xhttp.Client,
	sleeper retry.Sleeper,
	m repository.Metrics,
	log *logger.Logger,
) repository.QuoteSource {
	return alphavantage.New(client, alphavantage.Options{
		BaseURL:             cfg.Provider.BaseURL,
		APIKey:              cfg.Provider.APIKey,
		MaxAttempts:         cfg.Provider.MaxAttempts,
		BackoffDelay:        cfg.Provider.BackoffDelay,
		RateLimitDelay:      cfg.Provider.RateLimitDelay,
		MaxRateLimitRetries: cfg.Provider.MaxRateLimitRetries,
	}, sleeper, m, log)
}

// ProvideQuoteStore opens the configured backend. The pool is lazy; the
// cleanup closes it.
func ProvideQuoteStore(cfg *config.Config) (repository.QuoteStore, func(), error) {
	switch cfg.Storage.Backend {
	case "postgres":
		client, err := postgres.NewClient(
			postgres.WithHost(cfg.Postgres.Host),
			postgres.WithPort(cfg.Postgres.Port),
			postgres.WithDatabase(cfg.Postgres.Database),
			postgres.WithCredentials(cfg.Postgres.User, cfg.Postgres.Password),
			postgres.WithSSLMode(cfg.Postgres.SSLMode),
			postgres.WithConnectTimeout(cfg.Postgres.ConnectTimeout),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres client: %w", err)
		}
		store := internalrepo.NewSQLQuoteStore(client.DB(), cfg.Storage.Table, internalrepo.Postgres, cfg.Storage.ChunkSize)
		return store, func() { _ = client.Close() }, nil

	case "sqlite":
		client, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite client: %w", err)
		}
		store := internalrepo.NewSQLQuoteStore(client.DB(), cfg.Storage.Table, internalrepo.SQLite, cfg.Storage.ChunkSize)
		return store, func() { _ = client.Close() }, nil

	case "clickhouse":
		client, err := pkgch.NewClient(
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
			pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse client: %w", err)
		}
		store := internalrepo.NewClickHouseQuoteStore(client.DB(), cfg.Storage.Table)
		return store, func() { _ = client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

// ProvideRedisCache connects to Redis when the run lock is enabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideRunLocker returns nil when Redis is disabled.
func ProvideRunLocker(rc *cache.RedisCache, cfg *config.Config) repository.RunLocker {
	if rc == nil {
		return nil
	}
	return internalrepo.NewRedisRunLock(rc, cfg.Redis.LockKey, cfg.Redis.LockTTL)
}

// ProvidePacer creates the inter-symbol pacer.
func ProvidePacer(cfg *config.Config, sleeper retry.Sleeper) *ratelimit.Pacer {
	return ratelimit.NewPacer(cfg.Provider.PacingDelay, sleeper)
}

// ProvideNormalizer creates the series normalizer.
func ProvideNormalizer(cfg *config.Config, log *logger.Logger) *usecase.Normalizer {
	return usecase.NewNormalizer(cfg.Provider.MaxDays, log)
}

// ProvideQuoteWriter creates the store writer.
func ProvideQuoteWriter(store repository.QuoteStore, m repository.Metrics, log *logger.Logger) *usecase.QuoteWriter {
	return usecase.NewQuoteWriter(store, m, log)
}

// ProvideQuoteCollector creates the run use case.
func ProvideQuoteCollector(
	cfg *config.Config,
	source repository.QuoteSource,
	normalizer *usecase.Normalizer,
	writer *usecase.QuoteWriter,
	pacer *ratelimit.Pacer,
	locker repository.RunLocker,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.QuoteCollector {
	return usecase.NewQuoteCollector(cfg.Symbols, source, normalizer, writer, pacer, locker, m, log)
}

// ProvideApp creates the application.
func ProvideApp(cfg *config.Config, collector *usecase.QuoteCollector, log *logger.Logger) *server.App {
	return server.New(cfg, collector, log)
}
