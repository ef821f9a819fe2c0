package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"CashBreakout/internal/domain/models"
	domrepo "CashBreakout/internal/domain/repository"
	"CashBreakout/internal/handler/api"
	internalrepo "CashBreakout/internal/repository"
	"CashBreakout/internal/service/angel"
	icache "CashBreakout/internal/service/cache"
	"CashBreakout/internal/service/feed"
	"CashBreakout/internal/usecase"
	pkgch "CashBreakout/pkg/clickhouse"
	"CashBreakout/pkg/config"
	xhttp "CashBreakout/pkg/http"
	pkgkafka "CashBreakout/pkg/kafka"
	"CashBreakout/pkg/logger"
	"CashBreakout/pkg/metrics"
	"CashBreakout/pkg/redisconn"
	"CashBreakout/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideRedisClient creates and pings the Redis connection.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	client, err := redisconn.New(
		redisconn.WithAddr(cfg.Redis.Addr),
		redisconn.WithPassword(cfg.Redis.Password),
		redisconn.WithDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis client: %w", err)
	}
	return client, nil
}

// ProvideCandleStream creates the Redis stream repository.
func ProvideCandleStream(client *redis.Client, cfg *config.Config) domrepo.CandleStream {
	return internalrepo.NewRedisCandleStream(client, cfg.Redis.CandleStream)
}

// ProvideSnapshotStore creates the live quote snapshot repository.
func ProvideSnapshotStore(client *redis.Client, cfg *config.Config) domrepo.SnapshotStore {
	return internalrepo.NewRedisSnapshotStore(client, cfg.Redis.SnapshotKey)
}

// ProvideLevelsStore creates the previous-day levels repository with a
// read-through TTL cache in front. The engine reads levels on every candle;
// the underlying hash changes once a day.
func ProvideLevelsStore(client *redis.Client, cfg *config.Config) domrepo.LevelsStore {
	store := internalrepo.NewRedisLevelsStore(client, cfg.Redis.LevelsKey)
	return icache.NewCachedLevels(store, 5*time.Minute)
}

// ProvideRawLevelsStore creates the levels repository without caching, for
// the fetch job that writes it.
func ProvideRawLevelsStore(client *redis.Client, cfg *config.Config) domrepo.LevelsStore {
	return internalrepo.NewRedisLevelsStore(client, cfg.Redis.LevelsKey)
}

// ProvideLedger opens the SQLite trade ledger.
func ProvideLedger(cfg *config.Config) (domrepo.Ledger, error) {
	ledger, err := internalrepo.NewSQLiteLedger(cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("trade ledger: %w", err)
	}
	return ledger, nil
}

// ProvideBroker creates the broker REST client.
func ProvideBroker(cfg *config.Config, log *logger.Logger) domrepo.Broker {
	return angel.NewClient(cfg.Broker.BaseURL, angel.Credentials{
		APIKey:       cfg.Broker.APIKey,
		ClientCode:   cfg.Broker.ClientCode,
		AccessToken:  cfg.Broker.AccessToken,
		RefreshToken: cfg.Broker.RefreshToken,
		FeedToken:    cfg.Broker.FeedToken,
	}, log, angel.WithTimeout(cfg.Broker.Timeout))
}

// ProvideQuoteStream creates the websocket quote feed for the universe.
func ProvideQuoteStream(cfg *config.Config, log *logger.Logger) domrepo.QuoteStream {
	tokens := make([]string, 0, len(cfg.Universe))
	for _, u := range cfg.Universe {
		tokens = append(tokens, u.Token)
	}
	return feed.New(
		cfg.Feed.URL,
		cfg.Broker.AccessToken,
		cfg.Broker.APIKey,
		cfg.Broker.ClientCode,
		cfg.Broker.FeedToken,
		tokens,
		log,
		feed.WithReconnectDelay(cfg.Feed.ReconnectDelay),
		feed.WithPingInterval(cfg.Feed.PingInterval),
	)
}

// ProvideCandleArchive creates the configured archive backend, or nil when
// archiving is disabled.
func ProvideCandleArchive(cfg *config.Config) (domrepo.CandleArchive, error) {
	switch cfg.Archive.Backend {
	case "kafka":
		producer, err := pkgkafka.NewProducer(
			pkgkafka.WithBrokers(cfg.Archive.Kafka.Brokers),
			pkgkafka.WithCompression(cfg.Archive.Kafka.Compression),
			pkgkafka.WithRequiredAcks(cfg.Archive.Kafka.RequiredAcks),
			pkgkafka.WithMaxAttempts(cfg.Archive.Kafka.MaxAttempts),
			pkgkafka.WithWriteTimeout(cfg.Archive.Kafka.WriteTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		return internalrepo.NewKafkaCandleArchive(producer, cfg.Archive.Kafka.Topic), nil

	case "clickhouse":
		ch := cfg.Archive.ClickHouse
		client, err := pkgch.NewClient(
			pkgch.WithHost(ch.Host, ch.Port),
			pkgch.WithDatabase(ch.Database),
			pkgch.WithCredentials(ch.User, ch.Password),
			pkgch.WithDialTimeout(ch.DialTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, internalrepo.CandleArchiveSchema(ch.Database, ch.Table)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		return internalrepo.NewClickHouseCandleArchive(client, ch.Database+"."+ch.Table), nil
	}
	return nil, nil
}

// ProvideTimezone resolves the exchange timezone.
func ProvideTimezone(cfg *config.Config) (*time.Location, error) {
	loc, err := time.LoadLocation(cfg.Engine.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", cfg.Engine.Timezone, err)
	}
	return loc, nil
}

// ProvideStrategySettings maps the strategy config block.
func ProvideStrategySettings(cfg *config.Config) models.StrategySettings {
	return models.StrategySettings{
		Active:           cfg.Strategy.Active,
		StartTime:        cfg.Strategy.StartTime,
		EndTime:          cfg.Strategy.EndTime,
		MaxTotalTrades:   cfg.Strategy.MaxTotalTrades,
		PerTradeSLAmount: cfg.Strategy.PerTradeSLAmount,
		PnLExitEnabled:   cfg.Strategy.PnLExitEnabled,
		ProfitTarget:     cfg.Strategy.ProfitTarget,
		MaxLoss:          cfg.Strategy.MaxLoss,
	}
}

// ProvideAggregator creates the tick aggregator.
func ProvideAggregator(
	cfg *config.Config,
	loc *time.Location,
	stream domrepo.CandleStream,
	snap domrepo.SnapshotStore,
	archive domrepo.CandleArchive,
	m domrepo.Metrics,
	log *logger.Logger,
) *usecase.Aggregator {
	return usecase.NewAggregator(cfg.TokenMap(), loc, stream, snap, archive, m, log)
}

// ProvideDetector creates the signal detector.
func ProvideDetector(
	cfg *config.Config,
	levels domrepo.LevelsStore,
	ledger domrepo.Ledger,
	settings models.StrategySettings,
	m domrepo.Metrics,
	log *logger.Logger,
) *usecase.Detector {
	return usecase.NewDetector(levels, ledger, settings, m, log, cfg.Engine.User)
}

// ProvideMonitor creates the pending/position monitor.
func ProvideMonitor(
	snap domrepo.SnapshotStore,
	ledger domrepo.Ledger,
	broker domrepo.Broker,
	settings models.StrategySettings,
	m domrepo.Metrics,
	log *logger.Logger,
) *usecase.Monitor {
	return usecase.NewMonitor(snap, ledger, broker, settings, m, log)
}

// ProvideReconciler creates the order reconciler.
func ProvideReconciler(ledger domrepo.Ledger, broker domrepo.Broker, m domrepo.Metrics, log *logger.Logger) *usecase.Reconciler {
	return usecase.NewReconciler(ledger, broker, m, log)
}

// ProvideEngine creates the trading run loop.
func ProvideEngine(
	cfg *config.Config,
	loc *time.Location,
	stream domrepo.CandleStream,
	ledger domrepo.Ledger,
	detector *usecase.Detector,
	monitor *usecase.Monitor,
	reconciler *usecase.Reconciler,
	m domrepo.Metrics,
	log *logger.Logger,
) *usecase.Engine {
	return usecase.NewEngine(usecase.EngineConfig{
		User:              cfg.Engine.User,
		BatchSize:         cfg.Engine.BatchSize,
		BlockTimeout:      cfg.Engine.BlockTimeout,
		ReconcileInterval: cfg.Engine.ReconcileInterval,
		Timezone:          loc,
	}, stream, ledger, detector, monitor, reconciler, m, log)
}

// ProvideLevelsFetcher creates the reference-data fetch job.
func ProvideLevelsFetcher(broker domrepo.Broker, levels domrepo.LevelsStore, loc *time.Location, log *logger.Logger) *usecase.LevelsFetcher {
	return usecase.NewLevelsFetcher(broker, levels, loc, log)
}

// ProvideTradesHandler creates the read-only HTTP handler.
func ProvideTradesHandler(cfg *config.Config, ledger domrepo.Ledger, log *logger.Logger) xhttp.Handler {
	return api.NewTradesHandler(log, ledger, cfg.Engine.User)
}

// ProvideHTTPServer creates the ops HTTP server.
func ProvideHTTPServer(cfg *config.Config, handler xhttp.Handler) *xhttp.Server {
	return xhttp.NewServer(handler,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	)
}

// ProvideDataFeedApp assembles the tick-to-candle daemon.
func ProvideDataFeedApp(
	cfg *config.Config,
	log *logger.Logger,
	stream domrepo.QuoteStream,
	agg *usecase.Aggregator,
	archive domrepo.CandleArchive,
) *server.App {
	app := server.New(cfg, log, func(ctx context.Context) error {
		return stream.Run(ctx, agg.Handlers())
	})
	if archive != nil {
		app.AddCloser("candle archive", archive.Close)
	}
	return app
}

// ProvideEngineApp assembles the trading daemon with its ops HTTP surface.
func ProvideEngineApp(
	cfg *config.Config,
	log *logger.Logger,
	engine *usecase.Engine,
	httpServer *xhttp.Server,
	ledger domrepo.Ledger,
) *server.App {
	app := server.New(cfg, log, engine.Run)
	app.SetHTTPServer(httpServer)
	app.AddCloser("trade ledger", ledger.Close)
	return app
}

// ProvideLevelsJob assembles the one-shot reference-data refresh.
func ProvideLevelsJob(cfg *config.Config, log *logger.Logger, fetcher *usecase.LevelsFetcher) *server.Job {
	return server.NewJob(log, func(ctx context.Context) error {
		n, err := fetcher.Fetch(ctx, cfg.TokenMap())
		if err != nil {
			return err
		}
		log.Info("levels refresh complete",
			logger.Int("stored", n),
			logger.Int("universe", len(cfg.Universe)),
		)
		return nil
	})
}
