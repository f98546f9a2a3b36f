package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"TradeDeck/internal/domain/repository"
	"TradeDeck/internal/handler/api"
	mid "TradeDeck/internal/middleware"
	internalrepo "TradeDeck/internal/repository"
	"TradeDeck/internal/service/brokerage"
	"TradeDeck/internal/service/stream"
	"TradeDeck/internal/store"
	"TradeDeck/internal/usecase"
	pkgcache "TradeDeck/pkg/cache"
	pkgch "TradeDeck/pkg/clickhouse"
	"TradeDeck/pkg/config"
	xhttp "TradeDeck/pkg/http"
	pkgkafka "TradeDeck/pkg/kafka"
	applogger "TradeDeck/pkg/logger"
	"TradeDeck/pkg/metrics"
	"TradeDeck/pkg/server"

	"github.com/labstack/echo/v4"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	if cfg.Environment == "development" {
		level = "debug"
	}
	return applogger.New(&applogger.Config{Level: level, Format: "console", Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideStore creates the reconciliation store.
func ProvideStore(logger *applogger.Logger, m repository.Metrics) *store.Store {
	return store.New(logger, m)
}

// ProvideNotifications creates the notification list.
func ProvideNotifications(cfg *config.Config) *store.NotificationList {
	return store.NewNotificationList(cfg.Trading.NotificationTTL)
}

// ProvideBrokerage creates the REST brokerage client.
func ProvideBrokerage(cfg *config.Config) repository.Brokerage {
	timeout := cfg.Brokerage.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return brokerage.New(cfg.Brokerage.BaseURL, cfg.Brokerage.Token, timeout)
}

// ProvideEventStream creates the trading WebSocket stream.
func ProvideEventStream(cfg *config.Config, m repository.Metrics, logger *applogger.Logger) repository.EventStream {
	return stream.New(cfg.Stream.URL, cfg.Stream.ReconnectDelay, cfg.Stream.PingInterval, m, logger)
}

// ProvideCache creates the recipe cache: layered over Redis when enabled,
// in-process only otherwise.
func ProvideCache(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Cache.Redis.Enabled {
		return pkgcache.NewMemoryCache(), nil
	}

	host, portStr, err := net.SplitHostPort(cfg.Cache.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("cache redis addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("cache redis port: %w", err)
	}

	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
		pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return pkgcache.NewLayeredCache(rc), nil
}

// ProvideClickHouseClient creates a ClickHouse client for tick history,
// or nil when tick history is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.TickHistory.Enabled {
		return nil, nil
	}

	ch := cfg.TickHistory.ClickHouse
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout, ch.WriteTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.TickSchema(tickTable(cfg))); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

func tickTable(cfg *config.Config) string {
	table := cfg.TickHistory.Table
	if table == "" {
		table = "price_ticks"
	}
	return cfg.TickHistory.ClickHouse.Database + "." + table
}

// ProvideTickStore creates ClickHouse tick storage, or a noop when disabled.
func ProvideTickStore(chClient *pkgch.Client, cfg *config.Config) repository.TickStore {
	if chClient == nil {
		return internalrepo.NewNoopTickStore()
	}
	return internalrepo.NewClickHouseTickStore(chClient.DB(), tickTable(cfg))
}

// ProvideKafkaProducer creates a Kafka producer for the journal, or nil
// when journaling is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Journal.Enabled {
		return nil, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Journal.Brokers),
		pkgkafka.WithCompression(cfg.Journal.Compression),
		pkgkafka.WithRequiredAcks(cfg.Journal.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Journal.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Journal.BatchTimeout),
		pkgkafka.WithMaxAttempts(cfg.Journal.MaxAttempts),
		pkgkafka.WithAsync(cfg.Journal.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideJournal creates the Kafka journal, or a noop when disabled.
func ProvideJournal(producer *pkgkafka.Producer, cfg *config.Config) repository.Journal {
	if producer == nil {
		return internalrepo.NewNoopJournal()
	}
	ordersTopic := cfg.Journal.OrdersTopic
	if ordersTopic == "" {
		ordersTopic = "tradedeck.order-updates"
	}
	signalsTopic := cfg.Journal.SignalsTopic
	if signalsTopic == "" {
		signalsTopic = "tradedeck.recipe-signals"
	}
	return internalrepo.NewKafkaJournal(producer, ordersTopic, signalsTopic)
}

// ProvidePipeline creates the tick batching pipeline.
func ProvidePipeline(ticks repository.TickStore, m repository.Metrics, cfg *config.Config) *mid.PricePipeline {
	opts := []mid.PipelineOption{}
	if cfg.TickHistory.MaxRPS > 0 {
		opts = append(opts, mid.WithMaxRPS(cfg.TickHistory.MaxRPS))
	}
	if cfg.TickHistory.BatchSize > 0 {
		opts = append(opts, mid.WithBatchSize(cfg.TickHistory.BatchSize))
	}
	if cfg.TickHistory.FlushTimeout > 0 {
		opts = append(opts, mid.WithFlushTimeout(cfg.TickHistory.FlushTimeout))
	}
	return mid.NewPricePipeline(ticks, m, opts...)
}

// ProvideRefresher creates the snapshot refresher.
func ProvideRefresher(b repository.Brokerage, st *store.Store, cfg *config.Config, logger *applogger.Logger) *usecase.Refresher {
	return usecase.NewRefresher(b, st, cfg.Trading.OrderFetchLimit, logger)
}

// ProvideRecipeService creates the recipe use case.
func ProvideRecipeService(b repository.Brokerage, cache pkgcache.Service, logger *applogger.Logger) *usecase.RecipeService {
	return usecase.NewRecipeService(b, cache, logger)
}

// ProvideExecutionService creates the execution use case.
func ProvideExecutionService(
	b repository.Brokerage,
	st *store.Store,
	refresher *usecase.Refresher,
	m repository.Metrics,
	logger *applogger.Logger,
) *usecase.ExecutionService {
	return usecase.NewExecutionService(b, st, refresher, m, logger)
}

// ProvideJobPoller creates the search job poller.
func ProvideJobPoller(b repository.Brokerage, logger *applogger.Logger, cfg *config.Config) *usecase.JobPoller {
	return usecase.NewJobPoller(b, logger, cfg.Trading.JobPollInterval)
}

// ProvideEventConsumer creates the stream consumer.
func ProvideEventConsumer(
	s repository.EventStream,
	cfg *config.Config,
	st *store.Store,
	notifs *store.NotificationList,
	refresher *usecase.Refresher,
	journal repository.Journal,
	pipe *mid.PricePipeline,
	m repository.Metrics,
	logger *applogger.Logger,
) *usecase.EventConsumer {
	return usecase.NewEventConsumer(s, cfg.Brokerage.Token, st, notifs, refresher, journal, pipe, m, logger)
}

// routes registers every API handler on one Echo instance.
type routes struct {
	trading *api.TradingHandler
	recipes *api.RecipesHandler
}

func (r *routes) RegisterRoutes(e *echo.Echo) {
	r.trading.RegisterRoutes(e)
	r.recipes.RegisterRoutes(e)
}

// ProvideHTTPHandler creates the combined HTTP handler.
func ProvideHTTPHandler(
	logger *applogger.Logger,
	st *store.Store,
	notifs *store.NotificationList,
	exec *usecase.ExecutionService,
	refresher *usecase.Refresher,
	poller *usecase.JobPoller,
	recipes *usecase.RecipeService,
	ticks repository.TickStore,
) xhttp.Handler {
	return &routes{
		trading: api.NewTradingHandler(logger, st, notifs, exec, refresher, poller, ticks),
		recipes: api.NewRecipesHandler(logger, recipes, exec),
	}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	consumer *usecase.EventConsumer,
	refresher *usecase.Refresher,
	poller *usecase.JobPoller,
	st *store.Store,
	journal repository.Journal,
	chClient *pkgch.Client,
	handler xhttp.Handler,
) *server.App {
	return server.New(cfg, consumer, refresher, poller, st, journal, chClient, handler)
}
