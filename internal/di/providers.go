package di

import (
	"context"
	"fmt"
	"time"

	"AutoEye/internal/domain/models"
	domrepo "AutoEye/internal/domain/repository"
	"AutoEye/internal/domain/service"
	"AutoEye/internal/handler/api"
	"AutoEye/internal/repository"
	"AutoEye/internal/services/detectors"
	"AutoEye/internal/services/scenario"
	"AutoEye/internal/services/scheduler"
	"AutoEye/internal/services/trend"
	"AutoEye/internal/usecase"
	"AutoEye/pkg/cache"
	pkgch "AutoEye/pkg/clickhouse"
	"AutoEye/pkg/config"
	xhttp "AutoEye/pkg/http"
	pkgkafka "AutoEye/pkg/kafka"
	applogger "AutoEye/pkg/logger"
	"AutoEye/pkg/metrics"
	"AutoEye/pkg/server"
)

// ProvideLogger builds the application logger. With log.collect set, warnings and
// errors are aggregated and shipped to the log topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: "auto_eye",
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.Collect && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval: cfg.Log.FlushEvery,
			Topic:        cfg.Kafka.LogTopic,
			Publisher:    producer,
		})
	}
	return l, nil
}

func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideKafkaProducer returns nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	p := cfg.Kafka.Producer
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(p.MaxAttempts),
		pkgkafka.WithBatching(p.BatchSize, p.BatchBytes, p.Linger),
		pkgkafka.WithTimeouts(p.WriteTimeout, p.ReadTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideClickHouseClient returns nil when neither the bar source nor the proposal
// sink needs ClickHouse.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.UsesClickHouse() {
		return nil, nil
	}
	ch := cfg.ClickHouse
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideCandleReader selects ClickHouse or Parquet files as the bar source.
func ProvideCandleReader(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (domrepo.CandleReader, error) {
	if cfg.Source.Type == "parquet" {
		return repository.NewParquetCandleReader(cfg.Source.ParquetDir, cfg.Source.QuoteTimeframe, cfg.Source.PointSizes), nil
	}
	if ch == nil {
		return nil, fmt.Errorf("candle reader: clickhouse client is not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ch.InitSchema(ctx, repository.CandleSchema(cfg.ClickHouse.Database)); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	reader := repository.NewClickHouseCandleReader(ch, cfg.ClickHouse.Database)
	reader.SetLogger(l)
	return reader, nil
}

func ProvideBarSource(cfg *config.Config, reader domrepo.CandleReader, l *applogger.Logger) domrepo.BarSource {
	return repository.NewMarketBarSource(reader, repository.BarSourceConfig{
		HistoryDays:       cfg.Engine.HistoryDays,
		HistoryBufferDays: cfg.Engine.HistoryBufferDays,
		IncrementalBars:   cfg.Engine.IncrementalBars,
		SymbolMap:         cfg.Engine.SymbolMap,
	}, l)
}

func ProvideElementStore(cfg *config.Config, l *applogger.Logger) domrepo.ElementStore {
	return repository.NewElementFileStore(cfg.Engine.OutputDir, l)
}

func ProvideStateStore(cfg *config.Config, l *applogger.Logger) domrepo.StateStore {
	return repository.NewStateFileStore(cfg.Engine.OutputDir, l)
}

func ProvideTrendStore(cfg *config.Config, l *applogger.Logger) domrepo.TrendStore {
	return repository.NewTrendFileStore(cfg.Engine.OutputDir, l)
}

func ProvideScenarioStore(cfg *config.Config, l *applogger.Logger) domrepo.ScenarioStore {
	return repository.NewScenarioFileStore(cfg.Engine.OutputDir, l)
}

// ProvideCache layers a short-lived memory cache over Redis when Redis is
// enabled, and falls back to an in-process cache otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(rc,
		cache.WithLocalSize(cfg.Redis.LocalSize),
		cache.WithLocalTTL(cfg.Redis.LocalTTL),
	), nil
}

func ProvideDetectors(cfg *config.Config) ([]service.Detector, error) {
	d := cfg.Detectors
	return detectors.Build(cfg.Engine.Elements, detectors.Config{
		MinGapPoints:          d.MinGapPoints,
		RequireDisplacement:   d.RequireDisplacement,
		DisplacementK:         d.DisplacementK,
		ATRPeriod:             d.ATRPeriod,
		MedianBodyPeriod:      d.MedianBodyPeriod,
		FillRule:              d.FillRule,
		SNRDepartureStart:     d.SNRDepartureStart,
		SNRIncludeBreakCandle: d.SNRIncludeBreakCandle,
		RBBreakMode:           d.RBBreakMode,
	})
}

func ProvideComposer(cfg *config.Config) *scenario.Composer {
	c := scenario.DefaultConfig()
	c.ExpiryHours = cfg.Scenario.ExpiryHours
	c.TPPreferZones = cfg.Scenario.TPPreferZones
	c.RequireTP = cfg.Scenario.RequireTP
	return scenario.NewComposer(c)
}

func ProvideRefresher(
	cfg *config.Config,
	source domrepo.BarSource,
	store domrepo.ElementStore,
	dets []service.Detector,
	m *metrics.Recorder,
	l *applogger.Logger,
) *usecase.TimeframeRefresher {
	return usecase.NewTimeframeRefresher(source, store, dets, scheduler.NewCycleState(),
		cfg.Engine.Symbols, cfg.Engine.Timeframes, l,
		usecase.WithRefreshMetrics(m),
	)
}

func ProvideStateBuilder(
	cfg *config.Config,
	source domrepo.BarSource,
	elements domrepo.ElementStore,
	states domrepo.StateStore,
	m *metrics.Recorder,
	l *applogger.Logger,
) *usecase.StateBuilder {
	kinds := make([]models.Kind, 0, len(cfg.Engine.Elements))
	for _, raw := range cfg.Engine.Elements {
		if k, ok := models.ParseKind(raw); ok {
			kinds = append(kinds, k)
		}
	}
	return usecase.NewStateBuilder(source, elements, states, cfg.Engine.Symbols, cfg.Engine.Timeframes, kinds, m, l)
}

func ProvideTrendBuilder(
	cfg *config.Config,
	states domrepo.StateStore,
	trends domrepo.TrendStore,
	m *metrics.Recorder,
	l *applogger.Logger,
) *usecase.TrendBuilder {
	return usecase.NewTrendBuilder(states, trends, trend.NewResolver(cfg.Trend.Timeframe, cfg.Trend.HistoryLimit), m, l)
}

func ProvideScenarioBuilder(
	states domrepo.StateStore,
	trends domrepo.TrendStore,
	scenarios domrepo.ScenarioStore,
	composer *scenario.Composer,
	m *metrics.Recorder,
	l *applogger.Logger,
) *usecase.ScenarioBuilder {
	return usecase.NewScenarioBuilder(states, trends, scenarios, composer, m, l)
}

func ProvideRunner(
	cfg *config.Config,
	refresher *usecase.TimeframeRefresher,
	states *usecase.StateBuilder,
	trends *usecase.TrendBuilder,
	scenarios *usecase.ScenarioBuilder,
	producer *pkgkafka.Producer,
	c cache.Service,
	m *metrics.Recorder,
	l *applogger.Logger,
) (*usecase.Runner, error) {
	opts := []usecase.RunnerOption{
		usecase.WithRunLock(c),
		usecase.WithDocumentCache(c),
		usecase.WithRunnerMetrics(m),
	}
	if producer != nil {
		opts = append(opts, usecase.WithEventPublisher(repository.NewKafkaEventPublisher(producer, cfg.Kafka.EventTopic)))
	}
	if cfg.Engine.ExportFormat != "" {
		exporter, err := repository.NewElementExporter(cfg.Engine.ExportFormat, cfg.Engine.OutputDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, usecase.WithElementExporter(exporter))
	}

	return usecase.NewRunner(usecase.RunnerConfig{
		OutputDir:       cfg.Engine.OutputDir,
		PollSeconds:     cfg.Engine.PollSeconds,
		InitialFullScan: cfg.Engine.InitialFullScan,
		LockTTL:         cfg.Engine.LockTTL,
		ExportElements:  cfg.Engine.ExportFormat != "",
	}, refresher, states, trends, scenarios, l, opts...), nil
}

func ProvideBacktester(
	cfg *config.Config,
	source domrepo.BarSource,
	dets []service.Detector,
	composer *scenario.Composer,
	ch *pkgch.Client,
	l *applogger.Logger,
) (*usecase.Backtester, error) {
	var opts []usecase.BacktestOption
	if cfg.ClickHouse.ProposalSink && ch != nil {
		sink := repository.NewClickHouseProposalSink(ch, cfg.ClickHouse.Database)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sink.Init(ctx); err != nil {
			return nil, fmt.Errorf("proposal sink: %w", err)
		}
		opts = append(opts, usecase.WithProposalSink(sink))
	}
	writer := repository.NewBacktestFileWriter(cfg.Engine.BacktestDir, cfg.Engine.OutputDir)
	return usecase.NewBacktester(source, dets, composer, writer, cfg.Engine.Symbols, l, opts...), nil
}

func ProvideSnapshotQuery(
	cfg *config.Config,
	elements domrepo.ElementStore,
	states domrepo.StateStore,
	trends domrepo.TrendStore,
	scenarios domrepo.ScenarioStore,
	c cache.Service,
	l *applogger.Logger,
) *usecase.SnapshotQuery {
	return usecase.NewSnapshotQuery(elements, states, trends, scenarios, c, cfg.Server.CacheTTL, l)
}

// ProvideHTTPServer builds the read API. Nothing listens until App.Run serves it.
func ProvideHTTPServer(cfg *config.Config, query *usecase.SnapshotQuery, l *applogger.Logger) *xhttp.Server {
	s := cfg.Server
	return xhttp.NewServer(
		[]xhttp.Handler{api.NewSnapshotsEchoHandler(l, query)},
		xhttp.WithHost(s.Host),
		xhttp.WithPort(s.Port),
		xhttp.WithTimeouts(s.ReadTimeout, s.WriteTimeout, s.ShutdownTimeout),
		xhttp.WithSlowThreshold(s.SlowThreshold),
		xhttp.WithRateLimit(s.RateLimitRPS, s.RateLimitBurst),
		xhttp.WithLogger(l),
	)
}

// ProvideApp assembles the application and registers every client for shutdown.
func ProvideApp(
	cfg *config.Config,
	runner *usecase.Runner,
	backtester *usecase.Backtester,
	httpServer *xhttp.Server,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
	c cache.Service,
	l *applogger.Logger,
) *server.App {
	app := server.New(cfg, runner, backtester, httpServer, l)
	if ch != nil {
		app.AddCloser("clickhouse", ch)
	}
	app.AddCloser("cache", c)
	if producer != nil {
		app.AddCloser("kafka", producer)
	}
	app.AddCloser("log collector", collectorCloser{l})
	return app
}

type collectorCloser struct{ l *applogger.Logger }

func (c collectorCloser) Close() error {
	c.l.RemoveCollector()
	return nil
}
