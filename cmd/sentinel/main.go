// Package main runs the sentinel service: the signal and position sweeps,
// the pool watcher, the event bus with its sinks and the operations API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"solana-trade-sentinel/internal/api"
	"solana-trade-sentinel/internal/config"
	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/emergency"
	"solana-trade-sentinel/internal/events"
	"solana-trade-sentinel/internal/logging"
	"solana-trade-sentinel/internal/observability"
	"solana-trade-sentinel/internal/pricefeed"
	"solana-trade-sentinel/internal/pricehistory"
	"solana-trade-sentinel/internal/riskapi"
	"solana-trade-sentinel/internal/scheduler"
	"solana-trade-sentinel/internal/sizing"
	"solana-trade-sentinel/internal/solana"
	"solana-trade-sentinel/internal/storage"
	chstore "solana-trade-sentinel/internal/storage/clickhouse"
	"solana-trade-sentinel/internal/storage/memory"
	"solana-trade-sentinel/internal/storage/migrations"
	pgstore "solana-trade-sentinel/internal/storage/postgres"
	"solana-trade-sentinel/internal/strategy"
	"solana-trade-sentinel/internal/trailing"
	"solana-trade-sentinel/internal/validation"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("sentinel exited")
	}
}

// stores holds the optional database handles so they can be closed on exit.
type stores struct {
	pg        *pgstore.Pool
	ch        *chstore.Conn
	journal   storage.DecisionEventStore
	positions scheduler.PositionSource
	book      *memory.PositionBook // set in memory mode, fed through the API
	sinks     []events.Sink
}

func (s *stores) close() {
	if s.ch != nil {
		s.ch.Close()
	}
	if s.pg != nil {
		s.pg.Close()
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	rpc := solana.NewHTTPClient(cfg.Solana.RPCEndpoint,
		solana.WithTimeout(cfg.Solana.Timeout),
		solana.WithMaxRetries(cfg.Solana.MaxRetries),
		solana.WithCommitment(cfg.Solana.Commitment),
		solana.WithLatencyObserver(func(method string, d time.Duration, err error) {
			observability.RecordRPCLatency(method, d.Seconds(), err)
		}),
	)

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	sinks, err := buildSinks(ctx, cfg, st, logger)
	if err != nil {
		return err
	}
	bus := events.NewBus(cfg.Sinks.Bus, logger, sinks...)

	var reporter riskapi.Reporter
	if cfg.RiskAPI.BaseURL != "" {
		reporter = riskapi.New(cfg.RiskAPI)
	} else {
		logger.Warn().Msg("risk API not configured, tax and honeypot checks use fallback defaults")
	}
	pipeline := validation.NewPipeline(rpc, reporter, validation.Options{
		FailClosedOnRiskOutage: cfg.Validation.FailClosedOnRiskOutage,
		RiskTimeout:            cfg.Validation.RiskTimeout,
	}, logger)

	engine, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}

	window := pricehistory.NewWindow(cfg.Monitor.PriceRetention)
	monitor := emergency.NewMonitor(logger, emergency.DefaultDetectors(rpc, window, cfg.Monitor.Thresholds))
	tracker := trailing.NewTracker(cfg.Trailing)

	sched := scheduler.New(scheduler.Options{
		Config: scheduler.Config{
			SignalInterval:   cfg.Monitor.SignalInterval,
			PositionInterval: cfg.Monitor.PositionInterval,
			Concurrency:      cfg.Monitor.Concurrency,
			Validation:       cfg.Validation.ValidationConfig,
		},
		Prices:    pricefeed.NewHTTPClient(cfg.PriceFeed),
		Positions: st.positions,
		Series:    pricehistory.NewSeries(cfg.Monitor.SeriesCapacity),
		Engine:    engine,
		Validator: pipeline,
		Monitor:   monitor,
		Trailing:  tracker,
		Publisher: bus,
		Logger:    logger,
	})
	for _, w := range cfg.Watchlist {
		sched.Watch(w.Token, domain.TokenMeta{
			Symbol:        w.Symbol,
			PoolAddress:   w.Pool,
			PoolCreatedAt: w.PoolCreatedAt,
		})
	}

	var (
		ws      *solana.WSClientImpl
		watcher *scheduler.PoolWatcher
	)
	if cfg.Solana.WSEndpoint != "" {
		wsCfg := solana.DefaultWSConfig()
		wsCfg.Commitment = cfg.Solana.Commitment
		ws, err = solana.NewWSClient(ctx, cfg.Solana.WSEndpoint, &wsCfg, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("websocket unavailable, pool watcher disabled")
		} else {
			watcher = scheduler.NewPoolWatcher(ws, sched, logger)
			sched.ObservePositions(watcher.Sync)
		}
	}

	var book api.PositionBook
	if st.book != nil {
		book = st.book
	}
	server := api.New(api.Options{
		Config: api.Config{
			Addr:              cfg.Server.Addr,
			ReadTimeout:       cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
			RateLimit:         cfg.Server.RateLimit,
			Burst:             cfg.Server.Burst,
			DefaultValidation: cfg.Validation.ValidationConfig,
		},
		Validator: pipeline,
		Sizer:     sizing.NewCalculator(cfg.Risk.MinimumTradeSize),
		Scheduler: sched,
		Trailing:  tracker,
		Journal:   st.journal,
		Positions: book,
		Sinks:     bus,
		Logger:    logger,
	})

	if err := sched.Start(ctx); err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Start() }()

	logger.Info().
		Int("watchlist", len(cfg.Watchlist)).
		Int("strategies", len(engine.Strategies())).
		Int("sinks", len(sinks)).
		Msg("sentinel running")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case runErr = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	sched.Stop()
	if watcher != nil {
		if err := watcher.Close(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("pool watcher close")
		}
	}
	if ws != nil {
		ws.Close()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	if err := bus.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("event bus close")
	}
	return runErr
}

func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*stores, error) {
	st := &stores{}

	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		pool, err := pgstore.NewPool(ctx, dsn)
		if err != nil {
			return nil, err
		}
		st.pg = pool
		if cfg.Storage.Migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				st.close()
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
		}
		journal := pgstore.NewDecisionEventStore(pool)
		st.journal = journal
		st.sinks = append(st.sinks, events.NewJournalSink("postgres", journal))
		logger.Info().Msg("postgres journal enabled")
	}

	if dsn := cfg.Storage.ClickHouseDSN; dsn != "" {
		var (
			conn *chstore.Conn
			err  error
		)
		if cfg.Storage.Migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, dsn)
		} else {
			conn, err = chstore.NewConn(ctx, dsn)
		}
		if err != nil {
			st.close()
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		st.ch = conn
		journal := chstore.NewDecisionEventStore(conn)
		if st.journal == nil {
			st.journal = journal
		}
		st.sinks = append(st.sinks, events.NewJournalSink("clickhouse", journal))
		logger.Info().Msg("clickhouse journal enabled")
	}

	if st.journal == nil {
		journal := memory.NewDecisionEventStore(memory.WithMaxEventsPerToken(cfg.Storage.MemoryJournalPerToken))
		st.journal = journal
		st.sinks = append(st.sinks, events.NewJournalSink("memory", journal))
	}

	switch cfg.Storage.Positions {
	case config.PositionsPostgres:
		if st.pg == nil {
			st.close()
			return nil, errors.New("postgres position source requires storage.postgres_dsn")
		}
		st.positions = pgstore.NewPositionStore(st.pg)
	default:
		st.book = memory.NewPositionBook()
		st.positions = st.book
		logger.Info().Msg("in-memory position book, positions are opened through POST /v1/positions")
	}
	return st, nil
}

func buildSinks(ctx context.Context, cfg *config.Config, st *stores, logger zerolog.Logger) ([]events.Sink, error) {
	var sinks []events.Sink
	if cfg.Sinks.Log {
		sinks = append(sinks, events.NewLogSink(logger))
	}
	sinks = append(sinks, st.sinks...)

	if len(cfg.Sinks.Kafka.Brokers) > 0 {
		k, err := events.NewKafkaSink(cfg.Sinks.Kafka, logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, k)
	}
	if cfg.Sinks.Redis.Addr != "" {
		r, err := events.NewRedisSink(ctx, cfg.Sinks.Redis)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, r)
	}
	return sinks, nil
}

func buildEngine(cfg *config.Config, logger zerolog.Logger) (*strategy.Engine, error) {
	strategies := strategy.DefaultSet()
	if len(cfg.Strategies) > 0 {
		var err error
		strategies, err = strategy.FromConfigs(cfg.Strategies)
		if err != nil {
			return nil, fmt.Errorf("build strategies: %w", err)
		}
	}
	engine := strategy.NewEngine(logger)
	for _, s := range strategies {
		engine.Register(s)
	}
	return engine, nil
}
