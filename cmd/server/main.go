// Command server runs the candidate lifecycle service: the HTTP API, the
// outbox relay, and the event consumers (webhooks, SOS escalation, travel
// letters, projections). Main only wires dependencies; behavior lives in the
// internal packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"disha/internal/audit"
	"disha/internal/dispatch"
	dispatchhandler "disha/internal/dispatch/handler"
	"disha/internal/lifecycle/engine"
	lifecyclehandler "disha/internal/lifecycle/handler"
	lifecyclemetrics "disha/internal/lifecycle/metrics"
	"disha/internal/lifecycle/store/candidate"
	"disha/internal/platform/config"
	"disha/internal/platform/httpserver"
	"disha/internal/platform/kafka/admin"
	"disha/internal/platform/kafka/consumer"
	"disha/internal/platform/kafka/producer"
	"disha/internal/platform/logger"
	"disha/internal/platform/postgres"
	redisplatform "disha/internal/platform/redis"
	"disha/internal/projection"
	projectionhandler "disha/internal/projection/handler"
	"disha/internal/sos"
	"disha/internal/sos/escalation"
	soshandler "disha/internal/sos/handler"
	sosservice "disha/internal/sos/service"
	sosstore "disha/internal/sos/store"
	httptransport "disha/internal/transport/http"
	"disha/internal/travel"
	travelhandler "disha/internal/travel/handler"
	travelservice "disha/internal/travel/service"
	travelstore "disha/internal/travel/store"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage. Without a DSN everything runs in memory, which is the
	// single-process development mode.
	var (
		candidates  candidate.Store          = candidate.NewMemoryStore()
		auditLog    audit.Log                = audit.NewMemoryLog()
		outbox      dispatch.Outbox          = dispatch.NewMemoryOutbox()
		cases       sosstore.Store           = sosstore.NewMemoryStore()
		letters     travelstore.Store        = travelstore.NewMemoryStore()
		subscribers dispatch.SubscriberStore = dispatch.NewMemorySubscriberStore()

		engineOpts []engine.Option
		sosOpts    []sosservice.Option
		travelOpts []travelservice.Option
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		txRunner := postgres.NewTxRunner(db)
		candidates = candidate.NewPostgresStore(db)
		auditLog = audit.NewPostgresLog(db)
		outbox = dispatch.NewPostgresOutbox(db)
		cases = sosstore.NewPostgresStore(db)
		letters = travelstore.NewPostgresStore(db)
		subscribers = dispatch.NewPostgresSubscriberStore(db)
		engineOpts = append(engineOpts, engine.WithTx(txRunner))
		sosOpts = append(sosOpts, sosservice.WithTx(txRunner))
		travelOpts = append(travelOpts, travelservice.WithTx(txRunner))
		log.Info("postgres storage enabled")
	}

	// Redis backs projections, consumer dedupe and the escalation watch
	// set; without it the in-memory equivalents serve a single process.
	var (
		deduper  dispatch.Deduper     = dispatch.NewMemoryDeduper()
		views    projection.ViewStore = projection.NewMemoryViewStore()
		schedule escalation.Schedule  = escalation.NewMemorySchedule()
	)
	if cfg.RedisURL != "" {
		rdb, err := redisplatform.New(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func(rdb *goredis.Client) { _ = rdb.Close() }(rdb)
		deduper = dispatch.NewRedisDeduper(rdb)
		views = projection.NewRedisViewStore(rdb)
		schedule = escalation.NewRedisSchedule(rdb)
		log.Info("redis enabled")
	}

	// Domain services. Metric sets register against the default registry,
	// so each is constructed once and shared.
	projectionMetrics := projection.NewMetrics()
	eng := engine.New(candidates, auditLog, outbox,
		append(engineOpts, engine.WithLogger(log), engine.WithMetrics(lifecyclemetrics.New()))...)
	sosSvc := sosservice.New(cases, candidates, outbox,
		append(sosOpts, sosservice.WithLogger(log))...)
	travelSvc := travelservice.New(letters, outbox,
		append(travelOpts, travelservice.WithLogger(log))...)
	rebuilder := projection.NewRebuilder(auditLog, cases, letters, views, log,
		projection.WithRebuildMetrics(projectionMetrics))

	router := httptransport.NewRouter(httptransport.Handlers{
		Lifecycle:  lifecyclehandler.New(eng, log),
		SOS:        soshandler.New(sosSvc, log),
		Travel:     travelhandler.New(travelSvc, log),
		Projection: projectionhandler.New(views, rebuilder, log),
		Dispatch:   dispatchhandler.New(subscribers, outbox, log),
	}, []byte(cfg.JWTSigningKey), log)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Event plumbing only runs when brokers are configured; the HTTP API is
	// fully usable without it, side effects simply stay queued in the
	// outbox.
	if len(cfg.KafkaBrokers) > 0 {
		if err := admin.EnsureTopics(ctx, cfg.KafkaBrokers,
			dispatch.TopicTransitions, sos.TopicCases, travel.TopicLetters); err != nil {
			return err
		}

		pub, err := producer.New(cfg.KafkaBrokers, log)
		if err != nil {
			return err
		}
		defer pub.Close()
		relay := dispatch.NewRelay(outbox, pub, log, dispatch.WithMetrics(dispatch.NewMetrics()))
		g.Go(func() error { return relay.Run(gctx) })

		deliverer := dispatch.NewDeliverer(subscribers, deduper, log)
		if err := runConsumer(g, gctx, cfg.KafkaBrokers, "disha-webhooks",
			[]string{dispatch.TopicTransitions}, deliverer, log); err != nil {
			return err
		}

		tracker := escalation.New(sosSvc, schedule, deduper, log)
		g.Go(func() error { return tracker.Run(gctx) })
		if err := runConsumer(g, gctx, cfg.KafkaBrokers, escalation.Group,
			[]string{sos.TopicCases}, tracker, log); err != nil {
			return err
		}

		creator := travel.NewCreator(travelSvc, deduper, log)
		if err := runConsumer(g, gctx, cfg.KafkaBrokers, travel.Group,
			[]string{dispatch.TopicTransitions}, creator, log); err != nil {
			return err
		}

		builder := projection.NewBuilder(views, deduper, log,
			projection.WithMetrics(projectionMetrics))
		if err := runConsumer(g, gctx, cfg.KafkaBrokers, projection.Group,
			projection.Topics, builder, log); err != nil {
			return err
		}
		log.Info("kafka plumbing enabled", "brokers", cfg.KafkaBrokers)
	}

	return g.Wait()
}

func runConsumer(g *errgroup.Group, ctx context.Context, brokers []string, group string, topics []string, handler consumer.Handler, log *slog.Logger) error {
	c, err := consumer.New(brokers, group, topics, handler, log)
	if err != nil {
		return err
	}
	g.Go(func() error { return c.Run(ctx) })
	return nil
}
