package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agora/internal/access"
	"agora/internal/accounts"
	"agora/internal/candidate"
	"agora/internal/cities"
	"agora/internal/domains"
	"agora/internal/flags"
	"agora/internal/hub"
	"agora/internal/ledger"
	"agora/internal/notify"
	"agora/internal/org"
	"agora/internal/phase"
	"agora/internal/platform/config"
	"agora/internal/platform/httpserver"
	"agora/internal/platform/jwt"
	"agora/internal/platform/logger"
	"agora/internal/platform/postgres"
	"agora/internal/platform/redis"
	httptransport "agora/internal/transport/http"
	audit "agora/pkg/platform/audit"
	"agora/pkg/platform/audit/publisher"
	memorystore "agora/pkg/platform/audit/store/memory"
	"agora/pkg/platform/audit/worker"
	"agora/pkg/platform/tx"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New(cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		log.Error("postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	runner := tx.NewSQLRunner(db)

	rdb, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var auditPublisher audit.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := publisher.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Error("kafka", "error", err)
			os.Exit(1)
		}
		defer kafka.Close(context.Background())
		auditPublisher = kafka
	} else {
		// Without Kafka the audit trail stays in process, drained by a
		// worker so Emit still costs only a channel send.
		channel := publisher.NewChannel(log, 256)
		auditWorker := worker.New(memorystore.New(), channel.Events())
		go func() {
			if err := auditWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit worker stopped", "error", err)
			}
		}()
		auditPublisher = channel
	}

	var flagCache flags.Cache = flags.NewMemoryCache()
	if rdb != nil {
		flagCache = flags.NewRedisCache(rdb.Client)
	}
	flagService := flags.NewService(flags.NewPostgres(db),
		flags.WithLogger(log), flags.WithCache(flagCache))
	if err := flagService.Seed(ctx); err != nil {
		log.Error("seed flags", "error", err)
		os.Exit(1)
	}

	registry := domains.NewRegistry(domains.NewPostgres(db))
	if err := registry.Seed(ctx); err != nil {
		log.Error("seed domains", "error", err)
		os.Exit(1)
	}

	phaseController := phase.NewController(flagService,
		phase.WithLogger(log),
		phase.WithAuditPublisher(auditPublisher),
		phase.WithMetrics(phase.NewMetrics()))

	cityStore := cities.NewPostgres(db)
	grants := access.NewPostgres(db)
	roster := accounts.NewService(accounts.NewPostgres(db), accounts.WithLogger(log))

	baseMailer := notify.NewLogMailer(log, cfg.Mailer.From)
	dispatcher := notify.NewDispatcher(baseMailer, log, 256)
	var mailer notify.Mailer = baseMailer
	if cfg.Mailer.Async {
		mailer = dispatcher
	}

	orgStore := org.NewPostgres(db)
	orgMetrics := org.NewMetrics()
	orgService := org.NewService(orgStore, runner, flagService,
		cityStore, roster, grants,
		org.CompletenessPolicy{
			EditionYear: cfg.Election.EditionYear,
			ReportYears: cfg.Election.ReportYearsRequired,
		},
		org.WithLogger(log),
		org.WithAuditPublisher(auditPublisher),
		org.WithMetrics(orgMetrics))

	candidateService := candidate.NewService(candidate.NewPostgres(db), runner,
		flagService, registry, orgService, roster, grants,
		candidate.WithLogger(log),
		candidate.WithAuditPublisher(auditPublisher),
		candidate.WithMailer(mailer))

	ledgerService := ledger.NewService(ledger.NewPostgres(db), runner,
		flagService, registry, orgService, candidateService, roster,
		ledger.Config{
			AuditMailbox: cfg.Mailer.AuditMailbox,
			ResetSecret:  cfg.SecretKey,
			ResetMaxAge:  cfg.Election.ResetTokenMaxAge,
		},
		ledger.WithLogger(log),
		ledger.WithAuditPublisher(auditPublisher),
		ledger.WithMailer(mailer),
		ledger.WithMetrics(ledger.NewMetrics()))

	// The three election modules reference each other; the remaining edges
	// bind after construction.
	orgService.BindCandidates(candidateService)
	orgService.BindLedger(ledgerService)
	candidateService.BindLedger(ledgerService)

	hubClient := hub.NewClient(cfg.Hub)
	reconciler := hub.NewReconciler(hubClient, hub.NewDiskStore(cfg.Hub.FileRoot),
		orgStore, cityStore, runner, roster,
		hub.WithLogger(log),
		hub.WithAuditPublisher(auditPublisher),
		hub.WithMailer(mailer),
		hub.WithMetrics(orgMetrics))
	syncWorker := hub.NewWorker(reconciler, log, 64)
	scheduler := hub.NewScheduler(orgStore, syncWorker, log,
		cfg.Hub.StaleAfter, cfg.Hub.SyncBatchLimit)

	go func() {
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("mail dispatcher stopped", "error", err)
		}
	}()
	go func() {
		if err := syncWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("sync worker stopped", "error", err)
		}
	}()
	go func() {
		if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("sync scheduler stopped", "error", err)
		}
	}()

	tokens := jwt.NewService(cfg.JWTSigningKey, "agora")

	handler := httptransport.NewHandler(log, tokens, grants, orgService,
		candidateService, ledgerService, flagService, phaseController,
		registry, scheduler)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	go func() {
		log.Info("starting agora", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
