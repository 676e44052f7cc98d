package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"domainwatch/internal/changelog"
	"domainwatch/internal/events"
	"domainwatch/internal/jobs"
	jobstore "domainwatch/internal/jobs/store"
	"domainwatch/internal/monitor/detector"
	monitorstore "domainwatch/internal/monitor/store"
	"domainwatch/internal/notify"
	"domainwatch/internal/notify/channels"
	notifystore "domainwatch/internal/notify/store"
	"domainwatch/internal/platform/config"
	"domainwatch/internal/platform/httpserver"
	"domainwatch/internal/platform/logger"
	"domainwatch/internal/platform/metrics"
	platformredis "domainwatch/internal/platform/redis"
	"domainwatch/internal/provider"
	"domainwatch/internal/reconcile"
	"domainwatch/internal/reminders"
	httptransport "domainwatch/internal/transport/http"
)

// main wires dependencies and runs the server lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("ping database", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}

	domainStore := monitorstore.NewPostgres(db)
	changeLog := changelog.NewPostgres(db)
	notifStore := notifystore.NewPostgres(db)
	jobStore := jobstore.NewPostgres(db)

	policy := notify.NewPolicy(notifStore, notifStore, notify.WithPolicyLogger(log))

	detectorOpts := []detector.Option{
		detector.WithChangeSink(policy),
		detector.WithLogger(log),
		detector.WithMetrics(m),
	}
	var publisher *events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err = events.NewPublisher(ctx, cfg.KafkaBrokers, cfg.KafkaChangeTopic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		detectorOpts = append(detectorOpts, detector.WithPublisher(publisher))
	}
	det := detector.New(domainStore, changeLog, detectorOpts...)

	providerClient := provider.NewClient(cfg.ProviderURL, cfg.ProviderKey,
		provider.WithTimeout(cfg.ExternalTimeout),
		provider.WithLogger(log),
		provider.WithMetrics(m),
	)

	reconciler := reconcile.NewService(domainStore, providerClient, det,
		reconcile.WithFetchTimeout(cfg.ExternalTimeout),
		reconcile.WithLogger(log),
	)

	workerOpts := []jobs.WorkerOption{
		jobs.WithParallelism(cfg.JobParallelism),
		jobs.WithWorkerLogger(log),
		jobs.WithWorkerMetrics(m),
	}
	if redisClient != nil {
		workerOpts = append(workerOpts, jobs.WithLease(jobs.NewLease(redisClient.Client, cfg.RetryCutoff)))
	}
	worker := jobs.NewWorker(jobStore, reconciler, cfg.BatchSize, cfg.RetryCutoff, workerOpts...)

	senders := channels.NewClient(cfg.EmailAPIURL, cfg.EmailAPIKey)
	dispatcher := notify.NewDispatcher(notifStore, notifStore, senders,
		notify.WithDispatcherLogger(log),
		notify.WithDispatcherMetrics(m),
		notify.WithRetention(cfg.RetentionWindow),
	)

	reminderService := reminders.NewService(domainStore, notifStore, reminders.WithLogger(log))

	pingers := map[string]httptransport.Pinger{
		"postgres": pingerFunc(db.PingContext),
	}
	if redisClient != nil {
		pingers["redis"] = pingerFunc(redisClient.Health)
	}

	handler := httptransport.NewHandler(reconciler, jobStore, domainStore, worker, dispatcher, reminderService, pingers, log)
	router := httptransport.NewRouter(handler, cfg.JWTSigningKey, log)
	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }
