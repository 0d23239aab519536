// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"financing-portal/internal/actors"
	"financing-portal/internal/audit"
	"financing-portal/internal/common/auth"
	awsclient "financing-portal/internal/common/aws"
	"financing-portal/internal/common/camunda"
	"financing-portal/internal/common/config"
	"financing-portal/internal/common/database"
	"financing-portal/internal/common/logger"
	"financing-portal/internal/common/observability"
	"financing-portal/internal/email"
	"financing-portal/internal/events"
	"financing-portal/internal/messaging"
	"financing-portal/internal/notify"
	"financing-portal/internal/store"
	"financing-portal/internal/workers"
	"financing-portal/internal/workflow"
	"financing-portal/pkg/registry"

	aa "financing-portal/internal/workers/application/application-action"
	ca "financing-portal/internal/workers/application/create-application"
	th "financing-portal/internal/workers/application/transition-history"
	cta "financing-portal/internal/workers/contract/contract-action"
	irp "financing-portal/internal/workers/messaging/info-reply"
	irq "financing-portal/internal/workers/messaging/info-request"
	sn "financing-portal/internal/workers/notification/send-notification"
	eo "financing-portal/internal/workers/offer/expire-offers"
	oa "financing-portal/internal/workers/offer/offer-action"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"env":     cfg.App.Environment,
	})

	zapLog.Info("Starting worker manager...", zap.String("version", cfg.App.Version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, shutdownTracing, err := observability.NewTracerProvider(cfg.App.Name, cfg.Tracing)
	if err != nil {
		zapLog.Fatal("tracing setup failed", zap.Error(err))
	}
	obs := observability.New(cfg.App.Name, zapLog)

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	entities := store.NewPostgresStore(pg.DB)
	if cfg.Database.Postgres.Migrate {
		if err := entities.Migrate(ctx); err != nil {
			zapLog.Fatal("schema migration failed", zap.Error(err))
		}
		zapLog.Info("schema migrated")
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Elasticsearch ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	indexer := audit.NewIndexer(esClient.Client, cfg.Portal.AuditIndex, log)
	if err := indexer.EnsureIndex(ctx); err != nil {
		zapLog.Fatal("audit index setup failed", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully", zap.String("index", cfg.Portal.AuditIndex))

	// --- Redis ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- External services ---
	var users actors.UserLookup
	if cfg.Auth.KeycloakEnabled() {
		users = auth.NewKeycloakClient(
			cfg.Auth.Keycloak.URL,
			cfg.Auth.Keycloak.Realm,
			cfg.Auth.Keycloak.ClientID,
			cfg.Auth.Keycloak.ClientSecret,
		)
	}

	mailer, err := newMailer(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("email gateway setup failed", zap.Error(err))
	}

	sinks := []workflow.EventSink{indexer}
	if cfg.Integrations.AWS.SNS.Enabled {
		snsClient, err := awsclient.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client setup failed", zap.Error(err))
		}
		sinks = append(sinks, events.NewSNSPublisher(snsClient, cfg.Integrations.AWS.SNS.TopicARN, log))
	}

	zapLog.Info("All external service clients initialized",
		zap.String("emailProvider", mailer.Provider()),
		zap.Bool("keycloak", users != nil),
		zap.Int("eventSinks", len(sinks)),
	)

	// --- Portal core ---
	directory := actors.NewDirectory(entities, rdb.Client, users,
		time.Duration(cfg.Portal.RoleCacheTTL)*time.Second, log)
	customers := actors.NewCustomerResolver(entities, users, log)
	dispatcher := notify.NewDispatcher(
		entities,
		customers,
		directory,
		mailer,
		notify.NewRedisGuard(rdb.Client, time.Duration(cfg.Portal.EmailGuardTTL)*time.Second),
		notify.Config{BaseURL: cfg.Portal.BaseURL, Concurrency: cfg.Portal.NotifyConcurrency},
		log,
	)
	engine := workflow.NewEngine(entities, customers, dispatcher, log, sinks...)
	threads := messaging.NewManager(engine, dispatcher, log)

	checkRegistry(cfg.Registry.Path, zapLog)

	// --- Workers ---
	handlers := map[string]camunda.HandlerFunc{}

	if c := workerConfig(cfg, ca.TaskType); c.Enabled {
		handlers[ca.TaskType] = ca.NewHandler(&ca.Config{Enabled: true, MaxJobsActive: c.MaxJobsActive, Timeout: c.Timeout}, engine, log).Handle
	}
	if c := workerConfig(cfg, aa.TaskType); c.Enabled {
		handlers[aa.TaskType] = aa.NewHandler(&aa.Config{Enabled: true, MaxJobsActive: c.MaxJobsActive, Timeout: c.Timeout}, engine, log).Handle
	}
	if c := workerConfig(cfg, th.TaskType); c.Enabled {
		handlers[th.TaskType] = th.NewHandler(&th.Config{Enabled: true, MaxJobsActive: c.MaxJobsActive, Timeout: c.Timeout}, indexer, log).Handle
	}
	if c := workerConfig(cfg, oa.TaskType); c.Enabled {
		handlers[oa.TaskType] = oa.NewHandler(&oa.Config{Enabled: true, MaxJobsActive: c.MaxJobsActive, Timeout: c.Timeout}, engine, log).Handle
	}
	if c := workerConfig(cfg, eo.TaskType); c.Enabled {
		eoCfg := &eo.Config{Enabled: true, MaxJobsActive: c.MaxJobsActive, Timeout: c.Timeout, BatchSize: cfg.Portal.OfferExpiryBatch}
		if err := eoCfg.Validate(); err != nil {
			zapLog.Fatal("invalid expire-offers config", zap.Error(err))
		}
		handlers[eo.TaskType] = eo.NewHandler(eoCfg, engine, log).Handle
	}
	if c := workerConfig(cfg, cta.TaskType); c.Enabled {
		handlers[cta.TaskType] = cta.NewHandler(&cta.Config{Enabled: true, MaxJobsActive: c.MaxJobsActive, Timeout: c.Timeout}, engine, log).Handle
	}
	if c := workerConfig(cfg, irq.TaskType); c.Enabled {
		handlers[irq.TaskType] = irq.NewHandler(&irq.Config{Enabled: true, MaxJobsActive: c.MaxJobsActive, Timeout: c.Timeout}, threads, log).Handle
	}
	if c := workerConfig(cfg, irp.TaskType); c.Enabled {
		handlers[irp.TaskType] = irp.NewHandler(&irp.Config{Enabled: true, MaxJobsActive: c.MaxJobsActive, Timeout: c.Timeout}, threads, log).Handle
	}
	if c := workerConfig(cfg, sn.TaskType); c.Enabled {
		handlers[sn.TaskType] = sn.NewHandler(&sn.Config{Enabled: true, MaxJobsActive: c.MaxJobsActive, Timeout: c.Timeout}, dispatcher, log).Handle
	}

	var jobWorkers []worker.JobWorker
	for _, taskType := range workers.TaskTypes() {
		handle, ok := handlers[taskType]
		if !ok {
			zapLog.Info("worker disabled", zap.String("taskType", taskType))
			continue
		}
		c := workerConfig(cfg, taskType)
		jobWorkers = append(jobWorkers, camunda.StartWorker(zeebe.GetClient(), taskType, camunda.WorkerOptions{
			MaxJobsActive: c.MaxJobsActive,
			Timeout:       c.Timeout,
			Recorder:      obs,
		}, handle, zapLog))
	}
	zapLog.Info("workers registered", zap.Int("count", len(jobWorkers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{}
		ready := true
		for name, check := range map[string]func(context.Context) error{
			"postgres":      pg.Ping,
			"redis":         rdb.Ping,
			"elasticsearch": esClient.Ping,
			"zeebe":         zeebe.HealthCheck,
		} {
			if err := check(checkCtx); err != nil {
				checks[name] = err.Error()
				ready = false
				continue
			}
			checks[name] = "ok"
		}

		code := http.StatusOK
		checks["status"] = "ready"
		if !ready {
			code = http.StatusServiceUnavailable
			checks["status"] = "not ready"
		}
		writeStatus(w, code, checks)
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.App.HTTPAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.App.HTTPAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range jobWorkers {
		w.Close()
		w.AwaitClose()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("metrics shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zapLog.Warn("tracing shutdown failed", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}

type workerSettings struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
}

func workerConfig(cfg *config.Config, taskType string) workerSettings {
	wc := config.GetWorkerConfig(cfg, taskType)
	return workerSettings{
		Enabled:       config.IsWorkerEnabled(cfg, taskType),
		MaxJobsActive: wc.MaxJobsActive,
		Timeout:       config.GetDuration(wc.Timeout),
	}
}

func newMailer(ctx context.Context, cfg *config.Config, log logger.Logger) (email.Gateway, error) {
	from := cfg.Portal.FromEmail
	switch cfg.Portal.EmailProvider {
	case "ses":
		if from == "" {
			from = cfg.Integrations.AWS.SES.FromEmail
		}
		client, err := awsclient.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			return nil, err
		}
		return email.NewSESGateway(client, cfg.Portal.FromName, from), nil
	case "smtp":
		if from == "" {
			from = cfg.Integrations.SMTP.DefaultFrom
		}
		smtp := cfg.Integrations.SMTP
		return email.NewSMTPGateway(email.SMTPConfig{
			Host:     smtp.Host,
			Port:     smtp.Port,
			Username: smtp.Username,
			Password: smtp.Password,
			UseTLS:   smtp.UseTLS,
			From:     from,
		}), nil
	default:
		return email.NewLogGateway(log), nil
	}
}

// checkRegistry warns about task types the activity registry does not
// describe. The registry is documentation for process modellers, so a
// missing file does not stop the workers.
func checkRegistry(path string, log *zap.Logger) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		log.Warn("activity registry unavailable", zap.String("path", path), zap.Error(err))
		return
	}
	if err := reg.Validate(); err != nil {
		log.Warn("activity registry invalid", zap.String("path", path), zap.Error(err))
	}
	if missing := reg.Missing(workers.TaskTypes()); len(missing) > 0 {
		log.Warn("task types missing from activity registry", zap.Strings("taskTypes", missing))
	}
}

func writeStatus(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
