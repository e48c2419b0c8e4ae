package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aimsgrid/governance-engine/internal/domain/audit"
	"github.com/aimsgrid/governance-engine/internal/infrastructure/cache"
	"github.com/aimsgrid/governance-engine/internal/infrastructure/config"
	"github.com/aimsgrid/governance-engine/internal/infrastructure/database"
	"github.com/aimsgrid/governance-engine/internal/infrastructure/events"
	"github.com/aimsgrid/governance-engine/internal/infrastructure/notify"
	"github.com/aimsgrid/governance-engine/internal/infrastructure/repository"
	"github.com/aimsgrid/governance-engine/internal/service/alerting"
	auditsvc "github.com/aimsgrid/governance-engine/internal/service/audit"
	"github.com/aimsgrid/governance-engine/internal/service/eventbus"
	"github.com/aimsgrid/governance-engine/internal/service/metrics"
	"github.com/aimsgrid/governance-engine/internal/service/registry"
	"github.com/aimsgrid/governance-engine/internal/service/workflow"
)

// App composes every engine service over shared infrastructure. The daemon
// drives the alert evaluation loop; the workflow and registry services are the
// operational surface consumed by embedding callers and tests.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	pool        *pgxpool.Pool
	redisClient *redis.Client

	AuditLog   *auditsvc.Log
	Bus        *eventbus.Bus
	Aggregator *metrics.Aggregator
	Alerts     *alerting.Engine
	Workflow   *workflow.Workflow
	Registry   *registry.Registry

	metricsSrv *http.Server
}

// NewApp wires configuration, storage, cache and all five services.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	redisClient, err := cache.NewRedisClient(cfg.Redis, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	auditRepo := repository.NewAuditRepository(pool)
	systemRepo := repository.NewSystemRepository(pool)
	complianceRepo := repository.NewComplianceRepository(pool)
	oversightRepo := repository.NewOversightRepository(pool)
	incidentRepo := repository.NewIncidentRepository(pool)
	ruleRepo := repository.NewRuleRepository(pool)
	alertRepo := repository.NewAlertRepository(pool)

	auditLog, err := auditsvc.NewLog(ctx, auditsvc.Config{
		BatchSize:     cfg.Audit.BatchSize,
		FlushInterval: cfg.Audit.FlushInterval,
		WriteTimeout:  cfg.Audit.WriteTimeout,
	}, auditRepo, cache.NewSequenceCheckpoint(redisClient), logger, auditsvc.NewMetrics(promReg))
	if err != nil {
		pool.Close()
		redisClient.Close()
		return nil, err
	}

	bus, err := eventbus.New(auditLog, events.NewRedisPublisher(redisClient, logger), logger)
	if err != nil {
		return nil, err
	}

	aggregator, err := metrics.NewAggregator(
		systemRepo, complianceRepo, oversightRepo, incidentRepo,
		cache.NewSnapshotCache(redisClient, logger), logger, cfg.Metrics.CacheTTL,
	)
	if err != nil {
		return nil, err
	}

	dispatchers := []alerting.Dispatcher{notify.NewInAppDispatcher(logger)}
	if cfg.Alerting.WebhookURL != "" {
		dispatchers = append(dispatchers, notify.NewWebhookDispatcher(cfg.Alerting.WebhookURL))
	}
	notifier := alerting.NewNotifier(dispatchers, auditLog, logger).
		WithRate(cfg.Alerting.NotifyRatePerSec, cfg.Alerting.NotifyBurst)

	alertEngine, err := alerting.NewEngine(ruleRepo, alertRepo, aggregator, auditLog, auditLog, bus, notifier, logger, promReg)
	if err != nil {
		return nil, err
	}

	wf, err := workflow.NewWorkflow(incidentRepo, systemRepo, bus, logger)
	if err != nil {
		return nil, err
	}

	reg, err := registry.NewRegistry(systemRepo, complianceRepo, oversightRepo, bus, logger)
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:         cfg,
		logger:      logger,
		pool:        pool,
		redisClient: redisClient,
		AuditLog:    auditLog,
		Bus:         bus,
		Aggregator:  aggregator,
		Alerts:      alertEngine,
		Workflow:    wf,
		Registry:    reg,
	}

	if err := app.wireInvalidation(); err != nil {
		return nil, err
	}

	app.metricsSrv = app.serveMetrics(promReg)

	return app, nil
}

// wireInvalidation drops the cached snapshot whenever governance state
// changes, so the next read reflects the mutation instead of waiting out
// the TTL.
func (a *App) wireInvalidation() error {
	invalidate := func(context.Context, eventbus.Event) error {
		a.Aggregator.Invalidate()
		return nil
	}

	for _, t := range []audit.EventType{
		audit.EventSystemRegistered,
		audit.EventSystemUpdated,
		audit.EventComplianceAssessed,
		audit.EventIncidentCreated,
		audit.EventIncidentResolved,
		audit.EventIncidentReopened,
		audit.EventOversightActionRecorded,
	} {
		if _, err := a.Bus.On(t, invalidate); err != nil {
			return err
		}
	}
	return nil
}

// Run drives the alert evaluation loop until the context is cancelled.
func (a *App) Run(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Alerting.EvaluationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fired, err := a.Alerts.EvaluateAll(ctx)
			if err != nil {
				a.logger.Error("rule evaluation pass failed", zap.Error(err))
				continue
			}
			if len(fired) > 0 {
				a.Alerts.NotifyFired(ctx, fired)
			}
		}
	}
}

// Close flushes the audit queue and releases infrastructure. The audit flush
// runs first so queued entries survive the shutdown.
func (a *App) Close(ctx context.Context) error {
	if a.metricsSrv != nil {
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			a.logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}

	err := a.AuditLog.Close(ctx)
	if err != nil {
		a.logger.Error("final audit flush failed", zap.Error(err))
	}

	a.redisClient.Close()
	a.pool.Close()
	return err
}

func (a *App) serveMetrics(reg *prometheus.Registry) *http.Server {
	addr := a.cfg.Metrics.ListenAddr
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return srv
}
