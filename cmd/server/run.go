package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"warden/internal/audit"
	cooldownMetrics "warden/internal/cooldown/metrics"
	cooldownService "warden/internal/cooldown/service"
	"warden/internal/dispatch"
	"warden/internal/gateway"
	moderationMetrics "warden/internal/moderation/metrics"
	moderationService "warden/internal/moderation/service"
	"warden/internal/platform/config"
	"warden/internal/platform/httpserver"
	"warden/internal/platform/metrics"
	"warden/internal/reaper"
	settingsService "warden/internal/settings/service"
	httptransport "warden/internal/transport/http"
	verificationMetrics "warden/internal/verification/metrics"
	verificationService "warden/internal/verification/service"
	verificationStore "warden/internal/verification/store"
	"warden/pkg/platform/circuit"
	"warden/pkg/platform/keylock"
)

const shutdownTimeout = 10 * time.Second

// chat is every outbound port the workflow needs from the gateway.
type chat interface {
	settingsService.PanelPublisher
	moderationService.Messenger
	moderationService.LogBoard
	moderationService.Roles
	moderationService.Members
}

// run wires dependencies and blocks until ctx is cancelled or a component
// fails.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	platformMetrics := metrics.New(reg)

	backends, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backends.close(logger)

	auditStore, err := openAuditStore(ctx, cfg, backends)
	if err != nil {
		return err
	}
	publisher := audit.NewPublisher(auditStore,
		audit.WithAsyncBuffer(cfg.Workflow.AuditBuffer),
		audit.WithLogger(logger),
		audit.WithDroppedCounter(platformMetrics.AuditDropped),
	)
	defer publisher.Close()

	gw, err := newGateway(cfg, logger)
	if err != nil {
		return err
	}

	locks := keylock.New()
	settings, err := settingsService.New(backends.settings,
		settingsService.WithLogger(logger),
		settingsService.WithPanelPublisher(gw),
		settingsService.WithAuditPublisher(publisher),
		settingsService.WithMetrics(platformMetrics),
		settingsService.WithLocks(locks),
	)
	if err != nil {
		return fmt.Errorf("settings service: %w", err)
	}
	ledger, err := cooldownService.New(backends.cooldowns,
		cooldownService.WithLogger(logger),
		cooldownService.WithMetrics(cooldownMetrics.New(reg)),
		cooldownService.WithPersistenceMetrics(platformMetrics),
	)
	if err != nil {
		return fmt.Errorf("cooldown ledger: %w", err)
	}
	moderation, err := moderationService.New(backends.records, ledger, settings,
		moderationService.WithMessenger(gw),
		moderationService.WithLogBoard(gw),
		moderationService.WithRoles(gw),
		moderationService.WithMembers(gw),
		moderationService.WithCooldown(cfg.Workflow.Cooldown),
		moderationService.WithLocks(locks),
		moderationService.WithAuditPublisher(publisher),
		moderationService.WithMetrics(moderationMetrics.New(reg)),
		moderationService.WithPersistenceMetrics(platformMetrics),
		moderationService.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("moderation service: %w", err)
	}
	verification, err := verificationService.New(verificationStore.NewInMemory(), settings, ledger, moderation, gw,
		verificationService.WithLogger(logger),
		verificationService.WithLocks(locks),
		verificationService.WithAuditPublisher(publisher),
		verificationService.WithMetrics(verificationMetrics.New(reg)),
	)
	if err != nil {
		return fmt.Errorf("verification service: %w", err)
	}
	dispatcher, err := dispatch.New(settings, verification, moderation, dispatch.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}
	sweeper, err := reaper.New(ledger,
		reaper.WithInterval(cfg.Workflow.ReaperInterval),
		reaper.WithAuditPublisher(publisher),
		reaper.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("reaper: %w", err)
	}

	router := httptransport.NewRouter(dispatcher, httptransport.Config{
		AdminToken: cfg.Server.AdminToken,
		Logger:     logger,
		Metrics:    platformMetrics,
		Gatherer:   reg,
		Checks:     backends.checks,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.InfoContext(gctx, "starting warden",
			"addr", cfg.Server.Addr,
			"storage", cfg.Storage.Backend,
			"cooldown_storage", cfg.CooldownStorage(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func newGateway(cfg config.Config, logger *slog.Logger) (chat, error) {
	if cfg.Gateway.URL == "" {
		logger.Warn("no gateway configured, outbound actions are only logged")
		return gateway.NewLogOnly(logger), nil
	}
	client, err := gateway.NewClient(cfg.Gateway.URL,
		gateway.WithTimeout(cfg.Gateway.Timeout),
		gateway.WithBreaker(circuit.New("gateway")),
		gateway.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("gateway client: %w", err)
	}
	return client, nil
}
