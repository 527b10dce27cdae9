package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"warden/internal/audit"
	auditstore "warden/internal/audit/store"
	cooldownService "warden/internal/cooldown/service"
	cooldownStore "warden/internal/cooldown/store"
	moderationService "warden/internal/moderation/service"
	moderationStore "warden/internal/moderation/store"
	"warden/internal/platform/config"
	"warden/internal/platform/kafka"
	"warden/internal/platform/postgres"
	"warden/internal/platform/redis"
	settingsService "warden/internal/settings/service"
	settingsStore "warden/internal/settings/store"
	httptransport "warden/internal/transport/http"
)

const (
	auditPartitions = 3
	auditReplicas   = 1
)

// backends holds the opened stores and the connections behind them.
type backends struct {
	settings  settingsService.Store
	records   moderationService.Store
	cooldowns cooldownService.Store

	db    *sql.DB
	redis *redis.Client
	kafka *kgo.Client

	checks map[string]httptransport.HealthCheck
}

func openBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{checks: map[string]httptransport.HealthCheck{}}

	if cfg.Storage.Backend == config.StoragePostgres || cfg.CooldownStorage() == config.StoragePostgres {
		db, err := postgres.Open(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.db = db
		b.checks["postgres"] = db.PingContext
		if err := postgres.Migrate(ctx, db); err != nil {
			b.close(logger)
			return nil, err
		}
	}

	var err error
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		b.settings = settingsStore.NewInMemory()
		b.records = moderationStore.NewInMemory()
	case config.StorageSnapshot:
		if b.settings, err = settingsStore.NewSnapshot(cfg.Storage.DataDir); err != nil {
			b.close(logger)
			return nil, fmt.Errorf("open settings snapshot: %w", err)
		}
		if b.records, err = moderationStore.NewSnapshot(cfg.Storage.DataDir); err != nil {
			b.close(logger)
			return nil, fmt.Errorf("open records snapshot: %w", err)
		}
	case config.StoragePostgres:
		b.settings = settingsStore.NewPostgres(b.db)
		b.records = moderationStore.NewPostgres(b.db)
	}

	switch cfg.CooldownStorage() {
	case config.StorageMemory:
		b.cooldowns = cooldownStore.NewInMemory()
	case config.StorageSnapshot:
		if b.cooldowns, err = cooldownStore.NewSnapshot(cfg.Storage.DataDir); err != nil {
			b.close(logger)
			return nil, fmt.Errorf("open cooldown snapshot: %w", err)
		}
	case config.StoragePostgres:
		b.cooldowns = cooldownStore.NewPostgres(b.db)
	case config.CooldownBackendRedis:
		rc, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			b.close(logger)
			return nil, err
		}
		b.redis = rc
		b.checks["redis"] = rc.Health
		b.cooldowns = cooldownStore.NewRedis(rc.Client)
	}
	return b, nil
}

// openAuditStore keeps an in-memory copy of every event and, when brokers
// are configured, also produces to Kafka.
func openAuditStore(ctx context.Context, cfg config.Config, b *backends) (audit.Store, error) {
	memory := auditstore.NewInMemoryStore()
	if len(cfg.Kafka.Brokers) == 0 {
		return memory, nil
	}
	cl, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, err
	}
	b.kafka = cl
	if err := kafka.EnsureTopic(ctx, cl, cfg.Kafka.Topic, auditPartitions, auditReplicas); err != nil {
		return nil, err
	}
	b.checks["kafka"] = cl.Ping
	return auditstore.NewMulti(memory, auditstore.NewKafkaStore(cl, cfg.Kafka.Topic)), nil
}

func (b *backends) close(logger *slog.Logger) {
	if b.kafka != nil {
		b.kafka.Close()
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			logger.Error("close redis", "error", err)
		}
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			logger.Error("close database", "error", err)
		}
	}
}
