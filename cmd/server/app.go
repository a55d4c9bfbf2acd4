package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"poolshare/internal/backend"
	catalogHandler "poolshare/internal/catalog/handler"
	catalogMetrics "poolshare/internal/catalog/metrics"
	catalogService "poolshare/internal/catalog/service"
	costHandler "poolshare/internal/costshare/handler"
	costService "poolshare/internal/costshare/service"
	custodyHandler "poolshare/internal/custody/handler"
	custodyMetrics "poolshare/internal/custody/metrics"
	custodyService "poolshare/internal/custody/service"
	"poolshare/internal/custody/transfer"
	govHandler "poolshare/internal/governance/handler"
	govMetrics "poolshare/internal/governance/metrics"
	govService "poolshare/internal/governance/service"
	"poolshare/internal/governance/store/cooldown"
	jwttoken "poolshare/internal/jwt_token"
	ledgerStore "poolshare/internal/ledger/store"
	"poolshare/internal/lifecycle"
	memberHandler "poolshare/internal/membership/handler"
	memberMetrics "poolshare/internal/membership/metrics"
	memberService "poolshare/internal/membership/service"
	"poolshare/internal/platform/config"
	"poolshare/internal/platform/metrics"
	"poolshare/internal/platform/postgres"
	"poolshare/internal/platform/redis"
	httptransport "poolshare/internal/transport/http"
	vaultHandler "poolshare/internal/vault/handler"
	vaultService "poolshare/internal/vault/service"
	"poolshare/pkg/money"
	"poolshare/pkg/platform/audit"
	"poolshare/pkg/platform/audit/publisher"
	"poolshare/pkg/platform/audit/publishers/kafka"
	"poolshare/pkg/platform/audit/store/memory"
	outboxStore "poolshare/pkg/platform/audit/store/postgres"
	"poolshare/pkg/platform/audit/worker"
	"poolshare/pkg/platform/circuit"
	"poolshare/pkg/platform/middleware/ratelimit"
	"poolshare/pkg/platform/tx"
)

// app is the assembled process: the HTTP handler plus the background loops
// and resources serve supervises.
type app struct {
	handler   http.Handler
	limiter   *ratelimit.Limiter
	publisher *publisher.Publisher
	metrics   *metrics.Metrics
	// relay is nil unless both DATABASE_URL and KAFKA_BROKERS are set.
	relay *worker.Worker
	// backend is nil when payments are recorded in memory.
	backend *backend.Client
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{metrics: metrics.New()}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	checks := map[string]httptransport.HealthCheck{}

	auditStore, db, err := openAuditStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if db != nil {
		a.closers = append(a.closers, func() { _ = db.Close() })
		checks["postgres"] = db.PingContext
	}
	a.publisher = publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(1024),
		publisher.WithLogger(logger),
		publisher.WithMetrics(publisher.NewMetrics()),
	)
	a.closers = append(a.closers, a.publisher.Close)

	if len(cfg.Outbox.KafkaBrokers) > 0 {
		pgStore, _ := auditStore.(*outboxStore.Store)
		sink, err := kafka.New(cfg.Outbox.KafkaBrokers, cfg.Outbox.KafkaTopic, kafka.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, sink.Close)
		if err := sink.EnsureTopic(ctx, 3, 1); err != nil {
			logger.WarnContext(ctx, "could not ensure notification topic", "topic", cfg.Outbox.KafkaTopic, "error", err)
		}
		a.relay = worker.NewWorker(pgStore, sink,
			worker.WithInterval(cfg.Outbox.RelayEvery),
			worker.WithLogger(logger),
		)
	}

	serializer := tx.NewSerializer(tx.WithTimeout(cfg.Ledger.OperationTimeout))
	ledger := ledgerStore.New(cfg.Ledger.Currency)
	admin := cfg.Server.AdminPrincipal

	payments, err := newBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	if c, isClient := payments.(*backend.Client); isClient {
		a.backend = c
	}

	lc, err := lifecycle.New(ledger, serializer,
		lifecycle.WithLogger(logger),
		lifecycle.WithAuditPublisher(a.publisher),
	)
	if err != nil {
		return nil, err
	}

	catalog, err := catalogService.New(ledger, serializer, admin,
		catalogService.WithLogger(logger),
		catalogService.WithAuditPublisher(a.publisher),
		catalogService.WithMetrics(catalogMetrics.New()),
		catalogService.WithDefaultCapacity(cfg.Ledger.DefaultCapacity),
		catalogService.WithCurrency(cfg.Ledger.Currency),
	)
	if err != nil {
		return nil, err
	}

	custody, err := custodyService.New(ledger, serializer, payments, transfer.NewLogging(logger),
		custodyService.Config{
			Admin:     admin,
			UnitPrice: money.New(cfg.Ledger.CreditUnitPrice, cfg.Ledger.Currency),
		},
		custodyService.WithLogger(logger),
		custodyService.WithAuditPublisher(a.publisher),
		custodyService.WithMetrics(custodyMetrics.New()),
	)
	if err != nil {
		return nil, err
	}

	membership, err := memberService.New(ledger, serializer, lc, custody,
		memberService.WithLogger(logger),
		memberService.WithAuditPublisher(a.publisher),
		memberService.WithMetrics(memberMetrics.New()),
		memberService.WithSelector(newSelector(cfg.Ledger)),
		memberService.WithSubscriptionDuration(cfg.Ledger.SubscriptionDuration),
	)
	if err != nil {
		return nil, err
	}

	costs, err := costService.New(ledger, lc,
		costService.WithLogger(logger),
		costService.WithAuditPublisher(a.publisher),
	)
	if err != nil {
		return nil, err
	}

	vault, err := vaultService.New(ledger, serializer, lc, admin,
		vaultService.WithLogger(logger),
		vaultService.WithAuditPublisher(a.publisher),
	)
	if err != nil {
		return nil, err
	}

	cooldowns, err := newCooldownStore(ctx, cfg, checks, a)
	if err != nil {
		return nil, err
	}
	governance, err := govService.New(ledger, serializer, lc, membership, cooldowns,
		govService.WithLogger(logger),
		govService.WithAuditPublisher(a.publisher),
		govService.WithMetrics(govMetrics.New()),
		govService.WithVotingPeriod(cfg.Ledger.VotingPeriod),
	)
	if err != nil {
		return nil, err
	}

	jwt := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	a.limiter = ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
		Burst:             cfg.Server.RateLimit.Burst,
	})

	a.handler = httptransport.NewRouter(httptransport.Config{
		Logger:     logger,
		Validator:  jwttoken.NewJWTServiceAdapter(jwt),
		AdminToken: cfg.Server.AdminAPIToken,
		Limiter:    a.limiter,
		Tokens:     httptransport.NewAuthHandler(jwt, cfg.Server.TokenTTL, logger),
		Metrics:    a.metrics,
		Checks:     checks,
	},
		catalogHandler.New(catalog, logger),
		custodyHandler.New(custody, logger),
		memberHandler.New(membership, logger),
		costHandler.New(costs, logger),
		vaultHandler.New(vault, logger),
		govHandler.New(governance, logger),
		httptransport.NewNotificationHandler(a.publisher, admin, logger),
	)

	ok = true
	return a, nil
}

// openAuditStore returns the postgres outbox when DATABASE_URL is set and
// the in-memory log otherwise. The schema is managed by the migrate command.
func openAuditStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (audit.Store, *sql.DB, error) {
	if cfg.Outbox.DatabaseURL == "" {
		logger.InfoContext(ctx, "notifications kept in memory")
		return memory.NewInMemoryStore(), nil, nil
	}
	db, err := postgres.Open(ctx, cfg.Outbox.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return outboxStore.New(db), db, nil
}

func newBackend(cfg config.Config, logger *slog.Logger) (custodyService.Backend, error) {
	if cfg.Backend.URL == "" {
		logger.Warn("BACKEND_URL not set; service payments are recorded in memory only")
		return backend.NewRecorder(), nil
	}
	c, err := backend.NewClient(cfg.Backend.URL, cfg.Backend.Timeout,
		backend.WithLogger(logger),
		backend.WithBreaker(circuit.New("service-backend",
			circuit.WithFailureThreshold(5),
			circuit.WithSuccessThreshold(2),
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("service backend: %w", err)
	}
	return c, nil
}

func newSelector(cfg config.Ledger) memberService.Selector {
	if cfg.GroupSelection == config.GroupSelectionRandom {
		return memberService.NewRandom(cfg.SelectionSeed)
	}
	return memberService.NewRoundRobin()
}

func newCooldownStore(ctx context.Context, cfg config.Config, checks map[string]httptransport.HealthCheck, a *app) (govService.CooldownStore, error) {
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return cooldown.NewInMemoryStore(cfg.Ledger.ProposalCooldown), nil
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	checks["redis"] = client.Health
	return cooldown.NewRedisStore(client, cfg.Ledger.ProposalCooldown), nil
}

// watchBackend mirrors the backend circuit state into the degraded gauge.
func (a *app) watchBackend(ctx context.Context, every time.Duration) error {
	if a.backend == nil {
		return nil
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.metrics.SetBackendDegraded(a.backend.Degraded())
		}
	}
}
