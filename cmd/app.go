package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/merchant-settlement/internal"
	"github.com/frahmantamala/merchant-settlement/internal/auth"
	"github.com/frahmantamala/merchant-settlement/internal/catalog"
	catalogpg "github.com/frahmantamala/merchant-settlement/internal/catalog/postgres"
	"github.com/frahmantamala/merchant-settlement/internal/core/events"
	"github.com/frahmantamala/merchant-settlement/internal/ledger"
	ledgerpg "github.com/frahmantamala/merchant-settlement/internal/ledger/postgres"
	"github.com/frahmantamala/merchant-settlement/internal/lock"
	"github.com/frahmantamala/merchant-settlement/internal/merchant"
	merchantpg "github.com/frahmantamala/merchant-settlement/internal/merchant/postgres"
	"github.com/frahmantamala/merchant-settlement/internal/messaging"
	"github.com/frahmantamala/merchant-settlement/internal/metrics"
	"github.com/frahmantamala/merchant-settlement/internal/payment"
	paymentpg "github.com/frahmantamala/merchant-settlement/internal/payment/postgres"
	"github.com/frahmantamala/merchant-settlement/internal/paymentgateway"
	"github.com/frahmantamala/merchant-settlement/internal/settlement"
	"github.com/frahmantamala/merchant-settlement/internal/store/memory"
	"github.com/frahmantamala/merchant-settlement/internal/transport/rest"
	"github.com/frahmantamala/merchant-settlement/internal/withdrawal"
	withdrawalpg "github.com/frahmantamala/merchant-settlement/internal/withdrawal/postgres"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
)

// repositories groups one storage backend's implementation of every port.
type repositories struct {
	ledger      ledger.RepositoryAPI
	payments    paymentStore
	catalog     catalog.RepositoryAPI
	merchants   merchant.RepositoryAPI
	withdrawals withdrawal.RepositoryAPI
}

// paymentStore is implemented by both payment repositories; the settlement
// side only needs part of it.
type paymentStore interface {
	payment.RepositoryAPI
	settlement.PaymentStore
}

// application is the wired object graph shared by the server, the workers and
// the CLI helpers.
type application struct {
	config *internal.Config
	logger *slog.Logger

	db     *sqlx.DB
	gormDB *gorm.DB
	redis  *redis.Client
	memory *memory.Store

	metrics   *metrics.Recorder
	bus       *events.EventBus
	forwarder *messaging.Forwarder
	locker    lock.Locker
	gateway   *paymentgateway.Client

	repos repositories

	ledger     *ledger.Service
	catalog    *catalog.Service
	merchants  *merchant.Service
	payments   *payment.Service
	settlement *settlement.Service
	withdrawal *withdrawal.Service

	scheduler  *settlement.Scheduler
	reconciler *withdrawal.Reconciler
	auth       *auth.Authenticator
}

func newApplication(cfg *internal.Config, logger *slog.Logger) (*application, error) {
	app := &application{config: cfg, logger: logger}

	if err := app.initStorage(); err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.metrics = metrics.NewRecorder(registry)

	app.bus = events.NewEventBus(logger)
	if cfg.Messaging.AMQPURL != "" {
		fwd, err := messaging.Dial(cfg.Messaging.AMQPURL, cfg.Messaging.Exchange, logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect to message broker: %w", err)
		}
		fwd.Attach(app.bus)
		app.forwarder = fwd
	}

	if cfg.Redis.Addr != "" {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		app.locker = lock.NewRedisLocker(app.redis, logger)
	} else {
		logger.Warn("redis address not configured, using in-process locks")
		app.locker = lock.NewLocalLocker()
	}

	app.gateway = paymentgateway.NewClient(paymentgateway.Config{
		BaseURL:      cfg.PayPal.BaseURL,
		ClientID:     cfg.PayPal.ClientID,
		ClientSecret: cfg.PayPal.ClientSecret,
		Currency:     cfg.PayPal.Currency,
		Timeout:      cfg.PayPal.Timeout,
	}, logger, paymentgateway.WithMetrics(app.metrics))

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *application) initStorage() error {
	if storage == storageMemory {
		a.logger.Warn("using in-memory storage, data is lost on exit")
		a.memory = memory.New()
		a.repos = repositories{
			ledger:      a.memory.Ledger(),
			payments:    a.memory.Payments(),
			catalog:     a.memory.Catalog(),
			merchants:   a.memory.Merchants(),
			withdrawals: a.memory.Withdrawals(),
		}
		return nil
	}

	db, err := initDB(a.config.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	gormDB, err := initGorm(db, a.config.Env)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize gorm: %w", err)
	}
	a.db = db
	a.gormDB = gormDB
	a.repos = repositories{
		ledger:      ledgerpg.NewLedgerRepository(gormDB),
		payments:    paymentpg.NewPaymentRepository(gormDB),
		catalog:     catalogpg.NewCatalogRepository(gormDB),
		merchants:   merchantpg.NewMerchantRepository(gormDB),
		withdrawals: withdrawalpg.NewWithdrawalRepository(db),
	}
	return nil
}

func (a *application) initServices() error {
	cfg := a.config

	location, err := cfg.Settlement.Location()
	if err != nil {
		return err
	}

	a.ledger = ledger.NewService(a.repos.ledger, a.logger, ledger.WithMetrics(a.metrics))
	a.catalog = catalog.NewService(a.repos.catalog, a.logger)
	a.merchants = merchant.NewService(a.repos.merchants, a.ledger, a.bus, a.logger)

	paymentOpts := []payment.Option{
		payment.WithEvents(a.bus),
		payment.WithMetrics(a.metrics),
		payment.WithLocation(location),
		payment.WithHoldPeriod(cfg.Settlement.HoldPeriod),
	}
	if cfg.PayPal.VerifyCaptures {
		paymentOpts = append(paymentOpts, payment.WithOrderVerifier(a.gateway))
	}
	a.payments = payment.NewService(a.repos.payments, a.ledger, a.catalog, a.logger, paymentOpts...)

	a.settlement = settlement.NewService(a.repos.payments, a.ledger, a.logger,
		settlement.WithEvents(a.bus),
		settlement.WithMetrics(a.metrics))
	a.scheduler = settlement.NewScheduler(a.settlement, a.repos.payments, a.locker, settlement.SchedulerConfig{
		PollInterval: cfg.Settlement.PollInterval,
		BatchSize:    cfg.Settlement.BatchSize,
		LockTTL:      cfg.Settlement.LockTTL,
		MaxWorkers:   cfg.Settlement.MaxWorkers,
		JobQueueSize: cfg.Settlement.JobQueueSize,
	}, a.metrics, a.logger)

	a.withdrawal = withdrawal.NewService(a.repos.withdrawals, a.ledger, a.gateway, a.repos.merchants, a.locker, a.logger,
		withdrawal.WithEvents(a.bus),
		withdrawal.WithMetrics(a.metrics),
		withdrawal.WithLockTTL(cfg.Withdrawal.LockTTL))
	a.reconciler = withdrawal.NewReconciler(a.withdrawal, withdrawal.ReconcilerConfig{
		Interval:          cfg.Withdrawal.ReconcileInterval,
		StaleAfter:        cfg.Withdrawal.StaleAfter,
		LockTTL:           cfg.Withdrawal.LockTTL,
		MaxPayoutAttempts: cfg.Withdrawal.MaxPayoutAttempts,
	}, a.logger)

	a.auth = auth.NewAuthenticator(auth.NewJWTVerifier(cfg.Security.JWTSecret, cfg.Security.JWTIssuer), a.logger)
	return nil
}

// healthChecks lists the dependencies probed by /api/v1/health.
func (a *application) healthChecks() map[string]rest.Check {
	checks := map[string]rest.Check{}
	if a.db != nil {
		checks["postgres"] = a.db.PingContext
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		}
	}
	return checks
}

func (a *application) Close() {
	if a.scheduler != nil {
		a.scheduler.Shutdown()
	}
	if a.forwarder != nil {
		if err := a.forwarder.Close(); err != nil {
			a.logger.Error("message broker close error", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("database close error", "error", err)
		}
	}
}
