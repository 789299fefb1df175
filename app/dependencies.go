package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/llm-dev-ops/governance-gateway/config"
	"github.com/llm-dev-ops/governance-gateway/handlers"
	"github.com/llm-dev-ops/governance-gateway/middleware"
	"github.com/llm-dev-ops/governance-gateway/observability"
	"github.com/llm-dev-ops/governance-gateway/repositories"
	"github.com/llm-dev-ops/governance-gateway/repositories/postgres"
	"github.com/llm-dev-ops/governance-gateway/services/breaker"
	"github.com/llm-dev-ops/governance-gateway/services/cost"
	"github.com/llm-dev-ops/governance-gateway/services/dispatch"
	"github.com/llm-dev-ops/governance-gateway/services/governance"
	"github.com/llm-dev-ops/governance-gateway/services/policy"
	"github.com/llm-dev-ops/governance-gateway/services/providers"
	"github.com/llm-dev-ops/governance-gateway/services/providers/anthropic"
	"github.com/llm-dev-ops/governance-gateway/services/providers/openai"
	"github.com/llm-dev-ops/governance-gateway/services/ratelimit"
)

// Dependencies holds all application dependencies. This is the central
// wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	DB     *postgres.DB  // nil when no database is configured
	Redis  *redis.Client // nil when no Redis is configured

	// Stores
	PolicyStore repositories.PolicyStore

	// Pipeline
	Providers   *providers.Registry
	Breakers    *breaker.Registry
	Engine      *policy.Engine
	Calculator  *cost.Calculator
	Counter     ratelimit.Counter
	Metrics     *observability.PrometheusSink
	Dispatcher  *dispatch.Dispatcher
	Governance  *governance.Service

	// HTTP
	GovernanceHandler *handlers.GovernanceHandler
	PolicyHandler     *handlers.PolicyHandler
	HealthHandler     *handlers.HealthHandler
	AuthMiddleware    *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initStorage(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	deps.initCounter(cfg)
	deps.initProviders(cfg)
	deps.initPipeline(cfg)

	if err := deps.initDispatcher(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	deps.Governance = governance.NewService(
		deps.PolicyStore,
		deps.Engine,
		deps.Breakers,
		deps.Providers,
		deps.Calculator,
		deps.Counter,
		deps.Dispatcher,
		logger,
		governance.Config{RequestTimeout: cfg.Governance.RequestTimeout},
	)

	deps.initHTTP(cfg)

	logger.Info("all dependencies initialized")
	return deps, nil
}

// initStorage establishes the database connection when one is configured;
// otherwise the gateway runs with the in-memory policy store.
func (d *Dependencies) initStorage(ctx context.Context, cfg *config.Config) error {
	if cfg.Database == nil {
		d.Logger.Warn("no database configured, using in-memory policy store")
		d.PolicyStore = repositories.NewMemoryPolicyStore()
		return nil
	}

	db, err := postgres.NewDB(*cfg.Database, d.Logger)
	if err != nil {
		return err
	}
	d.DB = db
	d.PolicyStore = postgres.NewPolicyStore(db, d.Logger)

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

// initCounter selects the Redis-backed rate counter when an address is
// configured, falling back to the in-memory counter.
func (d *Dependencies) initCounter(cfg *config.Config) {
	if cfg.Redis.Addr == "" {
		d.Counter = ratelimit.NewMemoryCounter(d.Logger)
		return
	}
	d.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	d.Counter = ratelimit.NewRedisCounter(d.Redis, d.Logger)
	d.Logger.Info("redis rate counter initialized", zap.String("addr", cfg.Redis.Addr))
}

// initProviders registers the configured LLM provider adapters
func (d *Dependencies) initProviders(cfg *config.Config) {
	registry := providers.NewRegistry(d.Logger)

	if cfg.Providers.OpenAI.Enabled() {
		registry.Register(openai.NewAdapter(providers.Config{
			APIKey:  cfg.Providers.OpenAI.APIKey,
			BaseURL: cfg.Providers.OpenAI.BaseURL,
			Timeout: cfg.Providers.OpenAI.Timeout,
		}))
	}
	if cfg.Providers.Anthropic.Enabled() {
		registry.Register(anthropic.NewAdapter(providers.Config{
			APIKey:  cfg.Providers.Anthropic.APIKey,
			BaseURL: cfg.Providers.Anthropic.BaseURL,
			Timeout: cfg.Providers.Anthropic.Timeout,
		}))
	}
	if len(registry.Names()) == 0 {
		d.Logger.Warn("no LLM providers configured")
	}

	d.Providers = registry
}

// initPipeline constructs the policy engine, breakers and cost calculator
func (d *Dependencies) initPipeline(cfg *config.Config) {
	d.Engine = policy.NewEngine(d.Logger)
	d.Breakers = breaker.NewRegistry(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Cooldown:         cfg.Breaker.Cooldown,
	}, d.Logger)

	table := cost.NewPricingTable()
	if cfg.Pricing.File != "" {
		loaded, err := cost.LoadPricingTable(cfg.Pricing.File)
		if err != nil {
			d.Logger.Warn("failed to load pricing table, using defaults",
				zap.String("file", cfg.Pricing.File), zap.Error(err))
		} else {
			table = loaded
			d.Logger.Info("pricing table loaded", zap.String("file", cfg.Pricing.File))
		}
	}
	d.Calculator = cost.NewCalculator(table, d.Logger)
}

// initDispatcher wires the async audit/metrics fan-out and starts its workers
func (d *Dependencies) initDispatcher(cfg *config.Config) error {
	var auditSink dispatch.AuditSink
	if d.DB != nil {
		auditSink = postgres.NewAuditSink(d.DB, d.Logger)
	}

	d.Metrics = observability.NewPrometheusSink()

	d.Dispatcher = dispatch.NewDispatcher(auditSink, d.Metrics, d.Logger, dispatch.Config{
		BufferSize:     cfg.Dispatcher.BufferSize,
		WorkerCount:    cfg.Dispatcher.WorkerCount,
		Backpressure:   dispatch.BackpressureMode(cfg.Dispatcher.Backpressure),
		EnqueueTimeout: cfg.Dispatcher.EnqueueTimeout,
	})
	return d.Dispatcher.Start()
}

// initHTTP constructs the handlers and auth middleware
func (d *Dependencies) initHTTP(cfg *config.Config) {
	d.GovernanceHandler = handlers.NewGovernanceHandler(d.Governance, d.Logger)
	d.PolicyHandler = handlers.NewPolicyHandler(d.PolicyStore, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.DB, d.Dispatcher, d.Breakers, d.Providers, d.Logger)
	d.AuthMiddleware = middleware.NewAuthMiddleware(cfg.Auth.JWTSecret, d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Dispatcher != nil {
		if err := d.Dispatcher.Stop(d.Config.Server.ShutdownTimeout); err != nil {
			errs = append(errs, fmt.Errorf("dispatcher shutdown: %w", err))
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
	}

	return errors.Join(errs...)
}
