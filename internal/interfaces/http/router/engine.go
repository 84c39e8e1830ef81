package router

import (
	"github.com/gin-gonic/gin"
	"github.com/revsplit/backend/internal/infrastructure/auth"
	"github.com/revsplit/backend/internal/infrastructure/logger"
	"github.com/revsplit/backend/internal/interfaces/http/handler"
	"github.com/revsplit/backend/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// EngineConfig holds what the HTTP engine needs besides the handlers
type EngineConfig struct {
	Logger         *zap.Logger
	Validator      middleware.TokenValidator
	Meter          metric.Meter
	ServiceName    string
	TracingEnabled bool
	Profiling      bool
	MaxBodySize    int64
	TrustedProxies []string
}

// Handlers groups the HTTP handlers mounted by NewEngine
type Handlers struct {
	Rules    *handler.RevenueRuleHandler
	Payments *handler.PaymentHandler
	Ledger   *handler.LedgerHandler
	Outbox   *handler.OutboxHandler
	System   *handler.SystemHandler
}

// NewEngine builds the gin engine with the middleware stack, in order:
// recovery, request logging, security headers, body limit, tracing, metrics
// and profiling on every route, then JWT auth on /api/v1 (health excepted).
func NewEngine(cfg EngineConfig, h Handlers) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if len(cfg.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			return nil, err
		}
	}

	engine.Use(logger.GinRecovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.SecureHeaders())
	engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.ServiceName,
		Enabled:     cfg.TracingEnabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(cfg.Meter))
	engine.Use(middleware.ProfilingWithConfig(middleware.ProfilingConfig{
		Enabled:   cfg.Profiling,
		SkipPaths: middleware.DefaultProfilingConfig().SkipPaths,
	}))

	if h.System != nil {
		engine.GET("/health", h.System.Health)
	}

	jwt := middleware.DefaultJWTConfig(cfg.Validator)
	jwt.Logger = log
	r := NewRouter(engine,
		WithAPIVersion("v1"),
		WithAPIMiddleware(
			middleware.JWTAuthMiddlewareWithConfig(jwt),
			middleware.TracingAttributeInjector(),
		),
	)
	r.Register(Groups(h)...)
	r.Setup()

	return engine, nil
}

// Groups returns the route groups for every non-nil handler
func Groups(h Handlers) []RouteRegistrar {
	var groups []RouteRegistrar

	if h.System != nil {
		groups = append(groups, NewDomainGroup("health", "/health").GET("", h.System.Health))
	}

	if h.Rules != nil {
		groups = append(groups, NewDomainGroup("revenue-rules", "/revenue-rules").
			POST("", h.Rules.Create).
			GET("", h.Rules.List).
			GET("/default", h.Rules.GetDefault).
			GET("/:id", h.Rules.GetByID).
			PATCH("/:id", h.Rules.Update).
			DELETE("/:id", h.Rules.Delete))
	}

	if h.Payments != nil {
		groups = append(groups, NewDomainGroup("payments", "/payments").
			POST("", h.Payments.Record).
			GET("", h.Payments.List).
			GET("/:id", h.Payments.Get).
			POST("/:id/approvals", h.Payments.Approve).
			DELETE("/:id/approvals/:approverId", h.Payments.Revoke).
			GET("/:id/approval-status", h.Payments.ApprovalStatus).
			POST("/:id/process", h.Payments.Process).
			POST("/:id/reverse", h.Payments.Reverse))
	}

	if h.Ledger != nil {
		groups = append(groups,
			NewDomainGroup("ledger-entries", "/ledger-entries").
				GET("", h.Ledger.ListEntries),
			NewDomainGroup("balances", "/balances").
				GET("/:party", h.Ledger.GetBalance).
				GET("/:party/pending-entries", h.Ledger.PendingEntries),
			NewDomainGroup("settlements", "/settlements").
				POST("", h.Ledger.CreateSettlement).
				GET("", h.Ledger.ListSettlements).
				GET("/:id", h.Ledger.GetSettlement),
			NewDomainGroup("payouts", "/payouts").
				GET("/summary", h.Ledger.PayoutSummary),
		)
	}

	if h.Outbox != nil {
		groups = append(groups, NewDomainGroup("outbox", "/admin/outbox").
			Use(middleware.RequireRole(auth.RoleAdmin)).
			GET("/dead", h.Outbox.GetDeadLetterEntries).
			POST("/dead/retry-all", h.Outbox.RetryAllDeadEntries).
			GET("/stats", h.Outbox.GetStats).
			GET("/:id", h.Outbox.GetEntry).
			POST("/:id/retry", h.Outbox.RetryDeadEntry))
	}

	return groups
}
