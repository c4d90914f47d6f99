package router

import (
	"github.com/gin-gonic/gin"
	"github.com/haven/ledger/internal/infrastructure/logger"
	"github.com/haven/ledger/internal/interfaces/http/handler"
	"github.com/haven/ledger/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Config controls the middleware chain of the HTTP engine
type Config struct {
	ServiceName    string
	Logger         *zap.Logger
	CORS           middleware.CORSConfig
	Security       middleware.SecurityConfig
	MaxBodyBytes   int64
	TrustedProxies []string

	// Auth enables bearer tokens. When nil callers identify themselves
	// with X-User-ID.
	Auth *middleware.AuthConfig
	// RateLimiter is optional
	RateLimiter middleware.Limiter
	// Meter enables HTTP metrics when set
	Meter     metric.Meter
	Tracing   bool
	Profiling bool
}

// Handlers are the HTTP handlers mounted by NewEngine. Auth is optional.
type Handlers struct {
	System         *handler.SystemHandler
	Auth           *handler.AuthHandler
	Ledger         *handler.LedgerHandler
	Alert          *handler.AlertHandler
	Reconciliation *handler.ReconciliationHandler
}

// NewEngine builds the gin engine with the full middleware chain and the
// ledger API mounted under /api/v1. /health sits outside the API group and
// needs no identity.
func NewEngine(cfg Config, h Handlers) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Secure(cfg.Security),
		middleware.CORS(cfg.CORS),
	)
	if cfg.MaxBodyBytes > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	}
	if cfg.Tracing {
		engine.Use(middleware.Tracing(cfg.ServiceName))
	}
	if cfg.Meter != nil {
		metrics, err := middleware.HTTPMetrics(cfg.Meter)
		if err != nil {
			return nil, err
		}
		engine.Use(metrics)
	}
	if cfg.Profiling {
		engine.Use(middleware.Profiling())
	}

	engine.GET("/health", h.System.Health)

	var api []gin.HandlerFunc
	if cfg.Auth != nil {
		authCfg := *cfg.Auth
		if authCfg.Logger == nil {
			authCfg.Logger = log
		}
		api = append(api, middleware.Authenticate(authCfg))
	} else {
		api = append(api, middleware.HeaderIdentity())
	}
	api = append(api, middleware.SpanAttributes())
	if cfg.RateLimiter != nil {
		api = append(api, middleware.RateLimit(cfg.RateLimiter, log))
	}

	var authRoutes *Module
	if h.Auth != nil {
		authRoutes = AuthRoutes(h.Auth)
	}
	Mount(engine, "v1", api,
		SystemRoutes(h.System),
		authRoutes,
		LedgerRoutes(h.Ledger),
		ClientRoutes(h.Ledger),
		AlertRoutes(h.Alert),
		ReconciliationRoutes(h.Reconciliation),
	)

	return engine, nil
}
