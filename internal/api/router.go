package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mysterymsg/mystery/internal/app"
	iauth "github.com/mysterymsg/mystery/internal/auth"
	"github.com/mysterymsg/mystery/internal/handlers"
	"github.com/mysterymsg/mystery/internal/middleware"
	"github.com/mysterymsg/mystery/internal/monitoring"
	"github.com/mysterymsg/mystery/internal/security"
	"github.com/mysterymsg/mystery/internal/services"
)

// Dependencies are the long-lived services the HTTP layer is built on.
type Dependencies struct {
	Config    *app.Config
	Accounts  *services.AccountService
	Inbox     *services.InboxService
	JWT       *iauth.JWTService
	Health    *monitoring.HealthManager
	Jobs      *monitoring.JobTracker
	Audit     *security.AuditService
	RateStore middleware.RateStore
}

// NewRouter builds the Gin engine, wires middleware and registers the API routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Accounts == nil {
		return nil, errors.New("account service must be provided")
	}
	if deps.Inbox == nil {
		return nil, errors.New("inbox service must be provided")
	}
	if deps.JWT == nil {
		return nil, errors.New("jwt service must be provided")
	}
	if deps.Config == nil {
		return nil, errors.New("config must be provided")
	}
	cfg := deps.Config

	rateStore := deps.RateStore
	if rateStore == nil {
		rateStore = middleware.NewMemoryRateStore()
	}
	requests, window := cfg.Server.RateLimitOrDefault()

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins()...))
	r.Use(middleware.RateLimitWithStore(rateStore, requests, window))

	registerHealthRoutes(r, cfg, deps.Health)

	requireAuth := middleware.Auth(deps.JWT)
	api := r.Group("/api")

	registerAccountRoutes(api, handlers.NewAccountHandler(deps.Accounts, deps.JWT), requireAuth)
	registerMessageRoutes(api, handlers.NewMessageHandler(deps.Inbox, deps.JWT), requireAuth)
	registerMonitoringRoutes(api, handlers.NewMonitoringHandler(deps.Jobs, cfg.Monitoring), requireAuth)
	registerSecurityRoutes(api, handlers.NewSecurityHandler(deps.Audit), requireAuth)

	if cfg.Monitoring.Prometheus.Enabled {
		r.GET(cfg.Monitoring.MetricsEndpoint(), gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
