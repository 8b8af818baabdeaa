package handler

import (
	"mpesa-callback-relay/internal/adapter/http/middleware"
	"mpesa-callback-relay/internal/core/ports"
	"mpesa-callback-relay/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const defaultMaxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	IngestSvc      ports.IngestService
	ReportingSvc   ports.ReportingService
	AuthSvc        ports.AuthService
	STKPushSvc     ports.STKPushService
	TokenSvc       ports.TokenService
	WebSocket      gin.HandlerFunc      // GET /ws
	RateLimitStore ports.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Metrics        *metrics.Metrics    // nil = no HTTP instrumentation
	Gatherer       prometheus.Gatherer // nil = no /metrics endpoint
	MaxBodyBytes   int64
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	r.Use(middleware.MaxBodySize(maxBody))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// --- Provider callbacks (no auth; the provider cannot sign) ---
	callbackHandler := NewCallbackHandler(deps.IngestSvc)
	r.POST("/stk-callback", callbackHandler.STK)
	r.POST("/c2b-callback", callbackHandler.C2B)

	// --- Desktop client API ---
	api := r.Group("/api")
	{
		api.GET("/transactions", rl("transactions"), NewTransactionHandler(deps.ReportingSvc).List)
		api.POST("/login", rl("auth_login"), NewAuthHandler(deps.AuthSvc).Login)

		if deps.STKPushSvc != nil && deps.TokenSvc != nil {
			jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
			api.POST("/stk-push", jwtAuth, rl("stk_push"), NewSTKPushHandler(deps.STKPushSvc).Initiate)
		}
	}

	if deps.WebSocket != nil {
		r.GET("/ws", deps.WebSocket)
	}

	return r
}
