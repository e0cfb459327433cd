package handler

import (
	"investment-core/internal/adapter/http/middleware"
	"investment-core/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Webhooks       *WebhookHandler
	DepositSvc     ports.DepositService
	WithdrawalSvc  ports.WithdrawalService
	InvestmentSvc  ports.InvestmentService
	TokenSvc       ports.TokenService
	RateLimitStore middleware.RateLimitCounter // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService  // nil = request audit disabled
	Gatherer       prometheus.Gatherer // nil = no /metrics
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

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
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Provider notifications (signature checked after the ack) ---
	// Not rate limited: the provider must always get its 200.
	if deps.Webhooks != nil {
		v1.POST("/webhooks/payments", deps.Webhooks.Receive)
	}

	// --- Investor routes (JWT) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	depositHandler := NewDepositHandler(deps.DepositSvc)
	withdrawalHandler := NewWithdrawalHandler(deps.WithdrawalSvc)
	investmentHandler := NewInvestmentHandler(deps.InvestmentSvc)

	v1.POST("/deposits/qr", jwtAuth, rl("deposits"), depositHandler.CreateQR)
	v1.POST("/withdrawals", jwtAuth, rl("withdrawals"), withdrawalHandler.Request)
	v1.POST("/investments", jwtAuth, rl("investments"), investmentHandler.Purchase)

	// --- Operator routes ---
	admin := v1.Group("/admin", jwtAuth, middleware.RequireRole(ports.RoleOperator), rl("admin"))
	if deps.AuditSvc != nil {
		admin.Use(middleware.AuditLog(deps.AuditSvc))
	}
	{
		admin.POST("/withdrawals/:id/approve", withdrawalHandler.Approve)
		admin.POST("/withdrawals/:id/reject", withdrawalHandler.Reject)
	}

	return r
}
