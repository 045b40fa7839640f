package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/storefront/internal/http/handlers"
	"github.com/geocoder89/storefront/internal/http/middlewares"
	"github.com/geocoder89/storefront/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20

type RouterConfig struct {
	Env          string
	ServiceName  string
	CORSOrigins  []string
	AuthRate     int
	AuthWindow   time.Duration
	UserRate     int // zero disables the per-user limit
	UserWindow   time.Duration
	SecureCookie bool
}

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Log      *slog.Logger
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	Accounts interface {
		handlers.AccountFlows
		handlers.UserAdmin
	}
	Tokens middlewares.TokenVerifier
	Checks map[string]handlers.Pinger
}

func NewRouter(cfg RouterConfig, d Deps) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders(cfg.Env == "prod"))
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}

	r.NoRoute(func(ctx *gin.Context) {
		handlers.RespondError(ctx, http.StatusNotFound, "not_found", "Route Not Found", nil)
	})

	// ops
	health := handlers.NewHealthHandler(d.Checks)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	authMW := middlewares.NewAuthMiddleware(d.Tokens)
	authHandler := handlers.NewAuthHandler(d.Accounts, cfg.SecureCookie)
	usersHandler := handlers.NewUsersHandler(d.Accounts)

	limiter := middlewares.NewRateLimiter(cfg.AuthRate, cfg.AuthWindow)

	api := r.Group("/")
	api.Use(middlewares.MaxBodyBytes(maxBodyBytes), middlewares.RequireJSON())

	authGroup := api.Group("/auth")
	authGroup.Use(limiter.RateLimiterMiddleware(middlewares.KeyByIP))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/activate", authHandler.Activate)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.POST("/forgot-password", authHandler.ForgotPassword)
		authGroup.POST("/reset-password", authHandler.ResetPassword)
	}

	users := api.Group("/users")
	users.Use(authMW.RequireAuth())
	if cfg.UserRate > 0 {
		userLimiter := middlewares.NewRateLimiter(cfg.UserRate, cfg.UserWindow)
		users.Use(userLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP))
	}
	{
		users.GET("", authMW.RequireAdmin(), usersHandler.List)
		users.GET("/:userName", usersHandler.Get)
		users.PUT("/:userName", usersHandler.Update)
		users.DELETE("/:userName", authMW.RequireAdmin(), usersHandler.Delete)
		users.PATCH("/:userName/ban", authMW.RequireAdmin(), usersHandler.ToggleBan)
	}

	return r
}
