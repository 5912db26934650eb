package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docvault-api/internal/identity"
	"docvault-api/internal/shared/config"
	"docvault-api/internal/shared/metrics"
	"docvault-api/internal/shared/server/middleware"
	"docvault-api/internal/shared/server/respond"
	"docvault-api/internal/vault"
)

const (
	rateGroupDefault = "DEFAULT"
	rateGroupAuth    = "AUTH"
	rateGroupUpload  = "UPLOAD"
)

var rateRules = map[string]middleware.RateLimitRule{
	rateGroupDefault: {Rate: 20, Burst: 40},
	rateGroupAuth:    {Rate: 0.5, Burst: 5},
	rateGroupUpload:  {Rate: 1, Burst: 5},
}

// RouterDeps are the handlers and services the router mounts.
type RouterDeps struct {
	Config        config.Config
	Authenticator middleware.Authenticator
	Identity      *identity.Handler
	Google        *identity.GoogleSignIn
	Vault         *vault.Handler
	Health        *Health
	// PublicDir, when set, is served under /public for the local object store.
	PublicDir   string
	RateLimiter *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.IsDevLike() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Metrics(),
	)

	health := deps.Health
	if health == nil {
		health = NewHealth()
	}
	limiter := deps.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(nil)
	}
	rateLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Rules:        rateRules,
		DefaultGroup: rateGroupDefault,
		GroupFor:     rateGroupFor,
		Limiter:      limiter,
	})

	r.GET("/metrics", metrics.Handler())
	if deps.PublicDir != "" {
		r.Static("/public", deps.PublicDir)
	}

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		checks, ok := health.Status(c.Request.Context())
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, gin.H{"ok": ok, "checks": checks})
	})

	public := api.Group("")
	public.Use(rateLimit)
	if deps.Identity != nil {
		deps.Identity.RegisterRoutes(public)
	}
	if deps.Google != nil {
		deps.Google.RegisterRoutes(public)
	}

	protected := api.Group("")
	protected.Use(middleware.Auth(deps.Authenticator), rateLimit)
	if deps.Identity != nil {
		deps.Identity.RegisterProtectedRoutes(protected)
	}
	if deps.Vault != nil {
		deps.Vault.RegisterRoutes(protected)
	}

	return r
}

func rateGroupFor(c *gin.Context) string {
	path := c.FullPath()
	switch {
	case path == "/api/v1/auth/session" || path == "/api/v1/auth/events":
		return rateGroupDefault
	case strings.HasPrefix(path, "/api/v1/auth/"):
		return rateGroupAuth
	case path == "/api/v1/documents" && c.Request.Method == http.MethodPost:
		return rateGroupUpload
	default:
		return rateGroupDefault
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
