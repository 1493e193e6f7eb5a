package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/maallem-marketplace/internal/config"
	"github.com/iliyamo/maallem-marketplace/internal/handler"
	"github.com/iliyamo/maallem-marketplace/internal/middleware"
	"github.com/iliyamo/maallem-marketplace/internal/policy"
)

// Deps bundles everything the routes need.  Redis may be nil, which
// disables rate limiting and response caching.
type Deps struct {
	Health    *handler.HealthHandler
	Auth      *handler.AuthHandler
	Directory *handler.DirectoryHandler
	Requests  *handler.RequestHandler
	Account   *handler.AccountHandler
	Admin     *handler.AdminHandler

	Policy    *policy.Policy
	AuthCfg   middleware.AuthConfig
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
}

// Register mounts every route on e.
func Register(e *echo.Echo, d Deps) {
	// Liveness for load balancers; never rate limited.
	e.GET("/healthz", d.Health.Health)

	cache := middleware.ResponseCache(d.Cache, d.Redis)
	limit := middleware.RateLimit(d.RateLimit, d.Redis)

	// Reference tables used by the signup form.
	e.GET("/cities", d.Directory.Cities(), cache)
	e.GET("/professions", d.Directory.Professions(), cache)

	// The limiter is mounted per group: protected groups run it after
	// Authenticate so user keyed strategies see the caller.
	api := e.Group("/api")
	api.GET("/health", d.Health.Health, limit)

	registerPublic(api, d, limit, cache)
	registerRequests(api, d, limit)
	registerAccount(api, d, limit)
	registerAdmin(api, d, limit)
}

// registerPublic mounts the endpoints that need no identity.
func registerPublic(api *echo.Group, d Deps, limit, cache echo.MiddlewareFunc) {
	auth := api.Group("/auth", limit)
	auth.POST("/signup", d.Auth.Signup)
	auth.POST("/login", d.Auth.Login)

	api.GET("/dropdowns/cities", d.Directory.ProviderCities(), limit, cache)
	api.GET("/dropdowns/professions", d.Directory.ProviderProfessions(), limit, cache)
	api.GET("/providers/search", d.Directory.Search, limit, cache)
}
