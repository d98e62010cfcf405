package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/credential-service/internal/config"
	"github.com/iliyamo/credential-service/internal/handler"
	"github.com/iliyamo/credential-service/internal/middleware"
	"github.com/iliyamo/credential-service/internal/ratelimit"
	"github.com/iliyamo/credential-service/internal/service"
)

// Deps is everything the routes need.
type Deps struct {
	DB        handler.Pinger
	Creds     *service.CredentialService
	Keys      *service.APIKeyManager
	Links     *service.LinkService // nil disables the linking routes
	Limiter   ratelimit.Limiter    // nil disables rate limiting
	RateLimit config.RateLimitConfig
	Link      LinkOptions
	Log       *zap.Logger
}

// LinkOptions configures the state cookie and the post-link redirect.
type LinkOptions struct {
	SecureCookies bool
	SuccessURL    string
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))
}

// RegisterAuth registers registration, login, session-protected account
// routes and API key management.
func RegisterAuth(e *echo.Echo, d Deps) {
	a := handler.NewAuthHandler(d.Creds, d.Log)
	k := handler.NewAPIKeyHandler(d.Keys, d.Log)

	g := e.Group("/v1/auth")
	g.POST("/register", a.Register, limit(d, ratelimit.CategoryRegister))
	g.POST("/login", a.Login, limit(d, ratelimit.CategoryLogin))

	// session auth runs per route so unknown /v1 paths still 404
	session := middleware.SessionAuth(d.Creds)
	v1 := e.Group("/v1")
	v1.GET("/me", a.Me, session)
	v1.POST("/apikeys", k.Generate, limit(d, ratelimit.CategoryAPIKey), session)
	v1.GET("/apikeys", k.List, session)
}

// RegisterLink registers the account linking flow. Initiate needs a
// session; the callback is bound to it through the state cookie; status is
// for API key clients.
func RegisterLink(e *echo.Echo, d Deps) {
	if d.Links == nil {
		return
	}
	h := handler.NewLinkHandler(d.Links, d.Link.SecureCookies, d.Link.SuccessURL, d.Log)

	g := e.Group("/v1/link")
	g.GET("/oauth", h.Initiate, middleware.SessionAuth(d.Creds))
	g.GET("/callback", h.Callback)
	g.GET("/status", h.Status, limit(d, ratelimit.CategoryPosting), middleware.APIKeyAuth(d.Keys, d.Log))
}

// Register wires every route group.
func Register(e *echo.Echo, d Deps) {
	RegisterRoutes(e, d)
	RegisterAuth(e, d)
	RegisterLink(e, d)
}

func limit(d Deps, category string) echo.MiddlewareFunc {
	if !d.RateLimit.Enabled {
		return middleware.RateLimit(nil, category, ratelimit.Rule{}, d.Log)
	}
	return middleware.RateLimit(d.Limiter, category, d.RateLimit.Rule(category), d.Log)
}
