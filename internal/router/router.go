package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/supply-share/internal/handler"
	"github.com/iliyamo/supply-share/internal/middleware"
)

// Middlewares carries the redis-backed middleware shared by the route
// groups.  Zero values are replaced with pass-through functions.
type Middlewares struct {
	RateLimit  echo.MiddlewareFunc
	Cache      echo.MiddlewareFunc
	Invalidate echo.MiddlewareFunc
}

func (m Middlewares) orPass() Middlewares {
	pass := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	if m.RateLimit == nil {
		m.RateLimit = pass
	}
	if m.Cache == nil {
		m.Cache = pass
	}
	if m.Invalidate == nil {
		m.Invalidate = pass
	}
	return m
}

// RegisterRoutes registers routes that need no authentication or rate
// limiting.  Currently only the health check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the session endpoints under /v1/auth and the
// profile endpoint under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout accepts either a refresh token in the body or a bearer token.
	g.POST("/logout", a.Logout)
	e.POST("/v1/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterPublic registers the browse endpoints.  Guests may call them; a
// valid bearer token only refines the rate limit key.  Responses do not
// depend on the caller, so they are safe to cache.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cm *handler.CommentHandler, t *handler.TaskHandler, jwtSecret string, mw Middlewares) {
	mw = mw.orPass()
	g := e.Group("/v1", middleware.OptionalJWT(jwtSecret), mw.RateLimit)

	g.GET("/supplies", p.ListSupplies, mw.Cache)
	g.GET("/supplies/:id", p.GetSupply, mw.Cache)
	g.GET("/supplies/:id/quote", p.Quote, mw.Cache)
	g.GET("/supplies/:id/comments", cm.ListSupplyComments)

	g.GET("/tasks", t.ListPending)
	g.GET("/tasks/:id", t.Get)
	g.GET("/tasks/:id/comments", cm.ListTaskComments)
}
