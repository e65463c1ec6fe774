package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/supply-share/internal/handler"
	"github.com/iliyamo/supply-share/internal/middleware"
)

// RegisterSupply registers the authenticated supply endpoints.  Every
// write bumps the cache generation so browse responses never outlive the
// change.
func RegisterSupply(e *echo.Echo, s *handler.SupplyHandler, cm *handler.CommentHandler, jwtSecret string, mw Middlewares) {
	mw = mw.orPass()
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		mw.RateLimit,
		mw.Invalidate,
	)

	// ---- Posts ----
	g.POST("/supplies", s.Create)
	g.POST("/supplies/:id/execute", s.Execute)
	g.POST("/supplies/:id/cancel", s.Cancel)

	// ---- Participation ----
	g.POST("/supplies/:id/join", s.Join)
	g.DELETE("/supplies/:id/join", s.Leave)
	g.GET("/supplies/:id/applicants", s.Applicants)
	g.POST("/supplies/:id/participations/:pid/confirm", s.Confirm)

	// ---- Comments ----
	g.POST("/supplies/:id/comments", cm.CreateSupplyComment)

	// ---- My page ----
	g.GET("/me/supplies", s.MyPosts)
	g.GET("/me/joins", s.MyJoins)
}

// RegisterTasks registers the authenticated task and payout account endpoints.
func RegisterTasks(e *echo.Echo, t *handler.TaskHandler, cm *handler.CommentHandler, a *handler.AccountHandler, jwtSecret string, mw Middlewares) {
	mw = mw.orPass()
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret), mw.RateLimit)

	g.POST("/tasks", t.Create)
	g.POST("/tasks/:id/accept", t.Accept)
	g.POST("/tasks/:id/comments", cm.CreateTaskComment)
	g.GET("/me/tasks", t.Mine)

	g.POST("/accounts", a.Create)
	g.GET("/accounts", a.List)
}
