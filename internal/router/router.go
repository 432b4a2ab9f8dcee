// Package router wires the HTTP routes to their handlers and the
// middleware chain.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticket-scanner/internal/handler"
	"github.com/iliyamo/event-ticket-scanner/internal/middleware"
)

// RegisterRoutes registers the routes that need no authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth mounts the session endpoints under /v1/auth and the
// authenticated identity endpoint under /v1. The rate limiter guards
// the credential-bearing routes; pass nil to skip it.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	if limit != nil {
		g.Use(limit)
	}
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout works with either a bearer token or a refresh token in the
	// body, so it stays outside the JWT middleware.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("OPERATOR", "ADMIN"),
	)
	auth.GET("/me", a.Me)
}

// RegisterOperator mounts the event, ticket and validation endpoints
// under /v1. Every route requires a valid access token with the
// OPERATOR or ADMIN role. The cache middleware, when given, applies to
// the event read routes only; the validation route always bypasses it
// and carries no rate limit, since burst rechecks at the gate are
// legitimate traffic.
func RegisterOperator(e *echo.Echo, ev *handler.EventHandler, tk *handler.TicketHandler, val *handler.ValidateHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("OPERATOR", "ADMIN"),
	)

	// ---- Events ----
	g.POST("/events", ev.CreateEvent)
	g.DELETE("/events/:id", ev.DeleteEvent)
	if cache != nil {
		g.GET("/events", ev.ListEvents, cache)
		g.GET("/events/:id", ev.GetEvent, cache)
	} else {
		g.GET("/events", ev.ListEvents)
		g.GET("/events/:id", ev.GetEvent)
	}

	// ---- Tickets ----
	g.POST("/events/:id/tickets", tk.GenerateTickets)
	g.GET("/events/:id/tickets", tk.ListTickets)

	// ---- Scan validation ----
	g.POST("/events/:id/validate", val.ValidateTicket)
}
