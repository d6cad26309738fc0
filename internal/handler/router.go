/*
Package handler provides the HTTP handlers and routing setup for the chat relay.

This file defines the main Router, applying middleware like request ids, logging, CORS and
IP-based rate limiting before delegating requests to the management API and the WebSocket
endpoint.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"chatrelay/internal/pkg/limiter"
	"chatrelay/internal/pkg/logx"
)

const (
	CreateRate  = 0.05
	CreateBurst = 2
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes the IP-based rate limiters, configures CORS and applies global and per-route
// middleware. The returned stop function releases the limiters' janitor goroutines.
func Router(deps *AppDeps) (http.Handler, func()) {
	createLimiter := limiter.NewIPRateLimiter(rate.Limit(CreateRate), CreateBurst, limiter.DefaultCleanupInterval)
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(deps.Config.IPConnectRate), deps.Config.IPConnectBurst, limiter.DefaultCleanupInterval)

	stop := func() {
		createLimiter.Stop()
		connectLimiter.Stop()
	}

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", HandleHealth(deps))

	r.Route("/api", func(api chi.Router) {
		api.Route("/rooms", func(rooms chi.Router) {
			rooms.Get("/", HandleListRooms(deps))
			rooms.With(createLimiter.Middleware).Post("/", HandleCreateRoom(deps))

			rooms.Get("/stats", HandleRoomStats(deps))
			rooms.Post("/cleanup", HandleCleanup(deps))

			rooms.Get("/{id}", HandleGetRoom(deps))
			rooms.Delete("/{id}", HandleDeleteRoom(deps))
			rooms.Get("/{id}/users", HandleListRoomUsers(deps))
		})

		api.Route("/sessions", func(sessions chi.Router) {
			sessions.Get("/stats", HandleSessionStats(deps))
			sessions.Get("/active", HandleUserActive(deps))
			sessions.Post("/{id}/deactivate", HandleDeactivateSession(deps))
			sessions.Post("/{id}/reactivate", HandleReactivateSession(deps))
		})
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, connectLimiter, deps))

	return r, stop
}
