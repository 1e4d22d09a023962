package api

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/chat-relay-demo/modules/analytics"
	"github.com/example/chat-relay-demo/modules/auth"
	"github.com/example/chat-relay-demo/modules/history"
	"github.com/example/chat-relay-demo/modules/hub"
)

// Module serves the WebSocket endpoint and the REST API with Fiber.
type Module struct {
	app           *fiber.App
	handlers      *Handlers
	addr          string
	hubModule     *hub.Module
	historyModule *history.Module
	authModule    *auth.Module
	stats         *analytics.Store
	logger        types.Logger
}

var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new API module.
func NewModule(addr string, hubModule *hub.Module, historyModule *history.Module, authModule *auth.Module, moduleLogger types.Logger) *Module {
	return &Module{
		addr:          addr,
		hubModule:     hubModule,
		historyModule: historyModule,
		authModule:    authModule,
		logger:        moduleLogger.WithModule("api"),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "api"
}

// SetStats injects the analytics store before Start.
func (m *Module) SetStats(stats *analytics.Store) {
	m.stats = stats
}

// Start initializes and starts the server.
func (m *Module) Start(ctx context.Context) error {
	if m.stats == nil {
		return fmt.Errorf("api module requires the analytics store")
	}

	m.app = fiber.New(fiber.Config{
		AppName:               "Chat Relay Demo",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
	})

	m.app.Use(recover.New())
	m.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
	}))

	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:8080"
	}
	m.app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	m.handlers = NewHandlers(m.hubModule, m.historyModule, m.authModule.Service(), m.stats, m.logger)
	m.registerRoutes()

	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(m.addr); err != nil {
			errCh <- err
		}
	}()

	// Catch immediate startup errors like a port already in use
	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.logger.Info("API server started", "addr", m.addr)
	return nil
}

// Stop gracefully shuts down the server.
func (m *Module) Stop(ctx context.Context) error {
	if m.app != nil {
		if err := m.app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}
	m.logger.Info("API server stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"addr": m.addr,
		},
	}
}

// registerRoutes sets up all HTTP and WebSocket routes.
func (m *Module) registerRoutes() {
	m.app.Get("/health", m.handlers.HealthCheck)

	// WebSocket upgrade middleware
	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	m.app.Get("/ws", websocket.New(m.handlers.handleWebSocket))

	protected := AuthMiddleware(m.authModule.Service())

	api := m.app.Group("/api/v1")
	api.Post("/auth/register", m.handlers.Register)
	api.Post("/auth/login", m.handlers.Login)
	api.Post("/auth/refresh", m.handlers.Refresh)
	api.Get("/auth/me", protected, m.handlers.Me)

	api.Get("/rooms", m.handlers.ListRooms)
	api.Post("/rooms", protected, m.handlers.CreateRoom)
	api.Get("/rooms/:name/members", m.handlers.GetRoomMembers)
	api.Get("/rooms/:name/history", protected, m.handlers.GetRoomHistory)

	api.Get("/stats", m.handlers.GetStats)
}

// errorHandler handles errors globally.
func (m *Module) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	m.logger.Error("HTTP error", "code", code, "message", message, "error", err)

	return c.Status(code).JSON(ErrorResponse{Error: message})
}
