package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/example/chat-relay-demo/modules/analytics"
	"github.com/example/chat-relay-demo/modules/api"
	"github.com/example/chat-relay-demo/modules/auth"
	"github.com/example/chat-relay-demo/modules/history"
	"github.com/example/chat-relay-demo/modules/hub"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Chat Relay Demo ===")

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	addr := ":" + getEnv("PORT", "3000")

	// Create modules
	historyModule := history.NewModule(app.Logger())
	authModule := auth.NewModule(app.Logger())
	analyticsModule := analytics.NewModule(app.Logger())
	hubModule := hub.NewModule(app.Logger())
	apiModule := api.NewModule(addr, hubModule, historyModule, authModule, app.Logger())

	// Wire up dependencies not exposed via the framework
	hubModule.SetStore(historyModule)
	apiModule.SetStats(analyticsModule.Store())

	// Register modules. Order: storage and auth first, then the hub,
	// then the API layer that depends on all of them.
	app.Register(historyModule)
	app.Register(authModule)
	app.Register(analyticsModule)
	app.Register(hubModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(addr)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(addr string) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost%s):", addr)
	log.Println("  GET    /health                        - Health check")
	log.Println("  POST   /api/v1/auth/register          - Create an account")
	log.Println("  POST   /api/v1/auth/login             - Login, returns tokens")
	log.Println("  POST   /api/v1/auth/refresh           - Refresh tokens")
	log.Println("  GET    /api/v1/auth/me                - Authenticated profile")
	log.Println("  GET    /api/v1/rooms                  - List rooms")
	log.Println("  POST   /api/v1/rooms                  - Create a room (auth)")
	log.Println("  GET    /api/v1/rooms/:name/members    - List room members")
	log.Println("  GET    /api/v1/rooms/:name/history    - Message history (auth)")
	log.Println("  GET    /api/v1/stats                  - Relay activity counters")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost%s/ws):", addr)
	log.Println("  Optional: ws://localhost:3000/ws?token=<access token>")
	log.Println("  Message types: join, leave, message, direct, history, rooms")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
