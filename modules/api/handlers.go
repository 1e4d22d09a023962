package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/go-monolith/mono/pkg/types"

	domain "github.com/example/chat-relay-demo/domain/user"
	"github.com/example/chat-relay-demo/modules/analytics"
	"github.com/example/chat-relay-demo/modules/auth"
	"github.com/example/chat-relay-demo/modules/history"
	"github.com/example/chat-relay-demo/modules/hub"
)

// Handlers contains HTTP and WebSocket handlers.
type Handlers struct {
	hubModule     *hub.Module
	historyModule *history.Module
	authService   *auth.AuthService
	stats         *analytics.Store
	logger        types.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(hubModule *hub.Module, historyModule *history.Module, authService *auth.AuthService, stats *analytics.Store, logger types.Logger) *Handlers {
	return &Handlers{
		hubModule:     hubModule,
		historyModule: historyModule,
		authService:   authService,
		stats:         stats,
		logger:        logger,
	}
}

// HealthCheck handles health check requests (GET /health).
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "chat-relay-demo",
	})
}

// Register handles account creation (POST /api/v1/auth/register).
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req auth.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "invalid request body",
		})
	}

	user, err := h.authService.Register(c.UserContext(), req.Username, req.Email, req.Password)
	if err != nil {
		status := fiber.StatusBadRequest
		if errors.Is(err, auth.ErrUserExists) {
			status = fiber.StatusConflict
		}
		return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(auth.RegisterResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

// Login handles credential login (POST /api/v1/auth/login).
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req auth.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "invalid request body",
		})
	}

	tokens, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error: "invalid email or password",
			})
		}
		h.logger.Error("Login failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: "login failed",
		})
	}

	return c.JSON(auth.LoginResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
		TokenType:    tokens.TokenType,
	})
}

// Refresh handles token refresh (POST /api/v1/auth/refresh).
func (h *Handlers) Refresh(c *fiber.Ctx) error {
	var req auth.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "invalid request body",
		})
	}

	tokens, err := h.authService.RefreshTokens(c.UserContext(), req.RefreshToken)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error: "invalid refresh token",
		})
	}

	return c.JSON(auth.LoginResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
		TokenType:    tokens.TokenType,
	})
}

// Me returns the authenticated user's profile (GET /api/v1/auth/me).
func (h *Handlers) Me(c *fiber.Ctx) error {
	claims, ok := c.Locals(UserContextKey).(*domain.Claims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error: "unauthorized",
		})
	}

	user, err := h.authService.GetUser(c.UserContext(), claims.UserID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error: "user not found",
		})
	}

	return c.JSON(auth.UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

// ListRooms handles room listing requests (GET /api/v1/rooms).
func (h *Handlers) ListRooms(c *fiber.Ctx) error {
	rooms := h.hubModule.ListRooms()
	return c.JSON(fiber.Map{
		"rooms": rooms,
		"total": len(rooms),
	})
}

// CreateRoom handles room creation requests (POST /api/v1/rooms).
func (h *Handlers) CreateRoom(c *fiber.Ctx) error {
	claims, ok := c.Locals(UserContextKey).(*domain.Claims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error: "unauthorized",
		})
	}

	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "invalid request body",
		})
	}

	if err := h.hubModule.CreateRoom(req.Name, claims.Username); err != nil {
		status := fiber.StatusBadRequest
		if errors.Is(err, hub.ErrRoomExists) {
			status = fiber.StatusConflict
		}
		return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"name":       req.Name,
		"created_by": claims.Username,
	})
}

// GetRoomMembers handles member listing (GET /api/v1/rooms/:name/members).
func (h *Handlers) GetRoomMembers(c *fiber.Ctx) error {
	room := c.Params("name")
	if room == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "room name is required",
		})
	}

	members := h.hubModule.Members(room)
	return c.JSON(fiber.Map{
		"room":    room,
		"members": members,
		"total":   len(members),
	})
}

// GetRoomHistory handles room history requests
// (GET /api/v1/rooms/:name/history). System notices are excluded.
func (h *Handlers) GetRoomHistory(c *fiber.Ctx) error {
	room := c.Params("name")
	if room == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "room name is required",
		})
	}

	limit := c.QueryInt("limit", hub.DefaultHistoryLimit)
	if limit <= 0 {
		limit = hub.DefaultHistoryLimit
	}
	if limit > hub.MaxHistoryLimit {
		limit = hub.MaxHistoryLimit
	}

	messages, err := h.historyModule.QueryChat(c.UserContext(), room, limit)
	if err != nil {
		h.logger.Error("Failed to load history", "room", room, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: "failed to load history",
		})
	}

	return c.JSON(fiber.Map{
		"room":     room,
		"messages": messages,
		"total":    len(messages),
	})
}

// GetStats returns relay activity counters (GET /api/v1/stats).
func (h *Handlers) GetStats(c *fiber.Ctx) error {
	return c.JSON(h.stats.GetSummary())
}
