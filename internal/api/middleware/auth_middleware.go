package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/maheshrc27/publish-engine/pkg/logging"
	"github.com/maheshrc27/publish-engine/pkg/utils"
)

const WorkspaceIDKey = "workspace_id"

type AuthMiddleware struct {
	secretKey       string
	schedulerSecret string
	log             *zap.Logger
}

func NewAuthMiddleware(secretKey, schedulerSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		secretKey:       secretKey,
		schedulerSecret: schedulerSecret,
		log:             logging.WithComponent("auth_middleware"),
	}
}

// AuthMiddleware accepts a bearer JWT and stores its workspace id in Locals.
func (m *AuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing bearer token",
			})
		}

		claims, err := utils.ValidateToken(m.secretKey, tokenString)
		if err != nil {
			m.log.Debug("token validation failed", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		workspaceID, err := claims.Workspace()
		if err != nil || workspaceID <= 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Token carries no workspace",
			})
		}

		c.Locals(WorkspaceIDKey, workspaceID)
		return c.Next()
	}
}

// SchedulerSecret guards the internal trigger endpoints. An empty secret
// disables them.
func (m *AuthMiddleware) SchedulerSecret() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.schedulerSecret == "" {
			return c.SendStatus(fiber.StatusNotFound)
		}
		got := c.Get("X-Scheduler-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(m.schedulerSecret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid scheduler secret",
			})
		}
		return c.Next()
	}
}
