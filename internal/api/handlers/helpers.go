package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/publish-engine/internal/api/middleware"
)

func GetWorkspaceID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(middleware.WorkspaceIDKey).(int64)
	return id
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}
