package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/maheshrc27/publish-engine/internal/service"
	"github.com/maheshrc27/publish-engine/internal/transfer"
	"github.com/maheshrc27/publish-engine/pkg/logging"
)

type PostHandler struct {
	s   service.PostService
	log *zap.Logger
}

func NewPostHandler(s service.PostService) *PostHandler {
	return &PostHandler{s: s, log: logging.WithComponent("post_handler")}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	var req transfer.SubmitPostRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Unable to parse request body")
	}

	resp, err := h.s.Submit(c.UserContext(), GetWorkspaceID(c), &req)
	if err != nil {
		return h.fail(c, resp, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *PostHandler) ValidatePost(c *fiber.Ctx) error {
	var req transfer.SubmitPostRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Unable to parse request body")
	}

	resp, err := h.s.Validate(c.UserContext(), GetWorkspaceID(c), &req)
	if err != nil && !errors.Is(err, service.ErrNoValidTargets) {
		return h.fail(c, resp, err)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *PostHandler) PostResult(c *fiber.Ctx) error {
	postID, err := c.ParamsInt("id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid post id")
	}

	res, err := h.s.Result(c.UserContext(), GetWorkspaceID(c), int64(postID))
	if err != nil {
		return h.fail(c, nil, err)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

func (h *PostHandler) RepublishPost(c *fiber.Ctx) error {
	postID, err := c.ParamsInt("id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid post id")
	}

	res, err := h.s.Republish(c.UserContext(), GetWorkspaceID(c), int64(postID))
	if err != nil {
		return h.fail(c, nil, err)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

// fail maps service errors to responses. A validation report, when present,
// is returned alongside the error.
func (h *PostHandler) fail(c *fiber.Ctx, resp *transfer.SubmitPostResponse, err error) error {
	switch {
	case errors.Is(err, service.ErrNoValidTargets):
		body := fiber.Map{"error": err.Error()}
		if resp != nil {
			body["validation"] = resp.Validation
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(body)
	case errors.Is(err, service.ErrInvalidPost), errors.Is(err, service.ErrAccountNotFound):
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrPostNotFound):
		return errorJSON(c, fiber.StatusNotFound, "Post not found")
	case errors.Is(err, service.ErrNotRepublishable):
		return errorJSON(c, fiber.StatusConflict, err.Error())
	default:
		h.log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Internal server error")
	}
}
