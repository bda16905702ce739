package http

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"trackly/internal/events"
	"trackly/internal/tags"
)

// TagsHandler serves tag CRUD.
type TagsHandler struct {
	Service *tags.Service
	Logger  *slog.Logger
}

// CreateTagAction handles POST /api/tags
func (h *TagsHandler) CreateTagAction(c *cartridge.Context) error {
	var in tags.Input
	if err := c.BodyParser(&in); err != nil {
		return RespondError(c.Ctx, h.Logger, events.NewValidationError("body", "must be a JSON object"))
	}
	tag, err := h.Service.Create(c.UserContext(), in)
	if err != nil {
		return RespondError(c.Ctx, h.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(tag)
}

// ListTagsAction handles GET /api/tags. ?active=false includes inactive tags.
func (h *TagsHandler) ListTagsAction(c *cartridge.Context) error {
	includeInactive := !c.QueryBool("active", true)
	list, err := h.Service.List(c.UserContext(), includeInactive)
	if err != nil {
		return RespondError(c.Ctx, h.Logger, err)
	}
	if list == nil {
		list = []tags.Tag{}
	}
	return c.JSON(fiber.Map{"tags": list, "total": len(list)})
}

// GetTagAction handles GET /api/tags/:id
func (h *TagsHandler) GetTagAction(c *cartridge.Context) error {
	id, err := tagID(c.Ctx)
	if err != nil {
		return RespondError(c.Ctx, h.Logger, err)
	}
	tag, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return RespondError(c.Ctx, h.Logger, err)
	}
	return c.JSON(tag)
}

// UpdateTagAction handles PUT /api/tags/:id
func (h *TagsHandler) UpdateTagAction(c *cartridge.Context) error {
	id, err := tagID(c.Ctx)
	if err != nil {
		return RespondError(c.Ctx, h.Logger, err)
	}
	var in tags.Input
	if err := c.BodyParser(&in); err != nil {
		return RespondError(c.Ctx, h.Logger, events.NewValidationError("body", "must be a JSON object"))
	}
	tag, err := h.Service.Update(c.UserContext(), id, in)
	if err != nil {
		return RespondError(c.Ctx, h.Logger, err)
	}
	return c.JSON(tag)
}

// DeleteTagAction handles DELETE /api/tags/:id; ?hard=true removes the row.
func (h *TagsHandler) DeleteTagAction(c *cartridge.Context) error {
	id, err := tagID(c.Ctx)
	if err != nil {
		return RespondError(c.Ctx, h.Logger, err)
	}
	hard := c.QueryBool("hard", false)
	if err := h.Service.Delete(c.UserContext(), id, hard); err != nil {
		return RespondError(c.Ctx, h.Logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "hard": hard})
}

func tagID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, events.NewValidationError("id", "must be a positive integer")
	}
	return uint(id), nil
}
