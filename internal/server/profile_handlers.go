package server

import (
	"snappit/internal/models"
	"snappit/internal/profile"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	user, err := s.profileService.Get(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/me
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	var req profile.UpdateInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.profileService.Update(c.Context(), userID, req)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// GetProfile handles GET /api/users/:id
func (s *Server) GetProfile(c *fiber.Ctx) error {
	user, err := s.profileService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// GetUserThreads handles GET /api/users/:id/threads
func (s *Server) GetUserThreads(c *fiber.Ctx) error {
	view := profile.NewView(s.st, c.Params("id"))
	if err := view.Refresh(c.Context()); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(view.Entries())
}

// DeleteUserThread handles DELETE /api/users/:id/threads/:threadID.
// The delete is optimistic; a store failure after the response is
// surfaced through the websocket session, not this endpoint.
func (s *Server) DeleteUserThread(c *fiber.Ctx) error {
	requesterID := c.Locals("userID").(string)

	view := profile.NewView(s.st, c.Params("id"))
	if err := view.Refresh(c.Context()); err != nil {
		return respondServiceError(c, err)
	}
	if err := view.DeleteThread(c.Context(), c.Params("threadID"), requesterID); err != nil {
		return respondServiceError(c, err)
	}
	view.Wait()
	return c.SendStatus(fiber.StatusNoContent)
}
