package server

import (
	"log/slog"

	"snappit/internal/models"
	"snappit/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// SearchUsers handles GET /api/users/search?q=...
// A successful search with a non-empty query is recorded in the caller's
// search history.
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	query := c.Query("q")

	users, err := s.searchService.Users(c.Context(), query)
	if err != nil {
		return respondServiceError(c, err)
	}

	if query != "" {
		// History is best-effort; the search result still stands.
		if histErr := s.searchService.AddQuery(c.Context(), userID, query); histErr != nil {
			observability.GlobalLogger.WarnContext(c.Context(), "search history update failed",
				slog.String("user_id", userID),
				slog.String("error", histErr.Error()),
			)
		}
	}

	if users == nil {
		users = []models.User{}
	}
	return c.JSON(users)
}

// GetSearchHistory handles GET /api/search/history
func (s *Server) GetSearchHistory(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	queries, err := s.searchService.History(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	if queries == nil {
		queries = []string{}
	}
	return c.JSON(fiber.Map{"queries": queries})
}

// AddSearchQuery handles POST /api/search/history
func (s *Server) AddSearchQuery(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	var req struct {
		Query string `json:"query"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := s.searchService.AddQuery(c.Context(), userID, req.Query); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// RemoveSearchQuery handles DELETE /api/search/history/:query
func (s *Server) RemoveSearchQuery(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	query, err := decodeParam(c, "query")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid query parameter"))
	}
	if err := s.searchService.RemoveQuery(c.Context(), userID, query); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ClearSearchHistory handles DELETE /api/search/history
func (s *Server) ClearSearchHistory(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	if err := s.searchService.ClearHistory(c.Context(), userID); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
