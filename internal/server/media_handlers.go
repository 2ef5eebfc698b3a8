package server

import (
	"io"
	"strings"

	"snappit/internal/blob"
	"snappit/internal/models"

	"github.com/gofiber/fiber/v2"
)

// UploadMedia handles POST /api/media with a multipart "file" field. The
// upload runs under the configured timeout; when it cannot finish in time
// the response carries an empty URL so the client can post text-only.
func (s *Server) UploadMedia(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("No file uploaded"))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unreadable upload"))
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unreadable upload"))
	}

	url, err := s.blobService.UploadWithFallback(c.Context(), blob.UploadInput{
		UserID:      userID,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"url": url})
}

// GetMedia handles GET /media/i/:hash serving the stored WebP master.
func (s *Server) GetMedia(c *fiber.Ctx) error {
	hash := strings.TrimSuffix(c.Params("hash"), ".webp")

	b, err := s.blobService.Get(c.Context(), hash)
	if err != nil {
		return respondServiceError(c, err)
	}

	c.Set(fiber.HeaderContentType, b.ContentType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.Send(b.Data)
}
