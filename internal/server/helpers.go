package server

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
)

// decodeParam returns a URL-decoded route parameter.
func decodeParam(c *fiber.Ctx, name string) (string, error) {
	return url.PathUnescape(c.Params(name))
}
