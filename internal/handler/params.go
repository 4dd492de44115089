package handler

import (
	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
)

// param returns a route parameter that stays valid after the handler
// returns. fiber reuses the request buffer behind c.Params.
func param(c *fiber.Ctx, key string) string {
	return fiberutils.CopyString(c.Params(key))
}
