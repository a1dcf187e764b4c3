package handlers

import (
	"runtime"

	"github.com/gofiber/fiber/v2"
	"github.com/satecha/satecha/pkg/utils"
)

// Set at build time with -ldflags "-X".
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func GetVersion(c *fiber.Ctx) error {
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"version":   Version,
		"commit":    Commit,
		"buildDate": BuildDate,
		"goVersion": runtime.Version(),
	})
}
