package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/satecha/satecha/internal/middleware"
)

// Routes groups the handlers served by the provider server.
type Routes struct {
	Auth     *AuthHandler
	Profiles *ProfilesHandler
	Users    *UsersHandler
	Chat     *ChatHandler
	Guard    *middleware.AuthMiddleware
}

// Register mounts the health check and the /api tree on app.
func (r Routes) Register(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	api.Get("/version", GetVersion)
	api.Post("/chat", r.Chat.Send)

	// Middleware is attached per route; a group middleware would run for
	// every path under the prefix.
	authRoutes := api.Group("/auth")
	authRoutes.Post("/signup", r.Guard.RequireAPIKey, r.Auth.SignUp)
	authRoutes.Post("/signin", r.Guard.RequireAPIKey, r.Auth.SignIn)
	authRoutes.Post("/otp", r.Guard.RequireAPIKey, r.Auth.SendOTP)
	authRoutes.Post("/verify", r.Guard.RequireAPIKey, r.Auth.VerifyOTP)
	authRoutes.Post("/refresh", r.Guard.RequireAPIKey, r.Auth.Refresh)
	authRoutes.Get("/user", r.Guard.RequireAuth, r.Auth.GetUser)
	authRoutes.Put("/user", r.Guard.RequireAuth, r.Auth.UpdateUser)
	authRoutes.Post("/signout", r.Guard.RequireAuth, r.Auth.SignOut)

	profileRoutes := api.Group("/profiles", r.Guard.RequireAuth)
	profileRoutes.Get("/me", r.Profiles.GetMine)
	profileRoutes.Put("/me", r.Profiles.UpdateMine)
	profileRoutes.Get("/:id", r.Profiles.Get)

	adminRoutes := api.Group("/admin/users", r.Guard.RequireAuth, middleware.AdminOnly)
	adminRoutes.Get("/", r.Users.List)
	adminRoutes.Put("/:id", r.Users.Update)
	adminRoutes.Delete("/:id", r.Users.Delete)
}
