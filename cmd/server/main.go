package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/satecha/satecha/internal/chat"
	"github.com/satecha/satecha/internal/config"
	"github.com/satecha/satecha/internal/database"
	"github.com/satecha/satecha/internal/handlers"
	"github.com/satecha/satecha/internal/mailer"
	"github.com/satecha/satecha/internal/middleware"
	"github.com/satecha/satecha/internal/services"
	"github.com/satecha/satecha/pkg/logger"
	"github.com/satecha/satecha/pkg/utils"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.AccessTTL)
	utils.ConfigureSealing(cfg.Sealing.Secret)

	db, err := database.Connect(cfg.DB, cfg.Auth)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	otpService := services.NewOTPService(db, mailer.NewConsoleMailer(os.Stdout), cfg.OTP)
	sessionService := services.NewSessionService(db, cfg.JWT.RefreshTTL)
	auditService := services.NewAuditService(db, cfg.Audit.QueueSize)

	authHandler := handlers.NewAuthHandler(db, sessionService, otpService, auditService, cfg.Auth)
	profilesHandler := handlers.NewProfilesHandler(db)
	usersHandler := handlers.NewUsersHandler(db, auditService)
	chatHandler := handlers.NewChatHandler(chat.NewKeywordResponder())

	authMiddleware := middleware.NewAuthMiddleware(db, cfg.Auth.AnonKey)

	app := fiber.New(fiber.Config{BodyLimit: 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.CORSOrigins))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	handlers.Routes{
		Auth:     authHandler,
		Profiles: profilesHandler,
		Users:    usersHandler,
		Chat:     chatHandler,
		Guard:    authMiddleware,
	}.Register(app)

	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	go runOTPCleanup(cleanupCtx, otpService, 15*time.Minute)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":      cfg.Server.Port,
		"address":   listenAddr,
		"db_driver": cfg.DB.Driver,
		"apikey":    cfg.Auth.AnonKey != "",
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}

	stopCleanup()
	auditService.Close()
}

func runOTPCleanup(ctx context.Context, otp *services.OTPService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := otp.CleanupExpired(ctx); err != nil {
				logger.Error("otp_cleanup_failed", err, nil)
			}
		}
	}
}
