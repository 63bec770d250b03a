package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"userhub/internal/caching"
	"userhub/internal/config"
	"userhub/internal/handlers"
	"userhub/internal/jobs/background"
	appmiddleware "userhub/internal/middleware"
	"userhub/internal/repositories"
	"userhub/internal/services"
	"userhub/pkg/database"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	tokenStore := repositories.NewTokenStoreWithClient(rdb)
	reportCache := caching.NewReportCacheWithClient(rdb)

	userRepo := repositories.NewUserRepo(pool)
	tokenService := services.NewTokenService(tokenStore, cfg.TokenTTL)

	var archiver services.ExportArchiver
	if cfg.ArchiveExports {
		archiver, err = services.NewMinioArchiver(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.ExportBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Printf("Export archiving disabled: %v", err)
			archiver = nil
		}
	}

	accountService := services.NewAccountService(userRepo, tokenService, archiver, reportCache)

	if cfg.SeedAdmin {
		if cfg.AdminPassword == "" {
			log.Fatal("SEED_ADMIN is set but ADMIN_PASSWORD is empty")
		}
		seedCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := accountService.EnsureAdmin(seedCtx, &services.RegisterRequest{
			FirstName: cfg.AdminFirstName,
			LastName:  cfg.AdminLastName,
			Email:     cfg.AdminEmail,
			Password:  cfg.AdminPassword,
		}); err != nil {
			cancel()
			log.Fatalf("Failed to seed admin account: %v", err)
		}
		cancel()
	}

	scheduler, err := background.NewJobScheduler(tokenStore, userRepo)
	if err != nil {
		log.Fatalf("Failed to create job scheduler: %v", err)
	}
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start job scheduler: %v", err)
	}
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Printf("Failed to stop job scheduler: %v", err)
		}
	}()

	authHandlers := handlers.NewAuthHandlers(accountService)
	userHandlers := handlers.NewUserHandlers(accountService)
	healthHandlers := handlers.NewHealthHandlers(pool, tokenStore)

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(appmiddleware.VersionHeader())

	e.GET("/health", healthHandlers.Liveness)
	e.GET("/health/ready", healthHandlers.Readiness)

	api := e.Group("/api")
	api.POST("/register", authHandlers.Register)
	api.POST("/login", authHandlers.Login)

	auth := api.Group("", appmiddleware.BearerAuth(tokenService, userRepo), appmiddleware.AdminAudit())
	auth.POST("/logout", authHandlers.Logout)

	auth.GET("/user-profile", authHandlers.Me)
	auth.GET("/profile", userHandlers.Profile)
	auth.PUT("/profile", userHandlers.UpdateProfile)
	auth.POST("/change-password", userHandlers.ChangePassword)

	auth.POST("/create-admin", authHandlers.CreateAdmin)

	// The fixed /users paths must be registered before /users/:id so
	// "statistics" and friends never parse as ids.
	auth.GET("/users", userHandlers.ListUsers)
	auth.GET("/users/statistics", userHandlers.Statistics)
	auth.GET("/users/activity", userHandlers.Activity)
	auth.POST("/users/search", userHandlers.Search)
	auth.GET("/users/export", userHandlers.Export)
	auth.PUT("/users/bulk-update-roles", userHandlers.BulkUpdateRoles)
	auth.GET("/users/:id", userHandlers.GetUser)
	auth.PUT("/users/:id", userHandlers.UpdateUser)
	auth.DELETE("/users/:id", userHandlers.DeleteUser)
	auth.POST("/users/:id/change-role", userHandlers.ChangeRole)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
}
