package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/appquest/rewards-api/api/swagger"
	"github.com/appquest/rewards-api/internal/handler"
	"github.com/appquest/rewards-api/internal/middleware"
	"github.com/appquest/rewards-api/internal/models"
	"github.com/appquest/rewards-api/internal/repository"
	"github.com/appquest/rewards-api/internal/service"
	"github.com/appquest/rewards-api/pkg/cache"
	"github.com/appquest/rewards-api/pkg/config"
	"github.com/appquest/rewards-api/pkg/database"
	"github.com/appquest/rewards-api/pkg/logger"
	corsmiddleware "github.com/appquest/rewards-api/pkg/middleware/cors"
	reqidmiddleware "github.com/appquest/rewards-api/pkg/middleware/requestid"
	"github.com/appquest/rewards-api/pkg/storage"
)

// @title Rewards API
// @version 1.0.0
// @description Task and reward tracking backend with screenshot-verified submissions
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, task cache disabled", "error", err)
		redisClient = nil
	}

	store, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	metricsService := service.NewMetricsService()

	authService := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userService := service.NewUserService(userRepo, nil, logr)

	var taskService *service.TaskService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		taskService = service.NewTaskService(taskRepo, cacheRepo, cfg.Tasks.CacheTTL, metricsService, nil, logr)
	} else {
		taskService = service.NewTaskService(taskRepo, nil, cfg.Tasks.CacheTTL, metricsService, nil, logr)
	}
	submissionService := service.NewSubmissionService(submissionRepo, taskRepo, store, signer, cfg.Uploads.AllowedExtensions, logr)
	verificationService := service.NewVerificationService(submissionRepo, userRepo, metricsService, logr)
	reportService := service.NewReportService(userRepo, logr)

	authHandler := handler.NewAuthHandler(authService)
	taskHandler := handler.NewTaskHandler(taskService, submissionService)
	submissionHandler := handler.NewSubmissionHandler(submissionService, verificationService, cfg.Uploads.MaxFileSizeBytes)
	userHandler := handler.NewUserHandler(userService, submissionService)
	fileHandler := handler.NewFileHandler(store, signer)
	reportHandler := handler.NewReportHandler(reportService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	tasks := api.Group("/tasks", middleware.JWT(authService))
	{
		tasks.GET("", taskHandler.List)
		tasks.GET("/pending", taskHandler.Pending)
		tasks.GET("/:id", taskHandler.Get)
		tasks.POST("", middleware.RequireRoles(models.RoleAdmin), taskHandler.Create)
		tasks.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), taskHandler.Update)
		tasks.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), taskHandler.Delete)

		tasks.POST("/:id/submissions", submissionHandler.Create)
		tasks.GET("/:id/submissions", submissionHandler.ListForTask)
	}

	submissions := api.Group("/submissions", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin))
	{
		submissions.PATCH("/:id/verify", submissionHandler.Verify)
		submissions.PATCH("/:id", submissionHandler.Update)
	}

	users := api.Group("/users", middleware.JWT(authService))
	{
		users.GET("/me/profile", userHandler.Profile)
		users.GET("/me/completed-tasks", userHandler.CompletedTasks)

		users.GET("", middleware.RequireRoles(models.RoleAdmin), userHandler.List)
		users.POST("", middleware.RequireRoles(models.RoleAdmin), userHandler.Create)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
		users.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Update)
		users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Delete)
	}

	if cfg.Reports.Enabled {
		reports := api.Group("/reports", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin))
		reports.GET("/leaderboard", reportHandler.Leaderboard)
	}

	api.GET("/files/:token", fileHandler.Download)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
