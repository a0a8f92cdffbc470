package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/anyhowai/moveout/internal/api/handlers"
	"github.com/anyhowai/moveout/internal/api/middleware"
	"github.com/anyhowai/moveout/internal/captcha"
	"github.com/anyhowai/moveout/internal/config"
	"github.com/anyhowai/moveout/internal/services"
	"github.com/anyhowai/moveout/internal/storage"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient handlers.IAsynqClient, configSvc services.IConfigService) *gin.Engine {
	// Initialize services needed by API handlers.
	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}
	itemService := services.NewItemService(db, cfg, s3StorageService)
	ratingService := services.NewRatingService(db.Client(), db, cfg, rdb)
	favoriteService := services.NewFavoriteService(db)
	reportService := services.NewReportService(db)
	messageService := services.NewMessageService(db)
	userService := services.NewUserService(db)

	// Initialize Captcha Verifier
	captchaVerifier := captcha.NewTurnstileVerifier(cfg)

	r := gin.Default()

	// Initialize Middleware
	rateLimiter := middleware.NewRateLimiterMiddleware(cfg, configSvc)

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.CaptchaMiddleware(cfg, captchaVerifier))
	r.Use(rateLimiter.Limit())
	r.Use(middleware.OptionalAuthMiddleware(cfg.JwtSecret))

	// Initialize handlers
	itemHandler := handlers.NewRestItemHandler(itemService, s3StorageService, taskClient)
	ratingHandler := handlers.NewRestRatingHandler(ratingService)
	favoriteHandler := handlers.NewRestFavoriteHandler(favoriteService)
	reportHandler := handlers.NewRestReportHandler(reportService, userService, taskClient)
	messageHandler := handlers.NewRestMessageHandler(messageService)
	userHandler := handlers.NewRestUserHandler(userService)
	configHandler := handlers.NewRestConfigHandler(configSvc)

	v1 := r.Group("/v1")
	{
		v1.GET("/config", configHandler.GetPublicConfig)

		// Item routes. The fixed segments must be registered before /:id.
		v1.GET("/items", itemHandler.ListItems)
		v1.GET("/items/bulk", itemHandler.GetItemsBulk)
		v1.POST("/items/expire", itemHandler.ExpireItems)
		v1.GET("/items/expire", itemHandler.CheckExpireItems)
		v1.GET("/items/:id", itemHandler.GetItemByID)
		v1.POST("/items", itemHandler.CreateItem)
		v1.PUT("/items/:id", itemHandler.UpdateItem)
		v1.PATCH("/items/:id", itemHandler.ChangeItemStatus)
		v1.DELETE("/items/:id", itemHandler.DeleteItem)
		v1.POST("/items/:id/photo-upload-url", itemHandler.PhotoUploadURL)
		v1.POST("/items/:id/photo", itemHandler.ConfirmPhoto)

		// Rating routes
		v1.GET("/ratings", ratingHandler.ListRatings)
		v1.POST("/ratings", ratingHandler.CreateRating)

		// User routes
		v1.GET("/users/:id", userHandler.GetUserByID)
		v1.GET("/users/:id/reputation", ratingHandler.GetReputation)
		v1.PUT("/users/:id/preferences", userHandler.UpdatePreferences)

		// Favorite routes
		v1.GET("/favorites", favoriteHandler.ListFavorites)
		v1.POST("/favorites", favoriteHandler.AddFavorite)
		v1.DELETE("/favorites", favoriteHandler.RemoveFavorite)

		// Report routes
		v1.GET("/reports", reportHandler.ListReports)
		v1.POST("/reports", reportHandler.CreateReport)

		// Message routes
		v1.GET("/messages", messageHandler.ListMessages)
		v1.POST("/messages", messageHandler.SendMessage)
		v1.POST("/messages/read", messageHandler.MarkThreadRead)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Admin routes (rate limiting already applied globally)
		adminRequired := v1.Group("/admin")
		adminRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.AdminMiddleware())
		{
			adminRequired.PATCH("/reports/:id", reportHandler.UpdateReportStatus)
		}
	}

	return r
}
