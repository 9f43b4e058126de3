package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/crm-orders-api/api/swagger"
	"github.com/noah-isme/crm-orders-api/internal/handler"
	"github.com/noah-isme/crm-orders-api/internal/middleware"
	"github.com/noah-isme/crm-orders-api/internal/models"
	"github.com/noah-isme/crm-orders-api/internal/repository"
	"github.com/noah-isme/crm-orders-api/internal/service"
	"github.com/noah-isme/crm-orders-api/pkg/cache"
	"github.com/noah-isme/crm-orders-api/pkg/config"
	"github.com/noah-isme/crm-orders-api/pkg/database"
	"github.com/noah-isme/crm-orders-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/crm-orders-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/crm-orders-api/pkg/middleware/requestid"
)

// @title CRM Orders API
// @version 1.0.0
// @description Back-office API for the sales lead pipeline
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, statistics caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metricsService := service.NewMetricsService()

	var cacheService *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Statistics.CacheTTL, logr, cfg.Statistics.CacheEnabled)
	}

	orderRepo := repository.NewOrderRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	userRepo := repository.NewUserRepository(db)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:     cfg.JWT.Secret,
		AccessTokenExpiry:     cfg.JWT.Expiration,
		RefreshTokenExpiry:    cfg.JWT.RefreshExpiration,
		ActivationTokenExpiry: cfg.JWT.ActivationExpiration,
		Issuer:                cfg.JWT.Issuer,
	})
	orderService := service.NewOrderService(orderRepo, cacheService, logr, cfg.Export.PageSize)
	commentService := service.NewCommentService(commentRepo, orderRepo, cacheService, validate, logr)
	groupService := service.NewGroupService(groupRepo, validate, logr)
	userService := service.NewUserService(userRepo, validate, logr)
	statisticsService := service.NewStatisticsService(orderRepo, userRepo, cacheService, metricsService, logr)
	exportService := service.NewExportService(orderRepo, metricsService, logr)

	authHandler := handler.NewAuthHandler(authService)
	orderHandler := handler.NewOrderHandler(orderService, exportService)
	commentHandler := handler.NewCommentHandler(commentService)
	groupHandler := handler.NewGroupHandler(groupService)
	userHandler := handler.NewUserHandler(userService, authService)
	statisticsHandler := handler.NewStatisticsHandler(statisticsService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
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
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/activate/:token", authHandler.Activate)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	orders := api.Group("/orders", middleware.JWT(authService))
	{
		orders.GET("", orderHandler.List)
		orders.GET("/export", orderHandler.Export)
		orders.GET("/:id", orderHandler.Get)
		orders.PATCH("/:id", middleware.Audit(userRepo, models.AuditActionOrderUpdate, "orders"), orderHandler.Update)
		orders.POST("/:id/group", middleware.Audit(userRepo, models.AuditActionOrderGroup, "orders"), orderHandler.AssignGroup)
		orders.GET("/:id/comments", commentHandler.List)
		orders.POST("/:id/comments", commentHandler.Create)
	}

	groups := api.Group("/groups", middleware.JWT(authService))
	{
		groups.GET("", groupHandler.List)
		groups.POST("", groupHandler.Create)
	}

	admin := api.Group("/admin", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/users", userHandler.List)
		admin.POST("/users", userHandler.Create)
		admin.PATCH("/users/:id/ban", userHandler.Ban)
		admin.PATCH("/users/:id/unban", userHandler.Unban)
		admin.GET("/users/:id/re_token", userHandler.ActivationToken)
		admin.GET("/statistic/orders", statisticsHandler.Orders)
		admin.GET("/statistic/users/:id", statisticsHandler.Manager)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
