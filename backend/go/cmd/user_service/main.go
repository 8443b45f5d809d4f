package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"IntentCode/backend/go/internal/auth"
	"IntentCode/backend/go/internal/config"
	"IntentCode/backend/go/internal/database/mysql"
	"IntentCode/backend/go/internal/discovery/etcd"
	"IntentCode/backend/go/internal/models"
	"IntentCode/backend/go/internal/user_service/api"
	"IntentCode/backend/go/internal/user_service/service"
	"IntentCode/backend/go/internal/user_service/store"
	httpserver "IntentCode/backend/go/pkg/http"
	"IntentCode/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := os.Getenv("INTENTCODE_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.New("user_service", "", "").WithErr(err).Fatal("failed to load configuration")
	}

	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	appLogger := logger.New("user_service", "", "")
	appLogger.Info("Logger initialized")

	db, err := mysql.GetDB(&cfg.Databases.MySQL)
	if err != nil {
		appLogger.WithErr(err).Fatal("Failed to connect to MySQL")
	}
	appLogger.Info("Database connection established")

	if err := mysql.Migrate(db, &models.User{}); err != nil {
		appLogger.WithErr(err).Fatal("Database migration failed")
	}
	appLogger.Info("Database migration completed")

	// Store -> Service -> Handler
	issuer := auth.NewIssuer(cfg.Auth.JwtSecret, time.Duration(cfg.Auth.TokenTTL)*time.Second)
	userService := service.NewService(store.NewStore(db), issuer, appLogger)
	apiHandler := api.NewHandler(userService)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/readyz", func(c *gin.Context) {
		if err := mysql.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api.RegisterRoutes(router, apiHandler, cfg.Auth.JwtSecret)

	srv, err := httpserver.NewServer(cfg,
		httpserver.WithAddress(cfg.Server.UserAddress),
		httpserver.WithLogger(appLogger))
	if err != nil {
		appLogger.WithErr(err).Fatal("Failed to create HTTP server")
	}
	srv.Handle("/", router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(cfg.Databases.Etcd.Endpoints) > 0 {
		discovery, err := etcd.NewServiceDiscovery(cfg.Databases.Etcd.Endpoints, cfg.Databases.Etcd.Username, cfg.Databases.Etcd.Password)
		if err != nil {
			appLogger.WithErr(err).Fatal("Failed to connect to etcd")
		}
		defer discovery.Close()
		if err := discovery.Register(ctx, "user_service", cfg.Server.UserAddress, cfg.Databases.Etcd.LeaseTTL); err != nil {
			appLogger.WithErr(err).Error("Service registration failed")
		}
	}

	if err := srv.Run(ctx); err != nil {
		appLogger.WithErr(err).Error("Server stopped with error")
	}

	if err := mysql.Close(); err != nil {
		appLogger.WithErr(err).Error("Error closing MySQL")
	}
	appLogger.Info("Server gracefully stopped")
}
