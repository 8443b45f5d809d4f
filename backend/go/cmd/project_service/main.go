package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"IntentCode/backend/go/internal/config"
	"IntentCode/backend/go/internal/database/kafka"
	"IntentCode/backend/go/internal/database/minio"
	"IntentCode/backend/go/internal/database/mongo"
	"IntentCode/backend/go/internal/database/mysql"
	"IntentCode/backend/go/internal/database/redis"
	"IntentCode/backend/go/internal/discovery/etcd"
	"IntentCode/backend/go/internal/project_service/api"
	"IntentCode/backend/go/internal/project_service/demo"
	"IntentCode/backend/go/internal/project_service/export"
	"IntentCode/backend/go/internal/project_service/intention"
	"IntentCode/backend/go/internal/project_service/lock"
	"IntentCode/backend/go/internal/project_service/reconcile"
	"IntentCode/backend/go/internal/project_service/service"
	"IntentCode/backend/go/internal/project_service/store"
	"IntentCode/backend/go/pkg/circuitbreaker"
	httpserver "IntentCode/backend/go/pkg/http"
	"IntentCode/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const serviceName = "project_service"

func main() {
	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		logger.New(serviceName, "", "").WithErr(err).Fatal("Failed to load configuration")
	}

	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	serviceLogger := logger.New(serviceName, "", "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	projectStore := newProjectStore(cfg, serviceLogger)
	locker := newLocker(cfg, serviceLogger)
	engine := reconcile.NewEngine(projectStore, locker, serviceLogger)

	classifier, err := demo.NewClassifier(cfg.Projects.Demo)
	if err != nil {
		serviceLogger.WithErr(err).Fatal("Invalid demo identity patterns")
	}

	handoff, intentions := newHandoff(ctx, cfg, serviceLogger)
	hub := api.NewHub(serviceLogger)

	deps := service.Deps{
		Store:      projectStore,
		Syncer:     engine,
		Classifier: classifier,
		Notifier:   hub,
		Logger:     serviceLogger,
	}
	if handoff != nil {
		deps.Intentions = handoff
	}
	sessionTTL := config.MustDuration(cfg.Projects.Sessions.TTL)
	registry, err := service.NewRegistry(cfg.Projects.Sessions.Capacity, sessionTTL, func() *service.Container {
		return service.NewContainer(deps)
	})
	if err != nil {
		serviceLogger.WithErr(err).Fatal("Failed to create session registry")
	}

	opts := api.Options{Hub: hub}
	if handoff != nil {
		opts.Intentions = handoff
	}
	if exporter := newExporter(cfg, serviceLogger); exporter != nil {
		opts.Exporter = exporter
	}
	opts.Checks = readinessChecks(cfg, handoff != nil, opts.Exporter != nil)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	api.RegisterRoutes(router, api.NewAPI(registry, opts, serviceLogger), cfg.Auth.JwtSecret)

	srv, err := httpserver.NewServer(cfg,
		httpserver.WithAddress(cfg.Server.ProjectAddress),
		httpserver.WithLogger(serviceLogger))
	if err != nil {
		serviceLogger.WithErr(err).Fatal("Failed to create HTTP server")
	}
	srv.Handle("/", router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		registry.Run(gctx, sessionTTL/2)
		return nil
	})
	if intentions != nil && cfg.Projects.Intentions.Results != "" {
		consumer := intention.NewResultConsumer(cfg.Databases.Kafka.Brokers,
			cfg.Projects.Intentions.Results, cfg.Projects.Intentions.GroupID, serviceLogger)
		defer consumer.Close()
		results := intention.NewResultHandler(intentions, engine, registry, hub, serviceLogger)
		g.Go(func() error {
			return consumer.Run(gctx, results.HandleMessage)
		})
	}
	if len(cfg.Databases.Etcd.Endpoints) > 0 {
		discovery, err := etcd.NewServiceDiscovery(cfg.Databases.Etcd.Endpoints, cfg.Databases.Etcd.Username, cfg.Databases.Etcd.Password)
		if err != nil {
			serviceLogger.WithErr(err).Fatal("Failed to connect to etcd")
		}
		defer discovery.Close()
		g.Go(func() error {
			return discovery.Register(gctx, serviceName, cfg.Server.ProjectAddress, cfg.Databases.Etcd.LeaseTTL)
		})
	}

	if err := g.Wait(); err != nil {
		serviceLogger.WithErr(err).Error("Server stopped with error")
	}

	serviceLogger.Info("Shutting down server...")
	hub.Close()
	shutdown(cfg, serviceLogger)
	serviceLogger.Info("Server gracefully stopped")
}

func configPath() string {
	if p := os.Getenv("INTENTCODE_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

// newProjectStore 连接 MySQL；未配置地址时退回内存存储，仅用于本地开发。
func newProjectStore(cfg *config.AppConfig, log *logger.Logger) store.ProjectStore {
	if cfg.Databases.MySQL.Address == "" {
		log.Warn("MySQL is not configured, projects are kept in memory")
		return store.NewMemoryStore(log)
	}

	db, err := mysql.GetDB(&cfg.Databases.MySQL)
	if err != nil {
		log.WithErr(err).Fatal("Failed to connect to MySQL")
	}
	if err := mysql.Migrate(db, store.Models()...); err != nil {
		log.WithErr(err).Fatal("Database migration failed")
	}
	log.Info("Database connection established")

	var s store.ProjectStore = store.NewGormStore(db, log)
	if cb := cfg.Middleware.CircuitBreaker; cb.Enabled {
		s = store.NewBreakerStore(s, circuitbreaker.Settings{
			FailureThreshold: cb.FailureThreshold,
			SuccessThreshold: cb.SuccessThreshold,
			Timeout:          config.MustDuration(cb.Timeout),
		})
	}
	return s
}

func newLocker(cfg *config.AppConfig, log *logger.Logger) lock.Locker {
	if cfg.Projects.Lock.Backend != "redis" {
		return lock.NewLocalLocker()
	}
	client, err := redis.GetClient(&cfg.Databases.Redis)
	if err != nil {
		log.WithErr(err).Fatal("Failed to connect to Redis")
	}
	log.Info("Using Redis project locks")
	return lock.NewRedisLocker(client,
		config.MustDuration(cfg.Projects.Lock.TTL),
		config.MustDuration(cfg.Projects.Lock.Wait),
		log)
}

// newHandoff 需要 MongoDB 和 Kafka 同时可用，否则意图只保存在项目的知识上下文中。
func newHandoff(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) (*intention.Handoff, intention.Store) {
	if cfg.Databases.MongoDB.Address == "" || len(cfg.Databases.Kafka.Brokers) == 0 {
		log.Warn("MongoDB or Kafka is not configured, intention hand-off is disabled")
		return nil, nil
	}

	db, err := mongo.Database(&cfg.Databases.MongoDB)
	if err != nil {
		log.WithErr(err).Fatal("Failed to connect to MongoDB")
	}
	records := intention.NewMongoStore(db, cfg.Projects.Intentions.Collection)
	indexCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := records.EnsureIndexes(indexCtx); err != nil {
		log.WithErr(err).Warn("Failed to create intention indexes")
	}

	kafkaCfg := cfg.Databases.Kafka
	kafkaCfg.Topics = append(kafkaCfg.Topics, cfg.Projects.Intentions.Topic)
	if cfg.Projects.Intentions.Results != "" {
		kafkaCfg.Topics = append(kafkaCfg.Topics, cfg.Projects.Intentions.Results)
	}
	kc, err := kafka.GetClient(&kafkaCfg)
	if err != nil {
		log.WithErr(err).Fatal("Failed to connect to Kafka")
	}
	return intention.NewHandoff(records, intention.NewKafkaPublisher(kc.Writer, cfg.Projects.Intentions.Topic), log), records
}

func newExporter(cfg *config.AppConfig, log *logger.Logger) *export.Exporter {
	if cfg.Databases.MinIO.Endpoint == "" {
		log.Warn("MinIO is not configured, presigned export is disabled")
		return nil
	}
	client, err := minio.GetClient(&cfg.Databases.MinIO)
	if err != nil {
		log.WithErr(err).Fatal("Failed to connect to MinIO")
	}
	uploader := export.NewMinioUploader(client, cfg.Databases.MinIO.Bucket)
	return export.NewExporter(uploader, config.MustDuration(cfg.Projects.Export.URLTTL))
}

// readinessChecks 只探测实际启用的后端。
func readinessChecks(cfg *config.AppConfig, handoff, exporter bool) map[string]api.Check {
	checks := map[string]api.Check{}
	if cfg.Databases.MySQL.Address != "" {
		checks["mysql"] = mysql.HealthCheck
	}
	if cfg.Projects.Lock.Backend == "redis" {
		checks["redis"] = redis.HealthCheck
	}
	if handoff {
		checks["mongodb"] = mongo.HealthCheck
		if kc, err := kafka.GetClient(&cfg.Databases.Kafka); err == nil {
			checks["kafka"] = kc.HealthCheck
		}
	}
	if exporter {
		checks["minio"] = minio.HealthCheck
	}
	return checks
}

func shutdown(cfg *config.AppConfig, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if cfg.Databases.MySQL.Address != "" {
		if err := mysql.Close(); err != nil {
			log.WithErr(err).Error("Error closing MySQL")
		}
	}
	if cfg.Projects.Lock.Backend == "redis" {
		if err := redis.Close(); err != nil {
			log.WithErr(err).Error("Error closing Redis")
		}
	}
	if cfg.Databases.MongoDB.Address != "" && len(cfg.Databases.Kafka.Brokers) > 0 {
		if kc, err := kafka.GetClient(&cfg.Databases.Kafka); err == nil {
			if err := kc.Close(); err != nil {
				log.WithErr(err).Error("Error closing Kafka client")
			}
		}
		if err := mongo.Close(ctx); err != nil {
			log.WithErr(err).Error("Error disconnecting from MongoDB")
		}
	}
}
