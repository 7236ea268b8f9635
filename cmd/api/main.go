package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/restpay/payments/internal/config"
	"github.com/restpay/payments/internal/domain"
	_ "github.com/restpay/payments/internal/infrastructure/gateway/dummy"
	_ "github.com/restpay/payments/internal/infrastructure/gateway/stripe"
	"github.com/restpay/payments/internal/infrastructure/messaging"
	"github.com/restpay/payments/internal/infrastructure/persistence"
	sqlrepository "github.com/restpay/payments/internal/infrastructure/repository/mysql"
	"github.com/restpay/payments/internal/integration"
	"github.com/restpay/payments/internal/interface/http/handler"
	"github.com/restpay/payments/internal/interface/http/router"
	"github.com/restpay/payments/internal/metrics"
	"github.com/restpay/payments/internal/settings"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	paymentSettings := settings.New(cfg.Payments, integration.Default, settings.WithLogger(logger))
	if err := paymentSettings.Check(); err != nil {
		logger.Fatal("invalid payment settings", zap.Error(err))
	}
	if paymentSettings.RegisterModelAdmins() {
		logger.Info("model admin registration requested; this service exposes no admin surface")
	}

	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logger.Fatal("failed to connect to MySQL", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("failed to get underlying sql.DB", zap.Error(err))
	}
	defer sqlDB.Close()

	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx := context.Background()
	if err := sqlDB.PingContext(ctx); err != nil {
		logger.Fatal("MySQL ping failed", zap.Error(err))
	}

	if err := db.AutoMigrate(persistence.AllModels()...); err != nil {
		logger.Fatal("failed to auto-migrate schemas", zap.Error(err))
	}

	logger.Info("connected to MySQL successfully", zap.String("host", cfg.MySQL.Host))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	logger.Info("connected to Redis successfully")

	repos := sqlrepository.NewRepositories(db, redisClient, logger)

	var eventPublisher domain.EventPublisher = messaging.NewRedisEventPublisher(redisClient, logger)
	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		kafkaPublisher := messaging.NewKafkaEventPublisher(messaging.NewKafkaWriter(brokers, cfg.Kafka.Topic), logger)
		defer kafkaPublisher.Close()

		eventPublisher = messaging.MultiPublisher{eventPublisher, kafkaPublisher}
		logger.Info("kafka publishing enabled",
			zap.Strings("brokers", brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}
	logger.Info("event publishing enabled")

	metrics.Setup(cfg.Metrics, logger)

	handlers := handler.NewHandlers(repos, paymentSettings, eventPublisher, logger)
	r := router.NewRouter(handlers, logger)

	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("address", serverAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}
