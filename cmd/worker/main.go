package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/restpay/payments/internal/application/service"
	"github.com/restpay/payments/internal/config"
	"github.com/restpay/payments/internal/domain"
	"github.com/restpay/payments/internal/infrastructure/messaging"
	sqlrepository "github.com/restpay/payments/internal/infrastructure/repository/mysql"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// subscriber is satisfied by both the Redis stream and Kafka consumers.
type subscriber interface {
	domain.EventSubscriber
	Start(ctx context.Context) error
}

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

	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logger.Fatal("failed to connect to MySQL", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	logger.Info("connected to Redis successfully")

	repos := sqlrepository.NewRepositories(db, redisClient, logger)
	notificationService := service.NewNotificationService(repos.Customer, logger)

	var eventSubscriber subscriber
	transport := "redis"
	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		kafkaSubscriber := messaging.NewKafkaEventSubscriber(
			messaging.NewKafkaReader(brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID),
			logger,
		)
		defer kafkaSubscriber.Close()
		eventSubscriber = kafkaSubscriber
		transport = "kafka"
	} else {
		hostname, _ := os.Hostname()
		consumerName := fmt.Sprintf("worker-%s-%d", hostname, os.Getpid())
		eventSubscriber = messaging.NewRedisEventSubscriber(redisClient, logger, consumerName)
	}

	for eventType, handle := range notificationService.Handlers() {
		if err := eventSubscriber.Subscribe(ctx, eventType, handle); err != nil {
			logger.Fatal("failed to subscribe to events",
				zap.String("event_type", eventType),
				zap.Error(err),
			)
		}
	}

	logger.Info("worker started", zap.String("transport", transport))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("shutting down worker...")
		cancel()
	}()

	if err := eventSubscriber.Start(ctx); err != nil {
		logger.Info("worker stopped", zap.Error(err))
	}

	logger.Info("worker exited")
}
