package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-pulse/internal/aggregator/config"
	"market-pulse/internal/aggregator/delivery/consumer"
	delivery "market-pulse/internal/aggregator/delivery/http"
	"market-pulse/internal/aggregator/repository"
	"market-pulse/internal/aggregator/scheduler"
	"market-pulse/internal/aggregator/service"
	"market-pulse/pkg/alert"
	"market-pulse/pkg/common"
	"market-pulse/pkg/logger"
	"market-pulse/pkg/postgres"
	"market-pulse/pkg/redis"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the aggregation service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Aggregation Service", zap.String("name", cfg.App.Name))

	// Initialize database
	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", zap.Error(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Initialize Redis
	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Create the consumer group if it doesn't exist
	// MKSTREAM creates the stream if it doesn't exist
	if err := redisClient.XGroupCreateMkStream(context.Background(), common.RedisStreamAggregationRun, common.RedisStreamGroup, "0").Err(); err != nil {
		if err.Error() != "BUSYGROUP Consumer Group name already exists" {
			appLogger.Fatal("Failed to create consumer group", logger.ErrorField(err))
		}
	}

	// Initialize repositories
	tickerRepo := repository.NewTickerRepository(db.DB)
	mentionRepo := repository.NewMentionRepository(db.DB)
	signalRepo := repository.NewSignalRepository(db.DB)
	priceBarRepo := repository.NewPriceBarRepository(db.DB)

	// Initialize Telegram notifier
	var notifier alert.Notifier
	if cfg.Telegram.Enabled {
		notifier, err = alert.NewTelegramClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", zap.Error(err))
		}
	}

	// Initialize aggregation pipeline
	aggregatorSvc := service.NewSignalAggregator(cfg, appLogger, tickerRepo, mentionRepo, signalRepo)
	sched := scheduler.NewScheduler(cfg, appLogger, aggregatorSvc, notifier)
	if err := sched.Start(ctx); err != nil {
		appLogger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// Initialize and start the Redis consumer for on-demand runs
	redisConsumer := consumer.NewRedisConsumer(cfg, redisClient.Client, sched, appLogger)
	redisConsumer.Start(ctx)

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	// Initialize handlers and routes
	apiV1 := e.Group("/api/v1")

	signalHandler := delivery.NewSignalHandler(signalRepo, appLogger)
	signalsGroup := apiV1.Group("/signals")
	signalHandler.RegisterRoutes(signalsGroup)

	priceHandler := delivery.NewPriceHandler(priceBarRepo, appLogger)
	pricesGroup := apiV1.Group("/prices")
	priceHandler.RegisterRoutes(pricesGroup)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the service
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down aggregation service...")
	cancel()
	redisConsumer.Stop()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Aggregation service stopped.")
}

func main() {
	rootCmd := &cobra.Command{Use: "aggregation-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-aggregator.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing aggregation-service CLI: %s\n", err)
		os.Exit(1)
	}
}
