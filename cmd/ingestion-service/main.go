package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"market-pulse/internal/entity"
	"market-pulse/internal/ingestor/collector"
	"market-pulse/internal/ingestor/config"
	"market-pulse/internal/ingestor/delivery/consumer"
	"market-pulse/internal/ingestor/repository"
	"market-pulse/internal/ingestor/service"
	"market-pulse/pkg/common"
	"market-pulse/pkg/logger"
	"market-pulse/pkg/postgres"
	"market-pulse/pkg/redis"

	"google.golang.org/genai"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath  string
	tickersPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the ingestion service",
	Run:   runServe,
}

var seedTickersCmd = &cobra.Command{
	Use:   "seed-tickers",
	Short: "Upserts the ticker dictionary from a JSON file",
	Run:   runSeedTickers,
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

	appLogger.Info("Starting Ingestion Service", zap.String("name", cfg.App.Name))

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
	if err := redisClient.XGroupCreateMkStream(context.Background(), common.RedisStreamIngestItem, common.RedisStreamGroup, "0").Err(); err != nil {
		if err.Error() != "BUSYGROUP Consumer Group name already exists" {
			appLogger.Fatal("Failed to create consumer group", logger.ErrorField(err))
		}
	}

	// Initialize repositories
	articleRepo := repository.NewArticleRepository(db.DB)
	embedRepo := repository.NewEmbeddingRepository(db.DB)
	tickerRepo := repository.NewTickerRepository(db.DB)

	// Initialize model provider
	var modelRepo repository.ModelRepository
	switch cfg.Model.Provider {
	case "gemini":
		genAiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey: cfg.Model.APIKey,
		})
		if err != nil {
			appLogger.Fatal("Failed to initialize Gemini client", zap.Error(err))
		}
		modelRepo = repository.NewGeminiModelRepository(cfg, appLogger, genAiClient)
	case "none", "":
		appLogger.Warn("No model provider configured, sentiment and embeddings disabled")
	default:
		appLogger.Fatal("Invalid model provider specified in config", zap.String("provider", cfg.Model.Provider))
	}

	// Initialize services
	ingestSvc := service.NewIngestService(cfg, appLogger, articleRepo, embedRepo, tickerRepo, modelRepo)
	streamSvc := service.NewStreamService(redisClient.Client, ingestSvc, appLogger)

	// Initialize and start the RSS collector
	rssCollector := collector.NewRSSCollector(cfg, appLogger, redisClient.Client)
	rssCollector.Start(ctx)

	// Initialize and start the Redis consumer
	redisConsumer := consumer.NewRedisConsumer(cfg, redisClient.Client, streamSvc, ingestSvc, appLogger)
	redisConsumer.Start(ctx)

	appLogger.Info("Ingestion service started. Waiting for items...")

	// Wait for interrupt signal to gracefully shut down the service
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down ingestion service...")
	cancel()
	rssCollector.Stop()
	redisConsumer.Stop()
	appLogger.Info("Ingestion service stopped.")
}

func runSeedTickers(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	raw, err := os.ReadFile(tickersPath)
	if err != nil {
		appLogger.Fatal("Failed to read tickers file", zap.Error(err), zap.String("path", tickersPath))
	}
	var tickers []entity.Ticker
	if err := json.Unmarshal(raw, &tickers); err != nil {
		appLogger.Fatal("Failed to parse tickers file", zap.Error(err))
	}

	db, err := postgres.NewDB(postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		appLogger.Fatal("Failed to initialize database", zap.Error(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	tickerRepo := repository.NewTickerRepository(db.DB)
	ctx := context.Background()
	for i := range tickers {
		if err := tickerRepo.Upsert(ctx, &tickers[i]); err != nil {
			appLogger.Fatal("Failed to upsert ticker", zap.Error(err), zap.String("symbol", tickers[i].Symbol))
		}
	}

	appLogger.Info("Ticker dictionary seeded", zap.Int("count", len(tickers)))
}

func main() {
	rootCmd := &cobra.Command{Use: "ingestion-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-ingestor.yaml", "Path to the configuration file")
	seedTickersCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-ingestor.yaml", "Path to the configuration file")
	seedTickersCmd.Flags().StringVarP(&tickersPath, "file", "f", "configs/tickers.json", "Path to the ticker dictionary JSON file")

	rootCmd.AddCommand(serveCmd, seedTickersCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing ingestion-service CLI: %s\n", err)
		os.Exit(1)
	}
}
