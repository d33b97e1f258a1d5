package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"kpiengine/clients"
	"kpiengine/config"
	"kpiengine/database"
	"kpiengine/handlers"
	"kpiengine/logger"
	repository "kpiengine/repositories"
	routes "kpiengine/routes"
	services "kpiengine/services"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on process environment")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal("Configuration error: ", err)
	}
	engineCfg, err := config.LoadEngine("engine.yaml")
	if err != nil {
		log.Fatal("Engine configuration error: ", err)
	}

	zlog, err := logger.New(cfg.Mode)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer zlog.Sync()

	// Connect to MongoDB and verify the connection before serving.
	clientOptions := options.Client().ApplyURI(cfg.MongoURI())
	client, err := mongo.Connect(context.TODO(), clientOptions)
	if err != nil {
		zlog.Fatal("Failed to connect to MongoDB", "error", err)
	}
	defer func() {
		if err = client.Disconnect(context.TODO()); err != nil {
			zlog.Error("Failed to disconnect from MongoDB", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx, nil); err != nil {
		zlog.Fatal("Failed to ping MongoDB", "error", err)
	}
	zlog.Info("Connected to MongoDB", "database", cfg.MongoDatabase)

	db := client.Database(cfg.MongoDatabase)
	if err := database.CreateIndexes(db); err != nil {
		zlog.Warn("Index bootstrap failed", "error", err)
	}

	// Repositories
	kpiRepo := repository.NewKPIRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	rollupRepo := repository.NewRollupRepository(db)
	alertRepo := repository.NewAlertRepository(db)

	// Collaborator clients. Each degrades gracefully when unconfigured.
	var dedup clients.DedupStore
	if cfg.RedisAddr != "" {
		dedup, err = clients.NewRedisDedup(cfg.RedisAddr)
		if err != nil {
			zlog.Fatal("Failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
		}
		zlog.Info("Alert dedup backed by redis", "addr", cfg.RedisAddr)
	} else {
		dedup = clients.NewMemoryDedup()
		zlog.Warn("REDIS_ADDR unset, alert dedup is process-local")
	}

	notifier := clients.NewNoopNotifier()
	if cfg.NotifierURL != "" {
		notifier = clients.NewWebhookNotifier(cfg.NotifierURL)
	}
	var scorer clients.RiskScorer
	if cfg.PredictorURL != "" {
		scorer = clients.NewHTTPRiskScorer(cfg.PredictorURL)
	}

	// Services
	kpiService := services.NewKPIService(kpiRepo, rollupRepo, zlog)
	ledgerService := services.NewLedgerService(kpiRepo, progressRepo, zlog)
	rollupService := services.NewRollupService(kpiRepo, rollupRepo, zlog)
	alertService := services.NewAlertService(alertRepo, kpiRepo, dedup, notifier, engineCfg, zlog)
	predictionService := services.NewPredictionService(scorer, kpiRepo, zlog)
	verificationService := services.NewVerificationService(kpiRepo, progressRepo, rollupService, alertService, predictionService, engineCfg, zlog)
	ingestService := services.NewIngestService(kpiRepo, progressRepo, ledgerService, engineCfg, zlog)

	mux := routes.Setup(routes.Handlers{
		KPI:      handlers.NewKPIHandler(kpiService),
		Progress: handlers.NewProgressHandler(ledgerService, verificationService),
		Rollup:   handlers.NewRollupHandler(rollupService),
		Ingest:   handlers.NewIngestHandler(ingestService),
		Alert:    handlers.NewAlertHandler(alertRepo),
	}, cfg.JWTSecret)

	zlog.Info("Server starting", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, mux); err != nil {
		zlog.Fatal("Server stopped", "error", err)
	}
}
