package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/SlyyCooper/agenai/pkg/config"
	"github.com/SlyyCooper/agenai/pkg/contextmgr"
	"github.com/SlyyCooper/agenai/pkg/providers"
	"github.com/SlyyCooper/agenai/pkg/server"
	"github.com/SlyyCooper/agenai/pkg/session"
	"github.com/SlyyCooper/agenai/pkg/store"
	"github.com/SlyyCooper/agenai/pkg/workflow"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	ctx := context.Background()

	model, err := providers.NewGoogleModel(ctx, cfg.GoogleApiKey, cfg.SmartModel)
	if err != nil {
		log.Fatalf("Failed to init model provider: %v", err)
	}

	retrievers := []providers.Retriever{providers.NewArxivRetriever()}
	if cfg.TavilyApiKey != "" {
		retrievers = append(retrievers, providers.NewTavilyRetriever(cfg.TavilyApiKey))
	}

	var scraper providers.Scraper = providers.NewPageScraper()
	if cfg.MistralApiKey != "" {
		scraper = providers.NewOCRScraper(cfg.MistralApiKey, scraper)
	}

	embedder, err := contextmgr.NewGoogleEmbedder(ctx, cfg.GoogleApiKey, cfg.EmbeddingModel, cfg.EmbeddingDimension)
	if err != nil {
		logger.Warn("embedder unavailable, drafting without overlap dedup", "error", err)
		embedder = nil
	}

	factory := &workflow.Factory{
		Config:     cfg,
		Model:      model,
		Retrievers: retrievers,
		Scraper:    scraper,
		Logger:     logger,
	}
	if embedder != nil {
		factory.Embedder = embedder
	}

	// Persistence is optional: without DATABASE_URL the service still runs,
	// keeping reports in memory and skipping the REST report surface.
	var (
		verifier session.Verifier
		reports  *store.ReportStore
	)
	if cfg.DatabaseURL != "" {
		db, err := store.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}

		reports = store.NewReportStore(db)
		factory.Pool = db.Pool
		factory.Publisher = reports
		factory.Billing = store.NewCostLedger(db, logger)
		verifier = store.NewAPIKeyStore(db)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
		mem := store.NewMemoryPublisher()
		factory.Publisher = mem
		factory.Billing = mem
		verifier = session.NewStaticVerifier(devTokens())
	}

	sessions := session.NewManager(verifier, factory, cfg.AuthTimeout, logger)
	handler := server.NewHandler(sessions, verifier, reports, logger)

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	handler.RegisterRoutes(r)

	logger.Info("server starting", "port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// devTokens reads a fixed credential from the environment for database-less
// deployments.
func devTokens() map[string]string {
	token := os.Getenv("DEV_API_TOKEN")
	if token == "" {
		return nil
	}
	return map[string]string{token: "dev"}
}
