// Gradeflow orchestrator worker - claims queued tasks and runs the
// ingest/OCR/segmentation/evaluation pipeline against a PostgreSQL-backed
// task queue.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/gradeflow/gradeflow/pkg/agent"
	"github.com/gradeflow/gradeflow/pkg/config"
	"github.com/gradeflow/gradeflow/pkg/database"
	"github.com/gradeflow/gradeflow/pkg/llmgateway"
	"github.com/gradeflow/gradeflow/pkg/ocr"
	"github.com/gradeflow/gradeflow/pkg/orchestrator"
	"github.com/gradeflow/gradeflow/pkg/queue"
	"github.com/gradeflow/gradeflow/pkg/segmenter"
	"github.com/gradeflow/gradeflow/pkg/storage"
)

// budgetCounterTTL bounds how long an abandoned run's Redis token counter
// lingers before expiring, well past any single evaluation's runtime.
const budgetCounterTTL = 24 * time.Hour

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	podID := flag.String("pod-id", getEnv("POD_ID", "gradeflow-worker"), "Identifier for this worker process, used for task-claim attribution")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: could not load %s: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}
	stats := cfg.Stats()
	logger.Info("configuration loaded", "llm_providers", stats.LLMProviders)

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logger.Error("error closing database client", "error", err)
		}
	}()
	logger.Info("connected to PostgreSQL database")

	llmProvider, err := cfg.GetLLMProvider(cfg.Defaults.LLMProvider)
	if err != nil {
		log.Fatalf("failed to resolve default LLM provider %q: %v", cfg.Defaults.LLMProvider, err)
	}

	gateway, err := llmgateway.NewGRPCGateway(getEnv("LLM_GATEWAY_ADDR", "localhost:50051"))
	if err != nil {
		log.Fatalf("failed to dial LLM gateway: %v", err)
	}
	defer func() {
		if err := gateway.Close(); err != nil {
			logger.Error("error closing LLM gateway connection", "error", err)
		}
	}()

	storageRoot := getEnv("STORAGE_ROOT", "./data/scripts")
	signKey := []byte(getEnv("STORAGE_SIGN_KEY", "dev-signing-key-change-me"))
	storageProvider, err := storage.NewFilesystemProvider(storageRoot, getEnv("STORAGE_PUBLIC_URL", "http://localhost:8080/files"), signKey)
	if err != nil {
		log.Fatalf("failed to initialize storage provider: %v", err)
	}

	rasterizer := ocr.NewStdlibRasterizer()
	ocrProvider := ocr.NewProvider(gateway, rasterizer, llmProvider, cfg.Defaults.OCRPageLimit)
	seg := segmenter.NewSegmenter(gateway, llmProvider, cfg.Defaults.MaxRepairAttempts)

	redisOpts, err := redis.ParseURL(getEnv("REDIS_URL", "redis://localhost:6379/0"))
	if err != nil {
		log.Fatalf("failed to parse REDIS_URL: %v", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("error closing redis client", "error", err)
		}
	}()
	budget := llmgateway.NewBudgetTracker(redisClient, budgetCounterTTL)

	runtime := agent.NewRuntime(gateway, cfg.Defaults.MaxRepairAttempts, cfg.Defaults.Temperature)
	deps := &orchestrator.Deps{
		Client:             dbClient.Client,
		Storage:            storageProvider,
		OCR:                ocrProvider,
		Segmenter:          seg,
		RubricGrounding:    agent.NewRubricGroundingAgent(runtime, llmProvider),
		Scoring:            agent.NewScoringAgent(runtime, llmProvider),
		Consistency:        agent.NewConsistencyAgent(runtime, llmProvider),
		Feedback:           agent.NewFeedbackAgent(runtime, llmProvider),
		Explainability:     agent.NewExplainabilityAgent(runtime, llmProvider),
		ScoringConcurrency: cfg.Defaults.ScoringConcurrencyCap,
		PageLimit:          cfg.Defaults.OCRPageLimit,
		Budget:             budget,
		TokenBudgetPerRun:  cfg.Defaults.TokenBudgetPerEvaluation,
	}
	dispatcher := orchestrator.NewDispatcher(deps, logger)

	defaultPool := queue.NewWorkerPool(*podID, "default", dbClient.Client, cfg.Queue, dispatcher)
	ocrPool := queue.NewWorkerPool(*podID, "ocr", dbClient.Client, cfg.Queue, dispatcher)
	evalPool := queue.NewWorkerPool(*podID, "evaluation", dbClient.Client, cfg.Queue, dispatcher)

	if err := defaultPool.Start(ctx); err != nil {
		log.Fatalf("failed to start default worker pool: %v", err)
	}
	if err := ocrPool.Start(ctx); err != nil {
		log.Fatalf("failed to start ocr worker pool: %v", err)
	}
	if err := evalPool.Start(ctx); err != nil {
		log.Fatalf("failed to start evaluation worker pool: %v", err)
	}
	logger.Info("worker pools started", "pod_id", *podID, "queues", []string{"default", "ocr", "evaluation"})

	<-ctx.Done()
	logger.Info("shutdown signal received, draining worker pools")
	defaultPool.Stop()
	ocrPool.Stop()
	evalPool.Stop()
	logger.Info("shutdown complete")
}
