package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/lumenkind/talespin/server/adapters/llm"
	"github.com/lumenkind/talespin/server/adapters/mongo"
	"github.com/lumenkind/talespin/server/adapters/pipeline"
	"github.com/lumenkind/talespin/server/adapters/stt"
	"github.com/lumenkind/talespin/server/adapters/tts"
	"github.com/lumenkind/talespin/server/domain/repositories"
	"github.com/lumenkind/talespin/server/internal/api"
	"github.com/lumenkind/talespin/server/internal/auth"
	"github.com/lumenkind/talespin/server/internal/config"
	"github.com/lumenkind/talespin/server/internal/coordinator"
	"github.com/lumenkind/talespin/server/internal/session"
	"github.com/lumenkind/talespin/server/internal/websocket"
	"github.com/lumenkind/talespin/server/usecase"
)

func main() {
	// .env is optional; the environment wins when both are set.
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.FromEnv()
	ctx := context.Background()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Provider adapters.
	llmService, err := llm.NewGeminiLLM(ctx, cfg.GeminiAPIKey, logger)
	if err != nil {
		logger.Fatal("Failed to initialize language model", zap.Error(err))
	}
	speechToText := stt.NewGoogleSpeechToText()
	textToSpeech, err := tts.NewElevenLabsTTS(tts.ElevenLabsConfig{APIKey: cfg.ElevenLabsAPIKey}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize text-to-speech", zap.Error(err))
	}

	graph := pipeline.NewGraph(speechToText, llmService, textToSpeech, logger)

	// Transcript archival is optional; without Mongo, teardown just drops the
	// conversation.
	var archive repositories.TranscriptArchive
	var mongoClient *mongo.Client
	if cfg.MongoURI != "" {
		mongoClient, err = mongo.NewClient(cfg.MongoURI, "talespin", logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		archive = mongo.NewTranscriptArchive(mongoClient.Database)
	}

	store := session.NewStore()
	coord := coordinator.New(graph, coordinator.Options{
		InterruptionAware: cfg.InterruptionAware,
		Classifier: coordinator.Classifier{
			HardCodes:      cfg.HardErrorCodes,
			HardSubstrings: cfg.HardErrorSubstrings,
			SoftSubstrings: cfg.SoftErrorSubstrings,
		},
	}, logger)
	lifecycle := usecase.NewLifecycle(store, graph, coord, archive, cfg, logger)
	lifecycle.Warmup(ctx)

	hub := websocket.NewHub(coord, lifecycle, logger)
	authManager := auth.NewManager(cfg.JWTSecret)
	api.NewHandler(lifecycle, hub, authManager, logger).Register(e)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()
	logger.Info("Server started", zap.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	lifecycle.Shutdown(shutdownCtx)
	if mongoClient != nil {
		if err := mongoClient.Close(shutdownCtx); err != nil {
			logger.Warn("Failed to close MongoDB client", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
