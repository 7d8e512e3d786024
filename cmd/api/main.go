package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tibber-insights/internal/api/handlers"
	"tibber-insights/internal/api/middleware"
	"tibber-insights/internal/baseline"
	"tibber-insights/internal/config"
	"tibber-insights/internal/data"
	"tibber-insights/internal/insight"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfgPath := os.Getenv("INSIGHTS_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := data.NewTibberClient(cfg.APIToken, "", log)

	var merger *baseline.Merger
	if cfg.Baseline.Enabled {
		store, err := data.NewRecorderStore(ctx, cfg.RecorderDatabaseURL)
		if err != nil {
			log.Error("connect recorder store", "err", err)
			os.Exit(1)
		}
		defer store.Close()

		merger = &baseline.Merger{
			History: store,
			Entity:  cfg.PriceEntity,
			Log:     log,
		}
		if cfg.Baseline.FallbackEnabled {
			merger.Fallback = client
		}
	}

	pipeline := insight.New(*cfg, client, merger, log)
	go pipeline.Run(ctx, time.Hour)

	if os.Getenv("API_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(log))
	router.Use(middleware.ErrorHandler())

	insightHandler := handlers.NewInsightHandler(pipeline)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		api.GET("/insight", insightHandler.GetInsight)
		api.GET("/insight/prices", insightHandler.GetPrices)
		api.GET("/insight/consensus", insightHandler.GetConsensus)
		api.POST("/refresh", insightHandler.TriggerRefresh)
	}

	port := os.Getenv("API_PORT")
	if port == "" {
		port = "8080"
	}
	addr := ":" + port
	log.Info("starting API server", "addr", addr)
	if err := router.Run(addr); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}
