package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cinescout/cinescout/internal/agent"
	"github.com/cinescout/cinescout/internal/catalog"
	"github.com/cinescout/cinescout/internal/config"
	"github.com/cinescout/cinescout/internal/llm"
	"github.com/cinescout/cinescout/internal/logger"
	"github.com/cinescout/cinescout/internal/metrics"
	"github.com/cinescout/cinescout/internal/server"
	"github.com/cinescout/cinescout/internal/tools"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig

	log := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))

	log.Info("setting gin mode", slog.String("mode", cfg.GinMode))
	gin.SetMode(cfg.GinMode)

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	catalogClient := catalog.NewClient(cfg.CatalogBaseURL, cfg.CatalogBearerToken, log)

	toolRegistry := tools.NewRegistry()
	for _, tool := range []tools.Tool{
		tools.NewMovieTitleSearchTool(catalogClient, log),
		tools.NewTVTitleSearchTool(catalogClient, log),
		tools.NewDiscoverMoviesTool(catalogClient, cfg.MovieGenres, log),
		tools.NewDiscoverTVShowsTool(catalogClient, cfg.TVGenres, log),
		tools.NewPersonSearchTool(catalogClient, log),
		tools.NewCompletePhaseTool(log),
	} {
		if err := toolRegistry.Register(tool); err != nil {
			log.Error("failed to register tool", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	log.Info("registered agent tools", slog.Any("tools", toolRegistry.List()))

	model := llm.NewClient(llm.Config{
		APIKey:       cfg.OpenAIAPIKey,
		BaseURL:      cfg.OpenAIBaseURL,
		Model:        cfg.Agent.Model,
		Temperature:  cfg.Agent.Temperature,
		RetryBackoff: time.Duration(cfg.Agent.RetryBackoffMillis) * time.Millisecond,
		Logger:       log,
	})

	orchestrator := agent.New(model, toolRegistry, agent.Config{
		Phase1MaxTurns: cfg.Agent.Phase1MaxTurns,
		MaxTurns:       cfg.Agent.MaxTurns,
		Timeout:        time.Duration(cfg.Agent.RequestTimeoutSecs) * time.Second,
		ToolTimeout:    time.Duration(cfg.Agent.ToolTimeoutSeconds) * time.Second,
		MaxResults:     cfg.Agent.MaxResults,
	}, log)

	handler := server.NewHandler(orchestrator, server.Options{
		SupportedLocales: cfg.SupportedLocales,
		DefaultLocale:    cfg.DefaultLocale,
		StreamTimeout:    time.Duration(cfg.Agent.StreamTimeoutSecs) * time.Second,
	}, log)

	router := server.NewRouter(handler, cfg.RefererAllowList, registry, log)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info("search server listening", slog.String("addr", addr), slog.String("model", cfg.Agent.Model))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("server exited")
}
