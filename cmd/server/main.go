package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/T-Rylander/unifi-edtech-stack/internal/audit"
	"github.com/T-Rylander/unifi-edtech-stack/internal/config"
	"github.com/T-Rylander/unifi-edtech-stack/internal/handler"
	"github.com/T-Rylander/unifi-edtech-stack/internal/listener"
	"github.com/T-Rylander/unifi-edtech-stack/internal/middleware"
	"github.com/T-Rylander/unifi-edtech-stack/internal/ollama"
	"github.com/T-Rylander/unifi-edtech-stack/internal/server"
	"github.com/T-Rylander/unifi-edtech-stack/internal/service"
)

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting AI VLAN Manager...", zap.String("version", handler.APIVersion))

	// Load configuration
	cfg, err := config.LoadConfig("configs/config.yml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Rebuild the logger at the configured level
	logger = newLogger(cfg.Log.Level)
	defer logger.Sync()

	if cfg.API.Key == "" {
		logger.Warn("API_KEY not set - authentication disabled (INSECURE)")
	}

	logger.Info("Configuration loaded",
		zap.String("ollama_host", cfg.Ollama.Host),
		zap.String("ollama_model", cfg.Ollama.Model),
		zap.String("rate_limit", cfg.RateLimit))

	// Initialize Ollama client
	ollamaClient := ollama.NewClient(cfg.Ollama.Host, cfg.Ollama.Model,
		time.Duration(cfg.Ollama.TimeoutSeconds)*time.Second, logger)

	// Initialize audit log and suggestion service
	auditLog := audit.NewFileLogger(cfg.AuditLog, logger)
	suggester := service.NewSuggester(ollamaClient, auditLog, logger)

	// Dormant UniFi listener
	vlanListener := listener.New(cfg.UniFi.Host, cfg.UniFi.Username, cfg.UniFi.Password,
		time.Duration(cfg.UniFi.PollIntervalSeconds)*time.Second, logger)

	apiHandler := handler.New(suggester, ollamaClient, vlanListener, logger)

	limit, burst, err := config.ParseRateLimit(cfg.RateLimit)
	if err != nil {
		logger.Fatal("Invalid rate limit", zap.Error(err))
	}
	limiter := middleware.NewClientLimiter(limit, burst)

	// Setup server
	gin.SetMode(gin.ReleaseMode)
	srv := server.NewServer(apiHandler, cfg.API.Key, limiter, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go vlanListener.Run(ctx)

	if err := srv.Run(ctx, fmt.Sprintf(":%s", cfg.Server.Port)); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := zapConfig.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
