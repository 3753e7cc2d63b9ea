package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	loggercommon "github.com/mzaki9/Atomus-Lumea/common/logger"
	"github.com/mzaki9/Atomus-Lumea/internal/config"
	"github.com/mzaki9/Atomus-Lumea/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	logger, err := loggercommon.NewLogger(cfg.Log.Level, cfg.Log.Format, "lumea-ppg")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting lumea-ppg service",
		zap.String("version", "1.0.0"),
		zap.String("device_id", cfg.DeviceID),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("camera_source", cfg.Camera.Source),
		zap.Duration("max_duration", cfg.Session.MaxDuration),
	)

	// 创建服务
	ppgService, err := service.NewPPGService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create lumea-ppg service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 在 goroutine 中启动服务
	go func() {
		if err := ppgService.Start(ctx); err != nil {
			logger.Fatal("Failed to start lumea-ppg service", zap.Error(err))
		}
	}()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭（等待协作方上报完成）
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 35*time.Second)
	defer shutdownCancel()
	if err := ppgService.Stop(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Service stopped")
}
