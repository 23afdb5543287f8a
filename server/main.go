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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sharmavijay45/Infiverse-BHL-sub000/ai"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/buffer"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/config"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/database"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/monitoring"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/storage"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/zapctx"
)

func main() {
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := buildLogger(cfg.Logging.Level, cfg.Server.Mode)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx := zapctx.WithLogger(context.Background(), logger)

	db, err := database.New(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
		cfg.Database.Username,
		cfg.Database.Password,
	)
	if err != nil {
		logger.Fatal("Failed to connect to ClickHouse", zap.Error(err))
	}
	defer db.Close()

	st, err := storage.New(
		cfg.Storage.Endpoint,
		cfg.Storage.AccessKey,
		cfg.Storage.SecretKey,
		cfg.Storage.UseSSL,
		cfg.Storage.EvidenceBucket,
		cfg.Storage.PublicEndpoint,
	)
	if err != nil {
		logger.Fatal("Failed to connect to MinIO", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(registry)

	samples := buffer.NewSampleBuffer(buffer.Config{
		Sink:        db,
		FlushPeriod: cfg.Monitoring.FlushInterval(),
	})
	go samples.Start(ctx)
	defer samples.Stop()

	whitelist := monitoring.NewWhitelist(loadWhitelist(ctx, cfg.Server.WhitelistFile))
	alerts := monitoring.NewAlertFactory(cfg.Monitoring.AlertDedupWindow(), db, metrics)

	var textAI monitoring.TextClassifier
	if cfg.AI.BaseURL != "" {
		textAI = ai.NewClient(ai.Config{
			BaseURL:  cfg.AI.BaseURL,
			Model:    cfg.AI.Model,
			Token:    cfg.AI.Token,
			Timeout:  time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
			Attempts: cfg.AI.RetryAttempts,
		})
	}
	var ocr monitoring.OCREngine
	if cfg.OCR.URL != "" {
		ocr = ai.NewOCRClient(cfg.OCR.URL, cfg.OCR.TimeoutSeconds)
	}

	classifier := monitoring.NewClassifier(textAI, ocr, monitoring.NoTasks{},
		monitoring.ClassifierThresholds{
			WorkConfidence:      cfg.Monitoring.WorkConfidence,
			NonWorkConfidence:   cfg.Monitoring.NonWorkConfidence,
			UncertainConfidence: cfg.Monitoring.UncertainConfidence,
		}, metrics)

	engine := monitoring.NewEngine(monitoring.EngineConfig{
		PollInterval: cfg.Monitoring.PollInterval(),
		Activity: monitoring.ActivityConfig{
			SampleInterval:  cfg.Monitoring.SampleInterval(),
			IdleThreshold:   cfg.Monitoring.IdleThreshold(),
			LowProductivity: float64(cfg.Monitoring.LowProductivityScore),
		},
		Observer: monitoring.ObserverConfig{
			CacheTTL:        cfg.Monitoring.DetectionCacheTTL(),
			MinDelay:        cfg.Monitoring.DetectionMinDelay(),
			DailyUsageLimit: cfg.Monitoring.DailyUsageLimit(),
		},
		Violation: monitoring.ViolationConfig{
			MaxScreenshots:          cfg.Monitoring.MaxSessionScreenshots,
			Cooldown:                cfg.Monitoring.SessionCooldown(),
			HashLookback:            cfg.Monitoring.HashLookback(),
			RelevanceCloseThreshold: cfg.Monitoring.RelevanceCloseThreshold,
		},
		LegacyEnabled: cfg.Monitoring.LegacyEnabled,
	}, monitoring.Deps{
		Whitelist:  whitelist,
		Classifier: classifier,
		Capturer:   monitoring.NewCapturer(cfg.Monitoring.ScreenshotQuality),
		Evidence:   &evidenceStore{db: db, storage: st},
		Hashes:     db,
		Alerts:     alerts,
		Samples:    samples,
		Metrics:    metrics,
	})

	if cfg.Server.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))

	api := &apiServer{
		engine:    engine,
		whitelist: whitelist,
		alerts:    alerts,
		db:        db,
		storage:   st,
		registry:  registry,
	}
	api.routes(router)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		logger.Info("Server starting", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	engine.StopAll(ctx)

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server shutdown error", zap.Error(err))
	}
}

func buildLogger(level, mode string) (*zap.Logger, error) {
	var cfg zap.Config
	if mode == "prod" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = lvl
	}
	return cfg.Build()
}

// loadWhitelist reads the initial entry set. A missing file is not fatal:
// the whitelist starts empty and admins push entries over the API.
func loadWhitelist(ctx context.Context, path string) []*monitoring.WhitelistEntry {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		zapctx.Warn(ctx, "Whitelist file not loaded, starting empty",
			zap.String("path", path), zap.Error(err))
		return nil
	}
	var entries []*monitoring.WhitelistEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		zapctx.Warn(ctx, "Failed to parse whitelist file, starting empty",
			zap.String("path", path), zap.Error(err))
		return nil
	}
	zapctx.Info(ctx, "Whitelist loaded",
		zap.String("path", path), zap.Int("entries", len(entries)))
	return entries
}
