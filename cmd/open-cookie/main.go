package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/4bhiy23/open-cookie/internal/activity"
	"github.com/4bhiy23/open-cookie/internal/app"
	"github.com/4bhiy23/open-cookie/internal/config"
	"github.com/4bhiy23/open-cookie/internal/crawl"
	"github.com/4bhiy23/open-cookie/internal/githubapi"
	"github.com/4bhiy23/open-cookie/internal/metrics"
	"github.com/4bhiy23/open-cookie/internal/report"
	"github.com/4bhiy23/open-cookie/internal/telemetry"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "open-cookie: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	var configPath string
	flag.StringVar(&configPath, "config", "config/local.yaml", "path to YAML config file")
	flag.Parse()

	configFile, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer func() {
		_ = configFile.Close()
	}()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = zap.NewAtomicLevelAt(logLevel(cfg.Server.LogLevel))
	logger, err := loggerConfig.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	telemetryRuntime, err := telemetry.Setup(telemetry.Config{
		Enabled:          cfg.Telemetry.OTELEnabled,
		ServiceName:      "open-cookie",
		TraceMode:        cfg.Telemetry.OTELTraceMode,
		TraceSampleRatio: cfg.Telemetry.OTELTraceSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetryRuntime.Shutdown(shutdownCtx)
	}()

	runtime, err := buildRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = runtime.Close()
	}()

	server := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           runtime.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	rootCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go runCacheGC(rootCtx, runtime, cfg.Store.TTL)

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.ListenAddr))
		if serveErr := server.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			serverErrCh <- serveErr
		}
		close(serverErrCh)
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case serveErr := <-serverErrCh:
		if serveErr != nil {
			return fmt.Errorf("http server failed: %w", serveErr)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func buildRuntime(cfg *config.Config, logger *zap.Logger) (*app.Runtime, error) {
	httpClient, err := githubapi.NewAuthenticatedHTTPClient(githubapi.AuthConfig{
		Mode:           cfg.GitHub.AuthMode,
		Token:          cfg.GitHub.Token,
		AppID:          cfg.GitHub.AppID,
		InstallationID: cfg.GitHub.InstallationID,
		PrivateKeyPath: cfg.GitHub.PrivateKeyPath,
		Timeout:        cfg.GitHub.RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("build github credential: %w", err)
	}

	m := metrics.New()
	requestClient := githubapi.NewClient(httpClient, cfg.GitHub.RequestsPerSecond)
	requestClient.Observe = func(endpoint string, statusCode int, elapsed time.Duration) {
		m.ObserveAPIRequest(endpoint, strconv.Itoa(statusCode), elapsed)
	}
	dataClient, err := githubapi.NewDataClient(cfg.GitHub.APIBaseURL, requestClient)
	if err != nil {
		return nil, fmt.Errorf("build github data client: %w", err)
	}

	pacing := githubapi.PacingPolicy{
		MinRemainingThreshold: cfg.RateLimit.MinRemainingThreshold,
		MinResetBuffer:        cfg.RateLimit.MinResetBuffer,
		SecondaryLimitBackoff: cfg.RateLimit.SecondaryLimitBackoff,
	}
	crawler := crawl.NewCrawler(dataClient, pacing, crawl.Config{
		PerPage:  cfg.Crawl.PerPage,
		MaxPages: cfg.Crawl.MaxPages,
	}, logger)

	engine := activity.NewEngine(dataClient, activity.EngineConfig{
		RecentWindow:   cfg.Engine.RecentWindow,
		TotalWindow:    cfg.Engine.TotalWindow,
		GracePeriod:    cfg.Engine.GracePeriod,
		RequestTimeout: cfg.GitHub.RequestTimeout,
	}, logger)
	builder := report.NewBuilder(engine, cfg.Engine.IssueConcurrency, logger)

	var oauth *githubapi.OAuthExchanger
	if cfg.GitHub.OAuth.ClientID != "" && cfg.GitHub.OAuth.ClientSecret != "" {
		oauth, err = githubapi.NewOAuthExchanger(cfg.GitHub.WebBaseURL, cfg.GitHub.OAuth.ClientID, cfg.GitHub.OAuth.ClientSecret, http.DefaultClient)
		if err != nil {
			return nil, fmt.Errorf("build oauth exchanger: %w", err)
		}
	} else {
		logger.Warn("github oauth credentials not set; web login endpoints are disabled")
	}

	cache := app.NewCacheBackend(cfg, logger)
	return app.NewRuntime(cfg, crawler, builder, cache, m, oauth, logger), nil
}

// runCacheGC sweeps expired report payloads from the memory backend.
func runCacheGC(ctx context.Context, runtime *app.Runtime, ttl time.Duration) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runtime.GC()
		}
	}
}

func logLevel(raw string) zapcore.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
