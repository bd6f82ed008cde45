// livequote streams live quotes for one channel, prints them with their
// flash state and serves them over HTTP.
// Usage: go run ./cmd/livequote --config configs/livequote.example.yaml --channel AAPL
//
// Optional environment variables:
//
//	STELLAR_API_URL       - Base URL of the quote backend
//	LIVEQUOTE_CHANNEL     - Channel to follow ("overview" or a symbol)
//	REDIS_URL             - Snapshot cache; in-memory when unset or unreachable
//	LIVEQUOTE_DB_PASSWORD - Recorder database password
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/livequote/internal/api"
	"github.com/rickgao/livequote/internal/cache"
	"github.com/rickgao/livequote/internal/config"
	"github.com/rickgao/livequote/internal/connection"
	"github.com/rickgao/livequote/internal/database"
	"github.com/rickgao/livequote/internal/flash"
	"github.com/rickgao/livequote/internal/live"
	"github.com/rickgao/livequote/internal/model"
	"github.com/rickgao/livequote/internal/recorder"
	"github.com/rickgao/livequote/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	channel := flag.String("channel", "", "channel to follow: overview or a symbol")
	verbose := flag.Bool("verbose", false, "debug logging and full quote JSON")
	printInterval := flag.Duration("print-interval", 5*time.Second, "how often to print quotes (0 disables)")
	flag.Parse()

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *channel != "" {
		cfg.Stream.Channel = *channel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log, *verbose)
	slog.SetDefault(logger)

	logger.Info("starting livequote",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"channel", cfg.Stream.Channel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, *verbose, *printInterval, logger); err != nil {
		logger.Error("livequote failed", "error", err)
		os.Exit(1)
	}

	logger.Info("livequote stopped")
}

func run(ctx context.Context, cfg *config.Config, verbose bool, printInterval time.Duration, logger *slog.Logger) error {
	sessionID := uuid.New()

	// Snapshot cache and REST client
	snapshotCache := cache.New(ctx, cfg.Cache.RedisURL, logger)
	defer snapshotCache.Close()

	apiClient := api.NewClient(
		cfg.API.BaseURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
		api.WithCache(snapshotCache, cfg.Cache.TTL),
	)

	liveURL, err := connection.LiveURL(cfg.API.BaseURL, cfg.Stream.PageScheme, cfg.Stream.Channel)
	if err != nil {
		return fmt.Errorf("build live url: %w", err)
	}

	sessCfg := live.Config{
		ID:      sessionID,
		Channel: cfg.Stream.Channel,
		URL:     liveURL,
		Manager: connection.ManagerConfig{
			HeartbeatInterval: cfg.Stream.HeartbeatInterval,
			HeartbeatMessage:  connection.DefaultManagerConfig().HeartbeatMessage,
			ReconnectDelay:    cfg.Stream.ReconnectDelay,
		},
		Client: connection.ClientConfig{
			HandshakeTimeout: cfg.Stream.HandshakeTimeout,
			WriteTimeout:     cfg.Stream.WriteTimeout,
			ReadLimit:        connection.DefaultClientConfig().ReadLimit,
			UserAgent:        version.UserAgent(),
		},
		Flash: flash.Config{
			Window: cfg.Flash.Window,
			Policy: flash.Policy(cfg.Flash.Policy),
		},
		LoopBuffer:      cfg.Stream.LoopBuffer,
		SnapshotTimeout: cfg.API.Timeout,
	}

	var opts []live.Option
	if cfg.Recorder.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Recorder.Database.Host,
			"port", cfg.Recorder.Database.Port,
			"database", cfg.Recorder.Database.Name,
		)

		pool, err := database.Connect(ctx, cfg.Recorder.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}

		rec := recorder.New(recorder.Config{
			SessionID:     sessionID,
			Channel:       cfg.Stream.Channel,
			BatchSize:     cfg.Recorder.BatchSize,
			FlushInterval: cfg.Recorder.FlushInterval,
			BufferSize:    cfg.Recorder.BufferSize,
		}, pool, logger)
		if err := rec.Start(ctx); err != nil {
			return fmt.Errorf("start recorder: %w", err)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			rec.Stop(stopCtx)
		}()

		opts = append(opts, live.WithRecorder(rec))
	}

	session, err := live.NewSession(sessCfg, apiClient, logger, opts...)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.Metrics.Addr(),
		Handler:           live.NewHandler(session, cfg.Metrics.Path),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server",
			"addr", server.Addr,
			"health_url", fmt.Sprintf("http://localhost%s/health", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := session.Start(gctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("start session: %w", err)
		}
		logger.Info("streaming started - press Ctrl+C to stop", "url", liveURL)
		<-gctx.Done()
		return nil
	})

	if printInterval > 0 {
		g.Go(func() error {
			printQuotes(gctx, session, printInterval, verbose)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		logger.Info("shutting down...")
		if err := session.Stop(shutdownCtx); err != nil {
			logger.Warn("session stop failed", "error", err)
		}
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newLogger(cfg config.LogConfig, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func printQuotes(ctx context.Context, s *live.Session, interval time.Duration, verbose bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Printf("[%s] %s symbols=%d\n", s.State(), time.Now().Format(time.TimeOnly), len(s.Quotes()))
			for _, q := range s.Quotes() {
				dir := s.Flash(q.Symbol)
				if verbose {
					data, _ := json.Marshal(live.QuoteView{Quote: q, Flash: dir})
					fmt.Printf("  %s\n", data)
					continue
				}
				fmt.Printf("  %-10s %12s %10s %8s%% %s\n",
					q.Symbol, q.Price.StringFixed(2), q.Change.StringFixed(2), q.PercentChange.StringFixed(2), flashMarker(dir))
			}
		}
	}
}

func flashMarker(d model.FlashDirection) string {
	switch d {
	case model.FlashUp:
		return "▲"
	case model.FlashDown:
		return "▼"
	default:
		return ""
	}
}
