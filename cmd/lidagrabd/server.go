package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	v1 "github.com/lidagrab/lidagrab/internal/api/v1"
	"github.com/lidagrab/lidagrab/internal/artwork"
	"github.com/lidagrab/lidagrab/internal/config"
	"github.com/lidagrab/lidagrab/internal/events"
	"github.com/lidagrab/lidagrab/internal/fetch"
	"github.com/lidagrab/lidagrab/internal/lidarr"
	"github.com/lidagrab/lidagrab/internal/migrations"
	"github.com/lidagrab/lidagrab/internal/notify"
	"github.com/lidagrab/lidagrab/internal/queue"
	"github.com/lidagrab/lidagrab/internal/scheduler"
	"github.com/lidagrab/lidagrab/internal/tagger"
)

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 200 { // Only capture first WriteHeader call
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func runServer(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))

	fileMode, err := cfg.FileMode()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	dirMode, err := cfg.DirMode()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// Ensure database directory exists
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(migrations.InitialSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// === Stores & bus ===
	historyStore := queue.NewHistoryStore(db)
	eventLog := events.NewEventLog(db)
	bus := events.NewBus(eventLog, logger.With("component", "events"))
	defer func() { _ = bus.Close() }()

	// === Clients (optional - nil if not configured) ===
	var lidarrClient *lidarr.Client
	if cfg.Lidarr.URL != "" {
		lidarrClient = lidarr.New(cfg.Lidarr.URL, cfg.Lidarr.APIKey, logger)
	}

	var artworkClient *artwork.Client
	if !cfg.Metadata.ITunes.Disabled {
		artworkClient = artwork.New(logger)
	}

	fetcher := fetch.NewYTDLP(fetch.WithQuality(cfg.Downloads.Quality))
	tagWriter := tagger.New(logger)

	// === Engine ===
	var pipeline *queue.Pipeline
	if lidarrClient != nil {
		var art queue.ArtworkSource
		if artworkClient != nil {
			art = artworkClient
		}
		pipeline = queue.NewPipeline(lidarrClient, fetcher, tagWriter, art, queue.PipelineConfig{
			Root:           cfg.Downloads.Root,
			ScratchDir:     cfg.Downloads.ScratchDir,
			ForbiddenWords: cfg.Downloads.ForbiddenWords,
			FileMode:       fileMode,
			DirMode:        dirMode,
		}, logger)
	}
	engine := queue.NewEngine(pipeline, historyStore, bus, logger)

	var sched *scheduler.Scheduler
	if lidarrClient != nil && cfg.Scheduler.Enabled {
		sched = scheduler.New(lidarrClient, engine, cfg.Scheduler.Interval, cfg.Scheduler.AutoDownload, logger)
	}

	notifier := notify.NewService(cfg.Notifications)
	listener := notify.NewListener(notifier, bus, logger)

	// === HTTP Setup ===
	mux := http.NewServeMux()
	apiV1 := v1.New(engine, historyStore, version)
	if lidarrClient != nil {
		apiV1.SetLidarr(lidarrClient)
	}
	if sched != nil {
		apiV1.SetScheduler(sched)
	}
	apiV1.SetEventLog(eventLog)
	apiV1.RegisterRoutes(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: logRequests(mux, logger)}

	logger.Info("server starting",
		"addr", addr,
		"database", cfg.Database.Path,
		"lidarr", lidarrClient != nil,
		"scheduler", sched != nil,
		"itunes_artwork", artworkClient != nil,
		"log_level", cfg.Server.LogLevel,
	)

	// === Supervision ===
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if pipeline != nil {
		g.Go(func() error {
			err := engine.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Warn("lidarr not configured, queue worker disabled")
	}

	if sched != nil {
		g.Go(func() error { return sched.Start(gctx) })
	}

	g.Go(func() error { return listener.Run(gctx) })

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}
