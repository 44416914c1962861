package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/verityhq/verity/internal/api"
	"github.com/verityhq/verity/internal/auth"
	"github.com/verityhq/verity/internal/config"
	"github.com/verityhq/verity/internal/database"
	"github.com/verityhq/verity/internal/graph"
	"github.com/verityhq/verity/internal/jobs"
	"github.com/verityhq/verity/internal/sandbox"
	"github.com/verityhq/verity/internal/service"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: verity <command>\n\nCommands:\n  serve      Start the server\n  migrate    Run database migrations\n  reconcile  Run one knowledge-link reconciliation sweep\n")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "migrate":
		cmdMigrate(os.Args[2:])
	case "reconcile":
		cmdReconcile(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func cmdServe(args []string) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServe(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	traceShutdown, err := initTracing(context.Background())
	if err != nil {
		slog.Error("init tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := traceShutdown(ctx); err != nil {
			slog.Error("shutdown tracing", "error", err)
		}
	}()

	db, err := openDB(cfg)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Auto-migrate on startup
	if err := db.Migrate(context.Background()); err != nil {
		slog.Error("migrate", "error", err)
		os.Exit(1)
	}

	graphStore := openGraph(cfg)

	dur, err := time.ParseDuration(cfg.Auth.TokenDuration)
	if err != nil {
		dur = 24 * time.Hour
	}
	authSvc := auth.NewService(cfg.Auth.JWTSecret, dur)

	sandboxTimeout, err := time.ParseDuration(cfg.Sandbox.Timeout)
	if err != nil {
		sandboxTimeout = 10 * time.Second
	}
	executor := sandbox.NewShellExecutor(cfg.Sandbox.Shell, sandboxTimeout)

	evidenceSvc := service.NewEvidenceService(db, graphStore)
	hookSvc := service.NewHookService(db, executor)
	knowledgeSvc := service.NewKnowledgeService(db, graphStore)
	projectSvc := service.NewProjectService(db)

	server := api.NewServer(db, authSvc, graphStore, evidenceSvc, hookSvc, knowledgeSvc, projectSvc)

	var reconciler *jobs.Reconciler
	if cfg.Reconciler.Enabled {
		interval, err := time.ParseDuration(cfg.Reconciler.Interval)
		if err != nil {
			interval = 0
		}
		reconciler = jobs.NewReconciler(db, graphStore, jobs.ReconcilerOptions{
			Workers:  cfg.Reconciler.Workers,
			Interval: interval,
		})
		if err := reconciler.Start(context.Background()); err != nil {
			slog.Error("start reconciler", "error", err)
			os.Exit(1)
		}
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      gzhttp.GzipHandler(server),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt)

	go func() {
		slog.Info("verity listening", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)
	if reconciler != nil {
		if err := reconciler.Stop(ctx); err != nil {
			slog.Warn("stop reconciler", "error", err)
		}
	}
}

func cmdMigrate(args []string) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	db, err := openDB(cfg)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		slog.Error("migrate", "error", err)
		os.Exit(1)
	}
	slog.Info("migrations complete")
}

func cmdReconcile(args []string) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	db, err := openDB(cfg)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	reconciler := jobs.NewReconciler(db, openGraph(cfg), jobs.ReconcilerOptions{
		Workers: cfg.Reconciler.Workers,
	})
	checked, orphaned, err := reconciler.SweepOnce(context.Background())
	if err != nil {
		slog.Error("sweep", "error", err)
		os.Exit(1)
	}
	slog.Info("sweep complete", "checked", checked, "orphaned", orphaned)
}

func openDB(cfg *config.Config) (database.DB, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		return database.OpenSQLite(cfg.Database.DSN)
	case "postgres":
		return database.OpenPostgres(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

// openGraph connects to ArangoDB when an endpoint is configured. Without
// one the server still runs; knowledge reads report the store unavailable.
func openGraph(cfg *config.Config) graph.Store {
	if cfg.Graph.Endpoint == "" {
		slog.Info("knowledge store disabled, no graph endpoint configured")
		return graph.NewDisabledStore()
	}
	store, err := graph.NewArangoStore(context.Background(), graph.ArangoConfig{
		Endpoint: cfg.Graph.Endpoint,
		Database: cfg.Graph.Database,
		Username: cfg.Graph.Username,
		Password: cfg.Graph.Password,
	})
	if err != nil {
		slog.Warn("knowledge store unreachable, continuing degraded", "error", err)
		return graph.NewDisabledStore()
	}
	return store
}
