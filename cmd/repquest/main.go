package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"tailscale.com/tsnet"

	"github.com/claude/repquest/internal/auth"
	"github.com/claude/repquest/internal/config"
	"github.com/claude/repquest/internal/live"
	"github.com/claude/repquest/internal/logging"
	"github.com/claude/repquest/internal/mcp"
	"github.com/claude/repquest/internal/metrics"
	"github.com/claude/repquest/internal/server"
	"github.com/claude/repquest/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	// A .env file is optional; real env vars win.
	_ = godotenv.Load()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, logCloser := logging.New(cfg.Log, os.Stdout)
	defer logCloser.Close()
	log.Info("RepQuest starting", "version", Version)

	// Run migrations
	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, cfg.Server.MigrationsPath); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	// Connect database
	ctx := context.Background()
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	if cfg.Server.SeedFile != "" {
		levels, err := storage.LoadSeedFile(cfg.Server.SeedFile)
		if err != nil {
			log.Error("failed to load seed file", "error", err)
			os.Exit(1)
		}
		n, err := db.SeedLevels(ctx, levels)
		if err != nil {
			log.Error("seeding levels failed", "error", err)
			os.Exit(1)
		}
		log.Info("levels seeded", "file", cfg.Server.SeedFile, "count", n)
	}

	tokens, err := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	if err != nil {
		log.Error("failed to create token manager", "error", err)
		os.Exit(1)
	}

	reg := metrics.SetupPrometheus(
		pgxpoolprometheus.NewCollector(db.Pool, map[string]string{"db_name": cfg.Database.Name}),
	)
	metricsMgr := metrics.NewManager("repquest", "server", reg)
	metricsMgr.GaugeLifeSignal.Set(1)

	// Create server
	srv := server.New(db, tokens, metricsMgr, server.Options{LevelCacheTTL: cfg.Server.LevelCacheTTL}, log)

	hub := live.NewHub(live.HubConfig{
		MaxFrameBytes:      cfg.Live.MaxFrameBytes,
		MaxFramesPerSecond: cfg.Live.MaxFramesPerSecond,
		PeerBuffer:         cfg.Live.PeerBuffer,
	}, tokens, metricsMgr, log)
	srv.SetLiveHub(hub)
	srv.SetMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv.SetMCP(mcpserver.NewStreamableHTTPServer(mcp.New(db, Version, log)))

	// Start server, tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)
	metricsMgr.GaugeLifeSignal.Set(0)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Hijacked websocket connections are not tracked by Shutdown.
	hub.Close()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}
