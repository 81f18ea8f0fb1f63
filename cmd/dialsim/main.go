// Command dialsim runs the call-center floor simulation with its HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/dialfloor/internal/api"
	"github.com/talgya/dialfloor/internal/app"
	"github.com/talgya/dialfloor/internal/config"
	"github.com/talgya/dialfloor/internal/metrics"
	"github.com/talgya/dialfloor/internal/persistence"
)

func main() {
	days := flag.Int("days", 0, "simulate this many business days headless, print a summary and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Catalog ──────────────────────────────────────────────────────
	cat, err := config.LoadCatalog(cfg.CatalogDir)
	if err != nil {
		slog.Error("failed to load catalog", "dir", cfg.CatalogDir, "error", err)
		os.Exit(1)
	}

	// ── Saves ────────────────────────────────────────────────────────
	store, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open save store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	saves := persistence.NewManager(store, cfg.SaveKey)

	// ── Game ─────────────────────────────────────────────────────────
	game, loaded, err := app.New(ctx, app.Options{
		Catalog:     cat,
		Seed:        cfg.Seed,
		Saves:       saves,
		MinuteEvery: cfg.MinuteEvery,
		Speed:       cfg.Speed,
		Fresh:       cfg.FreshOnStart,
	})
	if err != nil {
		slog.Error("failed to build game", "error", err)
		os.Exit(1)
	}

	if *days > 0 {
		runHeadless(game, *days)
		return
	}

	// ── Servers ──────────────────────────────────────────────────────
	apiServer := &api.Server{
		App:             game,
		Port:            cfg.HTTPPort,
		AdminKey:        cfg.AdminKey,
		CORSOrigins:     cfg.CORSOrigins,
		SimulateDayRate: cfg.SimulateDayRate,
	}
	apiServer.Start(ctx)
	startMetrics(ctx, cfg.MetricsPort)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	s := game.MetricsSummary()
	fmt.Printf("\nThe floor is open: %d agents, %s leads ready, %s in the bank.\n",
		s.Agents, humanize.Comma(int64(s.DialableLeads)), s.CashText)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.HTTPPort)
	if loaded {
		fmt.Printf("Resuming at %s\n", s.Clock)
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	game.Start(ctx)
	<-ctx.Done()

	slog.Info("final save...")
	if !game.Close() {
		slog.Error("final save failed", "key", cfg.SaveKey)
	}
	fmt.Println("Simulation stopped. Game saved.")
}

func openStore(ctx context.Context, cfg *config.Config) (persistence.Store, error) {
	switch cfg.StoreBackend {
	case "redis":
		return persistence.OpenRedis(ctx, persistence.RedisOptions{
			Addr:       cfg.RedisAddr(),
			Password:   cfg.RedisPassword,
			DB:         cfg.RedisDB,
			MaxRetries: uint64(cfg.RedisMaxRetries),
			RetryDelay: time.Duration(cfg.RedisRetryDelayMs) * time.Millisecond,
			Prefix:     "dialfloor:",
		})
	case "memory":
		return persistence.NewMemoryStore(), nil
	default:
		s, err := persistence.OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		slog.Info("database opened", "path", cfg.DBPath)
		return s, nil
	}
}

func startMetrics(ctx context.Context, port int) {
	if port == 0 {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	slog.Info("metrics server starting", "addr", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
}

func runHeadless(game *app.App, days int) {
	start := time.Now()
	for i := 0; i < days; i++ {
		dc, err := game.SimulateDay()
		if err != nil {
			slog.Error("simulate day failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Day %-4d dials %-6s contacts %-5s sales %-4s revenue %-10s profit %s\n",
			dc.Day,
			humanize.Comma(int64(dc.Stats.Dials)),
			humanize.Comma(int64(dc.Stats.Contacts)),
			humanize.Comma(int64(dc.Stats.Conversions)),
			app.Money(dc.Stats.Revenue),
			app.Money(dc.Stats.Profit()),
		)
	}
	s := game.MetricsSummary()
	fmt.Printf("\n%s simulated in %s. Cash %s, reputation %.1f, %d agents.\n",
		humanize.Comma(int64(days))+" days", time.Since(start).Round(time.Millisecond), s.CashText, s.Reputation, s.Agents)
}
