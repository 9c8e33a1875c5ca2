// Command driftstored serves an in-memory event store over the multiplexed
// websocket protocol.
//
// Run with: go run . -config driftstored.yaml
//
// All settings can also come from DRIFTLOG_* environment variables, for
// example DRIFTLOG_SERVER_LISTEN=:5555.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	promadapter "github.com/driftlog/driftlog-go/adapters/prometheus"
	"github.com/driftlog/driftlog-go/adapters/websocket"
	"github.com/driftlog/driftlog-go/core/es"
	"github.com/driftlog/driftlog-go/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "driftstored:", err)
		os.Exit(1)
	}

	level, _ := cfg.Log.SlogLevel()
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if err := run(ctx, log, cfg); err != nil {
		log.Error("driftstored failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, cfg config.Config) error {
	storeMetrics := es.NopStoreMetrics()
	transportMetrics := websocket.NopTransportMetrics()
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		all := promadapter.NewAllMetrics(reg)
		storeMetrics = all.Store
		transportMetrics = all.Transport

		promMux := http.NewServeMux()
		promMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		promServer := &http.Server{Addr: cfg.Metrics.Listen, Handler: promMux}
		go func() {
			log.Info("metrics server starting", slog.String("addr", cfg.Metrics.Listen))
			if err := promServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server error", slog.Any("error", err))
			}
		}()
		defer promServer.Shutdown(context.Background())
	}

	opts := []es.StoreOption{
		es.WithLogger(log.With(slog.String("component", "store"))),
		es.WithStoreMetrics(storeMetrics),
	}
	if cfg.Server.NodeSeed != "" {
		opts = append(opts, es.WithNodeSeed(cfg.Server.NodeSeed))
	}
	if cfg.Server.ChunkSize > 0 {
		opts = append(opts, es.WithChunkSize(cfg.Server.ChunkSize))
	}
	store := es.NewMemoryStore(opts...)
	defer store.Close()

	node, err := store.NodeID(ctx)
	if err != nil {
		return fmt.Errorf("node id: %w", err)
	}

	srv, err := websocket.NewServer(websocket.ServerConfig{
		Store:   store,
		Log:     log.With(slog.String("component", "ws")),
		Metrics: transportMetrics,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	httpServer := &http.Server{Addr: cfg.Server.Listen, Handler: srv}
	errCh := make(chan error, 1)
	go func() {
		log.Info("driftstored listening",
			slog.String("addr", cfg.Server.Listen),
			slog.String("node", string(node)),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
