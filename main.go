package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"cotuong/internal/dbwork"
	"cotuong/internal/store"
)

// Version is the server build version, reported by the "version" and
// "status" CLI subcommands.
const Version = "0.1.0"

func main() {
	// Check for CLI subcommands before parsing flags.
	if len(os.Args) > 1 {
		cliDB := "cotuong.db"
		if RunCLI(os.Args[1:], cliDB) {
			return
		}
	}

	addr := flag.String("addr", ":9090", "TCP listen address for the game protocol")
	apiAddr := flag.String("api-addr", ":8080", "read-only admin HTTP API listen address (empty to disable)")
	dbPath := flag.String("db", "cotuong.db", "SQLite database path")
	dbWorkerCount := flag.Int("db-workers", dbWorkers, "repository worker pool size")
	metricsInterval := flag.Duration("metrics-interval", 10*time.Second, "metrics logging interval")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	st, err := store.New(*dbPath)
	if err != nil {
		slog.Error("store: open", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	pool := dbwork.New(*dbWorkerCount, dbQueueDepth)
	defer pool.Close()

	core := NewCore(st, st, pool)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		slog.Info("server: shutting down")
		cancel()
	}()

	go core.RunSweeps(ctx)
	go RunMetrics(ctx, core, *metricsInterval)

	if *apiAddr != "" {
		api := NewAPIServer(core, st)
		go api.Run(ctx, *apiAddr)
		slog.Info("api: listening", "addr", *apiAddr)
	}

	srv := NewServer(*addr, core)
	if err := srv.Run(ctx); err != nil {
		slog.Error("server: run", "err", err)
		os.Exit(1)
	}
}
