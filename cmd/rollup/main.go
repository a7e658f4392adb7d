package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/lastseen/internal/config"
	"example.com/lastseen/internal/domain"
	persistence "example.com/lastseen/internal/persistence/postgres"
	"example.com/lastseen/internal/rollup"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	runner := rollup.NewRunner(persistence.NewRepository(pool))

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		log.Printf("rollup metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	ticker := time.NewTicker(cfg.RollupInterval)
	defer ticker.Stop()

	log.Printf("rollup worker started (interval=%s)", cfg.RollupInterval)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// The rollup targets yesterday: a day is only advanced once its
	// observations can no longer change.
	runOnce := func() {
		target := domain.Day(time.Now().UTC()).AddDate(0, 0, -1)
		if err := runner.RunAllTenants(ctx, target); err != nil {
			log.Printf("rollup sweep error: %v", err)
		}
	}

	runOnce()

	for {
		select {
		case <-ctx.Done():
			goto shutdown
		case <-ticker.C:
			runOnce()
		case <-stop:
			log.Println("rollup worker received shutdown signal")
			cancel()
			goto shutdown
		}
	}

shutdown:
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}
}
