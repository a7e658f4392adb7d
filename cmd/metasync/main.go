package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/lastseen/internal/config"
	"example.com/lastseen/internal/metasync"
)

func main() {
	cfg := config.Load()

	pattern := flag.String("pattern", "*", "wildcard pattern selecting which tables to update")
	dir := flag.String("metadata-dir", cfg.MetadataDir, "directory containing table metadata YAML documents")
	schema := flag.String("schema", "public", "schema holding the warehouse tables")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall run timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	docs, err := metasync.LoadDir(*dir)
	if err != nil {
		log.Fatalf("failed to load metadata documents: %v", err)
	}
	if len(docs) == 0 {
		log.Fatalf("no metadata documents found in %s", *dir)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	catalog := metasync.NewPostgresCatalog(pool, *schema)
	syncer := metasync.NewSyncer(catalog, nil)

	result, err := syncer.Sync(ctx, *pattern, docs)
	if err != nil {
		log.Fatalf("metadata sync failed: %v", err)
	}

	log.Printf("metadata sync done (matched=%d, applied=%d, skipped=%d)", result.Matched, result.Applied, len(result.Skipped))
	for _, table := range result.Skipped {
		log.Printf("no metadata document for matched table %s", table)
	}
}
