package metasync

import (
	"context"
	"fmt"
	"log"
)

// Catalog abstracts the warehouse-side table listing and metadata writes so
// the sync logic stays decoupled from any particular client.
type Catalog interface {
	ListTables(ctx context.Context) ([]string, error)
	ApplyMetadata(ctx context.Context, meta TableMetadata) error
}

// Syncer applies metadata documents to every catalog table matching a pattern.
type Syncer struct {
	catalog Catalog
	logger  *log.Logger
}

// NewSyncer constructs a Syncer.
func NewSyncer(catalog Catalog, logger *log.Logger) *Syncer {
	if logger == nil {
		logger = log.New(log.Writer(), "[metasync] ", log.LstdFlags)
	}
	return &Syncer{catalog: catalog, logger: logger}
}

// SyncResult summarises one sync run.
type SyncResult struct {
	Matched int
	Applied int
	Skipped []string
}

// Sync lists tables, filters them by pattern, and applies every metadata
// document whose table name is among the matches. Tables matched by the
// pattern with no metadata document are reported as skipped.
func (s *Syncer) Sync(ctx context.Context, pattern string, docs []TableMetadata) (SyncResult, error) {
	tables, err := s.catalog.ListTables(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("list tables: %w", err)
	}

	matched := Filter(pattern, tables)
	byTable := make(map[string]TableMetadata, len(docs))
	for _, doc := range docs {
		byTable[doc.Table] = doc
	}

	result := SyncResult{Matched: len(matched)}
	for _, table := range matched {
		doc, ok := byTable[table]
		if !ok {
			result.Skipped = append(result.Skipped, table)
			continue
		}
		if err := s.catalog.ApplyMetadata(ctx, doc); err != nil {
			return result, fmt.Errorf("apply %s: %w", table, err)
		}
		s.logger.Printf("updated metadata for %s", table)
		result.Applied++
	}
	return result, nil
}
