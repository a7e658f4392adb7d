package domain

import (
	"context"
	"time"
)

// SnapshotRepository captures the read-side persistence operations used by the
// HTTP API.
type SnapshotRepository interface {
	LatestRecord(ctx context.Context, tenantID, clientID string) (*ClientRecord, error)
	ListRecords(ctx context.Context, tenantID string, asOf time.Time, cursor *Cursor, limit int) ([]ClientRecord, *Cursor, error)
	LatestSnapshotDate(ctx context.Context, tenantID string) (time.Time, bool, error)
}

// Cursor models the keyset pagination token for snapshot listings. The as-of
// date is embedded so a stale cursor cannot silently page a different day.
type Cursor struct {
	AsOfDate time.Time
	ClientID string
}

// Service orchestrates read workflows over the snapshot store.
type Service struct {
	repo SnapshotRepository
}

// NewService constructs a Service.
func NewService(repo SnapshotRepository) *Service {
	return &Service{repo: repo}
}

// GetClient fetches the most recent snapshot record for a client.
func (s *Service) GetClient(ctx context.Context, tenantID, clientID string) (*ClientRecord, error) {
	rec, err := s.repo.LatestRecord(ctx, tenantID, clientID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrClientNotFound
	}
	return rec, nil
}

// ListClients pages through the snapshot for a given day.
func (s *Service) ListClients(ctx context.Context, tenantID string, asOf time.Time, cursor *Cursor, limit int) ([]ClientRecord, *Cursor, error) {
	return s.repo.ListRecords(ctx, tenantID, Day(asOf), cursor, limit)
}

// SnapshotStatus reports the latest materialized snapshot date for a tenant.
// The second return is false when no snapshot exists yet.
func (s *Service) SnapshotStatus(ctx context.Context, tenantID string) (time.Time, bool, error) {
	return s.repo.LatestSnapshotDate(ctx, tenantID)
}
