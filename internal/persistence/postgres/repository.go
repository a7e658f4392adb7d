package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/lastseen/internal/domain"
	"example.com/lastseen/internal/events"
	"example.com/lastseen/internal/observability"
	"example.com/lastseen/internal/window"
)

// Repository provides Postgres-backed persistence for daily observations,
// snapshot records, and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `client_id, tenant_id, as_of_date, days_seen_bits, days_session_start_bits, days_session_end_bits,
        os, os_version, app_version, app_build_id, channel, locale, first_seen_date, created_at`

// UpsertObservation records a single-day observation, OR-ing criterion flags
// into any existing row for the same client-day.
func (r *Repository) UpsertObservation(ctx context.Context, obs domain.DailyObservation) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", obs.TenantID); err != nil {
		return err
	}

	const stmt = `INSERT INTO client_daily (tenant_id, client_id, obs_date, seen, session_start, session_end, ping_count,
            os, os_version, app_version, app_build_id, channel, locale, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW())
        ON CONFLICT (tenant_id, client_id, obs_date) DO UPDATE SET
            seen = client_daily.seen OR EXCLUDED.seen,
            session_start = client_daily.session_start OR EXCLUDED.session_start,
            session_end = client_daily.session_end OR EXCLUDED.session_end,
            ping_count = client_daily.ping_count + EXCLUDED.ping_count,
            os = COALESCE(NULLIF(EXCLUDED.os, ''), client_daily.os),
            os_version = COALESCE(NULLIF(EXCLUDED.os_version, ''), client_daily.os_version),
            app_version = COALESCE(NULLIF(EXCLUDED.app_version, ''), client_daily.app_version),
            app_build_id = COALESCE(NULLIF(EXCLUDED.app_build_id, ''), client_daily.app_build_id),
            channel = COALESCE(NULLIF(EXCLUDED.channel, ''), client_daily.channel),
            locale = COALESCE(NULLIF(EXCLUDED.locale, ''), client_daily.locale),
            updated_at = NOW()`

	if _, err := tx.Exec(ctx, stmt,
		obs.TenantID,
		obs.ClientID,
		domain.Day(obs.Date),
		obs.Seen,
		obs.SessionStart,
		obs.SessionEnd,
		obs.PingCount,
		obs.Attributes.OS,
		obs.Attributes.OSVersion,
		obs.Attributes.AppVersion,
		obs.Attributes.AppBuildID,
		obs.Attributes.Channel,
		obs.Attributes.Locale,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListObservations returns every observation recorded for a tenant-day.
func (r *Repository) ListObservations(ctx context.Context, tenantID string, date time.Time) ([]domain.DailyObservation, error) {
	const query = `SELECT client_id, tenant_id, obs_date, seen, session_start, session_end, ping_count,
            os, os_version, app_version, app_build_id, channel, locale
        FROM client_daily WHERE tenant_id=$1 AND obs_date=$2`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, tenantID, domain.Day(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	observations := make([]domain.DailyObservation, 0)
	for rows.Next() {
		var obs domain.DailyObservation
		if err := rows.Scan(&obs.ClientID, &obs.TenantID, &obs.Date, &obs.Seen, &obs.SessionStart, &obs.SessionEnd, &obs.PingCount,
			&obs.Attributes.OS, &obs.Attributes.OSVersion, &obs.Attributes.AppVersion, &obs.Attributes.AppBuildID,
			&obs.Attributes.Channel, &obs.Attributes.Locale); err != nil {
			return nil, err
		}
		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return observations, nil
}

// LoadSnapshot returns the full snapshot for a tenant-day.
func (r *Repository) LoadSnapshot(ctx context.Context, tenantID string, date time.Time) ([]domain.ClientRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM client_last_seen WHERE tenant_id=$1 AND as_of_date=$2 ORDER BY client_id`, recordColumns)

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, tenantID, domain.Day(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

// ReplaceSnapshot atomically replaces a tenant-day snapshot with the advance
// result and records the matching outbox events. Re-running the same day is
// idempotent apart from duplicate rollup events, which downstream consumers
// deduplicate via the dedupe key.
func (r *Repository) ReplaceSnapshot(ctx context.Context, tenantID string, date time.Time, rollupID string, result domain.AdvanceResult) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return err
	}

	day := domain.Day(date)
	if _, err = tx.Exec(ctx, `DELETE FROM client_last_seen WHERE tenant_id=$1 AND as_of_date=$2`, tenantID, day); err != nil {
		return err
	}

	const insertRecord = `INSERT INTO client_last_seen (tenant_id, client_id, as_of_date, days_seen_bits, days_session_start_bits, days_session_end_bits,
            os, os_version, app_version, app_build_id, channel, locale, first_seen_date, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW())`

	for _, rec := range result.Records {
		if _, err = tx.Exec(ctx, insertRecord,
			tenantID,
			rec.ClientID,
			day,
			int32(rec.DaysSeenBits),
			int32(rec.DaysSessionStartBits),
			int32(rec.DaysSessionEndBits),
			rec.Attributes.OS,
			rec.Attributes.OSVersion,
			rec.Attributes.AppVersion,
			rec.Attributes.AppBuildID,
			rec.Attributes.Channel,
			rec.Attributes.Locale,
			rec.FirstSeenDate,
		); err != nil {
			return err
		}
	}

	dateStr := day.Format("2006-01-02")
	for _, aged := range result.AgedOut {
		payload := events.ClientAgedOut{
			TenantID: tenantID,
			ClientID: aged.ClientID,
			AsOfDate: dateStr,
		}
		if !aged.LastSeenDate.IsZero() {
			payload.LastSeenDate = aged.LastSeenDate.Format("2006-01-02")
		}
		if err = r.insertOutbox(ctx, tx, tenantID, "client.aged_out", aged.ClientID,
			fmt.Sprintf("%s:%s:%s", aged.ClientID, dateStr, "client.aged_out"), payload); err != nil {
			return err
		}
	}

	if err = r.insertOutbox(ctx, tx, tenantID, "rollup.completed", rollupID,
		fmt.Sprintf("%s:%s:%s", tenantID, dateStr, "rollup.completed"), events.RollupCompleted{
			RollupID:       rollupID,
			TenantID:       tenantID,
			AsOfDate:       dateStr,
			ClientsTracked: len(result.Records),
			ClientsNew:     result.NewClients,
			ClientsAgedOut: len(result.AgedOut),
			CompletedAt:    time.Now().UTC(),
		}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordSnapshotMaterialized(day)
	return nil
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, tenantID, eventType, aggregateID, dedupeKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta := eventCatalog[eventType]
	if meta.Topic == "" {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		tenantID,
		meta.AggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(tenantID, aggregateID),
		body,
		dedupeKey,
	)
	return err
}

// LatestRecord returns the newest snapshot row for a client, or nil.
func (r *Repository) LatestRecord(ctx context.Context, tenantID, clientID string) (*domain.ClientRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM client_last_seen WHERE tenant_id=$1 AND client_id=$2
        ORDER BY as_of_date DESC LIMIT 1`, recordColumns)

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, query, tenantID, clientID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if err := tx.Commit(ctx); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRecords pages through a tenant-day snapshot ordered by client_id.
func (r *Repository) ListRecords(ctx context.Context, tenantID string, asOf time.Time, cursor *domain.Cursor, limit int) ([]domain.ClientRecord, *domain.Cursor, error) {
	args := []interface{}{tenantID, domain.Day(asOf), limit}
	query := fmt.Sprintf(`SELECT %s FROM client_last_seen WHERE tenant_id=$1 AND as_of_date=$2`, recordColumns)

	if cursor != nil {
		query += ` AND client_id > $4`
		args = append(args, cursor.ClientID)
	}

	query += ` ORDER BY client_id LIMIT $3`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return nil, nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if len(records) == limit {
		last := records[len(records)-1]
		nextCursor = &domain.Cursor{AsOfDate: last.AsOfDate, ClientID: last.ClientID}
	}

	return records, nextCursor, nil
}

// LatestSnapshotDate returns the newest materialized as-of date for a tenant.
func (r *Repository) LatestSnapshotDate(ctx context.Context, tenantID string) (time.Time, bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return time.Time{}, false, err
	}

	var date *time.Time
	err = tx.QueryRow(ctx, `SELECT MAX(as_of_date) FROM client_last_seen WHERE tenant_id=$1`, tenantID).Scan(&date)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, tx.Commit(ctx)
		}
		return time.Time{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, false, err
	}
	if date == nil {
		return time.Time{}, false, nil
	}
	return domain.Day(*date), true, nil
}

// ActiveTenants lists tenants with observations on the given day. Runs
// without a tenant context; the rollup role bypasses RLS the same way the
// outbox dispatcher does for its claim query.
func (r *Repository) ActiveTenants(ctx context.Context, date time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT tenant_id FROM client_daily WHERE obs_date=$1 ORDER BY tenant_id`, domain.Day(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tenants := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*domain.ClientRecord, error) {
	var rec domain.ClientRecord
	var seen, sessionStart, sessionEnd int32
	if err := row.Scan(&rec.ClientID, &rec.TenantID, &rec.AsOfDate, &seen, &sessionStart, &sessionEnd,
		&rec.Attributes.OS, &rec.Attributes.OSVersion, &rec.Attributes.AppVersion, &rec.Attributes.AppBuildID,
		&rec.Attributes.Channel, &rec.Attributes.Locale, &rec.FirstSeenDate, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.DaysSeenBits = window.Bitmask(seen)
	rec.DaysSessionStartBits = window.Bitmask(sessionStart)
	rec.DaysSessionEndBits = window.Bitmask(sessionEnd)
	return &rec, nil
}

func scanRecords(rows pgx.Rows) ([]domain.ClientRecord, error) {
	records := make([]domain.ClientRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	AggregateType  string
	PartitionKeyFn func(tenantID, aggregateID string) string
}

var eventCatalog = map[string]EventMetadata{
	"rollup.completed": {
		Topic:         "rollup_events",
		SchemaSubject: "rollup_events-value",
		AggregateType: "rollup",
		PartitionKeyFn: func(tenantID, _ string) string {
			return tenantID
		},
	},
	"client.aged_out": {
		Topic:         "client_lifecycle",
		SchemaSubject: "client_lifecycle-value",
		AggregateType: "client",
		PartitionKeyFn: func(tenantID, aggregateID string) string {
			return fmt.Sprintf("%s:%s", tenantID, aggregateID)
		},
	},
}
