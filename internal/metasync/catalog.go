package metasync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCatalog applies metadata onto Postgres tables: the friendly name
// and labels land in the table_metadata registry, the description also
// becomes the table comment.
type PostgresCatalog struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPostgresCatalog constructs a catalog over the given schema.
func NewPostgresCatalog(pool *pgxpool.Pool, schema string) *PostgresCatalog {
	if schema == "" {
		schema = "public"
	}
	return &PostgresCatalog{pool: pool, schema: schema}
}

// ListTables returns the base table names in the catalog schema.
func (c *PostgresCatalog) ListTables(ctx context.Context) ([]string, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT table_name FROM information_schema.tables
          WHERE table_schema = $1 AND table_type = 'BASE TABLE'
          ORDER BY table_name`, c.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// ApplyMetadata upserts the registry row and refreshes the table comment.
func (c *PostgresCatalog) ApplyMetadata(ctx context.Context, meta TableMetadata) error {
	labels, err := json.Marshal(meta.Labels)
	if err != nil {
		return err
	}

	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const stmt = `INSERT INTO table_metadata (schema_name, table_name, friendly_name, description, labels, updated_at)
        VALUES ($1,$2,$3,$4,$5,NOW())
        ON CONFLICT (schema_name, table_name) DO UPDATE SET
            friendly_name = EXCLUDED.friendly_name,
            description = EXCLUDED.description,
            labels = EXCLUDED.labels,
            updated_at = NOW()`

	if _, err := tx.Exec(ctx, stmt, c.schema, meta.Table, meta.FriendlyName, meta.Description, labels); err != nil {
		return err
	}

	if meta.Description != "" {
		// COMMENT ON does not take bind parameters; identifiers and the
		// literal are quoted explicitly.
		comment := fmt.Sprintf(`COMMENT ON TABLE %s.%s IS %s`,
			pgx.Identifier{c.schema}.Sanitize(),
			pgx.Identifier{meta.Table}.Sanitize(),
			quoteLiteral(meta.Description))
		if _, err := tx.Exec(ctx, comment); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func quoteLiteral(s string) string {
	out := []byte{'\''}
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'')
		}
		out = append(out, s[i])
	}
	return string(append(out, '\''))
}
