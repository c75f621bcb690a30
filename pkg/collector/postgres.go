package collector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/querybench/querybench/pkg/database"
	"github.com/querybench/querybench/pkg/metrics"
)

// postgresCollector reads tuple and block counters from pg_stat_database
// for the current database.
type postgresCollector struct {
	conn database.Connection
}

// Ensure interface compliance.
var _ Collector = (*postgresCollector)(nil)

func (c *postgresCollector) Snapshot(ctx context.Context) (metrics.Raw, error) {
	rows, err := c.conn.Query(ctx, `
		SELECT
			tup_returned, tup_fetched, tup_inserted, tup_updated, tup_deleted,
			blks_read, blks_hit
		FROM pg_stat_database
		WHERE datname = current_database()`)
	if err != nil {
		return nil, fmt.Errorf("querying pg_stat_database: %w", err)
	}

	defer func() { _ = rows.Close() }()

	raw := metrics.Raw{}
	keys := []string{
		"tup_returned", "tup_fetched", "tup_inserted", "tup_updated",
		"tup_deleted", "blks_read", "blks_hit",
	}

	if rows.Next() {
		values := make([]any, len(keys))
		for i := range values {
			values[i] = new(sql.NullInt64)
		}

		if err := rows.Scan(values...); err != nil {
			return nil, fmt.Errorf("scanning pg_stat_database row: %w", err)
		}

		for i, key := range keys {
			if v := values[i].(*sql.NullInt64); v.Valid {
				raw[key] = v.Int64
			} else {
				raw[key] = 0
			}
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading pg_stat_database: %w", err)
	}

	return raw, nil
}
