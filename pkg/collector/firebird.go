package collector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/querybench/querybench/pkg/database"
	"github.com/querybench/querybench/pkg/metrics"
)

// firebirdCollector reads record-level I/O counters from MON$IO_STATS for
// the current attachment.
type firebirdCollector struct {
	conn         database.Connection
	attachmentID int64
}

// Ensure interface compliance.
var _ Collector = (*firebirdCollector)(nil)

func (c *firebirdCollector) Snapshot(ctx context.Context) (metrics.Raw, error) {
	if c.attachmentID == 0 {
		id, err := c.conn.SessionID(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving attachment id: %w", err)
		}

		c.attachmentID = id
	}

	rows, err := c.conn.Query(ctx, fmt.Sprintf(`
		SELECT
			SUM(MON$RECORD_SEQ_READS),
			SUM(MON$RECORD_IDX_READS),
			SUM(MON$RECORD_INSERTS),
			SUM(MON$RECORD_UPDATES),
			SUM(MON$RECORD_DELETES),
			SUM(MON$RECORD_BACKOUTS),
			SUM(MON$RECORD_PURGES),
			SUM(MON$RECORD_EXPUNGES)
		FROM MON$IO_STATS
		WHERE MON$STAT_GROUP = 1 AND MON$STAT_ID = %d`, c.attachmentID))
	if err != nil {
		return nil, fmt.Errorf("querying MON$IO_STATS: %w", err)
	}

	defer func() { _ = rows.Close() }()

	raw := metrics.Raw{}
	keys := []string{
		"seq_reads", "idx_reads", "inserts", "updates",
		"deletes", "backouts", "purges", "expunges",
	}

	if rows.Next() {
		values := make([]any, len(keys))
		for i := range values {
			values[i] = new(sql.NullInt64)
		}

		if err := rows.Scan(values...); err != nil {
			return nil, fmt.Errorf("scanning MON$IO_STATS row: %w", err)
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
		return nil, fmt.Errorf("reading MON$IO_STATS: %w", err)
	}

	return raw, nil
}
