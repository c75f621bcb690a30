package collector

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/querybench/querybench/pkg/database"
	"github.com/querybench/querybench/pkg/metrics"
)

// mysqlCollector reads session-scoped Handler_% counters; the same surface
// serves MySQL and MariaDB.
type mysqlCollector struct {
	conn database.Connection
}

// Ensure interface compliance.
var _ Collector = (*mysqlCollector)(nil)

func (c *mysqlCollector) Snapshot(ctx context.Context) (metrics.Raw, error) {
	rows, err := c.conn.Query(ctx, "SHOW SESSION STATUS LIKE 'Handler%'")
	if err != nil {
		return nil, fmt.Errorf("querying session status: %w", err)
	}

	defer func() { _ = rows.Close() }()

	raw := metrics.Raw{}

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scanning status row: %w", err)
		}

		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			// Non-numeric status values carry no counter information.
			continue
		}

		raw[strings.ToLower(name)] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading session status: %w", err)
	}

	return raw, nil
}
