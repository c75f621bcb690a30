// Package collector reads raw engine statistics over a live connection.
// The orchestrator snapshots counters immediately before and after each
// timed execution and hands the delta to the metric normalizer.
package collector

import (
	"context"
	"fmt"

	"github.com/querybench/querybench/pkg/database"
	"github.com/querybench/querybench/pkg/metrics"
)

// Collector reads one engine's raw counters for the session behind a
// connection. Implementations ride on the worker's own connection because
// several engines scope their counters to the current session.
type Collector interface {
	Snapshot(ctx context.Context) (metrics.Raw, error)
}

// New resolves the collector for the connection's engine.
func New(conn database.Connection) (Collector, error) {
	switch conn.Engine() {
	case database.EngineFirebird:
		return &firebirdCollector{conn: conn}, nil
	case database.EngineMySQL, database.EngineMariaDB:
		return &mysqlCollector{conn: conn}, nil
	case database.EnginePostgreSQL:
		return &postgresCollector{conn: conn}, nil
	default:
		return nil, fmt.Errorf("no collector for engine %q", conn.Engine())
	}
}
