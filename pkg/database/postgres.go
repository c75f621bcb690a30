package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// postgresConn is a single pgx connection owned by one worker.
type postgresConn struct {
	params ConnParams
	conn   *pgx.Conn
}

// Ensure interface compliance.
var _ Connection = (*postgresConn)(nil)

func newPostgresConn(params ConnParams) *postgresConn {
	return &postgresConn{params: params}
}

// postgresDSN builds a URL-style DSN from connection parameters.
func postgresDSN(p ConnParams) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=prefer",
		url.QueryEscape(p.User),
		url.QueryEscape(p.Password),
		p.Host,
		p.Port,
		p.Database,
	)
}

func (c *postgresConn) Open(ctx context.Context) error {
	cfg, err := pgx.ParseConfig(postgresDSN(c.params))
	if err != nil {
		return fmt.Errorf("parsing connection config: %w", err)
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening connection: %w", err)
	}

	c.conn = conn

	return nil
}

func (c *postgresConn) TimedExecute(ctx context.Context, query string) (*ExecResult, error) {
	start := time.Now()

	rows, err := c.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}

	var (
		serverElapsed time.Duration
		count         int64
	)

	// The first successful Next marks the first row arriving from the
	// server; everything after is result transfer.
	for rows.Next() {
		if count == 0 {
			serverElapsed = time.Since(start)
		}

		count++
	}

	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading result set: %w", err)
	}

	return &ExecResult{ServerElapsed: serverElapsed, RowCount: count}, nil
}

func (c *postgresConn) Plan(ctx context.Context, query string) (string, error) {
	rows, err := c.conn.Query(ctx, "EXPLAIN (FORMAT TEXT) "+query)
	if err != nil {
		return "", fmt.Errorf("explaining query: %w", err)
	}

	defer rows.Close()

	var lines []string

	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return "", fmt.Errorf("scanning plan line: %w", err)
		}

		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("reading plan: %w", err)
	}

	return strings.Join(lines, " | "), nil
}

func (c *postgresConn) Query(ctx context.Context, query string) (Rows, error) {
	rows, err := c.conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	return &pgxRows{rows: rows}, nil
}

func (c *postgresConn) SessionID(ctx context.Context) (int64, error) {
	var pid int64
	if err := c.conn.QueryRow(ctx, "SELECT pg_backend_pid()").Scan(&pid); err != nil {
		return 0, fmt.Errorf("querying backend pid: %w", err)
	}

	return pid, nil
}

func (c *postgresConn) Engine() EngineKind {
	return EnginePostgreSQL
}

func (c *postgresConn) Close() error {
	if c.conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.conn.Close(ctx)
	c.conn = nil

	return err
}

// pgxRows adapts pgx.Rows to the Rows interface.
type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool             { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgxRows) Err() error             { return r.rows.Err() }
func (r *pgxRows) Close() error           { r.rows.Close(); return nil }
