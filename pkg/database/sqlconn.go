package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// sqlConn is the shared database/sql backing for engines whose drivers go
// through the standard driver interface (MySQL, MariaDB, Firebird).
//
// The pool is pinned to a single connection so that session-scoped state
// (CONNECTION_ID, CURRENT_CONNECTION, SESSION STATUS counters) is stable
// across every statement issued by the owning worker.
type sqlConn struct {
	driverName string
	dsn        string
	db         *sql.DB
}

func (c *sqlConn) open(ctx context.Context) error {
	db, err := sql.Open(c.driverName, c.dsn)
	if err != nil {
		return fmt.Errorf("opening connection: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return fmt.Errorf("pinging server: %w", err)
	}

	c.db = db

	return nil
}

func (c *sqlConn) timedExecute(ctx context.Context, query string) (*ExecResult, error) {
	start := time.Now()

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}

	// QueryContext returns once the server has produced the head of the
	// result set, so this point bounds server-side processing.
	serverElapsed := time.Since(start)

	var count int64

	for rows.Next() {
		count++
	}

	if err := rows.Err(); err != nil {
		_ = rows.Close()

		return nil, fmt.Errorf("reading result set: %w", err)
	}

	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("closing result set: %w", err)
	}

	return &ExecResult{ServerElapsed: serverElapsed, RowCount: count}, nil
}

func (c *sqlConn) query(ctx context.Context, query string) (Rows, error) {
	return c.db.QueryContext(ctx, query)
}

func (c *sqlConn) queryInt64(ctx context.Context, query string) (int64, error) {
	var v int64
	if err := c.db.QueryRowContext(ctx, query).Scan(&v); err != nil {
		return 0, err
	}

	return v, nil
}

func (c *sqlConn) close() error {
	if c.db == nil {
		return nil
	}

	err := c.db.Close()
	c.db = nil

	return err
}
