package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Registers the "mysql" driver.
	_ "github.com/go-sql-driver/mysql"
)

// mysqlConn serves both MySQL and MariaDB; the wire protocol and the
// Handler_% counter surface are shared between the two engines.
type mysqlConn struct {
	sqlConn
	engine EngineKind
}

// Ensure interface compliance.
var _ Connection = (*mysqlConn)(nil)

func newMySQLConn(params ConnParams) *mysqlConn {
	return &mysqlConn{
		sqlConn: sqlConn{
			driverName: "mysql",
			dsn:        mysqlDSN(params),
		},
		engine: params.Engine,
	}
}

// mysqlDSN builds a go-sql-driver DSN from connection parameters.
func mysqlDSN(p ConnParams) string {
	charset := p.Charset
	if charset == "" {
		charset = "utf8mb4"
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=true&timeout=30s",
		p.User, p.Password, p.Host, p.Port, p.Database, strings.ToLower(charset))
}

func (c *mysqlConn) Open(ctx context.Context) error {
	return c.open(ctx)
}

func (c *mysqlConn) TimedExecute(ctx context.Context, query string) (*ExecResult, error) {
	return c.timedExecute(ctx, query)
}

func (c *mysqlConn) Plan(ctx context.Context, query string) (string, error) {
	rows, err := c.db.QueryContext(ctx, "EXPLAIN "+query)
	if err != nil {
		return "", fmt.Errorf("explaining query: %w", err)
	}

	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("reading plan columns: %w", err)
	}

	var lines []string

	for rows.Next() {
		values := make([]any, len(cols))
		for i := range values {
			values[i] = new(sql.NullString)
		}

		if err := rows.Scan(values...); err != nil {
			return "", fmt.Errorf("scanning plan row: %w", err)
		}

		parts := make([]string, 0, len(cols))

		for i, col := range cols {
			ns := values[i].(*sql.NullString)
			if ns.Valid && ns.String != "" {
				parts = append(parts, col+"="+ns.String)
			}
		}

		lines = append(lines, strings.Join(parts, " "))
	}

	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("reading plan: %w", err)
	}

	return strings.Join(lines, "; "), nil
}

func (c *mysqlConn) Query(ctx context.Context, query string) (Rows, error) {
	return c.query(ctx, query)
}

func (c *mysqlConn) SessionID(ctx context.Context) (int64, error) {
	return c.queryInt64(ctx, "SELECT CONNECTION_ID()")
}

func (c *mysqlConn) Engine() EngineKind {
	return c.engine
}

func (c *mysqlConn) Close() error {
	return c.close()
}
