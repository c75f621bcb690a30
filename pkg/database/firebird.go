package database

import (
	"context"
	"fmt"
	"strings"

	// Registers the "firebirdsql" driver.
	_ "github.com/nakagami/firebirdsql"
)

type firebirdConn struct {
	sqlConn
}

// Ensure interface compliance.
var _ Connection = (*firebirdConn)(nil)

func newFirebirdConn(params ConnParams) *firebirdConn {
	return &firebirdConn{
		sqlConn: sqlConn{
			driverName: "firebirdsql",
			dsn:        firebirdDSN(params),
		},
	}
}

// firebirdDSN builds a nakagami/firebirdsql DSN from connection parameters.
func firebirdDSN(p ConnParams) string {
	charset := p.Charset
	if charset == "" {
		charset = "UTF8"
	}

	return fmt.Sprintf("%s:%s@%s:%d/%s?charset=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, strings.ToUpper(charset))
}

func (c *firebirdConn) Open(ctx context.Context) error {
	return c.open(ctx)
}

func (c *firebirdConn) TimedExecute(ctx context.Context, query string) (*ExecResult, error) {
	return c.timedExecute(ctx, query)
}

// Plan reads the plan of the most recent statement for this attachment from
// the monitoring tables. Best effort: the driver has no PLANONLY mode, so an
// empty plan is returned when the row is not there yet.
func (c *firebirdConn) Plan(ctx context.Context, query string) (string, error) {
	id, err := c.SessionID(ctx)
	if err != nil {
		return "", err
	}

	rows, err := c.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT FIRST 1 MON$EXPLAINED_PLAN
		FROM MON$STATEMENTS
		WHERE MON$ATTACHMENT_ID = %d AND MON$EXPLAINED_PLAN IS NOT NULL
		ORDER BY MON$STAT_ID DESC`, id))
	if err != nil {
		return "", nil
	}

	defer func() { _ = rows.Close() }()

	var plan string

	if rows.Next() {
		if err := rows.Scan(&plan); err != nil {
			return "", nil
		}
	}

	return strings.TrimSpace(plan), nil
}

func (c *firebirdConn) Query(ctx context.Context, query string) (Rows, error) {
	return c.query(ctx, query)
}

func (c *firebirdConn) SessionID(ctx context.Context) (int64, error) {
	return c.queryInt64(ctx, "SELECT CURRENT_CONNECTION FROM RDB$DATABASE")
}

func (c *firebirdConn) Engine() EngineKind {
	return EngineFirebird
}

func (c *firebirdConn) Close() error {
	return c.close()
}
