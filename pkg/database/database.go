package database

import (
	"context"
	"fmt"
	"time"
)

// EngineKind represents supported database engines.
type EngineKind string

const (
	EngineFirebird   EngineKind = "firebird"
	EngineMySQL      EngineKind = "mysql"
	EngineMariaDB    EngineKind = "mariadb"
	EnginePostgreSQL EngineKind = "postgresql"
)

// validEngines is the list of supported engine kinds.
var validEngines = map[EngineKind]struct{}{
	EngineFirebird:   {},
	EngineMySQL:      {},
	EngineMariaDB:    {},
	EnginePostgreSQL: {},
}

// ParseEngine validates and normalizes an engine name.
func ParseEngine(s string) (EngineKind, error) {
	kind := EngineKind(s)
	if _, ok := validEngines[kind]; !ok {
		return "", fmt.Errorf("unknown engine type: %q", s)
	}

	return kind, nil
}

// DefaultPort returns the conventional port for the engine.
func (e EngineKind) DefaultPort() int {
	switch e {
	case EngineFirebird:
		return 3050
	case EngineMySQL, EngineMariaDB:
		return 3306
	case EnginePostgreSQL:
		return 5432
	default:
		return 0
	}
}

// ConnParams holds everything needed to open a connection to one server.
type ConnParams struct {
	Engine   EngineKind
	Host     string
	Port     int
	Database string
	User     string
	Password string
	Charset  string
}

// ExecResult is what a timed query execution reports back.
//
// ServerElapsed is the time from query dispatch until the first row was
// available, which isolates server-side processing from result transfer.
// A zero ServerElapsed means the engine adapter could not isolate it; the
// caller then falls back to the client-observed total.
type ExecResult struct {
	ServerElapsed time.Duration
	RowCount      int64
}

// Rows is the minimal result-set surface collectors need.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Connection is the capability one benchmark worker holds against one server.
// Implementations are not safe for concurrent use; a connection belongs to
// exactly one worker at a time.
type Connection interface {
	// Open establishes the connection. Must be called before anything else
	// and may be called again after Close.
	Open(ctx context.Context) error

	// TimedExecute runs the query, consumes the full result set, and
	// reports row count plus isolated server time.
	TimedExecute(ctx context.Context, query string) (*ExecResult, error)

	// Plan returns the engine's execution plan for the query without
	// running it, or an empty string when the engine cannot provide one.
	Plan(ctx context.Context, query string) (string, error)

	// Query runs an auxiliary statement (used by statistics collectors).
	Query(ctx context.Context, query string) (Rows, error)

	// SessionID returns the server-side session/attachment identifier.
	SessionID(ctx context.Context) (int64, error)

	Engine() EngineKind
	Close() error
}

// New creates a connection for the given parameters. The engine kind is
// resolved once here; no engine branching happens after this point.
func New(params ConnParams) (Connection, error) {
	if params.Port == 0 {
		params.Port = params.Engine.DefaultPort()
	}

	switch params.Engine {
	case EnginePostgreSQL:
		return newPostgresConn(params), nil
	case EngineMySQL, EngineMariaDB:
		return newMySQLConn(params), nil
	case EngineFirebird:
		return newFirebirdConn(params), nil
	default:
		return nil, fmt.Errorf("unknown engine type: %q", params.Engine)
	}
}
