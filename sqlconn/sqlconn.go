// Package sqlconn adapts a database/sql database into a
// shardset.DataConnection. Parameters travel as sql.Named arguments; the
// statement text for a procedure call is produced by a pluggable
// StatementBuilder so drivers with different call syntax (CALL vs SELECT
// FROM function) can share the adapter.
package sqlconn

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/pavandhadge/shardset"
)

// StatementBuilder produces the SQL text invoking a stored procedure with
// the given parameter names. Names arrive sorted; the statement must
// reference them as named placeholders (":name").
type StatementBuilder func(procedure string, names []string) string

// CallStatement is the default builder: "CALL procedure(:a, :b)".
func CallStatement(procedure string, names []string) string {
	placeholders := make([]string, len(names))
	for i, name := range names {
		placeholders[i] = ":" + name
	}
	return fmt.Sprintf("CALL %s(%s)", procedure, strings.Join(placeholders, ", "))
}

// Option configures a Connection.
type Option func(*Connection)

// WithStatementBuilder replaces the default CALL syntax.
func WithStatementBuilder(build StatementBuilder) Option {
	return func(c *Connection) {
		if build != nil {
			c.build = build
		}
	}
}

// Connection is a shardset.DataConnection backed by a *sql.DB. Pooling and
// per-dial behavior stay with database/sql.
type Connection struct {
	db    *sql.DB
	desc  string
	build StatementBuilder
}

var _ shardset.DataConnection = (*Connection)(nil)
var _ shardset.Pinger = (*Connection)(nil)

// New wraps an open database handle. desc identifies the endpoint in logs;
// use a redacted DSN, never one with credentials.
func New(db *sql.DB, desc string, opts ...Option) *Connection {
	c := &Connection{db: db, desc: desc, build: CallStatement}
	for _, apply := range opts {
		apply(c)
	}
	return c
}

// Invoke implements shardset.DataConnection. database/sql returns
// context.Canceled from QueryContext when ctx fires, which is exactly the
// cancellation shape the fan-out engine expects.
func (c *Connection) Invoke(ctx context.Context, procedure string, params shardset.Parameters, singleRow bool) ([]shardset.Row, error) {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]any, 0, len(names))
	for _, name := range names {
		args = append(args, sql.Named(name, params[name]))
	}

	stmt := c.build(procedure, names)
	rows, err := c.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("procedure %q on %s: %w", procedure, c.desc, err)
	}
	defer rows.Close()

	out, err := scanRows(rows, singleRow)
	if err != nil {
		return nil, fmt.Errorf("procedure %q on %s: %w", procedure, c.desc, err)
	}
	return out, nil
}

func scanRows(rows *sql.Rows, singleRow bool) ([]shardset.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []shardset.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(shardset.Row, len(cols))
		for i, col := range cols {
			// Drivers hand text columns back as []byte; strings are
			// friendlier for handlers.
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
		if singleRow {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Description implements shardset.DataConnection.
func (c *Connection) Description() string {
	return "sql " + c.desc
}

// Ping implements shardset.Pinger.
func (c *Connection) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close implements shardset.DataConnection.
func (c *Connection) Close() error {
	return c.db.Close()
}
