// sqlconn tests run against an in-memory SQLite database, so a real
// database/sql driver exercises the scan path end to end.

package sqlconn_test

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/pavandhadge/shardset"
	"github.com/pavandhadge/shardset/sqlconn"
)

// sqliteProcedures maps procedure names onto plain statements, standing in
// for stored procedures, which SQLite does not have.
var sqliteProcedures = map[string]string{
	"get_users_by_region": "SELECT id, name, region FROM users WHERE region = :region ORDER BY id",
	"find_user":           "SELECT id, name, region FROM users WHERE id = :id",
	"count_users":         "SELECT COUNT(*) AS n FROM users",
}

func newSQLiteConn(t *testing.T) *sqlconn.Connection {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// One pooled connection, or each pool member would see its own empty
	// in-memory database.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE users (id TEXT PRIMARY KEY, name TEXT, region TEXT)`)
	require.NoError(t, err)
	for _, row := range [][3]string{
		{"u1", "Ada", "eu"},
		{"u2", "Grace", "us"},
		{"u3", "Linus", "eu"},
	} {
		_, err = db.Exec(`INSERT INTO users VALUES (?, ?, ?)`, row[0], row[1], row[2])
		require.NoError(t, err)
	}

	conn := sqlconn.New(db, "sqlite :memory:", sqlconn.WithStatementBuilder(
		func(procedure string, _ []string) string {
			return sqliteProcedures[procedure]
		}))
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestInvoke(t *testing.T) {
	conn := newSQLiteConn(t)

	rows, err := conn.Invoke(context.Background(), "get_users_by_region",
		shardset.Parameters{"region": "eu"}, false)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	names := []string{rows[0]["name"].(string), rows[1]["name"].(string)}
	sort.Strings(names)
	assert.Equal(t, []string{"Ada", "Linus"}, names)
	assert.Equal(t, "eu", rows[0]["region"])
}

func TestInvokeSingleRow(t *testing.T) {
	conn := newSQLiteConn(t)

	rows, err := conn.Invoke(context.Background(), "get_users_by_region",
		shardset.Parameters{"region": "eu"}, true)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestInvokeNoRows(t *testing.T) {
	conn := newSQLiteConn(t)

	rows, err := conn.Invoke(context.Background(), "find_user",
		shardset.Parameters{"id": "missing"}, true)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestInvokeBadStatement(t *testing.T) {
	conn := newSQLiteConn(t)

	_, err := conn.Invoke(context.Background(), "no_such_procedure",
		shardset.Parameters{}, false)
	assert.Error(t, err)
}

func TestInvokeCancelledContext(t *testing.T) {
	conn := newSQLiteConn(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := conn.Invoke(ctx, "count_users", shardset.Parameters{}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPingAndDescription(t *testing.T) {
	conn := newSQLiteConn(t)

	assert.NoError(t, conn.Ping(context.Background()))
	assert.Equal(t, "sql sqlite :memory:", conn.Description())
}

func TestCallStatement(t *testing.T) {
	stmt := sqlconn.CallStatement("get_users", []string{"region", "shard_id"})
	assert.Equal(t, "CALL get_users(:region, :shard_id)", stmt)

	assert.Equal(t, "CALL noop()", sqlconn.CallStatement("noop", nil))
}

// The adapter works as a shard endpoint under the fan-out engine: two
// SQLite "shards" answering the same procedure.
func TestFanOutOverSQLite(t *testing.T) {
	shardA := newSQLiteConn(t)
	shardB := newSQLiteConn(t)

	a, err := shardset.NewShard(1, shardA, nil)
	require.NoError(t, err)
	b, err := shardset.NewShard(2, shardB, nil)
	require.NoError(t, err)
	set, err := shardset.NewShardSet("users", []*shardset.Shard[int]{a, b})
	require.NoError(t, err)

	counts, qerr := shardset.QueryAll(context.Background(), set, shardset.Query[int]{
		Procedure:  "count_users",
		Parameters: shardset.Parameters{},
	}, func(rows []shardset.Row, _ any) (int64, bool, error) {
		if len(rows) == 0 {
			return 0, false, nil
		}
		n, ok := rows[0]["n"].(int64)
		if !ok {
			return 0, false, fmt.Errorf("unexpected count type %T", rows[0]["n"])
		}
		return n, true, nil
	})
	require.NoError(t, qerr)
	assert.Equal(t, []int64{3, 3}, counts)
}
