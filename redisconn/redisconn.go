// Package redisconn adapts a Redis instance into a shardset.DataConnection.
// A "stored procedure" here is a registered server-side Lua script: Invoke
// runs the script named by the procedure via EVALSHA (with an automatic
// EVAL fallback on the first call), passing the parameter collection as one
// JSON argument and decoding the reply as a JSON array of rows.
package redisconn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/pavandhadge/shardset"
)

// Connection is a shardset.DataConnection backed by one Redis endpoint.
type Connection struct {
	client  *redis.Client
	scripts map[string]*redis.Script
}

var _ shardset.DataConnection = (*Connection)(nil)
var _ shardset.Pinger = (*Connection)(nil)

// New wraps a Redis client. procedures maps procedure names onto Lua
// sources; invoking a name outside the map is an ErrInvalidArgument, so a
// typo fails loudly instead of reaching the server.
func New(client *redis.Client, procedures map[string]string) *Connection {
	scripts := make(map[string]*redis.Script, len(procedures))
	for name, src := range procedures {
		scripts[name] = redis.NewScript(src)
	}
	return &Connection{client: client, scripts: scripts}
}

// Invoke implements shardset.DataConnection.
//
// The script receives the JSON-encoded parameters as ARGV[1] and must reply
// with a JSON array of objects (or a Lua nil for "no rows"). go-redis
// surfaces context cancellation as ctx.Err(), which satisfies the engine's
// errors.Is(err, context.Canceled) contract as-is.
func (c *Connection) Invoke(ctx context.Context, procedure string, params shardset.Parameters, singleRow bool) ([]shardset.Row, error) {
	script, ok := c.scripts[procedure]
	if !ok {
		return nil, fmt.Errorf("%w: unknown procedure %q on %s", shardset.ErrInvalidArgument, procedure, c.Description())
	}

	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode parameters for %q: %w", procedure, err)
	}

	reply, err := script.Run(ctx, c.client, nil, string(payload)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("procedure %q on %s: %w", procedure, c.Description(), err)
	}
	return decodeReply(procedure, reply, singleRow)
}

// decodeReply turns a script reply into result rows.
func decodeReply(procedure string, reply any, singleRow bool) ([]shardset.Row, error) {
	if reply == nil {
		return nil, nil
	}
	raw, ok := reply.(string)
	if !ok {
		return nil, fmt.Errorf("procedure %q replied with %T, want a JSON string", procedure, reply)
	}
	if raw == "" {
		return nil, nil
	}
	var rows []shardset.Row
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, fmt.Errorf("decode reply of procedure %q: %w", procedure, err)
	}
	if singleRow && len(rows) > 1 {
		rows = rows[:1]
	}
	return rows, nil
}

// Description implements shardset.DataConnection.
func (c *Connection) Description() string {
	return "redis " + c.client.Options().Addr
}

// Ping implements shardset.Pinger.
func (c *Connection) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close implements shardset.DataConnection.
func (c *Connection) Close() error {
	return c.client.Close()
}
