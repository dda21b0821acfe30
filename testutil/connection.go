// Package testutil provides a scripted in-memory DataConnection for tests:
// per-call results, injected errors, artificial latency and invocation
// counters, with no real endpoint behind it.
package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pavandhadge/shardset"
)

// Connection is a scripted shardset.DataConnection. The zero value returns
// no rows and no error for every call. All fields must be set before the
// connection is handed to the engine.
type Connection struct {
	// Rows is returned by every Invoke when RowsFn is nil.
	Rows []shardset.Row

	// RowsFn, when set, produces the result per call and wins over Rows.
	RowsFn func(procedure string, params shardset.Parameters) []shardset.Row

	// Err, when set, fails every Invoke after the delay.
	Err error

	// Delay is how long Invoke blocks before answering. The delay is
	// interrupted by ctx, returning ctx.Err().
	Delay time.Duration

	// Desc is the Description() value.
	Desc string

	// PingErr is returned by Ping.
	PingErr error

	calls  atomic.Int32
	closed atomic.Bool

	mu         sync.Mutex
	lastParams shardset.Parameters
}

var _ shardset.DataConnection = (*Connection)(nil)
var _ shardset.Pinger = (*Connection)(nil)

// Invoke implements shardset.DataConnection.
func (c *Connection) Invoke(ctx context.Context, procedure string, params shardset.Parameters, singleRow bool) ([]shardset.Row, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.lastParams = params.Clone()
	c.mu.Unlock()

	if c.Delay > 0 {
		timer := time.NewTimer(c.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Err != nil {
		return nil, c.Err
	}
	rows := c.Rows
	if c.RowsFn != nil {
		rows = c.RowsFn(procedure, params)
	}
	if singleRow && len(rows) > 1 {
		rows = rows[:1]
	}
	return rows, nil
}

// Description implements shardset.DataConnection.
func (c *Connection) Description() string {
	if c.Desc != "" {
		return c.Desc
	}
	return "testutil connection"
}

// Close implements shardset.DataConnection.
func (c *Connection) Close() error {
	c.closed.Store(true)
	return nil
}

// Ping implements shardset.Pinger.
func (c *Connection) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.PingErr
}

// Calls returns how many times Invoke was entered.
func (c *Connection) Calls() int { return int(c.calls.Load()) }

// Closed reports whether Close was called.
func (c *Connection) Closed() bool { return c.closed.Load() }

// LastParams returns a copy of the parameters seen by the most recent
// Invoke, or nil if Invoke never ran.
func (c *Connection) LastParams() shardset.Parameters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastParams.Clone()
}
