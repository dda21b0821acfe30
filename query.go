// This file implements the fan-out/fan-in query engine: the concurrent
// dispatch of one stored-procedure call across the shards of a set, and the
// two aggregation policies over the per-shard results (gather all, or race
// to the first answer and cancel the rest).

package shardset

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Handler maps one shard's raw rows onto the caller's model type. ok=false
// means the shard had no answer for this call; the engine skips the value
// (QueryAll) or keeps polling past it (QueryFirst). A Handler error counts
// as that shard's failure. arg is the Query.Arg value, passed through
// untouched.
type Handler[T any] func(rows []Row, arg any) (T, bool, error)

// Query describes one fan-out call against a shard set.
type Query[K cmp.Ordered] struct {
	// Procedure is the stored procedure or server-side function to invoke.
	// Required.
	Procedure string

	// Parameters is the base named-parameter collection. Required (may be
	// empty). Each targeted shard gets its own clone; the caller's value is
	// never mutated.
	Parameters Parameters

	// ShardParameter, when non-empty, names the parameter that carries the
	// current shard's id into each per-shard invocation.
	ShardParameter string

	// Targets selects the shards to hit. Empty means every shard in the
	// set with default parameters; otherwise the shard ids appearing here
	// form the target list and the (name, value) pairs override that
	// shard's parameters.
	Targets []ShardParameterValue[K]

	// Exclude removes shards from the target list after Targets (or the
	// whole set) selected them. Excluding a shard that was never targeted
	// is not an error.
	Exclude []K

	// Arg is an opaque caller value forwarded to the Handler.
	Arg any

	// SingleRow hints that only the first result row is needed.
	SingleRow bool

	// UseWrite routes the call to each shard's write endpoint instead of
	// its read endpoint.
	UseWrite bool
}

// target is one shard's share of a fan-out call.
type target[K cmp.Ordered] struct {
	shard     *Shard[K]
	overrides Parameters
}

// outcome is one settled per-shard invocation.
type outcome[K cmp.Ordered, T any] struct {
	shard K
	value T
	ok    bool
	err   error
}

// QueryAll invokes q on every targeted shard concurrently, waits for all of
// them, and returns the values the Handler produced, in completion order
// (not shard order). Shards whose Handler reports ok=false contribute
// nothing; an empty target set or an all-declined call returns an empty,
// non-nil slice.
//
// A failing shard does not short-circuit the others: every dispatched
// invocation settles before the call returns, and the failures are then
// surfaced together via errors.Join. Cancelling ctx before dispatch returns
// ctx.Err() with no shard contacted; cancelling it mid-flight returns
// ctx.Err() promptly without waiting for the in-flight calls to unwind (they
// observe the same ctx and stop on their own).
func QueryAll[K cmp.Ordered, T any](ctx context.Context, set *ShardSet[K], q Query[K], handler Handler[T]) ([]T, error) {
	targets, err := prepareTargets(set, q)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	set.logger.Debug("shardset: fan-out dispatch",
		zap.String("set", set.name),
		zap.String("procedure", q.Procedure),
		zap.Int("shards", len(targets)))

	// Buffered to len(targets) so late finishers never block after an
	// early return on ctx cancellation.
	outcomes := make(chan outcome[K, T], len(targets))
	for _, t := range targets {
		go invokeShard(ctx, t, q, handler, outcomes)
	}

	results := make([]T, 0, len(targets))
	var failures []error
	for remaining := len(targets); remaining > 0; remaining-- {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case o := <-outcomes:
			if o.err != nil {
				set.logger.Warn("shardset: shard invocation failed",
					zap.String("set", set.name),
					zap.String("procedure", q.Procedure),
					zap.Any("shard", o.shard),
					zap.Error(o.err))
				failures = append(failures, fmt.Errorf("shard %v: %w", o.shard, o.err))
				continue
			}
			if o.ok {
				results = append(results, o.value)
			}
		}
	}
	if len(failures) > 0 {
		return nil, errors.Join(failures...)
	}
	return results, nil
}

// QueryFirst invokes q on every targeted shard concurrently and returns the
// first answer to arrive, cancelling the invocations still in flight. The
// winner is decided by completion order: when more than one shard could
// answer, which value is returned varies across runs. That race is the
// point of the policy (fastest responder wins), not an accident.
//
// ok=false with a nil error means no shard had an answer, a valid outcome.
// Cancellation-flavored errors from losing shards are absorbed, since they
// are how the losers terminate once the internal cancellation fires; any
// other per-shard failure aborts the race immediately. Cancelling ctx
// returns ctx.Err().
func QueryFirst[K cmp.Ordered, T any](ctx context.Context, set *ShardSet[K], q Query[K], handler Handler[T]) (T, bool, error) {
	var zero T
	targets, err := prepareTargets(set, q)
	if err != nil {
		return zero, false, err
	}
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}

	// The race context stops the losers once a winner arrives or the
	// caller cancels. The deferred cancel covers every exit path.
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan outcome[K, T], len(targets))
	for _, t := range targets {
		go invokeShard(raceCtx, t, q, handler, outcomes)
	}

	for remaining := len(targets); remaining > 0; remaining-- {
		o := <-outcomes
		if err := ctx.Err(); err != nil {
			return zero, false, err
		}
		if o.err != nil {
			if cancellationOnly(o.err) {
				continue
			}
			return zero, false, fmt.Errorf("shard %v: %w", o.shard, o.err)
		}
		if o.ok {
			set.logger.Debug("shardset: race won",
				zap.String("set", set.name),
				zap.String("procedure", q.Procedure),
				zap.Any("shard", o.shard))
			return o.value, true, nil
		}
	}
	return zero, false, nil
}

// prepareTargets validates the query and resolves its target-shard list.
// Synchronous and in-memory; nothing is dispatched from here.
func prepareTargets[K cmp.Ordered](set *ShardSet[K], q Query[K]) ([]target[K], error) {
	if strings.TrimSpace(q.Procedure) == "" {
		return nil, fmt.Errorf("%w: procedure name cannot be empty", ErrInvalidArgument)
	}
	if q.Parameters == nil {
		return nil, fmt.Errorf("%w: parameters cannot be nil", ErrInvalidArgument)
	}
	excluded := make(map[K]bool, len(q.Exclude))
	for _, id := range q.Exclude {
		excluded[id] = true
	}
	if len(q.Targets) == 0 {
		targets := make([]target[K], 0, set.Len())
		for _, id := range set.ids {
			if excluded[id] {
				continue
			}
			targets = append(targets, target[K]{shard: set.shards[id]})
		}
		return targets, nil
	}
	overrides, err := ResolveShardParameters(q.Targets)
	if err != nil {
		return nil, err
	}
	targets := make([]target[K], 0, len(overrides))
	for id, shardOverrides := range overrides {
		if excluded[id] {
			continue
		}
		sh, err := set.Get(id)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target[K]{shard: sh, overrides: shardOverrides})
	}
	return targets, nil
}

// invokeShard runs one shard's share of a fan-out call: clone the base
// parameters, stamp in the shard id and per-shard overrides, invoke, map.
// The clone keeps every invocation's parameters private to it, so there is
// no shared mutable parameter state between concurrently executing calls.
func invokeShard[K cmp.Ordered, T any](ctx context.Context, t target[K], q Query[K], handler Handler[T], outcomes chan<- outcome[K, T]) {
	params := q.Parameters.Clone()
	if q.ShardParameter != "" {
		params[q.ShardParameter] = t.shard.id
	}
	for name, value := range t.overrides {
		params[name] = value
	}

	conn := t.shard.read
	if q.UseWrite {
		conn = t.shard.write
	}
	rows, err := conn.Invoke(ctx, q.Procedure, params, q.SingleRow)
	if err != nil {
		outcomes <- outcome[K, T]{shard: t.shard.id, err: err}
		return
	}
	value, ok, err := handler(rows, q.Arg)
	outcomes <- outcome[K, T]{shard: t.shard.id, value: value, ok: ok, err: err}
}

// cancellationOnly reports whether every leaf cause of err is a context
// cancellation or deadline error. A joined error that bundles a real
// failure alongside cancellations is not cancellation-only and must
// propagate.
func cancellationOnly(err error) bool {
	if err == nil {
		return false
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, sub := range joined.Unwrap() {
			if !cancellationOnly(sub) {
				return false
			}
		}
		return true
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return true
	}
	if unwrapped := errors.Unwrap(err); unwrapped != nil {
		return cancellationOnly(unwrapped)
	}
	return false
}
