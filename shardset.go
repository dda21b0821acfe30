// This file implements the ShardSet registry: the immutable, id-keyed
// container of shards that the fan-out engine iterates over.

package shardset

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Option configures a ShardSet or Collection at construction time.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger injects the logger used for dispatch and failure diagnostics.
// The default is zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// ShardSet is a named, immutable collection of shards addressed as one
// logical fan-out target. It is built once from configuration; changing the
// membership means building a new set. Concurrent reads need no locking.
type ShardSet[K cmp.Ordered] struct {
	name   string
	shards map[K]*Shard[K]
	ids    []K // sorted once at construction
	logger *zap.Logger
}

// NewShardSet builds a shard set from its members. A nil shard entry or a
// duplicate shard id is a fatal configuration error: a malformed definition
// must not silently produce a partial set.
func NewShardSet[K cmp.Ordered](name string, shards []*Shard[K], opts ...Option) (*ShardSet[K], error) {
	o := buildOptions(opts)
	byID := make(map[K]*Shard[K], len(shards))
	for i, sh := range shards {
		if sh == nil {
			return nil, fmt.Errorf("%w: shard set %q has a nil shard at index %d", ErrConfiguration, name, i)
		}
		if _, exists := byID[sh.id]; exists {
			return nil, fmt.Errorf("%w: shard set %q defines shard %v twice", ErrConfiguration, name, sh.id)
		}
		byID[sh.id] = sh
	}
	ids := make([]K, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return &ShardSet[K]{name: name, shards: byID, ids: ids, logger: o.logger}, nil
}

// Name returns the shard set's name.
func (s *ShardSet[K]) Name() string { return s.name }

// Len returns the number of shards in the set.
func (s *ShardSet[K]) Len() int { return len(s.shards) }

// Get returns the shard with the given id, or ErrShardNotFound.
func (s *ShardSet[K]) Get(id K) (*Shard[K], error) {
	sh, ok := s.shards[id]
	if !ok {
		return nil, fmt.Errorf("%w: %v in shard set %q", ErrShardNotFound, id, s.name)
	}
	return sh, nil
}

// IDs returns the shard ids in ascending order. The returned slice is a
// copy; callers may modify it.
func (s *ShardSet[K]) IDs() []K {
	return slices.Clone(s.ids)
}

// Close closes every shard's endpoints and reports the first error seen.
func (s *ShardSet[K]) Close() error {
	var first error
	for _, id := range s.ids {
		if err := s.shards[id].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Ping probes every shard endpoint concurrently and returns the first
// failure. Endpoints that do not implement Pinger are skipped.
func (s *ShardSet[K]) Ping(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, id := range s.ids {
		sh := s.shards[id]
		g.Go(func() error {
			return sh.ping(ctx)
		})
	}
	return g.Wait()
}
