package shardset

import (
	"cmp"
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Collection is the name-keyed registry of shard sets built at process
// start. Like ShardSet it is immutable after construction; reconfiguration
// means building a new Collection.
type Collection[K cmp.Ordered] struct {
	sets   map[string]*ShardSet[K]
	logger *zap.Logger
}

// NewCollection builds a registry from the given shard sets. A nil set or a
// duplicate name is a configuration error. An empty registry is allowed but
// logged as a warning, since it usually means the shard configuration was
// missing at load time.
func NewCollection[K cmp.Ordered](sets []*ShardSet[K], opts ...Option) (*Collection[K], error) {
	o := buildOptions(opts)
	byName := make(map[string]*ShardSet[K], len(sets))
	for i, set := range sets {
		if set == nil {
			return nil, fmt.Errorf("%w: nil shard set at index %d", ErrConfiguration, i)
		}
		if _, exists := byName[set.name]; exists {
			return nil, fmt.Errorf("%w: shard set %q defined twice", ErrConfiguration, set.name)
		}
		byName[set.name] = set
	}
	if len(byName) == 0 {
		o.logger.Warn("shardset: no shard sets configured, registry is empty")
	}
	return &Collection[K]{sets: byName, logger: o.logger}, nil
}

// Set returns the named shard set and whether it exists.
func (c *Collection[K]) Set(name string) (*ShardSet[K], bool) {
	set, ok := c.sets[name]
	return set, ok
}

// Names returns the registered shard set names in ascending order.
func (c *Collection[K]) Names() []string {
	names := make([]string, 0, len(c.sets))
	for name := range c.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered shard sets.
func (c *Collection[K]) Len() int { return len(c.sets) }

// Close closes every shard set and reports the first error seen.
func (c *Collection[K]) Close() error {
	var first error
	for _, name := range c.Names() {
		if err := c.sets[name].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Ping probes every shard set concurrently.
func (c *Collection[K]) Ping(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range c.Names() {
		set := c.sets[name]
		g.Go(func() error {
			if err := set.Ping(ctx); err != nil {
				return fmt.Errorf("shard set %q: %w", set.name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
