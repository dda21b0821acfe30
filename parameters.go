// This file implements the named-parameter collection passed to stored
// procedures and the per-shard parameter override resolver.

package shardset

import (
	"cmp"
	"fmt"
)

// Parameters is a named parameter collection for a stored-procedure call.
// The fan-out engine never mutates a caller's Parameters value: every
// per-shard invocation receives its own clone.
type Parameters map[string]any

// Clone returns a shallow copy of the parameter collection. Cloning a nil
// collection returns nil.
func (p Parameters) Clone() Parameters {
	if p == nil {
		return nil
	}
	out := make(Parameters, len(p))
	for name, value := range p {
		out[name] = value
	}
	return out
}

// ShardParameterValue overrides one named parameter for one targeted shard.
// Supplying a non-empty list of these to a query both selects the target
// shards and carries their per-shard parameter values.
type ShardParameterValue[K cmp.Ordered] struct {
	Shard K
	Name  string
	Value any
}

// ResolveShardParameters validates and indexes per-shard parameter overrides
// into a shard-id-keyed map. It returns ErrDuplicateParameter if the same
// (shard, name) pair appears twice; nothing is returned in that case, so a
// caller never observes a partially applied override map. A nil or empty
// input yields a nil map, meaning "every shard in the set, defaults only".
func ResolveShardParameters[K cmp.Ordered](values []ShardParameterValue[K]) (map[K]Parameters, error) {
	if len(values) == 0 {
		return nil, nil
	}
	resolved := make(map[K]Parameters)
	for _, v := range values {
		overrides, ok := resolved[v.Shard]
		if !ok {
			overrides = make(Parameters)
			resolved[v.Shard] = overrides
		}
		if _, exists := overrides[v.Name]; exists {
			return nil, fmt.Errorf("%w: parameter %q supplied twice for shard %v", ErrDuplicateParameter, v.Name, v.Shard)
		}
		overrides[v.Name] = v.Value
	}
	return resolved, nil
}
