package config

import (
	"cmp"
	"fmt"
	"strconv"

	"github.com/pavandhadge/shardset"
)

// Opener turns one endpoint description into a live DataConnection. It maps
// the Driver field onto an adapter (redisconn, sqlconn, grpcconn, or the
// caller's own).
type Opener func(conn Connection) (shardset.DataConnection, error)

// IntID parses shard ids as int64. Convenience for Build.
func IntID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: shard id %q is not an integer", shardset.ErrConfiguration, s)
	}
	return id, nil
}

// StringID keeps shard ids as strings. Convenience for Build.
func StringID(s string) (string, error) { return s, nil }

// Build turns a validated configuration into a live Collection, opening
// every endpoint through open and parsing shard ids through parse. A nil
// configuration builds an empty registry (logged as a warning by the
// collection). On any failure the connections opened so far are closed
// before the error is returned.
func Build[K cmp.Ordered](cfg *Config, parse func(string) (K, error), open Opener, opts ...shardset.Option) (*shardset.Collection[K], error) {
	if cfg == nil {
		return shardset.NewCollection[K](nil, opts...)
	}

	var opened []shardset.DataConnection
	closeOpened := func() {
		for _, conn := range opened {
			_ = conn.Close()
		}
	}

	sets := make([]*shardset.ShardSet[K], 0, len(cfg.ShardSets))
	for _, setCfg := range cfg.ShardSets {
		shards := make([]*shardset.Shard[K], 0, len(setCfg.Shards))
		for _, shardCfg := range setCfg.Shards {
			id, err := parse(shardCfg.ID)
			if err != nil {
				closeOpened()
				return nil, err
			}
			var read, write shardset.DataConnection
			if shardCfg.Read != nil {
				if read, err = open(*shardCfg.Read); err != nil {
					closeOpened()
					return nil, fmt.Errorf("open read endpoint of shard %q in set %q: %w", shardCfg.ID, setCfg.Name, err)
				}
				opened = append(opened, read)
			}
			if shardCfg.Write != nil {
				if write, err = open(*shardCfg.Write); err != nil {
					closeOpened()
					return nil, fmt.Errorf("open write endpoint of shard %q in set %q: %w", shardCfg.ID, setCfg.Name, err)
				}
				opened = append(opened, write)
			}
			sh, err := shardset.NewShard(id, read, write)
			if err != nil {
				closeOpened()
				return nil, err
			}
			shards = append(shards, sh)
		}
		set, err := shardset.NewShardSet(setCfg.Name, shards, opts...)
		if err != nil {
			closeOpened()
			return nil, err
		}
		sets = append(sets, set)
	}

	coll, err := shardset.NewCollection(sets, opts...)
	if err != nil {
		closeOpened()
		return nil, err
	}
	return coll, nil
}
