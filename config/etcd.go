// This file implements the etcd configuration source. Each shard set lives
// under the prefix as one JSON value, so a deployment can push shard-map
// changes to etcd and rebuild its collections on the next load.

package config

import (
	"context"
	"encoding/json"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/pavandhadge/shardset"
)

// DefaultEtcdPrefix is the key prefix shard-set definitions are stored
// under when none is given.
const DefaultEtcdPrefix = "shardset/sets/"

// FromEtcd reads every shard-set definition under prefix and validates the
// assembled configuration. A missing prefix yields an empty configuration,
// not an error; the caller decides whether an empty registry is acceptable.
func FromEtcd(ctx context.Context, cli *clientv3.Client, prefix string) (*Config, error) {
	if prefix == "" {
		prefix = DefaultEtcdPrefix
	}
	resp, err := cli.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("etcd get %s: %w", prefix, err)
	}

	cfg := &Config{}
	for _, kv := range resp.Kvs {
		var set ShardSet
		if err := json.Unmarshal(kv.Value, &set); err != nil {
			return nil, fmt.Errorf("%w: etcd key %s: %v", shardset.ErrConfiguration, kv.Key, err)
		}
		cfg.ShardSets = append(cfg.ShardSets, set)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
