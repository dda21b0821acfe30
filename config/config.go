// Package config loads declarative shard-set definitions and turns them
// into a live shardset.Collection. Definitions can come from a YAML file or
// from etcd; the file path defaults from the environment so deployments can
// point a process at its shard map without code changes.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pavandhadge/shardset"
)

// Connection describes one shard endpoint.
type Connection struct {
	// Driver selects the adapter, e.g. "redis", "sql" or "grpc". The
	// Opener passed to Build decides what the value means.
	Driver string `yaml:"driver" json:"driver"`
	// Address is the endpoint address or DSN.
	Address string `yaml:"address" json:"address"`
	// Options carries driver-specific settings.
	Options map[string]string `yaml:"options,omitempty" json:"options,omitempty"`
}

// Shard describes one shard of a set. At least one of Read and Write must
// be present; the missing side falls back to the other at build time.
type Shard struct {
	ID    string      `yaml:"id" json:"id"`
	Read  *Connection `yaml:"read,omitempty" json:"read,omitempty"`
	Write *Connection `yaml:"write,omitempty" json:"write,omitempty"`
}

// ShardSet describes one named shard set.
type ShardSet struct {
	Name   string  `yaml:"name" json:"name"`
	Shards []Shard `yaml:"shards" json:"shards"`
}

// Config is the full shard-set configuration of a process.
type Config struct {
	ShardSets []ShardSet `yaml:"shard_sets" json:"shard_sets"`
}

// DefaultPath returns the configuration file path, from SHARDSET_CONFIG
// with a local-file fallback.
func DefaultPath() string {
	return getEnv("SHARDSET_CONFIG", "shardsets.yaml")
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shard config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", shardset.ErrConfiguration, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for malformed entries. A bad entry is
// fatal: a partial shard set must never be built silently.
func (c *Config) Validate() error {
	seenSets := map[string]bool{}
	for _, set := range c.ShardSets {
		if set.Name == "" {
			return fmt.Errorf("%w: shard set with empty name", shardset.ErrConfiguration)
		}
		if seenSets[set.Name] {
			return fmt.Errorf("%w: shard set %q defined twice", shardset.ErrConfiguration, set.Name)
		}
		seenSets[set.Name] = true

		seenShards := map[string]bool{}
		for _, sh := range set.Shards {
			if sh.ID == "" {
				return fmt.Errorf("%w: shard set %q has a shard with an empty id", shardset.ErrConfiguration, set.Name)
			}
			if seenShards[sh.ID] {
				return fmt.Errorf("%w: shard set %q defines shard %q twice", shardset.ErrConfiguration, set.Name, sh.ID)
			}
			seenShards[sh.ID] = true
			if sh.Read == nil && sh.Write == nil {
				return fmt.Errorf("%w: shard %q in set %q has no connection", shardset.ErrConfiguration, sh.ID, set.Name)
			}
		}
	}
	return nil
}

// getEnv retrieves an environment variable by key, returning a fallback
// value if not set.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
