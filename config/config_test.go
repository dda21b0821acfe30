package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavandhadge/shardset"
	"github.com/pavandhadge/shardset/config"
	"github.com/pavandhadge/shardset/testutil"
)

const sampleYAML = `
shard_sets:
  - name: users
    shards:
      - id: "1"
        read:
          driver: redis
          address: localhost:6379
        write:
          driver: redis
          address: localhost:6380
      - id: "2"
        read:
          driver: redis
          address: localhost:6381
  - name: orders
    shards:
      - id: "1"
        write:
          driver: sql
          address: "file:orders.db"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shardsets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	require.Len(t, cfg.ShardSets, 2)

	users := cfg.ShardSets[0]
	assert.Equal(t, "users", users.Name)
	require.Len(t, users.Shards, 2)
	assert.Equal(t, "redis", users.Shards[0].Read.Driver)
	assert.Equal(t, "localhost:6380", users.Shards[0].Write.Address)
	assert.Nil(t, users.Shards[1].Write)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"empty set name", `
shard_sets:
  - name: ""
    shards: []
`},
		{"duplicate set", `
shard_sets:
  - name: users
    shards: []
  - name: users
    shards: []
`},
		{"empty shard id", `
shard_sets:
  - name: users
    shards:
      - id: ""
        read: {driver: redis, address: "x"}
`},
		{"duplicate shard id", `
shard_sets:
  - name: users
    shards:
      - id: "1"
        read: {driver: redis, address: "x"}
      - id: "1"
        read: {driver: redis, address: "y"}
`},
		{"no connection", `
shard_sets:
  - name: users
    shards:
      - id: "1"
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.yaml))
			assert.ErrorIs(t, err, shardset.ErrConfiguration)
		})
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("SHARDSET_CONFIG", "/etc/vectron/shards.yaml")
	assert.Equal(t, "/etc/vectron/shards.yaml", config.DefaultPath())

	t.Setenv("SHARDSET_CONFIG", "")
	assert.Equal(t, "shardsets.yaml", config.DefaultPath())
}

func TestBuild(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	opened := map[string]*testutil.Connection{}
	open := func(conn config.Connection) (shardset.DataConnection, error) {
		c := &testutil.Connection{Desc: conn.Driver + " " + conn.Address}
		opened[conn.Address] = c
		return c, nil
	}

	coll, err := config.Build(cfg, config.IntID, open)
	require.NoError(t, err)
	t.Cleanup(func() { _ = coll.Close() })

	assert.Equal(t, []string{"orders", "users"}, coll.Names())

	users, ok := coll.Set("users")
	require.True(t, ok)
	assert.Equal(t, []int64{1, 2}, users.IDs())

	sh, err := users.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "redis localhost:6379", sh.Read().Description())
	assert.Equal(t, "redis localhost:6380", sh.Write().Description())

	// Shard 2 has no write endpoint: it falls back to the read one.
	sh, err = users.Get(2)
	require.NoError(t, err)
	assert.Same(t, sh.Read(), sh.Write())

	// Write-only shard in orders falls back the other way.
	orders, ok := coll.Set("orders")
	require.True(t, ok)
	sh, err = orders.Get(1)
	require.NoError(t, err)
	assert.Same(t, sh.Write(), sh.Read())

	assert.Len(t, opened, 4)
}

func TestBuildBadShardID(t *testing.T) {
	cfg := &config.Config{ShardSets: []config.ShardSet{{
		Name: "users",
		Shards: []config.Shard{{
			ID:   "not-a-number",
			Read: &config.Connection{Driver: "redis", Address: "x"},
		}},
	}}}

	open := func(config.Connection) (shardset.DataConnection, error) {
		return &testutil.Connection{}, nil
	}
	_, err := config.Build(cfg, config.IntID, open)
	assert.ErrorIs(t, err, shardset.ErrConfiguration)
}

func TestBuildClosesOnFailure(t *testing.T) {
	cfg := &config.Config{ShardSets: []config.ShardSet{{
		Name: "users",
		Shards: []config.Shard{
			{ID: "1", Read: &config.Connection{Driver: "ok", Address: "a"}},
			{ID: "2", Read: &config.Connection{Driver: "bad", Address: "b"}},
		},
	}}}

	first := &testutil.Connection{}
	open := func(conn config.Connection) (shardset.DataConnection, error) {
		if conn.Driver == "bad" {
			return nil, assert.AnError
		}
		return first, nil
	}

	_, err := config.Build(cfg, config.StringID, open)
	require.Error(t, err)
	assert.True(t, first.Closed(), "endpoints opened before the failure are closed")
}

func TestBuildNilConfig(t *testing.T) {
	coll, err := config.Build[int64](nil, config.IntID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, coll.Len())
}
