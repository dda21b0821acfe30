// Package shardset is a sharded-database access layer. It groups database
// shards into named shard sets, each shard with its own read and write
// endpoints, and lets a caller invoke the same stored procedure against one,
// several, or all shards concurrently.
//
// Two aggregation policies are provided. QueryAll fans the call out to every
// targeted shard, waits for all of them, and gathers the results that were
// produced into a single slice. QueryFirst races the targeted shards and
// returns the first result to arrive, cancelling the calls still in flight.
//
// The package never interprets shard results itself. Each shard's raw rows
// are handed to a caller-supplied Handler which maps them onto whatever model
// type the caller wants; a Handler reporting ok=false means "this shard had
// no answer" and is skipped (QueryAll) or kept polling past (QueryFirst).
//
// Concrete endpoint implementations live in the redisconn, sqlconn and
// grpcconn packages; declarative configuration loading lives in config.
package shardset
