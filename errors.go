package shardset

import "errors"

var (
	// ErrInvalidArgument reports a missing procedure name or a nil parameter
	// collection. It is returned synchronously, before any shard is contacted.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDuplicateParameter reports the same (shard, parameter name) override
	// supplied more than once in a single call.
	ErrDuplicateParameter = errors.New("duplicate shard parameter")

	// ErrConfiguration reports a malformed shard or shard-set definition at
	// construction time.
	ErrConfiguration = errors.New("invalid shard set configuration")

	// ErrShardNotFound reports a lookup of a shard id that is not part of
	// the set.
	ErrShardNotFound = errors.New("shard not found")
)
