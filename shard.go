package shardset

import (
	"cmp"
	"context"
	"fmt"
)

// Shard is one member of a shard set: an immutable id plus a read and a
// write endpoint. When only one endpoint is configured the other side falls
// back to it, so a read-only shard still answers write-routed calls against
// the same endpoint and vice versa.
type Shard[K cmp.Ordered] struct {
	id    K
	read  DataConnection
	write DataConnection
}

// NewShard builds a shard from its id and endpoints. At least one of read
// and write must be non-nil; the missing side falls back to the other.
func NewShard[K cmp.Ordered](id K, read, write DataConnection) (*Shard[K], error) {
	if read == nil && write == nil {
		return nil, fmt.Errorf("%w: shard %v has neither a read nor a write connection", ErrConfiguration, id)
	}
	if read == nil {
		read = write
	}
	if write == nil {
		write = read
	}
	return &Shard[K]{id: id, read: read, write: write}, nil
}

// ID returns the shard's identifier.
func (s *Shard[K]) ID() K { return s.id }

// Read returns the shard's read endpoint.
func (s *Shard[K]) Read() DataConnection { return s.read }

// Write returns the shard's write endpoint.
func (s *Shard[K]) Write() DataConnection { return s.write }

// Close closes the shard's endpoints. A shared fallback endpoint is closed
// once.
func (s *Shard[K]) Close() error {
	err := s.read.Close()
	if s.write != s.read {
		if werr := s.write.Close(); err == nil {
			err = werr
		}
	}
	return err
}

func (s *Shard[K]) ping(ctx context.Context) error {
	if p, ok := s.read.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("shard %v read (%s): %w", s.id, s.read.Description(), err)
		}
	}
	if s.write == s.read {
		return nil
	}
	if p, ok := s.write.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("shard %v write (%s): %w", s.id, s.write.Description(), err)
		}
	}
	return nil
}
