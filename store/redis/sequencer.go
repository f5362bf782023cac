// Package redis provides a generic.Sequencer backed by Redis counters.
//
// Each counter is one integer key holding the last number handed out.
// Reserve runs SETNX (seed-1) and INCRBY n in one MULTI/EXEC, so concurrent
// writers across processes never receive overlapping blocks.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/warp/ledger-engine/generic"
)

const defaultPrefix = "ledger:counter:"

// Sequencer implements generic.Sequencer.
type Sequencer struct {
	client goredis.UniversalClient
	prefix string
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithPrefix namespaces counter keys.
func WithPrefix(p string) Option {
	return func(s *Sequencer) { s.prefix = p }
}

func New(client goredis.UniversalClient, opts ...Option) *Sequencer {
	s := &Sequencer{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial connects to addr and pings it.
func Dial(ctx context.Context, addr string) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store/redis: ping: %w", err)
	}
	return client, nil
}

func (s *Sequencer) key(counter string) string { return s.prefix + counter }

// Reserve allocates n numbers and returns the first.
func (s *Sequencer) Reserve(ctx context.Context, counter string, n, seed int64) (int64, error) {
	if n <= 0 {
		return 0, &generic.ValidationError{Field: "n", Message: "reservation size must be positive"}
	}
	key := s.key(counter)

	var incr *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.SetNX(ctx, key, max(seed, 1)-1, 0)
		incr = p.IncrBy(ctx, key, n)
		return nil
	})
	if err != nil {
		return 0, generic.Persist("redis reserve "+counter, err)
	}
	last := incr.Val()
	return last - n + 1, nil
}

// Peek returns the next number Reserve would hand out, or 0 if unused.
func (s *Sequencer) Peek(ctx context.Context, counter string) (int64, error) {
	last, err := s.client.Get(ctx, s.key(counter)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, generic.Persist("redis peek "+counter, err)
	}
	return last + 1, nil
}
