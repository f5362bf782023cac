package redis_test

import (
	"context"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-engine/generic"
	redisseq "github.com/warp/ledger-engine/store/redis"
)

func newSequencer(t *testing.T) (*redisseq.Sequencer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisseq.New(client), mr
}

func TestReserve_FreshCounterStartsAtSeed(t *testing.T) {
	seq, _ := newSequencer(t)
	ctx := context.Background()

	// GIVEN: an unused voucher counter
	// WHEN: reserving one number
	first, err := seq.Reserve(ctx, generic.CounterReceipt, 1, 1)

	// THEN: the block starts at 1
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)

	next, err := seq.Peek(ctx, generic.CounterReceipt)
	require.NoError(t, err)
	assert.Equal(t, int64(2), next)
}

func TestReserve_BaleBlockHonoursItemSeed(t *testing.T) {
	seq, mr := newSequencer(t)
	ctx := context.Background()

	// GIVEN: an item whose stored nextBaleNumber is 101
	counter := generic.BaleCounter("item-1")

	// WHEN: two blocks of 50 are reserved
	a, err := seq.Reserve(ctx, counter, 50, 101)
	require.NoError(t, err)
	b, err := seq.Reserve(ctx, counter, 50, 101)
	require.NoError(t, err)

	// THEN: the blocks are contiguous and the seed is ignored the second time
	assert.Equal(t, int64(101), a)
	assert.Equal(t, int64(151), b)
	got, err := mr.Get("ledger:counter:" + counter)
	require.NoError(t, err)
	assert.Equal(t, "200", got)
}

func TestReserve_ConcurrentWritersNeverShareANumber(t *testing.T) {
	seq, _ := newSequencer(t)
	ctx := context.Background()

	const writers = 20
	var (
		mu   sync.Mutex
		seen = make(map[int64]bool)
		wg   sync.WaitGroup
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := seq.Reserve(ctx, generic.CounterPayment, 1, 1)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, seen[n], "number %d handed out twice", n)
			seen[n] = true
		}()
	}
	wg.Wait()

	assert.Len(t, seen, writers)
	for i := int64(1); i <= writers; i++ {
		assert.True(t, seen[i], "missing %d", i)
	}
}

func TestReserve_RejectsEmptyBlock(t *testing.T) {
	seq, _ := newSequencer(t)

	_, err := seq.Reserve(context.Background(), generic.CounterExpense, 0, 1)

	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestPeek_UnusedCounterIsZero(t *testing.T) {
	seq, _ := newSequencer(t)

	next, err := seq.Peek(context.Background(), "never-used")

	require.NoError(t, err)
	assert.Zero(t, next)
}
