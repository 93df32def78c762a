package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/envstream/internal/model"
)

func snapSet(name string, value float32) []model.SensorSnapshot {
	s := model.NewSnapshot(name, "thp", "room1")
	s.Push("temperature", value, "°C")
	return []model.SensorSnapshot{s}
}

func firstValue(t *testing.T, snaps []model.SensorSnapshot) float32 {
	t.Helper()
	require.Len(t, snaps, 1)
	r, ok := snaps[0].Reading("temperature")
	require.True(t, ok)
	return r.Value
}

func TestLatestEmptyBeforePublish(t *testing.T) {
	ch := NewChannel(DefaultCapacity)
	got := ch.Latest()
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLatestReturnsNewestAndCaches(t *testing.T) {
	ctx := context.Background()
	ch := NewChannel(DefaultCapacity)

	require.NoError(t, ch.Publish(ctx, snapSet("a", 1)))
	require.NoError(t, ch.Publish(ctx, snapSet("a", 2)))

	assert.Equal(t, float32(2), firstValue(t, ch.Latest()))
	// Nothing new: the cached value is returned again.
	assert.Equal(t, float32(2), firstValue(t, ch.Latest()))
	assert.Equal(t, 0, ch.Pending())
}

func TestLatestReturnsClone(t *testing.T) {
	ctx := context.Background()
	ch := NewChannel(DefaultCapacity)
	require.NoError(t, ch.Publish(ctx, snapSet("a", 1)))

	got := ch.Latest()
	got[0].Push("temperature", 99, "°C")

	assert.Equal(t, float32(1), firstValue(t, ch.Latest()))
}

func TestPublishBlocksAtCapacity(t *testing.T) {
	ctx := context.Background()
	ch := NewChannel(DefaultCapacity)

	require.NoError(t, ch.Publish(ctx, snapSet("a", 1)))
	require.NoError(t, ch.Publish(ctx, snapSet("a", 2)))

	done := make(chan error, 1)
	go func() {
		done <- ch.Publish(ctx, snapSet("a", 3))
	}()

	select {
	case <-done:
		t.Fatal("third publish should block while the channel is full")
	case <-time.After(50 * time.Millisecond):
	}

	ch.Latest()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("third publish did not complete after a consumer drained")
	}

	assert.Equal(t, float32(3), firstValue(t, ch.Latest()))
}

func TestPublishHonorsContext(t *testing.T) {
	ch := NewChannel(1)
	require.NoError(t, ch.Publish(context.Background(), snapSet("a", 1)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := ch.Publish(ctx, snapSet("a", 2))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubscriptionWaitsForFreshValue(t *testing.T) {
	ctx := context.Background()
	ch := NewChannel(DefaultCapacity)
	require.NoError(t, ch.Publish(ctx, snapSet("a", 1)))
	ch.Latest()

	sub := ch.Subscribe()

	got := make(chan []model.SensorSnapshot, 1)
	go func() {
		snaps, err := sub.Recv(ctx)
		if err == nil {
			got <- snaps
		}
	}()

	select {
	case <-got:
		t.Fatal("Recv returned a value that was consumed before Subscribe")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, ch.Publish(ctx, snapSet("a", 2)))

	select {
	case snaps := <-got:
		assert.Equal(t, float32(2), firstValue(t, snaps))
	case <-time.After(time.Second):
		t.Fatal("Recv did not observe the publication")
	}
}

func TestSubscriptionSkipsBacklog(t *testing.T) {
	ctx := context.Background()
	ch := NewChannel(DefaultCapacity)
	sub := ch.Subscribe()

	require.NoError(t, ch.Publish(ctx, snapSet("a", 1)))
	require.NoError(t, ch.Publish(ctx, snapSet("a", 2)))

	snaps, err := sub.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, float32(2), firstValue(t, snaps))

	ctx2, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = sub.Recv(ctx2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubscriptionsBroadcast(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ch := NewChannel(DefaultCapacity)
	subs := []*Subscription{ch.Subscribe(), ch.Subscribe()}

	var wg sync.WaitGroup
	results := make([]float32, len(subs))
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub *Subscription) {
			defer wg.Done()
			snaps, err := sub.Recv(ctx)
			if err == nil && len(snaps) == 1 {
				r, _ := snaps[0].Reading("temperature")
				results[i] = r.Value
			}
		}(i, sub)
	}

	require.NoError(t, ch.Publish(ctx, snapSet("a", 7)))
	wg.Wait()

	assert.Equal(t, []float32{7, 7}, results)
}

func TestLatestConcurrentWithRecv(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := NewChannel(DefaultCapacity)
	sub := ch.Subscribe()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = ch.Publish(ctx, snapSet("a", float32(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			for _, s := range ch.Latest() {
				assert.Equal(t, 1, s.Len())
			}
		}
	}()

	recvCtx, recvCancel := context.WithTimeout(ctx, 2*time.Second)
	defer recvCancel()
	for {
		snaps, err := sub.Recv(recvCtx)
		require.NoError(t, err)
		if firstValue(t, snaps) == 99 {
			break
		}
	}
	wg.Wait()
}

func TestConcurrentReceiversKeepNewest(t *testing.T) {
	for round := 0; round < 200; round++ {
		ctx, cancel := context.WithCancel(context.Background())
		ch := NewChannel(DefaultCapacity)

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			sub := ch.Subscribe()
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					if _, err := sub.Recv(ctx); err != nil {
						return
					}
				}
			}()
		}

		require.NoError(t, ch.Publish(ctx, snapSet("a", 1)))
		require.NoError(t, ch.Publish(ctx, snapSet("a", 2)))

		require.Eventually(t, func() bool {
			return ch.Pending() == 0 && ch.Version() >= 2
		}, time.Second, time.Millisecond)

		assert.Equal(t, float32(2), firstValue(t, ch.Latest()), "round %d", round)
		assert.Equal(t, uint64(2), ch.Version(), "round %d", round)

		cancel()
		wg.Wait()
	}
}
