package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/glassworks/internal/lock"
)

func newLocker(t *testing.T) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}, mr
}

func TestWithLockSerialisesHolders(t *testing.T) {
	locker, _ := newLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var order []string
	var mu sync.Mutex
	firstDone := make(chan struct{})
	releaseFirst := make(chan struct{})
	errs := make(chan error, 2)

	go func() {
		errs <- locker.WithLock(ctx, "catalog", time.Second, func(context.Context) error {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			close(firstDone)
			<-releaseFirst
			return nil
		})
	}()

	<-firstDone

	go func() {
		errs <- locker.WithLock(ctx, "catalog", time.Second, func(context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
	}()

	close(releaseFirst)
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second"}, order)
}

func TestWithLockReleasesOnError(t *testing.T) {
	locker, mr := newLocker(t)
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "catalog", time.Second, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("catalog"))
}

func TestWithLockRequiresClient(t *testing.T) {
	err := lock.Locker{}.WithLock(context.Background(), "k", time.Second, func(context.Context) error { return nil })
	require.EqualError(t, err, "lock: redis client not configured")
}

func TestRunOnceKeepsClaimForWindow(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()
	runs := 0
	fn := func(context.Context) error { runs++; return nil }

	require.NoError(t, locker.RunOnce(ctx, "tick", time.Hour, fn))
	require.ErrorIs(t, locker.RunOnce(ctx, "tick", time.Hour, fn), lock.ErrBusy)
	require.Equal(t, 1, runs)
	require.True(t, mr.Exists("tick"))

	mr.FastForward(time.Hour)
	require.NoError(t, locker.RunOnce(ctx, "tick", time.Hour, fn))
	require.Equal(t, 2, runs)
}

func TestRunOnceGivesBackClaimOnError(t *testing.T) {
	locker, mr := newLocker(t)
	boom := errors.New("boom")

	err := locker.RunOnce(context.Background(), "tick", time.Hour, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("tick"))
}

func TestReleaseLeavesForeignHolder(t *testing.T) {
	locker, mr := newLocker(t)
	err := locker.WithLock(context.Background(), "catalog", time.Second, func(context.Context) error {
		// holder lost the lock and someone else took it
		_ = mr.Set("catalog", "other-holder")
		return nil
	})
	require.NoError(t, err)
	got, err := mr.Get("catalog")
	require.NoError(t, err)
	require.Equal(t, "other-holder", got)
}
