package storylock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseExclusion(t *testing.T, l Locker) {
	t.Helper()
	var inside, maxInside atomic.Int32
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), StoryKey("s1"))
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			counter++
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Equal(t, int32(1), maxInside.Load())
}

func TestLocal_MutualExclusion(t *testing.T) {
	l := NewLocal()
	exerciseExclusion(t, l)
	assert.Equal(t, 0, l.Len())
}

func TestLocal_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocal()
	u1, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer u1()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	u2, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	u2()
}

func TestLocal_ContextTimeout(t *testing.T) {
	l := NewLocal()
	u, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "a")
	assert.True(t, errors.Is(err, ErrLockTimeout))
	u()
	u() // 重复调用无副作用
	assert.Equal(t, 0, l.Len())
}

func newRedisLocker(t *testing.T) (*Redis, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, time.Minute), mr
}

func TestRedis_MutualExclusion(t *testing.T) {
	l, mr := newRedisLocker(t)
	exerciseExclusion(t, l)
	assert.False(t, mr.Exists("legend:lock:story:s1"))
}

func TestRedis_HeldByAnotherInstance(t *testing.T) {
	l, mr := newRedisLocker(t)
	require.NoError(t, mr.Set("legend:lock:"+ReplyKey("s1"), "other-instance"))

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	_, err := l.Lock(ctx, ReplyKey("s1"))
	assert.True(t, errors.Is(err, ErrLockTimeout))

	mr.Del("legend:lock:" + ReplyKey("s1"))
	unlock, err := l.Lock(context.Background(), ReplyKey("s1"))
	require.NoError(t, err)
	unlock()
}

func TestRedis_ReleaseKeepsForeignToken(t *testing.T) {
	l, mr := newRedisLocker(t)
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	// 锁过期后被其他实例获得，本实例释放时不能删除对方的锁
	require.NoError(t, mr.Set("legend:lock:k", "someone-else"))
	unlock()
	v, err := mr.Get("legend:lock:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}
