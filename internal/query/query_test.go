package query

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/skillswap/internal/model"
)

// =========================================================================
// HELPERS
// =========================================================================

// counter returns a fetcher that yields 1, 2, 3... and counts its calls.
func counter() (func(context.Context) (int, error), *atomic.Int32) {
	var n atomic.Int32
	return func(context.Context) (int, error) {
		return int(n.Add(1)), nil
	}, &n
}

// frozenClock lets tests move time by hand.
type frozenClock struct{ t time.Time }

func (f *frozenClock) now() time.Time          { return f.t }
func (f *frozenClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(staleTime time.Duration) (*Cache, *frozenClock) {
	clk := &frozenClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewCache(staleTime)
	c.now = clk.now
	return c, clk
}

// =========================================================================
// INVALIDATION TABLE
// =========================================================================

func TestInvalidates(t *testing.T) {
	assert.Equal(t, []Key{KeyLessons}, Invalidates(CreateLesson))
	assert.Equal(t, []Key{KeyLessons, KeyCurrentUserProfile}, Invalidates(CompleteLesson))
	assert.Equal(t, []Key{KeyCurrentUserProfile}, Invalidates(SaveCallerProfile))
	assert.Empty(t, Invalidates(Mutation(99)))
}

func TestInvalidates_ReturnsCopy(t *testing.T) {
	keys := Invalidates(CompleteLesson)
	keys[0] = "tampered"

	assert.Equal(t, KeyLessons, Invalidates(CompleteLesson)[0])
}

func TestKeys(t *testing.T) {
	assert.Equal(t, Key("lesson:42"), LessonKey(42))
	assert.Equal(t, Key("lessons:creator:github:7"), LessonsByCreatorKey("github:7"))

	assert.True(t, KeyLessons.covers(LessonsByCreatorKey("github:7")))
	assert.False(t, KeyLessons.covers(LessonKey(1)), "lesson:<id> is its own family")
	assert.False(t, KeyLessons.covers("lessonsX"))
}

// =========================================================================
// FETCH
// =========================================================================

func TestFetch_ServesFreshFromCache(t *testing.T) {
	c, clk := newTestCache(30 * time.Second)
	fetch, calls := counter()
	ctx := context.Background()

	v1, err := Fetch(ctx, c, KeyLessons, fetch)
	require.NoError(t, err)
	clk.advance(29 * time.Second)
	v2, err := Fetch(ctx, c, KeyLessons, fetch)
	require.NoError(t, err)

	assert.Equal(t, 1, v1)
	assert.Equal(t, 1, v2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_RefetchesAfterStaleTime(t *testing.T) {
	c, clk := newTestCache(30 * time.Second)
	fetch, calls := counter()
	ctx := context.Background()

	_, _ = Fetch(ctx, c, KeyLessons, fetch)
	clk.advance(30 * time.Second)
	v, err := Fetch(ctx, c, KeyLessons, fetch)

	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_ErrorsAreNotCached(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	ctx := context.Background()
	boom := errors.New("backend down")

	_, err := Fetch(ctx, c, KeyCurrentUserProfile, func(context.Context) (*model.UserProfile, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	_, cached := c.Peek(KeyCurrentUserProfile)
	assert.False(t, cached)

	p, err := Fetch(ctx, c, KeyCurrentUserProfile, func(context.Context) (*model.UserProfile, error) {
		return &model.UserProfile{Name: "Ada"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)
}

func TestFetch_NilResultIsCached(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	var calls int
	fetch := func(context.Context) (*model.UserProfile, error) {
		calls++
		return nil, nil
	}

	p1, err := Fetch(context.Background(), c, KeyCurrentUserProfile, fetch)
	require.NoError(t, err)
	p2, err := Fetch(context.Background(), c, KeyCurrentUserProfile, fetch)
	require.NoError(t, err)

	assert.Nil(t, p1)
	assert.Nil(t, p2)
	assert.Equal(t, 1, calls)
}

func TestFetch_ConcurrentCallsShareOneFetch(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Fetch(context.Background(), c, KeyLessons, fetch)
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	// Let the goroutines pile up on the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 7, v)
	}
}

func TestFetch_CallerCancellationDoesNotCancelFetch(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})
	var fetchErr atomic.Value
	fetch := func(ctx context.Context) (int, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			fetchErr.Store(err)
		}
		return 3, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := Fetch(ctx, c, KeyLessons, fetch)
		done <- err
	}()

	<-started
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		_, ok := c.Peek(KeyLessons)
		return ok
	}, time.Second, 5*time.Millisecond)
	assert.Nil(t, fetchErr.Load())
}

// =========================================================================
// INVALIDATION
// =========================================================================

func TestInvalidateFor_CompleteLesson(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	ctx := context.Background()
	for _, k := range []Key{KeyLessons, KeyCurrentUserProfile, LessonKey(1), KeyCallerRole} {
		_, err := Fetch(ctx, c, k, func(context.Context) (string, error) { return string(k), nil })
		require.NoError(t, err)
	}

	c.InvalidateFor(CompleteLesson)

	assert.True(t, c.IsStale(KeyLessons))
	assert.True(t, c.IsStale(KeyCurrentUserProfile))
	assert.False(t, c.IsStale(LessonKey(1)))
	assert.False(t, c.IsStale(KeyCallerRole))
}

func TestInvalidateFor_CreateLessonCoversCreatorLists(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	ctx := context.Background()
	mine := LessonsByCreatorKey("github:1")
	_, _ = Fetch(ctx, c, KeyLessons, func(context.Context) (int, error) { return 1, nil })
	_, _ = Fetch(ctx, c, mine, func(context.Context) (int, error) { return 1, nil })
	_, _ = Fetch(ctx, c, KeyCurrentUserProfile, func(context.Context) (int, error) { return 1, nil })

	c.InvalidateFor(CreateLesson)

	assert.True(t, c.IsStale(KeyLessons))
	assert.True(t, c.IsStale(mine))
	assert.False(t, c.IsStale(KeyCurrentUserProfile))
}

func TestInvalidate_NextReadRefetches(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	fetch, calls := counter()
	ctx := context.Background()

	_, _ = Fetch(ctx, c, KeyCurrentUserProfile, fetch)
	c.InvalidateFor(SaveCallerProfile)
	v, err := Fetch(ctx, c, KeyCurrentUserProfile, fetch)

	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, int32(2), calls.Load())
}

func TestInvalidate_DuringFetchStoresStale(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(context.Context) (int, error) {
		close(started)
		<-release
		return 1, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = Fetch(context.Background(), c, KeyCurrentUserProfile, fetch)
	}()

	<-started
	c.InvalidateFor(CompleteLesson)
	close(release)
	<-done

	_, cached := c.Peek(KeyCurrentUserProfile)
	assert.True(t, cached)
	assert.True(t, c.IsStale(KeyCurrentUserProfile), "value fetched before the mutation must not be served")
}

func TestInvalidate_LaterReadDoesNotJoinOlderFetch(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	var balance atomic.Int64
	balance.Store(100)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) (int64, error) {
		seen := balance.Load()
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
		return seen, nil
	}

	first := make(chan int64, 1)
	go func() {
		v, _ := Fetch(context.Background(), c, KeyCurrentUserProfile, fetch)
		first <- v
	}()
	<-started

	// The mutation lands while the first read is still in flight.
	balance.Store(90)
	c.InvalidateFor(CompleteLesson)

	v, err := Fetch(context.Background(), c, KeyCurrentUserProfile, fetch)
	require.NoError(t, err)
	assert.Equal(t, int64(90), v)

	close(release)
	assert.Equal(t, int64(100), <-first)

	cached, ok := c.Peek(KeyCurrentUserProfile)
	require.True(t, ok)
	assert.Equal(t, int64(90), cached, "the older fetch must not overwrite the newer value")
	assert.False(t, c.IsStale(KeyCurrentUserProfile))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClear(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	_, _ = Fetch(context.Background(), c, KeyLessons, func(context.Context) (int, error) { return 1, nil })

	c.Clear()

	_, cached := c.Peek(KeyLessons)
	assert.False(t, cached)
}

// =========================================================================
// REGISTRY
// =========================================================================

func TestRegistry_OneCachePerIdentity(t *testing.T) {
	r := NewRegistry(time.Minute, time.Hour)

	a := r.For("github:1")
	assert.Same(t, a, r.For("github:1"))
	assert.NotSame(t, a, r.For("github:2"))
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_DropClearsIdentity(t *testing.T) {
	r := NewRegistry(time.Minute, time.Hour)
	a := r.For("github:1")
	_, _ = Fetch(context.Background(), a, KeyLessons, func(context.Context) (int, error) { return 1, nil })

	r.Drop("github:1")

	_, cached := a.Peek(KeyLessons)
	assert.False(t, cached)
	assert.Equal(t, 0, r.Len())
	assert.NotSame(t, a, r.For("github:1"))
}

func TestRegistry_DropsIdleCaches(t *testing.T) {
	clk := &frozenClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := NewRegistry(time.Millisecond, time.Hour)
	r.now = clk.now

	abandoned := make([]*Cache, 0, 100)
	for i := range 100 {
		c := r.For(model.Identity("dev:" + strconv.Itoa(i)))
		_, _ = Fetch(context.Background(), c, KeyLessons, func(context.Context) (int, error) { return i, nil })
		abandoned = append(abandoned, c)
	}
	active := r.For("github:1")
	require.Equal(t, 101, r.Len())

	clk.advance(30 * time.Minute)
	assert.Same(t, active, r.For("github:1"))
	clk.advance(31 * time.Minute)
	r.For("github:1")

	assert.Equal(t, 1, r.Len(), "only the identity used within the idle ttl survives")
	assert.Same(t, active, r.For("github:1"))
	_, cached := abandoned[0].Peek(KeyLessons)
	assert.False(t, cached, "evicted caches release their values")
}

func TestRegistry_DefaultIdleTTL(t *testing.T) {
	r := NewRegistry(time.Minute, 0)

	assert.Equal(t, DefaultIdleTTL, r.idleTTL)
}

// =========================================================================
// RESULT
// =========================================================================

func TestResult(t *testing.T) {
	assert.True(t, Disabled[int]().IsDisabled())
	assert.True(t, Success(3).IsSuccess())

	boom := errors.New("boom")
	r := Failed([]model.Lesson{}, boom)
	assert.True(t, r.IsError())
	assert.ErrorIs(t, r.Err, boom)
	assert.NotNil(t, r.Data)
	assert.Equal(t, "error", r.Status.String())
}
