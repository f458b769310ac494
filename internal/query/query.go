// Package query is a small per-identity cache for backend reads.
//
// HOW IT WORKS:
// Each read is stored under a Key. A read within the stale time is served
// from memory; an older or invalidated entry is fetched again. Concurrent
// reads of the same key share one backend call (singleflight), so a page
// that asks for the profile three times costs one round trip. A read issued
// after an invalidation starts its own call instead of joining an older one.
//
// Mutations do not touch cached values. They mark keys stale through the
// fixed table in Invalidates, and the next read fetches fresh data.
//
// Errors are never cached: a failed read leaves the previous entry (if any)
// untouched and the next read tries again.
package query

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sakif/skillswap/internal/model"
)

// DefaultStaleTime is how long a read is served from memory.
const DefaultStaleTime = 30 * time.Second

// Key names one cached read.
//
// Keys form families separated by ':'. Invalidating "lessons" also
// invalidates "lessons:creator:github:1", the same way a key prefix works
// in a browser query cache.
type Key string

const (
	KeyLessons            Key = "lessons"
	KeyCurrentUserProfile Key = "currentUserProfile"
	KeyCallerRole         Key = "callerRole"
)

// LessonKey is the key of a single lesson read.
func LessonKey(id uint64) Key {
	return Key("lesson:" + strconv.FormatUint(id, 10))
}

// LessonsByCreatorKey is the key of a creator's lesson list.
func LessonsByCreatorKey(creator model.Identity) Key {
	return Key(string(KeyLessons) + ":creator:" + creator.String())
}

// covers reports whether invalidating k also invalidates other.
func (k Key) covers(other Key) bool {
	return k == other || strings.HasPrefix(string(other), string(k)+":")
}

// Mutation names a write that changes cached reads.
type Mutation int

const (
	CreateLesson Mutation = iota + 1
	CompleteLesson
	SaveCallerProfile
)

func (m Mutation) String() string {
	switch m {
	case CreateLesson:
		return "createLesson"
	case CompleteLesson:
		return "completeLesson"
	case SaveCallerProfile:
		return "saveCallerProfile"
	}
	return "unknown"
}

var invalidations = map[Mutation][]Key{
	CreateLesson:      {KeyLessons},
	CompleteLesson:    {KeyLessons, KeyCurrentUserProfile},
	SaveCallerProfile: {KeyCurrentUserProfile},
}

// Invalidates returns the keys a successful mutation makes stale.
func Invalidates(m Mutation) []Key {
	keys := invalidations[m]
	out := make([]Key, len(keys))
	copy(out, keys)
	return out
}

type entry struct {
	value     any
	fetchedAt time.Time
	stale     bool
	gen       uint64
}

// Cache holds the reads of one identity.
type Cache struct {
	staleTime time.Duration
	now       func() time.Time
	group     singleflight.Group

	mu      sync.Mutex
	entries map[Key]*entry
	// gen counts invalidations per key. A fetch that started before an
	// invalidation stores its value as already stale.
	gen map[Key]uint64
}

// NewCache creates an empty Cache. A non-positive staleTime means
// DefaultStaleTime.
func NewCache(staleTime time.Duration) *Cache {
	if staleTime <= 0 {
		staleTime = DefaultStaleTime
	}
	return &Cache{
		staleTime: staleTime,
		now:       time.Now,
		entries:   make(map[Key]*entry),
		gen:       make(map[Key]uint64),
	}
}

// Fetch returns the fresh cached value of key or runs fetch to get one.
//
// The fetch runs detached from ctx's cancellation, so a caller that gives up
// does not fail the others waiting on the same key. The caller itself stops
// waiting when ctx is done.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := c.fresh(key); ok {
		return v.(T), nil
	}

	// The generation is part of the flight key: a read that starts after an
	// invalidation never joins a fetch that started before it.
	gen := c.generation(key)
	flight := string(key) + "#" + strconv.FormatUint(gen, 10)

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flight, func() (any, error) {
		v, err := fetch(detached)
		if err != nil {
			return nil, err
		}
		c.store(key, v, gen)
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Peek returns the cached value of key regardless of staleness.
func (c *Cache) Peek(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// IsStale reports whether key would be fetched again on the next read.
// Missing keys are stale.
func (c *Cache) IsStale(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return !ok || c.expired(e)
}

// Invalidate marks every key covered by keys as stale.
func (c *Cache) Invalidate(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		for existing, e := range c.entries {
			if k.covers(existing) {
				e.stale = true
			}
		}
		for existing := range c.gen {
			if k.covers(existing) {
				c.gen[existing]++
			}
		}
	}
}

// InvalidateFor applies the invalidation row of m.
func (c *Cache) InvalidateFor(m Mutation) {
	c.Invalidate(invalidations[m]...)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	for k := range c.gen {
		c.gen[k]++
	}
}

func (c *Cache) fresh(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.expired(e) {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) expired(e *entry) bool {
	return e.stale || c.now().Sub(e.fetchedAt) >= c.staleTime
}

// generation registers key so a later Invalidate can see the fetch in flight.
func (c *Cache) generation(key Key) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.gen[key]
	if !ok {
		c.gen[key] = 0
	}
	return g
}

func (c *Cache) store(key Key, v any, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// A slow older fetch must not replace what a newer one stored.
	if e, ok := c.entries[key]; ok && e.gen > gen {
		return
	}
	c.entries[key] = &entry{
		value:     v,
		fetchedAt: c.now(),
		stale:     c.gen[key] != gen,
		gen:       gen,
	}
}
