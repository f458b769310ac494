package query

import (
	"sync"
	"time"

	"github.com/sakif/skillswap/internal/model"
)

// DefaultIdleTTL is how long an unused identity keeps its cache.
const DefaultIdleTTL = 15 * time.Minute

// Registry owns one Cache per identity, the server-side equivalent of each
// browser tab keeping its own query cache.
//
// Sessions end without a sign-out all the time (expired cookies, closed
// browsers, throwaway dev identities), so caches nobody asked for within
// idleTTL are dropped. A returning identity simply starts with an empty cache.
type Registry struct {
	staleTime time.Duration
	idleTTL   time.Duration
	now       func() time.Time

	mu        sync.Mutex
	caches    map[model.Identity]*slot
	lastSweep time.Time
}

type slot struct {
	cache    *Cache
	lastUsed time.Time
}

// NewRegistry creates a Registry whose caches use staleTime and are dropped
// after idleTTL without use. A non-positive idleTTL means DefaultIdleTTL.
func NewRegistry(staleTime, idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &Registry{
		staleTime: staleTime,
		idleTTL:   idleTTL,
		now:       time.Now,
		caches:    make(map[model.Identity]*slot),
	}
}

// For returns the cache of id, creating it on first use.
func (r *Registry) For(id model.Identity) *Cache {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweep(now)

	s, ok := r.caches[id]
	if !ok {
		s = &slot{cache: NewCache(r.staleTime)}
		r.caches[id] = s
	}
	s.lastUsed = now
	return s.cache
}

// Drop forgets the cache of id. Called on sign-out.
func (r *Registry) Drop(id model.Identity) {
	r.mu.Lock()
	s, ok := r.caches[id]
	delete(r.caches, id)
	r.mu.Unlock()
	if ok {
		s.cache.Clear()
	}
}

// Len returns the number of identities with a cache.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.caches)
}

// sweep drops caches idle for longer than idleTTL. It walks the map at most
// once per idleTTL/4. The caller must hold r.mu.
func (r *Registry) sweep(now time.Time) {
	if now.Sub(r.lastSweep) < r.idleTTL/4 {
		return
	}
	r.lastSweep = now
	for id, s := range r.caches {
		if now.Sub(s.lastUsed) > r.idleTTL {
			delete(r.caches, id)
			s.cache.Clear()
		}
	}
}
