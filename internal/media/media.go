// Package media hands out short-lived playback URLs for video bytes.
//
// A page that shows a lesson cannot put megabytes of video into HTML, so it
// registers the bytes here and gets back "/media/<uuid>" for the <video>
// element. One URL exists per Owner at a time:
//
//   - registering the same bytes again returns the same URL
//   - registering different bytes revokes the old URL first
//   - an URL nobody re-registers expires after the TTL
//
// URLs are bound to the viewer that created them; another identity gets a 404.
package media

import (
	"bytes"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/sakif/skillswap/internal/auth"
	"github.com/sakif/skillswap/internal/model"
)

// PathPrefix is where the registry is mounted.
const PathPrefix = "/media/"

// DefaultTTL is how long an URL lives after its last registration.
const DefaultTTL = 30 * time.Minute

// fallbackType is served when the bytes are not recognisably video.
const fallbackType = "video/mp4"

// Owner identifies the view a URL belongs to, like one mounted player.
type Owner struct {
	Viewer model.Identity
	Name   string // e.g. "lesson:42"
}

type item struct {
	owner       Owner
	data        []byte
	contentType string
	created     time.Time
	expires     time.Time
}

// Registry maps tokens to video bytes. It is safe for concurrent use.
type Registry struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	byToken map[string]*item
	byOwner map[Owner]string
}

// NewRegistry creates an empty Registry. A non-positive ttl means DefaultTTL.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		ttl:     ttl,
		now:     time.Now,
		byToken: make(map[string]*item),
		byOwner: make(map[Owner]string),
	}
}

// Create returns the playback URL of data for owner.
// Empty data has nothing to play and yields "".
func (r *Registry) Create(owner Owner, data []byte) string {
	if len(data) == 0 {
		r.Revoke(owner)
		return ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.sweep(now)

	if token, ok := r.byOwner[owner]; ok {
		it := r.byToken[token]
		if bytes.Equal(it.data, data) {
			it.expires = now.Add(r.ttl)
			return PathPrefix + token
		}
		r.remove(token)
	}

	token := uuid.NewString()
	r.byToken[token] = &item{
		owner:       owner,
		data:        data,
		contentType: detect(data),
		created:     now,
		expires:     now.Add(r.ttl),
	}
	r.byOwner[owner] = token
	return PathPrefix + token
}

// Revoke releases the URL of owner, if any.
func (r *Registry) Revoke(owner Owner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token, ok := r.byOwner[owner]; ok {
		r.remove(token)
	}
}

// Len returns the number of live URLs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweep(r.now())
	return len(r.byToken)
}

// ServeHTTP streams the bytes behind /media/<token>. Range requests work, so
// the player can seek.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	viewer, _ := auth.IdentityFromContext(req.Context())
	it, ok := r.lookup(path.Base(req.URL.Path), viewer)
	if !ok {
		http.NotFound(w, req)
		return
	}

	w.Header().Set("Content-Type", it.contentType)
	w.Header().Set("Cache-Control", "private, no-store")
	http.ServeContent(w, req, "", it.created, bytes.NewReader(it.data))
}

func (r *Registry) lookup(token string, viewer model.Identity) (*item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.byToken[token]
	if !ok || it.owner.Viewer != viewer {
		return nil, false
	}
	if !r.now().Before(it.expires) {
		r.remove(token)
		return nil, false
	}
	return it, true
}

// sweep drops expired URLs. The caller must hold r.mu.
func (r *Registry) sweep(now time.Time) {
	for token, it := range r.byToken {
		if !now.Before(it.expires) {
			r.remove(token)
		}
	}
}

// remove deletes token from both maps. The caller must hold r.mu.
func (r *Registry) remove(token string) {
	it, ok := r.byToken[token]
	if !ok {
		return
	}
	delete(r.byToken, token)
	if r.byOwner[it.owner] == token {
		delete(r.byOwner, it.owner)
	}
}

func detect(data []byte) string {
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("video/mp4") || m.Is("video/webm") || m.Is("video/quicktime") {
			return m.String()
		}
	}
	return fallbackType
}
