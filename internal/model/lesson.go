// Package model defines the data structures received from the lesson backend.
//
// None of these types are owned by this application: the backend service is
// the source of truth, and the frontend only reads them, renders them, and
// sends them back on mutation calls. Keeping them in one small package means
// the RPC client, the cache, the templates, and the development backend all
// speak the same vocabulary.
package model

import "time"

// Identity is an authenticated principal, opaque to the frontend.
//
// The empty Identity is the anonymous principal. Signed-in identities look
// like "github:1234567" or "dev:cv37rs3pp9olc6atsptg", but nothing in the
// frontend parses them. They are only compared and displayed.
type Identity string

// Anonymous is the principal used when no session is present.
const Anonymous Identity = ""

// IsAnonymous reports whether id is the anonymous principal.
func (id Identity) IsAnonymous() bool {
	return id == Anonymous
}

func (id Identity) String() string {
	return string(id)
}

// Time is a wire timestamp: nanoseconds since the Unix epoch.
//
// WHY NOT time.Time?
// The backend speaks integers. Converting at the edges (format package) keeps
// the wire values exact when they round-trip through a profile save.
type Time int64

// Now returns the current time as a wire timestamp.
func Now() Time {
	return Time(time.Now().UnixNano())
}

// Lesson is a creator-submitted video unit with an associated credit cost.
// Lessons are immutable once created: the backend has no edit or delete call.
type Lesson struct {
	ID          uint64   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	CreditCost  uint64   `json:"creditCost"`
	Creator     Identity `json:"creator"`
	Video       []byte   `json:"video"` // encoding/json ships []byte as base64
	CreatedAt   Time     `json:"createdAt"`
}
