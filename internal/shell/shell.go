// Package shell decides which top-level view a request gets.
//
//	Unauthenticated ──sign in──▶ Authenticated
//	                                 │ profile read succeeded with no profile
//	                                 ▼
//	                         ProfileSetupRequired ──profile saved──▶ Authenticated
//
// Setup is only required when the backend said "no profile". A profile read
// that failed or never ran (backend not ready) leaves the caller in
// Authenticated, so a flaky backend never prompts an existing user to
// create a second profile.
package shell

import (
	"github.com/sakif/skillswap/internal/model"
	"github.com/sakif/skillswap/internal/query"
)

// State is the shell's top-level state.
type State int

const (
	Unauthenticated State = iota
	Authenticated
	ProfileSetupRequired
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	case ProfileSetupRequired:
		return "profile-setup-required"
	}
	return "unknown"
}

// Resolve computes the state from the caller identity and its profile read.
func Resolve(id model.Identity, profile query.Result[*model.UserProfile]) State {
	if id.IsAnonymous() {
		return Unauthenticated
	}
	if profile.IsSuccess() && profile.Data == nil {
		return ProfileSetupRequired
	}
	return Authenticated
}
