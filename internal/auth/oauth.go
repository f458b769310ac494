package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/xid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/sakif/skillswap/internal/model"
)

// githubTimeout bounds the token exchange and the /user call together.
const githubTimeout = 10 * time.Second

// GitHubUser is the part of GitHub's /user response a sign-in needs.
type GitHubUser struct {
	ID    int64  `json:"id"` // numeric and permanent, unlike Login
	Login string `json:"login"`
}

// Identity returns the principal this GitHub account signs in as.
// The numeric ID is used because logins can be renamed.
func (u *GitHubUser) Identity() model.Identity {
	return model.Identity("github:" + strconv.FormatInt(u.ID, 10))
}

// NewDevIdentity returns a fresh development principal.
// Development sign-in hands one out per click; there is no account behind it.
func NewDevIdentity() model.Identity {
	return model.Identity("dev:" + xid.New().String())
}

// GitHubProvider runs the GitHub authorization-code flow.
//
// THE FLOW:
//  1. AuthURL sends the browser to GitHub with a random state value.
//  2. GitHub redirects back to the callback with a one-time code.
//  3. Exchange trades the code for an access token server-to-server and
//     reads the account it belongs to.
//
// The access token is used once and dropped: SkillSwap never calls GitHub
// on the user's behalf after sign-in.
type GitHubProvider struct {
	config  *oauth2.Config
	userURL string
}

// NewGitHubProvider creates a provider for an OAuth App. callbackURL must
// match the app's registered callback exactly, for example
// "http://localhost:8080/auth/github/callback".
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user"},
			Endpoint:     github.Endpoint,
		},
		userURL: "https://api.github.com/user",
	}
}

// AuthURL is where the sign-in button sends the browser. state is echoed
// back on the callback and must match the oauth_state cookie.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange turns a callback code into the GitHub account that approved it.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	ctx, cancel := context.WithTimeout(ctx, githubTimeout)
	defer cancel()

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// The client adds "Authorization: Bearer <token>" to each request.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building GitHub user request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub /user returned status %d", resp.StatusCode)
	}

	var user GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub user: %w", err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned a user without an id")
	}
	return &user, nil
}
