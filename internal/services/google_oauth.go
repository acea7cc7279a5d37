package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/quickapply/backend/internal/auth"
)

// GmailSendScope lets the backend send mail as the user and nothing else.
const GmailSendScope = "https://www.googleapis.com/auth/gmail.send"

const stateTTL = 10 * time.Minute

// OAuthProvider hands out usable Google access tokens.
type OAuthProvider interface {
	// Token returns tok unchanged while it is valid, otherwise a refreshed token.
	Token(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error)
	// Refresh always performs a refresh-token grant.
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// GoogleOAuth runs the consent redirect, the code exchange and token refreshes.
type GoogleOAuth struct {
	Config *oauth2.Config
	// UserInfoEndpoint overrides the userinfo API base URL when set.
	UserInfoEndpoint string
	// HTTPClient is used for token and userinfo calls when set.
	HTTPClient *http.Client

	stateMu    sync.Mutex
	stateStore map[string]time.Time
	now        func() time.Time
}

func NewGoogleOAuth(clientID, clientSecret, redirectURL string) *GoogleOAuth {
	return &GoogleOAuth{
		Config: &oauth2.Config{
			ClientID:     strings.TrimSpace(clientID),
			ClientSecret: strings.TrimSpace(clientSecret),
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"profile", "email", GmailSendScope},
		},
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		stateStore: make(map[string]time.Time),
		now:        time.Now,
	}
}

func (g *GoogleOAuth) Configured() bool {
	return g != nil && g.Config.ClientID != "" && g.Config.ClientSecret != ""
}

func (g *GoogleOAuth) withClient(ctx context.Context) context.Context {
	if g.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, g.HTTPClient)
}

// AuthCodeURL registers a fresh state value and returns the consent URL. Offline access
// with forced consent makes Google return a refresh token every time.
func (g *GoogleOAuth) AuthCodeURL() string {
	state := g.newState()
	return g.Config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

func (g *GoogleOAuth) newState() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	state := hex.EncodeToString(b)

	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	now := g.now()
	for s, expiry := range g.stateStore {
		if now.After(expiry) {
			delete(g.stateStore, s)
		}
	}
	g.stateStore[state] = now.Add(stateTTL)
	return state
}

// ValidateState consumes state. Unknown, reused and expired values are rejected.
func (g *GoogleOAuth) ValidateState(state string) bool {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()

	expiry, ok := g.stateStore[state]
	if !ok {
		return false
	}
	delete(g.stateStore, state)
	return !g.now().After(expiry)
}

func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := g.Config.Exchange(g.withClient(ctx), code)
	if err != nil {
		return nil, errors.Wrap(err, "exchange authorization code")
	}
	return tok, nil
}

// UserInfo fetches the Google subject id, email and display name for tok.
func (g *GoogleOAuth) UserInfo(ctx context.Context, tok *oauth2.Token) (*auth.OAuthIdentity, error) {
	opts := []option.ClientOption{
		option.WithHTTPClient(oauth2.NewClient(g.withClient(ctx), oauth2.StaticTokenSource(tok))),
	}
	if g.UserInfoEndpoint != "" {
		opts = append(opts, option.WithEndpoint(g.UserInfoEndpoint))
	}
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create userinfo client")
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, errors.Wrap(err, "fetch google userinfo")
	}
	if info.Id == "" || info.Email == "" {
		return nil, errors.New("google userinfo missing id or email")
	}
	return &auth.OAuthIdentity{GoogleID: info.Id, Email: info.Email, FullName: info.Name}, nil
}

func (g *GoogleOAuth) Token(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	fresh, err := g.Config.TokenSource(g.withClient(ctx), tok).Token()
	if err != nil {
		return nil, errors.Wrap(err, "obtain access token")
	}
	return fresh, nil
}

func (g *GoogleOAuth) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, errors.New("no refresh token")
	}
	fresh, err := g.Config.TokenSource(g.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, errors.Wrap(err, "refresh access token")
	}
	return fresh, nil
}
