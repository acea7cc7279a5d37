package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/oauth2"

	"github.com/quickapply/backend/internal/models"
)

func newTestStore(t *testing.T) *FileProfileService {
	t.Helper()
	store, err := NewFileProfileService(t.TempDir())
	require.NoError(t, err)
	return store
}

func seedProfile(t *testing.T, store ProfileStore, p *models.Profile) *models.Profile {
	t.Helper()
	require.NoError(t, store.Insert(context.Background(), p))
	return p
}

// fakeProvider treats any token whose access value is "expired" as stale.
type fakeProvider struct {
	mu         sync.Mutex
	refreshes  int
	next       string
	refreshErr error
}

func (f *fakeProvider) Token(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok.AccessToken != "" && tok.AccessToken != "expired" {
		return tok, nil
	}
	if tok.RefreshToken == "" {
		return nil, oauth2Error("token expired and refresh token is not set")
	}
	return f.Refresh(ctx, tok.RefreshToken)
}

func (f *fakeProvider) Refresh(_ context.Context, refreshToken string) (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	access := f.next
	if access == "" {
		access = "fresh-access"
	}
	return &oauth2.Token{AccessToken: access, RefreshToken: refreshToken}, nil
}

type oauth2Error string

func (e oauth2Error) Error() string { return "oauth2: " + string(e) }

type sentMail struct {
	token string
	raw   string
}

// fakeSender answers ErrMailUnauthorized for every access token in reject.
type fakeSender struct {
	mu     sync.Mutex
	calls  []sentMail
	reject map[string]bool
	err    error
}

func (f *fakeSender) Send(_ context.Context, tok *oauth2.Token, raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sentMail{token: tok.AccessToken, raw: string(raw)})
	if f.reject[tok.AccessToken] {
		return ErrMailUnauthorized
	}
	return f.err
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeModel struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	opts    llms.CallOptions
	reply   string
	err     error
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, m := range messages {
		for _, part := range m.Parts {
			if text, ok := part.(llms.TextContent); ok {
				f.prompts = append(f.prompts, text.Text)
			}
		}
	}
	for _, o := range options {
		o(&f.opts)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}
