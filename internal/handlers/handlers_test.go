package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/quotedprintable"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/oauth2"

	"github.com/quickapply/backend/internal/auth"
	"github.com/quickapply/backend/internal/models"
	"github.com/quickapply/backend/internal/services"
)

type countingModel struct {
	mu    sync.Mutex
	calls int
	reply string
}

func (m *countingModel) GenerateContent(_ context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *countingModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// staticProvider never refreshes; every stored access token is usable.
type staticProvider struct{}

func (staticProvider) Token(_ context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok.AccessToken == "" {
		return nil, services.ErrReauthRequired
	}
	return tok, nil
}

func (staticProvider) Refresh(context.Context, string) (*oauth2.Token, error) {
	return nil, services.ErrReauthRequired
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

// Send records the message with its quoted-printable body decoded.
func (s *recordingSender) Send(_ context.Context, _ *oauth2.Token, raw []byte) error {
	head, body, _ := strings.Cut(string(raw), "\r\n\r\n")
	decoded, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(body)))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, head+"\r\n\r\n"+string(decoded))
	return nil
}

type testEnv struct {
	server *httptest.Server
	store  *services.FileProfileService
	issuer *auth.Issuer
	oauth  *services.GoogleOAuth
	model  *countingModel
	sender *recordingSender
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := services.NewFileProfileService(t.TempDir())
	require.NoError(t, err)
	issuer, err := auth.NewIssuer("handler-secret", time.Hour)
	require.NoError(t, err)

	revocations := services.NewMemoryRevocationService()
	resolver := services.NewProfileResolver(store)
	profiles := services.NewProfileService(store, resolver, issuer)
	model := &countingModel{reply: "Application for - Go Developer\n\nHello there."}
	sender := &recordingSender{}
	dispatcher := services.NewDispatcher(store, staticProvider{}, sender, false)
	apply := services.NewApplyService(resolver, services.NewDrafter(model, false), dispatcher)
	oauth := services.NewGoogleOAuth("client-id", "client-secret", "http://localhost/oauth/callback")

	router := NewRouter(Router{
		Auth:        NewAuthHandler(oauth, issuer, profiles, revocations, "http://frontend.test"),
		Profile:     NewProfileHandler(profiles),
		Apply:       NewApplyHandler(apply),
		Status:      NewStatusHandler(store, "file"),
		Verifier:    issuer,
		Revocations: revocations,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, store: store, issuer: issuer, oauth: oauth, model: model, sender: sender}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, models.APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out models.APIResponse
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func dataMap(t *testing.T, r models.APIResponse) map[string]interface{} {
	t.Helper()
	m, ok := r.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", r.Data)
	return m
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/status", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "file", dataMap(t, body)["storage"])
}

func TestDraft_UnknownProfileIs404BeforeLLM(t *testing.T) {
	env := newTestEnv(t)
	token, err := env.issuer.Issue(auth.Claims{Email: "ghost@example.com"})
	require.NoError(t, err)

	resp, body := env.do(t, http.MethodPost, "/api/apply/draft", token, models.ApplyRequest{PostText: "hiring a Go Developer"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, models.CodeProfileNotFound, body.Code)
	assert.Zero(t, env.model.calls)
}

func TestProtectedRoutesRequireCredential(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/profile/get", "/api/auth/me"} {
		resp, body := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		assert.Equal(t, models.CodeUnauthenticated, body.Code, path)
	}
	resp, _ := env.do(t, http.MethodPost, "/api/apply/draft", "garbage", models.ApplyRequest{PostText: "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOAuthSaveDraftSendFlow(t *testing.T) {
	env := newTestEnv(t)

	oauthToken, err := env.issuer.ForOAuth(
		auth.OAuthIdentity{GoogleID: "g-1", Email: "jane@example.com", FullName: "Jane Doe"},
		&oauth2.Token{AccessToken: "access", RefreshToken: "refresh"},
	)
	require.NoError(t, err)

	resp, body := env.do(t, http.MethodGet, "/api/auth/me", oauthToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, dataMap(t, body)["hasProfile"])

	resp, _ = env.do(t, http.MethodGet, "/api/profile/get", oauthToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/profile/save", oauthToken, models.SaveProfileRequest{
		CurrentRole: "Backend Engineer",
		Skills:      "Go",
		GitHubURL:   "https://github.com/jane",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Error)
	saved := dataMap(t, body)
	token, _ := saved["token"].(string)
	require.NotEmpty(t, token)
	profile := saved["profile"].(map[string]interface{})
	assert.Equal(t, "Jane Doe", profile["fullName"])
	assert.NotContains(t, profile, "googleAccessToken")
	assert.NotContains(t, profile, "password")

	resp, body = env.do(t, http.MethodGet, "/api/profile/get", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "jane@example.com", dataMap(t, body)["email"])

	resp, body = env.do(t, http.MethodPost, "/api/apply/draft", token, models.ApplyRequest{PostText: "We're hiring a Go Developer. Mail hr@acme.io"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Error)
	draft := dataMap(t, body)
	assert.Equal(t, "hr@acme.io", draft["to"])
	assert.Equal(t, "Hello there.", draft["generatedEmail"])

	resp, body = env.do(t, http.MethodPost, "/api/apply", token, models.ApplyRequest{
		DetectedEmail: "hr@acme.io",
		DetectedRole:  "Go Developer",
		EmailBody:     "Hello **there**.",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Error)
	require.Len(t, env.sender.sent, 1)
	assert.Contains(t, env.sender.sent[0], "To: <hr@acme.io>")
	assert.Contains(t, env.sender.sent[0], "github.com/jane")
	assert.Equal(t, 1, env.model.calls)
}

func TestSendWithoutGoogleTokensNeedsReauth(t *testing.T) {
	env := newTestEnv(t)
	p := &models.Profile{Email: "jane@example.com"}
	require.NoError(t, env.store.Insert(context.Background(), p))
	token, err := env.issuer.ForProfile(p)
	require.NoError(t, err)

	resp, body := env.do(t, http.MethodPost, "/api/apply/send", token, models.ApplyRequest{DetectedEmail: "hr@acme.io", EmailBody: "hi"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, models.CodeReauthRequired, body.Code)
	assert.Empty(t, env.sender.sent)
}

func TestSaveValidation(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodPost, "/api/profile/save", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.CodeValidation, body.Code)

	resp, _ = env.do(t, http.MethodPost, "/api/profile/save", "", map[string]string{"fullName": "No Email"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnonymousSaveCannotClaimLinkedProfile(t *testing.T) {
	env := newTestEnv(t)
	oauthToken, err := env.issuer.Issue(auth.Claims{Email: "jane@example.com", GoogleID: "g-1", GoogleAccessToken: "valid", GoogleRefreshToken: "r1"})
	require.NoError(t, err)
	resp, body := env.do(t, http.MethodPost, "/api/profile/save", oauthToken, models.SaveProfileRequest{Skills: "Go"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Error)

	resp, body = env.do(t, http.MethodPost, "/api/profile/save", "", models.SaveProfileRequest{Email: "jane@example.com"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, models.CodeUnauthenticated, body.Code)
	assert.Nil(t, body.Data)
}

func TestLogoutRevokesCredential(t *testing.T) {
	env := newTestEnv(t)
	token, err := env.issuer.Issue(auth.Claims{Email: "jane@example.com"})
	require.NoError(t, err)

	resp, _ := env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, models.CodeUnauthenticated, body.Code)
}

func TestRewrite(t *testing.T) {
	env := newTestEnv(t)
	token, err := env.issuer.Issue(auth.Claims{Email: "jane@example.com"})
	require.NoError(t, err)

	resp, body := env.do(t, http.MethodPost, "/api/apply/rewrite", token, models.RewriteRequest{CurrentEmail: "Long", Prompt: "shorter"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, dataMap(t, body)["rewrittenEmail"])

	resp, body = env.do(t, http.MethodPost, "/api/apply/rewrite", token, models.RewriteRequest{CurrentEmail: "Long"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.CodeValidation, body.Code)
}

func TestGoogleLoginAndCallbackFailures(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/api/auth/google", "", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", loc.Host)

	resp, _ = env.do(t, http.MethodGet, "/oauth/callback?code=abc&state=forged", "", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "http://frontend.test/auth/callback?error=authentication_failed", resp.Header.Get("Location"))

	resp, _ = env.do(t, http.MethodGet, "/oauth/callback?error=access_denied", "", nil)
	assert.Equal(t, "http://frontend.test/auth/callback?error=authentication_failed", resp.Header.Get("Location"))
}

func TestCORSAllowsLinkedIn(t *testing.T) {
	env := newTestEnv(t)
	req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/api/apply/draft", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://www.linkedin.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "https://www.linkedin.com", resp.Header.Get("Access-Control-Allow-Origin"))
}
