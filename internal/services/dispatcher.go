package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/quickapply/backend/internal/models"
)

// Dispatcher sends application mail as the profile owner, keeping the stored Google
// tokens fresh along the way.
type Dispatcher struct {
	store    ProfileStore
	provider OAuthProvider
	sender   MailSender
	testMode bool
	now      func() time.Time

	locksMu sync.Mutex
	locks   map[string]*profileLock
}

type profileLock struct {
	mu   sync.Mutex
	refs int
}

func NewDispatcher(store ProfileStore, provider OAuthProvider, sender MailSender, testMode bool) *Dispatcher {
	return &Dispatcher{
		store:    store,
		provider: provider,
		sender:   sender,
		testMode: testMode,
		now:      time.Now,
		locks:    make(map[string]*profileLock),
	}
}

// Send delivers m for profileID. Dispatches for the same profile run one at a time, so a
// refresh done by one is seen by the next.
func (d *Dispatcher) Send(ctx context.Context, profileID string, m OutgoingMail) error {
	unlock := d.lock(profileID)
	defer unlock()

	prof, err := d.store.FindByID(ctx, profileID)
	if err != nil {
		return err
	}

	stored := prof.Tokens()
	if stored.AccessToken == "" && stored.RefreshToken == "" {
		return ErrNoCredential
	}

	raw, err := ComposeMessage(prof, m, d.now())
	if err != nil {
		return err
	}

	if d.testMode {
		log.Printf("[SendApplication] test mode, skipping send profile=%s to=%s", profileID, m.To)
		return nil
	}

	tok, err := d.currentToken(ctx, prof)
	if err != nil {
		return err
	}

	err = d.sender.Send(ctx, tok, raw)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrMailUnauthorized) {
		log.Printf("[SendApplication] profile=%s error=%v", profileID, err)
		return err
	}

	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = stored.RefreshToken
	}
	if refreshToken == "" {
		return errors.Wrap(ErrReauthRequired, "gmail rejected access token")
	}

	log.Printf("[SendApplication] gmail returned 401, refreshing profile=%s", profileID)
	tok, err = d.refresh(ctx, prof, refreshToken)
	if err != nil {
		return err
	}
	if err := d.sender.Send(ctx, tok, raw); err != nil {
		log.Printf("[SendApplication] retry failed profile=%s error=%v", profileID, err)
		if errors.Is(err, ErrSendFailed) {
			return err
		}
		return errors.Wrap(ErrSendFailed, err.Error())
	}
	return nil
}

// currentToken asks the provider for a usable token, persisting it when it changed. A
// provider failure falls back to one explicit refresh.
func (d *Dispatcher) currentToken(ctx context.Context, prof *models.Profile) (*oauth2.Token, error) {
	stored := prof.Tokens()
	tok, err := d.provider.Token(ctx, toOAuth2(stored))
	if err == nil {
		if tok.AccessToken != stored.AccessToken {
			if err := d.persist(ctx, prof, tok); err != nil {
				return nil, err
			}
		}
		return tok, nil
	}

	if stored.RefreshToken == "" {
		log.Printf("[SendApplication] token unusable and no refresh token profile=%s error=%v", prof.IDHex(), err)
		return nil, errors.Wrap(ErrReauthRequired, err.Error())
	}
	return d.refresh(ctx, prof, stored.RefreshToken)
}

func (d *Dispatcher) refresh(ctx context.Context, prof *models.Profile, refreshToken string) (*oauth2.Token, error) {
	tok, err := d.provider.Refresh(ctx, refreshToken)
	if err != nil {
		log.Printf("[RefreshToken] profile=%s error=%v", prof.IDHex(), err)
		return nil, errors.Wrap(ErrReauthRequired, err.Error())
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	if err := d.persist(ctx, prof, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// persist writes the rotated tokens before anything is sent with them.
func (d *Dispatcher) persist(ctx context.Context, prof *models.Profile, tok *oauth2.Token) error {
	tokens := models.OAuthTokens{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken, Expiry: tok.Expiry}
	if err := d.store.UpdateTokens(ctx, prof.IDHex(), tokens); err != nil {
		log.Printf("[PersistTokens] profile=%s error=%v", prof.IDHex(), err)
		return errors.WithMessage(err, "persist rotated tokens")
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = prof.GoogleRefreshToken
	}
	prof.SetTokens(tokens)
	return nil
}

func (d *Dispatcher) lock(profileID string) func() {
	d.locksMu.Lock()
	l, ok := d.locks[profileID]
	if !ok {
		l = &profileLock{}
		d.locks[profileID] = l
	}
	l.refs++
	d.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		d.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.locks, profileID)
		}
		d.locksMu.Unlock()
	}
}

func toOAuth2(t models.OAuthTokens) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       t.Expiry,
	}
}
