package services

import (
	"context"
	"log"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/quickapply/backend/internal/auth"
	"github.com/quickapply/backend/internal/models"
)

// placeholderSecret is hashed into new profiles; the schema wants a password but the OAuth
// flow never checks it.
const placeholderSecret = "default-password"

// CredentialIssuer issues the post-save session credential.
type CredentialIssuer interface {
	ForProfile(p *models.Profile) (string, error)
}

type ProfileService struct {
	store    ProfileStore
	resolver *ProfileResolver
	issuer   CredentialIssuer
	now      func() time.Time
}

func NewProfileService(store ProfileStore, resolver *ProfileResolver, issuer CredentialIssuer) *ProfileService {
	return &ProfileService{store: store, resolver: resolver, issuer: issuer, now: time.Now}
}

// Save upserts the profile keyed by email, falling back to the Google subject id.
// claims may be nil for an anonymous save.
func (s *ProfileService) Save(ctx context.Context, req *models.SaveProfileRequest, claims *auth.Claims) (*models.SaveProfileResponse, error) {
	email := models.NormalizeEmail(req.Email)
	if email == "" && claims != nil {
		email = models.NormalizeEmail(claims.Email)
	}
	if email == "" {
		return nil, errors.Wrap(ErrInvalidProfile, "email is required")
	}

	googleID := ""
	if claims.HasOAuth() {
		googleID = claims.GoogleID
	}

	existing, err := s.findForSave(ctx, email, googleID)
	if err != nil {
		return nil, err
	}
	if existing != nil && !ownsLinkedProfile(claims, existing) {
		log.Printf("[SaveProfile] email=%s refused: google-linked profile not owned by caller", email)
		return nil, errors.Wrap(auth.ErrUnauthenticated, "profile is linked to a google account")
	}

	prof := existing
	if prof == nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(placeholderSecret), bcrypt.DefaultCost)
		if err != nil {
			return nil, errors.Wrap(err, "hash placeholder password")
		}
		prof = &models.Profile{PasswordHash: string(hash)}
	}

	req.Apply(prof)
	prof.Email = email
	if claims.HasOAuth() {
		attachOAuth(prof, claims)
	}
	prof.LastUpdated = s.now().UTC()

	if existing == nil {
		err = s.store.Insert(ctx, prof)
	} else {
		err = s.store.Replace(ctx, prof)
	}
	if err != nil {
		log.Printf("[SaveProfile] email=%s error=%v", email, err)
		return nil, errors.WithMessage(err, "save profile")
	}

	token, err := s.issuer.ForProfile(prof)
	if err != nil {
		return nil, errors.Wrap(err, "issue credential")
	}

	msg := "Profile updated"
	if existing == nil {
		msg = "Profile created"
	}
	return &models.SaveProfileResponse{Message: msg, Profile: prof, Token: token}, nil
}

func (s *ProfileService) findForSave(ctx context.Context, email, googleID string) (*models.Profile, error) {
	prof, err := s.store.FindByEmail(ctx, email)
	if err == nil {
		return prof, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}
	if googleID == "" {
		return nil, nil
	}
	prof, err = s.store.FindByGoogleID(ctx, googleID)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, nil
	}
	return prof, err
}

// ownsLinkedProfile reports whether claims may overwrite p. Profiles without Google
// material stay open to anonymous saves; linked ones need a credential for the same
// profile or the same Google account.
func ownsLinkedProfile(claims *auth.Claims, p *models.Profile) bool {
	if !p.HasGoogleAuth() && p.GoogleID == "" {
		return true
	}
	if claims == nil {
		return false
	}
	if claims.UserID != "" && claims.UserID == p.IDHex() {
		return true
	}
	return claims.HasOAuth() && claims.GoogleID == p.GoogleID
}

// attachOAuth copies identity and token material from OAuth claims. A missing refresh
// token in the claims never erases a stored one.
func attachOAuth(p *models.Profile, claims *auth.Claims) {
	p.GoogleID = claims.GoogleID
	if p.FullName == "" {
		p.FullName = claims.FullName
	}
	tokens := claims.OAuthTokens()
	if tokens.AccessToken != "" {
		p.GoogleAccessToken = tokens.AccessToken
		p.GoogleTokenExpiry = tokens.Expiry
	}
	if tokens.RefreshToken != "" {
		p.GoogleRefreshToken = tokens.RefreshToken
	}
}

func (s *ProfileService) Update(ctx context.Context, claims *auth.Claims, req *models.UpdateProfileRequest) (*models.Profile, error) {
	prof, err := s.resolver.Resolve(ctx, claims)
	if err != nil {
		return nil, err
	}

	req.Apply(prof)
	if prof.Email == "" {
		return nil, errors.Wrap(ErrInvalidProfile, "email is required")
	}
	if prof.GoogleID == "" && claims.HasOAuth() {
		attachOAuth(prof, claims)
	}
	prof.LastUpdated = s.now().UTC()

	if err := s.store.Replace(ctx, prof); err != nil {
		log.Printf("[UpdateProfile] profile=%s error=%v", prof.IDHex(), err)
		return nil, errors.WithMessage(err, "update profile")
	}
	return prof, nil
}

func (s *ProfileService) Get(ctx context.Context, claims *auth.Claims) (*models.Profile, error) {
	return s.resolver.Resolve(ctx, claims)
}

func (s *ProfileService) Me(ctx context.Context, claims *auth.Claims) (*models.MeResponse, error) {
	prof, err := s.resolver.Resolve(ctx, claims)
	if errors.Is(err, ErrProfileNotFound) {
		return &models.MeResponse{Authenticated: true, Email: models.NormalizeEmail(claims.Email)}, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.MeResponse{Authenticated: true, HasProfile: true, Email: prof.Email, Profile: prof}, nil
}
