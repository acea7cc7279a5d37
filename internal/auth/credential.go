// Package auth issues and verifies the signed session credential handed to the
// web app and extension. The credential is an HS256 JWT; its signature and expiry are
// the only integrity guarantees, revocation is layered on top by the middleware.
package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/quickapply/backend/internal/models"
)

var (
	// ErrUnauthenticated matches every verification failure.
	ErrUnauthenticated = errors.New("unauthenticated")

	ErrMalformed        = classified("malformed credential")
	ErrExpired          = classified("credential expired")
	ErrInvalidSignature = classified("invalid credential signature")
)

// classifiedError is a verification sub-case that also matches ErrUnauthenticated.
type classifiedError struct{ msg string }

func classified(msg string) error { return &classifiedError{msg: msg} }

func (e *classifiedError) Error() string        { return e.msg }
func (e *classifiedError) Is(target error) bool { return target == ErrUnauthenticated }

// Claims is either {userId, email} after a profile save, or {email, googleId, fullName,
// tokens} straight after the OAuth callback and before the first save.
type Claims struct {
	jwt.RegisteredClaims
	UserID             string `json:"userId,omitempty"`
	Email              string `json:"email,omitempty"`
	GoogleID           string `json:"googleId,omitempty"`
	FullName           string `json:"fullName,omitempty"`
	GoogleAccessToken  string `json:"googleAccessToken,omitempty"`
	GoogleRefreshToken string `json:"googleRefreshToken,omitempty"`
	// GoogleTokenExpiry is the access token's expiry in unix seconds, 0 when unknown.
	GoogleTokenExpiry int64 `json:"googleTokenExpiry,omitempty"`
}

// HasOAuth reports whether the claims came from the Google callback.
func (c *Claims) HasOAuth() bool {
	return c != nil && c.GoogleID != ""
}

// OAuthTokens returns the Google tokens carried by a pre-save credential.
func (c *Claims) OAuthTokens() models.OAuthTokens {
	t := models.OAuthTokens{AccessToken: c.GoogleAccessToken, RefreshToken: c.GoogleRefreshToken}
	if c.GoogleTokenExpiry > 0 {
		t.Expiry = time.Unix(c.GoogleTokenExpiry, 0).UTC()
	}
	return t
}

// OAuthIdentity is what the Google callback knows about the user.
type OAuthIdentity struct {
	GoogleID string
	Email    string
	FullName string
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret must be provided")
	}
	if ttl <= 0 {
		return nil, errors.New("credential ttl must be positive")
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs c with a fresh id, issued-at and expiry.
func (i *Issuer) Issue(c Claims) (string, error) {
	now := i.now()
	c.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign credential")
	}
	return signed, nil
}

// ForProfile issues the post-save credential.
func (i *Issuer) ForProfile(p *models.Profile) (string, error) {
	return i.Issue(Claims{UserID: p.IDHex(), Email: p.Email})
}

// ForOAuth issues the pre-save credential that carries the Google tokens until the
// first profile save persists them.
func (i *Issuer) ForOAuth(id OAuthIdentity, tok *oauth2.Token) (string, error) {
	c := Claims{
		Email:    models.NormalizeEmail(id.Email),
		GoogleID: id.GoogleID,
		FullName: id.FullName,
	}
	if tok != nil {
		c.GoogleAccessToken = tok.AccessToken
		c.GoogleRefreshToken = tok.RefreshToken
		if !tok.Expiry.IsZero() {
			c.GoogleTokenExpiry = tok.Expiry.Unix()
		}
	}
	return i.Issue(c)
}

// Verify checks signature and expiry and returns the embedded claims.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.secret, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid {
		return nil, ErrInvalidSignature
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	default:
		return ErrMalformed
	}
}
