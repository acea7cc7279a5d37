package services

import (
	"context"

	"github.com/pkg/errors"

	"github.com/quickapply/backend/internal/auth"
	"github.com/quickapply/backend/internal/models"
)

// LookupStrategy finds a profile by one identity key. Key returns "" when the claims
// do not carry that key, in which case the strategy is skipped.
type LookupStrategy struct {
	Name string
	Key  func(*auth.Claims) string
	Find func(ctx context.Context, store ProfileStore, key string) (*models.Profile, error)
}

var (
	ByUserID = LookupStrategy{
		Name: "userId",
		Key:  func(c *auth.Claims) string { return c.UserID },
		Find: func(ctx context.Context, s ProfileStore, k string) (*models.Profile, error) { return s.FindByID(ctx, k) },
	}
	ByEmail = LookupStrategy{
		Name: "email",
		Key:  func(c *auth.Claims) string { return models.NormalizeEmail(c.Email) },
		Find: func(ctx context.Context, s ProfileStore, k string) (*models.Profile, error) { return s.FindByEmail(ctx, k) },
	}
	ByGoogleID = LookupStrategy{
		Name: "googleId",
		Key:  func(c *auth.Claims) string { return c.GoogleID },
		Find: func(ctx context.Context, s ProfileStore, k string) (*models.Profile, error) { return s.FindByGoogleID(ctx, k) },
	}
)

// DefaultLookupOrder is internal id, then email, then Google subject id.
var DefaultLookupOrder = []LookupStrategy{ByUserID, ByEmail, ByGoogleID}

type ProfileResolver struct {
	store      ProfileStore
	strategies []LookupStrategy
}

func NewProfileResolver(store ProfileStore, strategies ...LookupStrategy) *ProfileResolver {
	if len(strategies) == 0 {
		strategies = DefaultLookupOrder
	}
	return &ProfileResolver{store: store, strategies: strategies}
}

// Resolve tries each strategy whose key is present and returns the first match.
func (r *ProfileResolver) Resolve(ctx context.Context, claims *auth.Claims) (*models.Profile, error) {
	if claims == nil {
		return nil, auth.ErrUnauthenticated
	}
	for _, s := range r.strategies {
		key := s.Key(claims)
		if key == "" {
			continue
		}
		prof, err := s.Find(ctx, r.store, key)
		if err == nil {
			return prof, nil
		}
		if !errors.Is(err, ErrProfileNotFound) {
			return nil, errors.Wrapf(err, "resolve profile by %s", s.Name)
		}
	}
	return nil, ErrProfileNotFound
}
