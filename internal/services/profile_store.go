package services

import (
	"context"

	"github.com/quickapply/backend/internal/models"
)

// ProfileStore persists profiles. Lookups return ErrProfileNotFound when nothing matches;
// emails are expected to be normalized by the caller.
type ProfileStore interface {
	FindByID(ctx context.Context, id string) (*models.Profile, error)
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
	FindByGoogleID(ctx context.Context, googleID string) (*models.Profile, error)
	// Insert assigns p.ID when it is zero.
	Insert(ctx context.Context, p *models.Profile) error
	Replace(ctx context.Context, p *models.Profile) error
	// UpdateTokens writes only the OAuth material of one profile.
	UpdateTokens(ctx context.Context, id string, tokens models.OAuthTokens) error
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}
