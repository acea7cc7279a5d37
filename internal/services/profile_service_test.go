package services

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/quickapply/backend/internal/auth"
	"github.com/quickapply/backend/internal/models"
)

func newTestProfileService(t *testing.T) (*ProfileService, *FileProfileService, *auth.Issuer) {
	t.Helper()
	store := newTestStore(t)
	iss, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	return NewProfileService(store, NewProfileResolver(store), iss), store, iss
}

func TestSave_TwiceUpdatesSingleRecord(t *testing.T) {
	svc, store, _ := newTestProfileService(t)
	ctx := context.Background()
	req := &models.SaveProfileRequest{Email: "Jane@Example.com ", FullName: "Jane Doe", Skills: "Go"}

	first, err := svc.Save(ctx, req, nil)
	require.NoError(t, err)
	assert.Equal(t, "Profile created", first.Message)

	second, err := svc.Save(ctx, req, nil)
	require.NoError(t, err)
	assert.Equal(t, "Profile updated", second.Message)
	assert.Equal(t, first.Profile.ID, second.Profile.ID)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSave_NewProfileGetsPlaceholderHashAndCredential(t *testing.T) {
	svc, store, iss := newTestProfileService(t)

	resp, err := svc.Save(context.Background(), &models.SaveProfileRequest{Email: "jane@example.com"}, nil)
	require.NoError(t, err)

	stored, err := store.FindByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(placeholderSecret)))

	claims, err := iss.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, stored.IDHex(), claims.UserID)
	assert.Equal(t, "jane@example.com", claims.Email)
	assert.Empty(t, claims.GoogleAccessToken)
}

func TestSave_OAuthClaimsAttachTokens(t *testing.T) {
	svc, store, _ := newTestProfileService(t)
	claims := &auth.Claims{
		Email:              "jane@example.com",
		GoogleID:           "g-1",
		FullName:           "Jane From Google",
		GoogleAccessToken:  "access",
		GoogleRefreshToken: "refresh",
	}

	resp, err := svc.Save(context.Background(), &models.SaveProfileRequest{Bio: "hi"}, claims)
	require.NoError(t, err)
	assert.Equal(t, "Jane From Google", resp.Profile.FullName)

	stored, err := store.FindByGoogleID(context.Background(), "g-1")
	require.NoError(t, err)
	assert.Equal(t, "access", stored.GoogleAccessToken)
	assert.Equal(t, "refresh", stored.GoogleRefreshToken)
}

func TestSave_MatchesByGoogleIDWhenEmailChanged(t *testing.T) {
	svc, store, _ := newTestProfileService(t)
	seedProfile(t, store, &models.Profile{Email: "old@example.com", GoogleID: "g-1", GoogleRefreshToken: "keep"})

	claims := &auth.Claims{Email: "old@example.com", GoogleID: "g-1", GoogleAccessToken: "new-access"}
	_, err := svc.Save(context.Background(), &models.SaveProfileRequest{Email: "new@example.com"}, claims)
	require.NoError(t, err)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := store.FindByGoogleID(context.Background(), "g-1")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", got.Email)
	assert.Equal(t, "new-access", got.GoogleAccessToken)
	assert.Equal(t, "keep", got.GoogleRefreshToken)
}

func TestSave_LinkedProfileRefusesOtherCallers(t *testing.T) {
	svc, store, iss := newTestProfileService(t)
	ctx := context.Background()
	victim := seedProfile(t, store, &models.Profile{
		Email:              "victim@example.com",
		GoogleID:           "g-victim",
		GoogleAccessToken:  "valid",
		GoogleRefreshToken: "r1",
		Bio:                "mine",
	})
	other, err := svc.Save(ctx, &models.SaveProfileRequest{Email: "other@example.com"}, nil)
	require.NoError(t, err)
	otherClaims, err := iss.Verify(other.Token)
	require.NoError(t, err)

	tests := []struct {
		name   string
		claims *auth.Claims
	}{
		{name: "anonymous", claims: nil},
		{name: "another profile", claims: otherClaims},
		{name: "another google account", claims: &auth.Claims{Email: "victim@example.com", GoogleID: "g-other", GoogleAccessToken: "x"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := svc.Save(ctx, &models.SaveProfileRequest{Email: "VICTIM@example.com", Bio: "pwned"}, tc.claims)
			assert.True(t, errors.Is(err, auth.ErrUnauthenticated))
			assert.Nil(t, resp)
		})
	}

	stored, err := store.FindByID(ctx, victim.IDHex())
	require.NoError(t, err)
	assert.Equal(t, "mine", stored.Bio)
	assert.Equal(t, "valid", stored.GoogleAccessToken)
}

func TestSave_LinkedProfileAcceptsOwner(t *testing.T) {
	svc, store, _ := newTestProfileService(t)
	ctx := context.Background()
	p := seedProfile(t, store, &models.Profile{Email: "jane@example.com", GoogleID: "g-1", GoogleAccessToken: "valid"})

	resp, err := svc.Save(ctx, &models.SaveProfileRequest{Email: "jane@example.com", Bio: "by id"}, &auth.Claims{UserID: p.IDHex()})
	require.NoError(t, err)
	assert.Equal(t, "Profile updated", resp.Message)
	assert.NotEmpty(t, resp.Token)

	resp, err = svc.Save(ctx, &models.SaveProfileRequest{Bio: "by google"}, &auth.Claims{Email: "jane@example.com", GoogleID: "g-1"})
	require.NoError(t, err)
	assert.Equal(t, "by google", resp.Profile.Bio)
}

func TestSave_RequiresEmail(t *testing.T) {
	svc, _, _ := newTestProfileService(t)
	_, err := svc.Save(context.Background(), &models.SaveProfileRequest{FullName: "x"}, nil)
	assert.True(t, errors.Is(err, ErrInvalidProfile))
}

func TestUpdate_AppliesPartialFields(t *testing.T) {
	svc, store, _ := newTestProfileService(t)
	p := seedProfile(t, store, &models.Profile{Email: "jane@example.com", FullName: "Jane", Bio: "old"})

	bio := "new bio"
	got, err := svc.Update(context.Background(), &auth.Claims{UserID: p.IDHex()}, &models.UpdateProfileRequest{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "Jane", got.FullName)
	assert.Equal(t, "new bio", got.Bio)
	assert.False(t, got.LastUpdated.IsZero())
}

func TestUpdate_UnknownProfile(t *testing.T) {
	svc, _, _ := newTestProfileService(t)
	_, err := svc.Update(context.Background(), &auth.Claims{Email: "x@example.com"}, &models.UpdateProfileRequest{})
	assert.True(t, errors.Is(err, ErrProfileNotFound))
}

func TestMe_ReportsMissingProfile(t *testing.T) {
	svc, store, _ := newTestProfileService(t)

	me, err := svc.Me(context.Background(), &auth.Claims{Email: "Jane@example.com"})
	require.NoError(t, err)
	assert.True(t, me.Authenticated)
	assert.False(t, me.HasProfile)
	assert.Equal(t, "jane@example.com", me.Email)

	seedProfile(t, store, &models.Profile{Email: "jane@example.com"})
	me, err = svc.Me(context.Background(), &auth.Claims{Email: "jane@example.com"})
	require.NoError(t, err)
	assert.True(t, me.HasProfile)
	require.NotNil(t, me.Profile)
}
