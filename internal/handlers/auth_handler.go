package handlers

import (
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/quickapply/backend/internal/auth"
	"github.com/quickapply/backend/internal/middleware"
	"github.com/quickapply/backend/internal/models"
	"github.com/quickapply/backend/internal/services"
)

type AuthHandler struct {
	oauth       *services.GoogleOAuth
	issuer      *auth.Issuer
	profiles    *services.ProfileService
	revocations services.RevocationStore
	frontendURL string
}

func NewAuthHandler(oauth *services.GoogleOAuth, issuer *auth.Issuer, profiles *services.ProfileService, revocations services.RevocationStore, frontendURL string) *AuthHandler {
	return &AuthHandler{
		oauth:       oauth,
		issuer:      issuer,
		profiles:    profiles,
		revocations: revocations,
		frontendURL: frontendURL,
	}
}

// GoogleLogin redirects to the Google consent screen.
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.oauth.Configured() {
		writeJSON(w, http.StatusServiceUnavailable, models.NewCodedErrorResponse(models.CodeUpstreamUnavailable, "Google OAuth is not configured"))
		return
	}
	http.Redirect(w, r, h.oauth.AuthCodeURL(), http.StatusFound)
}

// OAuthCallback exchanges the code and hands the pre-save credential to the web app.
// The profile itself is only created on the first save.
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		log.Printf("[OAuthCallback] google returned error=%s", e)
		h.redirectFailure(w, r)
		return
	}
	if !h.oauth.ValidateState(q.Get("state")) {
		log.Printf("[OAuthCallback] invalid or expired state")
		h.redirectFailure(w, r)
		return
	}
	code := q.Get("code")
	if code == "" {
		h.redirectFailure(w, r)
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	tok, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		log.Printf("[OAuthCallback] exchange error=%v", err)
		h.redirectFailure(w, r)
		return
	}
	identity, err := h.oauth.UserInfo(ctx, tok)
	if err != nil {
		log.Printf("[OAuthCallback] userinfo error=%v", err)
		h.redirectFailure(w, r)
		return
	}
	if tok.RefreshToken == "" {
		log.Printf("[OAuthCallback] no refresh token returned google_id=%s", identity.GoogleID)
	}

	credential, err := h.issuer.ForOAuth(*identity, tok)
	if err != nil {
		log.Printf("[OAuthCallback] issue credential error=%v", err)
		h.redirectFailure(w, r)
		return
	}
	http.Redirect(w, r, h.frontendURL+"/auth/callback?token="+url.QueryEscape(credential), http.StatusFound)
}

func (h *AuthHandler) redirectFailure(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.frontendURL+"/auth/callback?error=authentication_failed", http.StatusFound)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	me, err := h.profiles.Me(ctx, claims)
	if err != nil {
		writeServiceError(w, "Me", err, "Failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(me))
}

// Logout revokes the presented credential for the rest of its lifetime.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, models.NewCodedErrorResponse(models.CodeUnauthenticated, "Unauthorized"))
		return
	}

	expiresAt := time.Now().Add(24 * time.Hour)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := h.revocations.Revoke(r.Context(), claims.ID, expiresAt); err != nil {
		writeServiceError(w, "Logout", err, "Failed to logout")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "Logged out successfully"}))
}
