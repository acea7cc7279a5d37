package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/quickapply/backend/internal/auth"
	"github.com/quickapply/backend/internal/models"
)

type contextKey string

// unauthorizedMessage is the only body a rejected credential ever gets.
const unauthorizedMessage = "Invalid or expired token"

// errRevocationUnavailable marks a revocation lookup that could not be answered.
var errRevocationUnavailable = errors.New("revocation store unavailable")

const (
	ClaimsKey     contextKey = "claims"
	CredentialKey contextKey = "credential"
)

// Verifier validates a bearer credential.
type Verifier interface {
	Verify(token string) (*auth.Claims, error)
}

// RevocationChecker reports whether a credential id was revoked before expiry.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, credentialID string) (bool, error)
}

// JWTAuth rejects requests without a valid, unrevoked bearer credential. Every failure gets
// the same 401 so callers cannot tell missing, malformed, expired and forged credentials
// apart. A revocation store outage answers 503 instead.
func JWTAuth(verifier Verifier, revocations RevocationChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeUnauthorized(w)
				return
			}

			claims, err := authenticate(r.Context(), verifier, revocations, raw)
			if err != nil {
				if errors.Is(err, errRevocationUnavailable) {
					log.Printf("[JWTAuth] path=%s error=%v", r.URL.Path, err)
					writeUnavailable(w)
					return
				}
				log.Printf("[JWTAuth] path=%s rejected: %v", r.URL.Path, err)
				writeUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims, raw)))
		})
	}
}

// OptionalJWTAuth attaches claims when a valid credential is present and otherwise lets
// the request through anonymously.
func OptionalJWTAuth(verifier Verifier, revocations RevocationChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := authenticate(r.Context(), verifier, revocations, raw)
			if errors.Is(err, errRevocationUnavailable) {
				log.Printf("[OptionalJWTAuth] path=%s error=%v", r.URL.Path, err)
				writeUnavailable(w)
				return
			}
			if err != nil {
				log.Printf("[OptionalJWTAuth] path=%s ignoring credential: %v", r.URL.Path, err)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims, raw)))
		})
	}
}

func authenticate(ctx context.Context, verifier Verifier, revocations RevocationChecker, raw string) (*auth.Claims, error) {
	claims, err := verifier.Verify(raw)
	if err != nil {
		return nil, err
	}
	if revocations != nil && claims.ID != "" {
		revoked, err := revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, errors.Wrap(errRevocationUnavailable, err.Error())
		}
		if revoked {
			return nil, auth.ErrUnauthenticated
		}
	}
	return claims, nil
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func withClaims(ctx context.Context, claims *auth.Claims, raw string) context.Context {
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	return context.WithValue(ctx, CredentialKey, raw)
}

// GetClaims extracts verified claims from context
func GetClaims(ctx context.Context) *auth.Claims {
	claims, ok := ctx.Value(ClaimsKey).(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}

// GetCredential returns the raw bearer credential the claims were read from.
func GetCredential(ctx context.Context) string {
	raw, _ := ctx.Value(CredentialKey).(string)
	return raw
}

func writeUnauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, models.NewCodedErrorResponse(models.CodeUnauthenticated, unauthorizedMessage))
}

func writeUnavailable(w http.ResponseWriter) {
	writeError(w, http.StatusServiceUnavailable, models.NewCodedErrorResponse(models.CodeUpstreamUnavailable, "Authentication temporarily unavailable"))
}

func writeError(w http.ResponseWriter, status int, resp models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
