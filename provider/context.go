package provider

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dpup/grantkit/oauth"
)

// Context keys for values resolved from a bearer token.
type scopesKey struct{}
type clientIDKey struct{}
type userIDKey struct{}

// WithScopes adds granted scopes to the context.
func WithScopes(ctx context.Context, scopes []string) context.Context {
	return context.WithValue(ctx, scopesKey{}, scopes)
}

// ScopesFromContext retrieves granted scopes from the context.
func ScopesFromContext(ctx context.Context) []string {
	if scopes, ok := ctx.Value(scopesKey{}).([]string); ok {
		return scopes
	}
	return nil
}

// WithClientID adds the resolved client ID to the context.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, clientID)
}

// ClientIDFromContext retrieves the client ID from the context.
func ClientIDFromContext(ctx context.Context) string {
	if clientID, ok := ctx.Value(clientIDKey{}).(string); ok {
		return clientID
	}
	return ""
}

// WithUserID adds the resolved user ID to the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext retrieves the user ID from the context.
func UserIDFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(userIDKey{}).(string); ok {
		return userID
	}
	return ""
}

// HasScope checks if the current context carries the given scope.
func HasScope(ctx context.Context, scope string) bool {
	return oauth.ContainsScope(ScopesFromContext(ctx), scope)
}

// IsAuthenticated reports whether the request carried a valid bearer token.
func IsAuthenticated(ctx context.Context) bool {
	return UserIDFromContext(ctx) != ""
}

// Authenticate wraps a handler with bearer-token authentication. A valid,
// unexpired token populates the context with the token's user, client, and
// scopes; anything else is rejected with 401.
func (p *Provider) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		bearer := extractBearerToken(r)
		if bearer == "" {
			unauthorized(w)
			return
		}

		token, err := p.grant.GetAccessToken(ctx, bearer)
		if err != nil || token.Expired(time.Now()) {
			unauthorized(w)
			return
		}

		ctx = WithScopes(ctx, token.Scope)
		ctx = WithClientID(ctx, token.ClientID)
		ctx = WithUserID(ctx, token.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireScope wraps a handler, additionally rejecting tokens that do not
// carry every listed scope. Must run inside Authenticate.
func (p *Provider) RequireScope(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			granted := AccessTokenFromRequest(r)
			if !p.grant.VerifyScope(granted, scopes...) {
				http.Error(w, "insufficient_scope", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccessTokenFromRequest reconstitutes the scope view of the request's token
// from context values.
func AccessTokenFromRequest(r *http.Request) oauth.AccessToken {
	ctx := r.Context()
	return oauth.AccessToken{
		Scope:    ScopesFromContext(ctx),
		ClientID: ClientIDFromContext(ctx),
		UserID:   UserIDFromContext(ctx),
	}
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="oauth"`)
	http.Error(w, "invalid_token", http.StatusUnauthorized)
}
