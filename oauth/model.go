package oauth

import (
	"context"

	"github.com/dpup/grantkit/logging"
)

// GrantModel is the fixed lifecycle contract an authorization-code OAuth2
// engine drives. Each operation is invoked at a specific protocol juncture:
//
//	authorize:      ValidateScope, SaveAuthorizationCode
//	token exchange: GetClient, GetAuthorizationCode, RevokeAuthorizationCode,
//	                GenerateAccessToken, SaveToken
//	resource:       GetAccessToken, VerifyScope
//
// Expected negatives are the package sentinel errors; infrastructure faults
// propagate to the engine unchanged. Any engine that calls these operations
// with the same shapes and timing can drive the flow.
type GrantModel interface {
	// GetClient authenticates a client. When secret is nil the client is
	// resolved by id only; when present the secret must also match.
	GetClient(ctx context.Context, clientID string, clientSecret *string) (Client, error)

	// SaveToken persists a generated token pair bound to the client and user.
	SaveToken(ctx context.Context, token AccessToken, client Client, user User) (AccessToken, error)

	// GetAuthorizationCode resolves a code for redemption. Consumed or
	// unknown codes report ErrInvalidGrant.
	GetAuthorizationCode(ctx context.Context, code string) (AuthorizationCode, error)

	// SaveAuthorizationCode normalizes the candidate's scope and persists it.
	// The redirect URI is supplied by the transport layer, not chosen here.
	SaveAuthorizationCode(ctx context.Context, code AuthorizationCode, client Client, user User) (AuthorizationCode, error)

	// RevokeAuthorizationCode deletes a redeemed code. The bool reports
	// whether deletion occurred; false on the second of two redemption
	// attempts is how the engine detects replay.
	RevokeAuthorizationCode(ctx context.Context, code string) (bool, error)

	// GenerateAccessToken builds (but does not save) a token pair and
	// returns the access-token string. The refresh half is carried through
	// SaveToken.
	GenerateAccessToken(ctx context.Context, client Client, user User, scopes []string) (string, error)

	// GetAccessToken resolves a bearer token on protected requests.
	GetAccessToken(ctx context.Context, token string) (AccessToken, error)

	// VerifyScope reports whether every requested scope is granted by the
	// token. Subset check, not equality.
	VerifyScope(token AccessToken, requested ...string) bool

	// ValidateScope normalizes the requested scope and applies the admin
	// gate before code issuance. Returns the normalized scope unchanged on
	// success.
	ValidateScope(ctx context.Context, user User, client Client, scopes []string) ([]string, error)
}

// CodeGrant implements GrantModel over a Service. It holds no state of its
// own; every mutation goes through the Service so the single-write
// guarantees hold.
type CodeGrant struct {
	svc *Service
}

// NewCodeGrant returns a CodeGrant delegating to svc.
func NewCodeGrant(svc *Service) *CodeGrant {
	return &CodeGrant{svc: svc}
}

var _ GrantModel = &CodeGrant{}

// GetClient implements GrantModel.
func (g *CodeGrant) GetClient(ctx context.Context, clientID string, clientSecret *string) (Client, error) {
	if clientSecret == nil {
		return g.svc.GetClientByClientID(ctx, clientID)
	}
	return g.svc.ValidateClient(ctx, clientID, *clientSecret)
}

// SaveToken implements GrantModel.
func (g *CodeGrant) SaveToken(ctx context.Context, token AccessToken, client Client, user User) (AccessToken, error) {
	return g.svc.PersistAccessToken(ctx, token, user, client)
}

// GetAuthorizationCode implements GrantModel.
func (g *CodeGrant) GetAuthorizationCode(ctx context.Context, code string) (AuthorizationCode, error) {
	return g.svc.FindAuthorizationCode(ctx, code)
}

// SaveAuthorizationCode implements GrantModel.
func (g *CodeGrant) SaveAuthorizationCode(ctx context.Context, code AuthorizationCode, client Client, user User) (AuthorizationCode, error) {
	code.Scope = NormalizeScope(code.Scope...)
	if len(code.Scope) == 0 {
		return AuthorizationCode{}, ErrInvalidScope
	}
	if code.Code == "" {
		generated, err := GenerateSecret()
		if err != nil {
			return AuthorizationCode{}, err
		}
		code.Code = generated
	}
	if code.ExpiresAt.IsZero() {
		code.ExpiresAt = g.svc.now().Add(g.svc.authCodeExpiry)
	}

	logging.Debugw(ctx, "saving authorization code",
		"client", client.ClientID, "scope", FormatScopes(code.Scope))
	return g.svc.PersistAuthorizationCode(ctx, code, client, user)
}

// RevokeAuthorizationCode implements GrantModel.
func (g *CodeGrant) RevokeAuthorizationCode(ctx context.Context, code string) (bool, error) {
	return g.svc.RemoveAuthorizationCode(ctx, code)
}

// GenerateAccessToken implements GrantModel.
func (g *CodeGrant) GenerateAccessToken(ctx context.Context, client Client, user User, scopes []string) (string, error) {
	token, err := g.svc.CreateAccessToken(scopes, client, user)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// GetAccessToken implements GrantModel.
func (g *CodeGrant) GetAccessToken(ctx context.Context, token string) (AccessToken, error) {
	return g.svc.FindAccessToken(ctx, token)
}

// VerifyScope implements GrantModel.
func (g *CodeGrant) VerifyScope(token AccessToken, requested ...string) bool {
	return ScopeSubset(token.Scope, NormalizeScope(requested...))
}

// ValidateScope implements GrantModel.
func (g *CodeGrant) ValidateScope(ctx context.Context, user User, client Client, scopes []string) ([]string, error) {
	normalized := NormalizeScope(scopes...)
	if len(normalized) == 0 {
		return nil, ErrInvalidScope
	}
	if ContainsScope(normalized, AdminScope) && !user.HasRole(AdminRole) {
		return nil, ErrAccessDenied
	}
	return normalized, nil
}
