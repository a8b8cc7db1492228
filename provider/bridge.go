package provider

import (
	"context"
	"strings"
	"time"

	"github.com/go-oauth2/oauth2/v4"
	oautherrors "github.com/go-oauth2/oauth2/v4/errors"
	"github.com/go-oauth2/oauth2/v4/models"

	"github.com/dpup/grantkit/errors"
	"github.com/dpup/grantkit/oauth"
)

// translateError maps the lifecycle sentinels onto the engine's error
// values so protocol negatives become proper OAuth2 error responses rather
// than opaque server faults. Infrastructure errors pass through.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, oauth.ErrInvalidClient):
		return oautherrors.ErrInvalidClient
	case errors.Is(err, oauth.ErrInvalidGrant):
		return oautherrors.ErrInvalidGrant
	case errors.Is(err, oauth.ErrInvalidScope):
		return oautherrors.ErrInvalidScope
	case errors.Is(err, oauth.ErrAccessDenied):
		return oautherrors.ErrAccessDenied
	default:
		return err
	}
}

// clientBridge adapts the grant model to the engine's ClientStore.
type clientBridge struct {
	grant oauth.GrantModel
}

// GetByID implements oauth2.ClientStore. Secrets are verified separately by
// the engine, so resolution is by id alone.
func (b *clientBridge) GetByID(ctx context.Context, id string) (oauth2.ClientInfo, error) {
	client, err := b.grant.GetClient(ctx, id, nil)
	if err != nil {
		return nil, translateError(err)
	}
	return &clientInfo{client: client}, nil
}

// clientInfo adapts a Client to the engine's ClientInfo interface.
type clientInfo struct {
	client oauth.Client
}

func (c *clientInfo) GetID() string     { return c.client.ClientID }
func (c *clientInfo) GetSecret() string { return c.client.Secret }

// GetDomain returns all redirect URIs joined by newline for the custom
// redirect URI validation handler.
func (c *clientInfo) GetDomain() string { return strings.Join(c.client.RedirectURIs, "\n") }
func (c *clientInfo) IsPublic() bool    { return c.client.Secret == "" }
func (c *clientInfo) GetUserID() string { return "" }

// tokenBridge adapts the grant model to the engine's TokenStore. The engine
// hands over one TokenInfo per artifact: a record carrying a code becomes an
// AuthorizationCode row, anything else an AccessToken row holding both the
// access and refresh halves.
type tokenBridge struct {
	svc            *oauth.Service
	grant          oauth.GrantModel
	authCodeExpiry time.Duration
}

// Create implements oauth2.TokenStore.
func (b *tokenBridge) Create(ctx context.Context, info oauth2.TokenInfo) error {
	client, err := b.svc.GetClientByClientID(ctx, info.GetClientID())
	if err != nil {
		return translateError(err)
	}
	user, err := b.svc.FindUser(ctx, info.GetUserID())
	if err != nil {
		return translateError(err)
	}

	if code := info.GetCode(); code != "" {
		// Authorize step: apply the scope gate before issuing the code.
		scope, err := b.grant.ValidateScope(ctx, user, client, oauth.ParseScopes(info.GetScope()))
		if err != nil {
			return translateError(err)
		}
		_, err = b.grant.SaveAuthorizationCode(ctx, oauth.AuthorizationCode{
			Code:        code,
			ExpiresAt:   info.GetCodeCreateAt().Add(info.GetCodeExpiresIn()),
			RedirectURI: info.GetRedirectURI(),
			Scope:       scope,
		}, client, user)
		return translateError(err)
	}

	token := oauth.AccessToken{
		AccessToken:     info.GetAccess(),
		AccessExpiresAt: info.GetAccessCreateAt().Add(info.GetAccessExpiresIn()),
		Scope:           oauth.NormalizeScope(info.GetScope()),
		CreatedAt:       info.GetAccessCreateAt(),
	}
	if refresh := info.GetRefresh(); refresh != "" {
		token.RefreshToken = refresh
		token.RefreshExpiresAt = info.GetRefreshCreateAt().Add(info.GetRefreshExpiresIn())
	}
	_, err = b.grant.SaveToken(ctx, token, client, user)
	return translateError(err)
}

// GetByCode implements oauth2.TokenStore.
func (b *tokenBridge) GetByCode(ctx context.Context, code string) (oauth2.TokenInfo, error) {
	stored, err := b.grant.GetAuthorizationCode(ctx, code)
	if err != nil {
		return nil, translateError(err)
	}
	client, err := b.svc.FindClient(ctx, stored.ClientID)
	if err != nil {
		return nil, translateError(err)
	}

	t := models.NewToken()
	t.SetClientID(client.ClientID)
	t.SetUserID(stored.UserID)
	t.SetScope(oauth.FormatScopes(stored.Scope))
	t.SetRedirectURI(stored.RedirectURI)
	t.SetCode(stored.Code)
	// Only the absolute expiry is stored; reconstitute the create/expires-in
	// pair the engine's expiry check expects.
	t.SetCodeCreateAt(stored.ExpiresAt.Add(-b.authCodeExpiry))
	t.SetCodeExpiresIn(b.authCodeExpiry)
	return t, nil
}

// RemoveByCode implements oauth2.TokenStore. The engine calls this
// immediately after a successful redemption; a missing row means another
// redemption won the race and the grant must fail.
func (b *tokenBridge) RemoveByCode(ctx context.Context, code string) error {
	revoked, err := b.grant.RevokeAuthorizationCode(ctx, code)
	if err != nil {
		return err
	}
	if !revoked {
		return oautherrors.ErrInvalidGrant
	}
	return nil
}

// GetByAccess implements oauth2.TokenStore.
func (b *tokenBridge) GetByAccess(ctx context.Context, access string) (oauth2.TokenInfo, error) {
	stored, err := b.grant.GetAccessToken(ctx, access)
	if err != nil {
		return nil, translateError(err)
	}
	return b.tokenInfo(ctx, stored)
}

// GetByRefresh implements oauth2.TokenStore.
func (b *tokenBridge) GetByRefresh(ctx context.Context, refresh string) (oauth2.TokenInfo, error) {
	stored, err := b.svc.FindAccessTokenByRefresh(ctx, refresh)
	if err != nil {
		return nil, translateError(err)
	}
	return b.tokenInfo(ctx, stored)
}

// RemoveByAccess implements oauth2.TokenStore.
func (b *tokenBridge) RemoveByAccess(ctx context.Context, access string) error {
	_, err := b.svc.RemoveAccessToken(ctx, access)
	return err
}

// RemoveByRefresh implements oauth2.TokenStore. The access and refresh
// halves share a row, so this is a no-op when RemoveByAccess already ran.
func (b *tokenBridge) RemoveByRefresh(ctx context.Context, refresh string) error {
	stored, err := b.svc.FindAccessTokenByRefresh(ctx, refresh)
	if errors.Is(err, oauth.ErrInvalidGrant) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = b.svc.RemoveAccessToken(ctx, stored.AccessToken)
	return err
}

func (b *tokenBridge) tokenInfo(ctx context.Context, stored oauth.AccessToken) (oauth2.TokenInfo, error) {
	client, err := b.svc.FindClient(ctx, stored.ClientID)
	if err != nil {
		return nil, translateError(err)
	}

	t := models.NewToken()
	t.SetClientID(client.ClientID)
	t.SetUserID(stored.UserID)
	t.SetScope(oauth.FormatScopes(stored.Scope))
	t.SetAccess(stored.AccessToken)
	t.SetAccessCreateAt(stored.CreatedAt)
	t.SetAccessExpiresIn(stored.AccessExpiresAt.Sub(stored.CreatedAt))
	if stored.RefreshToken != "" {
		t.SetRefresh(stored.RefreshToken)
		t.SetRefreshCreateAt(stored.CreatedAt)
		t.SetRefreshExpiresIn(stored.RefreshExpiresAt.Sub(stored.CreatedAt))
	}
	return t, nil
}

// authorizeGenerate sources authorization-code strings from the lifecycle
// generator instead of the engine's default.
type authorizeGenerate struct{}

func (authorizeGenerate) Token(ctx context.Context, data *oauth2.GenerateBasic) (string, error) {
	return oauth.GenerateSecret()
}

// accessGenerate sources access and refresh token strings from the lifecycle
// generator.
type accessGenerate struct{}

func (accessGenerate) Token(ctx context.Context, data *oauth2.GenerateBasic, isGenRefresh bool) (string, string, error) {
	access, err := oauth.GenerateSecret()
	if err != nil {
		return "", "", err
	}
	if !isGenRefresh {
		return access, "", nil
	}
	refresh, err := oauth.GenerateSecret()
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}
