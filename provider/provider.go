// Package provider wires the token lifecycle onto a go-oauth2/oauth2 engine
// and exposes the resulting authorization server over net/http.
//
// # Basic Usage
//
//	p := provider.NewBuilder().
//		WithStore(memory.New()).
//		WithClient(oauth.Client{
//			ClientID:     "my-app",
//			Secret:       "secret",
//			RedirectURIs: []string{"http://localhost:3000/callback"},
//		}).
//		WithUserAuthorization(loginHandler).
//		Build()
//
//	mux.Handle("/oauth/authorize", p.AuthorizeHandler())
//	mux.Handle("/oauth/token", p.TokenHandler())
//	mux.Handle("/api/", p.Authenticate(apiHandler))
package provider

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-oauth2/oauth2/v4"
	"github.com/go-oauth2/oauth2/v4/manage"
	"github.com/go-oauth2/oauth2/v4/server"

	"github.com/dpup/grantkit"
	"github.com/dpup/grantkit/logging"
	"github.com/dpup/grantkit/oauth"
	"github.com/dpup/grantkit/storage"
	"github.com/dpup/grantkit/storage/memory"
)

// UserAuthorizationFunc resolves the authenticated user for an authorize
// request, returning the user's ID. Returning an error aborts the flow;
// implementations typically redirect to a login page first.
type UserAuthorizationFunc func(w http.ResponseWriter, r *http.Request) (string, error)

// Provider is a configured OAuth2 authorization server.
type Provider struct {
	svc    *oauth.Service
	grant  oauth.GrantModel
	server *server.Server

	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	authCodeExpiry     time.Duration
	issuer             string

	store             storage.Store
	serviceOpts       []oauth.ServiceOption
	staticClients     []oauth.Client
	staticUsers       []oauth.User
	userAuthorization UserAuthorizationFunc
}

// Builder provides a fluent interface for configuring a Provider.
type Builder struct {
	provider *Provider
}

// NewBuilder creates a builder with expiries taken from the `oauth.*` config
// keys.
func NewBuilder() *Builder {
	return &Builder{
		provider: &Provider{
			accessTokenExpiry:  grantkit.Config.Duration("oauth.accessTokenExpiry"),
			refreshTokenExpiry: grantkit.Config.Duration("oauth.refreshTokenExpiry"),
			authCodeExpiry:     grantkit.Config.Duration("oauth.authCodeExpiry"),
			issuer:             grantkit.Config.String("oauth.issuer"),
		},
	}
}

// WithStore sets the backing store. Defaults to an in-memory store.
func (b *Builder) WithStore(store storage.Store) *Builder {
	b.provider.store = store
	return b
}

// WithServiceOptions appends options for the underlying Service.
func (b *Builder) WithServiceOptions(opts ...oauth.ServiceOption) *Builder {
	b.provider.serviceOpts = append(b.provider.serviceOpts, opts...)
	return b
}

// WithClient adds a statically configured OAuth client, registered on Build.
func (b *Builder) WithClient(client oauth.Client) *Builder {
	b.provider.staticClients = append(b.provider.staticClients, client)
	return b
}

// WithUser adds a statically configured user, registered on Build. The
// HashedPassword field must already be hashed.
func (b *Builder) WithUser(user oauth.User) *Builder {
	b.provider.staticUsers = append(b.provider.staticUsers, user)
	return b
}

// WithAccessTokenExpiry sets the access token expiration duration.
func (b *Builder) WithAccessTokenExpiry(d time.Duration) *Builder {
	b.provider.accessTokenExpiry = d
	return b
}

// WithRefreshTokenExpiry sets the refresh token expiration duration.
func (b *Builder) WithRefreshTokenExpiry(d time.Duration) *Builder {
	b.provider.refreshTokenExpiry = d
	return b
}

// WithAuthCodeExpiry sets the authorization code expiration duration.
func (b *Builder) WithAuthCodeExpiry(d time.Duration) *Builder {
	b.provider.authCodeExpiry = d
	return b
}

// WithIssuer sets the issuer reported by the metadata endpoint.
func (b *Builder) WithIssuer(issuer string) *Builder {
	b.provider.issuer = issuer
	return b
}

// WithUserAuthorization sets the hook that resolves the authenticated user
// during the authorize step.
func (b *Builder) WithUserAuthorization(fn UserAuthorizationFunc) *Builder {
	b.provider.userAuthorization = fn
	return b
}

// Build returns the configured Provider.
func (b *Builder) Build() *Provider {
	p := b.provider

	if p.store == nil {
		p.store = memory.New()
	}
	if p.issuer == "" {
		p.issuer = grantkit.Config.String("server.address")
	}

	opts := append([]oauth.ServiceOption{
		oauth.WithAccessTokenExpiry(p.accessTokenExpiry),
		oauth.WithRefreshTokenExpiry(p.refreshTokenExpiry),
		oauth.WithAuthCodeExpiry(p.authCodeExpiry),
	}, p.serviceOpts...)
	p.svc = oauth.NewService(p.store, opts...)
	p.grant = oauth.NewCodeGrant(p.svc)

	// Static registration is an upsert so restarts re-register cleanly.
	for _, client := range p.staticClients {
		if _, err := p.svc.RegisterClient(context.Background(), client); err != nil {
			logging.NewDevLogger().Errorw("failed to register client",
				"client", client.ClientID, "error", err)
		}
	}
	for _, user := range p.staticUsers {
		if _, err := p.svc.RegisterUser(context.Background(), user); err != nil {
			logging.NewDevLogger().Errorw("failed to register user",
				"user", user.Username, "error", err)
		}
	}

	manager := manage.NewDefaultManager()
	manager.SetAuthorizeCodeTokenCfg(&manage.Config{
		AccessTokenExp:    p.accessTokenExpiry,
		RefreshTokenExp:   p.refreshTokenExpiry,
		IsGenerateRefresh: true,
	})
	manager.SetRefreshTokenCfg(&manage.RefreshingConfig{
		AccessTokenExp:     p.accessTokenExpiry,
		RefreshTokenExp:    p.refreshTokenExpiry,
		IsGenerateRefresh:  true,
		IsRemoveAccess:     true,
		IsRemoveRefreshing: true,
	})
	manager.SetAuthorizeCodeExp(p.authCodeExpiry)

	manager.MapClientStorage(&clientBridge{grant: p.grant})
	manager.MapTokenStorage(&tokenBridge{
		svc:            p.svc,
		grant:          p.grant,
		authCodeExpiry: p.authCodeExpiry,
	})
	manager.MapAuthorizeGenerate(authorizeGenerate{})
	manager.MapAccessGenerate(accessGenerate{})

	// The client's registered redirect URIs arrive newline-joined via
	// GetDomain; an exact match against any of them is required.
	manager.SetValidateURIHandler(func(baseURI, redirectURI string) error {
		for _, allowed := range strings.Split(baseURI, "\n") {
			if allowed == redirectURI {
				return nil
			}
		}
		return oauth.ErrAccessDenied
	})

	srv := server.NewDefaultServer(manager)
	srv.SetAllowGetAccessRequest(false)
	srv.SetAllowedGrantType(oauth2.AuthorizationCode, oauth2.Refreshing)
	srv.SetAllowedResponseType(oauth2.Code)

	// Client credentials may arrive via basic auth or form fields.
	srv.SetClientInfoHandler(func(r *http.Request) (string, string, error) {
		if clientID, clientSecret, ok := r.BasicAuth(); ok {
			return clientID, clientSecret, nil
		}
		return r.Form.Get("client_id"), r.Form.Get("client_secret"), nil
	})

	srv.SetUserAuthorizationHandler(func(w http.ResponseWriter, r *http.Request) (string, error) {
		if p.userAuthorization == nil {
			return "", oauth.ErrAccessDenied
		}
		return p.userAuthorization(w, r)
	})

	srv.SetAuthorizeScopeHandler(func(w http.ResponseWriter, r *http.Request) (string, error) {
		return p.restrictScope(r.Context(), r.FormValue("client_id"), r.FormValue("scope"))
	})

	p.server = srv
	return p
}

// Service exposes the underlying lifecycle service for direct management.
func (p *Provider) Service() *oauth.Service {
	return p.svc
}

// Grant exposes the grant model, e.g. for resource servers that verify
// scopes out of band.
func (p *Provider) Grant() oauth.GrantModel {
	return p.grant
}

// restrictScope normalizes the requested scope and rejects anything outside
// the client's registered scope set. Clients with no registered scopes are
// unrestricted. The user-level admin gate is applied later, at code
// issuance, once the user is known.
func (p *Provider) restrictScope(ctx context.Context, clientID, requestedScope string) (string, error) {
	requested := oauth.NormalizeScope(requestedScope)
	if len(requested) == 0 {
		return "", oauth.ErrInvalidScope
	}

	client, err := p.svc.GetClientByClientID(ctx, clientID)
	if err != nil {
		return "", translateError(err)
	}
	if len(client.Scopes) > 0 && !oauth.ScopeSubset(client.Scopes, requested) {
		return "", translateError(oauth.ErrInvalidScope)
	}
	return oauth.FormatScopes(requested), nil
}
