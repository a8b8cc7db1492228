package oauth

import (
	"context"
	"time"

	"github.com/dpup/grantkit"
	"github.com/dpup/grantkit/errors"
	"github.com/dpup/grantkit/logging"
	"github.com/dpup/grantkit/storage"
)

// Service owns entity construction, persistence, and credential validation
// for the token lifecycle. Create* operations build unsaved entities and
// never write; Persist* operations bind ownership and write, so no partial
// state is ever observable when persistence fails.
type Service struct {
	store  storage.Store
	hasher Hasher

	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	authCodeExpiry     time.Duration

	now func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithHasher overrides the password hasher used by ValidateUser.
func WithHasher(h Hasher) ServiceOption {
	return func(s *Service) { s.hasher = h }
}

// WithAccessTokenExpiry sets the access token expiration duration.
func WithAccessTokenExpiry(d time.Duration) ServiceOption {
	return func(s *Service) { s.accessTokenExpiry = d }
}

// WithRefreshTokenExpiry sets the refresh token expiration duration.
func WithRefreshTokenExpiry(d time.Duration) ServiceOption {
	return func(s *Service) { s.refreshTokenExpiry = d }
}

// WithAuthCodeExpiry sets the authorization code expiration duration.
func WithAuthCodeExpiry(d time.Duration) ServiceOption {
	return func(s *Service) { s.authCodeExpiry = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService returns a Service backed by the given store. Expiries default
// to the `oauth.*` config keys.
func NewService(store storage.Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:              store,
		hasher:             DefaultHasher,
		accessTokenExpiry:  grantkit.Config.Duration("oauth.accessTokenExpiry"),
		refreshTokenExpiry: grantkit.Config.Duration("oauth.refreshTokenExpiry"),
		authCodeExpiry:     grantkit.Config.Duration("oauth.authCodeExpiry"),
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAuthorizationCode builds an unsaved authorization code with a freshly
// generated code string. Nothing is written.
func (s *Service) CreateAuthorizationCode(redirectURI string, scopes []string, client Client, user User) (AuthorizationCode, error) {
	code, err := GenerateSecret()
	if err != nil {
		return AuthorizationCode{}, err
	}
	return AuthorizationCode{
		Code:        code,
		ExpiresAt:   s.now().Add(s.authCodeExpiry),
		RedirectURI: redirectURI,
		Scope:       scopes,
		ClientID:    client.ID,
		UserID:      user.ID,
	}, nil
}

// PersistAuthorizationCode binds ownership onto the candidate and writes it.
// A code-string collision is retried exactly once with a regenerated string
// before the fault surfaces.
func (s *Service) PersistAuthorizationCode(ctx context.Context, code AuthorizationCode, client Client, user User) (AuthorizationCode, error) {
	code.ClientID = client.ID
	code.UserID = user.ID

	err := s.store.Create(ctx, code)
	if errors.Is(err, storage.ErrAlreadyExists) {
		regenerated, genErr := GenerateSecret()
		if genErr != nil {
			return AuthorizationCode{}, genErr
		}
		code.Code = regenerated
		err = s.store.Create(ctx, code)
	}
	if err != nil {
		return AuthorizationCode{}, err
	}

	logging.Debugw(ctx, "authorization code persisted",
		"code", redact(code.Code), "client", client.ClientID, "user", user.ID)
	return code, nil
}

// CreateAccessToken builds an unsaved access/refresh token pair. The refresh
// expiry always lands after the access expiry. Nothing is written.
func (s *Service) CreateAccessToken(scopes []string, client Client, user User) (AccessToken, error) {
	access, err := GenerateSecret()
	if err != nil {
		return AccessToken{}, err
	}
	refresh, err := GenerateSecret()
	if err != nil {
		return AccessToken{}, err
	}
	now := s.now()
	return AccessToken{
		AccessToken:      access,
		AccessExpiresAt:  now.Add(s.accessTokenExpiry),
		RefreshToken:     refresh,
		RefreshExpiresAt: now.Add(s.refreshTokenExpiry),
		Scope:            scopes,
		ClientID:         client.ID,
		UserID:           user.ID,
		CreatedAt:        now,
	}, nil
}

// PersistAccessToken binds ownership onto the candidate and writes it, with
// the same single-retry collision policy as PersistAuthorizationCode.
func (s *Service) PersistAccessToken(ctx context.Context, token AccessToken, user User, client Client) (AccessToken, error) {
	token.ClientID = client.ID
	token.UserID = user.ID

	err := s.store.Create(ctx, token)
	if errors.Is(err, storage.ErrAlreadyExists) {
		access, genErr := GenerateSecret()
		if genErr != nil {
			return AccessToken{}, genErr
		}
		refresh, genErr := GenerateSecret()
		if genErr != nil {
			return AccessToken{}, genErr
		}
		token.AccessToken = access
		token.RefreshToken = refresh
		err = s.store.Create(ctx, token)
	}
	if err != nil {
		return AccessToken{}, err
	}

	logging.Debugw(ctx, "access token persisted",
		"token", redact(token.AccessToken), "client", client.ClientID, "user", user.ID)
	return token, nil
}

// RegisterClient upserts a client record, assigning an ID and timestamps if
// missing. Registration flows proper live outside this package; this exists
// so servers can seed statically configured clients.
func (s *Service) RegisterClient(ctx context.Context, client Client) (Client, error) {
	if client.ID == "" {
		client.ID = GenerateID()
	}
	if client.CreatedAt.IsZero() {
		client.CreatedAt = s.now()
	}
	client.UpdatedAt = s.now()
	if err := s.store.Upsert(ctx, client); err != nil {
		return Client{}, err
	}
	return client, nil
}

// RegisterUser upserts a user record, assigning an ID if missing. The
// HashedPassword field must already be hashed by a Hasher.
func (s *Service) RegisterUser(ctx context.Context, user User) (User, error) {
	if user.ID == "" {
		user.ID = GenerateID()
	}
	if err := s.store.Upsert(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// GetClientByClientID looks up a client by its public identifier. No secret
// check is performed; grant flows supply the secret via a separate channel.
func (s *Service) GetClientByClientID(ctx context.Context, clientID string) (Client, error) {
	var clients []Client
	if err := s.store.List(ctx, &clients, Client{ClientID: clientID}); err != nil {
		return Client{}, err
	}
	if len(clients) == 0 {
		return Client{}, ErrInvalidClient
	}
	return clients[0], nil
}

// FindClient looks up a client by its internal ID.
func (s *Service) FindClient(ctx context.Context, id string) (Client, error) {
	var out Client
	err := s.store.Read(ctx, id, &out)
	if errors.Is(err, storage.ErrNotFound) {
		return Client{}, ErrInvalidClient
	}
	if err != nil {
		return Client{}, err
	}
	return out, nil
}

// FindAuthorizationCode looks up a code by its string. A missing or
// already-consumed code reports ErrInvalidGrant.
func (s *Service) FindAuthorizationCode(ctx context.Context, code string) (AuthorizationCode, error) {
	var out AuthorizationCode
	err := s.store.Read(ctx, code, &out)
	if errors.Is(err, storage.ErrNotFound) {
		return AuthorizationCode{}, ErrInvalidGrant
	}
	if err != nil {
		return AuthorizationCode{}, err
	}
	return out, nil
}

// FindAccessToken looks up a token by its access-token string.
func (s *Service) FindAccessToken(ctx context.Context, token string) (AccessToken, error) {
	var out AccessToken
	err := s.store.Read(ctx, token, &out)
	if errors.Is(err, storage.ErrNotFound) {
		return AccessToken{}, ErrInvalidGrant
	}
	if err != nil {
		return AccessToken{}, err
	}
	return out, nil
}

// FindAccessTokenByRefresh looks up a token by its refresh-token string.
func (s *Service) FindAccessTokenByRefresh(ctx context.Context, refresh string) (AccessToken, error) {
	var tokens []AccessToken
	if err := s.store.List(ctx, &tokens, AccessToken{RefreshToken: refresh}); err != nil {
		return AccessToken{}, err
	}
	if len(tokens) == 0 {
		return AccessToken{}, ErrInvalidGrant
	}
	return tokens[0], nil
}

// FindAccessTokenByUserAndClient returns the newest token held by the
// user/client pair.
func (s *Service) FindAccessTokenByUserAndClient(ctx context.Context, user User, client Client) (AccessToken, error) {
	var tokens []AccessToken
	if err := s.store.List(ctx, &tokens, AccessToken{UserID: user.ID, ClientID: client.ID}); err != nil {
		return AccessToken{}, err
	}
	if len(tokens) == 0 {
		return AccessToken{}, ErrInvalidGrant
	}
	newest := tokens[0]
	for _, t := range tokens[1:] {
		if t.CreatedAt.After(newest.CreatedAt) {
			newest = t
		}
	}
	return newest, nil
}

// RemoveAuthorizationCode deletes a code by its string. Idempotent: removing
// an absent code is not an error. The returned bool reports whether a row
// actually went away, which the grant layer uses to detect double
// redemption; the store's atomic delete guarantees at most one true for
// concurrent calls.
func (s *Service) RemoveAuthorizationCode(ctx context.Context, code string) (bool, error) {
	err := s.store.Delete(ctx, AuthorizationCode{Code: code})
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	logging.Debugw(ctx, "authorization code revoked", "code", redact(code))
	return true, nil
}

// RemoveAccessToken deletes a single token by its access-token string.
// Idempotent; the bool reports whether a row went away.
func (s *Service) RemoveAccessToken(ctx context.Context, token string) (bool, error) {
	err := s.store.Delete(ctx, AccessToken{AccessToken: token})
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	logging.Debugw(ctx, "access token revoked", "token", redact(token))
	return true, nil
}

// RemoveAccessTokens deletes all tokens held by the user/client pair,
// invalidating prior sessions. Idempotent; returns the number removed.
func (s *Service) RemoveAccessTokens(ctx context.Context, user User, client Client) (int, error) {
	var tokens []AccessToken
	if err := s.store.List(ctx, &tokens, AccessToken{UserID: user.ID, ClientID: client.ID}); err != nil {
		return 0, err
	}

	removed := 0
	for _, t := range tokens {
		err := s.store.Delete(ctx, t)
		if errors.Is(err, storage.ErrNotFound) {
			// Raced with another revocation.
			continue
		}
		if err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// FindUser looks up a user by ID.
func (s *Service) FindUser(ctx context.Context, id string) (User, error) {
	var out User
	err := s.store.Read(ctx, id, &out)
	if errors.Is(err, storage.ErrNotFound) {
		return User{}, ErrAccessDenied
	}
	if err != nil {
		return User{}, err
	}
	return out, nil
}

// FindUserByUsername looks up a user by username.
func (s *Service) FindUserByUsername(ctx context.Context, username string) (User, error) {
	var users []User
	if err := s.store.List(ctx, &users, User{Username: username}); err != nil {
		return User{}, err
	}
	if len(users) == 0 {
		return User{}, ErrAccessDenied
	}
	return users[0], nil
}

// ValidateUser checks a username/password pair. On success the returned
// record has its credential stripped. Unknown users and bad passwords both
// report ErrAccessDenied.
func (s *Service) ValidateUser(ctx context.Context, username, password string) (User, error) {
	user, err := s.FindUserByUsername(ctx, username)
	if err != nil {
		return User{}, err
	}
	if err := s.hasher.Compare([]byte(user.HashedPassword), []byte(password)); err != nil {
		return User{}, ErrAccessDenied
	}
	return user.sanitized(), nil
}

// ValidateClient checks a clientID/secret pair. Unknown clients and secret
// mismatches both report ErrInvalidClient.
func (s *Service) ValidateClient(ctx context.Context, clientID, clientSecret string) (Client, error) {
	client, err := s.GetClientByClientID(ctx, clientID)
	if err != nil {
		return Client{}, err
	}
	if !secretsEqual(client.Secret, clientSecret) {
		return Client{}, ErrInvalidClient
	}
	return client, nil
}

// ValidateAccessToken is the validation-intent alias of FindAccessToken.
func (s *Service) ValidateAccessToken(ctx context.Context, token string) (AccessToken, error) {
	return s.FindAccessToken(ctx, token)
}

// PurgeClient deletes a client and everything it owns. Dependents go first
// so a failure part-way never leaves orphaned codes or tokens behind a
// deleted client.
func (s *Service) PurgeClient(ctx context.Context, client Client) error {
	var codes []AuthorizationCode
	if err := s.store.List(ctx, &codes, AuthorizationCode{ClientID: client.ID}); err != nil {
		return err
	}
	for _, c := range codes {
		if err := s.store.Delete(ctx, c); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}

	var tokens []AccessToken
	if err := s.store.List(ctx, &tokens, AccessToken{ClientID: client.ID}); err != nil {
		return err
	}
	for _, t := range tokens {
		if err := s.store.Delete(ctx, t); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}

	err := s.store.Delete(ctx, client)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	logging.Infow(ctx, "client purged",
		"client", client.ClientID, "codes", len(codes), "tokens", len(tokens))
	return nil
}
