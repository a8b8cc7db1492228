package oauth

import (
	"time"
)

// Client represents a registered OAuth2 consumer. Clients are created
// out-of-band; the lifecycle layer treats them as read-only apart from
// PurgeClient.
type Client struct {
	// ID is the internal unique identifier.
	ID string
	// ClientID is the public client identifier, unique across all clients.
	ClientID string
	// Secret is the client secret for confidential clients. Leave empty for
	// public clients.
	Secret string
	// Name is a human-readable name for the client.
	Name string
	// RedirectURIs is the list of allowed redirect URIs for the
	// authorization-code flow.
	RedirectURIs []string
	// Scopes is the list of allowed scopes for this client. Empty means
	// unrestricted.
	Scopes []string
	// Trusted flags a client for relaxed consent requirements.
	Trusted bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PK returns the primary key.
func (c Client) PK() string { return c.ID }

// User represents an account holder. Users are created out-of-band; the
// lifecycle layer reads credentials for validation and roles for scope
// gating.
type User struct {
	// ID is the unique identifier.
	ID string
	// Username is unique across all users.
	Username string
	// HashedPassword holds the user credential, hashed by a Hasher. Cleared
	// on records returned from ValidateUser.
	HashedPassword string
	// Roles is the set of role strings.
	Roles []string
}

// PK returns the primary key.
func (u User) PK() string { return u.ID }

// HasRole reports whether the user holds the given role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// sanitized returns a copy safe to expose outside the credential check.
func (u User) sanitized() User {
	u.HashedPassword = ""
	return u
}

// AuthorizationCode is a short-lived, single-use grant artifact. Immutable
// once persisted; deleted on redemption or revocation.
type AuthorizationCode struct {
	// Code is the unguessable code string.
	Code string
	// ExpiresAt is when the code stops being redeemable.
	ExpiresAt time.Time
	// RedirectURI is the redirect URI the code is bound to.
	RedirectURI string
	// Scope is the set of granted scope strings.
	Scope []string
	// ClientID references the owning client by internal ID.
	ClientID string
	// UserID references the owning user.
	UserID string
}

// PK returns the primary key.
func (c AuthorizationCode) PK() string { return c.Code }

// Expired reports whether the code has passed its expiry.
func (c AuthorizationCode) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// AccessToken is a bearer credential plus its paired refresh credential.
// Never mutated after creation; revocation deletes the row and expiry is
// checked at validation time.
type AccessToken struct {
	// AccessToken is the unguessable bearer string.
	AccessToken string
	// AccessExpiresAt is when the access token stops being valid.
	AccessExpiresAt time.Time
	// RefreshToken is the paired refresh string.
	RefreshToken string
	// RefreshExpiresAt is when the refresh token stops being valid, always
	// later than AccessExpiresAt.
	RefreshExpiresAt time.Time
	// Scope is the set of granted scope strings.
	Scope []string
	// ClientID references the owning client by internal ID.
	ClientID string
	// UserID references the owning user.
	UserID string

	CreatedAt time.Time
}

// PK returns the primary key.
func (t AccessToken) PK() string { return t.AccessToken }

// Expired reports whether the access token has passed its expiry.
func (t AccessToken) Expired(now time.Time) bool {
	return !t.AccessExpiresAt.After(now)
}

// RefreshExpired reports whether the refresh token has passed its expiry.
func (t AccessToken) RefreshExpired(now time.Time) bool {
	return !t.RefreshExpiresAt.After(now)
}
