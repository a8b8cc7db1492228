package oauth

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"

	"github.com/dpup/grantkit/errors"
)

// secretBytes is the entropy carried by each generated code or token string.
// 32 bytes from the OS CSPRNG makes both guessing and collision negligible.
const secretBytes = 32

// GenerateSecret returns a fresh unguessable string suitable for use as an
// authorization code, access token, or refresh token. These strings are
// bearer secrets, so predictability and collision are both security failures,
// not just correctness bugs.
func GenerateSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, 0)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateID returns a fresh unique identifier for a Client or User record.
func GenerateID() string {
	return uuid.NewString()
}

// redact shortens a secret for log output.
func redact(s string) string {
	if len(s) > 8 {
		return s[:8] + "..."
	}
	return s
}
