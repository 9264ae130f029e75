package auth

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Key purposes. Each signed artefact gets its own key so a token minted for
// one purpose can never validate as another, even though there is only one
// SESSION_SECRET to configure.
const (
	purposeSession    = "portfolio/session/v1"
	purposeLoginState = "portfolio/oidc-login/v1"
)

// deriveKey expands the configured secret into a 32-byte HMAC key for purpose.
func deriveKey(secret []byte, purpose string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(purpose)), key); err != nil {
		return nil, fmt.Errorf("auth: deriving %s key: %w", purpose, err)
	}
	return key, nil
}
