package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// KeyVerifier checks presented admin keys against a bcrypt hash. A zero
// KeyVerifier is disabled.
type KeyVerifier struct {
	hash []byte
}

// NewKeyVerifier accepts either a plain admin key, which is hashed here, or
// an existing bcrypt hash. An empty key disables operator auth.
func NewKeyVerifier(adminKey string) (*KeyVerifier, error) {
	adminKey = strings.TrimSpace(adminKey)
	if adminKey == "" {
		return &KeyVerifier{}, nil
	}
	if _, err := bcrypt.Cost([]byte(adminKey)); err == nil {
		return &KeyVerifier{hash: []byte(adminKey)}, nil
	}
	if len(adminKey) > 72 {
		return nil, fmt.Errorf("admin key must be at most 72 bytes")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin key: %w", err)
	}
	return &KeyVerifier{hash: hash}, nil
}

func (k *KeyVerifier) Enabled() bool {
	return k != nil && len(k.hash) > 0
}

func (k *KeyVerifier) Verify(key string) bool {
	if !k.Enabled() || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(k.hash, []byte(key)) == nil
}
