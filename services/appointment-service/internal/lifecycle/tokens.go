package lifecycle

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// newToken returns 32 hex characters of crypto randomness.
func newToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

type tokenPair struct {
	public       string
	modification string
}

func mintTokens() (tokenPair, error) {
	pub, err := newToken()
	if err != nil {
		return tokenPair{}, err
	}
	mod, err := newToken()
	if err != nil {
		return tokenPair{}, err
	}
	return tokenPair{public: pub, modification: mod}, nil
}
