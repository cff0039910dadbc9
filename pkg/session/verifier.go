package session

import (
	"context"
	"errors"
	"sync"
)

// ErrInvalidToken is returned by verifiers for credentials that resolve to
// no identity.
var ErrInvalidToken = errors.New("invalid token")

// StaticVerifier maps fixed tokens to user IDs. Suitable for development
// and tests; production deployments back Verifier with the API key store.
type StaticVerifier struct {
	mu     sync.RWMutex
	tokens map[string]string
}

func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	if tokens == nil {
		tokens = make(map[string]string)
	}
	return &StaticVerifier{tokens: tokens}
}

func (v *StaticVerifier) Add(token, userID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens[token] = userID
}

func (v *StaticVerifier) Verify(_ context.Context, token string) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	userID, ok := v.tokens[token]
	if !ok {
		return "", ErrInvalidToken
	}
	return userID, nil
}
