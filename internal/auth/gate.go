package auth

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidToken covers malformed, forged and expired tokens alike so
	// callers cannot tell which check failed.
	ErrInvalidToken = errors.New("invalid token")
	// ErrRoleMismatch means the token is valid but its subject does not exist
	// in the store for the required role.
	ErrRoleMismatch = errors.New("role mismatch")
)

// SubjectLookup answers whether a subject exists in the credential store
// scoped to a role.
type SubjectLookup interface {
	SubjectExists(ctx context.Context, role Role, subject string) (bool, error)
}

// Gate is the role gate every mutating operation passes through before
// touching domain state.
type Gate struct {
	tokens *TokenService
	lookup SubjectLookup
}

func NewGate(tokens *TokenService, lookup SubjectLookup) *Gate {
	return &Gate{
		tokens: tokens,
		lookup: lookup,
	}
}

// Authorize verifies the token and confirms its subject holds the required
// role. On success it returns the subject for the caller to use as the
// authenticated identity.
func (g *Gate) Authorize(ctx context.Context, token string, required Role) (string, error) {
	subject, err := g.tokens.Verify(token)
	if err != nil {
		return "", ErrInvalidToken
	}

	exists, err := g.lookup.SubjectExists(ctx, required, subject)
	if err != nil {
		return "", fmt.Errorf("subject lookup: %w", err)
	}
	if !exists {
		return "", ErrRoleMismatch
	}

	return subject, nil
}
