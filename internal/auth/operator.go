package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/MacJediWizard/orgtree/internal/models"
)

// Operator is the fixed web UI credential.
type Operator struct {
	Username     string
	passwordHash []byte
}

// NewOperator builds the operator credential from a bcrypt hash, or from a
// plaintext password when no hash is configured.
func NewOperator(username, passwordHash, password string) (*Operator, error) {
	if username == "" {
		return nil, errors.New("operator username is required")
	}
	switch {
	case passwordHash != "":
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, fmt.Errorf("operator password hash: %w", err)
		}
		return &Operator{Username: username, passwordHash: []byte(passwordHash)}, nil
	case password != "":
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash operator password: %w", err)
		}
		return &Operator{Username: username, passwordHash: hash}, nil
	default:
		return nil, errors.New("operator password or password hash is required")
	}
}

// Verify checks a login attempt.
func (o *Operator) Verify(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(o.Username)) == 1
	passOK := bcrypt.CompareHashAndPassword(o.passwordHash, []byte(password)) == nil
	return userOK && passOK
}

// Principal returns the principal produced by an operator session.
func (o *Operator) Principal() *Principal {
	return &Principal{
		Type:       PrincipalOperator,
		ID:         o.Username,
		Name:       o.Username,
		Permission: models.PermissionReadWrite,
	}
}
