package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/ledgerbank/ledger-service/internal/models"
	"github.com/ledgerbank/ledger-service/internal/repository"
)

// Verifier checks claimed username/password pairs against stored hashes.
type Verifier struct {
	store AccountStore
}

// NewVerifier initializes a new credential verifier
func NewVerifier(store AccountStore) *Verifier {
	return &Verifier{store: store}
}

// Verify returns the account when both the username exists and the password
// matches its stored hash. It never mutates any account.
func (v *Verifier) Verify(ctx context.Context, username, password string) (*models.Account, error) {
	acct, err := v.store.GetAccount(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidUsername
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return nil, ErrIncorrectPassword
	}
	return acct, nil
}
