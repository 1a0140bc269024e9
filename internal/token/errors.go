package token

import (
	"errors"
	"fmt"

	"github.com/maheshrc27/publish-engine/internal/models"
)

var (
	ErrAccountNotFound = errors.New("social account not found")
	ErrAccountInactive = errors.New("social account is inactive")
	ErrNoStrategy      = errors.New("no token strategy for platform")
	ErrNotRefreshable  = errors.New("platform does not support token refresh")
	ErrTokenExpired    = errors.New("access token expired")

	// ErrInvalidGrant means the platform rejected the stored grant outright;
	// only a new authorization can fix it.
	ErrInvalidGrant = errors.New("refresh grant rejected")
)

// CredentialError is returned by Manager.Resolve. Kind is either
// models.ErrorKindCredential or models.ErrorKindReauthRequired.
type CredentialError struct {
	AccountID int64
	Kind      models.ErrorKind
	Err       error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("account %d: %s: %v", e.AccountID, e.Kind, e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

func credentialErr(accountID int64, err error) *CredentialError {
	return &CredentialError{AccountID: accountID, Kind: models.ErrorKindCredential, Err: err}
}

func reauthErr(accountID int64, err error) *CredentialError {
	return &CredentialError{AccountID: accountID, Kind: models.ErrorKindReauthRequired, Err: err}
}
