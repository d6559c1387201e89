package auth

import (
	"context"

	"github.com/mmynk/canteen/internal/models"
)

var _ Authenticator = (*PasswordAuthenticator)(nil)

// Authenticator registers diners and checks their login credential.
//
// Logins are by primary email only. Aliases identify a diner for split
// invitations but are never accepted as a login name.
type Authenticator interface {
	// Register creates a diner account. The email is normalized before the
	// uniqueness check; ErrEmailExists covers aliases as well as primary emails.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate returns the account whose primary email and credential match,
	// or ErrInvalidCredentials.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential reports ErrWeakPassword for unusable credentials.
	ValidateCredential(credential string) error
}
