package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/canteen/internal/models"
)

const (
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLen = 72
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", minPasswordLen)
	ErrPasswordTooLong    = fmt.Errorf("password must be at most %d bytes", maxPasswordLen)
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
)

// UserStorage is the slice of the user store the authenticator needs.
type UserStorage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// PasswordAuthenticator stores bcrypt hashes of diner passwords.
type PasswordAuthenticator struct {
	users UserStorage
	cost  int

	// unknownHash is compared against when no account matches, so a miss
	// costs about as much as a wrong password.
	unknownHash []byte
}

func NewPasswordAuthenticator(users UserStorage) *PasswordAuthenticator {
	a := &PasswordAuthenticator{users: users, cost: bcrypt.DefaultCost}
	a.unknownHash, _ = bcrypt.GenerateFromPassword([]byte("canteen-unknown-account"), a.cost)
	return a
}

func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	switch {
	case len(credential) < minPasswordLen:
		return ErrWeakPassword
	case len(credential) > maxPasswordLen:
		return ErrPasswordTooLong
	}
	return nil
}

// ValidateEmail accepts a bare address only: no display name, no angle brackets.
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

func (a *PasswordAuthenticator) Register(ctx context.Context, email, displayName, credential string) (*models.User, error) {
	email = models.NormalizeIdentifier(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := a.ValidateCredential(credential); err != nil {
		return nil, err
	}

	// GetUserByEmail also matches aliases, so one lookup covers both namespaces.
	taken, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", email, err)
	}
	if taken != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(credential), a.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	if displayName == "" {
		displayName = email
	}

	user := models.NewUser(email, displayName, string(hash))
	if err := a.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, credential string) (*models.User, error) {
	email = models.NormalizeIdentifier(email)
	user, err := a.users.GetUserByEmail(ctx, email)
	if err != nil || user == nil || user.Email != email {
		_ = bcrypt.CompareHashAndPassword(a.unknownHash, []byte(credential))
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credential)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
