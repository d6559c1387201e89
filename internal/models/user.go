package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role distinguishes diners from cafeteria staff.
type Role string

const (
	RoleDiner Role = "diner"
	RoleStaff Role = "staff"
)

// User represents a registered user account.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Email is the primary verified identifier, stored lowercase.
	Email string

	// DisplayName is shown to other participants of a split.
	DisplayName string

	// PasswordHash is the bcrypt hash of the login password.
	PasswordHash string

	Role Role

	// Aliases are additional verified emails. Invitations addressed to any
	// of them belong to this user.
	Aliases []string

	CreatedAt int64
	UpdatedAt int64
}

// NewUser creates a diner account with a fresh ID and timestamps.
func NewUser(email, displayName, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		Email:        NormalizeIdentifier(email),
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		Role:         RoleDiner,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Identifiers returns the primary email followed by every alias.
func (u *User) Identifiers() []string {
	ids := make([]string, 0, len(u.Aliases)+1)
	ids = append(ids, u.Email)
	ids = append(ids, u.Aliases...)
	return ids
}

// NormalizeIdentifier lowercases and trims an email identifier.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Preferences is the per-user preference record owned by the profile.
type Preferences struct {
	UserID     string
	Favourites []string
	UpdatedAt  int64
}
