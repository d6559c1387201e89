package auth

import (
	"context"
	"fmt"

	"github.com/mmynk/canteen/internal/apperr"
	"github.com/mmynk/canteen/internal/models"
)

// Principal is an authenticated caller with the identifiers they have verified.
type Principal struct {
	UserID      string
	Email       string
	Role        models.Role
	Identifiers []string
}

// Owns reports whether identifier is one of the principal's verified
// identifiers. Comparison is case-insensitive.
func (p *Principal) Owns(identifier string) bool {
	identifier = models.NormalizeIdentifier(identifier)
	for _, id := range p.Identifiers {
		if models.NormalizeIdentifier(id) == identifier {
			return true
		}
	}
	return false
}

// IsStaff reports whether the principal may operate the kitchen.
func (p *Principal) IsStaff() bool {
	return p.Role == models.RoleStaff
}

// Resolver loads principals. Identifiers come from storage on every call so a
// newly added alias is honoured without reissuing the token.
type Resolver struct {
	users UserStorage
}

// NewResolver creates a Resolver over users.
func NewResolver(users UserStorage) *Resolver {
	return &Resolver{users: users}
}

// Resolve returns the principal for userID.
func (r *Resolver) Resolve(ctx context.Context, userID string) (*Principal, error) {
	if userID == "" {
		return nil, apperr.Unauthorized("authentication required")
	}
	user, err := r.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, apperr.Unauthorized("unknown user %s", userID)
	}
	return &Principal{
		UserID:      user.ID,
		Email:       user.Email,
		Role:        user.Role,
		Identifiers: user.Identifiers(),
	}, nil
}
