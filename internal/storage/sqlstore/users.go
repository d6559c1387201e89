package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmynk/canteen/internal/apperr"
	"github.com/mmynk/canteen/internal/models"
)

const userColumns = "u.id, u.email, u.display_name, u.password_hash, u.role, u.created_at, u.updated_at"

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	var role string
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.PasswordHash,
		&role,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.Role = models.Role(role)
	return user, nil
}

// CreateUser inserts a new user into the database.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = models.NormalizeIdentifier(user.Email)
	if user.Role == "" {
		user.Role = models.RoleDiner
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		// An alias already claims this address.
		var taken int
		err := tx.QueryRowContext(ctx, s.rebind("SELECT 1 FROM user_aliases WHERE alias = ?"), user.Email).Scan(&taken)
		if err == nil {
			return apperr.Validation("email already registered: %s", user.Email)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check aliases: %w", err)
		}

		_, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO users (id, email, display_name, password_hash, role, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			user.ID,
			user.Email,
			user.DisplayName,
			user.PasswordHash,
			string(user.Role),
			user.CreatedAt,
			user.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	})
}

// GetUserByEmail retrieves a user by primary email or alias.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	users, err := s.ResolveIdentifiers(ctx, []string{email})
	if err != nil {
		return nil, err
	}
	return users[models.NormalizeIdentifier(email)], nil
}

// GetUserByID retrieves a user by their ID.
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx,
		s.rebind("SELECT "+userColumns+" FROM users u WHERE u.id = ?"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // User not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	aliases, err := s.loadAliases(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Aliases = aliases
	return user, nil
}

func (s *Store) loadAliases(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT alias FROM user_aliases WHERE user_id = ? ORDER BY alias"), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get aliases: %w", err)
	}
	defer rows.Close()

	var aliases []string
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, fmt.Errorf("failed to scan alias: %w", err)
		}
		aliases = append(aliases, alias)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate aliases: %w", err)
	}
	return aliases, nil
}

// ResolveIdentifiers maps identifiers to their owning users.
// Returns a map keyed by normalized identifier; unknown identifiers are omitted.
func (s *Store) ResolveIdentifiers(ctx context.Context, identifiers []string) (map[string]*models.User, error) {
	result := make(map[string]*models.User)
	if len(identifiers) == 0 {
		return result, nil
	}

	normalized := make([]string, len(identifiers))
	for i, id := range identifiers {
		normalized[i] = models.NormalizeIdentifier(id)
	}
	in := placeholders(len(normalized))
	args := append(stringArgs(normalized), stringArgs(normalized)...)

	// Primary emails and aliases in one pass; the identifier column tells which
	// input matched.
	query := `
		SELECT u.email, ` + userColumns + ` FROM users u WHERE u.email IN (` + in + `)
		UNION ALL
		SELECT a.alias, ` + userColumns + ` FROM user_aliases a JOIN users u ON u.id = a.user_id
		WHERE a.alias IN (` + in + `)`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve identifiers: %w", err)
	}
	defer rows.Close()

	var matched []*models.User
	keys := make(map[*models.User]string)
	for rows.Next() {
		var identifier string
		user := &models.User{}
		var role string
		if err := rows.Scan(&identifier, &user.ID, &user.Email, &user.DisplayName,
			&user.PasswordHash, &role, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user.Role = models.Role(role)
		matched = append(matched, user)
		keys[user] = identifier
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	rows.Close()

	for _, user := range matched {
		aliases, err := s.loadAliases(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		user.Aliases = aliases
		result[keys[user]] = user
	}
	return result, nil
}

// AddAlias attaches a verified alias to a user. The alias may not be anyone's
// primary email or another user's alias.
func (s *Store) AddAlias(ctx context.Context, userID, alias string) error {
	alias = models.NormalizeIdentifier(alias)

	return s.inTx(ctx, func(tx *sql.Tx) error {
		var owner string
		err := tx.QueryRowContext(ctx, s.rebind("SELECT id FROM users WHERE email = ?"), alias).Scan(&owner)
		if err == nil {
			return apperr.Validation("%s is already a primary email", alias)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check email: %w", err)
		}

		err = tx.QueryRowContext(ctx, s.rebind("SELECT user_id FROM user_aliases WHERE alias = ?"), alias).Scan(&owner)
		switch {
		case err == nil && owner == userID:
			return nil
		case err == nil:
			return apperr.Validation("alias %s belongs to another account", alias)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to check alias: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			s.rebind("INSERT INTO user_aliases (alias, user_id) VALUES (?, ?)"), alias, userID); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "foreign key") {
				return apperr.NotFound("user", userID)
			}
			return fmt.Errorf("failed to insert alias: %w", err)
		}
		return nil
	})
}

// SetRole changes a user's role, looked up by primary email.
func (s *Store) SetRole(ctx context.Context, email string, role models.Role) (*models.User, error) {
	res, err := s.db.ExecContext(ctx, s.rebind("UPDATE users SET role = ?, updated_at = ? WHERE email = ?"),
		string(role), time.Now().Unix(), models.NormalizeIdentifier(email))
	if err != nil {
		return nil, fmt.Errorf("failed to set role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to set role: %w", err)
	}
	if n == 0 {
		return nil, apperr.NotFound("user", email)
	}
	return s.GetUserByEmail(ctx, email)
}
