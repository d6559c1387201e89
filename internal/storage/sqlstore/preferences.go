package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mmynk/canteen/internal/models"
)

// GetPreferences returns the user's saved preferences, or an empty record.
func (s *Store) GetPreferences(ctx context.Context, userID string) (*models.Preferences, error) {
	prefs := &models.Preferences{UserID: userID}
	var favourites string
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT favourites, updated_at FROM user_preferences WHERE user_id = ?`), userID).
		Scan(&favourites, &prefs.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return prefs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	if err := json.Unmarshal([]byte(favourites), &prefs.Favourites); err != nil {
		return nil, fmt.Errorf("failed to decode favourites: %w", err)
	}
	return prefs, nil
}

// SavePreferences upserts the user's preferences.
func (s *Store) SavePreferences(ctx context.Context, prefs *models.Preferences) error {
	favourites := prefs.Favourites
	if favourites == nil {
		favourites = []string{}
	}
	data, err := json.Marshal(favourites)
	if err != nil {
		return fmt.Errorf("failed to encode favourites: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO user_preferences (user_id, favourites, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			favourites = excluded.favourites,
			updated_at = excluded.updated_at`),
		prefs.UserID, string(data), prefs.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}
