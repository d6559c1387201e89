package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmynk/canteen/internal/apperr"
	"github.com/mmynk/canteen/internal/models"
)

const instrumentColumns = "id, owner_id, type, display_name, credential_hash, is_default, balance, credit_limit, created_at"

func scanInstrument(row interface{ Scan(...any) error }) (*models.Instrument, error) {
	inst := &models.Instrument{}
	var (
		typ                 string
		balance, creditLine sql.NullInt64
	)
	if err := row.Scan(
		&inst.ID,
		&inst.OwnerID,
		&typ,
		&inst.DisplayName,
		&inst.CredentialHash,
		&inst.IsDefault,
		&balance,
		&creditLine,
		&inst.CreatedAt,
	); err != nil {
		return nil, err
	}
	inst.Type = models.InstrumentType(typ)
	if balance.Valid {
		v := models.Cents(balance.Int64)
		inst.Balance = &v
	}
	if creditLine.Valid {
		v := models.Cents(creditLine.Int64)
		inst.CreditLimit = &v
	}
	return inst, nil
}

func nullCents(c *models.Cents) sql.NullInt64 {
	if c == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*c), Valid: true}
}

// CreateInstrument inserts a payment instrument. A default instrument clears the
// flag on the owner's other instruments.
func (s *Store) CreateInstrument(ctx context.Context, inst *models.Instrument) error {
	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if inst.IsDefault {
			if _, err := tx.ExecContext(ctx,
				s.rebind("UPDATE instruments SET is_default = ? WHERE owner_id = ?"), false, inst.OwnerID); err != nil {
				return fmt.Errorf("failed to clear default instrument: %w", err)
			}
		}

		_, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO instruments (`+instrumentColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			inst.ID,
			inst.OwnerID,
			string(inst.Type),
			inst.DisplayName,
			inst.CredentialHash,
			inst.IsDefault,
			nullCents(inst.Balance),
			nullCents(inst.CreditLimit),
			inst.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create instrument: %w", err)
		}
		return nil
	})
}

// GetInstrument retrieves an instrument by ID.
func (s *Store) GetInstrument(ctx context.Context, id string) (*models.Instrument, error) {
	return s.getInstrument(ctx, s.db, id)
}

func (s *Store) getInstrument(ctx context.Context, q execer, id string) (*models.Instrument, error) {
	inst, err := scanInstrument(q.QueryRowContext(ctx,
		s.rebind("SELECT "+instrumentColumns+" FROM instruments WHERE id = ?"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("instrument", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument: %w", err)
	}
	return inst, nil
}

// ListInstruments returns the owner's instruments, default first.
func (s *Store) ListInstruments(ctx context.Context, ownerID string) ([]*models.Instrument, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+instrumentColumns+` FROM instruments
		WHERE owner_id = ?
		ORDER BY is_default DESC, created_at, id`), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments: %w", err)
	}
	defer rows.Close()

	var instruments []*models.Instrument
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instruments: %w", err)
	}
	return instruments, nil
}

// DebitInstrument decrements whichever of balance or credit_limit the
// instrument carries, in a single statement guarded by the sufficiency check.
func (s *Store) DebitInstrument(ctx context.Context, id string, amount models.Cents) (*models.Instrument, error) {
	return s.debit(ctx, s.db, id, amount)
}

func (s *Store) debit(ctx context.Context, q execer, id string, amount models.Cents) (*models.Instrument, error) {
	if amount <= 0 {
		return nil, apperr.Validation("debit amount must be positive, got %s", amount)
	}

	inst, err := scanInstrument(q.QueryRowContext(ctx, s.rebind(`
		UPDATE instruments SET
			balance = CASE WHEN balance IS NULL THEN NULL ELSE balance - ? END,
			credit_limit = CASE WHEN credit_limit IS NULL THEN NULL ELSE credit_limit - ? END
		WHERE id = ? AND COALESCE(balance, credit_limit) >= ?
		RETURNING `+instrumentColumns),
		int64(amount), int64(amount), id, int64(amount)))
	if err == nil {
		return inst, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to debit instrument: %w", err)
	}

	// Nothing matched: either the instrument is missing or it cannot cover amount.
	current, err := s.getInstrument(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s available, %s required",
		apperr.ErrInsufficientFunds, current.Available(), amount)
}
