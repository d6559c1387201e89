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

const participantColumns = "p.id, p.session_id, p.identifier, p.user_id, p.amount_due, p.status, p.seq, p.order_id"

func scanParticipant(row interface{ Scan(...any) error }) (*models.Participant, error) {
	p := &models.Participant{}
	var status string
	if err := row.Scan(
		&p.ID,
		&p.SessionID,
		&p.Identifier,
		&p.UserID,
		&p.AmountDue,
		&status,
		&p.Position,
		&p.OrderID,
	); err != nil {
		return nil, err
	}
	p.Status = models.ParticipantStatus(status)
	return p, nil
}

// CreateSession inserts a split session with its items, item assignments and
// participants in a single transaction.
func (s *Store) CreateSession(ctx context.Context, session *models.SplitSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO split_sessions (id, initiator_user_id, cafeteria_id, total_amount, split_method, status, created_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			session.ID,
			session.InitiatorUserID,
			session.CafeteriaID,
			int64(session.TotalAmount),
			string(session.SplitMethod),
			string(session.Status),
			session.CreatedAt,
			session.ExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		for i, item := range session.Items {
			if _, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO split_items (session_id, line_no, name, quantity, unit_price)
				VALUES (?, ?, ?, ?, ?)`),
				session.ID, i, item.Name, item.Quantity, int64(item.UnitPrice),
			); err != nil {
				return fmt.Errorf("failed to create split item: %w", err)
			}
			for _, identifier := range item.AssignedTo {
				if _, err := tx.ExecContext(ctx, s.rebind(`
					INSERT INTO split_item_assignments (session_id, line_no, identifier)
					VALUES (?, ?, ?)`),
					session.ID, i, models.NormalizeIdentifier(identifier),
				); err != nil {
					return fmt.Errorf("failed to create item assignment: %w", err)
				}
			}
		}

		for i := range session.Participants {
			p := &session.Participants[i]
			if p.ID == "" {
				p.ID = uuid.New().String()
			}
			p.SessionID = session.ID
			p.Position = i
			if _, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO split_participants (id, session_id, identifier, user_id, amount_due, status, seq, order_id)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
				p.ID, p.SessionID, p.Identifier, p.UserID, int64(p.AmountDue),
				string(p.Status), p.Position, p.OrderID,
			); err != nil {
				return fmt.Errorf("failed to create participant: %w", err)
			}
		}
		return nil
	})
}

// GetSession retrieves a session with its items and participants.
func (s *Store) GetSession(ctx context.Context, id string) (*models.SplitSession, error) {
	session := &models.SplitSession{}
	var method, status string
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, initiator_user_id, cafeteria_id, total_amount, split_method, status, created_at, expires_at
		FROM split_sessions WHERE id = ?`), id).Scan(
		&session.ID,
		&session.InitiatorUserID,
		&session.CafeteriaID,
		&session.TotalAmount,
		&method,
		&status,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("session", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	session.SplitMethod = models.SplitMethod(method)
	session.Status = models.SessionStatus(status)

	if session.Items, err = s.loadSplitItems(ctx, id); err != nil {
		return nil, err
	}

	participants, err := s.queryParticipants(ctx, `
		SELECT `+participantColumns+` FROM split_participants p
		WHERE p.session_id = ?
		ORDER BY p.seq`, id)
	if err != nil {
		return nil, err
	}
	session.Participants = make([]models.Participant, len(participants))
	for i, p := range participants {
		session.Participants[i] = *p
	}
	return session, nil
}

func (s *Store) loadSplitItems(ctx context.Context, sessionID string) ([]models.SplitItem, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT name, quantity, unit_price FROM split_items
		WHERE session_id = ? ORDER BY line_no`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get split items: %w", err)
	}
	var items []models.SplitItem
	for rows.Next() {
		var item models.SplitItem
		if err := rows.Scan(&item.Name, &item.Quantity, &item.UnitPrice); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan split item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating split items: %w", err)
	}
	rows.Close()

	if len(items) == 0 {
		return nil, nil
	}

	rows, err = s.db.QueryContext(ctx, s.rebind(`
		SELECT line_no, identifier FROM split_item_assignments
		WHERE session_id = ? ORDER BY line_no, identifier`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get item assignments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			line       int
			identifier string
		)
		if err := rows.Scan(&line, &identifier); err != nil {
			return nil, fmt.Errorf("failed to scan item assignment: %w", err)
		}
		if line >= 0 && line < len(items) {
			items[line].AssignedTo = append(items[line].AssignedTo, identifier)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item assignments: %w", err)
	}
	return items, nil
}

// GetParticipant retrieves a single participant.
func (s *Store) GetParticipant(ctx context.Context, id string) (*models.Participant, error) {
	p, err := scanParticipant(s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+participantColumns+` FROM split_participants p WHERE p.id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("participant", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

// ListParticipantsByIdentifiers returns the participant rows addressed to any
// of the identifiers, newest session first.
func (s *Store) ListParticipantsByIdentifiers(ctx context.Context, identifiers []string) ([]*models.Participant, error) {
	if len(identifiers) == 0 {
		return nil, nil
	}
	normalized := make([]string, len(identifiers))
	for i, id := range identifiers {
		normalized[i] = models.NormalizeIdentifier(id)
	}

	return s.queryParticipants(ctx, `
		SELECT `+participantColumns+` FROM split_participants p
		JOIN split_sessions ss ON ss.id = p.session_id
		WHERE p.identifier IN (`+placeholders(len(normalized))+`)
		ORDER BY ss.created_at DESC, ss.id, p.seq`, stringArgs(normalized)...)
}

func (s *Store) queryParticipants(ctx context.Context, query string, args ...any) ([]*models.Participant, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []*models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participants: %w", err)
	}
	return participants, nil
}

// ResolveParticipant moves a pending participant to accepted or declined while
// its session is active and unexpired.
func (s *Store) ResolveParticipant(ctx context.Context, id string, to models.ParticipantStatus, now int64) (bool, error) {
	if to != models.ParticipantAccepted && to != models.ParticipantDeclined {
		return false, apperr.Validation("cannot resolve participant to %s", to)
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE split_participants SET status = ?
		WHERE id = ? AND status = ?
		AND EXISTS (
			SELECT 1 FROM split_sessions ss
			WHERE ss.id = split_participants.session_id
			AND ss.status = ?
			AND (ss.expires_at = 0 OR ss.expires_at >= ?)
		)`),
		string(to), id, string(models.ParticipantPending), string(models.SessionActive), now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to resolve participant: %w", err)
	}
	return affected(res)
}

// CancelSession moves an active, unexpired session to cancelled.
func (s *Store) CancelSession(ctx context.Context, id string, now int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE split_sessions SET status = ?
		WHERE id = ? AND status = ? AND (expires_at = 0 OR expires_at >= ?)`),
		string(models.SessionCancelled), id, string(models.SessionActive), now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel session: %w", err)
	}
	return affected(res)
}

// ExpireSession records that an active session has passed its deadline.
func (s *Store) ExpireSession(ctx context.Context, id string, now int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE split_sessions SET status = ?
		WHERE id = ? AND status = ? AND expires_at <> 0 AND expires_at < ?`),
		string(models.SessionExpired), id, string(models.SessionActive), now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to expire session: %w", err)
	}
	return affected(res)
}
