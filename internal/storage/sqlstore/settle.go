package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/canteen/internal/apperr"
	"github.com/mmynk/canteen/internal/models"
	"github.com/mmynk/canteen/internal/storage"
)

// Settle debits the instrument, marks the participant paid, records the order
// and completes the session when it is fully paid, all in one transaction.
func (s *Store) Settle(ctx context.Context, st *storage.Settlement) (*storage.SettlementResult, error) {
	if st.Order == nil {
		return nil, apperr.Validation("settlement requires an order")
	}

	result := &storage.SettlementResult{}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		inst, err := s.debit(ctx, tx, st.InstrumentID, st.Amount)
		if err != nil {
			return err
		}
		result.Instrument = inst

		order := st.Order
		order.Status = models.OrderPending
		order.InstrumentID = st.InstrumentID
		order.TotalAmount = st.Amount
		order.CreatedAt = st.Now
		order.UpdatedAt = st.Now
		order.PaidAt = st.Now
		queuedAt := st.QueuedAt
		if queuedAt == 0 {
			queuedAt = time.Unix(st.Now, 0).UnixNano()
		}
		if err := s.insertOrder(ctx, tx, order, queuedAt); err != nil {
			return err
		}
		result.Order = order

		if st.ParticipantID == "" {
			return nil
		}

		res, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE split_participants SET status = ?, order_id = ?
			WHERE id = ? AND status = ?
			AND EXISTS (
				SELECT 1 FROM split_sessions ss
				WHERE ss.id = split_participants.session_id
				AND ss.status = ?
				AND (ss.expires_at = 0 OR ss.expires_at >= ?)
			)`),
			string(models.ParticipantPaid), order.ID,
			st.ParticipantID, string(models.ParticipantAccepted),
			string(models.SessionActive), st.Now,
		)
		if err != nil {
			return fmt.Errorf("failed to mark participant paid: %w", err)
		}
		ok, err := affected(res)
		if err != nil {
			return err
		}
		if !ok {
			return s.explainUnpayable(ctx, tx, st.ParticipantID)
		}

		res, err = tx.ExecContext(ctx, s.rebind(`
			UPDATE split_sessions SET status = ?
			WHERE id = ? AND status = ?
			AND NOT EXISTS (
				SELECT 1 FROM split_participants p
				WHERE p.session_id = split_sessions.id AND p.status <> ?
			)`),
			string(models.SessionCompleted), order.SessionID,
			string(models.SessionActive), string(models.ParticipantPaid),
		)
		if err != nil {
			return fmt.Errorf("failed to complete session: %w", err)
		}
		result.SessionCompleted, err = affected(res)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// explainUnpayable classifies why the participant transition did not apply.
func (s *Store) explainUnpayable(ctx context.Context, q execer, participantID string) error {
	var status string
	err := q.QueryRowContext(ctx,
		s.rebind("SELECT status FROM split_participants WHERE id = ?"), participantID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("participant", participantID)
	}
	if err != nil {
		return fmt.Errorf("failed to get participant: %w", err)
	}
	if models.ParticipantStatus(status) != models.ParticipantAccepted {
		return fmt.Errorf("%w: participant is %s", apperr.ErrStateConflict, status)
	}
	return apperr.ErrSessionInactive
}
