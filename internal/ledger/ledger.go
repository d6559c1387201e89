// Package ledger validates payment credentials and settles payments against
// stored-value (fpx, ewallet) and credit (card) instruments.
//
// Balances never go negative: every debit is a single conditional write in the
// store, and a settlement's debit, participant transition and order insert
// commit together or not at all.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/canteen/internal/apperr"
	"github.com/mmynk/canteen/internal/metrics"
	"github.com/mmynk/canteen/internal/models"
	"github.com/mmynk/canteen/internal/storage"
)

// Store is the subset of storage the ledger needs.
type Store interface {
	GetInstrument(ctx context.Context, id string) (*models.Instrument, error)
	DebitInstrument(ctx context.Context, id string, amount models.Cents) (*models.Instrument, error)
	Settle(ctx context.Context, s *storage.Settlement) (*storage.SettlementResult, error)
}

// Ledger performs debits and settlements.
type Ledger struct {
	store   Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Ledger. m may be nil.
func New(store Store, m *metrics.Metrics, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: store, metrics: m, logger: logger}
}

// HashCredential hashes a PIN for storage on an instrument.
func HashCredential(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash credential: %w", err)
	}
	return string(hash), nil
}

// ValidateCredential reports whether supplied unlocks inst. Cards are
// pre-authorized and always validate.
func ValidateCredential(inst *models.Instrument, supplied string) bool {
	if !inst.Type.RequiresCredential() {
		return true
	}
	if inst.CredentialHash == "" || supplied == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(inst.CredentialHash), []byte(supplied)) == nil
}

// CanCover reports whether inst has enough balance or credit for amount.
func CanCover(inst *models.Instrument, amount models.Cents) bool {
	switch {
	case inst.Balance != nil:
		return amount <= *inst.Balance
	case inst.CreditLimit != nil:
		return amount <= *inst.CreditLimit
	}
	return false
}

// Debit decrements the instrument by amount.
func (l *Ledger) Debit(ctx context.Context, instrumentID string, amount models.Cents) (*models.Instrument, error) {
	if amount <= 0 {
		return nil, apperr.Validation("amount must be positive, got %s", amount)
	}
	inst, err := l.store.DebitInstrument(ctx, instrumentID, amount)
	if err != nil {
		l.recordFailure("", err)
		return nil, err
	}
	l.metrics.Debit(string(inst.Type), metrics.DebitOK, int64(amount))
	return inst, nil
}

// SettleRequest describes one payment.
type SettleRequest struct {
	PayerID      string
	InstrumentID string
	Credential   string

	// Order carries the items, cafeteria and session tag. Amount is its
	// TotalAmount.
	Order *models.Order

	// ParticipantID marks a split-share payment.
	ParticipantID string

	Now time.Time
}

// Settle validates the instrument and then applies the debit, the optional
// participant payment and the order insert as one store transaction.
func (l *Ledger) Settle(ctx context.Context, req SettleRequest) (*storage.SettlementResult, error) {
	if req.Order == nil {
		return nil, apperr.Validation("order is required")
	}
	amount := req.Order.TotalAmount
	if amount <= 0 {
		return nil, apperr.Validation("amount must be positive, got %s", amount)
	}

	inst, err := l.store.GetInstrument(ctx, req.InstrumentID)
	if err != nil {
		return nil, err
	}
	if inst.OwnerID != req.PayerID {
		return nil, apperr.Unauthorized("instrument %s does not belong to the caller", req.InstrumentID)
	}
	if !ValidateCredential(inst, req.Credential) {
		l.metrics.Debit(string(inst.Type), metrics.DebitCredentialMismatch, 0)
		return nil, fmt.Errorf("%w: instrument %s", apperr.ErrCredentialMismatch, inst.ID)
	}
	if !CanCover(inst, amount) {
		l.metrics.Debit(string(inst.Type), metrics.DebitInsufficientFunds, 0)
		return nil, fmt.Errorf("%w: %s available, %s required",
			apperr.ErrInsufficientFunds, inst.Available(), amount)
	}

	req.Order.UserID = req.PayerID
	res, err := l.store.Settle(ctx, &storage.Settlement{
		InstrumentID:  inst.ID,
		Amount:        amount,
		Order:         req.Order,
		ParticipantID: req.ParticipantID,
		Now:           req.Now.Unix(),
		QueuedAt:      req.Now.UnixNano(),
	})
	if err != nil {
		l.recordFailure(string(inst.Type), err)
		return nil, err
	}

	kind := "checkout"
	if req.ParticipantID != "" {
		kind = "split_share"
	}
	l.metrics.Debit(string(inst.Type), metrics.DebitOK, int64(amount))
	l.metrics.Settlement(kind)
	l.logger.Info("Settled payment",
		"kind", kind,
		"order_id", res.Order.ID,
		"instrument_id", inst.ID,
		"amount", amount.String(),
		"session_completed", res.SessionCompleted,
	)
	return res, nil
}

func (l *Ledger) recordFailure(instrumentType string, err error) {
	result := metrics.DebitError
	if errors.Is(err, apperr.ErrInsufficientFunds) {
		result = metrics.DebitInsufficientFunds
	}
	l.metrics.Debit(instrumentType, result, 0)
}
