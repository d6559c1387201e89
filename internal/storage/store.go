// Package storage provides abstractions for persistent data storage.
//
// Every mutation that other live sessions may race on is a single conditional
// write (compare-and-swap on a numeric field or a status enum). Methods that
// report a failed condition return (false, nil) or a classified apperr error
// rather than applying a read-modify-write.
package storage

import (
	"context"

	"github.com/mmynk/canteen/internal/models"
)

// Store defines the interface for all persistent entities.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	UserStore
	InstrumentStore
	OrderStore
	SessionStore
	PreferenceStore

	// Close releases any resources held by the store.
	Close() error
}

// UserStore persists accounts and their verified identifiers.
type UserStore interface {
	// CreateUser inserts a new user. The email must not already be registered.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail looks a user up by primary email or alias.
	// Returns nil, nil if no account owns the identifier.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID retrieves a user with their aliases.
	// Returns nil, nil if the user does not exist.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// ResolveIdentifiers maps each identifier (primary email or alias, case-insensitive)
	// to its owning user. Unknown identifiers are omitted from the result.
	ResolveIdentifiers(ctx context.Context, identifiers []string) (map[string]*models.User, error)

	// AddAlias attaches a verified alias to a user.
	AddAlias(ctx context.Context, userID, alias string) error
}

// InstrumentStore persists payment instruments and performs settlements.
type InstrumentStore interface {
	CreateInstrument(ctx context.Context, inst *models.Instrument) error

	// GetInstrument returns apperr.ErrNotFound if the instrument does not exist.
	GetInstrument(ctx context.Context, id string) (*models.Instrument, error)

	ListInstruments(ctx context.Context, ownerID string) ([]*models.Instrument, error)

	// DebitInstrument decrements the balance or credit limit by amount with one
	// conditional update. It returns apperr.ErrInsufficientFunds, leaving the row
	// unchanged, when the instrument cannot cover amount.
	DebitInstrument(ctx context.Context, id string, amount models.Cents) (*models.Instrument, error)

	// Settle applies a Settlement as one transaction.
	Settle(ctx context.Context, s *Settlement) (*SettlementResult, error)
}

// Settlement is the atomic unit of payment: debit the instrument, optionally mark
// a split-bill participant paid, and record the order. Either everything is
// applied or nothing is.
type Settlement struct {
	InstrumentID string
	Amount       models.Cents

	// Order is inserted with Status pending and PaidAt = Now.
	// ID and timestamps are assigned by the store.
	Order *models.Order

	// ParticipantID, when set, moves that participant Accepted → Paid. The
	// session must still be active at Now. When no unpaid participant remains
	// the session moves Active → Completed in the same transaction.
	ParticipantID string

	Now int64
	// QueuedAt is the order's kitchen queue position in unix nanoseconds.
	// Zero means the start of second Now.
	QueuedAt int64
}

// SettlementResult reports the state after a successful settlement.
type SettlementResult struct {
	Instrument       *models.Instrument
	Order            *models.Order
	SessionCompleted bool
}

// OrderStore persists orders and their status transitions.
type OrderStore interface {
	// GetOrder returns apperr.ErrNotFound if the order does not exist.
	GetOrder(ctx context.Context, id string) (*models.Order, error)

	// ListOrdersByUser returns a user's orders, newest first.
	ListOrdersByUser(ctx context.Context, userID string) ([]*models.Order, error)

	// ListQueueOrders returns a cafeteria's Pending, Cooking and ReadyForPickup
	// orders in FIFO order.
	ListQueueOrders(ctx context.Context, cafeteriaID string) ([]*models.Order, error)

	// TransitionOrder moves an order from → to with one conditional write keyed by
	// id and expected prior status. Returns false when the order is no longer in from.
	TransitionOrder(ctx context.Context, id string, from, to models.OrderStatus, now int64) (bool, error)
}

// SessionStore persists split-bill sessions and participants.
type SessionStore interface {
	// CreateSession inserts the session, its items and its participants.
	CreateSession(ctx context.Context, session *models.SplitSession) error

	// GetSession returns the session with items and participants in creation order,
	// or apperr.ErrNotFound.
	GetSession(ctx context.Context, id string) (*models.SplitSession, error)

	// GetParticipant returns apperr.ErrNotFound if the participant does not exist.
	GetParticipant(ctx context.Context, id string) (*models.Participant, error)

	// ListParticipantsByIdentifiers returns every participant row addressed to
	// any of the identifiers, newest session first.
	ListParticipantsByIdentifiers(ctx context.Context, identifiers []string) ([]*models.Participant, error)

	// ResolveParticipant moves a Pending participant to Accepted or Declined,
	// provided its session is still active at now. Returns false if nothing changed.
	ResolveParticipant(ctx context.Context, id string, to models.ParticipantStatus, now int64) (bool, error)

	// CancelSession moves an active, unexpired session to Cancelled.
	CancelSession(ctx context.Context, id string, now int64) (bool, error)

	// ExpireSession persists lazy expiry: Active → Expired once now > expiresAt.
	ExpireSession(ctx context.Context, id string, now int64) (bool, error)
}

// PreferenceStore persists per-user preferences.
type PreferenceStore interface {
	// GetPreferences returns an empty record if the user has saved nothing yet.
	GetPreferences(ctx context.Context, userID string) (*models.Preferences, error)
	SavePreferences(ctx context.Context, prefs *models.Preferences) error
}
