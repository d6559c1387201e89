package models

// SplitMethod selects how a session's total is divided.
type SplitMethod string

const (
	SplitEqual   SplitMethod = "equal"
	SplitByItems SplitMethod = "by_items"
	SplitCustom  SplitMethod = "custom"
)

// Valid reports whether m is a known split method.
func (m SplitMethod) Valid() bool {
	switch m {
	case SplitEqual, SplitByItems, SplitCustom:
		return true
	}
	return false
}

// SessionStatus is the lifecycle state of a split-bill session.
// Every status other than Active is terminal.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionExpired   SessionStatus = "expired"
	SessionCancelled SessionStatus = "cancelled"
	SessionCompleted SessionStatus = "completed"
)

// Terminal reports whether no further participant mutation is allowed.
func (s SessionStatus) Terminal() bool {
	return s != SessionActive
}

// ParticipantStatus is the invitation/payment state of one participant.
type ParticipantStatus string

const (
	ParticipantPending  ParticipantStatus = "pending"
	ParticipantAccepted ParticipantStatus = "accepted"
	ParticipantDeclined ParticipantStatus = "declined"
	ParticipantPaid     ParticipantStatus = "paid"
)

// Resolved reports whether the invitation has been answered.
func (s ParticipantStatus) Resolved() bool {
	return s != ParticipantPending
}

// SplitItem is a line item on a split-bill session. AssignedTo lists participant
// identifiers for by-items splits; it is ignored for the other methods.
type SplitItem struct {
	Name       string
	Quantity   int
	UnitPrice  Cents
	AssignedTo []string
}

// OrderItems converts session items to order lines.
func OrderItems(items []SplitItem) []OrderItem {
	out := make([]OrderItem, len(items))
	for i, it := range items {
		out[i] = OrderItem{Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return out
}

// SplitSession is a group request to divide one order's total among participants.
type SplitSession struct {
	ID              string
	InitiatorUserID string
	CafeteriaID     string
	Items           []SplitItem
	TotalAmount     Cents
	SplitMethod     SplitMethod
	Status          SessionStatus
	CreatedAt       int64
	// ExpiresAt is zero when the session never expires.
	ExpiresAt int64

	// Participants in creation order. The initiator is always first.
	Participants []Participant
}

// EffectiveStatus applies lazy expiry: an Active session whose ExpiresAt has
// passed is Expired even if the stored status has not been updated yet.
func (s *SplitSession) EffectiveStatus(now int64) SessionStatus {
	if s.Status == SessionActive && s.ExpiresAt != 0 && now > s.ExpiresAt {
		return SessionExpired
	}
	return s.Status
}

// Participant is one person owing a share of a split-bill session.
type Participant struct {
	ID         string
	SessionID  string
	Identifier string
	UserID     string
	AmountDue  Cents
	Status     ParticipantStatus
	Position   int
	// OrderID is set once the share is paid.
	OrderID string
}
