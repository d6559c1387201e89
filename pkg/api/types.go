package api

// Amounts are integer minor currency units (sen) and carry a Cents suffix.
// Timestamps are Unix seconds.

// User is a registered account.
type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName"`
	Role        string   `json:"role"`
	Aliases     []string `json:"aliases,omitempty"`
	CreatedAt   int64    `json:"createdAt"`
}

type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type RegisterResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type GetCurrentUserResponse struct {
	User *User `json:"user"`
}

type AddAliasRequest struct {
	Alias string `json:"alias"`
}

type AddAliasResponse struct {
	User *User `json:"user"`
}

// Instrument is a stored payment method. Exactly one of BalanceCents and
// CreditLimitCents is set.
type Instrument struct {
	ID               string `json:"id"`
	OwnerID          string `json:"ownerId"`
	Type             string `json:"type"`
	DisplayName      string `json:"displayName"`
	IsDefault        bool   `json:"isDefault"`
	BalanceCents     *int64 `json:"balanceCents,omitempty"`
	CreditLimitCents *int64 `json:"creditLimitCents,omitempty"`
	CreatedAt        int64  `json:"createdAt"`
}

type CreateInstrumentRequest struct {
	Type        string `json:"type"`
	DisplayName string `json:"displayName"`
	// Credential is the PIN for fpx/ewallet instruments; ignored for cards.
	Credential string `json:"credential,omitempty"`
	IsDefault  bool   `json:"isDefault"`
	// AmountCents is the opening balance, or the credit limit for cards.
	AmountCents int64 `json:"amountCents"`
}

type CreateInstrumentResponse struct {
	Instrument *Instrument `json:"instrument"`
}

type ListInstrumentsResponse struct {
	Instruments []*Instrument `json:"instruments"`
}

type OrderItem struct {
	Name           string `json:"name"`
	Quantity       int32  `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
}

type Order struct {
	ID           string       `json:"id"`
	UserID       string       `json:"userId"`
	CafeteriaID  string       `json:"cafeteriaId"`
	Items        []*OrderItem `json:"items"`
	TotalCents   int64        `json:"totalCents"`
	InstrumentID string       `json:"instrumentId"`
	Status       string       `json:"status"`
	SessionID    string       `json:"sessionId,omitempty"`
	CreatedAt    int64        `json:"createdAt"`
	UpdatedAt    int64        `json:"updatedAt"`
	PaidAt       int64        `json:"paidAt,omitempty"`
}

type PlaceOrderRequest struct {
	CafeteriaID  string       `json:"cafeteriaId"`
	Items        []*OrderItem `json:"items"`
	InstrumentID string       `json:"instrumentId"`
	Credential   string       `json:"credential,omitempty"`
}

type PlaceOrderResponse struct {
	Order *Order `json:"order"`
}

type GetOrderRequest struct {
	OrderID string `json:"orderId"`
}

type GetOrderResponse struct {
	Order *Order `json:"order"`
}

type ListMyOrdersResponse struct {
	Orders []*Order `json:"orders"`
}

// AdvanceOrderStatusRequest moves an order one step forward. FromStatus is the
// status the caller observed; the write only applies if it still holds. When
// empty, the currently stored status is used.
type AdvanceOrderStatusRequest struct {
	OrderID    string `json:"orderId"`
	FromStatus string `json:"fromStatus,omitempty"`
	ToStatus   string `json:"toStatus"`
}

type AdvanceOrderStatusResponse struct {
	Order *Order `json:"order"`
}

// OrderEta is the estimate for one order. EtaMinutes is meaningless when Ready.
type OrderEta struct {
	OrderID    string  `json:"orderId"`
	Rank       int32   `json:"rank"`
	Bulk       bool    `json:"bulk"`
	Ready      bool    `json:"ready"`
	EtaMinutes float64 `json:"etaMinutes"`
}

type QueueSnapshot struct {
	CafeteriaID        string      `json:"cafeteriaId"`
	QueueLength        int32       `json:"queueLength"`
	AverageWaitMinutes float64     `json:"averageWaitMinutes"`
	PerOrderEta        []*OrderEta `json:"perOrderEta"`
	GeneratedAt        int64       `json:"generatedAt"`
}

type GetQueueSnapshotRequest struct {
	CafeteriaID string `json:"cafeteriaId"`
}

type GetQueueSnapshotResponse struct {
	Snapshot *QueueSnapshot `json:"snapshot"`
}

type WatchQueueRequest struct {
	CafeteriaID string `json:"cafeteriaId"`
}

type WatchQueueResponse struct {
	Snapshot *QueueSnapshot `json:"snapshot"`
}

type SplitItem struct {
	Name           string   `json:"name"`
	Quantity       int32    `json:"quantity"`
	UnitPriceCents int64    `json:"unitPriceCents"`
	AssignedTo     []string `json:"assignedTo,omitempty"`
}

type Participant struct {
	ID             string `json:"id"`
	SessionID      string `json:"sessionId"`
	Identifier     string `json:"identifier"`
	AmountDueCents int64  `json:"amountDueCents"`
	Status         string `json:"status"`
	Position       int32  `json:"position"`
	OrderID        string `json:"orderId,omitempty"`
}

type SplitSession struct {
	ID               string         `json:"id"`
	InitiatorUserID  string         `json:"initiatorUserId"`
	CafeteriaID      string         `json:"cafeteriaId"`
	Items            []*SplitItem   `json:"items"`
	TotalCents       int64          `json:"totalCents"`
	SplitMethod      string         `json:"splitMethod"`
	Status           string         `json:"status"`
	CreatedAt        int64          `json:"createdAt"`
	ExpiresAt        int64          `json:"expiresAt,omitempty"`
	Participants     []*Participant `json:"participants"`
	PaidCents        int64          `json:"paidCents"`
	OutstandingCents int64          `json:"outstandingCents"`
}

type CreateSessionRequest struct {
	CafeteriaID            string       `json:"cafeteriaId"`
	Items                  []*SplitItem `json:"items"`
	TotalCents             int64        `json:"totalCents"`
	SplitMethod            string       `json:"splitMethod,omitempty"`
	ParticipantIdentifiers []string     `json:"participantIdentifiers"`
	// CustomAmountsCents is required for custom splits: the initiator's share
	// first, then one per invited identifier in order.
	CustomAmountsCents []int64 `json:"customAmountsCents,omitempty"`
	// ExpiresInSeconds overrides the server default; 0 keeps the default.
	ExpiresInSeconds int64 `json:"expiresInSeconds,omitempty"`
}

type CreateSessionResponse struct {
	Session *SplitSession `json:"session"`
}

type GetSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type GetSessionResponse struct {
	Session *SplitSession `json:"session"`
}

const (
	ResponseAccept  = "accept"
	ResponseDecline = "decline"
)

type RespondToInvitationRequest struct {
	ParticipantID string `json:"participantId"`
	Response      string `json:"response"`
}

type RespondToInvitationResponse struct {
	Participant *Participant `json:"participant"`
}

type PayShareRequest struct {
	ParticipantID string `json:"participantId"`
	InstrumentID  string `json:"instrumentId"`
	Credential    string `json:"credential,omitempty"`
}

type PayShareResponse struct {
	Order *Order `json:"order"`
}

type CancelSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type CancelSessionResponse struct {
	Session *SplitSession `json:"session"`
}

type ListMyInvitationsResponse struct {
	Participants []*Participant `json:"participants"`
}

type Preferences struct {
	Favourites []string `json:"favourites"`
	UpdatedAt  int64    `json:"updatedAt"`
}

type GetPreferencesResponse struct {
	Preferences *Preferences `json:"preferences"`
}

type SavePreferencesRequest struct {
	Favourites []string `json:"favourites"`
}

type SavePreferencesResponse struct {
	Preferences *Preferences `json:"preferences"`
}
