package models

// OrderStatus is the kitchen progress of an order.
// Orders move strictly forward: Pending → Cooking → ReadyForPickup → Completed.
type OrderStatus string

const (
	OrderPending        OrderStatus = "pending"
	OrderCooking        OrderStatus = "cooking"
	OrderReadyForPickup OrderStatus = "ready_for_pickup"
	OrderCompleted      OrderStatus = "completed"
)

var orderFlow = map[OrderStatus]OrderStatus{
	OrderPending:        OrderCooking,
	OrderCooking:        OrderReadyForPickup,
	OrderReadyForPickup: OrderCompleted,
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderCooking, OrderReadyForPickup, OrderCompleted:
		return true
	}
	return false
}

// Next returns the status that follows s, or false if s is terminal.
func (s OrderStatus) Next() (OrderStatus, bool) {
	next, ok := orderFlow[s]
	return next, ok
}

// CanTransitionTo reports whether to is the single step after s.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	next, ok := s.Next()
	return ok && next == to
}

// Active reports whether an order with this status is still in the kitchen queue.
func (s OrderStatus) Active() bool {
	return s == OrderPending || s == OrderCooking
}

// OrderItem is one line of an order.
type OrderItem struct {
	Name      string
	Quantity  int
	UnitPrice Cents
}

// LineTotal is quantity × unit price.
func (i OrderItem) LineTotal() Cents {
	return Cents(i.Quantity) * i.UnitPrice
}

// Order is a paid pre-order at one cafeteria.
type Order struct {
	ID           string
	UserID       string
	CafeteriaID  string
	Items        []OrderItem
	TotalAmount  Cents
	InstrumentID string
	Status       OrderStatus

	// SessionID is set when the order settles a split-bill share.
	SessionID string

	CreatedAt int64
	UpdatedAt int64
	// PaidAt is zero until settlement succeeds.
	PaidAt int64
}

// ItemsTotal sums the line totals of items.
func ItemsTotal(items []OrderItem) Cents {
	var total Cents
	for _, it := range items {
		total += it.LineTotal()
	}
	return total
}

// ItemCount sums item quantities.
func ItemCount(items []OrderItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}
