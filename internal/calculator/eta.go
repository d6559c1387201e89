package calculator

import "github.com/mmynk/canteen/internal/models"

// ETAConfig holds the tunables of the queue estimator. Durations are minutes.
type ETAConfig struct {
	// PendingBaseline is the preparation time of an order nobody has started.
	PendingBaseline float64 `json:"pendingBaseline" yaml:"pendingBaseline"`
	// CookingBaseline is the remaining time of an order already on the stove.
	CookingBaseline float64 `json:"cookingBaseline" yaml:"cookingBaseline"`
	// SlotMinutes is the wait one ordinary order imposes on the orders behind it.
	SlotMinutes float64 `json:"slotMinutes" yaml:"slotMinutes"`
	// BulkThreshold is the item count above which an order is bulk.
	BulkThreshold int `json:"bulkThreshold" yaml:"bulkThreshold"`
	// BulkMultiplier scales a bulk order's slot.
	BulkMultiplier float64 `json:"bulkMultiplier" yaml:"bulkMultiplier"`
}

// DefaultETAConfig returns the estimator defaults.
func DefaultETAConfig() ETAConfig {
	return ETAConfig{
		PendingBaseline: 5,
		CookingBaseline: 3,
		SlotMinutes:     10,
		BulkThreshold:   10,
		BulkMultiplier:  1.5,
	}
}

// QueueEntry is one order in a cafeteria queue snapshot.
type QueueEntry struct {
	OrderID   string
	Status    models.OrderStatus
	ItemCount int
	// Meal groups orders that are one dish in the kitchen, such as the
	// shares of a split bill. Empty means the order stands alone.
	Meal string
}

// ETA is an estimate for one order. Ready orders carry no minute value so
// callers render "ready now" instead of "0 minutes".
type ETA struct {
	Minutes float64
	Ready   bool
}

// OrderETA is the estimate for one order of a snapshot.
type OrderETA struct {
	OrderID string
	// Rank is the 0-indexed FIFO slot among active orders, -1 for ready orders.
	// Orders of one meal in the same status share a slot.
	Rank int
	Bulk bool
	ETA  ETA
}

// QueueStats is the result of estimating a whole snapshot.
type QueueStats struct {
	QueueLength        int
	AverageWaitMinutes float64
	PerOrder           []OrderETA
}

// IsBulk reports whether an order with itemCount items is a bulk order.
func (c ETAConfig) IsBulk(itemCount int) bool {
	return itemCount > c.BulkThreshold
}

// Contribution is the bulk-adjusted wait an order imposes on every order behind it.
func (c ETAConfig) Contribution(itemCount int) float64 {
	if c.IsBulk(itemCount) {
		return c.SlotMinutes * c.BulkMultiplier
	}
	return c.SlotMinutes
}

// Baseline returns the preparation baseline for status, or ready=true for
// orders that have left the kitchen.
func (c ETAConfig) Baseline(status models.OrderStatus) (minutes float64, ready bool) {
	switch status {
	case models.OrderPending:
		return c.PendingBaseline, false
	case models.OrderCooking:
		return c.CookingBaseline, false
	default:
		return 0, true
	}
}

// EstimateAt returns the ETA of the order at rank within queue, which must hold
// only active orders in FIFO order:
//
//	eta = baseline(status) + rank × averageSlot
//
// where averageSlot is the mean contribution of the orders strictly ahead
// (SlotMinutes when nothing is ahead).
func (c ETAConfig) EstimateAt(queue []QueueEntry, rank int) ETA {
	if rank < 0 || rank >= len(queue) {
		return ETA{}
	}
	var ahead float64
	for _, e := range queue[:rank] {
		ahead += c.Contribution(e.ItemCount)
	}
	return c.eta(queue[rank].Status, rank, ahead)
}

// AverageSlot is the mean contribution of the orders ahead, or SlotMinutes
// when there are none.
func (c ETAConfig) AverageSlot(ahead []QueueEntry) float64 {
	if len(ahead) == 0 {
		return c.SlotMinutes
	}
	var total float64
	for _, e := range ahead {
		total += c.Contribution(e.ItemCount)
	}
	return total / float64(len(ahead))
}

func (c ETAConfig) eta(status models.OrderStatus, rank int, aheadTotal float64) ETA {
	base, ready := c.Baseline(status)
	if ready {
		return ETA{Ready: true}
	}
	if rank == 0 {
		return ETA{Minutes: base}
	}
	// rank × (aheadTotal / rank), kept exact.
	return ETA{Minutes: base + aheadTotal}
}

// Estimate computes per-order ETAs and the aggregate statistics of a snapshot.
// Entries are in FIFO order; non-active entries are reported as ready and do
// not take a rank or count toward the aggregates.
//
// An active entry whose Meal already holds a slot in the same status reuses
// that slot's rank and ETA instead of queueing behind it. It is still listed
// and still counts toward QueueLength and AverageWaitMinutes.
func (c ETAConfig) Estimate(entries []QueueEntry) QueueStats {
	stats := QueueStats{PerOrder: make([]OrderETA, 0, len(entries))}

	type mealSlot struct {
		meal   string
		status models.OrderStatus
	}
	slots := make(map[mealSlot]OrderETA)

	var (
		rank      int
		active    int
		aheadSum  float64
		etaTotals float64
	)
	for _, e := range entries {
		if !e.Status.Active() {
			stats.PerOrder = append(stats.PerOrder, OrderETA{
				OrderID: e.OrderID,
				Rank:    -1,
				Bulk:    c.IsBulk(e.ItemCount),
				ETA:     ETA{Ready: true},
			})
			continue
		}
		active++

		key := mealSlot{meal: e.Meal, status: e.Status}
		if lead, ok := slots[key]; ok && e.Meal != "" {
			lead.OrderID = e.OrderID
			stats.PerOrder = append(stats.PerOrder, lead)
			etaTotals += lead.ETA.Minutes
			continue
		}

		o := OrderETA{
			OrderID: e.OrderID,
			Rank:    rank,
			Bulk:    c.IsBulk(e.ItemCount),
			ETA:     c.eta(e.Status, rank, aheadSum),
		}
		stats.PerOrder = append(stats.PerOrder, o)
		if e.Meal != "" {
			slots[key] = o
		}
		etaTotals += o.ETA.Minutes
		aheadSum += c.Contribution(e.ItemCount)
		rank++
	}

	stats.QueueLength = active
	if active > 0 {
		stats.AverageWaitMinutes = etaTotals / float64(active)
	}
	return stats
}
