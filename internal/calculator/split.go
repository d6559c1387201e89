package calculator

import (
	"fmt"

	"github.com/mmynk/canteen/internal/models"
)

// EqualShares divides total among n participants in creation order.
//
// Every share except the last is total/n rounded half up to the cent; the last
// participant absorbs the remainder so the shares always sum to total exactly.
// RM45.50 among 3 yields 15.17, 15.17, 15.16. When rounding up would leave the
// last share negative (only possible for totals of a few cents) the base share
// falls back to floor(total/n).
func EqualShares(total models.Cents, n int) ([]models.Cents, error) {
	if n < 1 {
		return nil, fmt.Errorf("must have at least one participant")
	}
	if total < 0 {
		return nil, fmt.Errorf("total cannot be negative")
	}

	count := models.Cents(n)
	base := (2*total + count) / (2 * count)
	if base*(count-1) > total {
		base = total / count
	}

	shares := make([]models.Cents, n)
	for i := 0; i < n-1; i++ {
		shares[i] = base
	}
	shares[n-1] = total - base*(count-1)
	return shares, nil
}

// CustomShares validates caller-supplied shares: one per participant, none
// negative, summing to total.
func CustomShares(total models.Cents, amounts []models.Cents) ([]models.Cents, error) {
	if len(amounts) == 0 {
		return nil, fmt.Errorf("must have at least one participant")
	}
	var sum models.Cents
	for i, a := range amounts {
		if a < 0 {
			return nil, fmt.Errorf("share %d is negative", i)
		}
		sum += a
	}
	if sum != total {
		return nil, fmt.Errorf("shares sum to %s, want %s", sum, total)
	}
	out := make([]models.Cents, len(amounts))
	copy(out, amounts)
	return out, nil
}

// Item is a line item for a by-items split.
type Item struct {
	Description string
	Amount      models.Cents
	// AssignedTo lists participant identifiers. Empty means everyone.
	AssignedTo []string
}

// ByItemsShares computes each participant's share from the items assigned to them.
//
// An item is split equally among its assignees with the remainder on the last
// assignee. The difference between total and the items subtotal (tax, service
// charge, packaging) is spread proportionally to each participant's subtotal:
// person_total = person_subtotal × total / bill_subtotal. The last participant
// absorbs the rounding so the shares sum to total exactly.
func ByItemsShares(total models.Cents, items []Item, participants []string) ([]models.Cents, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("must have at least one participant")
	}
	index := make(map[string]int, len(participants))
	for i, p := range participants {
		index[models.NormalizeIdentifier(p)] = i
	}

	subtotals := make([]models.Cents, len(participants))
	var billSubtotal models.Cents
	for _, item := range items {
		if item.Amount < 0 {
			return nil, fmt.Errorf("item %q has a negative amount", item.Description)
		}
		billSubtotal += item.Amount

		assignees := make([]int, 0, len(item.AssignedTo))
		for _, a := range item.AssignedTo {
			i, ok := index[models.NormalizeIdentifier(a)]
			if !ok {
				return nil, fmt.Errorf("item %q assigned to non-participant %q", item.Description, a)
			}
			assignees = append(assignees, i)
		}
		if len(assignees) == 0 {
			for i := range participants {
				assignees = append(assignees, i)
			}
		}

		per := item.Amount / models.Cents(len(assignees))
		for _, i := range assignees {
			subtotals[i] += per
		}
		subtotals[assignees[len(assignees)-1]] += item.Amount - per*models.Cents(len(assignees))
	}

	if billSubtotal == 0 {
		return nil, fmt.Errorf("subtotal cannot be zero")
	}

	shares := make([]models.Cents, len(participants))
	var assigned models.Cents
	last := len(participants) - 1
	for i := 0; i < last; i++ {
		shares[i] = subtotals[i] * total / billSubtotal
		assigned += shares[i]
	}
	shares[last] = total - assigned
	if shares[last] < 0 {
		return nil, fmt.Errorf("total %s is too small for the assigned items", total)
	}
	return shares, nil
}

// Sum adds up shares.
func Sum(shares []models.Cents) models.Cents {
	var s models.Cents
	for _, c := range shares {
		s += c
	}
	return s
}
