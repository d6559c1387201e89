package calculator

import "github.com/mmynk/canteen/internal/models"

// SessionBalance summarizes how much of a split-bill session has been settled.
type SessionBalance struct {
	Total       models.Cents
	Paid        models.Cents
	Outstanding models.Cents // Owed by accepted and pending participants
	Declined    models.Cents // Shares nobody will pay unless the initiator cancels

	PendingCount  int
	AcceptedCount int
	DeclinedCount int
	PaidCount     int
}

// Settled reports whether every participant has paid.
func (b SessionBalance) Settled() bool {
	return b.PendingCount == 0 && b.AcceptedCount == 0 && b.DeclinedCount == 0 && b.PaidCount > 0
}

// CalculateSessionBalance aggregates participant shares by status.
func CalculateSessionBalance(participants []models.Participant) SessionBalance {
	var b SessionBalance
	for _, p := range participants {
		b.Total += p.AmountDue
		switch p.Status {
		case models.ParticipantPaid:
			b.Paid += p.AmountDue
			b.PaidCount++
		case models.ParticipantDeclined:
			b.Declined += p.AmountDue
			b.DeclinedCount++
		case models.ParticipantAccepted:
			b.Outstanding += p.AmountDue
			b.AcceptedCount++
		default:
			b.Outstanding += p.AmountDue
			b.PendingCount++
		}
	}
	return b
}
