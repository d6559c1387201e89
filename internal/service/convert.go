package service

import (
	"strings"

	"github.com/mmynk/canteen/internal/apperr"
	"github.com/mmynk/canteen/internal/calculator"
	"github.com/mmynk/canteen/internal/models"
	"github.com/mmynk/canteen/pkg/api"
)

func toAPIUser(u *models.User) *api.User {
	return &api.User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		Aliases:     u.Aliases,
		CreatedAt:   u.CreatedAt,
	}
}

func centsPtr(c *models.Cents) *int64 {
	if c == nil {
		return nil
	}
	v := int64(*c)
	return &v
}

func toAPIInstrument(inst *models.Instrument) *api.Instrument {
	return &api.Instrument{
		ID:               inst.ID,
		OwnerID:          inst.OwnerID,
		Type:             string(inst.Type),
		DisplayName:      inst.DisplayName,
		IsDefault:        inst.IsDefault,
		BalanceCents:     centsPtr(inst.Balance),
		CreditLimitCents: centsPtr(inst.CreditLimit),
		CreatedAt:        inst.CreatedAt,
	}
}

func toAPIOrder(o *models.Order) *api.Order {
	items := make([]*api.OrderItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = &api.OrderItem{
			Name:           it.Name,
			Quantity:       int32(it.Quantity),
			UnitPriceCents: int64(it.UnitPrice),
		}
	}
	return &api.Order{
		ID:           o.ID,
		UserID:       o.UserID,
		CafeteriaID:  o.CafeteriaID,
		Items:        items,
		TotalCents:   int64(o.TotalAmount),
		InstrumentID: o.InstrumentID,
		Status:       string(o.Status),
		SessionID:    o.SessionID,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
		PaidAt:       o.PaidAt,
	}
}

// fromAPIOrderItems validates and converts order lines.
func fromAPIOrderItems(items []*api.OrderItem) ([]models.OrderItem, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("at least one item is required")
	}
	out := make([]models.OrderItem, len(items))
	for i, it := range items {
		if it == nil || strings.TrimSpace(it.Name) == "" {
			return nil, apperr.Validation("item %d has no name", i)
		}
		if it.Quantity <= 0 {
			return nil, apperr.Validation("item %q must have a positive quantity", it.Name)
		}
		if it.UnitPriceCents < 0 {
			return nil, apperr.Validation("item %q has a negative price", it.Name)
		}
		out[i] = models.OrderItem{
			Name:      strings.TrimSpace(it.Name),
			Quantity:  int(it.Quantity),
			UnitPrice: models.Cents(it.UnitPriceCents),
		}
	}
	return out, nil
}

func fromAPISplitItems(items []*api.SplitItem) ([]models.SplitItem, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("at least one item is required")
	}
	out := make([]models.SplitItem, len(items))
	for i, it := range items {
		if it == nil || strings.TrimSpace(it.Name) == "" {
			return nil, apperr.Validation("item %d has no name", i)
		}
		if it.Quantity <= 0 {
			return nil, apperr.Validation("item %q must have a positive quantity", it.Name)
		}
		if it.UnitPriceCents < 0 {
			return nil, apperr.Validation("item %q has a negative price", it.Name)
		}
		assigned := make([]string, 0, len(it.AssignedTo))
		for _, a := range it.AssignedTo {
			assigned = append(assigned, models.NormalizeIdentifier(a))
		}
		out[i] = models.SplitItem{
			Name:       strings.TrimSpace(it.Name),
			Quantity:   int(it.Quantity),
			UnitPrice:  models.Cents(it.UnitPriceCents),
			AssignedTo: assigned,
		}
	}
	return out, nil
}

func toAPIParticipant(p *models.Participant) *api.Participant {
	return &api.Participant{
		ID:             p.ID,
		SessionID:      p.SessionID,
		Identifier:     p.Identifier,
		AmountDueCents: int64(p.AmountDue),
		Status:         string(p.Status),
		Position:       int32(p.Position),
		OrderID:        p.OrderID,
	}
}

// toAPISession reports the effective status at now.
func toAPISession(s *models.SplitSession, now int64) *api.SplitSession {
	items := make([]*api.SplitItem, len(s.Items))
	for i, it := range s.Items {
		items[i] = &api.SplitItem{
			Name:           it.Name,
			Quantity:       int32(it.Quantity),
			UnitPriceCents: int64(it.UnitPrice),
			AssignedTo:     it.AssignedTo,
		}
	}
	participants := make([]*api.Participant, len(s.Participants))
	for i := range s.Participants {
		participants[i] = toAPIParticipant(&s.Participants[i])
	}
	balance := calculator.CalculateSessionBalance(s.Participants)

	return &api.SplitSession{
		ID:               s.ID,
		InitiatorUserID:  s.InitiatorUserID,
		CafeteriaID:      s.CafeteriaID,
		Items:            items,
		TotalCents:       int64(s.TotalAmount),
		SplitMethod:      string(s.SplitMethod),
		Status:           string(s.EffectiveStatus(now)),
		CreatedAt:        s.CreatedAt,
		ExpiresAt:        s.ExpiresAt,
		Participants:     participants,
		PaidCents:        int64(balance.Paid),
		OutstandingCents: int64(balance.Outstanding),
	}
}

func toAPISnapshot(cafeteriaID string, stats calculator.QueueStats, now int64) *api.QueueSnapshot {
	perOrder := make([]*api.OrderEta, len(stats.PerOrder))
	for i, o := range stats.PerOrder {
		perOrder[i] = &api.OrderEta{
			OrderID:    o.OrderID,
			Rank:       int32(o.Rank),
			Bulk:       o.Bulk,
			Ready:      o.ETA.Ready,
			EtaMinutes: o.ETA.Minutes,
		}
	}
	return &api.QueueSnapshot{
		CafeteriaID:        cafeteriaID,
		QueueLength:        int32(stats.QueueLength),
		AverageWaitMinutes: stats.AverageWaitMinutes,
		PerOrderEta:        perOrder,
		GeneratedAt:        now,
	}
}

func toAPIPreferences(p *models.Preferences) *api.Preferences {
	favourites := p.Favourites
	if favourites == nil {
		favourites = []string{}
	}
	return &api.Preferences{Favourites: favourites, UpdatedAt: p.UpdatedAt}
}
