package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/canteen/internal/apperr"
	"github.com/mmynk/canteen/internal/auth"
	"github.com/mmynk/canteen/internal/calculator"
	"github.com/mmynk/canteen/internal/feed"
	"github.com/mmynk/canteen/internal/ledger"
	"github.com/mmynk/canteen/internal/metrics"
	"github.com/mmynk/canteen/internal/models"
	"github.com/mmynk/canteen/internal/storage"
	"github.com/mmynk/canteen/pkg/api"
)

// SplitService manages split-bill sessions: invitations, responses, per-share
// payment and cancellation.
type SplitService struct {
	store      storage.Store
	ledger     *ledger.Ledger
	resolver   *auth.Resolver
	feed       *feed.Feed
	metrics    *metrics.Metrics
	defaultTTL time.Duration
	logger     *slog.Logger
	now        clock
}

// SplitServiceConfig groups the collaborators of a SplitService.
type SplitServiceConfig struct {
	Store    storage.Store
	Ledger   *ledger.Ledger
	Resolver *auth.Resolver
	Feed     *feed.Feed
	Metrics  *metrics.Metrics
	// DefaultTTL applies when a request does not set one; 0 never expires.
	DefaultTTL time.Duration
	Logger     *slog.Logger
}

func NewSplitService(cfg SplitServiceConfig) *SplitService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Feed == nil {
		cfg.Feed = feed.New()
	}
	return &SplitService{
		store:      cfg.Store,
		ledger:     cfg.Ledger,
		resolver:   cfg.Resolver,
		feed:       cfg.Feed,
		metrics:    cfg.Metrics,
		defaultTTL: cfg.DefaultTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateSession opens a split session. The caller becomes the first
// participant (already accepted); every invited identifier must belong to a
// registered account other than the caller's.
func (s *SplitService) CreateSession(ctx context.Context, req *connect.Request[api.CreateSessionRequest]) (*connect.Response[api.CreateSessionResponse], error) {
	caller, err := principalFor(ctx, s.resolver)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}

	session, err := s.newSession(ctx, caller, req.Msg)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, toConnectError(s.logger, err)
	}

	s.metrics.SessionCreated(string(session.SplitMethod))
	s.logger.Info("Split session created",
		"session_id", session.ID,
		"initiator_id", caller.UserID,
		"participants", len(session.Participants),
		"total", session.TotalAmount.String(),
		"method", session.SplitMethod,
	)
	return connect.NewResponse(&api.CreateSessionResponse{Session: toAPISession(session, s.now().Unix())}), nil
}

func (s *SplitService) newSession(ctx context.Context, caller *auth.Principal, msg *api.CreateSessionRequest) (*models.SplitSession, error) {
	cafeteriaID := strings.TrimSpace(msg.CafeteriaID)
	if cafeteriaID == "" {
		return nil, apperr.Validation("cafeteria id is required")
	}
	items, err := fromAPISplitItems(msg.Items)
	if err != nil {
		return nil, err
	}
	total := models.Cents(msg.TotalCents)
	if total <= 0 {
		return nil, apperr.Validation("total must be positive")
	}
	method := models.SplitMethod(msg.SplitMethod)
	if method == "" {
		method = models.SplitEqual
	}
	if !method.Valid() {
		return nil, apperr.Validation("unknown split method %q", msg.SplitMethod)
	}
	if msg.ExpiresInSeconds < 0 {
		return nil, apperr.Validation("expiry cannot be negative")
	}

	invitees, err := s.resolveInvitees(ctx, caller, msg.ParticipantIdentifiers)
	if err != nil {
		return nil, err
	}

	participants := make([]models.Participant, 0, len(invitees)+1)
	participants = append(participants, models.Participant{
		Identifier: caller.Email,
		UserID:     caller.UserID,
		Status:     models.ParticipantAccepted,
	})
	for _, inv := range invitees {
		participants = append(participants, models.Participant{
			Identifier: inv.identifier,
			UserID:     inv.userID,
			Status:     models.ParticipantPending,
		})
	}

	// The initiator may be named by any of their identifiers on an item.
	for i := range items {
		for j, a := range items[i].AssignedTo {
			if caller.Owns(a) {
				items[i].AssignedTo[j] = caller.Email
			}
		}
	}

	shares, err := computeShares(method, total, items, participants, msg.CustomAmountsCents)
	if err != nil {
		return nil, err
	}
	for i := range participants {
		if shares[i] <= 0 {
			return nil, apperr.Validation("participant %s would owe nothing", participants[i].Identifier)
		}
		participants[i].AmountDue = shares[i]
	}

	now := s.now()
	session := &models.SplitSession{
		InitiatorUserID: caller.UserID,
		CafeteriaID:     cafeteriaID,
		Items:           items,
		TotalAmount:     total,
		SplitMethod:     method,
		Status:          models.SessionActive,
		CreatedAt:       now.Unix(),
		Participants:    participants,
	}
	ttl := s.defaultTTL
	if msg.ExpiresInSeconds > 0 {
		ttl = time.Duration(msg.ExpiresInSeconds) * time.Second
	}
	if ttl > 0 {
		session.ExpiresAt = now.Add(ttl).Unix()
	}
	return session, nil
}

type invitee struct {
	identifier string
	userID     string
}

// resolveInvitees validates invited identifiers in request order.
func (s *SplitService) resolveInvitees(ctx context.Context, caller *auth.Principal, identifiers []string) ([]invitee, error) {
	if len(identifiers) == 0 {
		return nil, apperr.Validation("at least one participant must be invited")
	}

	normalized := make([]string, 0, len(identifiers))
	seen := make(map[string]bool, len(identifiers))
	for _, raw := range identifiers {
		id := models.NormalizeIdentifier(raw)
		if id == "" {
			return nil, apperr.Validation("participant identifier cannot be empty")
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: %s", apperr.ErrDuplicateParticipant, id)
		}
		seen[id] = true
		if caller.Owns(id) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrSelfInvite, id)
		}
		normalized = append(normalized, id)
	}

	users, err := s.store.ResolveIdentifiers(ctx, normalized)
	if err != nil {
		return nil, err
	}

	out := make([]invitee, 0, len(normalized))
	accounts := make(map[string]string, len(normalized))
	for _, id := range normalized {
		user, ok := users[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", apperr.ErrUnregisteredIdentifier, id)
		}
		if user.ID == caller.UserID {
			return nil, fmt.Errorf("%w: %s", apperr.ErrSelfInvite, id)
		}
		// Primary email and alias of one account are the same participant.
		if prev, dup := accounts[user.ID]; dup {
			return nil, fmt.Errorf("%w: %s and %s", apperr.ErrDuplicateParticipant, prev, id)
		}
		accounts[user.ID] = id
		out = append(out, invitee{identifier: id, userID: user.ID})
	}
	return out, nil
}

// computeShares returns one share per participant in creation order.
func computeShares(method models.SplitMethod, total models.Cents, items []models.SplitItem, participants []models.Participant, custom []int64) ([]models.Cents, error) {
	var (
		shares []models.Cents
		err    error
	)
	switch method {
	case models.SplitEqual:
		shares, err = calculator.EqualShares(total, len(participants))
	case models.SplitCustom:
		if len(custom) != len(participants) {
			return nil, apperr.Validation("custom split needs %d amounts, got %d", len(participants), len(custom))
		}
		amounts := make([]models.Cents, len(custom))
		for i, a := range custom {
			amounts[i] = models.Cents(a)
		}
		shares, err = calculator.CustomShares(total, amounts)
	case models.SplitByItems:
		ids := make([]string, len(participants))
		for i, p := range participants {
			ids[i] = p.Identifier
		}
		calcItems := make([]calculator.Item, len(items))
		for i, it := range items {
			calcItems[i] = calculator.Item{
				Description: it.Name,
				Amount:      models.OrderItem{Quantity: it.Quantity, UnitPrice: it.UnitPrice}.LineTotal(),
				AssignedTo:  it.AssignedTo,
			}
		}
		shares, err = calculator.ByItemsShares(total, calcItems, ids)
	}
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	return shares, nil
}

// loadSession reads a session and applies lazy expiry, persisting it when the
// stored status is stale.
func (s *SplitService) loadSession(ctx context.Context, id string) (*models.SplitSession, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().Unix()
	if session.Status == models.SessionActive && session.EffectiveStatus(now) == models.SessionExpired {
		if _, err := s.store.ExpireSession(ctx, session.ID, now); err != nil {
			s.logger.Warn("Failed to persist session expiry", "session_id", session.ID, "error", err)
		}
		session.Status = models.SessionExpired
	}
	return session, nil
}

// GetSession returns a session to its initiator, its participants, or staff.
func (s *SplitService) GetSession(ctx context.Context, req *connect.Request[api.GetSessionRequest]) (*connect.Response[api.GetSessionResponse], error) {
	caller, err := principalFor(ctx, s.resolver)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}

	session, err := s.loadSession(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	if !canView(caller, session) {
		return nil, toConnectError(s.logger, apperr.Unauthorized("session %s is not addressed to the caller", session.ID))
	}
	return connect.NewResponse(&api.GetSessionResponse{Session: toAPISession(session, s.now().Unix())}), nil
}

func canView(caller *auth.Principal, session *models.SplitSession) bool {
	if session.InitiatorUserID == caller.UserID || caller.IsStaff() {
		return true
	}
	for _, p := range session.Participants {
		if caller.Owns(p.Identifier) {
			return true
		}
	}
	return false
}

func parseResponse(r string) (models.ParticipantStatus, error) {
	switch strings.ToLower(strings.TrimSpace(r)) {
	case api.ResponseAccept:
		return models.ParticipantAccepted, nil
	case api.ResponseDecline:
		return models.ParticipantDeclined, nil
	}
	return "", apperr.Validation("response must be %q or %q", api.ResponseAccept, api.ResponseDecline)
}

// RespondToInvitation accepts or declines an invitation addressed to one of
// the caller's identifiers. Repeating the recorded answer returns the
// participant unchanged; the opposite answer is AlreadyResolved.
func (s *SplitService) RespondToInvitation(ctx context.Context, req *connect.Request[api.RespondToInvitationRequest]) (*connect.Response[api.RespondToInvitationResponse], error) {
	caller, err := principalFor(ctx, s.resolver)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	target, err := parseResponse(req.Msg.Response)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}

	p, err := s.respond(ctx, caller, req.Msg.ParticipantID, target)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	return connect.NewResponse(&api.RespondToInvitationResponse{Participant: toAPIParticipant(p)}), nil
}

func (s *SplitService) respond(ctx context.Context, caller *auth.Principal, participantID string, target models.ParticipantStatus) (*models.Participant, error) {
	// A lost conditional write means someone else resolved the row first; one
	// re-read is enough to classify the outcome.
	for attempt := 0; attempt < 2; attempt++ {
		p, err := s.store.GetParticipant(ctx, participantID)
		if err != nil {
			return nil, err
		}
		if !caller.Owns(p.Identifier) {
			return nil, apperr.Unauthorized("invitation %s is not addressed to the caller", p.ID)
		}
		session, err := s.loadSession(ctx, p.SessionID)
		if err != nil {
			return nil, err
		}
		if session.Status.Terminal() {
			return nil, fmt.Errorf("%w: session %s is %s", apperr.ErrSessionInactive, session.ID, session.Status)
		}

		switch {
		case p.Status == target:
			return p, nil
		case target == models.ParticipantAccepted && p.Status == models.ParticipantPaid:
			return p, nil
		case p.Status.Resolved():
			return nil, fmt.Errorf("%w: participant is %s", apperr.ErrAlreadyResolved, p.Status)
		}

		ok, err := s.store.ResolveParticipant(ctx, p.ID, target, s.now().Unix())
		if err != nil {
			return nil, err
		}
		if ok {
			p.Status = target
			s.metrics.InvitationResolved(string(target))
			s.logger.Info("Invitation resolved",
				"participant_id", p.ID,
				"session_id", p.SessionID,
				"status", target,
				"user_id", caller.UserID,
			)
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: participant %s changed concurrently", apperr.ErrStateConflict, participantID)
}

// PayShare settles an accepted participant's share with one of the caller's
// instruments. Paying an already-paid share returns the existing order.
func (s *SplitService) PayShare(ctx context.Context, req *connect.Request[api.PayShareRequest]) (*connect.Response[api.PayShareResponse], error) {
	caller, err := principalFor(ctx, s.resolver)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	if req.Msg.InstrumentID == "" {
		return nil, toConnectError(s.logger, apperr.Validation("instrument id is required"))
	}

	order, err := s.pay(ctx, caller, req.Msg)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	return connect.NewResponse(&api.PayShareResponse{Order: toAPIOrder(order)}), nil
}

func (s *SplitService) pay(ctx context.Context, caller *auth.Principal, msg *api.PayShareRequest) (*models.Order, error) {
	p, err := s.store.GetParticipant(ctx, msg.ParticipantID)
	if err != nil {
		return nil, err
	}
	if !caller.Owns(p.Identifier) {
		return nil, apperr.Unauthorized("share %s is not addressed to the caller", p.ID)
	}
	if p.Status == models.ParticipantPaid {
		return s.store.GetOrder(ctx, p.OrderID)
	}

	session, err := s.loadSession(ctx, p.SessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, fmt.Errorf("%w: session %s is %s", apperr.ErrSessionInactive, session.ID, session.Status)
	}
	if p.Status != models.ParticipantAccepted {
		return nil, fmt.Errorf("%w: participant is %s, accept the invitation first", apperr.ErrStateConflict, p.Status)
	}

	res, err := s.ledger.Settle(ctx, ledger.SettleRequest{
		PayerID:      caller.UserID,
		InstrumentID: msg.InstrumentID,
		Credential:   msg.Credential,
		Order: &models.Order{
			CafeteriaID: session.CafeteriaID,
			SessionID:   session.ID,
			Items:       models.OrderItems(session.Items),
			TotalAmount: p.AmountDue,
		},
		ParticipantID: p.ID,
		Now:           s.now(),
	})
	if err != nil {
		// A concurrent payment of the same share won the race.
		if errors.Is(err, apperr.ErrStateConflict) {
			if current, gerr := s.store.GetParticipant(ctx, p.ID); gerr == nil && current.Status == models.ParticipantPaid {
				return s.store.GetOrder(ctx, current.OrderID)
			}
		}
		return nil, err
	}

	s.feed.Publish(feed.Event{CafeteriaID: res.Order.CafeteriaID, OrderID: res.Order.ID, Reason: "share_paid"})
	if res.SessionCompleted {
		s.logger.Info("Split session completed", "session_id", session.ID)
	}
	return res.Order, nil
}

// CancelSession lets the initiator abandon an active session.
func (s *SplitService) CancelSession(ctx context.Context, req *connect.Request[api.CancelSessionRequest]) (*connect.Response[api.CancelSessionResponse], error) {
	caller, err := principalFor(ctx, s.resolver)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}

	session, err := s.cancel(ctx, caller, req.Msg.SessionID)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	s.logger.Info("Split session cancelled", "session_id", session.ID, "user_id", caller.UserID)
	return connect.NewResponse(&api.CancelSessionResponse{Session: toAPISession(session, s.now().Unix())}), nil
}

func (s *SplitService) cancel(ctx context.Context, caller *auth.Principal, sessionID string) (*models.SplitSession, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.InitiatorUserID != caller.UserID {
		return nil, apperr.Unauthorized("only the initiator may cancel session %s", session.ID)
	}
	if session.Status.Terminal() {
		return nil, fmt.Errorf("%w: session %s is %s", apperr.ErrSessionInactive, session.ID, session.Status)
	}

	ok, err := s.store.CancelSession(ctx, session.ID, s.now().Unix())
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.loadSession(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: session %s is %s", apperr.ErrSessionInactive, current.ID, current.Status)
	}
	session.Status = models.SessionCancelled
	return session, nil
}

// ListMyInvitations returns the shares addressed to any of the caller's
// identifiers, newest session first. The caller's own initiator rows are not
// invitations and are left out.
func (s *SplitService) ListMyInvitations(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[api.ListMyInvitationsResponse], error) {
	caller, err := principalFor(ctx, s.resolver)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}

	participants, err := s.store.ListParticipantsByIdentifiers(ctx, caller.Identifiers)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	out := make([]*api.Participant, 0, len(participants))
	for _, p := range participants {
		if p.Position == 0 {
			continue
		}
		out = append(out, toAPIParticipant(p))
	}
	return connect.NewResponse(&api.ListMyInvitationsResponse{Participants: out}), nil
}
