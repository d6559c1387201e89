package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/canteen/internal/apperr"
	"github.com/mmynk/canteen/internal/auth"
	"github.com/mmynk/canteen/internal/ledger"
	"github.com/mmynk/canteen/internal/models"
	"github.com/mmynk/canteen/internal/storage"
	"github.com/mmynk/canteen/pkg/api"
)

// InstrumentService lets diners register and list their payment instruments.
type InstrumentService struct {
	store    storage.InstrumentStore
	resolver *auth.Resolver
	logger   *slog.Logger
	now      clock
}

func NewInstrumentService(store storage.InstrumentStore, resolver *auth.Resolver, logger *slog.Logger) *InstrumentService {
	return &InstrumentService{store: store, resolver: resolver, logger: logger, now: time.Now}
}

// CreateInstrument registers an instrument. fpx and ewallet instruments hold a
// balance and need a PIN; cards hold a credit limit and are pre-authorized.
func (s *InstrumentService) CreateInstrument(ctx context.Context, req *connect.Request[api.CreateInstrumentRequest]) (*connect.Response[api.CreateInstrumentResponse], error) {
	caller, err := principalFor(ctx, s.resolver)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}

	inst, err := s.newInstrument(caller.UserID, req.Msg)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	if err := s.store.CreateInstrument(ctx, inst); err != nil {
		return nil, toConnectError(s.logger, err)
	}

	s.logger.Info("Instrument created", "user_id", caller.UserID, "instrument_id", inst.ID, "type", inst.Type)
	return connect.NewResponse(&api.CreateInstrumentResponse{Instrument: toAPIInstrument(inst)}), nil
}

func (s *InstrumentService) newInstrument(ownerID string, msg *api.CreateInstrumentRequest) (*models.Instrument, error) {
	typ := models.InstrumentType(strings.ToLower(msg.Type))
	if !typ.Valid() {
		return nil, apperr.Validation("unknown instrument type %q", msg.Type)
	}
	if strings.TrimSpace(msg.DisplayName) == "" {
		return nil, apperr.Validation("display name is required")
	}
	if msg.AmountCents < 0 {
		return nil, apperr.Validation("amount cannot be negative")
	}

	inst := &models.Instrument{
		OwnerID:     ownerID,
		Type:        typ,
		DisplayName: strings.TrimSpace(msg.DisplayName),
		IsDefault:   msg.IsDefault,
		CreatedAt:   s.now().Unix(),
	}
	amount := models.Cents(msg.AmountCents)
	if typ.UsesBalance() {
		inst.Balance = &amount
	} else {
		inst.CreditLimit = &amount
	}

	if typ.RequiresCredential() {
		if len(msg.Credential) < 4 {
			return nil, apperr.Validation("a PIN of at least 4 digits is required")
		}
		hash, err := ledger.HashCredential(msg.Credential)
		if err != nil {
			return nil, err
		}
		inst.CredentialHash = hash
	}
	return inst, nil
}

// ListInstruments returns the caller's instruments, default first.
func (s *InstrumentService) ListInstruments(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[api.ListInstrumentsResponse], error) {
	caller, err := principalFor(ctx, s.resolver)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}

	instruments, err := s.store.ListInstruments(ctx, caller.UserID)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	out := make([]*api.Instrument, len(instruments))
	for i, inst := range instruments {
		out[i] = toAPIInstrument(inst)
	}
	return connect.NewResponse(&api.ListInstrumentsResponse{Instruments: out}), nil
}
