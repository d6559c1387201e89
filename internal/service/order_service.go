package service

import (
	"context"
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

// OrderService handles checkout, the kitchen workflow and queue estimates.
type OrderService struct {
	store    storage.Store
	ledger   *ledger.Ledger
	resolver *auth.Resolver
	feed     *feed.Feed
	metrics  *metrics.Metrics
	eta      calculator.ETAConfig
	logger   *slog.Logger
	now      clock
}

// OrderServiceConfig groups the collaborators of an OrderService.
type OrderServiceConfig struct {
	Store    storage.Store
	Ledger   *ledger.Ledger
	Resolver *auth.Resolver
	Feed     *feed.Feed
	Metrics  *metrics.Metrics
	ETA      calculator.ETAConfig
	Logger   *slog.Logger
}

func NewOrderService(cfg OrderServiceConfig) *OrderService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Feed == nil {
		cfg.Feed = feed.New()
	}
	return &OrderService{
		store:    cfg.Store,
		ledger:   cfg.Ledger,
		resolver: cfg.Resolver,
		feed:     cfg.Feed,
		metrics:  cfg.Metrics,
		eta:      cfg.ETA,
		logger:   logger,
		now:      time.Now,
	}
}

// PlaceOrder charges the instrument and records the order in one step.
func (s *OrderService) PlaceOrder(ctx context.Context, req *connect.Request[api.PlaceOrderRequest]) (*connect.Response[api.PlaceOrderResponse], error) {
	caller, err := principalFor(ctx, s.resolver)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}

	cafeteriaID := strings.TrimSpace(req.Msg.CafeteriaID)
	if cafeteriaID == "" {
		return nil, toConnectError(s.logger, apperr.Validation("cafeteria id is required"))
	}
	if req.Msg.InstrumentID == "" {
		return nil, toConnectError(s.logger, apperr.Validation("instrument id is required"))
	}
	items, err := fromAPIOrderItems(req.Msg.Items)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}

	res, err := s.ledger.Settle(ctx, ledger.SettleRequest{
		PayerID:      caller.UserID,
		InstrumentID: req.Msg.InstrumentID,
		Credential:   req.Msg.Credential,
		Order: &models.Order{
			CafeteriaID: cafeteriaID,
			Items:       items,
			TotalAmount: models.ItemsTotal(items),
		},
		Now: s.now(),
	})
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}

	s.publish(res.Order, "placed")
	s.logger.Info("Order placed",
		"user_id", caller.UserID,
		"order_id", res.Order.ID,
		"cafeteria_id", cafeteriaID,
		"total", res.Order.TotalAmount.String(),
	)
	return connect.NewResponse(&api.PlaceOrderResponse{Order: toAPIOrder(res.Order)}), nil
}

// GetOrder returns one of the caller's orders. Staff may read any order.
func (s *OrderService) GetOrder(ctx context.Context, req *connect.Request[api.GetOrderRequest]) (*connect.Response[api.GetOrderResponse], error) {
	caller, err := principalFor(ctx, s.resolver)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}

	order, err := s.store.GetOrder(ctx, req.Msg.OrderID)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	if order.UserID != caller.UserID && !caller.IsStaff() {
		return nil, toConnectError(s.logger, apperr.Unauthorized("order %s belongs to another user", order.ID))
	}
	return connect.NewResponse(&api.GetOrderResponse{Order: toAPIOrder(order)}), nil
}

// ListMyOrders returns the caller's orders, newest first.
func (s *OrderService) ListMyOrders(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[api.ListMyOrdersResponse], error) {
	caller, err := principalFor(ctx, s.resolver)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}

	orders, err := s.store.ListOrdersByUser(ctx, caller.UserID)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	out := make([]*api.Order, len(orders))
	for i, o := range orders {
		out[i] = toAPIOrder(o)
	}
	return connect.NewResponse(&api.ListMyOrdersResponse{Orders: out}), nil
}

// AdvanceOrderStatus moves an order one step along
// pending → cooking → ready_for_pickup → completed. Staff only.
func (s *OrderService) AdvanceOrderStatus(ctx context.Context, req *connect.Request[api.AdvanceOrderStatusRequest]) (*connect.Response[api.AdvanceOrderStatusResponse], error) {
	caller, err := principalFor(ctx, s.resolver)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	if !caller.IsStaff() {
		return nil, toConnectError(s.logger, apperr.Unauthorized("only kitchen staff may advance orders"))
	}

	order, err := s.advance(ctx, req.Msg)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	s.logger.Info("Order advanced", "order_id", order.ID, "status", order.Status, "staff_id", caller.UserID)
	return connect.NewResponse(&api.AdvanceOrderStatusResponse{Order: toAPIOrder(order)}), nil
}

func (s *OrderService) advance(ctx context.Context, msg *api.AdvanceOrderStatusRequest) (*models.Order, error) {
	to := models.OrderStatus(msg.ToStatus)
	if !to.Valid() {
		return nil, apperr.Validation("unknown order status %q", msg.ToStatus)
	}

	order, err := s.store.GetOrder(ctx, msg.OrderID)
	if err != nil {
		return nil, err
	}
	from := order.Status
	if msg.FromStatus != "" {
		from = models.OrderStatus(msg.FromStatus)
		if !from.Valid() {
			return nil, apperr.Validation("unknown order status %q", msg.FromStatus)
		}
	}
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s to %s", apperr.ErrInvalidTransition, from, to)
	}

	now := s.now().Unix()
	ok, err := s.store.TransitionOrder(ctx, order.ID, from, to, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.store.GetOrder(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: order %s is %s, not %s", apperr.ErrStateConflict, order.ID, current.Status, from)
	}
	s.metrics.OrderTransition(string(to))

	// A shared meal is cooked once: siblings paid through the same split
	// session follow the order they are queued behind.
	if order.SessionID != "" {
		s.advanceSiblings(ctx, order, from, to, now)
	}

	order.Status = to
	order.UpdatedAt = now
	s.publish(order, "status:"+string(to))
	return order, nil
}

func (s *OrderService) advanceSiblings(ctx context.Context, order *models.Order, from, to models.OrderStatus, now int64) {
	queue, err := s.store.ListQueueOrders(ctx, order.CafeteriaID)
	if err != nil {
		s.logger.Warn("Failed to list session orders", "session_id", order.SessionID, "error", err)
		return
	}
	for _, o := range queue {
		if o.ID == order.ID || o.SessionID != order.SessionID || o.Status != from {
			continue
		}
		if _, err := s.store.TransitionOrder(ctx, o.ID, from, to, now); err != nil {
			s.logger.Warn("Failed to advance session order", "order_id", o.ID, "error", err)
		}
	}
}

// GetQueueSnapshot estimates every order in the cafeteria's queue.
func (s *OrderService) GetQueueSnapshot(ctx context.Context, req *connect.Request[api.GetQueueSnapshotRequest]) (*connect.Response[api.GetQueueSnapshotResponse], error) {
	if _, err := principalFor(ctx, s.resolver); err != nil {
		return nil, toConnectError(s.logger, err)
	}
	cafeteriaID := strings.TrimSpace(req.Msg.CafeteriaID)
	if cafeteriaID == "" {
		return nil, toConnectError(s.logger, apperr.Validation("cafeteria id is required"))
	}

	snapshot, err := s.snapshot(ctx, cafeteriaID)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	return connect.NewResponse(&api.GetQueueSnapshotResponse{Snapshot: snapshot}), nil
}

// WatchQueue streams a fresh snapshot on subscribe and after every change to
// the cafeteria's queue until the client goes away.
func (s *OrderService) WatchQueue(ctx context.Context, req *connect.Request[api.WatchQueueRequest], stream *connect.ServerStream[api.WatchQueueResponse]) error {
	caller, err := principalFor(ctx, s.resolver)
	if err != nil {
		return toConnectError(s.logger, err)
	}
	cafeteriaID := strings.TrimSpace(req.Msg.CafeteriaID)
	if cafeteriaID == "" {
		return toConnectError(s.logger, apperr.Validation("cafeteria id is required"))
	}

	events, cancel := s.feed.Subscribe(cafeteriaID)
	s.metrics.QueueWatchers(cafeteriaID, s.feed.Subscribers(cafeteriaID))
	defer func() {
		cancel()
		s.metrics.QueueWatchers(cafeteriaID, s.feed.Subscribers(cafeteriaID))
	}()
	s.logger.Debug("Queue watch started", "cafeteria_id", cafeteriaID, "user_id", caller.UserID)

	send := func() error {
		snapshot, err := s.snapshot(ctx, cafeteriaID)
		if err != nil {
			return toConnectError(s.logger, err)
		}
		return stream.Send(&api.WatchQueueResponse{Snapshot: snapshot})
	}
	if err := send(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-events:
			if !ok {
				return nil
			}
			if err := send(); err != nil {
				return err
			}
		}
	}
}

// snapshot builds the queue of a cafeteria. Every unfinished order is listed;
// shares of one split session that are in the same status are one meal and
// share its slot.
func (s *OrderService) snapshot(ctx context.Context, cafeteriaID string) (*api.QueueSnapshot, error) {
	orders, err := s.store.ListQueueOrders(ctx, cafeteriaID)
	if err != nil {
		return nil, err
	}

	entries := make([]calculator.QueueEntry, len(orders))
	for i, o := range orders {
		entries[i] = calculator.QueueEntry{
			OrderID:   o.ID,
			Status:    o.Status,
			ItemCount: models.ItemCount(o.Items),
			Meal:      o.SessionID,
		}
	}

	stats := s.eta.Estimate(entries)
	s.metrics.QueueLength(cafeteriaID, stats.QueueLength)
	return toAPISnapshot(cafeteriaID, stats, s.now().Unix()), nil
}

func (s *OrderService) publish(order *models.Order, reason string) {
	s.feed.Publish(feed.Event{CafeteriaID: order.CafeteriaID, OrderID: order.ID, Reason: reason})
}
