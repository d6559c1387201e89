package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/canteen/pkg/api"
	"github.com/mmynk/canteen/pkg/api/apiconnect"
)

func snapshot(t *testing.T, c *testClient) *api.QueueSnapshot {
	t.Helper()
	resp, err := c.orders.GetQueueSnapshot(context.Background(), connect.NewRequest(&api.GetQueueSnapshotRequest{CafeteriaID: testCafeteria}))
	if err != nil {
		t.Fatalf("GetQueueSnapshot failed: %v", err)
	}
	return resp.Msg.Snapshot
}

func advance(c *testClient, orderID, from, to string) (*api.Order, error) {
	resp, err := c.orders.AdvanceOrderStatus(context.Background(), connect.NewRequest(&api.AdvanceOrderStatusRequest{
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
	}))
	if err != nil {
		return nil, err
	}
	return resp.Msg.Order, nil
}

func TestPlaceOrder(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")
	bob := env.register(t, "bob@example.com")
	ctx := context.Background()

	bank := alice.addInstrument(t, "fpx", 10000, "1234")
	card := alice.addInstrument(t, "card", 2000, "")

	place := func(c *testClient, inst *api.Instrument, pin string, items ...*api.OrderItem) error {
		_, err := c.orders.PlaceOrder(ctx, connect.NewRequest(&api.PlaceOrderRequest{
			CafeteriaID: testCafeteria, Items: items, InstrumentID: inst.ID, Credential: pin,
		}))
		return err
	}

	t.Run("charge above balance is rejected", func(t *testing.T) {
		err := place(alice, bank, "1234", meal("Banquet", 1, 12000))
		wantKind(t, err, connect.CodeFailedPrecondition, "InsufficientFunds")
		if got := alice.balance(t, bank.ID); got != 10000 {
			t.Errorf("balance = %d, want 10000", got)
		}
		orders, err := alice.orders.ListMyOrders(ctx, connect.NewRequest(&emptypb.Empty{}))
		if err != nil {
			t.Fatalf("ListMyOrders failed: %v", err)
		}
		if len(orders.Msg.Orders) != 0 {
			t.Errorf("got %d orders, want 0", len(orders.Msg.Orders))
		}
	})

	t.Run("wrong pin", func(t *testing.T) {
		err := place(alice, bank, "9999", meal("Roti Canai", 2, 250))
		wantKind(t, err, connect.CodePermissionDenied, "CredentialMismatch")
	})

	t.Run("instrument of another user", func(t *testing.T) {
		err := place(bob, card, "", meal("Roti Canai", 2, 250))
		wantKind(t, err, connect.CodePermissionDenied, "AuthorizationError")
	})

	t.Run("unknown instrument", func(t *testing.T) {
		err := place(alice, &api.Instrument{ID: "missing"}, "", meal("Roti Canai", 2, 250))
		wantKind(t, err, connect.CodeNotFound, "NotFound")
	})

	t.Run("invalid items", func(t *testing.T) {
		err := place(alice, bank, "1234", meal("Roti Canai", 0, 250))
		wantKind(t, err, connect.CodeInvalidArgument, "ValidationError")
		err = place(alice, bank, "1234")
		wantKind(t, err, connect.CodeInvalidArgument, "ValidationError")
	})

	t.Run("success", func(t *testing.T) {
		order := alice.placeOrder(t, bank, "1234", meal("Roti Canai", 2, 250), meal("Milo Ais", 1, 450))
		if order.TotalCents != 950 || order.Status != "pending" || order.InstrumentID != bank.ID || order.PaidAt == 0 {
			t.Errorf("unexpected order: %+v", order)
		}
		if got := alice.balance(t, bank.ID); got != 9050 {
			t.Errorf("balance = %d, want 9050", got)
		}

		got, err := alice.orders.GetOrder(ctx, connect.NewRequest(&api.GetOrderRequest{OrderID: order.ID}))
		if err != nil {
			t.Fatalf("GetOrder failed: %v", err)
		}
		if len(got.Msg.Order.Items) != 2 {
			t.Errorf("got %d items, want 2", len(got.Msg.Order.Items))
		}

		_, err = bob.orders.GetOrder(ctx, connect.NewRequest(&api.GetOrderRequest{OrderID: order.ID}))
		wantKind(t, err, connect.CodePermissionDenied, "AuthorizationError")
	})

	t.Run("card needs no pin", func(t *testing.T) {
		alice.placeOrder(t, card, "", meal("Nasi Goreng", 1, 800))
		if got := alice.balance(t, card.ID); got != 1200 {
			t.Errorf("credit left = %d, want 1200", got)
		}
	})
}

func TestUnauthenticated(t *testing.T) {
	env := newTestEnv(t)
	client := apiconnect.NewOrderServiceClient(http.DefaultClient, env.server.URL)

	_, err := client.ListMyOrders(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("code = %v, want unauthenticated", connect.CodeOf(err))
	}
}

func TestQueueSnapshot(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")
	bank := alice.addInstrument(t, "fpx", 100000, "1234")

	empty := snapshot(t, alice)
	if empty.QueueLength != 0 || len(empty.PerOrderEta) != 0 || empty.AverageWaitMinutes != 0 {
		t.Errorf("empty snapshot = %+v", empty)
	}

	var ids []string
	for i := 0; i < 4; i++ {
		ids = append(ids, alice.placeOrder(t, bank, "1234", meal("Mee Goreng", 1, 700)).ID)
	}

	snap := snapshot(t, alice)
	if snap.QueueLength != 4 {
		t.Fatalf("QueueLength = %d, want 4", snap.QueueLength)
	}
	wantETA := []float64{5, 15, 25, 35}
	for i, eta := range snap.PerOrderEta {
		if eta.OrderID != ids[i] || eta.Rank != int32(i) || eta.EtaMinutes != wantETA[i] {
			t.Errorf("entry %d = %+v, want order %s rank %d eta %v", i, eta, ids[i], i, wantETA[i])
		}
	}
	if snap.AverageWaitMinutes != 20 {
		t.Errorf("AverageWaitMinutes = %v, want 20", snap.AverageWaitMinutes)
	}

	t.Run("missing cafeteria", func(t *testing.T) {
		_, err := alice.orders.GetQueueSnapshot(context.Background(), connect.NewRequest(&api.GetQueueSnapshotRequest{}))
		wantKind(t, err, connect.CodeInvalidArgument, "ValidationError")
	})

	t.Run("bulk order slows the queue behind it", func(t *testing.T) {
		staff := env.registerStaff(t, "kitchen@example.com")
		for _, id := range ids {
			for _, step := range [][2]string{{"pending", "cooking"}, {"cooking", "ready_for_pickup"}, {"ready_for_pickup", "completed"}} {
				if _, err := advance(staff, id, step[0], step[1]); err != nil {
					t.Fatalf("advance %s failed: %v", id, err)
				}
			}
		}
		alice.placeOrder(t, bank, "1234", meal("Catering Box", 11, 500))
		alice.placeOrder(t, bank, "1234", meal("Mee Goreng", 1, 700))

		snap := snapshot(t, alice)
		if snap.QueueLength != 2 {
			t.Fatalf("QueueLength = %d, want 2", snap.QueueLength)
		}
		if !snap.PerOrderEta[0].Bulk || snap.PerOrderEta[1].EtaMinutes != 20 {
			t.Errorf("entries = %+v, %+v", snap.PerOrderEta[0], snap.PerOrderEta[1])
		}
	})
}

func TestAdvanceOrderStatus(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")
	staff := env.registerStaff(t, "kitchen@example.com")
	bank := alice.addInstrument(t, "fpx", 10000, "1234")
	order := alice.placeOrder(t, bank, "1234", meal("Laksa", 1, 900))

	t.Run("diners cannot advance", func(t *testing.T) {
		_, err := advance(alice, order.ID, "", "cooking")
		wantKind(t, err, connect.CodePermissionDenied, "AuthorizationError")
	})

	t.Run("skipping a step", func(t *testing.T) {
		_, err := advance(staff, order.ID, "", "ready_for_pickup")
		wantKind(t, err, connect.CodeFailedPrecondition, "StateConflict")
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := advance(staff, order.ID, "", "burnt")
		wantKind(t, err, connect.CodeInvalidArgument, "ValidationError")
	})

	t.Run("forward", func(t *testing.T) {
		got, err := advance(staff, order.ID, "pending", "cooking")
		if err != nil {
			t.Fatalf("advance failed: %v", err)
		}
		if got.Status != "cooking" {
			t.Errorf("status = %s, want cooking", got.Status)
		}
	})

	t.Run("stale observation", func(t *testing.T) {
		_, err := advance(staff, order.ID, "pending", "cooking")
		wantKind(t, err, connect.CodeFailedPrecondition, "StateConflict")
	})

	t.Run("staff can read any order", func(t *testing.T) {
		resp, err := staff.orders.GetOrder(context.Background(), connect.NewRequest(&api.GetOrderRequest{OrderID: order.ID}))
		if err != nil {
			t.Fatalf("GetOrder failed: %v", err)
		}
		if resp.Msg.Order.Status != "cooking" {
			t.Errorf("status = %s, want cooking", resp.Msg.Order.Status)
		}
	})

	t.Run("ready orders are reported ready", func(t *testing.T) {
		if _, err := advance(staff, order.ID, "", "ready_for_pickup"); err != nil {
			t.Fatalf("advance failed: %v", err)
		}
		snap := snapshot(t, alice)
		if snap.QueueLength != 0 || len(snap.PerOrderEta) != 1 || !snap.PerOrderEta[0].Ready || snap.PerOrderEta[0].Rank != -1 {
			t.Errorf("snapshot = %+v", snap)
		}
	})
}

func TestSplitOrdersQueueAsOneMeal(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")
	bob := env.register(t, "bob@example.com")
	staff := env.registerStaff(t, "kitchen@example.com")
	aliceWallet := alice.addInstrument(t, "ewallet", 10000, "1111")
	bobWallet := bob.addInstrument(t, "ewallet", 10000, "2222")

	session := createSession(t, alice, &api.CreateSessionRequest{
		TotalCents:             3000,
		ParticipantIdentifiers: []string{"bob@example.com"},
	})
	if _, err := respond(bob, session.Participants[1].ID, "accept"); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	aliceOrder, err := payShare(alice, session.Participants[0].ID, aliceWallet, "1111")
	if err != nil {
		t.Fatalf("PayShare failed: %v", err)
	}
	bobOrder, err := payShare(bob, session.Participants[1].ID, bobWallet, "2222")
	if err != nil {
		t.Fatalf("PayShare failed: %v", err)
	}

	snap := snapshot(t, alice)
	if snap.QueueLength != 2 || len(snap.PerOrderEta) != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
	first, second := snap.PerOrderEta[0], snap.PerOrderEta[1]
	if first.OrderID != aliceOrder.ID || second.OrderID != bobOrder.ID {
		t.Errorf("perOrderEta = %s, %s; want alice then bob", first.OrderID, second.OrderID)
	}
	if second.Rank != first.Rank || second.EtaMinutes != first.EtaMinutes {
		t.Errorf("shares of one meal differ: %+v vs %+v", first, second)
	}

	if _, err := advance(staff, aliceOrder.ID, "pending", "cooking"); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	resp, err := bob.orders.GetOrder(context.Background(), connect.NewRequest(&api.GetOrderRequest{OrderID: bobOrder.ID}))
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if resp.Msg.Order.Status != "cooking" {
		t.Errorf("sibling status = %s, want cooking", resp.Msg.Order.Status)
	}
}

func TestSplitShareQueuedAfterKitchenStarted(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")
	bob := env.register(t, "bob@example.com")
	staff := env.registerStaff(t, "kitchen@example.com")
	aliceWallet := alice.addInstrument(t, "ewallet", 10000, "1111")
	bobWallet := bob.addInstrument(t, "ewallet", 10000, "2222")

	session := createSession(t, alice, &api.CreateSessionRequest{
		TotalCents:             3000,
		ParticipantIdentifiers: []string{"bob@example.com"},
	})
	if _, err := respond(bob, session.Participants[1].ID, "accept"); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	aliceOrder, err := payShare(alice, session.Participants[0].ID, aliceWallet, "1111")
	if err != nil {
		t.Fatalf("PayShare failed: %v", err)
	}
	if _, err := advance(staff, aliceOrder.ID, "pending", "cooking"); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	bobOrder, err := payShare(bob, session.Participants[1].ID, bobWallet, "2222")
	if err != nil {
		t.Fatalf("PayShare failed: %v", err)
	}
	if bobOrder.Status != "pending" {
		t.Fatalf("late share status = %s, want pending", bobOrder.Status)
	}
	if _, err := advance(staff, aliceOrder.ID, "cooking", "ready_for_pickup"); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	snap := snapshot(t, bob)
	if snap.QueueLength != 1 {
		t.Errorf("QueueLength = %d, want 1", snap.QueueLength)
	}
	var found bool
	for _, e := range snap.PerOrderEta {
		switch e.OrderID {
		case aliceOrder.ID:
			if !e.Ready {
				t.Errorf("alice's share should be ready: %+v", e)
			}
		case bobOrder.ID:
			found = true
			if e.Ready || e.Rank != 0 || e.EtaMinutes != 5 {
				t.Errorf("bob's share = %+v, want rank 0 eta 5", e)
			}
		}
	}
	if !found {
		t.Errorf("bob's order %s missing from perOrderEta: %+v", bobOrder.ID, snap.PerOrderEta)
	}
	if snap.AverageWaitMinutes != 5 {
		t.Errorf("AverageWaitMinutes = %v, want 5", snap.AverageWaitMinutes)
	}
}

func TestWatchQueue(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")
	bank := alice.addInstrument(t, "fpx", 10000, "1234")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := alice.orders.WatchQueue(ctx, connect.NewRequest(&api.WatchQueueRequest{CafeteriaID: testCafeteria}))
	if err != nil {
		t.Fatalf("WatchQueue failed: %v", err)
	}
	defer stream.Close()

	if !stream.Receive() {
		t.Fatalf("no initial snapshot: %v", stream.Err())
	}
	if got := stream.Msg().Snapshot.QueueLength; got != 0 {
		t.Errorf("initial QueueLength = %d, want 0", got)
	}

	order := alice.placeOrder(t, bank, "1234", meal("Char Kway Teow", 1, 850))

	if !stream.Receive() {
		t.Fatalf("no update after placing an order: %v", stream.Err())
	}
	snap := stream.Msg().Snapshot
	if snap.QueueLength != 1 || snap.PerOrderEta[0].OrderID != order.ID {
		t.Errorf("update = %+v", snap)
	}
}
