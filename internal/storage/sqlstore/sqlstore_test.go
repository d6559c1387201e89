package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mmynk/canteen/internal/apperr"
	"github.com/mmynk/canteen/internal/models"
	"github.com/mmynk/canteen/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func createUser(t *testing.T, store *Store, email string) *models.User {
	t.Helper()
	user := models.NewUser(email, email, "hash")
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", email, err)
	}
	return user
}

func createWallet(t *testing.T, store *Store, owner string, balance models.Cents) *models.Instrument {
	t.Helper()
	inst := &models.Instrument{
		OwnerID:     owner,
		Type:        models.InstrumentEWallet,
		DisplayName: "Wallet",
		Balance:     &balance,
		CreatedAt:   time.Now().Unix(),
	}
	if err := store.CreateInstrument(context.Background(), inst); err != nil {
		t.Fatalf("CreateInstrument failed: %v", err)
	}
	return inst
}

func TestUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, store, "Alice@Example.com")

	t.Run("email is normalized", func(t *testing.T) {
		got, err := store.GetUserByEmail(ctx, "  ALICE@example.com ")
		if err != nil {
			t.Fatalf("GetUserByEmail failed: %v", err)
		}
		if got == nil || got.ID != alice.ID {
			t.Fatalf("GetUserByEmail = %+v, want %s", got, alice.ID)
		}
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		dup := models.NewUser("alice@example.com", "Other", "hash")
		if err := store.CreateUser(ctx, dup); err == nil {
			t.Error("expected duplicate email to fail")
		}
	})

	t.Run("unknown user returns nil", func(t *testing.T) {
		got, err := store.GetUserByID(ctx, "missing")
		if err != nil || got != nil {
			t.Errorf("GetUserByID(missing) = %v, %v; want nil, nil", got, err)
		}
		got, err = store.GetUserByEmail(ctx, "nobody@example.com")
		if err != nil || got != nil {
			t.Errorf("GetUserByEmail(nobody) = %v, %v; want nil, nil", got, err)
		}
	})

	t.Run("aliases resolve to owner", func(t *testing.T) {
		if err := store.AddAlias(ctx, alice.ID, "A.Lee@Campus.edu"); err != nil {
			t.Fatalf("AddAlias failed: %v", err)
		}
		// Re-adding is a no-op.
		if err := store.AddAlias(ctx, alice.ID, "a.lee@campus.edu"); err != nil {
			t.Fatalf("AddAlias (repeat) failed: %v", err)
		}

		got, err := store.GetUserByEmail(ctx, "a.lee@campus.edu")
		if err != nil || got == nil || got.ID != alice.ID {
			t.Fatalf("alias lookup = %v, %v", got, err)
		}
		if len(got.Aliases) != 1 || got.Aliases[0] != "a.lee@campus.edu" {
			t.Errorf("Aliases = %v", got.Aliases)
		}
	})

	t.Run("alias conflicts", func(t *testing.T) {
		bob := createUser(t, store, "bob@example.com")
		if err := store.AddAlias(ctx, bob.ID, "alice@example.com"); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("alias of primary email: got %v, want validation error", err)
		}
		if err := store.AddAlias(ctx, bob.ID, "a.lee@campus.edu"); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("alias owned by another user: got %v, want validation error", err)
		}
	})

	t.Run("ResolveIdentifiers omits unknown", func(t *testing.T) {
		got, err := store.ResolveIdentifiers(ctx, []string{"ALICE@example.com", "a.lee@campus.edu", "ghost@example.com"})
		if err != nil {
			t.Fatalf("ResolveIdentifiers failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("got %d users, want 2", len(got))
		}
		for _, key := range []string{"alice@example.com", "a.lee@campus.edu"} {
			if got[key] == nil || got[key].ID != alice.ID {
				t.Errorf("identifier %s resolved to %v", key, got[key])
			}
		}
	})

	t.Run("SetRole", func(t *testing.T) {
		got, err := store.SetRole(ctx, "Alice@example.com", models.RoleStaff)
		if err != nil {
			t.Fatalf("SetRole failed: %v", err)
		}
		if got.Role != models.RoleStaff {
			t.Errorf("Role = %s, want staff", got.Role)
		}
		if _, err := store.SetRole(ctx, "ghost@example.com", models.RoleStaff); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("SetRole(ghost): got %v, want not found", err)
		}
	})
}

func TestDebitInstrument(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := createUser(t, store, "payer@example.com")

	t.Run("debits balance", func(t *testing.T) {
		inst := createWallet(t, store, user.ID, 5000)
		got, err := store.DebitInstrument(ctx, inst.ID, 1517)
		if err != nil {
			t.Fatalf("DebitInstrument failed: %v", err)
		}
		if got.Balance == nil || *got.Balance != 3483 {
			t.Errorf("balance = %v, want 3483", got.Balance)
		}
	})

	t.Run("debits credit limit", func(t *testing.T) {
		limit := models.Cents(10000)
		card := &models.Instrument{
			OwnerID:     user.ID,
			Type:        models.InstrumentCard,
			DisplayName: "Visa",
			CreditLimit: &limit,
		}
		if err := store.CreateInstrument(ctx, card); err != nil {
			t.Fatalf("CreateInstrument failed: %v", err)
		}
		got, err := store.DebitInstrument(ctx, card.ID, 2500)
		if err != nil {
			t.Fatalf("DebitInstrument failed: %v", err)
		}
		if got.Balance != nil || got.CreditLimit == nil || *got.CreditLimit != 7500 {
			t.Errorf("got balance=%v credit=%v, want credit 7500", got.Balance, got.CreditLimit)
		}
	})

	t.Run("insufficient funds leaves balance unchanged", func(t *testing.T) {
		inst := createWallet(t, store, user.ID, 10000)
		_, err := store.DebitInstrument(ctx, inst.ID, 12000)
		if !errors.Is(err, apperr.ErrInsufficientFunds) {
			t.Fatalf("got %v, want insufficient funds", err)
		}
		after, err := store.GetInstrument(ctx, inst.ID)
		if err != nil {
			t.Fatalf("GetInstrument failed: %v", err)
		}
		if *after.Balance != 10000 {
			t.Errorf("balance = %s, want RM100.00", *after.Balance)
		}
	})

	t.Run("exact balance drains to zero", func(t *testing.T) {
		inst := createWallet(t, store, user.ID, 800)
		got, err := store.DebitInstrument(ctx, inst.ID, 800)
		if err != nil {
			t.Fatalf("DebitInstrument failed: %v", err)
		}
		if *got.Balance != 0 {
			t.Errorf("balance = %d, want 0", *got.Balance)
		}
	})

	t.Run("missing instrument", func(t *testing.T) {
		_, err := store.DebitInstrument(ctx, "missing", 100)
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("got %v, want not found", err)
		}
	})

	t.Run("concurrent debits never overdraw", func(t *testing.T) {
		inst := createWallet(t, store, user.ID, 1000)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.DebitInstrument(ctx, inst.ID, 300)
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				} else if !errors.Is(err, apperr.ErrInsufficientFunds) {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if succeeded != 3 {
			t.Errorf("succeeded = %d, want 3", succeeded)
		}
		after, err := store.GetInstrument(ctx, inst.ID)
		if err != nil {
			t.Fatalf("GetInstrument failed: %v", err)
		}
		if *after.Balance != 100 {
			t.Errorf("balance = %d, want 100", *after.Balance)
		}
	})
}

func TestDefaultInstrument(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := createUser(t, store, "owner@example.com")

	for _, name := range []string{"First", "Second"} {
		bal := models.Cents(100)
		inst := &models.Instrument{OwnerID: user.ID, Type: models.InstrumentFPX, DisplayName: name, IsDefault: true, Balance: &bal}
		if err := store.CreateInstrument(ctx, inst); err != nil {
			t.Fatalf("CreateInstrument failed: %v", err)
		}
	}

	list, err := store.ListInstruments(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListInstruments failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d instruments, want 2", len(list))
	}
	if !list[0].IsDefault || list[0].DisplayName != "Second" || list[1].IsDefault {
		t.Errorf("expected only Second to be default, got %+v, %+v", list[0], list[1])
	}
}

func TestOrders(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := createUser(t, store, "diner@example.com")
	wallet := createWallet(t, store, user.ID, 100000)

	base := time.Now()
	place := func(cafeteriaID string, queuedAt time.Time, items ...models.OrderItem) *models.Order {
		t.Helper()
		res, err := store.Settle(ctx, &storage.Settlement{
			InstrumentID: wallet.ID,
			Amount:       models.ItemsTotal(items),
			Order:        &models.Order{UserID: user.ID, CafeteriaID: cafeteriaID, Items: items},
			Now:          queuedAt.Unix(),
			QueuedAt:     queuedAt.UnixNano(),
		})
		if err != nil {
			t.Fatalf("Settle failed: %v", err)
		}
		return res.Order
	}

	first := place("caf-1", base, models.OrderItem{Name: "Nasi Lemak", Quantity: 2, UnitPrice: 650})
	second := place("caf-1", base.Add(time.Millisecond), models.OrderItem{Name: "Teh Tarik", Quantity: 1, UnitPrice: 250})

	t.Run("GetOrder returns items", func(t *testing.T) {
		got, err := store.GetOrder(ctx, first.ID)
		if err != nil {
			t.Fatalf("GetOrder failed: %v", err)
		}
		if got.Status != models.OrderPending || got.TotalAmount != 1300 || got.PaidAt == 0 {
			t.Errorf("unexpected order: %+v", got)
		}
		if len(got.Items) != 1 || got.Items[0].Quantity != 2 {
			t.Errorf("Items = %+v", got.Items)
		}
	})

	t.Run("queue is FIFO", func(t *testing.T) {
		queue, err := store.ListQueueOrders(ctx, "caf-1")
		if err != nil {
			t.Fatalf("ListQueueOrders failed: %v", err)
		}
		if len(queue) != 2 || queue[0].ID != first.ID || queue[1].ID != second.ID {
			t.Errorf("queue order wrong: %v", queue)
		}
	})

	t.Run("conditional transition", func(t *testing.T) {
		now := time.Now().Unix()
		ok, err := store.TransitionOrder(ctx, first.ID, models.OrderPending, models.OrderCooking, now)
		if err != nil || !ok {
			t.Fatalf("TransitionOrder = %v, %v; want true", ok, err)
		}
		// Second writer with a stale expectation loses.
		ok, err = store.TransitionOrder(ctx, first.ID, models.OrderPending, models.OrderCooking, now)
		if err != nil || ok {
			t.Errorf("stale TransitionOrder = %v, %v; want false", ok, err)
		}
	})

	t.Run("completed orders leave the queue", func(t *testing.T) {
		now := time.Now().Unix()
		for _, step := range [][2]models.OrderStatus{
			{models.OrderCooking, models.OrderReadyForPickup},
			{models.OrderReadyForPickup, models.OrderCompleted},
		} {
			if ok, err := store.TransitionOrder(ctx, first.ID, step[0], step[1], now); err != nil || !ok {
				t.Fatalf("TransitionOrder %s->%s = %v, %v", step[0], step[1], ok, err)
			}
		}
		queue, err := store.ListQueueOrders(ctx, "caf-1")
		if err != nil {
			t.Fatalf("ListQueueOrders failed: %v", err)
		}
		if len(queue) != 1 || queue[0].ID != second.ID {
			t.Errorf("queue = %v, want only second order", queue)
		}

		mine, err := store.ListOrdersByUser(ctx, user.ID)
		if err != nil {
			t.Fatalf("ListOrdersByUser failed: %v", err)
		}
		if len(mine) != 2 || mine[0].ID != second.ID {
			t.Errorf("ListOrdersByUser not newest first: %v", mine)
		}
	})

	t.Run("queue position follows the settlement clock", func(t *testing.T) {
		late := place("caf-2", base.Add(time.Minute), models.OrderItem{Name: "Roti Canai", Quantity: 1, UnitPrice: 200})
		early := place("caf-2", base.Add(-time.Minute), models.OrderItem{Name: "Milo Ais", Quantity: 1, UnitPrice: 300})

		queue, err := store.ListQueueOrders(ctx, "caf-2")
		if err != nil {
			t.Fatalf("ListQueueOrders failed: %v", err)
		}
		if len(queue) != 2 || queue[0].ID != early.ID || queue[1].ID != late.ID {
			t.Errorf("queue = %v, want early order first", queue)
		}
	})
}

func newSession(initiator *models.User, invitee *models.User, expiresAt int64) *models.SplitSession {
	return &models.SplitSession{
		InitiatorUserID: initiator.ID,
		CafeteriaID:     "caf-1",
		Items: []models.SplitItem{
			{Name: "Family Set", Quantity: 1, UnitPrice: 4550, AssignedTo: []string{initiator.Email, invitee.Email}},
		},
		TotalAmount: 4550,
		SplitMethod: models.SplitEqual,
		Status:      models.SessionActive,
		CreatedAt:   time.Now().Unix(),
		ExpiresAt:   expiresAt,
		Participants: []models.Participant{
			{Identifier: initiator.Email, UserID: initiator.ID, AmountDue: 2275, Status: models.ParticipantAccepted},
			{Identifier: invitee.Email, UserID: invitee.ID, AmountDue: 2275, Status: models.ParticipantPending},
		},
	}
}

func TestSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice@example.com")
	bob := createUser(t, store, "bob@example.com")

	t.Run("round trip", func(t *testing.T) {
		session := newSession(alice, bob, 0)
		if err := store.CreateSession(ctx, session); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}

		got, err := store.GetSession(ctx, session.ID)
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if len(got.Participants) != 2 || got.Participants[0].UserID != alice.ID || got.Participants[1].Position != 1 {
			t.Errorf("participants = %+v", got.Participants)
		}
		if len(got.Items) != 1 || len(got.Items[0].AssignedTo) != 2 {
			t.Errorf("items = %+v", got.Items)
		}

		invites, err := store.ListParticipantsByIdentifiers(ctx, []string{"BOB@example.com"})
		if err != nil {
			t.Fatalf("ListParticipantsByIdentifiers failed: %v", err)
		}
		if len(invites) != 1 || invites[0].SessionID != session.ID {
			t.Errorf("invites = %+v", invites)
		}
	})

	t.Run("resolve once", func(t *testing.T) {
		session := newSession(alice, bob, 0)
		if err := store.CreateSession(ctx, session); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		pid := session.Participants[1].ID
		now := time.Now().Unix()

		ok, err := store.ResolveParticipant(ctx, pid, models.ParticipantDeclined, now)
		if err != nil || !ok {
			t.Fatalf("ResolveParticipant = %v, %v", ok, err)
		}
		ok, err = store.ResolveParticipant(ctx, pid, models.ParticipantAccepted, now)
		if err != nil || ok {
			t.Errorf("second ResolveParticipant = %v, %v; want false", ok, err)
		}
		p, err := store.GetParticipant(ctx, pid)
		if err != nil {
			t.Fatalf("GetParticipant failed: %v", err)
		}
		if p.Status != models.ParticipantDeclined {
			t.Errorf("status = %s, want declined", p.Status)
		}
	})

	t.Run("expired session refuses writes", func(t *testing.T) {
		past := time.Now().Add(-time.Minute).Unix()
		session := newSession(alice, bob, past)
		if err := store.CreateSession(ctx, session); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		now := time.Now().Unix()

		if ok, _ := store.ResolveParticipant(ctx, session.Participants[1].ID, models.ParticipantAccepted, now); ok {
			t.Error("resolved participant of expired session")
		}
		if ok, _ := store.CancelSession(ctx, session.ID, now); ok {
			t.Error("cancelled expired session")
		}
		ok, err := store.ExpireSession(ctx, session.ID, now)
		if err != nil || !ok {
			t.Fatalf("ExpireSession = %v, %v", ok, err)
		}
		got, _ := store.GetSession(ctx, session.ID)
		if got.Status != models.SessionExpired {
			t.Errorf("status = %s, want expired", got.Status)
		}
	})

	t.Run("cancel", func(t *testing.T) {
		session := newSession(alice, bob, 0)
		if err := store.CreateSession(ctx, session); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		now := time.Now().Unix()
		if ok, err := store.CancelSession(ctx, session.ID, now); err != nil || !ok {
			t.Fatalf("CancelSession = %v, %v", ok, err)
		}
		if ok, _ := store.CancelSession(ctx, session.ID, now); ok {
			t.Error("cancelled twice")
		}
		if ok, _ := store.ExpireSession(ctx, session.ID, now); ok {
			t.Error("expired a session that never expires")
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := store.GetSession(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("GetSession: got %v, want not found", err)
		}
		if _, err := store.GetParticipant(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("GetParticipant: got %v, want not found", err)
		}
	})
}

func TestSettleParticipant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice@example.com")
	bob := createUser(t, store, "bob@example.com")
	aliceWallet := createWallet(t, store, alice.ID, 10000)
	bobWallet := createWallet(t, store, bob.ID, 10000)

	session := newSession(alice, bob, 0)
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	initiator, invitee := session.Participants[0], session.Participants[1]

	pay := func(p models.Participant, wallet *models.Instrument, userID string) (*storage.SettlementResult, error) {
		return store.Settle(ctx, &storage.Settlement{
			InstrumentID:  wallet.ID,
			Amount:        p.AmountDue,
			ParticipantID: p.ID,
			Order: &models.Order{
				UserID:      userID,
				CafeteriaID: session.CafeteriaID,
				SessionID:   session.ID,
				Items:       models.OrderItems(session.Items),
			},
			Now: time.Now().Unix(),
		})
	}

	t.Run("pending participant cannot pay and nothing is debited", func(t *testing.T) {
		_, err := pay(invitee, bobWallet, bob.ID)
		if !errors.Is(err, apperr.ErrStateConflict) {
			t.Fatalf("got %v, want state conflict", err)
		}
		after, _ := store.GetInstrument(ctx, bobWallet.ID)
		if *after.Balance != 10000 {
			t.Errorf("balance = %d, want 10000 after rollback", *after.Balance)
		}
		orders, _ := store.ListOrdersByUser(ctx, bob.ID)
		if len(orders) != 0 {
			t.Errorf("orders = %d, want 0 after rollback", len(orders))
		}
	})

	t.Run("initiator pays, session stays active", func(t *testing.T) {
		res, err := pay(initiator, aliceWallet, alice.ID)
		if err != nil {
			t.Fatalf("Settle failed: %v", err)
		}
		if res.SessionCompleted {
			t.Error("session completed with an unpaid participant")
		}
		if *res.Instrument.Balance != 10000-2275 {
			t.Errorf("balance = %d", *res.Instrument.Balance)
		}
		p, _ := store.GetParticipant(ctx, initiator.ID)
		if p.Status != models.ParticipantPaid || p.OrderID != res.Order.ID {
			t.Errorf("participant = %+v", p)
		}
	})

	t.Run("last payment completes session", func(t *testing.T) {
		now := time.Now().Unix()
		if ok, err := store.ResolveParticipant(ctx, invitee.ID, models.ParticipantAccepted, now); err != nil || !ok {
			t.Fatalf("ResolveParticipant = %v, %v", ok, err)
		}
		res, err := pay(invitee, bobWallet, bob.ID)
		if err != nil {
			t.Fatalf("Settle failed: %v", err)
		}
		if !res.SessionCompleted {
			t.Error("expected session to complete")
		}
		got, _ := store.GetSession(ctx, session.ID)
		if got.Status != models.SessionCompleted {
			t.Errorf("status = %s, want completed", got.Status)
		}
	})

	t.Run("second payment is refused", func(t *testing.T) {
		_, err := pay(invitee, bobWallet, bob.ID)
		if !errors.Is(err, apperr.ErrStateConflict) {
			t.Fatalf("got %v, want state conflict", err)
		}
		after, _ := store.GetInstrument(ctx, bobWallet.ID)
		if *after.Balance != 10000-2275 {
			t.Errorf("balance = %d, want single debit", *after.Balance)
		}
	})
}

func TestPreferences(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := createUser(t, store, "prefs@example.com")

	empty, err := store.GetPreferences(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetPreferences failed: %v", err)
	}
	if len(empty.Favourites) != 0 {
		t.Errorf("Favourites = %v, want empty", empty.Favourites)
	}

	for _, favs := range [][]string{{"Nasi Lemak"}, {"Roti Canai", "Teh Tarik"}} {
		if err := store.SavePreferences(ctx, &models.Preferences{UserID: user.ID, Favourites: favs, UpdatedAt: 1}); err != nil {
			t.Fatalf("SavePreferences failed: %v", err)
		}
	}
	got, err := store.GetPreferences(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetPreferences failed: %v", err)
	}
	if len(got.Favourites) != 2 || got.Favourites[1] != "Teh Tarik" {
		t.Errorf("Favourites = %v", got.Favourites)
	}
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	if got := pg.rebind("SELECT 1 WHERE a = ? AND b IN (?, ?)"); got != "SELECT 1 WHERE a = $1 AND b IN ($2, $3)" {
		t.Errorf("rebind = %q", got)
	}
	lite := &Store{driver: DriverSQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
}
