package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/canteen/internal/auth"
	"github.com/mmynk/canteen/internal/calculator"
	"github.com/mmynk/canteen/internal/feed"
	"github.com/mmynk/canteen/internal/ledger"
	"github.com/mmynk/canteen/internal/metrics"
	"github.com/mmynk/canteen/internal/middleware"
	"github.com/mmynk/canteen/internal/models"
	"github.com/mmynk/canteen/internal/storage/sqlstore"
	"github.com/mmynk/canteen/pkg/api"
	"github.com/mmynk/canteen/pkg/api/apiconnect"
	"github.com/mmynk/canteen/pkg/logging"
)

const testCafeteria = "caf-engineering"

// testEnv is a full server over a temp SQLite database. The services are
// exposed so tests can move their clocks.
type testEnv struct {
	store  *sqlstore.Store
	server *httptest.Server
	feed   *feed.Feed
	split  *SplitService
	orders *OrderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlstore.New(filepath.Join(t.TempDir(), "canteen.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	logger := logging.Discard()
	m := metrics.New(nil)
	f := feed.New()
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	resolver := auth.NewResolver(store)
	l := ledger.New(store, m, logger)

	env := &testEnv{
		store: store,
		feed:  f,
		split: NewSplitService(SplitServiceConfig{
			Store: store, Ledger: l, Resolver: resolver, Feed: f, Metrics: m,
			DefaultTTL: 30 * time.Minute, Logger: logger,
		}),
		orders: NewOrderService(OrderServiceConfig{
			Store: store, Ledger: l, Resolver: resolver, Feed: f, Metrics: m,
			ETA: calculator.DefaultETAConfig(), Logger: logger,
		}),
	}

	protected := connect.WithInterceptors(middleware.RequireAuth(jwtManager), middleware.LoggingInterceptor(logger, m))
	public := connect.WithInterceptors(middleware.OptionalAuth(jwtManager), middleware.LoggingInterceptor(logger, m))

	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewAuthServiceHandler(NewAuthService(auth.NewPasswordAuthenticator(store), jwtManager, store, logger), public))
	mux.Handle(apiconnect.NewInstrumentServiceHandler(NewInstrumentService(store, resolver, logger), protected))
	mux.Handle(apiconnect.NewOrderServiceHandler(env.orders, protected))
	mux.Handle(apiconnect.NewSplitServiceHandler(env.split, protected))
	mux.Handle(apiconnect.NewProfileServiceHandler(NewProfileService(store, resolver, logger), protected))

	env.server = httptest.NewServer(mux)
	t.Cleanup(func() {
		env.server.Close()
		store.Close()
	})
	return env
}

// testClient is one logged-in user with a client per service.
type testClient struct {
	user        *api.User
	token       string
	auth        apiconnect.AuthServiceClient
	instruments apiconnect.InstrumentServiceClient
	orders      apiconnect.OrderServiceClient
	split       apiconnect.SplitServiceClient
	profile     apiconnect.ProfileServiceClient
}

func (e *testEnv) anonymous() apiconnect.AuthServiceClient {
	return apiconnect.NewAuthServiceClient(e.server.Client(), e.server.URL)
}

func (e *testEnv) clientFor(user *api.User, token string) *testClient {
	opt := connect.WithInterceptors(middleware.BearerToken(token))
	hc := e.server.Client()
	return &testClient{
		user:        user,
		token:       token,
		auth:        apiconnect.NewAuthServiceClient(hc, e.server.URL, opt),
		instruments: apiconnect.NewInstrumentServiceClient(hc, e.server.URL, opt),
		orders:      apiconnect.NewOrderServiceClient(hc, e.server.URL, opt),
		split:       apiconnect.NewSplitServiceClient(hc, e.server.URL, opt),
		profile:     apiconnect.NewProfileServiceClient(hc, e.server.URL, opt),
	}
}

func (e *testEnv) register(t *testing.T, email string) *testClient {
	t.Helper()
	resp, err := e.anonymous().Register(context.Background(), connect.NewRequest(&api.RegisterRequest{
		Email:    email,
		Password: "password123",
	}))
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return e.clientFor(resp.Msg.User, resp.Msg.Token)
}

func (e *testEnv) registerStaff(t *testing.T, email string) *testClient {
	t.Helper()
	c := e.register(t, email)
	if _, err := e.store.SetRole(context.Background(), email, models.RoleStaff); err != nil {
		t.Fatalf("SetRole failed: %v", err)
	}
	return c
}

func (c *testClient) addInstrument(t *testing.T, typ string, amount int64, pin string) *api.Instrument {
	t.Helper()
	resp, err := c.instruments.CreateInstrument(context.Background(), connect.NewRequest(&api.CreateInstrumentRequest{
		Type:        typ,
		DisplayName: typ + " account",
		Credential:  pin,
		AmountCents: amount,
	}))
	if err != nil {
		t.Fatalf("CreateInstrument failed: %v", err)
	}
	return resp.Msg.Instrument
}

func (c *testClient) placeOrder(t *testing.T, inst *api.Instrument, pin string, items ...*api.OrderItem) *api.Order {
	t.Helper()
	resp, err := c.orders.PlaceOrder(context.Background(), connect.NewRequest(&api.PlaceOrderRequest{
		CafeteriaID:  testCafeteria,
		Items:        items,
		InstrumentID: inst.ID,
		Credential:   pin,
	}))
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	return resp.Msg.Order
}

func (c *testClient) balance(t *testing.T, id string) int64 {
	t.Helper()
	resp, err := c.instruments.ListInstruments(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		t.Fatalf("ListInstruments failed: %v", err)
	}
	for _, inst := range resp.Msg.Instruments {
		if inst.ID == id {
			if inst.BalanceCents != nil {
				return *inst.BalanceCents
			}
			return *inst.CreditLimitCents
		}
	}
	t.Fatalf("instrument %s not listed", id)
	return 0
}

// wantKind fails unless err is a Connect error carrying the given kind.
func wantKind(t *testing.T, err error, code connect.Code, kind string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		t.Fatalf("expected connect error, got %T: %v", err, err)
	}
	if connectErr.Code() != code {
		t.Errorf("code = %v, want %v (%v)", connectErr.Code(), code, err)
	}
	if got := api.ErrorKind(err); got != kind {
		t.Errorf("kind = %q, want %q (%v)", got, kind, err)
	}
}

func meal(name string, qty int32, price int64) *api.OrderItem {
	return &api.OrderItem{Name: name, Quantity: qty, UnitPriceCents: price}
}
