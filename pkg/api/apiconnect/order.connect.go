package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/canteen/pkg/api"
)

// OrderServiceName is the fully-qualified name of the OrderService service.
const OrderServiceName = "canteen.v1.OrderService"

const (
	OrderServicePlaceOrderProcedure         = "/canteen.v1.OrderService/PlaceOrder"
	OrderServiceGetOrderProcedure           = "/canteen.v1.OrderService/GetOrder"
	OrderServiceListMyOrdersProcedure       = "/canteen.v1.OrderService/ListMyOrders"
	OrderServiceAdvanceOrderStatusProcedure = "/canteen.v1.OrderService/AdvanceOrderStatus"
	OrderServiceGetQueueSnapshotProcedure   = "/canteen.v1.OrderService/GetQueueSnapshot"
	OrderServiceWatchQueueProcedure         = "/canteen.v1.OrderService/WatchQueue"
)

// OrderServiceClient is a client for the canteen.v1.OrderService service.
type OrderServiceClient interface {
	PlaceOrder(context.Context, *connect.Request[api.PlaceOrderRequest]) (*connect.Response[api.PlaceOrderResponse], error)
	GetOrder(context.Context, *connect.Request[api.GetOrderRequest]) (*connect.Response[api.GetOrderResponse], error)
	ListMyOrders(context.Context, *connect.Request[emptypb.Empty]) (*connect.Response[api.ListMyOrdersResponse], error)
	AdvanceOrderStatus(context.Context, *connect.Request[api.AdvanceOrderStatusRequest]) (*connect.Response[api.AdvanceOrderStatusResponse], error)
	GetQueueSnapshot(context.Context, *connect.Request[api.GetQueueSnapshotRequest]) (*connect.Response[api.GetQueueSnapshotResponse], error)
	WatchQueue(context.Context, *connect.Request[api.WatchQueueRequest]) (*connect.ServerStreamForClient[api.WatchQueueResponse], error)
}

// NewOrderServiceClient constructs a client for the canteen.v1.OrderService service.
func NewOrderServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) OrderServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &orderServiceClient{
		placeOrder:         connect.NewClient[api.PlaceOrderRequest, api.PlaceOrderResponse](httpClient, baseURL+OrderServicePlaceOrderProcedure, opts...),
		getOrder:           connect.NewClient[api.GetOrderRequest, api.GetOrderResponse](httpClient, baseURL+OrderServiceGetOrderProcedure, opts...),
		listMyOrders:       connect.NewClient[emptypb.Empty, api.ListMyOrdersResponse](httpClient, baseURL+OrderServiceListMyOrdersProcedure, opts...),
		advanceOrderStatus: connect.NewClient[api.AdvanceOrderStatusRequest, api.AdvanceOrderStatusResponse](httpClient, baseURL+OrderServiceAdvanceOrderStatusProcedure, opts...),
		getQueueSnapshot:   connect.NewClient[api.GetQueueSnapshotRequest, api.GetQueueSnapshotResponse](httpClient, baseURL+OrderServiceGetQueueSnapshotProcedure, opts...),
		watchQueue:         connect.NewClient[api.WatchQueueRequest, api.WatchQueueResponse](httpClient, baseURL+OrderServiceWatchQueueProcedure, opts...),
	}
}

type orderServiceClient struct {
	placeOrder         *connect.Client[api.PlaceOrderRequest, api.PlaceOrderResponse]
	getOrder           *connect.Client[api.GetOrderRequest, api.GetOrderResponse]
	listMyOrders       *connect.Client[emptypb.Empty, api.ListMyOrdersResponse]
	advanceOrderStatus *connect.Client[api.AdvanceOrderStatusRequest, api.AdvanceOrderStatusResponse]
	getQueueSnapshot   *connect.Client[api.GetQueueSnapshotRequest, api.GetQueueSnapshotResponse]
	watchQueue         *connect.Client[api.WatchQueueRequest, api.WatchQueueResponse]
}

func (c *orderServiceClient) PlaceOrder(ctx context.Context, req *connect.Request[api.PlaceOrderRequest]) (*connect.Response[api.PlaceOrderResponse], error) {
	return c.placeOrder.CallUnary(ctx, req)
}

func (c *orderServiceClient) GetOrder(ctx context.Context, req *connect.Request[api.GetOrderRequest]) (*connect.Response[api.GetOrderResponse], error) {
	return c.getOrder.CallUnary(ctx, req)
}

func (c *orderServiceClient) ListMyOrders(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[api.ListMyOrdersResponse], error) {
	return c.listMyOrders.CallUnary(ctx, req)
}

func (c *orderServiceClient) AdvanceOrderStatus(ctx context.Context, req *connect.Request[api.AdvanceOrderStatusRequest]) (*connect.Response[api.AdvanceOrderStatusResponse], error) {
	return c.advanceOrderStatus.CallUnary(ctx, req)
}

func (c *orderServiceClient) GetQueueSnapshot(ctx context.Context, req *connect.Request[api.GetQueueSnapshotRequest]) (*connect.Response[api.GetQueueSnapshotResponse], error) {
	return c.getQueueSnapshot.CallUnary(ctx, req)
}

func (c *orderServiceClient) WatchQueue(ctx context.Context, req *connect.Request[api.WatchQueueRequest]) (*connect.ServerStreamForClient[api.WatchQueueResponse], error) {
	return c.watchQueue.CallServerStream(ctx, req)
}

// OrderServiceHandler is an implementation of the canteen.v1.OrderService service.
type OrderServiceHandler interface {
	PlaceOrder(context.Context, *connect.Request[api.PlaceOrderRequest]) (*connect.Response[api.PlaceOrderResponse], error)
	GetOrder(context.Context, *connect.Request[api.GetOrderRequest]) (*connect.Response[api.GetOrderResponse], error)
	ListMyOrders(context.Context, *connect.Request[emptypb.Empty]) (*connect.Response[api.ListMyOrdersResponse], error)
	AdvanceOrderStatus(context.Context, *connect.Request[api.AdvanceOrderStatusRequest]) (*connect.Response[api.AdvanceOrderStatusResponse], error)
	GetQueueSnapshot(context.Context, *connect.Request[api.GetQueueSnapshotRequest]) (*connect.Response[api.GetQueueSnapshotResponse], error)
	WatchQueue(context.Context, *connect.Request[api.WatchQueueRequest], *connect.ServerStream[api.WatchQueueResponse]) error
}

// NewOrderServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewOrderServiceHandler(svc OrderServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	placeOrder := connect.NewUnaryHandler(OrderServicePlaceOrderProcedure, svc.PlaceOrder, opts...)
	getOrder := connect.NewUnaryHandler(OrderServiceGetOrderProcedure, svc.GetOrder, opts...)
	listMyOrders := connect.NewUnaryHandler(OrderServiceListMyOrdersProcedure, svc.ListMyOrders, opts...)
	advanceOrderStatus := connect.NewUnaryHandler(OrderServiceAdvanceOrderStatusProcedure, svc.AdvanceOrderStatus, opts...)
	getQueueSnapshot := connect.NewUnaryHandler(OrderServiceGetQueueSnapshotProcedure, svc.GetQueueSnapshot, opts...)
	watchQueue := connect.NewServerStreamHandler(OrderServiceWatchQueueProcedure, svc.WatchQueue, opts...)
	return "/canteen.v1.OrderService/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case OrderServicePlaceOrderProcedure:
			placeOrder.ServeHTTP(w, r)
		case OrderServiceGetOrderProcedure:
			getOrder.ServeHTTP(w, r)
		case OrderServiceListMyOrdersProcedure:
			listMyOrders.ServeHTTP(w, r)
		case OrderServiceAdvanceOrderStatusProcedure:
			advanceOrderStatus.ServeHTTP(w, r)
		case OrderServiceGetQueueSnapshotProcedure:
			getQueueSnapshot.ServeHTTP(w, r)
		case OrderServiceWatchQueueProcedure:
			watchQueue.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
