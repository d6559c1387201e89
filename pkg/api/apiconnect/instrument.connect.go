package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/canteen/pkg/api"
)

// InstrumentServiceName is the fully-qualified name of the InstrumentService service.
const InstrumentServiceName = "canteen.v1.InstrumentService"

const (
	InstrumentServiceCreateInstrumentProcedure = "/canteen.v1.InstrumentService/CreateInstrument"
	InstrumentServiceListInstrumentsProcedure  = "/canteen.v1.InstrumentService/ListInstruments"
)

// InstrumentServiceClient is a client for the canteen.v1.InstrumentService service.
type InstrumentServiceClient interface {
	CreateInstrument(context.Context, *connect.Request[api.CreateInstrumentRequest]) (*connect.Response[api.CreateInstrumentResponse], error)
	ListInstruments(context.Context, *connect.Request[emptypb.Empty]) (*connect.Response[api.ListInstrumentsResponse], error)
}

// NewInstrumentServiceClient constructs a client for the canteen.v1.InstrumentService service.
func NewInstrumentServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) InstrumentServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &instrumentServiceClient{
		createInstrument: connect.NewClient[api.CreateInstrumentRequest, api.CreateInstrumentResponse](httpClient, baseURL+InstrumentServiceCreateInstrumentProcedure, opts...),
		listInstruments:  connect.NewClient[emptypb.Empty, api.ListInstrumentsResponse](httpClient, baseURL+InstrumentServiceListInstrumentsProcedure, opts...),
	}
}

type instrumentServiceClient struct {
	createInstrument *connect.Client[api.CreateInstrumentRequest, api.CreateInstrumentResponse]
	listInstruments  *connect.Client[emptypb.Empty, api.ListInstrumentsResponse]
}

func (c *instrumentServiceClient) CreateInstrument(ctx context.Context, req *connect.Request[api.CreateInstrumentRequest]) (*connect.Response[api.CreateInstrumentResponse], error) {
	return c.createInstrument.CallUnary(ctx, req)
}

func (c *instrumentServiceClient) ListInstruments(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[api.ListInstrumentsResponse], error) {
	return c.listInstruments.CallUnary(ctx, req)
}

// InstrumentServiceHandler is an implementation of the canteen.v1.InstrumentService service.
type InstrumentServiceHandler interface {
	CreateInstrument(context.Context, *connect.Request[api.CreateInstrumentRequest]) (*connect.Response[api.CreateInstrumentResponse], error)
	ListInstruments(context.Context, *connect.Request[emptypb.Empty]) (*connect.Response[api.ListInstrumentsResponse], error)
}

// NewInstrumentServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewInstrumentServiceHandler(svc InstrumentServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	createInstrument := connect.NewUnaryHandler(InstrumentServiceCreateInstrumentProcedure, svc.CreateInstrument, opts...)
	listInstruments := connect.NewUnaryHandler(InstrumentServiceListInstrumentsProcedure, svc.ListInstruments, opts...)
	return "/canteen.v1.InstrumentService/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case InstrumentServiceCreateInstrumentProcedure:
			createInstrument.ServeHTTP(w, r)
		case InstrumentServiceListInstrumentsProcedure:
			listInstruments.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
