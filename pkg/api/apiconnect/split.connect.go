package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/canteen/pkg/api"
)

// SplitServiceName is the fully-qualified name of the SplitService service.
const SplitServiceName = "canteen.v1.SplitService"

const (
	SplitServiceCreateSessionProcedure       = "/canteen.v1.SplitService/CreateSession"
	SplitServiceGetSessionProcedure          = "/canteen.v1.SplitService/GetSession"
	SplitServiceRespondToInvitationProcedure = "/canteen.v1.SplitService/RespondToInvitation"
	SplitServicePayShareProcedure            = "/canteen.v1.SplitService/PayShare"
	SplitServiceCancelSessionProcedure       = "/canteen.v1.SplitService/CancelSession"
	SplitServiceListMyInvitationsProcedure   = "/canteen.v1.SplitService/ListMyInvitations"
)

// SplitServiceClient is a client for the canteen.v1.SplitService service.
type SplitServiceClient interface {
	CreateSession(context.Context, *connect.Request[api.CreateSessionRequest]) (*connect.Response[api.CreateSessionResponse], error)
	GetSession(context.Context, *connect.Request[api.GetSessionRequest]) (*connect.Response[api.GetSessionResponse], error)
	RespondToInvitation(context.Context, *connect.Request[api.RespondToInvitationRequest]) (*connect.Response[api.RespondToInvitationResponse], error)
	PayShare(context.Context, *connect.Request[api.PayShareRequest]) (*connect.Response[api.PayShareResponse], error)
	CancelSession(context.Context, *connect.Request[api.CancelSessionRequest]) (*connect.Response[api.CancelSessionResponse], error)
	ListMyInvitations(context.Context, *connect.Request[emptypb.Empty]) (*connect.Response[api.ListMyInvitationsResponse], error)
}

// NewSplitServiceClient constructs a client for the canteen.v1.SplitService service.
func NewSplitServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) SplitServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &splitServiceClient{
		createSession:       connect.NewClient[api.CreateSessionRequest, api.CreateSessionResponse](httpClient, baseURL+SplitServiceCreateSessionProcedure, opts...),
		getSession:          connect.NewClient[api.GetSessionRequest, api.GetSessionResponse](httpClient, baseURL+SplitServiceGetSessionProcedure, opts...),
		respondToInvitation: connect.NewClient[api.RespondToInvitationRequest, api.RespondToInvitationResponse](httpClient, baseURL+SplitServiceRespondToInvitationProcedure, opts...),
		payShare:            connect.NewClient[api.PayShareRequest, api.PayShareResponse](httpClient, baseURL+SplitServicePayShareProcedure, opts...),
		cancelSession:       connect.NewClient[api.CancelSessionRequest, api.CancelSessionResponse](httpClient, baseURL+SplitServiceCancelSessionProcedure, opts...),
		listMyInvitations:   connect.NewClient[emptypb.Empty, api.ListMyInvitationsResponse](httpClient, baseURL+SplitServiceListMyInvitationsProcedure, opts...),
	}
}

type splitServiceClient struct {
	createSession       *connect.Client[api.CreateSessionRequest, api.CreateSessionResponse]
	getSession          *connect.Client[api.GetSessionRequest, api.GetSessionResponse]
	respondToInvitation *connect.Client[api.RespondToInvitationRequest, api.RespondToInvitationResponse]
	payShare            *connect.Client[api.PayShareRequest, api.PayShareResponse]
	cancelSession       *connect.Client[api.CancelSessionRequest, api.CancelSessionResponse]
	listMyInvitations   *connect.Client[emptypb.Empty, api.ListMyInvitationsResponse]
}

func (c *splitServiceClient) CreateSession(ctx context.Context, req *connect.Request[api.CreateSessionRequest]) (*connect.Response[api.CreateSessionResponse], error) {
	return c.createSession.CallUnary(ctx, req)
}

func (c *splitServiceClient) GetSession(ctx context.Context, req *connect.Request[api.GetSessionRequest]) (*connect.Response[api.GetSessionResponse], error) {
	return c.getSession.CallUnary(ctx, req)
}

func (c *splitServiceClient) RespondToInvitation(ctx context.Context, req *connect.Request[api.RespondToInvitationRequest]) (*connect.Response[api.RespondToInvitationResponse], error) {
	return c.respondToInvitation.CallUnary(ctx, req)
}

func (c *splitServiceClient) PayShare(ctx context.Context, req *connect.Request[api.PayShareRequest]) (*connect.Response[api.PayShareResponse], error) {
	return c.payShare.CallUnary(ctx, req)
}

func (c *splitServiceClient) CancelSession(ctx context.Context, req *connect.Request[api.CancelSessionRequest]) (*connect.Response[api.CancelSessionResponse], error) {
	return c.cancelSession.CallUnary(ctx, req)
}

func (c *splitServiceClient) ListMyInvitations(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[api.ListMyInvitationsResponse], error) {
	return c.listMyInvitations.CallUnary(ctx, req)
}

// SplitServiceHandler is an implementation of the canteen.v1.SplitService service.
type SplitServiceHandler interface {
	CreateSession(context.Context, *connect.Request[api.CreateSessionRequest]) (*connect.Response[api.CreateSessionResponse], error)
	GetSession(context.Context, *connect.Request[api.GetSessionRequest]) (*connect.Response[api.GetSessionResponse], error)
	RespondToInvitation(context.Context, *connect.Request[api.RespondToInvitationRequest]) (*connect.Response[api.RespondToInvitationResponse], error)
	PayShare(context.Context, *connect.Request[api.PayShareRequest]) (*connect.Response[api.PayShareResponse], error)
	CancelSession(context.Context, *connect.Request[api.CancelSessionRequest]) (*connect.Response[api.CancelSessionResponse], error)
	ListMyInvitations(context.Context, *connect.Request[emptypb.Empty]) (*connect.Response[api.ListMyInvitationsResponse], error)
}

// NewSplitServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewSplitServiceHandler(svc SplitServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	createSession := connect.NewUnaryHandler(SplitServiceCreateSessionProcedure, svc.CreateSession, opts...)
	getSession := connect.NewUnaryHandler(SplitServiceGetSessionProcedure, svc.GetSession, opts...)
	respondToInvitation := connect.NewUnaryHandler(SplitServiceRespondToInvitationProcedure, svc.RespondToInvitation, opts...)
	payShare := connect.NewUnaryHandler(SplitServicePayShareProcedure, svc.PayShare, opts...)
	cancelSession := connect.NewUnaryHandler(SplitServiceCancelSessionProcedure, svc.CancelSession, opts...)
	listMyInvitations := connect.NewUnaryHandler(SplitServiceListMyInvitationsProcedure, svc.ListMyInvitations, opts...)
	return "/canteen.v1.SplitService/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SplitServiceCreateSessionProcedure:
			createSession.ServeHTTP(w, r)
		case SplitServiceGetSessionProcedure:
			getSession.ServeHTTP(w, r)
		case SplitServiceRespondToInvitationProcedure:
			respondToInvitation.ServeHTTP(w, r)
		case SplitServicePayShareProcedure:
			payShare.ServeHTTP(w, r)
		case SplitServiceCancelSessionProcedure:
			cancelSession.ServeHTTP(w, r)
		case SplitServiceListMyInvitationsProcedure:
			listMyInvitations.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
