package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/canteen/pkg/api"
)

// ProfileServiceName is the fully-qualified name of the ProfileService service.
const ProfileServiceName = "canteen.v1.ProfileService"

const (
	ProfileServiceGetPreferencesProcedure  = "/canteen.v1.ProfileService/GetPreferences"
	ProfileServiceSavePreferencesProcedure = "/canteen.v1.ProfileService/SavePreferences"
)

// ProfileServiceClient is a client for the canteen.v1.ProfileService service.
type ProfileServiceClient interface {
	GetPreferences(context.Context, *connect.Request[emptypb.Empty]) (*connect.Response[api.GetPreferencesResponse], error)
	SavePreferences(context.Context, *connect.Request[api.SavePreferencesRequest]) (*connect.Response[api.SavePreferencesResponse], error)
}

// NewProfileServiceClient constructs a client for the canteen.v1.ProfileService service.
func NewProfileServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) ProfileServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &profileServiceClient{
		getPreferences:  connect.NewClient[emptypb.Empty, api.GetPreferencesResponse](httpClient, baseURL+ProfileServiceGetPreferencesProcedure, opts...),
		savePreferences: connect.NewClient[api.SavePreferencesRequest, api.SavePreferencesResponse](httpClient, baseURL+ProfileServiceSavePreferencesProcedure, opts...),
	}
}

type profileServiceClient struct {
	getPreferences  *connect.Client[emptypb.Empty, api.GetPreferencesResponse]
	savePreferences *connect.Client[api.SavePreferencesRequest, api.SavePreferencesResponse]
}

func (c *profileServiceClient) GetPreferences(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[api.GetPreferencesResponse], error) {
	return c.getPreferences.CallUnary(ctx, req)
}

func (c *profileServiceClient) SavePreferences(ctx context.Context, req *connect.Request[api.SavePreferencesRequest]) (*connect.Response[api.SavePreferencesResponse], error) {
	return c.savePreferences.CallUnary(ctx, req)
}

// ProfileServiceHandler is an implementation of the canteen.v1.ProfileService service.
type ProfileServiceHandler interface {
	GetPreferences(context.Context, *connect.Request[emptypb.Empty]) (*connect.Response[api.GetPreferencesResponse], error)
	SavePreferences(context.Context, *connect.Request[api.SavePreferencesRequest]) (*connect.Response[api.SavePreferencesResponse], error)
}

// NewProfileServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewProfileServiceHandler(svc ProfileServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	getPreferences := connect.NewUnaryHandler(ProfileServiceGetPreferencesProcedure, svc.GetPreferences, opts...)
	savePreferences := connect.NewUnaryHandler(ProfileServiceSavePreferencesProcedure, svc.SavePreferences, opts...)
	return "/canteen.v1.ProfileService/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ProfileServiceGetPreferencesProcedure:
			getPreferences.ServeHTTP(w, r)
		case ProfileServiceSavePreferencesProcedure:
			savePreferences.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
