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
	"github.com/mmynk/canteen/internal/models"
	"github.com/mmynk/canteen/internal/storage"
	"github.com/mmynk/canteen/pkg/api"
)

const maxFavourites = 50

// ProfileService stores per-user preferences.
type ProfileService struct {
	store    storage.PreferenceStore
	resolver *auth.Resolver
	logger   *slog.Logger
	now      clock
}

func NewProfileService(store storage.PreferenceStore, resolver *auth.Resolver, logger *slog.Logger) *ProfileService {
	return &ProfileService{store: store, resolver: resolver, logger: logger, now: time.Now}
}

func (s *ProfileService) GetPreferences(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[api.GetPreferencesResponse], error) {
	caller, err := principalFor(ctx, s.resolver)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}

	prefs, err := s.store.GetPreferences(ctx, caller.UserID)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	return connect.NewResponse(&api.GetPreferencesResponse{Preferences: toAPIPreferences(prefs)}), nil
}

// SavePreferences replaces the caller's favourites. Blank entries are dropped
// and duplicates collapse to their first occurrence.
func (s *ProfileService) SavePreferences(ctx context.Context, req *connect.Request[api.SavePreferencesRequest]) (*connect.Response[api.SavePreferencesResponse], error) {
	caller, err := principalFor(ctx, s.resolver)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}

	favourites := make([]string, 0, len(req.Msg.Favourites))
	seen := make(map[string]bool, len(req.Msg.Favourites))
	for _, f := range req.Msg.Favourites {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		favourites = append(favourites, f)
	}
	if len(favourites) > maxFavourites {
		return nil, toConnectError(s.logger, apperr.Validation("at most %d favourites are allowed", maxFavourites))
	}

	prefs := &models.Preferences{
		UserID:     caller.UserID,
		Favourites: favourites,
		UpdatedAt:  s.now().Unix(),
	}
	if err := s.store.SavePreferences(ctx, prefs); err != nil {
		return nil, toConnectError(s.logger, err)
	}

	s.logger.Debug("Preferences saved", "user_id", caller.UserID, "favourites", len(favourites))
	return connect.NewResponse(&api.SavePreferencesResponse{Preferences: toAPIPreferences(prefs)}), nil
}
