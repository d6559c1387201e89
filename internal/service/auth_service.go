package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/canteen/internal/apperr"
	"github.com/mmynk/canteen/internal/auth"
	"github.com/mmynk/canteen/internal/middleware"
	"github.com/mmynk/canteen/internal/models"
	"github.com/mmynk/canteen/internal/storage"
	"github.com/mmynk/canteen/pkg/api"
)

// AuthService handles diner accounts: registration, login and aliases.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	users         storage.UserStore
	logger        *slog.Logger
}

func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, users storage.UserStore, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		users:         users,
		logger:        logger.With("service", "auth"),
	}
}

func (s *AuthService) Register(ctx context.Context, req *connect.Request[api.RegisterRequest]) (*connect.Response[api.RegisterResponse], error) {
	msg := req.Msg
	user, err := s.authenticator.Register(ctx, msg.Email, msg.DisplayName, msg.Password)
	if err != nil {
		s.logger.Warn("Registration rejected", "email", msg.Email, "error", err)
		return nil, s.registrationError(err)
	}

	token, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Diner registered", "user_id", user.ID)
	return connect.NewResponse(&api.RegisterResponse{User: toAPIUser(user), Token: token}), nil
}

func (s *AuthService) Login(ctx context.Context, req *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error) {
	msg := req.Msg
	if msg.Email == "" || msg.Password == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, auth.ErrInvalidCredentials)
	}

	user, err := s.authenticator.Authenticate(ctx, msg.Email, msg.Password)
	if err != nil {
		s.logger.Warn("Login rejected", "email", msg.Email)
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidCredentials)
	}

	token, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Diner logged in", "user_id", user.ID)
	return connect.NewResponse(&api.LoginResponse{User: toAPIUser(user), Token: token}), nil
}

func (s *AuthService) GetCurrentUser(ctx context.Context, _ *connect.Request[emptypb.Empty]) (*connect.Response[api.GetCurrentUserResponse], error) {
	user, err := s.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&api.GetCurrentUserResponse{User: toAPIUser(user)}), nil
}

// AddAlias attaches another email to the caller's account. Split invitations
// addressed to the alias then belong to the caller.
func (s *AuthService) AddAlias(ctx context.Context, req *connect.Request[api.AddAliasRequest]) (*connect.Response[api.AddAliasResponse], error) {
	user, err := s.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := auth.ValidateEmail(models.NormalizeIdentifier(req.Msg.Alias)); err != nil {
		return nil, toConnectError(s.logger, apperr.Validation("alias: %v", err))
	}
	if err := s.users.AddAlias(ctx, user.ID, req.Msg.Alias); err != nil {
		return nil, toConnectError(s.logger, err)
	}

	// Re-read so the response carries the stored, normalized alias list.
	if user, err = s.currentUser(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("Alias added", "user_id", user.ID, "alias", req.Msg.Alias)
	return connect.NewResponse(&api.AddAliasResponse{User: toAPIUser(user)}), nil
}

func (s *AuthService) currentUser(ctx context.Context) (*models.User, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	if user == nil {
		// Token outlived its account.
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
	}
	return user, nil
}

func (s *AuthService) issue(user *models.User) (string, error) {
	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to sign token", "user_id", user.ID, "error", err)
		return "", connect.NewError(connect.CodeInternal, errInternal)
	}
	return token, nil
}

func (s *AuthService) registrationError(err error) error {
	switch {
	case errors.Is(err, auth.ErrEmailExists):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrPasswordTooLong),
		errors.Is(err, auth.ErrInvalidEmail):
		return toConnectError(s.logger, apperr.Validation("%v", err))
	}
	return toConnectError(s.logger, err)
}
