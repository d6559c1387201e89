package service

import (
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/canteen/internal/apperr"
	"github.com/mmynk/canteen/pkg/api"
)

var errInternal = errors.New("internal error")

// toConnectError maps a domain error to a Connect error carrying its kind in
// the Canteen-Error-Kind metadata. Unclassified errors are logged and returned
// as Internal without their message.
func toConnectError(logger *slog.Logger, err error) error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return err
	}

	kind := apperr.KindOf(err)
	var code connect.Code
	switch {
	case errors.Is(err, apperr.ErrValidation):
		code = connect.CodeInvalidArgument
	case errors.Is(err, apperr.ErrAuthorization), errors.Is(err, apperr.ErrCredentialMismatch):
		code = connect.CodePermissionDenied
	case errors.Is(err, apperr.ErrStateConflict), errors.Is(err, apperr.ErrInsufficientFunds):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, apperr.ErrNotFound):
		code = connect.CodeNotFound
	default:
		logger.Error("Internal error", "error", err)
		cerr := connect.NewError(connect.CodeInternal, errInternal)
		cerr.Meta().Set(api.ErrorKindHeader, string(apperr.KindInternal))
		return cerr
	}

	cerr := connect.NewError(code, err)
	cerr.Meta().Set(api.ErrorKindHeader, string(kind))
	return cerr
}
