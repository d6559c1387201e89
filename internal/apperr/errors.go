// Package apperr defines the error taxonomy shared by the ledger, the split-bill
// session manager and the order service.
//
// Every error returned across a package boundary wraps exactly one class sentinel
// (ErrValidation, ErrAuthorization, ErrStateConflict, ErrInsufficientFunds,
// ErrCredentialMismatch, ErrNotFound). Named kinds such as ErrSessionInactive wrap
// their class, so callers may match either with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

// Error classes.
var (
	ErrValidation         = errors.New("validation error")
	ErrAuthorization      = errors.New("authorization error")
	ErrStateConflict      = errors.New("state conflict")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrCredentialMismatch = errors.New("credential mismatch")
	ErrNotFound           = errors.New("not found")
)

// Named kinds.
var (
	ErrDuplicateParticipant   = fmt.Errorf("%w: duplicate participant", ErrValidation)
	ErrUnregisteredIdentifier = fmt.Errorf("%w: unregistered identifier", ErrValidation)
	ErrSelfInvite             = fmt.Errorf("%w: initiator cannot invite themself", ErrValidation)

	ErrSessionInactive   = fmt.Errorf("%w: session is not active", ErrStateConflict)
	ErrAlreadyResolved   = fmt.Errorf("%w: invitation already resolved", ErrStateConflict)
	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrStateConflict)
)

// Kind is the stable, client-facing name of an error.
type Kind string

const (
	KindValidation             Kind = "ValidationError"
	KindDuplicateParticipant   Kind = "DuplicateParticipant"
	KindUnregisteredIdentifier Kind = "UnregisteredIdentifier"
	KindSelfInvite             Kind = "SelfInvite"
	KindAuthorization          Kind = "AuthorizationError"
	KindStateConflict          Kind = "StateConflict"
	KindSessionInactive        Kind = "SessionInactive"
	KindAlreadyResolved        Kind = "AlreadyResolved"
	KindInsufficientFunds      Kind = "InsufficientFunds"
	KindCredentialMismatch     Kind = "CredentialMismatch"
	KindNotFound               Kind = "NotFound"
	KindInternal               Kind = "Internal"
)

// named kinds are checked before their classes.
var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrDuplicateParticipant, KindDuplicateParticipant},
	{ErrUnregisteredIdentifier, KindUnregisteredIdentifier},
	{ErrSelfInvite, KindSelfInvite},
	{ErrSessionInactive, KindSessionInactive},
	{ErrAlreadyResolved, KindAlreadyResolved},
	{ErrValidation, KindValidation},
	{ErrAuthorization, KindAuthorization},
	{ErrStateConflict, KindStateConflict},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrCredentialMismatch, KindCredentialMismatch},
	{ErrNotFound, KindNotFound},
}

// KindOf classifies err. Errors outside the taxonomy are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Validation returns a ValidationError with a formatted message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound returns a NotFound error naming the missing entity.
func NotFound(entity, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
}

// Unauthorized returns an AuthorizationError with a formatted message.
func Unauthorized(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAuthorization, fmt.Sprintf(format, args...))
}
