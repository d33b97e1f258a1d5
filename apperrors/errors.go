// Package apperrors defines the engine's error taxonomy. Handlers map kinds
// to HTTP status codes; services wrap sentinels with context via %w so
// callers can test with errors.Is.
package apperrors

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindValidation marks bad input: rejected per row or per request,
	// never fatal to a batch.
	KindValidation Kind = iota
	// KindStateConflict marks illegal state transitions: double
	// verification, self-verification, missing rejection reason. Not
	// retryable.
	KindStateConflict
	// KindConcurrencyConflict marks a lost race on guarded state. The same
	// operation is safe to retry.
	KindConcurrencyConflict
	// KindIntegrity marks referential damage: the operation aborted with no
	// partial write.
	KindIntegrity
	// KindNotFound marks a missing resource.
	KindNotFound
)

var (
	ErrInvalidValue     = errors.New("value outside the KPI measurement domain")
	ErrOutOfWindow      = errors.New("reporting date beyond today")
	ErrAlreadyResolved  = errors.New("entry already verified or rejected")
	ErrSelfVerification = errors.New("reporter cannot verify their own entry")
	ErrMissingReason    = errors.New("rejection requires a reason")
	ErrStaleWrite       = errors.New("newer rollup version already written")
	ErrNotFound         = errors.New("not found")
	ErrParentInUse      = errors.New("parent still referenced by KPIs")
)

// Error carries a kind alongside the wrapped cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the kind from err, walking the wrap chain. Sentinels get
// their canonical kind even when wrapped bare.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	switch {
	case errors.Is(err, ErrInvalidValue), errors.Is(err, ErrOutOfWindow):
		return KindValidation, true
	case errors.Is(err, ErrAlreadyResolved), errors.Is(err, ErrSelfVerification), errors.Is(err, ErrMissingReason):
		return KindStateConflict, true
	case errors.Is(err, ErrStaleWrite):
		return KindConcurrencyConflict, true
	case errors.Is(err, ErrParentInUse):
		return KindIntegrity, true
	case errors.Is(err, ErrNotFound):
		return KindNotFound, true
	}
	return 0, false
}
