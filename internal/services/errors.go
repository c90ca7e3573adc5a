package services

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

// ─── Error Kinds ──────────────────────────────────────────────────────────────

// Every domain sentinel below unwraps to exactly one of these kinds, so the
// transport can map errors with errors.Is without knowing each sentinel.
var (
	ErrNotFound      = errors.New("not found")
	ErrStateConflict = errors.New("state conflict")
	ErrForbidden     = errors.New("forbidden")
)

type domainError struct {
	kind error
	msg  string
}

func (e *domainError) Error() string { return e.msg }
func (e *domainError) Unwrap() error { return e.kind }

func newErr(kind error, msg string) error { return &domainError{kind: kind, msg: msg} }

// ─── Sentinel Errors ──────────────────────────────────────────────────────────

var (
	ErrBookNotFound        = newErr(ErrNotFound, "book not found")
	ErrBookCopyNotFound    = newErr(ErrNotFound, "book copy not found")
	ErrCustomerNotFound    = newErr(ErrNotFound, "customer not found")
	ErrAuthorNotFound      = newErr(ErrNotFound, "author not found")
	ErrRentalNotFound      = newErr(ErrNotFound, "rental not found")
	ErrInvoiceNotFound     = newErr(ErrNotFound, "invoice not found")
	ErrRoomNotFound        = newErr(ErrNotFound, "study room not found")
	ErrReservationNotFound = newErr(ErrNotFound, "reservation not found")
	ErrEventNotFound       = newErr(ErrNotFound, "event not found")

	// ErrAlreadyBorrowed is returned when the customer already holds a Borrowed
	// rental on any copy of the same book.
	ErrAlreadyBorrowed = newErr(ErrStateConflict, "customer already has an active rental for this book")

	// ErrNoCopyAvailable is returned when no copy of the book, or not the
	// requested copy, can be lent right now.
	ErrNoCopyAvailable = newErr(ErrStateConflict, "no copy of this book is currently available")

	// ErrNotBorrowed is returned when returning or losing a rental that is
	// already Returned or Lost.
	ErrNotBorrowed = newErr(ErrStateConflict, "rental is not borrowed")

	// ErrInvalidStateTransition is returned when a book copy is not in the
	// status a transition expects.
	ErrInvalidStateTransition = newErr(ErrStateConflict, "invalid book copy state transition")

	ErrSchedulingConflict = newErr(ErrStateConflict, "the room is already reserved during this time")
	ErrAlreadyStarted     = newErr(ErrStateConflict, "cannot cancel a reservation that has already started")
	ErrAlreadyRegistered  = newErr(ErrStateConflict, "already registered for this event")
	ErrEventFull          = newErr(ErrStateConflict, "this event is full")
	ErrEventEnded         = newErr(ErrStateConflict, "this event has already ended")
	ErrWrongEventType     = newErr(ErrStateConflict, "operation not supported for this event type")

	ErrNotReservationOwner = newErr(ErrForbidden, "you don't have permission to cancel this reservation")
	ErrNoCustomerProfile   = newErr(ErrForbidden, "a customer profile is required")
	ErrNoAuthorProfile     = newErr(ErrForbidden, "an author profile is required")
)

// ValidationError reports a bad input value. Field names match the request
// field the caller has to correct.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// notFound translates gorm.ErrRecordNotFound into the entity's sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

// logFailure logs domain rejections at warn and anything else at error.
func logFailure(log *slog.Logger, op string, err error, args ...any) {
	var vErr *ValidationError
	if errors.Is(err, ErrStateConflict) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) || errors.As(err, &vErr) {
		log.Warn(op+" rejected", append(args, "reason", err.Error())...)
		return
	}
	log.Error(op+" failed", append(args, "err", err)...)
}
