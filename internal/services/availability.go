package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"librarycore/internal/models"
	"librarycore/internal/repositories"
)

// Ledger is the single source of truth for whether a copy can be lent and
// whether a room or event still has room. Mutating methods must run inside the
// caller's transaction after the contended row has been locked.
type Ledger interface {
	IsCopyAvailable(tx *gorm.DB, copyID int64) (bool, error)
	MarkBorrowed(tx *gorm.DB, copyID int64) error
	MarkReturned(tx *gorm.DB, copyID int64) error
	MarkLost(tx *gorm.DB, copyID int64) error
	HasOverlap(tx *gorm.DB, roomID int64, start, end time.Time, excludeReservationID *int64) (bool, error)
	AttendeeCountBelowCapacity(tx *gorm.DB, event *models.Event) (bool, error)
}

type ledger struct {
	copyRepo        repositories.BookCopyRepository
	reservationRepo repositories.ReservationRepository
	attendanceRepo  repositories.AttendanceRepository
}

func NewLedger(
	copyRepo repositories.BookCopyRepository,
	reservationRepo repositories.ReservationRepository,
	attendanceRepo repositories.AttendanceRepository,
) Ledger {
	return &ledger{
		copyRepo:        copyRepo,
		reservationRepo: reservationRepo,
		attendanceRepo:  attendanceRepo,
	}
}

func (l *ledger) IsCopyAvailable(tx *gorm.DB, copyID int64) (bool, error) {
	copy, err := l.copyRepo.GetByID(tx, copyID)
	if err != nil {
		return false, notFound(err, ErrBookCopyNotFound)
	}
	return copy.Status == models.BookCopyStatusAvailable, nil
}

func (l *ledger) MarkBorrowed(tx *gorm.DB, copyID int64) error {
	return l.transition(tx, copyID, models.BookCopyStatusAvailable, models.BookCopyStatusUnavailable)
}

func (l *ledger) MarkReturned(tx *gorm.DB, copyID int64) error {
	return l.transition(tx, copyID, models.BookCopyStatusUnavailable, models.BookCopyStatusAvailable)
}

// MarkLost removes the copy from the lending pool for good.
func (l *ledger) MarkLost(tx *gorm.DB, copyID int64) error {
	return l.transition(tx, copyID, models.BookCopyStatusUnavailable, models.BookCopyStatusLost)
}

func (l *ledger) transition(tx *gorm.DB, copyID int64, from, to models.BookCopyStatus) error {
	ok, err := l.copyRepo.TransitionStatus(tx, copyID, from, to)
	if err != nil {
		return fmt.Errorf("update copy %d status: %w", copyID, err)
	}
	if ok {
		return nil
	}
	// Nothing matched: either the copy is gone or it is in another state.
	if _, err := l.copyRepo.GetByID(tx, copyID); err != nil {
		return notFound(err, ErrBookCopyNotFound)
	}
	return ErrInvalidStateTransition
}

func (l *ledger) HasOverlap(tx *gorm.DB, roomID int64, start, end time.Time, excludeReservationID *int64) (bool, error) {
	n, err := l.reservationRepo.CountOverlapping(tx, roomID, start, end, excludeReservationID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *ledger) AttendeeCountBelowCapacity(tx *gorm.DB, event *models.Event) (bool, error) {
	var (
		n   int64
		err error
	)
	switch event.Type {
	case models.EventTypeSeminar:
		n, err = l.attendanceRepo.CountSeminar(tx, event.ID)
	default:
		n, err = l.attendanceRepo.CountExhibition(tx, event.ID)
	}
	if err != nil {
		return false, err
	}
	return n < event.AttendeeCapacity, nil
}
