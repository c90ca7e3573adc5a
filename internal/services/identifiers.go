package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"librarycore/internal/repositories"
)

// Entity names one class of sequentially keyed rows.
type Entity struct {
	Name  string
	Table string
}

var (
	EntityBook                 = Entity{"book", "books"}
	EntityBookCopy             = Entity{"book_copy", "book_copies"}
	EntityRental               = Entity{"rental", "rentals"}
	EntityInvoice              = Entity{"invoice", "invoices"}
	EntityPayment              = Entity{"payment", "payments"}
	EntityStudyRoom            = Entity{"study_room", "study_rooms"}
	EntityReservation          = Entity{"reservation", "reservations"}
	EntityEvent                = Entity{"event", "events"}
	EntityExhibitionAttendance = Entity{"exhibition_attendance", "exhibition_attendances"}
	EntitySeminarAttendance    = Entity{"seminar_attendance", "seminar_attendances"}
)

// NextAfter is the allocation rule: one past the current maximum.
func NextAfter(current int64) int64 {
	return current + 1
}

// IDAllocator hands out sequential identifiers. The sequence row is locked in
// the caller's transaction, so the id and the row using it commit together.
type IDAllocator interface {
	Next(tx *gorm.DB, e Entity) (int64, error)
}

type idAllocator struct {
	seqRepo repositories.SequenceRepository
}

func NewIDAllocator(seqRepo repositories.SequenceRepository) IDAllocator {
	return &idAllocator{seqRepo: seqRepo}
}

func (a *idAllocator) Next(tx *gorm.DB, e Entity) (int64, error) {
	current, err := a.seqRepo.LockCurrent(tx, e.Name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := a.seqRepo.Seed(tx, e.Name, e.Table); err != nil {
			return 0, fmt.Errorf("seed %s sequence: %w", e.Name, err)
		}
		current, err = a.seqRepo.LockCurrent(tx, e.Name)
	}
	if err != nil {
		return 0, fmt.Errorf("lock %s sequence: %w", e.Name, err)
	}

	next := NextAfter(current)
	if err := a.seqRepo.Store(tx, e.Name, next); err != nil {
		return 0, fmt.Errorf("advance %s sequence: %w", e.Name, err)
	}
	return next, nil
}
