package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"librarycore/internal/database"
	"librarycore/internal/models"
	"librarycore/internal/repositories"
)

const (
	MinReservation = time.Hour
	MaxReservation = 8 * time.Hour
)

type ReserveRoomRequest struct {
	RoomID    int64
	Start     time.Time
	End       time.Time
	GroupSize int
	Topic     string
}

// UnregisterOutcome tells a caller whether unregistering removed anything.
// Not being registered is informational, not an error.
type UnregisterOutcome string

const (
	Unregistered  UnregisterOutcome = "unregistered"
	NotRegistered UnregisterOutcome = "not_registered"
)

type SchedulingService interface {
	ReserveRoom(ctx context.Context, actor Actor, req ReserveRoomRequest) (*models.Reservation, error)
	CancelReservation(ctx context.Context, actor Actor, reservationID int64) error
	RoomAvailableAt(ctx context.Context, roomID int64, at time.Time) (bool, error)
	ListRoomReservations(ctx context.Context, roomID int64, from, to time.Time) ([]models.Reservation, error)

	RegisterForEvent(ctx context.Context, actor Actor, eventID int64) (*models.ExhibitionAttendance, error)
	UnregisterFromEvent(ctx context.Context, actor Actor, eventID int64) (UnregisterOutcome, error)
	RegisterAuthorForSeminar(ctx context.Context, actor Actor, eventID int64) (*models.SeminarAttendance, error)
}

type schedulingService struct {
	tx             database.Transactor
	ids            IDAllocator
	ledger         Ledger
	roomRepo       repositories.StudyRoomRepository
	resRepo        repositories.ReservationRepository
	eventRepo      repositories.EventRepository
	attendanceRepo repositories.AttendanceRepository
	customerRepo   repositories.CustomerRepository
	authorRepo     repositories.AuthorRepository
	log            *slog.Logger
	now            func() time.Time
}

type SchedulingDeps struct {
	Tx             database.Transactor
	IDs            IDAllocator
	Ledger         Ledger
	RoomRepo       repositories.StudyRoomRepository
	ResRepo        repositories.ReservationRepository
	EventRepo      repositories.EventRepository
	AttendanceRepo repositories.AttendanceRepository
	CustomerRepo   repositories.CustomerRepository
	AuthorRepo     repositories.AuthorRepository
	Log            *slog.Logger
}

func NewSchedulingService(d SchedulingDeps) SchedulingService {
	return &schedulingService{
		tx:             d.Tx,
		ids:            d.IDs,
		ledger:         d.Ledger,
		roomRepo:       d.RoomRepo,
		resRepo:        d.ResRepo,
		eventRepo:      d.EventRepo,
		attendanceRepo: d.AttendanceRepo,
		customerRepo:   d.CustomerRepo,
		authorRepo:     d.AuthorRepo,
		log:            d.Log,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// ─── Study Rooms ──────────────────────────────────────────────────────────────

// ValidateReservationWindow checks a request in a fixed order; the first
// failure wins.
func ValidateReservationWindow(now time.Time, req ReserveRoomRequest) error {
	if !req.Start.After(now) {
		return invalid("start_dt", "reservation must start in the future")
	}
	if !req.End.After(req.Start) {
		return invalid("end_dt", "end time must be after start time")
	}
	switch d := req.End.Sub(req.Start); {
	case d < MinReservation:
		return invalid("end_dt", "too short")
	case d > MaxReservation:
		return invalid("end_dt", "too long")
	}
	if req.GroupSize < 1 {
		return invalid("group_size", "group size must be at least 1")
	}
	return nil
}

func (s *schedulingService) ReserveRoom(ctx context.Context, actor Actor, req ReserveRoomRequest) (*models.Reservation, error) {
	customerID, err := actor.customer()
	if err != nil {
		return nil, err
	}
	if err := ValidateReservationWindow(s.now(), req); err != nil {
		return nil, err
	}

	var reservation *models.Reservation
	err = s.tx.InTx(ctx, func(tx *gorm.DB) error {
		// The room row lock serializes every reservation attempt for the room,
		// so the overlap check and the insert see the same state.
		if _, err := s.roomRepo.GetByIDForUpdate(tx, req.RoomID); err != nil {
			return notFound(err, ErrRoomNotFound)
		}
		overlap, err := s.ledger.HasOverlap(tx, req.RoomID, req.Start, req.End, nil)
		if err != nil {
			return err
		}
		if overlap {
			return ErrSchedulingConflict
		}

		id, err := s.ids.Next(tx, EntityReservation)
		if err != nil {
			return err
		}
		reservation = &models.Reservation{
			ID:         id,
			CustomerID: customerID,
			RoomID:     req.RoomID,
			TopicDesc:  strings.TrimSpace(req.Topic),
			StartTime:  req.Start,
			EndTime:    req.End,
			GroupSize:  req.GroupSize,
		}
		return s.resRepo.Create(tx, reservation)
	})
	if err != nil {
		logFailure(s.log, "ReserveRoom", err, "customer_id", customerID, "room_id", req.RoomID)
		return nil, err
	}
	s.log.Info("room reserved", "reservation_id", reservation.ID, "room_id", req.RoomID,
		"customer_id", customerID, "start", req.Start, "end", req.End)
	return reservation, nil
}

// CancelReservation deletes a reservation that has not started yet. Only the
// owner or an employee may cancel.
func (s *schedulingService) CancelReservation(ctx context.Context, actor Actor, reservationID int64) error {
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		res, err := s.resRepo.GetByIDForUpdate(tx, reservationID)
		if err != nil {
			return notFound(err, ErrReservationNotFound)
		}
		isOwner := actor.CustomerID != nil && *actor.CustomerID == res.CustomerID
		if !isOwner && !actor.HasRole(RoleEmployee) {
			return ErrNotReservationOwner
		}
		if !res.StartTime.After(s.now()) {
			return ErrAlreadyStarted
		}
		return s.resRepo.Delete(tx, res.ID)
	})
	if err != nil {
		logFailure(s.log, "CancelReservation", err, "reservation_id", reservationID, "actor", actor.Subject)
		return err
	}
	s.log.Info("reservation canceled", "reservation_id", reservationID, "actor", actor.Subject)
	return nil
}

// RoomAvailableAt reports whether no reservation holds the room at the instant.
func (s *schedulingService) RoomAvailableAt(ctx context.Context, roomID int64, at time.Time) (bool, error) {
	var held int64
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.roomRepo.GetByID(tx, roomID); err != nil {
			return notFound(err, ErrRoomNotFound)
		}
		var err error
		held, err = s.resRepo.CountCovering(tx, roomID, at)
		return err
	})
	if err != nil {
		return false, err
	}
	return held == 0, nil
}

func (s *schedulingService) ListRoomReservations(ctx context.Context, roomID int64, from, to time.Time) ([]models.Reservation, error) {
	if !to.After(from) {
		return nil, invalid("to", "must be after from")
	}
	var list []models.Reservation
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.roomRepo.GetByID(tx, roomID); err != nil {
			return notFound(err, ErrRoomNotFound)
		}
		var err error
		list, err = s.resRepo.ListOverlapping(tx, roomID, from, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ─── Events ───────────────────────────────────────────────────────────────────

// openEvent locks the event and checks it is of the wanted type and still
// running or upcoming.
func (s *schedulingService) openEvent(tx *gorm.DB, eventID int64, want models.EventType) (*models.Event, error) {
	event, err := s.eventRepo.GetByIDForUpdate(tx, eventID)
	if err != nil {
		return nil, notFound(err, ErrEventNotFound)
	}
	if event.Type != want {
		return nil, ErrWrongEventType
	}
	if event.HasEnded(s.now()) {
		return nil, ErrEventEnded
	}
	return event, nil
}

// RegisterForEvent registers a customer for an exhibition. The event row lock
// keeps the attendance count stable until the insert commits.
func (s *schedulingService) RegisterForEvent(ctx context.Context, actor Actor, eventID int64) (*models.ExhibitionAttendance, error) {
	customerID, err := actor.customer()
	if err != nil {
		return nil, err
	}

	var attendance *models.ExhibitionAttendance
	err = s.tx.InTx(ctx, func(tx *gorm.DB) error {
		event, err := s.openEvent(tx, eventID, models.EventTypeExhibition)
		if err != nil {
			return err
		}
		if _, err := s.customerRepo.GetByID(tx, customerID); err != nil {
			return notFound(err, ErrCustomerNotFound)
		}

		_, err = s.attendanceRepo.FindExhibition(tx, eventID, customerID)
		if err == nil {
			return ErrAlreadyRegistered
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		below, err := s.ledger.AttendeeCountBelowCapacity(tx, event)
		if err != nil {
			return err
		}
		if !below {
			return ErrEventFull
		}

		id, err := s.ids.Next(tx, EntityExhibitionAttendance)
		if err != nil {
			return err
		}
		attendance = &models.ExhibitionAttendance{ID: id, EventID: eventID, CustomerID: customerID}
		if err := s.attendanceRepo.CreateExhibition(tx, attendance); err != nil {
			if database.IsUniqueViolation(err, "uniq_exhibition_attendee") {
				return ErrAlreadyRegistered
			}
			return err
		}
		return nil
	})
	if err != nil {
		logFailure(s.log, "RegisterForEvent", err, "event_id", eventID, "customer_id", customerID)
		return nil, err
	}
	s.log.Info("registered for exhibition", "event_id", eventID, "customer_id", customerID)
	return attendance, nil
}

func (s *schedulingService) UnregisterFromEvent(ctx context.Context, actor Actor, eventID int64) (UnregisterOutcome, error) {
	customerID, err := actor.customer()
	if err != nil {
		return "", err
	}

	outcome := NotRegistered
	err = s.tx.InTx(ctx, func(tx *gorm.DB) error {
		outcome = NotRegistered
		event, err := s.eventRepo.GetByIDForUpdate(tx, eventID)
		if err != nil {
			return notFound(err, ErrEventNotFound)
		}
		if event.Type != models.EventTypeExhibition {
			return ErrWrongEventType
		}

		a, err := s.attendanceRepo.FindExhibition(tx, eventID, customerID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.attendanceRepo.DeleteExhibition(tx, a.ID); err != nil {
			return err
		}
		outcome = Unregistered
		return nil
	})
	if err != nil {
		logFailure(s.log, "UnregisterFromEvent", err, "event_id", eventID, "customer_id", customerID)
		return "", err
	}
	s.log.Info("exhibition unregister", "event_id", eventID, "customer_id", customerID, "outcome", outcome)
	return outcome, nil
}

// RegisterAuthorForSeminar adds the acting author as a seminar speaker.
func (s *schedulingService) RegisterAuthorForSeminar(ctx context.Context, actor Actor, eventID int64) (*models.SeminarAttendance, error) {
	authorID, err := actor.author()
	if err != nil {
		return nil, err
	}

	var attendance *models.SeminarAttendance
	err = s.tx.InTx(ctx, func(tx *gorm.DB) error {
		event, err := s.openEvent(tx, eventID, models.EventTypeSeminar)
		if err != nil {
			return err
		}
		if _, err := s.authorRepo.GetByID(tx, authorID); err != nil {
			return notFound(err, ErrAuthorNotFound)
		}

		_, err = s.attendanceRepo.FindSeminar(tx, eventID, authorID)
		if err == nil {
			return ErrAlreadyRegistered
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		below, err := s.ledger.AttendeeCountBelowCapacity(tx, event)
		if err != nil {
			return err
		}
		if !below {
			return ErrEventFull
		}

		id, err := s.ids.Next(tx, EntitySeminarAttendance)
		if err != nil {
			return err
		}
		attendance = &models.SeminarAttendance{ID: id, EventID: eventID, AuthorID: authorID}
		if err := s.attendanceRepo.CreateSeminar(tx, attendance); err != nil {
			if database.IsUniqueViolation(err, "uniq_seminar_speaker") {
				return ErrAlreadyRegistered
			}
			return err
		}
		return nil
	})
	if err != nil {
		logFailure(s.log, "RegisterAuthorForSeminar", err, "event_id", eventID, "author_id", authorID)
		return nil, err
	}
	s.log.Info("author registered for seminar", "event_id", eventID, "author_id", authorID)
	return attendance, nil
}
