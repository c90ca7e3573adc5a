package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"librarycore/internal/database"
	"librarycore/internal/models"
	"librarycore/internal/repositories"
)

// BookListing is a book with the number of copies that can be borrowed now.
type BookListing struct {
	Book            models.Book
	AvailableCopies int64
}

type NewEvent struct {
	Name             string
	Start            time.Time
	End              time.Time
	AttendeeCapacity int64
	Type             models.EventType
}

// CatalogService covers the employee-side setup of lendable and bookable things.
type CatalogService interface {
	CreateBook(ctx context.Context, name string, copies int) (*models.Book, error)
	AddBookCopies(ctx context.Context, bookID int64, n int) ([]models.BookCopy, error)
	ListBooks(ctx context.Context) ([]BookListing, error)
	CreateStudyRoom(ctx context.Context, capacity int) (*models.StudyRoom, error)
	CreateEvent(ctx context.Context, e NewEvent) (*models.Event, error)
}

type catalogService struct {
	tx        database.Transactor
	ids       IDAllocator
	bookRepo  repositories.BookRepository
	copyRepo  repositories.BookCopyRepository
	roomRepo  repositories.StudyRoomRepository
	eventRepo repositories.EventRepository
	log       *slog.Logger
}

func NewCatalogService(
	tx database.Transactor,
	ids IDAllocator,
	bookRepo repositories.BookRepository,
	copyRepo repositories.BookCopyRepository,
	roomRepo repositories.StudyRoomRepository,
	eventRepo repositories.EventRepository,
	log *slog.Logger,
) CatalogService {
	return &catalogService{
		tx:        tx,
		ids:       ids,
		bookRepo:  bookRepo,
		copyRepo:  copyRepo,
		roomRepo:  roomRepo,
		eventRepo: eventRepo,
		log:       log,
	}
}

// CreateBook creates a book record together with the requested number of
// available copies, all within a single transaction.
func (s *catalogService) CreateBook(ctx context.Context, name string, copies int) (*models.Book, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("book_name", "must not be empty")
	}
	if copies < 0 {
		return nil, invalid("copies", "must not be negative")
	}

	var book *models.Book
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		id, err := s.ids.Next(tx, EntityBook)
		if err != nil {
			return err
		}
		book = &models.Book{ID: id, Name: name}
		if err := s.bookRepo.Create(tx, book); err != nil {
			return err
		}
		_, err = s.addCopies(tx, id, copies)
		return err
	})
	if err != nil {
		s.log.Error("create book failed", "name", name, "err", err)
		return nil, err
	}
	s.log.Info("book created", "book_id", book.ID, "name", book.Name, "copies", copies)
	return book, nil
}

// AddBookCopies adds n available copies to an existing book.
func (s *catalogService) AddBookCopies(ctx context.Context, bookID int64, n int) ([]models.BookCopy, error) {
	if n < 1 {
		return nil, invalid("num_copies", "must be at least 1")
	}

	var added []models.BookCopy
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.bookRepo.GetByID(tx, bookID); err != nil {
			return notFound(err, ErrBookNotFound)
		}
		var err error
		added, err = s.addCopies(tx, bookID, n)
		return err
	})
	if err != nil {
		logFailure(s.log, "AddBookCopies", err, "book_id", bookID)
		return nil, err
	}
	s.log.Info("book copies added", "book_id", bookID, "count", n)
	return added, nil
}

func (s *catalogService) addCopies(tx *gorm.DB, bookID int64, n int) ([]models.BookCopy, error) {
	copies := make([]models.BookCopy, 0, n)
	for i := 0; i < n; i++ {
		id, err := s.ids.Next(tx, EntityBookCopy)
		if err != nil {
			return nil, err
		}
		copy := models.BookCopy{ID: id, BookID: bookID, Status: models.BookCopyStatusAvailable}
		if err := s.copyRepo.Create(tx, &copy); err != nil {
			return nil, err
		}
		copies = append(copies, copy)
	}
	return copies, nil
}

// ListBooks returns all books in the catalogue with their available-copy counts.
func (s *catalogService) ListBooks(ctx context.Context) ([]BookListing, error) {
	books, err := s.bookRepo.List(nil)
	if err != nil {
		return nil, err
	}
	counts, err := s.bookRepo.CountAvailableCopies(nil)
	if err != nil {
		return nil, err
	}
	out := make([]BookListing, 0, len(books))
	for _, b := range books {
		out = append(out, BookListing{Book: b, AvailableCopies: counts[b.ID]})
	}
	return out, nil
}

func (s *catalogService) CreateStudyRoom(ctx context.Context, capacity int) (*models.StudyRoom, error) {
	if capacity < 1 {
		return nil, invalid("capacity", "must be at least 1")
	}
	var room *models.StudyRoom
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		id, err := s.ids.Next(tx, EntityStudyRoom)
		if err != nil {
			return err
		}
		room = &models.StudyRoom{ID: id, Capacity: capacity}
		return s.roomRepo.Create(tx, room)
	})
	if err != nil {
		s.log.Error("create study room failed", "err", err)
		return nil, err
	}
	s.log.Info("study room created", "room_id", room.ID, "capacity", capacity)
	return room, nil
}

func (s *catalogService) CreateEvent(ctx context.Context, e NewEvent) (*models.Event, error) {
	e.Name = strings.TrimSpace(e.Name)
	switch {
	case e.Name == "":
		return nil, invalid("event_name", "must not be empty")
	case !e.End.After(e.Start):
		return nil, invalid("end_dt", "end date must be after start date")
	case e.AttendeeCapacity < 1:
		return nil, invalid("attd_no", "must be at least 1")
	case e.Type != models.EventTypeExhibition && e.Type != models.EventTypeSeminar:
		return nil, invalid("event_type", "must be E or S")
	}

	var event *models.Event
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		id, err := s.ids.Next(tx, EntityEvent)
		if err != nil {
			return err
		}
		event = &models.Event{
			ID:               id,
			Name:             e.Name,
			StartTime:        e.Start,
			EndTime:          e.End,
			AttendeeCapacity: e.AttendeeCapacity,
			Type:             e.Type,
		}
		return s.eventRepo.Create(tx, event)
	})
	if err != nil {
		s.log.Error("create event failed", "name", e.Name, "err", err)
		return nil, err
	}
	s.log.Info("event created", "event_id", event.ID, "type", event.Type, "capacity", event.AttendeeCapacity)
	return event, nil
}
