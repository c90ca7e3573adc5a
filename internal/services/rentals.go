package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"librarycore/internal/database"
	"librarycore/internal/models"
	"librarycore/internal/repositories"
)

// DefaultLoanPeriodDays is how long a self-service borrow may be kept.
const DefaultLoanPeriodDays = 14

// RentalView is a rental with its overdue state derived at a point in time.
type RentalView struct {
	Rental      models.Rental
	IsOverdue   bool
	DaysOverdue int
}

// RentalService implements the borrowing state machine:
// Borrowed → Returned | Lost, both terminal.
type RentalService interface {
	// BorrowBook is the customer self-service entry: any available copy,
	// expected back after the loan period, opening invoice of 0.00.
	BorrowBook(ctx context.Context, actor Actor, bookID int64) (*models.Rental, error)
	// CreateRental is the employee entry: a specific copy and return date,
	// opening invoice of BaseRentalFee.
	CreateRental(ctx context.Context, customerID, copyID int64, expectedReturn time.Time) (*models.Rental, error)
	ReturnBook(ctx context.Context, rentalID int64, returnTime time.Time) (*models.Rental, error)
	MarkLost(ctx context.Context, rentalID int64, lossTime time.Time) (*models.Rental, error)

	GetRental(ctx context.Context, rentalID int64, now time.Time) (*RentalView, error)
	ListCustomerRentals(ctx context.Context, customerID int64) ([]models.Rental, error)
}

type rentalService struct {
	tx           database.Transactor
	ids          IDAllocator
	ledger       Ledger
	billing      BillingService
	bookRepo     repositories.BookRepository
	copyRepo     repositories.BookCopyRepository
	customerRepo repositories.CustomerRepository
	rentalRepo   repositories.RentalRepository
	loanPeriod   time.Duration
	log          *slog.Logger
	now          func() time.Time
}

type RentalDeps struct {
	Tx           database.Transactor
	IDs          IDAllocator
	Ledger       Ledger
	Billing      BillingService
	BookRepo     repositories.BookRepository
	CopyRepo     repositories.BookCopyRepository
	CustomerRepo repositories.CustomerRepository
	RentalRepo   repositories.RentalRepository
	Log          *slog.Logger
}

// NewRentalService wires up the rental lifecycle. loanPeriodDays <= 0 falls
// back to DefaultLoanPeriodDays.
func NewRentalService(d RentalDeps, loanPeriodDays int) RentalService {
	if loanPeriodDays <= 0 {
		loanPeriodDays = DefaultLoanPeriodDays
	}
	return &rentalService{
		tx:           d.Tx,
		ids:          d.IDs,
		ledger:       d.Ledger,
		billing:      d.Billing,
		bookRepo:     d.BookRepo,
		copyRepo:     d.CopyRepo,
		customerRepo: d.CustomerRepo,
		rentalRepo:   d.RentalRepo,
		loanPeriod:   time.Duration(loanPeriodDays) * 24 * time.Hour,
		log:          d.Log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ─── Borrow ───────────────────────────────────────────────────────────────────

func (s *rentalService) BorrowBook(ctx context.Context, actor Actor, bookID int64) (*models.Rental, error) {
	customerID, err := actor.customer()
	if err != nil {
		return nil, err
	}

	var rental *models.Rental
	err = s.tx.InTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.bookRepo.GetByID(tx, bookID); err != nil {
			return notFound(err, ErrBookNotFound)
		}
		if _, err := s.customerRepo.GetByIDForUpdate(tx, customerID); err != nil {
			return notFound(err, ErrCustomerNotFound)
		}
		if err := s.rejectActiveRental(tx, customerID, bookID); err != nil {
			return err
		}

		copy, err := s.copyRepo.FindAvailableForUpdate(tx, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoCopyAvailable
			}
			return err
		}

		now := s.now()
		rental, err = s.open(tx, customerID, copy, now, now.Add(s.loanPeriod), decimal.Zero)
		return err
	})
	if err != nil {
		logFailure(s.log, "BorrowBook", err, "customer_id", customerID, "book_id", bookID)
		return nil, err
	}
	return rental, nil
}

func (s *rentalService) CreateRental(ctx context.Context, customerID, copyID int64, expectedReturn time.Time) (*models.Rental, error) {
	now := s.now()
	if !expectedReturn.After(now) {
		return nil, invalid("exp_return_dt", "expected return date must be in the future")
	}

	var rental *models.Rental
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		// Customer before copy, the same order BorrowBook locks in.
		if _, err := s.customerRepo.GetByIDForUpdate(tx, customerID); err != nil {
			return notFound(err, ErrCustomerNotFound)
		}
		copy, err := s.copyRepo.GetByIDForUpdate(tx, copyID)
		if err != nil {
			return notFound(err, ErrBookCopyNotFound)
		}
		if err := s.rejectActiveRental(tx, customerID, copy.BookID); err != nil {
			return err
		}
		available, err := s.ledger.IsCopyAvailable(tx, copy.ID)
		if err != nil {
			return err
		}
		if !available {
			return ErrNoCopyAvailable
		}

		rental, err = s.open(tx, customerID, copy, now, expectedReturn, BaseRentalFee)
		return err
	})
	if err != nil {
		logFailure(s.log, "CreateRental", err, "customer_id", customerID, "copy_id", copyID)
		return nil, err
	}
	return rental, nil
}

// rejectActiveRental fails with ErrAlreadyBorrowed when the customer already
// holds a copy of the book. Callers lock the customer row first, which
// serializes all of the customer's borrows.
func (s *rentalService) rejectActiveRental(tx *gorm.DB, customerID, bookID int64) error {
	_, err := s.rentalRepo.FindActiveForCustomerBook(tx, customerID, bookID)
	switch {
	case err == nil:
		return ErrAlreadyBorrowed
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return err
	}
}

// open marks the locked copy borrowed, bills the opening fee and records the
// rental with its invoice linked.
func (s *rentalService) open(tx *gorm.DB, customerID int64, copy *models.BookCopy, borrowed, due time.Time, fee decimal.Decimal) (*models.Rental, error) {
	if err := s.ledger.MarkBorrowed(tx, copy.ID); err != nil {
		if errors.Is(err, ErrInvalidStateTransition) {
			return nil, ErrNoCopyAvailable
		}
		return nil, err
	}

	inv, err := s.billing.CreateInvoice(tx, fee, borrowed)
	if err != nil {
		return nil, err
	}

	id, err := s.ids.Next(tx, EntityRental)
	if err != nil {
		return nil, err
	}
	rental := &models.Rental{
		ID:                 id,
		CustomerID:         customerID,
		BookCopyID:         copy.ID,
		Status:             models.RentalStatusBorrowed,
		BorrowDate:         borrowed,
		ExpectedReturnDate: due,
		InvoiceID:          &inv.ID,
	}
	if err := s.rentalRepo.Create(tx, rental); err != nil {
		if database.IsUniqueViolation(err, "uniq_active_rental") {
			return nil, ErrNoCopyAvailable
		}
		return nil, err
	}

	s.log.Info("rental created", "rental_id", id, "customer_id", customerID,
		"copy_id", copy.ID, "invoice_id", inv.ID, "due", due.Format("2006-01-02"))
	return rental, nil
}

// ─── Return / Loss ────────────────────────────────────────────────────────────

// ReturnBook closes a Borrowed rental, bills base plus late fee on the
// rental's invoice, and puts the copy back in the pool.
func (s *rentalService) ReturnBook(ctx context.Context, rentalID int64, returnTime time.Time) (*models.Rental, error) {
	return s.close(ctx, rentalID, returnTime, models.RentalStatusReturned)
}

// MarkLost closes a Borrowed rental, bills replacement plus base fee, and
// retires the copy.
func (s *rentalService) MarkLost(ctx context.Context, rentalID int64, lossTime time.Time) (*models.Rental, error) {
	return s.close(ctx, rentalID, lossTime, models.RentalStatusLost)
}

func (s *rentalService) close(ctx context.Context, rentalID int64, at time.Time, status models.RentalStatus) (*models.Rental, error) {
	var updated *models.Rental

	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		// Lock the rental row to prevent concurrent double-returns.
		rental, err := s.rentalRepo.GetByIDForUpdate(tx, rentalID)
		if err != nil {
			return notFound(err, ErrRentalNotFound)
		}
		if rental.Status != models.RentalStatusBorrowed {
			return ErrNotBorrowed
		}

		var fee decimal.Decimal
		if status == models.RentalStatusLost {
			fee = LostFee()
			err = s.ledger.MarkLost(tx, rental.BookCopyID)
		} else {
			fee = ReturnFee(rental.ExpectedReturnDate, at)
			err = s.ledger.MarkReturned(tx, rental.BookCopyID)
		}
		if err != nil {
			return err
		}

		ok, err := s.rentalRepo.Close(tx, rental.ID, status, at)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotBorrowed
		}

		if rental.InvoiceID != nil {
			_, err = s.billing.RestateInvoice(tx, *rental.InvoiceID, fee, at)
		} else {
			var inv *models.Invoice
			if inv, err = s.billing.CreateInvoice(tx, fee, at); err == nil {
				rental.InvoiceID = &inv.ID
				err = s.rentalRepo.SetInvoice(tx, rental.ID, inv.ID)
			}
		}
		if err != nil {
			return err
		}

		rental.Status = status
		rental.ActualReturnDate = &at
		updated = rental
		s.log.Info("rental closed", "rental_id", rental.ID, "status", status,
			"copy_id", rental.BookCopyID, "fee", fee.StringFixed(2),
			"late_days", LateDays(rental.ExpectedReturnDate, at))
		return nil
	})
	if err != nil {
		logFailure(s.log, "CloseRental", err, "rental_id", rentalID, "status", status)
		return nil, err
	}
	return updated, nil
}

// ─── Queries ──────────────────────────────────────────────────────────────────

func (s *rentalService) GetRental(ctx context.Context, rentalID int64, now time.Time) (*RentalView, error) {
	var rental *models.Rental
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		var err error
		rental, err = s.rentalRepo.GetByID(tx, rentalID)
		return notFound(err, ErrRentalNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &RentalView{
		Rental:      *rental,
		IsOverdue:   rental.IsOverdue(now),
		DaysOverdue: rental.DaysOverdue(now),
	}, nil
}

func (s *rentalService) ListCustomerRentals(ctx context.Context, customerID int64) ([]models.Rental, error) {
	var rentals []models.Rental
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.customerRepo.GetByID(tx, customerID); err != nil {
			return notFound(err, ErrCustomerNotFound)
		}
		var err error
		rentals, err = s.rentalRepo.ListByCustomer(tx, customerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rentals, nil
}
