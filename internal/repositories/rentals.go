package repositories

import (
	"time"

	"gorm.io/gorm"

	"librarycore/internal/models"
)

type RentalRepository interface {
	Create(db *gorm.DB, rental *models.Rental) error
	GetByID(db *gorm.DB, id int64) (*models.Rental, error)
	GetByIDForUpdate(db *gorm.DB, id int64) (*models.Rental, error)
	// FindActiveForCustomerBook returns the customer's Borrowed rental on any
	// copy of the book, or gorm.ErrRecordNotFound.
	FindActiveForCustomerBook(db *gorm.DB, customerID, bookID int64) (*models.Rental, error)
	ListByCustomer(db *gorm.DB, customerID int64) ([]models.Rental, error)
	// Close moves a Borrowed rental to a terminal status, stamping the return
	// or loss time, and reports whether a row matched.
	Close(db *gorm.DB, id int64, status models.RentalStatus, at time.Time) (bool, error)
	SetInvoice(db *gorm.DB, id, invoiceID int64) error
}

type rentalRepository struct {
	db *gorm.DB
}

func NewRentalRepository(db *gorm.DB) RentalRepository {
	return &rentalRepository{db: db}
}

func (r *rentalRepository) Create(db *gorm.DB, rental *models.Rental) error {
	return pick(db, r.db).Omit("Customer", "BookCopy", "Invoice").Create(rental).Error
}

func (r *rentalRepository) GetByID(db *gorm.DB, id int64) (*models.Rental, error) {
	var rental models.Rental
	if err := pick(db, r.db).Preload("BookCopy").First(&rental, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rental, nil
}

func (r *rentalRepository) GetByIDForUpdate(db *gorm.DB, id int64) (*models.Rental, error) {
	var rental models.Rental
	err := forUpdate(pick(db, r.db)).
		Preload("BookCopy").
		First(&rental, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &rental, nil
}

func (r *rentalRepository) FindActiveForCustomerBook(db *gorm.DB, customerID, bookID int64) (*models.Rental, error) {
	var rental models.Rental
	err := pick(db, r.db).
		Joins("JOIN book_copies ON book_copies.id = rentals.book_copy_id").
		Where("rentals.customer_id = ? AND book_copies.book_id = ? AND rentals.status = ?",
			customerID, bookID, models.RentalStatusBorrowed).
		First(&rental).Error
	if err != nil {
		return nil, err
	}
	return &rental, nil
}

func (r *rentalRepository) ListByCustomer(db *gorm.DB, customerID int64) ([]models.Rental, error) {
	var rentals []models.Rental
	err := pick(db, r.db).
		Where("customer_id = ?", customerID).
		Order("borrow_date DESC").
		Find(&rentals).Error
	if err != nil {
		return nil, err
	}
	return rentals, nil
}

func (r *rentalRepository) Close(db *gorm.DB, id int64, status models.RentalStatus, at time.Time) (bool, error) {
	res := pick(db, r.db).Model(&models.Rental{}).
		Where("id = ? AND status = ?", id, models.RentalStatusBorrowed).
		Updates(map[string]interface{}{"status": status, "actual_return_date": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *rentalRepository) SetInvoice(db *gorm.DB, id, invoiceID int64) error {
	return pick(db, r.db).Model(&models.Rental{}).
		Where("id = ?", id).
		Update("invoice_id", invoiceID).Error
}
