package repositories

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"librarycore/internal/models"
)

type InvoiceRepository interface {
	Create(db *gorm.DB, invoice *models.Invoice) error
	GetByID(db *gorm.DB, id int64) (*models.Invoice, error)
	GetByIDForUpdate(db *gorm.DB, id int64) (*models.Invoice, error)
	Restate(db *gorm.DB, id int64, amount decimal.Decimal, date time.Time) error
}

type PaymentRepository interface {
	Create(db *gorm.DB, payment *models.Payment) error
	ListByInvoice(db *gorm.DB, invoiceID int64) ([]models.Payment, error)
	SumByInvoice(db *gorm.DB, invoiceID int64) (decimal.Decimal, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(db *gorm.DB, invoice *models.Invoice) error {
	return pick(db, r.db).Create(invoice).Error
}

func (r *invoiceRepository) GetByID(db *gorm.DB, id int64) (*models.Invoice, error) {
	var inv models.Invoice
	if err := pick(db, r.db).First(&inv, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepository) GetByIDForUpdate(db *gorm.DB, id int64) (*models.Invoice, error) {
	var inv models.Invoice
	if err := forUpdate(pick(db, r.db)).First(&inv, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepository) Restate(db *gorm.DB, id int64, amount decimal.Decimal, date time.Time) error {
	return pick(db, r.db).Model(&models.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"amount": amount, "date": date}).Error
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(db *gorm.DB, payment *models.Payment) error {
	return pick(db, r.db).Omit("Invoice").Create(payment).Error
}

func (r *paymentRepository) ListByInvoice(db *gorm.DB, invoiceID int64) ([]models.Payment, error) {
	var payments []models.Payment
	err := pick(db, r.db).
		Where("invoice_id = ?", invoiceID).
		Order("date ASC, id ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *paymentRepository) SumByInvoice(db *gorm.DB, invoiceID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	row := pick(db, r.db).Model(&models.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("invoice_id = ?", invoiceID).
		Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}
