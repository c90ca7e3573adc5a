package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"librarycore/internal/database"
	"librarycore/internal/models"
	"librarycore/internal/repositories"
)

// ─── Fee Policy ───────────────────────────────────────────────────────────────

var (
	// BaseRentalFee is charged for every rental, returned or lost.
	BaseRentalFee = decimal.RequireFromString("5.00")

	// LateFeePerDay is charged for each whole day past the expected return date.
	LateFeePerDay = decimal.RequireFromString("1.00")

	// ReplacementCost is charged on top of the base fee when a copy is lost.
	ReplacementCost = decimal.RequireFromString("25.00")
)

// LateDays counts whole days between the expected and the actual return,
// floored at 0.
func LateDays(expectedReturn, actualReturn time.Time) int {
	return models.WholeDaysBetween(expectedReturn, actualReturn)
}

// ReturnFee is the base fee plus the late fee for the given return time.
func ReturnFee(expectedReturn, actualReturn time.Time) decimal.Decimal {
	late := decimal.NewFromInt(int64(LateDays(expectedReturn, actualReturn)))
	return BaseRentalFee.Add(late.Mul(LateFeePerDay))
}

// LostFee does not depend on elapsed time.
func LostFee() decimal.Decimal {
	return ReplacementCost.Add(BaseRentalFee)
}

// Balance is what is still owed: never negative.
func Balance(amount, paid decimal.Decimal) decimal.Decimal {
	if owed := amount.Sub(paid); owed.IsPositive() {
		return owed
	}
	return decimal.Zero
}

// IsPaid reports whether payments cover the invoice amount.
func IsPaid(amount, paid decimal.Decimal) bool {
	return paid.GreaterThanOrEqual(amount)
}

// ─── Service ──────────────────────────────────────────────────────────────────

// InvoiceSummary is an invoice with its payments and derived totals.
type InvoiceSummary struct {
	Invoice   models.Invoice
	Payments  []models.Payment
	TotalPaid decimal.Decimal
	Balance   decimal.Decimal
	IsPaid    bool
}

type PaymentRequest struct {
	InvoiceID      int64
	Amount         decimal.Decimal
	Method         models.PaymentMethod
	CardholderName *string
}

type BillingService interface {
	RecordPayment(ctx context.Context, req PaymentRequest) (*models.Payment, error)
	SettleInvoice(ctx context.Context, invoiceID int64, method models.PaymentMethod) (*models.Payment, error)
	IsPaid(ctx context.Context, invoiceID int64) (bool, error)
	Balance(ctx context.Context, invoiceID int64) (decimal.Decimal, error)
	InvoiceSummary(ctx context.Context, invoiceID int64) (*InvoiceSummary, error)

	// CreateInvoice and RestateInvoice run inside a caller's transaction.
	CreateInvoice(tx *gorm.DB, amount decimal.Decimal, date time.Time) (*models.Invoice, error)
	RestateInvoice(tx *gorm.DB, invoiceID int64, amount decimal.Decimal, date time.Time) (*models.Invoice, error)
}

type billingService struct {
	tx          database.Transactor
	ids         IDAllocator
	invoiceRepo repositories.InvoiceRepository
	paymentRepo repositories.PaymentRepository
	log         *slog.Logger
	now         func() time.Time
}

func NewBillingService(
	tx database.Transactor,
	ids IDAllocator,
	invoiceRepo repositories.InvoiceRepository,
	paymentRepo repositories.PaymentRepository,
	log *slog.Logger,
) BillingService {
	return &billingService{
		tx:          tx,
		ids:         ids,
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func validateAmount(field string, amount decimal.Decimal, allowZero bool) error {
	if amount.IsNegative() || (!allowZero && amount.IsZero()) {
		if allowZero {
			return invalid(field, "must not be negative")
		}
		return invalid(field, "must be greater than zero")
	}
	if !amount.Equal(amount.Round(2)) {
		return invalid(field, "at most 2 decimal places")
	}
	return nil
}

func (s *billingService) CreateInvoice(tx *gorm.DB, amount decimal.Decimal, date time.Time) (*models.Invoice, error) {
	if err := validateAmount("amount", amount, true); err != nil {
		return nil, err
	}
	id, err := s.ids.Next(tx, EntityInvoice)
	if err != nil {
		return nil, err
	}
	inv := &models.Invoice{ID: id, Date: date, Amount: amount.Round(2)}
	if err := s.invoiceRepo.Create(tx, inv); err != nil {
		s.log.Error("create invoice failed", "invoice_id", id, "err", err)
		return nil, err
	}
	s.log.Info("invoice created", "invoice_id", id, "amount", inv.Amount.StringFixed(2))
	return inv, nil
}

// RestateInvoice sets a new amount and date on an existing invoice. Payments
// already recorded keep counting towards it.
func (s *billingService) RestateInvoice(tx *gorm.DB, invoiceID int64, amount decimal.Decimal, date time.Time) (*models.Invoice, error) {
	if err := validateAmount("amount", amount, true); err != nil {
		return nil, err
	}
	inv, err := s.invoiceRepo.GetByIDForUpdate(tx, invoiceID)
	if err != nil {
		return nil, notFound(err, ErrInvoiceNotFound)
	}
	if err := s.invoiceRepo.Restate(tx, invoiceID, amount.Round(2), date); err != nil {
		return nil, err
	}
	s.log.Info("invoice restated", "invoice_id", invoiceID,
		"from", inv.Amount.StringFixed(2), "to", amount.StringFixed(2))
	inv.Amount = amount.Round(2)
	inv.Date = date
	return inv, nil
}

func validMethod(m models.PaymentMethod) bool {
	switch m {
	case models.PaymentMethodCash, models.PaymentMethodCredit,
		models.PaymentMethodDebit, models.PaymentMethodPayPal:
		return true
	}
	return false
}

// RecordPayment appends a payment to an invoice. Overpayment is accepted and
// logged; the balance never goes below zero.
func (s *billingService) RecordPayment(ctx context.Context, req PaymentRequest) (*models.Payment, error) {
	if err := validateAmount("amount", req.Amount, false); err != nil {
		return nil, err
	}
	if !validMethod(req.Method) {
		return nil, invalid("method", fmt.Sprintf("unsupported payment method %q", req.Method))
	}

	var payment *models.Payment
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		p, err := s.recordPayment(tx, req)
		payment = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *billingService) recordPayment(tx *gorm.DB, req PaymentRequest) (*models.Payment, error) {
	// Lock the invoice so concurrent payments sum consistently.
	inv, err := s.invoiceRepo.GetByIDForUpdate(tx, req.InvoiceID)
	if err != nil {
		return nil, notFound(err, ErrInvoiceNotFound)
	}
	paid, err := s.paymentRepo.SumByInvoice(tx, inv.ID)
	if err != nil {
		return nil, err
	}

	id, err := s.ids.Next(tx, EntityPayment)
	if err != nil {
		return nil, err
	}
	p := &models.Payment{
		ID:             id,
		Date:           s.now(),
		Method:         req.Method,
		CardholderName: req.CardholderName,
		Amount:         req.Amount,
		Reference:      uuid.NewString(),
		InvoiceID:      inv.ID,
	}
	if err := s.paymentRepo.Create(tx, p); err != nil {
		s.log.Error("record payment failed", "invoice_id", inv.ID, "err", err)
		return nil, err
	}

	total := paid.Add(p.Amount)
	if total.GreaterThan(inv.Amount) {
		s.log.Warn("invoice overpaid", "invoice_id", inv.ID,
			"amount", inv.Amount.StringFixed(2), "paid", total.StringFixed(2))
	}
	s.log.Info("payment recorded", "payment_id", p.ID, "invoice_id", inv.ID,
		"amount", p.Amount.StringFixed(2), "method", p.Method, "paid", IsPaid(inv.Amount, total))
	return p, nil
}

// SettleInvoice pays the outstanding balance in one payment.
func (s *billingService) SettleInvoice(ctx context.Context, invoiceID int64, method models.PaymentMethod) (*models.Payment, error) {
	if !validMethod(method) {
		return nil, invalid("method", fmt.Sprintf("unsupported payment method %q", method))
	}

	var payment *models.Payment
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		inv, err := s.invoiceRepo.GetByIDForUpdate(tx, invoiceID)
		if err != nil {
			return notFound(err, ErrInvoiceNotFound)
		}
		paid, err := s.paymentRepo.SumByInvoice(tx, invoiceID)
		if err != nil {
			return err
		}
		owed := Balance(inv.Amount, paid)
		if owed.IsZero() {
			return invalid("invoice_id", "nothing is owed on this invoice")
		}
		payment, err = s.recordPayment(tx, PaymentRequest{
			InvoiceID: invoiceID,
			Amount:    owed,
			Method:    method,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *billingService) IsPaid(ctx context.Context, invoiceID int64) (bool, error) {
	sum, err := s.InvoiceSummary(ctx, invoiceID)
	if err != nil {
		return false, err
	}
	return sum.IsPaid, nil
}

func (s *billingService) Balance(ctx context.Context, invoiceID int64) (decimal.Decimal, error) {
	sum, err := s.InvoiceSummary(ctx, invoiceID)
	if err != nil {
		return decimal.Zero, err
	}
	return sum.Balance, nil
}

// InvoiceSummary reads the invoice and its payments in one transaction.
func (s *billingService) InvoiceSummary(ctx context.Context, invoiceID int64) (*InvoiceSummary, error) {
	var out *InvoiceSummary
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		inv, err := s.invoiceRepo.GetByID(tx, invoiceID)
		if err != nil {
			return notFound(err, ErrInvoiceNotFound)
		}
		payments, err := s.paymentRepo.ListByInvoice(tx, invoiceID)
		if err != nil {
			return err
		}
		paid := decimal.Zero
		for _, p := range payments {
			paid = paid.Add(p.Amount)
		}
		out = &InvoiceSummary{
			Invoice:   *inv,
			Payments:  payments,
			TotalPaid: paid,
			Balance:   Balance(inv.Amount, paid),
			IsPaid:    IsPaid(inv.Amount, paid),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
