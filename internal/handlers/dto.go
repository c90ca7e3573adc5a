package handlers

import (
	"time"

	"librarycore/internal/models"
	"librarycore/internal/services"
)

// Money fields are rendered with exactly two decimals.
type invoiceResponse struct {
	ID     int64     `json:"id"`
	Date   time.Time `json:"date"`
	Amount string    `json:"amount"`
}

func toInvoice(inv models.Invoice) invoiceResponse {
	return invoiceResponse{ID: inv.ID, Date: inv.Date, Amount: inv.Amount.StringFixed(2)}
}

type paymentResponse struct {
	ID             int64                `json:"id"`
	InvoiceID      int64                `json:"invoice_id"`
	Date           time.Time            `json:"date"`
	Method         models.PaymentMethod `json:"method"`
	CardholderName *string              `json:"cardholder_name,omitempty"`
	Amount         string               `json:"amount"`
	Reference      string               `json:"reference"`
}

func toPayment(p models.Payment) paymentResponse {
	return paymentResponse{
		ID:             p.ID,
		InvoiceID:      p.InvoiceID,
		Date:           p.Date,
		Method:         p.Method,
		CardholderName: p.CardholderName,
		Amount:         p.Amount.StringFixed(2),
		Reference:      p.Reference,
	}
}

type invoiceSummaryResponse struct {
	Invoice   invoiceResponse   `json:"invoice"`
	Payments  []paymentResponse `json:"payments"`
	TotalPaid string            `json:"total_paid"`
	Balance   string            `json:"balance"`
	IsPaid    bool              `json:"is_paid"`
}

func toInvoiceSummary(s *services.InvoiceSummary) invoiceSummaryResponse {
	out := invoiceSummaryResponse{
		Invoice:   toInvoice(s.Invoice),
		Payments:  make([]paymentResponse, 0, len(s.Payments)),
		TotalPaid: s.TotalPaid.StringFixed(2),
		Balance:   s.Balance.StringFixed(2),
		IsPaid:    s.IsPaid,
	}
	for _, p := range s.Payments {
		out.Payments = append(out.Payments, toPayment(p))
	}
	return out
}

type rentalResponse struct {
	models.Rental
	IsOverdue   *bool `json:"is_overdue,omitempty"`
	DaysOverdue *int  `json:"days_overdue,omitempty"`
}

func toRentalView(v *services.RentalView) rentalResponse {
	return rentalResponse{Rental: v.Rental, IsOverdue: &v.IsOverdue, DaysOverdue: &v.DaysOverdue}
}

type bookListingResponse struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	AvailableCopies int64  `json:"available_copies"`
}

// ─── Requests ─────────────────────────────────────────────────────────────────

type createBookRequest struct {
	Name   string `json:"book_name" binding:"required"`
	Copies int    `json:"copies" binding:"min=0"`
}

type addCopiesRequest struct {
	NumCopies int `json:"num_copies" binding:"required,min=1"`
}

type createRentalRequest struct {
	CustomerID     int64     `json:"customer_id" binding:"required,min=1"`
	BookCopyID     int64     `json:"book_copy_id" binding:"required,min=1"`
	ExpectedReturn time.Time `json:"exp_return_dt" binding:"required"`
}

// closeRentalRequest is optional; the server clock is used when At is absent.
type closeRentalRequest struct {
	At *time.Time `json:"at"`
}

type paymentRequest struct {
	Amount         string               `json:"amount" binding:"required"`
	Method         models.PaymentMethod `json:"method" binding:"required"`
	CardholderName *string              `json:"cardholder_name"`
}

type settleRequest struct {
	Method models.PaymentMethod `json:"method" binding:"required"`
}

type createRoomRequest struct {
	Capacity int `json:"capacity" binding:"required,min=1"`
}

type reserveRoomRequest struct {
	Start     time.Time `json:"start_dt" binding:"required"`
	End       time.Time `json:"end_dt" binding:"required"`
	GroupSize int       `json:"group_size"`
	Topic     string    `json:"topic_desc"`
}

type createEventRequest struct {
	Name             string           `json:"event_name" binding:"required"`
	Start            time.Time        `json:"start_dt" binding:"required"`
	End              time.Time        `json:"end_dt" binding:"required"`
	AttendeeCapacity int64            `json:"attd_no" binding:"required,min=1"`
	Type             models.EventType `json:"event_type" binding:"required,oneof=E S"`
}
