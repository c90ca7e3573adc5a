package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookCopyStatus string

const (
	BookCopyStatusAvailable   BookCopyStatus = "available"
	BookCopyStatusUnavailable BookCopyStatus = "unavailable"
	BookCopyStatusLost        BookCopyStatus = "lost"
)

type RentalStatus string

const (
	RentalStatusBorrowed RentalStatus = "Borrowed"
	RentalStatusReturned RentalStatus = "Returned"
	// RentalStatusLate is a stored value only; lateness is derived from the dates.
	RentalStatusLate RentalStatus = "Late"
	RentalStatusLost RentalStatus = "Lost"
)

type EventType string

const (
	EventTypeExhibition EventType = "E"
	EventTypeSeminar    EventType = "S"
)

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "Cash"
	PaymentMethodCredit PaymentMethod = "Credit"
	PaymentMethodDebit  PaymentMethod = "Debit"
	PaymentMethodPayPal PaymentMethod = "PayPal"
)

// IDSequence holds the last identifier handed out for one entity class.
type IDSequence struct {
	Entity    string `gorm:"size:64;primaryKey" json:"entity"`
	LastValue int64  `gorm:"not null" json:"last_value"`
}

type Book struct {
	ID   int64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name string `gorm:"size:100;not null" json:"name"`
}

type BookCopy struct {
	ID     int64          `gorm:"primaryKey;autoIncrement:false" json:"id"`
	BookID int64          `gorm:"not null;index" json:"book_id"`
	Book   Book           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Status BookCopyStatus `gorm:"size:20;not null;index" json:"status"`
}

type Customer struct {
	ID    int64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	FName string `gorm:"size:50;not null" json:"fname"`
	LName string `gorm:"size:50;not null" json:"lname"`
	Email string `gorm:"size:254;not null" json:"email"`
}

type Author struct {
	ID    int64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	FName string `gorm:"size:50;not null" json:"fname"`
	LName string `gorm:"size:50;not null" json:"lname"`
	Email string `gorm:"size:254;not null" json:"email"`
}

type Invoice struct {
	ID     int64           `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Date   time.Time       `gorm:"not null" json:"date"`
	Amount decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
}

type Payment struct {
	ID             int64           `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Date           time.Time       `gorm:"not null" json:"date"`
	Method         PaymentMethod   `gorm:"size:20;not null" json:"method"`
	CardholderName *string         `gorm:"size:100" json:"cardholder_name,omitempty"`
	Amount         decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	Reference      string          `gorm:"size:36;not null;uniqueIndex" json:"reference"`
	InvoiceID      int64           `gorm:"not null;index" json:"invoice_id"`
	Invoice        Invoice         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

type Rental struct {
	ID                 int64        `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CustomerID         int64        `gorm:"not null;index" json:"customer_id"`
	Customer           Customer     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	BookCopyID         int64        `gorm:"not null;index" json:"book_copy_id"`
	BookCopy           BookCopy     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	Status             RentalStatus `gorm:"size:25;not null;index" json:"status"`
	BorrowDate         time.Time    `gorm:"not null" json:"borrow_date"`
	ExpectedReturnDate time.Time    `gorm:"not null" json:"expected_return_date"`
	ActualReturnDate   *time.Time   `json:"actual_return_date"`
	InvoiceID          *int64       `gorm:"uniqueIndex" json:"invoice_id"`
	Invoice            *Invoice     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
}

// IsOverdue reports whether the rental is past its expected return date at now.
// Returned rentals are never overdue.
func (r *Rental) IsOverdue(now time.Time) bool {
	return r.Status != RentalStatusReturned && now.After(r.ExpectedReturnDate)
}

// DaysOverdue counts whole days past the expected return date, 0 when not overdue.
func (r *Rental) DaysOverdue(now time.Time) int {
	if !r.IsOverdue(now) {
		return 0
	}
	end := now
	if r.Status == RentalStatusReturned && r.ActualReturnDate != nil {
		end = *r.ActualReturnDate
	}
	return WholeDaysBetween(r.ExpectedReturnDate, end)
}

// WholeDaysBetween returns the floored number of days from -> to, never negative.
func WholeDaysBetween(from, to time.Time) int {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

type StudyRoom struct {
	ID       int64 `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Capacity int   `gorm:"not null" json:"capacity"`
}

type Reservation struct {
	ID         int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CustomerID int64     `gorm:"not null;index" json:"customer_id"`
	Customer   Customer  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	RoomID     int64     `gorm:"not null;index:idx_reservation_room_window,priority:1" json:"room_id"`
	Room       StudyRoom `gorm:"foreignKey:RoomID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	TopicDesc  string    `gorm:"size:255;not null" json:"topic_desc"`
	StartTime  time.Time `gorm:"not null;index:idx_reservation_room_window,priority:2" json:"start_time"`
	EndTime    time.Time `gorm:"not null" json:"end_time"`
	GroupSize  int       `gorm:"not null" json:"group_size"`
}

// Overlaps reports half-open interval overlap with [start, end).
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && r.EndTime.After(start)
}

type Event struct {
	ID               int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name             string    `gorm:"size:100;not null" json:"name"`
	StartTime        time.Time `gorm:"not null" json:"start_time"`
	EndTime          time.Time `gorm:"not null" json:"end_time"`
	AttendeeCapacity int64     `gorm:"not null" json:"attendee_capacity"`
	Type             EventType `gorm:"size:1;not null" json:"type"`
}

// HasEnded reports whether the event finished before now.
func (e *Event) HasEnded(now time.Time) bool {
	return e.EndTime.Before(now)
}

type ExhibitionAttendance struct {
	ID         int64    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	EventID    int64    `gorm:"not null;uniqueIndex:uniq_exhibition_attendee,priority:1" json:"event_id"`
	Event      Event    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CustomerID int64    `gorm:"not null;uniqueIndex:uniq_exhibition_attendee,priority:2" json:"customer_id"`
	Customer   Customer `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

type SeminarAttendance struct {
	ID       int64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	EventID  int64  `gorm:"not null;uniqueIndex:uniq_seminar_speaker,priority:1" json:"event_id"`
	Event    Event  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	AuthorID int64  `gorm:"not null;uniqueIndex:uniq_seminar_speaker,priority:2" json:"author_id"`
	Author   Author `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}
