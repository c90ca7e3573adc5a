package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"librarycore/internal/models"
)

// memStore is an in-memory stand-in for the schema. The repositories below
// ignore the tx handle; serialTx provides isolation by running one
// transaction at a time and rolling back the maps on error.
type memStore struct {
	mu sync.Mutex

	seq          map[string]int64
	books        map[int64]models.Book
	copies       map[int64]models.BookCopy
	customers    map[int64]models.Customer
	authors      map[int64]models.Author
	rentals      map[int64]models.Rental
	invoices     map[int64]models.Invoice
	payments     map[int64]models.Payment
	rooms        map[int64]models.StudyRoom
	reservations map[int64]models.Reservation
	events       map[int64]models.Event
	exhibitions  map[int64]models.ExhibitionAttendance
	seminars     map[int64]models.SeminarAttendance
}

func newMemStore() *memStore {
	return &memStore{
		seq:          map[string]int64{},
		books:        map[int64]models.Book{},
		copies:       map[int64]models.BookCopy{},
		customers:    map[int64]models.Customer{},
		authors:      map[int64]models.Author{},
		rentals:      map[int64]models.Rental{},
		invoices:     map[int64]models.Invoice{},
		payments:     map[int64]models.Payment{},
		rooms:        map[int64]models.StudyRoom{},
		reservations: map[int64]models.Reservation{},
		events:       map[int64]models.Event{},
		exhibitions:  map[int64]models.ExhibitionAttendance{},
		seminars:     map[int64]models.SeminarAttendance{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() *memStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &memStore{
		seq:          cloneMap(s.seq),
		books:        cloneMap(s.books),
		copies:       cloneMap(s.copies),
		customers:    cloneMap(s.customers),
		authors:      cloneMap(s.authors),
		rentals:      cloneMap(s.rentals),
		invoices:     cloneMap(s.invoices),
		payments:     cloneMap(s.payments),
		rooms:        cloneMap(s.rooms),
		reservations: cloneMap(s.reservations),
		events:       cloneMap(s.events),
		exhibitions:  cloneMap(s.exhibitions),
		seminars:     cloneMap(s.seminars),
	}
}

func (s *memStore) restore(snap *memStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq, s.books, s.copies = snap.seq, snap.books, snap.copies
	s.customers, s.authors = snap.customers, snap.authors
	s.rentals, s.invoices, s.payments = snap.rentals, snap.invoices, snap.payments
	s.rooms, s.reservations = snap.rooms, snap.reservations
	s.events, s.exhibitions, s.seminars = snap.events, snap.exhibitions, snap.seminars
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraint}
}

// ─── Transactor ───────────────────────────────────────────────────────────────

type serialTx struct {
	mu    sync.Mutex
	store *memStore
	calls int
}

func (t *serialTx) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := t.store.snapshot()
	if err := fn(nil); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// ─── Sequences ────────────────────────────────────────────────────────────────

type fakeSequences struct{ s *memStore }

func (r fakeSequences) maxID(table string) int64 {
	var ids []int64
	switch table {
	case "books":
		for id := range r.s.books {
			ids = append(ids, id)
		}
	case "book_copies":
		for id := range r.s.copies {
			ids = append(ids, id)
		}
	case "rentals":
		for id := range r.s.rentals {
			ids = append(ids, id)
		}
	case "invoices":
		for id := range r.s.invoices {
			ids = append(ids, id)
		}
	case "payments":
		for id := range r.s.payments {
			ids = append(ids, id)
		}
	case "study_rooms":
		for id := range r.s.rooms {
			ids = append(ids, id)
		}
	case "reservations":
		for id := range r.s.reservations {
			ids = append(ids, id)
		}
	case "events":
		for id := range r.s.events {
			ids = append(ids, id)
		}
	case "exhibition_attendances":
		for id := range r.s.exhibitions {
			ids = append(ids, id)
		}
	case "seminar_attendances":
		for id := range r.s.seminars {
			ids = append(ids, id)
		}
	}
	var highest int64
	for _, id := range ids {
		if id > highest {
			highest = id
		}
	}
	return highest
}

func (r fakeSequences) Seed(_ *gorm.DB, entity, table string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.seq[entity]; !ok {
		r.s.seq[entity] = r.maxID(table)
	}
	return nil
}

func (r fakeSequences) LockCurrent(_ *gorm.DB, entity string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.seq[entity]
	if !ok {
		return 0, gorm.ErrRecordNotFound
	}
	return v, nil
}

func (r fakeSequences) Store(_ *gorm.DB, entity string, value int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.seq[entity] = value
	return nil
}

// ─── Books ────────────────────────────────────────────────────────────────────

type fakeBooks struct{ s *memStore }

func (r fakeBooks) Create(_ *gorm.DB, book *models.Book) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.books[book.ID] = *book
	return nil
}

func (r fakeBooks) List(_ *gorm.DB) ([]models.Book, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Book, 0, len(r.s.books))
	for _, b := range r.s.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeBooks) GetByID(_ *gorm.DB, id int64) (*models.Book, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.books[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &b, nil
}

func (r fakeBooks) CountAvailableCopies(_ *gorm.DB) (map[int64]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[int64]int64{}
	for _, c := range r.s.copies {
		if c.Status == models.BookCopyStatusAvailable {
			out[c.BookID]++
		}
	}
	return out, nil
}

type fakeCopies struct{ s *memStore }

func (r fakeCopies) Create(_ *gorm.DB, copy *models.BookCopy) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.copies[copy.ID] = *copy
	return nil
}

func (r fakeCopies) GetByID(_ *gorm.DB, id int64) (*models.BookCopy, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.copies[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r fakeCopies) GetByIDForUpdate(db *gorm.DB, id int64) (*models.BookCopy, error) {
	return r.GetByID(db, id)
}

func (r fakeCopies) FindAvailableForUpdate(_ *gorm.DB, bookID int64) (*models.BookCopy, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *models.BookCopy
	for _, c := range r.s.copies {
		if c.BookID != bookID || c.Status != models.BookCopyStatusAvailable {
			continue
		}
		if found == nil || c.ID < found.ID {
			c := c
			found = &c
		}
	}
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return found, nil
}

func (r fakeCopies) TransitionStatus(_ *gorm.DB, id int64, from, to models.BookCopyStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.copies[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	r.s.copies[id] = c
	return true, nil
}

// ─── People ───────────────────────────────────────────────────────────────────

type fakeCustomers struct{ s *memStore }

func (r fakeCustomers) GetByID(_ *gorm.DB, id int64) (*models.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r fakeCustomers) GetByIDForUpdate(db *gorm.DB, id int64) (*models.Customer, error) {
	return r.GetByID(db, id)
}

type fakeAuthors struct{ s *memStore }

func (r fakeAuthors) GetByID(_ *gorm.DB, id int64) (*models.Author, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.authors[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &a, nil
}

// ─── Rentals ──────────────────────────────────────────────────────────────────

type fakeRentals struct{ s *memStore }

func (r fakeRentals) Create(_ *gorm.DB, rental *models.Rental) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.rentals {
		if other.BookCopyID == rental.BookCopyID && other.Status == models.RentalStatusBorrowed {
			return uniqueViolation("uniq_active_rental")
		}
	}
	r.s.rentals[rental.ID] = *rental
	return nil
}

func (r fakeRentals) GetByID(_ *gorm.DB, id int64) (*models.Rental, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rental, ok := r.s.rentals[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	rental.BookCopy = r.s.copies[rental.BookCopyID]
	return &rental, nil
}

func (r fakeRentals) GetByIDForUpdate(db *gorm.DB, id int64) (*models.Rental, error) {
	return r.GetByID(db, id)
}

func (r fakeRentals) FindActiveForCustomerBook(_ *gorm.DB, customerID, bookID int64) (*models.Rental, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rental := range r.s.rentals {
		if rental.CustomerID == customerID &&
			rental.Status == models.RentalStatusBorrowed &&
			r.s.copies[rental.BookCopyID].BookID == bookID {
			return &rental, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeRentals) ListByCustomer(_ *gorm.DB, customerID int64) ([]models.Rental, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Rental
	for _, rental := range r.s.rentals {
		if rental.CustomerID == customerID {
			out = append(out, rental)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BorrowDate.After(out[j].BorrowDate) })
	return out, nil
}

func (r fakeRentals) Close(_ *gorm.DB, id int64, status models.RentalStatus, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rental, ok := r.s.rentals[id]
	if !ok || rental.Status != models.RentalStatusBorrowed {
		return false, nil
	}
	rental.Status = status
	rental.ActualReturnDate = &at
	r.s.rentals[id] = rental
	return true, nil
}

func (r fakeRentals) SetInvoice(_ *gorm.DB, id, invoiceID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rental, ok := r.s.rentals[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	rental.InvoiceID = &invoiceID
	r.s.rentals[id] = rental
	return nil
}

// ─── Billing ──────────────────────────────────────────────────────────────────

type fakeInvoices struct{ s *memStore }

func (r fakeInvoices) Create(_ *gorm.DB, invoice *models.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.invoices[invoice.ID] = *invoice
	return nil
}

func (r fakeInvoices) GetByID(_ *gorm.DB, id int64) (*models.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &inv, nil
}

func (r fakeInvoices) GetByIDForUpdate(db *gorm.DB, id int64) (*models.Invoice, error) {
	return r.GetByID(db, id)
}

func (r fakeInvoices) Restate(_ *gorm.DB, id int64, amount decimal.Decimal, date time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	inv.Amount, inv.Date = amount, date
	r.s.invoices[id] = inv
	return nil
}

type fakePayments struct{ s *memStore }

func (r fakePayments) Create(_ *gorm.DB, payment *models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.payments[payment.ID] = *payment
	return nil
}

func (r fakePayments) ListByInvoice(_ *gorm.DB, invoiceID int64) ([]models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Payment
	for _, p := range r.s.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakePayments) SumByInvoice(db *gorm.DB, invoiceID int64) (decimal.Decimal, error) {
	payments, _ := r.ListByInvoice(db, invoiceID)
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total, nil
}

// ─── Rooms ────────────────────────────────────────────────────────────────────

type fakeRooms struct{ s *memStore }

func (r fakeRooms) Create(_ *gorm.DB, room *models.StudyRoom) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.rooms[room.ID] = *room
	return nil
}

func (r fakeRooms) GetByID(_ *gorm.DB, id int64) (*models.StudyRoom, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	room, ok := r.s.rooms[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &room, nil
}

func (r fakeRooms) GetByIDForUpdate(db *gorm.DB, id int64) (*models.StudyRoom, error) {
	return r.GetByID(db, id)
}

type fakeReservations struct{ s *memStore }

func (r fakeReservations) Create(_ *gorm.DB, res *models.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.reservations[res.ID] = *res
	return nil
}

func (r fakeReservations) GetByIDForUpdate(_ *gorm.DB, id int64) (*models.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &res, nil
}

func (r fakeReservations) Delete(_ *gorm.DB, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.reservations, id)
	return nil
}

func (r fakeReservations) CountOverlapping(db *gorm.DB, roomID int64, start, end time.Time, excludeID *int64) (int64, error) {
	list, _ := r.ListOverlapping(db, roomID, start, end)
	var n int64
	for _, res := range list {
		if excludeID != nil && res.ID == *excludeID {
			continue
		}
		n++
	}
	return n, nil
}

func (r fakeReservations) CountCovering(_ *gorm.DB, roomID int64, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, res := range r.s.reservations {
		if res.RoomID == roomID && !at.Before(res.StartTime) && at.Before(res.EndTime) {
			n++
		}
	}
	return n, nil
}

func (r fakeReservations) ListOverlapping(_ *gorm.DB, roomID int64, start, end time.Time) ([]models.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Reservation
	for _, res := range r.s.reservations {
		if res.RoomID == roomID && res.Overlaps(start, end) {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// ─── Events ───────────────────────────────────────────────────────────────────

type fakeEvents struct{ s *memStore }

func (r fakeEvents) Create(_ *gorm.DB, event *models.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.events[event.ID] = *event
	return nil
}

func (r fakeEvents) GetByID(_ *gorm.DB, id int64) (*models.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &e, nil
}

func (r fakeEvents) GetByIDForUpdate(db *gorm.DB, id int64) (*models.Event, error) {
	return r.GetByID(db, id)
}

type fakeAttendance struct{ s *memStore }

func (r fakeAttendance) CreateExhibition(_ *gorm.DB, a *models.ExhibitionAttendance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.exhibitions {
		if other.EventID == a.EventID && other.CustomerID == a.CustomerID {
			return uniqueViolation("uniq_exhibition_attendee")
		}
	}
	r.s.exhibitions[a.ID] = *a
	return nil
}

func (r fakeAttendance) FindExhibition(_ *gorm.DB, eventID, customerID int64) (*models.ExhibitionAttendance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.exhibitions {
		if a.EventID == eventID && a.CustomerID == customerID {
			return &a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeAttendance) DeleteExhibition(_ *gorm.DB, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.exhibitions, id)
	return nil
}

func (r fakeAttendance) CountExhibition(_ *gorm.DB, eventID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, a := range r.s.exhibitions {
		if a.EventID == eventID {
			n++
		}
	}
	return n, nil
}

func (r fakeAttendance) CreateSeminar(_ *gorm.DB, a *models.SeminarAttendance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.seminars {
		if other.EventID == a.EventID && other.AuthorID == a.AuthorID {
			return uniqueViolation("uniq_seminar_speaker")
		}
	}
	r.s.seminars[a.ID] = *a
	return nil
}

func (r fakeAttendance) FindSeminar(_ *gorm.DB, eventID, authorID int64) (*models.SeminarAttendance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.seminars {
		if a.EventID == eventID && a.AuthorID == authorID {
			return &a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeAttendance) CountSeminar(_ *gorm.DB, eventID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, a := range r.s.seminars {
		if a.EventID == eventID {
			n++
		}
	}
	return n, nil
}

// ─── Fixture ──────────────────────────────────────────────────────────────────

// fixture wires every service against one memStore with a fixed clock.
type fixture struct {
	store *memStore
	tx    *serialTx
	now   time.Time

	billing    *billingService
	rentals    *rentalService
	scheduling *schedulingService
	catalog    *catalogService
}

var testNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture() *fixture {
	store := newMemStore()
	tx := &serialTx{store: store}
	log := discardLogger()
	ids := NewIDAllocator(fakeSequences{store})
	ledger := NewLedger(fakeCopies{store}, fakeReservations{store}, fakeAttendance{store})

	f := &fixture{store: store, tx: tx, now: testNow}
	clock := func() time.Time { return f.now }

	billing := NewBillingService(tx, ids, fakeInvoices{store}, fakePayments{store}, log).(*billingService)
	billing.now = clock

	rentals := NewRentalService(RentalDeps{
		Tx:           tx,
		IDs:          ids,
		Ledger:       ledger,
		Billing:      billing,
		BookRepo:     fakeBooks{store},
		CopyRepo:     fakeCopies{store},
		CustomerRepo: fakeCustomers{store},
		RentalRepo:   fakeRentals{store},
		Log:          log,
	}, 0).(*rentalService)
	rentals.now = clock

	scheduling := NewSchedulingService(SchedulingDeps{
		Tx:             tx,
		IDs:            ids,
		Ledger:         ledger,
		RoomRepo:       fakeRooms{store},
		ResRepo:        fakeReservations{store},
		EventRepo:      fakeEvents{store},
		AttendanceRepo: fakeAttendance{store},
		CustomerRepo:   fakeCustomers{store},
		AuthorRepo:     fakeAuthors{store},
		Log:            log,
	}).(*schedulingService)
	scheduling.now = clock

	catalog := NewCatalogService(tx, ids, fakeBooks{store}, fakeCopies{store},
		fakeRooms{store}, fakeEvents{store}, log).(*catalogService)

	f.billing, f.rentals, f.scheduling, f.catalog = billing, rentals, scheduling, catalog
	return f
}

func (f *fixture) addCustomer(id int64) Actor {
	f.store.customers[id] = models.Customer{ID: id, FName: "Test", LName: "Customer", Email: "c@example.com"}
	return Actor{Subject: "customer", Roles: []Role{RoleCustomer}, CustomerID: &id}
}

func (f *fixture) addAuthor(id int64) Actor {
	f.store.authors[id] = models.Author{ID: id, FName: "Test", LName: "Author", Email: "a@example.com"}
	return Actor{Subject: "author", Roles: []Role{RoleAuthor}, AuthorID: &id}
}

// addBook stores a book with n available copies and returns the copy ids.
func (f *fixture) addBook(id int64, n int) []int64 {
	f.store.books[id] = models.Book{ID: id, Name: "Test Book"}
	base := id * 100
	ids := make([]int64, 0, n)
	for i := 1; i <= n; i++ {
		cid := base + int64(i)
		f.store.copies[cid] = models.BookCopy{ID: cid, BookID: id, Status: models.BookCopyStatusAvailable}
		ids = append(ids, cid)
	}
	return ids
}

func (f *fixture) addRoom(id int64) {
	f.store.rooms[id] = models.StudyRoom{ID: id, Capacity: 6}
}

func (f *fixture) addEvent(id int64, typ models.EventType, capacity int64) {
	f.store.events[id] = models.Event{
		ID:               id,
		Name:             "Test Event",
		StartTime:        testNow.Add(24 * time.Hour),
		EndTime:          testNow.Add(26 * time.Hour),
		AttendeeCapacity: capacity,
		Type:             typ,
	}
}

func (f *fixture) copyStatus(id int64) models.BookCopyStatus {
	return f.store.copies[id].Status
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
