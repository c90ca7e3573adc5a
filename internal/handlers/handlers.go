package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"librarycore/internal/services"
)

// Services is everything the HTTP surface calls into.
type Services struct {
	Catalog    services.CatalogService
	Rentals    services.RentalService
	Billing    services.BillingService
	Scheduling services.SchedulingService
	// Health reports whether storage is reachable.
	Health func(ctx context.Context) error
}

type LibraryHandler struct {
	svc Services
	now func() time.Time
}

func RegisterRoutes(r *gin.Engine, svc Services, jwtSecret string) {
	h := &LibraryHandler{svc: svc, now: func() time.Time { return time.Now().UTC() }}

	r.GET("/healthz", h.health)

	api := r.Group("/", Authenticate(jwtSecret))
	employee := RequireRole(services.RoleEmployee)
	customer := RequireRole(services.RoleCustomer)

	// Catalog
	api.GET("/books", h.listBooks)
	api.POST("/books", employee, h.createBook)
	api.POST("/books/:id/copies", employee, h.addBookCopies)

	// Rentals
	api.POST("/books/:id/borrow", customer, h.borrowBook)
	api.POST("/rentals", employee, h.createRental)
	api.GET("/rentals/:id", h.getRental)
	api.POST("/rentals/:id/return", employee, h.returnRental)
	api.POST("/rentals/:id/lost", employee, h.markLost)
	api.GET("/customers/:id/rentals", h.listCustomerRentals)

	// Billing
	api.GET("/invoices/:id", employee, h.getInvoice)
	api.POST("/invoices/:id/payments", employee, h.recordPayment)
	api.POST("/invoices/:id/settle", employee, h.settleInvoice)

	// Study rooms
	api.POST("/rooms", employee, h.createRoom)
	api.GET("/rooms/:id/availability", h.roomAvailability)
	api.GET("/rooms/:id/reservations", h.listRoomReservations)
	api.POST("/rooms/:id/reservations", customer, h.reserveRoom)
	api.DELETE("/reservations/:id", RequireRole(services.RoleCustomer, services.RoleEmployee), h.cancelReservation)

	// Events
	api.POST("/events", employee, h.createEvent)
	api.POST("/events/:id/registrations", customer, h.registerForEvent)
	api.DELETE("/events/:id/registrations", customer, h.unregisterFromEvent)
	api.POST("/events/:id/speakers", RequireRole(services.RoleAuthor), h.registerSpeaker)
}

func (h *LibraryHandler) health(c *gin.Context) {
	if h.svc.Health != nil {
		if err := h.svc.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ─── Catalog ──────────────────────────────────────────────────────────────────

func (h *LibraryHandler) createBook(c *gin.Context) {
	var req createBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	book, err := h.svc.Catalog.CreateBook(c.Request.Context(), req.Name, req.Copies)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

func (h *LibraryHandler) addBookCopies(c *gin.Context) {
	bookID, ok := pathID(c, "book")
	if !ok {
		return
	}
	var req addCopiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	copies, err := h.svc.Catalog.AddBookCopies(c.Request.Context(), bookID, req.NumCopies)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, copies)
}

func (h *LibraryHandler) listBooks(c *gin.Context) {
	books, err := h.svc.Catalog.ListBooks(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]bookListingResponse, 0, len(books))
	for _, b := range books {
		out = append(out, bookListingResponse{ID: b.Book.ID, Name: b.Book.Name, AvailableCopies: b.AvailableCopies})
	}
	c.JSON(http.StatusOK, out)
}

// ─── Rentals ──────────────────────────────────────────────────────────────────

func (h *LibraryHandler) borrowBook(c *gin.Context) {
	bookID, ok := pathID(c, "book")
	if !ok {
		return
	}

	rental, err := h.svc.Rentals.BorrowBook(c.Request.Context(), actorFrom(c), bookID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rental)
}

func (h *LibraryHandler) createRental(c *gin.Context) {
	var req createRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	rental, err := h.svc.Rentals.CreateRental(c.Request.Context(), req.CustomerID, req.BookCopyID, req.ExpectedReturn)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rental)
}

// closeTime reads the optional body of a return or loss request.
func (h *LibraryHandler) closeTime(c *gin.Context) (time.Time, bool) {
	var req closeRentalRequest
	// An empty body, chunked or not, decodes to io.EOF.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return time.Time{}, false
	}
	if req.At != nil {
		return req.At.UTC(), true
	}
	return h.now(), true
}

func (h *LibraryHandler) returnRental(c *gin.Context) {
	rentalID, ok := pathID(c, "rental")
	if !ok {
		return
	}
	at, ok := h.closeTime(c)
	if !ok {
		return
	}

	rental, err := h.svc.Rentals.ReturnBook(c.Request.Context(), rentalID, at)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rental)
}

func (h *LibraryHandler) markLost(c *gin.Context) {
	rentalID, ok := pathID(c, "rental")
	if !ok {
		return
	}
	at, ok := h.closeTime(c)
	if !ok {
		return
	}

	rental, err := h.svc.Rentals.MarkLost(c.Request.Context(), rentalID, at)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rental)
}

// ownsCustomer reports whether the actor is staff or the customer itself.
func ownsCustomer(actor services.Actor, customerID int64) bool {
	if actor.HasRole(services.RoleEmployee) {
		return true
	}
	return actor.CustomerID != nil && *actor.CustomerID == customerID
}

func (h *LibraryHandler) getRental(c *gin.Context) {
	rentalID, ok := pathID(c, "rental")
	if !ok {
		return
	}

	view, err := h.svc.Rentals.GetRental(c.Request.Context(), rentalID, h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	if !ownsCustomer(actorFrom(c), view.Rental.CustomerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your rental"})
		return
	}
	c.JSON(http.StatusOK, toRentalView(view))
}

func (h *LibraryHandler) listCustomerRentals(c *gin.Context) {
	customerID, ok := pathID(c, "customer")
	if !ok {
		return
	}
	if !ownsCustomer(actorFrom(c), customerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your rentals"})
		return
	}

	rentals, err := h.svc.Rentals.ListCustomerRentals(c.Request.Context(), customerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rentals)
}
