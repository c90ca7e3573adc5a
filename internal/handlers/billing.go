package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"librarycore/internal/services"
)

func (h *LibraryHandler) getInvoice(c *gin.Context) {
	invoiceID, ok := pathID(c, "invoice")
	if !ok {
		return
	}

	summary, err := h.svc.Billing.InvoiceSummary(c.Request.Context(), invoiceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceSummary(summary))
}

func (h *LibraryHandler) recordPayment(c *gin.Context) {
	invoiceID, ok := pathID(c, "invoice")
	if !ok {
		return
	}
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a decimal amount", "field": "amount"})
		return
	}

	payment, err := h.svc.Billing.RecordPayment(c.Request.Context(), services.PaymentRequest{
		InvoiceID:      invoiceID,
		Amount:         amount,
		Method:         req.Method,
		CardholderName: req.CardholderName,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPayment(*payment))
}

func (h *LibraryHandler) settleInvoice(c *gin.Context) {
	invoiceID, ok := pathID(c, "invoice")
	if !ok {
		return
	}
	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	payment, err := h.svc.Billing.SettleInvoice(c.Request.Context(), invoiceID, req.Method)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPayment(*payment))
}
