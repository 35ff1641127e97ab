package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	"brewpos/internal/money"
	"brewpos/internal/receipt"
	checkoutsvc "brewpos/internal/service/checkout"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type checkoutRequest struct {
	PaymentMethod string `json:"paymentMethod" binding:"required"`
	// AmountTendered accepts "300.00" or 300.
	AmountTendered decimal.Decimal `json:"amountTendered"`
}

func (h *handlers) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "paymentMethod and amountTendered are required")
		return
	}
	tendered, err := money.Parse(req.AmountTendered.String())
	if err != nil {
		h.writeError(c, err)
		return
	}

	s := sessionFrom(c)
	res, err := h.deps.Checkout.Confirm(c.Request.Context(), checkoutsvc.ConfirmInput{
		SessionID:           s.ID,
		CashierName:         s.CashierName,
		PaymentMethod:       req.PaymentMethod,
		AmountTenderedCents: tendered,
		IdempotencyKey:      strings.TrimSpace(c.GetHeader(idempotencyHeader)),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, toSettlement(*res))
}

func (h *handlers) nextCode(c *gin.Context) {
	code, err := h.deps.Checkout.NextCodePreview(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code})
}

func (h *handlers) getTransaction(c *gin.Context) {
	res, err := h.deps.Checkout.Transaction(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSettlement(*res))
}

type historyResponse struct {
	Transactions []settlementResponse `json:"transactions"`
	Next         string               `json:"next,omitempty"`
}

// listTransactions pages settled transactions newest first. Pass next as before to continue.
func (h *handlers) listTransactions(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "limit must be a number")
			return
		}
		limit = n
	}
	page, err := h.deps.Checkout.History(c.Request.Context(), limit, c.Query("before"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := historyResponse{Transactions: make([]settlementResponse, 0, len(page.Transactions)), Next: page.Next}
	for _, res := range page.Transactions {
		out.Transactions = append(out.Transactions, toSettlement(res))
	}
	c.JSON(http.StatusOK, out)
}

// receipt renders the PNG receipt of a settled transaction. Voided items are left off.
func (h *handlers) receipt(c *gin.Context) {
	if h.deps.Printer == nil {
		c.JSON(http.StatusNotImplemented, errorBody{Error: "unavailable", Message: "receipt printing is not configured"})
		return
	}
	res, err := h.deps.Checkout.Transaction(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	stamp := res.Transaction.CreatedAt.In(h.deps.Location)
	in := receipt.Input{
		Transaction: res.Transaction,
		Items:       receipt.Printable(res.Items),
		Date:        queryOr(c, "date", stamp.Format(receipt.DateLayout)),
		Time:        queryOr(c, "time", stamp.Format(receipt.TimeLayout)),
		Cashier:     queryOr(c, "cashier", res.Transaction.CashierName),
	}
	png, err := h.deps.Printer.Print(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

func queryOr(c *gin.Context, key, def string) string {
	if v := strings.TrimSpace(c.Query(key)); v != "" {
		return v
	}
	return def
}
