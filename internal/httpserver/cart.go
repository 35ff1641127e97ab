package httpserver

import (
	"net/http"

	"brewpos/internal/domain"
	cartsvc "brewpos/internal/service/cart"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *handlers) viewCart(c *gin.Context) {
	view, err := h.deps.Cart.View(c.Request.Context(), sessionFrom(c).ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse{Items: toLineItems(view.Items), Totals: toTotals(view.Totals)})
}

func (h *handlers) cartTotals(c *gin.Context) {
	totals, err := h.deps.Cart.Totals(c.Request.Context(), sessionFrom(c).ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTotals(totals))
}

func (h *handlers) addItem(c *gin.Context) {
	var req cartsvc.AddInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	item, err := h.deps.Cart.Add(c.Request.Context(), sessionFrom(c).ID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toLineItem(*item))
}

func (h *handlers) editItem(c *gin.Context) {
	var req cartsvc.EditInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	item, err := h.deps.Cart.Edit(c.Request.Context(), sessionFrom(c).ID, c.Param("itemID"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLineItem(*item))
}

func (h *handlers) removeItem(c *gin.Context) {
	if err := h.deps.Cart.Remove(c.Request.Context(), sessionFrom(c).ID, c.Param("itemID")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) clearCart(c *gin.Context) {
	var proof domain.AuthorizationProof
	if err := c.ShouldBindJSON(&proof); err != nil {
		badRequest(c, "manager credentials are required")
		return
	}
	n, err := h.deps.Cart.Clear(c.Request.Context(), sessionFrom(c).ID, proof)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": n})
}

// voidItem voids a settled line item and drops the cached receipts of its transaction.
func (h *handlers) voidItem(c *gin.Context) {
	var proof domain.AuthorizationProof
	if err := c.ShouldBindJSON(&proof); err != nil {
		badRequest(c, "manager credentials are required")
		return
	}
	item, err := h.deps.Cart.VoidLineItem(c.Request.Context(), c.Param("itemID"), proof)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if h.deps.Printer != nil && item.TransactionID != nil {
		h.deps.Printer.Forget(c.Request.Context(), *item.TransactionID)
	}
	h.logger.Info("void", zap.String("item", item.ID), zap.String("request_id", c.GetString(requestIDCtxKey)))
	c.JSON(http.StatusOK, toLineItem(*item))
}
