package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type openSessionRequest struct {
	Cashier string `json:"cashier" binding:"required"`
}

func (h *handlers) openSession(c *gin.Context) {
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "cashier is required")
		return
	}
	s, err := h.deps.Sessions.Open(req.Cashier)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *handlers) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, sessionFrom(c))
}

func (h *handlers) closeSession(c *gin.Context) {
	if err := h.deps.Sessions.Close(sessionFrom(c).ID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
