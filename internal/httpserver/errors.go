package httpserver

import (
	"errors"
	"net/http"

	"brewpos/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorBody struct {
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

// reasons names the settlement rejections so clients can branch without parsing messages.
var reasons = []struct {
	err    error
	reason string
}{
	{domain.ErrEmptyCart, "empty_cart"},
	{domain.ErrIncompleteItem, "incomplete_item"},
	{domain.ErrInsufficientPayment, "insufficient_payment"},
	{domain.ErrInvalidPaymentMethod, "invalid_payment_method"},
	{domain.ErrProductUnavailable, "product_unavailable"},
	{domain.ErrCodeConflict, "code_conflict"},
	{domain.ErrCommitConflict, "commit_conflict"},
}

func reasonOf(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ""
}

// writeError maps domain errors to HTTP statuses. Unknown errors are logged and hidden.
func (h *handlers) writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	body := errorBody{Reason: reasonOf(err), Message: err.Error()}
	status := http.StatusInternalServerError

	switch {
	case domain.IsValidation(err):
		status, body.Error = http.StatusUnprocessableEntity, "validation_error"
	case errors.Is(err, domain.ErrNotFound):
		status, body.Error = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrUnauthorized):
		status, body.Error = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrAlreadyExists):
		status, body.Error = http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrRetryable), domain.IsConcurrency(err):
		status, body.Error = http.StatusServiceUnavailable, "retryable"
		c.Header("Retry-After", "1")
	default:
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDCtxKey)),
			zap.Error(err),
		)
		body.Error, body.Message = "internal", "internal error"
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorBody{Error: "bad_request", Message: msg})
}
