package domain

import (
	"fmt"
	"strings"
	"time"
)

// Size is the cup size of a line item. The zero value means no size chosen yet.
type Size string

const (
	SizeUnset Size = ""
	SizeSmall Size = "Small"
	SizeLarge Size = "Large"
)

// ParseSize accepts canonical names and the menu aliases Medio/Grande.
func ParseSize(raw string) (Size, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return SizeUnset, nil
	case "small", "medio":
		return SizeSmall, nil
	case "large", "grande":
		return SizeLarge, nil
	default:
		return SizeUnset, fmt.Errorf("%w: unknown size %q", ErrInvalidInput, raw)
	}
}

// LineItemStatus tracks a line item through settlement.
type LineItemStatus string

const (
	LineItemPending   LineItemStatus = "Pending"
	LineItemConfirmed LineItemStatus = "Confirmed"
	LineItemVoid      LineItemStatus = "Void"
)

// PaymentMethod is how a transaction was tendered.
type PaymentMethod string

const (
	PaymentCash          PaymentMethod = "Cash"
	PaymentDigitalWallet PaymentMethod = "DigitalWallet"
)

// ParsePaymentMethod accepts canonical names plus "GCash" for the digital wallet.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cash":
		return PaymentCash, nil
	case "digitalwallet", "digital_wallet", "gcash":
		return PaymentDigitalWallet, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, raw)
	}
}

// TransactionStatus is Normal until an authorized void.
type TransactionStatus string

const (
	TransactionNormal TransactionStatus = "Normal"
	TransactionVoided TransactionStatus = "Voided"
)

// LineItem is one product entry in a cart or a settled transaction.
type LineItem struct {
	ID             string         `json:"id"`
	SessionID      string         `json:"sessionId"`
	Position       int64          `json:"position"`
	ProductName    string         `json:"productName"`
	BasePriceCents int64          `json:"basePriceCents"`
	Size           Size           `json:"size,omitempty"`
	AddOns         []string       `json:"addOns"`
	Quantity       int            `json:"quantity"`
	UnitPriceCents int64          `json:"unitPriceCents"`
	TotalCents     int64          `json:"totalCents"`
	Status         LineItemStatus `json:"status"`
	TransactionID  *string        `json:"transactionId,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Transaction is the immutable record of a settled cart.
type Transaction struct {
	ID                  string            `json:"id"`
	Code                string            `json:"code"`
	Number              int64             `json:"number"`
	SessionID           string            `json:"sessionId"`
	IdempotencyKey      string            `json:"-"`
	PaymentMethod       PaymentMethod     `json:"paymentMethod"`
	TotalCents          int64             `json:"totalCents"`
	AmountTenderedCents int64             `json:"amountTenderedCents"`
	ChangeCents         int64             `json:"changeCents"`
	CashierName         string            `json:"cashierName,omitempty"`
	Status              TransactionStatus `json:"status"`
	CreatedAt           time.Time         `json:"createdAt"`
}

// Totals summarizes a set of line items.
type Totals struct {
	ItemCount   int   `json:"itemCount"`
	Subtotal    int64 `json:"subtotalCents"`
	AddOnsTotal int64 `json:"addOnsTotalCents"`
	GrandTotal  int64 `json:"grandTotalCents"`
	// Incomplete counts items without a size; they are excluded from the money fields.
	Incomplete int `json:"incomplete"`
}

// Settlement is what a successful confirm returns.
type Settlement struct {
	Transaction Transaction `json:"transaction"`
	Items       []LineItem  `json:"items"`
	Totals      Totals      `json:"totals"`
	// Replayed is set when an idempotent retry returned an earlier settlement.
	Replayed bool `json:"replayed"`
}

// AuthorizationProof is the manager credential presented for gated operations.
type AuthorizationProof struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
