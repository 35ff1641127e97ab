package httpserver

import (
	"time"

	"brewpos/internal/domain"
	"brewpos/internal/money"
)

type lineItemResponse struct {
	ID             string   `json:"id"`
	SessionID      string   `json:"sessionId"`
	Position       int64    `json:"position"`
	ProductName    string   `json:"productName"`
	Size           string   `json:"size,omitempty"`
	AddOns         []string `json:"addOns"`
	Quantity       int      `json:"quantity"`
	Status         string   `json:"status"`
	TransactionID  *string  `json:"transactionId,omitempty"`
	BasePriceCents int64    `json:"basePriceCents"`
	UnitPriceCents int64    `json:"unitPriceCents"`
	TotalCents     int64    `json:"totalCents"`
	BasePrice      string   `json:"basePrice"`
	UnitPrice      string   `json:"unitPrice"`
	Total          string   `json:"total"`
	// Complete is false until a size is chosen; such items block checkout.
	Complete  bool      `json:"complete"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toLineItem(it domain.LineItem) lineItemResponse {
	addOns := it.AddOns
	if addOns == nil {
		addOns = []string{}
	}
	return lineItemResponse{
		ID:             it.ID,
		SessionID:      it.SessionID,
		Position:       it.Position,
		ProductName:    it.ProductName,
		Size:           string(it.Size),
		AddOns:         addOns,
		Quantity:       it.Quantity,
		Status:         string(it.Status),
		TransactionID:  it.TransactionID,
		BasePriceCents: it.BasePriceCents,
		UnitPriceCents: it.UnitPriceCents,
		TotalCents:     it.TotalCents,
		BasePrice:      money.Format(it.BasePriceCents),
		UnitPrice:      money.Format(it.UnitPriceCents),
		Total:          money.Format(it.TotalCents),
		Complete:       it.Size != domain.SizeUnset,
		CreatedAt:      it.CreatedAt,
		UpdatedAt:      it.UpdatedAt,
	}
}

func toLineItems(items []domain.LineItem) []lineItemResponse {
	out := make([]lineItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toLineItem(it))
	}
	return out
}

type totalsResponse struct {
	ItemCount        int    `json:"itemCount"`
	Incomplete       int    `json:"incomplete"`
	SubtotalCents    int64  `json:"subtotalCents"`
	AddOnsTotalCents int64  `json:"addOnsTotalCents"`
	GrandTotalCents  int64  `json:"grandTotalCents"`
	Subtotal         string `json:"subtotal"`
	AddOnsTotal      string `json:"addOnsTotal"`
	GrandTotal       string `json:"grandTotal"`
}

func toTotals(t domain.Totals) totalsResponse {
	return totalsResponse{
		ItemCount:        t.ItemCount,
		Incomplete:       t.Incomplete,
		SubtotalCents:    t.Subtotal,
		AddOnsTotalCents: t.AddOnsTotal,
		GrandTotalCents:  t.GrandTotal,
		Subtotal:         money.Format(t.Subtotal),
		AddOnsTotal:      money.Format(t.AddOnsTotal),
		GrandTotal:       money.Format(t.GrandTotal),
	}
}

type cartResponse struct {
	Items  []lineItemResponse `json:"items"`
	Totals totalsResponse     `json:"totals"`
}

type transactionResponse struct {
	ID                  string    `json:"id"`
	Code                string    `json:"code"`
	Number              int64     `json:"number"`
	SessionID           string    `json:"sessionId"`
	CashierName         string    `json:"cashierName,omitempty"`
	PaymentMethod       string    `json:"paymentMethod"`
	Status              string    `json:"status"`
	TotalCents          int64     `json:"totalCents"`
	AmountTenderedCents int64     `json:"amountTenderedCents"`
	ChangeCents         int64     `json:"changeCents"`
	Total               string    `json:"total"`
	AmountTendered      string    `json:"amountTendered"`
	Change              string    `json:"change"`
	CreatedAt           time.Time `json:"createdAt"`
}

type settlementResponse struct {
	Transaction transactionResponse `json:"transaction"`
	Items       []lineItemResponse  `json:"items"`
	Totals      totalsResponse      `json:"totals"`
	Replayed    bool                `json:"replayed"`
}

func toSettlement(s domain.Settlement) settlementResponse {
	t := s.Transaction
	return settlementResponse{
		Transaction: transactionResponse{
			ID:                  t.ID,
			Code:                t.Code,
			Number:              t.Number,
			SessionID:           t.SessionID,
			CashierName:         t.CashierName,
			PaymentMethod:       string(t.PaymentMethod),
			Status:              string(t.Status),
			TotalCents:          t.TotalCents,
			AmountTenderedCents: t.AmountTenderedCents,
			ChangeCents:         t.ChangeCents,
			Total:               money.Format(t.TotalCents),
			AmountTendered:      money.Format(t.AmountTenderedCents),
			Change:              money.Format(t.ChangeCents),
			CreatedAt:           t.CreatedAt,
		},
		Items:    toLineItems(s.Items),
		Totals:   toTotals(s.Totals),
		Replayed: s.Replayed,
	}
}

type productResponse struct {
	domain.Product
	Price string `json:"price"`
}

func toProduct(p domain.Product) productResponse {
	return productResponse{Product: p, Price: money.Format(p.PriceCents)}
}
