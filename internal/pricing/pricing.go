// Package pricing computes line and cart prices. It has no state and performs no I/O.
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"brewpos/internal/domain"
)

const (
	// DefaultSizeUpchargeCents is added to the base price for a Large cup.
	DefaultSizeUpchargeCents int64 = 1000
	// DefaultAddOnFeeCents is the fixed fee of every add-on.
	DefaultAddOnFeeCents int64 = 900
	// MaxQuantity bounds a single line.
	MaxQuantity = 99
)

var (
	ErrSizeRequired    = errors.New("size required")
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 99")
	ErrNegativePrice   = errors.New("base price must not be negative")
	ErrUnknownAddOn    = errors.New("unknown add-on")
)

// DefaultAddOnMenu lists the add-ons offered at the counter.
var DefaultAddOnMenu = []string{
	"Pearl", "Crystal", "Cream Cheese", "Coffee Jelly", "Crushed Oreo", "Cream Puff", "Cheesecake",
}

// Rules carries the pricing constants. The zero value is not usable; use Default or fill every field.
type Rules struct {
	SizeUpchargeCents int64
	AddOnFeeCents     int64
	// AddOnMenu restricts accepted add-on names. Empty accepts any name.
	AddOnMenu []string
}

// Default returns the store's standard rules.
func Default() Rules {
	menu := make([]string, len(DefaultAddOnMenu))
	copy(menu, DefaultAddOnMenu)
	return Rules{
		SizeUpchargeCents: DefaultSizeUpchargeCents,
		AddOnFeeCents:     DefaultAddOnFeeCents,
		AddOnMenu:         menu,
	}
}

// Quote is the price breakdown of one line.
type Quote struct {
	SizePrice  int64
	AddOnsUnit int64
	UnitPrice  int64
	LineTotal  int64
}

// SizePrice returns the per-cup price for the given size.
func (r Rules) SizePrice(base int64, size domain.Size) (int64, error) {
	if base < 0 {
		return 0, ErrNegativePrice
	}
	switch size {
	case domain.SizeSmall:
		return base, nil
	case domain.SizeLarge:
		return base + r.SizeUpchargeCents, nil
	case domain.SizeUnset:
		return 0, ErrSizeRequired
	default:
		return 0, fmt.Errorf("%w: unknown size %q", domain.ErrInvalidInput, size)
	}
}

// Quote prices a line: (sizePrice + addOnCount*fee) * qty.
func (r Rules) Quote(base int64, size domain.Size, addOnCount, qty int) (Quote, error) {
	if qty < 1 || qty > MaxQuantity {
		return Quote{}, ErrInvalidQuantity
	}
	sizePrice, err := r.SizePrice(base, size)
	if err != nil {
		return Quote{}, err
	}
	addOns := int64(addOnCount) * r.AddOnFeeCents
	unit := sizePrice + addOns
	return Quote{
		SizePrice:  sizePrice,
		AddOnsUnit: addOns,
		UnitPrice:  unit,
		LineTotal:  unit * int64(qty),
	}, nil
}

// Reprice recomputes an item's unit price and total in place. Items without a size get zero prices.
func (r Rules) Reprice(item *domain.LineItem) error {
	if item.Size == domain.SizeUnset {
		if item.Quantity < 1 || item.Quantity > MaxQuantity {
			return ErrInvalidQuantity
		}
		item.UnitPriceCents = 0
		item.TotalCents = 0
		return nil
	}
	q, err := r.Quote(item.BasePriceCents, item.Size, len(item.AddOns), item.Quantity)
	if err != nil {
		return err
	}
	item.UnitPriceCents = q.UnitPrice
	item.TotalCents = q.LineTotal
	return nil
}

// Totals aggregates the given items. Unsized items only increase ItemCount and Incomplete.
func (r Rules) Totals(items []domain.LineItem) domain.Totals {
	var t domain.Totals
	for _, it := range items {
		t.ItemCount += it.Quantity
		sizePrice, err := r.SizePrice(it.BasePriceCents, it.Size)
		if err != nil {
			t.Incomplete++
			continue
		}
		qty := int64(it.Quantity)
		t.Subtotal += sizePrice * qty
		t.AddOnsTotal += int64(len(it.AddOns)) * r.AddOnFeeCents * qty
	}
	t.GrandTotal = t.Subtotal + t.AddOnsTotal
	return t
}

// NormalizeAddOns trims names, drops blanks and duplicates (first occurrence wins)
// and checks each against the menu using the menu's spelling.
func (r Rules) NormalizeAddOns(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if len(r.AddOnMenu) > 0 {
			canonical, ok := r.lookupAddOn(name)
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownAddOn, name)
			}
			name = canonical
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}

func (r Rules) lookupAddOn(name string) (string, bool) {
	for _, m := range r.AddOnMenu {
		if strings.EqualFold(m, name) {
			return m, true
		}
	}
	return "", false
}
