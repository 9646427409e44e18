package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductID identifies a product. The storefront API uses numeric ids while
// some catalogs use opaque strings; both normalize to their textual form.
type ProductID string

func (id ProductID) String() string {
	return string(id)
}

// UnmarshalJSON accepts a JSON number or string.
func (id *ProductID) UnmarshalJSON(data []byte) error {
	parsed, ok := parseProductID(data)
	if !ok {
		return fmt.Errorf("invalid product id %s", bytes.TrimSpace(data))
	}
	*id = parsed
	return nil
}

func parseProductID(data []byte) (ProductID, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", true
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false
		}
		return ProductID(strings.TrimSpace(s)), true
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return "", false
		}
		if i, err := n.Int64(); err == nil {
			return ProductID(strconv.FormatInt(i, 10)), true
		}
		return ProductID(n.String()), true
	}
}

// LineItem is one product's presence in the cart.
type LineItem struct {
	ID       ProductID       `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	// Stock is the catalog ceiling recorded when the item was added.
	Stock *int   `json:"stock,omitempty"`
	Image string `json:"image,omitempty"`
	Slug  string `json:"slug,omitempty"`
}

// LineTotal is price × quantity, unrounded.
func (i LineItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i LineItem) equal(o LineItem) bool {
	if i.ID != o.ID || i.Name != o.Name || i.Quantity != o.Quantity ||
		i.Image != o.Image || i.Slug != o.Slug || !i.Price.Equal(o.Price) {
		return false
	}
	if i.Stock == nil || o.Stock == nil {
		return i.Stock == nil && o.Stock == nil
	}
	return *i.Stock == *o.Stock
}

func (i LineItem) clone() LineItem {
	out := i
	if i.Stock != nil {
		stock := *i.Stock
		out.Stock = &stock
	}
	return out
}

// Product is what a caller supplies when adding to the cart.
type Product struct {
	ID    ProductID       `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock *int            `json:"stock,omitempty"`
	Image string          `json:"image,omitempty"`
	Slug  string          `json:"slug,omitempty"`
}

func (p Product) lineItem(quantity int) LineItem {
	item := LineItem{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Quantity: quantity,
		Image:    p.Image,
		Slug:     p.Slug,
	}
	if p.Stock != nil {
		stock := *p.Stock
		item.Stock = &stock
	}
	return item
}

// Snapshot is the full cart state at a point in time.
type Snapshot struct {
	Items      []LineItem      `json:"items"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Version    uint64          `json:"version"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Items = cloneItems(s.Items)
	return out
}

func cloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, item := range items {
		out[i] = item.clone()
	}
	return out
}

// ItemValidation is the outcome of validating one line item.
type ItemValidation struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
	// StockExceeded reports a quantity above the recorded stock ceiling.
	StockExceeded bool `json:"stockExceeded"`
	// structural is set for any failure other than the stock ceiling.
	structural bool
}

// Structural reports a failure other than the stock ceiling.
func (v ItemValidation) Structural() bool {
	return v.structural
}

// CartValidation is the outcome of validating a whole cart.
type CartValidation struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Totals is the computed price breakdown of a cart.
type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	Shipping   decimal.Decimal `json:"shipping"`
	Total      decimal.Decimal `json:"total"`
	TotalItems int             `json:"totalItems"`
	Validation CartValidation  `json:"validation"`
}

// FieldDifference describes a mismatching field found by VerifyCalculations.
type FieldDifference struct {
	Current    decimal.Decimal `json:"current"`
	Expected   decimal.Decimal `json:"expected"`
	Difference decimal.Decimal `json:"difference"`
}

type Verification struct {
	IsValid     bool                       `json:"isValid"`
	Differences map[string]FieldDifference `json:"differences"`
}

// RejectedItem is an entry removed by CleanCart.
type RejectedItem struct {
	Index  int      `json:"index"`
	Item   LineItem `json:"item"`
	Errors []string `json:"errors"`
}

// Health is the diagnostic report surfaced to the UI.
type Health struct {
	IsHealthy   bool            `json:"isHealthy"`
	ItemCount   int             `json:"itemCount"`
	TotalItems  int             `json:"totalItems"`
	TotalValue  decimal.Decimal `json:"totalValue"`
	Errors      []string        `json:"errors"`
	Warnings    []string        `json:"warnings"`
	LastChecked time.Time       `json:"lastChecked"`
}
