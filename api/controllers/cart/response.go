package cart

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	cartsvc "github.com/angelmondragon/storefront-cart/internal/cart"
)

type lineItemResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Price     json.Number `json:"price"`
	Quantity  int         `json:"quantity"`
	LineTotal json.Number `json:"lineTotal"`
	Stock     *int        `json:"stock,omitempty"`
	Image     string      `json:"image,omitempty"`
	Slug      string      `json:"slug,omitempty"`
}

type snapshotResponse struct {
	Items      []lineItemResponse `json:"items"`
	TotalItems int                `json:"totalItems"`
	TotalPrice json.Number        `json:"totalPrice"`
	Version    uint64             `json:"version"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

type totalsResponse struct {
	Subtotal   json.Number            `json:"subtotal"`
	Tax        json.Number            `json:"tax"`
	Shipping   json.Number            `json:"shipping"`
	Total      json.Number            `json:"total"`
	TotalItems int                    `json:"totalItems"`
	Validation cartsvc.CartValidation `json:"validation"`
}

type healthResponse struct {
	IsHealthy   bool        `json:"isHealthy"`
	ItemCount   int         `json:"itemCount"`
	TotalItems  int         `json:"totalItems"`
	TotalValue  json.Number `json:"totalValue"`
	Errors      []string    `json:"errors"`
	Warnings    []string    `json:"warnings"`
	LastChecked time.Time   `json:"lastChecked"`
}

type reconcileResponse struct {
	Success     bool               `json:"success"`
	ChangeCount int                `json:"changeCount"`
	Message     string             `json:"message"`
	Error       string             `json:"error,omitempty"`
	MergedItems []lineItemResponse `json:"mergedItems"`
	Cart        snapshotResponse   `json:"cart"`
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func newLineItems(items []cartsvc.LineItem) []lineItemResponse {
	out := make([]lineItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, lineItemResponse{
			ID:        item.ID.String(),
			Name:      item.Name,
			Price:     money(item.Price),
			Quantity:  item.Quantity,
			LineTotal: money(cartsvc.RoundCents(item.LineTotal())),
			Stock:     item.Stock,
			Image:     item.Image,
			Slug:      item.Slug,
		})
	}
	return out
}

func newSnapshot(snap cartsvc.Snapshot) snapshotResponse {
	return snapshotResponse{
		Items:      newLineItems(snap.Items),
		TotalItems: snap.TotalItems,
		TotalPrice: money(snap.TotalPrice),
		Version:    snap.Version,
		UpdatedAt:  snap.UpdatedAt,
	}
}

func newTotals(t cartsvc.Totals) totalsResponse {
	return totalsResponse{
		Subtotal:   money(t.Subtotal),
		Tax:        money(t.Tax),
		Shipping:   money(t.Shipping),
		Total:      money(t.Total),
		TotalItems: t.TotalItems,
		Validation: t.Validation,
	}
}

func newHealth(h cartsvc.Health) healthResponse {
	return healthResponse{
		IsHealthy:   h.IsHealthy,
		ItemCount:   h.ItemCount,
		TotalItems:  h.TotalItems,
		TotalValue:  money(h.TotalValue),
		Errors:      h.Errors,
		Warnings:    h.Warnings,
		LastChecked: h.LastChecked,
	}
}

func newReconcile(result cartsvc.ReconcileResult, snap cartsvc.Snapshot) reconcileResponse {
	return reconcileResponse{
		Success:     result.Success,
		ChangeCount: result.ChangeCount,
		Message:     result.Message,
		Error:       result.Error,
		MergedItems: newLineItems(result.MergedItems),
		Cart:        newSnapshot(snap),
	}
}
