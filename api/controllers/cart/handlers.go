package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-cart/api/responses"
	"github.com/angelmondragon/storefront-cart/api/validators"
	cartsvc "github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/pkg/auth"
	"github.com/angelmondragon/storefront-cart/pkg/commerce"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

// tokenSkew treats tokens about to expire as already expired.
const tokenSkew = 30 * time.Second

// Store is the cart state the handlers operate on.
type Store interface {
	Key() string
	Snapshot() cartsvc.Snapshot
	GetItem(id cartsvc.ProductID) (cartsvc.LineItem, bool)
	AddItem(ctx context.Context, product cartsvc.Product, quantity int) cartsvc.Snapshot
	UpdateQuantity(ctx context.Context, id cartsvc.ProductID, quantity int) cartsvc.Snapshot
	RemoveItem(ctx context.Context, id cartsvc.ProductID) cartsvc.Snapshot
	ClearCart(ctx context.Context) cartsvc.Snapshot
	ReconcileWithRemote(ctx context.Context, fetcher cartsvc.RemoteCartFetcher) cartsvc.ReconcileResult
}

// ProductLookup resolves a catalog slug to a product with current stock.
type ProductLookup interface {
	GetProduct(ctx context.Context, slug string) (commerce.Product, error)
}

// CartSnapshot returns the current cart.
func CartSnapshot(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, errStoreUnavailable())
			return
		}
		responses.WriteSuccess(w, newSnapshot(store.Snapshot()))
	}
}

// CartTotals returns the price breakdown of the current cart.
func CartTotals(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, errStoreUnavailable())
			return
		}
		responses.WriteSuccess(w, newTotals(cartsvc.CalculateCartTotals(store.Snapshot().Items)))
	}
}

// CartHealth returns the diagnostic report for the current cart.
func CartHealth(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, errStoreUnavailable())
			return
		}
		responses.WriteSuccess(w, newHealth(cartsvc.GetCartHealth(store.Snapshot().Items)))
	}
}

// CartAddItem adds an inline product, or one looked up by slug, after
// checking the requested total against the known stock.
func CartAddItem(store Store, products ProductLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, errStoreUnavailable())
			return
		}

		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := resolveProduct(r.Context(), products, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quantity := payload.Quantity
		if quantity == 0 {
			quantity = 1
		}

		candidate := cartsvc.LineItem{
			ID:       product.ID,
			Name:     product.Name,
			Price:    product.Price,
			Quantity: quantity,
			Stock:    product.Stock,
		}
		if existing, ok := store.GetItem(product.ID); ok {
			candidate.Quantity += existing.Quantity
			if candidate.Stock == nil {
				candidate.Stock = existing.Stock
			}
		}
		if err := checkItem(candidate); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap := store.AddItem(r.Context(), product, quantity)
		if logg != nil {
			logCtx := logg.WithProductID(logg.WithCartKey(r.Context(), store.Key()), product.ID.String())
			logg.Info(logCtx, "cart.item_added")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newSnapshot(snap))
	}
}

// CartGetItem returns one line item.
func CartGetItem(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, errStoreUnavailable())
			return
		}
		id, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, ok := store.GetItem(id)
		if !ok {
			responses.WriteError(r.Context(), logg, w, errItemNotFound(id))
			return
		}
		responses.WriteSuccess(w, newLineItems([]cartsvc.LineItem{item})[0])
	}
}

// CartUpdateItem sets a line's quantity. Quantities below one remove it.
func CartUpdateItem(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, errStoreUnavailable())
			return
		}
		id, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, ok := store.GetItem(id)
		if !ok {
			responses.WriteError(r.Context(), logg, w, errItemNotFound(id))
			return
		}
		quantity := *payload.Quantity
		if quantity > 0 && item.Stock != nil && quantity > *item.Stock {
			responses.WriteError(r.Context(), logg, w, errStockLimit(*item.Stock, quantity))
			return
		}

		responses.WriteSuccess(w, newSnapshot(store.UpdateQuantity(r.Context(), id, quantity)))
	}
}

// CartRemoveItem deletes a line. Removing an absent product is not an error.
func CartRemoveItem(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, errStoreUnavailable())
			return
		}
		id, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSnapshot(store.RemoveItem(r.Context(), id)))
	}
}

// CartClear empties the cart.
func CartClear(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, errStoreUnavailable())
			return
		}
		responses.WriteSuccess(w, newSnapshot(store.ClearCart(r.Context())))
	}
}

// CartReconcile merges the server cart into the local one. A failed fetch
// still answers 200 with success=false; only a missing or expired token is
// rejected up front.
func CartReconcile(store Store, fetcher cartsvc.RemoteCartFetcher, token string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, errStoreUnavailable())
			return
		}
		if fetcher == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "remote cart not configured"))
			return
		}

		info, err := auth.RequireUsable(token, time.Now(), tokenSkew)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, tokenMessage(err)))
			return
		}

		ctx := r.Context()
		if logg != nil && info.UserID != "" {
			ctx = logg.WithField(ctx, "user_id", info.UserID)
		}

		result := store.ReconcileWithRemote(ctx, fetcher)
		responses.WriteSuccess(w, newReconcile(result, store.Snapshot()))
	}
}

// CartValidate validates an arbitrary item list without touching the store.
func CartValidate(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := validators.ReadRawBody(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartsvc.ValidateCartPayload(raw))
	}
}

func resolveProduct(ctx context.Context, products ProductLookup, payload addItemRequest) (cartsvc.Product, error) {
	if payload.Product != nil {
		return payload.Product.product(), nil
	}
	if products == nil {
		return cartsvc.Product{}, pkgerrors.New(pkgerrors.CodeDependency, "product catalog not configured")
	}
	found, err := products.GetProduct(ctx, strings.TrimSpace(payload.Slug))
	if err != nil {
		return cartsvc.Product{}, err
	}
	return cartsvc.ProductFromCatalog(found), nil
}

// checkItem rejects structurally invalid items and quantities above stock.
func checkItem(item cartsvc.LineItem) error {
	result := cartsvc.ValidateLineItem(item)
	if result.IsValid {
		return nil
	}
	if result.Structural() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid product").
			WithDetails(map[string]any{"errors": result.Errors})
	}
	return errStockLimit(*item.Stock, item.Quantity)
}

func errStockLimit(available, requested int) error {
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("Only %d items available in stock", available)).
		WithDetails(map[string]any{"available": available, "requested": requested})
}

func errItemNotFound(id cartsvc.ProductID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s is not in the cart", id))
}

func errStoreUnavailable() error {
	return pkgerrors.New(pkgerrors.CodeInternal, "cart store unavailable")
}

func tokenMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "api token has expired"
	case errors.Is(err, auth.ErrTokenMissing):
		return "api token is not configured"
	}
	return "api token rejected"
}
