package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	msgReconcileFailed = "Failed to sync with server, using local cart"
	msgUpToDate        = "Cart is up to date"
)

var errNoFetcher = errors.New("remote cart fetcher not configured")

// RemoteProduct is the product block of a server-side cart entry.
type RemoteProduct struct {
	ID           ProductID
	Name         string
	Price        decimal.Decimal
	ThumbnailURL string
	ImageURL     string
	Slug         string
	Stock        *int
}

// RemoteEntry is one line of the authoritative server cart.
type RemoteEntry struct {
	Product  RemoteProduct
	Quantity int
}

// RemoteCartFetcher loads the authenticated user's server cart.
type RemoteCartFetcher interface {
	FetchRemoteCart(ctx context.Context) ([]RemoteEntry, error)
}

// RemoteCartFetcherFunc adapts a function to RemoteCartFetcher.
type RemoteCartFetcherFunc func(ctx context.Context) ([]RemoteEntry, error)

func (fn RemoteCartFetcherFunc) FetchRemoteCart(ctx context.Context) ([]RemoteEntry, error) {
	return fn(ctx)
}

// ReconcileResult reports the outcome of merging with the server cart. A
// failed fetch is not an error: MergedItems then holds the local items.
type ReconcileResult struct {
	Success     bool       `json:"success"`
	MergedItems []LineItem `json:"mergedItems"`
	ChangeCount int        `json:"changeCount"`
	Message     string     `json:"message"`
	Error       string     `json:"error,omitempty"`
}

// Reconcile fetches the server cart and merges it into local.
func Reconcile(ctx context.Context, local []LineItem, fetcher RemoteCartFetcher) ReconcileResult {
	remote, err := fetchRemote(ctx, fetcher)
	if err != nil {
		return reconcileFailure(local, err)
	}
	merged, changes := mergeRemote(local, remote)
	return reconcileSuccess(merged, changes)
}

type fetchOutcome struct {
	entries []RemoteEntry
	err     error
}

// fetchRemote returns as soon as ctx is done, even when the fetcher ignores it.
func fetchRemote(ctx context.Context, fetcher RemoteCartFetcher) ([]RemoteEntry, error) {
	if fetcher == nil {
		return nil, errNoFetcher
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done := make(chan fetchOutcome, 1)
	go func() {
		entries, err := fetcher.FetchRemoteCart(ctx)
		done <- fetchOutcome{entries: entries, err: err}
	}()
	select {
	case out := <-done:
		return out.entries, out.err
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch remote cart: %w", ctx.Err())
	}
}

func reconcileFailure(local []LineItem, err error) ReconcileResult {
	return ReconcileResult{
		Success:     false,
		MergedItems: cloneItems(local),
		Message:     msgReconcileFailed,
		Error:       err.Error(),
	}
}

func reconcileSuccess(merged []LineItem, changes int) ReconcileResult {
	msg := msgUpToDate
	if changes > 0 {
		msg = fmt.Sprintf("Synced %d items with server", changes)
	}
	return ReconcileResult{
		Success:     true,
		MergedItems: merged,
		ChangeCount: changes,
		Message:     msg,
	}
}

// mergeRemote keeps the larger quantity for items present on both sides,
// appends remote-only items and never drops local-only ones. Remote entries
// are matched against the growing merged list.
func mergeRemote(local []LineItem, remote []RemoteEntry) ([]LineItem, int) {
	merged := cloneItems(local)
	changes := 0
	for _, entry := range remote {
		idx := indexOf(merged, entry.Product.ID)
		if idx >= 0 {
			if entry.Quantity > merged[idx].Quantity {
				merged[idx].Quantity = entry.Quantity
				changes++
			}
			continue
		}
		merged = append(merged, entry.lineItem())
		changes++
	}
	return merged, changes
}

// countChanges counts lines of merged that are absent from before or carry a
// larger quantity there.
func countChanges(before, merged []LineItem) int {
	changes := 0
	for _, item := range merged {
		idx := indexOf(before, item.ID)
		if idx < 0 || item.Quantity > before[idx].Quantity {
			changes++
		}
	}
	return changes
}

func (e RemoteEntry) lineItem() LineItem {
	image := e.Product.ThumbnailURL
	if image == "" {
		image = e.Product.ImageURL
	}
	item := LineItem{
		ID:       e.Product.ID,
		Name:     e.Product.Name,
		Price:    e.Product.Price,
		Quantity: e.Quantity,
		Image:    image,
		Slug:     e.Product.Slug,
	}
	if e.Product.Stock != nil {
		stock := *e.Product.Stock
		item.Stock = &stock
	}
	return item
}

func indexOf(items []LineItem, id ProductID) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}
