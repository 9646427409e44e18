package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
	"github.com/shopspring/decimal"
)

// DefaultStorageKey is the key the cart is persisted under.
const DefaultStorageKey = "cart-storage"

// Op names the operation that produced a snapshot.
type Op string

const (
	OpLoad      Op = "load"
	OpAdd       Op = "add"
	OpUpdate    Op = "update"
	OpRemove    Op = "remove"
	OpClear     Op = "clear"
	OpReconcile Op = "reconcile"
	// OpRefresh marks a reload of state written by another process.
	OpRefresh Op = "refresh"
)

// Change is delivered to subscribers after every applied mutation.
type Change struct {
	Op       Op
	Snapshot Snapshot
}

// Listener receives cart changes. Listeners run outside the store lock and
// may be called concurrently; Snapshot.Version orders them.
type Listener func(Change)

// StoreParams configure a Store.
type StoreParams struct {
	Persister Persister
	Key       string
	Logger    *logger.Logger
	Metrics   *metrics.CartMetrics
	// ReconcileTimeout bounds ReconcileWithRemote. Zero disables the bound.
	ReconcileTimeout time.Duration
}

// Store owns the canonical cart snapshot. Every mutation heals the item
// list, recomputes the aggregates and persists before it returns.
type Store struct {
	mu        sync.Mutex
	snap      Snapshot
	persister Persister
	key       string
	logg      *logger.Logger
	metrics   *metrics.CartMetrics
	timeout   time.Duration

	subMu     sync.Mutex
	listeners map[uint64]Listener
	nextID    uint64
}

// NewStore builds a store and rehydrates it from the persister. A record that
// cannot be decoded is discarded and the cart starts empty.
func NewStore(ctx context.Context, params StoreParams) (*Store, error) {
	if params.Persister == nil {
		return nil, fmt.Errorf("persister required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	key := params.Key
	if key == "" {
		key = DefaultStorageKey
	}
	s := &Store{
		persister: params.Persister,
		key:       key,
		logg:      logg,
		metrics:   params.Metrics,
		timeout:   params.ReconcileTimeout,
		listeners: map[uint64]Listener{},
	}
	ctx = s.logg.WithCartKey(ctx, key)

	entries, version, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	items := s.heal(ctx, entries)
	s.snap = snapshotOf(items, version, now().UTC())
	s.metrics.SetItems(len(s.snap.Items), s.snap.TotalItems)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"event":       "cart.rehydrated",
		"items":       len(s.snap.Items),
		"total_items": s.snap.TotalItems,
	}), "cart rehydrated")
	return s, nil
}

func (s *Store) load(ctx context.Context) ([]DecodedItem, uint64, error) {
	data, err := s.persister.Load(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load cart %q: %w", s.key, err)
	}
	entries, version, err := decodeRecord(data)
	if err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"event": "cart.record_discarded",
			"error": err.Error(),
		}), "persisted cart unreadable; starting empty")
		s.metrics.IncHealed("unreadable")
		return nil, 0, nil
	}
	return entries, version, nil
}

// Key returns the storage key the store persists under.
func (s *Store) Key() string {
	return s.key
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.clone()
}

// GetItem returns the line item for id.
func (s *Store) GetItem(id ProductID) (LineItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := indexOf(s.snap.Items, id); idx >= 0 {
		return s.snap.Items[idx].clone(), true
	}
	return LineItem{}, false
}

// AddItem increments the quantity of an existing line or appends a new one.
// A zero quantity means one. Stock is not enforced here.
func (s *Store) AddItem(ctx context.Context, product Product, quantity int) Snapshot {
	if quantity == 0 {
		quantity = 1
	}
	return s.apply(ctx, OpAdd, product.ID, func(items []LineItem) []LineItem {
		if idx := indexOf(items, product.ID); idx >= 0 {
			items[idx].Quantity += quantity
			return items
		}
		return append(items, product.lineItem(quantity))
	})
}

// UpdateQuantity replaces the quantity of the matching line. A quantity
// below one removes the line through healing. Unknown ids are a no-op.
func (s *Store) UpdateQuantity(ctx context.Context, id ProductID, quantity int) Snapshot {
	return s.apply(ctx, OpUpdate, id, func(items []LineItem) []LineItem {
		if idx := indexOf(items, id); idx >= 0 {
			items[idx].Quantity = quantity
		}
		return items
	})
}

// RemoveItem drops the matching line. Unknown ids are a no-op.
func (s *Store) RemoveItem(ctx context.Context, id ProductID) Snapshot {
	return s.apply(ctx, OpRemove, id, func(items []LineItem) []LineItem {
		out := items[:0]
		for _, item := range items {
			if item.ID != id {
				out = append(out, item)
			}
		}
		return out
	})
}

// ClearCart resets to the empty cart.
func (s *Store) ClearCart(ctx context.Context) Snapshot {
	return s.apply(ctx, OpClear, "", func([]LineItem) []LineItem {
		return nil
	})
}

// Refresh reloads the persisted record, typically after another process
// wrote to the same key. The reload is not written back.
func (s *Store) Refresh(ctx context.Context) (Snapshot, error) {
	ctx = s.logg.WithCartKey(ctx, s.key)
	entries, _, err := s.load(ctx)
	if err != nil {
		return s.Snapshot(), err
	}

	s.mu.Lock()
	items := s.heal(ctx, entries)
	if itemsEqual(items, s.snap.Items) {
		snap := s.snap.clone()
		s.mu.Unlock()
		return snap, nil
	}
	s.snap = snapshotOf(items, s.snap.Version+1, now().UTC())
	snap := s.snap.clone()
	s.mu.Unlock()

	s.metrics.IncMutation(string(OpRefresh))
	s.metrics.SetItems(len(snap.Items), snap.TotalItems)
	s.notify(Change{Op: OpRefresh, Snapshot: snap})
	return snap, nil
}

// ReconcileWithRemote fetches the server cart without holding the lock and
// merges it into the items current at the time the fetch completes. On
// failure, including timeout, the local cart is left untouched.
func (s *Store) ReconcileWithRemote(ctx context.Context, fetcher RemoteCartFetcher) ReconcileResult {
	logCtx := s.logg.WithCartKey(ctx, s.key)
	started := time.Now()

	fetchCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	remote, err := fetchRemote(fetchCtx, fetcher)
	if err != nil {
		result := reconcileFailure(s.Snapshot().Items, err)
		s.metrics.ObserveReconcile("failure", time.Since(started))
		s.logg.Warn(s.logg.WithFields(logCtx, map[string]any{
			"event": "cart.reconcile_failed",
			"error": err.Error(),
		}), result.Message)
		return result
	}

	var before []LineItem
	snap := s.apply(ctx, OpReconcile, "", func(items []LineItem) []LineItem {
		before = cloneItems(items)
		merged, _ := mergeRemote(items, remote)
		return merged
	})
	// Healing may drop merged entries, so count against what was kept.
	changes := countChanges(before, snap.Items)
	result := reconcileSuccess(snap.Items, changes)
	s.metrics.ObserveReconcile("success", time.Since(started))
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"event":   "cart.reconciled",
		"changes": changes,
	}), result.Message)
	return result
}

// Subscribe registers fn for future changes and returns its cancel func.
func (s *Store) Subscribe(fn Listener) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify(change Change) {
	s.subMu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.subMu.Unlock()

	for _, fn := range listeners {
		fn(Change{Op: change.Op, Snapshot: change.Snapshot.clone()})
	}
}

// apply runs mutate against a copy of the current items. Unchanged results
// leave the snapshot, its version and the persisted record as they were.
// Callers pass a bare context; apply owns the cart_key, op and product_id fields.
func (s *Store) apply(ctx context.Context, op Op, id ProductID, mutate func([]LineItem) []LineItem) Snapshot {
	fields := map[string]any{"cart_key": s.key, "op": string(op)}
	if id != "" {
		fields["product_id"] = id.String()
	}
	ctx = s.logg.WithFields(ctx, fields)

	s.mu.Lock()
	next := mutate(cloneItems(s.snap.Items))
	entries := make([]DecodedItem, len(next))
	for i, item := range next {
		entries[i] = DecodedItem{Item: item}
	}
	items := s.heal(ctx, entries)
	if itemsEqual(items, s.snap.Items) {
		snap := s.snap.clone()
		s.mu.Unlock()
		return snap
	}
	s.snap = snapshotOf(items, s.snap.Version+1, now().UTC())
	snap := s.snap.clone()
	s.persist(ctx, snap)
	s.mu.Unlock()

	s.metrics.IncMutation(string(op))
	s.metrics.SetItems(len(snap.Items), snap.TotalItems)
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"event":       "cart.updated",
		"version":     snap.Version,
		"total_items": snap.TotalItems,
	}), "cart updated")
	s.notify(Change{Op: op, Snapshot: snap})
	return snap
}

// persist must be called with mu held so writes land in mutation order.
func (s *Store) persist(ctx context.Context, snap Snapshot) {
	data, err := encodeSnapshot(snap)
	if err == nil {
		err = s.persister.Save(ctx, s.key, data)
	}
	if err != nil {
		s.metrics.IncPersistFailure()
		s.logg.Error(s.logg.WithField(ctx, "event", "cart.persist_failed"), "failed to persist cart", err)
	}
}

// heal drops entries with structural faults and later duplicates of an id.
// Quantities above the recorded stock are advisory and kept.
func (s *Store) heal(ctx context.Context, entries []DecodedItem) []LineItem {
	kept := make([]LineItem, 0, len(entries))
	seen := make(map[ProductID]struct{}, len(entries))
	for i, entry := range entries {
		reason := ""
		result := entry.validate()
		if result.structural {
			reason = "invalid"
		} else if _, dup := seen[entry.Item.ID]; dup {
			reason = "duplicate"
		}
		if reason != "" {
			s.metrics.IncHealed(reason)
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"event":      "cart.item_dropped",
				"index":      i,
				"item_id": entry.Item.ID.String(),
				"reason":  reason,
				"errors":  result.Errors,
			}), "dropping cart item")
			continue
		}
		seen[entry.Item.ID] = struct{}{}
		kept = append(kept, entry.Item.clone())
	}
	return kept
}

func snapshotOf(items []LineItem, version uint64, at time.Time) Snapshot {
	subtotal := decimal.Zero
	totalItems := 0
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
		totalItems += item.Quantity
	}
	if items == nil {
		items = []LineItem{}
	}
	return Snapshot{
		Items:      items,
		TotalItems: totalItems,
		TotalPrice: RoundCents(subtotal),
		Version:    version,
		UpdatedAt:  at,
	}
}

func itemsEqual(a, b []LineItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].equal(b[i]) {
			return false
		}
	}
	return true
}
