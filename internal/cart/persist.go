package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by a Persister when nothing is stored under a key.
var ErrNotFound = errors.New("cart state not found")

// Persister is the durable key-value storage behind a Store. Only the Store
// writes to its key.
type Persister interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// persistedRecord covers both the native layout and the browser client's
// {"state": {"items": [...]}} layout. Cached totals are never read back.
type persistedRecord struct {
	Items   json.RawMessage `json:"items"`
	Version uint64          `json:"version"`
	State   *struct {
		Items json.RawMessage `json:"items"`
	} `json:"state"`
}

func encodeSnapshot(snap Snapshot) ([]byte, error) {
	if snap.Items == nil {
		snap.Items = []LineItem{}
	}
	return json.Marshal(snap)
}

// decodeRecord returns the raw entries of a persisted cart and its version.
func decodeRecord(data []byte) ([]DecodedItem, uint64, error) {
	var rec persistedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, 0, fmt.Errorf("decode cart record: %w", err)
	}
	raw := rec.Items
	if isAbsent(raw) && rec.State != nil {
		raw = rec.State.Items
	}
	if isAbsent(raw) {
		return nil, rec.Version, nil
	}
	entries, err := DecodeItems(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("decode cart items: %w", err)
	}
	return entries, rec.Version, nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
