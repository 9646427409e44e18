package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func remoteEntry(id, price string, qty int) RemoteEntry {
	return RemoteEntry{
		Product: RemoteProduct{
			ID:    ProductID(id),
			Name:  "Remote " + id,
			Price: dec(price),
			Slug:  "remote-" + id,
		},
		Quantity: qty,
	}
}

func staticFetcher(entries ...RemoteEntry) RemoteCartFetcher {
	return RemoteCartFetcherFunc(func(context.Context) ([]RemoteEntry, error) {
		return entries, nil
	})
}

func TestReconcileMergesByMaxQuantity(t *testing.T) {
	local := []LineItem{item("a", "1", 2), item("b", "2", 4), item("d", "3", 1)}
	withImage := remoteEntry("c", "5.25", 1)
	withImage.Product.ImageURL = "full.png"
	withImage.Product.Stock = intPtr(8)

	result := Reconcile(context.Background(), local, staticFetcher(
		remoteEntry("a", "1", 5),
		remoteEntry("b", "2", 1),
		withImage,
	))

	require.True(t, result.Success)
	assert.Equal(t, 2, result.ChangeCount)
	assert.Equal(t, "Synced 2 items with server", result.Message)
	assert.Empty(t, result.Error)

	require.Len(t, result.MergedItems, 4)
	assert.Equal(t, 5, result.MergedItems[0].Quantity)
	assert.Equal(t, 4, result.MergedItems[1].Quantity)
	assert.Equal(t, ProductID("d"), result.MergedItems[2].ID)
	added := result.MergedItems[3]
	assert.Equal(t, ProductID("c"), added.ID)
	assert.Equal(t, "full.png", added.Image)
	assert.Equal(t, "remote-c", added.Slug)
	require.NotNil(t, added.Stock)
	assert.Equal(t, 8, *added.Stock)

	assert.Equal(t, 2, local[0].Quantity, "local input must not be mutated")
}

func TestReconcilePrefersThumbnail(t *testing.T) {
	entry := remoteEntry("x", "1", 1)
	entry.Product.ThumbnailURL = "thumb.png"
	entry.Product.ImageURL = "full.png"

	result := Reconcile(context.Background(), nil, staticFetcher(entry))

	require.Len(t, result.MergedItems, 1)
	assert.Equal(t, "thumb.png", result.MergedItems[0].Image)
}

func TestReconcileUpToDate(t *testing.T) {
	local := []LineItem{item("a", "1", 3)}

	result := Reconcile(context.Background(), local, staticFetcher(remoteEntry("a", "1", 3)))

	assert.True(t, result.Success)
	assert.Zero(t, result.ChangeCount)
	assert.Equal(t, "Cart is up to date", result.Message)
}

func TestReconcileNeverLowersQuantity(t *testing.T) {
	for _, tc := range []struct{ local, remote int }{{1, 1}, {1, 7}, {7, 1}, {3, 4}} {
		result := Reconcile(context.Background(),
			[]LineItem{item("p", "1", tc.local)},
			staticFetcher(remoteEntry("p", "1", tc.remote)))

		require.Len(t, result.MergedItems, 1)
		assert.Equal(t, max(tc.local, tc.remote), result.MergedItems[0].Quantity)
	}
}

func TestReconcileRepeatedRemoteEntriesMatchMergedList(t *testing.T) {
	result := Reconcile(context.Background(), nil, staticFetcher(
		remoteEntry("n", "1", 1),
		remoteEntry("n", "1", 3),
	))

	require.Len(t, result.MergedItems, 1)
	assert.Equal(t, 3, result.MergedItems[0].Quantity)
	assert.Equal(t, 2, result.ChangeCount)
}

func TestReconcileFailureKeepsLocal(t *testing.T) {
	local := []LineItem{item("a", "1", 2)}
	fetcher := RemoteCartFetcherFunc(func(context.Context) ([]RemoteEntry, error) {
		return nil, errors.New("401 unauthorized")
	})

	result := Reconcile(context.Background(), local, fetcher)

	assert.False(t, result.Success)
	assert.Equal(t, local, result.MergedItems)
	assert.Equal(t, "Failed to sync with server, using local cart", result.Message)
	assert.Equal(t, "401 unauthorized", result.Error)
}

func TestReconcileWithoutFetcher(t *testing.T) {
	result := Reconcile(context.Background(), nil, nil)

	assert.False(t, result.Success)
	assert.Equal(t, "remote cart fetcher not configured", result.Error)
}

func TestReconcileTimesOutOnStuckFetcher(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	fetcher := RemoteCartFetcherFunc(func(context.Context) ([]RemoteEntry, error) {
		<-release
		return nil, nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result := Reconcile(ctx, []LineItem{item("a", "1", 1)}, fetcher)

	assert.False(t, result.Success)
	assert.Len(t, result.MergedItems, 1)
	assert.Contains(t, result.Error, context.DeadlineExceeded.Error())
}
