package cart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

func TestCleanCartDropsInvalidItems(t *testing.T) {
	bad := item("bad", "-5", 1)
	items := []LineItem{item("1", "10", 1), bad, item("2", "2.50", 2)}

	kept, rejected := CleanCart(items)

	require.Len(t, kept, 2)
	assert.Equal(t, ProductID("1"), kept[0].ID)
	assert.Equal(t, ProductID("2"), kept[1].ID)
	require.Len(t, rejected, 1)
	assert.Equal(t, 1, rejected[0].Index)
	assert.Equal(t, []string{"Invalid price: -5"}, rejected[0].Errors)

	totals := CalculateCartTotals(kept)
	assert.True(t, totals.Validation.IsValid)
	assertMoney(t, "15", totals.Subtotal)
}

func TestCleanCartDoesNotAliasInput(t *testing.T) {
	withStock := item("1", "1", 1)
	withStock.Stock = intPtr(4)
	items := []LineItem{withStock}

	kept, _ := CleanCart(items)
	kept[0].Quantity = 9
	*kept[0].Stock = 1

	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, 4, *items[0].Stock)
}

func TestGetCartHealthHealthyCart(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	freezeClock(t, at)

	health := GetCartHealth([]LineItem{item("1", "10.00", 2), item("2", "25.50", 1)})

	assert.True(t, health.IsHealthy)
	assert.Equal(t, 2, health.ItemCount)
	assert.Equal(t, 3, health.TotalItems)
	assertMoney(t, "50.05", health.TotalValue)
	assert.Empty(t, health.Errors)
	assert.Empty(t, health.Warnings)
	assert.Equal(t, at, health.LastChecked)
}

func TestGetCartHealthReportsEachProblemOnce(t *testing.T) {
	over := item("1", "3", 6)
	over.Stock = intPtr(5)
	items := []LineItem{over, item("1", "3", 1)}

	health := GetCartHealth(items)

	assert.False(t, health.IsHealthy)
	assert.Equal(t, []string{"Item 1 (Product 1): Quantity (6) exceeds available stock (5)"}, health.Errors)
	assert.Equal(t, []string{"Duplicate items found: 1"}, health.Warnings)
	assert.Equal(t, 7, health.TotalItems)
}

func TestGetCartHealthPayloadNonArray(t *testing.T) {
	health := GetCartHealthPayload([]byte(`{"items": {}}`))

	assert.False(t, health.IsHealthy)
	assert.Zero(t, health.ItemCount)
	assert.Equal(t, []string{"Cart items must be an array"}, health.Errors)
	assertMoney(t, "0", health.TotalValue)
}

func TestGetCartHealthPayloadDecodesItems(t *testing.T) {
	health := GetCartHealthPayload([]byte(`[{"id": 1, "name": "A", "price": "2.00", "quantity": 2}]`))

	assert.True(t, health.IsHealthy)
	assert.Equal(t, 1, health.ItemCount)
	assertMoney(t, "4.40", health.TotalValue)
}
