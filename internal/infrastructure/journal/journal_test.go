package journal

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notePayload struct {
	Note string `json:"note"`
}

// ============================================
// Memory Journal Tests
// ============================================

func TestMemory_Append_VersionsPerAggregate(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	first, err := m.Append(ctx, "cart-u1", "Cart", "ItemAddedToCart", notePayload{Note: "a"})
	require.NoError(t, err)
	second, err := m.Append(ctx, "cart-u1", "Cart", "ItemRemovedFromCart", notePayload{Note: "b"})
	require.NoError(t, err)
	other, err := m.Append(ctx, "cart-u2", "Cart", "ItemAddedToCart", notePayload{Note: "c"})
	require.NoError(t, err)

	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, 1, other.Version)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestMemory_Events_OrderedCopy(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	_, err := m.Append(ctx, "checkout-a1", "Checkout", "CheckoutStarted", notePayload{Note: "x"})
	require.NoError(t, err)
	_, err = m.Append(ctx, "checkout-a1", "Checkout", "PaymentOrderCreated", notePayload{Note: "y"})
	require.NoError(t, err)

	events, err := m.Events(ctx, "checkout-a1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "CheckoutStarted", events[0].EventType)
	assert.Equal(t, "PaymentOrderCreated", events[1].EventType)

	var data notePayload
	require.NoError(t, json.Unmarshal(events[0].Data, &data))
	assert.Equal(t, "x", data.Note)

	// Mutating the returned slice must not touch the journal.
	events[0].EventType = "tampered"
	again, err := m.Events(ctx, "checkout-a1")
	require.NoError(t, err)
	assert.Equal(t, "CheckoutStarted", again[0].EventType)
}

func TestMemory_Events_UnknownAggregate(t *testing.T) {
	m := NewMemory(nil)

	events, err := m.Events(context.Background(), "checkout-missing")

	require.NoError(t, err)
	assert.Empty(t, events)
}
