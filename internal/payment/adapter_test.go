package payment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOrder = Order{OrderID: "order-1", AmountMinor: 20000, Currency: "INR"}

// ============================================
// Resolution Tests
// ============================================

func TestWidgetAdapter_Success(t *testing.T) {
	adapter := NewWidgetAdapter("key-1", func(cfg WidgetConfig) error {
		assert.Equal(t, "key-1", cfg.Key)
		assert.Equal(t, "order-1", cfg.OrderID)
		assert.Equal(t, int64(20000), cfg.AmountMinor)
		go cfg.OnSuccess(Assertion{OrderID: cfg.OrderID, Payload: json.RawMessage(`{"sig":"x"}`)})
		return nil
	})

	assertion, err := adapter.Open(context.Background(), testOrder, BuyerProfile{Name: "Asha"})

	require.NoError(t, err)
	assert.Equal(t, "order-1", assertion.OrderID)
}

func TestWidgetAdapter_ProviderFailure(t *testing.T) {
	adapter := NewWidgetAdapter("key-1", func(cfg WidgetConfig) error {
		go cfg.OnFailure("card_declined", "insufficient funds")
		return nil
	})

	_, err := adapter.Open(context.Background(), testOrder, BuyerProfile{})

	var provider *ProviderError
	require.ErrorAs(t, err, &provider)
	assert.Equal(t, "card_declined", provider.Code)
	assert.Equal(t, "insufficient funds", provider.Message)
}

func TestWidgetAdapter_Dismissal(t *testing.T) {
	adapter := NewWidgetAdapter("key-1", func(cfg WidgetConfig) error {
		go cfg.OnDismiss()
		return nil
	})

	_, err := adapter.Open(context.Background(), testOrder, BuyerProfile{})

	assert.ErrorIs(t, err, ErrDismissed)
}

func TestWidgetAdapter_LaunchFailure(t *testing.T) {
	adapter := NewWidgetAdapter("key-1", func(cfg WidgetConfig) error {
		return errors.New("sdk not loaded")
	})

	_, err := adapter.Open(context.Background(), testOrder, BuyerProfile{})

	var provider *ProviderError
	require.ErrorAs(t, err, &provider)
	assert.Equal(t, "launch_failed", provider.Code)
}

func TestWidgetAdapter_ContextCancelled(t *testing.T) {
	adapter := NewWidgetAdapter("key-1", func(cfg WidgetConfig) error {
		return nil // widget never resolves
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := adapter.Open(ctx, testOrder, BuyerProfile{})

	assert.ErrorIs(t, err, context.Canceled)
}

// ============================================
// Single-Resolution Tests
// ============================================

func TestWidgetAdapter_FirstResolutionWins(t *testing.T) {
	adapter := NewWidgetAdapter("key-1", func(cfg WidgetConfig) error {
		go func() {
			cfg.OnSuccess(Assertion{OrderID: "order-1"})
			// A misbehaving SDK fires again; both must be dropped.
			cfg.OnDismiss()
			cfg.OnFailure("late", "late failure")
		}()
		return nil
	})

	assertion, err := adapter.Open(context.Background(), testOrder, BuyerProfile{})

	require.NoError(t, err)
	assert.Equal(t, "order-1", assertion.OrderID)
}

func TestWidgetAdapter_DismissThenSuccessStaysDismissed(t *testing.T) {
	adapter := NewWidgetAdapter("key-1", func(cfg WidgetConfig) error {
		go func() {
			cfg.OnDismiss()
			cfg.OnSuccess(Assertion{OrderID: "order-1"})
		}()
		return nil
	})

	_, err := adapter.Open(context.Background(), testOrder, BuyerProfile{})

	assert.ErrorIs(t, err, ErrDismissed)
}
