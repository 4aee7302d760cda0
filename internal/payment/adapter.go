package payment

import (
	"context"
	"sync"
)

// WidgetConfig is the configuration handed to the external payment SDK. The
// SDK surface is callback-shaped and untrusted; the adapter exists to fold
// its three callbacks into the single resolution UI.Open promises.
type WidgetConfig struct {
	Key         string
	OrderID     string
	AmountMinor int64
	Currency    string
	Buyer       BuyerProfile

	OnSuccess func(assertion Assertion)
	OnFailure func(code, message string)
	OnDismiss func()
}

// Launcher hands a configured widget to the external SDK. It returns once
// the widget has been presented; the outcome arrives via the callbacks.
type Launcher func(cfg WidgetConfig) error

// WidgetAdapter bridges the callback-shaped SDK to the UI contract. A
// misbehaving SDK may fire several callbacks, or fire after dismissal; only
// the first resolution wins and the rest are dropped.
type WidgetAdapter struct {
	key    string
	launch Launcher
}

func NewWidgetAdapter(key string, launch Launcher) *WidgetAdapter {
	return &WidgetAdapter{key: key, launch: launch}
}

type outcome struct {
	assertion Assertion
	err       error
}

func (a *WidgetAdapter) Open(ctx context.Context, order Order, buyer BuyerProfile) (Assertion, error) {
	resolved := make(chan outcome, 1)
	var once sync.Once

	resolve := func(o outcome) {
		once.Do(func() { resolved <- o })
	}

	cfg := WidgetConfig{
		Key:         a.key,
		OrderID:     order.OrderID,
		AmountMinor: order.AmountMinor,
		Currency:    order.Currency,
		Buyer:       buyer,
		OnSuccess: func(assertion Assertion) {
			resolve(outcome{assertion: assertion})
		},
		OnFailure: func(code, message string) {
			resolve(outcome{err: &ProviderError{Code: code, Message: message}})
		},
		OnDismiss: func() {
			resolve(outcome{err: ErrDismissed})
		},
	}

	if err := a.launch(cfg); err != nil {
		resolve(outcome{err: &ProviderError{Code: "launch_failed", Message: err.Error()}})
	}

	select {
	case o := <-resolved:
		return o.assertion, o.err
	case <-ctx.Done():
		return Assertion{}, ctx.Err()
	}
}
