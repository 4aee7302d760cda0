package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDismissed reports that the user closed the payment UI without paying.
// It is a normal outcome, not a provider fault.
var ErrDismissed = errors.New("payment UI dismissed by user")

// ProviderError carries a failure reported by the external payment provider.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider failure (%s): %s", e.Code, e.Message)
}

// Order is a server-issued intent to collect a specific amount. It is
// consumed by exactly one payment attempt and never reused.
type Order struct {
	OrderID     string `json:"order_id"`
	AmountMinor int64  `json:"amount_minor_units"`
	Currency    string `json:"currency"`
}

// Assertion is the opaque proof returned by the payment widget. OrderID is
// the only field the client reads (to match the assertion against the order
// it created); Payload is forwarded verbatim to server-side verification.
type Assertion struct {
	OrderID string          `json:"order_id"`
	Payload json.RawMessage `json:"payload"`
}

// BuyerProfile is passed through to the payment UI for prefilling.
type BuyerProfile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// UI opens the external payment surface for an order and blocks until
// exactly one outcome is observed:
//   - an Assertion (user completed the widget flow),
//   - *ProviderError (the provider reported a failure),
//   - ErrDismissed (user closed the widget),
//   - ctx.Err() (caller abandoned the attempt).
//
// Implementations must never resolve twice.
type UI interface {
	Open(ctx context.Context, order Order, buyer BuyerProfile) (Assertion, error)
}
