package checkout

import "time"

const (
	EventCheckoutStarted   = "CheckoutStarted"
	EventOrderCreated      = "PaymentOrderCreated"
	EventAssertionReceived = "PaymentAssertionReceived"
	EventCheckoutCompleted = "CheckoutCompleted"
	EventCheckoutCancelled = "CheckoutCancelled"
	EventCheckoutAborted   = "CheckoutAborted"
)

type CheckoutStarted struct {
	AttemptID  string    `json:"attempt_id"`
	UserID     string    `json:"user_id"`
	TotalMinor int64     `json:"total_minor_units"`
	Currency   string    `json:"currency"`
	StartedAt  time.Time `json:"started_at"`
}

type PaymentOrderCreated struct {
	AttemptID   string    `json:"attempt_id"`
	OrderID     string    `json:"order_id"`
	AmountMinor int64     `json:"amount_minor_units"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
}

type PaymentAssertionReceived struct {
	AttemptID  string    `json:"attempt_id"`
	OrderID    string    `json:"order_id"`
	ReceivedAt time.Time `json:"received_at"`
}

type CheckoutCompleted struct {
	AttemptID      string    `json:"attempt_id"`
	OrderID        string    `json:"order_id"`
	ConfirmationID string    `json:"confirmation_id"`
	AmountMinor    int64     `json:"amount_minor_units"`
	CompletedAt    time.Time `json:"completed_at"`
}

type CheckoutCancelled struct {
	AttemptID   string    `json:"attempt_id"`
	OrderID     string    `json:"order_id"`
	CancelledAt time.Time `json:"cancelled_at"`
}

type CheckoutAborted struct {
	AttemptID string    `json:"attempt_id"`
	OrderID   string    `json:"order_id"`
	State     string    `json:"state"`
	Reason    string    `json:"reason"`
	AbortedAt time.Time `json:"aborted_at"`
}
