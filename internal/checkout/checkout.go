package checkout

import "errors"

const AggregateType = "Checkout"

// State of one checkout attempt. An attempt walks the happy path top to
// bottom; Aborted is reachable from every non-terminal state, Cancelled only
// from AwaitingPaymentUI.
type State string

const (
	StateIdle              State = "idle"
	StateTotalComputed     State = "total_computed"
	StateOrderRequested    State = "order_requested"
	StateAwaitingPaymentUI State = "awaiting_payment_ui"
	StateAssertionReceived State = "assertion_received"
	StateVerifying         State = "verifying"
	StateCompleted         State = "completed"
	StateAborted           State = "aborted"
	StateCancelled         State = "cancelled"
)

var validTransitions = map[State][]State{
	StateIdle:              {StateTotalComputed, StateAborted},
	StateTotalComputed:     {StateOrderRequested, StateAborted},
	StateOrderRequested:    {StateAwaitingPaymentUI, StateAborted},
	StateAwaitingPaymentUI: {StateAssertionReceived, StateAborted, StateCancelled},
	StateAssertionReceived: {StateVerifying, StateAborted},
	StateVerifying:         {StateCompleted, StateAborted},
	StateCompleted:         {},
	StateAborted:           {},
	StateCancelled:         {},
}

// CanTransition reports whether from may move to target.
func CanTransition(from, target State) bool {
	for _, s := range validTransitions[from] {
		if s == target {
			return true
		}
	}
	return false
}

// Terminal reports whether s is an end state requiring a fresh attempt.
func (s State) Terminal() bool {
	return len(validTransitions[s]) == 0
}

var (
	ErrInvalidTotal        = errors.New("cart total must be positive")
	ErrOrderCreationFailed = errors.New("payment order creation failed")
	ErrOrderMismatch       = errors.New("payment assertion references a different order")
	ErrPaymentFailed       = errors.New("payment failed")
	ErrVerificationFailed  = errors.New("payment verification failed: payment may have been collected but is unconfirmed")
	ErrCancelled           = errors.New("checkout cancelled by user")
	ErrAttemptInProgress   = errors.New("another checkout attempt is in flight")
	ErrAttemptConsumed     = errors.New("checkout attempt already ran")
)
