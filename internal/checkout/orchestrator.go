package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/storefront-sync/internal/gateway"
	"github.com/example/storefront-sync/internal/infrastructure/journal"
	"github.com/example/storefront-sync/internal/payment"
	"github.com/example/storefront-sync/internal/session"
)

// Cart is the slice of the cart store the orchestrator touches: the payable
// total going in, and the clear after a verified payment coming out.
type Cart interface {
	Total() int64
	Clear(ctx context.Context, reason string)
}

// PaymentAPI covers the two server legs of the payment protocol.
type PaymentAPI interface {
	CreateOrder(ctx context.Context, credential string, amountMinor int64, currency string) (payment.Order, error)
	VerifyPayment(ctx context.Context, credential string, assertion payment.Assertion) (gateway.Confirmation, error)
}

// Receipt is the confirmed outcome of a completed checkout.
type Receipt struct {
	AttemptID      string
	OrderID        string
	ConfirmationID string
	AmountMinor    int64
	Currency       string
	CompletedAt    time.Time
}

// Orchestrator drives one checkout attempt through the payment protocol.
// One instance per attempt: after Run returns, the instance is spent and a
// retry needs a fresh one (and with it a freshly computed total and a fresh
// payment order).
type Orchestrator struct {
	attemptID string
	currency  string

	sess     *session.Context
	cart     Cart
	api      PaymentAPI
	ui       payment.UI
	recorder journal.Recorder
	logger   *zap.Logger

	mu          sync.Mutex
	state       State
	reason      error
	order       payment.Order
	consumed    bool
	cancelAwait context.CancelFunc
	dismissed   bool
}

func newOrchestrator(sess *session.Context, cart Cart, api PaymentAPI, ui payment.UI, recorder journal.Recorder, currency string, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		attemptID: uuid.New().String(),
		currency:  currency,
		sess:      sess,
		cart:      cart,
		api:       api,
		ui:        ui,
		recorder:  recorder,
		logger:    logger,
		state:     StateIdle,
	}
}

func (o *Orchestrator) AttemptID() string { return o.attemptID }

// inFlight reports whether Run has started and not yet reached a terminal
// state. Checked instead of the bare state so a running attempt holds the
// coordinator slot from its first instruction, not only once it transitions.
func (o *Orchestrator) inFlight() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.consumed && !o.state.Terminal()
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Reason returns the terminal failure of an aborted attempt, nil otherwise.
func (o *Orchestrator) Reason() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reason
}

// Order returns the payment order of this attempt, zero before one exists.
func (o *Orchestrator) Order() payment.Order {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.order
}

// Cancel requests user-initiated cancellation. It only has effect while the
// attempt is awaiting the payment UI; in every other state the attempt is
// either not externally visible yet or past the point where walking away
// means anything, and the call is a no-op.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateAwaitingPaymentUI || o.cancelAwait == nil {
		return
	}
	o.dismissed = true
	o.cancelAwait()
}

// Run executes the attempt to a terminal state. Failures are terminal for
// the attempt and never retried here; the caller decides whether to start
// over. Revocation of the session credential aborts an in-flight attempt.
func (o *Orchestrator) Run(ctx context.Context, buyer payment.BuyerProfile) (*Receipt, error) {
	o.mu.Lock()
	if o.consumed {
		o.mu.Unlock()
		return nil, ErrAttemptConsumed
	}
	o.consumed = true
	o.mu.Unlock()

	// A credential revoked in another tab must abandon the attempt
	// immediately, wherever it is suspended.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	revoked := o.sess.Revoked()
	go func() {
		select {
		case <-revoked:
			cancel()
		case <-ctx.Done():
		}
	}()

	total := o.cart.Total()
	if total <= 0 {
		return nil, o.abort(ctx, ErrInvalidTotal)
	}
	o.advance(StateTotalComputed)
	o.record(ctx, EventCheckoutStarted, CheckoutStarted{
		AttemptID:  o.attemptID,
		UserID:     o.sess.UserID(),
		TotalMinor: total,
		Currency:   o.currency,
		StartedAt:  time.Now(),
	})

	credential, err := o.sess.Credential()
	if err != nil {
		return nil, o.abort(ctx, fmt.Errorf("%w: session holds no credential", gateway.ErrAuthRequired))
	}

	order, err := o.api.CreateOrder(ctx, credential, total, o.currency)
	if err != nil {
		return nil, o.abort(ctx, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err))
	}
	o.mu.Lock()
	o.order = order
	o.mu.Unlock()
	o.advance(StateOrderRequested)

	// The order must be on record before money can move: a charge with no
	// corresponding journal entry is the one outcome this subsystem exists
	// to rule out.
	if err := o.recordStrict(ctx, EventOrderCreated, PaymentOrderCreated{
		AttemptID:   o.attemptID,
		OrderID:     order.OrderID,
		AmountMinor: order.AmountMinor,
		Currency:    order.Currency,
		CreatedAt:   time.Now(),
	}); err != nil {
		return nil, o.abort(ctx, fmt.Errorf("%w: recording order: %v", ErrOrderCreationFailed, err))
	}

	awaitCtx, cancelAwait := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancelAwait = cancelAwait
	o.mu.Unlock()
	o.advance(StateAwaitingPaymentUI)

	assertion, err := o.ui.Open(awaitCtx, order, buyer)
	cancelAwait()
	o.mu.Lock()
	o.cancelAwait = nil
	userDismissed := o.dismissed
	o.mu.Unlock()

	switch {
	case err == nil:
		// fall through to the order match check
	case errors.Is(err, payment.ErrDismissed),
		userDismissed && errors.Is(err, context.Canceled):
		return nil, o.cancelled(ctx)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// The provider did not fail here; report revocation as what it is.
		if !o.sess.IsAuthenticated() {
			return nil, o.abort(ctx, fmt.Errorf("%w: credential revoked during payment", gateway.ErrAuthRequired))
		}
		return nil, o.abort(ctx, fmt.Errorf("%w: %v", ErrPaymentFailed, err))
	default:
		var provider *payment.ProviderError
		if errors.As(err, &provider) {
			return nil, o.abort(ctx, fmt.Errorf("%w: %s", ErrPaymentFailed, provider.Message))
		}
		return nil, o.abort(ctx, fmt.Errorf("%w: %v", ErrPaymentFailed, err))
	}

	// A stale or replayed assertion must never reach verification.
	if assertion.OrderID != order.OrderID {
		return nil, o.abort(ctx, fmt.Errorf("%w: got %q, created %q", ErrOrderMismatch, assertion.OrderID, order.OrderID))
	}
	o.advance(StateAssertionReceived)
	o.record(ctx, EventAssertionReceived, PaymentAssertionReceived{
		AttemptID:  o.attemptID,
		OrderID:    order.OrderID,
		ReceivedAt: time.Now(),
	})

	o.advance(StateVerifying)
	confirmation, err := o.api.VerifyPayment(ctx, credential, assertion)
	if err != nil {
		// The cart stays as it is: a failed verification call does not
		// prove the payment did not happen.
		return nil, o.abort(ctx, fmt.Errorf("%w: %v", ErrVerificationFailed, err))
	}
	if !confirmation.Confirmed {
		return nil, o.abort(ctx, ErrVerificationFailed)
	}

	o.advance(StateCompleted)
	o.cart.Clear(ctx, "checkout_completed")
	receipt := &Receipt{
		AttemptID:      o.attemptID,
		OrderID:        order.OrderID,
		ConfirmationID: confirmation.ConfirmationID,
		AmountMinor:    order.AmountMinor,
		Currency:       order.Currency,
		CompletedAt:    time.Now(),
	}
	o.record(ctx, EventCheckoutCompleted, CheckoutCompleted{
		AttemptID:      receipt.AttemptID,
		OrderID:        receipt.OrderID,
		ConfirmationID: receipt.ConfirmationID,
		AmountMinor:    receipt.AmountMinor,
		CompletedAt:    receipt.CompletedAt,
	})
	o.logger.Info("checkout completed",
		zap.String("attempt_id", receipt.AttemptID),
		zap.String("order_id", receipt.OrderID),
		zap.Int64("amount_minor_units", receipt.AmountMinor),
	)
	return receipt, nil
}

func (o *Orchestrator) advance(target State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !CanTransition(o.state, target) {
		// Run drives every transition; hitting this is a bug in Run.
		o.logger.Error("illegal checkout transition",
			zap.String("from", string(o.state)),
			zap.String("to", string(target)),
		)
		return
	}
	o.state = target
}

func (o *Orchestrator) abort(ctx context.Context, reason error) error {
	o.mu.Lock()
	from := o.state
	o.state = StateAborted
	o.reason = reason
	orderID := o.order.OrderID
	o.mu.Unlock()

	o.record(ctx, EventCheckoutAborted, CheckoutAborted{
		AttemptID: o.attemptID,
		OrderID:   orderID,
		State:     string(from),
		Reason:    reason.Error(),
		AbortedAt: time.Now(),
	})
	o.logger.Warn("checkout aborted",
		zap.String("attempt_id", o.attemptID),
		zap.String("from_state", string(from)),
		zap.Error(reason),
	)
	return reason
}

func (o *Orchestrator) cancelled(ctx context.Context) error {
	o.advance(StateCancelled)
	o.mu.Lock()
	o.reason = ErrCancelled
	orderID := o.order.OrderID
	o.mu.Unlock()

	o.record(ctx, EventCheckoutCancelled, CheckoutCancelled{
		AttemptID:   o.attemptID,
		OrderID:     orderID,
		CancelledAt: time.Now(),
	})
	o.logger.Info("checkout cancelled by user", zap.String("attempt_id", o.attemptID))
	return ErrCancelled
}

func (o *Orchestrator) record(ctx context.Context, eventType string, data any) {
	if err := o.recordStrict(ctx, eventType, data); err != nil {
		o.logger.Warn("append checkout audit event", zap.String("event", eventType), zap.Error(err))
	}
}

func (o *Orchestrator) recordStrict(ctx context.Context, eventType string, data any) error {
	if o.recorder == nil {
		return nil
	}
	_, err := o.recorder.Append(ctx, "checkout-"+o.attemptID, AggregateType, eventType, data)
	return err
}
