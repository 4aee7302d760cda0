package checkout

import (
	"sync"

	"go.uber.org/zap"

	"github.com/example/storefront-sync/internal/infrastructure/journal"
	"github.com/example/storefront-sync/internal/payment"
	"github.com/example/storefront-sync/internal/session"
)

// Coordinator hands out checkout attempts and enforces that only one is in
// flight per session: once an attempt has requested a payment order, no new
// attempt may start until it reaches a terminal state.
type Coordinator struct {
	sess     *session.Context
	cart     Cart
	api      PaymentAPI
	ui       payment.UI
	recorder journal.Recorder
	currency string
	logger   *zap.Logger

	mu     sync.Mutex
	active *Orchestrator
}

func NewCoordinator(sess *session.Context, cart Cart, api PaymentAPI, ui payment.UI, recorder journal.Recorder, currency string, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		sess:     sess,
		cart:     cart,
		api:      api,
		ui:       ui,
		recorder: recorder,
		currency: currency,
		logger:   logger,
	}
}

// Begin returns a fresh attempt, or ErrAttemptInProgress while the previous
// one is running and not yet terminal. An attempt that was begun but never
// run does not hold the slot; a caller that abandons one must not run it
// after beginning another.
func (c *Coordinator) Begin() (*Orchestrator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil && c.active.inFlight() {
		return nil, ErrAttemptInProgress
	}

	c.active = newOrchestrator(c.sess, c.cart, c.api, c.ui, c.recorder, c.currency, c.logger)
	return c.active, nil
}

// Active returns the current attempt, nil if none was ever begun.
func (c *Coordinator) Active() *Orchestrator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}
