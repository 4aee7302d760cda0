package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/storefront-sync/internal/gateway"
	"github.com/example/storefront-sync/internal/infrastructure/journal"
	"github.com/example/storefront-sync/internal/session"
)

// Gateway is the slice of the storefront API the store needs. Each call is
// request/response with a bounded timeout and classifies its own failures;
// the store never retries.
type Gateway interface {
	FetchCart(ctx context.Context, credential string) ([]gateway.Line, error)
	AddItem(ctx context.Context, credential, productID string, quantity int) error
	RemoveItem(ctx context.Context, credential, productID string) error
	UpdateQuantity(ctx context.Context, credential, productID string, quantity int) error
}

// Snapshots persists a last-known copy of the cart so a restarted client can
// show something before the first Load completes. Purely advisory.
type Snapshots interface {
	Save(ctx context.Context, userID string, lines []Line) error
	Last(ctx context.Context, userID string) ([]Line, error)
	Drop(ctx context.Context, userID string) error
}

// Store is the authoritative local cart for one session. Mutations are
// confirm-then-apply: the server acknowledges first, local state changes
// second, so a failed call leaves the visible cart exactly as it was. All
// operations are serialized; a reader never observes a half-applied write.
type Store struct {
	mu       sync.Mutex
	lines    []Line
	sess     *session.Context
	gw       Gateway
	recorder journal.Recorder
	snaps    Snapshots
	logger   *zap.Logger
}

func NewStore(sess *session.Context, gw Gateway, recorder journal.Recorder, snaps Snapshots, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		sess:     sess,
		gw:       gw,
		recorder: recorder,
		snaps:    snaps,
		logger:   logger,
	}
}

// Load fetches the authoritative cart and replaces local state wholesale.
// On failure the previous local state is untouched.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	credential, err := s.credential()
	if err != nil {
		return err
	}

	wire, err := s.gw.FetchCart(ctx, credential)
	if err != nil {
		return fmt.Errorf("fetch cart: %w", err)
	}

	s.lines = fromWire(wire)
	s.record(ctx, EventCartLoaded, CartLoaded{
		CartID:     CartID(s.sess.UserID()),
		UserID:     s.sess.UserID(),
		LineCount:  len(s.lines),
		TotalMinor: s.total(),
		LoadedAt:   time.Now(),
	})
	s.snapshot(ctx)
	return nil
}

// Add puts a product into the cart. Line metadata (name, image, unit price)
// comes from the product listing the user was looking at; the next Load
// replaces it with the server's copy.
func (s *Store) Add(ctx context.Context, line Line) error {
	if line.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if line.UnitPrice <= 0 {
		return ErrInvalidPrice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	credential, err := s.credential()
	if err != nil {
		return err
	}

	if err := s.gw.AddItem(ctx, credential, line.ProductID, line.Quantity); err != nil {
		return fmt.Errorf("add item: %w", err)
	}

	if existing := s.find(line.ProductID); existing != nil {
		existing.Quantity += line.Quantity
	} else {
		s.lines = append(s.lines, line)
	}
	s.record(ctx, EventItemAdded, ItemAddedToCart{
		CartID:    CartID(s.sess.UserID()),
		UserID:    s.sess.UserID(),
		ProductID: line.ProductID,
		Quantity:  line.Quantity,
		UnitPrice: line.UnitPrice,
		AddedAt:   time.Now(),
	})
	s.snapshot(ctx)
	return nil
}

// SetQuantity sets the absolute quantity for a product already in the cart.
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setQuantityLocked(ctx, productID, quantity)
}

func (s *Store) setQuantityLocked(ctx context.Context, productID string, quantity int) error {
	line := s.find(productID)
	if line == nil {
		return ErrUnknownProduct
	}

	credential, err := s.credential()
	if err != nil {
		return err
	}

	if err := s.gw.UpdateQuantity(ctx, credential, productID, quantity); err != nil {
		return fmt.Errorf("update quantity: %w", err)
	}

	line.Quantity = quantity
	s.record(ctx, EventQuantitySet, CartQuantitySet{
		CartID:    CartID(s.sess.UserID()),
		UserID:    s.sess.UserID(),
		ProductID: productID,
		Quantity:  quantity,
		SetAt:     time.Now(),
	})
	s.snapshot(ctx)
	return nil
}

func (s *Store) Increment(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := s.find(productID)
	if line == nil {
		return ErrUnknownProduct
	}
	return s.setQuantityLocked(ctx, productID, line.Quantity+1)
}

// Decrement lowers the quantity by one. At quantity 1 it is a no-op: lines
// never go below 1, removal is an explicit separate action.
func (s *Store) Decrement(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := s.find(productID)
	if line == nil {
		return ErrUnknownProduct
	}
	if line.Quantity <= 1 {
		return nil
	}
	return s.setQuantityLocked(ctx, productID, line.Quantity-1)
}

// Remove deletes a line after the server acknowledges. On failure the line
// stays.
func (s *Store) Remove(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.find(productID) == nil {
		return ErrUnknownProduct
	}

	credential, err := s.credential()
	if err != nil {
		return err
	}

	if err := s.gw.RemoveItem(ctx, credential, productID); err != nil {
		return fmt.Errorf("remove item: %w", err)
	}

	kept := s.lines[:0]
	for _, l := range s.lines {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	s.lines = kept
	s.record(ctx, EventItemRemoved, ItemRemovedFromCart{
		CartID:    CartID(s.sess.UserID()),
		UserID:    s.sess.UserID(),
		ProductID: productID,
		RemovedAt: time.Now(),
	})
	s.snapshot(ctx)
	return nil
}

// Total is the payable amount in minor units, recomputed from the line set
// on every call.
func (s *Store) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total()
}

func (s *Store) total() int64 {
	var sum int64
	for _, l := range s.lines {
		sum += l.UnitPrice * int64(l.Quantity)
	}
	return sum
}

// Lines returns a copy of the current line set in server order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

// LastKnown returns the snapshot taken after the last server-acknowledged
// mutation, ErrNoSnapshot when none exists or no snapshot store is
// configured. Display-only fallback for when the storefront is unreachable;
// checkout always prices from live state.
func (s *Store) LastKnown(ctx context.Context) ([]Line, error) {
	if s.snaps == nil {
		return nil, ErrNoSnapshot
	}
	return s.snaps.Last(ctx, s.sess.UserID())
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// Clear empties local state without calling the server. Only two callers
// exist: a verified checkout and logout.
func (s *Store) Clear(ctx context.Context, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil
	s.record(ctx, EventCartCleared, CartCleared{
		CartID:    CartID(s.sess.UserID()),
		UserID:    s.sess.UserID(),
		Reason:    reason,
		ClearedAt: time.Now(),
	})
	if s.snaps != nil {
		if err := s.snaps.Drop(ctx, s.sess.UserID()); err != nil {
			s.logger.Warn("drop cart snapshot", zap.Error(err))
		}
	}
}

func (s *Store) find(productID string) *Line {
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			return &s.lines[i]
		}
	}
	return nil
}

func (s *Store) credential() (string, error) {
	credential, err := s.sess.Credential()
	if err != nil {
		return "", fmt.Errorf("%w: session holds no credential", gateway.ErrAuthRequired)
	}
	return credential, nil
}

// record appends to the audit journal. Journal faults never fail a cart
// operation that the server already acknowledged.
func (s *Store) record(ctx context.Context, eventType string, data any) {
	if s.recorder == nil {
		return
	}
	if _, err := s.recorder.Append(ctx, CartID(s.sess.UserID()), AggregateType, eventType, data); err != nil {
		s.logger.Warn("append cart audit event", zap.String("event", eventType), zap.Error(err))
	}
}

func (s *Store) snapshot(ctx context.Context) {
	if s.snaps == nil {
		return
	}
	lines := make([]Line, len(s.lines))
	copy(lines, s.lines)
	if err := s.snaps.Save(ctx, s.sess.UserID(), lines); err != nil {
		s.logger.Warn("save cart snapshot", zap.Error(err))
	}
}
