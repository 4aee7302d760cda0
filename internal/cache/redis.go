package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/storefront-sync/internal/cart"
)

// Snapshot keeps the last server-acknowledged cart in Redis so a freshly
// started client can show something while the first load is in flight. It
// is advisory display state: checkout always prices from the live store,
// never from here.
type Snapshot struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewSnapshot(client *redis.Client) *Snapshot {
	return &Snapshot{
		client:  client,
		baseTTL: 24 * time.Hour,
	}
}

func key(userID string) string {
	return "cart-snapshot:" + userID
}

func (s *Snapshot) Save(ctx context.Context, userID string, lines []cart.Line) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, key(userID), data, s.baseTTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Last returns the most recent snapshot, cart.ErrNoSnapshot when none exists.
func (s *Snapshot) Last(ctx context.Context, userID string) ([]cart.Line, error) {
	data, err := s.client.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cart.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var lines []cart.Line
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return lines, nil
}

func (s *Snapshot) Drop(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}
